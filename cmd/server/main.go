package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"vitalrisk/internal/app"
	"vitalrisk/internal/platform/config"
	"vitalrisk/internal/platform/httpserver"
	"vitalrisk/internal/platform/logger"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "vitalrisk: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.Log)
	if cfg.UsesDevSigningKey() {
		log.Warn("JWT_SIGNING_KEY not set, using the development key")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("closing backends failed", "error", err)
		}
	}()

	if err := a.Migrate(ctx); err != nil {
		return err
	}
	if err := a.Bootstrap(ctx); err != nil {
		return err
	}

	log.Info("starting vitalrisk",
		"addr", cfg.Server.Addr,
		"profile_store", cfg.Profile.Backend,
		"history_store", cfg.History.Backend,
		"feedback_store", cfg.Feedback.Backend,
	)
	srv := httpserver.New(cfg.Server.Addr, a.Router(), cfg.Server.ReadHeaderTimeout)
	return httpserver.Run(ctx, srv, cfg.Server.ShutdownTimeout, log)
}
