// Package app opens the configured backends and assembles the services and
// router shared by the server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"vitalrisk/internal/access"
	accessmetrics "vitalrisk/internal/access/metrics"
	"vitalrisk/internal/admin"
	feedbackhandler "vitalrisk/internal/feedback/handler"
	feedbackmetrics "vitalrisk/internal/feedback/metrics"
	feedbackservice "vitalrisk/internal/feedback/service"
	feedbackstore "vitalrisk/internal/feedback/store"
	historyhandler "vitalrisk/internal/history/handler"
	historymetrics "vitalrisk/internal/history/metrics"
	historyservice "vitalrisk/internal/history/service"
	historystore "vitalrisk/internal/history/store"
	jwttoken "vitalrisk/internal/jwt_token"
	platformbadger "vitalrisk/internal/platform/badger"
	"vitalrisk/internal/platform/config"
	"vitalrisk/internal/platform/metrics"
	"vitalrisk/internal/platform/postgres"
	platformredis "vitalrisk/internal/platform/redis"
	"vitalrisk/internal/platform/sqlite"
	profilehandler "vitalrisk/internal/profile/handler"
	profilemetrics "vitalrisk/internal/profile/metrics"
	profileservice "vitalrisk/internal/profile/service"
	profilestore "vitalrisk/internal/profile/store"
	httptransport "vitalrisk/internal/transport/http"
	"vitalrisk/pkg/platform/circuit"
)

// App holds the wired services. Close releases every opened backend.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Tokens   *jwttoken.JWTService
	Profiles *profileservice.Service
	History  *historyservice.Service
	Feedback *feedbackservice.Service
	Admin    *admin.Service

	gate    *access.Gate
	checks  map[string]httptransport.HealthCheck
	migrate func(ctx context.Context) error
	closers []func() error
}

// New opens the backends named by cfg. On error everything already opened is
// closed before returning.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: metrics.NewRegistry(),
		checks:   map[string]httptransport.HealthCheck{},
		migrate:  func(context.Context) error { return nil },
	}
	opened := false
	defer func() {
		if !opened {
			_ = a.Close()
		}
	}()

	a.gate = access.NewGate(
		access.WithLogger(logger),
		access.WithMetrics(accessmetrics.New(a.Registry)),
	)
	a.Tokens = jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)

	historyStore, err := a.openHistory(cfg)
	if err != nil {
		return nil, err
	}
	breaker := circuit.New("history",
		circuit.WithFailureThreshold(cfg.History.BreakerThreshold),
		circuit.WithCooldown(cfg.History.BreakerCooldown),
	)
	a.History = historyservice.New(historyStore, a.gate,
		historyservice.WithLogger(logger),
		historyservice.WithMetrics(historymetrics.New(a.Registry)),
		historyservice.WithBreaker(breaker),
		historyservice.WithAppendTimeout(cfg.History.AppendTimeout),
	)

	profileStore, err := a.openProfiles(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Profiles = profileservice.New(profileStore, a.gate,
		profileservice.WithLogger(logger),
		profileservice.WithMetrics(profilemetrics.New(a.Registry)),
		profileservice.WithSnapshotRecorder(a.History),
	)

	feedbackStore, err := a.openFeedback(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Feedback = feedbackservice.New(feedbackStore, a.Profiles, a.gate,
		feedbackservice.WithLogger(logger),
		feedbackservice.WithMetrics(feedbackmetrics.New(a.Registry)),
	)

	a.Admin = admin.NewService(a.Profiles, a.Feedback, a.gate, logger)
	opened = true
	return a, nil
}

func (a *App) openProfiles(ctx context.Context, cfg config.Config) (profileservice.Store, error) {
	switch cfg.Profile.Backend {
	case config.BackendPostgres:
		db, err := postgres.Open(ctx, postgres.Config{DSN: cfg.Profile.DSN})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		a.checks["postgres"] = db.PingContext
		a.migrate = func(ctx context.Context) error { return postgres.Migrate(ctx, db) }
		return profilestore.NewPostgres(db), nil
	case config.BackendSQLite:
		db, err := sqlite.Open(cfg.Profile.DSN, a.Logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { return sqlite.Close(db) })
		a.checks["sqlite"] = func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
		s := profilestore.NewGorm(db)
		a.migrate = func(context.Context) error { return s.AutoMigrate() }
		return s, nil
	default:
		return profilestore.NewInMemory(), nil
	}
}

func (a *App) openHistory(cfg config.Config) (historyservice.Store, error) {
	if cfg.History.Backend != config.BackendBadger {
		return historystore.NewInMemory(), nil
	}
	bcfg := platformbadger.DefaultConfig(cfg.History.BadgerPath)
	bcfg.Logger = a.Logger
	db, err := platformbadger.Open(bcfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)
	s, err := historystore.NewBadger(db.DB)
	if err != nil {
		return nil, fmt.Errorf("open history log: %w", err)
	}
	return s, nil
}

func (a *App) openFeedback(ctx context.Context, cfg config.Config) (feedbackservice.Store, error) {
	if cfg.Feedback.Backend != config.BackendRedis {
		return feedbackstore.NewInMemory(), nil
	}
	client, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client.Close)
	a.checks["redis"] = client.Health
	return feedbackstore.NewRedis(client.Client), nil
}

// Migrate applies the profile schema. It is idempotent and a no-op for the
// in-memory store.
func (a *App) Migrate(ctx context.Context) error {
	if err := a.migrate(ctx); err != nil {
		return fmt.Errorf("migrate profile store: %w", err)
	}
	return nil
}

// Bootstrap seeds the configured admin, if any.
func (a *App) Bootstrap(ctx context.Context) error {
	email := a.Config.BootstrapAdminEmail
	if email == "" {
		return nil
	}
	p, created, err := a.Profiles.SeedAdmin(ctx, email)
	if err != nil {
		return fmt.Errorf("seed bootstrap admin: %w", err)
	}
	a.Logger.InfoContext(ctx, "bootstrap admin ready", "patient_id", p.ID, "created", created)
	return nil
}

// Router builds the HTTP surface over the wired services.
func (a *App) Router() http.Handler {
	profileH := profilehandler.New(a.Profiles, a.Tokens, a.Config.Auth.TokenTTL, a.Logger)
	historyH := historyhandler.New(a.History, a.Logger)
	feedbackH := feedbackhandler.New(a.Feedback, a.Logger)
	adminH := admin.NewHandler(a.Admin, a.Profiles, a.Logger)

	return httptransport.NewRouter(httptransport.Deps{
		Logger:    a.Logger,
		Tokens:    jwttoken.NewJWTServiceAdapter(a.Tokens),
		Gatherer:  a.Registry,
		Public:    []httptransport.PublicRegistrar{profileH},
		Protected: []httptransport.Registrar{profileH, historyH, feedbackH, adminH},
		Admin:     []httptransport.AdminRegistrar{historyH, feedbackH},
		Checks:    a.checks,
	})
}

// Close releases backends in reverse opening order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
