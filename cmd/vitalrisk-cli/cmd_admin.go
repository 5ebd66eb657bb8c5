package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"vitalrisk/internal/app"
	"vitalrisk/internal/platform/config"
	"vitalrisk/internal/platform/logger"
)

// withApp loads configuration from the environment, opens the backends and
// runs fn against them.
func withApp(ctx context.Context, fn func(a *app.App) error) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a, err := app.New(ctx, cfg, logger.New(config.Log{Format: "text", Level: "warn"}))
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the profile store schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				if err := a.Migrate(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "profile store %q is up to date\n", a.Config.Profile.Backend)
				return nil
			})
		},
	}
}

func newSeedAdminCmd() *cobra.Command {
	var (
		email     string
		withToken bool
	)
	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create an admin profile if it does not exist",
		Long: "Create an admin profile for --email. Running it again for the same\n" +
			"email is harmless. With --token an access token for the admin is printed.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return withApp(ctx, func(a *app.App) error {
				return seedAdmin(ctx, cmd, a, email, withToken)
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "admin email address")
	cmd.Flags().BoolVar(&withToken, "token", false, "print a bearer token for the admin")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func seedAdmin(ctx context.Context, cmd *cobra.Command, a *app.App, email string, withToken bool) error {
	if err := a.Migrate(ctx); err != nil {
		return err
	}
	p, created, err := a.Profiles.SeedAdmin(ctx, email)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if created {
		fmt.Fprintf(out, "created admin %s (%s)\n", p.Email, p.ID)
	} else {
		fmt.Fprintf(out, "admin %s already exists (%s)\n", p.Email, p.ID)
	}
	if !withToken {
		return nil
	}
	token, err := a.Tokens.GenerateAccessToken(p.ID, p.Role.String(), a.Config.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	fmt.Fprintln(out, token)
	return nil
}
