package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"membership-api/internal/config"
	"membership-api/internal/db"
	"membership-api/internal/repository"
	"membership-api/internal/service"
)

// migrator es lo que los comandos de migracion necesitan de db.Migrator.
type migrator interface {
	Up() error
	Down() error
	Version() (uint, bool, error)
	Close() error
}

// tokenPurger es lo que purge-expired-tokens necesita de service.PasswordService.
type tokenPurger interface {
	PurgeExpiredTokens(ctx context.Context) (int64, error)
}

type deps struct {
	openMigrator func(cfg *config.Config) (migrator, error)
	openPurger   func(ctx context.Context, cfg *config.Config) (tokenPurger, func(), error)
	loadConfig   func() (*config.Config, error)
}

func defaultDeps() deps {
	return deps{
		loadConfig: config.LoadConfig,
		openMigrator: func(cfg *config.Config) (migrator, error) {
			return db.NewMigrator(cfg.DatabaseURL)
		},
		openPurger: func(ctx context.Context, cfg *config.Config) (tokenPurger, func(), error) {
			pool, err := db.NewPool(ctx, cfg)
			if err != nil {
				return nil, nil, err
			}
			logger, _ := zap.NewProduction()
			svc := service.NewPasswordService(logger, repository.NewPgUserRepository(pool), service.NewBcryptHasher(cfg.BcryptCost), nil, nil, nil, service.PasswordPolicy{
				MinLength: cfg.PasswordMinLength,
				ResetTTL:  cfg.ResetTokenTTL,
				ChangeTTL: cfg.ChangeTokenTTL,
				BaseURL:   cfg.AppBaseURL,
			})
			return svc, func() {
				_ = logger.Sync()
				pool.Close()
			}, nil
		},
	}
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(defaultDeps())
}

func newRootCmdWith(d deps) *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Operational tasks for membership-api",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newMigrateCmd(d), newPurgeCmd(d))
	return root
}

func newMigrateCmd(d deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect database migrations",
	}

	run := func(action func(m migrator, cmd *cobra.Command) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			cfg, err := d.loadConfig()
			if err != nil {
				return err
			}
			m, err := d.openMigrator(cfg)
			if err != nil {
				return err
			}
			defer m.Close()
			return action(m, cmd)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: run(func(m migrator, cmd *cobra.Command) error {
				if err := m.Up(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations",
			RunE: run(func(m migrator, cmd *cobra.Command) error {
				if err := m.Down(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations rolled back")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			RunE: run(func(m migrator, cmd *cobra.Command) error {
				v, dirty, err := m.Version()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", v, dirty)
				return nil
			}),
		},
	)
	return cmd
}

func newPurgeCmd(d deps) *cobra.Command {
	return &cobra.Command{
		Use:   "purge-expired-tokens",
		Short: "Clear expired password reset and change tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := d.loadConfig()
			if err != nil {
				return err
			}
			purger, closeFn, err := d.openPurger(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeFn()
			n, err := purger.PurgeExpiredTokens(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %d rows\n", n)
			return nil
		},
	}
}
