package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vespa-hub/vespa-results/internal/infrastructure/persistence/postgres"
	"github.com/vespa-hub/vespa-results/pkg/logger"
)

var errNoDatabase = errors.New("DATABASE_URL is not set; the export audit database is disabled")

// MigrateCmd manages the export audit schema.
func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the export audit database schema",
	}
	cmd.AddCommand(migrateUpCmd())
	cmd.AddCommand(migrateDownCmd())
	cmd.AddCommand(migrateStatusCmd())
	return cmd
}

func migrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(m *postgres.Migrator, log *logger.Logger) error {
				n, err := m.Migrate(cmd.Context())
				if err != nil {
					return err
				}
				log.Info("migrations applied", logger.Int("count", n))
				fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", n)
				return nil
			})
		},
	}
}

func migrateDownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Roll back the latest migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(m *postgres.Migrator, log *logger.Logger) error {
				version, err := m.Rollback(cmd.Context())
				if err != nil {
					return err
				}
				if version == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "nothing to roll back")
					return nil
				}
				log.Info("migration rolled back", logger.Int("version", version))
				fmt.Fprintf(cmd.OutOrStdout(), "rolled back migration %d\n", version)
				return nil
			})
		},
	}
}

func migrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(m *postgres.Migrator, _ *logger.Logger) error {
				migrations, err := m.Status(cmd.Context())
				if err != nil {
					return err
				}
				applied := color.New(color.FgGreen).Sprint("applied")
				pending := color.New(color.FgYellow).Sprint("pending")
				out := cmd.OutOrStdout()
				for _, mg := range migrations {
					state := pending
					when := ""
					if mg.IsApplied {
						state = applied
						when = mg.AppliedAt.Format("2006-01-02 15:04:05")
					}
					fmt.Fprintf(out, "%4d  %-32s %s  %s\n", mg.Version, mg.Name, state, when)
				}
				return nil
			})
		},
	}
}

// withMigrator connects to the audit database for the duration of fn.
// Unlike serve, a missing or unreachable database is an error here.
func withMigrator(ctx context.Context, fn func(*postgres.Migrator, *logger.Logger) error) error {
	conn, log, err := connectAuditDB(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(postgres.NewMigrator(conn), log)
}

func connectAuditDB(ctx context.Context) (*postgres.Connection, *logger.Logger, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Database.Enabled() {
		return nil, nil, errNoDatabase
	}
	conn, err := postgres.NewConnection(ctx, postgres.ConfigFrom(cfg.Database))
	if err != nil {
		return nil, nil, fmt.Errorf("connect audit database: %w", err)
	}
	return conn, log, nil
}
