package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httpapi "github.com/vespa-hub/vespa-results/internal/interface/http"
	"github.com/vespa-hub/vespa-results/pkg/logger"
)

// ServeCmd runs the HTTP API until SIGINT or SIGTERM.
func ServeCmd(version string) *cobra.Command {
	var (
		host            string
		port            int
		janitorInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the results HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			if _, set := os.LookupEnv("APP_VERSION"); !set && version != "" {
				cfg.App.Version = version
			}
			if cmd.Flags().Changed("host") {
				cfg.HTTP.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.HTTP.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg.App.ShutdownTimeout, janitorInterval, func() (*App, error) {
				return Bootstrap(ctx, cfg, log, bootstrapOptions{cache: true, audit: true})
			})
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides HTTP_HOST)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides HTTP_PORT)")
	cmd.Flags().DurationVar(&janitorInterval, "janitor-interval", time.Minute, "how often expired sessions are removed")

	return cmd
}

func serve(ctx context.Context, shutdownTimeout, janitorInterval time.Duration, boot func() (*App, error)) error {
	app, err := boot()
	if err != nil {
		return err
	}
	defer app.Close()
	log := app.Logger

	go app.Sessions.RunJanitor(ctx, janitorInterval)

	srv := httpapi.NewServer(httpapi.ConfigFrom(app.Config.HTTP), app.HTTPDependencies())
	errCh := srv.StartAsync()

	log.Info("vespa results API started",
		logger.String("address", srv.Address()),
		logger.String("schema", app.Config.Schema.Preset),
		logger.Bool("scope_cache", app.Cache != nil),
		logger.Bool("export_audit", app.DB != nil),
	)

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	uptime := srv.Uptime()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("graceful shutdown failed", logger.Err(err))
		return err
	}
	log.Info("vespa results API stopped", logger.Duration("uptime", uptime))
	return nil
}
