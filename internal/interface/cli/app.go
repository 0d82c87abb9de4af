package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/vespa-hub/vespa-results/config"
	"github.com/vespa-hub/vespa-results/internal/application/access"
	"github.com/vespa-hub/vespa-results/internal/application/command"
	"github.com/vespa-hub/vespa-results/internal/application/query"
	"github.com/vespa-hub/vespa-results/internal/application/session"
	"github.com/vespa-hub/vespa-results/internal/domain/results"
	"github.com/vespa-hub/vespa-results/internal/infrastructure/export"
	"github.com/vespa-hub/vespa-results/internal/infrastructure/external/knack"
	"github.com/vespa-hub/vespa-results/internal/infrastructure/persistence/postgres"
	"github.com/vespa-hub/vespa-results/internal/infrastructure/persistence/redis"
	httpapi "github.com/vespa-hub/vespa-results/internal/interface/http"
	"github.com/vespa-hub/vespa-results/internal/interface/http/handlers"
	"github.com/vespa-hub/vespa-results/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// APPLICATION WIRING
// ══════════════════════════════════════════════════════════════════════════════

// App holds the wired services shared by the commands.
type App struct {
	Config *config.Config
	Logger *logger.Logger

	Knack    *knack.Client
	Sessions *session.Manager

	// Optional infrastructure; nil when not configured or unreachable.
	Cache *redis.Cache
	DB    *postgres.Connection

	Audit  results.ExportAuditRepository
	Health *handlers.CompositeHealthChecker

	closers []func()
}

// bootstrapOptions selects the optional infrastructure a command needs.
type bootstrapOptions struct {
	cache bool
	audit bool
}

// Bootstrap wires the Knack client, the session manager and the optional
// scope cache and audit log. Optional stores that cannot be reached are
// logged and skipped; results are still served without them.
func Bootstrap(ctx context.Context, cfg *config.Config, log *logger.Logger, opts bootstrapOptions) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: log,
		Audit:  postgres.NopExportAudit{},
		Health: handlers.NewCompositeHealthChecker(cfg.App.Version),
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Knack API
	// ─────────────────────────────────────────────────────────────────────────
	kc := knack.ConfigFrom(cfg.Knack)
	kc.Logger = log
	app.Knack = knack.NewClient(kc)
	app.Health.AddCheck("knack_api", handlers.NewBreakerCheck(app.Knack))

	sessionOpts := []session.Option{
		session.WithLogger(log),
		session.WithFeatures(cfg.Features),
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Redis scope cache (optional)
	// ─────────────────────────────────────────────────────────────────────────
	if opts.cache && !cfg.Redis.Disabled {
		cache, err := redis.NewCache(redis.ConfigFrom(cfg.Redis))
		if err != nil {
			log.Warn("scope cache unavailable, continuing without it", logger.Err(err))
		} else {
			app.Cache = cache
			app.closers = append(app.closers, func() { _ = cache.Close() })
			scopes := redis.NewScopeCache(cache, cfg.Redis.ScopeCacheTTL, log)
			sessionOpts = append(sessionOpts, session.WithScopeCache(scopes))
			app.Health.AddOptionalCheck("redis", handlers.NewPingCheck(scopes))
			log.Info("scope cache connected")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Postgres export audit (optional)
	// ─────────────────────────────────────────────────────────────────────────
	if opts.audit && cfg.Database.Enabled() {
		conn, err := postgres.NewConnection(ctx, postgres.ConfigFrom(cfg.Database))
		if err != nil {
			log.Warn("audit database unavailable, exports will not be audited", logger.Err(err))
		} else {
			app.DB = conn
			app.closers = append(app.closers, conn.Close)
			app.Audit = postgres.NewExportAuditRepository(conn)
			app.Health.AddOptionalCheck("postgres", handlers.NewPingCheck(conn))
			log.Info("audit database connected")
		}
	}

	resolver := access.NewResolver(app.Knack, access.DefaultDirectory(), log)
	app.Sessions = session.NewManager(resolver, app.Knack, session.Config{
		Mapping:               cfg.Schema.Mapping,
		EstablishmentOperator: cfg.Schema.EstablishmentOperator,
		TTL:                   cfg.Session.TTL,
	}, sessionOpts...)

	return app, nil
}

// Close releases the optional stores in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// LoadHandler returns the load command handler.
func (a *App) LoadHandler() *command.LoadResultsHandler {
	return command.NewLoadResultsHandler(a.Sessions)
}

// ExportHandler returns the CSV export handler.
func (a *App) ExportHandler() *command.ExportResultsHandler {
	return command.NewExportResultsHandler(a.Sessions, export.NewCSVWriter(), a.Audit, a.Config.Features, a.Logger)
}

// HTTPDependencies wires every handler the API serves.
func (a *App) HTTPDependencies() httpapi.Dependencies {
	return httpapi.Dependencies{
		LoadResults:       a.LoadHandler(),
		ExportResults:     a.ExportHandler(),
		GetResultsPage:    query.NewGetResultsPageHandler(a.Sessions),
		GetFilterOptions:  query.NewGetFilterOptionsHandler(a.Sessions),
		GetColumns:        query.NewGetColumnsHandler(a.Sessions),
		GetStudentChart:   query.NewGetStudentChartHandler(a.Sessions),
		GetGroupAnalytics: query.NewGetGroupAnalyticsHandler(a.Sessions, a.Config.Features),
		Logger:            a.Logger,
		HealthChecker:     a.Health,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// LOGGING
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger builds the process logger: JSON in production, text otherwise
// unless LOG_FORMAT says so.
func setupLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Output = os.Stderr
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}

	format := strings.ToLower(cfg.Observability.LogFormat)
	switch {
	case format == "json" || format == "text":
		opts.Format = format
	case cfg.IsProduction():
		opts.Format = "json"
	default:
		opts.Format = "text"
	}
	opts.AddCaller = cfg.IsDevelopment()

	return logger.New(opts).With(
		logger.String("app", cfg.App.Name),
		logger.String("env", string(cfg.App.Environment)),
	)
}

// loadConfig reads configuration and builds the logger. Missing Knack
// credentials fail here, before anything is served.
func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, setupLogger(cfg), nil
}
