// Package session owns the loaded student set of each viewer. A load runs
// resolve, build, fetch and normalize once and replaces the viewer's data
// wholesale; a failed load leaves the previous data untouched.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vespa-hub/vespa-results/config"
	"github.com/vespa-hub/vespa-results/internal/application/access"
	"github.com/vespa-hub/vespa-results/internal/application/normalize"
	"github.com/vespa-hub/vespa-results/internal/domain/results"
	"github.com/vespa-hub/vespa-results/internal/domain/shared"
	"github.com/vespa-hub/vespa-results/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES (Interfaces)
// ══════════════════════════════════════════════════════════════════════════════

// ScopeResolver resolves a viewer's access scope.
type ScopeResolver interface {
	Resolve(ctx context.Context, v access.Viewer) (*results.AccessScope, error)
}

// RecordFetcher fetches every record matching a query.
type RecordFetcher interface {
	FetchAll(ctx context.Context, q results.RecordQuery) (*results.FetchResult, error)
}

// ScopeCache stores resolved scopes between loads under an opaque key built
// from the viewer's email and supplied roles. Implementations may be
// unavailable; cache errors never fail a load.
type ScopeCache interface {
	Get(ctx context.Context, key string) (*results.AccessScope, bool, error)
	Set(ctx context.Context, key string, scope *results.AccessScope) error
	Delete(ctx context.Context, key string) error
}

// FeatureGate evaluates feature flags per viewer.
type FeatureGate interface {
	Enabled(feature, viewerEmail string) bool
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION
// ══════════════════════════════════════════════════════════════════════════════

// Snapshot is the immutable result of one load. Students is shared between
// readers and must not be modified.
type Snapshot struct {
	ID          string
	ViewerEmail string
	Scope       *results.AccessScope
	Students    []results.StudentRecord
	Report      normalize.Report
	Pages       int
	Truncated   bool
	LoadedAt    time.Time
	ExpiresAt   time.Time
}

// entry is one viewer's slot. loading guards against overlapping loads.
type entry struct {
	loading atomic.Bool

	mu       sync.Mutex
	snapshot *Snapshot
	view     *results.View
}

// Config configures the Manager.
type Config struct {
	Mapping               results.SchemaMapping
	EstablishmentOperator string
	TTL                   time.Duration
}

// Manager runs loads and keeps one session per viewer.
type Manager struct {
	resolver ScopeResolver
	fetcher  RecordFetcher
	cache    ScopeCache
	features FeatureGate
	config   Config
	logger   *logger.Logger
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

// Option configures a Manager.
type Option func(*Manager)

// WithScopeCache enables scope caching.
func WithScopeCache(c ScopeCache) Option {
	return func(m *Manager) { m.cache = c }
}

// WithFeatures sets the feature gate.
func WithFeatures(f FeatureGate) Option {
	return func(m *Manager) { m.features = f }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a new Manager.
func NewManager(resolver ScopeResolver, fetcher RecordFetcher, cfg Config, opts ...Option) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	m := &Manager{
		resolver: resolver,
		fetcher:  fetcher,
		config:   cfg,
		logger:   logger.Default(),
		now:      time.Now,
		entries:  make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(logger.Component("session"))
	return m
}

func sessionKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// scopeCacheKey changes whenever the host supplies different roles, so a
// viewer whose roles were edited never gets the scope of the old ones.
// Empty raw roles mean the profile record decides.
func scopeCacheKey(v access.Viewer) string {
	parsed := access.ParseRoles(v.RawRoles)
	if len(parsed.Roles) == 0 && parsed.EstablishmentID == "" {
		return sessionKey(v.Email) + "|profile"
	}
	names := make([]string, len(parsed.Roles))
	for i, r := range parsed.Roles {
		names[i] = string(r)
	}
	return sessionKey(v.Email) + "|" + strings.Join(names, ",") + "|" + parsed.EstablishmentID
}

func (m *Manager) entry(email string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[sessionKey(email)]
}

// beginLoad claims the viewer's entry for a load. The flag is set under m.mu
// so Cleanup never drops an entry between creation and the claim.
func (m *Manager) beginLoad(email string) (*entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey(email)
	e, ok := m.entries[key]
	if !ok {
		e = &entry{view: results.NewView()}
		m.entries[key] = e
	}
	return e, e.loading.CompareAndSwap(false, true)
}

func (m *Manager) enabled(feature, email string) bool {
	if m.features == nil {
		return feature != config.FeatureLegacyMerge
	}
	return m.features.Enabled(feature, email)
}

// ══════════════════════════════════════════════════════════════════════════════
// LOAD
// ══════════════════════════════════════════════════════════════════════════════

// Load runs the pipeline for v and stores the result. A Load for a viewer
// whose previous Load has not finished returns ErrFetchInProgress.
func (m *Manager) Load(ctx context.Context, v access.Viewer) (*Snapshot, error) {
	return m.load(ctx, v, true)
}

// Refresh drops the cached scope and loads again.
func (m *Manager) Refresh(ctx context.Context, v access.Viewer) (*Snapshot, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	if m.cache != nil {
		if err := m.cache.Delete(ctx, scopeCacheKey(v)); err != nil {
			m.logger.Warn("scope cache delete failed", logger.Viewer(v.Email), logger.Err(err))
		}
	}
	return m.load(ctx, v, false)
}

func (m *Manager) load(ctx context.Context, v access.Viewer, useCache bool) (*Snapshot, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	email := strings.TrimSpace(v.Email)
	log := m.logger.With(logger.Viewer(email))

	e, ok := m.beginLoad(email)
	if !ok {
		log.Info("load ignored, another load is in flight")
		return nil, shared.ErrFetchInProgress
	}
	defer e.loading.Store(false)

	start := m.now()

	scope, err := m.scope(ctx, v, useCache)
	if err != nil {
		log.Warn("access resolution failed", logger.Err(err))
		return nil, err
	}

	query, err := access.BuildQuery(scope, m.config.Mapping, m.config.EstablishmentOperator)
	if err != nil {
		log.Warn("query could not be scoped", logger.Err(err))
		return nil, err
	}

	fetched, err := m.fetcher.FetchAll(ctx, query)
	if err != nil {
		log.Error("results fetch failed", logger.Err(err))
		if errors.Is(err, shared.ErrTransport) {
			return nil, err
		}
		return nil, shared.WrapError("results", "Load", shared.ErrTransport, shared.ErrTransport.Message, err)
	}

	n := normalize.New(m.config.Mapping,
		normalize.WithLogger(log),
		normalize.WithLegacyMerge(m.enabled(config.FeatureLegacyMerge, email)),
	)
	students, report := n.NormalizeWithReport(fetched.Records)

	now := m.now()
	snap := &Snapshot{
		ID:          uuid.NewString(),
		ViewerEmail: email,
		Scope:       scope,
		Students:    students,
		Report:      report,
		Pages:       fetched.Pages,
		Truncated:   fetched.Truncated,
		LoadedAt:    now,
		ExpiresAt:   now.Add(m.config.TTL),
	}

	e.mu.Lock()
	e.snapshot = snap
	e.mu.Unlock()

	log.Info("results loaded",
		logger.SessionID(snap.ID),
		logger.Establishment(scope.EstablishmentID),
		logger.RecordCount(report.Records),
		logger.StudentCount(report.Students),
		logger.Int("skipped", report.Skipped),
		logger.Int("merged", report.Merged),
		logger.Truncated(snap.Truncated),
		logger.Latency(now.Sub(start)),
	)
	return snap, nil
}

// scope returns the cached scope when allowed, else resolves and caches it.
func (m *Manager) scope(ctx context.Context, v access.Viewer, useCache bool) (*results.AccessScope, error) {
	cacheOn := m.cache != nil && m.enabled(config.FeatureScopeCache, v.Email)
	key := scopeCacheKey(v)

	if cacheOn && useCache {
		scope, ok, err := m.cache.Get(ctx, key)
		switch {
		case err != nil:
			m.logger.Warn("scope cache read failed", logger.Viewer(v.Email), logger.Err(err))
		case ok:
			m.logger.Debug("scope cache hit", logger.Viewer(v.Email), logger.CacheHit(true))
			return scope, nil
		}
	}

	scope, err := m.resolver.Resolve(ctx, v)
	if err != nil {
		return nil, err
	}

	if cacheOn {
		if err := m.cache.Set(ctx, key, scope); err != nil {
			m.logger.Warn("scope cache write failed", logger.Viewer(v.Email), logger.Err(err))
		}
	}
	return scope, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ACCESS
// ══════════════════════════════════════════════════════════════════════════════

// Get returns the viewer's current snapshot.
func (m *Manager) Get(email string) (*Snapshot, error) {
	var snap *Snapshot
	err := m.WithView(email, func(s *Snapshot, _ *results.View) error {
		snap = s
		return nil
	})
	return snap, err
}

// WithView runs fn with the viewer's snapshot and view state. Calls for the
// same viewer are serialized; fn must not retain the view.
func (m *Manager) WithView(email string, fn func(*Snapshot, *results.View) error) error {
	e := m.entry(email)
	if e == nil {
		return shared.ErrSessionNotLoaded
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.snapshot == nil || !m.now().Before(e.snapshot.ExpiresAt) {
		return shared.ErrSessionNotLoaded
	}
	return fn(e.snapshot, e.view)
}

// Evict drops the viewer's session.
func (m *Manager) Evict(email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, sessionKey(email))
}

// Cleanup drops expired sessions that are not loading and returns how many
// were removed.
func (m *Manager) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for key, e := range m.entries {
		if e.loading.Load() {
			continue
		}
		e.mu.Lock()
		expired := e.snapshot == nil || !now.Before(e.snapshot.ExpiresAt)
		e.mu.Unlock()
		if expired {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// RunJanitor removes expired sessions every interval until ctx is done.
func (m *Manager) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Cleanup(); n > 0 {
				m.logger.Debug("expired sessions removed", logger.Int("sessions", n))
			}
		}
	}
}
