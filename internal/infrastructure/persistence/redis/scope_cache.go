package redis

import (
	"context"
	"errors"
	"time"

	"github.com/vespa-hub/vespa-results/internal/domain/results"
	"github.com/vespa-hub/vespa-results/pkg/circuitbreaker"
	"github.com/vespa-hub/vespa-results/pkg/logger"
)

// PrefixScope namespaces scope cache keys.
const PrefixScope = "scope:"

// TTLScope is the default lifetime of a cached scope.
const TTLScope = 10 * time.Minute

// ScopeKey returns the Redis key for a scope cache key. The key embeds the
// viewer's email, which never appears in Redis.
func ScopeKey(key string) string {
	return PrefixScope + logger.HashIdentity(key)
}

// ScopeCache stores resolved access scopes behind a circuit breaker so a
// Redis outage degrades to plain lookups.
type ScopeCache struct {
	cache   *Cache
	ttl     time.Duration
	breaker *circuitbreaker.CircuitBreaker
	logger  *logger.Logger
}

// NewScopeCache creates a ScopeCache. A non-positive ttl selects TTLScope.
func NewScopeCache(cache *Cache, ttl time.Duration, log *logger.Logger) *ScopeCache {
	if ttl <= 0 {
		ttl = TTLScope
	}
	if log == nil {
		log = logger.Default()
	}
	log = log.With(logger.Component("scope_cache"))

	onStateChange := func(name string, from, to circuitbreaker.State) {
		log.Warn("circuit breaker state changed",
			logger.String("breaker", name),
			logger.String("from", from.String()),
			logger.String("to", to.String()))
	}

	return &ScopeCache{
		cache:   cache,
		ttl:     ttl,
		breaker: circuitbreaker.CacheBreaker(onStateChange),
		logger:  log,
	}
}

// Get returns the cached scope. A miss is (nil, false, nil).
func (s *ScopeCache) Get(ctx context.Context, key string) (*results.AccessScope, bool, error) {
	var scope results.AccessScope
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		err := s.cache.Get(ctx, ScopeKey(key), &scope)
		if errors.Is(err, ErrCacheMiss) {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if scope.ViewerEmail == "" && len(scope.Roles) == 0 {
		return nil, false, nil
	}
	return &scope, true, nil
}

// Set stores scope for the cache TTL.
func (s *ScopeCache) Set(ctx context.Context, key string, scope *results.AccessScope) error {
	if scope == nil {
		return ErrCacheNilValue
	}
	return s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.cache.Set(ctx, ScopeKey(key), scope, s.ttl)
	})
}

// Delete drops the cached scope stored under key.
func (s *ScopeCache) Delete(ctx context.Context, key string) error {
	return s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.cache.Delete(ctx, ScopeKey(key))
	})
}

// Purge drops every cached scope and returns how many were removed.
func (s *ScopeCache) Purge(ctx context.Context) (int, error) {
	return circuitbreaker.ExecuteWithResult(ctx, s.breaker, func(ctx context.Context) (int, error) {
		return s.cache.DeleteByPattern(ctx, PrefixScope+"*")
	})
}

// Ping reports whether Redis answers.
func (s *ScopeCache) Ping(ctx context.Context) error {
	return s.cache.Ping(ctx)
}

// Breaker exposes the breaker for health output.
func (s *ScopeCache) Breaker() *circuitbreaker.CircuitBreaker {
	return s.breaker
}
