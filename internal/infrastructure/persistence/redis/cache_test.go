package redis

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vespa-hub/vespa-results/config"
	"github.com/vespa-hub/vespa-results/internal/domain/results"
	"github.com/vespa-hub/vespa-results/pkg/circuitbreaker"
)

func TestScopeKey(t *testing.T) {
	key := ScopeKey(" Head@School.org ")
	assert.True(t, strings.HasPrefix(key, PrefixScope))
	assert.Len(t, key, len(PrefixScope)+64)
	assert.Equal(t, key, ScopeKey("head@school.org"))
	assert.NotContains(t, key, "school")
}

func TestConfig_Options(t *testing.T) {
	t.Run("url wins", func(t *testing.T) {
		cfg := ConfigFrom(config.RedisConfig{URL: "redis://:secret@cache.internal:6380/2", PoolSize: 4})
		opts, err := cfg.Options()
		require.NoError(t, err)
		assert.Equal(t, "cache.internal:6380", opts.Addr)
		assert.Equal(t, "secret", opts.Password)
		assert.Equal(t, 2, opts.DB)
		assert.Equal(t, 4, opts.PoolSize)
	})

	t.Run("host and port", func(t *testing.T) {
		opts, err := ConfigFrom(config.RedisConfig{Host: "redis", Port: 7000}).Options()
		require.NoError(t, err)
		assert.Equal(t, "redis:7000", opts.Addr)
	})

	t.Run("bad url", func(t *testing.T) {
		_, err := Config{URL: "http://nope"}.Options()
		assert.Error(t, err)
	})
}

func TestNewCache_Unreachable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host, cfg.Port = "127.0.0.1", 1
	cfg.MaxRetries = -1
	cfg.DialTimeout = 100 * time.Millisecond

	_, err := NewCache(cfg)
	assert.ErrorIs(t, err, ErrCacheConnection)
}

func TestScopeCache_BreakerOpensOnOutage(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 50 * time.Millisecond,
	})
	t.Cleanup(func() { _ = client.Close() })

	sc := NewScopeCache(&Cache{client: client}, 0, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, ok, err := sc.Get(ctx, "t@school.org")
		require.Error(t, err)
		assert.False(t, ok)
	}
	assert.True(t, sc.Breaker().IsOpen())

	err := sc.Set(ctx, "t@school.org", &results.AccessScope{ViewerEmail: "t@school.org"})
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
}

func TestScopeCache_RejectsNil(t *testing.T) {
	sc := NewScopeCache(&Cache{}, time.Minute, nil)
	assert.ErrorIs(t, sc.Set(context.Background(), "t@school.org", nil), ErrCacheNilValue)
}
