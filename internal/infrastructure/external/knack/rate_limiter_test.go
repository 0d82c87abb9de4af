package knack

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_BurstThenWait(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 1, BurstSize: 2, WaitTimeout: 10 * time.Millisecond})
	ctx := context.Background()

	require.NoError(t, rl.Allow(ctx))
	require.NoError(t, rl.Allow(ctx))

	err := rl.Allow(ctx)
	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Greater(t, rle.RetryAfter, time.Duration(0))
}

func TestRateLimiter_RateLimitHitBlocks(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 1000, BurstSize: 10, WaitTimeout: 5 * time.Millisecond})
	rl.RecordRateLimitHit(time.Minute)

	assert.Error(t, rl.Allow(context.Background()))
	status := rl.Status()
	assert.Equal(t, 1, status.RateLimitHits)
	assert.True(t, status.BlockedUntil.After(time.Now()))

	rl.Reset()
	assert.NoError(t, rl.Allow(context.Background()))
}

func TestRateLimiter_ContextCanceled(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 1, BurstSize: 1, WaitTimeout: time.Minute})
	require.NoError(t, rl.Allow(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, rl.Allow(ctx), context.Canceled)
}
