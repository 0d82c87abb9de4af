package knack

import (
	"context"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITER - Token Bucket implementation
// ══════════════════════════════════════════════════════════════════════════════

// RateLimiter is a token bucket shared by every request of one client. Knack
// enforces a per-application request rate, so all viewers draw from it.
type RateLimiter struct {
	mu sync.Mutex

	maxTokens     float64
	refillRate    float64 // tokens per second
	tokens        float64
	lastRefill    time.Time
	waitTimeout   time.Duration
	blockedUntil  time.Time // set by a 429 response
	rateLimitHits int
}

// RateLimiterConfig contains configuration for the rate limiter.
type RateLimiterConfig struct {
	// RequestsPerSecond is the sustained request rate.
	RequestsPerSecond float64

	// BurstSize is the bucket capacity.
	BurstSize int

	// WaitTimeout is the maximum time Allow blocks for a token.
	WaitTimeout time.Duration
}

// DefaultRateLimiterConfig stays under the documented limit of ten requests
// per second per application.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 8,
		BurstSize:         4,
		WaitTimeout:       30 * time.Second,
	}
}

// NewRateLimiter creates a RateLimiter with a full bucket.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = DefaultRateLimiterConfig().RequestsPerSecond
	}
	if config.BurstSize <= 0 {
		config.BurstSize = 1
	}
	if config.WaitTimeout <= 0 {
		config.WaitTimeout = DefaultRateLimiterConfig().WaitTimeout
	}
	return &RateLimiter{
		maxTokens:   float64(config.BurstSize),
		refillRate:  config.RequestsPerSecond,
		tokens:      float64(config.BurstSize),
		lastRefill:  time.Now(),
		waitTimeout: config.WaitTimeout,
	}
}

// RateLimitError is returned when the API answers 429 or the local bucket
// cannot supply a token in time.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	return e.Message
}

// Allow blocks until a token is available, ctx is done, or the wait would
// exceed the configured timeout.
func (rl *RateLimiter) Allow(ctx context.Context) error {
	deadline := time.Now().Add(rl.waitTimeout)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		waitTime, ok := rl.tryAcquire()
		if ok {
			return nil
		}

		if time.Now().Add(waitTime).After(deadline) {
			return &RateLimitError{
				RetryAfter: waitTime,
				Message:    "rate limit exceeded, retry after " + waitTime.String(),
			}
		}

		timer := time.NewTimer(waitTime)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// tryAcquire takes a token if one is available, otherwise it reports how
// long to wait.
func (rl *RateLimiter) tryAcquire() (time.Duration, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Before(rl.blockedUntil) {
		return rl.blockedUntil.Sub(now), false
	}

	rl.refillTokens(now)
	if rl.tokens < 1.0 {
		needed := 1.0 - rl.tokens
		return time.Duration(needed / rl.refillRate * float64(time.Second)), false
	}

	rl.tokens--
	return 0, true
}

// refillTokens must be called with mu held.
func (rl *RateLimiter) refillTokens(now time.Time) {
	elapsed := now.Sub(rl.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	rl.tokens += elapsed * rl.refillRate
	if rl.tokens > rl.maxTokens {
		rl.tokens = rl.maxTokens
	}
	rl.lastRefill = now
}

// RecordRateLimitHit empties the bucket and blocks new requests for
// retryAfter after the API answered 429.
func (rl *RateLimiter) RecordRateLimitHit(retryAfter time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.tokens = 0
	rl.lastRefill = now
	rl.rateLimitHits++
	if retryAfter > 0 {
		if until := now.Add(retryAfter); until.After(rl.blockedUntil) {
			rl.blockedUntil = until
		}
	}
}

// Reset refills the bucket and clears any block.
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.tokens = rl.maxTokens
	rl.lastRefill = time.Now()
	rl.blockedUntil = time.Time{}
	rl.rateLimitHits = 0
}

// RateLimiterStatus is a point-in-time view of the bucket.
type RateLimiterStatus struct {
	AvailableTokens float64   `json:"available_tokens"`
	MaxTokens       float64   `json:"max_tokens"`
	RefillRate      float64   `json:"refill_rate"`
	BlockedUntil    time.Time `json:"blocked_until,omitempty"`
	RateLimitHits   int       `json:"rate_limit_hits"`
}

// Status returns the current status of the rate limiter.
func (rl *RateLimiter) Status() RateLimiterStatus {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refillTokens(time.Now())

	return RateLimiterStatus{
		AvailableTokens: rl.tokens,
		MaxTokens:       rl.maxTokens,
		RefillRate:      rl.refillRate,
		BlockedUntil:    rl.blockedUntil,
		RateLimitHits:   rl.rateLimitHits,
	}
}
