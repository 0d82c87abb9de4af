package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetrier(attempts int, opts ...Option) *Retrier {
	base := []Option{
		WithMaxAttempts(attempts),
		WithInitialDelay(time.Millisecond),
		WithMaxDelay(5 * time.Millisecond),
		WithJitter(0),
	}
	return New(append(base, opts...)...)
}

func TestRetrier_RetriesRetryableErrors(t *testing.T) {
	calls := 0
	err := fastRetrier(3).Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return Retryable(errors.New("503"))
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetrier_ReturnsUnwrappedErrorAfterLastAttempt(t *testing.T) {
	cause := errors.New("timeout")
	calls := 0
	err := fastRetrier(2).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Retryable(cause)
	})

	assert.Same(t, cause, err)
	assert.Equal(t, 2, calls)
}

func TestRetrier_StopsOnPermanentError(t *testing.T) {
	cause := errors.New("401")
	calls := 0
	err := fastRetrier(5).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Permanent(cause)
	})

	assert.Same(t, cause, err)
	assert.Equal(t, 1, calls)
}

func TestRetrier_PlainErrorsAreNotRetriedByDefault(t *testing.T) {
	calls := 0
	_ = fastRetrier(5).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("bad request")
	})
	assert.Equal(t, 1, calls)
}

func TestRetrier_HonoursDelayHintUpToMaxDelay(t *testing.T) {
	var delays []time.Duration
	r := fastRetrier(2, WithOnRetry(func(_ int, _ error, d time.Duration) {
		delays = append(delays, d)
	}))

	_ = r.Do(context.Background(), func(ctx context.Context) error {
		return RetryableAfter(errors.New("429"), time.Hour)
	})

	require.Len(t, delays, 1)
	assert.Equal(t, 5*time.Millisecond, delays[0])
}

func TestRetrier_StopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := New(WithMaxAttempts(5), WithInitialDelay(time.Hour)).Do(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return Retryable(errors.New("503"))
	})

	assert.EqualError(t, err, "503")
	assert.Equal(t, 1, calls)
}

func TestDoWithData(t *testing.T) {
	n, err := DoWithData(context.Background(), fastRetrier(2), func(ctx context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}
