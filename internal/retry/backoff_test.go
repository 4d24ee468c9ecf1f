package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastBackoff(attempts int) *Backoff {
	return NewBackoff(BackoffConfig{
		InitialDelay: time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  attempts,
	})
}

func TestBackoff_SuccessAfterRetries(t *testing.T) {
	attempts := 0
	err := fastBackoff(3).Retry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("not yet")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestBackoff_ReturnsLastErrorWhenExhausted(t *testing.T) {
	attempts := 0
	err := fastBackoff(3).Retry(context.Background(), func() error {
		attempts++
		return errors.New("always")
	})

	assert.EqualError(t, err, "always")
	assert.Equal(t, 3, attempts)
}

func TestBackoff_RetryWithPredicateStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("permanent")
	attempts := 0

	err := fastBackoff(5).RetryWithPredicate(context.Background(), func() error {
		attempts++
		return permanent
	}, func(err error) bool { return !errors.Is(err, permanent) })

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, attempts)
}

func TestBackoff_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	backoff := NewBackoff(BackoffConfig{InitialDelay: time.Second, Multiplier: 2, MaxAttempts: 3})

	attempts := 0
	err := backoff.Retry(ctx, func() error {
		attempts++
		cancel()
		return errors.New("fail")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestBackoff_DelayProgression(t *testing.T) {
	backoff := NewBackoff(BackoffConfig{
		InitialDelay: 60 * time.Second,
		Multiplier:   5.0,
		MaxAttempts:  4,
	})

	assert.Equal(t, 60*time.Second, backoff.GetNextDelay(1))
	assert.Equal(t, 300*time.Second, backoff.GetNextDelay(2))
	assert.Equal(t, 1500*time.Second, backoff.GetNextDelay(3))
	assert.Equal(t, []time.Duration{60 * time.Second, 300 * time.Second, 1500 * time.Second}, backoff.Schedule())
}

func TestBackoff_MaxDelayCap(t *testing.T) {
	backoff := NewBackoff(BackoffConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     250 * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  5,
	})

	assert.Equal(t, 250*time.Millisecond, backoff.GetNextDelay(4))
}

func TestBackoff_JitterStaysInBounds(t *testing.T) {
	backoff := NewBackoff(BackoffConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		MaxAttempts:  3,
		Jitter:       true,
	})

	for i := 0; i < 50; i++ {
		delay := backoff.GetNextDelay(1)
		assert.GreaterOrEqual(t, delay, 75*time.Millisecond)
		assert.LessOrEqual(t, delay, 125*time.Millisecond)
	}
}

func TestBackoff_Exhausted(t *testing.T) {
	backoff := fastBackoff(4)

	assert.Equal(t, 4, backoff.MaxAttempts())
	assert.False(t, backoff.Exhausted(3))
	assert.True(t, backoff.Exhausted(4))
	assert.True(t, backoff.Exhausted(7))
}

func TestNewBackoff_NormalizesConfig(t *testing.T) {
	backoff := NewBackoff(BackoffConfig{InitialDelay: time.Millisecond})

	assert.Equal(t, 1, backoff.MaxAttempts())
	assert.Empty(t, backoff.Schedule())
	assert.Equal(t, time.Millisecond, backoff.GetNextDelay(3))
}
