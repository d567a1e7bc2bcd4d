package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/niksmo/club-stock/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTemporary = errors.New("temporary")

func TestDoWithResult(t *testing.T) {
	cfg := retry.RetryConfig{
		MaxAttempts: 3,
		Backoff:     retry.LinearBackoff(time.Millisecond),
		ShouldRetry: func(err error) bool { return errors.Is(err, errTemporary) },
	}

	t.Run("SucceedsAfterRetries", func(t *testing.T) {
		var calls int
		v, err := retry.DoWithResult(t.Context(), cfg, func() (int, error) {
			calls++
			if calls < 3 {
				return 0, errTemporary
			}
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, v)
		assert.Equal(t, 3, calls)
	})

	t.Run("GivesUpAfterMaxAttempts", func(t *testing.T) {
		var calls int
		_, err := retry.DoWithResult(t.Context(), cfg, func() (int, error) {
			calls++
			return 0, errTemporary
		})
		assert.ErrorIs(t, err, errTemporary)
		assert.Equal(t, 3, calls)
	})

	t.Run("PermanentErrorReturnedAtOnce", func(t *testing.T) {
		errPermanent := errors.New("permanent")
		var calls int
		_, err := retry.DoWithResult(t.Context(), cfg, func() (int, error) {
			calls++
			return 0, errPermanent
		})
		assert.ErrorIs(t, err, errPermanent)
		assert.Equal(t, 1, calls)
	})

	t.Run("CanceledWhileWaiting", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		slow := cfg
		slow.Backoff = retry.LinearBackoff(time.Hour)

		err := retry.Do(ctx, slow, func() error {
			cancel()
			return errTemporary
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.ErrorIs(t, err, errTemporary)
	})
}

func TestExponentialBackoff(t *testing.T) {
	b := retry.ExponentialBackoff(10 * time.Millisecond)
	for attempt := 1; attempt <= 4; attempt++ {
		base := time.Duration(1<<attempt) * 10 * time.Millisecond
		d := b(attempt)
		assert.GreaterOrEqual(t, d, base)
		assert.LessOrEqual(t, d, base+base/2)
	}
}

func TestExponentialBackoffSaturates(t *testing.T) {
	b := retry.ExponentialBackoff(time.Second)
	for _, attempt := range []int{40, 63, 64, 1000} {
		d := b(attempt)
		assert.Positive(t, d, "attempt %d", attempt)
	}
	assert.Zero(t, retry.ExponentialBackoff(0)(5))
}

func TestCappedBackoff(t *testing.T) {
	b := retry.CappedBackoff(retry.ExponentialBackoff(time.Second), 3*time.Second)
	assert.LessOrEqual(t, b(1), 3*time.Second)
	assert.Equal(t, 3*time.Second, b(10))
	assert.Equal(t, 3*time.Second, b(500))
}

func TestDo(t *testing.T) {
	t.Run("DefaultBackoffRetriesUntilSuccess", func(t *testing.T) {
		var calls int
		err := retry.Do(t.Context(), retry.RetryConfig{MaxAttempts: 2}, func() error {
			calls++
			if calls == 1 {
				return errTemporary
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("SingleAttemptByDefault", func(t *testing.T) {
		var calls int
		err := retry.Do(t.Context(), retry.RetryConfig{}, func() error {
			calls++
			return errTemporary
		})
		assert.ErrorIs(t, err, errTemporary)
		assert.Equal(t, 1, calls)
	})
}
