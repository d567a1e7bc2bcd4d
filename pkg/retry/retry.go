package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

const (
	defaultDelay = 100 * time.Millisecond
	maxShift     = 62
)

type Backoff func(attempt int) time.Duration

type ShouldRetry func(error) bool

type RetryConfig struct {
	MaxAttempts int
	Backoff     Backoff
	ShouldRetry ShouldRetry
}

func (s *RetryConfig) normalize() {
	if s.MaxAttempts <= 0 {
		s.MaxAttempts = 1
	}

	if s.Backoff == nil {
		s.Backoff = defaultBackoff()
	}

	if s.ShouldRetry == nil {
		s.ShouldRetry = alwaysRetry
	}

}

func defaultBackoff() Backoff {
	return ExponentialBackoff(defaultDelay)
}

func alwaysRetry(error) bool {
	return true
}

// ExponentialBackoff doubles delay on every attempt and adds
// up to a half of it as jitter. The base saturates instead of overflowing.
func ExponentialBackoff(delay time.Duration) Backoff {
	return func(attempt int) time.Duration {
		attempt = min(max(attempt, 0), maxShift)
		base := (1 << attempt) * delay
		if delay > math.MaxInt64>>(attempt+1) {
			base = math.MaxInt64 / 2
		}
		if base <= 0 {
			return 0
		}
		jitter := time.Duration(rand.Int64N(int64(base/2) + 1))
		return base + jitter
	}
}

// CappedBackoff limits every wait of b to limit.
func CappedBackoff(b Backoff, limit time.Duration) Backoff {
	return func(attempt int) time.Duration {
		return min(b(attempt), limit)
	}
}

func LinearBackoff(delay time.Duration) Backoff {
	return func(int) time.Duration {
		return delay
	}
}

func Do(ctx context.Context, c RetryConfig, fn func() error) error {
	_, err := DoWithResult(ctx, c, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

func DoWithResult[T any](ctx context.Context, c RetryConfig, fn func() (T, error)) (T, error) {
	var (
		zero, result T
		err          error
	)

	err = ctx.Err()
	if err != nil {
		return zero, err
	}

	c.normalize()
	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for attempt := 1; ; attempt++ {
		result, err = fn()
		if err == nil {
			return result, nil
		}
		if !c.ShouldRetry(err) || attempt == c.MaxAttempts {
			return zero, err
		}

		timer.Reset(c.Backoff(attempt))
		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("%w: %w", ctx.Err(), err)
		case <-timer.C:
		}
	}
}
