package media

import (
	"context"
	"time"
)

// RetryPolicy caps a polling loop and spaces its attempts. Shared by the
// image and video orchestrators so backoff behavior stays consistent and
// testable in one place.
type RetryPolicy struct {
	MaxAttempts int
	Delay       func(attempt int) time.Duration
}

// LinearBackoff grows the wait by one step per attempt, clamped to max.
func LinearBackoff(step, max time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		d := time.Duration(attempt+1) * step
		if d > max {
			return max
		}
		return d
	}
}

// Wait sleeps for the attempt's delay or returns early on ctx cancel.
func (p RetryPolicy) Wait(ctx context.Context, attempt int) error {
	t := time.NewTimer(p.Delay(attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
