package service

import (
	"context"
	"time"
)

// RetryPolicy runs a unit of work up to MaxAttempts times. The same
// policy governs a full scan call and each single-day meal-plan call, so
// backoff behavior cannot drift between the two flows.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	Classify    func(error) bool

	// sleep is replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy retries exactly once after a short fixed delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 2,
		Delay:       2 * time.Second,
		Classify:    retryable,
		sleep:       sleepCtx,
	}
}

// Do runs fn until it succeeds, returns a non-retryable error, or the
// attempt budget is spent. The last error is returned unwrapped so callers
// can still classify it.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if p.Classify != nil && !p.Classify(lastErr) {
			return lastErr
		}
		if attempt == p.MaxAttempts {
			break
		}
		if err := sleep(ctx, p.Delay); err != nil {
			return err
		}
	}
	return lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
