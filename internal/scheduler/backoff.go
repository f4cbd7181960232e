package scheduler

import (
	"context"
	"time"
)

const exponentialBackoffBase = 2

// Backoff computes capped exponential delays for throttled sources.
type Backoff struct {
	initial time.Duration
	max     time.Duration
}

// NewBackoff creates a backoff policy. Delays start at initial and double
// per attempt up to max.
func NewBackoff(initial, max time.Duration) *Backoff {
	return &Backoff{initial: initial, max: max}
}

// Delay returns the delay for a zero-based attempt number.
func (b *Backoff) Delay(attempt int) time.Duration {
	delay := b.initial
	for i := 0; i < attempt; i++ {
		delay *= exponentialBackoffBase
		if delay >= b.max {
			return b.max
		}
	}
	if delay > b.max {
		return b.max
	}
	return delay
}

// Wait sleeps for the attempt's delay, honoring a floor supplied by the
// upstream's Retry-After when it is longer. It returns the delay applied,
// or the context error on cancellation.
func (b *Backoff) Wait(ctx context.Context, attempt int, floor time.Duration) (time.Duration, error) {
	delay := b.Delay(attempt)
	if floor > delay {
		delay = floor
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return delay, ctx.Err()
	case <-timer.C:
		return delay, nil
	}
}
