// Package resilience holds the retry/backoff and circuit-breaking helpers
// shared by the Store Adapter, Acknowledgment Sender, and LLM client. The
// token-bucket throttle idiom follows the teacher's throttle.go
// (golang.org/x/time/rate); the circuit breaker wraps sony/gobreaker, one of
// this lineage's domain-stack enrichments (see DESIGN.md).
package resilience

import (
	"context"
	"time"
)

// Backoff describes a fixed, explicit schedule of delays rather than a
// computed exponential series, matching the spec's enumerated retry
// schedules (store: 500ms*2^n for 3 attempts; mail: 2s/4s/6s).
type Backoff struct {
	Delays []time.Duration
}

// NewExponential builds a Backoff of n retry delays (so n+1 attempts in all)
// starting at base and doubling each step (the Store Adapter's schedule,
// §4.10).
func NewExponential(base time.Duration, attempts int) Backoff {
	delays := make([]time.Duration, attempts)
	d := base
	for i := 0; i < attempts; i++ {
		delays[i] = d
		d *= 2
	}
	return Backoff{Delays: delays}
}

// NewFixed builds a Backoff from an explicit list of delays (the
// Acknowledgment Sender's 2s/4s/6s schedule, §4.11).
func NewFixed(delays ...time.Duration) Backoff {
	return Backoff{Delays: delays}
}

// Attempts returns how many tries the schedule allows (len(Delays) + 1, the
// first attempt plus one retry per configured delay).
func (b Backoff) Attempts() int {
	return len(b.Delays) + 1
}

// Do runs fn up to b.Attempts() times, sleeping the schedule's delay between
// attempts, and stops early if fn returns a nil error or a non-retryable
// error (retryable reports which). Context cancellation aborts immediately.
func Do(ctx context.Context, b Backoff, retryable func(error) bool, fn func(attempt int) error) error {
	var lastErr error
	for attempt := 0; attempt < b.Attempts(); attempt++ {
		if attempt > 0 {
			delay := b.Delays[attempt-1]
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}
		if retryable != nil && !retryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}
