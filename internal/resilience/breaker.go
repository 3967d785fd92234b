package resilience

import (
	"time"

	"github.com/sony/gobreaker"
)

// NewBreaker returns a circuit breaker for a named external collaborator
// (LLM, store, or mail provider). It opens after 5 consecutive failures and
// stays open for 30s before allowing a single probe request through, so a
// sustained outage fails fast into the caller's documented fallback instead
// of burning the 120s request deadline retrying a dead endpoint.
func NewBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}
