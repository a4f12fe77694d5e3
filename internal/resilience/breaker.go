// Package resilience centralizes the gobreaker construction shared by
// every external dependency client (store, cache, search, broker) so each
// gets its own closed/open/half-open state machine from the same
// features.circuit_breaker settings.
package resilience

import (
	"time"

	"github.com/sony/gobreaker"

	"teamchat-core/server/internal/config"
	"teamchat-core/server/internal/metrics"
)

// NewBreaker builds a circuit breaker named for the dependency it guards.
// A disabled config still returns a breaker, just one whose ReadyToTrip
// never fires (an effectively infinite failure threshold), so call sites
// don't need a separate enabled/disabled branch.
func NewBreaker(name string, cfg *config.CircuitBreakerConfig) *gobreaker.CircuitBreaker {
	threshold := uint32(cfg.FailureThreshold)
	if !cfg.Enabled {
		threshold = 1 << 31
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Duration(cfg.RecoveryTimeout) * time.Second,
		Timeout:     time.Duration(cfg.RecoveryTimeout) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
}
