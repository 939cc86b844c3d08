// Package resilience wraps upstream HTTP calls with a circuit breaker,
// bounded retries and a health registry reported on the ops status endpoint.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// BreakerConfig holds configuration for a provider circuit breaker.
type BreakerConfig struct {
	// Name identifies the breaker in logs and health reports.
	Name string

	// HalfOpenRequests is the number of probes allowed while half-open
	// (default: 1).
	HalfOpenRequests uint32

	// Interval clears the closed-state counts periodically (default: 0,
	// never).
	Interval time.Duration

	// OpenTimeout is how long the breaker stays open before probing
	// (default: 30 seconds).
	OpenTimeout time.Duration

	// MinRequests and FailureRatio decide when to trip (defaults: 5, 0.5).
	MinRequests  uint32
	FailureRatio float64

	Logger zerolog.Logger
}

// DefaultBreakerConfig returns the breaker settings used for pollution and
// geocoding providers.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		HalfOpenRequests: 1,
		OpenTimeout:      30 * time.Second,
		MinRequests:      5,
		FailureRatio:     0.5,
	}
}

// tripAfter returns the trip predicate for the given thresholds.
func tripAfter(minRequests uint32, ratio float64) func(gobreaker.Counts) bool {
	return func(counts gobreaker.Counts) bool {
		if counts.Requests < minRequests {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
	}
}

// countsAsSuccess keeps caller cancellations from tripping the breaker.
func countsAsSuccess(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}

func newBreaker[T any](cfg BreakerConfig) *gobreaker.CircuitBreaker[T] {
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = 1
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = 5
	}
	if cfg.FailureRatio <= 0 {
		cfg.FailureRatio = 0.5
	}

	logger := cfg.Logger
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:         cfg.Name,
		MaxRequests:  cfg.HalfOpenRequests,
		Interval:     cfg.Interval,
		Timeout:      cfg.OpenTimeout,
		ReadyToTrip:  tripAfter(cfg.MinRequests, cfg.FailureRatio),
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("provider", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("provider circuit state changed")
		},
	})
}
