// Package resilience guards outbound provider calls with a circuit breaker
// and optional backoff retries, and tracks provider health.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
)

// CircuitBreakerConfig mirrors the gobreaker settings the clients use.
type CircuitBreakerConfig struct {
	Name string

	// MaxRequests is the number of probes allowed while half-open.
	MaxRequests uint32

	// Interval clears counts periodically while closed; zero never clears.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration

	ReadyToTrip   func(counts gobreaker.Counts) bool
	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultCircuitBreakerConfig allows one probe after a 60s open period.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:        name,
		MaxRequests: 1,
		Timeout:     time.Minute,
		ReadyToTrip: DefaultReadyToTrip,
	}
}

// DefaultReadyToTrip opens the breaker once at least five calls were made
// and half or more of them failed.
func DefaultReadyToTrip(counts gobreaker.Counts) bool {
	return counts.Requests >= 5 && 2*uint64(counts.TotalFailures) >= uint64(counts.Requests)
}

// IsSuccessful treats caller cancellation as success, since it says nothing
// about the provider.
func IsSuccessful(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}

// NewCircuitBreaker builds a gobreaker breaker from cfg.
func NewCircuitBreaker[T any](cfg CircuitBreakerConfig) *gobreaker.CircuitBreaker[T] {
	trip := cfg.ReadyToTrip
	if trip == nil {
		trip = DefaultReadyToTrip
	}
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:          cfg.Name,
		MaxRequests:   cfg.MaxRequests,
		Interval:      cfg.Interval,
		Timeout:       cfg.Timeout,
		ReadyToTrip:   trip,
		OnStateChange: cfg.OnStateChange,
		IsSuccessful:  IsSuccessful,
	})
}
