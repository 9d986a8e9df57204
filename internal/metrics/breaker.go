package metrics

import (
	"errors"
	"fmt"
	"time"

	"musicstore-backend/internal/logger"

	"github.com/sony/gobreaker"
)

// CircuitBreaker wraps gobreaker and reports its state to Prometheus
type CircuitBreaker struct {
	cb   *gobreaker.CircuitBreaker
	name string
}

// NewCircuitBreaker trips after at least 3 requests with a 60% failure ratio
func NewCircuitBreaker(name string, openTimeout time.Duration) *CircuitBreaker {
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    15 * time.Second,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(cbName string, from gobreaker.State, to gobreaker.State) {
			CircuitBreakerState.WithLabelValues(cbName).Set(stateValue(to))
			logger.Warn("Circuit breaker state changed", "circuit", cbName, "from", from.String(), "to", to.String())
		},
	})
	CircuitBreakerState.WithLabelValues(name).Set(0)

	return &CircuitBreaker{cb: cb, name: name}
}

// Do runs fn through the breaker. An open breaker fails fast without calling fn.
func (b *CircuitBreaker) Do(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if err != nil {
		CircuitBreakerFailures.WithLabelValues(b.name).Inc()
		return formatError(b.name, err)
	}
	return nil
}

func (b *CircuitBreaker) State() string {
	return b.cb.State().String()
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}

func formatError(name string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) {
		return fmt.Errorf("circuit breaker %s is open: %w", name, err)
	}
	if errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("circuit breaker %s is half-open: %w", name, err)
	}
	return err
}
