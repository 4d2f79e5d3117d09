package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned, wrapped, when a call is rejected because the
// breaker is open or half-open with its request quota exhausted. Callers
// test for it with errors.Is.
var ErrCircuitOpen = errors.New("circuit breaker open")

// StateRecorder receives circuit breaker state transitions, typically to
// expose them as gauges. Implementations must tolerate concurrent calls.
type StateRecorder interface {
	RecordCircuitBreakerState(name string, state int)
	RecordCircuitBreakerTrip(name string)
}

// CircuitBreakerConfig holds configuration for a circuit breaker.
type CircuitBreakerConfig struct {
	Name                  string
	MaxRequests           uint32        // Requests allowed through while half-open, and successes needed to close
	Interval              time.Duration // Closed-state failure count reset interval (0 = never)
	Timeout               time.Duration // Open-state duration before probing half-open
	FailureThreshold      uint32        // Consecutive failures that trip the breaker
	FailureRatioThreshold float64       // Failure ratio that trips once MinRequestsToTrip is reached
	MinRequestsToTrip     uint32
	Recorder              StateRecorder // Optional
}

// DefaultCircuitBreakerConfig returns sensible defaults for the given name.
func DefaultCircuitBreakerConfig(name string) *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Name:                  name,
		MaxRequests:           DefaultMaxRequests,
		Interval:              DefaultInterval,
		Timeout:               DefaultTimeout,
		FailureThreshold:      DefaultFailureThreshold,
		FailureRatioThreshold: DefaultFailureRatioThreshold,
		MinRequestsToTrip:     DefaultMinRequestsToTrip,
	}
}

// CircuitBreaker wraps gobreaker with structured logging and optional state
// gauges.
type CircuitBreaker struct {
	cb     *gobreaker.CircuitBreaker
	name   string
	logger *slog.Logger
}

// NewCircuitBreaker creates a circuit breaker. The breaker trips on either
// a run of consecutive failures or a failure ratio over a minimum request
// count, whichever is hit first.
func NewCircuitBreaker(config *CircuitBreakerConfig, logger *slog.Logger) *CircuitBreaker {
	if config == nil {
		config = DefaultCircuitBreakerConfig("default")
	}
	if logger == nil {
		logger = slog.Default()
	}

	settings := gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= config.FailureThreshold {
				return true
			}
			if counts.Requests >= config.MinRequestsToTrip {
				ratio := float64(counts.TotalFailures) / float64(counts.Requests)
				return ratio >= config.FailureRatioThreshold
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
			if config.Recorder != nil {
				config.Recorder.RecordCircuitBreakerState(name, int(to))
				if to == gobreaker.StateOpen {
					config.Recorder.RecordCircuitBreakerTrip(name)
				}
			}
		},
	}

	return &CircuitBreaker{
		cb:     gobreaker.NewCircuitBreaker(settings),
		name:   config.Name,
		logger: logger,
	}
}

// Execute runs fn through the breaker. Rejections surface as ErrCircuitOpen
// so callers can distinguish shed load from downstream failures.
func (c *CircuitBreaker) Execute(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := c.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.logger.Warn("Circuit breaker rejected call", "name", c.name)
		return nil, fmt.Errorf("%w: %s", ErrCircuitOpen, c.name)
	}

	return result, err
}

// State returns the current breaker state.
func (c *CircuitBreaker) State() gobreaker.State {
	return c.cb.State()
}

// RetryConfig controls RetryWithResult.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64

	// Retryable reports whether an error is worth another attempt. A nil
	// Retryable retries nothing.
	Retryable func(error) bool
}

// RetryWithResult executes fn with exponential backoff until it succeeds,
// returns a non-retryable error, exhausts MaxAttempts, or the context ends.
// The exhaustion error wraps the last attempt's error.
func RetryWithResult[T any](ctx context.Context, config *RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	delay := config.InitialDelay

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if config.Retryable == nil || !config.Retryable(err) {
			return zero, err
		}

		if attempt == config.MaxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * config.BackoffFactor)
		if delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}

	return zero, fmt.Errorf("retries exhausted after %d attempts: %w", config.MaxAttempts, lastErr)
}
