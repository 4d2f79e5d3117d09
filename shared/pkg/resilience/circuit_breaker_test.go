package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBrokerDown = errors.New("broker down")

func testBreakerConfig(name string) *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Name:                  name,
		MaxRequests:           1,
		Interval:              time.Minute,
		Timeout:               time.Minute,
		FailureThreshold:      3,
		FailureRatioThreshold: 0.5,
		MinRequestsToTrip:     100,
	}
}

func TestCircuitBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker(testBreakerConfig("publish"), nil)

	for i := 0; i < 3; i++ {
		_, err := cb.Execute(context.Background(), func() (interface{}, error) {
			return nil, errBrokerDown
		})
		require.ErrorIs(t, err, errBrokerDown)
	}

	assert.Equal(t, gobreaker.StateOpen, cb.State())

	// Calls are now shed without invoking the function.
	invoked := false
	_, err := cb.Execute(context.Background(), func() (interface{}, error) {
		invoked = true
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, invoked)
}

func TestCircuitBreaker_SuccessResetsFailureRun(t *testing.T) {
	cb := NewCircuitBreaker(testBreakerConfig("publish"), nil)

	for i := 0; i < 2; i++ {
		_, _ = cb.Execute(context.Background(), func() (interface{}, error) {
			return nil, errBrokerDown
		})
	}
	_, err := cb.Execute(context.Background(), func() (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)

	// Two more failures are again short of the consecutive threshold.
	for i := 0; i < 2; i++ {
		_, _ = cb.Execute(context.Background(), func() (interface{}, error) {
			return nil, errBrokerDown
		})
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

type recordedTransition struct {
	name  string
	state int
}

type fakeStateRecorder struct {
	mu          sync.Mutex
	transitions []recordedTransition
	trips       []string
}

func (f *fakeStateRecorder) RecordCircuitBreakerState(name string, state int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitions = append(f.transitions, recordedTransition{name: name, state: state})
}

func (f *fakeStateRecorder) RecordCircuitBreakerTrip(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trips = append(f.trips, name)
}

func TestCircuitBreaker_ReportsTransitionsToRecorder(t *testing.T) {
	recorder := &fakeStateRecorder{}
	config := testBreakerConfig("publish")
	config.Recorder = recorder
	cb := NewCircuitBreaker(config, nil)

	for i := 0; i < 3; i++ {
		_, _ = cb.Execute(context.Background(), func() (interface{}, error) {
			return nil, errBrokerDown
		})
	}

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	require.Len(t, recorder.trips, 1)
	assert.Equal(t, "publish", recorder.trips[0])
	require.NotEmpty(t, recorder.transitions)
	assert.Equal(t, int(gobreaker.StateOpen), recorder.transitions[len(recorder.transitions)-1].state)
}

func TestCircuitBreaker_CancelledContextShortCircuits(t *testing.T) {
	cb := NewCircuitBreaker(testBreakerConfig("publish"), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	invoked := false
	_, err := cb.Execute(ctx, func() (interface{}, error) {
		invoked = true
		return nil, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, invoked)
}

func retryTestConfig(retryable func(error) bool) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2,
		Retryable:     retryable,
	}
}

func TestRetryWithResult_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	config := retryTestConfig(func(err error) bool {
		return errors.Is(err, errBrokerDown)
	})

	result, err := RetryWithResult(context.Background(), config, func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", errBrokerDown
		}
		return "delivered", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "delivered", result)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithResult_NonRetryableErrorStopsImmediately(t *testing.T) {
	permanent := errors.New("validation failed")
	attempts := 0
	config := retryTestConfig(func(err error) bool {
		return errors.Is(err, errBrokerDown)
	})

	_, err := RetryWithResult(context.Background(), config, func() (string, error) {
		attempts++
		return "", permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, attempts)
}

func TestRetryWithResult_NilRetryableRetriesNothing(t *testing.T) {
	attempts := 0
	config := retryTestConfig(nil)

	_, err := RetryWithResult(context.Background(), config, func() (string, error) {
		attempts++
		return "", errBrokerDown
	})

	assert.ErrorIs(t, err, errBrokerDown)
	assert.Equal(t, 1, attempts)
}

func TestRetryWithResult_ExhaustionWrapsLastError(t *testing.T) {
	attempts := 0
	config := retryTestConfig(func(error) bool { return true })

	_, err := RetryWithResult(context.Background(), config, func() (string, error) {
		attempts++
		return "", errBrokerDown
	})

	assert.Equal(t, 3, attempts)
	assert.ErrorIs(t, err, errBrokerDown)
	assert.Contains(t, err.Error(), "retries exhausted after 3 attempts")
}

func TestRetryWithResult_ContextCancellationStopsBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	config := retryTestConfig(func(error) bool { return true })
	config.InitialDelay = time.Hour

	attempts := 0
	done := make(chan error, 1)
	go func() {
		_, err := RetryWithResult(ctx, config, func() (string, error) {
			attempts++
			return "", errBrokerDown
		})
		done <- err
	}()

	// Let the first attempt fail, then cancel during the backoff wait.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, attempts)
	case <-time.After(2 * time.Second):
		t.Fatal("retry did not observe context cancellation")
	}
}
