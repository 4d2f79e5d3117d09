package testing

import (
	"context"
	"testing"
	"time"
)

// AssertEventually polls condition every 10ms and fails the test when it is
// still false after timeout. Use it for goroutine-driven effects like the
// outbox publisher's poll loop.
func AssertEventually(t *testing.T, condition func() bool, timeout time.Duration, message string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if condition() {
			return
		}
		<-ticker.C
		if time.Now().After(deadline) {
			t.Fatalf("Condition not met within %s: %s", timeout, message)
		}
	}
}

// CreateTestContext returns a context with a timeout for tests.
func CreateTestContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}
