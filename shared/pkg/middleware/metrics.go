package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/metrics"
)

// MetricsMiddleware records HTTP request metrics for every handled route.
func MetricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Scraping /metrics must not show up in the request metrics.
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		m.IncrementHTTPRequestsInFlight()
		defer m.DecrementHTTPRequestsInFlight()

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		// Label by route pattern so path parameters don't explode cardinality.
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		m.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), duration)
	}
}

// MetricsEndpoint serves the Prometheus scrape endpoint.
func MetricsEndpoint(m *metrics.Metrics) gin.HandlerFunc {
	handler := m.Handler()
	return func(c *gin.Context) {
		handler.ServeHTTP(c.Writer, c.Request)
	}
}

// BusinessMetrics records assignment-domain metrics. It also satisfies
// resilience.StateRecorder so circuit breakers can report through it.
type BusinessMetrics struct {
	metrics *metrics.Metrics
}

// NewBusinessMetrics creates a BusinessMetrics helper.
func NewBusinessMetrics(m *metrics.Metrics) *BusinessMetrics {
	return &BusinessMetrics{metrics: m}
}

// RecordBatchAssigned records a processed assignment batch by outcome.
func (b *BusinessMetrics) RecordBatchAssigned(status string) {
	b.metrics.RecordBatchAssigned(status)
}

// RecordItemsAssigned records stock items placed into locations.
func (b *BusinessMetrics) RecordItemsAssigned(count int) {
	b.metrics.RecordItemsAssigned(count)
}

// RecordItemsUnassigned records stock items that found no location.
func (b *BusinessMetrics) RecordItemsUnassigned(count int) {
	b.metrics.RecordItemsUnassigned(count)
}

// RecordAssignmentConflict records an optimistic-lock conflict.
func (b *BusinessMetrics) RecordAssignmentConflict() {
	b.metrics.RecordAssignmentConflict()
}

// RecordLocationRegistered records a location registration.
func (b *BusinessMetrics) RecordLocationRegistered(locationType string) {
	b.metrics.RecordLocationRegistered(locationType)
}

// RecordWorkflowStarted records an assignment workflow launch.
func (b *BusinessMetrics) RecordWorkflowStarted(workflowType string) {
	b.metrics.RecordWorkflowStarted(workflowType)
}

// RecordCircuitBreakerState records a circuit breaker state transition.
func (b *BusinessMetrics) RecordCircuitBreakerState(name string, state int) {
	b.metrics.SetCircuitBreakerState(name, state)
}

// RecordCircuitBreakerTrip records a circuit breaker trip.
func (b *BusinessMetrics) RecordCircuitBreakerTrip(name string) {
	b.metrics.RecordCircuitBreakerTrip(name)
}
