package idempotency

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments both sides of the package: HTTP key handling
// (hits, misses, collisions) and consumer message deduplication.
type Metrics struct {
	hits                *prometheus.CounterVec
	misses              *prometheus.CounterVec
	parameterMismatches *prometheus.CounterVec
	concurrentConflicts *prometheus.CounterVec
	lockDuration        *prometheus.HistogramVec
	storageErrors       *prometheus.CounterVec

	dedupeHits   *prometheus.CounterVec
	dedupeMisses *prometheus.CounterVec
	dedupeErrors *prometheus.CounterVec
}

// NewMetrics registers the idempotency metrics with the given registerer.
// Pass the registry that backs the service's /metrics endpoint; a nil
// registerer falls back to the Prometheus default.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	requestLabels := []string{"service", "endpoint", "method"}
	messageLabels := []string{"service", "topic", "event_type"}

	return &Metrics{
		hits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_hits_total",
			Help: "Requests answered from the cached response",
		}, requestLabels),
		misses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_misses_total",
			Help: "Requests processed for the first time under their key",
		}, requestLabels),
		parameterMismatches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_parameter_mismatches_total",
			Help: "Retries rejected because the body differed from the original request",
		}, requestLabels),
		concurrentConflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_concurrent_collisions_total",
			Help: "Requests rejected while another holder had the key locked",
		}, requestLabels),
		lockDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "idempotency_lock_acquisition_duration_seconds",
			Help:    "Time spent acquiring the idempotency lock",
			Buckets: prometheus.DefBuckets,
		}, requestLabels),
		storageErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_storage_errors_total",
			Help: "Failures reading or writing idempotency storage",
		}, []string{"service", "operation"}),

		dedupeHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "message_deduplication_hits_total",
			Help: "Duplicate messages skipped by the consumer",
		}, messageLabels),
		dedupeMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "message_deduplication_misses_total",
			Help: "Messages processed for the first time",
		}, messageLabels),
		dedupeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "message_deduplication_errors_total",
			Help: "Failures reading or writing the processed-message markers",
		}, messageLabels),
	}
}

func (m *Metrics) RecordHit(service, endpoint, method string) {
	m.hits.WithLabelValues(service, endpoint, method).Inc()
}

func (m *Metrics) RecordMiss(service, endpoint, method string) {
	m.misses.WithLabelValues(service, endpoint, method).Inc()
}

func (m *Metrics) RecordParameterMismatch(service, endpoint, method string) {
	m.parameterMismatches.WithLabelValues(service, endpoint, method).Inc()
}

func (m *Metrics) RecordConcurrentCollision(service, endpoint, method string) {
	m.concurrentConflicts.WithLabelValues(service, endpoint, method).Inc()
}

func (m *Metrics) RecordLockAcquisitionDuration(service, endpoint, method string, seconds float64) {
	m.lockDuration.WithLabelValues(service, endpoint, method).Observe(seconds)
}

func (m *Metrics) RecordStorageError(service, operation string) {
	m.storageErrors.WithLabelValues(service, operation).Inc()
}

func (m *Metrics) RecordMessageDeduplicationHit(service, topic, eventType string) {
	m.dedupeHits.WithLabelValues(service, topic, eventType).Inc()
}

func (m *Metrics) RecordMessageDeduplicationMiss(service, topic, eventType string) {
	m.dedupeMisses.WithLabelValues(service, topic, eventType).Inc()
}

func (m *Metrics) RecordMessageDeduplicationError(service, topic, eventType string) {
	m.dedupeErrors.WithLabelValues(service, topic, eventType).Inc()
}
