package kafka

import (
	"context"
	"log/slog"

	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/cloudevents"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/logging"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/resilience"
)

// CircuitBreakerProducer wraps the instrumented producer with a circuit
// breaker so a down broker sheds publish attempts fast instead of piling up
// timed-out writes. The outbox keeps rejected events and retries them once
// the breaker closes again.
type CircuitBreakerProducer struct {
	producer *InstrumentedProducer
	breaker  *resilience.CircuitBreaker
}

// NewCircuitBreakerProducer creates a breaker-protected producer. The
// recorder is optional and receives breaker state transitions.
func NewCircuitBreakerProducer(producer *InstrumentedProducer, logger *logging.Logger, recorder resilience.StateRecorder) *CircuitBreakerProducer {
	config := resilience.DefaultCircuitBreakerConfig("kafka-producer")
	config.MaxRequests = 5
	config.Recorder = recorder

	var slogLogger *slog.Logger
	if logger != nil && logger.Logger != nil {
		slogLogger = logger.Logger
	}

	return &CircuitBreakerProducer{
		producer: producer,
		breaker:  resilience.NewCircuitBreaker(config, slogLogger),
	}
}

// PublishEvent publishes a CloudEvent through the breaker. When the breaker
// is open the error wraps resilience.ErrCircuitOpen and the outbox drain
// pass ends early.
func (p *CircuitBreakerProducer) PublishEvent(ctx context.Context, topic string, event *cloudevents.WMSCloudEvent) error {
	_, err := p.breaker.Execute(ctx, func() (interface{}, error) {
		return nil, p.producer.PublishEvent(ctx, topic, event)
	})
	return err
}

// Close closes the underlying producer.
func (p *CircuitBreakerProducer) Close() error {
	return p.producer.Close()
}
