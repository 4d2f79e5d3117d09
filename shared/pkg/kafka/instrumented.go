package kafka

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/cloudevents"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/logging"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/metrics"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/tracing"
)

// addWMSCloudEventAttributes adds WMS extension attributes to a span
func addWMSCloudEventAttributes(span trace.Span, event *cloudevents.WMSCloudEvent) {
	if event.CorrelationID != "" {
		span.SetAttributes(attribute.String("wms.correlation_id", event.CorrelationID))
	}
	if event.BatchID != "" {
		span.SetAttributes(attribute.String("wms.batch_id", event.BatchID))
	}
	if event.WorkflowID != "" {
		span.SetAttributes(attribute.String("wms.workflow_id", event.WorkflowID))
	}
	if event.TenantID != "" {
		span.SetAttributes(attribute.String("wms.tenant_id", event.TenantID))
	}
}

// InstrumentedProducer wraps a Producer with metrics and tracing
type InstrumentedProducer struct {
	producer *Producer
	metrics  *metrics.Metrics
	logger   *logging.Logger
	tracer   trace.Tracer
}

// NewInstrumentedProducer creates a new instrumented producer
func NewInstrumentedProducer(producer *Producer, m *metrics.Metrics, logger *logging.Logger) *InstrumentedProducer {
	return &InstrumentedProducer{
		producer: producer,
		metrics:  m,
		logger:   logger,
		tracer:   otel.Tracer("kafka-producer"),
	}
}

// PublishEvent publishes a CloudEvent with metrics and tracing
func (p *InstrumentedProducer) PublishEvent(ctx context.Context, topic string, event *cloudevents.WMSCloudEvent) error {
	start := time.Now()

	// Start tracing span
	ctx, span := p.tracer.Start(ctx, "kafka.publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKey.String("kafka"),
			semconv.MessagingDestinationNameKey.String(topic),
			semconv.MessagingOperationKey.String("publish"),
			attribute.String("messaging.kafka.event_type", event.Type),
			attribute.String("messaging.message_id", event.ID),
		),
	)
	defer span.End()

	// Add WMS CloudEvents extension attributes
	addWMSCloudEventAttributes(span, event)

	// Inject W3C trace context into the event so consumers can continue the trace
	carrier := tracing.MapCarrier{}
	tracing.InjectTraceContext(ctx, carrier)
	if tp, ok := carrier["traceparent"]; ok && event.TraceParent == "" {
		event.TraceParent = tp
		event.TraceState = carrier["tracestate"]
	}

	// Publish the event
	err := p.producer.PublishEvent(ctx, topic, event)
	duration := time.Since(start)

	// Record metrics
	success := err == nil
	if p.metrics != nil {
		p.metrics.RecordKafkaPublish(topic, event.Type, success, duration)
	}

	// Log the operation
	if p.logger != nil {
		p.logger.KafkaPublish(ctx, topic, event.Type, success, duration)
	}

	// Update span status
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
		span.SetAttributes(attribute.Int64("messaging.duration_ms", duration.Milliseconds()))
	}

	return err
}

// Close closes the underlying producer
func (p *InstrumentedProducer) Close() error {
	return p.producer.Close()
}
