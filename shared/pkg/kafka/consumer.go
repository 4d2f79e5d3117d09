package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
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

// EventHandler is a function that handles a CloudEvent
type EventHandler func(ctx context.Context, event *cloudevents.WMSCloudEvent) error

// Consumer handles consuming messages from Kafka topics. Each consumed
// event is traced, counted, and dispatched to the handler registered for
// its type.
type Consumer struct {
	config   *Config
	readers  map[string]*kafka.Reader
	handlers map[string]map[string]EventHandler // topic -> eventType -> handler
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewConsumer creates a new Kafka consumer. The metrics instance may be
// nil, in which case consume counters and lag gauges are not recorded.
func NewConsumer(config *Config, m *metrics.Metrics, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		config:   config,
		readers:  make(map[string]*kafka.Reader),
		handlers: make(map[string]map[string]EventHandler),
		metrics:  m,
		logger:   logger,
		tracer:   otel.Tracer("kafka-consumer"),
	}
}

// Subscribe subscribes to a topic with a handler for a specific event type
func (c *Consumer) Subscribe(topic string, eventType string, handler EventHandler) {
	if _, exists := c.handlers[topic]; !exists {
		c.handlers[topic] = make(map[string]EventHandler)
	}
	c.handlers[topic][eventType] = handler
}

// getReader returns a reader for the specified topic, creating one if necessary
func (c *Consumer) getReader(topic string) *kafka.Reader {
	if reader, exists := c.readers[topic]; exists {
		return reader
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        c.config.Brokers,
		GroupID:        c.config.ConsumerGroup,
		Topic:          topic,
		MinBytes:       c.config.MinBytes,
		MaxBytes:       c.config.MaxBytes,
		MaxWait:        c.config.MaxWait,
		CommitInterval: c.config.CommitTimeout,
		Dialer: &kafka.Dialer{
			ClientID:  c.config.ClientID,
			DualStack: true,
		},
	})

	c.readers[topic] = reader
	return reader
}

// Start starts consuming messages from all subscribed topics
func (c *Consumer) Start(ctx context.Context) error {
	for topic := range c.handlers {
		go c.consumeTopic(ctx, topic)
	}

	<-ctx.Done()
	return ctx.Err()
}

// consumeTopic consumes messages from a single topic
func (c *Consumer) consumeTopic(ctx context.Context, topic string) {
	reader := c.getReader(topic)

	c.logger.Info("Starting consumer for topic", "topic", topic, "group", c.config.ConsumerGroup)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Stopping consumer for topic", "topic", topic)
			return
		default:
			msg, err := reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				c.logger.Error("Error fetching message", "topic", topic, "error", err)
				continue
			}

			event, err := c.parseMessage(msg)
			if err != nil {
				c.logger.Error("Error parsing message", "topic", topic, "error", err)
				if c.metrics != nil {
					c.metrics.RecordKafkaConsume(topic, "invalid", false)
				}
				// Commit the message anyway to avoid blocking
				if commitErr := reader.CommitMessages(ctx, msg); commitErr != nil {
					c.logger.Error("Error committing message", "topic", topic, "error", commitErr)
				}
				continue
			}

			handleErr := c.handleEvent(ctx, topic, event)
			if c.metrics != nil {
				c.metrics.RecordKafkaConsume(topic, event.Type, handleErr == nil)
				c.metrics.SetKafkaConsumerLag(topic, msg.Partition, reader.Stats().Lag)
			}
			if handleErr != nil {
				c.logger.Error("Error handling event",
					"topic", topic,
					"eventType", event.Type,
					"eventId", event.ID,
					"error", handleErr,
				)
				// Don't commit on handler error - this allows retry
				continue
			}

			if err := reader.CommitMessages(ctx, msg); err != nil {
				c.logger.Error("Error committing message", "topic", topic, "error", err)
			}
		}
	}
}

// parseMessage parses a Kafka message into a CloudEvent
func (c *Consumer) parseMessage(msg kafka.Message) (*cloudevents.WMSCloudEvent, error) {
	var event cloudevents.WMSCloudEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	// Extract CloudEvents headers (WMS extensions + W3C trace context)
	for _, header := range msg.Headers {
		switch header.Key {
		case "ce-wmstenantid":
			event.TenantID = string(header.Value)
		case "ce-wmsfacilityid":
			event.FacilityID = string(header.Value)
		case "ce-wmswarehouseid":
			event.WarehouseID = string(header.Value)
		case "ce-wmscorrelationid":
			event.CorrelationID = string(header.Value)
		case "ce-wmsbatchid":
			event.BatchID = string(header.Value)
		case "ce-wmsworkflowid":
			event.WorkflowID = string(header.Value)
		// W3C Distributed Tracing extensions
		case "ce-traceparent":
			event.TraceParent = string(header.Value)
		case "ce-tracestate":
			event.TraceState = string(header.Value)
		}
	}

	return &event, nil
}

// handleEvent routes an event to the handler registered for its type
func (c *Consumer) handleEvent(ctx context.Context, topic string, event *cloudevents.WMSCloudEvent) error {
	handlers, exists := c.handlers[topic]
	if !exists {
		return fmt.Errorf("no handlers registered for topic %s", topic)
	}

	// Continue the producer's trace when the event carries W3C context
	if event.TraceParent != "" {
		carrier := tracing.MapCarrier{"traceparent": event.TraceParent}
		if event.TraceState != "" {
			carrier["tracestate"] = event.TraceState
		}
		ctx = tracing.ExtractTraceContext(ctx, carrier)
	}

	ctx, span := c.tracer.Start(ctx, "kafka.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemKey.String("kafka"),
			semconv.MessagingDestinationNameKey.String(topic),
			semconv.MessagingOperationKey.String("receive"),
			attribute.String("messaging.kafka.event_type", event.Type),
			attribute.String("messaging.message_id", event.ID),
			attribute.String("messaging.kafka.consumer_group", c.config.ConsumerGroup),
		),
	)
	defer span.End()

	// Add WMS CloudEvents extension attributes
	addWMSCloudEventAttributes(span, event)

	// Enrich context with CloudEvents WMS extensions for logging
	ctx = logging.ContextWithCloudEventExtensions(
		ctx,
		event.CorrelationID,
		event.BatchID,
		event.WorkflowID,
		event.TenantID,
		event.FacilityID,
		event.WarehouseID,
	)

	handler, exists := handlers[event.Type]
	if !exists {
		c.logger.Warn("No handler found for event type", "topic", topic, "eventType", event.Type)
		return nil
	}

	if err := handler(ctx, event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Close closes all readers
func (c *Consumer) Close() error {
	var lastErr error
	for topic, reader := range c.readers {
		if err := reader.Close(); err != nil {
			lastErr = fmt.Errorf("failed to close reader for topic %s: %w", topic, err)
		}
	}
	return lastErr
}
