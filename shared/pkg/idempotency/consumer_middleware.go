package idempotency

import (
	"context"
	"log/slog"
	"time"

	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/cloudevents"
)

// EventHandler is a function that handles a CloudEvent.
// This mirrors the kafka.EventHandler type so deduplication can wrap
// consumer handlers without importing the kafka package.
type EventHandler func(ctx context.Context, event *cloudevents.WMSCloudEvent) error

// DeduplicatingHandler wraps an event handler with deduplication logic.
// It ensures effectively-once message processing by recording each message ID
// per topic and consumer group after the handler succeeds. Pass nil metrics
// to disable instrumentation.
func DeduplicatingHandler(config *ConsumerConfig, metrics *Metrics, handler EventHandler) EventHandler {
	return func(ctx context.Context, event *cloudevents.WMSCloudEvent) error {
		processed, err := config.Repository.IsProcessed(
			ctx,
			event.ID,
			config.Topic,
			config.ConsumerGroup,
		)

		if err != nil {
			slog.Error("Failed to check if message is processed",
				"error", err,
				"messageId", event.ID,
				"topic", config.Topic,
				"eventType", event.Type,
				"service", config.ServiceName,
			)

			if metrics != nil {
				metrics.RecordMessageDeduplicationError(config.ServiceName, config.Topic, event.Type)
			}

			return err
		}

		if processed {
			slog.Info("Duplicate message skipped",
				"messageId", event.ID,
				"topic", config.Topic,
				"eventType", event.Type,
				"service", config.ServiceName,
			)

			if metrics != nil {
				metrics.RecordMessageDeduplicationHit(config.ServiceName, config.Topic, event.Type)
			}

			// The message was already processed, so this delivery succeeds
			return nil
		}

		if metrics != nil {
			metrics.RecordMessageDeduplicationMiss(config.ServiceName, config.Topic, event.Type)
		}

		slog.Debug("Processing new message",
			"messageId", event.ID,
			"topic", config.Topic,
			"eventType", event.Type,
			"service", config.ServiceName,
		)

		if err := handler(ctx, event); err != nil {
			slog.Error("Failed to process message",
				"error", err,
				"messageId", event.ID,
				"topic", config.Topic,
				"eventType", event.Type,
				"service", config.ServiceName,
			)

			// Don't mark as processed on error - allow retry
			return err
		}

		msg := &ProcessedMessage{
			MessageID:     event.ID,
			Topic:         config.Topic,
			EventType:     event.Type,
			ConsumerGroup: config.ConsumerGroup,
			ServiceID:     config.ServiceName,
			ProcessedAt:   time.Now().UTC(),
			ExpiresAt:     time.Now().UTC().Add(config.RetentionPeriod),
			CorrelationID: event.CorrelationID,
			BatchID:       event.BatchID,
			WorkflowID:    event.WorkflowID,
		}

		if err := config.Repository.MarkProcessed(ctx, msg); err != nil {
			if err == ErrMessageAlreadyProcessed {
				// A concurrent consumer recorded it first; the work is done either way
				slog.Warn("Message was processed concurrently",
					"messageId", event.ID,
					"topic", config.Topic,
					"eventType", event.Type,
					"service", config.ServiceName,
				)
				return nil
			}

			slog.Error("Failed to mark message as processed",
				"error", err,
				"messageId", event.ID,
				"topic", config.Topic,
				"eventType", event.Type,
				"service", config.ServiceName,
			)

			if metrics != nil {
				metrics.RecordMessageDeduplicationError(config.ServiceName, config.Topic, event.Type)
			}

			// The handler ran but the marker write failed, so the message may
			// be reprocessed on the next delivery
			return err
		}

		slog.Debug("Message processed and marked",
			"messageId", event.ID,
			"topic", config.Topic,
			"eventType", event.Type,
			"service", config.ServiceName,
		)

		return nil
	}
}
