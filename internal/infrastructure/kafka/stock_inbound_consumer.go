package kafka

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/kumbirai/warehouse-management-system-sub012/internal/application"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/cloudevents"
	apperrors "github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/errors"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/idempotency"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/kafka"
)

// assignmentSubmitter is the slice of the application service the consumer
// needs. Narrow on purpose so tests can substitute a fake.
type assignmentSubmitter interface {
	AssignStock(ctx context.Context, cmd application.AssignStockCommand) (*application.AssignmentBatchDTO, error)
}

// StockInboundConsumer turns stock inbound events from upstream receiving
// systems into assignment batches. Each event is deduplicated by its
// CloudEvents ID before the handler runs, so Kafka redeliveries do not
// create duplicate batches.
type StockInboundConsumer struct {
	consumer  *kafka.Consumer
	submitter assignmentSubmitter
	logger    *slog.Logger
}

// NewStockInboundConsumer creates the consumer and registers its
// deduplicating handler for stock inbound events.
func NewStockInboundConsumer(
	consumer *kafka.Consumer,
	submitter assignmentSubmitter,
	dedupeRepo idempotency.MessageRepository,
	dedupeMetrics *idempotency.Metrics,
	consumerGroup string,
	logger *slog.Logger,
) *StockInboundConsumer {
	if logger == nil {
		logger = slog.Default()
	}

	c := &StockInboundConsumer{
		consumer:  consumer,
		submitter: submitter,
		logger:    logger,
	}

	dedupeConfig := idempotency.DefaultConsumerConfig(
		"assignment-service",
		kafka.Topics.StockInbound,
		consumerGroup,
		dedupeRepo,
	)
	consumer.Subscribe(
		kafka.Topics.StockInbound,
		cloudevents.StockInboundReceived,
		kafka.EventHandler(idempotency.DeduplicatingHandler(dedupeConfig, dedupeMetrics, c.handleStockInbound)),
	)

	return c
}

// Start consumes until the context is cancelled.
func (c *StockInboundConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

// Close closes the underlying Kafka readers.
func (c *StockInboundConsumer) Close() error {
	return c.consumer.Close()
}

// handleStockInbound submits one received stock batch for assignment.
// Returning nil marks the event processed; payloads that can never become
// valid are dropped that way, while transient failures propagate so the
// message is redelivered.
func (c *StockInboundConsumer) handleStockInbound(ctx context.Context, event *cloudevents.WMSCloudEvent) error {
	var data cloudevents.StockInboundReceivedData
	if err := event.DecodeData(&data); err != nil {
		c.logger.Error("Dropping malformed stock inbound event",
			"eventId", event.ID,
			"error", err,
		)
		return nil
	}

	if len(data.Items) == 0 {
		c.logger.Warn("Dropping stock inbound event without items",
			"eventId", event.ID,
			"receiptId", data.ReceiptID,
		)
		return nil
	}

	items := make([]application.StockItemInput, 0, len(data.Items))
	for _, item := range data.Items {
		quantity, err := decimal.NewFromString(item.Quantity)
		if err != nil {
			c.logger.Error("Dropping stock inbound event with unparseable quantity",
				"eventId", event.ID,
				"receiptId", data.ReceiptID,
				"stockItemId", item.StockItemID,
				"quantity", item.Quantity,
			)
			return nil
		}
		items = append(items, application.StockItemInput{
			StockItemID:    item.StockItemID,
			Quantity:       quantity,
			ExpirationDate: item.ExpirationDate,
			Classification: item.Classification,
		})
	}

	batch, err := c.submitter.AssignStock(ctx, application.AssignStockCommand{
		TenantID:    event.TenantID,
		FacilityID:  event.FacilityID,
		WarehouseID: event.WarehouseID,
		Items:       items,
	})
	if err != nil {
		if appErr, ok := apperrors.AsAppError(err); ok && appErr.Code == apperrors.CodeValidationError {
			// Redelivery cannot fix a payload the domain rejects
			c.logger.Error("Dropping stock inbound event rejected by validation",
				"eventId", event.ID,
				"receiptId", data.ReceiptID,
				"error", err,
			)
			return nil
		}
		return err
	}

	c.logger.Info("Stock inbound event assigned",
		"eventId", event.ID,
		"receiptId", data.ReceiptID,
		"batchId", batch.BatchID,
		"status", batch.Status,
		"assignedCount", batch.AssignedCount,
		"unassignedCount", batch.UnassignedCount,
	)
	return nil
}
