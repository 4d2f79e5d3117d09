package contracts_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/cloudevents"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/contracts/asyncapi"
)

const asyncAPISpecPath = "../../api/asyncapi.yaml"

func newEventValidator(t *testing.T) *asyncapi.EventValidator {
	t.Helper()
	validator, err := asyncapi.NewEventValidator(asyncAPISpecPath)
	require.NoError(t, err)
	return validator
}

// toContractEvent maps a produced event onto the envelope the validator
// consumes. Only type and data matter for payload validation.
func toContractEvent(event *cloudevents.WMSCloudEvent) asyncapi.CloudEvent {
	return asyncapi.CloudEvent{
		SpecVersion: event.SpecVersion,
		Type:        event.Type,
		Source:      event.Source,
		Subject:     event.Subject,
		ID:          event.ID,
		Time:        event.Time.Format(time.RFC3339),
		Data:        event.Data,
	}
}

func TestAsyncAPISpec_CoversAllEventTypes(t *testing.T) {
	validator := newEventValidator(t)

	for _, eventType := range []string{
		cloudevents.StockInboundReceived,
		cloudevents.StockAssigned,
		cloudevents.AssignmentBatchCompleted,
		cloudevents.LocationCreated,
		cloudevents.LocationCapacityChanged,
		cloudevents.LocationBlocked,
		cloudevents.LocationUnblocked,
	} {
		require.True(t, validator.HasSchema(eventType), "missing schema for %s", eventType)
	}
}

func TestEventContracts_FactoryEventsConform(t *testing.T) {
	validator := newEventValidator(t)
	factory := cloudevents.NewEventFactory(cloudevents.SourceAssignmentService)
	ctx := context.Background()
	now := time.Date(2026, time.August, 25, 10, 0, 0, 0, time.UTC)
	expiration := now.AddDate(0, 1, 0)

	events := map[string]*cloudevents.WMSCloudEvent{
		"stock assigned": factory.CreateStockAssignedEvent(
			ctx, "ASG-1a2b3c4d", "ITEM-A", "BIN-0001", "5", "PERISHABLE", &expiration, now,
		),
		"stock assigned without expiration": factory.CreateStockAssignedEvent(
			ctx, "ASG-1a2b3c4d", "ITEM-B", "BIN-0002", "2.5", "NON_PERISHABLE", nil, now,
		),
		"batch completed": factory.CreateAssignmentBatchCompletedEvent(
			ctx, "ASG-1a2b3c4d", "partial", 3, 1, now,
		),
		"location created": factory.CreateLocationCreatedEvent(
			ctx, "BIN-0001", "BIN", now,
		),
		"capacity changed": factory.CreateLocationCapacityChangedEvent(
			ctx, "BIN-0001", "5", "35", now,
		),
		"location blocked": factory.CreateLocationBlockedEvent(
			ctx, "BIN-0001", "damaged shelf", now,
		),
		"location unblocked": factory.CreateLocationUnblockedEvent(
			ctx, "BIN-0001", now,
		),
	}

	for name, event := range events {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, validator.ValidateEvent(toContractEvent(event)))
		})
	}
}

func TestEventContracts_InboundPayloadConforms(t *testing.T) {
	validator := newEventValidator(t)
	now := time.Date(2026, time.August, 25, 10, 0, 0, 0, time.UTC)
	expiration := now.AddDate(0, 0, 14)

	err := validator.ValidateEvent(asyncapi.CloudEvent{
		SpecVersion: "1.0",
		Type:        cloudevents.StockInboundReceived,
		Source:      "/wms/receiving-service",
		ID:          "e9a1f0b2-3c4d-5e6f-7a8b-9c0d1e2f3a4b",
		Data: cloudevents.StockInboundReceivedData{
			ReceiptID: "RCPT-2026-0815",
			Items: []cloudevents.InboundStockItem{
				{StockItemID: "ITEM-A", Quantity: "5", ExpirationDate: &expiration, Classification: "PERISHABLE"},
				{StockItemID: "ITEM-B", Quantity: "12", Classification: "NON_PERISHABLE"},
			},
			ReceivedAt: now,
		},
	})
	require.NoError(t, err)
}

func TestEventContracts_RejectsMalformedPayloads(t *testing.T) {
	validator := newEventValidator(t)

	t.Run("unknown event type", func(t *testing.T) {
		err := validator.ValidateEvent(asyncapi.CloudEvent{
			Type: "wms.assignment.unknown",
			Data: map[string]interface{}{"batchId": "ASG-1a2b3c4d"},
		})
		require.Error(t, err)
	})

	t.Run("missing location id", func(t *testing.T) {
		err := validator.ValidateEvent(asyncapi.CloudEvent{
			Type: cloudevents.StockAssigned,
			Data: map[string]interface{}{
				"batchId":        "ASG-1a2b3c4d",
				"stockItemId":    "ITEM-A",
				"quantity":       "5",
				"classification": "PERISHABLE",
				"assignedAt":     "2026-08-25T10:00:00Z",
			},
		})
		require.Error(t, err)
	})

	t.Run("negative assigned count", func(t *testing.T) {
		err := validator.ValidateEvent(asyncapi.CloudEvent{
			Type: cloudevents.AssignmentBatchCompleted,
			Data: map[string]interface{}{
				"batchId":         "ASG-1a2b3c4d",
				"status":          "completed",
				"assignedCount":   -1,
				"unassignedCount": 0,
				"completedAt":     "2026-08-25T10:00:00Z",
			},
		})
		require.Error(t, err)
	})

	t.Run("quantity as number instead of string", func(t *testing.T) {
		err := validator.ValidateEvent(asyncapi.CloudEvent{
			Type: cloudevents.StockAssigned,
			Data: map[string]interface{}{
				"batchId":        "ASG-1a2b3c4d",
				"stockItemId":    "ITEM-A",
				"locationId":     "BIN-0001",
				"quantity":       5,
				"classification": "PERISHABLE",
				"assignedAt":     "2026-08-25T10:00:00Z",
			},
		})
		require.Error(t, err)
	})
}
