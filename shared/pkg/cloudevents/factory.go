package cloudevents

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventFactory creates CloudEvents for WMS domain events
type EventFactory struct {
	source string
}

// NewEventFactory creates a new EventFactory for a specific source
func NewEventFactory(source string) *EventFactory {
	return &EventFactory{source: source}
}

// createEvent assembles the CloudEvents envelope shared by all event types
func (f *EventFactory) createEvent(
	ctx context.Context,
	eventType string,
	subject string,
	data interface{},
) *WMSCloudEvent {
	return &WMSCloudEvent{
		SpecVersion:     "1.0",
		Type:            eventType,
		Source:          f.source,
		Subject:         subject,
		ID:              uuid.New().String(),
		Time:            time.Now().UTC(),
		DataContentType: "application/json",
		Data:            data,
	}
}

// CreateStockAssignedEvent creates a StockAssigned event
func (f *EventFactory) CreateStockAssignedEvent(
	ctx context.Context,
	batchID string,
	stockItemID string,
	locationID string,
	quantity string,
	classification string,
	expirationDate *time.Time,
	assignedAt time.Time,
) *WMSCloudEvent {
	data := StockAssignedData{
		BatchID:        batchID,
		StockItemID:    stockItemID,
		LocationID:     locationID,
		Quantity:       quantity,
		Classification: classification,
		ExpirationDate: expirationDate,
		AssignedAt:     assignedAt,
	}
	event := f.createEvent(ctx, StockAssigned, "assignment-batch/"+batchID, data)
	event.BatchID = batchID
	return event
}

// CreateAssignmentBatchCompletedEvent creates an AssignmentBatchCompleted event
func (f *EventFactory) CreateAssignmentBatchCompletedEvent(
	ctx context.Context,
	batchID string,
	status string,
	assignedCount int,
	unassignedCount int,
	completedAt time.Time,
) *WMSCloudEvent {
	data := AssignmentBatchCompletedData{
		BatchID:         batchID,
		Status:          status,
		AssignedCount:   assignedCount,
		UnassignedCount: unassignedCount,
		CompletedAt:     completedAt,
	}
	event := f.createEvent(ctx, AssignmentBatchCompleted, "assignment-batch/"+batchID, data)
	event.BatchID = batchID
	return event
}

// CreateLocationCreatedEvent creates a LocationCreated event
func (f *EventFactory) CreateLocationCreatedEvent(
	ctx context.Context,
	locationID string,
	locationType string,
	createdAt time.Time,
) *WMSCloudEvent {
	data := LocationCreatedData{
		LocationID: locationID,
		Type:       locationType,
		CreatedAt:  createdAt,
	}
	return f.createEvent(ctx, LocationCreated, "location/"+locationID, data)
}

// CreateLocationCapacityChangedEvent creates a LocationCapacityChanged event
func (f *EventFactory) CreateLocationCapacityChangedEvent(
	ctx context.Context,
	locationID string,
	delta string,
	currentQuantity string,
	changedAt time.Time,
) *WMSCloudEvent {
	data := LocationCapacityChangedData{
		LocationID:      locationID,
		Delta:           delta,
		CurrentQuantity: currentQuantity,
		ChangedAt:       changedAt,
	}
	return f.createEvent(ctx, LocationCapacityChanged, "location/"+locationID, data)
}

// CreateLocationBlockedEvent creates a LocationBlocked event
func (f *EventFactory) CreateLocationBlockedEvent(
	ctx context.Context,
	locationID string,
	reason string,
	blockedAt time.Time,
) *WMSCloudEvent {
	data := LocationBlockedData{
		LocationID: locationID,
		Reason:     reason,
		BlockedAt:  blockedAt,
	}
	return f.createEvent(ctx, LocationBlocked, "location/"+locationID, data)
}

// CreateLocationUnblockedEvent creates a LocationUnblocked event
func (f *EventFactory) CreateLocationUnblockedEvent(
	ctx context.Context,
	locationID string,
	unblockedAt time.Time,
) *WMSCloudEvent {
	data := LocationUnblockedData{
		LocationID:  locationID,
		UnblockedAt: unblockedAt,
	}
	return f.createEvent(ctx, LocationUnblocked, "location/"+locationID, data)
}
