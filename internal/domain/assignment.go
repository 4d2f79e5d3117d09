package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Assignment batch errors
var (
	ErrBatchNotFound         = errors.New("assignment batch not found")
	ErrEmptyBatch            = errors.New("assignment batch requires at least one stock item")
	ErrBatchAlreadyCompleted = errors.New("assignment batch already completed")
	ErrUnknownStockItem      = errors.New("assignment references a stock item not in the batch")
)

// BatchStatus represents the outcome of an assignment batch
type BatchStatus string

const (
	BatchStatusPending   BatchStatus = "pending"
	BatchStatusCompleted BatchStatus = "completed"
	BatchStatusPartial   BatchStatus = "partial"
	BatchStatusUnplaced  BatchStatus = "unplaced"
)

// IsValid checks if the status is valid
func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchStatusPending, BatchStatusCompleted, BatchStatusPartial, BatchStatusUnplaced:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the batch has been resolved
func (s BatchStatus) IsTerminal() bool {
	return s == BatchStatusCompleted || s == BatchStatusPartial || s == BatchStatusUnplaced
}

// BatchItem is the persisted snapshot of one requested stock item
type BatchItem struct {
	StockItemID    string          `bson:"stockItemId" json:"stockItemId"`
	Quantity       decimal.Decimal `bson:"quantity" json:"quantity"`
	ExpirationDate *time.Time      `bson:"expirationDate,omitempty" json:"expirationDate,omitempty"`
	Classification Classification  `bson:"classification" json:"classification"`
}

// ItemAssignment records one stock item placed into one location
type ItemAssignment struct {
	StockItemID string          `bson:"stockItemId" json:"stockItemId"`
	LocationID  string          `bson:"locationId" json:"locationId"`
	Quantity    decimal.Decimal `bson:"quantity" json:"quantity"`
}

// AssignmentBatch records one run of the location assignment flow: the
// requested items, the per-item placements, and the items that could not be
// placed. Unplaced items are an accepted outcome, not a failure.
type AssignmentBatch struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	BatchID           string             `bson:"batchId" json:"batchId"`
	TenantID          string             `bson:"tenantId" json:"tenantId"`
	FacilityID        string             `bson:"facilityId" json:"facilityId"`
	WarehouseID       string             `bson:"warehouseId" json:"warehouseId"`
	Items             []BatchItem        `bson:"items" json:"items"`
	Assignments       []ItemAssignment   `bson:"assignments" json:"assignments"`
	UnassignedItemIDs []string           `bson:"unassignedItemIds,omitempty" json:"unassignedItemIds,omitempty"`
	Status            BatchStatus        `bson:"status" json:"status"`
	Version           int                `bson:"version" json:"version"`
	CreatedAt         time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time          `bson:"updatedAt" json:"updatedAt"`
	CompletedAt       *time.Time         `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	DomainEvents      []DomainEvent      `bson:"-" json:"-"`
}

// NewAssignmentBatch snapshots the requested items into a pending batch
func NewAssignmentBatch(
	batchID string,
	tenantID, facilityID, warehouseID string,
	requests []*StockItemAssignmentRequest,
) (*AssignmentBatch, error) {
	if len(requests) == 0 {
		return nil, ErrEmptyBatch
	}

	items := make([]BatchItem, 0, len(requests))
	for _, request := range requests {
		if request == nil {
			return nil, ErrEmptyBatch
		}
		if err := request.Validate(); err != nil {
			return nil, err
		}
		items = append(items, BatchItem{
			StockItemID:    request.StockItemID(),
			Quantity:       request.Quantity(),
			ExpirationDate: request.ExpirationDate(),
			Classification: request.Classification(),
		})
	}

	now := time.Now().UTC()
	return &AssignmentBatch{
		ID:           primitive.NewObjectID(),
		BatchID:      batchID,
		TenantID:     tenantID,
		FacilityID:   facilityID,
		WarehouseID:  warehouseID,
		Items:        items,
		Assignments:  make([]ItemAssignment, 0, len(items)),
		Status:       BatchStatusPending,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
		DomainEvents: make([]DomainEvent, 0),
	}, nil
}

// RecordResult applies the algorithm's stockItemId-to-locationId map to the
// batch. Items are walked in their original request order so event emission
// stays deterministic regardless of map iteration order. One StockAssignedEvent
// is raised per placed item plus a single batch completion event.
func (b *AssignmentBatch) RecordResult(assignments map[string]string) error {
	if b.Status.IsTerminal() {
		return ErrBatchAlreadyCompleted
	}
	for stockItemID := range assignments {
		if b.itemByID(stockItemID) == nil {
			return ErrUnknownStockItem
		}
	}

	now := time.Now().UTC()
	for _, item := range b.Items {
		locationID, placed := assignments[item.StockItemID]
		if !placed {
			b.UnassignedItemIDs = append(b.UnassignedItemIDs, item.StockItemID)
			continue
		}

		b.Assignments = append(b.Assignments, ItemAssignment{
			StockItemID: item.StockItemID,
			LocationID:  locationID,
			Quantity:    item.Quantity,
		})
		b.addDomainEvent(&StockAssignedEvent{
			BatchID:        b.BatchID,
			StockItemID:    item.StockItemID,
			LocationID:     locationID,
			Quantity:       item.Quantity,
			Classification: string(item.Classification),
			ExpirationDate: item.ExpirationDate,
			TenantID:       b.TenantID,
			WarehouseID:    b.WarehouseID,
			AssignedAt:     now,
		})
	}

	switch {
	case len(b.Assignments) == len(b.Items):
		b.Status = BatchStatusCompleted
	case len(b.Assignments) > 0:
		b.Status = BatchStatusPartial
	default:
		b.Status = BatchStatusUnplaced
	}

	b.CompletedAt = &now
	b.UpdatedAt = now

	b.addDomainEvent(&AssignmentBatchCompletedEvent{
		BatchID:         b.BatchID,
		Status:          string(b.Status),
		AssignedCount:   len(b.Assignments),
		UnassignedCount: len(b.UnassignedItemIDs),
		TenantID:        b.TenantID,
		WarehouseID:     b.WarehouseID,
		CompletedAt:     now,
	})

	return nil
}

// AssignedQuantityFor sums the quantity this batch placed into one location
func (b *AssignmentBatch) AssignedQuantityFor(locationID string) decimal.Decimal {
	total := decimal.Zero
	for _, assignment := range b.Assignments {
		if assignment.LocationID == locationID {
			total = total.Add(assignment.Quantity)
		}
	}
	return total
}

// AssignedCount returns the number of placed items
func (b *AssignmentBatch) AssignedCount() int {
	return len(b.Assignments)
}

// UnassignedCount returns the number of items left without a location
func (b *AssignmentBatch) UnassignedCount() int {
	return len(b.UnassignedItemIDs)
}

func (b *AssignmentBatch) itemByID(stockItemID string) *BatchItem {
	for i := range b.Items {
		if b.Items[i].StockItemID == stockItemID {
			return &b.Items[i]
		}
	}
	return nil
}

// addDomainEvent adds a domain event
func (b *AssignmentBatch) addDomainEvent(event DomainEvent) {
	b.DomainEvents = append(b.DomainEvents, event)
}

// GetDomainEvents returns all domain events
func (b *AssignmentBatch) GetDomainEvents() []DomainEvent {
	return b.DomainEvents
}

// ClearDomainEvents clears all domain events
func (b *AssignmentBatch) ClearDomainEvents() {
	b.DomainEvents = make([]DomainEvent, 0)
}
