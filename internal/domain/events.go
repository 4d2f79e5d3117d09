package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DomainEvent represents a domain event interface
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
}

// StockAssignedEvent is emitted for every stock item placed into a bin
type StockAssignedEvent struct {
	BatchID        string          `json:"batchId"`
	StockItemID    string          `json:"stockItemId"`
	LocationID     string          `json:"locationId"`
	Quantity       decimal.Decimal `json:"quantity"`
	Classification string          `json:"classification"`
	ExpirationDate *time.Time      `json:"expirationDate,omitempty"`
	TenantID       string          `json:"tenantId"`
	WarehouseID    string          `json:"warehouseId"`
	AssignedAt     time.Time       `json:"assignedAt"`
}

func (e *StockAssignedEvent) EventType() string     { return "assignment.stock.assigned" }
func (e *StockAssignedEvent) OccurredAt() time.Time { return e.AssignedAt }

// AssignmentBatchCompletedEvent is emitted once per batch after every item
// has been considered
type AssignmentBatchCompletedEvent struct {
	BatchID         string    `json:"batchId"`
	Status          string    `json:"status"`
	AssignedCount   int       `json:"assignedCount"`
	UnassignedCount int       `json:"unassignedCount"`
	TenantID        string    `json:"tenantId"`
	WarehouseID     string    `json:"warehouseId"`
	CompletedAt     time.Time `json:"completedAt"`
}

func (e *AssignmentBatchCompletedEvent) EventType() string     { return "assignment.batch.completed" }
func (e *AssignmentBatchCompletedEvent) OccurredAt() time.Time { return e.CompletedAt }

// LocationCreatedEvent is emitted when a location is registered
type LocationCreatedEvent struct {
	LocationID  string    `json:"locationId"`
	Type        string    `json:"type"`
	TenantID    string    `json:"tenantId"`
	WarehouseID string    `json:"warehouseId"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (e *LocationCreatedEvent) EventType() string     { return "location.created" }
func (e *LocationCreatedEvent) OccurredAt() time.Time { return e.CreatedAt }

// LocationCapacityChangedEvent is emitted when stock is committed to a location
type LocationCapacityChangedEvent struct {
	LocationID      string          `json:"locationId"`
	Delta           decimal.Decimal `json:"delta"`
	CurrentQuantity decimal.Decimal `json:"currentQuantity"`
	TenantID        string          `json:"tenantId"`
	ChangedAt       time.Time       `json:"changedAt"`
}

func (e *LocationCapacityChangedEvent) EventType() string     { return "location.capacity.changed" }
func (e *LocationCapacityChangedEvent) OccurredAt() time.Time { return e.ChangedAt }

// LocationBlockedEvent is emitted when a location is taken out of service
type LocationBlockedEvent struct {
	LocationID string    `json:"locationId"`
	Reason     string    `json:"reason"`
	TenantID   string    `json:"tenantId"`
	BlockedAt  time.Time `json:"blockedAt"`
}

func (e *LocationBlockedEvent) EventType() string     { return "location.blocked" }
func (e *LocationBlockedEvent) OccurredAt() time.Time { return e.BlockedAt }

// LocationUnblockedEvent is emitted when a blocked location returns to service
type LocationUnblockedEvent struct {
	LocationID  string    `json:"locationId"`
	TenantID    string    `json:"tenantId"`
	UnblockedAt time.Time `json:"unblockedAt"`
}

func (e *LocationUnblockedEvent) EventType() string     { return "location.unblocked" }
func (e *LocationUnblockedEvent) OccurredAt() time.Time { return e.UnblockedAt }
