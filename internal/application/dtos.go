package application

import (
	"time"

	"github.com/kumbirai/warehouse-management-system-sub012/internal/domain"
)

// AssignmentBatchDTO represents an assignment batch in responses
type AssignmentBatchDTO struct {
	BatchID           string              `json:"batchId"`
	TenantID          string              `json:"tenantId"`
	FacilityID        string              `json:"facilityId"`
	WarehouseID       string              `json:"warehouseId"`
	Status            string              `json:"status"`
	Items             []BatchItemDTO      `json:"items"`
	Assignments       []ItemAssignmentDTO `json:"assignments"`
	UnassignedItemIDs []string            `json:"unassignedItemIds,omitempty"`
	AssignedCount     int                 `json:"assignedCount"`
	UnassignedCount   int                 `json:"unassignedCount"`
	CreatedAt         time.Time           `json:"createdAt"`
	CompletedAt       *time.Time          `json:"completedAt,omitempty"`
}

// BatchItemDTO represents one requested stock item
type BatchItemDTO struct {
	StockItemID    string     `json:"stockItemId"`
	Quantity       string     `json:"quantity"`
	ExpirationDate *time.Time `json:"expirationDate,omitempty"`
	Classification string     `json:"classification"`
}

// ItemAssignmentDTO represents one stock-item-to-location placement
type ItemAssignmentDTO struct {
	StockItemID string `json:"stockItemId"`
	LocationID  string `json:"locationId"`
	Quantity    string `json:"quantity"`
}

// AssignmentWorkflowStartDTO identifies an assignment batch accepted for
// asynchronous processing
type AssignmentWorkflowStartDTO struct {
	BatchID    string `json:"batchId"`
	WorkflowID string `json:"workflowId"`
	RunID      string `json:"runId"`
}

// LocationDTO represents a location in responses
type LocationDTO struct {
	LocationID      string    `json:"locationId"`
	Type            string    `json:"type"`
	Status          string    `json:"status"`
	BinCode         string    `json:"binCode,omitempty"`
	ParentID        string    `json:"parentId,omitempty"`
	CurrentQuantity string    `json:"currentQuantity"`
	MaximumQuantity *string   `json:"maximumQuantity,omitempty"`
	TenantID        string    `json:"tenantId"`
	FacilityID      string    `json:"facilityId"`
	WarehouseID     string    `json:"warehouseId"`
	Version         int       `json:"version"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// ToAssignmentBatchDTO converts an assignment batch aggregate to its DTO
func ToAssignmentBatchDTO(batch *domain.AssignmentBatch) *AssignmentBatchDTO {
	items := make([]BatchItemDTO, 0, len(batch.Items))
	for _, item := range batch.Items {
		items = append(items, BatchItemDTO{
			StockItemID:    item.StockItemID,
			Quantity:       item.Quantity.String(),
			ExpirationDate: item.ExpirationDate,
			Classification: string(item.Classification),
		})
	}

	assignments := make([]ItemAssignmentDTO, 0, len(batch.Assignments))
	for _, assignment := range batch.Assignments {
		assignments = append(assignments, ItemAssignmentDTO{
			StockItemID: assignment.StockItemID,
			LocationID:  assignment.LocationID,
			Quantity:    assignment.Quantity.String(),
		})
	}

	return &AssignmentBatchDTO{
		BatchID:           batch.BatchID,
		TenantID:          batch.TenantID,
		FacilityID:        batch.FacilityID,
		WarehouseID:       batch.WarehouseID,
		Status:            string(batch.Status),
		Items:             items,
		Assignments:       assignments,
		UnassignedItemIDs: batch.UnassignedItemIDs,
		AssignedCount:     batch.AssignedCount(),
		UnassignedCount:   batch.UnassignedCount(),
		CreatedAt:         batch.CreatedAt,
		CompletedAt:       batch.CompletedAt,
	}
}

// ToAssignmentBatchDTOs converts a list of batches
func ToAssignmentBatchDTOs(batches []*domain.AssignmentBatch) []*AssignmentBatchDTO {
	dtos := make([]*AssignmentBatchDTO, 0, len(batches))
	for _, batch := range batches {
		dtos = append(dtos, ToAssignmentBatchDTO(batch))
	}
	return dtos
}

// ToLocationDTO converts a location aggregate to its DTO
func ToLocationDTO(location *domain.Location) *LocationDTO {
	var maximum *string
	if location.Capacity.MaximumQuantity != nil {
		m := location.Capacity.MaximumQuantity.String()
		maximum = &m
	}

	return &LocationDTO{
		LocationID:      location.LocationID,
		Type:            string(location.Type),
		Status:          string(location.Status),
		BinCode:         location.BinCode.String(),
		ParentID:        location.ParentID,
		CurrentQuantity: location.Capacity.CurrentQuantity.String(),
		MaximumQuantity: maximum,
		TenantID:        location.TenantID,
		FacilityID:      location.FacilityID,
		WarehouseID:     location.WarehouseID,
		Version:         location.Version,
		CreatedAt:       location.CreatedAt,
		UpdatedAt:       location.UpdatedAt,
	}
}

// ToLocationDTOs converts a list of locations
func ToLocationDTOs(locations []*domain.Location) []*LocationDTO {
	dtos := make([]*LocationDTO, 0, len(locations))
	for _, location := range locations {
		dtos = append(dtos, ToLocationDTO(location))
	}
	return dtos
}
