package workflows

import (
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// Application error types activities raise to steer workflow retries.
// Both are non-retryable at the activity level: validation can never
// succeed on retry, and a version conflict needs a fresh snapshot rather
// than a blind re-run of the persist step.
const (
	ErrTypeValidation              = "ValidationError"
	ErrTypeLocationVersionConflict = "LocationVersionConflict"
)

// maxSnapshotAttempts bounds how often the workflow restarts the
// fetch-compute-persist cycle when concurrent writers invalidate the
// location snapshot.
const maxSnapshotAttempts = 3

// StockAssignmentInput represents the input for the stock assignment workflow
type StockAssignmentInput struct {
	BatchID string      `json:"batchId"`
	Items   []StockItem `json:"items"`
	// Multi-tenant context
	TenantID    string `json:"tenantId"`
	FacilityID  string `json:"facilityId"`
	WarehouseID string `json:"warehouseId"`
}

// StockItem is one stock item to place. Quantities travel as decimal
// strings so workflow history never loses precision to float encoding.
type StockItem struct {
	StockItemID    string     `json:"stockItemId"`
	Quantity       string     `json:"quantity"`
	ExpirationDate *time.Time `json:"expirationDate,omitempty"`
	Classification string     `json:"classification"`
}

// FetchLocationsInput scopes the candidate location snapshot
type FetchLocationsInput struct {
	TenantID    string `json:"tenantId"`
	FacilityID  string `json:"facilityId"`
	WarehouseID string `json:"warehouseId"`
}

// LocationSnapshot is one assignable location as observed when the
// snapshot was taken, including the version the persist step must verify.
type LocationSnapshot struct {
	LocationID      string  `json:"locationId"`
	CurrentQuantity string  `json:"currentQuantity"`
	MaximumQuantity *string `json:"maximumQuantity,omitempty"`
	Version         int     `json:"version"`
}

// FetchLocationsResult carries the ordered candidate snapshot
type FetchLocationsResult struct {
	Locations []LocationSnapshot `json:"locations"`
}

// ComputeAssignmentsInput feeds the placement computation
type ComputeAssignmentsInput struct {
	Items     []StockItem        `json:"items"`
	Locations []LocationSnapshot `json:"locations"`
}

// ComputeAssignmentsResult maps stock item ids to the location each one
// should land in; items that fit nowhere are absent.
type ComputeAssignmentsResult struct {
	Placements map[string]string `json:"placements"`
}

// PersistAssignmentsInput carries everything the persist step needs to
// write the batch and the capacity updates in one transaction.
type PersistAssignmentsInput struct {
	BatchID     string             `json:"batchId"`
	TenantID    string             `json:"tenantId"`
	FacilityID  string             `json:"facilityId"`
	WarehouseID string             `json:"warehouseId"`
	Items       []StockItem        `json:"items"`
	Placements  map[string]string  `json:"placements"`
	Locations   []LocationSnapshot `json:"locations"`
}

// PersistAssignmentsResult summarizes the stored batch
type PersistAssignmentsResult struct {
	Status            string   `json:"status"`
	AssignedCount     int      `json:"assignedCount"`
	UnassignedCount   int      `json:"unassignedCount"`
	UnassignedItemIDs []string `json:"unassignedItemIds,omitempty"`
}

// StockAssignmentResult represents the result of the stock assignment
// workflow
type StockAssignmentResult struct {
	BatchID           string            `json:"batchId"`
	Status            string            `json:"status"`
	Placements        map[string]string `json:"placements,omitempty"`
	AssignedCount     int               `json:"assignedCount"`
	UnassignedCount   int               `json:"unassignedCount"`
	UnassignedItemIDs []string          `json:"unassignedItemIds,omitempty"`
	Attempts          int               `json:"attempts"`
	Success           bool              `json:"success"`
	Error             string            `json:"error,omitempty"`
}

// StockAssignmentWorkflow places a batch of stock items into bin locations.
// Each cycle snapshots the assignable locations, computes placements with
// expiration priority and persists batch plus capacity updates atomically.
// When the persist step reports that a location version moved underneath
// the snapshot, the cycle restarts from a fresh snapshot; retrying the
// persist step alone would just replay the stale placement.
// Using typed struct input to ensure determinism and type safety
func StockAssignmentWorkflow(ctx workflow.Context, input StockAssignmentInput) (*StockAssignmentResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting stock assignment workflow",
		"batchId", input.BatchID,
		"itemCount", len(input.Items),
		"tenantId", input.TenantID,
	)

	result := &StockAssignmentResult{
		BatchID: input.BatchID,
		Success: false,
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
			NonRetryableErrorTypes: []string{
				ErrTypeValidation,
				ErrTypeLocationVersionConflict,
			},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var lastConflict error
	for attempt := 1; attempt <= maxSnapshotAttempts; attempt++ {
		// Step 1: Snapshot assignable locations
		var snapshot FetchLocationsResult
		err := workflow.ExecuteActivity(ctx, "FetchCandidateLocations", FetchLocationsInput{
			TenantID:    input.TenantID,
			FacilityID:  input.FacilityID,
			WarehouseID: input.WarehouseID,
		}).Get(ctx, &snapshot)
		if err != nil {
			result.Error = fmt.Sprintf("failed to fetch candidate locations: %v", err)
			return result, err
		}

		// Step 2: Compute placements over the snapshot
		var placement ComputeAssignmentsResult
		err = workflow.ExecuteActivity(ctx, "ComputeAssignments", ComputeAssignmentsInput{
			Items:     input.Items,
			Locations: snapshot.Locations,
		}).Get(ctx, &placement)
		if err != nil {
			result.Error = fmt.Sprintf("failed to compute assignments: %v", err)
			return result, err
		}

		// Step 3: Persist batch and capacity updates atomically
		var persisted PersistAssignmentsResult
		err = workflow.ExecuteActivity(ctx, "PersistAssignments", PersistAssignmentsInput{
			BatchID:     input.BatchID,
			TenantID:    input.TenantID,
			FacilityID:  input.FacilityID,
			WarehouseID: input.WarehouseID,
			Items:       input.Items,
			Placements:  placement.Placements,
			Locations:   snapshot.Locations,
		}).Get(ctx, &persisted)
		if err == nil {
			result.Status = persisted.Status
			result.Placements = placement.Placements
			result.AssignedCount = persisted.AssignedCount
			result.UnassignedCount = persisted.UnassignedCount
			result.UnassignedItemIDs = persisted.UnassignedItemIDs
			result.Attempts = attempt
			result.Success = true

			logger.Info("Stock assignment workflow completed",
				"batchId", input.BatchID,
				"status", persisted.Status,
				"assignedCount", persisted.AssignedCount,
				"unassignedCount", persisted.UnassignedCount,
				"attempts", attempt,
			)
			return result, nil
		}

		var applicationErr *temporal.ApplicationError
		if errors.As(err, &applicationErr) && applicationErr.Type() == ErrTypeLocationVersionConflict {
			logger.Warn("Location snapshot went stale, restarting cycle",
				"batchId", input.BatchID,
				"attempt", attempt,
			)
			lastConflict = err
			continue
		}

		result.Error = fmt.Sprintf("failed to persist assignments: %v", err)
		return result, err
	}

	result.Attempts = maxSnapshotAttempts
	result.Error = "concurrent location updates prevented assignment"
	logger.Error("Stock assignment workflow exhausted snapshot attempts",
		"batchId", input.BatchID,
		"attempts", maxSnapshotAttempts,
	)
	return result, lastConflict
}
