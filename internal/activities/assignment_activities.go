package activities

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/kumbirai/warehouse-management-system-sub012/internal/application"
	"github.com/kumbirai/warehouse-management-system-sub012/internal/domain"
	"github.com/kumbirai/warehouse-management-system-sub012/internal/workflows"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/metrics"
)

// AssignmentActivities contains activities for the stock assignment workflow
type AssignmentActivities struct {
	locationRepo domain.LocationRepository
	batchRepo    domain.AssignmentRepository
	assigner     *application.FEFOAssigner
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// NewAssignmentActivities creates a new AssignmentActivities instance. The
// metrics instance may be nil.
func NewAssignmentActivities(
	locationRepo domain.LocationRepository,
	batchRepo domain.AssignmentRepository,
	assigner *application.FEFOAssigner,
	logger *slog.Logger,
	m *metrics.Metrics,
) *AssignmentActivities {
	return &AssignmentActivities{
		locationRepo: locationRepo,
		batchRepo:    batchRepo,
		assigner:     assigner,
		logger:       logger,
		metrics:      m,
	}
}

// observe records activity start and completion metrics. Call it at activity
// entry and defer the returned func with the activity's error.
func (a *AssignmentActivities) observe(name string) func(errp *error) {
	if a.metrics == nil {
		return func(*error) {}
	}
	a.metrics.RecordActivityStarted(name)
	start := time.Now()
	return func(errp *error) {
		a.metrics.RecordActivityCompleted(name, *errp == nil, time.Since(start))
	}
}

// FetchCandidateLocations snapshots the assignable bin locations for the
// tenant, carrying each location's version so the persist step can detect
// concurrent capacity writers.
func (a *AssignmentActivities) FetchCandidateLocations(ctx context.Context, input workflows.FetchLocationsInput) (result *workflows.FetchLocationsResult, err error) {
	defer a.observe("FetchCandidateLocations")(&err)
	logger := activity.GetLogger(ctx)

	if input.TenantID == "" {
		return nil, temporal.NewApplicationError("tenantId is required", workflows.ErrTypeValidation)
	}

	locations, err := a.locationRepo.FindAssignable(ctx, domain.LocationFilter{
		TenantID:    input.TenantID,
		FacilityID:  input.FacilityID,
		WarehouseID: input.WarehouseID,
	})
	if err != nil {
		logger.Error("Failed to load assignable locations", "tenantId", input.TenantID, "error", err)
		return nil, fmt.Errorf("failed to load assignable locations: %w", err)
	}

	snapshots := make([]workflows.LocationSnapshot, 0, len(locations))
	for _, location := range locations {
		snapshot := workflows.LocationSnapshot{
			LocationID:      location.LocationID,
			CurrentQuantity: location.Capacity.CurrentQuantity.String(),
			Version:         location.Version,
		}
		if location.Capacity.MaximumQuantity != nil {
			maximum := location.Capacity.MaximumQuantity.String()
			snapshot.MaximumQuantity = &maximum
		}
		snapshots = append(snapshots, snapshot)
	}

	logger.Info("Candidate locations fetched", "tenantId", input.TenantID, "count", len(snapshots))
	return &workflows.FetchLocationsResult{Locations: snapshots}, nil
}

// ComputeAssignments runs the expiration-priority matcher over the
// snapshot. Pure compute, no writes.
func (a *AssignmentActivities) ComputeAssignments(ctx context.Context, input workflows.ComputeAssignmentsInput) (result *workflows.ComputeAssignmentsResult, err error) {
	defer a.observe("ComputeAssignments")(&err)
	logger := activity.GetLogger(ctx)

	requests, err := buildRequests(input.Items)
	if err != nil {
		return nil, err
	}
	locations, err := rehydrateLocations(input.Locations)
	if err != nil {
		return nil, err
	}

	placements, err := a.assigner.AssignLocations(requests, locations)
	if err != nil {
		return nil, temporal.NewApplicationError(
			fmt.Sprintf("invalid assignment input: %v", err),
			workflows.ErrTypeValidation,
		)
	}

	logger.Info("Assignments computed", "itemCount", len(input.Items), "placedCount", len(placements))
	return &workflows.ComputeAssignmentsResult{Placements: placements}, nil
}

// PersistAssignments stores the batch together with the location capacity
// updates in one transaction. A version conflict surfaces as a dedicated
// application error so the workflow restarts from a fresh snapshot instead
// of replaying the stale placement.
func (a *AssignmentActivities) PersistAssignments(ctx context.Context, input workflows.PersistAssignmentsInput) (result *workflows.PersistAssignmentsResult, err error) {
	defer a.observe("PersistAssignments")(&err)
	logger := activity.GetLogger(ctx)

	requests, err := buildRequests(input.Items)
	if err != nil {
		return nil, err
	}
	locations, err := rehydrateLocations(input.Locations)
	if err != nil {
		return nil, err
	}

	batch, err := domain.NewAssignmentBatch(input.BatchID, input.TenantID, input.FacilityID, input.WarehouseID, requests)
	if err != nil {
		return nil, temporal.NewApplicationError(err.Error(), workflows.ErrTypeValidation)
	}
	if err := batch.RecordResult(input.Placements); err != nil {
		return nil, temporal.NewApplicationError(err.Error(), workflows.ErrTypeValidation)
	}

	if err := a.batchRepo.Save(ctx, batch, application.BuildLocationUpdates(batch, locations)); err != nil {
		if errors.Is(err, domain.ErrLocationVersionConflict) {
			logger.Warn("Location version conflict while persisting batch", "batchId", input.BatchID)
			return nil, temporal.NewApplicationError(
				"location capacity changed since the snapshot was taken",
				workflows.ErrTypeLocationVersionConflict,
			)
		}
		logger.Error("Failed to save assignment batch", "batchId", input.BatchID, "error", err)
		return nil, fmt.Errorf("failed to save assignment batch: %w", err)
	}

	logger.Info("Assignment batch persisted",
		"batchId", input.BatchID,
		"status", string(batch.Status),
		"assignedCount", batch.AssignedCount(),
		"unassignedCount", batch.UnassignedCount(),
	)

	return &workflows.PersistAssignmentsResult{
		Status:            string(batch.Status),
		AssignedCount:     batch.AssignedCount(),
		UnassignedCount:   batch.UnassignedCount(),
		UnassignedItemIDs: batch.UnassignedItemIDs,
	}, nil
}

// buildRequests converts the wire items into validated domain requests
func buildRequests(items []workflows.StockItem) ([]*domain.StockItemAssignmentRequest, error) {
	requests := make([]*domain.StockItemAssignmentRequest, 0, len(items))
	for _, item := range items {
		quantity, err := decimal.NewFromString(item.Quantity)
		if err != nil {
			return nil, temporal.NewApplicationError(
				fmt.Sprintf("stock item %s: unparseable quantity %q", item.StockItemID, item.Quantity),
				workflows.ErrTypeValidation,
			)
		}
		request, err := domain.NewStockItemAssignmentRequest(
			item.StockItemID,
			quantity,
			item.ExpirationDate,
			domain.Classification(item.Classification),
		)
		if err != nil {
			return nil, temporal.NewApplicationError(
				fmt.Sprintf("stock item %s: %v", item.StockItemID, err),
				workflows.ErrTypeValidation,
			)
		}
		requests = append(requests, request)
	}
	return requests, nil
}

// rehydrateLocations rebuilds assignable locations from the snapshot the
// workflow carries between activities
func rehydrateLocations(snapshots []workflows.LocationSnapshot) ([]*domain.Location, error) {
	locations := make([]*domain.Location, 0, len(snapshots))
	for _, snapshot := range snapshots {
		current, err := decimal.NewFromString(snapshot.CurrentQuantity)
		if err != nil {
			return nil, temporal.NewApplicationError(
				fmt.Sprintf("location %s: unparseable current quantity %q", snapshot.LocationID, snapshot.CurrentQuantity),
				workflows.ErrTypeValidation,
			)
		}
		var maximum *decimal.Decimal
		if snapshot.MaximumQuantity != nil {
			m, err := decimal.NewFromString(*snapshot.MaximumQuantity)
			if err != nil {
				return nil, temporal.NewApplicationError(
					fmt.Sprintf("location %s: unparseable maximum quantity %q", snapshot.LocationID, *snapshot.MaximumQuantity),
					workflows.ErrTypeValidation,
				)
			}
			maximum = &m
		}
		locations = append(locations, &domain.Location{
			LocationID: snapshot.LocationID,
			Type:       domain.LocationTypeBin,
			Status:     domain.LocationStatusAvailable,
			Capacity: domain.LocationCapacity{
				CurrentQuantity: current,
				MaximumQuantity: maximum,
			},
			Version: snapshot.Version,
		})
	}
	return locations, nil
}
