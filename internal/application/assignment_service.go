package application

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.temporal.io/sdk/client"

	"github.com/kumbirai/warehouse-management-system-sub012/internal/domain"
	"github.com/kumbirai/warehouse-management-system-sub012/internal/workflows"
	apperrors "github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/errors"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/logging"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/middleware"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/resilience"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/temporal"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/tenant"
)

const (
	// maxAssignmentAttempts bounds how often the whole fetch-assign-persist
	// cycle is retried when concurrent writers bump location versions.
	maxAssignmentAttempts = 3
	assignmentRetryDelay  = 50 * time.Millisecond
)

// WorkflowStarter starts Temporal workflow executions. The shared Temporal
// client satisfies it.
type WorkflowStarter interface {
	StartWorkflow(ctx context.Context, workflowID string, taskQueue string, workflowName string, args ...interface{}) (client.WorkflowRun, error)
}

// AssignmentService orchestrates stock-to-location assignment: it loads the
// tenant's assignable bins, runs the FEFO matcher over a consistent
// snapshot, and persists the batch together with the location capacity
// updates in one transaction. Version conflicts restart the cycle from a
// fresh snapshot.
type AssignmentService struct {
	assigner        *FEFOAssigner
	batchRepo       domain.AssignmentRepository
	locationRepo    domain.LocationRepository
	temporalClient  WorkflowStarter
	logger          *logging.Logger
	businessMetrics *middleware.BusinessMetrics
}

// NewAssignmentService creates a new AssignmentService. temporalClient may
// be nil when the caller never starts assignment workflows.
func NewAssignmentService(
	assigner *FEFOAssigner,
	batchRepo domain.AssignmentRepository,
	locationRepo domain.LocationRepository,
	temporalClient WorkflowStarter,
	logger *logging.Logger,
	businessMetrics *middleware.BusinessMetrics,
) *AssignmentService {
	return &AssignmentService{
		assigner:        assigner,
		batchRepo:       batchRepo,
		locationRepo:    locationRepo,
		temporalClient:  temporalClient,
		logger:          logger,
		businessMetrics: businessMetrics,
	}
}

// AssignStock assigns a batch of stock items to bin locations and persists
// the outcome. Items that fit nowhere stay unassigned on the batch; that is
// a reportable outcome, not an error.
func (s *AssignmentService) AssignStock(ctx context.Context, cmd AssignStockCommand) (*AssignmentBatchDTO, error) {
	tenantCtx := tenant.FromContextOptional(ctx)
	tenantID := firstNonEmpty(cmd.TenantID, tenantCtx.TenantID)
	facilityID := firstNonEmpty(cmd.FacilityID, tenantCtx.FacilityID)
	warehouseID := firstNonEmpty(cmd.WarehouseID, tenantCtx.WarehouseID)

	if tenantID == "" {
		return nil, apperrors.ErrValidation("tenantId is required")
	}
	if len(cmd.Items) == 0 {
		return nil, apperrors.ErrValidation("at least one stock item is required")
	}

	requests := make([]*domain.StockItemAssignmentRequest, 0, len(cmd.Items))
	for i, input := range cmd.Items {
		request, err := domain.NewStockItemAssignmentRequest(
			input.StockItemID,
			input.Quantity,
			input.ExpirationDate,
			domain.Classification(input.Classification),
		)
		if err != nil {
			return nil, apperrors.ErrValidation(err.Error()).
				WithDetail("index", strconv.Itoa(i)).
				WithDetail("stockItemId", input.StockItemID)
		}
		requests = append(requests, request)
	}

	batchID := "ASG-" + uuid.New().String()[:8]

	// Each attempt runs against a fresh location snapshot; only a version
	// conflict on persist is worth another pass.
	retryConfig := &resilience.RetryConfig{
		MaxAttempts:   maxAssignmentAttempts,
		InitialDelay:  assignmentRetryDelay,
		MaxDelay:      time.Second,
		BackoffFactor: 2,
		Retryable: func(err error) bool {
			return errors.Is(err, domain.ErrLocationVersionConflict)
		},
	}

	attempt := 0
	batch, err := resilience.RetryWithResult(ctx, retryConfig, func() (*domain.AssignmentBatch, error) {
		attempt++

		locations, err := s.locationRepo.FindAssignable(ctx, domain.LocationFilter{
			TenantID:    tenantID,
			FacilityID:  facilityID,
			WarehouseID: warehouseID,
		})
		if err != nil {
			s.logger.WithError(err).Error("Failed to load assignable locations", "tenantId", tenantID)
			return nil, apperrors.ErrInternal("failed to load assignable locations").Wrap(err)
		}

		assignments, err := s.assigner.AssignLocations(requests, locations)
		if err != nil {
			return nil, apperrors.ErrValidation("invalid assignment input").Wrap(err)
		}

		batch, err := domain.NewAssignmentBatch(batchID, tenantID, facilityID, warehouseID, requests)
		if err != nil {
			return nil, apperrors.ErrValidation(err.Error())
		}
		if err := batch.RecordResult(assignments); err != nil {
			return nil, apperrors.ErrInternal("failed to record assignment result").Wrap(err)
		}

		if err := s.batchRepo.Save(ctx, batch, BuildLocationUpdates(batch, locations)); err != nil {
			if errors.Is(err, domain.ErrLocationVersionConflict) {
				s.businessMetrics.RecordAssignmentConflict()
				s.logger.Warn("Location version conflict during assignment",
					"batchId", batchID,
					"attempt", attempt,
					"tenantId", tenantID,
				)
			}
			return nil, err
		}
		return batch, nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrLocationVersionConflict) {
			return nil, apperrors.ErrConflict("concurrent location updates prevented assignment").Wrap(err)
		}
		if appErr, ok := apperrors.AsAppError(err); ok {
			return nil, appErr
		}
		s.logger.WithError(err).Error("Failed to save assignment batch", "batchId", batchID)
		return nil, apperrors.ErrInternal("failed to save assignment batch").Wrap(err)
	}

	s.businessMetrics.RecordBatchAssigned(string(batch.Status))
	s.businessMetrics.RecordItemsAssigned(batch.AssignedCount())
	if unassigned := batch.UnassignedCount(); unassigned > 0 {
		s.businessMetrics.RecordItemsUnassigned(unassigned)
		s.logger.Warn("Stock items left unassigned",
			"batchId", batchID,
			"unassignedCount", unassigned,
			"tenantId", tenantID,
		)
	}

	s.logger.Info("Stock assignment completed",
		"batchId", batchID,
		"status", string(batch.Status),
		"assignedCount", batch.AssignedCount(),
		"unassignedCount", batch.UnassignedCount(),
		"tenantId", tenantID,
	)

	return ToAssignmentBatchDTO(batch), nil
}

// StartAssignmentWorkflow validates the command and hands it to the stock
// assignment workflow for asynchronous processing. The batch id is minted
// here so the caller can poll for the batch before the workflow persists it.
func (s *AssignmentService) StartAssignmentWorkflow(ctx context.Context, cmd AssignStockCommand) (*AssignmentWorkflowStartDTO, error) {
	tenantCtx := tenant.FromContextOptional(ctx)
	tenantID := firstNonEmpty(cmd.TenantID, tenantCtx.TenantID)
	facilityID := firstNonEmpty(cmd.FacilityID, tenantCtx.FacilityID)
	warehouseID := firstNonEmpty(cmd.WarehouseID, tenantCtx.WarehouseID)

	if tenantID == "" {
		return nil, apperrors.ErrValidation("tenantId is required")
	}
	if len(cmd.Items) == 0 {
		return nil, apperrors.ErrValidation("at least one stock item is required")
	}
	if s.temporalClient == nil {
		return nil, apperrors.ErrInternal("workflow client is not configured")
	}

	items := make([]workflows.StockItem, 0, len(cmd.Items))
	for i, input := range cmd.Items {
		// Reject invalid items before they reach workflow history.
		_, err := domain.NewStockItemAssignmentRequest(
			input.StockItemID,
			input.Quantity,
			input.ExpirationDate,
			domain.Classification(input.Classification),
		)
		if err != nil {
			return nil, apperrors.ErrValidation(err.Error()).
				WithDetail("index", strconv.Itoa(i)).
				WithDetail("stockItemId", input.StockItemID)
		}
		items = append(items, workflows.StockItem{
			StockItemID:    input.StockItemID,
			Quantity:       input.Quantity.String(),
			ExpirationDate: input.ExpirationDate,
			Classification: input.Classification,
		})
	}

	batchID := "ASG-" + uuid.New().String()[:8]
	workflowID := "stock-assignment-" + batchID

	run, err := s.temporalClient.StartWorkflow(
		ctx,
		workflowID,
		temporal.TaskQueues.Assignment,
		temporal.WorkflowNames.StockAssignment,
		workflows.StockAssignmentInput{
			BatchID:     batchID,
			Items:       items,
			TenantID:    tenantID,
			FacilityID:  facilityID,
			WarehouseID: warehouseID,
		},
	)
	if err != nil {
		s.logger.WithError(err).Error("Failed to start assignment workflow", "workflowId", workflowID)
		return nil, apperrors.ErrInternal("failed to start assignment workflow").Wrap(err)
	}

	s.businessMetrics.RecordWorkflowStarted(temporal.WorkflowNames.StockAssignment)
	s.logger.Info("Started assignment workflow",
		"workflowId", workflowID,
		"runId", run.GetRunID(),
		"batchId", batchID,
		"itemCount", len(items),
		"tenantId", tenantID,
	)

	return &AssignmentWorkflowStartDTO{
		BatchID:    batchID,
		WorkflowID: workflowID,
		RunID:      run.GetRunID(),
	}, nil
}

// BuildLocationUpdates collapses the batch's per-item placements into one
// capacity update per location, carrying the version observed in the
// snapshot so the repository can detect concurrent writers. The workflow
// activities reuse it so both persistence paths apply identical updates.
func BuildLocationUpdates(batch *domain.AssignmentBatch, locations []*domain.Location) []domain.LocationUpdate {
	versions := make(map[string]int, len(locations))
	for _, location := range locations {
		versions[location.LocationID] = location.Version
	}

	totals := make(map[string]decimal.Decimal)
	order := make([]string, 0)
	for _, assignment := range batch.Assignments {
		if _, seen := totals[assignment.LocationID]; !seen {
			order = append(order, assignment.LocationID)
		}
		totals[assignment.LocationID] = totals[assignment.LocationID].Add(assignment.Quantity)
	}

	updates := make([]domain.LocationUpdate, 0, len(order))
	for _, locationID := range order {
		updates = append(updates, domain.LocationUpdate{
			LocationID:      locationID,
			Quantity:        totals[locationID],
			ExpectedVersion: versions[locationID],
		})
	}
	return updates
}

// GetBatch retrieves an assignment batch by ID
func (s *AssignmentService) GetBatch(ctx context.Context, batchID string) (*AssignmentBatchDTO, error) {
	batch, err := s.batchRepo.FindByID(ctx, batchID)
	if err != nil {
		if errors.Is(err, domain.ErrBatchNotFound) {
			return nil, apperrors.ErrNotFoundWithID("assignment batch", batchID)
		}
		return nil, apperrors.ErrInternal("failed to find assignment batch").Wrap(err)
	}
	return ToAssignmentBatchDTO(batch), nil
}

// ListBatches retrieves assignment batches by status for the tenant in
// context
func (s *AssignmentService) ListBatches(ctx context.Context, status string, pagination domain.Pagination) ([]*AssignmentBatchDTO, int64, error) {
	tenantCtx := tenant.FromContextOptional(ctx)
	if tenantCtx.TenantID == "" {
		return nil, 0, apperrors.ErrValidation("tenantId is required")
	}

	batchStatus := domain.BatchStatus(status)
	if !batchStatus.IsValid() {
		return nil, 0, apperrors.ErrValidation("invalid batch status").WithDetail("status", status)
	}

	batches, err := s.batchRepo.FindByStatus(ctx, tenantCtx.TenantID, batchStatus, pagination)
	if err != nil {
		return nil, 0, apperrors.ErrInternal("failed to list assignment batches").Wrap(err)
	}

	total, err := s.batchRepo.Count(ctx, domain.BatchFilter{
		TenantID: tenantCtx.TenantID,
		Status:   &batchStatus,
	})
	if err != nil {
		return nil, 0, apperrors.ErrInternal("failed to count assignment batches").Wrap(err)
	}

	return ToAssignmentBatchDTOs(batches), total, nil
}
