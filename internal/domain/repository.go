package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// LocationFilter narrows location queries. Tenant scoping is mandatory;
// everything else is optional.
type LocationFilter struct {
	TenantID     string
	FacilityID   string
	WarehouseID  string
	Type         *LocationType
	Status       *LocationStatus
	MinAvailable *decimal.Decimal
}

// BatchFilter narrows assignment batch queries
type BatchFilter struct {
	TenantID string
	Status   *BatchStatus
}

// Pagination for list queries
type Pagination struct {
	Page     int64
	PageSize int64
}

// DefaultPagination returns the default pagination settings
func DefaultPagination() Pagination {
	return Pagination{Page: 1, PageSize: 20}
}

// Skip returns the number of documents to skip
func (p Pagination) Skip() int64 {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}

// Limit returns the page size
func (p Pagination) Limit() int64 {
	if p.PageSize < 1 {
		return 20
	}
	return p.PageSize
}

// LocationUpdate captures the capacity delta to apply to one location
// together with the version observed when the candidate snapshot was taken.
// The persistence layer must refuse the update when the stored version has
// moved on, so overlapping assignment runs cannot double-book a bin.
type LocationUpdate struct {
	LocationID      string
	Quantity        decimal.Decimal
	ExpectedVersion int
}

// LocationRepository provides access to warehouse locations
type LocationRepository interface {
	// Create inserts a new location and its pending domain events atomically.
	// It returns ErrLocationAlreadyExists when the location id is taken.
	Create(ctx context.Context, location *Location) error
	// Save persists changes to an existing location and its pending domain
	// events atomically. It returns ErrLocationVersionConflict when the
	// stored version differs from the one the caller loaded.
	Save(ctx context.Context, location *Location) error
	FindByID(ctx context.Context, locationID string) (*Location, error)
	// FindAssignable returns locations eligible as assignment targets,
	// ordered deterministically by location id
	FindAssignable(ctx context.Context, filter LocationFilter) ([]*Location, error)
	List(ctx context.Context, filter LocationFilter, pagination Pagination) ([]*Location, error)
	Count(ctx context.Context, filter LocationFilter) (int64, error)
}

// AssignmentRepository persists assignment batches
type AssignmentRepository interface {
	// Save persists the batch, applies every location capacity update and
	// stores the batch's domain events in one transaction. It returns
	// ErrLocationVersionConflict when any location changed since the
	// snapshot was read; the caller retries the whole compute-then-persist
	// cycle in that case.
	Save(ctx context.Context, batch *AssignmentBatch, updates []LocationUpdate) error
	FindByID(ctx context.Context, batchID string) (*AssignmentBatch, error)
	FindByStatus(ctx context.Context, tenantID string, status BatchStatus, pagination Pagination) ([]*AssignmentBatch, error)
	Count(ctx context.Context, filter BatchFilter) (int64, error)
}
