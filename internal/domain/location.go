package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Location errors
var (
	ErrLocationNotFound        = errors.New("location not found")
	ErrLocationAlreadyExists   = errors.New("location already exists")
	ErrBlankLocationID         = errors.New("location id must not be blank")
	ErrInvalidLocationType     = errors.New("invalid location type")
	ErrInvalidLocationStatus   = errors.New("invalid location status")
	ErrLocationBlocked         = errors.New("location is blocked")
	ErrLocationNotBlocked      = errors.New("location is not blocked")
	ErrNegativeQuantity        = errors.New("capacity quantities must not be negative")
	ErrMaximumBelowCurrent     = errors.New("maximum quantity must not be below current quantity")
	ErrCapacityExceeded        = errors.New("location capacity exceeded")
	ErrLocationVersionConflict = errors.New("location modified concurrently")
)

// LocationType represents a level of the warehouse location hierarchy.
// Only BIN-level locations hold stock directly.
type LocationType string

const (
	LocationTypeWarehouse LocationType = "WAREHOUSE"
	LocationTypeZone      LocationType = "ZONE"
	LocationTypeAisle     LocationType = "AISLE"
	LocationTypeRack      LocationType = "RACK"
	LocationTypeBin       LocationType = "BIN"
)

// IsValid checks if the location type is valid
func (t LocationType) IsValid() bool {
	switch t {
	case LocationTypeWarehouse, LocationTypeZone, LocationTypeAisle,
		LocationTypeRack, LocationTypeBin:
		return true
	default:
		return false
	}
}

// LocationStatus represents the operational status of a location
type LocationStatus string

const (
	LocationStatusAvailable LocationStatus = "available"
	LocationStatusBlocked   LocationStatus = "blocked"
)

// IsValid checks if the status is valid
func (s LocationStatus) IsValid() bool {
	switch s {
	case LocationStatusAvailable, LocationStatusBlocked:
		return true
	default:
		return false
	}
}

// LocationCapacity tracks how much stock a location holds. A nil maximum
// means the location is unbounded.
type LocationCapacity struct {
	CurrentQuantity decimal.Decimal  `bson:"currentQuantity" json:"currentQuantity"`
	MaximumQuantity *decimal.Decimal `bson:"maximumQuantity,omitempty" json:"maximumQuantity,omitempty"`
}

// NewLocationCapacity validates and constructs a capacity value
func NewLocationCapacity(current decimal.Decimal, maximum *decimal.Decimal) (LocationCapacity, error) {
	if current.IsNegative() {
		return LocationCapacity{}, ErrNegativeQuantity
	}
	if maximum != nil {
		if maximum.IsNegative() {
			return LocationCapacity{}, ErrNegativeQuantity
		}
		if maximum.LessThan(current) {
			return LocationCapacity{}, ErrMaximumBelowCurrent
		}
		m := *maximum
		maximum = &m
	}
	return LocationCapacity{CurrentQuantity: current, MaximumQuantity: maximum}, nil
}

// IsUnlimited reports whether the location has no maximum quantity
func (c LocationCapacity) IsUnlimited() bool {
	return c.MaximumQuantity == nil
}

// Available returns the remaining capacity, or nil when unbounded
func (c LocationCapacity) Available() *decimal.Decimal {
	if c.MaximumQuantity == nil {
		return nil
	}
	available := c.MaximumQuantity.Sub(c.CurrentQuantity)
	return &available
}

// CanAccommodate checks whether the given quantity fits in the remaining
// capacity
func (c LocationCapacity) CanAccommodate(quantity decimal.Decimal) bool {
	if c.MaximumQuantity == nil {
		return true
	}
	return c.MaximumQuantity.Sub(c.CurrentQuantity).GreaterThanOrEqual(quantity)
}

// Location represents a storage location in the warehouse hierarchy.
// BIN-level locations are the only valid assignment targets; upper levels
// exist to structure the hierarchy.
type Location struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	LocationID   string             `bson:"locationId" json:"locationId"`
	Type         LocationType       `bson:"type" json:"type"`
	Status       LocationStatus     `bson:"status" json:"status"`
	BinCode      BinCode            `bson:"binCode,omitempty" json:"binCode,omitempty"`
	ParentID     string             `bson:"parentId,omitempty" json:"parentId,omitempty"`
	Capacity     LocationCapacity   `bson:"capacity" json:"capacity"`
	TenantID     string             `bson:"tenantId" json:"tenantId"`
	FacilityID   string             `bson:"facilityId" json:"facilityId"`
	WarehouseID  string             `bson:"warehouseId" json:"warehouseId"`
	Version      int                `bson:"version" json:"version"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
	DomainEvents []DomainEvent      `bson:"-" json:"-"`
}

// NewLocation creates a new location with version 1 and available status
func NewLocation(
	locationID string,
	locationType LocationType,
	capacity LocationCapacity,
	tenantID, facilityID, warehouseID string,
) (*Location, error) {
	if strings.TrimSpace(locationID) == "" {
		return nil, ErrBlankLocationID
	}
	if !locationType.IsValid() {
		return nil, ErrInvalidLocationType
	}

	now := time.Now().UTC()
	location := &Location{
		ID:           primitive.NewObjectID(),
		LocationID:   locationID,
		Type:         locationType,
		Status:       LocationStatusAvailable,
		Capacity:     capacity,
		TenantID:     tenantID,
		FacilityID:   facilityID,
		WarehouseID:  warehouseID,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
		DomainEvents: make([]DomainEvent, 0),
	}

	location.addDomainEvent(&LocationCreatedEvent{
		LocationID:  locationID,
		Type:        string(locationType),
		TenantID:    tenantID,
		WarehouseID: warehouseID,
		CreatedAt:   now,
	})

	return location, nil
}

// SetBinCode attaches a structured bin code; only meaningful for BIN level
func (l *Location) SetBinCode(code BinCode) error {
	if l.Type != LocationTypeBin {
		return ErrInvalidLocationType
	}
	l.BinCode = code
	l.UpdatedAt = time.Now().UTC()
	return nil
}

// IsAssignable reports whether the location may receive stock: it must be a
// BIN and not blocked
func (l *Location) IsAssignable() bool {
	return l.Type == LocationTypeBin && l.Status == LocationStatusAvailable
}

// AvailableCapacity returns the remaining capacity, or nil when unbounded
func (l *Location) AvailableCapacity() *decimal.Decimal {
	return l.Capacity.Available()
}

// CanAccommodate checks whether the given quantity fits
func (l *Location) CanAccommodate(quantity decimal.Decimal) bool {
	return l.Capacity.CanAccommodate(quantity)
}

// CommitStock increases the current quantity after a successful placement
func (l *Location) CommitStock(quantity decimal.Decimal) error {
	if !quantity.IsPositive() {
		return ErrNonPositiveQuantity
	}
	if !l.Capacity.CanAccommodate(quantity) {
		return ErrCapacityExceeded
	}

	now := time.Now().UTC()
	l.Capacity.CurrentQuantity = l.Capacity.CurrentQuantity.Add(quantity)
	l.UpdatedAt = now

	l.addDomainEvent(&LocationCapacityChangedEvent{
		LocationID:      l.LocationID,
		Delta:           quantity,
		CurrentQuantity: l.Capacity.CurrentQuantity,
		TenantID:        l.TenantID,
		ChangedAt:       now,
	})

	return nil
}

// Block takes the location out of the candidate pool
func (l *Location) Block(reason string) error {
	if l.Status == LocationStatusBlocked {
		return ErrLocationBlocked
	}

	now := time.Now().UTC()
	l.Status = LocationStatusBlocked
	l.UpdatedAt = now

	l.addDomainEvent(&LocationBlockedEvent{
		LocationID: l.LocationID,
		Reason:     reason,
		TenantID:   l.TenantID,
		BlockedAt:  now,
	})

	return nil
}

// Unblock returns the location to the candidate pool
func (l *Location) Unblock() error {
	if l.Status != LocationStatusBlocked {
		return ErrLocationNotBlocked
	}

	now := time.Now().UTC()
	l.Status = LocationStatusAvailable
	l.UpdatedAt = now

	l.addDomainEvent(&LocationUnblockedEvent{
		LocationID:  l.LocationID,
		TenantID:    l.TenantID,
		UnblockedAt: now,
	})

	return nil
}

// Validate re-checks the invariants a well-formed location satisfies
func (l *Location) Validate() error {
	if strings.TrimSpace(l.LocationID) == "" {
		return ErrBlankLocationID
	}
	if !l.Type.IsValid() {
		return ErrInvalidLocationType
	}
	if l.Capacity.CurrentQuantity.IsNegative() {
		return ErrNegativeQuantity
	}
	if l.Capacity.MaximumQuantity != nil && l.Capacity.MaximumQuantity.IsNegative() {
		return ErrNegativeQuantity
	}
	return nil
}

// addDomainEvent adds a domain event
func (l *Location) addDomainEvent(event DomainEvent) {
	l.DomainEvents = append(l.DomainEvents, event)
}

// GetDomainEvents returns all domain events
func (l *Location) GetDomainEvents() []DomainEvent {
	return l.DomainEvents
}

// ClearDomainEvents clears all domain events
func (l *Location) ClearDomainEvents() {
	l.DomainEvents = make([]DomainEvent, 0)
}
