package application

import (
	"context"
	"errors"

	"github.com/kumbirai/warehouse-management-system-sub012/internal/domain"
	apperrors "github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/errors"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/logging"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/middleware"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/tenant"
)

// LocationService implements the application layer for location management
type LocationService struct {
	locationRepo    domain.LocationRepository
	logger          *logging.Logger
	businessMetrics *middleware.BusinessMetrics
}

// NewLocationService creates a new LocationService
func NewLocationService(locationRepo domain.LocationRepository, logger *logging.Logger, businessMetrics *middleware.BusinessMetrics) *LocationService {
	return &LocationService{
		locationRepo:    locationRepo,
		logger:          logger,
		businessMetrics: businessMetrics,
	}
}

// RegisterLocation registers a new location in the warehouse hierarchy
func (s *LocationService) RegisterLocation(ctx context.Context, cmd RegisterLocationCommand) (*LocationDTO, error) {
	tenantCtx := tenant.FromContextOptional(ctx)
	tenantID := firstNonEmpty(cmd.TenantID, tenantCtx.TenantID)
	facilityID := firstNonEmpty(cmd.FacilityID, tenantCtx.FacilityID)
	warehouseID := firstNonEmpty(cmd.WarehouseID, tenantCtx.WarehouseID)

	if tenantID == "" {
		return nil, apperrors.ErrValidation("tenantId is required")
	}

	capacity, err := domain.NewLocationCapacity(cmd.CurrentQuantity, cmd.MaximumQuantity)
	if err != nil {
		return nil, apperrors.ErrValidation(err.Error())
	}

	location, err := domain.NewLocation(
		cmd.LocationID,
		domain.LocationType(cmd.Type),
		capacity,
		tenantID,
		facilityID,
		warehouseID,
	)
	if err != nil {
		return nil, apperrors.ErrValidation(err.Error())
	}
	location.ParentID = cmd.ParentID

	if cmd.BinCode != "" {
		code, err := domain.ParseBinCode(cmd.BinCode)
		if err != nil {
			return nil, apperrors.ErrValidation(err.Error()).WithDetail("binCode", cmd.BinCode)
		}
		if err := location.SetBinCode(code); err != nil {
			return nil, apperrors.ErrValidation("bin codes apply to BIN locations only")
		}
	}

	if err := s.locationRepo.Create(ctx, location); err != nil {
		if errors.Is(err, domain.ErrLocationAlreadyExists) {
			return nil, apperrors.ErrConflict("location already exists").WithDetail("locationId", cmd.LocationID)
		}
		s.logger.WithError(err).Error("Failed to create location", "locationId", cmd.LocationID)
		return nil, apperrors.ErrInternal("failed to create location").Wrap(err)
	}

	s.businessMetrics.RecordLocationRegistered(string(location.Type))
	s.logger.Info("Registered location",
		"locationId", location.LocationID,
		"type", string(location.Type),
		"tenantId", tenantID,
	)

	return ToLocationDTO(location), nil
}

// GetLocation retrieves a location by ID
func (s *LocationService) GetLocation(ctx context.Context, locationID string) (*LocationDTO, error) {
	location, err := s.locationRepo.FindByID(ctx, locationID)
	if err != nil {
		if errors.Is(err, domain.ErrLocationNotFound) {
			return nil, apperrors.ErrNotFoundWithID("location", locationID)
		}
		return nil, apperrors.ErrInternal("failed to find location").Wrap(err)
	}
	return ToLocationDTO(location), nil
}

// ListLocations retrieves locations filtered by type and status
func (s *LocationService) ListLocations(ctx context.Context, locationType, status string, pagination domain.Pagination) ([]*LocationDTO, int64, error) {
	tenantCtx := tenant.FromContextOptional(ctx)
	if tenantCtx.TenantID == "" {
		return nil, 0, apperrors.ErrValidation("tenantId is required")
	}

	filter := domain.LocationFilter{
		TenantID:    tenantCtx.TenantID,
		FacilityID:  tenantCtx.FacilityID,
		WarehouseID: tenantCtx.WarehouseID,
	}
	if locationType != "" {
		t := domain.LocationType(locationType)
		if !t.IsValid() {
			return nil, 0, apperrors.ErrValidation("invalid location type").WithDetail("type", locationType)
		}
		filter.Type = &t
	}
	if status != "" {
		st := domain.LocationStatus(status)
		if !st.IsValid() {
			return nil, 0, apperrors.ErrValidation("invalid location status").WithDetail("status", status)
		}
		filter.Status = &st
	}

	locations, err := s.locationRepo.List(ctx, filter, pagination)
	if err != nil {
		return nil, 0, apperrors.ErrInternal("failed to list locations").Wrap(err)
	}

	total, err := s.locationRepo.Count(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.ErrInternal("failed to count locations").Wrap(err)
	}

	return ToLocationDTOs(locations), total, nil
}

// BlockLocation takes a location out of the assignable pool
func (s *LocationService) BlockLocation(ctx context.Context, cmd BlockLocationCommand) (*LocationDTO, error) {
	location, err := s.findLocation(ctx, cmd.LocationID)
	if err != nil {
		return nil, err
	}

	if err := location.Block(cmd.Reason); err != nil {
		return nil, apperrors.ErrConflict("location is already blocked")
	}

	if err := s.saveLocation(ctx, location); err != nil {
		return nil, err
	}

	s.logger.Info("Blocked location", "locationId", cmd.LocationID, "reason", cmd.Reason)
	return ToLocationDTO(location), nil
}

// UnblockLocation returns a blocked location to the assignable pool
func (s *LocationService) UnblockLocation(ctx context.Context, locationID string) (*LocationDTO, error) {
	location, err := s.findLocation(ctx, locationID)
	if err != nil {
		return nil, err
	}

	if err := location.Unblock(); err != nil {
		return nil, apperrors.ErrConflict("location is not blocked")
	}

	if err := s.saveLocation(ctx, location); err != nil {
		return nil, err
	}

	s.logger.Info("Unblocked location", "locationId", locationID)
	return ToLocationDTO(location), nil
}

func (s *LocationService) findLocation(ctx context.Context, locationID string) (*domain.Location, error) {
	location, err := s.locationRepo.FindByID(ctx, locationID)
	if err != nil {
		if errors.Is(err, domain.ErrLocationNotFound) {
			return nil, apperrors.ErrNotFoundWithID("location", locationID)
		}
		return nil, apperrors.ErrInternal("failed to find location").Wrap(err)
	}
	return location, nil
}

func (s *LocationService) saveLocation(ctx context.Context, location *domain.Location) error {
	if err := s.locationRepo.Save(ctx, location); err != nil {
		if errors.Is(err, domain.ErrLocationVersionConflict) {
			return apperrors.ErrConflict("location was modified concurrently").Wrap(err)
		}
		s.logger.WithError(err).Error("Failed to save location", "locationId", location.LocationID)
		return apperrors.ErrInternal("failed to save location").Wrap(err)
	}
	return nil
}
