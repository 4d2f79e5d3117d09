package application

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kumbirai/warehouse-management-system-sub012/internal/domain"
	apperrors "github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/errors"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/metrics"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/middleware"
)

func newTestLocationService(repo *fakeLocationRepo) *LocationService {
	businessMetrics := middleware.NewBusinessMetrics(metrics.New(metrics.DefaultConfig("test")))
	return NewLocationService(repo, testLogger(), businessMetrics)
}

func TestLocationService_RegisterLocation(t *testing.T) {
	maximum := decimal.NewFromInt(50)

	tests := []struct {
		name        string
		ctx         context.Context
		cmd         RegisterLocationCommand
		wantErr     bool
		errContains string
	}{
		{
			name: "Register bin with code and capacity",
			ctx:  tenantContext(),
			cmd: RegisterLocationCommand{
				LocationID:      "BIN-100",
				Type:            "BIN",
				ParentID:        "RACK-01",
				BinCode:         "A-01-R05-L02-B07",
				CurrentQuantity: decimal.Zero,
				MaximumQuantity: &maximum,
			},
		},
		{
			name: "Register unbounded zone",
			ctx:  tenantContext(),
			cmd: RegisterLocationCommand{
				LocationID:      "ZONE-A",
				Type:            "ZONE",
				CurrentQuantity: decimal.Zero,
			},
		},
		{
			name: "Invalid hierarchy type",
			ctx:  tenantContext(),
			cmd: RegisterLocationCommand{
				LocationID:      "LOC-100",
				Type:            "SHELF",
				CurrentQuantity: decimal.Zero,
			},
			wantErr:     true,
			errContains: "invalid location type",
		},
		{
			name: "Bin code on non-bin level",
			ctx:  tenantContext(),
			cmd: RegisterLocationCommand{
				LocationID:      "ZONE-B",
				Type:            "ZONE",
				BinCode:         "A-01-R05-L02-B07",
				CurrentQuantity: decimal.Zero,
			},
			wantErr:     true,
			errContains: "bin codes apply to BIN locations only",
		},
		{
			name: "Malformed bin code",
			ctx:  tenantContext(),
			cmd: RegisterLocationCommand{
				LocationID:      "BIN-101",
				Type:            "BIN",
				BinCode:         "not-a-bin-code",
				CurrentQuantity: decimal.Zero,
			},
			wantErr:     true,
			errContains: "invalid bin code",
		},
		{
			name: "Maximum below current",
			ctx:  tenantContext(),
			cmd: RegisterLocationCommand{
				LocationID:      "BIN-102",
				Type:            "BIN",
				CurrentQuantity: decimal.NewFromInt(60),
				MaximumQuantity: &maximum,
			},
			wantErr:     true,
			errContains: "maximum quantity must not be below current quantity",
		},
		{
			name: "Missing tenant",
			ctx:  context.Background(),
			cmd: RegisterLocationCommand{
				LocationID:      "BIN-103",
				Type:            "BIN",
				CurrentQuantity: decimal.Zero,
			},
			wantErr:     true,
			errContains: "tenantId is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeLocationRepo()
			service := newTestLocationService(repo)

			result, err := service.RegisterLocation(tt.ctx, tt.cmd)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				assert.Nil(t, result)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, result)
			assert.Equal(t, tt.cmd.LocationID, result.LocationID)
			assert.Equal(t, tt.cmd.Type, result.Type)
			assert.Equal(t, "available", result.Status)
			assert.Equal(t, "TENANT-001", result.TenantID)
			assert.Equal(t, 1, result.Version)

			_, ok := repo.locations[tt.cmd.LocationID]
			assert.True(t, ok)
		})
	}
}

func TestLocationService_RegisterLocation_Duplicate(t *testing.T) {
	repo := newFakeLocationRepo()
	service := newTestLocationService(repo)

	cmd := RegisterLocationCommand{
		LocationID:      "BIN-100",
		Type:            "BIN",
		CurrentQuantity: decimal.Zero,
	}

	_, err := service.RegisterLocation(tenantContext(), cmd)
	require.NoError(t, err)

	_, err = service.RegisterLocation(tenantContext(), cmd)
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeConflict, appErr.Code)
}

func TestLocationService_GetLocation(t *testing.T) {
	repo := newFakeLocationRepo(newTestBin(t, "BIN-001", "3", "10"))
	service := newTestLocationService(repo)

	result, err := service.GetLocation(context.Background(), "BIN-001")
	require.NoError(t, err)
	assert.Equal(t, "BIN-001", result.LocationID)
	assert.Equal(t, "3", result.CurrentQuantity)
	require.NotNil(t, result.MaximumQuantity)
	assert.Equal(t, "10", *result.MaximumQuantity)

	_, err = service.GetLocation(context.Background(), "BIN-404")
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeNotFound, appErr.Code)
}

func TestLocationService_ListLocations(t *testing.T) {
	zone, err := domain.NewLocation("ZONE-A", domain.LocationTypeZone, domain.LocationCapacity{}, "TENANT-001", "FAC-001", "WH-001")
	require.NoError(t, err)

	repo := newFakeLocationRepo(
		newTestBin(t, "BIN-001", "0", "10"),
		newTestBin(t, "BIN-002", "0", "10"),
		zone,
	)
	service := newTestLocationService(repo)

	results, total, err := service.ListLocations(tenantContext(), "BIN", "", domain.DefaultPagination())
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, results, 2)
	assert.Equal(t, "BIN-001", results[0].LocationID)
	assert.Equal(t, "BIN-002", results[1].LocationID)

	_, _, err = service.ListLocations(tenantContext(), "SHELF", "", domain.DefaultPagination())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid location type")

	_, _, err = service.ListLocations(context.Background(), "", "", domain.DefaultPagination())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tenantId is required")
}

func TestLocationService_BlockAndUnblock(t *testing.T) {
	repo := newFakeLocationRepo(newTestBin(t, "BIN-001", "0", "10"))
	service := newTestLocationService(repo)

	blocked, err := service.BlockLocation(context.Background(), BlockLocationCommand{
		LocationID: "BIN-001",
		Reason:     "cycle count",
	})
	require.NoError(t, err)
	assert.Equal(t, "blocked", blocked.Status)
	assert.False(t, repo.locations["BIN-001"].IsAssignable())

	_, err = service.BlockLocation(context.Background(), BlockLocationCommand{LocationID: "BIN-001"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already blocked")

	unblocked, err := service.UnblockLocation(context.Background(), "BIN-001")
	require.NoError(t, err)
	assert.Equal(t, "available", unblocked.Status)
	assert.True(t, repo.locations["BIN-001"].IsAssignable())

	_, err = service.UnblockLocation(context.Background(), "BIN-001")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not blocked")

	_, err = service.BlockLocation(context.Background(), BlockLocationCommand{LocationID: "BIN-404"})
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeNotFound, appErr.Code)
}

func TestLocationService_BlockLocation_VersionConflict(t *testing.T) {
	repo := newFakeLocationRepo(newTestBin(t, "BIN-001", "0", "10"))
	repo.saveErr = domain.ErrLocationVersionConflict
	service := newTestLocationService(repo)

	_, err := service.BlockLocation(context.Background(), BlockLocationCommand{
		LocationID: "BIN-001",
		Reason:     "cycle count",
	})

	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeConflict, appErr.Code)
}
