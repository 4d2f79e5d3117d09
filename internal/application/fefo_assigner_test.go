package application

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kumbirai/warehouse-management-system-sub012/internal/domain"
)

func expiresOn(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &t
}

func newTestItem(t *testing.T, stockItemID, quantity string, expiration *time.Time) *domain.StockItemAssignmentRequest {
	t.Helper()

	classification := domain.ClassificationNonPerishable
	if expiration != nil {
		classification = domain.ClassificationPerishable
	}

	item, err := domain.NewStockItemAssignmentRequest(
		stockItemID,
		decimal.RequireFromString(quantity),
		expiration,
		classification,
	)
	require.NoError(t, err)
	return item
}

func newTestBin(t *testing.T, locationID, current, maximum string) *domain.Location {
	t.Helper()

	var max *decimal.Decimal
	if maximum != "" {
		m := decimal.RequireFromString(maximum)
		max = &m
	}
	capacity, err := domain.NewLocationCapacity(decimal.RequireFromString(current), max)
	require.NoError(t, err)

	location, err := domain.NewLocation(locationID, domain.LocationTypeBin, capacity, "TENANT-001", "FAC-001", "WH-001")
	require.NoError(t, err)
	return location
}

func TestFEFOAssigner_AssignLocations(t *testing.T) {
	tests := []struct {
		name            string
		items           []*domain.StockItemAssignmentRequest
		locations       []*domain.Location
		wantAssignments map[string]string
	}{
		{
			name: "Earlier expiration wins the only slot",
			items: []*domain.StockItemAssignmentRequest{
				newTestItem(t, "ITEM-A", "10", expiresOn(2025, time.January, 1)),
				newTestItem(t, "ITEM-B", "10", expiresOn(2025, time.February, 1)),
			},
			locations: []*domain.Location{
				newTestBin(t, "BIN-001", "0", "10"),
			},
			wantAssignments: map[string]string{"ITEM-A": "BIN-001"},
		},
		{
			name: "Item without expiration fills an exact-fit bin",
			items: []*domain.StockItemAssignmentRequest{
				newTestItem(t, "ITEM-A", "5", nil),
			},
			locations: []*domain.Location{
				newTestBin(t, "BIN-001", "0", "5"),
			},
			wantAssignments: map[string]string{"ITEM-A": "BIN-001"},
		},
		{
			name: "Two items share one bin within capacity",
			items: []*domain.StockItemAssignmentRequest{
				newTestItem(t, "ITEM-A", "5", nil),
				newTestItem(t, "ITEM-B", "5", nil),
			},
			locations: []*domain.Location{
				newTestBin(t, "BIN-001", "0", "10"),
			},
			wantAssignments: map[string]string{"ITEM-A": "BIN-001", "ITEM-B": "BIN-001"},
		},
		{
			name: "Oversized item stays unassigned",
			items: []*domain.StockItemAssignmentRequest{
				newTestItem(t, "ITEM-A", "15", nil),
			},
			locations: []*domain.Location{
				newTestBin(t, "BIN-001", "0", "10"),
			},
			wantAssignments: map[string]string{},
		},
		{
			name: "Empty location list defers every item",
			items: []*domain.StockItemAssignmentRequest{
				newTestItem(t, "ITEM-A", "1", nil),
				newTestItem(t, "ITEM-B", "2", nil),
				newTestItem(t, "ITEM-C", "3", nil),
			},
			locations:       []*domain.Location{},
			wantAssignments: map[string]string{},
		},
		{
			name:  "Empty item list yields no assignments",
			items: []*domain.StockItemAssignmentRequest{},
			locations: []*domain.Location{
				newTestBin(t, "BIN-001", "0", "10"),
			},
			wantAssignments: map[string]string{},
		},
		{
			name: "Dated item outranks item without expiration",
			items: []*domain.StockItemAssignmentRequest{
				newTestItem(t, "ITEM-A", "10", nil),
				newTestItem(t, "ITEM-B", "10", expiresOn(2025, time.June, 15)),
			},
			locations: []*domain.Location{
				newTestBin(t, "BIN-001", "0", "10"),
			},
			wantAssignments: map[string]string{"ITEM-B": "BIN-001"},
		},
		{
			name: "Skipped item does not block smaller later items",
			items: []*domain.StockItemAssignmentRequest{
				newTestItem(t, "ITEM-A", "6", expiresOn(2025, time.January, 1)),
				newTestItem(t, "ITEM-B", "6", expiresOn(2025, time.February, 1)),
				newTestItem(t, "ITEM-C", "4", expiresOn(2025, time.March, 1)),
			},
			locations: []*domain.Location{
				newTestBin(t, "BIN-001", "0", "10"),
			},
			wantAssignments: map[string]string{"ITEM-A": "BIN-001", "ITEM-C": "BIN-001"},
		},
		{
			name: "Current quantity reduces what fits",
			items: []*domain.StockItemAssignmentRequest{
				newTestItem(t, "ITEM-A", "5", nil),
				newTestItem(t, "ITEM-B", "3", nil),
			},
			locations: []*domain.Location{
				newTestBin(t, "BIN-001", "7", "10"),
			},
			wantAssignments: map[string]string{"ITEM-B": "BIN-001"},
		},
		{
			name: "Most spacious bin is taken first",
			items: []*domain.StockItemAssignmentRequest{
				newTestItem(t, "ITEM-A", "5", nil),
			},
			locations: []*domain.Location{
				newTestBin(t, "BIN-001", "0", "5"),
				newTestBin(t, "BIN-002", "0", "20"),
			},
			wantAssignments: map[string]string{"ITEM-A": "BIN-002"},
		},
		{
			name: "Equal capacity breaks ties by location id",
			items: []*domain.StockItemAssignmentRequest{
				newTestItem(t, "ITEM-A", "5", nil),
			},
			locations: []*domain.Location{
				newTestBin(t, "BIN-002", "0", "10"),
				newTestBin(t, "BIN-001", "0", "10"),
			},
			wantAssignments: map[string]string{"ITEM-A": "BIN-001"},
		},
		{
			name: "Unbounded bin outranks every bounded bin",
			items: []*domain.StockItemAssignmentRequest{
				newTestItem(t, "ITEM-A", "5", nil),
			},
			locations: []*domain.Location{
				newTestBin(t, "BIN-001", "0", "100"),
				newTestBin(t, "BIN-999", "0", ""),
			},
			wantAssignments: map[string]string{"ITEM-A": "BIN-999"},
		},
		{
			name: "Fractional quantities respect capacity",
			items: []*domain.StockItemAssignmentRequest{
				newTestItem(t, "ITEM-A", "2.5", expiresOn(2025, time.January, 1)),
				newTestItem(t, "ITEM-B", "2.6", expiresOn(2025, time.February, 1)),
			},
			locations: []*domain.Location{
				newTestBin(t, "BIN-001", "0", "5"),
			},
			wantAssignments: map[string]string{"ITEM-A": "BIN-001"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assigner := NewFEFOAssigner()

			assignments, err := assigner.AssignLocations(tt.items, tt.locations)

			require.NoError(t, err)
			assert.Equal(t, tt.wantAssignments, assignments)
		})
	}
}

func TestFEFOAssigner_AssignLocations_ContractViolations(t *testing.T) {
	validItem := newTestItem(t, "ITEM-A", "5", nil)
	validBin := newTestBin(t, "BIN-001", "0", "10")

	tests := []struct {
		name      string
		items     []*domain.StockItemAssignmentRequest
		locations []*domain.Location
		wantErr   error
	}{
		{
			name:      "Nil item list",
			items:     nil,
			locations: []*domain.Location{validBin},
			wantErr:   ErrNilItemList,
		},
		{
			name:      "Nil location list",
			items:     []*domain.StockItemAssignmentRequest{validItem},
			locations: nil,
			wantErr:   ErrNilLocationList,
		},
		{
			name:      "Nil item element",
			items:     []*domain.StockItemAssignmentRequest{validItem, nil},
			locations: []*domain.Location{validBin},
			wantErr:   ErrNilItem,
		},
		{
			name:      "Nil location element",
			items:     []*domain.StockItemAssignmentRequest{validItem},
			locations: []*domain.Location{nil},
			wantErr:   ErrNilLocation,
		},
		{
			name:      "Malformed item",
			items:     []*domain.StockItemAssignmentRequest{{}},
			locations: []*domain.Location{validBin},
			wantErr:   domain.ErrBlankStockItemID,
		},
		{
			name:      "Malformed location",
			items:     []*domain.StockItemAssignmentRequest{validItem},
			locations: []*domain.Location{{}},
			wantErr:   domain.ErrBlankLocationID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assigner := NewFEFOAssigner()

			assignments, err := assigner.AssignLocations(tt.items, tt.locations)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, assignments)
		})
	}
}

// Cumulative quantity routed to any bounded bin must never exceed its
// remaining capacity, no matter how the batch is shaped.
func TestFEFOAssigner_AssignLocations_CapacityNeverExceeded(t *testing.T) {
	items := []*domain.StockItemAssignmentRequest{
		newTestItem(t, "ITEM-A", "4", expiresOn(2025, time.January, 10)),
		newTestItem(t, "ITEM-B", "7", expiresOn(2025, time.January, 20)),
		newTestItem(t, "ITEM-C", "3", expiresOn(2025, time.February, 1)),
		newTestItem(t, "ITEM-D", "9", nil),
		newTestItem(t, "ITEM-E", "2", expiresOn(2025, time.January, 5)),
		newTestItem(t, "ITEM-F", "6", nil),
	}
	locations := []*domain.Location{
		newTestBin(t, "BIN-001", "2", "10"),
		newTestBin(t, "BIN-002", "0", "8"),
		newTestBin(t, "BIN-003", "5", "6"),
	}

	quantities := make(map[string]decimal.Decimal, len(items))
	for _, item := range items {
		quantities[item.StockItemID()] = item.Quantity()
	}
	available := make(map[string]decimal.Decimal, len(locations))
	for _, location := range locations {
		available[location.LocationID] = *location.AvailableCapacity()
	}

	assigner := NewFEFOAssigner()
	assignments, err := assigner.AssignLocations(items, locations)
	require.NoError(t, err)

	assignedPerLocation := make(map[string]decimal.Decimal)
	for stockItemID, locationID := range assignments {
		quantity, known := quantities[stockItemID]
		require.True(t, known, "assignment references unknown stock item %s", stockItemID)
		_, known = available[locationID]
		require.True(t, known, "assignment references unknown location %s", locationID)
		assignedPerLocation[locationID] = assignedPerLocation[locationID].Add(quantity)
	}

	for locationID, total := range assignedPerLocation {
		assert.True(t, total.LessThanOrEqual(available[locationID]),
			"location %s received %s against available %s", locationID, total, available[locationID])
	}
}

// When two items contend for the same space, the earlier-expiring one must
// get it even if it appears later in the input.
func TestFEFOAssigner_AssignLocations_EarlierExpirationWinsContention(t *testing.T) {
	items := []*domain.StockItemAssignmentRequest{
		newTestItem(t, "ITEM-LATE", "6", expiresOn(2025, time.March, 1)),
		newTestItem(t, "ITEM-EARLY", "6", expiresOn(2025, time.January, 1)),
	}
	locations := []*domain.Location{
		newTestBin(t, "BIN-SMALL", "0", "5"),
		newTestBin(t, "BIN-LARGE", "0", "8"),
	}

	assigner := NewFEFOAssigner()
	assignments, err := assigner.AssignLocations(items, locations)

	require.NoError(t, err)
	assert.Equal(t, map[string]string{"ITEM-EARLY": "BIN-LARGE"}, assignments)
}

func TestFEFOAssigner_AssignLocations_Deterministic(t *testing.T) {
	items := []*domain.StockItemAssignmentRequest{
		newTestItem(t, "ITEM-A", "3", expiresOn(2025, time.April, 1)),
		newTestItem(t, "ITEM-B", "3", expiresOn(2025, time.April, 1)),
		newTestItem(t, "ITEM-C", "3", nil),
		newTestItem(t, "ITEM-D", "3", nil),
	}
	locations := []*domain.Location{
		newTestBin(t, "BIN-003", "0", "6"),
		newTestBin(t, "BIN-001", "0", "6"),
		newTestBin(t, "BIN-002", "0", "6"),
	}

	originalOrder := make([]string, 0, len(items))
	for _, item := range items {
		originalOrder = append(originalOrder, item.StockItemID())
	}
	originalCapacity := make([]decimal.Decimal, 0, len(locations))
	for _, location := range locations {
		originalCapacity = append(originalCapacity, location.Capacity.CurrentQuantity)
	}

	assigner := NewFEFOAssigner()

	first, err := assigner.AssignLocations(items, locations)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := assigner.AssignLocations(items, locations)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	for i, item := range items {
		assert.Equal(t, originalOrder[i], item.StockItemID(), "input item order must not change")
	}
	for i, location := range locations {
		assert.True(t, originalCapacity[i].Equal(location.Capacity.CurrentQuantity),
			"location %s capacity must not change", location.LocationID)
	}
}

func TestFEFOAssigner_SortItemsByExpiration(t *testing.T) {
	items := []*domain.StockItemAssignmentRequest{
		newTestItem(t, "ITEM-NONE-1", "1", nil),
		newTestItem(t, "ITEM-MAR", "1", expiresOn(2025, time.March, 1)),
		newTestItem(t, "ITEM-JAN-1", "1", expiresOn(2025, time.January, 1)),
		newTestItem(t, "ITEM-JAN-2", "1", expiresOn(2025, time.January, 1)),
		newTestItem(t, "ITEM-NONE-2", "1", nil),
	}

	sorted := sortItemsByExpiration(items)

	ids := make([]string, 0, len(sorted))
	for _, item := range sorted {
		ids = append(ids, item.StockItemID())
	}
	assert.Equal(t, []string{"ITEM-JAN-1", "ITEM-JAN-2", "ITEM-MAR", "ITEM-NONE-1", "ITEM-NONE-2"}, ids)

	assert.Equal(t, "ITEM-NONE-1", items[0].StockItemID(), "input slice must stay untouched")
}

func TestFEFOAssigner_BuildCandidateBins(t *testing.T) {
	locations := []*domain.Location{
		newTestBin(t, "BIN-B", "0", "10"),
		newTestBin(t, "BIN-D", "0", ""),
		newTestBin(t, "BIN-A", "0", "10"),
		newTestBin(t, "BIN-C", "5", "25"),
	}

	candidates := buildCandidateBins(locations)

	ids := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		ids = append(ids, candidate.locationID)
	}
	assert.Equal(t, []string{"BIN-D", "BIN-C", "BIN-A", "BIN-B"}, ids)

	assert.Nil(t, candidates[0].remaining)
	assert.True(t, candidates[1].remaining.Equal(decimal.NewFromInt(20)))
}
