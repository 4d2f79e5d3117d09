package application

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/kumbirai/warehouse-management-system-sub012/internal/domain"
)

// FEFO assigner contract errors
var (
	ErrNilItemList     = errors.New("stock item list must not be nil")
	ErrNilLocationList = errors.New("location list must not be nil")
	ErrNilItem         = errors.New("stock item must not be nil")
	ErrNilLocation     = errors.New("location must not be nil")
)

// FEFOAssigner matches stock items to bin locations using
// First-Expired-First-Out priority: items expiring soonest are placed first,
// so near-expiry stock lands in the most spacious bins before late-expiry
// stock competes for them. The assigner is a pure in-memory function; it
// never mutates its inputs and performs no I/O. Callers own candidate
// filtering (BIN level, availability, tenant scope) and the persistence of
// the resulting capacity changes.
type FEFOAssigner struct{}

// NewFEFOAssigner creates a new FEFOAssigner
func NewFEFOAssigner() *FEFOAssigner {
	return &FEFOAssigner{}
}

// candidateBin tracks the remaining capacity of one candidate location as
// the batch proceeds. A nil remaining means unbounded capacity.
type candidateBin struct {
	locationID string
	remaining  *decimal.Decimal
}

func (c *candidateBin) fits(quantity decimal.Decimal) bool {
	return c.remaining == nil || c.remaining.GreaterThanOrEqual(quantity)
}

func (c *candidateBin) commit(quantity decimal.Decimal) {
	if c.remaining != nil {
		remaining := c.remaining.Sub(quantity)
		c.remaining = &remaining
	}
}

// AssignLocations matches every stock item to at most one location and
// returns a stockItemId-to-locationId map.
//
// Items are considered in expiration order: earliest expiration first,
// items without an expiration date last, ties resolved by input order.
// Candidate locations are scanned in a fixed order: unbounded locations
// first, then by available capacity descending, with equal capacities
// broken by location id ascending so repeated runs place stock
// identically. Each item takes the first location with enough remaining
// capacity; the remaining capacity is a running tally across the whole
// batch. An item that fits nowhere is skipped and simply absent from the
// result, which is expected behavior, not an error.
//
// Errors are raised only for contract violations: nil slices (pass empty
// slices instead) or malformed elements. An empty location list yields an
// empty map.
func (a *FEFOAssigner) AssignLocations(
	items []*domain.StockItemAssignmentRequest,
	locations []*domain.Location,
) (map[string]string, error) {
	if items == nil {
		return nil, ErrNilItemList
	}
	if locations == nil {
		return nil, ErrNilLocationList
	}
	for i, item := range items {
		if item == nil {
			return nil, fmt.Errorf("stock item %d: %w", i, ErrNilItem)
		}
		if err := item.Validate(); err != nil {
			return nil, fmt.Errorf("stock item %d: %w", i, err)
		}
	}
	for i, location := range locations {
		if location == nil {
			return nil, fmt.Errorf("location %d: %w", i, ErrNilLocation)
		}
		if err := location.Validate(); err != nil {
			return nil, fmt.Errorf("location %d: %w", i, err)
		}
	}

	assignments := make(map[string]string, len(items))
	if len(items) == 0 || len(locations) == 0 {
		return assignments, nil
	}

	ordered := sortItemsByExpiration(items)
	candidates := buildCandidateBins(locations)

	for _, item := range ordered {
		for i := range candidates {
			if candidates[i].fits(item.Quantity()) {
				assignments[item.StockItemID()] = candidates[i].locationID
				candidates[i].commit(item.Quantity())
				break
			}
		}
	}

	return assignments, nil
}

// sortItemsByExpiration orders items earliest-expiring first. Items without
// an expiration date carry the lowest urgency and go last. The sort is
// stable so equal expirations keep their input order.
func sortItemsByExpiration(items []*domain.StockItemAssignmentRequest) []*domain.StockItemAssignmentRequest {
	sorted := make([]*domain.StockItemAssignmentRequest, len(items))
	copy(sorted, items)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ExpiresBefore(sorted[j])
	})

	return sorted
}

// buildCandidateBins snapshots the locations into capacity trackers and
// fixes the scan order: unbounded bins first, then available capacity
// descending, then location id ascending.
func buildCandidateBins(locations []*domain.Location) []candidateBin {
	candidates := make([]candidateBin, 0, len(locations))
	for _, location := range locations {
		candidates = append(candidates, candidateBin{
			locationID: location.LocationID,
			remaining:  location.AvailableCapacity(),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		ri, rj := candidates[i].remaining, candidates[j].remaining
		if (ri == nil) != (rj == nil) {
			return ri == nil
		}
		if ri != nil && !ri.Equal(*rj) {
			return ri.GreaterThan(*rj)
		}
		return candidates[i].locationID < candidates[j].locationID
	})

	return candidates
}
