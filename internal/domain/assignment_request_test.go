package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// Type Validation Tests
// =============================================================================

func TestClassification_IsValid(t *testing.T) {
	tests := []struct {
		name           string
		classification Classification
		want           bool
	}{
		{"PERISHABLE is valid", ClassificationPerishable, true},
		{"NON_PERISHABLE is valid", ClassificationNonPerishable, true},
		{"HAZMAT is valid", ClassificationHazmat, true},
		{"FRAGILE is valid", ClassificationFragile, true},
		{"unknown classification is invalid", Classification("FROZEN"), false},
		{"lowercase classification is invalid", Classification("perishable"), false},
		{"empty classification is invalid", Classification(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.classification.IsValid(); got != tt.want {
				t.Errorf("Classification.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

// =============================================================================
// NewStockItemAssignmentRequest Tests
// =============================================================================

func TestNewStockItemAssignmentRequest(t *testing.T) {
	t.Run("creates request with valid parameters", func(t *testing.T) {
		expiration := time.Date(2026, time.September, 15, 0, 0, 0, 0, time.UTC)
		request, err := NewStockItemAssignmentRequest("ITEM-001", decimal.NewFromInt(10), &expiration, ClassificationPerishable)
		if err != nil {
			t.Fatalf("NewStockItemAssignmentRequest() error = %v, want nil", err)
		}

		if request.StockItemID() != "ITEM-001" {
			t.Errorf("StockItemID() = %v, want ITEM-001", request.StockItemID())
		}
		if !request.Quantity().Equal(decimal.NewFromInt(10)) {
			t.Errorf("Quantity() = %v, want 10", request.Quantity())
		}
		if request.Classification() != ClassificationPerishable {
			t.Errorf("Classification() = %v, want %v", request.Classification(), ClassificationPerishable)
		}
		got := request.ExpirationDate()
		if got == nil || !got.Equal(expiration) {
			t.Errorf("ExpirationDate() = %v, want %v", got, expiration)
		}
	})

	t.Run("allows nil expiration date", func(t *testing.T) {
		request, err := NewStockItemAssignmentRequest("ITEM-002", decimal.NewFromInt(3), nil, ClassificationNonPerishable)
		if err != nil {
			t.Fatalf("NewStockItemAssignmentRequest() error = %v, want nil", err)
		}
		if request.ExpirationDate() != nil {
			t.Errorf("ExpirationDate() = %v, want nil", request.ExpirationDate())
		}
	})

	t.Run("accepts fractional quantities", func(t *testing.T) {
		quantity := decimal.RequireFromString("2.5")
		request, err := NewStockItemAssignmentRequest("ITEM-003", quantity, nil, ClassificationFragile)
		if err != nil {
			t.Fatalf("NewStockItemAssignmentRequest() error = %v, want nil", err)
		}
		if !request.Quantity().Equal(quantity) {
			t.Errorf("Quantity() = %v, want 2.5", request.Quantity())
		}
	})

	t.Run("returns error for blank stock item id", func(t *testing.T) {
		_, err := NewStockItemAssignmentRequest("", decimal.NewFromInt(1), nil, ClassificationNonPerishable)
		if err != ErrBlankStockItemID {
			t.Errorf("NewStockItemAssignmentRequest() error = %v, want %v", err, ErrBlankStockItemID)
		}
	})

	t.Run("returns error for whitespace stock item id", func(t *testing.T) {
		_, err := NewStockItemAssignmentRequest("   ", decimal.NewFromInt(1), nil, ClassificationNonPerishable)
		if err != ErrBlankStockItemID {
			t.Errorf("NewStockItemAssignmentRequest() error = %v, want %v", err, ErrBlankStockItemID)
		}
	})

	t.Run("returns error for zero quantity", func(t *testing.T) {
		_, err := NewStockItemAssignmentRequest("ITEM-001", decimal.Zero, nil, ClassificationNonPerishable)
		if err != ErrNonPositiveQuantity {
			t.Errorf("NewStockItemAssignmentRequest() error = %v, want %v", err, ErrNonPositiveQuantity)
		}
	})

	t.Run("returns error for negative quantity", func(t *testing.T) {
		_, err := NewStockItemAssignmentRequest("ITEM-001", decimal.NewFromInt(-3), nil, ClassificationNonPerishable)
		if err != ErrNonPositiveQuantity {
			t.Errorf("NewStockItemAssignmentRequest() error = %v, want %v", err, ErrNonPositiveQuantity)
		}
	})

	t.Run("returns error for missing classification", func(t *testing.T) {
		_, err := NewStockItemAssignmentRequest("ITEM-001", decimal.NewFromInt(1), nil, Classification(""))
		if err != ErrMissingClassification {
			t.Errorf("NewStockItemAssignmentRequest() error = %v, want %v", err, ErrMissingClassification)
		}
	})

	t.Run("returns error for invalid classification", func(t *testing.T) {
		_, err := NewStockItemAssignmentRequest("ITEM-001", decimal.NewFromInt(1), nil, Classification("FROZEN"))
		if err != ErrInvalidClassification {
			t.Errorf("NewStockItemAssignmentRequest() error = %v, want %v", err, ErrInvalidClassification)
		}
	})

	t.Run("normalizes expiration date to UTC", func(t *testing.T) {
		zone := time.FixedZone("UTC+2", 2*60*60)
		expiration := time.Date(2026, time.September, 15, 8, 0, 0, 0, zone)

		request, err := NewStockItemAssignmentRequest("ITEM-001", decimal.NewFromInt(1), &expiration, ClassificationPerishable)
		if err != nil {
			t.Fatalf("NewStockItemAssignmentRequest() error = %v", err)
		}

		got := request.ExpirationDate()
		if got.Location() != time.UTC {
			t.Errorf("ExpirationDate() location = %v, want UTC", got.Location())
		}
		if !got.Equal(expiration) {
			t.Errorf("ExpirationDate() = %v, want same instant as %v", got, expiration)
		}
	})

	t.Run("does not alias the caller's expiration date", func(t *testing.T) {
		original := time.Date(2026, time.September, 15, 0, 0, 0, 0, time.UTC)
		expiration := original
		request, _ := NewStockItemAssignmentRequest("ITEM-001", decimal.NewFromInt(1), &expiration, ClassificationPerishable)

		expiration = expiration.AddDate(1, 0, 0)
		if got := request.ExpirationDate(); !got.Equal(original) {
			t.Errorf("ExpirationDate() = %v, want %v after caller mutation", got, original)
		}
	})
}

// =============================================================================
// Accessor Tests
// =============================================================================

func TestStockItemAssignmentRequest_ExpirationDate(t *testing.T) {
	t.Run("mutating the returned date does not change the request", func(t *testing.T) {
		expiration := time.Date(2026, time.September, 15, 0, 0, 0, 0, time.UTC)
		request, _ := NewStockItemAssignmentRequest("ITEM-001", decimal.NewFromInt(1), &expiration, ClassificationPerishable)

		first := request.ExpirationDate()
		*first = first.AddDate(2, 0, 0)

		second := request.ExpirationDate()
		if !second.Equal(expiration) {
			t.Errorf("ExpirationDate() = %v, want %v after mutating a previous copy", second, expiration)
		}
	})
}

func TestStockItemAssignmentRequest_IsPerishable(t *testing.T) {
	expiration := time.Date(2026, time.September, 15, 0, 0, 0, 0, time.UTC)
	perishable, _ := NewStockItemAssignmentRequest("ITEM-001", decimal.NewFromInt(1), &expiration, ClassificationPerishable)
	durable, _ := NewStockItemAssignmentRequest("ITEM-002", decimal.NewFromInt(1), nil, ClassificationNonPerishable)

	if !perishable.IsPerishable() {
		t.Error("IsPerishable() = false, want true for item with expiration date")
	}
	if durable.IsPerishable() {
		t.Error("IsPerishable() = true, want false for item without expiration date")
	}
}

// =============================================================================
// Ordering Tests
// =============================================================================

func TestStockItemAssignmentRequest_ExpiresBefore(t *testing.T) {
	early := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2026, time.December, 1, 0, 0, 0, 0, time.UTC)

	earlyItem, _ := NewStockItemAssignmentRequest("ITEM-001", decimal.NewFromInt(1), &early, ClassificationPerishable)
	lateItem, _ := NewStockItemAssignmentRequest("ITEM-002", decimal.NewFromInt(1), &late, ClassificationPerishable)
	durableItem, _ := NewStockItemAssignmentRequest("ITEM-003", decimal.NewFromInt(1), nil, ClassificationNonPerishable)

	tests := []struct {
		name  string
		item  *StockItemAssignmentRequest
		other *StockItemAssignmentRequest
		want  bool
	}{
		{"earlier expiration expires first", earlyItem, lateItem, true},
		{"later expiration does not expire first", lateItem, earlyItem, false},
		{"dated item expires before undated item", earlyItem, durableItem, true},
		{"undated item never expires before dated item", durableItem, earlyItem, false},
		{"undated item never expires before undated item", durableItem, durableItem, false},
		{"equal expirations do not order", earlyItem, earlyItem, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.item.ExpiresBefore(tt.other); got != tt.want {
				t.Errorf("ExpiresBefore() = %v, want %v", got, tt.want)
			}
		})
	}
}

// =============================================================================
// Validate Tests
// =============================================================================

func TestStockItemAssignmentRequest_Validate(t *testing.T) {
	t.Run("constructed request passes", func(t *testing.T) {
		request, _ := NewStockItemAssignmentRequest("ITEM-001", decimal.NewFromInt(1), nil, ClassificationNonPerishable)
		if err := request.Validate(); err != nil {
			t.Errorf("Validate() error = %v, want nil", err)
		}
	})

	t.Run("zero value fails", func(t *testing.T) {
		var request StockItemAssignmentRequest
		if err := request.Validate(); err != ErrBlankStockItemID {
			t.Errorf("Validate() error = %v, want %v", err, ErrBlankStockItemID)
		}
	})
}
