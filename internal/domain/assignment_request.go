package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Stock item assignment request errors
var (
	ErrBlankStockItemID      = errors.New("stock item id must not be blank")
	ErrNonPositiveQuantity   = errors.New("quantity must be positive")
	ErrMissingClassification = errors.New("classification is required")
	ErrInvalidClassification = errors.New("invalid classification")
)

// Classification categorizes stock for handling and tie-break purposes
type Classification string

const (
	ClassificationPerishable    Classification = "PERISHABLE"
	ClassificationNonPerishable Classification = "NON_PERISHABLE"
	ClassificationHazmat        Classification = "HAZMAT"
	ClassificationFragile       Classification = "FRAGILE"
)

// IsValid checks if the classification is valid
func (c Classification) IsValid() bool {
	switch c {
	case ClassificationPerishable, ClassificationNonPerishable,
		ClassificationHazmat, ClassificationFragile:
		return true
	default:
		return false
	}
}

// StockItemAssignmentRequest describes one stock item that needs a bin
// location. Instances are immutable; every invariant is checked once at
// construction so downstream code can trust the value without re-checking.
type StockItemAssignmentRequest struct {
	stockItemID    string
	quantity       decimal.Decimal
	expirationDate *time.Time
	classification Classification
}

// NewStockItemAssignmentRequest validates and constructs an assignment
// request. The expiration date is optional; nil marks non-perishable stock.
func NewStockItemAssignmentRequest(
	stockItemID string,
	quantity decimal.Decimal,
	expirationDate *time.Time,
	classification Classification,
) (*StockItemAssignmentRequest, error) {
	if strings.TrimSpace(stockItemID) == "" {
		return nil, ErrBlankStockItemID
	}
	if !quantity.IsPositive() {
		return nil, ErrNonPositiveQuantity
	}
	if classification == "" {
		return nil, ErrMissingClassification
	}
	if !classification.IsValid() {
		return nil, ErrInvalidClassification
	}

	var expiration *time.Time
	if expirationDate != nil {
		utc := expirationDate.UTC()
		expiration = &utc
	}

	return &StockItemAssignmentRequest{
		stockItemID:    stockItemID,
		quantity:       quantity,
		expirationDate: expiration,
		classification: classification,
	}, nil
}

// StockItemID returns the cross-service stock item identifier
func (r *StockItemAssignmentRequest) StockItemID() string {
	return r.stockItemID
}

// Quantity returns the quantity requiring placement
func (r *StockItemAssignmentRequest) Quantity() decimal.Decimal {
	return r.quantity
}

// ExpirationDate returns a copy of the expiration date, or nil for
// non-perishable stock
func (r *StockItemAssignmentRequest) ExpirationDate() *time.Time {
	if r.expirationDate == nil {
		return nil
	}
	expiration := *r.expirationDate
	return &expiration
}

// Classification returns the handling classification
func (r *StockItemAssignmentRequest) Classification() Classification {
	return r.classification
}

// IsPerishable reports whether the stock item carries an expiration date
func (r *StockItemAssignmentRequest) IsPerishable() bool {
	return r.expirationDate != nil
}

// ExpiresBefore reports whether this item expires strictly before the other.
// Items without an expiration date never expire before anything.
func (r *StockItemAssignmentRequest) ExpiresBefore(other *StockItemAssignmentRequest) bool {
	if r.expirationDate == nil {
		return false
	}
	if other.expirationDate == nil {
		return true
	}
	return r.expirationDate.Before(*other.expirationDate)
}

// Validate re-checks the construction invariants. Zero-value structs built
// around the constructor fail here.
func (r *StockItemAssignmentRequest) Validate() error {
	if strings.TrimSpace(r.stockItemID) == "" {
		return ErrBlankStockItemID
	}
	if !r.quantity.IsPositive() {
		return ErrNonPositiveQuantity
	}
	if r.classification == "" {
		return ErrMissingClassification
	}
	if !r.classification.IsValid() {
		return ErrInvalidClassification
	}
	return nil
}
