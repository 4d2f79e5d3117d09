package application

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockItemInput carries one stock item of an assignment command
type StockItemInput struct {
	StockItemID    string
	Quantity       decimal.Decimal
	ExpirationDate *time.Time
	Classification string
}

// AssignStockCommand represents the command to assign a batch of stock
// items to bin locations. Tenant fields left empty are filled from the
// request context.
type AssignStockCommand struct {
	TenantID    string
	FacilityID  string
	WarehouseID string
	Items       []StockItemInput
}

// RegisterLocationCommand represents the command to register a location
type RegisterLocationCommand struct {
	LocationID      string
	Type            string
	ParentID        string
	BinCode         string
	CurrentQuantity decimal.Decimal
	MaximumQuantity *decimal.Decimal
	TenantID        string
	FacilityID      string
	WarehouseID     string
}

// BlockLocationCommand represents the command to block a location
type BlockLocationCommand struct {
	LocationID string
	Reason     string
}

// firstNonEmpty returns the first non-empty string
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
