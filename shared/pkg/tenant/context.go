package tenant

import (
	"context"
)

// Context keys for tenant information
type contextKey string

const (
	tenantIDKey    contextKey = "tenantId"
	facilityIDKey  contextKey = "facilityId"
	warehouseIDKey contextKey = "warehouseId"
)

// Context holds all tenant-related identifiers for multi-tenant operations.
// This struct is used to scope all database queries and operations to a specific tenant.
type Context struct {
	// TenantID is the warehouse operator identifier (the company running the warehouse)
	TenantID string `json:"tenantId"`

	// FacilityID is the physical facility/warehouse complex identifier
	FacilityID string `json:"facilityId"`

	// WarehouseID is a specific warehouse within a facility
	WarehouseID string `json:"warehouseId"`
}

// FromContextOptional extracts tenant identifiers from context.Context.
// The result is never nil; requests without tenant scope yield an empty Context.
func FromContextOptional(ctx context.Context) *Context {
	tc := &Context{}

	if id, ok := ctx.Value(tenantIDKey).(string); ok {
		tc.TenantID = id
	}
	if id, ok := ctx.Value(facilityIDKey).(string); ok {
		tc.FacilityID = id
	}
	if id, ok := ctx.Value(warehouseIDKey).(string); ok {
		tc.WarehouseID = id
	}

	return tc
}

// ToContext adds tenant identifiers to context.Context.
func ToContext(ctx context.Context, tc *Context) context.Context {
	if tc == nil {
		return ctx
	}

	if tc.TenantID != "" {
		ctx = context.WithValue(ctx, tenantIDKey, tc.TenantID)
	}
	if tc.FacilityID != "" {
		ctx = context.WithValue(ctx, facilityIDKey, tc.FacilityID)
	}
	if tc.WarehouseID != "" {
		ctx = context.WithValue(ctx, warehouseIDKey, tc.WarehouseID)
	}

	return ctx
}

// GetTenantID extracts tenant ID from context
func GetTenantID(ctx context.Context) string {
	if id, ok := ctx.Value(tenantIDKey).(string); ok {
		return id
	}
	return ""
}
