package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/tenant"
)

// Tenant scope header names
const (
	HeaderTenantID    = "X-Tenant-ID"
	HeaderFacilityID  = "X-Facility-ID"
	HeaderWarehouseID = "X-Warehouse-ID"
)

// TenantContext lifts the tenant scope headers into the request context so
// repositories and services can scope queries without each handler passing
// the identifiers through explicitly. Requests without X-Tenant-ID pass
// through unchanged; endpoints that need a tenant reject those downstream.
func TenantContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetHeader(HeaderTenantID)
		if tenantID == "" {
			c.Next()
			return
		}

		tc := &tenant.Context{
			TenantID:    tenantID,
			FacilityID:  c.GetHeader(HeaderFacilityID),
			WarehouseID: c.GetHeader(HeaderWarehouseID),
		}
		c.Request = c.Request.WithContext(tenant.ToContext(c.Request.Context(), tc))

		c.Next()
	}
}
