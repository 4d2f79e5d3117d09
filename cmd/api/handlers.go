package main

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/api"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/errors"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/kafka"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/logging"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/middleware"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/mongodb"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/temporal"

	"github.com/kumbirai/warehouse-management-system-sub012/internal/application"
	"github.com/kumbirai/warehouse-management-system-sub012/internal/domain"
)

const serviceName = "assignment-service"

// Config holds application configuration
type Config struct {
	ServerAddr string
	MongoDB    *mongodb.Config
	Kafka      *kafka.Config
	Temporal   *temporal.Config
}

func loadConfig() *Config {
	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8012"),
		MongoDB: &mongodb.Config{
			URI:            getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database:       getEnv("MONGODB_DATABASE", "assignment_db"),
			ConnectTimeout: 10 * time.Second,
			MaxPoolSize:    100,
			MinPoolSize:    10,
			Username:       os.Getenv("MONGODB_USERNAME"),
			Password:       os.Getenv("MONGODB_PASSWORD"),
			AuthDB:         getEnv("MONGODB_AUTH_DB", "admin"),
			ReplicaSet:     os.Getenv("MONGODB_REPLICA_SET"),
		},
		Kafka: &kafka.Config{
			Brokers:       []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			ConsumerGroup: serviceName,
			ClientID:      serviceName,
			BatchSize:     100,
			BatchTimeout:  10 * time.Millisecond,
			RequiredAcks:  -1,
		},
		Temporal: &temporal.Config{
			HostPort:  getEnv("TEMPORAL_HOST", "localhost:7233"),
			Namespace: getEnv("TEMPORAL_NAMESPACE", "default"),
			Identity:  serviceName,
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// stockItemRequest is one stock item of an assignment request. Quantities
// travel as decimal strings so binary floats never touch them.
type stockItemRequest struct {
	StockItemID    string     `json:"stockItemId" binding:"required,stock_item_id"`
	Quantity       string     `json:"quantity" binding:"required,decimal_quantity"`
	ExpirationDate *time.Time `json:"expirationDate"`
	Classification string     `json:"classification" binding:"required,classification"`
}

func toStockItemInputs(items []stockItemRequest) ([]application.StockItemInput, error) {
	inputs := make([]application.StockItemInput, 0, len(items))
	for _, item := range items {
		quantity, err := decimal.NewFromString(item.Quantity)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, application.StockItemInput{
			StockItemID:    item.StockItemID,
			Quantity:       quantity,
			ExpirationDate: item.ExpirationDate,
			Classification: item.Classification,
		})
	}
	return inputs, nil
}

func assignStockHandler(service *application.AssignmentService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			TenantID    string             `json:"tenantId"`
			FacilityID  string             `json:"facilityId"`
			WarehouseID string             `json:"warehouseId"`
			Items       []stockItemRequest `json:"items" binding:"required,min=1,dive"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		middleware.AddSpanAttributes(c, map[string]interface{}{
			"assignment.item_count": len(req.Items),
		})

		items, err := toStockItemInputs(req.Items)
		if err != nil {
			responder.RespondBadRequest("invalid quantity: " + err.Error())
			return
		}

		cmd := application.AssignStockCommand{
			TenantID:    req.TenantID,
			FacilityID:  req.FacilityID,
			WarehouseID: req.WarehouseID,
			Items:       items,
		}

		if c.Query("async") == "true" {
			started, err := service.StartAssignmentWorkflow(c.Request.Context(), cmd)
			if err != nil {
				if appErr, ok := errors.AsAppError(err); ok {
					responder.RespondWithAppError(appErr)
				} else {
					responder.RespondInternalError(err)
				}
				return
			}

			middleware.AddSpanAttributes(c, map[string]interface{}{
				"assignment.batch_id": started.BatchID,
				"workflow.id":         started.WorkflowID,
			})
			c.JSON(http.StatusAccepted, started)
			return
		}

		batch, err := service.AssignStock(c.Request.Context(), cmd)
		if err != nil {
			if appErr, ok := errors.AsAppError(err); ok {
				responder.RespondWithAppError(appErr)
			} else {
				responder.RespondInternalError(err)
			}
			return
		}

		c.JSON(http.StatusCreated, batch)
	}
}

func getAssignmentHandler(service *application.AssignmentService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var params struct {
			BatchID string `uri:"batchId" binding:"required,batch_id"`
		}
		if appErr := middleware.BindUriAndValidate(c, &params); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		middleware.AddSpanAttributes(c, map[string]interface{}{
			"assignment.batch_id": params.BatchID,
		})

		batch, err := service.GetBatch(c.Request.Context(), params.BatchID)
		if err != nil {
			if appErr, ok := errors.AsAppError(err); ok {
				responder.RespondWithAppError(appErr)
			} else {
				responder.RespondInternalError(err)
			}
			return
		}

		c.JSON(http.StatusOK, batch)
	}
}

func listAssignmentsHandler(service *application.AssignmentService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		status := c.Query("status")
		page := api.ParsePagination(c)
		pagination := domain.Pagination{
			Page:     page.Page,
			PageSize: page.PageSize,
		}

		batches, total, err := service.ListBatches(c.Request.Context(), status, pagination)
		if err != nil {
			if appErr, ok := errors.AsAppError(err); ok {
				responder.RespondWithAppError(appErr)
			} else {
				responder.RespondInternalError(err)
			}
			return
		}

		c.JSON(http.StatusOK, api.NewPageResponse(batches, page.Page, page.PageSize, total))
	}
}

func registerLocationHandler(service *application.LocationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			LocationID      string  `json:"locationId" binding:"required,location_id"`
			Type            string  `json:"type" binding:"required,location_type"`
			ParentID        string  `json:"parentId" binding:"omitempty,location_id"`
			BinCode         string  `json:"binCode" binding:"omitempty,bin_code"`
			CurrentQuantity string  `json:"currentQuantity"`
			MaximumQuantity *string `json:"maximumQuantity"`
			TenantID        string  `json:"tenantId"`
			FacilityID      string  `json:"facilityId"`
			WarehouseID     string  `json:"warehouseId"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		middleware.AddSpanAttributes(c, map[string]interface{}{
			"location.id":   req.LocationID,
			"location.type": req.Type,
		})

		current := decimal.Zero
		if req.CurrentQuantity != "" {
			parsed, err := decimal.NewFromString(req.CurrentQuantity)
			if err != nil {
				responder.RespondBadRequest("invalid currentQuantity: " + err.Error())
				return
			}
			current = parsed
		}

		var maximum *decimal.Decimal
		if req.MaximumQuantity != nil {
			parsed, err := decimal.NewFromString(*req.MaximumQuantity)
			if err != nil {
				responder.RespondBadRequest("invalid maximumQuantity: " + err.Error())
				return
			}
			maximum = &parsed
		}

		cmd := application.RegisterLocationCommand{
			LocationID:      req.LocationID,
			Type:            req.Type,
			ParentID:        req.ParentID,
			BinCode:         req.BinCode,
			CurrentQuantity: current,
			MaximumQuantity: maximum,
			TenantID:        req.TenantID,
			FacilityID:      req.FacilityID,
			WarehouseID:     req.WarehouseID,
		}

		location, err := service.RegisterLocation(c.Request.Context(), cmd)
		if err != nil {
			if appErr, ok := errors.AsAppError(err); ok {
				responder.RespondWithAppError(appErr)
			} else {
				responder.RespondInternalError(err)
			}
			return
		}

		c.JSON(http.StatusCreated, location)
	}
}

func getLocationHandler(service *application.LocationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		locationID := c.Param("locationId")
		middleware.AddSpanAttributes(c, map[string]interface{}{
			"location.id": locationID,
		})

		location, err := service.GetLocation(c.Request.Context(), locationID)
		if err != nil {
			if appErr, ok := errors.AsAppError(err); ok {
				responder.RespondWithAppError(appErr)
			} else {
				responder.RespondInternalError(err)
			}
			return
		}

		c.JSON(http.StatusOK, location)
	}
}

func listLocationsHandler(service *application.LocationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		locationType := c.Query("type")
		status := c.Query("status")
		page := api.ParsePagination(c)
		pagination := domain.Pagination{
			Page:     page.Page,
			PageSize: page.PageSize,
		}

		locations, total, err := service.ListLocations(c.Request.Context(), locationType, status, pagination)
		if err != nil {
			if appErr, ok := errors.AsAppError(err); ok {
				responder.RespondWithAppError(appErr)
			} else {
				responder.RespondInternalError(err)
			}
			return
		}

		c.JSON(http.StatusOK, api.NewPageResponse(locations, page.Page, page.PageSize, total))
	}
}

func blockLocationHandler(service *application.LocationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		locationID := c.Param("locationId")
		middleware.AddSpanAttributes(c, map[string]interface{}{
			"location.id": locationID,
		})

		var req struct {
			Reason string `json:"reason" binding:"required,safe_string"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		cmd := application.BlockLocationCommand{
			LocationID: locationID,
			Reason:     req.Reason,
		}

		location, err := service.BlockLocation(c.Request.Context(), cmd)
		if err != nil {
			if appErr, ok := errors.AsAppError(err); ok {
				responder.RespondWithAppError(appErr)
			} else {
				responder.RespondInternalError(err)
			}
			return
		}

		c.JSON(http.StatusOK, location)
	}
}

func unblockLocationHandler(service *application.LocationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		locationID := c.Param("locationId")
		middleware.AddSpanAttributes(c, map[string]interface{}{
			"location.id": locationID,
		})

		location, err := service.UnblockLocation(c.Request.Context(), locationID)
		if err != nil {
			if appErr, ok := errors.AsAppError(err); ok {
				responder.RespondWithAppError(appErr)
			} else {
				responder.RespondInternalError(err)
			}
			return
		}

		c.JSON(http.StatusOK, location)
	}
}
