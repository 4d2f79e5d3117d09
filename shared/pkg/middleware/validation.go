package middleware

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/errors"
)

var validateOnce sync.Once

// InitValidator registers the custom binding validators with Gin's validator
// engine. Safe to call more than once.
func InitValidator() {
	validateOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		_ = v.RegisterValidation("batch_id", validateBatchID)
		_ = v.RegisterValidation("stock_item_id", validateStockItemID)
		_ = v.RegisterValidation("location_id", validateLocationID)
		_ = v.RegisterValidation("bin_code", validateBinCode)
		_ = v.RegisterValidation("location_type", validateLocationType)
		_ = v.RegisterValidation("classification", validateClassification)
		_ = v.RegisterValidation("decimal_quantity", validateDecimalQuantity)
		_ = v.RegisterValidation("safe_string", validateSafeString)

		// Use JSON tag names in validation error messages
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return fld.Name
			}
			return name
		})
	})
}

// Custom validators

var (
	batchIDRegex     = regexp.MustCompile(`^ASG-[a-zA-Z0-9]{8,}$`)
	stockItemIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)
	locationIDRegex  = regexp.MustCompile(`^[A-Z0-9][A-Z0-9_-]{1,63}$`)
	binCodeRegex     = regexp.MustCompile(`^[A-Z]{1,2}-\d{2}-R\d{2}-L\d{2}-B\d{2}$`)
	safeStringRegex  = regexp.MustCompile(`^[a-zA-Z0-9\s\-_.,!?@#$%&*()+=:;'"<>\/\[\]{}|\\~\x60]+$`)
)

func validateBatchID(fl validator.FieldLevel) bool {
	return batchIDRegex.MatchString(fl.Field().String())
}

func validateStockItemID(fl validator.FieldLevel) bool {
	return stockItemIDRegex.MatchString(fl.Field().String())
}

func validateLocationID(fl validator.FieldLevel) bool {
	return locationIDRegex.MatchString(fl.Field().String())
}

func validateBinCode(fl validator.FieldLevel) bool {
	return binCodeRegex.MatchString(fl.Field().String())
}

func validateLocationType(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	validTypes := map[string]bool{
		"WAREHOUSE": true,
		"ZONE":      true,
		"AISLE":     true,
		"RACK":      true,
		"BIN":       true,
	}
	return validTypes[value]
}

func validateClassification(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	validClassifications := map[string]bool{
		"PERISHABLE":     true,
		"NON_PERISHABLE": true,
		"HAZMAT":         true,
		"FRAGILE":        true,
	}
	return validClassifications[value]
}

// validateDecimalQuantity accepts strictly positive decimal strings.
// Quantities travel as strings end to end so binary floats never touch them.
func validateDecimalQuantity(fl validator.FieldLevel) bool {
	value, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return false
	}
	return value.IsPositive()
}

func validateSafeString(fl validator.FieldLevel) bool {
	return safeStringRegex.MatchString(fl.Field().String())
}

// ValidationErrorFormatter formats validation errors into a map
func ValidationErrorFormatter(err error) map[string]string {
	fields := make(map[string]string)

	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrors {
			field := e.Field()
			fields[field] = formatValidationError(e)
		}
	}

	return fields
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + e.Param()
	case "max":
		return "must be at most " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	case "uuid":
		return "must be a valid UUID"
	case "batch_id":
		return "must be a valid assignment batch ID (format: ASG-xxxxxxxx)"
	case "stock_item_id":
		return "must be a valid stock item ID (alphanumeric with dashes or underscores)"
	case "location_id":
		return "must be a valid location ID (uppercase alphanumeric with dashes)"
	case "bin_code":
		return "must be a valid bin code (format: A-01-R02-L03-B04)"
	case "location_type":
		return "must be one of: WAREHOUSE, ZONE, AISLE, RACK, BIN"
	case "classification":
		return "must be one of: PERISHABLE, NON_PERISHABLE, HAZMAT, FRAGILE"
	case "decimal_quantity":
		return "must be a positive decimal number"
	case "safe_string":
		return "contains invalid characters"
	case "oneof":
		return "must be one of: " + e.Param()
	default:
		return "is invalid"
	}
}

// BindAndValidate binds request body and validates it
func BindAndValidate(c *gin.Context, obj interface{}) *errors.AppError {
	if err := c.ShouldBindJSON(obj); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			fields := ValidationErrorFormatter(validationErrors)
			return errors.ErrValidationWithFields("validation failed", fields)
		}
		return errors.ErrBadRequest("invalid request body: " + err.Error())
	}
	return nil
}

// BindUriAndValidate binds path parameters and validates them
func BindUriAndValidate(c *gin.Context, obj interface{}) *errors.AppError {
	if err := c.ShouldBindUri(obj); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			fields := ValidationErrorFormatter(validationErrors)
			return errors.ErrValidationWithFields("validation failed", fields)
		}
		return errors.ErrBadRequest("invalid path parameter: " + err.Error())
	}
	return nil
}

// SanitizeString removes potentially dangerous characters from a string
func SanitizeString(s string) string {
	// Remove null bytes
	s = strings.ReplaceAll(s, "\x00", "")

	// Trim whitespace
	s = strings.TrimSpace(s)

	return s
}

// InputSanitizer middleware sanitizes string inputs
func InputSanitizer() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Sanitize query parameters
		query := c.Request.URL.Query()
		for key, values := range query {
			for i, v := range values {
				values[i] = SanitizeString(v)
			}
			query[key] = values
		}
		c.Request.URL.RawQuery = query.Encode()

		c.Next()
	}
}

// ContentType middleware ensures proper content type for POST/PUT/PATCH
func ContentType() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == "POST" || c.Request.Method == "PUT" || c.Request.Method == "PATCH" {
			contentType := c.GetHeader("Content-Type")
			if contentType == "" || !strings.HasPrefix(contentType, "application/json") {
				// Allow empty body for some endpoints
				if c.Request.ContentLength > 0 {
					AbortWithAppError(c, &errors.AppError{
						Code:       "INVALID_CONTENT_TYPE",
						Message:    "Content-Type must be application/json",
						HTTPStatus: 415,
					})
					return
				}
			}
		}
		c.Next()
	}
}
