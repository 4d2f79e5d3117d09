package idempotency

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header carrying the client's key.
const HeaderIdempotencyKey = "Idempotency-Key"

// captureWriter tees the response body so it can be cached for replay.
type captureWriter struct {
	gin.ResponseWriter
	body       *bytes.Buffer
	statusCode int
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Middleware makes mutating endpoints safe to retry. A request carrying an
// Idempotency-Key header locks the key, runs the handler once, and caches
// the response; retries with the same key and body replay the cached
// response instead of re-executing the handler.
func Middleware(config *Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if config.OnlyMutating && !isMutatingMethod(c.Request.Method) {
			c.Next()
			return
		}

		key := NormalizeKey(c.GetHeader(HeaderIdempotencyKey))
		if key == "" {
			if config.RequireKey {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
					"error": "Idempotency-Key header is required for this operation",
					"code":  "IDEMPOTENCY_KEY_REQUIRED",
				})
				return
			}
			c.Next()
			return
		}

		if err := ValidateKey(key, config.MaxKeyLength); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("Invalid idempotency key: %v", err),
				"code":  "IDEMPOTENCY_KEY_INVALID",
			})
			return
		}

		// The body is consumed for fingerprinting, then restored for the
		// handler chain.
		var requestBody []byte
		if c.Request.Body != nil {
			requestBody, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))
		}

		var tenantID string
		if config.TenantIDExtractor != nil {
			tenantID = config.TenantIDExtractor(c)
		}

		handleKeyedRequest(c, config, key, tenantID, ComputeFingerprint(requestBody))
	}
}

func handleKeyedRequest(c *gin.Context, config *Config, key, tenantID, fingerprint string) {
	ctx := c.Request.Context()
	lockStart := time.Now()

	record := &IdempotencyKey{
		Key:                key,
		TenantID:           tenantID,
		ServiceID:          config.ServiceName,
		RequestPath:        c.Request.URL.Path,
		RequestMethod:      c.Request.Method,
		RequestFingerprint: fingerprint,
		CreatedAt:          time.Now().UTC(),
		ExpiresAt:          time.Now().UTC().Add(config.RetentionPeriod),
	}

	existing, isNew, err := config.Repository.AcquireLock(ctx, record)
	if err != nil {
		slog.Error("Idempotency lock acquisition failed",
			"error", err,
			"key", key,
			"service", config.ServiceName,
			"path", c.Request.URL.Path,
		)
		if config.Metrics != nil {
			config.Metrics.RecordStorageError(config.ServiceName, "acquire_lock")
		}
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
			"error": "Idempotency storage is temporarily unavailable",
			"code":  "IDEMPOTENCY_STORAGE_UNAVAILABLE",
		})
		return
	}

	if config.Metrics != nil {
		config.Metrics.RecordLockAcquisitionDuration(
			config.ServiceName, c.Request.URL.Path, c.Request.Method,
			time.Since(lockStart).Seconds(),
		)
	}

	if existing.IsCompleted() {
		replayCompletedRequest(c, config, existing, key, fingerprint)
		return
	}

	if !isNew && existing.IsLocked() {
		lockAge := time.Since(*existing.LockedAt)
		if lockAge < config.LockTimeout {
			slog.Warn("Concurrent request with same idempotency key",
				"key", key,
				"service", config.ServiceName,
				"path", c.Request.URL.Path,
				"lockAge", lockAge,
			)
			if config.Metrics != nil {
				config.Metrics.RecordConcurrentCollision(
					config.ServiceName, c.Request.URL.Path, c.Request.Method,
				)
			}
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"error": "A request with this idempotency key is currently being processed",
				"code":  "IDEMPOTENCY_CONCURRENT_REQUEST",
			})
			return
		}

		// The previous holder died mid-request. Take over the key.
		slog.Info("Reclaiming abandoned idempotency lock",
			"key", key,
			"service", config.ServiceName,
			"path", c.Request.URL.Path,
			"lockAge", lockAge,
		)
	}

	if config.Metrics != nil {
		config.Metrics.RecordMiss(config.ServiceName, c.Request.URL.Path, c.Request.Method)
	}

	writer := &captureWriter{
		ResponseWriter: c.Writer,
		body:           &bytes.Buffer{},
		statusCode:     http.StatusOK,
	}
	c.Writer = writer

	c.Next()

	responseBody := writer.body.Bytes()
	if len(responseBody) > config.MaxResponseSize {
		slog.Warn("Response too large to cache for replay",
			"key", key,
			"service", config.ServiceName,
			"path", c.Request.URL.Path,
			"size", len(responseBody),
			"maxSize", config.MaxResponseSize,
		)
		responseBody = []byte(fmt.Sprintf(`{"error":"Response too large to cache","size":%d}`, len(responseBody)))
	}

	err = config.Repository.StoreResponse(
		ctx,
		existing.ID.Hex(),
		writer.statusCode,
		responseBody,
		collectResponseHeaders(c),
	)
	if err != nil {
		// The handler already ran; a retry with this key will re-execute it
		// once the lock goes stale.
		slog.Error("Failed to store idempotent response",
			"error", err,
			"key", key,
			"service", config.ServiceName,
			"path", c.Request.URL.Path,
		)
		if config.Metrics != nil {
			config.Metrics.RecordStorageError(config.ServiceName, "store_response")
		}
	}
}

// replayCompletedRequest returns the cached response, rejecting retries whose
// body differs from the original request.
func replayCompletedRequest(c *gin.Context, config *Config, existing *IdempotencyKey, key, fingerprint string) {
	if existing.RequestFingerprint != fingerprint {
		slog.Warn("Idempotency key reused with different request body",
			"key", key,
			"service", config.ServiceName,
			"path", c.Request.URL.Path,
		)
		if config.Metrics != nil {
			config.Metrics.RecordParameterMismatch(
				config.ServiceName, c.Request.URL.Path, c.Request.Method,
			)
		}
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
			"error": "Request parameters differ from original request with this idempotency key",
			"code":  "IDEMPOTENCY_PARAMETER_MISMATCH",
		})
		return
	}

	slog.Info("Replaying cached idempotent response",
		"key", key,
		"service", config.ServiceName,
		"path", c.Request.URL.Path,
		"statusCode", existing.ResponseCode,
	)
	if config.Metrics != nil {
		config.Metrics.RecordHit(config.ServiceName, c.Request.URL.Path, c.Request.Method)
	}

	for k, v := range existing.ResponseHeaders {
		c.Header(k, v)
	}
	c.Data(existing.ResponseCode, "application/json", existing.ResponseBody)
	c.Abort()
}

func isMutatingMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func collectResponseHeaders(c *gin.Context) map[string]string {
	headers := make(map[string]string)
	for k, v := range c.Writer.Header() {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}
	return headers
}
