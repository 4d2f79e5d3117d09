package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// LogLevel represents logging levels
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Config holds logger configuration
type Config struct {
	Level       LogLevel
	ServiceName string
	Environment string
	Version     string
	Output      io.Writer
	AddSource   bool
}

// DefaultConfig returns a default logger configuration
func DefaultConfig(serviceName string) *Config {
	return &Config{
		Level:       LevelInfo,
		ServiceName: serviceName,
		Environment: getEnv("ENVIRONMENT", "development"),
		Version:     getEnv("VERSION", "unknown"),
		Output:      os.Stdout,
		AddSource:   false,
	}
}

// Logger wraps slog.Logger with additional functionality
type Logger struct {
	*slog.Logger
	serviceName string
	environment string
	version     string
}

// New creates a new Logger instance
func New(config *Config) *Logger {
	level := slog.LevelInfo
	switch config.Level {
	case LevelDebug:
		level = slog.LevelDebug
	case LevelWarn:
		level = slog.LevelWarn
	case LevelError:
		level = slog.LevelError
	}

	output := config.Output
	if output == nil {
		output = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: config.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Customize time format
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339Nano))
				}
			}
			return a
		},
	}

	handler := slog.NewJSONHandler(output, opts)

	// Add base attributes
	baseLogger := slog.New(handler).With(
		"service", config.ServiceName,
		"environment", config.Environment,
		"version", config.Version,
	)

	return &Logger{
		Logger:      baseLogger,
		serviceName: config.ServiceName,
		environment: config.Environment,
		version:     config.Version,
	}
}

// WithContext creates a logger with context attributes
func (l *Logger) WithContext(ctx context.Context) *Logger {
	attrs := extractContextAttrs(ctx)
	if len(attrs) == 0 {
		return l
	}

	return &Logger{
		Logger:      l.Logger.With(attrs...),
		serviceName: l.serviceName,
		environment: l.environment,
		version:     l.version,
	}
}

// WithError adds an error to the logger
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return &Logger{
		Logger:      l.Logger.With("error", err.Error()),
		serviceName: l.serviceName,
		environment: l.environment,
		version:     l.version,
	}
}

// DatabaseQuery logs a database query
func (l *Logger) DatabaseQuery(ctx context.Context, collection, operation string, duration time.Duration, success bool) {
	level := slog.LevelDebug
	if !success {
		level = slog.LevelError
	}

	l.WithContext(ctx).Log(ctx, level, "Database query",
		"collection", collection,
		"operation", operation,
		"durationMs", duration.Milliseconds(),
		"success", success,
	)
}

// KafkaPublish logs a Kafka publish event
func (l *Logger) KafkaPublish(ctx context.Context, topic, eventType string, success bool, duration time.Duration) {
	level := slog.LevelDebug
	if !success {
		level = slog.LevelError
	}

	l.WithContext(ctx).Log(ctx, level, "Kafka publish",
		"topic", topic,
		"eventType", eventType,
		"success", success,
		"durationMs", duration.Milliseconds(),
	)
}

// SetDefault sets this logger as the default slog logger
func (l *Logger) SetDefault() {
	slog.SetDefault(l.Logger)
}

// Context keys for extracting attributes
type contextKey string

const (
	RequestIDKey     contextKey = "requestId"
	CorrelationIDKey contextKey = "correlationId"

	WMSCorrelationIDKey contextKey = "wmsCorrelationId"
	WMSBatchIDKey       contextKey = "wmsBatchId"
	WMSWorkflowIDKey    contextKey = "wmsWorkflowId"
	WMSTenantIDKey      contextKey = "wmsTenantId"
	WMSFacilityIDKey    contextKey = "wmsFacilityId"
	WMSWarehouseIDKey   contextKey = "wmsWarehouseId"
)

// extractContextAttrs extracts logging attributes from context
func extractContextAttrs(ctx context.Context) []any {
	var attrs []any

	if v := ctx.Value(RequestIDKey); v != nil {
		attrs = append(attrs, "requestId", v)
	}
	if v := ctx.Value(CorrelationIDKey); v != nil {
		attrs = append(attrs, "correlationId", v)
	}
	if v := ctx.Value(WMSCorrelationIDKey); v != nil {
		attrs = append(attrs, "wmsCorrelationId", v)
	}
	if v := ctx.Value(WMSBatchIDKey); v != nil {
		attrs = append(attrs, "wmsBatchId", v)
	}
	if v := ctx.Value(WMSWorkflowIDKey); v != nil {
		attrs = append(attrs, "wmsWorkflowId", v)
	}
	if v := ctx.Value(WMSTenantIDKey); v != nil {
		attrs = append(attrs, "wmsTenantId", v)
	}
	if v := ctx.Value(WMSFacilityIDKey); v != nil {
		attrs = append(attrs, "wmsFacilityId", v)
	}
	if v := ctx.Value(WMSWarehouseIDKey); v != nil {
		attrs = append(attrs, "wmsWarehouseId", v)
	}

	return attrs
}

// ContextWithRequestID adds request ID to context
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// ContextWithCorrelationID adds correlation ID to context
func ContextWithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, correlationID)
}

// ContextWithCloudEventExtensions adds all WMS CloudEvents extensions to context in one call.
// Empty values are skipped.
func ContextWithCloudEventExtensions(ctx context.Context, correlationID, batchID, workflowID, tenantID, facilityID, warehouseID string) context.Context {
	for key, value := range map[contextKey]string{
		WMSCorrelationIDKey: correlationID,
		WMSBatchIDKey:       batchID,
		WMSWorkflowIDKey:    workflowID,
		WMSTenantIDKey:      tenantID,
		WMSFacilityIDKey:    facilityID,
		WMSWarehouseIDKey:   warehouseID,
	} {
		if value != "" {
			ctx = context.WithValue(ctx, key, value)
		}
	}
	return ctx
}

// CorrelationIDFromContext returns the correlation ID carried by the context,
// preferring the WMS CloudEvents extension over the HTTP middleware value.
func CorrelationIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(WMSCorrelationIDKey).(string); ok && v != "" {
		return v
	}
	if v, ok := ctx.Value(CorrelationIDKey).(string); ok && v != "" {
		return v
	}
	return ""
}

// WorkflowIDFromContext returns the workflow ID carried by the context
func WorkflowIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(WMSWorkflowIDKey).(string); ok && v != "" {
		return v
	}
	return ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
