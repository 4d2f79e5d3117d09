package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/cloudevents"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/idempotency"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/kafka"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/logging"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/metrics"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/middleware"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/mongodb"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/outbox"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/temporal"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/tenant"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/tracing"

	"github.com/kumbirai/warehouse-management-system-sub012/internal/application"
	mongoRepo "github.com/kumbirai/warehouse-management-system-sub012/internal/infrastructure/mongodb"
)

func main() {
	// Setup enhanced logger
	logConfig := logging.DefaultConfig(serviceName)
	logConfig.Level = logging.LogLevel(getEnv("LOG_LEVEL", "info"))
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting assignment-service API")

	// Load configuration
	config := loadConfig()
	ctx := context.Background()

	// Initialize OpenTelemetry tracing
	tracingConfig := tracing.DefaultConfig(serviceName)
	tracingConfig.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	tracingConfig.Environment = getEnv("ENVIRONMENT", "development")
	tracingConfig.Enabled = getEnv("TRACING_ENABLED", "true") == "true"

	tracerProvider, err := tracing.Initialize(ctx, tracingConfig)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
	} else if tracerProvider != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("Failed to shutdown tracer")
			}
		}()
		logger.Info("Tracing initialized", "endpoint", tracingConfig.OTLPEndpoint)
	}

	// Initialize Prometheus metrics
	metricsConfig := metrics.DefaultConfig(serviceName)
	m := metrics.New(metricsConfig)
	businessMetrics := middleware.NewBusinessMetrics(m)
	logger.Info("Metrics initialized")

	// Initialize MongoDB with command and pool monitors so every driver
	// operation is measured and logged
	config.MongoDB.CommandMonitor = mongodb.NewCommandMonitor(m, logger)
	config.MongoDB.PoolMonitor = mongodb.NewPoolMonitor(m)
	mongoClient, err := mongodb.NewClient(ctx, config.MongoDB)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	defer mongoClient.Close(ctx)
	logger.Info("Connected to MongoDB", "database", config.MongoDB.Database)

	// Initialize idempotency indexes
	if err := idempotency.InitializeIndexes(ctx, mongoClient.Database()); err != nil {
		logger.WithError(err).Warn("Failed to initialize idempotency indexes")
	}

	// Initialize Kafka producer with instrumentation and a circuit breaker.
	// The breaker sits between the outbox and the broker; rejected events
	// stay in the outbox for the next drain pass.
	kafkaProducer := kafka.NewProducer(config.Kafka)
	instrumentedProducer := kafka.NewInstrumentedProducer(kafkaProducer, m, logger)
	outboxProducer := kafka.NewCircuitBreakerProducer(instrumentedProducer, logger, businessMetrics)
	defer outboxProducer.Close()
	logger.Info("Kafka producer initialized", "brokers", config.Kafka.Brokers)

	// Initialize CloudEvents factory
	eventFactory := cloudevents.NewEventFactory(cloudevents.SourceAssignmentService)

	// Initialize repositories with the shared database handle and event factory
	db := mongoClient.Database()
	locationRepo := mongoRepo.NewLocationRepository(db, eventFactory)
	batchRepo := mongoRepo.NewAssignmentRepository(db, eventFactory)
	idempotencyKeyRepo := idempotency.NewMongoKeyRepository(db)

	// Initialize and start outbox publisher. Both repositories share one
	// outbox collection, so a single publisher drains all domain events.
	outboxPublisher := outbox.NewPublisher(
		batchRepo.GetOutboxRepository(),
		outboxProducer,
		logger,
		m,
		&outbox.PublisherConfig{
			PollInterval: 1 * time.Second,
			BatchSize:    100,
		},
	)
	if err := outboxPublisher.Start(ctx); err != nil {
		logger.WithError(err).Error("Failed to start outbox publisher")
		os.Exit(1)
	}
	defer outboxPublisher.Stop()
	logger.Info("Outbox publisher started")

	// Initialize Temporal client for async assignment workflows
	temporalClient, err := temporal.NewClient(ctx, config.Temporal)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to Temporal")
		os.Exit(1)
	}
	defer temporalClient.Close()
	logger.Info("Connected to Temporal", "namespace", config.Temporal.Namespace)

	// Initialize application services
	assignmentService := application.NewAssignmentService(
		application.NewFEFOAssigner(),
		batchRepo,
		locationRepo,
		temporalClient,
		logger,
		businessMetrics,
	)
	locationService := application.NewLocationService(locationRepo, logger, businessMetrics)

	// Setup Gin router with middleware
	router := gin.New()

	// Apply standard middleware
	middlewareConfig := middleware.DefaultConfig(serviceName, logger.Logger)
	idempotencyConfig := idempotency.DefaultConfig(serviceName, idempotencyKeyRepo)
	idempotencyConfig.Metrics = idempotency.NewMetrics(m.Registry())
	idempotencyConfig.TenantIDExtractor = func(c *gin.Context) string {
		return tenant.GetTenantID(c.Request.Context())
	}
	middlewareConfig.IdempotencyConfig = idempotencyConfig
	middleware.Setup(router, middlewareConfig)

	// Add metrics middleware
	router.Use(middleware.MetricsMiddleware(m))

	// Add tracing middleware
	router.Use(middleware.SimpleTracingMiddleware(serviceName))

	// Handle 404 and 405 errors
	router.NoRoute(middleware.NoRoute())
	router.NoMethod(middleware.NoMethod())

	// Health check endpoints
	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/ready", middleware.ReadinessCheck(serviceName, func() error {
		return mongoClient.HealthCheck(ctx)
	}))

	// Metrics endpoint
	router.GET("/metrics", middleware.MetricsEndpoint(m))

	// API v1 routes
	apiV1 := router.Group("/api/v1")
	{
		assignments := apiV1.Group("/assignments")
		{
			assignments.POST("", assignStockHandler(assignmentService, logger))
			assignments.GET("", listAssignmentsHandler(assignmentService, logger))
			assignments.GET("/:batchId", getAssignmentHandler(assignmentService, logger))
		}

		locations := apiV1.Group("/locations")
		{
			locations.POST("", registerLocationHandler(locationService, logger))
			locations.GET("", listLocationsHandler(locationService, logger))
			locations.GET("/:locationId", getLocationHandler(locationService, logger))
			locations.POST("/:locationId/block", blockLocationHandler(locationService, logger))
			locations.POST("/:locationId/unblock", unblockLocationHandler(locationService, logger))
		}
	}

	// Start server
	srv := &http.Server{
		Addr:         config.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Server error")
		}
	}()
	logger.Info("Server started", "addr", config.ServerAddr)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server stopped")
}
