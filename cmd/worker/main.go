package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kumbirai/warehouse-management-system-sub012/internal/activities"
	"github.com/kumbirai/warehouse-management-system-sub012/internal/application"
	kafkaConsumer "github.com/kumbirai/warehouse-management-system-sub012/internal/infrastructure/kafka"
	mongoRepo "github.com/kumbirai/warehouse-management-system-sub012/internal/infrastructure/mongodb"
	"github.com/kumbirai/warehouse-management-system-sub012/internal/workflows"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/cloudevents"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/idempotency"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/kafka"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/logging"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/metrics"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/middleware"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/mongodb"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/temporal"
)

const workerName = "assignment-worker"

func main() {
	// Setup enhanced logger
	logConfig := logging.DefaultConfig(workerName)
	logConfig.Level = logging.LogLevel(getEnv("LOG_LEVEL", "info"))
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting assignment-service worker")

	// Load configuration
	config := loadConfig()

	// Initialize Prometheus metrics
	m := metrics.New(metrics.DefaultConfig(workerName))
	businessMetrics := middleware.NewBusinessMetrics(m)

	// Initialize MongoDB with command and pool monitors so every driver
	// operation is measured and logged
	ctx := context.Background()
	config.MongoDB.CommandMonitor = mongodb.NewCommandMonitor(m, logger)
	config.MongoDB.PoolMonitor = mongodb.NewPoolMonitor(m)
	mongoClient, err := mongodb.NewClient(ctx, config.MongoDB)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	defer mongoClient.Close(ctx)
	logger.Info("Connected to MongoDB", "database", config.MongoDB.Database)

	// Initialize idempotency indexes for message deduplication
	if err := idempotency.InitializeIndexes(ctx, mongoClient.Database()); err != nil {
		logger.WithError(err).Warn("Failed to initialize idempotency indexes")
	}

	// Initialize CloudEvents factory
	eventFactory := cloudevents.NewEventFactory(cloudevents.SourceAssignmentWorker)

	// Initialize repositories
	db := mongoClient.Database()
	locationRepo := mongoRepo.NewLocationRepository(db, eventFactory)
	batchRepo := mongoRepo.NewAssignmentRepository(db, eventFactory)

	// Initialize Temporal client
	temporalClient, err := temporal.NewClient(ctx, config.Temporal)
	if err != nil {
		logger.WithError(err).Error("Failed to create Temporal client")
		os.Exit(1)
	}
	defer temporalClient.Close()
	logger.Info("Connected to Temporal", "hostPort", config.Temporal.HostPort)

	// Workers have no API router, so metrics and liveness get a bare listener
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", m.Handler())
	metricsMux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy","service":"` + workerName + `"}`))
	})
	metricsSrv := &http.Server{Addr: config.MetricsAddr, Handler: metricsMux}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Metrics server error")
		}
	}()
	logger.Info("Metrics server started", "addr", config.MetricsAddr)

	// Create activities
	assigner := application.NewFEFOAssigner()
	assignmentActivities := activities.NewAssignmentActivities(locationRepo, batchRepo, assigner, logger.Logger, m)

	// Create worker
	workerOpts := temporal.DefaultWorkerOptions(temporal.TaskQueues.Assignment)
	w := temporalClient.NewWorker(workerOpts)

	// Register workflow
	w.RegisterWorkflow(workflows.StockAssignmentWorkflow)
	logger.Info("Registered workflow", "workflow", temporal.WorkflowNames.StockAssignment)

	// Register activities
	w.RegisterActivity(assignmentActivities.FetchCandidateLocations)
	w.RegisterActivity(assignmentActivities.ComputeAssignments)
	w.RegisterActivity(assignmentActivities.PersistAssignments)
	logger.Info("Registered activities")

	// The consumer submits inbound stock through the synchronous assignment
	// path, so it never starts workflows and needs no Temporal client.
	assignmentService := application.NewAssignmentService(
		assigner,
		batchRepo,
		locationRepo,
		nil,
		logger,
		businessMetrics,
	)

	// Consume stock inbound events, deduplicated by CloudEvents ID
	consumer := kafka.NewConsumer(config.Kafka, m, logger.Logger)
	messageRepo := idempotency.NewMongoMessageRepository(db)
	dedupeMetrics := idempotency.NewMetrics(m.Registry())
	stockInbound := kafkaConsumer.NewStockInboundConsumer(
		consumer,
		assignmentService,
		messageRepo,
		dedupeMetrics,
		config.Kafka.ConsumerGroup,
		logger.Logger,
	)

	consumerCtx, cancelConsumer := context.WithCancel(ctx)
	defer cancelConsumer()
	go func() {
		if err := stockInbound.Start(consumerCtx); err != nil && consumerCtx.Err() == nil {
			logger.WithError(err).Error("Stock inbound consumer failed")
			os.Exit(1)
		}
	}()
	logger.Info("Stock inbound consumer started", "topic", kafka.Topics.StockInbound, "group", config.Kafka.ConsumerGroup)

	// Start worker in background
	go func() {
		if err := w.Run(nil); err != nil {
			logger.WithError(err).Error("Worker failed")
			os.Exit(1)
		}
	}()
	logger.Info("Worker started", "taskQueue", temporal.TaskQueues.Assignment)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down worker...")

	cancelConsumer()
	if err := stockInbound.Close(); err != nil {
		logger.WithError(err).Error("Failed to close stock inbound consumer")
	}
	w.Stop()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Metrics server forced to shutdown")
	}

	logger.Info("Worker stopped")
}

// Config holds application configuration
type Config struct {
	MetricsAddr string
	MongoDB     *mongodb.Config
	Kafka       *kafka.Config
	Temporal    *temporal.Config
}

func loadConfig() *Config {
	return &Config{
		MetricsAddr: getEnv("METRICS_ADDR", ":9012"),
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
			ConsumerGroup: workerName,
			ClientID:      workerName,
			MinBytes:      1,
			MaxBytes:      10 * 1024 * 1024,
			MaxWait:       500 * time.Millisecond,
			CommitTimeout: 5 * time.Second,
		},
		Temporal: &temporal.Config{
			HostPort:  getEnv("TEMPORAL_HOST", "localhost:7233"),
			Namespace: getEnv("TEMPORAL_NAMESPACE", "default"),
			Identity:  workerName,
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
