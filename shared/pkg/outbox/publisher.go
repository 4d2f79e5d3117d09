package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/cloudevents"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/logging"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/metrics"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/resilience"
)

// EventProducer publishes CloudEvents to a topic. Both the instrumented
// Kafka producer and its circuit breaker wrapper satisfy it, so callers
// choose how much protection sits between the outbox and the broker.
type EventProducer interface {
	PublishEvent(ctx context.Context, topic string, event *cloudevents.WMSCloudEvent) error
}

// Publisher drains unpublished outbox events to the broker on a poll
// interval. An event that fails to publish keeps its outbox row with an
// incremented retry count and is retried on a later pass, so delivery is
// at-least-once and consumers must deduplicate.
type Publisher struct {
	repo      Repository
	producer  EventProducer
	logger    *logging.Logger
	metrics   *metrics.Metrics
	interval  time.Duration
	batchSize int

	mu        sync.Mutex
	running   bool
	published int
	failed    int

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// PublisherConfig controls the publisher poll loop.
type PublisherConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

// DefaultPublisherConfig returns the default poll loop settings.
func DefaultPublisherConfig() *PublisherConfig {
	return &PublisherConfig{
		PollInterval: 1 * time.Second,
		BatchSize:    100,
	}
}

// NewPublisher creates an outbox publisher. The metrics instance may be nil.
func NewPublisher(
	repo Repository,
	producer EventProducer,
	logger *logging.Logger,
	m *metrics.Metrics,
	config *PublisherConfig,
) *Publisher {
	if config == nil {
		config = DefaultPublisherConfig()
	}

	return &Publisher{
		repo:      repo,
		producer:  producer,
		logger:    logger,
		metrics:   m,
		interval:  config.PollInterval,
		batchSize: config.BatchSize,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Start launches the poll loop. It returns an error when the publisher is
// already running.
func (p *Publisher) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return errors.New("outbox publisher already started")
	}
	p.running = true
	p.mu.Unlock()

	p.logger.Info("Starting outbox publisher", "interval", p.interval, "batchSize", p.batchSize)

	go p.loop(ctx)
	return nil
}

// Stop signals the poll loop and blocks until it has drained its current
// pass.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return errors.New("outbox publisher not running")
	}
	p.mu.Unlock()

	close(p.stopCh)
	<-p.stoppedCh

	p.mu.Lock()
	p.running = false
	published, failed := p.published, p.failed
	p.mu.Unlock()

	p.logger.Info("Outbox publisher stopped", "published", published, "failed", failed)
	return nil
}

func (p *Publisher) loop(ctx context.Context) {
	defer close(p.stoppedCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.drain(ctx)
		case <-p.stopCh:
			return
		case <-ctx.Done():
			p.logger.Info("Outbox publisher context cancelled")
			return
		}
	}
}

// drain publishes one batch of unpublished events. Broker failures are
// recorded on the event and never abort the pass; later events still get
// their attempt. Only an open circuit ends the pass early.
func (p *Publisher) drain(ctx context.Context) {
	events, err := p.repo.FindUnpublished(ctx, p.batchSize)
	if err != nil {
		p.logger.WithError(err).Error("Failed to load unpublished outbox events")
		return
	}

	// Gauge is set before the empty check so it falls back to zero once the
	// backlog clears.
	if p.metrics != nil {
		p.metrics.SetOutboxPending(len(events))
	}

	if len(events) == 0 {
		return
	}

	p.logger.Info("Draining outbox", "count", len(events))

	for i, event := range events {
		start := time.Now()
		err := p.publish(ctx, event)
		elapsed := time.Since(start)

		if err == nil {
			p.recordOutcome(event.EventType, true, elapsed)
			if err := p.repo.MarkPublished(ctx, event.ID); err != nil {
				p.logger.WithError(err).Error("Failed to mark outbox event published", "eventId", event.ID)
			}
			continue
		}

		// A breaker rejection never reached the broker, so it must not
		// consume retry budget. End the pass; the next tick runs after the
		// breaker has had time to probe half-open.
		if errors.Is(err, resilience.ErrCircuitOpen) {
			p.logger.Warn("Outbox drain stopped, producer circuit open", "remaining", len(events)-i)
			break
		}

		p.logger.WithError(err).Error("Failed to publish outbox event",
			"eventId", event.ID,
			"eventType", event.EventType,
			"aggregateId", event.AggregateID,
		)
		p.recordOutcome(event.EventType, false, elapsed)

		if err := p.repo.IncrementRetry(ctx, event.ID, err.Error()); err != nil {
			p.logger.WithError(err).Error("Failed to record outbox retry", "eventId", event.ID)
		}
		if p.metrics != nil {
			p.metrics.RecordOutboxRetry(event.EventType)
		}
	}
}

// publish converts one outbox row to a CloudEvent and hands it to the
// producer.
func (p *Publisher) publish(ctx context.Context, event *OutboxEvent) error {
	cloudEvent, err := event.ToCloudEvent()
	if err != nil {
		return fmt.Errorf("convert outbox event %s: %w", event.ID, err)
	}

	if err := p.producer.PublishEvent(ctx, event.Topic, cloudEvent); err != nil {
		return fmt.Errorf("publish outbox event %s to %s: %w", event.ID, event.Topic, err)
	}

	p.logger.Info("Published outbox event",
		"eventId", event.ID,
		"eventType", event.EventType,
		"topic", event.Topic,
		"aggregateId", event.AggregateID,
	)
	return nil
}

func (p *Publisher) recordOutcome(eventType string, success bool, elapsed time.Duration) {
	p.mu.Lock()
	if success {
		p.published++
	} else {
		p.failed++
	}
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.RecordOutboxPublish(eventType, success, elapsed)
	}
}

// IsRunning reports whether the poll loop is active.
func (p *Publisher) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Stats returns how many events this publisher has published and failed
// since it started.
func (p *Publisher) Stats() (published, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.published, p.failed
}
