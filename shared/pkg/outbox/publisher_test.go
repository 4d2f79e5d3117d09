package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/cloudevents"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/logging"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/resilience"
	sharedtesting "github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/testing"
)

type fakeOutboxRepo struct {
	mu      sync.Mutex
	events  []*OutboxEvent
	findErr error
}

func (f *fakeOutboxRepo) SaveAll(_ context.Context, events []*OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, events...)
	return nil
}

func (f *fakeOutboxRepo) FindUnpublished(_ context.Context, limit int) ([]*OutboxEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	var unpublished []*OutboxEvent
	for _, event := range f.events {
		if event.PublishedAt == nil && event.RetryCount < event.MaxRetries {
			unpublished = append(unpublished, event)
			if len(unpublished) == limit {
				break
			}
		}
	}
	return unpublished, nil
}

func (f *fakeOutboxRepo) MarkPublished(_ context.Context, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, event := range f.events {
		if event.ID == eventID {
			now := time.Now()
			event.PublishedAt = &now
			return nil
		}
	}
	return errors.New("event not found")
}

func (f *fakeOutboxRepo) IncrementRetry(_ context.Context, eventID string, errorMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, event := range f.events {
		if event.ID == eventID {
			event.RetryCount++
			event.LastError = errorMsg
			return nil
		}
	}
	return errors.New("event not found")
}

func (f *fakeOutboxRepo) FindByAggregateID(_ context.Context, aggregateID string) ([]*OutboxEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []*OutboxEvent
	for _, event := range f.events {
		if event.AggregateID == aggregateID {
			matched = append(matched, event)
		}
	}
	return matched, nil
}

func (f *fakeOutboxRepo) publishedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, event := range f.events {
		if event.PublishedAt != nil {
			count++
		}
	}
	return count
}

func (f *fakeOutboxRepo) retryState(eventID string) (int, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, event := range f.events {
		if event.ID == eventID {
			return event.RetryCount, event.LastError
		}
	}
	return 0, ""
}

type fakeProducer struct {
	mu        sync.Mutex
	err       error
	topics    []string
	delivered []*cloudevents.WMSCloudEvent
}

func (f *fakeProducer) PublishEvent(_ context.Context, topic string, event *cloudevents.WMSCloudEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.topics = append(f.topics, topic)
	f.delivered = append(f.delivered, event)
	return nil
}

func (f *fakeProducer) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeProducer) deliveredCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.delivered)
}

func (f *fakeProducer) deliveredTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	types := make([]string, 0, len(f.delivered))
	for _, event := range f.delivered {
		types = append(types, event.Type)
	}
	return types
}

func testPublisher(repo Repository, producer EventProducer) *Publisher {
	logger := logging.New(logging.DefaultConfig("outbox-test"))
	return NewPublisher(repo, producer, logger, nil, &PublisherConfig{
		PollInterval: 10 * time.Millisecond,
		BatchSize:    10,
	})
}

func seedEvent(t *testing.T, repo *fakeOutboxRepo, batchID string) *OutboxEvent {
	t.Helper()
	factory := cloudevents.NewEventFactory("test-service")
	cloudEvent := factory.CreateAssignmentBatchCompletedEvent(
		context.Background(), batchID, "completed", 2, 0, time.Now().UTC(),
	)
	event, err := NewOutboxEventFromCloudEvent(batchID, "AssignmentBatch", "assignment-events", cloudEvent)
	require.NoError(t, err)
	require.NoError(t, repo.SaveAll(context.Background(), []*OutboxEvent{event}))
	return event
}

func TestPublisher_DrainsSeededEvents(t *testing.T) {
	repo := &fakeOutboxRepo{}
	producer := &fakeProducer{}
	seedEvent(t, repo, "ASG-11111111")
	seedEvent(t, repo, "ASG-22222222")

	publisher := testPublisher(repo, producer)
	ctx, cancel := sharedtesting.CreateTestContext(5 * time.Second)
	defer cancel()

	require.NoError(t, publisher.Start(ctx))
	defer publisher.Stop()

	sharedtesting.AssertEventually(t, func() bool {
		return producer.deliveredCount() == 2 && repo.publishedCount() == 2
	}, 2*time.Second, "both outbox events delivered and marked published")

	assert.Equal(t, []string{cloudevents.AssignmentBatchCompleted, cloudevents.AssignmentBatchCompleted}, producer.deliveredTypes())

	published, failed := publisher.Stats()
	assert.Equal(t, 2, published)
	assert.Zero(t, failed)
}

func TestPublisher_RecordsRetryOnPublishFailure(t *testing.T) {
	repo := &fakeOutboxRepo{}
	producer := &fakeProducer{}
	producer.fail(errors.New("broker unreachable"))
	event := seedEvent(t, repo, "ASG-33333333")
	event.MaxRetries = 100

	publisher := testPublisher(repo, producer)
	ctx, cancel := sharedtesting.CreateTestContext(5 * time.Second)
	defer cancel()

	require.NoError(t, publisher.Start(ctx))
	defer publisher.Stop()

	sharedtesting.AssertEventually(t, func() bool {
		retries, _ := repo.retryState(event.ID)
		return retries >= 1
	}, 2*time.Second, "failed publish increments the retry count")

	_, lastError := repo.retryState(event.ID)
	assert.Contains(t, lastError, "broker unreachable")
	assert.Zero(t, repo.publishedCount())

	// Once the broker recovers the same event goes out on a later pass.
	producer.fail(nil)
	sharedtesting.AssertEventually(t, func() bool {
		return repo.publishedCount() == 1
	}, 2*time.Second, "event delivered after the broker recovers")
}

func TestPublisher_OpenCircuitLeavesRetryBudgetUntouched(t *testing.T) {
	repo := &fakeOutboxRepo{}
	producer := &fakeProducer{}
	producer.fail(fmt.Errorf("%w: kafka-producer", resilience.ErrCircuitOpen))
	first := seedEvent(t, repo, "ASG-55555555")
	second := seedEvent(t, repo, "ASG-66666666")

	publisher := testPublisher(repo, producer)
	ctx, cancel := sharedtesting.CreateTestContext(5 * time.Second)
	defer cancel()

	require.NoError(t, publisher.Start(ctx))
	time.Sleep(100 * time.Millisecond)

	retries, _ := repo.retryState(first.ID)
	assert.Zero(t, retries, "breaker rejections do not consume retry budget")
	retries, _ = repo.retryState(second.ID)
	assert.Zero(t, retries)
	assert.Zero(t, producer.deliveredCount())

	// Once the breaker closes the same events drain normally.
	producer.fail(nil)
	sharedtesting.AssertEventually(t, func() bool {
		return repo.publishedCount() == 2
	}, 2*time.Second, "events delivered after the circuit closes")

	require.NoError(t, publisher.Stop())
}

func TestPublisher_SkipsEventsOverRetryBudget(t *testing.T) {
	repo := &fakeOutboxRepo{}
	producer := &fakeProducer{}
	event := seedEvent(t, repo, "ASG-44444444")
	event.RetryCount = event.MaxRetries

	publisher := testPublisher(repo, producer)
	ctx, cancel := sharedtesting.CreateTestContext(5 * time.Second)
	defer cancel()

	require.NoError(t, publisher.Start(ctx))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, publisher.Stop())

	assert.Zero(t, producer.deliveredCount(), "exhausted events are not retried")
}

func TestPublisher_StartAndStopLifecycle(t *testing.T) {
	repo := &fakeOutboxRepo{}
	publisher := testPublisher(repo, &fakeProducer{})
	ctx, cancel := sharedtesting.CreateTestContext(5 * time.Second)
	defer cancel()

	assert.False(t, publisher.IsRunning())
	assert.Error(t, publisher.Stop(), "stopping a publisher that never started fails")

	require.NoError(t, publisher.Start(ctx))
	assert.True(t, publisher.IsRunning())
	assert.Error(t, publisher.Start(ctx), "second start fails while running")

	require.NoError(t, publisher.Stop())
	assert.False(t, publisher.IsRunning())
}
