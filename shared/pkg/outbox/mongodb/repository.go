package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/outbox"
)

// CollectionName is where outbox events are stored. Every repository that
// participates in the transactional outbox writes to the same collection so
// one publisher drains them all.
const CollectionName = "outbox_events"

// publishedRetentionSeconds is how long published events stay around for
// inspection before the TTL index removes them.
const publishedRetentionSeconds = 7 * 24 * 60 * 60

// OutboxRepository implements outbox.Repository on MongoDB.
type OutboxRepository struct {
	collection *mongo.Collection
}

// NewOutboxRepository creates a MongoDB outbox repository.
func NewOutboxRepository(db *mongo.Database) *OutboxRepository {
	return &OutboxRepository{
		collection: db.Collection(CollectionName),
	}
}

// SaveAll inserts events in one write. A session-carrying context makes the
// insert part of the surrounding transaction.
func (r *OutboxRepository) SaveAll(ctx context.Context, events []*outbox.OutboxEvent) error {
	if len(events) == 0 {
		return nil
	}

	docs := make([]interface{}, len(events))
	for i, event := range events {
		docs[i] = event
	}

	if _, err := r.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert outbox events: %w", err)
	}
	return nil
}

// FindUnpublished returns undelivered events oldest first. Events that have
// exhausted their retry budget stay in the collection for inspection but are
// no longer picked up.
func (r *OutboxRepository) FindUnpublished(ctx context.Context, limit int) ([]*outbox.OutboxEvent, error) {
	filter := bson.M{
		"publishedAt": bson.M{"$exists": false},
		"$expr":       bson.M{"$lt": bson.A{"$retryCount", "$maxRetries"}},
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find unpublished outbox events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []*outbox.OutboxEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("decode outbox events: %w", err)
	}
	return events, nil
}

// MarkPublished stamps an event as delivered.
func (r *OutboxRepository) MarkPublished(ctx context.Context, eventID string) error {
	update := bson.M{"$set": bson.M{"publishedAt": time.Now()}}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": eventID}, update)
	if err != nil {
		return fmt.Errorf("mark outbox event published: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("outbox event not found: %s", eventID)
	}
	return nil
}

// IncrementRetry bumps the retry count and records the publish error.
func (r *OutboxRepository) IncrementRetry(ctx context.Context, eventID string, errorMsg string) error {
	update := bson.M{
		"$inc": bson.M{"retryCount": 1},
		"$set": bson.M{"lastError": errorMsg},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": eventID}, update)
	if err != nil {
		return fmt.Errorf("increment outbox retry count: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("outbox event not found: %s", eventID)
	}
	return nil
}

// FindByAggregateID returns every event recorded for one aggregate, oldest
// first.
func (r *OutboxRepository) FindByAggregateID(ctx context.Context, aggregateID string) ([]*outbox.OutboxEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"aggregateId": aggregateID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find outbox events by aggregate: %w", err)
	}
	defer cursor.Close(ctx)

	var events []*outbox.OutboxEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("decode outbox events: %w", err)
	}
	return events, nil
}

// EnsureIndexes creates the outbox indexes, including the TTL index that
// expires published events after the retention window.
func (r *OutboxRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "publishedAt", Value: 1},
				{Key: "createdAt", Value: 1},
			},
			Options: options.Index().SetName("idx_publishedAt_createdAt"),
		},
		{
			Keys: bson.D{
				{Key: "aggregateId", Value: 1},
				{Key: "createdAt", Value: 1},
			},
			Options: options.Index().SetName("idx_aggregateId_createdAt"),
		},
		{
			Keys:    bson.D{{Key: "eventType", Value: 1}},
			Options: options.Index().SetName("idx_eventType"),
		},
		{
			// TTL only fires for documents where publishedAt is set, so
			// undelivered events are never expired.
			Keys: bson.D{{Key: "publishedAt", Value: 1}},
			Options: options.Index().
				SetName("idx_publishedAt_ttl").
				SetExpireAfterSeconds(publishedRetentionSeconds),
		},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("create outbox indexes: %w", err)
	}
	return nil
}
