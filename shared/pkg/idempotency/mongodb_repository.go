package idempotency

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	idempotencyKeysCollection   = "idempotency_keys"
	processedMessagesCollection = "processed_messages"
)

// MongoKeyRepository implements KeyRepository on MongoDB.
type MongoKeyRepository struct {
	collection *mongo.Collection
}

// NewMongoKeyRepository creates a key repository on the idempotency_keys collection.
func NewMongoKeyRepository(db *mongo.Database) *MongoKeyRepository {
	return &MongoKeyRepository{
		collection: db.Collection(idempotencyKeysCollection),
	}
}

// AcquireLock upserts the record for (serviceId, key) and stamps lockedAt in
// one round trip. FindOneAndUpdate with upsert is atomic on the unique index,
// so exactly one of two racing requests observes the insert.
func (r *MongoKeyRepository) AcquireLock(ctx context.Context, key *IdempotencyKey) (*IdempotencyKey, bool, error) {
	now := time.Now().UTC()
	key.LockedAt = &now

	filter := bson.M{
		"serviceId": key.ServiceID,
		"key":       key.Key,
	}
	update := bson.M{
		"$setOnInsert": bson.M{
			"key":                key.Key,
			"serviceId":          key.ServiceID,
			"tenantId":           key.TenantID,
			"requestPath":        key.RequestPath,
			"requestMethod":      key.RequestMethod,
			"requestFingerprint": key.RequestFingerprint,
			"createdAt":          key.CreatedAt,
			"expiresAt":          key.ExpiresAt,
		},
		"$set": bson.M{
			"lockedAt": now,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var result IdempotencyKey
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&result); err != nil {
		return nil, false, err
	}

	// createdAt only comes back equal to ours when this call inserted the
	// document; an existing record keeps its original timestamp.
	isNew := result.CompletedAt == nil && result.CreatedAt.Equal(key.CreatedAt)

	return &result, isNew, nil
}

// StoreResponse caches the response, marks the record completed and drops the lock.
func (r *MongoKeyRepository) StoreResponse(ctx context.Context, keyID string, responseCode int, responseBody []byte, headers map[string]string) error {
	objID, err := primitive.ObjectIDFromHex(keyID)
	if err != nil {
		return err
	}

	update := bson.M{
		"$set": bson.M{
			"responseCode":    responseCode,
			"responseBody":    responseBody,
			"responseHeaders": headers,
			"completedAt":     time.Now().UTC(),
		},
		"$unset": bson.M{"lockedAt": ""},
	}

	_, err = r.collection.UpdateOne(ctx, bson.M{"_id": objID}, update)
	return err
}

// EnsureIndexes creates the unique (serviceId, key) index the lock depends on
// and the TTL index that expires old keys.
func (r *MongoKeyRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "serviceId", Value: 1},
				{Key: "key", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("idx_service_key"),
		},
		{
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("idx_ttl"),
		},
		{
			Keys:    bson.D{{Key: "lockedAt", Value: 1}},
			Options: options.Index().SetSparse(true).SetName("idx_locked"),
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// MongoMessageRepository implements MessageRepository on MongoDB.
type MongoMessageRepository struct {
	collection *mongo.Collection
}

// NewMongoMessageRepository creates a message repository on the processed_messages collection.
func NewMongoMessageRepository(db *mongo.Database) *MongoMessageRepository {
	return &MongoMessageRepository{
		collection: db.Collection(processedMessagesCollection),
	}
}

// MarkProcessed inserts the marker. The unique index turns a concurrent
// double insert into ErrMessageAlreadyProcessed.
func (r *MongoMessageRepository) MarkProcessed(ctx context.Context, msg *ProcessedMessage) error {
	_, err := r.collection.InsertOne(ctx, msg)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrMessageAlreadyProcessed
		}
		return err
	}
	return nil
}

// IsProcessed reports whether a marker exists for the message.
func (r *MongoMessageRepository) IsProcessed(ctx context.Context, messageID, topic, consumerGroup string) (bool, error) {
	filter := bson.M{
		"messageId":     messageID,
		"topic":         topic,
		"consumerGroup": consumerGroup,
	}

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// EnsureIndexes creates the unique marker index and the TTL index.
func (r *MongoMessageRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "messageId", Value: 1},
				{Key: "topic", Value: 1},
				{Key: "consumerGroup", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("idx_msg_topic_group"),
		},
		{
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("idx_ttl"),
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}
