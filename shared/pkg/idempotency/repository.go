package idempotency

import "context"

// KeyRepository stores idempotency keys for the HTTP middleware.
type KeyRepository interface {
	// AcquireLock atomically fetches or creates the record for key and marks
	// it locked. The boolean is true when this call created the record.
	// Implementations must make this a single atomic operation so two
	// concurrent requests with the same key cannot both see "new".
	AcquireLock(ctx context.Context, key *IdempotencyKey) (*IdempotencyKey, bool, error)

	// StoreResponse marks the request completed, caches the response for
	// replay, and releases the lock.
	StoreResponse(ctx context.Context, keyID string, responseCode int, responseBody []byte, headers map[string]string) error

	// EnsureIndexes creates the unique and TTL indexes. Called at startup.
	EnsureIndexes(ctx context.Context) error
}

// MessageRepository stores processed-message markers for consumer deduplication.
type MessageRepository interface {
	// MarkProcessed records a message as handled. Returns
	// ErrMessageAlreadyProcessed when a marker for the same message, topic
	// and consumer group already exists.
	MarkProcessed(ctx context.Context, msg *ProcessedMessage) error

	// IsProcessed reports whether a marker exists for the message.
	IsProcessed(ctx context.Context, messageID, topic, consumerGroup string) (bool, error)

	// EnsureIndexes creates the unique and TTL indexes. Called at startup.
	EnsureIndexes(ctx context.Context) error
}
