package idempotency

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IdempotencyKey is the stored record for one Idempotency-Key header value.
// It carries the request fingerprint and, once the request completes, the
// response to replay on retries.
type IdempotencyKey struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty"`
	Key                string             `bson:"key"`
	TenantID           string             `bson:"tenantId,omitempty"` // scopes the key when multi-tenant
	ServiceID          string             `bson:"serviceId"`
	RequestPath        string             `bson:"requestPath"`
	RequestMethod      string             `bson:"requestMethod"`
	RequestFingerprint string             `bson:"requestFingerprint"` // SHA256 of the request body

	// LockedAt is set while a request holds the key. A lock older than the
	// configured timeout is treated as abandoned.
	LockedAt *time.Time `bson:"lockedAt,omitempty"`

	ResponseCode    int               `bson:"responseCode,omitempty"`
	ResponseBody    []byte            `bson:"responseBody,omitempty"`
	ResponseHeaders map[string]string `bson:"responseHeaders,omitempty"`

	CreatedAt   time.Time  `bson:"createdAt"`
	CompletedAt *time.Time `bson:"completedAt,omitempty"`
	ExpiresAt   time.Time  `bson:"expiresAt"` // TTL index expiry
}

// IsCompleted reports whether the original request finished and stored its response.
func (ik *IdempotencyKey) IsCompleted() bool {
	return ik.CompletedAt != nil
}

// IsLocked reports whether another request currently holds this key.
func (ik *IdempotencyKey) IsLocked() bool {
	return ik.LockedAt != nil && ik.CompletedAt == nil
}

// ProcessedMessage records one consumed CloudEvent so redeliveries can be
// skipped. The (messageId, topic, consumerGroup) triple is unique.
type ProcessedMessage struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	MessageID     string             `bson:"messageId"` // CloudEvent.ID
	Topic         string             `bson:"topic"`
	EventType     string             `bson:"eventType"`
	ConsumerGroup string             `bson:"consumerGroup"`
	ServiceID     string             `bson:"serviceId"`

	ProcessedAt time.Time `bson:"processedAt"`
	ExpiresAt   time.Time `bson:"expiresAt"` // TTL index expiry

	// Correlation data for tracing a message back to its batch and workflow
	CorrelationID string `bson:"correlationId,omitempty"`
	BatchID       string `bson:"batchId,omitempty"`
	WorkflowID    string `bson:"workflowId,omitempty"`
}
