package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/cloudevents"
)

const defaultMaxRetries = 10

// OutboxEvent is one domain event captured in the same transaction as the
// aggregate change that produced it, waiting for the publisher to deliver
// it to the broker.
type OutboxEvent struct {
	ID            string          `bson:"_id" json:"id"`
	AggregateID   string          `bson:"aggregateId" json:"aggregateId"`
	AggregateType string          `bson:"aggregateType" json:"aggregateType"`
	EventType     string          `bson:"eventType" json:"eventType"`
	Topic         string          `bson:"topic" json:"topic"`
	Payload       json.RawMessage `bson:"payload" json:"payload"`
	CreatedAt     time.Time       `bson:"createdAt" json:"createdAt"`
	PublishedAt   *time.Time      `bson:"publishedAt,omitempty" json:"publishedAt,omitempty"`
	RetryCount    int             `bson:"retryCount" json:"retryCount"`
	LastError     string          `bson:"lastError,omitempty" json:"lastError,omitempty"`
	MaxRetries    int             `bson:"maxRetries" json:"maxRetries"`
}

// NewOutboxEventFromCloudEvent wraps an already-enveloped CloudEvent for the
// outbox. The payload is the marshaled envelope, so the publisher replays it
// byte for byte.
func NewOutboxEventFromCloudEvent(aggregateID, aggregateType, topic string, cloudEvent *cloudevents.WMSCloudEvent) (*OutboxEvent, error) {
	payload, err := json.Marshal(cloudEvent)
	if err != nil {
		return nil, err
	}

	return &OutboxEvent{
		ID:            uuid.New().String(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     cloudEvent.Type,
		Topic:         topic,
		Payload:       payload,
		CreatedAt:     time.Now(),
		MaxRetries:    defaultMaxRetries,
	}, nil
}

// IsPublished reports whether the event has been delivered.
func (e *OutboxEvent) IsPublished() bool {
	return e.PublishedAt != nil
}

// ToCloudEvent restores the CloudEvent envelope from the stored payload.
func (e *OutboxEvent) ToCloudEvent() (*cloudevents.WMSCloudEvent, error) {
	var cloudEvent cloudevents.WMSCloudEvent
	if err := json.Unmarshal(e.Payload, &cloudEvent); err != nil {
		return nil, err
	}
	return &cloudEvent, nil
}
