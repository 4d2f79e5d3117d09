package idempotency

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	// DefaultMaxKeyLength caps idempotency keys at the length Stripe allows
	DefaultMaxKeyLength = 255

	// DefaultLockTimeout is how long a lock may be held before another
	// request treats it as abandoned
	DefaultLockTimeout = 5 * time.Minute

	// DefaultRetentionPeriod is how long keys and message markers live
	DefaultRetentionPeriod = 24 * time.Hour

	// DefaultMaxResponseSize caps cached responses at 1MB
	DefaultMaxResponseSize = 1 * 1024 * 1024
)

// Config configures the HTTP idempotency middleware.
type Config struct {
	// ServiceName scopes keys so services sharing a database do not collide
	ServiceName string

	// Repository is the storage backend for idempotency keys
	Repository KeyRepository

	// RequireKey rejects mutating requests that carry no Idempotency-Key
	// header. When false such requests proceed without idempotency.
	RequireKey bool

	// OnlyMutating limits the middleware to POST, PUT, PATCH and DELETE
	OnlyMutating bool

	// TenantIDExtractor optionally scopes keys per tenant. When set, the
	// extracted tenant ID is stored alongside the key.
	TenantIDExtractor func(*gin.Context) string

	MaxKeyLength    int
	LockTimeout     time.Duration
	RetentionPeriod time.Duration

	// MaxResponseSize is the largest response body that will be cached.
	// Larger responses complete normally but replay as an error marker.
	MaxResponseSize int

	// Metrics enables instrumentation when set
	Metrics *Metrics
}

// DefaultConfig returns a Config with the standard limits. Keys are optional
// by default so clients can adopt them incrementally.
func DefaultConfig(serviceName string, repository KeyRepository) *Config {
	return &Config{
		ServiceName:     serviceName,
		Repository:      repository,
		RequireKey:      false,
		OnlyMutating:    true,
		MaxKeyLength:    DefaultMaxKeyLength,
		LockTimeout:     DefaultLockTimeout,
		RetentionPeriod: DefaultRetentionPeriod,
		MaxResponseSize: DefaultMaxResponseSize,
	}
}

// ConsumerConfig configures consumer-side message deduplication.
type ConsumerConfig struct {
	ServiceName   string
	Topic         string
	ConsumerGroup string

	// Repository is the storage backend for processed-message markers
	Repository MessageRepository

	// RetentionPeriod is how long markers are kept. It must exceed the
	// broker's redelivery horizon or duplicates slip through.
	RetentionPeriod time.Duration
}

// DefaultConsumerConfig returns a ConsumerConfig with the standard retention.
func DefaultConsumerConfig(serviceName, topic, consumerGroup string, repository MessageRepository) *ConsumerConfig {
	return &ConsumerConfig{
		ServiceName:     serviceName,
		Topic:           topic,
		ConsumerGroup:   consumerGroup,
		Repository:      repository,
		RetentionPeriod: DefaultRetentionPeriod,
	}
}
