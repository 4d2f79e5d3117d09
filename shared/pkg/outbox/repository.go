package outbox

import "context"

// Repository persists outbox events.
type Repository interface {
	// SaveAll stores events in one write. When the context carries a Mongo
	// session the write joins the caller's transaction, which is what makes
	// the outbox atomic with the aggregate save.
	SaveAll(ctx context.Context, events []*OutboxEvent) error

	// FindUnpublished returns events that have not been published and still
	// have retry budget, oldest first, up to limit.
	FindUnpublished(ctx context.Context, limit int) ([]*OutboxEvent, error)

	// MarkPublished stamps an event as delivered.
	MarkPublished(ctx context.Context, eventID string) error

	// IncrementRetry bumps the retry count and records the publish error.
	IncrementRetry(ctx context.Context, eventID string, errorMsg string) error

	// FindByAggregateID returns every event recorded for one aggregate,
	// oldest first.
	FindByAggregateID(ctx context.Context, aggregateID string) ([]*OutboxEvent, error)
}
