package idempotency

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/mongo"
)

// InitializeIndexes creates the indexes for both idempotency collections.
// Call during service startup before serving requests.
func InitializeIndexes(ctx context.Context, db *mongo.Database) error {
	if err := NewMongoKeyRepository(db).EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("create %s indexes: %w", idempotencyKeysCollection, err)
	}
	if err := NewMongoMessageRepository(db).EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("create %s indexes: %w", processedMessagesCollection, err)
	}

	slog.Debug("Idempotency indexes ready")
	return nil
}
