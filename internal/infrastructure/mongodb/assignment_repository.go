package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kumbirai/warehouse-management-system-sub012/internal/domain"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/cloudevents"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/kafka"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/logging"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/outbox"
	outboxMongo "github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/outbox/mongodb"
)

const batchesCollection = "assignment_batches"

// AssignmentRepository persists assignment batches. Save writes the batch,
// every location capacity update and the batch's domain events in a single
// transaction: either the whole assignment outcome commits or none of it
// does, and events only become publishable once the data is durable.
type AssignmentRepository struct {
	collection   *mongo.Collection
	locations    *mongo.Collection
	db           *mongo.Database
	outboxRepo   *outboxMongo.OutboxRepository
	eventFactory *cloudevents.EventFactory
}

func NewAssignmentRepository(db *mongo.Database, eventFactory *cloudevents.EventFactory) *AssignmentRepository {
	repo := &AssignmentRepository{
		collection:   db.Collection(batchesCollection),
		locations:    db.Collection(locationsCollection),
		db:           db,
		outboxRepo:   outboxMongo.NewOutboxRepository(db),
		eventFactory: eventFactory,
	}
	repo.ensureIndexes(context.Background())
	_ = repo.outboxRepo.EnsureIndexes(context.Background())
	return repo
}

func (r *AssignmentRepository) ensureIndexes(ctx context.Context) {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "batchId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "createdAt", Value: 1}}},
	}
	r.collection.Indexes().CreateMany(ctx, indexes)
}

// Save persists the batch together with its location capacity updates. Each
// update carries the location version observed in the candidate snapshot; a
// mismatch means another writer got there first, the transaction aborts and
// ErrLocationVersionConflict tells the caller to recompute from a fresh
// snapshot.
func (r *AssignmentRepository) Save(ctx context.Context, batch *domain.AssignmentBatch, updates []domain.LocationUpdate) error {
	session, err := r.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		opts := options.Update().SetUpsert(true)
		filter := bson.M{"batchId": batch.BatchID}
		if _, err := r.collection.UpdateOne(sessCtx, filter, bson.M{"$set": batch}, opts); err != nil {
			return nil, fmt.Errorf("failed to save assignment batch: %w", err)
		}

		for _, update := range updates {
			if err := r.applyLocationUpdate(sessCtx, batch.TenantID, update); err != nil {
				return nil, err
			}
		}

		if err := r.saveOutboxEvents(sessCtx, batch); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return err
	}

	batch.ClearDomainEvents()
	return nil
}

func (r *AssignmentRepository) applyLocationUpdate(sessCtx mongo.SessionContext, tenantID string, update domain.LocationUpdate) error {
	filter := bson.M{
		"locationId": update.LocationID,
		"tenantId":   tenantID,
		"version":    update.ExpectedVersion,
	}
	change := bson.M{
		"$inc": bson.M{
			"capacity.currentQuantity": update.Quantity,
			"version":                  1,
		},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}

	result, err := r.locations.UpdateOne(sessCtx, filter, change)
	if err != nil {
		return fmt.Errorf("failed to apply capacity update for location %s: %w", update.LocationID, err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrLocationVersionConflict
	}
	return nil
}

func (r *AssignmentRepository) FindByID(ctx context.Context, batchID string) (*domain.AssignmentBatch, error) {
	var batch domain.AssignmentBatch
	err := r.collection.FindOne(ctx, bson.M{"batchId": batchID}).Decode(&batch)
	if err == mongo.ErrNoDocuments {
		return nil, domain.ErrBatchNotFound
	}
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *AssignmentRepository) FindByStatus(ctx context.Context, tenantID string, status domain.BatchStatus, pagination domain.Pagination) ([]*domain.AssignmentBatch, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "batchId", Value: 1}}).
		SetSkip(pagination.Skip()).
		SetLimit(pagination.Limit())

	cursor, err := r.collection.Find(ctx, bson.M{"tenantId": tenantID, "status": status}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var batches []*domain.AssignmentBatch
	if err = cursor.All(ctx, &batches); err != nil {
		return nil, err
	}
	return batches, nil
}

func (r *AssignmentRepository) Count(ctx context.Context, filter domain.BatchFilter) (int64, error) {
	query := bson.M{"tenantId": filter.TenantID}
	if filter.Status != nil {
		query["status"] = *filter.Status
	}
	return r.collection.CountDocuments(ctx, query)
}

// GetOutboxRepository exposes the outbox store so the polling publisher can
// drain events written by this service's repositories.
func (r *AssignmentRepository) GetOutboxRepository() outbox.Repository {
	return r.outboxRepo
}

func (r *AssignmentRepository) saveOutboxEvents(sessCtx mongo.SessionContext, batch *domain.AssignmentBatch) error {
	domainEvents := batch.GetDomainEvents()
	if len(domainEvents) == 0 {
		return nil
	}

	outboxEvents := make([]*outbox.OutboxEvent, 0, len(domainEvents))
	for _, event := range domainEvents {
		var cloudEvent *cloudevents.WMSCloudEvent
		switch e := event.(type) {
		case *domain.StockAssignedEvent:
			cloudEvent = r.eventFactory.CreateStockAssignedEvent(
				sessCtx, e.BatchID, e.StockItemID, e.LocationID,
				e.Quantity.String(), e.Classification, e.ExpirationDate, e.AssignedAt)
		case *domain.AssignmentBatchCompletedEvent:
			cloudEvent = r.eventFactory.CreateAssignmentBatchCompletedEvent(
				sessCtx, e.BatchID, e.Status, e.AssignedCount, e.UnassignedCount, e.CompletedAt)
		default:
			continue
		}

		cloudEvent.TenantID = batch.TenantID
		cloudEvent.FacilityID = batch.FacilityID
		cloudEvent.WarehouseID = batch.WarehouseID
		cloudEvent.CorrelationID = logging.CorrelationIDFromContext(sessCtx)
		cloudEvent.WorkflowID = logging.WorkflowIDFromContext(sessCtx)

		outboxEvent, err := outbox.NewOutboxEventFromCloudEvent(
			batch.BatchID,
			"AssignmentBatch",
			kafka.Topics.AssignmentEvents,
			cloudEvent,
		)
		if err != nil {
			return fmt.Errorf("failed to create outbox event: %w", err)
		}
		outboxEvents = append(outboxEvents, outboxEvent)
	}

	if len(outboxEvents) == 0 {
		return nil
	}
	if err := r.outboxRepo.SaveAll(sessCtx, outboxEvents); err != nil {
		return fmt.Errorf("failed to save outbox events: %w", err)
	}
	return nil
}
