package mongodb

import (
	"context"
	"fmt"

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

const locationsCollection = "locations"

// LocationRepository persists warehouse locations in MongoDB. Writes go
// through a transaction that stores the aggregate and its domain events in
// the outbox together, so an event is only ever published for state that
// actually committed.
type LocationRepository struct {
	collection   *mongo.Collection
	db           *mongo.Database
	outboxRepo   *outboxMongo.OutboxRepository
	eventFactory *cloudevents.EventFactory
}

func NewLocationRepository(db *mongo.Database, eventFactory *cloudevents.EventFactory) *LocationRepository {
	repo := &LocationRepository{
		collection:   db.Collection(locationsCollection),
		db:           db,
		outboxRepo:   outboxMongo.NewOutboxRepository(db),
		eventFactory: eventFactory,
	}
	repo.ensureIndexes(context.Background())
	_ = repo.outboxRepo.EnsureIndexes(context.Background())
	return repo
}

func (r *LocationRepository) ensureIndexes(ctx context.Context) {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "locationId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "type", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "facilityId", Value: 1}, {Key: "warehouseId", Value: 1}}},
		{Keys: bson.D{{Key: "parentId", Value: 1}}},
	}
	r.collection.Indexes().CreateMany(ctx, indexes)
}

// Create inserts a new location. The unique index on locationId turns
// concurrent creates into ErrLocationAlreadyExists for the loser.
func (r *LocationRepository) Create(ctx context.Context, location *domain.Location) error {
	session, err := r.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		if _, err := r.collection.InsertOne(sessCtx, location); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return nil, domain.ErrLocationAlreadyExists
			}
			return nil, fmt.Errorf("failed to insert location: %w", err)
		}
		if err := r.saveOutboxEvents(sessCtx, location); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return err
	}

	location.ClearDomainEvents()
	return nil
}

// Save replaces an existing location guarded by the version the caller
// loaded. A concurrent writer bumps the stored version, the filter stops
// matching and the caller gets ErrLocationVersionConflict.
func (r *LocationRepository) Save(ctx context.Context, location *domain.Location) error {
	session, err := r.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	expectedVersion := location.Version
	location.Version = expectedVersion + 1

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		filter := bson.M{"locationId": location.LocationID, "version": expectedVersion}
		result, err := r.collection.ReplaceOne(sessCtx, filter, location)
		if err != nil {
			return nil, fmt.Errorf("failed to update location: %w", err)
		}
		if result.MatchedCount == 0 {
			count, err := r.collection.CountDocuments(sessCtx, bson.M{"locationId": location.LocationID})
			if err != nil {
				return nil, fmt.Errorf("failed to check location existence: %w", err)
			}
			if count == 0 {
				return nil, domain.ErrLocationNotFound
			}
			return nil, domain.ErrLocationVersionConflict
		}
		if err := r.saveOutboxEvents(sessCtx, location); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		location.Version = expectedVersion
		return err
	}

	location.ClearDomainEvents()
	return nil
}

func (r *LocationRepository) FindByID(ctx context.Context, locationID string) (*domain.Location, error) {
	var location domain.Location
	err := r.collection.FindOne(ctx, bson.M{"locationId": locationID}).Decode(&location)
	if err == mongo.ErrNoDocuments {
		return nil, domain.ErrLocationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &location, nil
}

// FindAssignable returns the tenant's unblocked BIN locations ordered by
// locationId, so every assignment run walks candidates in the same order.
func (r *LocationRepository) FindAssignable(ctx context.Context, filter domain.LocationFilter) ([]*domain.Location, error) {
	query := bson.M{
		"tenantId": filter.TenantID,
		"type":     domain.LocationTypeBin,
		"status":   domain.LocationStatusAvailable,
	}
	if filter.FacilityID != "" {
		query["facilityId"] = filter.FacilityID
	}
	if filter.WarehouseID != "" {
		query["warehouseId"] = filter.WarehouseID
	}
	if filter.MinAvailable != nil {
		// Unbounded locations always qualify; bounded ones need enough
		// remaining capacity. Quantities are stored as decimal128 so the
		// subtraction happens server side without float drift.
		query["$or"] = []bson.M{
			{"capacity.maximumQuantity": nil},
			{"$expr": bson.M{
				"$gte": bson.A{
					bson.M{"$subtract": bson.A{"$capacity.maximumQuantity", "$capacity.currentQuantity"}},
					*filter.MinAvailable,
				},
			}},
		}
	}

	opts := options.Find().SetSort(bson.D{{Key: "locationId", Value: 1}})
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var locations []*domain.Location
	if err = cursor.All(ctx, &locations); err != nil {
		return nil, err
	}
	return locations, nil
}

func (r *LocationRepository) List(ctx context.Context, filter domain.LocationFilter, pagination domain.Pagination) ([]*domain.Location, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "locationId", Value: 1}}).
		SetSkip(pagination.Skip()).
		SetLimit(pagination.Limit())

	cursor, err := r.collection.Find(ctx, buildLocationQuery(filter), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var locations []*domain.Location
	if err = cursor.All(ctx, &locations); err != nil {
		return nil, err
	}
	return locations, nil
}

func (r *LocationRepository) Count(ctx context.Context, filter domain.LocationFilter) (int64, error) {
	return r.collection.CountDocuments(ctx, buildLocationQuery(filter))
}

func buildLocationQuery(filter domain.LocationFilter) bson.M {
	query := bson.M{"tenantId": filter.TenantID}
	if filter.FacilityID != "" {
		query["facilityId"] = filter.FacilityID
	}
	if filter.WarehouseID != "" {
		query["warehouseId"] = filter.WarehouseID
	}
	if filter.Type != nil {
		query["type"] = *filter.Type
	}
	if filter.Status != nil {
		query["status"] = *filter.Status
	}
	return query
}

func (r *LocationRepository) saveOutboxEvents(sessCtx mongo.SessionContext, location *domain.Location) error {
	domainEvents := location.GetDomainEvents()
	if len(domainEvents) == 0 {
		return nil
	}

	outboxEvents := make([]*outbox.OutboxEvent, 0, len(domainEvents))
	for _, event := range domainEvents {
		var cloudEvent *cloudevents.WMSCloudEvent
		switch e := event.(type) {
		case *domain.LocationCreatedEvent:
			cloudEvent = r.eventFactory.CreateLocationCreatedEvent(sessCtx, e.LocationID, e.Type, e.CreatedAt)
		case *domain.LocationCapacityChangedEvent:
			cloudEvent = r.eventFactory.CreateLocationCapacityChangedEvent(
				sessCtx, e.LocationID, e.Delta.String(), e.CurrentQuantity.String(), e.ChangedAt)
		case *domain.LocationBlockedEvent:
			cloudEvent = r.eventFactory.CreateLocationBlockedEvent(sessCtx, e.LocationID, e.Reason, e.BlockedAt)
		case *domain.LocationUnblockedEvent:
			cloudEvent = r.eventFactory.CreateLocationUnblockedEvent(sessCtx, e.LocationID, e.UnblockedAt)
		default:
			continue
		}

		cloudEvent.TenantID = location.TenantID
		cloudEvent.FacilityID = location.FacilityID
		cloudEvent.WarehouseID = location.WarehouseID
		cloudEvent.CorrelationID = logging.CorrelationIDFromContext(sessCtx)
		cloudEvent.WorkflowID = logging.WorkflowIDFromContext(sessCtx)

		outboxEvent, err := outbox.NewOutboxEventFromCloudEvent(
			location.LocationID,
			"Location",
			kafka.Topics.LocationEvents,
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
