package mongodb

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/event"

	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/logging"
	"github.com/kumbirai/warehouse-management-system-sub012/shared/pkg/metrics"
)

// commandObserver correlates command started events with their
// succeeded/failed counterparts to record per-collection metrics.
type commandObserver struct {
	metrics *metrics.Metrics
	logger  *logging.Logger

	mu      sync.Mutex
	pending map[int64]string
}

// NewCommandMonitor returns a driver command monitor that records
// operation metrics and query logs for every command the client runs.
// Wire it into Config.CommandMonitor before calling NewClient.
func NewCommandMonitor(m *metrics.Metrics, logger *logging.Logger) *event.CommandMonitor {
	observer := &commandObserver{
		metrics: m,
		logger:  logger,
		pending: make(map[int64]string),
	}

	return &event.CommandMonitor{
		Started:   observer.started,
		Succeeded: observer.succeeded,
		Failed:    observer.failed,
	}
}

func (o *commandObserver) started(_ context.Context, evt *event.CommandStartedEvent) {
	// For CRUD commands the first element of the command document names
	// the target collection, e.g. {"find": "locations", ...}. Session
	// and server administration commands carry no collection and are
	// not tracked.
	collection, ok := evt.Command.Lookup(evt.CommandName).StringValueOK()
	if !ok {
		return
	}

	o.mu.Lock()
	o.pending[evt.RequestID] = collection
	o.mu.Unlock()
}

func (o *commandObserver) succeeded(ctx context.Context, evt *event.CommandSucceededEvent) {
	o.finish(ctx, evt.RequestID, evt.CommandName, evt.Duration, true)
}

func (o *commandObserver) failed(ctx context.Context, evt *event.CommandFailedEvent) {
	o.finish(ctx, evt.RequestID, evt.CommandName, evt.Duration, false)
}

func (o *commandObserver) finish(ctx context.Context, requestID int64, commandName string, duration time.Duration, success bool) {
	o.mu.Lock()
	collection, ok := o.pending[requestID]
	delete(o.pending, requestID)
	o.mu.Unlock()

	if !ok {
		return
	}

	if o.metrics != nil {
		o.metrics.RecordMongoDBOperation(collection, commandName, success, duration)
	}
	if o.logger != nil {
		o.logger.DatabaseQuery(ctx, collection, commandName, duration, success)
	}
}

// NewPoolMonitor returns a driver pool monitor that keeps the open
// connection gauge current. Wire it into Config.PoolMonitor before
// calling NewClient.
func NewPoolMonitor(m *metrics.Metrics) *event.PoolMonitor {
	var open atomic.Int64

	return &event.PoolMonitor{
		Event: func(evt *event.PoolEvent) {
			switch evt.Type {
			case event.ConnectionCreated:
				m.SetMongoDBConnections(int(open.Add(1)))
			case event.ConnectionClosed:
				m.SetMongoDBConnections(int(open.Add(-1)))
			}
		},
	}
}
