package cloudevents

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType constants for WMS domain events
const (
	// Inbound events (consumed)
	StockInboundReceived = "wms.stock.inbound-received"

	// Assignment events
	StockAssigned            = "wms.assignment.stock-assigned"
	AssignmentBatchCompleted = "wms.assignment.batch-completed"

	// Location events
	LocationCreated         = "wms.location.created"
	LocationCapacityChanged = "wms.location.capacity-changed"
	LocationBlocked         = "wms.location.blocked"
	LocationUnblocked       = "wms.location.unblocked"
)

// Source constants for event sources
const (
	SourceAssignmentService = "/wms/assignment-service"
	SourceAssignmentWorker  = "/wms/assignment-worker"
)

// WMSCloudEvent represents a CloudEvents v1.0 compliant event for WMS
type WMSCloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	Type            string      `json:"type"`
	Source          string      `json:"source"`
	Subject         string      `json:"subject,omitempty"`
	ID              string      `json:"id"`
	Time            time.Time   `json:"time"`
	DataContentType string      `json:"datacontenttype"`
	Data            interface{} `json:"data"`

	// WMS-specific extensions
	TenantID      string `json:"wmstenantid,omitempty"`
	FacilityID    string `json:"wmsfacilityid,omitempty"`
	WarehouseID   string `json:"wmswarehouseid,omitempty"`
	CorrelationID string `json:"wmscorrelationid,omitempty"`
	BatchID       string `json:"wmsbatchid,omitempty"`
	WorkflowID    string `json:"wmsworkflowid,omitempty"`

	// W3C Trace Context extensions
	TraceParent string `json:"traceparent,omitempty"`
	TraceState  string `json:"tracestate,omitempty"`
}

// DecodeData unmarshals the event's data payload into v. Consumed events
// carry Data as the generic decoding of the wire JSON, so a round trip
// through json is the lossless way back to a typed payload.
func (e *WMSCloudEvent) DecodeData(v interface{}) error {
	raw, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to unmarshal event data: %w", err)
	}
	return nil
}

// InboundStockItem is one stock item announced by an upstream receiving
// system
type InboundStockItem struct {
	StockItemID    string     `json:"stockItemId"`
	Quantity       string     `json:"quantity"`
	ExpirationDate *time.Time `json:"expirationDate,omitempty"`
	Classification string     `json:"classification"`
}

// StockInboundReceivedData represents the data payload for the
// StockInboundReceived event
type StockInboundReceivedData struct {
	ReceiptID  string             `json:"receiptId"`
	Items      []InboundStockItem `json:"items"`
	ReceivedAt time.Time          `json:"receivedAt"`
}

// StockAssignedData represents the data payload for StockAssigned event.
// Quantities travel as decimal strings to avoid floating point drift.
type StockAssignedData struct {
	BatchID        string     `json:"batchId"`
	StockItemID    string     `json:"stockItemId"`
	LocationID     string     `json:"locationId"`
	Quantity       string     `json:"quantity"`
	Classification string     `json:"classification"`
	ExpirationDate *time.Time `json:"expirationDate,omitempty"`
	AssignedAt     time.Time  `json:"assignedAt"`
}

// AssignmentBatchCompletedData represents the data payload for AssignmentBatchCompleted event
type AssignmentBatchCompletedData struct {
	BatchID         string    `json:"batchId"`
	Status          string    `json:"status"`
	AssignedCount   int       `json:"assignedCount"`
	UnassignedCount int       `json:"unassignedCount"`
	CompletedAt     time.Time `json:"completedAt"`
}

// LocationCreatedData represents the data payload for LocationCreated event
type LocationCreatedData struct {
	LocationID string    `json:"locationId"`
	Type       string    `json:"type"`
	CreatedAt  time.Time `json:"createdAt"`
}

// LocationCapacityChangedData represents the data payload for LocationCapacityChanged event
type LocationCapacityChangedData struct {
	LocationID      string    `json:"locationId"`
	Delta           string    `json:"delta"`
	CurrentQuantity string    `json:"currentQuantity"`
	ChangedAt       time.Time `json:"changedAt"`
}

// LocationBlockedData represents the data payload for LocationBlocked event
type LocationBlockedData struct {
	LocationID string    `json:"locationId"`
	Reason     string    `json:"reason"`
	BlockedAt  time.Time `json:"blockedAt"`
}

// LocationUnblockedData represents the data payload for LocationUnblocked event
type LocationUnblockedData struct {
	LocationID  string    `json:"locationId"`
	UnblockedAt time.Time `json:"unblockedAt"`
}
