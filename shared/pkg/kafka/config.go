package kafka

import (
	"time"
)

// Config holds Kafka configuration
type Config struct {
	Brokers       []string
	ConsumerGroup string
	ClientID      string

	// Producer settings
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int // 0: no ack, 1: leader ack, -1: all replicas ack

	// Consumer settings
	MinBytes      int
	MaxBytes      int
	MaxWait       time.Duration
	CommitTimeout time.Duration
}

// Topics contains all WMS Kafka topic names
var Topics = struct {
	// Inbound topics
	StockInbound string

	// Domain event topics
	AssignmentEvents string
	LocationEvents   string
}{
	StockInbound: "wms.stock.inbound",

	AssignmentEvents: "wms.assignment.events",
	LocationEvents:   "wms.location.events",
}
