package asyncapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// EventValidator validates CloudEvents against the payload schemas declared
// in the AsyncAPI contract. Contract tests use it to keep the event factory
// and the published channel definitions in agreement.
type EventValidator struct {
	schemas map[string]*jsonschema.Schema
}

// CloudEvent represents the CloudEvents envelope the validator consumes.
type CloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	Type            string      `json:"type"`
	Source          string      `json:"source"`
	Subject         string      `json:"subject,omitempty"`
	ID              string      `json:"id"`
	Time            string      `json:"time,omitempty"`
	DataContentType string      `json:"datacontenttype,omitempty"`
	Data            interface{} `json:"data,omitempty"`
}

// AsyncAPISpec represents the relevant parts of an AsyncAPI specification.
type AsyncAPISpec struct {
	AsyncAPI   string                     `yaml:"asyncapi"`
	Info       AsyncAPIInfo               `yaml:"info"`
	Channels   map[string]AsyncAPIChannel `yaml:"channels"`
	Components AsyncAPIComponents         `yaml:"components"`
}

// AsyncAPIInfo contains AsyncAPI info section.
type AsyncAPIInfo struct {
	Title   string `yaml:"title"`
	Version string `yaml:"version"`
}

// AsyncAPIChannel represents a channel in AsyncAPI.
type AsyncAPIChannel struct {
	Address  string                 `yaml:"address"`
	Messages map[string]interface{} `yaml:"messages"`
}

// AsyncAPIComponents contains reusable components.
type AsyncAPIComponents struct {
	Schemas  map[string]interface{} `yaml:"schemas"`
	Messages map[string]interface{} `yaml:"messages"`
}

// NewEventValidator compiles every payload schema found in the AsyncAPI
// document at asyncAPIPath, keyed by the event type each schema describes.
func NewEventValidator(asyncAPIPath string) (*EventValidator, error) {
	data, err := os.ReadFile(asyncAPIPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read AsyncAPI spec: %w", err)
	}

	var spec AsyncAPISpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse AsyncAPI spec: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	schemas := make(map[string]*jsonschema.Schema)

	for schemaName, schema := range spec.Components.Schemas {
		schemaMap, ok := schema.(map[string]interface{})
		if !ok {
			continue
		}

		eventType := deriveEventTypeFromSchemaName(schemaName)
		if eventType == "" {
			continue
		}

		// Round-trip through JSON so the compiler sees json.Number values
		// rather than the YAML decoder's native types
		schemaJSON, err := json.Marshal(schemaMap)
		if err != nil {
			continue
		}

		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
		if err != nil {
			continue
		}

		schemaURI := fmt.Sprintf("asyncapi://schemas/%s", schemaName)
		if err := compiler.AddResource(schemaURI, doc); err != nil {
			continue
		}

		compiled, err := compiler.Compile(schemaURI)
		if err != nil {
			continue
		}

		schemas[eventType] = compiled
	}

	return &EventValidator{schemas: schemas}, nil
}

// ValidateEvent validates a CloudEvent's data payload against the schema
// registered for its type.
func (v *EventValidator) ValidateEvent(event CloudEvent) error {
	if event.Type == "" {
		return fmt.Errorf("event type is required")
	}

	schema, ok := v.schemas[event.Type]
	if !ok {
		return fmt.Errorf("no schema found for event type: %s", event.Type)
	}

	if event.Data == nil {
		return fmt.Errorf("event data is required")
	}

	// Convert data to JSON and back to ensure proper interface{} types
	dataJSON, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	data, err := jsonschema.UnmarshalJSON(bytes.NewReader(dataJSON))
	if err != nil {
		return fmt.Errorf("failed to unmarshal event data: %w", err)
	}

	if err := schema.Validate(data); err != nil {
		return fmt.Errorf("event data validation failed for type %s: %w", event.Type, err)
	}

	return nil
}

// HasSchema checks if a schema exists for the given event type.
func (v *EventValidator) HasSchema(eventType string) bool {
	_, ok := v.schemas[eventType]
	return ok
}

// deriveEventTypeFromSchemaName converts schema names to event types.
// Examples:
//   - StockAssignedData -> wms.assignment.stock-assigned
//   - LocationCreatedData -> wms.location.created
func deriveEventTypeFromSchemaName(schemaName string) string {
	// Remove "Data" or "Event" suffix
	name := strings.TrimSuffix(schemaName, "Data")
	name = strings.TrimSuffix(name, "Event")

	mappings := map[string]string{
		// Inbound events
		"StockInboundReceived": "wms.stock.inbound-received",

		// Assignment events
		"StockAssigned":            "wms.assignment.stock-assigned",
		"AssignmentBatchCompleted": "wms.assignment.batch-completed",

		// Location events
		"LocationCreated":         "wms.location.created",
		"LocationCapacityChanged": "wms.location.capacity-changed",
		"LocationBlocked":         "wms.location.blocked",
		"LocationUnblocked":       "wms.location.unblocked",
	}

	if eventType, ok := mappings[name]; ok {
		return eventType
	}

	return ""
}
