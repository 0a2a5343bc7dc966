// internal/common/validation/event.go
package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// orderEventSchema is the envelope contract for inbound domain events.
// Everything beyond the required identity fields is optional so upstream
// producers can evolve their payloads without breaking consumption.
const orderEventSchema = `{
	"type": "object",
	"required": ["userId", "eventType"],
	"properties": {
		"notificationId": {"type": "string"},
		"userId":         {"type": "string", "minLength": 1},
		"eventType":      {"type": "string", "minLength": 1},
		"title":          {"type": "string"},
		"content":        {"type": "string"},
		"data":           {"type": "object"},
		"timestamp":      {"type": "string"}
	},
	"additionalProperties": true
}`

// EventValidator validates inbound event envelopes against the JSON schema.
type EventValidator struct {
	schema *gojsonschema.Schema
}

func NewEventValidator() (*EventValidator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(orderEventSchema))
	if err != nil {
		return nil, fmt.Errorf("compile event schema: %w", err)
	}
	return &EventValidator{schema: schema}, nil
}

// ValidateEnvelope checks a raw event payload. It returns nil for valid
// envelopes and a single error summarizing every violation otherwise.
func (v *EventValidator) ValidateEnvelope(raw []byte) error {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("validate event: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("event schema violation: %s", strings.Join(msgs, "; "))
}
