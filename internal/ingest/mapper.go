// internal/ingest/mapper.go
package ingest

import (
	"strings"
	"time"

	"notification-dispatch/internal/models"
)

// Order lifecycle event types currently produced upstream.
const (
	EventOrderPlaced          = "ORDER_PLACED"
	EventOrderFilled          = "ORDER_FILLED"
	EventOrderPartiallyFilled = "ORDER_PARTIALLY_FILLED"
	EventOrderRejected        = "ORDER_REJECTED"
	EventOrderCancelled       = "ORDER_CANCELLED"
)

// priorityFor maps event types to priorities. Rejections and cancellations
// are things a trader wants to know about now; placements can wait.
func priorityFor(eventType string) models.Priority {
	switch eventType {
	case EventOrderRejected, EventOrderCancelled:
		return models.PriorityHigh
	case EventOrderFilled, EventOrderPartiallyFilled:
		return models.PriorityMedium
	case EventOrderPlaced:
		return models.PriorityLow
	default:
		return models.PriorityMedium
	}
}

// templateNameFor derives the template name from the event type:
// ORDER_PLACED -> order-placed.
func templateNameFor(eventType string) string {
	return strings.ToLower(strings.ReplaceAll(eventType, "_", "-"))
}

// ToRequest normalizes a domain event into a notification request on the
// given channel. The correlation id from event data is propagated when
// present; its absence never fails processing.
func ToRequest(ev *models.OrderEvent, channel models.Channel) *models.NotificationRequest {
	var correlationID string
	if ev.Data != nil {
		if v, ok := ev.Data["correlationId"].(string); ok {
			correlationID = v
		}
	}

	variables := make(map[string]any, len(ev.Data)+1)
	for k, v := range ev.Data {
		variables[k] = v
	}
	variables["eventType"] = ev.EventType

	scheduledAt := ev.Timestamp
	if scheduledAt.IsZero() {
		scheduledAt = time.Now().UTC()
	}

	return &models.NotificationRequest{
		Type:             channel,
		RecipientID:      ev.UserID,
		Subject:          ev.Title,
		Content:          ev.Content,
		TemplateName:     templateNameFor(ev.EventType),
		Variables:        variables,
		Priority:         priorityFor(ev.EventType),
		Category:         models.CategoryTrading,
		ScheduledAt:      scheduledAt,
		CorrelationID:    correlationID,
		ReferenceID:      ev.NotificationID,
		ReferenceType:    ev.EventType,
		MaxRetryAttempts: models.DefaultMaxRetryAttempts,
	}
}
