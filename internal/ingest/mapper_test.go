// internal/ingest/mapper_test.go
package ingest

import (
	"testing"
	"time"

	"notification-dispatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityFor(t *testing.T) {
	tests := []struct {
		eventType string
		expected  models.Priority
	}{
		{EventOrderRejected, models.PriorityHigh},
		{EventOrderCancelled, models.PriorityHigh},
		{EventOrderFilled, models.PriorityMedium},
		{EventOrderPartiallyFilled, models.PriorityMedium},
		{EventOrderPlaced, models.PriorityLow},
		{"ORDER_AMENDED", models.PriorityMedium}, // unknown types default to medium
	}

	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			assert.Equal(t, tt.expected, priorityFor(tt.eventType))
		})
	}
}

func TestTemplateNameFor(t *testing.T) {
	assert.Equal(t, "order-placed", templateNameFor("ORDER_PLACED"))
	assert.Equal(t, "order-partially-filled", templateNameFor("ORDER_PARTIALLY_FILLED"))
	assert.Equal(t, "trade", templateNameFor("TRADE"))
}

func TestToRequest(t *testing.T) {
	ts := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
	ev := &models.OrderEvent{
		NotificationID: "evt-1",
		UserID:         "user-123",
		EventType:      EventOrderFilled,
		Title:          "Order filled",
		Content:        "Your order filled.",
		Data: map[string]any{
			"correlationId": "corr-abc",
			"symbol":        "AAPL",
			"quantity":      float64(100),
		},
		Timestamp: ts,
	}

	req := ToRequest(ev, models.ChannelEmail)

	assert.Equal(t, models.ChannelEmail, req.Type)
	assert.Equal(t, "user-123", req.RecipientID)
	assert.Equal(t, "order-filled", req.TemplateName)
	assert.Equal(t, models.PriorityMedium, req.Priority)
	assert.Equal(t, models.CategoryTrading, req.Category)
	assert.Equal(t, "corr-abc", req.CorrelationID)
	assert.Equal(t, "evt-1", req.ReferenceID)
	assert.Equal(t, EventOrderFilled, req.ReferenceType)
	assert.Equal(t, ts, req.ScheduledAt)

	// template variables carry the event data plus the event type
	require.NotNil(t, req.Variables)
	assert.Equal(t, "AAPL", req.Variables["symbol"])
	assert.Equal(t, EventOrderFilled, req.Variables["eventType"])
}

func TestToRequest_MissingOptionalFields(t *testing.T) {
	ev := &models.OrderEvent{
		UserID:    "user-123",
		EventType: EventOrderRejected,
	}

	req := ToRequest(ev, models.ChannelInApp)

	assert.Empty(t, req.CorrelationID) // admission generates one later
	assert.Equal(t, models.PriorityHigh, req.Priority)
	assert.False(t, req.ScheduledAt.IsZero())
	assert.Equal(t, EventOrderRejected, req.Variables["eventType"])
}

func TestToRequest_NonStringCorrelationIDIgnored(t *testing.T) {
	ev := &models.OrderEvent{
		UserID:    "user-123",
		EventType: EventOrderPlaced,
		Data:      map[string]any{"correlationId": float64(42)},
	}

	req := ToRequest(ev, models.ChannelEmail)

	assert.Empty(t, req.CorrelationID)
}
