// internal/common/validation/event_test.go
package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventValidator_ValidateEnvelope(t *testing.T) {
	v, err := NewEventValidator()
	require.NoError(t, err)

	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{
			name:    "full envelope",
			payload: `{"notificationId":"evt-1","userId":"user-123","eventType":"ORDER_FILLED","title":"t","content":"c","data":{"symbol":"AAPL"},"timestamp":"2025-03-10T14:30:00Z"}`,
		},
		{
			name:    "minimal envelope",
			payload: `{"userId":"user-123","eventType":"ORDER_PLACED"}`,
		},
		{
			name:    "unknown fields tolerated",
			payload: `{"userId":"user-123","eventType":"ORDER_PLACED","venue":"NYSE"}`,
		},
		{
			name:    "missing userId",
			payload: `{"eventType":"ORDER_PLACED"}`,
			wantErr: true,
		},
		{
			name:    "empty eventType",
			payload: `{"userId":"user-123","eventType":""}`,
			wantErr: true,
		},
		{
			name:    "data must be an object",
			payload: `{"userId":"user-123","eventType":"ORDER_PLACED","data":[1,2]}`,
			wantErr: true,
		},
		{
			name:    "not json",
			payload: `order placed`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateEnvelope([]byte(tt.payload))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
