// internal/realtime/message.go
package realtime

import "time"

// Server-to-client message types.
const (
	TypeNotification      = "notification"
	TypeAdminNotification = "admin_notification"
	TypeWelcome           = "welcome"
	TypePong              = "pong"
)

// Client-to-server message types.
const (
	TypePing             = "ping"
	TypeMarkRead         = "mark_read"
	TypePreferenceUpdate = "preference_update"
)

// ServerMessage is the outbound frame shape.
type ServerMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ClientMessage is the inbound control frame shape.
type ClientMessage struct {
	Type           string                 `json:"type"`
	NotificationID string                 `json:"notificationId,omitempty"`
	Update         map[string]interface{} `json:"update,omitempty"`
}

// NewServerMessage stamps an outbound frame.
func NewServerMessage(msgType string, data interface{}) ServerMessage {
	return ServerMessage{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}
