// internal/channels/sender.go
package channels

import (
	"context"

	"notification-dispatch/internal/models"
)

// Message is one rendered payload bound for a provider.
type Message struct {
	NotificationID string
	RecipientID    string
	Address        string // email address, phone number, or device endpoint
	Subject        string
	Content        string
	Priority       models.Priority
}

// SendResult carries the provider's acknowledgement.
type SendResult struct {
	ExternalID string
}

// Sender delivers a rendered message over one channel. Implementations treat
// the provider wire format as their own concern; the pipeline only sees
// success or a classified error.
type Sender interface {
	Channel() models.Channel
	Send(ctx context.Context, msg Message) (SendResult, error)
}
