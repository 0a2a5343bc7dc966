// internal/models/notification.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Channel identifies one delivery mechanism.
type Channel string

const (
	ChannelEmail Channel = "EMAIL"
	ChannelSMS   Channel = "SMS"
	ChannelPush  Channel = "PUSH"
	ChannelInApp Channel = "IN_APP"
)

// Priority of a notification. URGENT bypasses quiet hours.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// Category buckets notifications for preference filtering.
type Category string

const (
	CategoryMarketing Category = "MARKETING"
	CategorySystem    Category = "SYSTEM"
	CategoryTrading   Category = "TRADING"
	CategoryAccount   Category = "ACCOUNT"
)

// Status is the lifecycle state of one delivery attempt.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSent      Status = "SENT"
	StatusDelivered Status = "DELIVERED"
	StatusRead      Status = "READ"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

const DefaultMaxRetryAttempts = 3

// NotificationRequest is one outbound intent. Immutable once constructed.
type NotificationRequest struct {
	Type             Channel           `json:"type"`
	RecipientID      string            `json:"recipientId"`
	Email            string            `json:"email,omitempty"`
	Phone            string            `json:"phone,omitempty"`
	Subject          string            `json:"subject"`
	Content          string            `json:"content"`
	TemplateName     string            `json:"templateName,omitempty"`
	Variables        map[string]any    `json:"variables,omitempty"`
	Priority         Priority          `json:"priority"`
	Category         Category          `json:"category"`
	ScheduledAt      time.Time         `json:"scheduledAt"`
	CorrelationID    string            `json:"correlationId"`
	ReferenceID      string            `json:"referenceId,omitempty"`
	ReferenceType    string            `json:"referenceType,omitempty"`
	MaxRetryAttempts int               `json:"maxRetryAttempts"`
}

// CorrelationIDOrNew returns the request's correlation id, or a generated
// placeholder when none was propagated. Never fails.
func (r *NotificationRequest) CorrelationIDOrNew() string {
	if r.CorrelationID != "" {
		return r.CorrelationID
	}
	return "corr-" + uuid.New().String()
}

// UserPreference holds one user's channel/category enablement and quiet hours.
// Never deleted; disabled via Enabled=false.
type UserPreference struct {
	UserID            string              `json:"userId"`
	Enabled           bool                `json:"enabled"`
	PreferredChannel  Channel             `json:"preferredChannel"`
	EnabledChannels   map[Channel]bool    `json:"enabledChannels"`
	EnabledCategories map[Category]bool   `json:"enabledCategories"`
	Addresses         map[Channel]string  `json:"addresses"`
	QuietHoursEnabled bool                `json:"quietHoursEnabled"`
	QuietHoursStart   string              `json:"quietHoursStart"` // "HH:MM"
	QuietHoursEnd     string              `json:"quietHoursEnd"`   // "HH:MM"
	Timezone          string              `json:"timezone"`
	MarketingOptIn    bool                `json:"marketingOptIn"`
	DailyLimit        int                 `json:"dailyLimit"` // 0 = unlimited
	UpdatedAt         time.Time           `json:"updatedAt"`
}

// NotificationHistory is the durable audit record for one delivery attempt.
type NotificationHistory struct {
	NotificationID   string     `json:"notificationId"`
	CorrelationID    string     `json:"correlationId"`
	Type             Channel    `json:"type"`
	RecipientID      string     `json:"recipientId"`
	Subject          string     `json:"subject"`
	Content          string     `json:"content"`
	TemplateName     string     `json:"templateName,omitempty"`
	Priority         Priority   `json:"priority"`
	Status           Status     `json:"status"`
	ExternalID       string     `json:"externalId,omitempty"`
	ErrorMessage     string     `json:"errorMessage,omitempty"`
	ScheduledAt      time.Time  `json:"scheduledAt"`
	SentAt           *time.Time `json:"sentAt,omitempty"`
	DeliveredAt      *time.Time `json:"deliveredAt,omitempty"`
	ReadAt           *time.Time `json:"readAt,omitempty"`
	RetryCount       int        `json:"retryCount"`
	MaxRetryAttempts int        `json:"maxRetryAttempts"`
	ReferenceID      string     `json:"referenceId,omitempty"`
	ReferenceType    string     `json:"referenceType,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// Template is named, versioned content with declared variables.
// Read-only from the dispatch pipeline's perspective.
type Template struct {
	Name              string   `json:"name"`
	Subject           string   `json:"subject"`
	Body              string   `json:"body"`
	RequiredVariables []string `json:"requiredVariables"`
	OptionalVariables []string `json:"optionalVariables,omitempty"`
	Category          Category `json:"category"`
	DefaultPriority   Priority `json:"defaultPriority"`
	Active            bool     `json:"active"`
	Version           string   `json:"version"`
}

// OrderEvent is the inbound domain event consumed from the events topic.
type OrderEvent struct {
	NotificationID string         `json:"notificationId"`
	UserID         string         `json:"userId"`
	EventType      string         `json:"eventType"`
	Title          string         `json:"title"`
	Content        string         `json:"content"`
	Data           map[string]any `json:"data,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}
