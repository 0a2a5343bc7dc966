// internal/channels/inapp.go
package channels

import (
	"context"
	"encoding/json"
	"time"

	stderrors "notification-dispatch/internal/common/errors"
	"notification-dispatch/internal/models"

	"github.com/redis/go-redis/v9"
)

const inboxMaxLength = 200

// InAppSender stores rendered messages in the user's redis inbox for pickup
// on next connect. Used when the recipient has no live realtime session.
type InAppSender struct {
	rdb *redis.Client
}

func NewInAppSender(rdb *redis.Client) *InAppSender {
	return &InAppSender{rdb: rdb}
}

func (s *InAppSender) Channel() models.Channel {
	return models.ChannelInApp
}

type inboxEntry struct {
	NotificationID string    `json:"notificationId"`
	Subject        string    `json:"subject"`
	Content        string    `json:"content"`
	Priority       string    `json:"priority"`
	StoredAt       time.Time `json:"storedAt"`
}

func (s *InAppSender) Send(ctx context.Context, msg Message) (SendResult, error) {
	entry, err := json.Marshal(inboxEntry{
		NotificationID: msg.NotificationID,
		Subject:        msg.Subject,
		Content:        msg.Content,
		Priority:       string(msg.Priority),
		StoredAt:       time.Now().UTC(),
	})
	if err != nil {
		return SendResult{}, stderrors.NewChannelSendFailedError(string(models.ChannelInApp), err)
	}

	key := "inbox:" + msg.RecipientID
	pipe := s.rdb.TxPipeline()
	pipe.LPush(ctx, key, entry)
	pipe.LTrim(ctx, key, 0, inboxMaxLength-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return SendResult{}, stderrors.NewChannelSendFailedError(string(models.ChannelInApp), err)
	}

	return SendResult{ExternalID: msg.NotificationID}, nil
}
