// internal/channels/push.go
package channels

import (
	"context"
	"encoding/json"
	"fmt"

	stderrors "notification-dispatch/internal/common/errors"
	httpclient "notification-dispatch/internal/common/http"
	"notification-dispatch/internal/models"
)

// PushSender posts rendered messages to an opaque push provider webhook.
type PushSender struct {
	client      *httpclient.Client
	providerURL string
	apiKey      string
}

func NewPushSender(client *httpclient.Client, providerURL, apiKey string) *PushSender {
	return &PushSender{client: client, providerURL: providerURL, apiKey: apiKey}
}

func (s *PushSender) Channel() models.Channel {
	return models.ChannelPush
}

type pushPayload struct {
	To       string `json:"to"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	Priority string `json:"priority"`
}

type pushResponse struct {
	ID string `json:"id"`
}

func (s *PushSender) Send(ctx context.Context, msg Message) (SendResult, error) {
	if msg.Address == "" {
		return SendResult{}, stderrors.NewInvalidRecipientError("empty device endpoint")
	}

	body, err := json.Marshal(pushPayload{
		To:       msg.Address,
		Title:    msg.Subject,
		Body:     msg.Content,
		Priority: string(msg.Priority),
	})
	if err != nil {
		return SendResult{}, stderrors.NewChannelSendFailedError(string(models.ChannelPush), err)
	}

	resp, err := s.client.PostJSON(ctx, s.providerURL, s.apiKey, body)
	if err != nil {
		return SendResult{}, stderrors.NewChannelSendFailedError(string(models.ChannelPush), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var pr pushResponse
		_ = json.NewDecoder(resp.Body).Decode(&pr)
		return SendResult{ExternalID: pr.ID}, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// provider rejected this specific message, retrying won't help
		return SendResult{}, stderrors.NewInvalidRecipientError(
			fmt.Sprintf("push provider returned %d", resp.StatusCode))
	default:
		return SendResult{}, stderrors.NewChannelSendFailedError(string(models.ChannelPush),
			fmt.Errorf("push provider returned %d", resp.StatusCode))
	}
}
