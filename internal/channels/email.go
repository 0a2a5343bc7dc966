// internal/channels/email.go
package channels

import (
	"context"
	"strings"

	stderrors "notification-dispatch/internal/common/errors"
	"notification-dispatch/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESService is the slice of the SES client the email sender needs.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// EmailSender delivers rendered messages over SES.
type EmailSender struct {
	client    SESService
	fromEmail string
}

func NewEmailSender(client SESService, fromEmail string) *EmailSender {
	return &EmailSender{client: client, fromEmail: fromEmail}
}

func (s *EmailSender) Channel() models.Channel {
	return models.ChannelEmail
}

func (s *EmailSender) Send(ctx context.Context, msg Message) (SendResult, error) {
	if !strings.Contains(msg.Address, "@") {
		return SendResult{}, stderrors.NewInvalidRecipientError("not an email address: " + msg.Address)
	}

	out, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{msg.Address},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(msg.Content)},
				Html: &types.Content{Data: aws.String(msg.Content)},
			},
		},
		Source: aws.String(s.fromEmail),
	})
	if err != nil {
		return SendResult{}, stderrors.NewChannelSendFailedError(string(models.ChannelEmail), err)
	}

	res := SendResult{}
	if out.MessageId != nil {
		res.ExternalID = *out.MessageId
	}
	return res, nil
}
