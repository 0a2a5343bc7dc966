// internal/channels/sms.go
package channels

import (
	"context"
	"strings"

	stderrors "notification-dispatch/internal/common/errors"
	"notification-dispatch/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// SNSService is the slice of the SNS client the SMS sender needs.
type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SMSSender delivers rendered messages over SNS.
type SMSSender struct {
	client SNSService
}

func NewSMSSender(client SNSService) *SMSSender {
	return &SMSSender{client: client}
}

func (s *SMSSender) Channel() models.Channel {
	return models.ChannelSMS
}

func (s *SMSSender) Send(ctx context.Context, msg Message) (SendResult, error) {
	if !strings.HasPrefix(msg.Address, "+") {
		return SendResult{}, stderrors.NewInvalidRecipientError("not an E.164 phone number: " + msg.Address)
	}

	out, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(msg.Address),
		Message:     aws.String(msg.Content),
	})
	if err != nil {
		return SendResult{}, stderrors.NewChannelSendFailedError(string(models.ChannelSMS), err)
	}

	res := SendResult{}
	if out.MessageId != nil {
		res.ExternalID = *out.MessageId
	}
	return res, nil
}
