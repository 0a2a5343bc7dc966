// internal/resilience/wrapper_test.go
package resilience

import (
	"context"
	"testing"
	"time"

	"notification-dispatch/internal/channels"
	"notification-dispatch/internal/common/config"
	stderrors "notification-dispatch/internal/common/errors"
	"notification-dispatch/internal/common/logger"
	"notification-dispatch/internal/models"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeSender struct {
	calls   int
	sendFn  func(ctx context.Context, msg channels.Message) (channels.SendResult, error)
	channel models.Channel
}

func (s *fakeSender) Channel() models.Channel {
	if s.channel == "" {
		return models.ChannelEmail
	}
	return s.channel
}

func (s *fakeSender) Send(ctx context.Context, msg channels.Message) (channels.SendResult, error) {
	s.calls++
	return s.sendFn(ctx, msg)
}

func createTestConfig() config.ResilienceConfig {
	return config.ResilienceConfig{
		FailureRateThreshold: 0.5,
		SlidingWindow:        10,
		MinimumCalls:         5,
		OpenWait:             30 * time.Second,
		HalfOpenProbes:       1,
		MaxRetryAttempts:     1,
		RetryWait:            time.Millisecond,
		CallTimeout:          time.Second,
	}
}

func createTestWrapper(t *testing.T, sender channels.Sender, cfg config.ResilienceConfig) *Wrapper {
	w := NewWrapper(sender, cfg, logger.NewTestLogger(t))
	w.sleep = func(time.Duration) {} // no real waits in tests
	return w
}

func testMessage() channels.Message {
	return channels.Message{
		NotificationID: "notif-1",
		RecipientID:    "user-123",
		Address:        "user@example.com",
		Subject:        "subject",
		Content:        "content",
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestWrapper_Deliver_Success(t *testing.T) {
	sender := &fakeSender{
		sendFn: func(ctx context.Context, msg channels.Message) (channels.SendResult, error) {
			return channels.SendResult{ExternalID: "ses-msg-1"}, nil
		},
	}
	w := createTestWrapper(t, sender, createTestConfig())

	res := w.Deliver(context.Background(), testMessage())

	assert.True(t, res.OK)
	assert.Equal(t, "ses-msg-1", res.ExternalID)
	assert.Equal(t, 1, sender.calls)
	assert.Equal(t, gobreaker.StateClosed, w.State())
}

func TestWrapper_Deliver_BreakerTripsOnFailureRate(t *testing.T) {
	sender := &fakeSender{
		sendFn: func(ctx context.Context, msg channels.Message) (channels.SendResult, error) {
			return channels.SendResult{}, stderrors.NewChannelSendFailedError("EMAIL", assert.AnError)
		},
	}
	w := createTestWrapper(t, sender, createTestConfig())

	// minimum_calls failures at 100% failure rate trip the breaker
	for i := 0; i < 5; i++ {
		res := w.Deliver(context.Background(), testMessage())
		assert.False(t, res.OK)
		assert.Equal(t, stderrors.ErrCodeRetryExhausted, res.ReasonCode)
	}
	require.Equal(t, gobreaker.StateOpen, w.State())

	// open breaker short-circuits without reaching the sender
	callsBefore := sender.calls
	res := w.Deliver(context.Background(), testMessage())

	assert.False(t, res.OK)
	assert.Equal(t, stderrors.ErrCodeCircuitOpen, res.ReasonCode)
	assert.True(t, res.Retryable)
	assert.Equal(t, callsBefore, sender.calls)
}

func TestWrapper_Deliver_InvalidRecipientDoesNotTrip(t *testing.T) {
	sender := &fakeSender{
		sendFn: func(ctx context.Context, msg channels.Message) (channels.SendResult, error) {
			return channels.SendResult{}, stderrors.NewInvalidRecipientError("not an email address")
		},
	}
	w := createTestWrapper(t, sender, createTestConfig())

	// well past minimum_calls, all permanent rejections
	for i := 0; i < 10; i++ {
		res := w.Deliver(context.Background(), testMessage())
		assert.False(t, res.OK)
		assert.False(t, res.Retryable)
		assert.Equal(t, stderrors.ErrCodeInvalidRecipient, res.ReasonCode)
	}

	assert.Equal(t, gobreaker.StateClosed, w.State())
	// permanent failures never consume retries
	assert.Equal(t, 10, sender.calls)
}

func TestWrapper_Deliver_RetryExhausted(t *testing.T) {
	sender := &fakeSender{
		sendFn: func(ctx context.Context, msg channels.Message) (channels.SendResult, error) {
			return channels.SendResult{}, stderrors.NewChannelSendFailedError("EMAIL", assert.AnError)
		},
	}
	cfg := createTestConfig()
	cfg.MaxRetryAttempts = 3
	cfg.MinimumCalls = 100 // keep the breaker out of this test

	slept := 0
	w := NewWrapper(sender, cfg, logger.NewTestLogger(t))
	w.sleep = func(time.Duration) { slept++ }

	res := w.Deliver(context.Background(), testMessage())

	assert.False(t, res.OK)
	assert.Equal(t, stderrors.ErrCodeRetryExhausted, res.ReasonCode)
	assert.True(t, res.Retryable)
	assert.Equal(t, 3, sender.calls)
	assert.Equal(t, 2, slept) // no wait after the final attempt
}

func TestWrapper_Deliver_RetryStopsAtFirstSuccess(t *testing.T) {
	sender := &fakeSender{}
	sender.sendFn = func(ctx context.Context, msg channels.Message) (channels.SendResult, error) {
		if sender.calls < 2 {
			return channels.SendResult{}, stderrors.NewChannelSendFailedError("EMAIL", assert.AnError)
		}
		return channels.SendResult{ExternalID: "ses-msg-2"}, nil
	}
	cfg := createTestConfig()
	cfg.MaxRetryAttempts = 3
	cfg.MinimumCalls = 100
	w := createTestWrapper(t, sender, cfg)

	res := w.Deliver(context.Background(), testMessage())

	assert.True(t, res.OK)
	assert.Equal(t, "ses-msg-2", res.ExternalID)
	assert.Equal(t, 2, sender.calls)
}

func TestWrapper_Deliver_Timeout(t *testing.T) {
	sender := &fakeSender{
		sendFn: func(ctx context.Context, msg channels.Message) (channels.SendResult, error) {
			<-ctx.Done()
			return channels.SendResult{}, ctx.Err()
		},
	}
	cfg := createTestConfig()
	cfg.CallTimeout = 10 * time.Millisecond
	cfg.MinimumCalls = 100
	w := createTestWrapper(t, sender, cfg)

	res := w.Deliver(context.Background(), testMessage())

	assert.False(t, res.OK)
	assert.Equal(t, stderrors.ErrCodeTimeout, res.ReasonCode)
	assert.True(t, res.Retryable)
}
