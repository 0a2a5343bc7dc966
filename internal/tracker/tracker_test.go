// internal/tracker/tracker_test.go
package tracker

import (
	"context"
	"testing"
	"time"

	stderrors "notification-dispatch/internal/common/errors"
	"notification-dispatch/internal/common/logger"
	"notification-dispatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type recordingIndexer struct {
	indexed []models.NotificationHistory
}

func (i *recordingIndexer) Index(h *models.NotificationHistory) {
	i.indexed = append(i.indexed, *h)
}

func createTestTracker(t *testing.T, indexer AuditIndexer) (*Tracker, *MemoryRepo) {
	repo := NewMemoryRepo()
	trk := New(repo, indexer, logger.NewTestLogger(t))
	return trk, repo
}

func createTestRequest(channel models.Channel) *models.NotificationRequest {
	return &models.NotificationRequest{
		Type:          channel,
		RecipientID:   "user-123",
		Subject:       "Order filled",
		Content:       "Your order filled.",
		Priority:      models.PriorityMedium,
		Category:      models.CategoryTrading,
		CorrelationID: "corr-abc",
		ScheduledAt:   time.Now().UTC(),
	}
}

func admit(t *testing.T, trk *Tracker, channel models.Channel) string {
	id, err := trk.RecordAdmission(context.Background(), createTestRequest(channel))
	require.NoError(t, err)
	require.NotEmpty(t, id)
	return id
}

// ==========================
// Admission Tests
// ==========================

func TestTracker_RecordAdmission(t *testing.T) {
	trk, repo := createTestTracker(t, nil)

	id := admit(t, trk, models.ChannelEmail)

	h, err := trk.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, h.Status)
	assert.Equal(t, "corr-abc", h.CorrelationID)
	assert.Equal(t, models.DefaultMaxRetryAttempts, h.MaxRetryAttempts)
	assert.Equal(t, 0, h.RetryCount)
	assert.Nil(t, h.SentAt)
	assert.Equal(t, 1, repo.Len())
}

func TestTracker_RecordAdmission_GeneratesCorrelationID(t *testing.T) {
	trk, _ := createTestTracker(t, nil)

	req := createTestRequest(models.ChannelEmail)
	req.CorrelationID = ""

	id, err := trk.RecordAdmission(context.Background(), req)
	require.NoError(t, err)

	h, err := trk.Get(context.Background(), id)
	require.NoError(t, err)
	assert.NotEmpty(t, h.CorrelationID)
}

// ==========================
// State Machine Tests
// ==========================

func TestTracker_RecordOutcome_HappyPath(t *testing.T) {
	trk, _ := createTestTracker(t, nil)
	ctx := context.Background()
	id := admit(t, trk, models.ChannelInApp)

	require.NoError(t, trk.RecordOutcome(ctx, id, Sent("ext-1")))
	require.NoError(t, trk.RecordOutcome(ctx, id, Delivered()))
	require.NoError(t, trk.RecordOutcome(ctx, id, Read()))

	h, err := trk.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRead, h.Status)
	assert.Equal(t, "ext-1", h.ExternalID)
	assert.NotNil(t, h.SentAt)
	assert.NotNil(t, h.DeliveredAt)
	assert.NotNil(t, h.ReadAt)
}

func TestTracker_RecordOutcome_InvalidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		channel models.Channel
		setup   []Outcome
		apply   Outcome
	}{
		{
			name:    "pending cannot be delivered",
			channel: models.ChannelEmail,
			setup:   nil,
			apply:   Delivered(),
		},
		{
			name:    "pending cannot be read",
			channel: models.ChannelInApp,
			setup:   nil,
			apply:   Read(),
		},
		{
			name:    "read is terminal",
			channel: models.ChannelInApp,
			setup:   []Outcome{Sent("ext-1"), Read()},
			apply:   Failed("late failure"),
		},
		{
			name:    "email records cannot be read",
			channel: models.ChannelEmail,
			setup:   []Outcome{Sent("ext-1")},
			apply:   Read(),
		},
		{
			name:    "failed cannot move straight to sent",
			channel: models.ChannelEmail,
			setup:   []Outcome{Failed("provider down")},
			apply:   Sent("ext-2"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trk, _ := createTestTracker(t, nil)
			ctx := context.Background()
			id := admit(t, trk, tt.channel)
			for _, o := range tt.setup {
				require.NoError(t, trk.RecordOutcome(ctx, id, o))
			}

			err := trk.RecordOutcome(ctx, id, tt.apply)

			require.Error(t, err)
			assert.Equal(t, stderrors.ErrCodeInvalidTransition, stderrors.CodeOf(err))
		})
	}
}

func TestTracker_RecordOutcome_IdempotentReentry(t *testing.T) {
	trk, _ := createTestTracker(t, nil)
	ctx := context.Background()
	id := admit(t, trk, models.ChannelInApp)

	require.NoError(t, trk.RecordOutcome(ctx, id, Sent("ext-1")))
	h1, err := trk.Get(ctx, id)
	require.NoError(t, err)

	// same-state re-entry is a no-op, not an error; SentAt does not move
	require.NoError(t, trk.RecordOutcome(ctx, id, Sent("ext-other")))
	h2, err := trk.Get(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, h1.SentAt, h2.SentAt)
	assert.Equal(t, "ext-1", h2.ExternalID)
}

func TestTracker_FailureRecordsReason(t *testing.T) {
	trk, _ := createTestTracker(t, nil)
	ctx := context.Background()
	id := admit(t, trk, models.ChannelEmail)

	require.NoError(t, trk.RecordOutcome(ctx, id, Failed("CIRCUIT_OPEN")))

	h, err := trk.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, h.Status)
	assert.Equal(t, "CIRCUIT_OPEN", h.ErrorMessage)
}

// ==========================
// Retry Lifecycle Tests
// ==========================

func TestTracker_ReadmitConsumesRetryBudget(t *testing.T) {
	trk, _ := createTestTracker(t, nil)
	ctx := context.Background()
	id := admit(t, trk, models.ChannelEmail)

	for i := 0; i < models.DefaultMaxRetryAttempts; i++ {
		require.NoError(t, trk.RecordOutcome(ctx, id, Failed("provider down")))
		assert.True(t, trk.IsRetryEligible(ctx, id))
		require.NoError(t, trk.Readmit(ctx, id))

		h, err := trk.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, h.Status)
		assert.Equal(t, i+1, h.RetryCount)
		assert.Empty(t, h.ErrorMessage)
	}

	// budget exhausted: no longer eligible, readmission refused
	require.NoError(t, trk.RecordOutcome(ctx, id, Failed("provider down")))
	assert.False(t, trk.IsRetryEligible(ctx, id))
	assert.Error(t, trk.Readmit(ctx, id))
}

func TestTracker_ReadmitRequiresFailed(t *testing.T) {
	trk, _ := createTestTracker(t, nil)
	ctx := context.Background()
	id := admit(t, trk, models.ChannelEmail)

	err := trk.Readmit(ctx, id)

	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeInvalidTransition, stderrors.CodeOf(err))
}

func TestTracker_Cancel(t *testing.T) {
	trk, _ := createTestTracker(t, nil)
	ctx := context.Background()
	id := admit(t, trk, models.ChannelEmail)

	require.NoError(t, trk.RecordOutcome(ctx, id, Failed("provider down")))
	require.NoError(t, trk.Cancel(ctx, id))

	h, err := trk.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, h.Status)

	// cancelled is terminal
	assert.Error(t, trk.RecordOutcome(ctx, id, Sent("ext-1")))
}

// ==========================
// Audit Indexing Tests
// ==========================

func TestTracker_IndexesTerminalStatuses(t *testing.T) {
	indexer := &recordingIndexer{}
	trk, _ := createTestTracker(t, indexer)
	ctx := context.Background()

	sent := admit(t, trk, models.ChannelEmail)
	require.NoError(t, trk.RecordOutcome(ctx, sent, Sent("ext-1")))

	failed := admit(t, trk, models.ChannelSMS)
	require.NoError(t, trk.RecordOutcome(ctx, failed, Failed("provider down")))

	require.Len(t, indexer.indexed, 2)
	assert.Equal(t, models.StatusSent, indexer.indexed[0].Status)
	assert.Equal(t, models.StatusFailed, indexer.indexed[1].Status)
}
