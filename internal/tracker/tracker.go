// internal/tracker/tracker.go
package tracker

import (
	"context"
	"fmt"
	"time"

	stderrors "notification-dispatch/internal/common/errors"
	"notification-dispatch/internal/common/logger"
	"notification-dispatch/internal/common/metrics"
	"notification-dispatch/internal/models"

	"github.com/google/uuid"
)

// Repo persists history records.
type Repo interface {
	Create(ctx context.Context, h *models.NotificationHistory) error
	Get(ctx context.Context, notificationID string) (*models.NotificationHistory, error)
	Update(ctx context.Context, h *models.NotificationHistory) error
}

// AuditIndexer receives terminal history records for search indexing.
// Best-effort: indexing failures never fail the pipeline.
type AuditIndexer interface {
	Index(h *models.NotificationHistory)
}

// Tracker owns the lifecycle state of every notification attempt. A record
// is created at PENDING before any channel call, so every attempt is
// auditable even when later steps fail.
type Tracker struct {
	repo    Repo
	indexer AuditIndexer
	log     logger.Logger
	now     func() time.Time
}

func New(repo Repo, indexer AuditIndexer, log logger.Logger) *Tracker {
	return &Tracker{
		repo:    repo,
		indexer: indexer,
		log:     log.WithFields(map[string]interface{}{"component": "delivery-tracker"}),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// RecordAdmission creates the PENDING history record for a request and
// returns its notification id.
func (t *Tracker) RecordAdmission(ctx context.Context, req *models.NotificationRequest) (string, error) {
	id := req.CorrelationIDOrNew()

	maxAttempts := req.MaxRetryAttempts
	if maxAttempts <= 0 {
		maxAttempts = models.DefaultMaxRetryAttempts
	}

	now := t.now()
	h := &models.NotificationHistory{
		NotificationID:   uuid.New().String(),
		CorrelationID:    id,
		Type:             req.Type,
		RecipientID:      req.RecipientID,
		Subject:          req.Subject,
		Content:          req.Content,
		TemplateName:     req.TemplateName,
		Priority:         req.Priority,
		Status:           models.StatusPending,
		ScheduledAt:      req.ScheduledAt,
		MaxRetryAttempts: maxAttempts,
		ReferenceID:      req.ReferenceID,
		ReferenceType:    req.ReferenceType,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := t.repo.Create(ctx, h); err != nil {
		return "", stderrors.NewHistoryWriteFailedError(err)
	}
	return h.NotificationID, nil
}

// SetRendered stores the rendered subject/content on the record before the
// channel call, so the audit trail shows exactly what went out.
func (t *Tracker) SetRendered(ctx context.Context, notificationID, subject, content, templateName string) error {
	h, err := t.repo.Get(ctx, notificationID)
	if err != nil {
		return err
	}
	h.Subject = subject
	h.Content = content
	h.TemplateName = templateName
	h.UpdatedAt = t.now()
	return t.repo.Update(ctx, h)
}

// RecordOutcome applies one outcome to the record's state machine.
// Timestamps are set exactly once, on first entry to the matching state.
func (t *Tracker) RecordOutcome(ctx context.Context, notificationID string, outcome Outcome) error {
	h, err := t.repo.Get(ctx, notificationID)
	if err != nil {
		return err
	}

	target := statusFor(outcome.Kind)
	if h.Status == target {
		return nil // idempotent re-entry
	}
	if !transitionAllowed(h.Status, target) {
		return stderrors.NewInvalidTransitionError(string(h.Status), string(target))
	}

	now := t.now()
	switch outcome.Kind {
	case OutcomeSent:
		h.Status = models.StatusSent
		h.ExternalID = outcome.ExternalID
		if h.SentAt == nil {
			h.SentAt = &now
		}
	case OutcomeFailed:
		h.Status = models.StatusFailed
		h.ErrorMessage = outcome.Reason
	case OutcomeDelivered:
		h.Status = models.StatusDelivered
		if h.DeliveredAt == nil {
			h.DeliveredAt = &now
		}
	case OutcomeRead:
		if h.Type != models.ChannelInApp && h.Type != models.ChannelPush {
			return stderrors.NewInvalidTransitionError(string(h.Status), string(models.StatusRead))
		}
		h.Status = models.StatusRead
		if h.ReadAt == nil {
			h.ReadAt = &now
		}
	}
	h.UpdatedAt = now

	if err := t.repo.Update(ctx, h); err != nil {
		return stderrors.NewHistoryWriteFailedError(err)
	}

	metrics.NotificationsDispatched.WithLabelValues(string(h.Type), string(h.Status)).Inc()

	if t.indexer != nil && isTerminalForAttempt(h.Status) {
		t.indexer.Index(h)
	}
	return nil
}

// IsRetryEligible reports whether an external scheduler may readmit the
// record: FAILED with retry budget remaining.
func (t *Tracker) IsRetryEligible(ctx context.Context, notificationID string) bool {
	h, err := t.repo.Get(ctx, notificationID)
	if err != nil {
		return false
	}
	return h.Status == models.StatusFailed && h.RetryCount < h.MaxRetryAttempts
}

// Readmit is the controlled FAILED -> PENDING reset: it consumes one retry
// attempt. The only path by which a status ever moves backward.
func (t *Tracker) Readmit(ctx context.Context, notificationID string) error {
	h, err := t.repo.Get(ctx, notificationID)
	if err != nil {
		return err
	}
	if h.Status != models.StatusFailed {
		return stderrors.NewInvalidTransitionError(string(h.Status), string(models.StatusPending))
	}
	if h.RetryCount >= h.MaxRetryAttempts {
		return fmt.Errorf("retry budget exhausted for %s", notificationID)
	}

	h.RetryCount++
	h.Status = models.StatusPending
	h.ErrorMessage = ""
	h.UpdatedAt = t.now()
	return t.repo.Update(ctx, h)
}

// Cancel marks a record CANCELLED. Terminal.
func (t *Tracker) Cancel(ctx context.Context, notificationID string) error {
	h, err := t.repo.Get(ctx, notificationID)
	if err != nil {
		return err
	}
	if !transitionAllowed(h.Status, models.StatusCancelled) {
		return stderrors.NewInvalidTransitionError(string(h.Status), string(models.StatusCancelled))
	}
	h.Status = models.StatusCancelled
	h.UpdatedAt = t.now()
	return t.repo.Update(ctx, h)
}

// Get returns the current history projection.
func (t *Tracker) Get(ctx context.Context, notificationID string) (*models.NotificationHistory, error) {
	return t.repo.Get(ctx, notificationID)
}

func statusFor(kind OutcomeKind) models.Status {
	switch kind {
	case OutcomeSent:
		return models.StatusSent
	case OutcomeFailed:
		return models.StatusFailed
	case OutcomeDelivered:
		return models.StatusDelivered
	default:
		return models.StatusRead
	}
}

// transitionAllowed encodes the forward-only state machine. FAILED -> PENDING
// is deliberately absent: that move goes through Readmit.
func transitionAllowed(from, to models.Status) bool {
	switch from {
	case models.StatusPending:
		return to == models.StatusSent || to == models.StatusFailed || to == models.StatusCancelled
	case models.StatusSent:
		return to == models.StatusDelivered || to == models.StatusRead || to == models.StatusFailed
	case models.StatusDelivered:
		return to == models.StatusRead
	case models.StatusFailed:
		return to == models.StatusCancelled
	default:
		return false // READ and CANCELLED are terminal
	}
}

func isTerminalForAttempt(s models.Status) bool {
	return s == models.StatusSent || s == models.StatusFailed || s == models.StatusCancelled
}
