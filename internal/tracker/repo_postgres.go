// internal/tracker/repo_postgres.go
package tracker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	stderrors "notification-dispatch/internal/common/errors"
	"notification-dispatch/internal/models"
)

// PostgresRepo stores history records in the notification_history table.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Create(ctx context.Context, h *models.NotificationHistory) error {
	const query = `
		INSERT INTO notification_history (
			notification_id, correlation_id, type, recipient_id, subject, content,
			template_name, priority, status, external_id, error_message,
			scheduled_at, sent_at, delivered_at, read_at,
			retry_count, max_retry_attempts, reference_id, reference_type,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`

	_, err := r.db.ExecContext(ctx, query,
		h.NotificationID, h.CorrelationID, h.Type, h.RecipientID, h.Subject, h.Content,
		h.TemplateName, h.Priority, h.Status, h.ExternalID, h.ErrorMessage,
		h.ScheduledAt, h.SentAt, h.DeliveredAt, h.ReadAt,
		h.RetryCount, h.MaxRetryAttempts, h.ReferenceID, h.ReferenceType,
		h.CreatedAt, h.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

func (r *PostgresRepo) Get(ctx context.Context, notificationID string) (*models.NotificationHistory, error) {
	const query = `
		SELECT notification_id, correlation_id, type, recipient_id, subject, content,
		       template_name, priority, status, external_id, error_message,
		       scheduled_at, sent_at, delivered_at, read_at,
		       retry_count, max_retry_attempts, reference_id, reference_type,
		       created_at, updated_at
		FROM notification_history WHERE notification_id = $1`

	var h models.NotificationHistory
	err := r.db.QueryRowContext(ctx, query, notificationID).Scan(
		&h.NotificationID, &h.CorrelationID, &h.Type, &h.RecipientID, &h.Subject, &h.Content,
		&h.TemplateName, &h.Priority, &h.Status, &h.ExternalID, &h.ErrorMessage,
		&h.ScheduledAt, &h.SentAt, &h.DeliveredAt, &h.ReadAt,
		&h.RetryCount, &h.MaxRetryAttempts, &h.ReferenceID, &h.ReferenceType,
		&h.CreatedAt, &h.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, stderrors.NewHistoryNotFoundError(notificationID)
	}
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	return &h, nil
}

func (r *PostgresRepo) Update(ctx context.Context, h *models.NotificationHistory) error {
	const query = `
		UPDATE notification_history SET
			subject = $2, content = $3, template_name = $4, status = $5,
			external_id = $6, error_message = $7,
			sent_at = $8, delivered_at = $9, read_at = $10,
			retry_count = $11, updated_at = $12
		WHERE notification_id = $1`

	res, err := r.db.ExecContext(ctx, query,
		h.NotificationID, h.Subject, h.Content, h.TemplateName, h.Status,
		h.ExternalID, h.ErrorMessage,
		h.SentAt, h.DeliveredAt, h.ReadAt,
		h.RetryCount, h.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update history: %w", err)
	}

	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return stderrors.NewHistoryNotFoundError(h.NotificationID)
	}
	return nil
}
