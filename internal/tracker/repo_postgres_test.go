// internal/tracker/repo_postgres_test.go
package tracker

import (
	"context"
	"database/sql"
	"testing"
	"time"

	stderrors "notification-dispatch/internal/common/errors"
	"notification-dispatch/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*PostgresRepo, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepo(db), mock
}

func historyRecord() *models.NotificationHistory {
	now := time.Now().UTC()
	return &models.NotificationHistory{
		NotificationID:   "notif-1",
		CorrelationID:    "corr-abc",
		Type:             models.ChannelEmail,
		RecipientID:      "user-123",
		Subject:          "Order filled",
		Content:          "Your order filled.",
		Priority:         models.PriorityMedium,
		Status:           models.StatusPending,
		ScheduledAt:      now,
		MaxRetryAttempts: 3,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func TestPostgresRepo_Create(t *testing.T) {
	repo, mock := newMockRepo(t)
	h := historyRecord()

	mock.ExpectExec("INSERT INTO notification_history").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), h)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_Get(t *testing.T) {
	repo, mock := newMockRepo(t)
	h := historyRecord()

	columns := []string{
		"notification_id", "correlation_id", "type", "recipient_id", "subject", "content",
		"template_name", "priority", "status", "external_id", "error_message",
		"scheduled_at", "sent_at", "delivered_at", "read_at",
		"retry_count", "max_retry_attempts", "reference_id", "reference_type",
		"created_at", "updated_at",
	}
	rows := sqlmock.NewRows(columns).AddRow(
		h.NotificationID, h.CorrelationID, string(h.Type), h.RecipientID, h.Subject, h.Content,
		h.TemplateName, string(h.Priority), string(h.Status), h.ExternalID, h.ErrorMessage,
		h.ScheduledAt, nil, nil, nil,
		h.RetryCount, h.MaxRetryAttempts, h.ReferenceID, h.ReferenceType,
		h.CreatedAt, h.UpdatedAt,
	)

	mock.ExpectQuery("SELECT (.+) FROM notification_history WHERE notification_id").
		WithArgs("notif-1").
		WillReturnRows(rows)

	got, err := repo.Get(context.Background(), "notif-1")

	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, models.ChannelEmail, got.Type)
	assert.Nil(t, got.SentAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_Get_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM notification_history WHERE notification_id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "missing")

	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeHistoryNotFound, stderrors.CodeOf(err))
}

func TestPostgresRepo_Update(t *testing.T) {
	repo, mock := newMockRepo(t)
	h := historyRecord()
	h.Status = models.StatusSent

	mock.ExpectExec("UPDATE notification_history SET").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), h)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_Update_MissingRecord(t *testing.T) {
	repo, mock := newMockRepo(t)
	h := historyRecord()

	mock.ExpectExec("UPDATE notification_history SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), h)

	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeHistoryNotFound, stderrors.CodeOf(err))
}
