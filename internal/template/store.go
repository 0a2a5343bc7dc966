// internal/template/store.go
package template

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"notification-dispatch/internal/models"

	"github.com/lib/pq"
)

// ErrNotFound is returned when no active template matches the name.
var ErrNotFound = errors.New("template not found")

// Store resolves named, active templates. The template CRUD lifecycle is
// owned elsewhere; the pipeline only reads.
type Store interface {
	GetActive(ctx context.Context, name string) (*models.Template, error)
}

// PostgresStore reads templates from the notification_templates table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetActive(ctx context.Context, name string) (*models.Template, error) {
	const query = `
		SELECT name, subject, body, required_variables, optional_variables,
		       category, default_priority, active, version
		FROM notification_templates
		WHERE name = $1 AND active = TRUE`

	var t models.Template
	err := s.db.QueryRowContext(ctx, query, name).Scan(
		&t.Name, &t.Subject, &t.Body,
		pq.Array(&t.RequiredVariables), pq.Array(&t.OptionalVariables),
		&t.Category, &t.DefaultPriority, &t.Active, &t.Version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query template: %w", err)
	}
	return &t, nil
}
