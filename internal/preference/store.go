// internal/preference/store.go
package preference

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"notification-dispatch/internal/models"
)

// ErrNotFound is returned when no preference record exists for a user.
// Absence is not a failure: the gate treats it as the permissive default.
var ErrNotFound = errors.New("preference not found")

// Store reads user preferences.
type Store interface {
	Get(ctx context.Context, userID string) (*models.UserPreference, error)
}

// Updater applies preference updates forwarded from the realtime path.
type Updater interface {
	Apply(ctx context.Context, userID string, update map[string]any) error
}

// PostgresStore persists preferences in the user_preferences table, with
// the set-valued fields stored as JSON columns.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, userID string) (*models.UserPreference, error) {
	const query = `
		SELECT user_id, enabled, preferred_channel, enabled_channels, enabled_categories,
		       addresses, quiet_hours_enabled, quiet_hours_start, quiet_hours_end,
		       timezone, marketing_opt_in, daily_limit, updated_at
		FROM user_preferences WHERE user_id = $1`

	var (
		p          models.UserPreference
		channels   []byte
		categories []byte
		addresses  []byte
	)
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&p.UserID, &p.Enabled, &p.PreferredChannel, &channels, &categories,
		&addresses, &p.QuietHoursEnabled, &p.QuietHoursStart, &p.QuietHoursEnd,
		&p.Timezone, &p.MarketingOptIn, &p.DailyLimit, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query preference: %w", err)
	}

	if err := json.Unmarshal(channels, &p.EnabledChannels); err != nil {
		return nil, fmt.Errorf("decode enabled_channels: %w", err)
	}
	if err := json.Unmarshal(categories, &p.EnabledCategories); err != nil {
		return nil, fmt.Errorf("decode enabled_categories: %w", err)
	}
	if len(addresses) > 0 {
		if err := json.Unmarshal(addresses, &p.Addresses); err != nil {
			return nil, fmt.Errorf("decode addresses: %w", err)
		}
	}
	return &p, nil
}

// Apply upserts the updatable preference fields from a client-supplied patch.
// Unknown keys are ignored so protocol additions never break older servers.
func (s *PostgresStore) Apply(ctx context.Context, userID string, update map[string]any) error {
	pref, err := s.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		pref = DefaultPreference(userID)
	} else if err != nil {
		return err
	}

	if v, ok := update["enabled"].(bool); ok {
		pref.Enabled = v
	}
	if v, ok := update["marketingOptIn"].(bool); ok {
		pref.MarketingOptIn = v
	}
	if v, ok := update["quietHoursEnabled"].(bool); ok {
		pref.QuietHoursEnabled = v
	}
	if v, ok := update["quietHoursStart"].(string); ok {
		pref.QuietHoursStart = v
	}
	if v, ok := update["quietHoursEnd"].(string); ok {
		pref.QuietHoursEnd = v
	}
	if v, ok := update["timezone"].(string); ok {
		pref.Timezone = v
	}
	if v, ok := update["preferredChannel"].(string); ok {
		pref.PreferredChannel = models.Channel(v)
	}

	channels, err := json.Marshal(pref.EnabledChannels)
	if err != nil {
		return fmt.Errorf("encode enabled_channels: %w", err)
	}
	categories, err := json.Marshal(pref.EnabledCategories)
	if err != nil {
		return fmt.Errorf("encode enabled_categories: %w", err)
	}
	addresses, err := json.Marshal(pref.Addresses)
	if err != nil {
		return fmt.Errorf("encode addresses: %w", err)
	}

	const upsert = `
		INSERT INTO user_preferences (
			user_id, enabled, preferred_channel, enabled_channels, enabled_categories,
			addresses, quiet_hours_enabled, quiet_hours_start, quiet_hours_end,
			timezone, marketing_opt_in, daily_limit, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			preferred_channel = EXCLUDED.preferred_channel,
			enabled_channels = EXCLUDED.enabled_channels,
			enabled_categories = EXCLUDED.enabled_categories,
			addresses = EXCLUDED.addresses,
			quiet_hours_enabled = EXCLUDED.quiet_hours_enabled,
			quiet_hours_start = EXCLUDED.quiet_hours_start,
			quiet_hours_end = EXCLUDED.quiet_hours_end,
			timezone = EXCLUDED.timezone,
			marketing_opt_in = EXCLUDED.marketing_opt_in,
			daily_limit = EXCLUDED.daily_limit,
			updated_at = NOW()`

	_, err = s.db.ExecContext(ctx, upsert,
		pref.UserID, pref.Enabled, pref.PreferredChannel, channels, categories,
		addresses, pref.QuietHoursEnabled, pref.QuietHoursStart, pref.QuietHoursEnd,
		pref.Timezone, pref.MarketingOptIn, pref.DailyLimit,
	)
	if err != nil {
		return fmt.Errorf("upsert preference: %w", err)
	}
	return nil
}

// DefaultPreference is the permissive fallback used when no record exists:
// in-app preferred, in-app and email enabled, marketing off.
func DefaultPreference(userID string) *models.UserPreference {
	return &models.UserPreference{
		UserID:           userID,
		Enabled:          true,
		PreferredChannel: models.ChannelInApp,
		EnabledChannels: map[models.Channel]bool{
			models.ChannelInApp: true,
			models.ChannelEmail: true,
		},
		EnabledCategories: map[models.Category]bool{
			models.CategorySystem:  true,
			models.CategoryTrading: true,
			models.CategoryAccount: true,
		},
	}
}
