// internal/preference/gate_test.go
package preference

import (
	"context"
	"errors"
	"testing"
	"time"

	"notification-dispatch/internal/common/logger"
	"notification-dispatch/internal/models"

	"github.com/stretchr/testify/assert"
)

// ==========================
// Test Helper Functions
// ==========================

type stubStore struct {
	pref *models.UserPreference
	err  error
}

func (s *stubStore) Get(ctx context.Context, userID string) (*models.UserPreference, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.pref, nil
}

func createTestGate(t *testing.T, store Store) *Gate {
	return NewGate(store, nil, logger.NewTestLogger(t))
}

func createPreference(mutate func(p *models.UserPreference)) *models.UserPreference {
	p := DefaultPreference("user-123")
	if mutate != nil {
		mutate(p)
	}
	return p
}

// noon UTC, nowhere near any quiet window used below
var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

// ==========================
// Core Functionality Tests
// ==========================

func TestGate_Allow(t *testing.T) {
	tests := []struct {
		name           string
		pref           *models.UserPreference
		channel        models.Channel
		category       models.Category
		priority       models.Priority
		now            time.Time
		expectAllowed  bool
		expectedReason string
	}{
		{
			name:          "default preference allows in-app trading",
			pref:          createPreference(nil),
			channel:       models.ChannelInApp,
			category:      models.CategoryTrading,
			priority:      models.PriorityMedium,
			now:           testNow,
			expectAllowed: true,
		},
		{
			name: "globally disabled user is suppressed",
			pref: createPreference(func(p *models.UserPreference) {
				p.Enabled = false
			}),
			channel:        models.ChannelInApp,
			category:       models.CategoryTrading,
			priority:       models.PriorityMedium,
			now:            testNow,
			expectAllowed:  false,
			expectedReason: ReasonDisabled,
		},
		{
			name:           "disabled channel is suppressed",
			pref:           createPreference(nil),
			channel:        models.ChannelSMS,
			category:       models.CategoryTrading,
			priority:       models.PriorityMedium,
			now:            testNow,
			expectAllowed:  false,
			expectedReason: ReasonChannelDisabled,
		},
		{
			name: "explicitly disabled category is suppressed",
			pref: createPreference(func(p *models.UserPreference) {
				p.EnabledCategories[models.CategoryTrading] = false
			}),
			channel:        models.ChannelInApp,
			category:       models.CategoryTrading,
			priority:       models.PriorityMedium,
			now:            testNow,
			expectAllowed:  false,
			expectedReason: ReasonCategoryOff,
		},
		{
			name:          "category absent from the set defaults to enabled",
			pref:          createPreference(nil),
			channel:       models.ChannelEmail,
			category:      models.CategoryAccount,
			priority:      models.PriorityMedium,
			now:           testNow,
			expectAllowed: true,
		},
		{
			name:           "marketing without opt-in is suppressed",
			pref:           createPreference(nil),
			channel:        models.ChannelEmail,
			category:       models.CategoryMarketing,
			priority:       models.PriorityLow,
			now:            testNow,
			expectAllowed:  false,
			expectedReason: ReasonMarketingOptOut,
		},
		{
			name: "marketing with opt-in is allowed",
			pref: createPreference(func(p *models.UserPreference) {
				p.MarketingOptIn = true
			}),
			channel:       models.ChannelEmail,
			category:      models.CategoryMarketing,
			priority:      models.PriorityLow,
			now:           testNow,
			expectAllowed: true,
		},
		{
			name: "opt-in does not override an explicitly disabled marketing category",
			pref: createPreference(func(p *models.UserPreference) {
				p.MarketingOptIn = true
				p.EnabledCategories[models.CategoryMarketing] = false
			}),
			channel:        models.ChannelEmail,
			category:       models.CategoryMarketing,
			priority:       models.PriorityLow,
			now:            testNow,
			expectAllowed:  false,
			expectedReason: ReasonCategoryOff,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := createTestGate(t, &stubStore{pref: tt.pref})

			d := gate.Allow(context.Background(), "user-123", tt.channel, tt.category, tt.priority, tt.now)

			assert.Equal(t, tt.expectAllowed, d.Allowed)
			assert.Equal(t, tt.expectedReason, d.Reason)
		})
	}
}

func TestGate_QuietHours(t *testing.T) {
	quietPref := func(start, end string) *models.UserPreference {
		return createPreference(func(p *models.UserPreference) {
			p.QuietHoursEnabled = true
			p.QuietHoursStart = start
			p.QuietHoursEnd = end
		})
	}

	at := func(hour, minute int) time.Time {
		return time.Date(2025, 3, 10, hour, minute, 0, 0, time.UTC)
	}

	tests := []struct {
		name           string
		pref           *models.UserPreference
		priority       models.Priority
		now            time.Time
		expectAllowed  bool
		expectedReason string
	}{
		{
			name:           "inside same-day window",
			pref:           quietPref("09:00", "17:00"),
			priority:       models.PriorityMedium,
			now:            at(12, 0),
			expectAllowed:  false,
			expectedReason: ReasonQuietHours,
		},
		{
			name:          "outside same-day window",
			pref:          quietPref("09:00", "17:00"),
			priority:      models.PriorityMedium,
			now:           at(18, 30),
			expectAllowed: true,
		},
		{
			name:           "midnight wrap suppresses late evening",
			pref:           quietPref("22:00", "06:00"),
			priority:       models.PriorityMedium,
			now:            at(23, 30),
			expectAllowed:  false,
			expectedReason: ReasonQuietHours,
		},
		{
			name:           "midnight wrap suppresses early morning",
			pref:           quietPref("22:00", "06:00"),
			priority:       models.PriorityMedium,
			now:            at(5, 15),
			expectAllowed:  false,
			expectedReason: ReasonQuietHours,
		},
		{
			name:          "midnight wrap allows midday",
			pref:          quietPref("22:00", "06:00"),
			priority:      models.PriorityMedium,
			now:           at(12, 0),
			expectAllowed: true,
		},
		{
			name:          "urgent priority bypasses quiet hours",
			pref:          quietPref("22:00", "06:00"),
			priority:      models.PriorityUrgent,
			now:           at(23, 30),
			expectAllowed: true,
		},
		{
			name: "disabled window never suppresses",
			pref: createPreference(func(p *models.UserPreference) {
				p.QuietHoursEnabled = false
				p.QuietHoursStart = "22:00"
				p.QuietHoursEnd = "06:00"
			}),
			priority:      models.PriorityMedium,
			now:           at(23, 30),
			expectAllowed: true,
		},
		{
			name: "unparseable start never suppresses",
			pref: createPreference(func(p *models.UserPreference) {
				p.QuietHoursEnabled = true
				p.QuietHoursStart = "late"
				p.QuietHoursEnd = "06:00"
			}),
			priority:      models.PriorityMedium,
			now:           at(23, 30),
			expectAllowed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := createTestGate(t, &stubStore{pref: tt.pref})

			d := gate.Allow(context.Background(), "user-123", models.ChannelInApp, models.CategoryTrading, tt.priority, tt.now)

			assert.Equal(t, tt.expectAllowed, d.Allowed)
			assert.Equal(t, tt.expectedReason, d.Reason)
		})
	}
}

func TestGate_QuietHours_Timezone(t *testing.T) {
	pref := createPreference(func(p *models.UserPreference) {
		p.QuietHoursEnabled = true
		p.QuietHoursStart = "22:00"
		p.QuietHoursEnd = "06:00"
		p.Timezone = "America/New_York"
	})
	gate := createTestGate(t, &stubStore{pref: pref})

	// 03:30 UTC is 22:30 or 23:30 in New York depending on DST, inside the
	// window either way
	inside := time.Date(2025, 3, 10, 3, 30, 0, 0, time.UTC)
	d := gate.Allow(context.Background(), "user-123", models.ChannelInApp, models.CategoryTrading, models.PriorityMedium, inside)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonQuietHours, d.Reason)

	// 16:00 UTC is around midday in New York
	outside := time.Date(2025, 3, 10, 16, 0, 0, 0, time.UTC)
	d = gate.Allow(context.Background(), "user-123", models.ChannelInApp, models.CategoryTrading, models.PriorityMedium, outside)
	assert.True(t, d.Allowed)
}

// ==========================
// Fail-Open Behavior Tests
// ==========================

func TestGate_MissingRecordUsesDefault(t *testing.T) {
	gate := createTestGate(t, &stubStore{err: ErrNotFound})

	d := gate.Allow(context.Background(), "user-999", models.ChannelInApp, models.CategorySystem, models.PriorityMedium, testNow)
	assert.True(t, d.Allowed)

	// the default does not enable SMS
	d = gate.Allow(context.Background(), "user-999", models.ChannelSMS, models.CategorySystem, models.PriorityMedium, testNow)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonChannelDisabled, d.Reason)

	// and the default never opts into marketing
	d = gate.Allow(context.Background(), "user-999", models.ChannelEmail, models.CategoryMarketing, models.PriorityLow, testNow)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonMarketingOptOut, d.Reason)
}

func TestGate_StorageErrorFailsOpen(t *testing.T) {
	gate := createTestGate(t, &stubStore{err: errors.New("connection refused")})

	d := gate.Allow(context.Background(), "user-999", models.ChannelEmail, models.CategoryTrading, models.PriorityMedium, testNow)
	assert.True(t, d.Allowed)
}
