// internal/preference/gate.go
package preference

import (
	"context"
	"errors"
	"time"

	"notification-dispatch/internal/common/logger"
	"notification-dispatch/internal/models"
)

// Suppression reasons surfaced on gate decisions.
const (
	ReasonDisabled        = "notifications_disabled"
	ReasonChannelDisabled = "channel_disabled"
	ReasonCategoryOff     = "category_disabled"
	ReasonMarketingOptOut = "marketing_opt_out"
	ReasonQuietHours      = "quiet_hours"
	ReasonFrequencyLimit  = "frequency_limit"
)

// Decision is the gate's verdict for one user/channel/category tuple.
type Decision struct {
	Allowed bool
	Reason  string // set when Allowed is false
}

var allow = Decision{Allowed: true}

func deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Gate decides whether a notification may proceed. It is a predicate: it
// never errors, and missing preference data means the permissive default.
type Gate struct {
	store   Store
	limiter *FrequencyLimiter
	log     logger.Logger
}

func NewGate(store Store, limiter *FrequencyLimiter, log logger.Logger) *Gate {
	return &Gate{
		store:   store,
		limiter: limiter,
		log:     log.WithFields(map[string]interface{}{"component": "preference-gate"}),
	}
}

// Allow evaluates the gate for the given tuple at time now. URGENT priority
// bypasses quiet hours; everything else about the preference record still
// applies to it.
func (g *Gate) Allow(ctx context.Context, userID string, channel models.Channel, category models.Category, priority models.Priority, now time.Time) Decision {
	pref, err := g.store.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			// Storage trouble is treated like an absent record: the gate
			// fails open to the default rather than blocking the pipeline.
			g.log.Warn("preference lookup failed, using default", map[string]interface{}{
				"userId": userID, "error": err.Error(),
			})
		}
		pref = DefaultPreference(userID)
	}

	if !pref.Enabled {
		return deny(ReasonDisabled)
	}
	if !pref.EnabledChannels[channel] {
		return deny(ReasonChannelDisabled)
	}
	if d := g.checkCategory(pref, category); !d.Allowed {
		return d
	}
	if priority != models.PriorityUrgent && withinQuietHours(pref, now) {
		return deny(ReasonQuietHours)
	}
	if g.limiter != nil && !g.limiter.Admit(ctx, userID, pref.DailyLimit, now) {
		return deny(ReasonFrequencyLimit)
	}
	return allow
}

// checkCategory applies the enabled-category set plus the per-category
// overrides: marketing needs explicit opt-in, the rest default to enabled
// when the set has no entry.
func (g *Gate) checkCategory(pref *models.UserPreference, category models.Category) Decision {
	enabled, present := pref.EnabledCategories[category]

	if category == models.CategoryMarketing {
		if !pref.MarketingOptIn {
			return deny(ReasonMarketingOptOut)
		}
		if present && !enabled {
			return deny(ReasonCategoryOff)
		}
		return allow
	}

	if present && !enabled {
		return deny(ReasonCategoryOff)
	}
	return allow
}
