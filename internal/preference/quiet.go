// internal/preference/quiet.go
package preference

import (
	"time"

	"notification-dispatch/internal/models"
)

const clockLayout = "15:04"

// withinQuietHours reports whether now falls inside the user's quiet-hours
// window. Windows have same-day granularity; start > end wraps midnight.
// A disabled or incompletely specified window never suppresses.
func withinQuietHours(pref *models.UserPreference, now time.Time) bool {
	if !pref.QuietHoursEnabled || pref.QuietHoursStart == "" || pref.QuietHoursEnd == "" {
		return false
	}

	start, err := time.Parse(clockLayout, pref.QuietHoursStart)
	if err != nil {
		return false
	}
	end, err := time.Parse(clockLayout, pref.QuietHoursEnd)
	if err != nil {
		return false
	}

	local := now
	if pref.Timezone != "" {
		if loc, err := time.LoadLocation(pref.Timezone); err == nil {
			local = now.In(loc)
		}
	}

	// minutes since midnight, comparing clock positions only
	t := local.Hour()*60 + local.Minute()
	s := start.Hour()*60 + start.Minute()
	e := end.Hour()*60 + end.Minute()

	if s <= e {
		return t >= s && t <= e
	}
	// window wraps midnight, e.g. 22:00-06:00
	return t >= s || t <= e
}
