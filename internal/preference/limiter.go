// internal/preference/limiter.go
package preference

import (
	"context"
	"fmt"
	"time"

	"notification-dispatch/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

// FrequencyLimiter enforces per-user daily notification caps with a redis
// counter keyed by local day. Redis errors fail open: a cache outage must
// never suppress notifications.
type FrequencyLimiter struct {
	rdb *redis.Client
	log logger.Logger
}

func NewFrequencyLimiter(rdb *redis.Client, log logger.Logger) *FrequencyLimiter {
	return &FrequencyLimiter{
		rdb: rdb,
		log: log.WithFields(map[string]interface{}{"component": "frequency-limiter"}),
	}
}

// Admit increments the user's daily counter and reports whether this
// notification is within the limit. limit <= 0 means unlimited.
func (l *FrequencyLimiter) Admit(ctx context.Context, userID string, limit int, now time.Time) bool {
	if limit <= 0 {
		return true
	}

	key := fmt.Sprintf("freq:%s:%s", userID, now.Format("2006-01-02"))

	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		l.log.Warn("frequency counter unavailable, admitting", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
		return true
	}

	if count == 1 {
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
		l.rdb.Expire(ctx, key, midnight.Sub(now))
	}

	return count <= int64(limit)
}
