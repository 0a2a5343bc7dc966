// internal/preference/cache.go
package preference

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"notification-dispatch/internal/common/logger"
	"notification-dispatch/internal/models"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "pref:"

// sentinel cached for known-missing records so absent users don't hammer
// postgres on every event.
const cacheMissSentinel = "__none__"

// CachedStore is a redis read-through cache in front of another Store.
// Redis failures fall through to the backing store.
type CachedStore struct {
	backing Store
	rdb     *redis.Client
	ttl     time.Duration
	log     logger.Logger
}

func NewCachedStore(backing Store, rdb *redis.Client, ttl time.Duration, log logger.Logger) *CachedStore {
	return &CachedStore{
		backing: backing,
		rdb:     rdb,
		ttl:     ttl,
		log:     log.WithFields(map[string]interface{}{"component": "preference-cache"}),
	}
}

func (c *CachedStore) Get(ctx context.Context, userID string) (*models.UserPreference, error) {
	key := cacheKeyPrefix + userID

	val, err := c.rdb.Get(ctx, key).Result()
	if err == nil {
		if val == cacheMissSentinel {
			return nil, ErrNotFound
		}
		var p models.UserPreference
		if err := json.Unmarshal([]byte(val), &p); err == nil {
			return &p, nil
		}
		// corrupt entry, fall through to the backing store
		c.rdb.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		c.log.Warn("redis get failed", map[string]interface{}{"error": err.Error()})
	}

	p, err := c.backing.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		if serr := c.rdb.Set(ctx, key, cacheMissSentinel, c.ttl).Err(); serr != nil {
			c.log.Warn("redis set failed", map[string]interface{}{"error": serr.Error()})
		}
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if data, merr := json.Marshal(p); merr == nil {
		if serr := c.rdb.Set(ctx, key, data, c.ttl).Err(); serr != nil {
			c.log.Warn("redis set failed", map[string]interface{}{"error": serr.Error()})
		}
	}
	return p, nil
}

// Invalidate drops the cached entry after a preference update.
func (c *CachedStore) Invalidate(ctx context.Context, userID string) {
	if err := c.rdb.Del(ctx, cacheKeyPrefix+userID).Err(); err != nil {
		c.log.Warn("redis del failed", map[string]interface{}{"error": err.Error()})
	}
}
