// Package hourscache keeps migrated working hours close to the slot listing
// path. Entries expire after a TTL and are dropped whenever an owner saves a
// new schedule.
package hourscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"agendafacil/internal/model"
)

// RedisCache stores schedules as JSON strings under prefix:businessID.
type RedisCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisCache creates a cache with the given TTL. A non-positive TTL
// disables the cache.
func NewRedisCache(rdb *redis.Client, ttl time.Duration, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "agenda:hours"
	}
	return &RedisCache{rdb: rdb, ttl: ttl, prefix: prefix}
}

func (c *RedisCache) key(businessID string) string {
	return c.prefix + ":" + businessID
}

func (c *RedisCache) Get(ctx context.Context, businessID string) (model.WorkingHours, bool, error) {
	if c.rdb == nil || c.ttl <= 0 {
		return nil, false, nil
	}
	val, err := c.rdb.Get(ctx, c.key(businessID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get working hours: %w", err)
	}
	var wh model.WorkingHours
	if err := json.Unmarshal(val, &wh); err != nil {
		// stale shape; treat as a miss so the store result replaces it
		return nil, false, nil
	}
	return wh, true, nil
}

func (c *RedisCache) Set(ctx context.Context, businessID string, wh model.WorkingHours) error {
	if c.rdb == nil || c.ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(wh)
	if err != nil {
		return fmt.Errorf("encode working hours: %w", err)
	}
	if err := c.rdb.Set(ctx, c.key(businessID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set working hours: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, businessID string) error {
	if c.rdb == nil {
		return nil
	}
	if err := c.rdb.Del(ctx, c.key(businessID)).Err(); err != nil {
		return fmt.Errorf("invalidate working hours: %w", err)
	}
	return nil
}
