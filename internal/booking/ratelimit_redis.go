package booking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter shares session counters across instances. Every recorded
// booking pushes the key expiry to Window, so the counter resets once Window
// has passed since the last booking.
type RedisRateLimiter struct {
	rdb    *redis.Client
	config RateLimitConfig
	prefix string
}

var recordBookingScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
redis.call("PEXPIRE", KEYS[1], ARGV[1])
return current
`)

// NewRedisRateLimiter creates a limiter keyed under prefix.
func NewRedisRateLimiter(rdb *redis.Client, config RateLimitConfig, prefix string) *RedisRateLimiter {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "agenda:rl"
	}
	return &RedisRateLimiter{rdb: rdb, config: config.withDefaults(), prefix: prefix}
}

func (l *RedisRateLimiter) key(sessionID string) string {
	return l.prefix + ":" + sessionID
}

func (l *RedisRateLimiter) Check(ctx context.Context, sessionID string) (time.Duration, error) {
	count, err := l.rdb.Get(ctx, l.key(sessionID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get session counter: %w", err)
	}
	if count < l.config.MaxBookings {
		return 0, nil
	}

	ttl, err := l.rdb.PTTL(ctx, l.key(sessionID)).Result()
	if err != nil {
		return 0, fmt.Errorf("get session ttl: %w", err)
	}
	if ttl <= 0 {
		// key expired between the two calls or has no expiry
		return 0, nil
	}
	return ttl, nil
}

func (l *RedisRateLimiter) Record(ctx context.Context, sessionID string) error {
	res, err := recordBookingScript.Run(ctx, l.rdb, []string{l.key(sessionID)}, l.config.Window.Milliseconds()).Result()
	if err != nil {
		return fmt.Errorf("record booking: %w", err)
	}
	switch v := res.(type) {
	case int64:
		return nil
	case string:
		if _, err := strconv.ParseInt(v, 10, 64); err != nil {
			return fmt.Errorf("record booking: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unexpected redis script result type %T", res)
	}
}
