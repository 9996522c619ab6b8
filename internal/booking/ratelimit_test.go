package booking

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agendafacil/internal/availability"
)

func TestMemoryRateLimiter(t *testing.T) {
	ctx := context.Background()
	now := baseTime
	l := NewMemoryRateLimiter(RateLimitConfig{})
	l.SetClock(func() time.Time { return now })

	wait, err := l.Check(ctx, "s1")
	require.NoError(t, err)
	assert.Zero(t, wait)

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Record(ctx, "s1"))
		now = now.Add(2 * time.Minute)
	}

	wait, err = l.Check(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 8*time.Minute, wait)

	wait, err = l.Check(ctx, "s2")
	require.NoError(t, err)
	assert.Zero(t, wait)

	// the window restarts from the last booking, not the first
	now = now.Add(7 * time.Minute)
	wait, err = l.Check(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, wait)

	now = now.Add(time.Minute)
	wait, err = l.Check(ctx, "s1")
	require.NoError(t, err)
	assert.Zero(t, wait)

	require.NoError(t, l.Record(ctx, "s1"))
	wait, err = l.Check(ctx, "s1")
	require.NoError(t, err)
	assert.Zero(t, wait)
}

func TestMemoryRateLimiter_Sweep(t *testing.T) {
	ctx := context.Background()
	now := baseTime
	l := NewMemoryRateLimiter(RateLimitConfig{MaxBookings: 1, Window: time.Minute})
	l.SetClock(func() time.Time { return now })

	for i := 0; i < maxTrackedSessions; i++ {
		require.NoError(t, l.Record(ctx, "session-"+strconv.Itoa(i)))
	}
	now = now.Add(2 * time.Minute)
	require.NoError(t, l.Record(ctx, "fresh"))
	assert.Len(t, l.sessions, 1)
}

func newRedisLimiter(t *testing.T, cfg RateLimitConfig) (*RedisRateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisRateLimiter(rdb, cfg, ""), mr
}

func TestRedisRateLimiter(t *testing.T) {
	ctx := context.Background()
	l, mr := newRedisLimiter(t, DefaultRateLimitConfig())

	wait, err := l.Check(ctx, "s1")
	require.NoError(t, err)
	assert.Zero(t, wait)

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Record(ctx, "s1"))
	}
	assert.True(t, mr.Exists("agenda:rl:s1"))

	wait, err = l.Check(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, wait)

	mr.FastForward(4 * time.Minute)
	wait, err = l.Check(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 6*time.Minute, wait)

	mr.FastForward(6 * time.Minute)
	wait, err = l.Check(ctx, "s1")
	require.NoError(t, err)
	assert.Zero(t, wait)
	assert.False(t, mr.Exists("agenda:rl:s1"))
}

func TestRedisRateLimiter_Unavailable(t *testing.T) {
	ctx := context.Background()
	l, mr := newRedisLimiter(t, DefaultRateLimitConfig())
	mr.Close()

	_, err := l.Check(ctx, "s1")
	assert.Error(t, err)
	assert.Error(t, l.Record(ctx, "s1"))
}

func TestService_RateLimiterFailsOpen(t *testing.T) {
	ctx := context.Background()
	policy := availability.DefaultPolicy()
	svc := newTestService(seedStore(t, policy), policy, "")
	l, mr := newRedisLimiter(t, DefaultRateLimitConfig())
	mr.Close()
	svc.UseRateLimiter(l)

	_, err := svc.ValidateAndCreateBooking(ctx, validRequest("09:00"))
	assert.NoError(t, err)
}
