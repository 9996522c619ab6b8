package booking

import (
	"context"
	"sync"
	"time"
)

// RateLimitConfig bounds how many bookings one session may create.
type RateLimitConfig struct {
	// MaxBookings is the number of bookings allowed inside Window.
	MaxBookings int
	// Window restarts once this long has passed since the last booking.
	Window time.Duration
}

// DefaultRateLimitConfig allows 3 bookings per 10 minutes.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{MaxBookings: 3, Window: 10 * time.Minute}
}

func (c RateLimitConfig) withDefaults() RateLimitConfig {
	d := DefaultRateLimitConfig()
	if c.MaxBookings <= 0 {
		c.MaxBookings = d.MaxBookings
	}
	if c.Window <= 0 {
		c.Window = d.Window
	}
	return c
}

// RateLimiter gates booking submissions per client session.
type RateLimiter interface {
	// Check returns a positive wait when the session is over its quota.
	Check(ctx context.Context, sessionID string) (time.Duration, error)
	// Record counts one successful booking for the session.
	Record(ctx context.Context, sessionID string) error
}

type sessionCounter struct {
	count int
	last  time.Time
}

// MemoryRateLimiter keeps per-session counters in process memory.
type MemoryRateLimiter struct {
	config   RateLimitConfig
	sessions map[string]*sessionCounter
	now      func() time.Time
	mu       sync.Mutex
}

// maxTrackedSessions triggers a sweep of expired counters.
const maxTrackedSessions = 10000

// NewMemoryRateLimiter creates an in-memory limiter.
func NewMemoryRateLimiter(config RateLimitConfig) *MemoryRateLimiter {
	return &MemoryRateLimiter{
		config:   config.withDefaults(),
		sessions: make(map[string]*sessionCounter),
		now:      time.Now,
	}
}

// SetClock replaces the time source.
func (l *MemoryRateLimiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

func (l *MemoryRateLimiter) Check(_ context.Context, sessionID string) (time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.sessions[sessionID]
	if !ok {
		return 0, nil
	}
	elapsed := l.now().Sub(s.last)
	if elapsed >= l.config.Window {
		delete(l.sessions, sessionID)
		return 0, nil
	}
	if s.count >= l.config.MaxBookings {
		return l.config.Window - elapsed, nil
	}
	return 0, nil
}

func (l *MemoryRateLimiter) Record(_ context.Context, sessionID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	s, ok := l.sessions[sessionID]
	if !ok || now.Sub(s.last) >= l.config.Window {
		if len(l.sessions) >= maxTrackedSessions {
			l.sweep(now)
		}
		s = &sessionCounter{}
		l.sessions[sessionID] = s
	}
	s.count++
	s.last = now
	return nil
}

func (l *MemoryRateLimiter) sweep(now time.Time) {
	for id, s := range l.sessions {
		if now.Sub(s.last) >= l.config.Window {
			delete(l.sessions, id)
		}
	}
}
