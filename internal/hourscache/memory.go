package hourscache

import (
	"context"
	"sync"
	"time"

	"agendafacil/internal/model"
)

type entry struct {
	hours   model.WorkingHours
	expires time.Time
}

// MemoryCache is the single-instance fallback used when Redis is disabled.
type MemoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]entry
	now     func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl, entries: make(map[string]entry), now: time.Now}
}

// SetClock replaces the time source.
func (c *MemoryCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *MemoryCache) Get(_ context.Context, businessID string) (model.WorkingHours, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[businessID]
	if !ok || !c.now().Before(e.expires) {
		return nil, false, nil
	}
	return clone(e.hours), true, nil
}

func (c *MemoryCache) Set(_ context.Context, businessID string, wh model.WorkingHours) error {
	if c.ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[businessID] = entry{hours: clone(wh), expires: c.now().Add(c.ttl)}
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, businessID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, businessID)
	return nil
}

func clone(wh model.WorkingHours) model.WorkingHours {
	out := make(model.WorkingHours, len(wh))
	for day, ds := range wh {
		out[day] = model.DaySchedule{Active: ds.Active, Shifts: append([]model.Shift{}, ds.Shifts...)}
	}
	return out
}
