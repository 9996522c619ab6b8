package config

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agendafacil/internal/model"
)

const sampleBusinesses = `
businesses:
  - id: barbearia-centro
    name: Barbearia Centro
    slug: barbearia-centro
    kind: barbearia
    working_hours:
      segunda:
        active: true
        shifts:
          - {start: "08:00", end: "12:00"}
          - {start: "14:00", end: "18:00"}
      sabado:
        active: true
        shifts: [{start: "09:00", end: "13:00"}]
      domingo:
        active: false
    services:
      - {id: corte, name: Corte, duration_minutes: 30, price: 40, active: true}
    professionals:
      - {id: joao, name: João, specialty: cortes, active: true}
holidays:
  - {date: "2026-12-25", name: Natal}
`

func TestParseBusinessesConfig(t *testing.T) {
	cfg, err := ParseBusinessesConfig([]byte(sampleBusinesses))
	require.NoError(t, err)
	require.Len(t, cfg.Businesses, 1)

	b := cfg.GetBusinessByID("barbearia-centro")
	require.NotNil(t, b)

	biz := b.Business()
	assert.Equal(t, "Barbearia Centro", biz.Name)
	assert.Len(t, biz.WorkingHours[time.Monday].Shifts, 2)
	assert.True(t, biz.WorkingHours[time.Saturday].Active)
	assert.False(t, biz.WorkingHours[time.Sunday].Active)
	assert.False(t, biz.WorkingHours[time.Wednesday].Active)

	services := b.ServiceModels()
	require.Len(t, services, 1)
	assert.Equal(t, 30*time.Minute, services[0].Duration())
	assert.Equal(t, "barbearia-centro", services[0].BusinessID)

	profs := b.ProfessionalModels()
	require.Len(t, profs, 1)
	assert.Equal(t, "João", profs[0].Name)

	holidays := cfg.HolidayDates()
	assert.Equal(t, "Natal", holidays[time.Date(2026, 12, 25, 0, 0, 0, 0, time.UTC)])
	assert.Contains(t, cfg.String(), "1 businesses")
}

func TestBusinessesConfig_Validate(t *testing.T) {
	valid := func() BusinessesConfig {
		return BusinessesConfig{Businesses: []BusinessConfig{{
			ID:   "b1",
			Name: "Salão Bela",
			WorkingHours: model.RawWorkingHours{
				"segunda": {Active: true, Shifts: []model.RawShift{{Start: "09:00", End: "17:00"}}},
			},
			Services: []ServiceConfig{{ID: "s1", Name: "Manicure", DurationMinutes: 60}},
		}}}
	}

	tests := []struct {
		name   string
		mutate func(*BusinessesConfig)
	}{
		{"no businesses", func(c *BusinessesConfig) { c.Businesses = nil }},
		{"missing id", func(c *BusinessesConfig) { c.Businesses[0].ID = "" }},
		{"duplicate id", func(c *BusinessesConfig) { c.Businesses = append(c.Businesses, c.Businesses[0]) }},
		{"bad name", func(c *BusinessesConfig) { c.Businesses[0].Name = "x" }},
		{"legacy shape rejected", func(c *BusinessesConfig) {
			c.Businesses[0].WorkingHours["terca"] = model.RawDaySchedule{Active: true, Start: "08:00", End: "18:00"}
		}},
		{"unknown day", func(c *BusinessesConfig) {
			c.Businesses[0].WorkingHours["funday"] = model.RawDaySchedule{Active: false}
		}},
		{"bad shift time", func(c *BusinessesConfig) {
			c.Businesses[0].WorkingHours["segunda"] = model.RawDaySchedule{Active: true, Shifts: []model.RawShift{{Start: "9h", End: "17:00"}}}
		}},
		{"reversed shift", func(c *BusinessesConfig) {
			c.Businesses[0].WorkingHours["segunda"] = model.RawDaySchedule{Active: true, Shifts: []model.RawShift{{Start: "17:00", End: "09:00"}}}
		}},
		{"zero duration", func(c *BusinessesConfig) { c.Businesses[0].Services[0].DurationMinutes = 0 }},
		{"bad holiday", func(c *BusinessesConfig) { c.Holidays = []HolidayConfig{{Date: "25/12/2026"}} }},
	}

	base := valid()
	require.NoError(t, base.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestWatchBusinesses(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "businesses.yaml", sampleBusinesses)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu    sync.Mutex
		names []string
	)
	err := WatchBusinesses(ctx, path, 10*time.Millisecond, zerolog.Nop(), func(_ context.Context, cfg *BusinessesConfig) error {
		mu.Lock()
		defer mu.Unlock()
		names = append(names, cfg.Businesses[0].Name)
		return nil
	})
	require.NoError(t, err)

	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	assert.Len(t, names, 1, "touching the file without editing it must not re-apply")
	mu.Unlock()

	updated := strings.Replace(sampleBusinesses, "name: Barbearia Centro", "name: Barbearia Nova", 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(names) == 2 && names[1] == "Barbearia Nova"
	}, time.Second, 10*time.Millisecond)
}

func TestWatchBusinesses_InitialApplyError(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "businesses.yaml", sampleBusinesses)

	boom := errors.New("store down")
	err := WatchBusinesses(context.Background(), path, time.Hour, zerolog.Nop(), func(context.Context, *BusinessesConfig) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestWatchBusinesses_RetriesFailedApply(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "businesses.yaml", sampleBusinesses)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu      sync.Mutex
		calls   int
		applied []string
	)
	err := WatchBusinesses(ctx, path, 10*time.Millisecond, zerolog.Nop(), func(_ context.Context, cfg *BusinessesConfig) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		// the first reload attempt fails, the next tick must try again
		if calls == 2 {
			return errors.New("store down")
		}
		applied = append(applied, cfg.Businesses[0].Name)
		return nil
	})
	require.NoError(t, err)

	updated := strings.Replace(sampleBusinesses, "name: Barbearia Centro", "name: Barbearia Nova", 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 3 && len(applied) == 2 && applied[1] == "Barbearia Nova"
	}, time.Second, 10*time.Millisecond)
}
