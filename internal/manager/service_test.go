package manager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agendafacil/internal/config"
	"agendafacil/internal/events"
	"agendafacil/internal/memstore"
	"agendafacil/internal/model"
)

var jan10 = time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

func tod(s string) model.TimeOfDay { return model.MustParseTimeOfDay(s) }

type spyCache struct {
	invalidated []string
	err         error
}

func (c *spyCache) Invalidate(_ context.Context, businessID string) error {
	c.invalidated = append(c.invalidated, businessID)
	return c.err
}

func setup(t *testing.T) (*Service, *memstore.Store, *spyCache, *[]events.Event) {
	t.Helper()
	ctx := context.Background()
	store := memstore.New([]model.Status{model.StatusPending, model.StatusConfirmed})
	require.NoError(t, store.UpsertBusiness(ctx, &model.Business{ID: "biz", Name: "Studio Zen"}))

	svc := NewService(store, zerolog.Nop())
	cache := &spyCache{}
	svc.UseHoursCache(cache)

	bus := events.NewEventBus()
	var got []events.Event
	for _, typ := range []string{events.BookingStatusChanged, events.BlockChanged, events.WorkingHoursChanged} {
		bus.Subscribe(typ, func(e events.Event) error {
			got = append(got, e)
			return nil
		})
	}
	svc.UseEvents(bus)
	return svc, store, cache, &got
}

func insert(t *testing.T, store *memstore.Store, id, businessID string, at model.TimeOfDay, status model.Status) {
	t.Helper()
	require.NoError(t, store.InsertBooking(context.Background(), &model.Booking{
		ID: id, BusinessID: businessID, ServiceID: "massage", Date: jan10, Time: at,
		ClientName: "Ana", ClientPhone: "11987654321", Status: status,
	}))
}

func TestStatusChanges(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		initial model.Status
		apply   func(s *Service, id string) (*model.Booking, error)
		want    model.Status
		wantErr error
	}{
		{"confirm pending", model.StatusPending, func(s *Service, id string) (*model.Booking, error) { return s.ConfirmBooking(ctx, "biz", id) }, model.StatusConfirmed, nil},
		{"cancel pending", model.StatusPending, func(s *Service, id string) (*model.Booking, error) { return s.CancelBooking(ctx, "biz", id) }, model.StatusCancelled, nil},
		{"cancel confirmed", model.StatusConfirmed, func(s *Service, id string) (*model.Booking, error) { return s.CancelBooking(ctx, "biz", id) }, model.StatusCancelled, nil},
		{"reschedule confirmed", model.StatusConfirmed, func(s *Service, id string) (*model.Booking, error) { return s.RescheduleBooking(ctx, "biz", id) }, model.StatusRescheduled, nil},
		{"reschedule pending", model.StatusPending, func(s *Service, id string) (*model.Booking, error) { return s.RescheduleBooking(ctx, "biz", id) }, model.StatusPending, ErrInvalidTransition},
		{"confirm cancelled", model.StatusCancelled, func(s *Service, id string) (*model.Booking, error) { return s.ConfirmBooking(ctx, "biz", id) }, model.StatusCancelled, ErrInvalidTransition},
		{"cancel rescheduled", model.StatusRescheduled, func(s *Service, id string) (*model.Booking, error) { return s.CancelBooking(ctx, "biz", id) }, model.StatusRescheduled, ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, _, published := setup(t)
			insert(t, store, "b1", "biz", tod("10:00"), tt.initial)

			b, err := tt.apply(svc, "b1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, *published)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, b.Status)
				require.Len(t, *published, 1)
				assert.Equal(t, events.BookingStatusChanged, (*published)[0].Type)
			}

			stored, err := store.GetBooking(ctx, "b1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, stored.Status)
		})
	}
}

func TestStatusChanges_Scope(t *testing.T) {
	ctx := context.Background()
	svc, store, _, _ := setup(t)
	insert(t, store, "other", "another-biz", tod("10:00"), model.StatusPending)

	_, err := svc.ConfirmBooking(ctx, "biz", "other")
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = svc.CancelBooking(ctx, "biz", "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestConfirmBooking_SlotTakenMeanwhile(t *testing.T) {
	ctx := context.Background()
	store := memstore.New([]model.Status{model.StatusConfirmed})
	require.NoError(t, store.UpsertBusiness(ctx, &model.Business{ID: "biz", Name: "Studio Zen"}))
	svc := NewService(store, zerolog.Nop())

	insert(t, store, "b1", "biz", tod("10:00"), model.StatusPending)
	insert(t, store, "b2", "biz", tod("10:00"), model.StatusPending)

	_, err := svc.ConfirmBooking(ctx, "biz", "b1")
	require.NoError(t, err)
	_, err = svc.ConfirmBooking(ctx, "biz", "b2")
	assert.ErrorIs(t, err, model.ErrSlotConflict)
}

func TestBlocks(t *testing.T) {
	ctx := context.Background()
	svc, _, _, published := setup(t)
	svc.SetClock(func() time.Time { return jan10 })

	b := &model.Block{BusinessID: "biz", Date: jan10.Add(15 * time.Hour), Start: tod("12:00"), End: tod("13:00"), Description: "almoço"}
	require.NoError(t, svc.CreateBlock(ctx, b))
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, jan10, b.Date)

	err := svc.CreateBlock(ctx, &model.Block{BusinessID: "biz", Date: jan10, Start: tod("13:00"), End: tod("12:00")})
	assert.True(t, model.IsValidation(err))
	err = svc.CreateBlock(ctx, &model.Block{BusinessID: "ghost", Date: jan10, Start: tod("12:00"), End: tod("13:00")})
	assert.ErrorIs(t, err, model.ErrNotFound)

	blocks, err := svc.ListBlocks(ctx, "biz", jan10)
	require.NoError(t, err)
	require.Len(t, blocks, 1)

	b.End = tod("14:00")
	require.NoError(t, svc.UpdateBlock(ctx, b))
	blocks, err = svc.ListBlocks(ctx, "biz", jan10)
	require.NoError(t, err)
	assert.Equal(t, tod("14:00"), blocks[0].End)

	require.NoError(t, svc.DeleteBlock(ctx, "biz", b.ID))
	assert.ErrorIs(t, svc.DeleteBlock(ctx, "biz", b.ID), model.ErrNotFound)

	require.Len(t, *published, 3)
	var payload map[string]string
	require.NoError(t, (*published)[2].Decode(&payload))
	assert.Equal(t, "deleted", payload["action"])
}

func TestSetWorkingHours(t *testing.T) {
	ctx := context.Background()
	svc, store, cache, published := setup(t)

	wh := model.WorkingHours{time.Monday: {Active: true, Shifts: []model.Shift{
		{Start: tod("08:00"), End: tod("12:00")},
		{Start: tod("13:00"), End: tod("17:00")},
	}}}
	require.NoError(t, svc.SetWorkingHours(ctx, "biz", wh))
	assert.Equal(t, []string{"biz"}, cache.invalidated)
	require.Len(t, *published, 1)

	raw, err := store.GetWorkingHours(ctx, "biz")
	require.NoError(t, err)
	assert.Len(t, raw["segunda"].Shifts, 2)

	overlapping := model.WorkingHours{time.Monday: {Active: true, Shifts: []model.Shift{
		{Start: tod("08:00"), End: tod("12:00")},
		{Start: tod("11:00"), End: tod("17:00")},
	}}}
	assert.True(t, model.IsValidation(svc.SetWorkingHours(ctx, "biz", overlapping)))
	assert.ErrorIs(t, svc.SetWorkingHours(ctx, "ghost", wh), model.ErrNotFound)

	// cache failures are logged, not returned
	cache.err = errors.New("redis down")
	assert.NoError(t, svc.SetWorkingHours(ctx, "biz", wh))
}

func TestListBookingsAndDailyCounts(t *testing.T) {
	ctx := context.Background()
	svc, store, _, _ := setup(t)
	insert(t, store, "b1", "biz", tod("10:00"), model.StatusConfirmed)
	insert(t, store, "b2", "biz", tod("11:00"), model.StatusCancelled)
	insert(t, store, "b3", "biz", tod("12:00"), model.StatusPending)

	list, err := svc.ListBookings(ctx, "biz", jan10, jan10)
	require.NoError(t, err)
	assert.Len(t, list, 3)

	_, err = svc.ListBookings(ctx, "biz", jan10, jan10.AddDate(0, 0, -1))
	assert.True(t, model.IsValidation(err))
	_, err = svc.ListBookings(ctx, "biz", jan10, jan10.AddDate(1, 0, 0))
	assert.True(t, model.IsValidation(err))

	counts, err := svc.DailyCounts(ctx, "biz", time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"2025-01-10": 2}, counts)

	counts, err = svc.DailyCounts(ctx, "biz", time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestSyncFromConfig(t *testing.T) {
	ctx := context.Background()
	svc, store, cache, _ := setup(t)

	cfg, err := config.ParseBusinessesConfig([]byte(`
businesses:
  - id: biz
    name: Studio Zen
    working_hours:
      segunda:
        active: true
        shifts:
          - {start: "09:00", end: "12:00"}
    services:
      - {id: massage, name: Massagem, duration_minutes: 60, price: 120, active: true}
    professionals:
      - {id: ana, name: Ana, active: true}
  - id: barber
    name: Barbearia Centro
    working_hours:
      sabado:
        active: true
        shifts:
          - {start: "08:00", end: "12:00"}
    services:
      - {id: cut, name: Corte, duration_minutes: 30, active: true}
holidays:
  - {date: "2025-12-25", name: Natal}
`))
	require.NoError(t, err)

	require.NoError(t, svc.SyncFromConfig(ctx, cfg))
	// running twice is idempotent
	require.NoError(t, svc.SyncFromConfig(ctx, cfg))

	s, err := store.GetService(ctx, "biz", "massage")
	require.NoError(t, err)
	assert.Equal(t, 60, s.DurationMinutes)
	_, err = store.GetProfessional(ctx, "biz", "ana")
	require.NoError(t, err)

	raw, err := store.GetWorkingHours(ctx, "barber")
	require.NoError(t, err)
	assert.True(t, raw["sabado"].Active)

	xmas := time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC)
	for _, id := range []string{"biz", "barber"} {
		blocks, err := store.ListBlocks(ctx, id, xmas, xmas)
		require.NoError(t, err)
		require.Len(t, blocks, 1, id)
		assert.Equal(t, "Natal", blocks[0].Description)
		assert.Equal(t, tod("00:00"), blocks[0].Start)
	}
	assert.ElementsMatch(t, []string{"biz", "barber", "biz", "barber"}, cache.invalidated)

	assert.Error(t, svc.SyncFromConfig(ctx, nil))
}
