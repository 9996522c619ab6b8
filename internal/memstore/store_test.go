package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agendafacil/internal/model"
)

var jan10 = time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

func newBooking(id, prof, service, at string, status model.Status) *model.Booking {
	return &model.Booking{
		ID:             id,
		BusinessID:     "biz",
		ProfessionalID: prof,
		ServiceID:      service,
		Date:           jan10,
		Time:           model.MustParseTimeOfDay(at),
		Status:         status,
	}
}

func TestInsertBooking_UniqueSlot(t *testing.T) {
	ctx := context.Background()
	s := New([]model.Status{model.StatusPending, model.StatusConfirmed})

	require.NoError(t, s.InsertBooking(ctx, newBooking("b1", "", "cut", "10:00", model.StatusConfirmed)))
	assert.ErrorIs(t, s.InsertBooking(ctx, newBooking("b2", "", "cut", "10:00", model.StatusPending)), model.ErrSlotConflict)
	// different service, professional-less: separate scope
	assert.NoError(t, s.InsertBooking(ctx, newBooking("b3", "", "beard", "10:00", model.StatusConfirmed)))
	// professional scope is independent of the service scope
	assert.NoError(t, s.InsertBooking(ctx, newBooking("b4", "ana", "cut", "10:00", model.StatusConfirmed)))
	assert.ErrorIs(t, s.InsertBooking(ctx, newBooking("b5", "ana", "beard", "10:00", model.StatusConfirmed)), model.ErrSlotConflict)
	// cancelled rows never hold the slot
	assert.NoError(t, s.InsertBooking(ctx, newBooking("b6", "ana", "beard", "10:00", model.StatusCancelled)))
}

func TestUpdateBookingStatus(t *testing.T) {
	ctx := context.Background()
	s := New([]model.Status{model.StatusConfirmed})

	require.NoError(t, s.InsertBooking(ctx, newBooking("b1", "", "cut", "10:00", model.StatusPending)))
	require.NoError(t, s.InsertBooking(ctx, newBooking("b2", "", "cut", "10:00", model.StatusPending)))

	require.NoError(t, s.UpdateBookingStatus(ctx, "b1", model.StatusPending, model.StatusConfirmed))
	assert.ErrorIs(t, s.UpdateBookingStatus(ctx, "b2", model.StatusPending, model.StatusConfirmed), model.ErrSlotConflict)
	assert.ErrorIs(t, s.UpdateBookingStatus(ctx, "b1", model.StatusPending, model.StatusCancelled), model.ErrConcurrentModification)
	assert.ErrorIs(t, s.UpdateBookingStatus(ctx, "missing", model.StatusPending, model.StatusCancelled), model.ErrNotFound)

	b, err := s.GetBooking(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, b.Status)
}

func TestBlocksAndCounts(t *testing.T) {
	ctx := context.Background()
	s := New([]model.Status{model.StatusConfirmed})

	blk := &model.Block{ID: "k1", BusinessID: "biz", Date: jan10, Start: model.MustParseTimeOfDay("12:00"), End: model.MustParseTimeOfDay("13:00")}
	require.NoError(t, s.CreateBlock(ctx, blk))
	assert.Error(t, s.CreateBlock(ctx, blk))

	blocks, err := s.GetBlocks(ctx, "biz", jan10)
	require.NoError(t, err)
	assert.Len(t, blocks, 1)

	blocks, err = s.GetBlocks(ctx, "other", jan10)
	require.NoError(t, err)
	assert.Empty(t, blocks)

	assert.ErrorIs(t, s.DeleteBlock(ctx, "other", "k1"), model.ErrNotFound)
	require.NoError(t, s.DeleteBlock(ctx, "biz", "k1"))

	require.NoError(t, s.InsertBooking(ctx, newBooking("b1", "", "cut", "10:00", model.StatusConfirmed)))
	require.NoError(t, s.InsertBooking(ctx, newBooking("b2", "", "cut", "11:00", model.StatusCancelled)))
	counts, err := s.CountBookingsByDate(ctx, "biz", jan10, jan10.AddDate(0, 0, 30))
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"2025-01-10": 1}, counts)
}

func TestWorkingHours(t *testing.T) {
	ctx := context.Background()
	s := New(nil)

	_, err := s.GetWorkingHours(ctx, "biz")
	assert.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, s.UpsertBusiness(ctx, &model.Business{ID: "biz", Name: "Biz"}))
	raw, err := s.GetWorkingHours(ctx, "biz")
	require.NoError(t, err)
	assert.Nil(t, raw)

	wh := model.WorkingHours{time.Friday: {Active: true, Shifts: []model.Shift{{Start: model.NewTimeOfDay(9, 0), End: model.NewTimeOfDay(12, 0)}}}}
	require.NoError(t, s.SaveWorkingHours(ctx, "biz", wh))
	raw, err = s.GetWorkingHours(ctx, "biz")
	require.NoError(t, err)
	assert.Equal(t, []model.RawShift{{Start: "09:00", End: "12:00"}}, raw["sexta"].Shifts)
}
