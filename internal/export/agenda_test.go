package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"agendafacil/internal/memstore"
	"agendafacil/internal/model"
)

func TestAgenda(t *testing.T) {
	ctx := context.Background()
	jan10 := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	store := memstore.New([]model.Status{model.StatusPending, model.StatusConfirmed})
	require.NoError(t, store.UpsertBusiness(ctx, &model.Business{ID: "biz", Name: "Studio Zen"}))
	require.NoError(t, store.InsertBooking(ctx, &model.Booking{
		ID: "b1", BusinessID: "biz", ServiceID: "massage", Date: jan10, Time: model.NewTimeOfDay(9, 30),
		ClientName: "Ana Souza", ClientPhone: "(11) 98765-4321", Status: model.StatusConfirmed,
	}))
	require.NoError(t, store.InsertBooking(ctx, &model.Booking{
		ID: "b2", BusinessID: "biz", ServiceID: "massage", Date: jan10, Time: model.NewTimeOfDay(11, 0),
		ClientName: "Bruno Lima", ClientPhone: "11987654321", Status: model.StatusCancelled,
	}))
	require.NoError(t, store.CreateBlock(ctx, &model.Block{
		ID: "k1", BusinessID: "biz", Date: jan10, Start: model.NewTimeOfDay(12, 0), End: model.NewTimeOfDay(13, 0), Description: "Almoço",
	}))

	var buf bytes.Buffer
	require.NoError(t, Agenda(ctx, store, "biz", jan10, jan10.AddDate(0, 0, 6), &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{bookingsSheet, blocksSheet, summarySheet}, f.GetSheetList())

	rows, err := f.GetRows(bookingsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, bookingColumns, rows[0])
	assert.Equal(t, []string{"2025-01-10", "09:30", "Ana Souza", "(11) 98765-4321", "", "massage", "", "Confirmado"}, rows[1])
	assert.Equal(t, "Cancelado", rows[2][7])

	rows, err = f.GetRows(blocksSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"2025-01-10", "12:00", "13:00", "Almoço"}, rows[1])

	total, err := f.GetCellValue(summarySheet, "B6")
	require.NoError(t, err)
	assert.Equal(t, "2", total)
}

func TestAgenda_UnknownBusiness(t *testing.T) {
	store := memstore.New(nil)
	var buf bytes.Buffer
	err := Agenda(context.Background(), store, "ghost", time.Now(), time.Now(), &buf)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Zero(t, buf.Len())
}
