// Package export renders a business agenda as an XLSX workbook.
package export

import (
	"context"
	"fmt"
	"io"
	"time"

	"agendafacil/internal/model"
)

// Source provides the records of an agenda.
type Source interface {
	GetBusiness(ctx context.Context, id string) (*model.Business, error)
	ListBookings(ctx context.Context, businessID string, from, to time.Time) ([]model.Booking, error)
	ListBlocks(ctx context.Context, businessID string, from, to time.Time) ([]model.Block, error)
}

const (
	bookingsSheet = "Agendamentos"
	blocksSheet   = "Bloqueios"
	summarySheet  = "Resumo"
)

var (
	bookingColumns = []string{"Data", "Hora", "Cliente", "Telefone", "Email", "Serviço", "Profissional", "Status"}
	blockColumns   = []string{"Data", "Início", "Fim", "Descrição"}
	summaryColumns = []string{"Status", "Quantidade"}
)

var statusLabels = map[model.Status]string{
	model.StatusPending:     "Pendente",
	model.StatusConfirmed:   "Confirmado",
	model.StatusCancelled:   "Cancelado",
	model.StatusRescheduled: "Reagendado",
}

// Agenda writes bookings and blocks of [from, to] to w.
func Agenda(ctx context.Context, src Source, businessID string, from, to time.Time, w io.Writer) error {
	if _, err := src.GetBusiness(ctx, businessID); err != nil {
		return fmt.Errorf("get business: %w", err)
	}
	bookings, err := src.ListBookings(ctx, businessID, from, to)
	if err != nil {
		return fmt.Errorf("list bookings: %w", err)
	}
	blocks, err := src.ListBlocks(ctx, businessID, from, to)
	if err != nil {
		return fmt.Errorf("list blocks: %w", err)
	}

	sw := newSheetWriter()
	defer sw.Close()

	if err := writeBookings(sw, bookings); err != nil {
		return err
	}
	if err := writeBlocks(sw, blocks); err != nil {
		return err
	}
	if err := writeSummary(sw, bookings); err != nil {
		return err
	}
	return sw.Save(w)
}

func writeBookings(sw *sheetWriter, bookings []model.Booking) error {
	if err := sw.AddSheet(bookingsSheet); err != nil {
		return err
	}
	if err := sw.WriteHeader(bookingColumns); err != nil {
		return err
	}
	for i := range bookings {
		b := &bookings[i]
		row := []any{
			model.FormatDate(b.Date), b.Time.String(), b.ClientName, b.ClientPhone,
			b.ClientEmail, b.ServiceID, b.ProfessionalID, statusLabel(b.Status),
		}
		if err := sw.WriteRow(row); err != nil {
			return fmt.Errorf("write booking %s: %w", b.ID, err)
		}
	}
	return nil
}

func writeBlocks(sw *sheetWriter, blocks []model.Block) error {
	if err := sw.AddSheet(blocksSheet); err != nil {
		return err
	}
	if err := sw.WriteHeader(blockColumns); err != nil {
		return err
	}
	for i := range blocks {
		b := &blocks[i]
		if err := sw.WriteRow([]any{model.FormatDate(b.Date), b.Start.String(), b.End.String(), b.Description}); err != nil {
			return fmt.Errorf("write block %s: %w", b.ID, err)
		}
	}
	return nil
}

func writeSummary(sw *sheetWriter, bookings []model.Booking) error {
	if err := sw.AddSheet(summarySheet); err != nil {
		return err
	}
	if err := sw.WriteHeader(summaryColumns); err != nil {
		return err
	}
	counts := make(map[model.Status]int)
	for i := range bookings {
		counts[bookings[i].Status]++
	}
	for _, st := range []model.Status{model.StatusPending, model.StatusConfirmed, model.StatusCancelled, model.StatusRescheduled} {
		if err := sw.WriteRow([]any{statusLabel(st), counts[st]}); err != nil {
			return err
		}
	}
	return sw.WriteRow([]any{"Total", len(bookings)})
}

func statusLabel(s model.Status) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}
