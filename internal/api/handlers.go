package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"agendafacil/internal/booking"
	"agendafacil/internal/export"
	"agendafacil/internal/manager"
	"agendafacil/internal/model"
	"agendafacil/internal/slots"
)

const maxBodyBytes = 64 << 10

type slotsResponse struct {
	BusinessID     string           `json:"business_id"`
	Date           string           `json:"date"`
	ServiceID      string           `json:"service_id,omitempty"`
	ProfessionalID string           `json:"professional_id,omitempty"`
	Slots          []slots.SlotInfo `json:"slots"`
	Available      []string         `json:"available"`
}

type bookingResponse struct {
	ID             string    `json:"id"`
	BusinessID     string    `json:"business_id"`
	ServiceID      string    `json:"service_id"`
	ProfessionalID string    `json:"professional_id,omitempty"`
	Date           string    `json:"date"`
	Time           string    `json:"time"`
	ClientName     string    `json:"client_name"`
	ClientPhone    string    `json:"client_phone"`
	ClientEmail    string    `json:"client_email,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toBookingResponse(b *model.Booking) bookingResponse {
	return bookingResponse{
		ID:             b.ID,
		BusinessID:     b.BusinessID,
		ServiceID:      b.ServiceID,
		ProfessionalID: b.ProfessionalID,
		Date:           model.FormatDate(b.Date),
		Time:           b.Time.String(),
		ClientName:     b.ClientName,
		ClientPhone:    b.ClientPhone,
		ClientEmail:    b.ClientEmail,
		Status:         string(b.Status),
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
}

type blockRequest struct {
	Date        string `json:"date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Description string `json:"description"`
}

type blockResponse struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Description string `json:"description,omitempty"`
}

func toBlockResponse(b *model.Block) blockResponse {
	return blockResponse{
		ID:          b.ID,
		Date:        model.FormatDate(b.Date),
		StartTime:   b.Start.String(),
		EndTime:     b.End.String(),
		Description: b.Description,
	}
}

func (req blockRequest) block(businessID, id string) (*model.Block, error) {
	date, err := parseDateParam("date", req.Date)
	if err != nil {
		return nil, err
	}
	start, err := model.ParseTimeOfDay(req.StartTime)
	if err != nil {
		return nil, model.NewValidationError("start_time", "must be HH:MM")
	}
	end, err := model.ParseTimeOfDay(req.EndTime)
	if err != nil {
		return nil, model.NewValidationError("end_time", "must be HH:MM")
	}
	return &model.Block{
		ID:          id,
		BusinessID:  businessID,
		Date:        date,
		Start:       start,
		End:         end,
		Description: req.Description,
	}, nil
}

// ListSlots handles GET /api/businesses/{businessID}/slots.
func (h *Handler) ListSlots(w http.ResponseWriter, r *http.Request) {
	businessID := chi.URLParam(r, "businessID")
	q := r.URL.Query()
	date, err := parseDateParam("date", q.Get("date"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	req := booking.SlotRequest{
		BusinessID:     businessID,
		Date:           date,
		ServiceID:      q.Get("service_id"),
		ProfessionalID: q.Get("professional_id"),
	}
	all, err := h.booking.ListSlots(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	available := []string{}
	for _, t := range slots.GetAvailableSlots(all) {
		available = append(available, t.String())
	}
	writeJSON(w, http.StatusOK, slotsResponse{
		BusinessID:     businessID,
		Date:           model.FormatDate(date),
		ServiceID:      req.ServiceID,
		ProfessionalID: req.ProfessionalID,
		Slots:          h.booking.Generator().ToSlotInfo(all),
		Available:      available,
	})
}

// CreateBooking handles POST /api/businesses/{businessID}/bookings. The
// X-Session-ID header keys the per-session quota; the client IP is used when
// it is missing.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req booking.BookingRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	req.BusinessID = chi.URLParam(r, "businessID")
	req.SessionID = r.Header.Get("X-Session-ID")
	if req.SessionID == "" {
		req.SessionID = "ip:" + clientIP(r)
	}

	b, err := h.booking.ValidateAndCreateBooking(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookingResponse(b))
}

// ListBookings handles GET .../bookings?from=&to=.
func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	list, err := h.manager.ListBookings(r.Context(), chi.URLParam(r, "businessID"), from, to)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]bookingResponse, 0, len(list))
	for i := range list {
		out = append(out, toBookingResponse(&list[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": out})
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.manager.GetBooking(r.Context(), chi.URLParam(r, "businessID"), chi.URLParam(r, "bookingID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

func (h *Handler) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.manager.ConfirmBooking)
}

func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.manager.CancelBooking)
}

func (h *Handler) RescheduleBooking(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.manager.RescheduleBooking)
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request, fn func(context.Context, string, string) (*model.Booking, error)) {
	b, err := fn(r.Context(), chi.URLParam(r, "businessID"), chi.URLParam(r, "bookingID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

// DailyCounts handles GET .../daily-counts?month=YYYY-MM.
func (h *Handler) DailyCounts(w http.ResponseWriter, r *http.Request) {
	month, err := time.Parse("2006-01", r.URL.Query().Get("month"))
	if err != nil {
		h.writeError(w, r, model.NewValidationError("month", "must be YYYY-MM"))
		return
	}
	counts, err := h.manager.DailyCounts(r.Context(), chi.URLParam(r, "businessID"), month)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"month": month.Format("2006-01"), "counts": counts})
}

// ListBlocks handles GET .../blocks?date=.
func (h *Handler) ListBlocks(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateParam("date", r.URL.Query().Get("date"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	blocks, err := h.manager.ListBlocks(r.Context(), chi.URLParam(r, "businessID"), date)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]blockResponse, 0, len(blocks))
	for i := range blocks {
		out = append(out, toBlockResponse(&blocks[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"blocks": out})
}

func (h *Handler) CreateBlock(w http.ResponseWriter, r *http.Request) {
	var req blockRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	b, err := req.block(chi.URLParam(r, "businessID"), "")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.manager.CreateBlock(r.Context(), b); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBlockResponse(b))
}

func (h *Handler) UpdateBlock(w http.ResponseWriter, r *http.Request) {
	var req blockRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	b, err := req.block(chi.URLParam(r, "businessID"), chi.URLParam(r, "blockID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.manager.UpdateBlock(r.Context(), b); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBlockResponse(b))
}

func (h *Handler) DeleteBlock(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.DeleteBlock(r.Context(), chi.URLParam(r, "businessID"), chi.URLParam(r, "blockID")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetWorkingHours returns the migrated schedule in the shift-list format.
func (h *Handler) GetWorkingHours(w http.ResponseWriter, r *http.Request) {
	wh, err := h.booking.WorkingHours(r.Context(), chi.URLParam(r, "businessID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wh)
}

// SetWorkingHours handles PUT .../working-hours. Only the shift-list format
// is accepted.
func (h *Handler) SetWorkingHours(w http.ResponseWriter, r *http.Request) {
	var raw model.RawWorkingHours
	if err := decodeBody(w, r, &raw); err != nil {
		h.writeError(w, r, err)
		return
	}
	wh, err := parseWorkingHours(raw)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.manager.SetWorkingHours(r.Context(), chi.URLParam(r, "businessID"), wh); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wh)
}

// ExportAgenda streams an XLSX workbook of .../export.xlsx?from=&to=.
func (h *Handler) ExportAgenda(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := manager.CheckRange(from, to); err != nil {
		h.writeError(w, r, err)
		return
	}
	businessID := chi.URLParam(r, "businessID")

	var buf bytes.Buffer
	if err := export.Agenda(r.Context(), h.export, businessID, from, to, &buf); err != nil {
		h.writeError(w, r, err)
		return
	}
	name := fmt.Sprintf("agenda_%s_%s_%s.xlsx", businessID, model.FormatDate(from), model.FormatDate(to))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func parseWorkingHours(raw model.RawWorkingHours) (model.WorkingHours, error) {
	for key, day := range raw {
		field := "working_hours." + key
		if _, ok := model.ParseWeekdayKey(key); !ok {
			return nil, model.NewValidationError(field, "unknown day")
		}
		if day.Active && day.Shifts == nil {
			return nil, model.NewValidationError(field, "active day must list shifts")
		}
		for _, s := range day.Shifts {
			if _, err := model.ParseTimeOfDay(s.Start); err != nil {
				return nil, model.NewValidationError(field, "shift start must be HH:MM")
			}
			if _, err := model.ParseTimeOfDay(s.End); err != nil {
				return nil, model.NewValidationError(field, "shift end must be HH:MM")
			}
		}
	}
	return model.MigrateLegacyFormat(raw), nil
}

func parseDateParam(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, model.NewValidationError(field, "is required")
	}
	d, err := model.ParseDate(value)
	if err != nil {
		return time.Time{}, model.NewValidationError(field, "must be YYYY-MM-DD")
	}
	return d, nil
}

func parseRange(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	from, err := parseDateParam("from", q.Get("from"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseDateParam("to", q.Get("to"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return model.NewValidationError("body", "malformed JSON")
	}
	return nil
}
