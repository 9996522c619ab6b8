package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"agendafacil/internal/booking"
	"agendafacil/internal/manager"
	"agendafacil/internal/model"
)

type errorResponse struct {
	Error             string `json:"error"`
	Message           string `json:"message"`
	Field             string `json:"field,omitempty"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// writeError maps domain errors onto HTTP responses. Unexpected errors are
// logged and reported without detail.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_input", Message: ve.Reason, Field: ve.Field})
	case isRateLimited(err):
		wait, _ := booking.IsRateLimited(err)
		secs := int(math.Ceil(wait.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate_limited", Message: err.Error(), RetryAfterSeconds: secs})
	case errors.Is(err, booking.ErrSlotTaken), errors.Is(err, model.ErrSlotConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "slot_taken", Message: "this time was just taken, please pick another one"})
	case errors.Is(err, booking.ErrOutsideBusinessHours):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "outside_business_hours", Message: err.Error()})
	case errors.Is(err, manager.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "invalid_transition", Message: err.Error()})
	case errors.Is(err, model.ErrConcurrentModification):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "concurrent_modification", Message: "booking changed meanwhile, reload and retry"})
	case errors.Is(err, model.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found", Message: "resource not found"})
	case errors.Is(err, booking.ErrStoreUnavailable):
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("store unavailable")
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "unavailable", Message: "service temporarily unavailable"})
	default:
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal", Message: "internal error"})
	}
}

func isRateLimited(err error) bool {
	_, ok := booking.IsRateLimited(err)
	return ok
}
