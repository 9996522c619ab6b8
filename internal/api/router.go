// Package api exposes the booking flow and the owner operations over HTTP.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"agendafacil/internal/booking"
	"agendafacil/internal/export"
	"agendafacil/internal/manager"
)

// Config holds router dependencies.
type Config struct {
	Booking *booking.Service
	Manager *manager.Service
	// Export reads the records rendered into agenda workbooks.
	Export         export.Source
	ManagerAPIKey  string
	RequestsPerSec float64
	Burst          int
	Logger         zerolog.Logger
}

// Handler serves the API routes.
type Handler struct {
	booking *booking.Service
	manager *manager.Service
	export  export.Source
	logger  zerolog.Logger
}

// New creates a chi router with every route configured.
func New(cfg Config) http.Handler {
	h := &Handler{
		booking: cfg.Booking,
		manager: cfg.Manager,
		export:  cfg.Export,
		logger:  cfg.Logger.With().Str("component", "api").Logger(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(NewThrottle(cfg.RequestsPerSec, cfg.Burst).Middleware)

	r.Route("/api/businesses/{businessID}", func(r chi.Router) {
		r.Get("/slots", h.ListSlots)
		r.Post("/bookings", h.CreateBooking)
	})

	r.Route("/api/manage/businesses/{businessID}", func(r chi.Router) {
		r.Use(RequireAPIKey(cfg.ManagerAPIKey))

		r.Get("/bookings", h.ListBookings)
		r.Get("/bookings/{bookingID}", h.GetBooking)
		r.Post("/bookings/{bookingID}/confirm", h.ConfirmBooking)
		r.Post("/bookings/{bookingID}/cancel", h.CancelBooking)
		r.Post("/bookings/{bookingID}/reschedule", h.RescheduleBooking)
		r.Get("/daily-counts", h.DailyCounts)

		r.Get("/blocks", h.ListBlocks)
		r.Post("/blocks", h.CreateBlock)
		r.Put("/blocks/{blockID}", h.UpdateBlock)
		r.Delete("/blocks/{blockID}", h.DeleteBlock)

		r.Get("/working-hours", h.GetWorkingHours)
		r.Put("/working-hours", h.SetWorkingHours)

		r.Get("/export.xlsx", h.ExportAgenda)
	})

	return r
}
