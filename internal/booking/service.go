// Package booking lists bookable slots and validates client submissions.
package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"agendafacil/internal/availability"
	"agendafacil/internal/events"
	"agendafacil/internal/metrics"
	"agendafacil/internal/model"
	"agendafacil/internal/slots"
)

// Store is the record store as seen by the booking flow.
type Store interface {
	// GetWorkingHours returns the stored schedule, possibly in the legacy
	// shape, or nil when the business never configured one.
	GetWorkingHours(ctx context.Context, businessID string) (model.RawWorkingHours, error)
	GetBlocks(ctx context.Context, businessID string, date time.Time) ([]model.Block, error)
	// GetBookings returns the date's bookings, narrowed to one professional
	// when professionalID is set.
	GetBookings(ctx context.Context, businessID string, date time.Time, professionalID string) ([]model.Booking, error)
	GetService(ctx context.Context, businessID, serviceID string) (*model.Service, error)
	GetProfessional(ctx context.Context, businessID, professionalID string) (*model.Professional, error)
	// InsertBooking returns model.ErrSlotConflict when the unique slot index
	// rejects the row.
	InsertBooking(ctx context.Context, b *model.Booking) error
}

// HoursCache caches migrated working hours per business.
type HoursCache interface {
	Get(ctx context.Context, businessID string) (model.WorkingHours, bool, error)
	Set(ctx context.Context, businessID string, wh model.WorkingHours) error
	Invalidate(ctx context.Context, businessID string) error
}

// Publisher receives domain events.
type Publisher interface {
	PublishJSON(eventType, businessID string, payload any) error
}

// Config holds booking rules.
type Config struct {
	Policy availability.Policy
	// InitialStatus is assigned to new bookings.
	InitialStatus model.Status
	// Location is the business timezone used to hide past slots.
	Location *time.Location
}

// SlotRequest selects the date and scope of a slot listing.
type SlotRequest struct {
	BusinessID     string
	Date           time.Time
	ServiceID      string
	ProfessionalID string
}

// Service orchestrates slot generation and conflict checks.
type Service struct {
	store         Store
	cache         HoursCache
	limiter       RateLimiter
	events        Publisher
	generator     *slots.Generator
	policy        availability.Policy
	initialStatus model.Status
	location      *time.Location
	now           func() time.Time
	logger        zerolog.Logger
}

// NewService creates a booking service.
func NewService(store Store, cfg Config, logger zerolog.Logger) *Service {
	if cfg.InitialStatus == "" {
		cfg.InitialStatus = model.StatusConfirmed
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{
		store:         store,
		generator:     slots.NewGenerator(),
		policy:        cfg.Policy,
		initialStatus: cfg.InitialStatus,
		location:      cfg.Location,
		now:           time.Now,
		logger:        logger.With().Str("component", "booking").Logger(),
	}
}

// UseHoursCache enables working hours caching.
func (s *Service) UseHoursCache(c HoursCache) {
	s.cache = c
}

// UseRateLimiter enables the per-session submission gate.
func (s *Service) UseRateLimiter(l RateLimiter) {
	s.limiter = l
}

// UseEvents publishes booking events to p.
func (s *Service) UseEvents(p Publisher) {
	s.events = p
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Generator exposes the slot generator used by the service.
func (s *Service) Generator() *slots.Generator {
	return s.generator
}

// ListAvailableSlots returns the free slots for req. A closed or fully
// booked day yields an empty list, not an error.
func (s *Service) ListAvailableSlots(ctx context.Context, req SlotRequest) ([]model.TimeOfDay, error) {
	all, err := s.ListSlots(ctx, req)
	if err != nil {
		return nil, err
	}
	return slots.GetAvailableSlots(all), nil
}

// ListSlots returns every generated slot for req flagged with availability.
func (s *Service) ListSlots(ctx context.Context, req SlotRequest) ([]slots.Slot, error) {
	started := time.Now()
	defer metrics.ObserveSlotList(started)

	wh, err := s.WorkingHours(ctx, req.BusinessID)
	if err != nil {
		return nil, err
	}

	candidates := s.generator.Generate(wh, req.Date)
	if len(candidates) == 0 {
		return []slots.Slot{}, nil
	}

	q := availability.SlotQuery{
		Date:           req.Date,
		ServiceID:      req.ServiceID,
		ProfessionalID: req.ProfessionalID,
	}
	if req.ServiceID != "" {
		svc, err := s.lookupService(ctx, req.BusinessID, req.ServiceID)
		if err != nil {
			return nil, err
		}
		q.Duration = svc.Duration()
	}

	blocks, bookings, err := s.loadDay(ctx, req.BusinessID, req.Date, req.ProfessionalID)
	if err != nil {
		return nil, err
	}

	result := make([]slots.Slot, 0, len(candidates))
	for _, t := range candidates {
		q.Time = t
		result = append(result, slots.Slot{
			Time:      t,
			Available: !s.isPast(req.Date, t) && s.policy.IsAvailable(blocks, bookings, q),
		})
	}
	return result, nil
}

// ValidateAndCreateBooking runs the submission pipeline: rate limit, input
// validation, business hours, conflict re-check, insert.
func (s *Service) ValidateAndCreateBooking(ctx context.Context, req BookingRequest) (*model.Booking, error) {
	log := s.logger.With().Str("business_id", req.BusinessID).Str("session_id", req.SessionID).Logger()

	if s.limiter != nil {
		wait, err := s.limiter.Check(ctx, req.SessionID)
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("rate limiter unavailable, allowing submission")
		case wait > 0:
			return nil, s.reject("rate_limited", &RateLimitedError{RetryAfter: wait})
		}
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, s.reject("invalid_input", err)
	}
	date, at, err := req.parsed()
	if err != nil {
		return nil, s.reject("invalid_input", err)
	}

	svc, err := s.lookupService(ctx, req.BusinessID, req.ServiceID)
	if err != nil {
		return nil, s.reject(reasonOf(err), err)
	}
	if req.ProfessionalID != "" {
		if err := s.lookupProfessional(ctx, req.BusinessID, req.ProfessionalID); err != nil {
			return nil, s.reject(reasonOf(err), err)
		}
	}

	wh, err := s.WorkingHours(ctx, req.BusinessID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			err = model.NewValidationError("business_id", "unknown business")
		}
		return nil, s.reject(reasonOf(err), err)
	}
	if s.isPast(date, at) || !s.generator.Contains(wh, date, at) {
		return nil, s.reject("outside_business_hours", ErrOutsideBusinessHours)
	}

	blocks, bookings, err := s.loadDay(ctx, req.BusinessID, date, req.ProfessionalID)
	if err != nil {
		return nil, s.reject("store_unavailable", err)
	}
	q := availability.SlotQuery{
		Date:           date,
		Time:           at,
		ServiceID:      req.ServiceID,
		ProfessionalID: req.ProfessionalID,
		Duration:       svc.Duration(),
	}
	if !s.policy.IsAvailable(blocks, bookings, q) {
		return nil, s.reject("slot_taken", ErrSlotTaken)
	}

	now := s.now()
	b := &model.Booking{
		ID:             uuid.NewString(),
		BusinessID:     req.BusinessID,
		ProfessionalID: req.ProfessionalID,
		ServiceID:      req.ServiceID,
		Date:           date,
		Time:           at,
		ClientName:     req.ClientName,
		ClientPhone:    req.ClientPhone,
		ClientEmail:    req.ClientEmail,
		Status:         s.initialStatus,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.InsertBooking(ctx, b); err != nil {
		if errors.Is(err, model.ErrSlotConflict) {
			log.Info().Str("date", req.Date).Str("time", req.Time).Msg("slot taken at insert")
			return nil, s.reject("slot_taken", ErrSlotTaken)
		}
		return nil, s.reject("store_unavailable", storeError("insert booking", err))
	}

	if s.limiter != nil {
		if err := s.limiter.Record(ctx, req.SessionID); err != nil {
			log.Warn().Err(err).Msg("failed to record booking for rate limit")
		}
	}
	metrics.IncBookingCreated(string(b.Status))
	s.publish(b)

	log.Info().
		Str("booking_id", b.ID).
		Str("date", req.Date).
		Str("time", at.String()).
		Str("status", string(b.Status)).
		Msg("booking created")
	return b, nil
}

// WorkingHours returns the migrated schedule of a business, consulting the
// cache first. A business without a schedule is closed every day.
func (s *Service) WorkingHours(ctx context.Context, businessID string) (model.WorkingHours, error) {
	if s.cache != nil {
		wh, ok, err := s.cache.Get(ctx, businessID)
		switch {
		case err != nil:
			metrics.IncHoursCache("error")
			s.logger.Warn().Err(err).Str("business_id", businessID).Msg("working hours cache read failed")
		case ok:
			metrics.IncHoursCache("hit")
			return wh, nil
		default:
			metrics.IncHoursCache("miss")
		}
	}

	raw, err := s.store.GetWorkingHours(ctx, businessID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, err
		}
		return nil, storeError("get working hours", err)
	}
	wh := model.MigrateLegacyFormat(raw)

	if s.cache != nil {
		if err := s.cache.Set(ctx, businessID, wh); err != nil {
			s.logger.Warn().Err(err).Str("business_id", businessID).Msg("working hours cache write failed")
		}
	}
	return wh, nil
}

// loadDay fetches blocks and bookings concurrently.
func (s *Service) loadDay(ctx context.Context, businessID string, date time.Time, professionalID string) ([]model.Block, []model.Booking, error) {
	var (
		blocks   []model.Block
		bookings []model.Booking
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		blocks, err = s.store.GetBlocks(gctx, businessID, date)
		if err != nil {
			return storeError("get blocks", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		bookings, err = s.store.GetBookings(gctx, businessID, date, professionalID)
		if err != nil {
			return storeError("get bookings", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return blocks, bookings, nil
}

func (s *Service) lookupService(ctx context.Context, businessID, serviceID string) (*model.Service, error) {
	svc, err := s.store.GetService(ctx, businessID, serviceID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.NewValidationError("service_id", "unknown service")
		}
		return nil, storeError("get service", err)
	}
	if !svc.Active {
		return nil, model.NewValidationError("service_id", "service is not available")
	}
	return svc, nil
}

func (s *Service) lookupProfessional(ctx context.Context, businessID, professionalID string) error {
	p, err := s.store.GetProfessional(ctx, businessID, professionalID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.NewValidationError("professional_id", "unknown professional")
		}
		return storeError("get professional", err)
	}
	if !p.Active {
		return model.NewValidationError("professional_id", "professional is not available")
	}
	return nil
}

// isPast reports whether the slot already started in the business timezone.
func (s *Service) isPast(date time.Time, t model.TimeOfDay) bool {
	now := s.now().In(s.location)
	today := model.DateOnly(now)
	day := model.DateOnly(date)
	if day.Before(today) {
		return true
	}
	if day.After(today) {
		return false
	}
	return t <= model.NewTimeOfDay(now.Hour(), now.Minute())
}

func (s *Service) publish(b *model.Booking) {
	if s.events == nil {
		return
	}
	payload := map[string]string{
		"booking_id":      b.ID,
		"service_id":      b.ServiceID,
		"professional_id": b.ProfessionalID,
		"date":            model.FormatDate(b.Date),
		"time":            b.Time.String(),
		"status":          string(b.Status),
	}
	if err := s.events.PublishJSON(events.BookingCreated, b.BusinessID, payload); err != nil {
		s.logger.Warn().Err(err).Msg("publish booking event")
	}
}

func (s *Service) reject(reason string, err error) error {
	metrics.IncBookingRejected(reason)
	return err
}

func reasonOf(err error) string {
	switch {
	case model.IsValidation(err):
		return "invalid_input"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "other"
	}
}
