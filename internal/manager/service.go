// Package manager holds the owner-side operations: booking status changes,
// schedule blocks, working hours and config sync.
package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"agendafacil/internal/config"
	"agendafacil/internal/events"
	"agendafacil/internal/metrics"
	"agendafacil/internal/model"
)

// ErrInvalidTransition is returned for a status change the lifecycle does not
// allow.
var ErrInvalidTransition = errors.New("invalid status transition")

// maxListRange bounds list and export queries.
const maxListRange = 93 * 24 * time.Hour

// Store provides the records managed by owners.
type Store interface {
	GetBusiness(ctx context.Context, id string) (*model.Business, error)
	UpsertBusiness(ctx context.Context, b *model.Business) error
	SaveWorkingHours(ctx context.Context, businessID string, wh model.WorkingHours) error
	UpsertService(ctx context.Context, svc *model.Service) error
	UpsertProfessional(ctx context.Context, p *model.Professional) error

	GetBlock(ctx context.Context, businessID, id string) (*model.Block, error)
	ListBlocks(ctx context.Context, businessID string, from, to time.Time) ([]model.Block, error)
	CreateBlock(ctx context.Context, b *model.Block) error
	UpsertBlock(ctx context.Context, b *model.Block) error
	UpdateBlock(ctx context.Context, b *model.Block) error
	DeleteBlock(ctx context.Context, businessID, id string) error

	GetBooking(ctx context.Context, id string) (*model.Booking, error)
	ListBookings(ctx context.Context, businessID string, from, to time.Time) ([]model.Booking, error)
	CountBookingsByDate(ctx context.Context, businessID string, from, to time.Time) (map[string]int, error)
	UpdateBookingStatus(ctx context.Context, id string, from, to model.Status) error
}

// HoursCache is invalidated whenever a schedule changes.
type HoursCache interface {
	Invalidate(ctx context.Context, businessID string) error
}

// Publisher receives domain events.
type Publisher interface {
	PublishJSON(eventType, businessID string, payload any) error
}

// Service provides manager operations.
type Service struct {
	store  Store
	cache  HoursCache
	events Publisher
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a new manager service.
func NewService(store Store, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.With().Str("component", "manager").Logger(),
		now:    time.Now,
	}
}

func (s *Service) UseHoursCache(c HoursCache) { s.cache = c }
func (s *Service) UseEvents(p Publisher)      { s.events = p }

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// GetBooking returns a booking of the business.
func (s *Service) GetBooking(ctx context.Context, businessID, id string) (*model.Booking, error) {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.BusinessID != businessID {
		return nil, model.ErrNotFound
	}
	return b, nil
}

// ListBookings returns bookings with from <= date <= to.
func (s *Service) ListBookings(ctx context.Context, businessID string, from, to time.Time) ([]model.Booking, error) {
	if err := CheckRange(from, to); err != nil {
		return nil, err
	}
	return s.store.ListBookings(ctx, businessID, from, to)
}

// DailyCounts returns the number of pending and confirmed bookings per day of
// the month containing month, keyed by "YYYY-MM-DD".
func (s *Service) DailyCounts(ctx context.Context, businessID string, month time.Time) (map[string]int, error) {
	first := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return s.store.CountBookingsByDate(ctx, businessID, first, last)
}

// ConfirmBooking confirms a pending booking.
func (s *Service) ConfirmBooking(ctx context.Context, businessID, id string) (*model.Booking, error) {
	return s.changeStatus(ctx, businessID, id, model.StatusConfirmed)
}

// CancelBooking cancels a pending or confirmed booking and frees its slot.
func (s *Service) CancelBooking(ctx context.Context, businessID, id string) (*model.Booking, error) {
	return s.changeStatus(ctx, businessID, id, model.StatusCancelled)
}

// RescheduleBooking marks a confirmed booking as rescheduled. The client books
// the new slot separately.
func (s *Service) RescheduleBooking(ctx context.Context, businessID, id string) (*model.Booking, error) {
	return s.changeStatus(ctx, businessID, id, model.StatusRescheduled)
}

func (s *Service) changeStatus(ctx context.Context, businessID, id string, to model.Status) (*model.Booking, error) {
	b, err := s.GetBooking(ctx, businessID, id)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}

	from := b.Status
	if !model.CanTransition(from, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	if err := s.store.UpdateBookingStatus(ctx, id, from, to); err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	b.Status = to
	b.UpdatedAt = s.now()

	metrics.IncStatusChanged(string(to))
	s.publish(events.BookingStatusChanged, businessID, map[string]string{
		"booking_id": id,
		"from":       string(from),
		"to":         string(to),
		"date":       model.FormatDate(b.Date),
		"time":       b.Time.String(),
	})
	s.logger.Info().
		Str("business_id", businessID).
		Str("booking_id", id).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("booking status changed")
	return b, nil
}

// ListBlocks returns the blocks of one date.
func (s *Service) ListBlocks(ctx context.Context, businessID string, date time.Time) ([]model.Block, error) {
	return s.store.ListBlocks(ctx, businessID, date, date)
}

// CreateBlock validates and stores a new block, assigning its ID.
func (s *Service) CreateBlock(ctx context.Context, b *model.Block) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if _, err := s.store.GetBusiness(ctx, b.BusinessID); err != nil {
		return fmt.Errorf("get business: %w", err)
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	b.Date = model.DateOnly(b.Date)
	b.CreatedAt = s.now()
	if err := s.store.CreateBlock(ctx, b); err != nil {
		return err
	}
	s.publishBlock("created", b)
	return nil
}

// UpdateBlock replaces the date, range and description of a block.
func (s *Service) UpdateBlock(ctx context.Context, b *model.Block) error {
	if err := b.Validate(); err != nil {
		return err
	}
	b.Date = model.DateOnly(b.Date)
	if err := s.store.UpdateBlock(ctx, b); err != nil {
		return err
	}
	s.publishBlock("updated", b)
	return nil
}

func (s *Service) DeleteBlock(ctx context.Context, businessID, id string) error {
	b, err := s.store.GetBlock(ctx, businessID, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteBlock(ctx, businessID, id); err != nil {
		return err
	}
	s.publishBlock("deleted", b)
	return nil
}

// SetWorkingHours validates and saves a schedule, then drops the cached copy.
func (s *Service) SetWorkingHours(ctx context.Context, businessID string, wh model.WorkingHours) error {
	if err := wh.Validate(); err != nil {
		return err
	}
	if err := s.store.SaveWorkingHours(ctx, businessID, wh); err != nil {
		return fmt.Errorf("save working hours: %w", err)
	}
	s.invalidate(ctx, businessID)
	s.publish(events.WorkingHoursChanged, businessID, wh)
	return nil
}

// SyncFromConfig applies businesses.yaml to the store: businesses with their
// working hours, services, professionals, and holidays as all-day blocks.
func (s *Service) SyncFromConfig(ctx context.Context, cfg *config.BusinessesConfig) error {
	if cfg == nil {
		return fmt.Errorf("businesses config is nil")
	}

	holidays := cfg.HolidayDates()
	for i := range cfg.Businesses {
		bc := &cfg.Businesses[i]
		biz := bc.Business()
		if err := s.store.UpsertBusiness(ctx, &biz); err != nil {
			return fmt.Errorf("sync business %s: %w", bc.ID, err)
		}
		for _, svc := range bc.ServiceModels() {
			if err := s.store.UpsertService(ctx, &svc); err != nil {
				return fmt.Errorf("sync business %s service %s: %w", bc.ID, svc.ID, err)
			}
		}
		for _, p := range bc.ProfessionalModels() {
			if err := s.store.UpsertProfessional(ctx, &p); err != nil {
				return fmt.Errorf("sync business %s professional %s: %w", bc.ID, p.ID, err)
			}
		}
		for date, name := range holidays {
			block := &model.Block{
				ID:          fmt.Sprintf("holiday-%s-%s", bc.ID, model.FormatDate(date)),
				BusinessID:  bc.ID,
				Date:        date,
				Start:       model.NewTimeOfDay(0, 0),
				End:         model.NewTimeOfDay(23, 59),
				Description: name,
				CreatedAt:   s.now(),
			}
			if err := s.store.UpsertBlock(ctx, block); err != nil {
				return fmt.Errorf("sync business %s holiday %s: %w", bc.ID, model.FormatDate(date), err)
			}
		}
		s.invalidate(ctx, bc.ID)
	}

	s.logger.Info().Int("businesses", len(cfg.Businesses)).Int("holidays", len(holidays)).Msg("businesses synced from config")
	return nil
}

func (s *Service) invalidate(ctx context.Context, businessID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, businessID); err != nil {
		s.logger.Warn().Err(err).Str("business_id", businessID).Msg("working hours cache invalidation failed")
	}
}

func (s *Service) publishBlock(action string, b *model.Block) {
	s.publish(events.BlockChanged, b.BusinessID, map[string]string{
		"action":   action,
		"block_id": b.ID,
		"date":     model.FormatDate(b.Date),
		"start":    b.Start.String(),
		"end":      b.End.String(),
	})
}

func (s *Service) publish(eventType, businessID string, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishJSON(eventType, businessID, payload); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("publish event")
	}
}

// CheckRange bounds a list or export date range.
func CheckRange(from, to time.Time) error {
	if from.IsZero() || to.IsZero() {
		return model.NewValidationError("from", "date range is required")
	}
	if to.Before(from) {
		return model.NewValidationError("to", "must not be before from")
	}
	if to.Sub(from) > maxListRange {
		return model.NewValidationError("to", "range is limited to three months")
	}
	return nil
}
