package model

import "time"

// Booking is a client's claim on a single slot.
type Booking struct {
	ID             string
	BusinessID     string
	ProfessionalID string // empty when the service has no professional
	ServiceID      string
	Date           time.Time
	Time           TimeOfDay
	ClientName     string
	ClientPhone    string
	ClientEmail    string
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// StartsAt returns the booking start as a timestamp on its date.
func (b *Booking) StartsAt() time.Time {
	return b.Time.On(b.Date)
}

// At reports whether the booking sits exactly on date and t.
func (b *Booking) At(date time.Time, t TimeOfDay) bool {
	return SameDate(b.Date, date) && b.Time == t
}

// Block closes [Start, End) of a day regardless of working hours.
type Block struct {
	ID          string
	BusinessID  string
	Date        time.Time
	Start       TimeOfDay
	End         TimeOfDay
	Description string
	CreatedAt   time.Time
}

// Validate enforces Start < End within one day.
func (b *Block) Validate() error {
	if b.BusinessID == "" {
		return NewValidationError("business_id", "is required")
	}
	if b.Date.IsZero() {
		return NewValidationError("date", "is required")
	}
	if !b.Start.Valid() || !b.End.Valid() {
		return NewValidationError("time", "out of range")
	}
	if b.Start >= b.End {
		return NewValidationError("end_time", "must be after start_time")
	}
	return nil
}

// Business is a tenant.
type Business struct {
	ID           string
	Name         string
	Slug         string
	Kind         string
	Phone        string
	Address      string
	WorkingHours WorkingHours
}

// Service is something a business sells, with a fixed duration.
type Service struct {
	ID              string
	BusinessID      string
	Name            string
	DurationMinutes int
	Price           float64
	Active          bool
}

// Duration returns the service length, zero when unknown.
func (s *Service) Duration() time.Duration {
	if s == nil || s.DurationMinutes <= 0 {
		return 0
	}
	return time.Duration(s.DurationMinutes) * time.Minute
}

// Professional performs services for a business.
type Professional struct {
	ID         string
	BusinessID string
	Name       string
	Specialty  string
	Active     bool
}
