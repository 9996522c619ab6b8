package availability

import (
	"time"

	"agendafacil/internal/model"
)

// DefaultDuration is assumed for the block check when the service length is
// unknown.
const DefaultDuration = time.Hour

// Policy holds the per-deployment rules for what occupies a slot.
type Policy struct {
	// PendingBlocksSlot makes pending bookings hold their slot like
	// confirmed ones.
	PendingBlocksSlot bool
	DefaultDuration   time.Duration
}

// DefaultPolicy blocks on pending bookings and assumes one hour services.
func DefaultPolicy() Policy {
	return Policy{PendingBlocksSlot: true, DefaultDuration: DefaultDuration}
}

// SlotQuery identifies a candidate slot and the scope it is checked in.
type SlotQuery struct {
	Date           time.Time
	Time           model.TimeOfDay
	ProfessionalID string
	ServiceID      string
	// Duration is the service length; zero falls back to the policy default.
	Duration time.Duration
}

// HoldsSlot reports whether a booking in status s occupies its slot.
func (p Policy) HoldsSlot(s model.Status) bool {
	switch s {
	case model.StatusConfirmed:
		return true
	case model.StatusPending:
		return p.PendingBlocksSlot
	default:
		return false
	}
}

// HoldingStatuses lists the statuses that occupy a slot under p.
func (p Policy) HoldingStatuses() []model.Status {
	if p.PendingBlocksSlot {
		return []model.Status{model.StatusPending, model.StatusConfirmed}
	}
	return []model.Status{model.StatusConfirmed}
}

// IsBooked reports whether a slot-holding booking sits exactly on q's date
// and time within q's scope. With a professional the scope is that
// professional; without one it is the service, among professional-less
// bookings; with neither it is the whole business.
func (p Policy) IsBooked(bookings []model.Booking, q SlotQuery) bool {
	for i := range bookings {
		b := &bookings[i]
		if !b.At(q.Date, q.Time) || !p.HoldsSlot(b.Status) {
			continue
		}
		if inScope(b, q) {
			return true
		}
	}
	return false
}

func inScope(b *model.Booking, q SlotQuery) bool {
	switch {
	case q.ProfessionalID != "":
		return b.ProfessionalID == q.ProfessionalID
	case q.ServiceID != "":
		return b.ProfessionalID == "" && b.ServiceID == q.ServiceID
	default:
		return true
	}
}

// IsAvailable is !IsBlocked && !IsBooked for q.
func (p Policy) IsAvailable(blocks []model.Block, bookings []model.Booking, q SlotQuery) bool {
	end := q.Time.Add(p.duration(q))
	if IsBlocked(blocks, q.Date, q.Time, end) {
		return false
	}
	return !p.IsBooked(bookings, q)
}

// Filter keeps the candidates that are available under q's scope.
func (p Policy) Filter(candidates []model.TimeOfDay, blocks []model.Block, bookings []model.Booking, q SlotQuery) []model.TimeOfDay {
	result := make([]model.TimeOfDay, 0, len(candidates))
	for _, t := range candidates {
		q.Time = t
		if p.IsAvailable(blocks, bookings, q) {
			result = append(result, t)
		}
	}
	return result
}

func (p Policy) duration(q SlotQuery) time.Duration {
	if q.Duration > 0 {
		return q.Duration
	}
	if p.DefaultDuration > 0 {
		return p.DefaultDuration
	}
	return DefaultDuration
}
