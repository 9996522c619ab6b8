package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrSlotConflict is returned by stores when an insert or status change
	// violates the one-booking-per-slot unique index.
	ErrSlotConflict = errors.New("slot uniqueness constraint violated")
	// ErrConcurrentModification is returned when a conditional update finds
	// the row in a different state than expected.
	ErrConcurrentModification = errors.New("record was modified concurrently")
)

// ValidationError reports a malformed field. It is always recoverable and is
// meant to be shown next to the offending input.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// DuplicateSlotsError is returned by store migrations when existing bookings
// would violate the one-booking-per-slot indexes, typically after
// booking.pending_blocks_slot is switched on with overlapping pending
// bookings. The extra bookings must be cancelled before restarting.
type DuplicateSlotsError struct {
	Slots []string
}

func (e *DuplicateSlotsError) Error() string {
	return fmt.Sprintf("%d slots are held by more than one booking, cancel the extras or review booking.pending_blocks_slot: %s",
		len(e.Slots), strings.Join(e.Slots, "; "))
}
