package booking

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrOutsideBusinessHours means the requested slot is not generated by
	// the business's working hours for that date.
	ErrOutsideBusinessHours = errors.New("requested time is outside business hours")
	// ErrSlotTaken means a block or another booking occupies the slot,
	// detected either by the pre-check or by the store's unique index.
	ErrSlotTaken = errors.New("slot already taken")
	// ErrStoreUnavailable wraps any failure talking to the record store.
	ErrStoreUnavailable = errors.New("record store unavailable")
)

// RateLimitedError is returned when a session exceeded its booking quota.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("too many bookings, retry in %s", e.RetryAfter.Round(time.Second))
}

// IsRateLimited extracts the retry hint from err.
func IsRateLimited(err error) (time.Duration, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}

func storeError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
