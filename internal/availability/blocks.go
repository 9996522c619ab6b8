// Package availability decides whether a single slot is free given the
// day's manual blocks and existing bookings.
package availability

import (
	"time"

	"agendafacil/internal/model"
)

// IsBlocked reports whether [start, end) on date intersects any block on
// the same date. Intervals are half-open, so touching edges do not overlap.
func IsBlocked(blocks []model.Block, date time.Time, start, end model.TimeOfDay) bool {
	for i := range blocks {
		b := &blocks[i]
		if !model.SameDate(b.Date, date) {
			continue
		}
		if isOverlapping(start, end, b.Start, b.End) {
			return true
		}
	}
	return false
}

// BlockingBlock returns the first block overlapping [start, end), or nil.
func BlockingBlock(blocks []model.Block, date time.Time, start, end model.TimeOfDay) *model.Block {
	for i := range blocks {
		b := &blocks[i]
		if model.SameDate(b.Date, date) && isOverlapping(start, end, b.Start, b.End) {
			return b
		}
	}
	return nil
}

func isOverlapping(start1, end1, start2, end2 model.TimeOfDay) bool {
	return start1 < end2 && end1 > start2
}
