package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// DateLayout is the textual form of calendar dates everywhere.
	DateLayout = "2006-01-02"

	minutesPerDay = 24 * 60
)

// TimeOfDay is a wall-clock time stored as minutes since midnight.
// UI and config use "HH:MM"; storage uses "HH:MM:SS".
type TimeOfDay int

// NewTimeOfDay builds a TimeOfDay from hour and minute.
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay accepts "H:MM", "HH:MM" and "HH:MM:SS". Seconds are dropped.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	values := make([]int, len(parts))
	for i, p := range parts {
		if p == "" || len(p) > 2 {
			return 0, fmt.Errorf("invalid time %q", s)
		}
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid time %q", s)
		}
		values[i] = v
	}
	if values[0] > 23 || values[1] > 59 || (len(values) == 3 && values[2] > 59) {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return NewTimeOfDay(values[0], values[1]), nil
}

// MustParseTimeOfDay is ParseTimeOfDay for constants and tests.
func MustParseTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// String returns the UI form "HH:MM".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// StorageString returns the storage form "HH:MM:SS".
func (t TimeOfDay) StorageString() string {
	return fmt.Sprintf("%02d:%02d:00", t.Hour(), t.Minute())
}

// Add shifts t by d, truncated to whole minutes. The result may pass midnight;
// it is only meant for interval arithmetic within a day.
func (t TimeOfDay) Add(d time.Duration) TimeOfDay {
	return t + TimeOfDay(d/time.Minute)
}

// Valid reports whether t falls inside a single day.
func (t TimeOfDay) Valid() bool {
	return t >= 0 && t < minutesPerDay
}

// On places t on the given date in the date's location.
func (t TimeOfDay) On(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, date.Location())
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ParseDate parses "YYYY-MM-DD" into midnight UTC.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return d, nil
}

// FormatDate renders the calendar date part of t.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// SameDate compares calendar dates ignoring clock and location.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DateOnly truncates t to midnight UTC of its calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
