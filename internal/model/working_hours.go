package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Shift is one continuous opening interval [Start, End) within a day.
type Shift struct {
	Start TimeOfDay `json:"start" yaml:"start"`
	End   TimeOfDay `json:"end" yaml:"end"`
}

// DaySchedule describes a single weekday. A closed day has no shifts.
type DaySchedule struct {
	Active bool    `json:"active" yaml:"active"`
	Shifts []Shift `json:"shifts" yaml:"shifts"`
}

// WorkingHours is a business's weekly schedule.
type WorkingHours map[time.Weekday]DaySchedule

var weekdayKeys = map[time.Weekday]string{
	time.Sunday:    "domingo",
	time.Monday:    "segunda",
	time.Tuesday:   "terca",
	time.Wednesday: "quarta",
	time.Thursday:  "quinta",
	time.Friday:    "sexta",
	time.Saturday:  "sabado",
}

var weekdayByKey = map[string]time.Weekday{
	"domingo":   time.Sunday,
	"segunda":   time.Monday,
	"terca":     time.Tuesday,
	"terça":     time.Tuesday,
	"quarta":    time.Wednesday,
	"quinta":    time.Thursday,
	"sexta":     time.Friday,
	"sabado":    time.Saturday,
	"sábado":    time.Saturday,
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// WeekdayKey returns the storage key of a weekday.
func WeekdayKey(d time.Weekday) string {
	return weekdayKeys[d]
}

// ParseWeekdayKey maps a stored or configured day key to a weekday.
func ParseWeekdayKey(key string) (time.Weekday, bool) {
	d, ok := weekdayByKey[strings.ToLower(strings.TrimSpace(key))]
	return d, ok
}

// Day returns the schedule for date's weekday.
func (wh WorkingHours) Day(date time.Time) (DaySchedule, bool) {
	ds, ok := wh[date.Weekday()]
	return ds, ok
}

// Validate checks shift ordering for every active day. Used when an owner
// saves a schedule; stored data goes through MigrateLegacyFormat instead.
func (wh WorkingHours) Validate() error {
	for day := time.Sunday; day <= time.Saturday; day++ {
		ds, ok := wh[day]
		if !ok || !ds.Active {
			continue
		}
		field := "working_hours." + WeekdayKey(day)
		if len(ds.Shifts) == 0 {
			return NewValidationError(field, "active day needs at least one shift")
		}
		shifts := append([]Shift(nil), ds.Shifts...)
		sort.Slice(shifts, func(i, j int) bool { return shifts[i].Start < shifts[j].Start })
		for i, s := range shifts {
			if !s.Start.Valid() || !s.End.Valid() {
				return NewValidationError(field, "shift time out of range")
			}
			if s.Start >= s.End {
				return NewValidationError(field, fmt.Sprintf("shift %s-%s: start must be before end", s.Start, s.End))
			}
			if i > 0 && s.Start < shifts[i-1].End {
				return NewValidationError(field, fmt.Sprintf("shift %s-%s overlaps %s-%s", s.Start, s.End, shifts[i-1].Start, shifts[i-1].End))
			}
		}
	}
	return nil
}

// Raw converts the schedule back to its stored JSON shape.
func (wh WorkingHours) Raw() RawWorkingHours {
	raw := make(RawWorkingHours, len(wh))
	for day, ds := range wh {
		rd := RawDaySchedule{Active: ds.Active, Shifts: make([]RawShift, 0, len(ds.Shifts))}
		for _, s := range ds.Shifts {
			rd.Shifts = append(rd.Shifts, RawShift{Start: s.Start.String(), End: s.End.String()})
		}
		raw[WeekdayKey(day)] = rd
	}
	return raw
}

func (wh WorkingHours) MarshalJSON() ([]byte, error) {
	return json.Marshal(wh.Raw())
}

// UnmarshalJSON accepts both the shift-list and the legacy single-range format.
func (wh *WorkingHours) UnmarshalJSON(b []byte) error {
	var raw RawWorkingHours
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*wh = MigrateLegacyFormat(raw)
	return nil
}

// RawShift is a shift as stored, before parsing.
type RawShift struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

// RawDaySchedule holds either a shift list or the legacy Start/End pair.
// A nil Shifts slice marks the legacy shape.
type RawDaySchedule struct {
	Active bool       `json:"active" yaml:"active"`
	Shifts []RawShift `json:"shifts" yaml:"shifts"`
	Start  string     `json:"start,omitempty" yaml:"start,omitempty"`
	End    string     `json:"end,omitempty" yaml:"end,omitempty"`
}

// RawWorkingHours is the stored schedule keyed by weekday name.
type RawWorkingHours map[string]RawDaySchedule

// ParseRawWorkingHours decodes stored JSON. Empty input yields nil.
func ParseRawWorkingHours(b []byte) (RawWorkingHours, error) {
	if len(b) == 0 || string(b) == "null" {
		return nil, nil
	}
	var raw RawWorkingHours
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("decode working hours: %w", err)
	}
	return raw, nil
}

const legacySplitThresholdHours = 6

var (
	legacyMorning   = Shift{Start: NewTimeOfDay(8, 0), End: NewTimeOfDay(12, 0)}
	legacyAfternoon = Shift{Start: NewTimeOfDay(14, 0), End: NewTimeOfDay(18, 0)}
)

// MigrateLegacyFormat normalizes stored working hours into the shift-list
// format. Legacy days spanning more than six whole hours become the fixed
// 08:00-12:00 and 14:00-18:00 pair; shorter ones keep their single range.
// Unknown keys are ignored and malformed days come out closed.
func MigrateLegacyFormat(raw RawWorkingHours) WorkingHours {
	wh := make(WorkingHours, 7)
	for day := time.Sunday; day <= time.Saturday; day++ {
		wh[day] = DaySchedule{Shifts: []Shift{}}
	}
	for key, rd := range raw {
		day, ok := ParseWeekdayKey(key)
		if !ok {
			continue
		}
		wh[day] = migrateDay(rd)
	}
	return wh
}

func migrateDay(rd RawDaySchedule) DaySchedule {
	closed := DaySchedule{Shifts: []Shift{}}
	if !rd.Active {
		return closed
	}

	if rd.Shifts != nil {
		shifts := make([]Shift, 0, len(rd.Shifts))
		for _, rs := range rd.Shifts {
			start, err1 := ParseTimeOfDay(rs.Start)
			end, err2 := ParseTimeOfDay(rs.End)
			if err1 != nil || err2 != nil {
				continue
			}
			shifts = append(shifts, Shift{Start: start, End: end})
		}
		if len(shifts) == 0 {
			return closed
		}
		return DaySchedule{Active: true, Shifts: shifts}
	}

	start, err1 := ParseTimeOfDay(rd.Start)
	end, err2 := ParseTimeOfDay(rd.End)
	if err1 != nil || err2 != nil {
		return closed
	}
	if end.Hour()-start.Hour() > legacySplitThresholdHours {
		return DaySchedule{Active: true, Shifts: []Shift{legacyMorning, legacyAfternoon}}
	}
	return DaySchedule{Active: true, Shifts: []Shift{{Start: start, End: end}}}
}
