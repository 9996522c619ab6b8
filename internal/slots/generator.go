package slots

import (
	"sort"
	"time"

	"agendafacil/internal/model"
)

// DefaultStep is the slot granularity.
const DefaultStep = 30 * time.Minute

// Slot represents a candidate start time on a date.
type Slot struct {
	Time      model.TimeOfDay
	Available bool
}

// SlotInfo is a simplified representation for UI.
type SlotInfo struct {
	Start     string `json:"start"` // "10:00"
	End       string `json:"end"`   // "10:30"
	Available bool   `json:"available"`
}

// Generator produces candidate slots from working hours.
type Generator struct {
	Step time.Duration
}

// NewGenerator creates a generator with the default 30 minute step.
func NewGenerator() *Generator {
	return &Generator{Step: DefaultStep}
}

// Generate returns the ascending, duplicate-free start times for date.
// Each shift is walked from start to end exclusive; a slot is emitted only
// when a whole step still fits in the shift. Closed, missing and shift-less
// days yield an empty result.
func (g *Generator) Generate(wh model.WorkingHours, date time.Time) []model.TimeOfDay {
	day, ok := wh.Day(date)
	if !ok || !day.Active || len(day.Shifts) == 0 {
		return []model.TimeOfDay{}
	}

	step := model.TimeOfDay(g.step() / time.Minute)
	seen := make(map[model.TimeOfDay]struct{})
	result := []model.TimeOfDay{}

	for _, shift := range day.Shifts {
		for cursor := shift.Start; cursor+step <= shift.End; cursor += step {
			// overlapping shifts would emit the same time twice
			if _, dup := seen[cursor]; dup {
				continue
			}
			seen[cursor] = struct{}{}
			result = append(result, cursor)
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// Contains reports whether t is one of the generated slots for date.
func (g *Generator) Contains(wh model.WorkingHours, date time.Time, t model.TimeOfDay) bool {
	for _, s := range g.Generate(wh, date) {
		if s == t {
			return true
		}
	}
	return false
}

func (g *Generator) step() time.Duration {
	if g == nil || g.Step < time.Minute {
		return DefaultStep
	}
	return g.Step
}

// ToSlotInfo converts slots to SlotInfo for UI. End is start plus one step.
func (g *Generator) ToSlotInfo(slots []Slot) []SlotInfo {
	result := make([]SlotInfo, len(slots))
	for i, s := range slots {
		result[i] = SlotInfo{
			Start:     s.Time.String(),
			End:       s.Time.Add(g.step()).String(),
			Available: s.Available,
		}
	}
	return result
}

// GetAvailableSlots returns only available slot times.
func GetAvailableSlots(slots []Slot) []model.TimeOfDay {
	available := []model.TimeOfDay{}
	for _, s := range slots {
		if s.Available {
			available = append(available, s.Time)
		}
	}
	return available
}
