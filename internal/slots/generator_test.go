package slots

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"agendafacil/internal/model"
)

// 2025-01-10 is a Friday.
var friday = time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

func shift(start, end string) model.Shift {
	return model.Shift{Start: model.MustParseTimeOfDay(start), End: model.MustParseTimeOfDay(end)}
}

func times(values ...string) []model.TimeOfDay {
	out := make([]model.TimeOfDay, len(values))
	for i, v := range values {
		out[i] = model.MustParseTimeOfDay(v)
	}
	return out
}

func TestGenerate(t *testing.T) {
	tests := []struct {
		name     string
		schedule model.WorkingHours
		expected []model.TimeOfDay
	}{
		{
			name:     "single shift end exclusive",
			schedule: model.WorkingHours{time.Friday: {Active: true, Shifts: []model.Shift{shift("09:00", "11:00")}}},
			expected: times("09:00", "09:30", "10:00", "10:30"),
		},
		{
			name: "adjacent shifts no duplicate at boundary",
			schedule: model.WorkingHours{time.Friday: {Active: true, Shifts: []model.Shift{
				shift("08:00", "10:00"), shift("10:00", "12:00"),
			}}},
			expected: times("08:00", "08:30", "09:00", "09:30", "10:00", "10:30", "11:00", "11:30"),
		},
		{
			name: "overlapping shifts deduplicated and sorted",
			schedule: model.WorkingHours{time.Friday: {Active: true, Shifts: []model.Shift{
				shift("14:00", "15:00"), shift("09:00", "10:00"), shift("09:30", "10:30"),
			}}},
			expected: times("09:00", "09:30", "10:00", "14:00", "14:30"),
		},
		{
			name:     "shift shorter than step",
			schedule: model.WorkingHours{time.Friday: {Active: true, Shifts: []model.Shift{shift("09:00", "09:20")}}},
			expected: []model.TimeOfDay{},
		},
		{
			name:     "inactive day",
			schedule: model.WorkingHours{time.Friday: {Active: false, Shifts: []model.Shift{shift("09:00", "11:00")}}},
			expected: []model.TimeOfDay{},
		},
		{
			name:     "active day without shifts",
			schedule: model.WorkingHours{time.Friday: {Active: true}},
			expected: []model.TimeOfDay{},
		},
		{
			name:     "weekday missing",
			schedule: model.WorkingHours{time.Monday: {Active: true, Shifts: []model.Shift{shift("09:00", "11:00")}}},
			expected: []model.TimeOfDay{},
		},
		{
			name:     "nil schedule",
			schedule: nil,
			expected: []model.TimeOfDay{},
		},
	}

	g := NewGenerator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, g.Generate(tt.schedule, friday))
		})
	}
}

func TestGenerate_ClosedDayYieldsNothing(t *testing.T) {
	g := NewGenerator()
	wh := model.WorkingHours{}
	for d := time.Sunday; d <= time.Saturday; d++ {
		wh[d] = model.DaySchedule{Active: d != time.Friday, Shifts: []model.Shift{shift("08:00", "18:00")}}
	}

	for i := 0; i < 28; i++ {
		date := friday.AddDate(0, 0, i)
		got := g.Generate(wh, date)
		if date.Weekday() == time.Friday {
			assert.Empty(t, got, date.String())
		} else {
			assert.Len(t, got, 20, date.String())
		}
	}
}

func TestGenerate_ShiftEndOffStep(t *testing.T) {
	g := NewGenerator()
	wh := model.WorkingHours{time.Friday: {Active: true, Shifts: []model.Shift{shift("09:00", "10:15")}}}
	assert.Equal(t, times("09:00", "09:30"), g.Generate(wh, friday))
}

func TestGenerate_CustomStep(t *testing.T) {
	g := &Generator{Step: time.Hour}
	wh := model.WorkingHours{time.Friday: {Active: true, Shifts: []model.Shift{shift("09:00", "12:00")}}}
	assert.Equal(t, times("09:00", "10:00", "11:00"), g.Generate(wh, friday))
}

func TestContains(t *testing.T) {
	g := NewGenerator()
	wh := model.WorkingHours{time.Friday: {Active: true, Shifts: []model.Shift{shift("09:00", "11:00")}}}

	assert.True(t, g.Contains(wh, friday, model.MustParseTimeOfDay("10:30")))
	assert.False(t, g.Contains(wh, friday, model.MustParseTimeOfDay("11:00")))
	assert.False(t, g.Contains(wh, friday, model.MustParseTimeOfDay("09:15")))
	assert.False(t, g.Contains(wh, friday.AddDate(0, 0, 1), model.MustParseTimeOfDay("09:00")))
}

func TestToSlotInfo(t *testing.T) {
	g := NewGenerator()
	info := g.ToSlotInfo([]Slot{
		{Time: model.MustParseTimeOfDay("09:00"), Available: true},
		{Time: model.MustParseTimeOfDay("09:30"), Available: false},
	})

	assert.Equal(t, []SlotInfo{
		{Start: "09:00", End: "09:30", Available: true},
		{Start: "09:30", End: "10:00", Available: false},
	}, info)
}

func TestGetAvailableSlots(t *testing.T) {
	got := GetAvailableSlots([]Slot{
		{Time: model.MustParseTimeOfDay("09:00"), Available: true},
		{Time: model.MustParseTimeOfDay("09:30"), Available: false},
		{Time: model.MustParseTimeOfDay("10:00"), Available: true},
	})
	assert.Equal(t, times("09:00", "10:00"), got)
	assert.Empty(t, GetAvailableSlots(nil))
}
