package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shift(start, end string) Shift {
	return Shift{Start: MustParseTimeOfDay(start), End: MustParseTimeOfDay(end)}
}

func TestMigrateLegacyFormat(t *testing.T) {
	tests := []struct {
		name string
		day  RawDaySchedule
		want DaySchedule
	}{
		{
			name: "legacy long range splits into canonical shifts",
			day:  RawDaySchedule{Active: true, Start: "07:00", End: "19:00"},
			want: DaySchedule{Active: true, Shifts: []Shift{shift("08:00", "12:00"), shift("14:00", "18:00")}},
		},
		{
			name: "legacy short range kept as one shift",
			day:  RawDaySchedule{Active: true, Start: "09:00", End: "13:30"},
			want: DaySchedule{Active: true, Shifts: []Shift{shift("09:00", "13:30")}},
		},
		{
			name: "legacy exactly six hours kept",
			day:  RawDaySchedule{Active: true, Start: "09:00", End: "15:45"},
			want: DaySchedule{Active: true, Shifts: []Shift{shift("09:00", "15:45")}},
		},
		{
			name: "legacy inactive",
			day:  RawDaySchedule{Active: false, Start: "08:00", End: "18:00"},
			want: DaySchedule{Shifts: []Shift{}},
		},
		{
			name: "legacy malformed is closed",
			day:  RawDaySchedule{Active: true, Start: "8h", End: "18:00"},
			want: DaySchedule{Shifts: []Shift{}},
		},
		{
			name: "current format kept",
			day:  RawDaySchedule{Active: true, Shifts: []RawShift{{"08:00", "12:00"}, {"13:00", "17:00"}}},
			want: DaySchedule{Active: true, Shifts: []Shift{shift("08:00", "12:00"), shift("13:00", "17:00")}},
		},
		{
			name: "current format inactive drops shifts",
			day:  RawDaySchedule{Active: false, Shifts: []RawShift{{"08:00", "12:00"}}},
			want: DaySchedule{Shifts: []Shift{}},
		},
		{
			name: "active with empty shift list is closed",
			day:  RawDaySchedule{Active: true, Shifts: []RawShift{}},
			want: DaySchedule{Shifts: []Shift{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wh := MigrateLegacyFormat(RawWorkingHours{"segunda": tt.day})
			assert.Equal(t, tt.want, wh[time.Monday])
			assert.Len(t, wh, 7)
		})
	}
}

func TestMigrateLegacyFormat_Idempotent(t *testing.T) {
	inputs := []RawWorkingHours{
		{
			"segunda": {Active: true, Start: "08:00", End: "18:00"},
			"terca":   {Active: true, Start: "09:00", End: "12:00"},
			"domingo": {Active: false},
		},
		{
			"quarta": {Active: true, Shifts: []RawShift{{"08:00", "10:00"}, {"10:00", "12:00"}}},
			"sabado": {Active: true, Shifts: []RawShift{}},
		},
		nil,
	}

	for _, raw := range inputs {
		once := MigrateLegacyFormat(raw)
		twice := MigrateLegacyFormat(once.Raw())
		assert.Equal(t, once, twice)
	}
}

func TestMigrateLegacyFormat_UnknownKeysIgnored(t *testing.T) {
	wh := MigrateLegacyFormat(RawWorkingHours{
		"feriado": {Active: true, Start: "08:00", End: "12:00"},
		"Monday":  {Active: true, Start: "08:00", End: "12:00"},
	})
	assert.True(t, wh[time.Monday].Active)
	for day, ds := range wh {
		if day != time.Monday {
			assert.False(t, ds.Active)
		}
	}
}

func TestWorkingHours_JSON(t *testing.T) {
	var wh WorkingHours
	err := json.Unmarshal([]byte(`{
		"segunda": {"active": true, "start": "08:00", "end": "18:00"},
		"sexta": {"active": true, "shifts": [{"start": "09:00", "end": "11:00"}]}
	}`), &wh)
	require.NoError(t, err)
	assert.Len(t, wh[time.Monday].Shifts, 2)
	assert.Equal(t, []Shift{shift("09:00", "11:00")}, wh[time.Friday].Shifts)

	out, err := json.Marshal(wh)
	require.NoError(t, err)

	var back WorkingHours
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, wh, back)
}

func TestWorkingHours_Validate(t *testing.T) {
	tests := []struct {
		name    string
		wh      WorkingHours
		wantErr bool
	}{
		{"valid", WorkingHours{time.Monday: {Active: true, Shifts: []Shift{shift("08:00", "12:00"), shift("13:00", "17:00")}}}, false},
		{"closed day ignored", WorkingHours{time.Sunday: {Active: false, Shifts: []Shift{shift("12:00", "08:00")}}}, false},
		{"start after end", WorkingHours{time.Monday: {Active: true, Shifts: []Shift{shift("12:00", "08:00")}}}, true},
		{"zero length", WorkingHours{time.Monday: {Active: true, Shifts: []Shift{shift("08:00", "08:00")}}}, true},
		{"overlapping", WorkingHours{time.Monday: {Active: true, Shifts: []Shift{shift("13:00", "17:00"), shift("08:00", "13:30")}}}, true},
		{"active without shifts", WorkingHours{time.Monday: {Active: true}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.wh.Validate()
			if tt.wantErr {
				assert.True(t, IsValidation(err), "expected validation error, got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseRawWorkingHours(t *testing.T) {
	raw, err := ParseRawWorkingHours(nil)
	require.NoError(t, err)
	assert.Nil(t, raw)

	_, err = ParseRawWorkingHours([]byte(`{"segunda": 1}`))
	assert.Error(t, err)
}
