package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"agendafacil/internal/model"
)

var (
	jan10 = time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	jan11 = time.Date(2025, 1, 11, 0, 0, 0, 0, time.UTC)
)

func tod(s string) model.TimeOfDay { return model.MustParseTimeOfDay(s) }

func block(date time.Time, start, end string) model.Block {
	return model.Block{BusinessID: "biz", Date: date, Start: tod(start), End: tod(end)}
}

func TestIsBlocked(t *testing.T) {
	blocks := []model.Block{
		block(jan10, "13:30", "14:30"),
		block(jan11, "09:00", "18:00"),
	}

	tests := []struct {
		name       string
		date       time.Time
		start, end string
		expected   bool
	}{
		{"slot inside block", jan10, "14:00", "14:30", true},
		{"slot straddles block start", jan10, "13:00", "14:00", true},
		{"slot covers block", jan10, "13:00", "15:00", true},
		{"ends at block start", jan10, "12:30", "13:30", false},
		{"starts at block end", jan10, "14:30", "15:30", false},
		{"different date", jan10.AddDate(0, 0, 7), "14:00", "15:00", false},
		{"all day block on other date", jan11, "10:00", "11:00", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsBlocked(blocks, tt.date, tod(tt.start), tod(tt.end)))
		})
	}
}

func TestIsBlocked_NoBlocks(t *testing.T) {
	assert.False(t, IsBlocked(nil, jan10, tod("09:00"), tod("10:00")))
}

func TestBlockingBlock(t *testing.T) {
	blocks := []model.Block{block(jan10, "12:00", "13:00")}
	blocks[0].Description = "almoço"

	got := BlockingBlock(blocks, jan10, tod("11:30"), tod("12:30"))
	if assert.NotNil(t, got) {
		assert.Equal(t, "almoço", got.Description)
	}
	assert.Nil(t, BlockingBlock(blocks, jan10, tod("13:00"), tod("14:00")))
}
