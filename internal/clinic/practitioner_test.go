package clinic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wolfman30/vetclinic-platform/internal/caltime"
)

func TestWeeklyScheduleContains(t *testing.T) {
	morning := caltime.MustWindow("08:00", "12:00")
	s := WeeklySchedule{PractitionerID: "p1", Weekday: time.Monday, Working: true, Morning: &morning}

	assert.True(t, s.Contains(caltime.MustParseClock("08:00")))
	assert.False(t, s.Contains(caltime.MustParseClock("12:00")))
	assert.False(t, s.Contains(caltime.MustParseClock("14:00")))

	s.Working = false
	assert.False(t, s.Contains(caltime.MustParseClock("09:00")))
}

func TestAbsenceCoversInclusiveRange(t *testing.T) {
	a := Absence{
		PractitionerID: "p1",
		Start:          caltime.MustParseDate("2025-04-10"),
		End:            caltime.MustParseDate("2025-04-12"),
		Type:           AbsenceVacation,
	}
	assert.False(t, a.Covers(caltime.MustParseDate("2025-04-09")))
	assert.True(t, a.Covers(caltime.MustParseDate("2025-04-10")))
	assert.True(t, a.Covers(caltime.MustParseDate("2025-04-12")))
	assert.False(t, a.Covers(caltime.MustParseDate("2025-04-13")))
}

func TestRecurringBlock(t *testing.T) {
	monday := caltime.MustParseDate("2025-04-14")
	from := caltime.MustParseDate("2025-04-01")
	until := caltime.MustParseDate("2025-04-30")

	meeting := RecurringBlock{
		ID:          "b1",
		Weekday:     time.Monday,
		Window:      caltime.MustWindow("12:00", "13:00"),
		ActiveFrom:  &from,
		ActiveUntil: &until,
		Active:      true,
	}

	tests := []struct {
		name         string
		block        RecurringBlock
		practitioner string
		date         caltime.Date
		clock        string
		want         bool
	}{
		{"clinic wide inside window", meeting, "p1", monday, "12:00", true},
		{"end is exclusive", meeting, "p1", monday, "13:00", false},
		{"other weekday", meeting, "p1", monday.AddDays(1), "12:00", false},
		{"before active range", meeting, "p1", caltime.MustParseDate("2025-03-31"), "12:00", false},
		{"after active range", meeting, "p1", caltime.MustParseDate("2025-05-05"), "12:00", false},
		{"inactive", func() RecurringBlock { b := meeting; b.Active = false; return b }(), "p1", monday, "12:00", false},
		{"scoped to other practitioner", func() RecurringBlock { b := meeting; b.PractitionerID = "p2"; return b }(), "p1", monday, "12:00", false},
		{"scoped to same practitioner", func() RecurringBlock { b := meeting; b.PractitionerID = "p1"; return b }(), "p1", monday, "12:30", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.block.Blocks(tt.practitioner, tt.date, caltime.MustParseClock(tt.clock))
			assert.Equal(t, tt.want, got)
		})
	}
}
