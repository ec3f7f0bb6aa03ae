package rota_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rota-engine/generic"
	"github.com/warp/rota-engine/rota"
)

func onDay(id, date, doctor string) rota.Shift {
	s := rota.Shift{ID: id, CenterName: "Riyadh Central", Date: generic.MustParseDate(date), Type: rota.ShiftMorning, Status: rota.StatusOpen}
	if doctor != "" {
		s.Status = rota.StatusAssigned
		s.AssignedDoctorID = doctor
	}
	return s
}

func TestBuildMonth_LeadingBlanksAndDays(t *testing.T) {
	tests := []struct {
		name   string
		year   int
		month  time.Month
		first  time.Weekday
		blanks int
		days   int
	}{
		{"march 2025 starts saturday", 2025, time.March, time.Sunday, 6, 31},
		{"february 2024 leap year", 2024, time.February, time.Sunday, 4, 29},
		{"february 2025", 2025, time.February, time.Sunday, 6, 28},
		{"june 2025 starts sunday", 2025, time.June, time.Sunday, 0, 30},
		{"march 2025 monday first", 2025, time.March, time.Monday, 5, 31},
		{"march 2025 saturday first", 2025, time.March, time.Saturday, 0, 31},
		{"out of range falls back to sunday", 2025, time.March, time.Weekday(12), 6, 31},
		{"negative falls back to sunday", 2025, time.March, time.Weekday(-3), 6, 31},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grid := rota.BuildMonth(rota.CalendarInput{Year: tt.year, Month: tt.month, FirstWeekday: tt.first})

			assert.Equal(t, tt.blanks, grid.LeadingBlanks)
			assert.Len(t, grid.Cells, tt.blanks+tt.days)
			assert.Len(t, grid.Populated(), tt.days)
			for i := 0; i < tt.blanks; i++ {
				assert.True(t, grid.Cells[i].Blank)
			}
			assert.Equal(t, 1, grid.Cells[tt.blanks].Day)
			assert.Equal(t, tt.days, grid.Cells[len(grid.Cells)-1].Day)
		})
	}
}

func TestLanguage_FirstWeekday(t *testing.T) {
	assert.Equal(t, time.Sunday, rota.LangEnglish.FirstWeekday())
	assert.Equal(t, time.Saturday, rota.LangArabic.FirstWeekday())
	assert.Equal(t, time.Monday, rota.LangSpanish.FirstWeekday())
	assert.Equal(t, time.Monday, rota.LangFrench.FirstWeekday())
	assert.Equal(t, time.Sunday, rota.Language("").FirstWeekday())
}

func TestBuildMonth_ShiftsLandOnTheirDay(t *testing.T) {
	shifts := []rota.Shift{
		onDay("s1", "2025-03-10", ""),
		onDay("s2", "2025-03-10", "d2"),
		onDay("s3", "2025-04-10", ""),
	}
	grid := rota.BuildMonth(rota.CalendarInput{Year: 2025, Month: time.March, Shifts: shifts})

	cell := grid.Populated()[9]
	assert.Equal(t, "2025-03-10", cell.Date)
	assert.Len(t, cell.Shifts, 2)
	assert.Empty(t, grid.Populated()[10].Shifts)

	total := 0
	for _, c := range grid.Cells {
		total += len(c.Shifts)
	}
	assert.Equal(t, 2, total, "April shift is not in March")
}

func TestBuildMonth_ConflictWhenActorDoubleBooked(t *testing.T) {
	// GIVEN: d1 assigned twice on the 12th, once on the 13th
	// THEN: only the 12th is a conflict for d1, and nothing is for d2

	shifts := []rota.Shift{
		onDay("s1", "2025-03-12", "d1"),
		onDay("s2", "2025-03-12", "d1"),
		onDay("s3", "2025-03-13", "d1"),
		onDay("s4", "2025-03-13", "d2"),
	}
	grid := rota.BuildMonth(rota.CalendarInput{Year: 2025, Month: time.March, Shifts: shifts, Actor: rota.Actor{ID: "d1", Role: rota.RoleDoctor}})
	days := grid.Populated()
	assert.True(t, days[11].Conflict)
	assert.False(t, days[12].Conflict)

	grid = rota.BuildMonth(rota.CalendarInput{Year: 2025, Month: time.March, Shifts: shifts, Actor: rota.Actor{ID: "d2", Role: rota.RoleDoctor}})
	for _, c := range grid.Populated() {
		assert.False(t, c.Conflict, c.Date)
	}
}

func TestBuildMonth_ApprovedLeaveOverlaysDays(t *testing.T) {
	// GIVEN: Approved leave for d1 from the 10th to the 15th and a shift on the 12th
	// WHEN: d1 views March
	// THEN: 10..15 are on leave and the 12th lists no shifts

	shifts := []rota.Shift{onDay("s1", "2025-03-12", "d1")}
	leaves := []rota.LeaveRequest{leave("d1", rota.LeaveApproved, "2025-03-10", "2025-03-15")}

	grid := rota.BuildMonth(rota.CalendarInput{Year: 2025, Month: time.March, Shifts: shifts, Leaves: leaves, Actor: rota.Actor{ID: "d1", Role: rota.RoleDoctor}})
	days := grid.Populated()

	assert.False(t, days[8].OnLeave, "9th")
	for d := 10; d <= 15; d++ {
		assert.True(t, days[d-1].OnLeave, "day %d", d)
		require.NotNil(t, days[d-1].Leave)
	}
	assert.False(t, days[15].OnLeave, "16th")
	assert.Empty(t, days[11].Shifts)

	// Another doctor sees the shift and no leave
	grid = rota.BuildMonth(rota.CalendarInput{Year: 2025, Month: time.March, Shifts: shifts, Leaves: leaves, Actor: rota.Actor{ID: "d2", Role: rota.RoleDoctor}})
	assert.False(t, grid.Populated()[11].OnLeave)
	assert.Len(t, grid.Populated()[11].Shifts, 1)
}

func TestBuildMonth_IsPure(t *testing.T) {
	in := rota.CalendarInput{
		Year:   2025,
		Month:  time.March,
		Shifts: []rota.Shift{onDay("s1", "2025-03-12", "d1"), onDay("s2", "2025-03-12", "d1")},
		Leaves: []rota.LeaveRequest{leave("d1", rota.LeaveApproved, "2025-03-20", "2025-03-21")},
		Actor:  rota.Actor{ID: "d1", Role: rota.RoleDoctor},
	}
	assert.Equal(t, rota.BuildMonth(in), rota.BuildMonth(in))
}

func TestMonthNavigation_YearBoundary(t *testing.T) {
	y, m := rota.NextMonth(2025, time.December)
	assert.Equal(t, 2026, y)
	assert.Equal(t, time.January, m)

	y, m = rota.PrevMonth(2026, time.January)
	assert.Equal(t, 2025, y)
	assert.Equal(t, time.December, m)

	// January 2026 starts on a Thursday
	grid := rota.BuildMonth(rota.CalendarInput{Year: 2026, Month: time.January})
	assert.Equal(t, 4, grid.LeadingBlanks)
	assert.Len(t, grid.Weeks(), 5)
	assert.Len(t, grid.Weeks()[0], 7)
}
