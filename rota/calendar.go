/*
calendar.go - Month grid builder

PURPOSE:
  Derives a 7-column month grid from the shift and leave collections.
  Pure: the same input always yields the same grid. Nothing is cached.

LAYOUT:
  Leading blank cells fill the days of the first week before the 1st,
  counted from FirstWeekday (Sunday unless told otherwise, or when out
  of range). Exactly
  DaysInMonth populated cells follow. No trailing blanks.

    March 2025, Sunday first (the 1st is a Saturday → 6 blanks)
    [ ][ ][ ][ ][ ][ ][1]
    [2][3][4][5][6][7][8] ...

PER DAY:
  - Shifts whose date equals the cell date
  - OnLeave when an approved leave visible to the actor covers the day;
    the day's shifts are then not listed
  - Conflict when the actor is assigned to more than one shift that day
*/
package rota

import (
	"time"

	"github.com/samber/lo"
	"github.com/warp/rota-engine/generic"
)

type CalendarInput struct {
	Year         int
	Month        time.Month
	Shifts       []Shift
	Leaves       []LeaveRequest
	Actor        Actor
	FirstWeekday time.Weekday
}

type DayCell struct {
	Blank    bool          `json:"blank"`
	Day      int           `json:"day,omitempty"`
	Date     string        `json:"date,omitempty"`
	Shifts   []Shift       `json:"shifts,omitempty"`
	OnLeave  bool          `json:"onLeave,omitempty"`
	Leave    *LeaveRequest `json:"leave,omitempty"`
	Conflict bool          `json:"conflict,omitempty"`
}

type Grid struct {
	Year          int        `json:"year"`
	Month         time.Month `json:"month"`
	LeadingBlanks int        `json:"leadingBlanks"`
	Cells         []DayCell  `json:"cells"`
}

// BuildMonth lays out the month described by in.
func BuildMonth(in CalendarInput) Grid {
	first := generic.StartOfMonth(in.Year, in.Month)
	days := generic.DaysInMonth(in.Year, in.Month)
	weekStart := in.FirstWeekday
	if weekStart < time.Sunday || weekStart > time.Saturday {
		weekStart = time.Sunday
	}
	blanks := (int(first.Weekday()) - int(weekStart) + 7) % 7

	grid := Grid{
		Year:          in.Year,
		Month:         in.Month,
		LeadingBlanks: blanks,
		Cells:         make([]DayCell, 0, blanks+days),
	}
	for i := 0; i < blanks; i++ {
		grid.Cells = append(grid.Cells, DayCell{Blank: true})
	}

	byDate := lo.GroupBy(in.Shifts, func(s Shift) string { return s.Date.String() })

	for day := 1; day <= days; day++ {
		date := generic.NewDate(in.Year, in.Month, day)
		key := date.String()
		cell := DayCell{Day: day, Date: key}

		if leave, ok := ApprovedLeaveOn(in.Leaves, date, in.Actor); ok {
			cell.OnLeave = true
			cell.Leave = &leave
			grid.Cells = append(grid.Cells, cell)
			continue
		}

		cell.Shifts = byDate[key]
		if in.Actor.ID != "" {
			mine := lo.CountBy(cell.Shifts, func(s Shift) bool { return s.AssignedDoctorID == in.Actor.ID })
			cell.Conflict = mine > 1
		}
		grid.Cells = append(grid.Cells, cell)
	}
	return grid
}

// Weeks splits the cells into rows of seven.
func (g Grid) Weeks() [][]DayCell {
	return lo.Chunk(g.Cells, 7)
}

// Populated returns only the non-blank cells.
func (g Grid) Populated() []DayCell {
	return lo.Filter(g.Cells, func(c DayCell, _ int) bool { return !c.Blank })
}

// NextMonth steps forward one month, rolling into the next year after December.
func NextMonth(year int, month time.Month) (int, time.Month) {
	if month == time.December {
		return year + 1, time.January
	}
	return year, month + 1
}

// PrevMonth steps back one month, rolling into the previous year before January.
func PrevMonth(year int, month time.Month) (int, time.Month) {
	if month == time.January {
		return year - 1, time.December
	}
	return year, month - 1
}
