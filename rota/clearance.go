/*
clearance.go - Read models derived from the shift collection

PURPOSE:
  Pure computations over shifts: payout per shift, pending clearance,
  marketplace and urgent listings, manager inbox and dashboard stats.
  None of these are persisted. The wallet balance is persisted ledger
  state and lives in generic.Ledger; pending clearance is NOT part of it.
*/
package rota

import (
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/warp/rota-engine/generic"
)

const (
	// PaidHoursPerShift is the number of hours paid for every shift.
	PaidHoursPerShift = 8

	// FlatShiftPayout is paid when a shift has no hourly rate.
	FlatShiftPayout = 800
)

// ShiftPayout returns rate*8, or the flat payout when the shift has no rate.
func ShiftPayout(s Shift) generic.Amount {
	if s.Rate == nil {
		return generic.NewAmountFromInt(FlatShiftPayout, generic.CurrencyUSD)
	}
	amount := s.Rate.Mul(decimal.NewFromInt(PaidHoursPerShift))
	if amount.Currency == "" {
		amount.Currency = generic.DefaultCurrency
	}
	return amount
}

// PendingClearance sums the payout of every shift awaiting timesheet approval.
func PendingClearance(shifts []Shift) generic.Amount {
	total := generic.NewAmountFromInt(0, generic.CurrencyUSD)
	for _, s := range shifts {
		if s.Status == StatusTimesheetSubmitted {
			total = total.Add(ShiftPayout(s))
		}
	}
	return total
}

// PendingClearanceFor restricts PendingClearance to one doctor's shifts.
func PendingClearanceFor(shifts []Shift, doctorID string) generic.Amount {
	return PendingClearance(lo.Filter(shifts, func(s Shift, _ int) bool {
		return s.AssignedDoctorID == doctorID
	}))
}

// Marketplace lists OPEN shifts, soonest first.
func Marketplace(shifts []Shift) []Shift {
	open := lo.Filter(shifts, func(s Shift, _ int) bool { return s.Status == StatusOpen })
	sortByDate(open, func(s Shift) generic.Date { return s.Date })
	return open
}

// UrgentShifts lists OPEN shifts with a due date, earliest deadline first,
// capped at limit (0 means no cap).
func UrgentShifts(shifts []Shift, limit int) []Shift {
	urgent := lo.Filter(shifts, func(s Shift, _ int) bool {
		return s.Status == StatusOpen && s.DueDate != nil
	})
	sortByDate(urgent, func(s Shift) generic.Date { return *s.DueDate })
	if limit > 0 && len(urgent) > limit {
		urgent = urgent[:limit]
	}
	return urgent
}

// Overdue lists OPEN shifts whose due date is before today.
func Overdue(shifts []Shift, today generic.Date) []Shift {
	return lo.Filter(shifts, func(s Shift, _ int) bool {
		return s.Status == StatusOpen && s.DueDate != nil && s.DueDate.Before(today)
	})
}

// AwaitingManager lists shifts with a pending manager decision.
func AwaitingManager(shifts []Shift) []Shift {
	return lo.Filter(shifts, func(s Shift, _ int) bool { return s.Status.AwaitsManager() })
}

// FilterByStatus keeps shifts whose status is one of statuses. No statuses
// keeps everything.
func FilterByStatus(shifts []Shift, statuses ...ShiftStatus) []Shift {
	if len(statuses) == 0 {
		return shifts
	}
	return lo.Filter(shifts, func(s Shift, _ int) bool { return lo.Contains(statuses, s.Status) })
}

func sortByDate(shifts []Shift, key func(Shift) generic.Date) {
	sort.SliceStable(shifts, func(i, j int) bool { return key(shifts[i]).Before(key(shifts[j])) })
}

// =============================================================================
// DASHBOARD STATS
// =============================================================================

type Stats struct {
	Total            int                 `json:"total"`
	Open             int                 `json:"open"`
	Assigned         int                 `json:"assigned"`
	AwaitingApproval int                 `json:"awaitingApproval"`
	ByStatus         map[ShiftStatus]int `json:"byStatus"`
	ByType           map[ShiftType]int   `json:"byType"`
	PendingClearance generic.Amount      `json:"pendingClearance"`
}

// ComputeStats counts shifts for the dashboard. Assigned covers every
// status that has an assignee apart from a pending swap.
func ComputeStats(shifts []Shift) Stats {
	st := Stats{
		Total:            len(shifts),
		ByStatus:         lo.CountValuesBy(shifts, func(s Shift) ShiftStatus { return s.Status }),
		ByType:           lo.CountValuesBy(shifts, func(s Shift) ShiftType { return s.Type }),
		PendingClearance: PendingClearance(shifts),
	}
	st.Open = st.ByStatus[StatusOpen]
	st.Assigned = st.ByStatus[StatusAssigned] + st.ByStatus[StatusCompleted] +
		st.ByStatus[StatusTimesheetSubmitted] + st.ByStatus[StatusPaid]
	st.AwaitingApproval = len(AwaitingManager(shifts))
	return st
}

// =============================================================================
// SEARCH
// =============================================================================

type SearchResult struct {
	Doctors []Doctor `json:"doctors"`
	Shifts  []Shift  `json:"shifts"`
}

// Search matches doctors by name, specialty or city and shifts by center,
// specialty or location, case-insensitively.
func Search(query string, doctors []Doctor, shifts []Shift) SearchResult {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return SearchResult{Doctors: []Doctor{}, Shifts: []Shift{}}
	}
	has := func(fields ...string) bool {
		return lo.SomeBy(fields, func(f string) bool { return strings.Contains(strings.ToLower(f), q) })
	}
	return SearchResult{
		Doctors: lo.Filter(doctors, func(d Doctor, _ int) bool { return has(d.Name, d.Specialty, d.City) }),
		Shifts:  lo.Filter(shifts, func(s Shift, _ int) bool { return has(s.CenterName, s.SpecialtyRequired, s.Location) }),
	}
}
