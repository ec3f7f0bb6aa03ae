package rota_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rota-engine/generic"
	"github.com/warp/rota-engine/rota"
)

func withRate(s rota.Shift, rate float64) rota.Shift {
	r := generic.USD(rate)
	s.Rate = &r
	return s
}

func withStatus(s rota.Shift, status rota.ShiftStatus) rota.Shift {
	s.Status = status
	if status.HasAssignee() && s.AssignedDoctorID == "" {
		s.AssignedDoctorID = "d1"
	}
	if status.HasTimesheet() {
		s.Timesheet = &rota.Timesheet{ActualStartTime: "08:00", ActualEndTime: "16:00"}
	}
	return s
}

func TestShiftPayout(t *testing.T) {
	s := onDay("s1", "2025-03-10", "d1")

	assert.True(t, rota.ShiftPayout(withRate(s, 150)).Equal(generic.USD(1200)))
	assert.True(t, rota.ShiftPayout(withRate(s, 87.5)).Equal(generic.USD(700)))
	assert.True(t, rota.ShiftPayout(s).Equal(generic.USD(800)), "flat payout without a rate")
}

func TestPendingClearance_OnlyTimesheetSubmitted(t *testing.T) {
	// GIVEN: Shifts in several statuses
	// THEN: Only Timesheet Submitted payouts count; Paid is already in the wallet

	base := onDay("s1", "2025-03-10", "")
	shifts := []rota.Shift{
		withStatus(withRate(base, 150), rota.StatusTimesheetSubmitted), // 1200
		withStatus(base, rota.StatusTimesheetSubmitted),                // 800
		withStatus(withRate(base, 100), rota.StatusPaid),
		withStatus(withRate(base, 100), rota.StatusAssigned),
		withRate(base, 100),
	}

	assert.True(t, rota.PendingClearance(shifts).Equal(generic.USD(2000)))
	assert.True(t, rota.PendingClearance(nil).IsZero())

	other := withStatus(withRate(onDay("s9", "2025-03-11", "d2"), 50), rota.StatusTimesheetSubmitted)
	shifts = append(shifts, other)
	assert.True(t, rota.PendingClearanceFor(shifts, "d2").Equal(generic.USD(400)))
	assert.True(t, rota.PendingClearanceFor(shifts, "d1").Equal(generic.USD(2000)))
}

func TestMarketplaceAndUrgent(t *testing.T) {
	due := func(s rota.Shift, d string) rota.Shift {
		date := generic.MustParseDate(d)
		s.DueDate = &date
		return s
	}
	shifts := []rota.Shift{
		due(onDay("s3", "2025-03-20", ""), "2025-03-05"),
		onDay("s1", "2025-03-12", ""),
		due(onDay("s2", "2025-03-15", ""), "2025-03-03"),
		due(onDay("s4", "2025-03-11", "d1"), "2025-03-01"),
	}

	market := rota.Marketplace(shifts)
	require.Len(t, market, 3)
	assert.Equal(t, []string{"s1", "s2", "s3"}, []string{market[0].ID, market[1].ID, market[2].ID})

	urgent := rota.UrgentShifts(shifts, 0)
	require.Len(t, urgent, 2)
	assert.Equal(t, "s2", urgent[0].ID)
	assert.Equal(t, "s3", urgent[1].ID)
	assert.Len(t, rota.UrgentShifts(shifts, 1), 1)

	overdue := rota.Overdue(shifts, generic.MustParseDate("2025-03-04"))
	require.Len(t, overdue, 1)
	assert.Equal(t, "s2", overdue[0].ID)
}

func TestComputeStats(t *testing.T) {
	base := onDay("s1", "2025-03-10", "")
	shifts := []rota.Shift{
		base,
		withStatus(base, rota.StatusPendingApproval),
		withStatus(base, rota.StatusAssigned),
		withStatus(base, rota.StatusPendingSwap),
		withStatus(withRate(base, 100), rota.StatusTimesheetSubmitted),
		withStatus(base, rota.StatusPaid),
	}
	shifts[1].ApplicantID = "d3"

	st := rota.ComputeStats(shifts)
	assert.Equal(t, 6, st.Total)
	assert.Equal(t, 1, st.Open)
	assert.Equal(t, 3, st.Assigned, "assigned + timesheet submitted + paid")
	assert.Equal(t, 3, st.AwaitingApproval)
	assert.Equal(t, 6, st.ByType[rota.ShiftMorning])
	assert.True(t, st.PendingClearance.Equal(generic.USD(800)))
}

func TestSearch(t *testing.T) {
	doctors := []rota.Doctor{
		{ID: "d1", Name: "Dr. Omar Khalid", Specialty: "Cardiology", City: "Riyadh"},
		{ID: "d2", Name: "Dr. Lina Saad", Specialty: "Pediatrics", City: "Jeddah"},
	}
	shifts := []rota.Shift{
		{ID: "s1", CenterName: "Jeddah Clinic", SpecialtyRequired: "Pediatrics"},
		{ID: "s2", CenterName: "Riyadh Central", SpecialtyRequired: "Cardiology"},
	}

	res := rota.Search("jeddah", doctors, shifts)
	require.Len(t, res.Doctors, 1)
	assert.Equal(t, "d2", res.Doctors[0].ID)
	require.Len(t, res.Shifts, 1)
	assert.Equal(t, "s1", res.Shifts[0].ID)

	empty := rota.Search("  ", doctors, shifts)
	assert.Empty(t, empty.Doctors)
	assert.Empty(t, empty.Shifts)
}
