package rota_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rota-engine/generic"
	"github.com/warp/rota-engine/rota"
)

func leave(doctor string, status rota.LeaveStatus, start, end string) rota.LeaveRequest {
	return rota.LeaveRequest{
		ID:        "lr-" + doctor + "-" + start,
		DoctorID:  doctor,
		StartDate: generic.MustParseDate(start),
		EndDate:   generic.MustParseDate(end),
		Status:    status,
		Type:      rota.LeaveAnnual,
	}
}

func TestResolveLeave_PendingOnly(t *testing.T) {
	at := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	pending := leave("d1", rota.LeavePending, "2025-03-10", "2025-03-15")

	approved, err := rota.ResolveLeave(pending, true, "u1", at)
	require.NoError(t, err)
	assert.Equal(t, rota.LeaveApproved, approved.Status)
	assert.Equal(t, "u1", approved.DecidedBy)
	require.NotNil(t, approved.DecidedAt)
	assert.Equal(t, at, *approved.DecidedAt)

	rejected, err := rota.ResolveLeave(pending, false, "u1", at)
	require.NoError(t, err)
	assert.Equal(t, rota.LeaveRejected, rejected.Status)

	// Terminal states stay terminal
	_, err = rota.ResolveLeave(approved, false, "u1", at)
	assert.ErrorIs(t, err, rota.ErrInvalidTransition)
	_, err = rota.ResolveLeave(rejected, true, "u1", at)
	assert.ErrorIs(t, err, rota.ErrInvalidTransition)
}

func TestLeaveRequest_Covers_InclusiveBounds(t *testing.T) {
	// GIVEN: Leave from 2025-03-10 to 2025-03-15
	// THEN: 10th and 15th are covered, 9th and 16th are not

	l := leave("d1", rota.LeaveApproved, "2025-03-10", "2025-03-15")

	assert.False(t, l.Covers(generic.MustParseDate("2025-03-09")))
	assert.True(t, l.Covers(generic.MustParseDate("2025-03-10")))
	assert.True(t, l.Covers(generic.MustParseDate("2025-03-12")))
	assert.True(t, l.Covers(generic.MustParseDate("2025-03-15")))
	assert.False(t, l.Covers(generic.MustParseDate("2025-03-16")))
}

func TestValidateLeave(t *testing.T) {
	l := leave("d1", rota.LeavePending, "2025-03-10", "2025-03-15")
	l.Type = ""
	require.NoError(t, rota.ValidateLeave(&l))
	assert.Equal(t, rota.LeaveAnnual, l.Type)

	backwards := leave("d1", rota.LeavePending, "2025-03-15", "2025-03-10")
	assert.ErrorIs(t, rota.ValidateLeave(&backwards), rota.ErrInvalidLeave)

	single := leave("d1", rota.LeavePending, "2025-03-10", "2025-03-10")
	assert.NoError(t, rota.ValidateLeave(&single))

	noDoctor := leave("", rota.LeavePending, "2025-03-10", "2025-03-15")
	assert.ErrorIs(t, rota.ValidateLeave(&noDoctor), rota.ErrInvalidLeave)
}

func TestApprovedLeaveOn_Visibility(t *testing.T) {
	leaves := []rota.LeaveRequest{
		leave("d1", rota.LeavePending, "2025-03-01", "2025-03-31"),
		leave("d1", rota.LeaveApproved, "2025-03-10", "2025-03-15"),
	}
	day := generic.MustParseDate("2025-03-12")

	_, ok := rota.ApprovedLeaveOn(leaves, day, rota.Actor{ID: "d1", Role: rota.RoleDoctor})
	assert.True(t, ok, "own leave")

	_, ok = rota.ApprovedLeaveOn(leaves, day, rota.Actor{ID: "d2", Role: rota.RoleDoctor})
	assert.False(t, ok, "another doctor's leave is hidden")

	for _, role := range []rota.Role{rota.RoleRotaManager, rota.RoleCenterAdmin} {
		got, ok := rota.ApprovedLeaveOn(leaves, day, rota.Actor{ID: "u1", Role: role})
		assert.True(t, ok, role)
		assert.Equal(t, rota.LeaveApproved, got.Status)
	}

	_, ok = rota.ApprovedLeaveOn(leaves, generic.MustParseDate("2025-03-20"), rota.Actor{ID: "d1", Role: rota.RoleDoctor})
	assert.False(t, ok, "pending leave never blocks a day")
}
