/*
shift.go - Shift status machine

PURPOSE:
  Encodes every legal shift transition as a row in a table keyed by
  (from status, trigger). Anything not in the table is rejected with an
  InvalidTransitionError. ApplyTransition is pure: it returns the new shift
  and never touches a store or the ledger.

STATE MACHINE:
  OPEN ──apply──→ PENDING ──approve──→ ASSIGNED ──submit timesheet──→ TIMESHEET SUBMITTED ──approve──→ PAID
   ↑                 │ reject              │ ↑                                │ reject
   └─────────────────┘                     │ └────────────────────────────────┘
   ↑                          request swap │ ↑ reject swap
   └────── approve swap ─── PENDING SWAP ←─┘─┘

  assign: OPEN or PENDING → ASSIGNED (manager picks the doctor directly)

  COMPLETED exists only in imported data. No trigger produces it and no
  trigger leaves it.

SEE ALSO:
  - resolver.go: Maps approve/reject decisions onto these triggers
  - clearance.go: Payout amounts
*/
package rota

import (
	"fmt"
	"time"
)

// =============================================================================
// TRIGGERS
// =============================================================================

type Trigger string

const (
	TriggerApply              Trigger = "apply"
	TriggerApproveApplication Trigger = "approve application"
	TriggerRejectApplication  Trigger = "reject application"
	TriggerAssign             Trigger = "assign"
	TriggerSubmitTimesheet    Trigger = "submit timesheet"
	TriggerApproveTimesheet   Trigger = "approve timesheet"
	TriggerRejectTimesheet    Trigger = "reject timesheet"
	TriggerRequestSwap        Trigger = "request swap"
	TriggerApproveSwap        Trigger = "approve swap"
	TriggerRejectSwap         Trigger = "reject swap"
)

// ManagerOnly reports whether the trigger requires a manager role.
func (t Trigger) ManagerOnly() bool {
	switch t {
	case TriggerApply, TriggerSubmitTimesheet, TriggerRequestSwap:
		return false
	}
	return true
}

// =============================================================================
// TRANSITION TABLE
// =============================================================================

type transitionKey struct {
	From    ShiftStatus
	Trigger Trigger
}

var transitions = map[transitionKey]ShiftStatus{
	{StatusOpen, TriggerApply}:                          StatusPendingApproval,
	{StatusPendingApproval, TriggerApproveApplication}:  StatusAssigned,
	{StatusPendingApproval, TriggerRejectApplication}:   StatusOpen,
	{StatusOpen, TriggerAssign}:                         StatusAssigned,
	{StatusPendingApproval, TriggerAssign}:              StatusAssigned,
	{StatusAssigned, TriggerSubmitTimesheet}:            StatusTimesheetSubmitted,
	{StatusTimesheetSubmitted, TriggerApproveTimesheet}: StatusPaid,
	{StatusTimesheetSubmitted, TriggerRejectTimesheet}:  StatusAssigned,
	{StatusAssigned, TriggerRequestSwap}:                StatusPendingSwap,
	{StatusPendingSwap, TriggerApproveSwap}:             StatusOpen,
	{StatusPendingSwap, TriggerRejectSwap}:              StatusAssigned,
}

// NextStatus looks up the table. ok is false for illegal transitions.
func NextStatus(from ShiftStatus, trig Trigger) (ShiftStatus, bool) {
	to, ok := transitions[transitionKey{From: from, Trigger: trig}]
	if !ok || to == StatusCompleted {
		return "", false
	}
	return to, true
}

// decisionTrigger maps a manager approve/reject decision onto the trigger
// implied by the shift's current status.
func decisionTrigger(status ShiftStatus, approve bool) (Trigger, bool) {
	switch status {
	case StatusPendingApproval:
		if approve {
			return TriggerApproveApplication, true
		}
		return TriggerRejectApplication, true
	case StatusTimesheetSubmitted:
		if approve {
			return TriggerApproveTimesheet, true
		}
		return TriggerRejectTimesheet, true
	case StatusPendingSwap:
		if approve {
			return TriggerApproveSwap, true
		}
		return TriggerRejectSwap, true
	}
	return "", false
}

// =============================================================================
// APPLY
// =============================================================================

// TransitionInput carries the data some triggers need.
type TransitionInput struct {
	DoctorID  string     // apply, assign
	Timesheet *Timesheet // submit timesheet
	At        time.Time  // timesheet submission time
}

// ApplyTransition returns s moved through trig, with side effects applied to
// the copy. s itself is never modified.
func ApplyTransition(s Shift, trig Trigger, in TransitionInput) (Shift, error) {
	to, ok := NextStatus(s.Status, trig)
	if !ok {
		return s, &InvalidTransitionError{Entity: "shift", ID: s.ID, From: string(s.Status), Trigger: string(trig)}
	}

	next := s
	switch trig {
	case TriggerApply:
		if in.DoctorID == "" {
			return s, &ValidationError{Kind: ErrInvalidShift, Reason: "applicant is required"}
		}
		next.ApplicantID = in.DoctorID
	case TriggerApproveApplication:
		if next.AssignedDoctorID == "" {
			next.AssignedDoctorID = next.ApplicantID
		}
		next.ApplicantID = ""
		if next.AssignedDoctorID == "" {
			return s, &ValidationError{Kind: ErrInvalidShift, Reason: "no applicant to approve"}
		}
	case TriggerRejectApplication:
		next.ApplicantID = ""
	case TriggerAssign:
		if in.DoctorID == "" {
			return s, &ValidationError{Kind: ErrInvalidShift, Reason: "doctor is required"}
		}
		next.AssignedDoctorID = in.DoctorID
		next.ApplicantID = ""
	case TriggerSubmitTimesheet:
		if in.Timesheet == nil {
			return s, &ValidationError{Kind: ErrInvalidShift, Reason: "timesheet is required"}
		}
		ts := *in.Timesheet
		if ts.SubmittedAt.IsZero() {
			ts.SubmittedAt = in.At.UTC()
		}
		next.Timesheet = &ts
	case TriggerRejectTimesheet:
		next.Timesheet = nil
	case TriggerApproveSwap:
		next.AssignedDoctorID = ""
	}
	next.Status = to

	if err := CheckInvariants(next); err != nil {
		return s, err
	}
	return next, nil
}

// CheckInvariants verifies the assignee and timesheet rules for s.Status.
func CheckInvariants(s Shift) error {
	if !s.Status.Valid() {
		return &ValidationError{Kind: ErrInvalidShift, Reason: fmt.Sprintf("unknown status %q", s.Status)}
	}
	if s.Status.HasAssignee() != (s.AssignedDoctorID != "") {
		return &ValidationError{Kind: ErrInvalidShift, Reason: fmt.Sprintf("status %q with assignedDoctorId %q", s.Status, s.AssignedDoctorID)}
	}
	if s.Status.HasTimesheet() != (s.Timesheet != nil) {
		return &ValidationError{Kind: ErrInvalidShift, Reason: fmt.Sprintf("status %q with timesheet present=%t", s.Status, s.Timesheet != nil)}
	}
	if s.ApplicantID != "" && s.Status != StatusPendingApproval {
		return &ValidationError{Kind: ErrInvalidShift, Reason: "applicant outside pending approval"}
	}
	return nil
}

// ValidateNew checks a shift posted by a manager before it is stored.
func ValidateNew(s Shift) error {
	switch {
	case s.CenterName == "":
		return &ValidationError{Kind: ErrInvalidShift, Reason: "centerName is required"}
	case s.Date.IsZero():
		return &ValidationError{Kind: ErrInvalidShift, Reason: "date is required"}
	case s.Rate != nil && s.Rate.IsNegative():
		return &ValidationError{Kind: ErrInvalidShift, Reason: "rate must not be negative"}
	case s.HospitalRating != nil && (*s.HospitalRating < 1 || *s.HospitalRating > 5):
		return &ValidationError{Kind: ErrInvalidShift, Reason: "hospitalRating must be 1-5"}
	}
	return CheckInvariants(s)
}
