package rota

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/warp/rota-engine/generic"
	"go.uber.org/zap"
)

// =============================================================================
// LEAVE STATUS MACHINE - Pending → Approved | Rejected
// =============================================================================

// ResolveLeave returns l decided by a manager. Terminal states are final.
func ResolveLeave(l LeaveRequest, approve bool, decidedBy string, at time.Time) (LeaveRequest, error) {
	if l.Status != LeavePending {
		trig := "reject"
		if approve {
			trig = "approve"
		}
		return l, &InvalidTransitionError{Entity: "leave", ID: l.ID, From: string(l.Status), Trigger: trig}
	}
	next := l
	if approve {
		next.Status = LeaveApproved
	} else {
		next.Status = LeaveRejected
	}
	next.DecidedBy = decidedBy
	decided := at.UTC()
	next.DecidedAt = &decided
	return next, nil
}

// Covers reports whether d falls inside the leave's inclusive range.
func (l LeaveRequest) Covers(d generic.Date) bool {
	return l.Period().Contains(d)
}

// ValidateLeave checks a new leave request. Unknown types are accepted as
// free text; an empty type defaults to annual leave.
func ValidateLeave(l *LeaveRequest) error {
	if l.DoctorID == "" {
		return &ValidationError{Kind: ErrInvalidLeave, Reason: "doctorId is required"}
	}
	if l.StartDate.IsZero() || l.EndDate.IsZero() {
		return &ValidationError{Kind: ErrInvalidLeave, Reason: "startDate and endDate are required"}
	}
	if err := l.Period().Validate(); err != nil {
		return &ValidationError{Kind: ErrInvalidLeave, Reason: "endDate is before startDate"}
	}
	if strings.TrimSpace(string(l.Type)) == "" {
		l.Type = LeaveAnnual
	}
	return nil
}

// ApprovedLeaveOn returns the first approved leave covering d that is visible
// to actor: their own, or anyone's when actor is a manager.
func ApprovedLeaveOn(leaves []LeaveRequest, d generic.Date, actor Actor) (LeaveRequest, bool) {
	return lo.Find(leaves, func(l LeaveRequest) bool {
		if l.Status != LeaveApproved || !l.Covers(d) {
			return false
		}
		return actor.IsManager() || l.DoctorID == actor.ID
	})
}

// =============================================================================
// SERVICE OPERATIONS
// =============================================================================

// RequestLeave files a Pending leave request for actor.
func (s *Service) RequestLeave(ctx context.Context, actor Actor, l LeaveRequest) (LeaveRequest, error) {
	if actor.ID == "" {
		return LeaveRequest{}, forbidden("actor is required")
	}
	l.ID = "lr-" + s.newID()
	l.DoctorID = actor.ID
	l.DoctorName = displayName(actor)
	l.Status = LeavePending
	l.DecidedBy = ""
	l.DecidedAt = nil
	if err := ValidateLeave(&l); err != nil {
		return LeaveRequest{}, err
	}

	err := s.store.WithTx(ctx, func(st Store) error {
		if err := st.SaveLeave(ctx, l); err != nil {
			return err
		}
		msg := "Time off request submitted for " + l.StartDate.String()
		if err := s.notify(ctx, st, actor.ID, "Leave Requested", msg, NotifyInfo, "/dashboard"); err != nil {
			return err
		}
		return s.notify(ctx, st, ManagersInbox, "Leave Requested", l.DoctorName+": "+msg, NotifyInfo, "/dashboard")
	})
	if err != nil {
		return LeaveRequest{}, err
	}
	s.log.Info("leave requested", zap.String("leave_id", l.ID), zap.String("doctor_id", l.DoctorID))
	return l, nil
}

// DecideLeave approves or rejects a Pending leave request.
func (s *Service) DecideLeave(ctx context.Context, actor Actor, id string, approve bool) (LeaveRequest, error) {
	if err := requireManager(actor, "decide leave"); err != nil {
		return LeaveRequest{}, err
	}
	var result LeaveRequest
	err := s.store.WithTx(ctx, func(st Store) error {
		current, err := st.GetLeave(ctx, id)
		if err != nil {
			return err
		}
		next, err := ResolveLeave(current, approve, actor.ID, s.now())
		if err != nil {
			return err
		}
		if err := st.SaveLeave(ctx, next); err != nil {
			return err
		}
		result = next

		title, typ, link := "Leave Rejected", NotifyWarning, ""
		msg := fmt.Sprintf("Request for %s rejected.", next.StartDate)
		if approve {
			title, typ, link = "Leave Approved", NotifySuccess, "/schedule"
			msg = fmt.Sprintf("%s is off from %s", next.DoctorName, next.StartDate)
		}
		if err := s.notify(ctx, st, actor.ID, title, msg, typ, link); err != nil {
			return err
		}
		return s.notify(ctx, st, next.DoctorID, title, msg, typ, link)
	})
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			s.log.Warn("leave decision rejected", zap.String("leave_id", id), zap.Bool("approve", approve), zap.Error(err))
		}
		return LeaveRequest{}, err
	}
	s.log.Info("leave decided", zap.String("leave_id", id), zap.String("status", string(result.Status)))
	return result, nil
}

func (s *Service) ListLeaves(ctx context.Context) ([]LeaveRequest, error) {
	return s.store.ListLeaves(ctx)
}
