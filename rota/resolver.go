/*
resolver.go - Approval Resolver

PURPOSE:
  One entry point for every manager approve/reject decision on a shift.
  The decision is mapped onto a trigger from the shift's CURRENT status,
  read inside the store transaction:

    Pending              approve → Assigned     reject → Open
    Timesheet Submitted  approve → Paid (+credit) reject → Assigned
    Pending Swap         approve → Open          reject → Assigned
    anything else        InvalidTransitionError

PAYMENT:
  The Paid transition credits ShiftPayout(shift) to the assigned doctor's
  wallet. The credit and the shift update share one store transaction:
  either both persist or neither does. The credit carries the idempotency
  key "shift-payment-<shiftID>", and approving a Paid shift is an invalid
  transition, so a shift can never be paid twice.
*/
package rota

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/warp/rota-engine/generic"
	"go.uber.org/zap"
)

// Resolution is the outcome of Resolve.
type Resolution struct {
	Shift   Shift                `json:"shift"`
	Payment *generic.Transaction `json:"payment,omitempty"`
	Message string               `json:"message"`
}

// PaymentIdempotencyKey is the ledger key used for a shift's payout credit.
func PaymentIdempotencyKey(shiftID string) string {
	return "shift-payment-" + shiftID
}

// Resolve approves or rejects whatever the shift is waiting on.
func (s *Service) Resolve(ctx context.Context, actor Actor, id string, approve bool) (Resolution, error) {
	var res Resolution
	var trig Trigger

	err := s.store.WithTx(ctx, func(st Store) error {
		current, err := st.GetShift(ctx, id)
		if err != nil {
			return err
		}
		var ok bool
		trig, ok = decisionTrigger(current.Status, approve)
		if !ok {
			return &InvalidTransitionError{Entity: "shift", ID: id, From: string(current.Status), Trigger: decisionName(approve)}
		}
		next, err := ApplyTransition(current, trig, TransitionInput{At: s.now()})
		if err != nil {
			return err
		}
		if err := authorize(actor, trig, current); err != nil {
			return err
		}
		if err := st.SaveShift(ctx, next); err != nil {
			return err
		}

		res = Resolution{Shift: next, Message: resolutionMessage(trig, next)}

		if trig == TriggerApproveTimesheet {
			tx, err := s.ledger(st).Credit(ctx, generic.Entry{
				OwnerID:        generic.OwnerID(next.AssignedDoctorID),
				Amount:         ShiftPayout(next),
				Description:    "Shift Payment - " + next.CenterName,
				Reference:      fmt.Sprintf("PAY-%04d", rand.Intn(10000)),
				IdempotencyKey: PaymentIdempotencyKey(next.ID),
			})
			if err != nil {
				return fmt.Errorf("credit shift payment: %w", err)
			}
			res.Payment = &tx
		}

		return s.notifyResolution(ctx, st, actor, current, res, approve)
	})
	if err != nil {
		s.logRejected(id, trig, actor, err)
		return Resolution{}, err
	}

	fields := []zap.Field{
		zap.String("shift_id", id),
		zap.String("trigger", string(trig)),
		zap.String("status", string(res.Shift.Status)),
		zap.String("actor_id", actor.ID),
	}
	if res.Payment != nil {
		fields = append(fields, zap.String("owner_id", string(res.Payment.OwnerID)), zap.String("amount", res.Payment.Amount.Value.String()))
	}
	s.log.Info("shift request resolved", fields...)
	return res, nil
}

func (s *Service) notifyResolution(ctx context.Context, st Store, actor Actor, before Shift, res Resolution, approve bool) error {
	// The doctor affected by the decision: the applicant or the assignee.
	doctor := before.AssignedDoctorID
	if doctor == "" {
		doctor = before.ApplicantID
	}

	if !approve {
		msg := fmt.Sprintf("Request for %s was rejected.", before.CenterName)
		if err := s.notify(ctx, st, actor.ID, "Request Rejected", msg, NotifyWarning, ""); err != nil {
			return err
		}
		return s.notify(ctx, st, doctor, "Request Rejected", msg, NotifyWarning, "")
	}

	if err := s.notify(ctx, st, actor.ID, "Request Approved", res.Message, NotifySuccess, "/schedule"); err != nil {
		return err
	}
	if err := s.notify(ctx, st, doctor, "Request Approved", res.Message, NotifySuccess, "/schedule"); err != nil {
		return err
	}
	if res.Payment != nil {
		msg := fmt.Sprintf("Payment of $%s for %s has been processed.", res.Payment.Amount.Value.StringFixed(2), before.CenterName)
		return s.notify(ctx, st, doctor, "Wallet Credit", msg, NotifySuccess, "/wallet")
	}
	return nil
}

func resolutionMessage(trig Trigger, next Shift) string {
	switch trig {
	case TriggerApproveApplication:
		return "Application approved for " + next.CenterName
	case TriggerApproveTimesheet:
		return "Timesheet approved and payment processed."
	case TriggerApproveSwap:
		return "Swap approved. Shift returned to marketplace."
	case TriggerRejectApplication:
		return "Application rejected. Shift returned to marketplace."
	case TriggerRejectTimesheet:
		return "Timesheet rejected. Shift returned to the assigned doctor for correction."
	case TriggerRejectSwap:
		return "Swap rejected. Doctor remains assigned."
	}
	return ""
}

func decisionName(approve bool) string {
	if approve {
		return "approve"
	}
	return "reject"
}
