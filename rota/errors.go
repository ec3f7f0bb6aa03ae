package rota

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrInvalidTransition is returned when a trigger is not legal from the
	// shift's or leave request's current status. State is left untouched.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrForbidden is returned when the actor's role or identity may not
	// perform the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrPaymentFailed is returned when the payment collaborator reports failure.
	ErrPaymentFailed = errors.New("payment failed")

	// ErrInvalidShift is returned when a shift fails validation on create/import.
	ErrInvalidShift = errors.New("invalid shift")

	// ErrInvalidLeave is returned when a leave request fails validation.
	ErrInvalidLeave = errors.New("invalid leave request")

	// ErrInvalidDoctor is returned when a doctor record fails validation.
	ErrInvalidDoctor = errors.New("invalid doctor")

	// ErrInvalidWithdrawal is returned when a withdrawal request is malformed.
	ErrInvalidWithdrawal = errors.New("invalid withdrawal")

	// ErrInvalidCredential is returned when a credential upload is incomplete.
	ErrInvalidCredential = errors.New("invalid credential")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// InvalidTransitionError names the entity, its status and the rejected trigger.
type InvalidTransitionError struct {
	Entity  string // "shift" or "leave"
	ID      string
	From    string
	Trigger string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s %s: cannot %s from %q", e.Entity, e.ID, e.Trigger, e.From)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// PaymentFailedError carries the collaborator's message.
type PaymentFailedError struct {
	Message string
}

func (e *PaymentFailedError) Error() string {
	if e.Message == "" {
		return "payment failed"
	}
	return "payment failed: " + e.Message
}

func (e *PaymentFailedError) Unwrap() error {
	return ErrPaymentFailed
}

// ValidationError wraps one of the Invalid* sentinels with a reason.
type ValidationError struct {
	Kind   error
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Kind.Error() + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error {
	return e.Kind
}

func forbidden(action string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, action)
}

// IsValidationError reports whether err came from validating caller input.
func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
