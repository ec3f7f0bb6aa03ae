/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Ledger errors - Funds, sign and idempotency violations
  2. Validation errors - Malformed dates and periods
  3. Store errors - Missing records

USAGE:
    if errors.Is(err, generic.ErrInsufficientFunds) {
        // surface as a client error
    }

SEE ALSO:
  - ledger.go: Uses these errors
  - rota/errors.go: Domain errors (transitions, permissions, payments)
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDuplicateIdempotencyKey is returned when a transaction with the same
	// idempotency key already exists. Retries land here.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrInsufficientFunds is returned when a debit exceeds the wallet balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrNonPositiveAmount is returned when a credit or debit magnitude is <= 0.
	ErrNonPositiveAmount = errors.New("amount must be positive")

	// ErrSignMismatch is returned when a transaction type disagrees with its sign.
	ErrSignMismatch = errors.New("transaction type does not match amount sign")

	// ErrBalanceDrift is returned when the cached balance no longer equals the
	// sum of the transaction history.
	ErrBalanceDrift = errors.New("cached balance drifted from ledger")

	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidDate is returned when a date string is not YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientFundsError provides details about a balance shortage.
type InsufficientFundsError struct {
	OwnerID   OwnerID
	Available Amount
	Requested Amount
	Shortfall Amount
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: available %s, requested %s, shortfall %s",
		e.Available.Value.StringFixed(2), e.Requested.Value.StringFixed(2), e.Shortfall.Value.StringFixed(2))
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

// SignMismatchError names the offending transaction.
type SignMismatchError struct {
	ID     TransactionID
	Type   TransactionType
	Amount Amount
}

func (e *SignMismatchError) Error() string {
	return fmt.Sprintf("transaction %s: type %q with amount %s", e.ID, e.Type, e.Amount.Value.String())
}

func (e *SignMismatchError) Unwrap() error {
	return ErrSignMismatch
}

// BalanceDriftError reports both sides of a failed balance verification.
type BalanceDriftError struct {
	OwnerID  OwnerID
	Cached   Amount
	Computed Amount
}

func (e *BalanceDriftError) Error() string {
	return fmt.Sprintf("balance drift for %s: cached %s, ledger %s",
		e.OwnerID, e.Cached.Value.String(), e.Computed.Value.String())
}

func (e *BalanceDriftError) Unwrap() error {
	return ErrBalanceDrift
}

// NotFound wraps ErrNotFound with the kind and id of the missing record.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrNonPositiveAmount) ||
		errors.Is(err, ErrSignMismatch) ||
		errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidPeriod)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
