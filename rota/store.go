/*
store.go - Persistence interfaces for the rota domain

PURPOSE:
  The Service depends only on these interfaces. Two implementations exist:
  store/sqlite (production) and store/memory (tests and dev).

TRANSACTIONS:
  Every mutation runs inside TxStore.WithTx. The Store handed to fn is
  bound to the transaction; a shift update and a ledger append made
  through it commit together or not at all. Implementations serialize
  WithTx calls, so a status read inside fn cannot be changed by another
  writer before fn returns (compare-and-set on status).

SEE ALSO:
  - generic/store.go: LedgerStore (embedded)
*/
package rota

import (
	"context"

	"github.com/warp/rota-engine/generic"
	"github.com/warp/rota-engine/payment"
)

type ShiftStore interface {
	SaveShift(ctx context.Context, s Shift) error
	GetShift(ctx context.Context, id string) (Shift, error) // generic.ErrNotFound if missing
	ListShifts(ctx context.Context) ([]Shift, error)        // by date, then id
	DeleteShift(ctx context.Context, id string) error       // generic.ErrNotFound if missing
}

type LeaveStore interface {
	SaveLeave(ctx context.Context, l LeaveRequest) error
	GetLeave(ctx context.Context, id string) (LeaveRequest, error)
	ListLeaves(ctx context.Context) ([]LeaveRequest, error)
}

type NotificationStore interface {
	SaveNotification(ctx context.Context, n Notification) error
	HasNotification(ctx context.Context, id string) (bool, error)
	ListNotifications(ctx context.Context, recipient string) ([]Notification, error) // newest first
	MarkNotificationRead(ctx context.Context, id string) error
}

type PaymentMethodStore interface {
	SavePaymentMethod(ctx context.Context, m payment.Method) error
	ListPaymentMethods(ctx context.Context, owner string) ([]payment.Method, error)
	GetPaymentMethod(ctx context.Context, id string) (payment.Method, error)
	// SetDefaultPaymentMethod marks id default and clears the flag on every
	// other method of the same owner.
	SetDefaultPaymentMethod(ctx context.Context, owner, id string) error
}

type PreferenceStore interface {
	GetPreferences(ctx context.Context) (Preferences, error) // DefaultPreferences if unset
	SavePreferences(ctx context.Context, p Preferences) error
}

type DoctorStore interface {
	SaveDoctor(ctx context.Context, d Doctor) error
	ListDoctors(ctx context.Context) ([]Doctor, error)
}

type CredentialStore interface {
	SaveCredential(ctx context.Context, c Credential) error
	ListCredentials(ctx context.Context, doctorID string) ([]Credential, error) // upload order
}

// Store is everything the Service reads and writes.
type Store interface {
	ShiftStore
	LeaveStore
	NotificationStore
	PaymentMethodStore
	PreferenceStore
	DoctorStore
	CredentialStore
	generic.LedgerStore
	generic.WalletRestorer

	// Reset removes the records that make up an exported State: shifts,
	// leave, ledger, payment methods and preferences. Doctors, their
	// credentials and notifications are kept.
	Reset(ctx context.Context) error
}

// TxStore runs fn atomically. If fn returns an error nothing it wrote persists.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}
