/*
ledger.go - Wallet ledger: append-only transactions plus a cached balance

PURPOSE:
  The Ledger is the only way money moves. Shift payments are credits,
  withdrawals are debits. Every change is a Transaction appended to the
  store together with the new cached balance.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete. EVER.
  2. SIGNED: credit amounts are positive, debit amounts are negative
  3. NO OVERDRAFT: a debit larger than the balance fails with
     InsufficientFundsError and writes nothing
  4. IDEMPOTENT: Same idempotency key = same transaction (no duplicates)
  5. CONSISTENT: cached balance == sum of the owner's transactions
     (unless a wallet was restored from an import that said otherwise)

EXAMPLE FLOW:
  1. Timesheet approved, rate $150/h:  credit +1200   balance 1200
  2. Withdrawal of $500:               debit  -500    balance  700
  3. Withdrawal of $900:               InsufficientFundsError, balance 700

TRANSACTIONS:
  The Ledger does not open store transactions itself. Callers that need
  a shift update and a credit to land together build a Ledger over the
  transactional store view handed to them by WithTx.

SEE ALSO:
  - store.go: LedgerStore interface
  - rota/resolver.go: credits on timesheet approval
  - rota/wallet.go: debits on withdrawal
*/
package generic

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ENTRY - What callers ask the ledger to record
// =============================================================================

// Entry describes a credit or debit. Amount is the unsigned magnitude;
// the ledger applies the sign.
type Entry struct {
	OwnerID        OwnerID
	Amount         Amount
	Description    string
	Reference      string
	IdempotencyKey string
	Status         TransactionStatus // defaults to TxCompleted
	Date           Date              // defaults to today
}

// =============================================================================
// LEDGER
// =============================================================================

type Ledger struct {
	Store LedgerStore
	Now   func() time.Time
	NewID func() string
}

func NewLedger(store LedgerStore) *Ledger {
	return &Ledger{
		Store: store,
		Now:   time.Now,
		NewID: func() string { return uuid.NewString() },
	}
}

// Credit appends a positive transaction and raises the balance.
func (l *Ledger) Credit(ctx context.Context, e Entry) (Transaction, error) {
	if !e.Amount.IsPositive() {
		return Transaction{}, ErrNonPositiveAmount
	}
	tx := l.build(e, TxCredit, e.Amount.Abs())
	if err := l.append(ctx, tx); err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

// Debit appends a negative transaction and lowers the balance.
// Fails with InsufficientFundsError when the magnitude exceeds the balance.
func (l *Ledger) Debit(ctx context.Context, e Entry) (Transaction, error) {
	if !e.Amount.IsPositive() {
		return Transaction{}, ErrNonPositiveAmount
	}
	balance, err := l.Store.Balance(ctx, e.OwnerID)
	if err != nil {
		return Transaction{}, err
	}
	if e.Amount.GreaterThan(balance) {
		return Transaction{}, &InsufficientFundsError{
			OwnerID:   e.OwnerID,
			Available: balance,
			Requested: e.Amount,
			Shortfall: e.Amount.Sub(balance),
		}
	}
	tx := l.build(e, TxDebit, e.Amount.Abs().Neg())
	if err := l.append(ctx, tx); err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

// RecordCredit is the short form of Credit used by the payment flow.
func (l *Ledger) RecordCredit(ctx context.Context, owner OwnerID, amount Amount, description, reference string) (Transaction, error) {
	return l.Credit(ctx, Entry{OwnerID: owner, Amount: amount, Description: description, Reference: reference})
}

// RecordDebit is the short form of Debit used by the withdrawal flow.
func (l *Ledger) RecordDebit(ctx context.Context, owner OwnerID, amount Amount, description, reference string) (Transaction, error) {
	return l.Debit(ctx, Entry{OwnerID: owner, Amount: amount, Description: description, Reference: reference})
}

func (l *Ledger) Balance(ctx context.Context, owner OwnerID) (Amount, error) {
	return l.Store.Balance(ctx, owner)
}

func (l *Ledger) Transactions(ctx context.Context, owner OwnerID) ([]Transaction, error) {
	return l.Store.Transactions(ctx, owner)
}

// Verify recomputes the balance from the transaction history and compares
// it with the cached value.
func (l *Ledger) Verify(ctx context.Context, owner OwnerID) error {
	cached, err := l.Store.Balance(ctx, owner)
	if err != nil {
		return err
	}
	txs, err := l.Store.Transactions(ctx, owner)
	if err != nil {
		return err
	}
	computed := SumTransactions(txs, cached.Currency)
	if !computed.Equal(cached) {
		return &BalanceDriftError{OwnerID: owner, Cached: cached, Computed: computed}
	}
	return nil
}

func (l *Ledger) build(e Entry, typ TransactionType, signed Amount) Transaction {
	now := l.Now()
	date := e.Date
	if date.IsZero() {
		date = DateOf(now)
	}
	status := e.Status
	if status == "" {
		status = TxCompleted
	}
	if signed.Currency == "" {
		signed.Currency = DefaultCurrency
	}
	return Transaction{
		ID:             TransactionID(l.NewID()),
		OwnerID:        e.OwnerID,
		Date:           date,
		Description:    e.Description,
		Amount:         signed,
		Type:           typ,
		Status:         status,
		Reference:      e.Reference,
		IdempotencyKey: e.IdempotencyKey,
		CreatedAt:      now.UTC(),
	}
}

func (l *Ledger) append(ctx context.Context, tx Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	if tx.IdempotencyKey != "" {
		exists, err := l.Store.Exists(ctx, tx.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.AppendTransaction(ctx, tx)
}
