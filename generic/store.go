/*
store.go - Persistence interface for wallet transactions and balances

PURPOSE:
  Defines the interface between the ledger and the database.
  The store keeps two things per owner: the append-only transaction list
  and a cached running balance. Both change together or not at all.

APPEND-ONLY CONTRACT:
  - AppendTransaction(): the ONLY write for normal operation
  - NO Update() or Delete() methods exist for transactions

CACHED BALANCE:
  The balance is an aggregate stored next to the transactions so reads do
  not have to replay history. AppendTransaction adjusts it in the same
  write as the insert. Ledger.Verify recomputes it to detect drift.

IDEMPOTENCY:
  A transaction may carry an idempotency key. If the key already exists,
  the write is rejected with ErrDuplicateIdempotencyKey and nothing changes.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - generic/store/memory.go: In-memory for testing and dev

SEE ALSO:
  - ledger.go: Higher-level credit/debit operations using LedgerStore
*/
package generic

import "context"

// =============================================================================
// LEDGER STORE - Interface for transaction persistence (append-only)
// =============================================================================

type LedgerStore interface {
	// AppendTransaction persists tx and adds tx.Amount to the owner's cached
	// balance atomically. Returns ErrDuplicateIdempotencyKey if the key exists
	// and a SignMismatchError if tx.Type disagrees with the amount sign.
	AppendTransaction(ctx context.Context, tx Transaction) error

	// Transactions returns the owner's transactions in append order.
	Transactions(ctx context.Context, owner OwnerID) ([]Transaction, error)

	// AllTransactions returns every owner's transactions in append order.
	AllTransactions(ctx context.Context) ([]Transaction, error)

	// Balance returns the cached balance. Unknown owners have a zero balance.
	Balance(ctx context.Context, owner OwnerID) (Amount, error)

	// Exists checks whether an idempotency key has been used.
	Exists(ctx context.Context, idempotencyKey string) (bool, error)

	// Owners lists every owner with a wallet row.
	Owners(ctx context.Context) ([]OwnerID, error)
}

// WalletRestorer replaces an owner's wallet wholesale. Only state import
// uses it; the balance is taken as given and not recomputed.
type WalletRestorer interface {
	RestoreWallet(ctx context.Context, owner OwnerID, txs []Transaction, balance Amount) error
}
