// Package store provides in-memory LedgerStore implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/rota-engine/generic"
)

// =============================================================================
// MEMORY LEDGER - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	transactions []generic.Transaction
	balances     map[generic.OwnerID]generic.Amount
	idempotency  map[string]bool
}

func NewMemory() *Memory {
	return &Memory{
		balances:    make(map[generic.OwnerID]generic.Amount),
		idempotency: make(map[string]bool),
	}
}

// AppendTransaction adds a transaction and adjusts the cached balance. Append-only.
func (m *Memory) AppendTransaction(_ context.Context, tx generic.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if tx.IdempotencyKey != "" && m.idempotency[tx.IdempotencyKey] {
		return generic.ErrDuplicateIdempotencyKey
	}
	m.transactions = append(m.transactions, tx)
	m.balances[tx.OwnerID] = m.balanceLocked(tx.OwnerID).Add(tx.Amount)
	if tx.IdempotencyKey != "" {
		m.idempotency[tx.IdempotencyKey] = true
	}
	return nil
}

func (m *Memory) Transactions(_ context.Context, owner generic.OwnerID) ([]generic.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []generic.Transaction
	for _, tx := range m.transactions {
		if tx.OwnerID == owner {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (m *Memory) AllTransactions(_ context.Context) ([]generic.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]generic.Transaction, len(m.transactions))
	copy(result, m.transactions)
	return result, nil
}

func (m *Memory) Balance(_ context.Context, owner generic.OwnerID) (generic.Amount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balanceLocked(owner), nil
}

func (m *Memory) balanceLocked(owner generic.OwnerID) generic.Amount {
	if b, ok := m.balances[owner]; ok {
		return b
	}
	return generic.Amount{Value: decimal.Zero, Currency: generic.DefaultCurrency}
}

func (m *Memory) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idempotencyKey], nil
}

func (m *Memory) Owners(_ context.Context) ([]generic.OwnerID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	owners := make([]generic.OwnerID, 0, len(m.balances))
	for owner := range m.balances {
		owners = append(owners, owner)
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i] < owners[j] })
	return owners, nil
}

// RestoreWallet replaces the owner's transactions and balance.
func (m *Memory) RestoreWallet(_ context.Context, owner generic.OwnerID, txs []generic.Transaction, balance generic.Amount) error {
	for _, tx := range txs {
		if err := tx.Validate(); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.transactions[:0:0]
	for _, tx := range m.transactions {
		if tx.OwnerID != owner {
			kept = append(kept, tx)
			continue
		}
		if tx.IdempotencyKey != "" {
			delete(m.idempotency, tx.IdempotencyKey)
		}
	}
	for _, tx := range txs {
		tx.OwnerID = owner
		kept = append(kept, tx)
		if tx.IdempotencyKey != "" {
			m.idempotency[tx.IdempotencyKey] = true
		}
	}
	m.transactions = kept
	m.balances[owner] = balance
	return nil
}

// =============================================================================
// SNAPSHOT / RESTORE - Used by transactional wrappers for rollback
// =============================================================================

// Snapshot returns a deep copy of the ledger state.
func (m *Memory) Snapshot() *Memory {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cp := NewMemory()
	cp.transactions = make([]generic.Transaction, len(m.transactions))
	copy(cp.transactions, m.transactions)
	for k, v := range m.balances {
		cp.balances[k] = v
	}
	for k, v := range m.idempotency {
		cp.idempotency[k] = v
	}
	return cp
}

// Restore replaces the ledger state with a snapshot taken earlier.
func (m *Memory) Restore(snap *Memory) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.transactions = snap.transactions
	m.balances = snap.balances
	m.idempotency = snap.idempotency
}

// Reset drops all transactions and balances.
func (m *Memory) Reset() {
	m.Restore(NewMemory())
}

var (
	_ generic.LedgerStore    = (*Memory)(nil)
	_ generic.WalletRestorer = (*Memory)(nil)
)
