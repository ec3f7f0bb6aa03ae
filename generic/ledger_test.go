package generic_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rota-engine/generic"
	"github.com/warp/rota-engine/generic/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestLedger(t *testing.T) (*generic.Ledger, *store.Memory) {
	mem := store.NewMemory()
	ledger := generic.NewLedger(mem)
	ledger.Now = func() time.Time { return time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC) }
	seq := 0
	ledger.NewID = func() string {
		seq++
		return fmt.Sprintf("tx-%d", seq)
	}
	return ledger, mem
}

// =============================================================================
// CREDIT / DEBIT
// =============================================================================

func TestLedger_Credit_RaisesBalance(t *testing.T) {
	// GIVEN: An empty wallet
	// WHEN: Crediting $1200
	// THEN: Balance is 1200 and one credit transaction exists

	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	tx, err := ledger.RecordCredit(ctx, "doc-1", generic.USD(1200), "Shift Payment - Riyadh Central", "PAY-1234")
	require.NoError(t, err)

	assert.Equal(t, generic.TxCredit, tx.Type)
	assert.True(t, tx.Amount.IsPositive())
	assert.Equal(t, generic.TxCompleted, tx.Status)
	assert.Equal(t, "2025-03-10", tx.Date.String())

	balance, err := ledger.Balance(ctx, "doc-1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(generic.USD(1200)), "balance = %s", balance)
}

func TestLedger_Debit_LowersBalance(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.RecordCredit(ctx, "doc-1", generic.USD(1200), "pay", "PAY-1")
	require.NoError(t, err)

	tx, err := ledger.RecordDebit(ctx, "doc-1", generic.USD(500), "Withdrawal to Card", "WTH-1")
	require.NoError(t, err)
	assert.Equal(t, generic.TxDebit, tx.Type)
	assert.True(t, tx.Amount.Equal(generic.USD(-500)))

	balance, _ := ledger.Balance(ctx, "doc-1")
	assert.True(t, balance.Equal(generic.USD(700)))
}

func TestLedger_Debit_InsufficientFunds(t *testing.T) {
	// GIVEN: Balance of 700
	// WHEN: Debiting 900
	// THEN: InsufficientFundsError, nothing written

	ledger, mem := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.RecordCredit(ctx, "doc-1", generic.USD(700), "pay", "PAY-1")
	require.NoError(t, err)

	_, err = ledger.RecordDebit(ctx, "doc-1", generic.USD(900), "withdraw", "WTH-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, generic.ErrInsufficientFunds)
	assert.True(t, generic.IsClientError(err))

	var insuf *generic.InsufficientFundsError
	require.ErrorAs(t, err, &insuf)
	assert.True(t, insuf.Shortfall.Equal(generic.USD(200)))

	txs, _ := mem.Transactions(ctx, "doc-1")
	assert.Len(t, txs, 1)
	balance, _ := ledger.Balance(ctx, "doc-1")
	assert.True(t, balance.Equal(generic.USD(700)))
}

func TestLedger_Debit_ExactBalanceAllowed(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.RecordCredit(ctx, "doc-1", generic.USD(800), "pay", "PAY-1")
	require.NoError(t, err)
	_, err = ledger.RecordDebit(ctx, "doc-1", generic.USD(800), "withdraw", "WTH-1")
	require.NoError(t, err)

	balance, _ := ledger.Balance(ctx, "doc-1")
	assert.True(t, balance.IsZero())
}

func TestLedger_NonPositiveAmount_Rejected(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.RecordCredit(ctx, "doc-1", generic.USD(0), "pay", "PAY-1")
	assert.ErrorIs(t, err, generic.ErrNonPositiveAmount)

	_, err = ledger.RecordDebit(ctx, "doc-1", generic.USD(-5), "withdraw", "WTH-1")
	assert.ErrorIs(t, err, generic.ErrNonPositiveAmount)
}

// =============================================================================
// IDEMPOTENCY
// =============================================================================

func TestLedger_DuplicateIdempotencyKey_Rejected(t *testing.T) {
	// GIVEN: A credit with key shift-payment-s1 already recorded
	// WHEN: The same credit is retried
	// THEN: ErrDuplicateIdempotencyKey, balance unchanged

	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	entry := generic.Entry{
		OwnerID:        "doc-1",
		Amount:         generic.USD(1200),
		Description:    "Shift Payment",
		IdempotencyKey: "shift-payment-s1",
	}
	_, err := ledger.Credit(ctx, entry)
	require.NoError(t, err)

	_, err = ledger.Credit(ctx, entry)
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)

	balance, _ := ledger.Balance(ctx, "doc-1")
	assert.True(t, balance.Equal(generic.USD(1200)))
}

// =============================================================================
// SIGN CONSISTENCY
// =============================================================================

func TestMemory_AppendTransaction_SignMismatch(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	err := mem.AppendTransaction(ctx, generic.Transaction{
		ID:      "tx-bad",
		OwnerID: "doc-1",
		Amount:  generic.USD(-50),
		Type:    generic.TxCredit,
	})
	assert.ErrorIs(t, err, generic.ErrSignMismatch)

	balance, _ := mem.Balance(ctx, "doc-1")
	assert.True(t, balance.IsZero())
}

// =============================================================================
// VERIFY
// =============================================================================

func TestLedger_Verify(t *testing.T) {
	ledger, mem := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.RecordCredit(ctx, "doc-1", generic.USD(1200), "pay", "PAY-1")
	require.NoError(t, err)
	_, err = ledger.RecordDebit(ctx, "doc-1", generic.USD(200), "withdraw", "WTH-1")
	require.NoError(t, err)
	assert.NoError(t, ledger.Verify(ctx, "doc-1"))

	// A restored wallet keeps whatever balance it was given.
	txs, _ := mem.Transactions(ctx, "doc-1")
	require.NoError(t, mem.RestoreWallet(ctx, "doc-1", txs, generic.USD(4250)))

	err = ledger.Verify(ctx, "doc-1")
	assert.ErrorIs(t, err, generic.ErrBalanceDrift)
	var drift *generic.BalanceDriftError
	require.ErrorAs(t, err, &drift)
	assert.True(t, drift.Computed.Equal(generic.USD(1000)))
}

func TestMemory_SnapshotRestore(t *testing.T) {
	ledger, mem := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.RecordCredit(ctx, "doc-1", generic.USD(100), "pay", "PAY-1")
	require.NoError(t, err)

	snap := mem.Snapshot()
	_, err = ledger.RecordCredit(ctx, "doc-1", generic.USD(50), "pay", "PAY-2")
	require.NoError(t, err)

	mem.Restore(snap)
	balance, _ := mem.Balance(ctx, "doc-1")
	assert.True(t, balance.Equal(generic.USD(100)))
	txs, _ := mem.Transactions(ctx, "doc-1")
	assert.Len(t, txs, 1)
}
