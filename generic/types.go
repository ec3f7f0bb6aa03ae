/*
Package generic provides the domain-agnostic money and ledger engine.

PURPOSE:
  This package contains the building blocks every wallet in the rota engine
  relies on: exact decimal amounts, day-granular dates, immutable ledger
  transactions and the Ledger itself. It knows nothing about shifts, doctors
  or leave; the rota package layers those on top.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A signed quantity of money in a currency (e.g., $1200.00)
  - Transaction: An immutable ledger entry recording a wallet change
  - OwnerID/TransactionID: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Immutability: Transactions are never modified after they are appended
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Consistency: A transaction's Type always agrees with the sign of its Amount
  4. Auditability: Every transaction has description, reference and idempotency key

USAGE:
  amount := generic.USD(1200)
  tx := generic.Transaction{
      OwnerID: "doc-1",
      Amount:  amount,
      Type:    generic.TxCredit,
  }

SEE ALSO:
  - ledger.go: Credit/debit operations and the LedgerStore interface
  - time.go: Date and Period
  - errors.go: Sentinel and structured errors
*/
package generic

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Signed quantity of money
// =============================================================================

type Amount struct {
	Value    decimal.Decimal
	Currency Currency
}

type Currency string

const (
	CurrencyUSD Currency = "USD"
)

// DefaultCurrency is used when an amount is decoded without one.
const DefaultCurrency = CurrencyUSD

func NewAmount(value float64, currency Currency) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Currency: currency}
}

func NewAmountFromInt(value int64, currency Currency) Amount {
	return Amount{Value: decimal.NewFromInt(value), Currency: currency}
}

func USD(value float64) Amount { return NewAmount(value, CurrencyUSD) }

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (a Amount) Zero() Amount                 { return Amount{Value: decimal.Zero, Currency: a.Currency} }
func (a Amount) Add(b Amount) Amount          { return Amount{Value: a.Value.Add(b.Value), Currency: a.cur(b)} }
func (a Amount) Sub(b Amount) Amount          { return Amount{Value: a.Value.Sub(b.Value), Currency: a.cur(b)} }
func (a Amount) Mul(s decimal.Decimal) Amount { return Amount{Value: a.Value.Mul(s), Currency: a.Currency} }
func (a Amount) Neg() Amount                  { return Amount{Value: a.Value.Neg(), Currency: a.Currency} }
func (a Amount) Abs() Amount                  { return Amount{Value: a.Value.Abs(), Currency: a.Currency} }
func (a Amount) IsNegative() bool             { return a.Value.IsNegative() }
func (a Amount) IsZero() bool                 { return a.Value.IsZero() }
func (a Amount) IsPositive() bool             { return a.Value.IsPositive() }
func (a Amount) GreaterThan(b Amount) bool    { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool       { return a.Value.LessThan(b.Value) }
func (a Amount) Equal(b Amount) bool          { return a.Value.Equal(b.Value) }
func (a Amount) String() string               { return a.Value.StringFixed(2) + " " + string(a.Currency) }

func (a Amount) Float64() float64 {
	f, _ := a.Value.Float64()
	return f
}

// cur keeps the receiver's currency unless it is unset.
func (a Amount) cur(b Amount) Currency {
	if a.Currency == "" {
		return b.Currency
	}
	return a.Currency
}

// MarshalJSON encodes the amount as a bare JSON number, matching the
// persisted state layout where balances and transaction amounts are numeric.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Value.String()), nil
}

// UnmarshalJSON accepts both numbers and quoted numbers.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := json.Unmarshal(data, &d); err != nil {
		return err
	}
	a.Value = d
	if a.Currency == "" {
		a.Currency = DefaultCurrency
	}
	return nil
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type OwnerID string
type TransactionID string

// =============================================================================
// TRANSACTION - Immutable change to a wallet balance
// =============================================================================

type TransactionType string

const (
	TxCredit TransactionType = "credit" // Earnings (shift payment)
	TxDebit  TransactionType = "debit"  // Withdrawal
)

type TransactionStatus string

const (
	TxCompleted  TransactionStatus = "Completed"
	TxPending    TransactionStatus = "Pending"
	TxProcessing TransactionStatus = "Processing"
)

type Transaction struct {
	ID             TransactionID     `json:"id"`
	OwnerID        OwnerID           `json:"ownerId"`
	Date           Date              `json:"date"`
	Description    string            `json:"description"`
	Amount         Amount            `json:"amount"` // signed: credit > 0, debit < 0
	Type           TransactionType   `json:"type"`
	Status         TransactionStatus `json:"status"`
	Reference      string            `json:"reference"`
	IdempotencyKey string            `json:"idempotencyKey,omitempty"`
	CreatedAt      time.Time         `json:"createdAt,omitempty"`
}

// Validate checks that the type tag agrees with the sign of the amount.
func (tx Transaction) Validate() error {
	switch tx.Type {
	case TxCredit:
		if tx.Amount.IsPositive() {
			return nil
		}
	case TxDebit:
		if tx.Amount.IsNegative() {
			return nil
		}
	default:
		return &SignMismatchError{ID: tx.ID, Type: tx.Type, Amount: tx.Amount}
	}
	return &SignMismatchError{ID: tx.ID, Type: tx.Type, Amount: tx.Amount}
}

// SumTransactions adds up the signed amounts of txs.
func SumTransactions(txs []Transaction, currency Currency) Amount {
	total := Amount{Value: decimal.Zero, Currency: currency}
	for _, tx := range txs {
		total = total.Add(tx.Amount)
	}
	return total
}
