/*
wallet.go - Doctor wallets: view, withdrawals and payment methods

WITHDRAWAL FLOW:
  1. Lock the owner's wallet (per-owner keyed mutex, held to the end)
  2. Pre-check funds: amount <= balance, else InsufficientFundsError
  3. Call the payment processor (no store transaction is open meanwhile)
  4. Success → debit inside WithTx, reference = processor transaction id
     Failure → PaymentFailedError, a warning notification, no ledger change

  Holding the owner lock across the processor call means two concurrent
  withdrawals for the same doctor run one after the other; the second sees
  the first's debit in its funds check and cannot overdraw.

PERSISTED vs DERIVED:
  Balance and transactions come from the ledger (persisted).
  PendingClearance is recomputed from the shifts on every read (derived).
*/
package rota

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/warp/rota-engine/generic"
	"github.com/warp/rota-engine/payment"
	"go.uber.org/zap"
)

// WalletView is what a doctor sees on the wallet page.
type WalletView struct {
	OwnerID          generic.OwnerID       `json:"ownerId"`
	Balance          generic.Amount        `json:"balance"`
	PendingClearance generic.Amount        `json:"pendingClearance"`
	Transactions     []generic.Transaction `json:"transactions"` // newest first
	PaymentMethods   []payment.Method      `json:"paymentMethods"`
}

func canSeeWallet(actor Actor, owner string) error {
	if actor.ID == owner || actor.IsManager() {
		return nil
	}
	return forbidden("wallet belongs to another doctor")
}

// Wallet returns the owner's balance, pending clearance and history.
func (s *Service) Wallet(ctx context.Context, actor Actor, owner string) (WalletView, error) {
	if err := canSeeWallet(actor, owner); err != nil {
		return WalletView{}, err
	}
	ownerID := generic.OwnerID(owner)
	balance, err := s.store.Balance(ctx, ownerID)
	if err != nil {
		return WalletView{}, err
	}
	txs, err := s.store.Transactions(ctx, ownerID)
	if err != nil {
		return WalletView{}, err
	}
	newestFirst(txs)
	shifts, err := s.store.ListShifts(ctx)
	if err != nil {
		return WalletView{}, err
	}
	methods, err := s.store.ListPaymentMethods(ctx, owner)
	if err != nil {
		return WalletView{}, err
	}
	if txs == nil {
		txs = []generic.Transaction{}
	}
	return WalletView{
		OwnerID:          ownerID,
		Balance:          balance,
		PendingClearance: PendingClearanceFor(shifts, owner),
		Transactions:     txs,
		PaymentMethods:   methods,
	}, nil
}

// newestFirst reverses append order in place.
func newestFirst(txs []generic.Transaction) {
	for i, j := 0, len(txs)-1; i < j; i, j = i+1, j-1 {
		txs[i], txs[j] = txs[j], txs[i]
	}
}

// =============================================================================
// WITHDRAW
// =============================================================================

type WithdrawRequest struct {
	Amount   generic.Amount
	MethodID string // empty selects the owner's default method
}

type WithdrawResult struct {
	Transaction generic.Transaction `json:"transaction"`
	Balance     generic.Amount      `json:"balance"`
	Message     string              `json:"message"`
}

// Withdraw pays out of the actor's own wallet.
func (s *Service) Withdraw(ctx context.Context, actor Actor, owner string, req WithdrawRequest) (WithdrawResult, error) {
	if actor.ID == "" || actor.ID != owner {
		return WithdrawResult{}, forbidden("only the wallet owner can withdraw")
	}
	if !req.Amount.IsPositive() {
		return WithdrawResult{}, generic.ErrNonPositiveAmount
	}
	if req.Amount.Currency == "" {
		req.Amount.Currency = generic.DefaultCurrency
	}
	ownerID := generic.OwnerID(owner)

	unlock := s.wallets.Lock(owner)
	defer unlock()

	method, err := s.withdrawalMethod(ctx, owner, req.MethodID)
	if err != nil {
		return WithdrawResult{}, err
	}

	balance, err := s.store.Balance(ctx, ownerID)
	if err != nil {
		return WithdrawResult{}, err
	}
	if req.Amount.GreaterThan(balance) {
		return WithdrawResult{}, &generic.InsufficientFundsError{
			OwnerID:   ownerID,
			Available: balance,
			Requested: req.Amount,
			Shortfall: req.Amount.Sub(balance),
		}
	}

	res, err := s.payments.Withdraw(ctx, req.Amount, method)
	if err == nil && !res.Success {
		err = &PaymentFailedError{Message: res.Message}
	}
	if err != nil {
		s.log.Warn("withdrawal failed",
			zap.String("owner_id", owner),
			zap.String("amount", req.Amount.Value.String()),
			zap.Error(err))
		// Best effort; the payment error is what the caller needs.
		bg := context.WithoutCancel(ctx)
		_ = s.store.WithTx(bg, func(st Store) error {
			return s.notify(bg, st, owner, "Withdrawal Failed", "Could not process transaction.", NotifyWarning, "")
		})
		var pf *PaymentFailedError
		if errors.As(err, &pf) {
			return WithdrawResult{}, err
		}
		return WithdrawResult{}, &PaymentFailedError{Message: err.Error()}
	}

	var result WithdrawResult
	err = s.store.WithTx(ctx, func(st Store) error {
		ref := res.TransactionID
		if ref == "" {
			ref = fmt.Sprintf("WTH-%04d", rand.Intn(10000))
		}
		tx, err := s.ledger(st).Debit(ctx, generic.Entry{
			OwnerID:        ownerID,
			Amount:         req.Amount,
			Description:    "Withdrawal to " + method.Kind(),
			Reference:      ref,
			IdempotencyKey: res.TransactionID,
		})
		if err != nil {
			return err
		}
		after, err := st.Balance(ctx, ownerID)
		if err != nil {
			return err
		}
		result = WithdrawResult{Transaction: tx, Balance: after, Message: res.Message}
		return s.notify(ctx, st, owner, "Funds Withdrawn", res.Message, NotifySuccess, "/wallet")
	})
	if err != nil {
		// The processor has paid out but the ledger write failed.
		s.log.Error("withdrawal paid but not recorded",
			zap.String("owner_id", owner),
			zap.String("processor_tx", res.TransactionID),
			zap.Error(err))
		return WithdrawResult{}, err
	}
	s.log.Info("withdrawal completed",
		zap.String("owner_id", owner),
		zap.String("amount", req.Amount.Value.String()),
		zap.String("reference", result.Transaction.Reference))
	return result, nil
}

func (s *Service) withdrawalMethod(ctx context.Context, owner, id string) (payment.Method, error) {
	if id != "" {
		m, err := s.store.GetPaymentMethod(ctx, id)
		if err != nil {
			return payment.Method{}, err
		}
		if m.OwnerID != owner {
			return payment.Method{}, forbidden("payment method belongs to another owner")
		}
		return m, nil
	}
	methods, err := s.store.ListPaymentMethods(ctx, owner)
	if err != nil {
		return payment.Method{}, err
	}
	for _, m := range methods {
		if m.IsDefault {
			return m, nil
		}
	}
	if len(methods) > 0 {
		return methods[0], nil
	}
	return payment.Method{}, &ValidationError{Kind: ErrInvalidWithdrawal, Reason: "no payment method linked"}
}

// =============================================================================
// PAYMENT METHODS
// =============================================================================

func (s *Service) PaymentMethods(ctx context.Context, actor Actor, owner string) ([]payment.Method, error) {
	if err := canSeeWallet(actor, owner); err != nil {
		return nil, err
	}
	return s.store.ListPaymentMethods(ctx, owner)
}

// LinkPaymentMethod exchanges token with the processor and stores the method.
// The first method an owner links becomes their default.
func (s *Service) LinkPaymentMethod(ctx context.Context, actor Actor, owner, token string) (payment.Method, error) {
	if actor.ID != owner {
		return payment.Method{}, forbidden("only the wallet owner can link a payment method")
	}
	m, err := s.payments.Link(ctx, owner, token)
	if err != nil {
		return payment.Method{}, err
	}
	m.OwnerID = owner

	err = s.store.WithTx(ctx, func(st Store) error {
		existing, err := st.ListPaymentMethods(ctx, owner)
		if err != nil {
			return err
		}
		m.IsDefault = false
		if err := st.SavePaymentMethod(ctx, m); err != nil {
			return err
		}
		if len(existing) == 0 {
			if err := st.SetDefaultPaymentMethod(ctx, owner, m.ID); err != nil {
				return err
			}
			m.IsDefault = true
		}
		return s.notify(ctx, st, owner, "Payment Method Added", fmt.Sprintf("Successfully added %s.", m.DisplayType()), NotifySuccess, "/wallet")
	})
	if err != nil {
		return payment.Method{}, err
	}
	s.log.Info("payment method linked", zap.String("owner_id", owner), zap.String("method_id", m.ID))
	return m, nil
}

// SetDefaultPaymentMethod makes id the owner's only default method.
func (s *Service) SetDefaultPaymentMethod(ctx context.Context, actor Actor, owner, id string) error {
	if actor.ID != owner {
		return forbidden("only the wallet owner can change the default method")
	}
	return s.store.WithTx(ctx, func(st Store) error {
		m, err := st.GetPaymentMethod(ctx, id)
		if err != nil {
			return err
		}
		if m.OwnerID != owner {
			return forbidden("payment method belongs to another owner")
		}
		return st.SetDefaultPaymentMethod(ctx, owner, id)
	})
}
