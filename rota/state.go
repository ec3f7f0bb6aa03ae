package rota

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/samber/lo"
	"github.com/warp/rota-engine/generic"
	"github.com/warp/rota-engine/payment"
	"go.uber.org/zap"
)

// =============================================================================
// STATE - Persisted layout, one JSON document
// =============================================================================

// State is the exported application state. Balance and Transactions are the
// current user's wallet; Balances and AllTransactions carry every wallet so
// a multi-doctor store round-trips.
type State struct {
	Shifts          []Shift                            `json:"shifts"`
	LeaveRequests   []LeaveRequest                     `json:"leaveRequests"`
	Transactions    []generic.Transaction              `json:"transactions"`
	Balance         generic.Amount                     `json:"balance"`
	Balances        map[generic.OwnerID]generic.Amount `json:"balances,omitempty"`
	AllTransactions []generic.Transaction              `json:"allTransactions,omitempty"`
	PaymentMethods  []payment.Method                   `json:"paymentMethods"`
	CurrentUser     Actor                              `json:"currentUser"`
	Theme           Theme                              `json:"theme"`
	Language        Language                           `json:"language"`
}

// Export snapshots the store. It reads inside one transaction so the
// document is consistent.
func (s *Service) Export(ctx context.Context) (State, error) {
	var state State
	err := s.store.WithTx(ctx, func(st Store) error {
		prefs, err := st.GetPreferences(ctx)
		if err != nil {
			return err
		}
		shifts, err := st.ListShifts(ctx)
		if err != nil {
			return err
		}
		leaves, err := st.ListLeaves(ctx)
		if err != nil {
			return err
		}
		all, err := st.AllTransactions(ctx)
		if err != nil {
			return err
		}
		owners, err := st.Owners(ctx)
		if err != nil {
			return err
		}
		balances := make(map[generic.OwnerID]generic.Amount, len(owners))
		var methods []payment.Method
		for _, owner := range owners {
			b, err := st.Balance(ctx, owner)
			if err != nil {
				return err
			}
			balances[owner] = b
		}
		// Payment methods may exist for owners without a wallet row.
		methodOwners := lo.Uniq(append(lo.Map(owners, func(o generic.OwnerID, _ int) string { return string(o) }), prefs.CurrentUser.ID))
		sort.Strings(methodOwners)
		for _, owner := range methodOwners {
			ms, err := st.ListPaymentMethods(ctx, owner)
			if err != nil {
				return err
			}
			methods = append(methods, ms...)
		}

		me := generic.OwnerID(prefs.CurrentUser.ID)
		balance, err := st.Balance(ctx, me)
		if err != nil {
			return err
		}
		mine := lo.Filter(all, func(tx generic.Transaction, _ int) bool { return tx.OwnerID == me })
		newestFirst(mine)

		state = State{
			Shifts:          nonNil(shifts),
			LeaveRequests:   nonNil(leaves),
			Transactions:    mine,
			Balance:         balance,
			Balances:        balances,
			AllTransactions: all,
			PaymentMethods:  nonNil(methods),
			CurrentUser:     prefs.CurrentUser,
			Theme:           prefs.Theme,
			Language:        prefs.Language,
		}
		return nil
	})
	return state, err
}

// Import replaces the store contents with state. Every record is checked
// first; one bad record rejects the whole document.
func (s *Service) Import(ctx context.Context, state State) error {
	if err := validateState(state); err != nil {
		return err
	}
	prefs := Preferences{CurrentUser: state.CurrentUser, Theme: state.Theme, Language: state.Language}
	if prefs.Theme == "" {
		prefs.Theme = ThemeLight
	}
	if prefs.Language == "" {
		prefs.Language = LangEnglish
	}

	err := s.store.WithTx(ctx, func(st Store) error {
		if err := st.Reset(ctx); err != nil {
			return err
		}
		for _, sh := range state.Shifts {
			if err := st.SaveShift(ctx, sh); err != nil {
				return err
			}
		}
		for _, l := range state.LeaveRequests {
			if err := st.SaveLeave(ctx, l); err != nil {
				return err
			}
		}
		for owner, txs := range walletsOf(state) {
			balance, ok := state.Balances[owner]
			if !ok && owner == generic.OwnerID(state.CurrentUser.ID) {
				balance = state.Balance
			}
			if balance.Currency == "" {
				balance.Currency = generic.DefaultCurrency
			}
			if err := st.RestoreWallet(ctx, owner, txs, balance); err != nil {
				return err
			}
		}
		for _, m := range state.PaymentMethods {
			if m.OwnerID == "" {
				m.OwnerID = state.CurrentUser.ID
			}
			if err := st.SavePaymentMethod(ctx, m); err != nil {
				return err
			}
		}
		return st.SavePreferences(ctx, prefs)
	})
	if err != nil {
		return err
	}
	s.log.Info("state imported",
		zap.Int("shifts", len(state.Shifts)),
		zap.Int("leave_requests", len(state.LeaveRequests)),
		zap.Int("payment_methods", len(state.PaymentMethods)))
	return nil
}

// validateState checks shifts against the status invariants, leave
// requests for a known status and an ordered range, and every transaction
// for a type that agrees with its sign.
func validateState(state State) error {
	for _, sh := range state.Shifts {
		if err := CheckInvariants(sh); err != nil {
			return fmt.Errorf("shift %s: %w", sh.ID, err)
		}
	}
	for _, l := range state.LeaveRequests {
		switch l.Status {
		case LeavePending, LeaveApproved, LeaveRejected:
		default:
			return &ValidationError{Kind: ErrInvalidLeave, Reason: fmt.Sprintf("leave %s: unknown status %q", l.ID, l.Status)}
		}
		if l.StartDate.IsZero() || l.EndDate.IsZero() {
			return &ValidationError{Kind: ErrInvalidLeave, Reason: fmt.Sprintf("leave %s: startDate and endDate are required", l.ID)}
		}
		if err := l.Period().Validate(); err != nil {
			return &ValidationError{Kind: ErrInvalidLeave, Reason: fmt.Sprintf("leave %s: endDate is before startDate", l.ID)}
		}
	}
	for _, txs := range [][]generic.Transaction{state.Transactions, state.AllTransactions} {
		for _, tx := range txs {
			if err := tx.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

// walletsOf groups the document's transactions by owner in append order.
// Legacy documents carry only the current user's newest-first list.
func walletsOf(state State) map[generic.OwnerID][]generic.Transaction {
	me := generic.OwnerID(state.CurrentUser.ID)
	wallets := make(map[generic.OwnerID][]generic.Transaction)

	if len(state.AllTransactions) > 0 {
		for _, tx := range state.AllTransactions {
			if tx.OwnerID == "" {
				tx.OwnerID = me
			}
			wallets[tx.OwnerID] = append(wallets[tx.OwnerID], tx)
		}
	} else {
		legacy := make([]generic.Transaction, len(state.Transactions))
		copy(legacy, state.Transactions)
		newestFirst(legacy)
		for _, tx := range legacy {
			if tx.OwnerID == "" {
				tx.OwnerID = me
			}
			wallets[tx.OwnerID] = append(wallets[tx.OwnerID], tx)
		}
	}

	for owner := range state.Balances {
		if _, ok := wallets[owner]; !ok {
			wallets[owner] = nil
		}
	}
	if _, ok := wallets[me]; !ok && me != "" && !state.Balance.IsZero() {
		wallets[me] = nil
	}
	return wallets
}

// WriteState encodes state as indented JSON.
func WriteState(w io.Writer, state State) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(state)
}

// ReadState decodes a state document.
func ReadState(r io.Reader) (State, error) {
	var state State
	if err := json.NewDecoder(r).Decode(&state); err != nil {
		return State{}, fmt.Errorf("decode state: %w", err)
	}
	return state, nil
}

func nonNil[T any](xs []T) []T {
	if xs == nil {
		return []T{}
	}
	return xs
}

// Preferences returns the stored current user, theme and language.
func (s *Service) Preferences(ctx context.Context) (Preferences, error) {
	return s.store.GetPreferences(ctx)
}

func (s *Service) SavePreferences(ctx context.Context, p Preferences) (Preferences, error) {
	if p.CurrentUser.ID == "" || !p.CurrentUser.Role.Valid() {
		return Preferences{}, &ValidationError{Kind: ErrInvalidDoctor, Reason: "current user needs an id and a known role"}
	}
	if p.Theme == "" {
		p.Theme = ThemeLight
	}
	if p.Language == "" {
		p.Language = LangEnglish
	}
	if err := s.store.SavePreferences(ctx, p); err != nil {
		return Preferences{}, err
	}
	return p, nil
}
