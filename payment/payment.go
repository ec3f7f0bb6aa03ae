// Package payment defines payment methods and the payment processor
// collaborator used for wallet withdrawals.
package payment

import (
	"context"
	"strings"

	"github.com/warp/rota-engine/generic"
)

type MethodType string

const (
	MethodCard      MethodType = "card"
	MethodApplePay  MethodType = "apple_pay"
	MethodGooglePay MethodType = "google_pay"
)

func (t MethodType) Valid() bool {
	return t == MethodCard || t == MethodApplePay || t == MethodGooglePay
}

// Method is a payout destination. Brand, Last4 and Expiry are set for cards.
type Method struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"ownerId,omitempty"`
	Type      MethodType `json:"type"`
	Brand     string     `json:"brand,omitempty"`
	Last4     string     `json:"last4,omitempty"`
	Expiry    string     `json:"expiry,omitempty"` // MM/YY
	IsDefault bool       `json:"isDefault"`
}

// Label is the human-readable destination: "Card ending in 4242" or "Digital Wallet".
func (m Method) Label() string {
	if m.Type == MethodCard {
		return "Card ending in " + m.Last4
	}
	return "Digital Wallet"
}

// Kind is "Card" for cards and "Digital Wallet" for everything else.
func (m Method) Kind() string {
	if m.Type == MethodCard {
		return "Card"
	}
	return "Digital Wallet"
}

// DisplayType turns "apple_pay" into "apple pay".
func (m Method) DisplayType() string {
	return strings.Replace(string(m.Type), "_", " ", 1)
}

// Result is the processor's answer to a withdrawal. Exactly one of success
// or failure is reported per call.
type Result struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	TransactionID string `json:"transactionId,omitempty"`
}

// Processor moves money out of the platform.
type Processor interface {
	// Withdraw pays amount (already validated positive) to method.
	// A non-nil error means the call itself failed (timeout, cancellation);
	// a declined payment is a Result with Success false.
	Withdraw(ctx context.Context, amount generic.Amount, method Method) (Result, error)

	// Link exchanges a client-side token for a stored payment method.
	Link(ctx context.Context, owner, token string) (Method, error)
}
