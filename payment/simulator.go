package payment

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/warp/rota-engine/generic"
	"go.uber.org/zap"
)

// Simulator is a Processor that never talks to a real gateway. It waits
// Latency, then succeeds unless Fail is set.
type Simulator struct {
	Latency     time.Duration
	LinkLatency time.Duration
	Fail        bool
	SecretKey   string
	Log         *zap.Logger
	Now         func() time.Time
}

type SimulatorOption func(*Simulator)

func WithLatency(d time.Duration) SimulatorOption { return func(s *Simulator) { s.Latency = d } }
func WithFailure(fail bool) SimulatorOption       { return func(s *Simulator) { s.Fail = fail } }
func WithSecretKey(key string) SimulatorOption    { return func(s *Simulator) { s.SecretKey = key } }
func WithLogger(l *zap.Logger) SimulatorOption    { return func(s *Simulator) { s.Log = l } }

func NewSimulator(opts ...SimulatorOption) *Simulator {
	s := &Simulator{
		Latency:     1500 * time.Millisecond,
		LinkLatency: time.Second,
		Log:         zap.NewNop(),
		Now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simulator) Withdraw(ctx context.Context, amount generic.Amount, method Method) (Result, error) {
	if s.SecretKey == "" || strings.Contains(s.SecretKey, "YOUR_SECRET_KEY") {
		s.Log.Warn("payment secret key is not configured, proceeding with simulation")
	}
	if err := s.wait(ctx, s.Latency); err != nil {
		return Result{}, err
	}
	if s.Fail {
		return Result{Success: false, Message: "Could not process transaction."}, nil
	}
	return Result{
		Success:       true,
		Message:       fmt.Sprintf("Successfully processed withdrawal of $%s to %s.", amount.Value.String(), method.Label()),
		TransactionID: fmt.Sprintf("txn_%d_%s", s.Now().UnixMilli(), randomSuffix()),
	}, nil
}

// Link always returns a Visa card ending in 4242.
func (s *Simulator) Link(ctx context.Context, owner, token string) (Method, error) {
	if err := s.wait(ctx, s.LinkLatency); err != nil {
		return Method{}, err
	}
	return Method{
		ID:      "pm_" + uuid.NewString(),
		OwnerID: owner,
		Type:    MethodCard,
		Brand:   "visa",
		Last4:   "4242",
		Expiry:  "12/28",
	}, nil
}

func (s *Simulator) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func randomSuffix() string {
	return strconv.FormatInt(rand.Int63n(1<<30), 36)
}

var _ Processor = (*Simulator)(nil)
