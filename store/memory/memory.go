// Package memory provides an in-memory rota.TxStore for tests and dev.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/rota-engine/generic"
	ledgerstore "github.com/warp/rota-engine/generic/store"
	"github.com/warp/rota-engine/payment"
	"github.com/warp/rota-engine/rota"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Store struct {
	*ledgerstore.Memory

	txMu sync.Mutex // serializes WithTx
	mu   sync.RWMutex

	shifts        map[string]rota.Shift
	leaves        map[string]rota.LeaveRequest
	leaveOrder    []string
	notifications []rota.Notification
	methods       map[string]payment.Method
	methodOrder   []string
	doctors       map[string]rota.Doctor
	credentials   []rota.Credential
	prefs         *rota.Preferences
}

func New() *Store {
	return &Store{
		Memory:  ledgerstore.NewMemory(),
		shifts:  make(map[string]rota.Shift),
		leaves:  make(map[string]rota.LeaveRequest),
		methods: make(map[string]payment.Method),
		doctors: make(map[string]rota.Doctor),
	}
}

// WithTx executes fn within a transaction.
// For the memory store this is simulated with a snapshot + rollback on error.
func (m *Store) WithTx(ctx context.Context, fn func(rota.Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	snap := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	ledger        *ledgerstore.Memory
	shifts        map[string]rota.Shift
	leaves        map[string]rota.LeaveRequest
	leaveOrder    []string
	notifications []rota.Notification
	methods       map[string]payment.Method
	methodOrder   []string
	doctors       map[string]rota.Doctor
	credentials   []rota.Credential
	prefs         *rota.Preferences
}

func (m *Store) snapshot() snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := snapshot{
		ledger:        m.Memory.Snapshot(),
		shifts:        make(map[string]rota.Shift, len(m.shifts)),
		leaves:        make(map[string]rota.LeaveRequest, len(m.leaves)),
		leaveOrder:    append([]string(nil), m.leaveOrder...),
		notifications: append([]rota.Notification(nil), m.notifications...),
		methods:       make(map[string]payment.Method, len(m.methods)),
		methodOrder:   append([]string(nil), m.methodOrder...),
		doctors:       make(map[string]rota.Doctor, len(m.doctors)),
		credentials:   append([]rota.Credential(nil), m.credentials...),
	}
	for k, v := range m.shifts {
		snap.shifts[k] = v
	}
	for k, v := range m.leaves {
		snap.leaves[k] = v
	}
	for k, v := range m.methods {
		snap.methods[k] = v
	}
	for k, v := range m.doctors {
		snap.doctors[k] = v
	}
	if m.prefs != nil {
		p := *m.prefs
		snap.prefs = &p
	}
	return snap
}

func (m *Store) restore(snap snapshot) {
	m.Memory.Restore(snap.ledger)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.shifts = snap.shifts
	m.leaves = snap.leaves
	m.leaveOrder = snap.leaveOrder
	m.notifications = snap.notifications
	m.methods = snap.methods
	m.methodOrder = snap.methodOrder
	m.doctors = snap.doctors
	m.credentials = snap.credentials
	m.prefs = snap.prefs
}

func (m *Store) Reset(_ context.Context) error {
	m.Memory.Reset()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.shifts = make(map[string]rota.Shift)
	m.leaves = make(map[string]rota.LeaveRequest)
	m.leaveOrder = nil
	m.methods = make(map[string]payment.Method)
	m.methodOrder = nil
	m.prefs = nil
	return nil
}

// =============================================================================
// SHIFTS
// =============================================================================

func (m *Store) SaveShift(_ context.Context, s rota.Shift) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shifts[s.ID] = s
	return nil
}

func (m *Store) GetShift(_ context.Context, id string) (rota.Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.shifts[id]
	if !ok {
		return rota.Shift{}, generic.NotFound("shift", id)
	}
	return s, nil
}

func (m *Store) ListShifts(_ context.Context) ([]rota.Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]rota.Shift, 0, len(m.shifts))
	for _, s := range m.shifts {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Store) DeleteShift(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.shifts[id]; !ok {
		return generic.NotFound("shift", id)
	}
	delete(m.shifts, id)
	return nil
}

// =============================================================================
// LEAVE
// =============================================================================

func (m *Store) SaveLeave(_ context.Context, l rota.LeaveRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.leaves[l.ID]; !ok {
		m.leaveOrder = append(m.leaveOrder, l.ID)
	}
	m.leaves[l.ID] = l
	return nil
}

func (m *Store) GetLeave(_ context.Context, id string) (rota.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.leaves[id]
	if !ok {
		return rota.LeaveRequest{}, generic.NotFound("leave request", id)
	}
	return l, nil
}

func (m *Store) ListLeaves(_ context.Context) ([]rota.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]rota.LeaveRequest, 0, len(m.leaveOrder))
	for _, id := range m.leaveOrder {
		result = append(result, m.leaves[id])
	}
	return result, nil
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

func (m *Store) SaveNotification(_ context.Context, n rota.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, n)
	return nil
}

func (m *Store) HasNotification(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, n := range m.notifications {
		if n.ID == id {
			return true, nil
		}
	}
	return false, nil
}

func (m *Store) ListNotifications(_ context.Context, recipient string) ([]rota.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]rota.Notification, 0)
	for i := len(m.notifications) - 1; i >= 0; i-- {
		if n := m.notifications[i]; recipient == "" || n.Recipient == recipient {
			result = append(result, n)
		}
	}
	return result, nil
}

func (m *Store) MarkNotificationRead(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.notifications {
		if m.notifications[i].ID == id {
			m.notifications[i].IsRead = true
			return nil
		}
	}
	return generic.NotFound("notification", id)
}

// =============================================================================
// PAYMENT METHODS
// =============================================================================

func (m *Store) SavePaymentMethod(_ context.Context, pm payment.Method) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.methods[pm.ID]; !ok {
		m.methodOrder = append(m.methodOrder, pm.ID)
	}
	m.methods[pm.ID] = pm
	return nil
}

func (m *Store) ListPaymentMethods(_ context.Context, owner string) ([]payment.Method, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]payment.Method, 0)
	for _, id := range m.methodOrder {
		if pm := m.methods[id]; pm.OwnerID == owner {
			result = append(result, pm)
		}
	}
	return result, nil
}

func (m *Store) GetPaymentMethod(_ context.Context, id string) (payment.Method, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pm, ok := m.methods[id]
	if !ok {
		return payment.Method{}, generic.NotFound("payment method", id)
	}
	return pm, nil
}

func (m *Store) SetDefaultPaymentMethod(_ context.Context, owner, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	target, ok := m.methods[id]
	if !ok || target.OwnerID != owner {
		return generic.NotFound("payment method", id)
	}
	for k, pm := range m.methods {
		if pm.OwnerID == owner {
			pm.IsDefault = k == id
			m.methods[k] = pm
		}
	}
	return nil
}

// =============================================================================
// PREFERENCES / DOCTORS
// =============================================================================

func (m *Store) GetPreferences(_ context.Context) (rota.Preferences, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.prefs == nil {
		return rota.DefaultPreferences(), nil
	}
	return *m.prefs, nil
}

func (m *Store) SavePreferences(_ context.Context, p rota.Preferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs = &p
	return nil
}

func (m *Store) SaveDoctor(_ context.Context, d rota.Doctor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doctors[d.ID] = d
	return nil
}

func (m *Store) ListDoctors(_ context.Context) ([]rota.Doctor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]rota.Doctor, 0, len(m.doctors))
	for _, d := range m.doctors {
		result = append(result, d)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Store) SaveCredential(_ context.Context, c rota.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.credentials {
		if existing.ID == c.ID {
			m.credentials[i] = c
			return nil
		}
	}
	m.credentials = append(m.credentials, c)
	return nil
}

func (m *Store) ListCredentials(_ context.Context, doctorID string) ([]rota.Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]rota.Credential, 0)
	for _, c := range m.credentials {
		if c.DoctorID == doctorID {
			result = append(result, c)
		}
	}
	return result, nil
}

var _ rota.TxStore = (*Store)(nil)
