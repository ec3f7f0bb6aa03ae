/*
Package sqlite provides a SQLite-backed implementation of rota.TxStore.

PURPOSE:
  Persists shifts, leave requests, the wallet ledger, payment methods,
  notifications, preferences and doctors. In production the same patterns
  apply to PostgreSQL with minor dialect differences.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on the transactions table
  - No DELETE statements on the transactions table outside Reset/RestoreWallet
    (state import only)
  - wallets.balance is adjusted in the same SQL transaction as the insert

KEY TABLES:
  shifts:          Shift documents (JSON) with date/status columns for ordering
  leave_requests:  Leave documents (JSON) in filing order
  transactions:    Immutable wallet ledger
  wallets:         Cached balance per owner
  payment_methods: Payout destinations, one default per owner
  notifications:   Per-recipient inbox
  preferences:     Single row (current user, theme, language)
  doctors:         Doctor directory
  credentials:     Doctor passport entries in upload order

CONCURRENCY:
  One open connection (SetMaxOpenConns(1)) and a mutex around WithTx.
  Every statement inside WithTx runs on the *sql.Tx, so a status read in fn
  cannot be changed by another writer before fn commits.

USAGE:
  store, err := sqlite.New("./data/rota.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := rota.NewService(store, payment.NewSimulator())

SEE ALSO:
  - rota/store.go: Interface definitions
  - store/memory: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/warp/rota-engine/generic"
	"github.com/warp/rota-engine/payment"
	"github.com/warp/rota-engine/rota"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds every statement; it runs against the DB or a transaction.
type queries struct {
	db dbtx
}

// Store implements rota.TxStore using SQLite.
type Store struct {
	queries
	conn *sql.DB
	mu   sync.Mutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// ":memory:" databases are per connection.
	db.SetMaxOpenConns(1)

	store := &Store{queries: queries{db: db}, conn: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS shifts (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		status TEXT NOT NULL,
		assigned_doctor_id TEXT,
		payload TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_shifts_date ON shifts(date, id);
	CREATE INDEX IF NOT EXISTS idx_shifts_status ON shifts(status);

	CREATE TABLE IF NOT EXISTS leave_requests (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		doctor_id TEXT NOT NULL,
		status TEXT NOT NULL,
		payload TEXT NOT NULL
	);

	-- Append-only wallet ledger
	CREATE TABLE IF NOT EXISTS transactions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		owner_id TEXT NOT NULL,
		date TEXT NOT NULL,
		description TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		status TEXT NOT NULL,
		reference TEXT,
		idempotency_key TEXT UNIQUE,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_transactions_owner ON transactions(owner_id, seq);

	-- Cached balance, adjusted together with every insert above
	CREATE TABLE IF NOT EXISTS wallets (
		owner_id TEXT PRIMARY KEY,
		balance TEXT NOT NULL,
		currency TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS payment_methods (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		owner_id TEXT NOT NULL,
		type TEXT NOT NULL,
		brand TEXT,
		last4 TEXT,
		expiry TEXT,
		is_default INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_payment_methods_owner ON payment_methods(owner_id);

	CREATE TABLE IF NOT EXISTS notifications (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		recipient TEXT NOT NULL,
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		type TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		is_read INTEGER NOT NULL DEFAULT 0,
		action_link TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient, seq);

	CREATE TABLE IF NOT EXISTS preferences (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		payload TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS doctors (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		specialty TEXT,
		level TEXT,
		city TEXT
	);

	CREATE TABLE IF NOT EXISTS credentials (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		doctor_id TEXT NOT NULL,
		name TEXT NOT NULL,
		provider TEXT NOT NULL,
		expiry_date TEXT NOT NULL,
		file_url TEXT,
		uploaded_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_credentials_doctor ON credentials(doctor_id, seq);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (rota.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store rota.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{queries: queries{db: sqlTx}}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// AppendTransaction inserts tx and adjusts the cached balance atomically.
func (s *Store) AppendTransaction(ctx context.Context, tx generic.Transaction) error {
	return s.WithTx(ctx, func(st rota.Store) error {
		return st.AppendTransaction(ctx, tx)
	})
}

func (s *Store) RestoreWallet(ctx context.Context, owner generic.OwnerID, txs []generic.Transaction, balance generic.Amount) error {
	return s.WithTx(ctx, func(st rota.Store) error {
		return st.RestoreWallet(ctx, owner, txs, balance)
	})
}

func (s *Store) Reset(ctx context.Context) error {
	return s.WithTx(ctx, func(st rota.Store) error {
		return st.Reset(ctx)
	})
}

// txStore is the view handed to WithTx callbacks.
type txStore struct {
	queries
}

func (t *txStore) AppendTransaction(ctx context.Context, tx generic.Transaction) error {
	return t.appendTransaction(ctx, tx)
}

func (t *txStore) RestoreWallet(ctx context.Context, owner generic.OwnerID, txs []generic.Transaction, balance generic.Amount) error {
	return t.restoreWallet(ctx, owner, txs, balance)
}

func (t *txStore) Reset(ctx context.Context) error {
	return t.reset(ctx)
}

var (
	_ rota.TxStore = (*Store)(nil)
	_ rota.Store   = (*txStore)(nil)
)

// =============================================================================
// SHIFTS
// =============================================================================

func (q *queries) SaveShift(ctx context.Context, s rota.Shift) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode shift: %w", err)
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO shifts (id, date, status, assigned_doctor_id, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date,
			status = excluded.status,
			assigned_doctor_id = excluded.assigned_doctor_id,
			payload = excluded.payload
	`, s.ID, s.Date.String(), string(s.Status), nullString(s.AssignedDoctorID), string(payload))
	if err != nil {
		return fmt.Errorf("failed to save shift: %w", err)
	}
	return nil
}

func (q *queries) GetShift(ctx context.Context, id string) (rota.Shift, error) {
	var payload string
	err := q.db.QueryRowContext(ctx, "SELECT payload FROM shifts WHERE id = ?", id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return rota.Shift{}, generic.NotFound("shift", id)
	}
	if err != nil {
		return rota.Shift{}, fmt.Errorf("failed to get shift: %w", err)
	}
	var s rota.Shift
	if err := json.Unmarshal([]byte(payload), &s); err != nil {
		return rota.Shift{}, fmt.Errorf("failed to decode shift %s: %w", id, err)
	}
	return s, nil
}

func (q *queries) ListShifts(ctx context.Context) ([]rota.Shift, error) {
	rows, err := q.db.QueryContext(ctx, "SELECT payload FROM shifts ORDER BY date ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list shifts: %w", err)
	}
	defer rows.Close()

	shifts := make([]rota.Shift, 0)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var s rota.Shift
		if err := json.Unmarshal([]byte(payload), &s); err != nil {
			return nil, fmt.Errorf("failed to decode shift: %w", err)
		}
		shifts = append(shifts, s)
	}
	return shifts, rows.Err()
}

func (q *queries) DeleteShift(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM shifts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete shift: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return generic.NotFound("shift", id)
	}
	return nil
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

func (q *queries) SaveLeave(ctx context.Context, l rota.LeaveRequest) error {
	payload, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("failed to encode leave request: %w", err)
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO leave_requests (id, doctor_id, status, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			payload = excluded.payload
	`, l.ID, l.DoctorID, string(l.Status), string(payload))
	if err != nil {
		return fmt.Errorf("failed to save leave request: %w", err)
	}
	return nil
}

func (q *queries) GetLeave(ctx context.Context, id string) (rota.LeaveRequest, error) {
	var payload string
	err := q.db.QueryRowContext(ctx, "SELECT payload FROM leave_requests WHERE id = ?", id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return rota.LeaveRequest{}, generic.NotFound("leave request", id)
	}
	if err != nil {
		return rota.LeaveRequest{}, fmt.Errorf("failed to get leave request: %w", err)
	}
	var l rota.LeaveRequest
	if err := json.Unmarshal([]byte(payload), &l); err != nil {
		return rota.LeaveRequest{}, fmt.Errorf("failed to decode leave request %s: %w", id, err)
	}
	return l, nil
}

func (q *queries) ListLeaves(ctx context.Context) ([]rota.LeaveRequest, error) {
	rows, err := q.db.QueryContext(ctx, "SELECT payload FROM leave_requests ORDER BY seq ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list leave requests: %w", err)
	}
	defer rows.Close()

	leaves := make([]rota.LeaveRequest, 0)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var l rota.LeaveRequest
		if err := json.Unmarshal([]byte(payload), &l); err != nil {
			return nil, fmt.Errorf("failed to decode leave request: %w", err)
		}
		leaves = append(leaves, l)
	}
	return leaves, rows.Err()
}

// =============================================================================
// LEDGER (generic.LedgerStore interface)
// =============================================================================

func (q *queries) appendTransaction(ctx context.Context, tx generic.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	if err := q.insertTransaction(ctx, tx); err != nil {
		return err
	}
	balance, err := q.Balance(ctx, tx.OwnerID)
	if err != nil {
		return err
	}
	return q.setBalance(ctx, tx.OwnerID, balance.Add(tx.Amount))
}

func (q *queries) insertTransaction(ctx context.Context, tx generic.Transaction) error {
	currency := tx.Amount.Currency
	if currency == "" {
		currency = generic.DefaultCurrency
	}
	createdAt := tx.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO transactions
		(id, owner_id, date, description, amount, currency, tx_type, status, reference, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(tx.ID),
		string(tx.OwnerID),
		tx.Date.String(),
		tx.Description,
		tx.Amount.Value.String(),
		string(currency),
		string(tx.Type),
		string(tx.Status),
		nullString(tx.Reference),
		nullString(tx.IdempotencyKey),
		createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

func (q *queries) setBalance(ctx context.Context, owner generic.OwnerID, balance generic.Amount) error {
	currency := balance.Currency
	if currency == "" {
		currency = generic.DefaultCurrency
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO wallets (owner_id, balance, currency, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(owner_id) DO UPDATE SET
			balance = excluded.balance,
			currency = excluded.currency,
			updated_at = excluded.updated_at
	`, string(owner), balance.Value.String(), string(currency), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to update wallet: %w", err)
	}
	return nil
}

func (q *queries) Transactions(ctx context.Context, owner generic.OwnerID) ([]generic.Transaction, error) {
	return q.queryTransactions(ctx, transactionColumns+" WHERE owner_id = ? ORDER BY seq ASC", string(owner))
}

func (q *queries) AllTransactions(ctx context.Context) ([]generic.Transaction, error) {
	return q.queryTransactions(ctx, transactionColumns+" ORDER BY seq ASC")
}

func (q *queries) Balance(ctx context.Context, owner generic.OwnerID) (generic.Amount, error) {
	var value, currency string
	err := q.db.QueryRowContext(ctx, "SELECT balance, currency FROM wallets WHERE owner_id = ?", string(owner)).Scan(&value, &currency)
	if errors.Is(err, sql.ErrNoRows) {
		return generic.NewAmountFromInt(0, generic.DefaultCurrency), nil
	}
	if err != nil {
		return generic.Amount{}, fmt.Errorf("failed to get balance: %w", err)
	}
	return parseAmount(value, currency), nil
}

func (q *queries) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	var count int
	err := q.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)
	return count > 0, err
}

func (q *queries) Owners(ctx context.Context) ([]generic.OwnerID, error) {
	rows, err := q.db.QueryContext(ctx, "SELECT owner_id FROM wallets ORDER BY owner_id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	defer rows.Close()

	var owners []generic.OwnerID
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, err
		}
		owners = append(owners, generic.OwnerID(owner))
	}
	return owners, rows.Err()
}

func (q *queries) restoreWallet(ctx context.Context, owner generic.OwnerID, txs []generic.Transaction, balance generic.Amount) error {
	for _, tx := range txs {
		if err := tx.Validate(); err != nil {
			return err
		}
	}
	if _, err := q.db.ExecContext(ctx, "DELETE FROM transactions WHERE owner_id = ?", string(owner)); err != nil {
		return fmt.Errorf("failed to clear wallet: %w", err)
	}
	for _, tx := range txs {
		tx.OwnerID = owner
		if err := q.insertTransaction(ctx, tx); err != nil {
			return err
		}
	}
	return q.setBalance(ctx, owner, balance)
}

const transactionColumns = `
	SELECT id, owner_id, date, description, amount, currency, tx_type, status,
	       reference, idempotency_key, created_at
	FROM transactions`

func (q *queries) queryTransactions(ctx context.Context, query string, args ...any) ([]generic.Transaction, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []generic.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

func scanTransaction(rows *sql.Rows) (generic.Transaction, error) {
	var (
		tx             generic.Transaction
		date           string
		amount         string
		currency       string
		reference      sql.NullString
		idempotencyKey sql.NullString
		createdAt      string
	)

	err := rows.Scan(
		&tx.ID, &tx.OwnerID, &date, &tx.Description, &amount, &currency,
		&tx.Type, &tx.Status, &reference, &idempotencyKey, &createdAt,
	)
	if err != nil {
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}

	if d, err := generic.ParseDate(date); err == nil {
		tx.Date = d
	}
	tx.Amount = parseAmount(amount, currency)
	tx.Reference = reference.String
	tx.IdempotencyKey = idempotencyKey.String
	tx.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return tx, nil
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

func (q *queries) SaveNotification(ctx context.Context, n rota.Notification) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO notifications (id, recipient, title, message, type, timestamp, is_read, action_link)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			message = excluded.message,
			is_read = excluded.is_read
	`, n.ID, n.Recipient, n.Title, n.Message, string(n.Type),
		n.Timestamp.UTC().Format(time.RFC3339Nano), boolInt(n.IsRead), nullString(n.ActionLink))
	if err != nil {
		return fmt.Errorf("failed to save notification: %w", err)
	}
	return nil
}

func (q *queries) HasNotification(ctx context.Context, id string) (bool, error) {
	var count int
	err := q.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM notifications WHERE id = ?", id).Scan(&count)
	return count > 0, err
}

func (q *queries) ListNotifications(ctx context.Context, recipient string) ([]rota.Notification, error) {
	query := `SELECT id, recipient, title, message, type, timestamp, is_read, action_link FROM notifications`
	var args []any
	if recipient != "" {
		query += " WHERE recipient = ?"
		args = append(args, recipient)
	}
	query += " ORDER BY seq DESC"

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	result := make([]rota.Notification, 0)
	for rows.Next() {
		var (
			n         rota.Notification
			typ       string
			timestamp string
			isRead    int
			link      sql.NullString
		)
		if err := rows.Scan(&n.ID, &n.Recipient, &n.Title, &n.Message, &typ, &timestamp, &isRead, &link); err != nil {
			return nil, err
		}
		n.Type = rota.NotificationType(typ)
		n.Timestamp, _ = time.Parse(time.RFC3339Nano, timestamp)
		n.IsRead = isRead != 0
		n.ActionLink = link.String
		result = append(result, n)
	}
	return result, rows.Err()
}

func (q *queries) MarkNotificationRead(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, "UPDATE notifications SET is_read = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return generic.NotFound("notification", id)
	}
	return nil
}

// =============================================================================
// PAYMENT METHODS
// =============================================================================

func (q *queries) SavePaymentMethod(ctx context.Context, m payment.Method) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO payment_methods (id, owner_id, type, brand, last4, expiry, is_default)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner_id = excluded.owner_id,
			type = excluded.type,
			brand = excluded.brand,
			last4 = excluded.last4,
			expiry = excluded.expiry,
			is_default = excluded.is_default
	`, m.ID, m.OwnerID, string(m.Type), nullString(m.Brand), nullString(m.Last4), nullString(m.Expiry), boolInt(m.IsDefault))
	if err != nil {
		return fmt.Errorf("failed to save payment method: %w", err)
	}
	return nil
}

const paymentMethodColumns = `SELECT id, owner_id, type, brand, last4, expiry, is_default FROM payment_methods`

func (q *queries) ListPaymentMethods(ctx context.Context, owner string) ([]payment.Method, error) {
	rows, err := q.db.QueryContext(ctx, paymentMethodColumns+" WHERE owner_id = ? ORDER BY seq ASC", owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment methods: %w", err)
	}
	defer rows.Close()

	methods := make([]payment.Method, 0)
	for rows.Next() {
		m, err := scanPaymentMethod(rows)
		if err != nil {
			return nil, err
		}
		methods = append(methods, m)
	}
	return methods, rows.Err()
}

func (q *queries) GetPaymentMethod(ctx context.Context, id string) (payment.Method, error) {
	rows, err := q.db.QueryContext(ctx, paymentMethodColumns+" WHERE id = ?", id)
	if err != nil {
		return payment.Method{}, fmt.Errorf("failed to get payment method: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return payment.Method{}, err
		}
		return payment.Method{}, generic.NotFound("payment method", id)
	}
	return scanPaymentMethod(rows)
}

func scanPaymentMethod(rows *sql.Rows) (payment.Method, error) {
	var (
		m                    payment.Method
		typ                  string
		brand, last4, expiry sql.NullString
		isDefault            int
	)
	if err := rows.Scan(&m.ID, &m.OwnerID, &typ, &brand, &last4, &expiry, &isDefault); err != nil {
		return m, fmt.Errorf("failed to scan payment method: %w", err)
	}
	m.Type = payment.MethodType(typ)
	m.Brand = brand.String
	m.Last4 = last4.String
	m.Expiry = expiry.String
	m.IsDefault = isDefault != 0
	return m, nil
}

func (q *queries) SetDefaultPaymentMethod(ctx context.Context, owner, id string) error {
	var count int
	if err := q.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM payment_methods WHERE id = ? AND owner_id = ?", id, owner).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		return generic.NotFound("payment method", id)
	}
	_, err := q.db.ExecContext(ctx,
		"UPDATE payment_methods SET is_default = CASE WHEN id = ? THEN 1 ELSE 0 END WHERE owner_id = ?",
		id, owner)
	if err != nil {
		return fmt.Errorf("failed to set default payment method: %w", err)
	}
	return nil
}

// =============================================================================
// PREFERENCES / DOCTORS
// =============================================================================

func (q *queries) GetPreferences(ctx context.Context) (rota.Preferences, error) {
	var payload string
	err := q.db.QueryRowContext(ctx, "SELECT payload FROM preferences WHERE id = 1").Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return rota.DefaultPreferences(), nil
	}
	if err != nil {
		return rota.Preferences{}, fmt.Errorf("failed to get preferences: %w", err)
	}
	var p rota.Preferences
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return rota.Preferences{}, fmt.Errorf("failed to decode preferences: %w", err)
	}
	return p, nil
}

func (q *queries) SavePreferences(ctx context.Context, p rota.Preferences) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO preferences (id, payload) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload
	`, string(payload))
	if err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}

func (q *queries) SaveDoctor(ctx context.Context, d rota.Doctor) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO doctors (id, name, specialty, level, city)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			specialty = excluded.specialty,
			level = excluded.level,
			city = excluded.city
	`, d.ID, d.Name, d.Specialty, string(d.Level), d.City)
	if err != nil {
		return fmt.Errorf("failed to save doctor: %w", err)
	}
	return nil
}

func (q *queries) ListDoctors(ctx context.Context) ([]rota.Doctor, error) {
	rows, err := q.db.QueryContext(ctx, "SELECT id, name, specialty, level, city FROM doctors ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}
	defer rows.Close()

	doctors := make([]rota.Doctor, 0)
	for rows.Next() {
		var d rota.Doctor
		var specialty, level, city sql.NullString
		if err := rows.Scan(&d.ID, &d.Name, &specialty, &level, &city); err != nil {
			return nil, err
		}
		d.Specialty = specialty.String
		d.Level = rota.DoctorLevel(level.String)
		d.City = city.String
		doctors = append(doctors, d)
	}
	return doctors, rows.Err()
}

// =============================================================================
// CREDENTIALS
// =============================================================================

func (q *queries) SaveCredential(ctx context.Context, c rota.Credential) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO credentials (id, doctor_id, name, provider, expiry_date, file_url, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			provider = excluded.provider,
			expiry_date = excluded.expiry_date,
			file_url = excluded.file_url
	`, c.ID, c.DoctorID, c.Name, c.Provider, c.ExpiryDate.String(), nullString(c.FileURL), c.UploadedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

func (q *queries) ListCredentials(ctx context.Context, doctorID string) ([]rota.Credential, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, doctor_id, name, provider, expiry_date, file_url, uploaded_at
		FROM credentials WHERE doctor_id = ? ORDER BY seq ASC
	`, doctorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer rows.Close()

	creds := make([]rota.Credential, 0)
	for rows.Next() {
		var c rota.Credential
		var expiry, uploaded string
		var fileURL sql.NullString
		if err := rows.Scan(&c.ID, &c.DoctorID, &c.Name, &c.Provider, &expiry, &fileURL, &uploaded); err != nil {
			return nil, err
		}
		if c.ExpiryDate, err = generic.ParseDate(expiry); err != nil {
			return nil, err
		}
		if c.UploadedAt, err = time.Parse(time.RFC3339Nano, uploaded); err != nil {
			return nil, err
		}
		c.FileURL = fileURL.String
		creds = append(creds, c)
	}
	return creds, rows.Err()
}

// =============================================================================
// RESET
// =============================================================================

func (q *queries) reset(ctx context.Context) error {
	for _, table := range []string{"shifts", "leave_requests", "transactions", "wallets", "payment_methods", "preferences"} {
		if _, err := q.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseAmount(value, currency string) generic.Amount {
	return generic.Amount{
		Value:    generic.MustParseDecimal(value),
		Currency: generic.Currency(currency),
	}
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
