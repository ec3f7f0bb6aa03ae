package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rota-engine/generic"
	"github.com/warp/rota-engine/payment"
	"github.com/warp/rota-engine/rota"
	"github.com/warp/rota-engine/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func credit(id, owner string, value float64, key string) generic.Transaction {
	return generic.Transaction{
		ID:             generic.TransactionID(id),
		OwnerID:        generic.OwnerID(owner),
		Date:           generic.NewDate(2025, time.March, 10),
		Description:    "Shift Payment - Riyadh Central",
		Amount:         generic.USD(value),
		Type:           generic.TxCredit,
		Status:         generic.TxCompleted,
		Reference:      "PAY-0001",
		IdempotencyKey: key,
		CreatedAt:      time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC),
	}
}

// =============================================================================
// SHIFTS
// =============================================================================

func TestSQLite_Shifts_RoundTripAndOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rate := generic.USD(150)
	late := rota.Shift{ID: "s-2", CenterName: "Jeddah Clinic", Date: generic.NewDate(2025, time.March, 12), Status: rota.StatusOpen, Type: rota.ShiftNight}
	early := rota.Shift{ID: "s-1", CenterName: "Riyadh Central", Date: generic.NewDate(2025, time.March, 10), Status: rota.StatusAssigned, AssignedDoctorID: "d1", Rate: &rate, Type: rota.ShiftMorning}

	require.NoError(t, store.SaveShift(ctx, late))
	require.NoError(t, store.SaveShift(ctx, early))

	got, err := store.GetShift(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "d1", got.AssignedDoctorID)
	require.NotNil(t, got.Rate)
	assert.True(t, got.Rate.Equal(rate))
	assert.Equal(t, "2025-03-10", got.Date.String())

	shifts, err := store.ListShifts(ctx)
	require.NoError(t, err)
	require.Len(t, shifts, 2)
	assert.Equal(t, "s-1", shifts[0].ID)
	assert.Equal(t, "s-2", shifts[1].ID)

	// Upsert replaces the document
	late.Status = rota.StatusPendingApproval
	late.ApplicantID = "d2"
	require.NoError(t, store.SaveShift(ctx, late))
	got, err = store.GetShift(ctx, "s-2")
	require.NoError(t, err)
	assert.Equal(t, rota.StatusPendingApproval, got.Status)
}

func TestSQLite_Shifts_NotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetShift(ctx, "missing")
	assert.True(t, generic.IsNotFound(err))

	err = store.DeleteShift(ctx, "missing")
	assert.True(t, errors.Is(err, generic.ErrNotFound))
}

// =============================================================================
// LEDGER
// =============================================================================

func TestSQLite_AppendTransaction_AdjustsBalance(t *testing.T) {
	// GIVEN: An empty wallet
	// WHEN: Appending a credit of 1200 then a debit of 500
	// THEN: Cached balance is 700 and both rows come back in append order

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendTransaction(ctx, credit("tx-1", "d1", 1200, "shift-payment-s1")))

	debit := credit("tx-2", "d1", -500, "txn_1")
	debit.Type = generic.TxDebit
	debit.Description = "Withdrawal to Card"
	require.NoError(t, store.AppendTransaction(ctx, debit))

	balance, err := store.Balance(ctx, "d1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(generic.USD(700)), "balance = %s", balance)

	txs, err := store.Transactions(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, generic.TransactionID("tx-1"), txs[0].ID)
	assert.Equal(t, generic.TxDebit, txs[1].Type)
	assert.True(t, txs[1].Amount.Equal(generic.USD(-500)))
	assert.Equal(t, "2025-03-10", txs[0].Date.String())
}

func TestSQLite_AppendTransaction_DuplicateKey(t *testing.T) {
	// GIVEN: A credit with key shift-payment-s1
	// WHEN: Appending a second transaction with the same key
	// THEN: ErrDuplicateIdempotencyKey and the balance is unchanged

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendTransaction(ctx, credit("tx-1", "d1", 1200, "shift-payment-s1")))
	err := store.AppendTransaction(ctx, credit("tx-2", "d1", 1200, "shift-payment-s1"))
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)

	balance, _ := store.Balance(ctx, "d1")
	assert.True(t, balance.Equal(generic.USD(1200)))

	exists, err := store.Exists(ctx, "shift-payment-s1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSQLite_AppendTransaction_SignMismatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	bad := credit("tx-1", "d1", -100, "")
	err := store.AppendTransaction(ctx, bad)
	assert.ErrorIs(t, err, generic.ErrSignMismatch)

	owners, err := store.Owners(ctx)
	require.NoError(t, err)
	assert.Empty(t, owners)
}

func TestSQLite_UnknownOwnerHasZeroBalance(t *testing.T) {
	store := newTestStore(t)

	balance, err := store.Balance(context.Background(), "nobody")
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
	assert.Equal(t, generic.CurrencyUSD, balance.Currency)
}

func TestSQLite_RestoreWallet_TakesBalanceAsGiven(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendTransaction(ctx, credit("tx-old", "d1", 50, "")))

	restored := []generic.Transaction{credit("tx-1", "d1", 3000, "k1")}
	require.NoError(t, store.RestoreWallet(ctx, "d1", restored, generic.USD(4250)))

	balance, _ := store.Balance(ctx, "d1")
	assert.True(t, balance.Equal(generic.USD(4250)))

	txs, _ := store.Transactions(ctx, "d1")
	require.Len(t, txs, 1)
	assert.Equal(t, generic.TransactionID("tx-1"), txs[0].ID)

	// The ledger notices the cached balance does not match history
	err := generic.NewLedger(store).Verify(ctx, "d1")
	assert.ErrorIs(t, err, generic.ErrBalanceDrift)
}

func TestSQLite_RestoreWallet_RejectsSignMismatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendTransaction(ctx, credit("tx-old", "d1", 50, "")))

	bad := credit("tx-1", "d1", 100, "")
	bad.Type = generic.TxDebit
	err := store.RestoreWallet(ctx, "d1", []generic.Transaction{bad}, generic.USD(100))
	assert.ErrorIs(t, err, generic.ErrSignMismatch)

	txs, _ := store.Transactions(ctx, "d1")
	require.Len(t, txs, 1, "existing history untouched")
	assert.Equal(t, generic.TransactionID("tx-old"), txs[0].ID)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestSQLite_WithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: A transaction that saves a shift and appends a credit
	// WHEN: fn returns an error afterwards
	// THEN: Neither the shift nor the credit persists

	store := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(st rota.Store) error {
		if err := st.SaveShift(ctx, rota.Shift{ID: "s-1", CenterName: "Riyadh", Date: generic.NewDate(2025, time.March, 1), Status: rota.StatusOpen}); err != nil {
			return err
		}
		if err := st.AppendTransaction(ctx, credit("tx-1", "d1", 800, "k")); err != nil {
			return err
		}
		// Reads inside the transaction see its own writes
		balance, err := st.Balance(ctx, "d1")
		if err != nil {
			return err
		}
		assert.True(t, balance.Equal(generic.USD(800)))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.GetShift(ctx, "s-1")
	assert.True(t, generic.IsNotFound(err))
	balance, _ := store.Balance(ctx, "d1")
	assert.True(t, balance.IsZero())
	exists, _ := store.Exists(ctx, "k")
	assert.False(t, exists)
}

func TestSQLite_Reset_KeepsDoctorsAndNotifications(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveDoctor(ctx, rota.Doctor{ID: "d1", Name: "Dr. Omar", Specialty: "Cardiology", Level: rota.LevelConsultant, City: "Riyadh"}))
	require.NoError(t, store.SaveNotification(ctx, rota.Notification{ID: "n1", Recipient: "d1", Title: "Hello", Type: rota.NotifyInfo, Timestamp: time.Now()}))
	require.NoError(t, store.SaveShift(ctx, rota.Shift{ID: "s-1", CenterName: "Riyadh", Date: generic.NewDate(2025, time.March, 1), Status: rota.StatusOpen}))
	require.NoError(t, store.AppendTransaction(ctx, credit("tx-1", "d1", 800, "k")))

	require.NoError(t, store.Reset(ctx))

	shifts, _ := store.ListShifts(ctx)
	assert.Empty(t, shifts)
	owners, _ := store.Owners(ctx)
	assert.Empty(t, owners)
	doctors, _ := store.ListDoctors(ctx)
	assert.Len(t, doctors, 1)
	notes, _ := store.ListNotifications(ctx, "d1")
	assert.Len(t, notes, 1)
}

func TestSQLite_Credentials_UploadOrderPerDoctor(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	uploaded := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveCredential(ctx, rota.Credential{ID: "c1", DoctorID: "d1", Name: "Medical License", Provider: "SCFHS", ExpiryDate: generic.NewDate(2025, time.December, 31), UploadedAt: uploaded}))
	require.NoError(t, store.SaveCredential(ctx, rota.Credential{ID: "c2", DoctorID: "d2", Name: "ACLS", Provider: "AHA", ExpiryDate: generic.NewDate(2025, time.April, 9), UploadedAt: uploaded}))
	require.NoError(t, store.SaveCredential(ctx, rota.Credential{ID: "c3", DoctorID: "d1", Name: "BLS", Provider: "AHA", ExpiryDate: generic.NewDate(2025, time.January, 31), FileURL: "https://files.example/bls.pdf", UploadedAt: uploaded}))

	creds, err := store.ListCredentials(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, creds, 2)
	assert.Equal(t, "c1", creds[0].ID)
	assert.Equal(t, "2025-12-31", creds[0].ExpiryDate.String())
	assert.True(t, uploaded.Equal(creds[0].UploadedAt))
	assert.Equal(t, "https://files.example/bls.pdf", creds[1].FileURL)

	// Credentials belong to the doctor directory and survive a state reset
	require.NoError(t, store.Reset(ctx))
	creds, _ = store.ListCredentials(ctx, "d1")
	assert.Len(t, creds, 2)
}

// =============================================================================
// SUPPORTING RECORDS
// =============================================================================

func TestSQLite_PaymentMethods_SingleDefault(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SavePaymentMethod(ctx, payment.Method{ID: "pm1", OwnerID: "d1", Type: payment.MethodCard, Brand: "visa", Last4: "4242", Expiry: "12/28", IsDefault: true}))
	require.NoError(t, store.SavePaymentMethod(ctx, payment.Method{ID: "pm2", OwnerID: "d1", Type: payment.MethodApplePay}))
	require.NoError(t, store.SavePaymentMethod(ctx, payment.Method{ID: "pm3", OwnerID: "d2", Type: payment.MethodCard, IsDefault: true}))

	require.NoError(t, store.SetDefaultPaymentMethod(ctx, "d1", "pm2"))

	methods, err := store.ListPaymentMethods(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, methods, 2)
	assert.False(t, methods[0].IsDefault)
	assert.True(t, methods[1].IsDefault)
	assert.Equal(t, "4242", methods[0].Last4)

	other, _ := store.GetPaymentMethod(ctx, "pm3")
	assert.True(t, other.IsDefault, "another owner's default is untouched")

	err = store.SetDefaultPaymentMethod(ctx, "d1", "pm3")
	assert.True(t, generic.IsNotFound(err))
}

func TestSQLite_Notifications_NewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveNotification(ctx, rota.Notification{ID: "n1", Recipient: "d1", Title: "First", Type: rota.NotifyInfo, Timestamp: now}))
	require.NoError(t, store.SaveNotification(ctx, rota.Notification{ID: "n2", Recipient: "managers", Title: "Other", Type: rota.NotifyInfo, Timestamp: now}))
	require.NoError(t, store.SaveNotification(ctx, rota.Notification{ID: "n3", Recipient: "d1", Title: "Second", Type: rota.NotifySuccess, Timestamp: now, ActionLink: "/wallet"}))

	mine, err := store.ListNotifications(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "n3", mine[0].ID)
	assert.Equal(t, "/wallet", mine[0].ActionLink)

	all, _ := store.ListNotifications(ctx, "")
	assert.Len(t, all, 3)

	require.NoError(t, store.MarkNotificationRead(ctx, "n1"))
	mine, _ = store.ListNotifications(ctx, "d1")
	assert.True(t, mine[1].IsRead)

	has, _ := store.HasNotification(ctx, "n2")
	assert.True(t, has)
	assert.True(t, generic.IsNotFound(store.MarkNotificationRead(ctx, "nope")))
}

func TestSQLite_Preferences_DefaultThenSaved(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	prefs, err := store.GetPreferences(ctx)
	require.NoError(t, err)
	assert.Equal(t, rota.DefaultPreferences(), prefs)

	prefs.Theme = rota.ThemeDark
	prefs.Language = rota.LangArabic
	require.NoError(t, store.SavePreferences(ctx, prefs))

	got, _ := store.GetPreferences(ctx)
	assert.Equal(t, rota.ThemeDark, got.Theme)
	assert.Equal(t, rota.LangArabic, got.Language)
}

// =============================================================================
// SERVICE ON SQLITE
// =============================================================================

type okProcessor struct{}

func (okProcessor) Withdraw(_ context.Context, amount generic.Amount, m payment.Method) (payment.Result, error) {
	return payment.Result{Success: true, Message: "ok", TransactionID: "txn_test"}, nil
}

func (okProcessor) Link(_ context.Context, owner, token string) (payment.Method, error) {
	return payment.Method{ID: "pm_" + token, OwnerID: owner, Type: payment.MethodCard, Brand: "visa", Last4: "4242"}, nil
}

func TestSQLite_Service_TimesheetApprovalCreditsWallet(t *testing.T) {
	// GIVEN: A shift at $150/h with a submitted timesheet, on the SQLite store
	// WHEN: A manager approves
	// THEN: Shift is Paid and the doctor's wallet holds 1200

	store := newTestStore(t)
	ctx := context.Background()
	svc := rota.NewService(store, okProcessor{})

	manager := rota.Actor{ID: "u1", Role: rota.RoleRotaManager}
	doctor := rota.Actor{ID: "d1", Role: rota.RoleDoctor}
	rate := generic.USD(150)

	sh, err := svc.CreateShift(ctx, manager, rota.Shift{CenterName: "Riyadh Central", Date: generic.NewDate(2025, time.March, 10), Type: rota.ShiftMorning, Rate: &rate})
	require.NoError(t, err)
	_, err = svc.Assign(ctx, manager, sh.ID, doctor.ID)
	require.NoError(t, err)
	_, err = svc.SubmitTimesheet(ctx, doctor, sh.ID, rota.Timesheet{ActualStartTime: "08:00", ActualEndTime: "16:00"})
	require.NoError(t, err)

	res, err := svc.Resolve(ctx, manager, sh.ID, true)
	require.NoError(t, err)
	assert.Equal(t, rota.StatusPaid, res.Shift.Status)

	balance, err := store.Balance(ctx, "d1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(generic.USD(1200)), "balance = %s", balance)
	require.NoError(t, svc.Ledger().Verify(ctx, "d1"))

	// Approving again is an invalid transition and pays nothing
	_, err = svc.Resolve(ctx, manager, sh.ID, true)
	assert.ErrorIs(t, err, rota.ErrInvalidTransition)
	balance, _ = store.Balance(ctx, "d1")
	assert.True(t, balance.Equal(generic.USD(1200)))
}
