/*
service.go - The rota controller

PURPOSE:
  Service is the single owner of application state. Every user action
  (post, apply, assign, submit timesheet, request swap, approve, reject,
  request leave, withdraw, delete) is a method here. Each mutation runs
  inside one store transaction, computes the next state with the pure
  state machines and writes the result, the ledger entry and the
  notifications together.

PERMISSIONS:
  Managers (ROTA_MANAGER, CENTER_ADMIN) post, assign, delete and decide.
  Doctors apply, submit timesheets and request swaps on their own shifts.

LOGGING:
  Info on every applied transition, Warn on every rejected one.

SEE ALSO:
  - resolver.go: Resolve (approve/reject)
  - wallet.go: Withdraw, payment methods
  - state.go: Export/Import
*/
package rota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/warp/rota-engine/generic"
	"github.com/warp/rota-engine/payment"
	"go.uber.org/zap"
)

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	store    TxStore
	payments payment.Processor
	log      *zap.Logger
	now      func() time.Time
	newID    func() string
	wallets  keyedMutex
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option       { return func(s *Service) { s.log = l } }
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }
func WithIDs(newID func() string) Option    { return func(s *Service) { s.newID = newID } }

func NewService(store TxStore, payments payment.Processor, opts ...Option) *Service {
	s := &Service{
		store:    store,
		payments: payments,
		log:      zap.NewNop(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) today() generic.Date { return generic.DateOf(s.now()) }

// ledger builds a Ledger over st, sharing the service clock and id source.
func (s *Service) ledger(st generic.LedgerStore) *generic.Ledger {
	l := generic.NewLedger(st)
	l.Now = s.now
	l.NewID = func() string { return "tx-" + s.newID() }
	return l
}

// Ledger exposes the wallet ledger for read-side checks such as Verify.
func (s *Service) Ledger() *generic.Ledger { return s.ledger(s.store) }

func (s *Service) notify(ctx context.Context, st Store, recipient, title, message string, typ NotificationType, link string) error {
	if recipient == "" {
		return nil
	}
	return st.SaveNotification(ctx, Notification{
		ID:         "n-" + s.newID(),
		Recipient:  recipient,
		Title:      title,
		Message:    message,
		Type:       typ,
		Timestamp:  s.now().UTC(),
		ActionLink: link,
	})
}

func requireManager(actor Actor, action string) error {
	if !actor.IsManager() {
		return forbidden(action + " requires a manager")
	}
	return nil
}

// =============================================================================
// SHIFT CRUD
// =============================================================================

// CreateShift posts a new OPEN shift.
func (s *Service) CreateShift(ctx context.Context, actor Actor, sh Shift) (Shift, error) {
	if err := requireManager(actor, "create shift"); err != nil {
		return Shift{}, err
	}
	if sh.ID == "" {
		sh.ID = "s-" + s.newID()
	}
	sh.Status = StatusOpen
	sh.AssignedDoctorID = ""
	sh.ApplicantID = ""
	sh.Timesheet = nil
	if err := ValidateNew(sh); err != nil {
		return Shift{}, err
	}

	err := s.store.WithTx(ctx, func(st Store) error {
		if err := st.SaveShift(ctx, sh); err != nil {
			return err
		}
		return s.notify(ctx, st, actor.ID, "Shift Created", "Successfully posted shift at "+sh.CenterName, NotifySuccess, "/marketplace")
	})
	if err != nil {
		return Shift{}, err
	}
	s.log.Info("shift created", zap.String("shift_id", sh.ID), zap.String("center", sh.CenterName), zap.String("date", sh.Date.String()))
	return sh, nil
}

// AddShifts stores a batch of generated or imported shifts. Each must be
// OPEN or ASSIGNED, internally consistent and carry an id not already in
// the store; the batch is all-or-nothing.
func (s *Service) AddShifts(ctx context.Context, actor Actor, shifts []Shift) ([]Shift, error) {
	if err := requireManager(actor, "add shifts"); err != nil {
		return nil, err
	}
	out := make([]Shift, 0, len(shifts))
	seen := make(map[string]bool, len(shifts))
	for i, sh := range shifts {
		if sh.ID == "" {
			sh.ID = "s-" + s.newID()
		}
		if seen[sh.ID] {
			return nil, &ValidationError{Kind: ErrInvalidShift, Reason: fmt.Sprintf("shift %d: id %q repeated in batch", i, sh.ID)}
		}
		seen[sh.ID] = true
		if sh.Status == "" {
			sh.Status = StatusOpen
		}
		if sh.Status != StatusOpen && sh.Status != StatusAssigned {
			return nil, &ValidationError{Kind: ErrInvalidShift, Reason: fmt.Sprintf("shift %d: status %q cannot be bulk added", i, sh.Status)}
		}
		if err := ValidateNew(sh); err != nil {
			return nil, fmt.Errorf("shift %d: %w", i, err)
		}
		out = append(out, sh)
	}

	err := s.store.WithTx(ctx, func(st Store) error {
		for i, sh := range out {
			_, err := st.GetShift(ctx, sh.ID)
			if err == nil {
				return &ValidationError{Kind: ErrInvalidShift, Reason: fmt.Sprintf("shift %d: id %q already exists", i, sh.ID)}
			}
			if !errors.Is(err, generic.ErrNotFound) {
				return err
			}
			if err := st.SaveShift(ctx, sh); err != nil {
				return err
			}
		}
		return s.notify(ctx, st, actor.ID, "Schedule Generated", fmt.Sprintf("%d shifts added from AI Generator.", len(out)), NotifySuccess, "/schedule")
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("shifts added", zap.Int("count", len(out)))
	return out, nil
}

// DeleteShift removes a shift outright, whatever its status.
func (s *Service) DeleteShift(ctx context.Context, actor Actor, id string) error {
	if err := requireManager(actor, "delete shift"); err != nil {
		return err
	}
	err := s.store.WithTx(ctx, func(st Store) error {
		if err := st.DeleteShift(ctx, id); err != nil {
			return err
		}
		return s.notify(ctx, st, actor.ID, "Shift Deleted", "Shift removed from schedule", NotifyInfo, "/schedule")
	})
	if err != nil {
		return err
	}
	s.log.Info("shift deleted", zap.String("shift_id", id))
	return nil
}

func (s *Service) GetShift(ctx context.Context, id string) (Shift, error) {
	return s.store.GetShift(ctx, id)
}

// ListShifts returns all shifts, optionally restricted to some statuses.
func (s *Service) ListShifts(ctx context.Context, statuses ...ShiftStatus) ([]Shift, error) {
	shifts, err := s.store.ListShifts(ctx)
	if err != nil {
		return nil, err
	}
	return FilterByStatus(shifts, statuses...), nil
}

// =============================================================================
// DOCTOR ACTIONS
// =============================================================================

// Apply puts actor forward for an OPEN shift.
func (s *Service) Apply(ctx context.Context, actor Actor, id string) (Shift, error) {
	return s.transition(ctx, actor, id, TriggerApply, TransitionInput{DoctorID: actor.ID},
		func(st Store, before, after Shift) error {
			if err := s.notify(ctx, st, actor.ID, "Application Sent", "You applied for "+after.CenterName, NotifySuccess, "/dashboard"); err != nil {
				return err
			}
			msg := fmt.Sprintf("%s applied for the %s shift at %s.", displayName(actor), after.Type, after.CenterName)
			return s.notify(ctx, st, ManagersInbox, "New Application", msg, NotifySuccess, "/marketplace")
		})
}

// SubmitTimesheet attaches the assigned doctor's actual hours.
func (s *Service) SubmitTimesheet(ctx context.Context, actor Actor, id string, ts Timesheet) (Shift, error) {
	return s.transition(ctx, actor, id, TriggerSubmitTimesheet, TransitionInput{Timesheet: &ts, At: s.now()},
		func(st Store, before, after Shift) error {
			msg := fmt.Sprintf("Timesheet submitted for %s. Pending approval.", after.CenterName)
			if err := s.notify(ctx, st, actor.ID, "Timesheet Submitted", msg, NotifyInfo, "/"); err != nil {
				return err
			}
			return s.notify(ctx, st, ManagersInbox, "Timesheet Submitted", msg, NotifyInfo, "/")
		})
}

// RequestSwap asks a manager to release the assigned doctor from a shift.
func (s *Service) RequestSwap(ctx context.Context, actor Actor, id string) (Shift, error) {
	return s.transition(ctx, actor, id, TriggerRequestSwap, TransitionInput{},
		func(st Store, before, after Shift) error {
			msg := "Swap request sent for shift on " + after.Date.String()
			if err := s.notify(ctx, st, actor.ID, "Swap Requested", msg, NotifyWarning, "/dashboard"); err != nil {
				return err
			}
			return s.notify(ctx, st, ManagersInbox, "Swap Requested", msg, NotifyWarning, "/dashboard")
		})
}

// =============================================================================
// MANAGER ACTIONS
// =============================================================================

// Assign gives an OPEN or PENDING shift directly to doctorID.
func (s *Service) Assign(ctx context.Context, actor Actor, id, doctorID string) (Shift, error) {
	return s.transition(ctx, actor, id, TriggerAssign, TransitionInput{DoctorID: doctorID},
		func(st Store, before, after Shift) error {
			name := s.doctorName(ctx, st, doctorID)
			msg := fmt.Sprintf("%s assigned to %s shift.", name, after.SpecialtyRequired)
			if err := s.notify(ctx, st, actor.ID, "Doctor Assigned", msg, NotifySuccess, "/schedule"); err != nil {
				return err
			}
			return s.notify(ctx, st, doctorID, "Doctor Assigned", msg, NotifySuccess, "/schedule")
		})
}

func (s *Service) doctorName(ctx context.Context, st Store, id string) string {
	doctors, err := st.ListDoctors(ctx)
	if err != nil {
		return id
	}
	for _, d := range doctors {
		if d.ID == id {
			return d.Name
		}
	}
	return id
}

func displayName(a Actor) string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}

// =============================================================================
// TRANSITION PLUMBING
// =============================================================================

type afterTransition func(st Store, before, after Shift) error

// transition loads the shift inside a store transaction, applies trig, checks
// who may do it, saves, and runs then in the same transaction.
func (s *Service) transition(ctx context.Context, actor Actor, id string, trig Trigger, in TransitionInput, then afterTransition) (Shift, error) {
	var result Shift
	err := s.store.WithTx(ctx, func(st Store) error {
		current, err := st.GetShift(ctx, id)
		if err != nil {
			return err
		}
		next, err := ApplyTransition(current, trig, in)
		if err != nil {
			return err
		}
		if err := authorize(actor, trig, current); err != nil {
			return err
		}
		if err := st.SaveShift(ctx, next); err != nil {
			return err
		}
		if then != nil {
			if err := then(st, current, next); err != nil {
				return err
			}
		}
		result = next
		return nil
	})
	if err != nil {
		s.logRejected(id, trig, actor, err)
		return Shift{}, err
	}
	s.log.Info("shift transition applied",
		zap.String("shift_id", id),
		zap.String("trigger", string(trig)),
		zap.String("status", string(result.Status)),
		zap.String("actor_id", actor.ID))
	return result, nil
}

func (s *Service) logRejected(id string, trig Trigger, actor Actor, err error) {
	if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrForbidden) {
		s.log.Warn("shift transition rejected",
			zap.String("shift_id", id),
			zap.String("trigger", string(trig)),
			zap.String("actor_id", actor.ID),
			zap.Error(err))
	}
}

// authorize checks the actor against the trigger and the shift as it was
// before the transition.
func authorize(actor Actor, trig Trigger, current Shift) error {
	if actor.ID == "" {
		return forbidden("actor is required")
	}
	if trig.ManagerOnly() {
		return requireManager(actor, string(trig))
	}
	switch trig {
	case TriggerSubmitTimesheet, TriggerRequestSwap:
		if current.AssignedDoctorID != actor.ID && !actor.IsManager() {
			return forbidden(string(trig) + " is reserved for the assigned doctor")
		}
	}
	return nil
}

// =============================================================================
// READ MODELS
// =============================================================================

// Calendar builds the month grid as seen by actor.
// Calendar builds the month grid with the week starting on the stored
// language's first weekday.
func (s *Service) Calendar(ctx context.Context, actor Actor, year int, month time.Month) (Grid, error) {
	prefs, err := s.store.GetPreferences(ctx)
	if err != nil {
		return Grid{}, err
	}
	return s.CalendarFrom(ctx, actor, year, month, prefs.Language.FirstWeekday())
}

// CalendarFrom builds the month grid with the week starting on weekStart.
func (s *Service) CalendarFrom(ctx context.Context, actor Actor, year int, month time.Month, weekStart time.Weekday) (Grid, error) {
	shifts, err := s.store.ListShifts(ctx)
	if err != nil {
		return Grid{}, err
	}
	leaves, err := s.store.ListLeaves(ctx)
	if err != nil {
		return Grid{}, err
	}
	return BuildMonth(CalendarInput{Year: year, Month: month, Shifts: shifts, Leaves: leaves, Actor: actor, FirstWeekday: weekStart}), nil
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	shifts, err := s.store.ListShifts(ctx)
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(shifts), nil
}

func (s *Service) Marketplace(ctx context.Context) ([]Shift, error) {
	shifts, err := s.store.ListShifts(ctx)
	if err != nil {
		return nil, err
	}
	return Marketplace(shifts), nil
}

func (s *Service) Urgent(ctx context.Context, limit int) ([]Shift, error) {
	shifts, err := s.store.ListShifts(ctx)
	if err != nil {
		return nil, err
	}
	return UrgentShifts(shifts, limit), nil
}

// PendingRequests is the manager inbox: shifts awaiting a decision and
// pending leave.
type PendingRequests struct {
	Shifts []Shift        `json:"shifts"`
	Leaves []LeaveRequest `json:"leaves"`
}

func (s *Service) PendingRequests(ctx context.Context) (PendingRequests, error) {
	shifts, err := s.store.ListShifts(ctx)
	if err != nil {
		return PendingRequests{}, err
	}
	leaves, err := s.store.ListLeaves(ctx)
	if err != nil {
		return PendingRequests{}, err
	}
	pending := make([]LeaveRequest, 0)
	for _, l := range leaves {
		if l.Status == LeavePending {
			pending = append(pending, l)
		}
	}
	return PendingRequests{Shifts: AwaitingManager(shifts), Leaves: pending}, nil
}

func (s *Service) Search(ctx context.Context, query string) (SearchResult, error) {
	doctors, err := s.store.ListDoctors(ctx)
	if err != nil {
		return SearchResult{}, err
	}
	shifts, err := s.store.ListShifts(ctx)
	if err != nil {
		return SearchResult{}, err
	}
	return Search(query, doctors, shifts), nil
}

// =============================================================================
// DOCTORS
// =============================================================================

func (s *Service) Doctors(ctx context.Context) ([]Doctor, error) {
	return s.store.ListDoctors(ctx)
}

func (s *Service) SaveDoctor(ctx context.Context, actor Actor, d Doctor) (Doctor, error) {
	if err := requireManager(actor, "save doctor"); err != nil {
		return Doctor{}, err
	}
	if d.Name == "" {
		return Doctor{}, &ValidationError{Kind: ErrInvalidDoctor, Reason: "doctor name is required"}
	}
	if d.ID == "" {
		d.ID = "d-" + s.newID()
	}
	if err := s.store.SaveDoctor(ctx, d); err != nil {
		return Doctor{}, err
	}
	return d, nil
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

func (s *Service) Notifications(ctx context.Context, recipient string) ([]Notification, error) {
	return s.store.ListNotifications(ctx, recipient)
}

func (s *Service) MarkNotificationRead(ctx context.Context, id string) error {
	return s.store.MarkNotificationRead(ctx, id)
}

// SweepOverdue raises one warning per OPEN shift whose due date has passed.
// Re-running it never duplicates a warning. Returns how many were raised.
func (s *Service) SweepOverdue(ctx context.Context) (int, error) {
	raised := 0
	err := s.store.WithTx(ctx, func(st Store) error {
		shifts, err := st.ListShifts(ctx)
		if err != nil {
			return err
		}
		for _, sh := range Overdue(shifts, s.today()) {
			id := "deadline-" + sh.ID
			seen, err := st.HasNotification(ctx, id)
			if err != nil {
				return err
			}
			if seen {
				continue
			}
			err = st.SaveNotification(ctx, Notification{
				ID:         id,
				Recipient:  ManagersInbox,
				Title:      "Shift Due Date Passed",
				Message:    fmt.Sprintf("The shift at %s on %s is still open past its due date %s.", sh.CenterName, sh.Date, sh.DueDate),
				Type:       NotifyWarning,
				Timestamp:  s.now().UTC(),
				ActionLink: "/marketplace",
			})
			if err != nil {
				return err
			}
			raised++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if raised > 0 {
		s.log.Info("overdue shifts flagged", zap.Int("count", raised))
	}
	return raised, nil
}
