/*
handlers.go - HTTP API handlers for the rota engine

PURPOSE:
  Exposes rota.Service and the scheduling assistant over REST. Handlers
  parse the request, validate the body, call the service and serialize the
  result. No business rule lives here.

ENDPOINTS:
  Shifts:
    GET    /api/shifts                  List (?status= repeatable)
    POST   /api/shifts                  Create an OPEN shift (manager)
    POST   /api/shifts/bulk             Add reviewed assistant drafts (manager)
    GET    /api/shifts/export           CSV download
    GET    /api/shifts/marketplace      OPEN shifts
    GET    /api/shifts/urgent           OPEN shifts with a due date (?limit=)
    GET    /api/shifts/{id}
    DELETE /api/shifts/{id}
    POST   /api/shifts/{id}/apply|assign|timesheet|swap|approve|reject

  Leave, calendar, dashboard:
    GET/POST /api/leave, POST /api/leave/{id}/approve|reject
    GET    /api/calendar?year=&month=
    GET    /api/requests/pending, /api/stats, /api/search?q=

  Wallet:
    GET    /api/wallet/{owner}
    POST   /api/wallet/{owner}/withdraw
    GET/POST /api/wallet/{owner}/methods, POST .../methods/{id}/default

  Assistant:
    POST   /api/assistant/analyze|suggest|generate|import

ACTOR:
  X-Actor-ID, X-Actor-Role and X-Actor-Name identify the caller. Without
  X-Actor-ID the stored current user (preferences) is used.

ERROR HANDLING:
  writeServiceError maps domain errors to status codes in one place:
  - 400: Validation errors, invalid input
  - 403: Role or ownership check failed
  - 404: Record not found
  - 409: Illegal transition, duplicate idempotency key
  - 422: Insufficient funds
  - 502: Payment processor or assistant upstream failure
  - 503: Assistant not configured

SECURITY NOTE:
  No authentication. The actor headers are trusted as given.

SEE ALSO:
  - dto.go: Request bodies
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/rota-engine/assistant"
	"github.com/warp/rota-engine/generic"
	"github.com/warp/rota-engine/rota"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service   *rota.Service
	Assistant *assistant.Client
	Log       *zap.Logger
	Now       func() time.Time
}

// NewHandler creates a new handler.
func NewHandler(svc *rota.Service, ai *assistant.Client, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Service: svc, Assistant: ai, Log: log, Now: time.Now}
}

// actor resolves the caller from the request headers, falling back to the
// stored current user.
func (h *Handler) actor(r *http.Request) (rota.Actor, error) {
	if id := r.Header.Get("X-Actor-ID"); id != "" {
		role := rota.Role(r.Header.Get("X-Actor-Role"))
		if role == "" {
			role = rota.RoleDoctor
		}
		if !role.Valid() {
			return rota.Actor{}, &rota.ValidationError{Kind: errBadRequest, Reason: fmt.Sprintf("unknown role %q", role)}
		}
		return rota.Actor{ID: id, Name: r.Header.Get("X-Actor-Name"), Role: role}, nil
	}
	prefs, err := h.Service.Preferences(r.Context())
	if err != nil {
		return rota.Actor{}, err
	}
	return prefs.CurrentUser, nil
}

// decode reads a JSON body into dst and runs the struct validator.
func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &rota.ValidationError{Kind: errBadRequest, Reason: "invalid request body: " + err.Error()}
	}
	if err := validate.Struct(dst); err != nil {
		return &rota.ValidationError{Kind: errBadRequest, Reason: validationMessage(err)}
	}
	return nil
}

var errBadRequest = errors.New("bad request")

// =============================================================================
// SHIFT HANDLERS
// =============================================================================

// ListShifts returns all shifts, optionally filtered by status.
// GET /api/shifts?status=Open&status=Assigned
func (h *Handler) ListShifts(w http.ResponseWriter, r *http.Request) {
	var statuses []rota.ShiftStatus
	for _, s := range r.URL.Query()["status"] {
		st := rota.ShiftStatus(s)
		if !st.Valid() {
			writeError(w, http.StatusBadRequest, "Unknown shift status", fmt.Errorf("%q", s))
			return
		}
		statuses = append(statuses, st)
	}

	shifts, err := h.Service.ListShifts(r.Context(), statuses...)
	if err != nil {
		h.writeServiceError(w, "Failed to list shifts", err)
		return
	}
	writeJSON(w, http.StatusOK, shifts)
}

// GetShift returns a single shift.
func (h *Handler) GetShift(w http.ResponseWriter, r *http.Request) {
	sh, err := h.Service.GetShift(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, "Failed to get shift", err)
		return
	}
	writeJSON(w, http.StatusOK, sh)
}

// CreateShift posts a new OPEN shift.
// POST /api/shifts
func (h *Handler) CreateShift(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.writeServiceError(w, "Invalid actor", err)
		return
	}
	var req CreateShiftRequest
	if err := decode(r, &req); err != nil {
		h.writeServiceError(w, "Invalid shift", err)
		return
	}

	sh, err := h.Service.CreateShift(r.Context(), actor, req.toShift())
	if err != nil {
		h.writeServiceError(w, "Failed to create shift", err)
		return
	}
	writeJSON(w, http.StatusCreated, sh)
}

// AddShifts stores a reviewed batch of drafts.
// POST /api/shifts/bulk
func (h *Handler) AddShifts(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.writeServiceError(w, "Invalid actor", err)
		return
	}
	var req BulkShiftsRequest
	if err := decode(r, &req); err != nil {
		h.writeServiceError(w, "Invalid shifts", err)
		return
	}

	added, err := h.Service.AddShifts(r.Context(), actor, req.Shifts)
	if err != nil {
		h.writeServiceError(w, "Failed to add shifts", err)
		return
	}
	writeJSON(w, http.StatusCreated, BulkShiftsResponse{
		Shifts:  added,
		Message: fmt.Sprintf("%d shifts added.", len(added)),
	})
}

// DeleteShift removes a shift.
func (h *Handler) DeleteShift(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.writeServiceError(w, "Invalid actor", err)
		return
	}
	if err := h.Service.DeleteShift(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, "Failed to delete shift", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportShifts downloads the schedule as CSV.
// GET /api/shifts/export
func (h *Handler) ExportShifts(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.writeServiceError(w, "Invalid actor", err)
		return
	}
	var buf bytes.Buffer
	if err := h.Service.ExportSchedule(r.Context(), actor, &buf); err != nil {
		h.writeServiceError(w, "Failed to export schedule", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="rota_schedule_%s.csv"`, h.Now().Format("2006-01-02")))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// Marketplace lists OPEN shifts.
func (h *Handler) Marketplace(w http.ResponseWriter, r *http.Request) {
	shifts, err := h.Service.Marketplace(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to list marketplace", err)
		return
	}
	writeJSON(w, http.StatusOK, shifts)
}

// Urgent lists OPEN shifts with a due date, soonest first.
// GET /api/shifts/urgent?limit=3
func (h *Handler) Urgent(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}
	shifts, err := h.Service.Urgent(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, "Failed to list urgent shifts", err)
		return
	}
	writeJSON(w, http.StatusOK, shifts)
}

// Apply puts the caller forward for an OPEN shift.
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	h.shiftAction(w, r, "Failed to apply", func(actor rota.Actor, id string) (rota.Shift, error) {
		return h.Service.Apply(r.Context(), actor, id)
	})
}

// RequestSwap asks managers to release the caller's shift.
func (h *Handler) RequestSwap(w http.ResponseWriter, r *http.Request) {
	h.shiftAction(w, r, "Failed to request swap", func(actor rota.Actor, id string) (rota.Shift, error) {
		return h.Service.RequestSwap(r.Context(), actor, id)
	})
}

// Assign puts a doctor straight onto an OPEN shift.
func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	var req AssignRequest
	if err := decode(r, &req); err != nil {
		h.writeServiceError(w, "Invalid assignment", err)
		return
	}
	h.shiftAction(w, r, "Failed to assign", func(actor rota.Actor, id string) (rota.Shift, error) {
		return h.Service.Assign(r.Context(), actor, id, req.DoctorID)
	})
}

// SubmitTimesheet records hours worked on an ASSIGNED shift.
func (h *Handler) SubmitTimesheet(w http.ResponseWriter, r *http.Request) {
	var req TimesheetRequest
	if err := decode(r, &req); err != nil {
		h.writeServiceError(w, "Invalid timesheet", err)
		return
	}
	h.shiftAction(w, r, "Failed to submit timesheet", func(actor rota.Actor, id string) (rota.Shift, error) {
		return h.Service.SubmitTimesheet(r.Context(), actor, id, req.toTimesheet())
	})
}

func (h *Handler) shiftAction(w http.ResponseWriter, r *http.Request, failure string, do func(rota.Actor, string) (rota.Shift, error)) {
	actor, err := h.actor(r)
	if err != nil {
		h.writeServiceError(w, "Invalid actor", err)
		return
	}
	sh, err := do(actor, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, failure, err)
		return
	}
	writeJSON(w, http.StatusOK, sh)
}

// ApproveShift resolves whatever the shift is waiting on.
// POST /api/shifts/{id}/approve
func (h *Handler) ApproveShift(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, true)
}

// RejectShift rejects whatever the shift is waiting on.
// POST /api/shifts/{id}/reject
func (h *Handler) RejectShift(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, false)
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request, approve bool) {
	actor, err := h.actor(r)
	if err != nil {
		h.writeServiceError(w, "Invalid actor", err)
		return
	}
	res, err := h.Service.Resolve(r.Context(), actor, chi.URLParam(r, "id"), approve)
	if err != nil {
		h.writeServiceError(w, "Failed to resolve shift", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// =============================================================================
// LEAVE HANDLERS
// =============================================================================

func (h *Handler) ListLeaves(w http.ResponseWriter, r *http.Request) {
	leaves, err := h.Service.ListLeaves(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to list leave requests", err)
		return
	}
	writeJSON(w, http.StatusOK, leaves)
}

// RequestLeave files a leave request for the caller.
// POST /api/leave
func (h *Handler) RequestLeave(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.writeServiceError(w, "Invalid actor", err)
		return
	}
	var req LeaveRequestBody
	if err := decode(r, &req); err != nil {
		h.writeServiceError(w, "Invalid leave request", err)
		return
	}
	l, err := h.Service.RequestLeave(r.Context(), actor, req.toLeave())
	if err != nil {
		h.writeServiceError(w, "Failed to request leave", err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

func (h *Handler) ApproveLeave(w http.ResponseWriter, r *http.Request) { h.decideLeave(w, r, true) }
func (h *Handler) RejectLeave(w http.ResponseWriter, r *http.Request)  { h.decideLeave(w, r, false) }

func (h *Handler) decideLeave(w http.ResponseWriter, r *http.Request, approve bool) {
	actor, err := h.actor(r)
	if err != nil {
		h.writeServiceError(w, "Invalid actor", err)
		return
	}
	l, err := h.Service.DecideLeave(r.Context(), actor, chi.URLParam(r, "id"), approve)
	if err != nil {
		h.writeServiceError(w, "Failed to decide leave request", err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// =============================================================================
// CALENDAR & DASHBOARD
// =============================================================================

// Calendar returns the month grid for the caller.
// GET /api/calendar?year=2025&month=3
func (h *Handler) Calendar(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.writeServiceError(w, "Invalid actor", err)
		return
	}

	now := h.Now()
	year, month := now.Year(), now.Month()
	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		year = y
	}
	if v := r.URL.Query().Get("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			writeError(w, http.StatusBadRequest, "Invalid month (1-12)", err)
			return
		}
		month = time.Month(m)
	}

	weekStart := -1
	if v := r.URL.Query().Get("firstWeekday"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil || d < 0 || d > 6 {
			writeError(w, http.StatusBadRequest, "Invalid firstWeekday (0=Sunday to 6=Saturday)", err)
			return
		}
		weekStart = d
	}

	var grid rota.Grid
	if weekStart >= 0 {
		grid, err = h.Service.CalendarFrom(r.Context(), actor, year, month, time.Weekday(weekStart))
	} else {
		grid, err = h.Service.Calendar(r.Context(), actor, year, month)
	}
	if err != nil {
		h.writeServiceError(w, "Failed to build calendar", err)
		return
	}
	writeJSON(w, http.StatusOK, grid)
}

func (h *Handler) PendingRequests(w http.ResponseWriter, r *http.Request) {
	pending, err := h.Service.PendingRequests(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to list pending requests", err)
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Service.Stats(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to compute stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	res, err := h.Service.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.writeServiceError(w, "Failed to search", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// =============================================================================
// DOCTORS
// =============================================================================

func (h *Handler) ListDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := h.Service.Doctors(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to list doctors", err)
		return
	}
	writeJSON(w, http.StatusOK, doctors)
}

func (h *Handler) SaveDoctor(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.writeServiceError(w, "Invalid actor", err)
		return
	}
	var req DoctorRequest
	if err := decode(r, &req); err != nil {
		h.writeServiceError(w, "Invalid doctor", err)
		return
	}
	d, err := h.Service.SaveDoctor(r.Context(), actor, rota.Doctor{
		ID:        req.ID,
		Name:      req.Name,
		Specialty: req.Specialty,
		Level:     rota.DoctorLevel(req.Level),
		City:      req.City,
	})
	if err != nil {
		h.writeServiceError(w, "Failed to save doctor", err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// ListCredentials returns a doctor's credential passport.
// GET /api/doctors/{id}/credentials
func (h *Handler) ListCredentials(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.writeServiceError(w, "Invalid actor", err)
		return
	}
	creds, err := h.Service.Credentials(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, "Failed to list credentials", err)
		return
	}
	writeJSON(w, http.StatusOK, creds)
}

// AddCredential uploads a credential into a doctor's passport.
// POST /api/doctors/{id}/credentials
func (h *Handler) AddCredential(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.writeServiceError(w, "Invalid actor", err)
		return
	}
	var req CredentialRequest
	if err := decode(r, &req); err != nil {
		h.writeServiceError(w, "Invalid credential", err)
		return
	}
	c, err := h.Service.AddCredential(r.Context(), actor, chi.URLParam(r, "id"), req.toCredential())
	if err != nil {
		h.writeServiceError(w, "Failed to add credential", err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// =============================================================================
// WALLET
// =============================================================================

// GetWallet returns balance, pending clearance and history.
// GET /api/wallet/{owner}
func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.writeServiceError(w, "Invalid actor", err)
		return
	}
	view, err := h.Service.Wallet(r.Context(), actor, chi.URLParam(r, "owner"))
	if err != nil {
		h.writeServiceError(w, "Failed to load wallet", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Withdraw pays out from the caller's wallet.
// POST /api/wallet/{owner}/withdraw
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.writeServiceError(w, "Invalid actor", err)
		return
	}
	var req WithdrawRequest
	if err := decode(r, &req); err != nil {
		h.writeServiceError(w, "Invalid withdrawal", err)
		return
	}

	res, err := h.Service.Withdraw(r.Context(), actor, chi.URLParam(r, "owner"), rota.WithdrawRequest{
		Amount:   generic.Amount{Value: req.Amount, Currency: generic.DefaultCurrency},
		MethodID: req.MethodID,
	})
	if err != nil {
		h.writeServiceError(w, "Withdrawal failed", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) ListPaymentMethods(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.writeServiceError(w, "Invalid actor", err)
		return
	}
	methods, err := h.Service.PaymentMethods(r.Context(), actor, chi.URLParam(r, "owner"))
	if err != nil {
		h.writeServiceError(w, "Failed to list payment methods", err)
		return
	}
	writeJSON(w, http.StatusOK, methods)
}

func (h *Handler) LinkPaymentMethod(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.writeServiceError(w, "Invalid actor", err)
		return
	}
	var req LinkMethodRequest
	if err := decode(r, &req); err != nil {
		h.writeServiceError(w, "Invalid payment method", err)
		return
	}
	m, err := h.Service.LinkPaymentMethod(r.Context(), actor, chi.URLParam(r, "owner"), req.Token)
	if err != nil {
		h.writeServiceError(w, "Failed to link payment method", err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *Handler) SetDefaultPaymentMethod(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.writeServiceError(w, "Invalid actor", err)
		return
	}
	owner, id := chi.URLParam(r, "owner"), chi.URLParam(r, "id")
	if err := h.Service.SetDefaultPaymentMethod(r.Context(), actor, owner, id); err != nil {
		h.writeServiceError(w, "Failed to set default payment method", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Default payment method updated."})
}

// =============================================================================
// NOTIFICATIONS, PREFERENCES, STATE
// =============================================================================

// ListNotifications returns the recipient's notifications, newest first.
// GET /api/notifications?recipient=d1
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	notes, err := h.Service.Notifications(r.Context(), r.URL.Query().Get("recipient"))
	if err != nil {
		h.writeServiceError(w, "Failed to list notifications", err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.MarkNotificationRead(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, "Failed to mark notification", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.Service.Preferences(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to load preferences", err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (h *Handler) SavePreferences(w http.ResponseWriter, r *http.Request) {
	var req PreferencesRequest
	if err := decode(r, &req); err != nil {
		h.writeServiceError(w, "Invalid preferences", err)
		return
	}
	prefs, err := h.Service.SavePreferences(r.Context(), rota.Preferences{
		CurrentUser: req.CurrentUser,
		Theme:       rota.Theme(req.Theme),
		Language:    rota.Language(req.Language),
	})
	if err != nil {
		h.writeServiceError(w, "Failed to save preferences", err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

// ExportState returns the whole persisted state as one JSON document.
// GET /api/state
func (h *Handler) ExportState(w http.ResponseWriter, r *http.Request) {
	state, err := h.Service.Export(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to export state", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := rota.WriteState(w, state); err != nil {
		h.Log.Warn("state export interrupted", zap.Error(err))
	}
}

// ImportState replaces the store with the posted document.
// POST /api/state
func (h *Handler) ImportState(w http.ResponseWriter, r *http.Request) {
	state, err := rota.ReadState(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid state document", err)
		return
	}
	if err := h.Service.Import(r.Context(), state); err != nil {
		h.writeServiceError(w, "Failed to import state", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "State imported."})
}

// =============================================================================
// ASSISTANT
// =============================================================================

// Analyze returns a conflict report for the current schedule.
// POST /api/assistant/analyze
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shifts, err := h.Service.ListShifts(ctx)
	if err != nil {
		h.writeServiceError(w, "Failed to list shifts", err)
		return
	}
	doctors, err := h.Service.Doctors(ctx)
	if err != nil {
		h.writeServiceError(w, "Failed to list doctors", err)
		return
	}

	text, err := h.Assistant.Analyze(ctx, shifts, doctors)
	if err != nil {
		h.writeAssistantError(w, text, err)
		return
	}
	writeJSON(w, http.StatusOK, AnalysisResponse{Analysis: text})
}

// Suggest recommends doctors for one shift.
// POST /api/assistant/suggest
func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	var req SuggestRequest
	if err := decode(r, &req); err != nil {
		h.writeServiceError(w, "Invalid suggestion request", err)
		return
	}
	ctx := r.Context()
	sh, err := h.Service.GetShift(ctx, req.ShiftID)
	if err != nil {
		h.writeServiceError(w, "Failed to get shift", err)
		return
	}
	doctors, err := h.Service.Doctors(ctx)
	if err != nil {
		h.writeServiceError(w, "Failed to list doctors", err)
		return
	}

	recs, err := h.Assistant.SuggestMatches(ctx, sh, doctors)
	var malformed *assistant.MalformedResponseError
	if err != nil && !errors.As(err, &malformed) {
		h.writeAssistantError(w, "No suggestions available.", err)
		return
	}
	resp := SuggestResponse{Recommendations: recs}
	if malformed != nil {
		resp.Raw = malformed.Raw
	}
	writeJSON(w, http.StatusOK, resp)
}

// Generate drafts a schedule. Drafts are returned for review, not stored.
// POST /api/assistant/generate
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := decode(r, &req); err != nil {
		h.writeServiceError(w, "Invalid generation request", err)
		return
	}
	doctors, err := h.Service.Doctors(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to list doctors", err)
		return
	}

	prop, err := h.Assistant.GenerateSchedule(r.Context(), assistant.GenerationParams{
		StartDate:    generic.MustParseDate(req.StartDate),
		EndDate:      generic.MustParseDate(req.EndDate),
		Department:   req.Department,
		ShiftsPerDay: req.ShiftsPerDay,
		MinDoctors:   req.MinDoctors,
	}, doctors)
	if err != nil {
		h.writeAssistantError(w, prop.Message, err)
		return
	}
	writeJSON(w, http.StatusOK, prop)
}

// ImportImage extracts draft shifts from a rota image.
// POST /api/assistant/import
func (h *Handler) ImportImage(w http.ResponseWriter, r *http.Request) {
	var req ImportImageRequest
	if err := decode(r, &req); err != nil {
		h.writeServiceError(w, "Invalid image", err)
		return
	}
	doctors, err := h.Service.Doctors(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to list doctors", err)
		return
	}

	prop, err := h.Assistant.ParseRotaImage(r.Context(), req.Image, doctors)
	if err != nil {
		h.writeAssistantError(w, prop.Message, err)
		return
	}
	writeJSON(w, http.StatusOK, prop)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// statusFor classifies a service error.
func statusFor(err error) (int, string) {
	var insufficient *generic.InsufficientFundsError
	switch {
	case generic.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, rota.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, rota.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, generic.ErrDuplicateIdempotencyKey):
		return http.StatusConflict, "duplicate"
	case errors.As(err, &insufficient), errors.Is(err, generic.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity, "insufficient_funds"
	case errors.Is(err, rota.ErrPaymentFailed):
		return http.StatusBadGateway, "payment_failed"
	case rota.IsValidationError(err), generic.IsClientError(err):
		return http.StatusBadRequest, "invalid"
	}
	return http.StatusInternalServerError, ""
}

func (h *Handler) writeServiceError(w http.ResponseWriter, message string, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		h.Log.Error(message, zap.Error(err))
	}
	writeJSON(w, status, ErrorResponse{Error: message, Code: code, Details: err.Error()})
}

// writeAssistantError reports an assistant failure with its fallback text.
func (h *Handler) writeAssistantError(w http.ResponseWriter, fallback string, err error) {
	var apiErr *assistant.APIError
	switch {
	case errors.Is(err, assistant.ErrMissingAPIKey):
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: fallback, Code: "assistant_unconfigured", Details: err.Error()})
	case errors.As(err, &apiErr):
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: fallback, Code: "assistant_upstream", Details: err.Error()})
	default:
		h.writeServiceError(w, fallback, err)
	}
}
