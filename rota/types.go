/*
Package rota implements medical shift scheduling on top of the generic ledger.

PURPOSE:
  Shifts are posted by managers, applied for or assigned to doctors,
  worked, timesheeted and finally paid into the doctor's wallet. Leave
  requests block calendar days. This package owns those state machines,
  the approval resolver, the calendar grid and the wallet flows.

KEY CONCEPTS IN THIS FILE (types.go):
  - Shift: A single staffing slot at a center on one day
  - Timesheet: Actual hours submitted by the assigned doctor
  - LeaveRequest: A doctor's request to be off for an inclusive date range
  - Actor: Who is performing an operation (id + role)
  - Doctor, Notification, Preferences: Supporting records

DATA FLOW:
  Actor → Service → (ApplyTransition | ResolveLeave) → Store (WithTx)
                 ↘ Ledger (PAID credit, withdrawal debit)

SEE ALSO:
  - shift.go: Shift status machine
  - leave.go: Leave status machine
  - resolver.go: Approve/reject entry point
  - wallet.go: Withdrawals and wallet view
  - calendar.go: Month grid builder
*/
package rota

import (
	"time"

	"github.com/warp/rota-engine/generic"
)

// =============================================================================
// ACTORS
// =============================================================================

type Role string

const (
	RoleCenterAdmin Role = "CENTER_ADMIN"
	RoleDoctor      Role = "DOCTOR"
	RoleRotaManager Role = "ROTA_MANAGER"
)

// IsManager reports whether the role may approve, reject, assign and delete.
func (r Role) IsManager() bool {
	return r == RoleRotaManager || r == RoleCenterAdmin
}

func (r Role) Valid() bool {
	switch r {
	case RoleCenterAdmin, RoleDoctor, RoleRotaManager:
		return true
	}
	return false
}

type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

func (a Actor) IsManager() bool { return a.Role.IsManager() }

// =============================================================================
// SHIFT
// =============================================================================

type ShiftType string

const (
	ShiftMorning ShiftType = "Morning"
	ShiftEvening ShiftType = "Evening"
	ShiftNight   ShiftType = "Night"
	ShiftOnCall  ShiftType = "On Call"
)

// AllShiftTypes in display order.
var AllShiftTypes = []ShiftType{ShiftMorning, ShiftEvening, ShiftNight, ShiftOnCall}

type ShiftStatus string

const (
	StatusOpen               ShiftStatus = "Open"
	StatusPendingApproval    ShiftStatus = "Pending"
	StatusAssigned           ShiftStatus = "Assigned"
	StatusPendingSwap        ShiftStatus = "Pending Swap"
	StatusCompleted          ShiftStatus = "Completed"
	StatusTimesheetSubmitted ShiftStatus = "Timesheet Submitted"
	StatusPaid               ShiftStatus = "Paid"
)

// AllStatuses in lifecycle order.
var AllStatuses = []ShiftStatus{
	StatusOpen, StatusPendingApproval, StatusAssigned, StatusPendingSwap,
	StatusCompleted, StatusTimesheetSubmitted, StatusPaid,
}

func (s ShiftStatus) Valid() bool {
	for _, st := range AllStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// HasAssignee reports whether a shift in this status must carry assignedDoctorId.
func (s ShiftStatus) HasAssignee() bool {
	switch s {
	case StatusAssigned, StatusPendingSwap, StatusCompleted, StatusTimesheetSubmitted, StatusPaid:
		return true
	}
	return false
}

// HasTimesheet reports whether a shift in this status must carry a timesheet.
func (s ShiftStatus) HasTimesheet() bool {
	return s == StatusTimesheetSubmitted || s == StatusPaid
}

// AwaitsManager reports whether a manager decision is pending.
func (s ShiftStatus) AwaitsManager() bool {
	return s == StatusPendingApproval || s == StatusTimesheetSubmitted || s == StatusPendingSwap
}

type Shift struct {
	ID                string          `json:"id"`
	CenterName        string          `json:"centerName"`
	Date              generic.Date    `json:"date"`
	DueDate           *generic.Date   `json:"dueDate,omitempty"`
	Type              ShiftType       `json:"type"`
	StartTime         string          `json:"startTime"`
	EndTime           string          `json:"endTime"`
	Status            ShiftStatus     `json:"status"`
	SpecialtyRequired string          `json:"specialtyRequired"`
	AssignedDoctorID  string          `json:"assignedDoctorId,omitempty"`
	ApplicantID       string          `json:"applicantId,omitempty"`
	Rate              *generic.Amount `json:"rate,omitempty"` // hourly
	Location          string          `json:"location"`
	HandoverNotes     string          `json:"handoverNotes,omitempty"`
	HospitalRating    *int            `json:"hospitalRating,omitempty"`
	Timesheet         *Timesheet      `json:"timesheet,omitempty"`
}

type Timesheet struct {
	ActualStartTime      string    `json:"actualStartTime"`
	ActualEndTime        string    `json:"actualEndTime"`
	BreakDurationMinutes int       `json:"breakDurationMinutes"`
	Notes                string    `json:"notes,omitempty"`
	SubmittedAt          time.Time `json:"submittedAt"`
}

// =============================================================================
// LEAVE
// =============================================================================

type LeaveStatus string

const (
	LeavePending  LeaveStatus = "Pending"
	LeaveApproved LeaveStatus = "Approved"
	LeaveRejected LeaveStatus = "Rejected"
)

type LeaveType string

const (
	LeaveAnnual     LeaveType = "Annual Leave"
	LeaveSick       LeaveType = "Sick Leave"
	LeaveConference LeaveType = "Conference"
	LeaveEmergency  LeaveType = "Emergency"
)

type LeaveRequest struct {
	ID         string       `json:"id"`
	DoctorID   string       `json:"doctorId"`
	DoctorName string       `json:"doctorName"`
	StartDate  generic.Date `json:"startDate"`
	EndDate    generic.Date `json:"endDate"` // inclusive
	Reason     string       `json:"reason"`
	Status     LeaveStatus  `json:"status"`
	Type       LeaveType    `json:"type"`
	DecidedBy  string       `json:"decidedBy,omitempty"`
	DecidedAt  *time.Time   `json:"decidedAt,omitempty"`
}

// Period returns the inclusive date range of the leave.
func (l LeaveRequest) Period() generic.Period {
	return generic.Period{Start: l.StartDate, End: l.EndDate}
}

// =============================================================================
// SUPPORTING RECORDS
// =============================================================================

type DoctorLevel string

const (
	LevelResident   DoctorLevel = "Resident"
	LevelSpecialist DoctorLevel = "Specialist"
	LevelConsultant DoctorLevel = "Consultant"
)

type Doctor struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Specialty string      `json:"specialty"`
	Level     DoctorLevel `json:"level"`
	City      string      `json:"city"`
}

type NotificationType string

const (
	NotifyInfo    NotificationType = "info"
	NotifySuccess NotificationType = "success"
	NotifyWarning NotificationType = "warning"
	NotifyError   NotificationType = "error"
)

// ManagersInbox is the recipient for notifications addressed to every manager.
const ManagersInbox = "managers"

type Notification struct {
	ID         string           `json:"id"`
	Recipient  string           `json:"recipient"`
	Title      string           `json:"title"`
	Message    string           `json:"message"`
	Type       NotificationType `json:"type"`
	Timestamp  time.Time        `json:"timestamp"`
	IsRead     bool             `json:"isRead"`
	ActionLink string           `json:"actionLink,omitempty"`
}

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

type Language string

const (
	LangEnglish Language = "en"
	LangArabic  Language = "ar"
	LangSpanish Language = "es"
	LangFrench  Language = "fr"
)

// FirstWeekday is the day a calendar week starts on for the language.
func (l Language) FirstWeekday() time.Weekday {
	switch l {
	case LangArabic:
		return time.Saturday
	case LangSpanish, LangFrench:
		return time.Monday
	default:
		return time.Sunday
	}
}

// Preferences are stored opaquely for state export and import.
type Preferences struct {
	CurrentUser Actor    `json:"currentUser"`
	Theme       Theme    `json:"theme"`
	Language    Language `json:"language"`
}

// DefaultPreferences is what a fresh store reports.
func DefaultPreferences() Preferences {
	return Preferences{
		CurrentUser: Actor{ID: "u1", Name: "Dr. Sarah Ahmed", Role: RoleRotaManager},
		Theme:       ThemeLight,
		Language:    LangEnglish,
	}
}
