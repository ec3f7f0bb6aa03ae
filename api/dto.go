/*
dto.go - Request bodies for the rota API

PURPOSE:
  Request types decouple the JSON contract from the rota model. Responses
  reuse the rota types directly since they already carry JSON tags.

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *Response: Wrappers that add a message to a domain value

VALIDATION:
  Struct tags are checked with go-playground/validator before the handler
  calls the service. Business rules (status machine, balances, roles) stay
  in the rota package.

SEE ALSO:
  - handlers.go: Uses these types
  - rota/types.go: Shift, LeaveRequest, Doctor
*/
package api

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/warp/rota-engine/assistant"
	"github.com/warp/rota-engine/generic"
	"github.com/warp/rota-engine/rota"
)

var validate = validator.New()

// =============================================================================
// SHIFTS
// =============================================================================

// CreateShiftRequest is the body of POST /api/shifts.
type CreateShiftRequest struct {
	CenterName        string   `json:"centerName" validate:"required"`
	Date              string   `json:"date" validate:"required,datetime=2006-01-02"`
	DueDate           string   `json:"dueDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Type              string   `json:"type" validate:"required,oneof=Morning Evening Night 'On Call'"`
	StartTime         string   `json:"startTime" validate:"required,datetime=15:04"`
	EndTime           string   `json:"endTime" validate:"required,datetime=15:04"`
	SpecialtyRequired string   `json:"specialtyRequired"`
	Rate              *float64 `json:"rate,omitempty" validate:"omitempty,gte=0"`
	Location          string   `json:"location"`
	HandoverNotes     string   `json:"handoverNotes,omitempty"`
}

// toShift builds an OPEN shift. Dates were checked by the validator.
func (r CreateShiftRequest) toShift() rota.Shift {
	sh := rota.Shift{
		CenterName:        r.CenterName,
		Date:              generic.MustParseDate(r.Date),
		Type:              rota.ShiftType(r.Type),
		StartTime:         r.StartTime,
		EndTime:           r.EndTime,
		Status:            rota.StatusOpen,
		SpecialtyRequired: r.SpecialtyRequired,
		Location:          r.Location,
		HandoverNotes:     r.HandoverNotes,
	}
	if r.DueDate != "" {
		due := generic.MustParseDate(r.DueDate)
		sh.DueDate = &due
	}
	if r.Rate != nil {
		rate := generic.USD(*r.Rate)
		sh.Rate = &rate
	}
	return sh
}

// BulkShiftsRequest carries reviewed assistant drafts.
type BulkShiftsRequest struct {
	Shifts []rota.Shift `json:"shifts" validate:"required,min=1"`
}

type AssignRequest struct {
	DoctorID string `json:"doctorId" validate:"required"`
}

type TimesheetRequest struct {
	ActualStartTime      string `json:"actualStartTime" validate:"required,datetime=15:04"`
	ActualEndTime        string `json:"actualEndTime" validate:"required,datetime=15:04"`
	BreakDurationMinutes int    `json:"breakDurationMinutes" validate:"gte=0,lte=720"`
	Notes                string `json:"notes,omitempty"`
}

func (r TimesheetRequest) toTimesheet() rota.Timesheet {
	return rota.Timesheet{
		ActualStartTime:      r.ActualStartTime,
		ActualEndTime:        r.ActualEndTime,
		BreakDurationMinutes: r.BreakDurationMinutes,
		Notes:                r.Notes,
	}
}

// =============================================================================
// LEAVE
// =============================================================================

type LeaveRequestBody struct {
	StartDate string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"endDate" validate:"required,datetime=2006-01-02"`
	Reason    string `json:"reason"`
	Type      string `json:"type"`
}

func (r LeaveRequestBody) toLeave() rota.LeaveRequest {
	return rota.LeaveRequest{
		StartDate: generic.MustParseDate(r.StartDate),
		EndDate:   generic.MustParseDate(r.EndDate),
		Reason:    r.Reason,
		Type:      rota.LeaveType(r.Type),
	}
}

// =============================================================================
// WALLET
// =============================================================================

type WithdrawRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	MethodID string          `json:"methodId,omitempty"`
}

type LinkMethodRequest struct {
	Token string `json:"token" validate:"required"`
}

// =============================================================================
// DOCTORS & PREFERENCES
// =============================================================================

type DoctorRequest struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name" validate:"required"`
	Specialty string `json:"specialty"`
	Level     string `json:"level" validate:"omitempty,oneof=Resident Specialist Consultant"`
	City      string `json:"city"`
}

type CredentialRequest struct {
	Name       string `json:"name" validate:"required"`
	Provider   string `json:"provider"`
	ExpiryDate string `json:"expiryDate" validate:"required,datetime=2006-01-02"`
	FileURL    string `json:"fileUrl" validate:"omitempty,url"`
}

func (r CredentialRequest) toCredential() rota.Credential {
	return rota.Credential{
		Name:       r.Name,
		Provider:   r.Provider,
		ExpiryDate: generic.MustParseDate(r.ExpiryDate),
		FileURL:    r.FileURL,
	}
}

type PreferencesRequest struct {
	CurrentUser rota.Actor `json:"currentUser"`
	Theme       string     `json:"theme" validate:"omitempty,oneof=light dark"`
	Language    string     `json:"language" validate:"omitempty,oneof=en ar es fr"`
}

// =============================================================================
// ASSISTANT
// =============================================================================

type SuggestRequest struct {
	ShiftID string `json:"shiftId" validate:"required"`
}

type GenerateRequest struct {
	StartDate    string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate      string `json:"endDate" validate:"required,datetime=2006-01-02"`
	Department   string `json:"department"`
	ShiftsPerDay int    `json:"shiftsPerDay" validate:"gte=0,lte=4"`
	MinDoctors   int    `json:"minDoctors" validate:"gte=0"`
}

type ImportImageRequest struct {
	Image string `json:"image" validate:"required"`
}

// SuggestResponse carries the model's raw answer when it could not be
// parsed into recommendations.
type SuggestResponse struct {
	Recommendations []assistant.Recommendation `json:"recommendations"`
	Raw             string                     `json:"raw,omitempty"`
}

type AnalysisResponse struct {
	Analysis string `json:"analysis"`
}

// =============================================================================
// GENERIC RESPONSES
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type BulkShiftsResponse struct {
	Shifts  []rota.Shift `json:"shifts"`
	Message string       `json:"message"`
}

// validationMessage turns validator errors into "field tag" pairs.
func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := strings.ToLower(fe.Field()) + " failed " + fe.Tag()
		if fe.Param() != "" {
			msg += " " + fe.Param()
		}
		parts = append(parts, msg)
	}
	return strings.Join(parts, ", ")
}
