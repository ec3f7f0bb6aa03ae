package assistant

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/warp/rota-engine/generic"
	"github.com/warp/rota-engine/rota"
)

// Source says where a batch of drafts came from. It picks the fallback
// center name and is part of every generated shift id.
type Source string

const (
	SourceGenerate Source = "generate"
	SourceImport   Source = "import"
)

const (
	OpenSlot        = "Open"
	UnknownCenter   = "Unknown"
	DefaultLocation = "Riyadh"
)

// FallbackCenter is used when a draft has no usable center name.
func (s Source) FallbackCenter() string {
	if s == SourceGenerate {
		return "Auto-Generated Schedule"
	}
	return "Imported Rota"
}

// SuccessMessage is shown when drafts were parsed.
func (s Source) SuccessMessage() string {
	if s == SourceImport {
		return "Rota extracted from image successfully."
	}
	return "Draft Schedule Generated Successfully."
}

// Draft is one shift as the model describes it. Generated schedules use
// assignedDoctor, image extraction uses assignedDoctorName.
type Draft struct {
	Date               string `json:"date"`
	Type               string `json:"type"`
	StartTime          string `json:"startTime"`
	EndTime            string `json:"endTime"`
	AssignedDoctor     string `json:"assignedDoctor,omitempty"`
	AssignedDoctorName string `json:"assignedDoctorName,omitempty"`
	CenterName         string `json:"centerName,omitempty"`
}

// DoctorName returns whichever doctor field the model filled in.
func (d Draft) DoctorName() string {
	if d.AssignedDoctorName != "" {
		return d.AssignedDoctorName
	}
	return d.AssignedDoctor
}

// MalformedResponseError carries the raw model text that could not be parsed.
type MalformedResponseError struct {
	Raw string
	Err error
}

func (e *MalformedResponseError) Error() string {
	return "malformed assistant response: " + e.Err.Error()
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// StripFences removes markdown code fences around a JSON answer.
func StripFences(text string) string {
	switch {
	case strings.Contains(text, "```json"):
		text = strings.ReplaceAll(text, "```json", "")
		text = strings.ReplaceAll(text, "```", "")
	case strings.Contains(text, "```"):
		text = strings.ReplaceAll(text, "```", "")
	}
	return strings.TrimSpace(text)
}

// ParseDrafts decodes a JSON array of drafts. Valid JSON that is not an
// array yields no drafts; invalid JSON is a *MalformedResponseError.
func ParseDrafts(text string) ([]Draft, error) {
	clean := StripFences(text)

	var raw any
	if err := json.Unmarshal([]byte(clean), &raw); err != nil {
		return nil, &MalformedResponseError{Raw: text, Err: err}
	}
	if _, ok := raw.([]any); !ok {
		return []Draft{}, nil
	}

	var drafts []Draft
	if err := json.Unmarshal([]byte(clean), &drafts); err != nil {
		return nil, &MalformedResponseError{Raw: text, Err: err}
	}
	return drafts, nil
}

// MatchDoctor finds the doctor a model-provided name refers to: an exact
// case-insensitive match first, then either name containing the other.
func MatchDoctor(name string, doctors []rota.Doctor) (rota.Doctor, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" || strings.EqualFold(needle, OpenSlot) {
		return rota.Doctor{}, false
	}
	if d, ok := lo.Find(doctors, func(d rota.Doctor) bool {
		return strings.ToLower(d.Name) == needle
	}); ok {
		return d, true
	}
	return lo.Find(doctors, func(d rota.Doctor) bool {
		candidate := strings.ToLower(d.Name)
		return candidate != "" && (strings.Contains(candidate, needle) || strings.Contains(needle, candidate))
	})
}

// Conversion fixes the context every draft in a batch is converted in.
type Conversion struct {
	Source     Source
	Department string
	Doctors    []rota.Doctor
}

// ToShifts converts drafts into shifts ready for rota.Service.AddShifts.
// A draft whose doctor is missing, "Open" or unknown becomes an OPEN shift.
// Drafts with an unparseable date are skipped and reported in skipped.
func ToShifts(drafts []Draft, conv Conversion) (shifts []rota.Shift, skipped []string) {
	shifts = make([]rota.Shift, 0, len(drafts))
	for i, d := range drafts {
		date, err := generic.ParseDate(d.Date)
		if err != nil {
			skipped = append(skipped, fmt.Sprintf("draft %d: %v", i, err))
			continue
		}

		center := strings.TrimSpace(d.CenterName)
		if center == "" || center == UnknownCenter {
			center = conv.Source.FallbackCenter()
		}

		typ := rota.ShiftType(d.Type)
		if !lo.Contains(rota.AllShiftTypes, typ) {
			typ = rota.ShiftMorning
		}

		sh := rota.Shift{
			ID:                fmt.Sprintf("ai-%s-%s", conv.Source, uuid.NewString()),
			CenterName:        center,
			Date:              date,
			Type:              typ,
			StartTime:         d.StartTime,
			EndTime:           d.EndTime,
			Status:            rota.StatusOpen,
			SpecialtyRequired: conv.Department,
			Location:          DefaultLocation,
		}
		if doc, ok := MatchDoctor(d.DoctorName(), conv.Doctors); ok {
			sh.Status = rota.StatusAssigned
			sh.AssignedDoctorID = doc.ID
		}
		shifts = append(shifts, sh)
	}
	return shifts, skipped
}

var dataURIPattern = regexp.MustCompile(`^data:([a-zA-Z0-9]+/[a-zA-Z0-9\-.+]+);base64,(.+)$`)

// DecodeDataURI splits a base64 data URI into its mime type and payload.
// Anything else is treated as a bare base64 JPEG.
func DecodeDataURI(s string) (mimeType, data string) {
	if strings.Contains(s, "data:") {
		if m := dataURIPattern.FindStringSubmatch(s); len(m) == 3 {
			return m[1], m[2]
		}
	}
	return "image/jpeg", s
}
