package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/warp/rota-engine/generic"
	"github.com/warp/rota-engine/rota"
)

const (
	MissingKeyAnalysis = "API Key missing. Cannot analyze conflicts. Please add GEMINI_API_KEY to the environment."
	FailedAnalysis     = "Error analyzing schedule. Please check your API key."
	NoAnalysis         = "No analysis generated."
	NoDraftsMessage    = "The assistant returned no shifts."
)

// =============================================================================
// ANALYZE
// =============================================================================

type scheduleLine struct {
	ID       string `json:"id"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Doctor   string `json:"doctor"`
	Location string `json:"location"`
}

// Analyze asks the model for a short conflict report on the schedule.
// The returned text is always displayable; err says whether it is the
// model's answer or a fallback.
func (c *Client) Analyze(ctx context.Context, shifts []rota.Shift, doctors []rota.Doctor) (string, error) {
	names := lo.SliceToMap(doctors, func(d rota.Doctor) (string, string) { return d.ID, d.Name })
	lines := lo.Map(shifts, func(s rota.Shift, _ int) scheduleLine {
		doctor := "Unassigned"
		if name, ok := names[s.AssignedDoctorID]; ok {
			doctor = name
		}
		return scheduleLine{
			ID:       s.ID,
			Date:     s.Date.String(),
			Time:     s.StartTime + "-" + s.EndTime,
			Doctor:   doctor,
			Location: s.Location,
		}
	})
	data, err := json.Marshal(lines)
	if err != nil {
		return FailedAnalysis, fmt.Errorf("encode schedule: %w", err)
	}

	prompt := `You are an expert Medical Rota Coordinator. Analyze the following schedule for conflicts.
Rules:
1. A doctor cannot have overlapping shifts.
2. A doctor should not be scheduled in two different cities on the same day unless there is a 4-hour gap.
3. Flag any unassigned shifts.

Schedule Data:
` + string(data) + `

Provide a concise summary of issues found and suggested fixes. Format as a bulleted list.`

	text, err := c.generate(ctx, []part{{Text: prompt}}, false)
	switch {
	case errors.Is(err, ErrMissingAPIKey):
		return MissingKeyAnalysis, err
	case errors.Is(err, ErrEmptyResponse):
		return NoAnalysis, nil
	case err != nil:
		c.Log.Warn("schedule analysis failed", zap.Error(err))
		return FailedAnalysis, err
	}
	return text, nil
}

// =============================================================================
// SUGGEST
// =============================================================================

type Recommendation struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

type candidate struct {
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
	City      string `json:"city"`
}

// SuggestMatches asks the model for the best two doctors for a shift.
// Any failure yields an empty list.
func (c *Client) SuggestMatches(ctx context.Context, shift rota.Shift, doctors []rota.Doctor) ([]Recommendation, error) {
	pool := lo.Map(doctors, func(d rota.Doctor, _ int) candidate {
		return candidate{Name: d.Name, Specialty: d.Specialty, City: d.City}
	})
	data, err := json.Marshal(pool)
	if err != nil {
		return []Recommendation{}, fmt.Errorf("encode doctors: %w", err)
	}

	prompt := fmt.Sprintf(`I need to fill a shift.
Shift Details: %s at %s on %s (%s).
Available Doctors: %s

Recommend the best 2 doctors for this shift based on specialty and location match.
Return JSON format: { "recommendations": [{ "name": "Doctor Name", "reason": "Why they fit" }] }`,
		shift.SpecialtyRequired, shift.Location, shift.Date, shift.Type, data)

	text, err := c.generate(ctx, []part{{Text: prompt}}, true)
	if err != nil {
		if !errors.Is(err, ErrMissingAPIKey) {
			c.Log.Warn("match suggestion failed", zap.String("shift_id", shift.ID), zap.Error(err))
		}
		return []Recommendation{}, err
	}

	var out struct {
		Recommendations []Recommendation `json:"recommendations"`
	}
	if err := json.Unmarshal([]byte(StripFences(text)), &out); err != nil {
		return []Recommendation{}, &MalformedResponseError{Raw: text, Err: err}
	}
	if out.Recommendations == nil {
		return []Recommendation{}, nil
	}
	return out.Recommendations, nil
}

// =============================================================================
// DRAFT PROPOSALS
// =============================================================================

// Proposal is a batch of shifts the assistant drafted. Nothing is stored
// until the caller passes Shifts to rota.Service.AddShifts.
type Proposal struct {
	Shifts  []rota.Shift `json:"shifts"`
	Message string       `json:"message"`
	Raw     string       `json:"raw,omitempty"`
	Skipped []string     `json:"skipped,omitempty"`
}

type GenerationParams struct {
	StartDate    generic.Date `json:"startDate" validate:"required"`
	EndDate      generic.Date `json:"endDate" validate:"required"`
	Department   string       `json:"department"`
	ShiftsPerDay int          `json:"shiftsPerDay" validate:"gte=0,lte=4"`
	MinDoctors   int          `json:"minDoctors" validate:"gte=0"`
}

func (p GenerationParams) withDefaults() GenerationParams {
	if p.Department == "" {
		p.Department = "Emergency"
	}
	if p.ShiftsPerDay == 0 {
		p.ShiftsPerDay = 3
	}
	if p.MinDoctors == 0 {
		p.MinDoctors = 2
	}
	return p
}

// GenerateSchedule drafts a coverage schedule for the date range.
func (c *Client) GenerateSchedule(ctx context.Context, params GenerationParams, doctors []rota.Doctor) (Proposal, error) {
	p := params.withDefaults()
	if p.EndDate.Before(p.StartDate) {
		return Proposal{Shifts: []rota.Shift{}}, generic.ErrInvalidPeriod
	}

	pool := lo.Map(doctors, func(d rota.Doctor, _ int) string {
		return fmt.Sprintf("%s (%s)", d.Name, d.Specialty)
	})

	prompt := fmt.Sprintf(`Generate a medical shift schedule.
Date range: %s to %s
Department: %s
Shifts per day: %d (Morning 08:00-16:00, Evening 16:00-00:00, Night 00:00-08:00)
Minimum doctors per day: %d
Doctors: %s

Assign doctors fairly and never give one doctor overlapping shifts. Use "Open" when nobody fits.
Return ONLY a JSON array: [{ "date": "YYYY-MM-DD", "type": "Morning" | "Evening" | "Night", "startTime": "HH:MM", "endTime": "HH:MM", "assignedDoctor": "Doctor Name" | "Open" }]`,
		p.StartDate, p.EndDate, p.Department, p.ShiftsPerDay, p.MinDoctors, strings.Join(pool, ", "))

	return c.propose(ctx, []part{{Text: prompt}}, Conversion{
		Source:     SourceGenerate,
		Department: p.Department,
		Doctors:    doctors,
	})
}

// ParseRotaImage extracts shifts from a rota photo or screenshot given as a
// data URI or bare base64 JPEG.
func (c *Client) ParseRotaImage(ctx context.Context, image string, doctors []rota.Doctor) (Proposal, error) {
	if strings.TrimSpace(image) == "" {
		return Proposal{Shifts: []rota.Shift{}}, errors.New("image is empty")
	}
	mimeType, data := DecodeDataURI(image)
	year := c.Now().Year()

	prompt := fmt.Sprintf(`Extract the medical shift rota from this image.
Return ONLY a JSON array: [{ "date": "YYYY-MM-DD", "type": "Morning" | "Evening" | "Night" | "On Call", "startTime": "HH:MM", "endTime": "HH:MM", "assignedDoctorName": "Name", "centerName": "Name or 'Unknown'" }]
If the year is not visible assume %d. If times are missing infer standard times for the shift type.`, year)

	return c.propose(ctx, []part{
		{InlineData: &inlineData{MimeType: mimeType, Data: data}},
		{Text: prompt},
	}, Conversion{
		Source:  SourceImport,
		Doctors: doctors,
	})
}

// propose runs a draft-producing prompt and converts the answer. A
// malformed answer is not an error: the raw text becomes the message.
func (c *Client) propose(ctx context.Context, parts []part, conv Conversion) (Proposal, error) {
	empty := Proposal{Shifts: []rota.Shift{}}

	text, err := c.generate(ctx, parts, true)
	switch {
	case errors.Is(err, ErrMissingAPIKey):
		empty.Message = "API Key missing. Cannot run the assistant."
		return empty, err
	case errors.Is(err, ErrEmptyResponse):
		empty.Message = NoDraftsMessage
		return empty, nil
	case err != nil:
		c.Log.Warn("assistant draft failed", zap.String("source", string(conv.Source)), zap.Error(err))
		empty.Message = "Failed to process request."
		return empty, err
	}

	drafts, err := ParseDrafts(text)
	var malformed *MalformedResponseError
	if errors.As(err, &malformed) {
		c.Log.Warn("assistant answer is not JSON", zap.String("source", string(conv.Source)))
		empty.Message = malformed.Raw
		empty.Raw = malformed.Raw
		return empty, nil
	}
	if len(drafts) == 0 {
		empty.Message = NoDraftsMessage
		empty.Raw = text
		return empty, nil
	}

	shifts, skipped := ToShifts(drafts, conv)
	return Proposal{
		Shifts:  shifts,
		Message: conv.Source.SuccessMessage(),
		Raw:     text,
		Skipped: skipped,
	}, nil
}
