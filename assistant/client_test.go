package assistant_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rota-engine/assistant"
	"github.com/warp/rota-engine/generic"
	"github.com/warp/rota-engine/rota"
)

// capturedRequest is what the fake Gemini endpoint saw.
type capturedRequest struct {
	Path   string
	APIKey string
	Body   struct {
		Contents []struct {
			Parts []struct {
				Text       string `json:"text"`
				InlineData *struct {
					MimeType string `json:"mimeType"`
					Data     string `json:"data"`
				} `json:"inlineData"`
			} `json:"parts"`
		} `json:"contents"`
		GenerationConfig *struct {
			ResponseMimeType string `json:"responseMimeType"`
		} `json:"generationConfig"`
	}
}

// fakeGemini answers every call with the given text as the single candidate part.
func fakeGemini(t *testing.T, answer string, status int) (*httptest.Server, *capturedRequest) {
	t.Helper()
	seen := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.Path = r.URL.Path
		seen.APIKey = r.Header.Get("x-goog-api-key")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&seen.Body))

		if status != http.StatusOK {
			http.Error(w, answer, status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{
				map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": answer}}}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func newClient(srv *httptest.Server) *assistant.Client {
	c := assistant.NewClient("test-key", assistant.WithBaseURL(srv.URL), assistant.WithHTTPClient(srv.Client()))
	c.Now = func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }
	return c
}

func TestAnalyze_SendsScheduleToModel(t *testing.T) {
	srv, seen := fakeGemini(t, "- Dr. Omar Khalid has overlapping shifts on 2025-03-10", http.StatusOK)
	client := newClient(srv)

	shifts := []rota.Shift{
		{ID: "s1", Date: generic.MustParseDate("2025-03-10"), StartTime: "08:00", EndTime: "16:00", AssignedDoctorID: "d1", Location: "Riyadh"},
		{ID: "s2", Date: generic.MustParseDate("2025-03-10"), StartTime: "10:00", EndTime: "18:00", Location: "Jeddah"},
	}
	text, err := client.Analyze(context.Background(), shifts, roster)
	require.NoError(t, err)
	assert.Contains(t, text, "overlapping")

	assert.Equal(t, "/v1beta/models/gemini-2.5-flash:generateContent", seen.Path)
	assert.Equal(t, "test-key", seen.APIKey)
	assert.Nil(t, seen.Body.GenerationConfig, "analysis is free text")
	require.Len(t, seen.Body.Contents, 1)
	prompt := seen.Body.Contents[0].Parts[0].Text
	assert.Contains(t, prompt, `"doctor":"Dr. Omar Khalid"`)
	assert.Contains(t, prompt, `"doctor":"Unassigned"`)
	assert.Contains(t, prompt, `"time":"08:00-16:00"`)
}

func TestAnalyze_MissingKey(t *testing.T) {
	client := assistant.NewClient("")
	text, err := client.Analyze(context.Background(), nil, nil)
	assert.ErrorIs(t, err, assistant.ErrMissingAPIKey)
	assert.Equal(t, assistant.MissingKeyAnalysis, text)
}

func TestAnalyze_APIError(t *testing.T) {
	srv, _ := fakeGemini(t, "quota exceeded", http.StatusInternalServerError)
	text, err := newClient(srv).Analyze(context.Background(), nil, roster)

	var apiErr *assistant.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Contains(t, apiErr.Body, "quota exceeded")
	assert.Equal(t, assistant.FailedAnalysis, text)
}

func TestSuggestMatches(t *testing.T) {
	srv, seen := fakeGemini(t, "```json\n{\"recommendations\":[{\"name\":\"Dr. Omar Khalid\",\"reason\":\"Emergency in Riyadh\"}]}\n```", http.StatusOK)
	shift := rota.Shift{ID: "s1", SpecialtyRequired: "Emergency", Location: "Riyadh", Date: generic.MustParseDate("2025-03-10"), Type: rota.ShiftNight}

	recs, err := newClient(srv).SuggestMatches(context.Background(), shift, roster)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Dr. Omar Khalid", recs[0].Name)

	require.NotNil(t, seen.Body.GenerationConfig)
	assert.Equal(t, "application/json", seen.Body.GenerationConfig.ResponseMimeType)
	assert.Contains(t, seen.Body.Contents[0].Parts[0].Text, "Emergency at Riyadh on 2025-03-10 (Night)")

	none, err := assistant.NewClient("").SuggestMatches(context.Background(), shift, roster)
	assert.ErrorIs(t, err, assistant.ErrMissingAPIKey)
	assert.Empty(t, none)
}

func TestGenerateSchedule(t *testing.T) {
	// GIVEN: A model that drafts two shifts, one for a known doctor and one open
	// WHEN: A schedule is generated with default parameters
	// THEN: The proposal carries converted shifts and the success message; nothing is stored

	answer := `[{"date":"2025-03-10","type":"Morning","startTime":"08:00","endTime":"16:00","assignedDoctor":"Dr. Omar Khalid"},
	            {"date":"2025-03-10","type":"Night","startTime":"00:00","endTime":"08:00","assignedDoctor":"Open"}]`
	srv, seen := fakeGemini(t, answer, http.StatusOK)

	prop, err := newClient(srv).GenerateSchedule(context.Background(), assistant.GenerationParams{
		StartDate: generic.MustParseDate("2025-03-10"),
		EndDate:   generic.MustParseDate("2025-03-12"),
	}, roster)
	require.NoError(t, err)
	assert.Equal(t, "Draft Schedule Generated Successfully.", prop.Message)
	require.Len(t, prop.Shifts, 2)
	assert.Equal(t, rota.StatusAssigned, prop.Shifts[0].Status)
	assert.Equal(t, rota.StatusOpen, prop.Shifts[1].Status)
	assert.True(t, strings.HasPrefix(prop.Shifts[0].ID, "ai-generate-"))

	prompt := seen.Body.Contents[0].Parts[0].Text
	assert.Contains(t, prompt, "Department: Emergency")
	assert.Contains(t, prompt, "Shifts per day: 3")
	assert.Contains(t, prompt, "Minimum doctors per day: 2")
}

func TestGenerateSchedule_InvertedRange(t *testing.T) {
	client := assistant.NewClient("test-key")
	_, err := client.GenerateSchedule(context.Background(), assistant.GenerationParams{
		StartDate: generic.MustParseDate("2025-03-12"),
		EndDate:   generic.MustParseDate("2025-03-10"),
	}, roster)
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
}

func TestGenerateSchedule_MalformedAnswerSurfacesRawText(t *testing.T) {
	srv, _ := fakeGemini(t, "I could not build a schedule for those dates.", http.StatusOK)

	prop, err := newClient(srv).GenerateSchedule(context.Background(), assistant.GenerationParams{
		StartDate: generic.MustParseDate("2025-03-10"),
		EndDate:   generic.MustParseDate("2025-03-10"),
	}, roster)
	require.NoError(t, err)
	assert.Empty(t, prop.Shifts)
	assert.Equal(t, "I could not build a schedule for those dates.", prop.Message)
}

func TestParseRotaImage(t *testing.T) {
	answer := `[{"date":"2025-03-14","type":"On Call","startTime":"18:00","endTime":"08:00","assignedDoctorName":"Lina Saad","centerName":"Unknown"}]`
	srv, seen := fakeGemini(t, answer, http.StatusOK)

	prop, err := newClient(srv).ParseRotaImage(context.Background(), "data:image/png;base64,iVBORw0KGgo=", roster)
	require.NoError(t, err)
	assert.Equal(t, "Rota extracted from image successfully.", prop.Message)
	require.Len(t, prop.Shifts, 1)
	assert.Equal(t, "d2", prop.Shifts[0].AssignedDoctorID)
	assert.Equal(t, "Imported Rota", prop.Shifts[0].CenterName)

	parts := seen.Body.Contents[0].Parts
	require.Len(t, parts, 2)
	require.NotNil(t, parts[0].InlineData)
	assert.Equal(t, "image/png", parts[0].InlineData.MimeType)
	assert.Equal(t, "iVBORw0KGgo=", parts[0].InlineData.Data)
	assert.Contains(t, parts[1].Text, "assume 2025")
}

func TestParseRotaImage_MissingKey(t *testing.T) {
	prop, err := assistant.NewClient("").ParseRotaImage(context.Background(), "/9j/4AAQ", roster)
	assert.ErrorIs(t, err, assistant.ErrMissingAPIKey)
	assert.Empty(t, prop.Shifts)
}
