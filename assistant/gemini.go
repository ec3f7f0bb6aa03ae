/*
Package assistant talks to the Gemini generateContent REST API and turns
its answers into rota data.

PURPOSE:
  Four scheduling helpers sit on top of one HTTP call:
    - Analyze:         plain-text conflict report for the current schedule
    - SuggestMatches:  two doctors recommended for an open shift
    - GenerateSchedule: draft shifts for a date range and department
    - ParseRotaImage:  draft shifts extracted from an uploaded rota image

  Drafts are never written to the store here. The caller reviews them and
  hands the converted shifts to rota.Service.AddShifts.

FAILURE MODES:
  No API key      → ErrMissingAPIKey, with the fallback text/empty result
  HTTP failure    → *APIError (status + body), fallback text/empty result
  Malformed JSON  → empty draft list, the raw model text surfaced as Message

WIRE FORMAT:
  POST {BaseURL}/v1beta/models/{Model}:generateContent
  { "contents": [{ "parts": [{ "text": ... } | { "inlineData": {...} }] }],
    "generationConfig": { "responseMimeType": "application/json" } }

SEE ALSO:
  - parse.go: Draft decoding and doctor matching
*/
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultModel   = "gemini-2.5-flash"
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
)

var (
	// ErrMissingAPIKey is returned when no Gemini key is configured.
	ErrMissingAPIKey = errors.New("gemini api key missing")

	// ErrEmptyResponse is returned when the model answers with no text.
	ErrEmptyResponse = errors.New("gemini returned no text")
)

// APIError is a non-2xx answer from the Gemini endpoint.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini: status %d: %s", e.Status, e.Body)
}

// =============================================================================
// WIRE TYPES
// =============================================================================

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseMimeType string `json:"responseMimeType,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// =============================================================================
// CLIENT
// =============================================================================

type Client struct {
	APIKey  string
	Model   string
	BaseURL string
	HTTP    *http.Client
	Log     *zap.Logger
	Now     func() time.Time
}

type Option func(*Client)

func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.Model = model
		}
	}
}

func WithBaseURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.BaseURL = strings.TrimRight(url, "/")
		}
	}
}

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.HTTP = h } }
func WithLogger(l *zap.Logger) Option      { return func(c *Client) { c.Log = l } }

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		APIKey:  apiKey,
		Model:   DefaultModel,
		BaseURL: DefaultBaseURL,
		HTTP:    &http.Client{Timeout: 60 * time.Second},
		Log:     zap.NewNop(),
		Now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// generate sends parts as a single user turn and returns the concatenated
// text of the first candidate.
func (c *Client) generate(ctx context.Context, parts []part, jsonOut bool) (string, error) {
	if c.APIKey == "" {
		return "", ErrMissingAPIKey
	}

	body := generateRequest{Contents: []content{{Parts: parts}}}
	if jsonOut {
		body.GenerationConfig = &generationConfig{ResponseMimeType: "application/json"}
	}
	requestJSON, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.BaseURL, c.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(requestJSON))
	if err != nil {
		return "", fmt.Errorf("create gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.APIKey)

	start := c.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("send gemini request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}

	c.Log.Debug("gemini call completed",
		zap.String("model", c.Model),
		zap.Duration("elapsed", c.Now().Sub(start)))

	if len(out.Candidates) == 0 {
		return "", ErrEmptyResponse
	}
	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	if sb.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}
