// Package summarize turns a finished transcript into a meeting summary via
// an OpenAI-compatible chat completions endpoint.
package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/acousland/MacEaves/internal/types"
	"github.com/acousland/MacEaves/internal/util"
)

// Sentinel errors for summarization operations.
var (
	ErrNotConfigured   = errors.New("summarizer endpoint not configured")
	ErrEmptyTranscript = errors.New("transcript is empty")
)

const (
	defaultModel   = "gpt-4o-mini"
	requestTimeout = 120 * time.Second
)

// DefaultPrompt is used when no custom prompt is configured.
const DefaultPrompt = `Summarize the following meeting transcript. Respond with JSON only, using this shape:
{"summary": "...", "action_items": ["..."], "topics": ["..."]}
Keep the summary to a few sentences. List concrete action items with owners when they are named. Topics are short noun phrases.`

// Client calls an OpenAI-compatible chat completions API.
type Client struct {
	endpoint string
	apiKey   string
	model    string
	prompt   string
	http     *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithModel overrides the default model name.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithPrompt overrides the default system prompt.
func WithPrompt(prompt string) Option {
	return func(c *Client) {
		if prompt != "" {
			c.prompt = prompt
		}
	}
}

// WithHTTPClient substitutes the HTTP client, for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// NewClient returns a client for the given endpoint. The endpoint is the
// full chat completions URL, e.g. https://api.openai.com/v1/chat/completions.
func NewClient(endpoint, apiKey string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    defaultModel,
		prompt:   DefaultPrompt,
		http:     &http.Client{Timeout: requestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// chat completions request/response wire shapes.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// summaryPayload is the JSON shape the prompt asks the model for.
type summaryPayload struct {
	Summary     string   `json:"summary"`
	ActionItems []string `json:"action_items"`
	Topics      []string `json:"topics"`
}

// Summarize sends the transcript and returns the parsed summary. A model
// that ignores the JSON instruction still yields a usable result: the raw
// text becomes the summary body.
func (c *Client) Summarize(ctx context.Context, transcript string) (*types.Summary, error) {
	if !util.IsConfigured(c.endpoint) {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(transcript) == "" {
		return nil, ErrEmptyTranscript
	}

	reqBody, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: c.prompt},
			{Role: "user", Content: transcript},
		},
		Temperature:    0.2,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, util.WrapError("marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, util.WrapError("create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, util.WrapError("send request", err)
	}
	defer util.SafeCloseFunc(resp.Body, "summarizer response body")()

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, util.WrapError("decode response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if parsed.Error != nil && parsed.Error.Message != "" {
			return nil, fmt.Errorf("summarizer returned status %d: %s", resp.StatusCode, parsed.Error.Message)
		}
		return nil, fmt.Errorf("summarizer returned status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return nil, errors.New("summarizer returned no choices")
	}

	content := parsed.Choices[0].Message.Content
	summary := &types.Summary{
		Model:       c.model,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}

	var payload summaryPayload
	if err := json.Unmarshal([]byte(content), &payload); err == nil && payload.Summary != "" {
		summary.Text = payload.Summary
		summary.ActionItems = payload.ActionItems
		summary.Topics = payload.Topics
	} else {
		summary.Text = strings.TrimSpace(content)
	}

	return summary, nil
}
