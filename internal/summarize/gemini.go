package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Gemini defaults.
const (
	DefaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiModel    = "gemini-1.5-flash"
	DefaultGeminiTimeout  = 60 * time.Second
)

// maxResponseSize limits how much of a model response is read.
const maxResponseSize = 4 * 1024 * 1024

// ErrMissingAPIKey is returned when no Gemini key is configured.
var ErrMissingAPIKey = errors.New("gemini API key is not set")

// ErrNoCandidates is returned when the model produced no text.
var ErrNoCandidates = errors.New("gemini returned no candidates")

// GeminiOptions configures a Gemini client.
type GeminiOptions struct {
	APIKey     string
	Model      string
	Endpoint   string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Gemini summarizes with Google's generateContent REST API.
type Gemini struct {
	apiKey   string
	model    string
	endpoint string
	timeout  time.Duration
	client   *http.Client
	logger   *slog.Logger
}

// NewGemini creates a Gemini client from opts.
func NewGemini(opts GeminiOptions) *Gemini {
	g := &Gemini{
		apiKey:   opts.APIKey,
		model:    opts.Model,
		endpoint: strings.TrimRight(opts.Endpoint, "/"),
		timeout:  opts.Timeout,
		client:   opts.HTTPClient,
		logger:   opts.Logger,
	}
	if g.model == "" {
		g.model = DefaultGeminiModel
	}
	if g.endpoint == "" {
		g.endpoint = DefaultGeminiEndpoint
	}
	if g.timeout <= 0 {
		g.timeout = DefaultGeminiTimeout
	}
	if g.client == nil {
		g.client = http.DefaultClient
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Summarize implements Summarizer.
func (g *Gemini) Summarize(ctx context.Context, text string) (string, error) {
	if g.apiKey == "" {
		return "", ErrMissingAPIKey
	}
	if text == "" {
		return "", ErrEmptyText
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	payload, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: Prompt(text)}}}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.endpoint, url.PathEscape(g.model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	var body geminiResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode gemini response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		if body.Error != nil {
			return "", fmt.Errorf("gemini returned status %d: %s", resp.StatusCode, body.Error.Message)
		}
		return "", fmt.Errorf("gemini returned status %d", resp.StatusCode)
	}

	var out strings.Builder
	for _, c := range body.Candidates {
		for _, p := range c.Content.Parts {
			out.WriteString(p.Text)
		}
		if out.Len() > 0 {
			break
		}
	}
	if out.Len() == 0 {
		return "", ErrNoCandidates
	}

	g.logger.Debug("summary generated",
		"model", g.model,
		"input_chars", len(text),
		"output_chars", out.Len(),
		"duration", time.Since(start),
	)
	return strings.TrimSpace(out.String()), nil
}
