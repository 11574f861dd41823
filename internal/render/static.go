package render

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tldrprivacy/policyscout/internal/model"
)

// DefaultUserAgent is sent by both renderers. Some sites serve a stripped
// page or a bot wall to unknown agents, so we present a desktop browser.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36"

// DefaultMaxBodySize limits how much of a response the static renderer reads.
const DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

// Static renders pages with a plain HTTP request. It does not execute
// JavaScript, so the wait policy only affects the timeout.
type Static struct {
	client      *http.Client
	userAgent   string
	maxBodySize int64
	logger      *slog.Logger
}

// StaticOption configures a Static renderer.
type StaticOption func(*Static)

// WithHTTPClient sets the client used for requests.
func WithHTTPClient(client *http.Client) StaticOption {
	return func(s *Static) {
		s.client = client
	}
}

// WithStaticUserAgent sets the User-Agent header.
func WithStaticUserAgent(ua string) StaticOption {
	return func(s *Static) {
		s.userAgent = ua
	}
}

// WithMaxBodySize sets the maximum number of body bytes read per page.
func WithMaxBodySize(size int64) StaticOption {
	return func(s *Static) {
		s.maxBodySize = size
	}
}

// WithStaticLogger sets the logger.
func WithStaticLogger(logger *slog.Logger) StaticOption {
	return func(s *Static) {
		s.logger = logger
	}
}

// NewStatic creates a Static renderer.
func NewStatic(opts ...StaticOption) *Static {
	s := &Static{
		client:      http.DefaultClient,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Render fetches pageURL and extracts its text and anchors.
func (s *Static) Render(ctx context.Context, pageURL string, opts Options) (*model.Page, error) {
	ctx, cancel := withTimeout(ctx, opts)
	defer cancel()

	page, err := s.fetch(ctx, pageURL)
	if err != nil {
		return nil, &RenderError{URL: pageURL, Wait: opts.Wait, Err: err}
	}
	return page, nil
}

func (s *Static) fetch(ctx context.Context, pageURL string) (*model.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		s.logger.Debug("page returned error status", "url", pageURL, "status", resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, s.maxBodySize)

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "html") {
		// Not a document we can parse; treat it as plain text.
		raw, err := io.ReadAll(body)
		if err != nil {
			return nil, err
		}
		text := ""
		if strings.HasPrefix(contentType, "text/") {
			text = strings.TrimSpace(string(raw))
		}
		return &model.Page{URL: pageURL, Text: text}, nil
	}

	// Resolve links against the final URL after redirects.
	parser, err := NewParser(resp.Request.URL.String())
	if err != nil {
		return nil, err
	}
	page, err := parser.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	page.URL = pageURL
	return page, nil
}
