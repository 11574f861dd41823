// Package locator finds the privacy policy URL of a website.
//
// Design decision: Lookup is ordered from most to least specific. Links
// whose path has a well-known policy shape win over anything that merely
// mentions privacy, and the web-search fallback runs only when the page
// offers nothing at all. Within each tier the first anchor in document
// order wins, because footers list the canonical policy before related
// notices far more often than the other way round.
package locator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tldrprivacy/policyscout/internal/model"
	"github.com/tldrprivacy/policyscout/internal/render"
)

// PriorityPatterns are href substrings that mark a canonical policy link.
var PriorityPatterns = []string{"/privacy-policy", "/privacy", "/legal/privacy", "/policies/privacy"}

// ErrNotFound is returned when neither the page nor the search fallback
// yields a policy URL.
var ErrNotFound = errors.New("no privacy policy found")

// LocateFailure reports that the root page could not be rendered.
// Callers treat it like ErrNotFound; it exists so logs keep the cause.
type LocateFailure struct {
	// URL is the root that failed.
	URL string

	// Err is the underlying render error.
	Err error
}

// Error implements error.
func (e *LocateFailure) Error() string {
	return fmt.Sprintf("locate policy on %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying cause.
func (e *LocateFailure) Unwrap() error {
	return e.Err
}

// IsNoPolicy reports whether err means "no policy" to a caller.
func IsNoPolicy(err error) bool {
	var failure *LocateFailure
	return errors.Is(err, ErrNotFound) || errors.As(err, &failure)
}

// SearchFallback looks a site's policy up externally.
// Implementations never fail: any problem is reported as a miss.
type SearchFallback interface {
	Search(ctx context.Context, siteURL string) (string, bool)
}

// Locator finds policy URLs by inspecting a site's root page.
type Locator struct {
	renderer       render.Renderer
	search         SearchFallback
	fastTimeout    time.Duration
	slowTimeout    time.Duration
	minContent     int
	excludedTokens []string
	logger         *slog.Logger
}

// Option configures a Locator.
type Option func(*Locator)

// WithSearch sets the fallback used when the page has no policy link.
func WithSearch(search SearchFallback) Option {
	return func(l *Locator) {
		l.search = search
	}
}

// WithTimeouts sets the fast and settled render timeouts.
func WithTimeouts(fast, slow time.Duration) Option {
	return func(l *Locator) {
		l.fastTimeout = fast
		l.slowTimeout = slow
	}
}

// WithMinContentLength sets the text length below which the root page is
// rendered again with the settled wait.
func WithMinContentLength(n int) Option {
	return func(l *Locator) {
		l.minContent = n
	}
}

// WithExcludedTokens skips anchors whose href contains one of tokens.
func WithExcludedTokens(tokens []string) Option {
	return func(l *Locator) {
		l.excludedTokens = tokens
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Locator) {
		l.logger = logger
	}
}

// New creates a Locator that renders with renderer.
func New(renderer render.Renderer, opts ...Option) *Locator {
	l := &Locator{
		renderer:    renderer,
		fastTimeout: 15 * time.Second,
		slowTimeout: 30 * time.Second,
		minContent:  200,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Locate returns the policy URL for the site at rootURL.
//
// It returns ErrNotFound when nothing matched, or a *LocateFailure when the
// root page could not be rendered. The search fallback is not consulted
// after a render failure.
func (l *Locator) Locate(ctx context.Context, rootURL string) (model.Location, error) {
	page, err := l.renderer.Render(ctx, rootURL, render.Options{Wait: render.WaitFast, Timeout: l.fastTimeout})
	if err != nil {
		l.logger.Warn("failed to render site root", "url", rootURL, "error", err)
		return model.Location{}, &LocateFailure{URL: rootURL, Err: err}
	}

	if len(page.Links) == 0 || page.ContentLength() < l.minContent {
		l.logger.Debug("root page looks incomplete, retrying with settled wait",
			"url", rootURL,
			"links", len(page.Links),
			"chars", page.ContentLength(),
		)
		settled, err := l.renderer.Render(ctx, rootURL, render.Options{Wait: render.WaitSettled, Timeout: l.slowTimeout})
		if err != nil {
			l.logger.Warn("settled render failed, using fast result", "url", rootURL, "error", err)
		} else {
			page = settled
		}
	}

	if href, ok := l.FindPolicyLink(page.Links); ok {
		l.logger.Info("privacy policy found on page", "site", rootURL, "url", href)
		return model.Location{URL: href, Source: model.SourcePage}, nil
	}

	if l.search == nil {
		return model.Location{}, ErrNotFound
	}

	l.logger.Info("no policy link on page, searching", "site", rootURL)
	if href, ok := l.search.Search(ctx, rootURL); ok {
		l.logger.Info("privacy policy found by search", "site", rootURL, "url", href)
		return model.Location{URL: href, Source: model.SourceSearch}, nil
	}
	return model.Location{}, ErrNotFound
}

// FindPolicyLink picks the policy link among anchors in document order.
// The first anchor whose href contains a priority pattern wins; otherwise
// the first whose text or href mentions privacy.
func (l *Locator) FindPolicyLink(links []model.Link) (string, bool) {
	candidates := make([]model.Link, 0, len(links))
	for _, link := range links {
		if link.Href == "" || l.excluded(link.Href) {
			continue
		}
		candidates = append(candidates, model.Link{
			Text: strings.ToLower(strings.TrimSpace(link.Text)),
			Href: link.Href,
		})
	}

	for _, link := range candidates {
		for _, pattern := range PriorityPatterns {
			if strings.Contains(link.Href, pattern) {
				return link.Href, true
			}
		}
	}

	for _, link := range candidates {
		if strings.Contains(link.Text, "privacy") || strings.Contains(strings.ToLower(link.Href), "privacy") {
			return link.Href, true
		}
	}

	return "", false
}

func (l *Locator) excluded(href string) bool {
	for _, token := range l.excludedTokens {
		if token != "" && strings.Contains(href, token) {
			return true
		}
	}
	return false
}
