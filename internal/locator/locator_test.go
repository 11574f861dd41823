package locator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/tldrprivacy/policyscout/internal/model"
	"github.com/tldrprivacy/policyscout/internal/render"
)

// stubRenderer returns fixed pages per wait policy.
type stubRenderer struct {
	mu      sync.Mutex
	fast    *model.Page
	settled *model.Page
	fastErr error
	slowErr error
	calls   []render.WaitPolicy
}

func (s *stubRenderer) Render(_ context.Context, url string, opts render.Options) (*model.Page, error) {
	s.mu.Lock()
	s.calls = append(s.calls, opts.Wait)
	s.mu.Unlock()

	if opts.Wait == render.WaitFast {
		if s.fastErr != nil {
			return nil, &render.RenderError{URL: url, Wait: opts.Wait, Err: s.fastErr}
		}
		return s.fast, nil
	}
	if s.slowErr != nil {
		return nil, &render.RenderError{URL: url, Wait: opts.Wait, Err: s.slowErr}
	}
	return s.settled, nil
}

// stubSearch answers with a fixed result and counts calls.
type stubSearch struct {
	url   string
	ok    bool
	calls int
}

func (s *stubSearch) Search(_ context.Context, _ string) (string, bool) {
	s.calls++
	return s.url, s.ok
}

func quiet() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func pageWith(links ...model.Link) *model.Page {
	return &model.Page{Text: strings.Repeat("content ", 40), Links: links}
}

func TestLocateDocumentOrder(t *testing.T) {
	t.Parallel()

	r := &stubRenderer{fast: pageWith(
		model.Link{Text: "Home", Href: "https://example.com/"},
		model.Link{Text: "Legal", Href: "https://example.com/legal/privacy"},
		model.Link{Text: "Privacy Policy", Href: "https://example.com/privacy-policy"},
	)}
	l := New(r, quiet())

	loc, err := l.Locate(context.Background(), "https://example.com")
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if loc.URL != "https://example.com/legal/privacy" {
		t.Errorf("expected first matching anchor, got %s", loc.URL)
	}
	if loc.Source != model.SourcePage {
		t.Errorf("expected page source, got %s", loc.Source)
	}
}

func TestFindPolicyLink(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		links  []model.Link
		tokens []string
		want   string
		found  bool
	}{
		{
			name: "priority pattern beats earlier text match",
			links: []model.Link{
				{Text: "Your Privacy Choices", Href: "https://example.com/choices"},
				{Text: "Legal", Href: "https://example.com/policies/privacy/"},
			},
			want:  "https://example.com/policies/privacy/",
			found: true,
		},
		{
			name: "priority pattern is case sensitive",
			links: []model.Link{
				{Text: "Statement", Href: "https://example.com/PRIVACY"},
				{Text: "Notice", Href: "https://example.com/help/privacy-notice"},
			},
			want:  "https://example.com/help/privacy-notice",
			found: true,
		},
		{
			name: "text fallback ignores case",
			links: []model.Link{
				{Text: "  PRIVACY Statement ", Href: "https://example.com/statement"},
			},
			want:  "https://example.com/statement",
			found: true,
		},
		{
			name: "href fallback ignores case",
			links: []model.Link{
				{Text: "Statement", Href: "https://example.com/PRIVACY"},
			},
			want:  "https://example.com/PRIVACY",
			found: true,
		},
		{
			name: "excluded token skips anchor",
			links: []model.Link{
				{Text: "Privacy", Href: "https://example.com/privacy?privacy_mutation_token=x"},
				{Text: "Privacy Center", Href: "https://example.com/privacy-center"},
			},
			tokens: []string{"privacy_mutation_token"},
			want:   "https://example.com/privacy-center",
			found:  true,
		},
		{
			name: "no match",
			links: []model.Link{
				{Text: "Terms", Href: "https://example.com/terms"},
			},
		},
		{
			name: "empty href ignored",
			links: []model.Link{
				{Text: "Privacy", Href: ""},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			l := New(nil, WithExcludedTokens(tt.tokens), quiet())
			got, ok := l.FindPolicyLink(tt.links)
			if ok != tt.found || got != tt.want {
				t.Errorf("FindPolicyLink() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.found)
			}
		})
	}
}

func TestLocateSearchFallback(t *testing.T) {
	t.Parallel()

	t.Run("search hit", func(t *testing.T) {
		t.Parallel()

		r := &stubRenderer{
			fast:    pageWith(model.Link{Text: "Terms", Href: "https://example.com/terms"}),
			settled: pageWith(),
		}
		s := &stubSearch{url: "https://example.com/legal/pp", ok: true}
		l := New(r, WithSearch(s), quiet())

		loc, err := l.Locate(context.Background(), "https://example.com")
		if err != nil {
			t.Fatalf("Locate failed: %v", err)
		}
		if loc.Source != model.SourceSearch || loc.URL != "https://example.com/legal/pp" {
			t.Errorf("unexpected location %+v", loc)
		}
	})

	t.Run("no anchors and failing search", func(t *testing.T) {
		t.Parallel()

		r := &stubRenderer{fast: &model.Page{}, settled: &model.Page{}}
		s := &stubSearch{}
		l := New(r, WithSearch(s), quiet())

		_, err := l.Locate(context.Background(), "https://example.com")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if !IsNoPolicy(err) {
			t.Error("expected IsNoPolicy to be true")
		}
		if s.calls != 1 {
			t.Errorf("expected one search call, got %d", s.calls)
		}
	})

	t.Run("no search configured", func(t *testing.T) {
		t.Parallel()

		r := &stubRenderer{fast: pageWith(), settled: pageWith()}
		l := New(r, quiet())

		if _, err := l.Locate(context.Background(), "https://example.com"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestLocateRenderFailure(t *testing.T) {
	t.Parallel()

	cause := errors.New("net::ERR_CONNECTION_REFUSED")
	r := &stubRenderer{fastErr: cause}
	s := &stubSearch{url: "https://example.com/privacy", ok: true}
	l := New(r, WithSearch(s), quiet())

	_, err := l.Locate(context.Background(), "https://example.com")

	var failure *LocateFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected LocateFailure, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Error("expected failure to wrap the render cause")
	}
	var renderErr *render.RenderError
	if !errors.As(err, &renderErr) {
		t.Error("expected failure to wrap a RenderError")
	}
	if !IsNoPolicy(err) {
		t.Error("render failure should count as no policy")
	}
	if s.calls != 0 {
		t.Error("search must not run after a render failure")
	}
	if len(r.calls) != 1 {
		t.Errorf("fast failure must not be retried, got %d renders", len(r.calls))
	}
}

func TestLocateSettledRetry(t *testing.T) {
	t.Parallel()

	t.Run("settled result used when fast has no anchors", func(t *testing.T) {
		t.Parallel()

		r := &stubRenderer{
			fast:    &model.Page{Text: "loading"},
			settled: pageWith(model.Link{Text: "Privacy", Href: "https://example.com/privacy"}),
		}
		l := New(r, quiet())

		loc, err := l.Locate(context.Background(), "https://example.com")
		if err != nil {
			t.Fatalf("Locate failed: %v", err)
		}
		if loc.URL != "https://example.com/privacy" {
			t.Errorf("unexpected URL %s", loc.URL)
		}
		if len(r.calls) != 2 || r.calls[1] != render.WaitSettled {
			t.Errorf("expected fast then settled, got %v", r.calls)
		}
	})

	t.Run("failed settled keeps fast result", func(t *testing.T) {
		t.Parallel()

		r := &stubRenderer{
			fast:    &model.Page{Text: "short", Links: []model.Link{{Text: "Privacy", Href: "https://example.com/privacy"}}},
			slowErr: errors.New("timeout"),
		}
		l := New(r, quiet())

		loc, err := l.Locate(context.Background(), "https://example.com")
		if err != nil {
			t.Fatalf("Locate failed: %v", err)
		}
		if loc.URL != "https://example.com/privacy" {
			t.Errorf("unexpected URL %s", loc.URL)
		}
	})

	t.Run("complete page is not retried", func(t *testing.T) {
		t.Parallel()

		r := &stubRenderer{fast: pageWith(model.Link{Text: "Privacy", Href: "https://example.com/privacy"})}
		l := New(r, quiet())

		if _, err := l.Locate(context.Background(), "https://example.com"); err != nil {
			t.Fatalf("Locate failed: %v", err)
		}
		if len(r.calls) != 1 {
			t.Errorf("expected a single render, got %v", r.calls)
		}
	})
}
