package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/tldrprivacy/policyscout/internal/config"
	"github.com/tldrprivacy/policyscout/internal/database"
	"github.com/tldrprivacy/policyscout/internal/locator"
	"github.com/tldrprivacy/policyscout/internal/model"
	"github.com/tldrprivacy/policyscout/internal/render"
)

// memStore is an in-memory Store.
type memStore struct {
	mu      sync.Mutex
	rows    map[string]*database.PolicyRecord
	readErr error
	putErr  error
	puts    int
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]*database.PolicyRecord)}
}

func (m *memStore) GetCached(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return "", false, m.readErr
	}
	row, ok := m.rows[key]
	if !ok {
		return "", false, nil
	}
	return row.Summary, true, nil
}

func (m *memStore) Put(_ context.Context, key string, record *database.PolicyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.putErr != nil {
		return m.putErr
	}
	m.rows[key] = record
	return nil
}

type stubLocator struct {
	location model.Location
	err      error
}

func (s stubLocator) Locate(context.Context, string) (model.Location, error) {
	return s.location, s.err
}

type stubCrawler struct {
	text  string
	pages int
	got   string
}

func (s *stubCrawler) Crawl(_ context.Context, startURL string) *model.CrawlResult {
	s.got = startURL
	return &model.CrawlResult{StartURL: startURL, Text: s.text, PagesVisited: s.pages}
}

type stubSummarizer struct {
	summary string
	err     error
}

func (s stubSummarizer) Summarize(context.Context, string) (string, error) {
	return s.summary, s.err
}

func TestCacheLookupStep(t *testing.T) {
	t.Parallel()

	t.Run("hit marks cached", func(t *testing.T) {
		t.Parallel()

		store := newMemStore()
		store.rows["privacy_policy_example_com.txt"] = &database.PolicyRecord{Summary: "stored"}

		a := newTestAnalysis()
		if err := NewCacheLookupStep(store, nil).Do(context.Background(), a); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a.Status != model.StatusCached || !a.FromCache || a.Summary != "stored" {
			t.Errorf("unexpected analysis: status=%s fromCache=%v summary=%q", a.Status, a.FromCache, a.Summary)
		}
		if a.Source() != "cached" {
			t.Errorf("expected source cached, got %q", a.Source())
		}
	})

	t.Run("miss leaves analysis pending", func(t *testing.T) {
		t.Parallel()

		a := newTestAnalysis()
		if err := NewCacheLookupStep(newMemStore(), nil).Do(context.Background(), a); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a.Status != model.StatusPending {
			t.Errorf("expected pending, got %s", a.Status)
		}
	})

	t.Run("read error is a miss", func(t *testing.T) {
		t.Parallel()

		store := newMemStore()
		store.readErr = errors.New("disk on fire")

		a := newTestAnalysis()
		if err := NewCacheLookupStep(store, nil).Do(context.Background(), a); err != nil {
			t.Fatalf("expected read error to be swallowed, got %v", err)
		}
		if a.Status != model.StatusPending {
			t.Errorf("expected pending, got %s", a.Status)
		}
	})
}

func TestLocateStep(t *testing.T) {
	t.Parallel()

	t.Run("found", func(t *testing.T) {
		t.Parallel()

		want := model.Location{URL: "https://example.com/privacy", Source: model.SourcePage}
		a := newTestAnalysis()
		if err := NewLocateStep(stubLocator{location: want}, nil).Do(context.Background(), a); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a.Location == nil || *a.Location != want {
			t.Errorf("expected %+v, got %+v", want, a.Location)
		}
	})

	t.Run("no policy outcomes", func(t *testing.T) {
		t.Parallel()

		errs := []error{
			locator.ErrNotFound,
			&locator.LocateFailure{URL: "https://example.com", Err: errors.New("timeout")},
		}
		for _, locErr := range errs {
			a := newTestAnalysis()
			if err := NewLocateStep(stubLocator{err: locErr}, nil).Do(context.Background(), a); err != nil {
				t.Fatalf("expected nil for %v, got %v", locErr, err)
			}
			if a.Status != model.StatusNotFound {
				t.Errorf("expected not_found for %v, got %s", locErr, a.Status)
			}
		}
	})

	t.Run("other errors are returned", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		a := newTestAnalysis()
		if err := NewLocateStep(stubLocator{err: boom}, nil).Do(context.Background(), a); !errors.Is(err, boom) {
			t.Errorf("expected boom, got %v", err)
		}
	})
}

func TestCrawlStep(t *testing.T) {
	t.Parallel()

	t.Run("crawls from location", func(t *testing.T) {
		t.Parallel()

		c := &stubCrawler{text: "policy", pages: 2}
		a := newTestAnalysis()
		a.Location = &model.Location{URL: "https://example.com/privacy", Source: model.SourcePage}

		if err := NewCrawlStep(c, nil).Do(context.Background(), a); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.got != "https://example.com/privacy" {
			t.Errorf("crawled %q", c.got)
		}
		if a.Crawl == nil || a.Crawl.PagesVisited != 2 {
			t.Errorf("unexpected crawl result %+v", a.Crawl)
		}
	})

	t.Run("missing location", func(t *testing.T) {
		t.Parallel()

		err := NewCrawlStep(&stubCrawler{}, nil).Do(context.Background(), newTestAnalysis())
		if !errors.Is(err, ErrNoLocation) {
			t.Errorf("expected ErrNoLocation, got %v", err)
		}
	})
}

func TestCleanText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "collapses whitespace", in: "  We\tcollect\n\n\ndata  ", want: "We collect data"},
		{name: "nfkc folds compatibility forms", in: "ﬁle Ｐrivacy", want: "file Privacy"},
		{name: "drops non ascii after collapsing", in: "a é b", want: "a  b"},
		{name: "drops emoji", in: "safe 🔒 data", want: "safe  data"},
		{name: "only whitespace", in: " \n\t ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := CleanText(tt.in); got != tt.want {
				t.Errorf("CleanText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCleanStep(t *testing.T) {
	t.Parallel()

	t.Run("keeps text", func(t *testing.T) {
		t.Parallel()

		a := newTestAnalysis()
		a.Crawl = &model.CrawlResult{Text: "We collect\n\nemail addresses."}
		if err := NewCleanStep(0, nil).Do(context.Background(), a); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a.CleanText != "We collect email addresses." {
			t.Errorf("unexpected clean text %q", a.CleanText)
		}
		if a.Status != model.StatusPending {
			t.Errorf("expected pending, got %s", a.Status)
		}
	})

	t.Run("empty text", func(t *testing.T) {
		t.Parallel()

		a := newTestAnalysis()
		a.Crawl = &model.CrawlResult{Text: "\n\n\n\n"}
		if err := NewCleanStep(0, nil).Do(context.Background(), a); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a.Status != model.StatusEmpty {
			t.Errorf("expected empty, got %s", a.Status)
		}
	})

	t.Run("below minimum", func(t *testing.T) {
		t.Parallel()

		a := newTestAnalysis()
		a.Crawl = &model.CrawlResult{Text: strings.Repeat("x", 199)}
		if err := NewCleanStep(200, nil).Do(context.Background(), a); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a.Status != model.StatusEmpty {
			t.Errorf("expected empty, got %s", a.Status)
		}
	})
}

func TestSummarizeStep(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		a := newTestAnalysis()
		a.CleanText = "long policy"
		if err := NewSummarizeStep(stubSummarizer{summary: "tl;dr"}, nil).Do(context.Background(), a); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a.Summary != "tl;dr" || !a.Summarized {
			t.Errorf("unexpected summary %q summarized=%v", a.Summary, a.Summarized)
		}
	})

	t.Run("failure falls back to cleaned text", func(t *testing.T) {
		t.Parallel()

		a := newTestAnalysis()
		a.CleanText = "long policy"
		step := NewSummarizeStep(stubSummarizer{err: errors.New("quota")}, nil)
		if err := step.Do(context.Background(), a); err != nil {
			t.Fatalf("expected failure to be swallowed, got %v", err)
		}
		if a.Summary != "long policy" || a.Summarized {
			t.Errorf("unexpected summary %q summarized=%v", a.Summary, a.Summarized)
		}
	})
}

func TestPersistStep(t *testing.T) {
	t.Parallel()

	t.Run("stores record", func(t *testing.T) {
		t.Parallel()

		store := newMemStore()
		a := newTestAnalysis()
		a.Location = &model.Location{URL: "https://example.com/privacy", Source: model.SourceSearch}
		a.Crawl = &model.CrawlResult{PagesVisited: 3}
		a.CleanText = "policy text"
		a.Summary = "summary"
		a.Summarized = true

		if err := NewPersistStep(store, nil).Do(context.Background(), a); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		row := store.rows[a.CacheKey]
		if row == nil {
			t.Fatal("expected row to be stored")
		}
		if row.PolicyURL != "https://example.com/privacy" || row.LocationSource != "search" {
			t.Errorf("unexpected location in row %+v", row)
		}
		if row.PagesVisited != 3 || row.Characters != len("policy text") {
			t.Errorf("unexpected counters in row %+v", row)
		}
		if row.ContentHash != database.ContentHash("policy text") {
			t.Errorf("unexpected hash %q", row.ContentHash)
		}
	})

	t.Run("write error is logged only", func(t *testing.T) {
		t.Parallel()

		store := newMemStore()
		store.putErr = errors.New("read-only")
		a := newTestAnalysis()
		if err := NewPersistStep(store, nil).Do(context.Background(), a); err != nil {
			t.Errorf("expected write error to be swallowed, got %v", err)
		}
	})
}

// siteRenderer serves fixed pages for DefaultPipeline tests.
type siteRenderer struct {
	pages map[string]*model.Page
}

func (r siteRenderer) Render(_ context.Context, url string, opts render.Options) (*model.Page, error) {
	page, ok := r.pages[url]
	if !ok {
		return nil, &render.RenderError{URL: url, Wait: opts.Wait, Err: errors.New("no such page")}
	}
	return page, nil
}

func testSite() siteRenderer {
	policy := strings.Repeat("We collect your email address. ", 20)
	return siteRenderer{pages: map[string]*model.Page{
		"https://example.com": {
			URL:   "https://example.com",
			Text:  strings.Repeat("Welcome to example. ", 20),
			Links: []model.Link{{Text: "Privacy Policy", Href: "https://example.com/privacy-policy"}},
		},
		"https://example.com/privacy-policy": {
			URL:  "https://example.com/privacy-policy",
			Text: policy,
		},
	}}
}

func TestDefaultPipeline(t *testing.T) {
	t.Parallel()

	t.Run("step list follows config", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		deps := Dependencies{Renderer: testSite(), Store: newMemStore()}

		full := DefaultPipeline(cfg, deps, "https://example.com").StepNames()
		want := []string{"cache_lookup", "locate", "crawl", "clean", "summarize", "persist"}
		if strings.Join(full, ",") != strings.Join(want, ",") {
			t.Errorf("expected %v, got %v", want, full)
		}

		cfg.NoCache = true
		cfg.NoSave = true
		bare := DefaultPipeline(cfg, deps, "https://example.com").StepNames()
		if strings.Join(bare, ",") != "locate,crawl,clean,summarize" {
			t.Errorf("unexpected steps %v", bare)
		}

		noStore := DefaultPipeline(config.NewConfig(), Dependencies{Renderer: testSite()}, "https://example.com")
		if noStore.StepCount() != 4 {
			t.Errorf("expected 4 steps without store, got %v", noStore.StepNames())
		}
	})

	t.Run("end to end then cached", func(t *testing.T) {
		t.Parallel()

		store := newMemStore()
		factory := DefaultFactory(config.NewConfig(), Dependencies{
			Renderer:   testSite(),
			Store:      store,
			Summarizer: stubSummarizer{summary: "They collect email."},
		})

		first, err := Analyze(context.Background(), factory, "https://example.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if first.Status != model.StatusCompleted || first.Source() != "new" {
			t.Fatalf("expected new completed analysis, got %s %s (%s)", first.Status, first.Source(), first.ErrorMessage)
		}
		if first.Location.URL != "https://example.com/privacy-policy" {
			t.Errorf("unexpected location %+v", first.Location)
		}
		if first.Summary != "They collect email." {
			t.Errorf("unexpected summary %q", first.Summary)
		}
		if store.puts != 1 {
			t.Errorf("expected one write, got %d", store.puts)
		}

		second, err := Analyze(context.Background(), factory, "https://example.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if second.Status != model.StatusCached || second.Summary != "They collect email." {
			t.Errorf("expected cached summary, got %s %q", second.Status, second.Summary)
		}
		if store.puts != 1 {
			t.Errorf("expected no second write, got %d", store.puts)
		}
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()

		renderer := siteRenderer{pages: map[string]*model.Page{
			"https://example.com": {URL: "https://example.com", Text: "hello"},
		}}
		store := newMemStore()
		factory := DefaultFactory(config.NewConfig(), Dependencies{Renderer: renderer, Store: store})

		a, err := Analyze(context.Background(), factory, "https://example.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a.Status != model.StatusNotFound {
			t.Errorf("expected not_found, got %s", a.Status)
		}
		if store.puts != 0 {
			t.Error("expected nothing stored")
		}
	})

	t.Run("min characters marks short text empty", func(t *testing.T) {
		t.Parallel()

		renderer := testSite()
		renderer.pages["https://example.com/privacy-policy"] = &model.Page{
			URL:  "https://example.com/privacy-policy",
			Text: "Short.",
		}
		cfg := config.NewConfig()
		cfg.NoCache = true
		factory := DefaultFactory(cfg, Dependencies{Renderer: renderer}, WithPipelineMinCharacters(200))

		a, err := Analyze(context.Background(), factory, "https://example.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a.Status != model.StatusEmpty {
			t.Errorf("expected empty, got %s", a.Status)
		}
	})
}
