package crawler

import (
	"context"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/tldrprivacy/policyscout/internal/model"
	"github.com/tldrprivacy/policyscout/internal/relevance"
	"github.com/tldrprivacy/policyscout/internal/render"
)

// Defaults for a Crawler.
const (
	DefaultMaxPages         = 10
	DefaultMinContentLength = 200
	DefaultFastTimeout      = 15 * time.Second
	DefaultSlowTimeout      = 30 * time.Second
)

// pageSeparator joins the text of a page and each of its children.
const pageSeparator = "\n\n"

// Crawler assembles the text of a policy document by following relevant
// same-host links depth-first from a starting page, within a page budget.
//
// Design decision: The traversal is sequential. Policy sites are small and
// the budget is tiny, so concurrency would buy little and would make the
// pre-order layout of the aggregated text depend on timing.
type Crawler struct {
	// renderer produces page text and anchors.
	renderer render.Renderer

	// classifier decides which links to follow.
	classifier *relevance.Classifier

	// maxPages is the budget of each Crawl call.
	maxPages int

	// minContent is the rune count below which the settled retry fires.
	minContent int

	// fastTimeout and slowTimeout bound the two render attempts.
	fastTimeout time.Duration
	slowTimeout time.Duration

	// contentDedup drops text identical to an earlier page's.
	contentDedup bool

	// ignorePatterns are URL path globs never followed (e.g. "*.pdf").
	ignorePatterns []string

	// limiter spaces renders out. Nil means no delay.
	limiter *rate.Limiter

	logger *slog.Logger
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithMaxPages sets the page budget per Crawl call.
func WithMaxPages(maxPages int) Option {
	return func(c *Crawler) {
		c.maxPages = maxPages
	}
}

// WithMinContentLength sets the threshold for the settled retry.
func WithMinContentLength(n int) Option {
	return func(c *Crawler) {
		c.minContent = n
	}
}

// WithTimeouts sets the fast and settled render timeouts.
func WithTimeouts(fast, slow time.Duration) Option {
	return func(c *Crawler) {
		c.fastTimeout = fast
		c.slowTimeout = slow
	}
}

// WithContentDedup enables dropping repeated page text.
func WithContentDedup(enabled bool) Option {
	return func(c *Crawler) {
		c.contentDedup = enabled
	}
}

// WithClassifier sets the link relevance classifier.
func WithClassifier(classifier *relevance.Classifier) Option {
	return func(c *Crawler) {
		c.classifier = classifier
	}
}

// WithIgnorePatterns sets URL path patterns that are never followed.
// Patterns use glob syntax (e.g., "/account/*", "*.pdf").
func WithIgnorePatterns(patterns []string) Option {
	return func(c *Crawler) {
		c.ignorePatterns = patterns
	}
}

// WithDelay sets the minimum interval between renders.
// Zero disables the delay.
func WithDelay(d time.Duration) Option {
	return func(c *Crawler) {
		if d <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		c.logger = logger
	}
}

// New creates a Crawler that renders pages with renderer.
func New(renderer render.Renderer, opts ...Option) *Crawler {
	c := &Crawler{
		renderer:    renderer,
		classifier:  relevance.New(),
		maxPages:    DefaultMaxPages,
		minContent:  DefaultMinContentLength,
		fastTimeout: DefaultFastTimeout,
		slowTimeout: DefaultSlowTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Crawl runs one traversal from startURL with a fresh session.
// It never fails: pages that cannot be rendered contribute no text.
func (c *Crawler) Crawl(ctx context.Context, startURL string) *model.CrawlResult {
	session := NewSession(c.maxPages)
	text := c.Visit(ctx, startURL, session)

	result := &model.CrawlResult{
		StartURL:     startURL,
		Text:         text,
		Pages:        session.Pages(),
		PagesVisited: session.Budget.Used(),
		MaxPages:     c.maxPages,
	}

	c.logger.Info("crawl finished",
		"url", startURL,
		"pages", result.PagesVisited,
		"max_pages", c.maxPages,
		"chars", len(text),
	)
	return result
}

// Visit renders pageURL, then recursively visits its relevant links in
// document order, and returns the page text followed by each child's text.
// All state lives in session, so several visits may share one budget.
func (c *Crawler) Visit(ctx context.Context, pageURL string, session *Session) string {
	return c.visit(ctx, pageURL, 0, session)
}

func (c *Crawler) visit(ctx context.Context, pageURL string, depth int, s *Session) string {
	if ctx.Err() != nil || s.Budget.Exhausted() || s.Visited.Contains(pageURL) {
		return ""
	}
	if !s.Visited.MarkIfNotVisited(pageURL) {
		return ""
	}
	if !s.Budget.TryAcquire() {
		return ""
	}

	c.logger.Debug("crawling page",
		"url", pageURL,
		"n", s.Budget.Used(),
		"depth", depth,
	)

	page, visit := c.fetch(ctx, pageURL)
	visit.Depth = depth
	if page == nil {
		s.record(visit)
		return ""
	}

	text := page.Text
	if c.contentDedup && !s.Content.MarkIfNew(text) {
		visit.Duplicate = true
		text = ""
	}
	visit.Characters = len([]rune(text))
	s.record(visit)

	baseDomain := hostname(pageURL)

	var b strings.Builder
	b.WriteString(text)
	for _, link := range page.Links {
		if ctx.Err() != nil || s.Budget.Exhausted() {
			break
		}
		if !c.classifier.IsRelevant(link.Text, link.Href, baseDomain) {
			continue
		}
		if !c.shouldCrawl(link.Href) {
			continue
		}
		b.WriteString(pageSeparator)
		b.WriteString(c.visit(ctx, link.Href, depth+1, s))
	}
	return b.String()
}

// fetch renders pageURL with the fast policy and, when that fails or looks
// too short, once more with the settled policy. A nil page means no render
// succeeded.
func (c *Crawler) fetch(ctx context.Context, pageURL string) (*model.Page, model.PageVisit) {
	visit := model.PageVisit{URL: pageURL}

	fast, err := c.render(ctx, pageURL, render.WaitFast, c.fastTimeout)
	if err == nil && fast.ContentLength() >= c.minContent {
		return fast, visit
	}
	if err != nil {
		c.logger.Warn("fast render failed", "url", pageURL, "error", err)
	} else {
		c.logger.Debug("content too short, retrying with settled wait",
			"url", pageURL,
			"chars", fast.ContentLength(),
			"min", c.minContent,
		)
	}

	if ctx.Err() != nil {
		if fast == nil {
			visit.Error = ctx.Err().Error()
		}
		return fast, visit
	}

	visit.Retried = true
	slow, slowErr := c.render(ctx, pageURL, render.WaitSettled, c.slowTimeout)
	if slowErr != nil {
		c.logger.Warn("settled render failed", "url", pageURL, "error", slowErr)
		if fast == nil {
			visit.Error = slowErr.Error()
		}
		return fast, visit
	}
	return slow, visit
}

// render waits for the politeness limiter and renders one page.
func (c *Crawler) render(ctx context.Context, pageURL string, wait render.WaitPolicy, timeout time.Duration) (*model.Page, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &render.RenderError{URL: pageURL, Wait: wait, Err: err}
		}
	}
	page, err := c.renderer.Render(ctx, pageURL, render.Options{Wait: wait, Timeout: timeout})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// hostname returns the host of rawURL without port, or "" if unparsable.
func hostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// shouldCrawl reports whether a link passes the ignore patterns.
func (c *Crawler) shouldCrawl(targetURL string) bool {
	if len(c.ignorePatterns) == 0 {
		return true
	}

	u, err := url.Parse(targetURL)
	if err != nil {
		return false
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range c.ignorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}
	return true
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//
// Examples:
//   - "/account/*" matches "/account/settings"
//   - "*.pdf" matches "/docs/policy.pdf"
func matchPattern(pattern, path string) bool {
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	if strings.HasPrefix(pattern, "*.") {
		if strings.HasSuffix(path, strings.TrimPrefix(pattern, "*")) {
			return true
		}
	}

	matched, err := filepath.Match(pattern, path)
	return err == nil && matched
}
