package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"unicode/utf8"

	"github.com/tldrprivacy/policyscout/internal/config"
	"github.com/tldrprivacy/policyscout/internal/crawler"
	"github.com/tldrprivacy/policyscout/internal/database"
	"github.com/tldrprivacy/policyscout/internal/locator"
	"github.com/tldrprivacy/policyscout/internal/model"
	"github.com/tldrprivacy/policyscout/internal/relevance"
	"github.com/tldrprivacy/policyscout/internal/render"
	"github.com/tldrprivacy/policyscout/internal/summarize"
)

// ErrNoLocation is returned by steps that run before a policy was located.
var ErrNoLocation = errors.New("policy location is not set")

// PolicyLocator finds a site's policy URL. *locator.Locator implements it.
type PolicyLocator interface {
	Locate(ctx context.Context, rootURL string) (model.Location, error)
}

// PolicyCrawler gathers a policy's text. *crawler.Crawler implements it.
type PolicyCrawler interface {
	Crawl(ctx context.Context, startURL string) *model.CrawlResult
}

// Store is the policy cache. *database.PolicyDB implements it.
type Store interface {
	GetCached(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key string, record *database.PolicyRecord) error
}

// CacheLookupStep returns a stored summary without crawling.
type CacheLookupStep struct {
	store  Store
	logger *slog.Logger
}

// NewCacheLookupStep creates a CacheLookupStep reading from store.
func NewCacheLookupStep(store Store, logger *slog.Logger) *CacheLookupStep {
	return &CacheLookupStep{store: store, logger: orDefault(logger)}
}

// Name returns the step name.
func (s *CacheLookupStep) Name() string {
	return "cache_lookup"
}

// Do marks the analysis cached on a hit. Read errors are logged and
// treated as a miss.
func (s *CacheLookupStep) Do(ctx context.Context, a *model.Analysis) error {
	summary, ok, err := s.store.GetCached(ctx, a.CacheKey)
	if err != nil {
		s.logger.Warn("cache read failed, analyzing anyway", "key", a.CacheKey, "error", err)
		return nil
	}
	if !ok {
		s.logger.Debug("cache miss", "key", a.CacheKey)
		return nil
	}

	s.logger.Info("using cached summary", "site", a.SiteURL, "key", a.CacheKey)
	a.Summary = summary
	a.FromCache = true
	a.Status = model.StatusCached
	return nil
}

// LocateStep finds the policy URL.
type LocateStep struct {
	locator PolicyLocator
	logger  *slog.Logger
}

// NewLocateStep creates a LocateStep.
func NewLocateStep(l PolicyLocator, logger *slog.Logger) *LocateStep {
	return &LocateStep{locator: l, logger: orDefault(logger)}
}

// Name returns the step name.
func (s *LocateStep) Name() string {
	return "locate"
}

// Do sets the location, or marks the analysis not found.
func (s *LocateStep) Do(ctx context.Context, a *model.Analysis) error {
	location, err := s.locator.Locate(ctx, a.SiteURL)
	if err != nil {
		if locator.IsNoPolicy(err) {
			s.logger.Info("no privacy policy found", "site", a.SiteURL, "reason", err)
			a.Status = model.StatusNotFound
			return nil
		}
		return err
	}
	a.Location = &location
	return nil
}

// CrawlStep gathers the policy text from the located URL.
type CrawlStep struct {
	crawler PolicyCrawler
	logger  *slog.Logger
}

// NewCrawlStep creates a CrawlStep.
func NewCrawlStep(c PolicyCrawler, logger *slog.Logger) *CrawlStep {
	return &CrawlStep{crawler: c, logger: orDefault(logger)}
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do crawls from the policy URL.
func (s *CrawlStep) Do(ctx context.Context, a *model.Analysis) error {
	if a.Location == nil {
		return ErrNoLocation
	}
	a.Crawl = s.crawler.Crawl(ctx, a.Location.URL)
	s.logger.Info("policy crawled",
		"site", a.SiteURL,
		"url", a.Location.URL,
		"pages", a.Crawl.PagesVisited,
		"chars", utf8.RuneCountInString(a.Crawl.Text),
	)
	return nil
}

// CleanStep normalizes the crawled text.
type CleanStep struct {
	// minCharacters is the length below which the text counts as empty.
	minCharacters int
	logger        *slog.Logger
}

// NewCleanStep creates a CleanStep. Cleaned text shorter than
// minCharacters marks the analysis empty; zero only rejects empty text.
func NewCleanStep(minCharacters int, logger *slog.Logger) *CleanStep {
	return &CleanStep{minCharacters: minCharacters, logger: orDefault(logger)}
}

// Name returns the step name.
func (s *CleanStep) Name() string {
	return "clean"
}

// Do sets CleanText, or marks the analysis empty.
func (s *CleanStep) Do(_ context.Context, a *model.Analysis) error {
	if a.Crawl != nil {
		a.CleanText = CleanText(a.Crawl.Text)
	}

	chars := utf8.RuneCountInString(a.CleanText)
	if chars == 0 || chars < s.minCharacters {
		s.logger.Info("policy has no usable text",
			"site", a.SiteURL,
			"chars", chars,
			"min", s.minCharacters,
		)
		a.Status = model.StatusEmpty
	}
	return nil
}

// SummarizeStep produces the summary.
type SummarizeStep struct {
	summarizer summarize.Summarizer
	logger     *slog.Logger
}

// NewSummarizeStep creates a SummarizeStep.
func NewSummarizeStep(summarizer summarize.Summarizer, logger *slog.Logger) *SummarizeStep {
	return &SummarizeStep{summarizer: summarizer, logger: orDefault(logger)}
}

// Name returns the step name.
func (s *SummarizeStep) Name() string {
	return "summarize"
}

// Do summarizes the cleaned text. When the summarizer fails the cleaned
// text becomes the summary and Summarized stays false.
func (s *SummarizeStep) Do(ctx context.Context, a *model.Analysis) error {
	summary, err := s.summarizer.Summarize(ctx, a.CleanText)
	if err != nil {
		s.logger.Warn("summarization failed, keeping policy text", "site", a.SiteURL, "error", err)
		a.Summary = a.CleanText
		a.Summarized = false
		return nil
	}
	a.Summary = summary
	a.Summarized = true
	return nil
}

// PersistStep writes the result to the store.
type PersistStep struct {
	store  Store
	logger *slog.Logger
}

// NewPersistStep creates a PersistStep.
func NewPersistStep(store Store, logger *slog.Logger) *PersistStep {
	return &PersistStep{store: store, logger: orDefault(logger)}
}

// Name returns the step name.
func (s *PersistStep) Name() string {
	return "persist"
}

// Do stores the summary. Write errors are logged; the analysis still
// succeeds.
func (s *PersistStep) Do(ctx context.Context, a *model.Analysis) error {
	record := &database.PolicyRecord{
		BaseURL:     a.SiteURL,
		Summary:     a.Summary,
		Summarized:  a.Summarized,
		ContentHash: database.ContentHash(a.CleanText),
		Characters:  utf8.RuneCountInString(a.CleanText),
	}
	if a.Location != nil {
		record.PolicyURL = a.Location.URL
		record.LocationSource = string(a.Location.Source)
	}
	if a.Crawl != nil {
		record.PagesVisited = a.Crawl.PagesVisited
	}

	if err := s.store.Put(ctx, a.CacheKey, record); err != nil {
		s.logger.Error("failed to store policy", "key", a.CacheKey, "error", err)
		return nil
	}
	s.logger.Debug("policy stored", "key", a.CacheKey)
	return nil
}

func orDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// Dependencies are the long-lived collaborators shared by every pipeline.
type Dependencies struct {
	// Renderer renders pages for the locator and the crawler.
	Renderer render.Renderer

	// Search is the locator's fallback. Nil disables it.
	Search locator.SearchFallback

	// Summarizer produces summaries. Nil means summarize.Passthrough.
	Summarizer summarize.Summarizer

	// Store is the policy cache. Nil disables cache reads and writes.
	Store Store

	Logger *slog.Logger
}

// defaultPipelineConfig holds settings for DefaultPipeline.
type defaultPipelineConfig struct {
	minCharacters int
	pipelineOpts  []Option
}

// DefaultPipelineOption configures DefaultPipeline.
type DefaultPipelineOption func(*defaultPipelineConfig)

// WithPipelineMinCharacters treats cleaned text shorter than n as empty,
// so nothing is summarized or stored for it.
func WithPipelineMinCharacters(n int) DefaultPipelineOption {
	return func(c *defaultPipelineConfig) {
		c.minCharacters = n
	}
}

// WithPipelineOptions passes options to the Pipeline itself.
func WithPipelineOptions(opts ...Option) DefaultPipelineOption {
	return func(c *defaultPipelineConfig) {
		c.pipelineOpts = append(c.pipelineOpts, opts...)
	}
}

// DefaultPipeline creates the full analysis pipeline for siteURL:
// cache lookup, locate, crawl, clean, summarize and persist.
//
// The cache lookup is left out when cfg.NoCache is set or there is no
// store; persist is left out when cfg.NoSave is set or there is no store.
// Crawl settings come from cfg.SiteSettings(siteURL), so per-site entries
// in the config file apply.
func DefaultPipeline(cfg *config.Config, deps Dependencies, siteURL string, opts ...DefaultPipelineOption) *Pipeline {
	pc := &defaultPipelineConfig{}
	for _, opt := range opts {
		opt(pc)
	}

	logger := orDefault(deps.Logger)
	settings := cfg.SiteSettings(siteURL)

	locatorOpts := []locator.Option{
		locator.WithTimeouts(cfg.FastTimeout, cfg.SlowTimeout),
		locator.WithMinContentLength(settings.MinContentLength),
		locator.WithExcludedTokens(settings.ExcludeTokens),
		locator.WithLogger(logger),
	}
	if deps.Search != nil {
		locatorOpts = append(locatorOpts, locator.WithSearch(deps.Search))
	}

	policyCrawler := crawler.New(deps.Renderer,
		crawler.WithMaxPages(settings.MaxPages),
		crawler.WithMinContentLength(settings.MinContentLength),
		crawler.WithTimeouts(cfg.FastTimeout, cfg.SlowTimeout),
		crawler.WithContentDedup(settings.Dedup()),
		crawler.WithClassifier(relevance.New(relevance.WithExcludedTokens(settings.ExcludeTokens))),
		crawler.WithIgnorePatterns(settings.IgnorePatterns),
		crawler.WithDelay(cfg.CrawlDelay),
		crawler.WithLogger(logger),
	)

	summarizer := deps.Summarizer
	if summarizer == nil {
		summarizer = summarize.Passthrough{}
	}

	p := New(append([]Option{WithLogger(logger)}, pc.pipelineOpts...)...)
	if deps.Store != nil && !cfg.NoCache {
		p.AddStep(NewCacheLookupStep(deps.Store, logger))
	}
	p.AddSteps(
		NewLocateStep(locator.New(deps.Renderer, locatorOpts...), logger),
		NewCrawlStep(policyCrawler, logger),
		NewCleanStep(pc.minCharacters, logger),
		NewSummarizeStep(summarizer, logger),
	)
	if deps.Store != nil && !cfg.NoSave {
		p.AddStep(NewPersistStep(deps.Store, logger))
	}
	return p
}

// DefaultFactory returns a Factory that builds DefaultPipeline per site.
func DefaultFactory(cfg *config.Config, deps Dependencies, opts ...DefaultPipelineOption) Factory {
	return func(siteURL string) *Pipeline {
		return DefaultPipeline(cfg, deps, siteURL, opts...)
	}
}
