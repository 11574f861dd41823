package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "policyscout"

	// DefaultMaxPages bounds how many pages one policy crawl may fetch.
	// Policy documents rarely span more than a handful of pages; ten leaves
	// room for cookie and regional notices without wandering off.
	DefaultMaxPages = 10

	// DefaultMinContentLength is the number of characters below which a
	// fast render is considered incomplete and retried with a settled wait.
	DefaultMinContentLength = 200

	// DefaultFastTimeout bounds a render that waits only for the body.
	DefaultFastTimeout = 15 * time.Second

	// DefaultSlowTimeout bounds a render that waits for the network to settle.
	DefaultSlowTimeout = 30 * time.Second

	// DefaultSearchTimeout bounds one search API call.
	DefaultSearchTimeout = 10 * time.Second

	// DefaultSummaryTimeout bounds one summarizer call.
	DefaultSummaryTimeout = 60 * time.Second

	// DefaultSearchCount is the number of search results requested.
	DefaultSearchCount = 1

	// DefaultBatchSize is the number of sites analyzed concurrently by refresh.
	// Each analysis drives a browser tab, so this stays small.
	DefaultBatchSize = 4

	// DefaultCrawlDelay is the minimum interval between renders.
	// Zero matches the behavior of a single interactive lookup.
	DefaultCrawlDelay = 0

	// DefaultListenAddr is where the HTTP server listens.
	DefaultListenAddr = ":3000"

	// DefaultMaxBodySize limits response bodies read by the static renderer.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultGeminiModel is the model used for summaries.
	DefaultGeminiModel = "gemini-1.5-flash"
)

// Renderer names accepted by Config.Renderer.
const (
	RendererChrome = "chrome"
	RendererStatic = "static"
)

// Database drivers accepted by Config.DBDriver.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Environment variables read by ApplyEnv.
const (
	EnvBraveAPIKey  = "BRAVE_API_KEY"
	EnvGeminiAPIKey = "GEMINI_API_KEY"
	EnvMySQLDSN     = "POLICYSCOUT_MYSQL_DSN"
)

// Config holds all configuration options for policyscout.
// This struct is populated once from CLI flags, the config file and the
// environment, then passed to constructors. No package reads the
// environment on its own.
//
// Design decision: We use a single flat struct instead of nested structs
// for simplicity. The number of options is manageable, and nesting would
// add complexity without significant benefit.
type Config struct {
	// Targets are the site URLs to analyze.
	Targets []string

	// MaxPages is the page budget of one policy crawl.
	MaxPages int

	// MinContentLength triggers the settled-wait retry for short pages.
	MinContentLength int

	// FastTimeout and SlowTimeout bound the two render attempts.
	FastTimeout time.Duration
	SlowTimeout time.Duration

	// CrawlDelay is the minimum interval between renders. Zero disables it.
	CrawlDelay time.Duration

	// ContentDedup drops page text identical to a page already aggregated.
	ContentDedup bool

	// ExcludeTokens are href substrings that disqualify a link, for example
	// "privacy_mutation_token". Empty by default.
	ExcludeTokens []string

	// IgnorePatterns are URL path globs the crawler never follows.
	IgnorePatterns []string

	// Renderer selects "chrome" (headless browser) or "static" (plain HTTP).
	Renderer string

	// ChromePath overrides the Chrome binary location.
	ChromePath string

	// NoSandbox disables the Chrome sandbox, usually needed in containers.
	NoSandbox bool

	// UserAgent overrides the User-Agent sent by both renderers.
	UserAgent string

	// MaxBodySize limits response bodies read by the static renderer.
	MaxBodySize int64

	// BraveAPIKey enables the search fallback. Read from BRAVE_API_KEY.
	BraveAPIKey string

	// SearchTimeout bounds one search call.
	SearchTimeout time.Duration

	// SearchCount is the number of results requested (1-3).
	SearchCount int

	// GeminiAPIKey enables LLM summaries. Read from GEMINI_API_KEY.
	// Without it the cleaned policy text is stored as the summary.
	GeminiAPIKey string

	// GeminiModel is the model name used for summaries.
	GeminiModel string

	// SummaryTimeout bounds one summarizer call.
	SummaryTimeout time.Duration

	// DBDriver selects "sqlite" or "mysql".
	DBDriver string

	// DBDir is the directory holding the SQLite database.
	// Defaults to the XDG data directory (~/.local/share/policyscout on Linux).
	DBDir string

	// MySQLDSN is the MySQL data source name. Read from POLICYSCOUT_MYSQL_DSN.
	MySQLDSN string

	// NoCache skips cache reads; results are still written.
	NoCache bool

	// NoSave disables writing results to the database.
	NoSave bool

	// BatchSize is the number of sites analyzed concurrently.
	BatchSize int

	// ListenAddr is the HTTP server address.
	ListenAddr string

	// Verbose enables detailed log output using slog.LevelDebug.
	Verbose bool

	// LogFile routes logs to a rotating file instead of stderr.
	LogFile string

	// JSONReport and MarkdownReport select the report format.
	// They are mutually exclusive; neither means the simple text report.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile is where the report is written. Empty means stdout.
	ReportFile string

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .policyscout in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// SiteConfigs holds site-specific configurations loaded from the config file.
	SiteConfigs *File
}

// NewConfig creates a new Config with default values.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (e.g., timeouts, budget).
// This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		MaxPages:         DefaultMaxPages,
		MinContentLength: DefaultMinContentLength,
		FastTimeout:      DefaultFastTimeout,
		SlowTimeout:      DefaultSlowTimeout,
		CrawlDelay:       DefaultCrawlDelay,
		Renderer:         RendererChrome,
		MaxBodySize:      DefaultMaxBodySize,
		SearchTimeout:    DefaultSearchTimeout,
		SearchCount:      DefaultSearchCount,
		GeminiModel:      DefaultGeminiModel,
		SummaryTimeout:   DefaultSummaryTimeout,
		DBDriver:         DriverSQLite,
		DBDir:            XDGDataDir(),
		BatchSize:        DefaultBatchSize,
		ListenAddr:       DefaultListenAddr,
	}
}

// ApplyEnv fills secrets from the environment. Values already set, for
// example from flags, are kept.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if c.BraveAPIKey == "" {
		c.BraveAPIKey = getenv(EnvBraveAPIKey)
	}
	if c.GeminiAPIKey == "" {
		c.GeminiAPIKey = getenv(EnvGeminiAPIKey)
	}
	if c.MySQLDSN == "" {
		c.MySQLDSN = getenv(EnvMySQLDSN)
	}
}

// XDGDataDir returns the XDG data directory for policyscout.
// On Linux: ~/.local/share/policyscout
// On macOS: ~/Library/Application Support/policyscout
// On Windows: %LOCALAPPDATA%\policyscout
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGStateDir returns the XDG state directory, where log files go by default.
// On Linux: ~/.local/state/policyscout
func XDGStateDir() string {
	return filepath.Join(xdg.StateHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns a specific error describing what is invalid.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront.
// We return the first error found because fixing one error often makes
// others irrelevant.
func (c *Config) Validate() error {
	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}

	if c.MinContentLength < 0 {
		return ErrInvalidMinContentLength
	}

	if c.FastTimeout <= 0 || c.SlowTimeout <= 0 || c.SearchTimeout <= 0 || c.SummaryTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	switch c.Renderer {
	case RendererChrome, RendererStatic:
	default:
		return ErrUnknownRenderer
	}

	switch c.DBDriver {
	case DriverSQLite:
	case DriverMySQL:
		if c.MySQLDSN == "" && !c.NoSave {
			return ErrMissingMySQLDSN
		}
	default:
		return ErrUnknownDriver
	}

	for _, target := range c.Targets {
		if err := ValidateTarget(target); err != nil {
			return err
		}
	}

	return nil
}

// ValidateTarget checks that target looks like an HTTP(S) URL.
// Only the prefix is checked; anything else is left to the locator.
func ValidateTarget(target string) error {
	if !strings.HasPrefix(target, "http") {
		return ErrInvalidURL
	}
	return nil
}

// SiteSettings returns the crawl settings for siteURL: the global values,
// overridden by the config file defaults, overridden by the entry for the
// site's host.
func (c *Config) SiteSettings(siteURL string) SiteConfig {
	result := SiteConfig{
		MaxPages:         c.MaxPages,
		MinContentLength: c.MinContentLength,
		ContentDedup:     boolPtr(c.ContentDedup),
		ExcludeTokens:    c.ExcludeTokens,
		IgnorePatterns:   c.IgnorePatterns,
	}
	if c.SiteConfigs == nil {
		return result
	}
	return result.merge(c.SiteConfigs.GetSiteConfig(HostKey(siteURL)))
}

func boolPtr(b bool) *bool {
	return &b
}
