package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tldrprivacy/policyscout/internal/config"
	"github.com/tldrprivacy/policyscout/internal/database"
	"github.com/tldrprivacy/policyscout/internal/log"
	"github.com/tldrprivacy/policyscout/internal/pipeline"
	"github.com/tldrprivacy/policyscout/internal/render"
	"github.com/tldrprivacy/policyscout/internal/report"
	"github.com/tldrprivacy/policyscout/internal/search"
	"github.com/tldrprivacy/policyscout/internal/summarize"
)

// addCrawlFlags registers the flags shared by commands that analyze sites.
func addCrawlFlags(cmd *cobra.Command) {
	f := cmd.Flags()

	// Crawl behavior
	f.IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages fetched per policy")
	f.Int("min-content", config.DefaultMinContentLength,
		"Characters below which a page is rendered again with a settled wait")
	f.Duration("fast-timeout", config.DefaultFastTimeout,
		"Timeout of the first render of each page")
	f.Duration("slow-timeout", config.DefaultSlowTimeout,
		"Timeout of the settled retry render")
	f.Duration("delay", config.DefaultCrawlDelay,
		"Minimum interval between page renders")
	f.Bool("dedup", false,
		"Drop page text identical to a page already collected")
	f.StringSlice("exclude-token", nil,
		"Ignore links whose URL contains this token (repeatable)")
	f.StringSlice("ignore", nil,
		"URL path glob never followed, e.g. '*.pdf' (repeatable)")

	// Rendering
	f.String("renderer", config.RendererChrome,
		"Page renderer: chrome or static")
	f.String("chrome-path", "",
		"Chrome executable (default: found on PATH)")
	f.Bool("no-sandbox", false,
		"Disable the Chrome sandbox (needed in most containers)")
	f.String("user-agent", "",
		"User-Agent sent when rendering")

	// Collaborators
	f.Int("search-count", config.DefaultSearchCount,
		"Search results requested from Brave (1-3)")
	f.String("gemini-model", config.DefaultGeminiModel,
		"Gemini model used for summaries")
	f.Bool("no-save", false,
		"Do not write results to the cache")

	addStoreFlags(cmd)
}

// addStoreFlags registers the cache database flags.
func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("db-driver", config.DriverSQLite,
		"Cache database: sqlite or mysql")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the SQLite cache")
	cmd.Flags().String("mysql-dsn", "",
		"MySQL DSN (default: $"+config.EnvMySQLDSN+")")
}

// addReportFlags registers the report format flags.
func addReportFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
}

// buildConfig creates a Config from the command's flags, the config file
// and the environment.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Targets = args
	cfg.Verbose = getVerboseFlag(cmd)

	cfg.LogFile = getPersistentString(cmd, "log-file")
	cfg.ConfigFilePath = getPersistentString(cmd, "config")

	if cmd.Flags().Lookup("max-pages") != nil {
		if err := readCrawlFlags(cmd, cfg); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Lookup("db-driver") != nil {
		if err := readStoreFlags(cmd, cfg); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Lookup("json") != nil {
		if err := readReportFlags(cmd, cfg); err != nil {
			return nil, err
		}
	}

	if err := loadSiteConfigs(cfg); err != nil {
		return nil, err
	}

	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}

// readCrawlFlags copies the flags registered by addCrawlFlags into cfg.
func readCrawlFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	var err error

	if cfg.MaxPages, err = f.GetInt("max-pages"); err != nil {
		return err
	}
	if cfg.MinContentLength, err = f.GetInt("min-content"); err != nil {
		return err
	}
	if cfg.FastTimeout, err = f.GetDuration("fast-timeout"); err != nil {
		return err
	}
	if cfg.SlowTimeout, err = f.GetDuration("slow-timeout"); err != nil {
		return err
	}
	if cfg.CrawlDelay, err = f.GetDuration("delay"); err != nil {
		return err
	}
	if cfg.ContentDedup, err = f.GetBool("dedup"); err != nil {
		return err
	}
	if cfg.ExcludeTokens, err = f.GetStringSlice("exclude-token"); err != nil {
		return err
	}
	if cfg.IgnorePatterns, err = f.GetStringSlice("ignore"); err != nil {
		return err
	}
	if cfg.Renderer, err = f.GetString("renderer"); err != nil {
		return err
	}
	if cfg.ChromePath, err = f.GetString("chrome-path"); err != nil {
		return err
	}
	if cfg.NoSandbox, err = f.GetBool("no-sandbox"); err != nil {
		return err
	}
	if cfg.UserAgent, err = f.GetString("user-agent"); err != nil {
		return err
	}
	if cfg.SearchCount, err = f.GetInt("search-count"); err != nil {
		return err
	}
	if cfg.GeminiModel, err = f.GetString("gemini-model"); err != nil {
		return err
	}
	if cfg.NoSave, err = f.GetBool("no-save"); err != nil {
		return err
	}
	return nil
}

// readStoreFlags copies the flags registered by addStoreFlags into cfg.
func readStoreFlags(cmd *cobra.Command, cfg *config.Config) error {
	var err error
	if cfg.DBDriver, err = cmd.Flags().GetString("db-driver"); err != nil {
		return err
	}
	if cfg.DBDir, err = cmd.Flags().GetString("db-dir"); err != nil {
		return err
	}
	if cfg.MySQLDSN, err = cmd.Flags().GetString("mysql-dsn"); err != nil {
		return err
	}
	return nil
}

// readReportFlags copies the flags registered by addReportFlags into cfg.
func readReportFlags(cmd *cobra.Command, cfg *config.Config) error {
	var err error
	if cfg.JSONReport, err = cmd.Flags().GetBool("json"); err != nil {
		return err
	}
	if cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown"); err != nil {
		return err
	}
	if cfg.ReportFile, err = cmd.Flags().GetString("output"); err != nil {
		return err
	}
	return nil
}

// loadSiteConfigs loads the config file into cfg.SiteConfigs.
// If the user explicitly specified a path, a missing file is an error.
// Otherwise an empty configuration is used.
func loadSiteConfigs(cfg *config.Config) error {
	explicit := cfg.ConfigFilePath != ""
	path := config.FindConfigFile(cfg.ConfigFilePath)

	switch {
	case path != "":
		siteConfigs, err := config.LoadConfigFile(path)
		if err != nil {
			return fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		cfg.SiteConfigs = siteConfigs
	case explicit:
		return fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{Sites: make(map[string]config.SiteConfig)}
	}
	return nil
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// getPersistentString retrieves a string flag from the command or the root.
func getPersistentString(cmd *cobra.Command, name string) string {
	value, err := cmd.Flags().GetString(name)
	if err != nil {
		value, err = cmd.Root().PersistentFlags().GetString(name)
		if err != nil {
			return ""
		}
	}
	return value
}

// setupLogger creates the secure logger. Logs go to stderr, or to a
// rotating file when --log-file is set. The returned function closes the
// file.
func setupLogger(cfg *config.Config, jsonFormat bool) (*slog.Logger, func(), error) {
	var w io.Writer = os.Stderr
	closeFn := func() {}

	if cfg.LogFile != "" {
		rw, err := log.NewRotatingWriter(cfg.LogFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w = rw
		closeFn = func() { _ = rw.Close() } //nolint:errcheck // nothing left to log to
	}

	if jsonFormat {
		return log.NewSecureJSONLogger(w, cfg.Verbose), closeFn, nil
	}
	return log.NewSecureLogger(w, cfg.Verbose), closeFn, nil
}

// services holds the long-lived collaborators of one command run.
type services struct {
	deps    pipeline.Dependencies
	store   *database.PolicyDB
	closers []func()
}

// newServices opens the store and starts the renderer described by cfg.
func newServices(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*services, error) {
	svc := &services{}

	renderer, closeRenderer, err := newRenderer(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	svc.closers = append(svc.closers, closeRenderer)
	svc.deps = pipeline.Dependencies{
		Renderer:   renderer,
		Summarizer: newSummarizer(cfg, logger),
		Logger:     logger,
	}

	if cfg.BraveAPIKey != "" {
		svc.deps.Search = search.NewBraveClient(search.Options{
			APIKey:  cfg.BraveAPIKey,
			Count:   cfg.SearchCount,
			Timeout: cfg.SearchTimeout,
			Logger:  logger,
		})
	} else {
		logger.Debug("search fallback disabled", "reason", config.EnvBraveAPIKey+" not set")
	}

	if !(cfg.NoCache && cfg.NoSave) {
		store, err := openStore(ctx, cfg, logger)
		if err != nil {
			svc.Close()
			return nil, err
		}
		if store != nil {
			svc.store = store
			svc.deps.Store = store
			svc.closers = append(svc.closers, func() { _ = store.Close() }) //nolint:errcheck // shutting down
		}
	}

	return svc, nil
}

// Close releases everything newServices acquired, in reverse order.
func (s *services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// newRenderer creates the configured renderer and its cleanup function.
func newRenderer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (render.Renderer, func(), error) {
	if cfg.Renderer == config.RendererStatic {
		opts := []render.StaticOption{
			render.WithMaxBodySize(cfg.MaxBodySize),
			render.WithStaticLogger(logger),
		}
		if cfg.UserAgent != "" {
			opts = append(opts, render.WithStaticUserAgent(cfg.UserAgent))
		}
		return render.NewStatic(opts...), func() {}, nil
	}

	opts := []render.BrowserOption{
		render.WithNoSandbox(cfg.NoSandbox),
		render.WithBrowserLogger(logger),
	}
	if cfg.ChromePath != "" {
		opts = append(opts, render.WithExecPath(cfg.ChromePath))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, render.WithUserAgent(cfg.UserAgent))
	}
	browser, err := render.NewBrowser(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start browser (try --renderer static): %w", err)
	}
	return browser, browser.Close, nil
}

// newSummarizer returns Gemini when a key is configured, otherwise the
// passthrough summarizer that stores the cleaned policy text.
func newSummarizer(cfg *config.Config, logger *slog.Logger) summarize.Summarizer {
	if cfg.GeminiAPIKey == "" {
		logger.Debug("LLM summaries disabled", "reason", config.EnvGeminiAPIKey+" not set")
		return summarize.Passthrough{}
	}
	return summarize.NewGemini(summarize.GeminiOptions{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		Timeout: cfg.SummaryTimeout,
		Logger:  logger,
	})
}

// openStore opens the cache database selected by cfg. It returns nil
// without error when MySQL is selected but no DSN is configured and
// nothing will be written.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*database.PolicyDB, error) {
	switch cfg.DBDriver {
	case config.DriverMySQL:
		if cfg.MySQLDSN == "" {
			logger.Warn("cache disabled", "reason", config.EnvMySQLDSN+" not set")
			return nil, nil
		}
		db, err := database.OpenMySQL(ctx, cfg.MySQLDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		logger.Debug("database opened", "driver", db.Driver(), "location", db.Location())
		return db, nil
	default:
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		logger.Debug("database opened", "driver", db.Driver(), "location", db.Location())
		return db, nil
	}
}

// openOutput returns the report destination: the --output file, created
// with owner-only permissions, or stdout.
func openOutput(cmd *cobra.Command, cfg *config.Config) (io.Writer, func(), error) {
	if cfg.ReportFile == "" {
		return cmd.OutOrStdout(), func() {}, nil
	}

	dir := filepath.Dir(cfg.ReportFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil //nolint:errcheck // written data already flushed by Write
}

// newReportWriter picks the report format requested by cfg.
func newReportWriter(cfg *config.Config, out io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(out, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(out)
	default:
		return report.NewSimpleWriter(out, report.WithVerbose(cfg.Verbose))
	}
}

var (
	// errAnalysesFailed is returned when at least one analysis failed.
	errAnalysesFailed = errors.New("analyses failed")

	// errNoDatabase is returned when a command needs the cache but none is
	// configured.
	errNoDatabase = errors.New("no database configured: set " + config.EnvMySQLDSN + " or use --db-driver sqlite")
)
