package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/tldrprivacy/policyscout/internal/config"
	"github.com/tldrprivacy/policyscout/internal/database"
	"github.com/tldrprivacy/policyscout/internal/model"
	"github.com/tldrprivacy/policyscout/internal/pipeline"
	"github.com/tldrprivacy/policyscout/internal/report"
	"github.com/tldrprivacy/policyscout/internal/summarize"
)

// attachRoot mounts sub under a root carrying the global flags and parses
// args, the way cobra does before calling RunE.
func attachRoot(t *testing.T, sub *cobra.Command, args ...string) *cobra.Command {
	t.Helper()

	root := &cobra.Command{Use: "policyscout"}
	addPersistentFlags(root)
	root.AddCommand(sub)

	if err := sub.ParseFlags(args); err != nil {
		t.Fatalf("failed to parse flags %v: %v", args, err)
	}
	return sub
}

// writeConfig writes a config file and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".policyscout")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildConfig(t *testing.T) {
	t.Run("reads flags and config file", func(t *testing.T) {
		t.Setenv(config.EnvBraveAPIKey, "")
		t.Setenv(config.EnvGeminiAPIKey, "")

		path := writeConfig(t, `
defaults:
  maxPages: 5
sites:
  Example.com:
    contentDedup: true
topSites:
  - "https://example.com"
`)
		cmd := attachRoot(t, NewFindCmd(),
			"--config", path,
			"--max-pages", "7",
			"--renderer", "static",
			"--exclude-token", "privacy_mutation_token",
			"--json",
			"-v",
		)

		cfg, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.MaxPages != 7 {
			t.Errorf("expected max pages 7, got %d", cfg.MaxPages)
		}
		if cfg.Renderer != config.RendererStatic {
			t.Errorf("expected static renderer, got %q", cfg.Renderer)
		}
		if len(cfg.ExcludeTokens) != 1 || cfg.ExcludeTokens[0] != "privacy_mutation_token" {
			t.Errorf("unexpected exclude tokens %v", cfg.ExcludeTokens)
		}
		if !cfg.JSONReport {
			t.Error("expected JSON report")
		}
		if !cfg.Verbose {
			t.Error("expected verbose")
		}
		if cfg.ConfigFilePath != path {
			t.Errorf("expected config path %q, got %q", path, cfg.ConfigFilePath)
		}
		if len(cfg.SiteConfigs.TopSites) != 1 {
			t.Errorf("expected one top site, got %v", cfg.SiteConfigs.TopSites)
		}

		// File defaults override flags; the host entry adds dedup.
		site := cfg.SiteSettings("https://www.example.com/")
		if site.MaxPages != 5 {
			t.Errorf("expected site max pages 5, got %d", site.MaxPages)
		}
		if !site.Dedup() {
			t.Error("expected dedup from host entry")
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected valid config, got %v", err)
		}
	})

	t.Run("explicit missing config file is an error", func(t *testing.T) {
		cmd := attachRoot(t, NewFindCmd(), "--config", filepath.Join(t.TempDir(), "missing.yaml"))

		_, err := buildConfig(cmd, nil)
		if !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("secrets come from the environment", func(t *testing.T) {
		t.Setenv(config.EnvBraveAPIKey, "brave-key")
		t.Setenv(config.EnvGeminiAPIKey, "gemini-key")
		t.Setenv(config.EnvMySQLDSN, "")

		cmd := attachRoot(t, NewServeCmd(), "--config", writeConfig(t, "sites: {}\n"))
		cfg, err := buildConfig(cmd, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.BraveAPIKey != "brave-key" || cfg.GeminiAPIKey != "gemini-key" {
			t.Errorf("expected keys from environment, got %q %q", cfg.BraveAPIKey, cfg.GeminiAPIKey)
		}
	})

	t.Run("mysql dsn flag wins over environment", func(t *testing.T) {
		t.Setenv(config.EnvMySQLDSN, "env:pw@tcp(env:3306)/db")

		cmd := attachRoot(t, NewHistoryCmd(),
			"--config", writeConfig(t, "sites: {}\n"),
			"--db-driver", "mysql",
			"--mysql-dsn", "flag:pw@tcp(flag:3306)/db",
		)
		cfg, err := buildConfig(cmd, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.MySQLDSN != "flag:pw@tcp(flag:3306)/db" {
			t.Errorf("expected flag DSN, got %q", cfg.MySQLDSN)
		}
		if cfg.DBDriver != config.DriverMySQL {
			t.Errorf("expected mysql driver, got %q", cfg.DBDriver)
		}
	})

	t.Run("conflicting report formats fail validation", func(t *testing.T) {
		cmd := attachRoot(t, NewFindCmd(), "--config", writeConfig(t, "sites: {}\n"), "-j", "-m")
		cfg, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := cfg.Validate(); !errors.Is(err, config.ErrConflictingReportFormats) {
			t.Errorf("expected ErrConflictingReportFormats, got %v", err)
		}
	})
}

func TestRunFindCmdRejectsBadInput(t *testing.T) {
	t.Run("no target", func(t *testing.T) {
		cmd := attachRoot(t, NewFindCmd(), "--config", writeConfig(t, "sites: {}\n"))
		if err := runFindCmd(cmd, nil); !errors.Is(err, config.ErrNoTarget) {
			t.Errorf("expected ErrNoTarget, got %v", err)
		}
	})

	t.Run("url without scheme", func(t *testing.T) {
		cmd := attachRoot(t, NewFindCmd(), "--config", writeConfig(t, "sites: {}\n"))
		if err := runFindCmd(cmd, []string{"example.com"}); !errors.Is(err, config.ErrInvalidURL) {
			t.Errorf("expected ErrInvalidURL, got %v", err)
		}
	})
}

func TestRunRefreshCmdNeedsSites(t *testing.T) {
	cmd := attachRoot(t, NewRefreshCmd(), "--config", writeConfig(t, "sites: {}\n"))
	if err := runRefreshCmd(cmd, nil); !errors.Is(err, config.ErrNoTarget) {
		t.Errorf("expected ErrNoTarget, got %v", err)
	}
}

// statusStep ends an analysis with a fixed status.
type statusStep struct {
	status model.Status
	err    error
}

func (s statusStep) Name() string { return "fixed" }

func (s statusStep) Do(_ context.Context, a *model.Analysis) error {
	if s.err != nil {
		return s.err
	}
	a.Status = s.status
	return nil
}

// fixedFactory returns pipelines whose outcome is looked up by site.
func fixedFactory(steps map[string]statusStep) pipeline.Factory {
	return func(siteURL string) *pipeline.Pipeline {
		p := pipeline.New(pipeline.WithLogger(discardLogger()))
		p.AddStep(steps[siteURL])
		return p
	}
}

func TestFindPolicies(t *testing.T) {
	t.Parallel()

	factory := fixedFactory(map[string]statusStep{
		"https://a.example": {status: model.StatusCompleted},
		"https://b.example": {err: errors.New("render failed")},
		"https://c.example": {status: model.StatusNotFound},
	})

	t.Run("failure does not stop other sites", func(t *testing.T) {
		t.Parallel()

		sites := []string{"https://a.example", "https://b.example", "https://c.example"}
		analyses, err := findPolicies(context.Background(), factory, sites, discardLogger())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(analyses) != 3 {
			t.Fatalf("expected 3 analyses, got %d", len(analyses))
		}

		want := []model.Status{model.StatusCompleted, model.StatusFailed, model.StatusNotFound}
		for i, a := range analyses {
			if a.Status != want[i] {
				t.Errorf("analysis %d: expected %s, got %s", i, want[i], a.Status)
			}
		}

		if err := failedAnalyses(analyses); !errors.Is(err, errAnalysesFailed) {
			t.Errorf("expected errAnalysesFailed, got %v", err)
		}
	})

	t.Run("not found is not a failure", func(t *testing.T) {
		t.Parallel()

		analyses, err := findPolicies(context.Background(), factory, []string{"https://c.example"}, discardLogger())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := failedAnalyses(analyses); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("cancellation stops the loop", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		analyses, err := findPolicies(ctx, factory, []string{"https://a.example"}, discardLogger())
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if len(analyses) != 0 {
			t.Errorf("expected no analyses, got %d", len(analyses))
		}
	})
}

func TestRefreshSitesKeepsOrder(t *testing.T) {
	t.Parallel()

	sites := []string{"https://a.example", "https://b.example", "https://c.example"}
	factory := fixedFactory(map[string]statusStep{
		"https://a.example": {status: model.StatusCompleted},
		"https://b.example": {status: model.StatusEmpty},
		"https://c.example": {status: model.StatusNotFound},
	})

	cfg := config.NewConfig()
	cfg.Targets = sites
	cfg.BatchSize = 2

	analyses, err := refreshSites(context.Background(), factory, cfg, discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, a := range analyses {
		if a == nil || a.SiteURL != sites[i] {
			t.Fatalf("analysis %d does not match site %s", i, sites[i])
		}
	}
	if analyses[1].Status != model.StatusEmpty {
		t.Errorf("expected empty, got %s", analyses[1].Status)
	}
}

func TestNewReportWriter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		json     bool
		markdown bool
		check    func(report.Writer) bool
	}{
		{"simple by default", false, false, func(w report.Writer) bool { _, ok := w.(*report.SimpleWriter); return ok }},
		{"json", true, false, func(w report.Writer) bool { _, ok := w.(*report.JSONWriter); return ok }},
		{"markdown", false, true, func(w report.Writer) bool { _, ok := w.(*report.MarkdownWriter); return ok }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.NewConfig()
			cfg.JSONReport = tt.json
			cfg.MarkdownReport = tt.markdown
			if !tt.check(newReportWriter(cfg, io.Discard)) {
				t.Error("unexpected writer type")
			}
		})
	}
}

func TestOpenOutput(t *testing.T) {
	t.Parallel()

	t.Run("stdout when no file", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		cmd := &cobra.Command{}
		cmd.SetOut(&buf)

		out, closeOut, err := openOutput(cmd, config.NewConfig())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer closeOut()

		if _, err := io.WriteString(out, "hello"); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		if buf.String() != "hello" {
			t.Errorf("expected command output to receive text, got %q", buf.String())
		}
	})

	t.Run("file in nested directory", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.ReportFile = filepath.Join(t.TempDir(), "reports", "out.json")

		out, closeOut, err := openOutput(&cobra.Command{}, cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := io.WriteString(out, "{}"); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		closeOut()

		info, err := os.Stat(cfg.ReportFile)
		if err != nil {
			t.Fatalf("expected report file: %v", err)
		}
		if runtime.GOOS != "windows" && info.Mode().Perm() != 0600 {
			t.Errorf("expected permissions 0600, got %o", info.Mode().Perm())
		}
	})
}

func TestNewServices(t *testing.T) {
	t.Parallel()

	t.Run("static renderer without keys or store", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.Renderer = config.RendererStatic
		cfg.NoCache = true
		cfg.NoSave = true

		svc, err := newServices(context.Background(), cfg, discardLogger())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer svc.Close()

		if svc.deps.Renderer == nil {
			t.Error("expected a renderer")
		}
		if svc.deps.Search != nil {
			t.Error("expected no search fallback without a key")
		}
		if svc.deps.Store != nil || svc.store != nil {
			t.Error("expected no store")
		}
		if _, ok := svc.deps.Summarizer.(summarize.Passthrough); !ok {
			t.Errorf("expected passthrough summarizer, got %T", svc.deps.Summarizer)
		}
	})

	t.Run("sqlite store and configured collaborators", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.Renderer = config.RendererStatic
		cfg.DBDir = t.TempDir()
		cfg.BraveAPIKey = "brave-key"
		cfg.GeminiAPIKey = "gemini-key"

		svc, err := newServices(context.Background(), cfg, discardLogger())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer svc.Close()

		if svc.store == nil || svc.deps.Store == nil {
			t.Fatal("expected a store")
		}
		if err := svc.store.Ping(context.Background()); err != nil {
			t.Errorf("ping failed: %v", err)
		}
		if svc.deps.Search == nil {
			t.Error("expected search fallback")
		}
		if _, ok := svc.deps.Summarizer.(*summarize.Gemini); !ok {
			t.Errorf("expected Gemini summarizer, got %T", svc.deps.Summarizer)
		}
	})

	t.Run("mysql without dsn disables the cache", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.Renderer = config.RendererStatic
		cfg.DBDriver = config.DriverMySQL
		cfg.NoSave = true

		svc, err := newServices(context.Background(), cfg, discardLogger())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer svc.Close()

		if svc.deps.Store != nil {
			t.Error("expected no store")
		}
	})
}

func TestRunHistoryCmd(t *testing.T) {
	dbDir := t.TempDir()
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	key := database.Key("https://example.com")
	if err := db.Put(context.Background(), key, &database.PolicyRecord{
		BaseURL:        "https://example.com",
		PolicyURL:      "https://example.com/privacy",
		LocationSource: string(model.SourcePage),
		Summary:        "We collect little.",
		Summarized:     true,
		PagesVisited:   2,
	}); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	configPath := writeConfig(t, "sites: {}\n")
	run := func(t *testing.T, args ...string) string {
		t.Helper()

		var buf bytes.Buffer
		cmd := NewHistoryCmd()
		cmd.SetOut(&buf)
		cmd = attachRoot(t, cmd, append([]string{"--config", configPath, "--db-dir", dbDir}, args...)...)
		if err := runHistoryCmd(cmd, nil); err != nil {
			t.Fatalf("history failed: %v", err)
		}
		return buf.String()
	}

	t.Run("lists as json", func(t *testing.T) {
		out := run(t, "--json")

		var doc report.HistoryDocument
		if err := json.Unmarshal([]byte(out), &doc); err != nil {
			t.Fatalf("invalid JSON %q: %v", out, err)
		}
		if len(doc.Policies) != 1 {
			t.Fatalf("expected 1 policy, got %d", len(doc.Policies))
		}
		if doc.Policies[0].Key != key {
			t.Errorf("expected key %q, got %q", key, doc.Policies[0].Key)
		}
	})

	t.Run("deletes by site url", func(t *testing.T) {
		out := run(t, "--delete", "https://example.com")
		if !strings.Contains(out, "Deleted cached policy") {
			t.Errorf("unexpected output %q", out)
		}

		out = run(t, "--delete", "https://example.com")
		if !strings.Contains(out, "No cached policy") {
			t.Errorf("unexpected output %q", out)
		}

		if out := run(t); !strings.Contains(out, "No cached policies.") {
			t.Errorf("expected empty history, got %q", out)
		}
	})
}
