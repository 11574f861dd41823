package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tldrprivacy/policyscout/internal/config"
	"github.com/tldrprivacy/policyscout/internal/model"
	"github.com/tldrprivacy/policyscout/internal/pipeline"
)

// NewFindCmd creates the find command.
func NewFindCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "find [site-url]...",
		Short: "Find and summarize the privacy policy of one or more sites",
		Long: `Find locates the privacy policy of each site, crawls the policy and its
related pages within the page budget, and prints a summary.

A cached summary is returned without crawling unless --no-cache is given.
A site without a discoverable policy is reported, not treated as an error.

Examples:
  # Summarize one site
  policyscout find https://example.com

  # Skip the cache and allow a larger crawl
  policyscout find --no-cache -p 20 https://example.com

  # Use plain HTTP fetching instead of headless Chrome
  policyscout find --renderer static https://example.com

  # Write a Markdown report
  policyscout find -m -o report.md https://example.com https://example.org`,
		Args: cobra.ArbitraryArgs,
		RunE: runFindCmd,
	}

	addCrawlFlags(cmd)
	cmd.Flags().Bool("no-cache", false,
		"Ignore cached summaries (results are still saved)")
	addReportFlags(cmd)

	return cmd
}

// runFindCmd executes the find command.
func runFindCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	cfg.NoCache, err = cmd.Flags().GetBool("no-cache")
	if err != nil {
		return err
	}

	if len(cfg.Targets) == 0 {
		return config.ErrNoTarget
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, closeLog, err := setupLogger(cfg, false)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := newServices(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	out, closeOut, err := openOutput(cmd, cfg)
	if err != nil {
		return err
	}
	defer closeOut()

	analyses, err := findPolicies(ctx, pipeline.DefaultFactory(cfg, svc.deps), cfg.Targets, logger)
	if err != nil {
		return err
	}

	w := newReportWriter(cfg, out)
	if len(analyses) == 1 {
		_, err = w.Write(analyses[0])
	} else {
		_, err = w.WriteBatch(analyses)
	}
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return failedAnalyses(analyses)
}

// findPolicies analyzes sites one after another. A failed site does not
// stop the others; only cancellation does.
func findPolicies(ctx context.Context, factory pipeline.Factory, sites []string, logger *slog.Logger) ([]*model.Analysis, error) {
	analyses := make([]*model.Analysis, 0, len(sites))
	for _, site := range sites {
		select {
		case <-ctx.Done():
			return analyses, ctx.Err()
		default:
		}

		analysis, err := pipeline.Analyze(ctx, factory, site)
		if err != nil {
			logger.Error("analysis failed", "site", site, "error", err)
		}
		analyses = append(analyses, analysis)
	}
	return analyses, nil
}

// failedAnalyses returns errAnalysesFailed when any analysis failed.
// Not found and empty are normal outcomes.
func failedAnalyses(analyses []*model.Analysis) error {
	failed := 0
	for _, a := range analyses {
		if a == nil || a.Status == model.StatusFailed {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errAnalysesFailed, failed, len(analyses))
	}
	return nil
}
