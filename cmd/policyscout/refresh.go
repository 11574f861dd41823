package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tldrprivacy/policyscout/internal/config"
	"github.com/tldrprivacy/policyscout/internal/model"
	"github.com/tldrprivacy/policyscout/internal/pipeline"
)

// refreshMinCharacters is the cleaned-text length below which a refreshed
// policy is not stored. Shorter text is usually a cookie wall or an error
// page rather than a policy.
const refreshMinCharacters = 200

// NewRefreshCmd creates the refresh command.
func NewRefreshCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refresh [site-url]...",
		Short: "Re-analyze a list of sites and update the cache",
		Long: `Refresh re-analyzes sites and overwrites their cached summaries.

Sites are taken from the arguments, or from the topSites list of the
configuration file when no argument is given. The cache is never read.
Policies whose cleaned text is shorter than 200 characters are not stored.

Examples:
  # Refresh the topSites list from .policyscout
  policyscout refresh

  # Refresh two sites, eight at a time
  policyscout refresh -b 8 https://example.com https://example.org`,
		Args: cobra.ArbitraryArgs,
		RunE: runRefreshCmd,
	}

	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of concurrent analyses")
	addCrawlFlags(cmd)
	addReportFlags(cmd)

	return cmd
}

// runRefreshCmd executes the refresh command.
func runRefreshCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	cfg.BatchSize, err = cmd.Flags().GetInt("batch")
	if err != nil {
		return err
	}
	cfg.NoCache = true

	if len(cfg.Targets) == 0 && cfg.SiteConfigs != nil {
		cfg.Targets = cfg.SiteConfigs.TopSites
	}
	if len(cfg.Targets) == 0 {
		return fmt.Errorf("%w (or add topSites to the configuration file)", config.ErrNoTarget)
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

	factory := pipeline.DefaultFactory(cfg, svc.deps,
		pipeline.WithPipelineMinCharacters(refreshMinCharacters))

	// Sites finished before a cancellation are still reported.
	analyses, batchErr := refreshSites(ctx, factory, cfg, logger)

	if _, err := newReportWriter(cfg, out).WriteBatch(analyses); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if batchErr != nil {
		return batchErr
	}

	return failedAnalyses(analyses)
}

// refreshSites analyzes cfg.Targets concurrently and reports progress on
// stderr. Results keep the order of cfg.Targets.
func refreshSites(ctx context.Context, factory pipeline.Factory, cfg *config.Config, logger *slog.Logger) ([]*model.Analysis, error) {
	fmt.Fprintf(os.Stderr, "Refreshing %d sites (concurrency: %d)...\n", len(cfg.Targets), cfg.BatchSize)
	startTime := time.Now()

	bp := pipeline.NewBatchProcessor(factory,
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	analyses := make([]*model.Analysis, len(cfg.Targets))
	var (
		mu   sync.Mutex
		done int
	)
	err := bp.ProcessBatchWithCallback(ctx, cfg.Targets, func(a *model.Analysis, index int) {
		mu.Lock()
		defer mu.Unlock()

		done++
		analyses[index] = a
		fmt.Fprintf(os.Stderr, "[%d/%d] %-10s %s\n", done, len(cfg.Targets), a.Status, a.SiteURL)
	})

	fmt.Fprintf(os.Stderr, "Refresh completed in %s\n", time.Since(startTime).Round(time.Millisecond))
	return analyses, err
}
