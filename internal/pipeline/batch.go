package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tldrprivacy/policyscout/internal/model"
)

// DefaultConcurrency is the number of sites analyzed at once when no
// WithConcurrency option is given.
const DefaultConcurrency = 4

// BatchProcessor analyzes many sites concurrently.
//
// Design decision: We use a separate BatchProcessor rather than adding batch
// functionality to Pipeline because:
// 1. It keeps the Pipeline focused on one site
// 2. Each site gets a fresh pipeline, and so a fresh crawl session
type BatchProcessor struct {
	// factory creates the pipeline for each site.
	factory Factory

	// concurrency is the maximum number of concurrent analyses.
	concurrency int

	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent analyses.
// Non-positive values keep the default.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(factory Factory, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		factory:     factory,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch analyzes sites concurrently and returns the analyses in the
// order of sites. A failed site does not stop the others; its error is in
// its analysis. The returned error is non-nil only when ctx was cancelled,
// in which case sites that never started have a nil entry.
//
// Design decision: We use errgroup.SetLimit rather than a worker pool
// because it's simpler and errgroup handles the concurrency correctly.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, sites []string) ([]*model.Analysis, error) {
	results := make([]*model.Analysis, len(sites))
	err := bp.ProcessBatchWithCallback(ctx, sites, func(analysis *model.Analysis, index int) {
		// Each index is written by exactly one goroutine.
		results[index] = analysis
	})
	return results, err
}

// ProcessBatchWithCallback analyzes sites and calls callback for each
// finished analysis with the site's index in sites. The callback is called
// from worker goroutines and must be safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	sites []string,
	callback func(analysis *model.Analysis, index int),
) error {
	bp.logger.Info("starting batch",
		"total_sites", len(sites),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, site := range sites {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			bp.logger.Info("analyzing site",
				"site", site,
				"index", i+1,
				"total", len(sites),
			)

			analysis, err := Analyze(ctx, bp.factory, site)
			if err != nil {
				// Recorded in the analysis; other sites keep going.
				bp.logger.Warn("analysis failed", "site", site, "error", err)
			}
			callback(analysis, i)
			return nil
		})
	}

	err := g.Wait()
	bp.logger.Info("batch complete",
		"total_sites", len(sites),
		"elapsed", time.Since(startTime),
	)
	return err
}
