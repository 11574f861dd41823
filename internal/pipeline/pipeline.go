package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/tldrprivacy/policyscout/internal/database"
	"github.com/tldrprivacy/policyscout/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, with each step receiving the analysis
// accumulated by the previous ones.
//
// Design decision: We use an interface rather than function types because:
// 1. It allows steps to carry their collaborators (store, locator, ...)
// 2. It provides a Name() method for logging and debugging
type Step interface {
	// Do executes the step. Expected outcomes such as "no policy" are
	// recorded in the analysis status and return nil; an error means the
	// analysis failed.
	Do(ctx context.Context, analysis *model.Analysis) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline executes steps in order until one of them reaches a terminal
// status or fails.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs the steps in sequence.
//
// Design decision: We check context.Done() before each step rather than
// during, because steps bound their own blocking work with the context.
//
// When every step has run without reaching a terminal status the analysis
// is marked completed. A step error marks it failed and is returned.
func (p *Pipeline) Execute(ctx context.Context, analysis *model.Analysis) error {
	defer func() {
		analysis.CompletedAt = time.Now()
	}()

	for _, step := range p.steps {
		if analysis.Status.Terminal() {
			p.logger.Debug("analysis finished early",
				"site", analysis.SiteURL,
				"status", analysis.Status.String(),
				"skipped", step.Name(),
			)
			return nil
		}

		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"site", analysis.SiteURL,
				"reason", ctx.Err(),
			)
			analysis.TimedOut = true
			analysis.Fail(ctx.Err())
			return ctx.Err()
		default:
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"site", analysis.SiteURL,
		)

		analysis.PerformedSteps = append(analysis.PerformedSteps, step.Name())
		if err := step.Do(ctx, analysis); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"site", analysis.SiteURL,
				"error", err,
			)
			analysis.Fail(err)
			return err
		}
	}

	if !analysis.Status.Terminal() {
		analysis.Status = model.StatusCompleted
	}
	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}

// Factory builds the pipeline for one site. Per-site configuration such as
// the crawl budget is applied here.
type Factory func(siteURL string) *Pipeline

// Analyze runs a fresh pipeline for siteURL and returns the analysis.
// The error is also recorded in the analysis.
func Analyze(ctx context.Context, factory Factory, siteURL string) (*model.Analysis, error) {
	analysis := model.NewAnalysis(siteURL, database.Key(siteURL))
	err := factory(siteURL).Execute(ctx, analysis)
	return analysis, err
}
