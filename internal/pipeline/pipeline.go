package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nao1215/sitecrawler/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
type Step interface {
	// Do hands the site map to the step's collaborator.
	// The site map must not be modified.
	Do(ctx context.Context, sm *model.SiteMap) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
//
// Steps run sequentially in the order they were added. By default the first
// failing step ends the pipeline; with WithContinueOnError every step runs and
// the failures are joined.
//
// Design decision: We run steps sequentially rather than concurrently because
// later steps may depend on earlier ones (a report that prints the saved run
// ID needs the persist step to have finished), and the steps are I/O on local
// files and SQLite, which gains little from parallelism.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// continueOnError determines whether to continue executing steps
	// after one fails. If false, the pipeline stops on first error.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to run the remaining steps
// after a failure. The errors of all failed steps are joined.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
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
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in sequence. Cancellation is checked before each
// step; a running step handles ctx itself.
func (p *Pipeline) Execute(ctx context.Context, sm *model.SiteMap) error {
	var errs []error
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", err,
			)
			return errors.Join(append(errs, err)...)
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"site", sm.Domain,
		)

		if err := step.Do(ctx, sm); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"site", sm.Domain,
				"error", err,
			)
			err = fmt.Errorf("%s: %w", step.Name(), err)
			if !p.continueOnError {
				return err
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
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
