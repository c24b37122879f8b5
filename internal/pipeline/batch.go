package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nao1215/sitecrawler/internal/config"
	"github.com/nao1215/sitecrawler/internal/crawler"
	"github.com/nao1215/sitecrawler/internal/model"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of seeds crawled at once when no
// concurrency is configured.
const DefaultConcurrency = 2

// Result is the outcome of crawling one seed.
type Result struct {
	// Seed is the start URL as given.
	Seed string

	// SiteMap is the crawl result. It is partial when the crawl was stopped
	// and nil when the crawler could not be created.
	SiteMap *model.SiteMap

	// Err is the crawl error, if any.
	Err error

	// PipelineErr is the error returned by the post-crawl pipeline.
	PipelineErr error
}

// CrawlFunc crawls one site with a configuration scoped to that seed.
type CrawlFunc func(ctx context.Context, cfg *config.Config) (*model.SiteMap, error)

// BatchProcessor crawls multiple seeds concurrently and runs a pipeline for
// each resulting site map.
type BatchProcessor struct {
	// cfg is the base configuration; site settings are applied per seed.
	cfg *config.Config

	// pipelineFactory creates a new pipeline for each site map.
	pipelineFactory func() *Pipeline

	// crawl runs one crawl.
	crawl CrawlFunc

	// crawlerOpts are passed to every crawler created by the default CrawlFunc.
	crawlerOpts []crawler.Option

	// concurrency is the maximum number of concurrent crawls.
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

// WithConcurrency sets the maximum number of concurrent crawls.
// Non-positive values are ignored.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithCrawlerOptions adds options to every crawler, such as a page sink.
func WithCrawlerOptions(opts ...crawler.Option) BatchOption {
	return func(b *BatchProcessor) {
		b.crawlerOpts = append(b.crawlerOpts, opts...)
	}
}

// WithCrawlFunc replaces the function that crawls one seed.
func WithCrawlFunc(fn CrawlFunc) BatchOption {
	return func(b *BatchProcessor) {
		b.crawl = fn
	}
}

// NewBatchProcessor creates a new BatchProcessor for the seeds of cfg.
// A nil pipelineFactory skips post-crawl processing.
func NewBatchProcessor(cfg *config.Config, pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		cfg:             cfg,
		pipelineFactory: pipelineFactory,
		concurrency:     DefaultConcurrency,
	}
	if cfg != nil && cfg.Parallel > 0 {
		bp.concurrency = cfg.Parallel
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	if bp.crawl == nil {
		bp.crawl = bp.runCrawler
	}
	return bp
}

// runCrawler is the default CrawlFunc.
func (bp *BatchProcessor) runCrawler(ctx context.Context, cfg *config.Config) (*model.SiteMap, error) {
	opts := append([]crawler.Option{crawler.WithLogger(bp.logger)}, bp.crawlerOpts...)
	c, err := crawler.New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return c.Run(ctx)
}

// ProcessBatch crawls every seed and returns one Result per seed in input
// order. Per-seed failures are recorded on the Result. The returned error is
// the cancellation cause when ctx ends before all seeds have started.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, seeds []string) ([]*Result, error) {
	results := make([]*Result, len(seeds))
	err := bp.ProcessBatchWithCallback(ctx, seeds, func(r *Result, i int) {
		results[i] = r
	})
	return results, err
}

// ProcessBatchWithCallback crawls every seed and calls callback as each
// one completes. The callback is called from the worker goroutine and must
// be safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	seeds []string,
	callback func(r *Result, index int),
) error {
	bp.logger.Info("starting batch",
		"seeds", len(seeds),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	var g errgroup.Group
	g.SetLimit(bp.concurrency)

	for i, seed := range seeds {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				callback(&Result{Seed: seed, Err: err}, i)
				return err
			}
			callback(bp.process(ctx, seed, i, len(seeds)), i)
			return nil
		})
	}

	err := g.Wait()
	bp.logger.Info("batch complete",
		"seeds", len(seeds),
		"elapsed", time.Since(startTime).Round(time.Millisecond),
	)
	if err != nil {
		return context.Cause(ctx)
	}
	return nil
}

// process crawls one seed and runs the pipeline on its site map. A stopped
// crawl still runs the pipeline so partial results are reported and saved.
func (bp *BatchProcessor) process(ctx context.Context, seed string, index, total int) *Result {
	bp.logger.Info("crawling site",
		"seed", seed,
		"index", index+1,
		"total", total,
	)

	res := &Result{Seed: seed}
	res.SiteMap, res.Err = bp.crawl(ctx, bp.cfg.ForSeed(seed))
	if res.Err != nil {
		bp.logger.Warn("crawl did not complete", "seed", seed, "error", res.Err)
	}
	if res.SiteMap == nil || bp.pipelineFactory == nil {
		return res
	}

	stepCtx := ctx
	if errors.Is(res.Err, crawler.ErrStopped) {
		stepCtx = context.WithoutCancel(ctx)
	}
	res.PipelineErr = bp.pipelineFactory().Execute(stepCtx, res.SiteMap)
	return res
}
