package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nao1215/sitecrawler/internal/aggregator"
	"github.com/nao1215/sitecrawler/internal/config"
	"github.com/nao1215/sitecrawler/internal/extractor"
	"github.com/nao1215/sitecrawler/internal/fetcher"
	"github.com/nao1215/sitecrawler/internal/frontier"
	"github.com/nao1215/sitecrawler/internal/model"
	"github.com/nao1215/sitecrawler/internal/politeness"
	"github.com/nao1215/sitecrawler/internal/transport"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrAlreadyStarted is returned when Run is called more than once.
	ErrAlreadyStarted = errors.New("crawler already started")

	// ErrStopped wraps the cancellation cause of a run that ended early.
	ErrStopped = errors.New("crawl stopped before completion")
)

// maxRenderSessions caps the browser instances of the headless renderer.
const maxRenderSessions = 4

// PageSink receives every fetched page body as it completes.
// Implementations must treat a second store of the same URL as a no-op and
// report whether the page was new.
type PageSink interface {
	StorePage(ctx context.Context, rec *model.PageRecord, body []byte) (bool, error)
}

// Crawler crawls a single site. A Crawler runs once.
type Crawler struct {
	cfg    *config.Config
	seed   model.NormalizedURL
	logger *slog.Logger

	client    *http.Client
	fetcher   fetcher.Fetcher
	extractor *extractor.Extractor
	robots    *politeness.Robots
	frontier  *frontier.Frontier
	agg       *aggregator.Aggregator
	sink      PageSink

	onState func(State)
	hookMu  sync.Mutex
	stateMu sync.Mutex
	state   State

	// delay is the per-worker delay after applying robots Crawl-delay.
	delay time.Duration

	batches atomic.Int64
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		c.logger = logger
	}
}

// WithHTTPClient sets the client used for pages and robots.txt.
// Without it a client is built from the configuration.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Crawler) {
		c.client = client
	}
}

// WithFetcher replaces the fetch engine selected by the configuration.
func WithFetcher(f fetcher.Fetcher) Option {
	return func(c *Crawler) {
		c.fetcher = f
	}
}

// WithExtractor replaces the extractor built from the configuration toggles.
func WithExtractor(e *extractor.Extractor) Option {
	return func(c *Crawler) {
		c.extractor = e
	}
}

// WithSink hands every fetched body to sink.
func WithSink(sink PageSink) Option {
	return func(c *Crawler) {
		c.sink = sink
	}
}

// WithStateHook calls fn on every state transition. fn runs synchronously
// and must not call Run.
func WithStateHook(fn func(State)) Option {
	return func(c *Crawler) {
		c.onState = fn
	}
}

// New returns a Crawler for the first seed of cfg.
// It returns a *model.ConfigurationError when cfg is invalid.
func New(cfg *config.Config, opts ...Option) (*Crawler, error) {
	if cfg == nil {
		return nil, &model.ConfigurationError{Err: config.ErrNoSeed}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	seedURL, err := url.Parse(cfg.Seeds[0])
	if err != nil {
		return nil, &model.ConfigurationError{Field: "seed", Err: config.ErrInvalidSeed}
	}
	seed, err := model.NormalizeURL(seedURL)
	if err != nil {
		return nil, &model.ConfigurationError{Field: "seed", Err: config.ErrInvalidSeed}
	}

	c := &Crawler{
		cfg:   cfg,
		seed:  seed,
		delay: cfg.Delay,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("site", seedURL.Host)

	if c.client == nil {
		c.client, err = transport.NewHTTPClient(transport.Options{
			Timeout:         cfg.Timeout,
			ProxyAddress:    cfg.ProxyAddress,
			Cookie:          cfg.Cookie,
			Headers:         cfg.Headers,
			MaxConnsPerHost: cfg.MaxWorkers,
		})
		if err != nil {
			return nil, &model.ConfigurationError{Field: "proxy", Err: err}
		}
	}
	if c.fetcher == nil {
		c.fetcher = c.newFetcher()
	}
	if c.extractor == nil {
		c.extractor = extractor.New(
			extractor.WithEmails(cfg.ExtractEmails),
			extractor.WithPhones(cfg.ExtractPhones),
			extractor.WithSocialLinks(cfg.ExtractSocialLinks),
		)
	}

	scope := frontier.NewScope(seedURL, cfg.IncludeSubdomains)
	frontierOpts := []frontier.Option{
		frontier.WithMaxPages(cfg.MaxPages),
		frontier.WithPatterns(frontier.NewPatterns(cfg.IgnorePatterns, cfg.FollowPatterns)),
		frontier.WithLogger(c.logger),
	}
	if cfg.RespectRobots {
		c.robots = politeness.NewRobots(c.client, cfg.UserAgent, politeness.WithRobotsLogger(c.logger))
		frontierOpts = append(frontierOpts, frontier.WithRobots(c.robots))
	}
	c.frontier = frontier.New(scope, frontierOpts...)
	c.agg = aggregator.New(seed.String(), scope.Domain(), cfg.RunConfig())
	return c, nil
}

func (c *Crawler) newFetcher() fetcher.Fetcher {
	if c.cfg.UseRenderer {
		return fetcher.NewRenderer(
			fetcher.WithRenderUserAgent(c.cfg.UserAgent),
			fetcher.WithRenderWait(c.cfg.RenderWait),
			fetcher.WithRenderTimeout(c.cfg.Timeout+c.cfg.RenderWait),
			fetcher.WithSessions(min(c.cfg.MaxWorkers, maxRenderSessions)),
			fetcher.WithRenderLogger(c.logger),
		)
	}
	return fetcher.NewHTTP(c.client,
		fetcher.WithUserAgent(c.cfg.UserAgent),
		fetcher.WithFallbackUserAgents(c.cfg.FallbackUserAgents),
		fetcher.WithMaxBodySize(c.cfg.MaxBodySize),
		fetcher.WithTimeout(c.cfg.Timeout),
		fetcher.WithLogger(c.logger),
	)
}

// Seed returns the normalized seed URL.
func (c *Crawler) Seed() model.NormalizedURL {
	return c.seed
}

// State returns the current state.
func (c *Crawler) State() State {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

func (c *Crawler) setState(s State) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()

	c.stateMu.Lock()
	prev := c.state
	c.state = s
	c.stateMu.Unlock()
	c.notify(prev, s)
}

// drain moves a running crawler to StateDraining. It is called as soon as
// cancellation or the page cap is noticed, while fetches may still be in flight.
func (c *Crawler) drain() {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()

	c.stateMu.Lock()
	if c.state != StateRunning {
		c.stateMu.Unlock()
		return
	}
	c.state = StateDraining
	c.stateMu.Unlock()
	c.notify(StateRunning, StateDraining)
}

// notify reports a transition. Callers hold hookMu so hooks observe
// transitions in order.
func (c *Crawler) notify(prev, s State) {
	if prev == s {
		return
	}
	c.logger.Info("crawler state changed", "from", prev.String(), "to", s.String())
	if c.onState != nil {
		c.onState(s)
	}
}

// Snapshot returns a best-effort partial SiteMap. It is safe to call while
// Run is in progress.
func (c *Crawler) Snapshot() *model.SiteMap {
	return c.agg.Build(c.State().String())
}

// Run crawls the site and returns the SiteMap.
//
// Per-URL failures are recorded on PageRecords and never end the run.
// When ctx is cancelled no new batch is dispatched, in-flight fetches
// complete, and Run returns the partial SiteMap together with an error
// wrapping ErrStopped and the cancellation cause.
func (c *Crawler) Run(ctx context.Context) (*model.SiteMap, error) {
	c.stateMu.Lock()
	if c.state != StateIdle {
		c.stateMu.Unlock()
		return nil, ErrAlreadyStarted
	}
	c.stateMu.Unlock()

	c.agg.Start(time.Now())
	c.setState(StateRunning)
	stopDrain := context.AfterFunc(ctx, c.drain)
	defer stopDrain()
	c.applyCrawlDelay(ctx)

	if _, err := c.frontier.Admit(ctx, c.seed.String(), ""); err != nil {
		c.agg.RecordFiltered(err)
		c.logger.Warn("seed not crawlable", "url", c.seed, "error", err)
	}

	slots := make(chan *politeness.Throttle, c.cfg.MaxWorkers)
	for range c.cfg.MaxWorkers {
		slots <- politeness.NewThrottle(c.delay, c.cfg.MaxThrottleDelay)
	}

	final := StateFinished
	for {
		if ctx.Err() != nil {
			c.drain()
			final = StateStopped
			break
		}
		if c.frontier.Exhausted() {
			c.logger.Info("page cap reached", "max_pages", c.cfg.MaxPages)
			c.drain()
			break
		}

		batch := c.frontier.DequeueBatch(c.cfg.BatchSize())
		if len(batch) == 0 {
			break
		}
		c.runBatch(ctx, batch, slots)
		c.logProgress()
	}

	c.agg.Finish(time.Now())
	c.setState(final)
	sm := c.agg.Build(final.String())

	if final == StateStopped {
		return sm, fmt.Errorf("%w: %w", ErrStopped, context.Cause(ctx))
	}
	return sm, nil
}

// applyCrawlDelay raises the worker delay to the robots Crawl-delay of the seed host.
func (c *Crawler) applyCrawlDelay(ctx context.Context) {
	if c.robots == nil {
		return
	}
	u, err := url.Parse(c.seed.String())
	if err != nil {
		return
	}
	if d := c.robots.CrawlDelay(ctx, u); d > c.delay {
		c.logger.Info("using robots crawl-delay", "delay", d, "configured", c.delay)
		c.delay = d
	}
}

// runBatch visits every item of batch on the worker pool and returns when
// all of them have completed. Items whose worker has not started when ctx
// is cancelled go back to the frontier.
func (c *Crawler) runBatch(ctx context.Context, batch []frontier.Item, slots chan *politeness.Throttle) {
	c.batches.Add(1)
	c.logger.Debug("dispatching batch", "size", len(batch))

	var (
		mu      sync.Mutex
		skipped []frontier.Item
	)
	work := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(c.cfg.MaxWorkers)
	for _, item := range batch {
		g.Go(func() error {
			throttle := <-slots
			defer func() { slots <- throttle }()

			if ctx.Err() != nil || throttle.Wait(ctx) != nil {
				mu.Lock()
				skipped = append(skipped, item)
				mu.Unlock()
				return nil
			}

			rec := c.visit(work, item, throttle)
			c.frontier.MarkVisited(rec.URL)
			c.agg.Merge(rec)
			if c.frontier.Exhausted() {
				c.drain()
			}
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never return an error

	if len(skipped) > 0 {
		c.frontier.Requeue(skipped...)
	}
}

func (c *Crawler) logProgress() {
	fs := c.frontier.Stats()
	stats := c.agg.Stats()
	c.logger.Info("batch complete",
		"batch", c.batches.Load(),
		"crawled", stats.PagesCrawled,
		"failed", stats.PagesFailed,
		"files", stats.FilesFound,
		"pending", fs.Pending,
		"elapsed", stats.Elapsed().Round(time.Millisecond),
	)
}
