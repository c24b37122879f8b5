package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/sitecrawler/internal/config"
	"github.com/nao1215/sitecrawler/internal/crawler"
	ilog "github.com/nao1215/sitecrawler/internal/log"
	"github.com/nao1215/sitecrawler/internal/model"
)

func batchConfig(seeds ...string) *config.Config {
	cfg := config.NewConfig()
	cfg.Seeds = seeds
	cfg.Delay = 0
	cfg.MaxWorkers = 2
	cfg.Timeout = 5 * time.Second
	cfg.RespectRobots = false
	cfg.DBDir = ""
	return cfg
}

// fakeCrawl returns a site map whose domain is the seed.
func fakeCrawl(ctx context.Context, cfg *config.Config) (*model.SiteMap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sm := testSiteMap()
	sm.RootURL = cfg.Seeds[0]
	sm.Domain = cfg.Seeds[0]
	return sm, nil
}

// TestBatchProcessorNew tests the BatchProcessor constructor.
func TestBatchProcessorNew(t *testing.T) {
	t.Parallel()

	t.Run("uses parallel setting from config", func(t *testing.T) {
		t.Parallel()

		cfg := batchConfig()
		cfg.Parallel = 3
		bp := NewBatchProcessor(cfg, nil)
		if bp.concurrency != 3 {
			t.Errorf("expected concurrency 3, got %d", bp.concurrency)
		}
	})

	t.Run("applies WithConcurrency option", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(batchConfig(), nil, WithConcurrency(5))
		if bp.concurrency != 5 {
			t.Errorf("expected concurrency 5, got %d", bp.concurrency)
		}
	})

	t.Run("ignores non-positive concurrency", func(t *testing.T) {
		t.Parallel()

		cfg := batchConfig()
		cfg.Parallel = 0
		bp := NewBatchProcessor(cfg, nil, WithConcurrency(0))
		if bp.concurrency != DefaultConcurrency {
			t.Errorf("expected default concurrency, got %d", bp.concurrency)
		}
	})
}

// TestProcessBatch tests concurrent crawling of several seeds.
func TestProcessBatch(t *testing.T) {
	t.Parallel()

	t.Run("returns results in input order", func(t *testing.T) {
		t.Parallel()

		seeds := []string{"https://a.example/", "https://b.example/", "https://c.example/"}
		var steps atomic.Int32
		factory := func() *Pipeline {
			p := New()
			p.AddStep(&mockStep{name: "count", doFunc: func(context.Context, *model.SiteMap) error {
				steps.Add(1)
				return nil
			}})
			return p
		}

		bp := NewBatchProcessor(batchConfig(seeds...), factory, WithCrawlFunc(fakeCrawl))
		results, err := bp.ProcessBatch(context.Background(), seeds)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(results) != len(seeds) {
			t.Fatalf("expected %d results, got %d", len(seeds), len(results))
		}
		for i, r := range results {
			if r.Seed != seeds[i] || r.SiteMap.Domain != seeds[i] {
				t.Errorf("result %d: unexpected seed %q", i, r.Seed)
			}
		}
		if steps.Load() != 3 {
			t.Errorf("expected pipeline per site, got %d runs", steps.Load())
		}
	})

	t.Run("respects concurrency limit", func(t *testing.T) {
		t.Parallel()

		var current, peak atomic.Int32
		crawl := func(ctx context.Context, cfg *config.Config) (*model.SiteMap, error) {
			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			current.Add(-1)
			return fakeCrawl(ctx, cfg)
		}

		seeds := make([]string, 8)
		for i := range seeds {
			seeds[i] = fmt.Sprintf("https://site%d.example/", i)
		}
		bp := NewBatchProcessor(batchConfig(seeds...), nil, WithConcurrency(2), WithCrawlFunc(crawl))
		if _, err := bp.ProcessBatch(context.Background(), seeds); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if peak.Load() > 2 {
			t.Errorf("expected at most 2 concurrent crawls, saw %d", peak.Load())
		}
	})

	t.Run("records per-seed failures", func(t *testing.T) {
		t.Parallel()

		errRefused := errors.New("connection refused")
		crawl := func(ctx context.Context, cfg *config.Config) (*model.SiteMap, error) {
			if cfg.Seeds[0] == "https://bad.example/" {
				return nil, errRefused
			}
			return fakeCrawl(ctx, cfg)
		}

		seeds := []string{"https://good.example/", "https://bad.example/"}
		bp := NewBatchProcessor(batchConfig(seeds...), func() *Pipeline { return New() }, WithCrawlFunc(crawl))
		results, err := bp.ProcessBatch(context.Background(), seeds)
		if err != nil {
			t.Fatalf("batch should not fail for one seed: %v", err)
		}
		if results[0].Err != nil {
			t.Errorf("unexpected error for good seed: %v", results[0].Err)
		}
		if !errors.Is(results[1].Err, errRefused) || results[1].SiteMap != nil {
			t.Errorf("expected failure for bad seed, got %+v", results[1])
		}
	})

	t.Run("stopped crawl still runs pipeline", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		crawl := func(_ context.Context, cfg *config.Config) (*model.SiteMap, error) {
			cancel()
			sm := testSiteMap()
			sm.State = "stopped"
			return sm, fmt.Errorf("%w: %w", crawler.ErrStopped, context.Canceled)
		}

		var ran atomic.Bool
		factory := func() *Pipeline {
			p := New()
			p.AddStep(&mockStep{name: "save", doFunc: func(context.Context, *model.SiteMap) error {
				ran.Store(true)
				return nil
			}})
			return p
		}

		seeds := []string{"https://example.com/"}
		bp := NewBatchProcessor(batchConfig(seeds...), factory, WithCrawlFunc(crawl))
		results, _ := bp.ProcessBatch(ctx, seeds)
		if !ran.Load() {
			t.Error("expected pipeline to run for partial results")
		}
		if results[0].PipelineErr != nil {
			t.Errorf("unexpected pipeline error: %v", results[0].PipelineErr)
		}
	})

	t.Run("cancelled batch skips remaining seeds", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		var calls atomic.Int32
		crawl := func(ctx context.Context, cfg *config.Config) (*model.SiteMap, error) {
			calls.Add(1)
			return fakeCrawl(ctx, cfg)
		}
		seeds := []string{"https://a.example/", "https://b.example/"}
		bp := NewBatchProcessor(batchConfig(seeds...), nil, WithCrawlFunc(crawl))
		results, err := bp.ProcessBatch(ctx, seeds)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if calls.Load() != 0 {
			t.Errorf("expected no crawls, got %d", calls.Load())
		}
		for _, r := range results {
			if r == nil || !errors.Is(r.Err, context.Canceled) {
				t.Errorf("expected cancelled result, got %+v", r)
			}
		}
	})
}

// TestProcessBatch_DefaultCrawler runs real crawls against local servers.
func TestProcessBatch_DefaultCrawler(t *testing.T) {
	t.Parallel()

	newSite := func(title string) *httptest.Server {
		mux := http.NewServeMux()
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			switch r.URL.Path {
			case "/":
				fmt.Fprintf(w, `<html><head><title>%s</title></head><body><a href="/next">next</a><img src="/logo.png"></body></html>`, title)
			case "/next":
				fmt.Fprint(w, `<html><head><title>Next</title></head><body><a href="/">home</a></body></html>`)
			default:
				http.NotFound(w, r)
			}
		})
		srv := httptest.NewServer(mux)
		t.Cleanup(srv.Close)
		return srv
	}
	first := newSite("First")
	second := newSite("Second")
	seeds := []string{first.URL + "/", second.URL + "/"}

	var (
		mu     sync.Mutex
		titles []string
	)
	factory := func() *Pipeline {
		p := New()
		p.AddStep(&mockStep{name: "collect", doFunc: func(_ context.Context, sm *model.SiteMap) error {
			mu.Lock()
			defer mu.Unlock()
			titles = append(titles, sm.Pages[model.NormalizedURL(sm.RootURL)].Title)
			return nil
		}})
		return p
	}

	bp := NewBatchProcessor(batchConfig(seeds...), factory,
		WithBatchLogger(ilog.Discard()),
		WithCrawlerOptions(crawler.WithLogger(ilog.Discard())),
	)
	results, err := bp.ProcessBatch(context.Background(), seeds)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, r := range results {
		if r.Err != nil {
			t.Fatalf("crawl of %s failed: %v", r.Seed, r.Err)
		}
		if len(r.SiteMap.Pages) != 2 {
			t.Errorf("%s: expected 2 pages, got %d", r.Seed, len(r.SiteMap.Pages))
		}
		if len(r.SiteMap.Resources[model.CategoryImages]) != 1 {
			t.Errorf("%s: expected logo in inventory", r.Seed)
		}
	}
	if len(titles) != 2 {
		t.Errorf("expected pipeline for both sites, got %v", titles)
	}
}
