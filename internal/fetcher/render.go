package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"golang.org/x/sync/semaphore"
)

// Renderer fetches pages through headless Chrome so that script-generated
// markup ends up in the body.
type Renderer struct {
	userAgent string
	wait      time.Duration
	timeout   time.Duration
	headless  bool
	sessions  *semaphore.Weighted
	logger    *slog.Logger
}

// RendererOption configures Renderer.
type RendererOption func(*Renderer)

// WithRenderUserAgent sets the browser user agent.
func WithRenderUserAgent(ua string) RendererOption {
	return func(r *Renderer) {
		r.userAgent = ua
	}
}

// WithRenderWait sets how long scripts may run after navigation before the DOM is captured.
func WithRenderWait(d time.Duration) RendererOption {
	return func(r *Renderer) {
		if d >= 0 {
			r.wait = d
		}
	}
}

// WithRenderTimeout bounds a whole render.
func WithRenderTimeout(d time.Duration) RendererOption {
	return func(r *Renderer) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithSessions limits concurrent browser sessions.
func WithSessions(n int) RendererOption {
	return func(r *Renderer) {
		if n > 0 {
			r.sessions = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithHeadless toggles headless mode.
func WithHeadless(headless bool) RendererOption {
	return func(r *Renderer) {
		r.headless = headless
	}
}

// WithRenderLogger sets the logger.
func WithRenderLogger(logger *slog.Logger) RendererOption {
	return func(r *Renderer) {
		r.logger = logger
	}
}

// NewRenderer returns a renderer with one session and a two second settle time.
func NewRenderer(opts ...RendererOption) *Renderer {
	r := &Renderer{
		wait:     2 * time.Second,
		timeout:  60 * time.Second,
		headless: true,
		sessions: semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Fetch navigates to rawURL, waits for scripts to settle and returns the
// serialized DOM.
func (r *Renderer) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	if err := r.sessions.Acquire(ctx, 1); err != nil {
		return nil, transportError(rawURL, err)
	}
	defer r.sessions.Release(1)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	execOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("headless", r.headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
	}
	if r.userAgent != "" {
		execOpts = append(execOpts, chromedp.UserAgent(r.userAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, execOpts...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	var status atomic.Int64
	var mimeType atomic.Value
	chromedp.ListenTarget(browserCtx, func(ev any) {
		e, ok := ev.(*network.EventResponseReceived)
		if !ok || e.Type != network.ResourceTypeDocument || e.Response == nil {
			return
		}
		if status.CompareAndSwap(0, e.Response.Status) {
			mimeType.Store(e.Response.MimeType)
		}
	})

	var html, finalURL string
	start := time.Now()
	err := chromedp.Run(browserCtx,
		network.Enable(),
		chromedp.Navigate(rawURL),
		chromedp.Sleep(r.wait),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Location(&finalURL),
	)
	if err != nil {
		return nil, transportError(rawURL, fmt.Errorf("render: %w", err))
	}
	r.logger.Debug("page rendered", "url", rawURL, "final_url", finalURL, "elapsed", time.Since(start))

	res := &Result{
		RequestedURL: rawURL,
		FinalURL:     finalURL,
		StatusCode:   int(status.Load()),
		ContentType:  "text/html",
		Body:         []byte(html),
		Attempts:     1,
		Engine:       EngineChromedp,
		FetchedAt:    time.Now(),
	}
	if mt, ok := mimeType.Load().(string); ok && mt != "" {
		res.ContentType = mt
	}
	if res.FinalURL == "" {
		res.FinalURL = rawURL
	}
	if res.StatusCode == 0 {
		res.StatusCode = http.StatusOK
	}
	if res.StatusCode >= http.StatusBadRequest {
		return res, statusError(rawURL, res.StatusCode)
	}
	return res, nil
}
