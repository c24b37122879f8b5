package politeness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"
)

// DefaultRobotsTTL is how long fetched rules are cached.
const DefaultRobotsTTL = 30 * time.Minute

// maxRobotsSize bounds the robots.txt body read.
const maxRobotsSize = 512 * 1024

// Robots evaluates robots.txt rules with a per-host cache.
type Robots struct {
	client    *http.Client
	userAgent string
	ttl       time.Duration
	logger    *slog.Logger

	flight singleflight.Group
	mu     sync.RWMutex
	cache  map[string]robotsEntry
}

// robotsEntry holds cached rules. A nil rules value allows everything.
type robotsEntry struct {
	fetched time.Time
	rules   *robotstxt.RobotsData
}

// RobotsOption configures Robots.
type RobotsOption func(*Robots)

// WithRobotsTTL sets the cache lifetime.
func WithRobotsTTL(ttl time.Duration) RobotsOption {
	return func(r *Robots) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithRobotsLogger sets the logger.
func WithRobotsLogger(logger *slog.Logger) RobotsOption {
	return func(r *Robots) {
		r.logger = logger
	}
}

// NewRobots returns a robots evaluator that fetches rules with client and
// matches groups for userAgent.
func NewRobots(client *http.Client, userAgent string, opts ...RobotsOption) *Robots {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	r := &Robots{
		client:    client,
		userAgent: userAgent,
		ttl:       DefaultRobotsTTL,
		cache:     make(map[string]robotsEntry),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Allowed reports whether u may be fetched.
func (r *Robots) Allowed(ctx context.Context, u *url.URL) bool {
	if u == nil || !u.IsAbs() {
		return false
	}
	group := r.group(ctx, u)
	if group == nil {
		return true
	}
	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	return group.Test(p)
}

// CrawlDelay returns the Crawl-delay directive for the host of u, or zero.
func (r *Robots) CrawlDelay(ctx context.Context, u *url.URL) time.Duration {
	group := r.group(ctx, u)
	if group == nil {
		return 0
	}
	return group.CrawlDelay
}

// group returns the rule group for the configured agent, nil when every path is allowed.
func (r *Robots) group(ctx context.Context, u *url.URL) *robotstxt.Group {
	rules := r.rules(ctx, u)
	if rules == nil {
		return nil
	}
	agent := r.userAgent
	if agent == "" {
		agent = "*"
	}
	return rules.FindGroup(agent)
}

// rules returns cached rules for u's host, fetching them when stale.
func (r *Robots) rules(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	host := strings.ToLower(u.Scheme + "://" + u.Host)

	r.mu.RLock()
	entry, ok := r.cache[host]
	r.mu.RUnlock()
	if ok && time.Since(entry.fetched) < r.ttl {
		return entry.rules
	}

	v, _, _ := r.flight.Do(host, func() (any, error) { //nolint:errcheck // the closure never returns an error
		rules, err := r.fetch(ctx, host)
		if err != nil {
			r.logger.Warn("robots.txt unavailable, allowing all", "host", host, "error", err)
			rules = nil
		}
		r.mu.Lock()
		r.cache[host] = robotsEntry{fetched: time.Now(), rules: rules}
		r.mu.Unlock()
		return rules, nil
	})
	rules, _ := v.(*robotstxt.RobotsData)
	return rules
}

// fetch downloads and parses robots.txt from origin.
// Client errors (4xx) mean no rules; server errors and parse failures are errors.
func (r *Robots) fetch(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil, fmt.Errorf("build robots request: %w", err)
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("robots.txt returned status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsSize))
	if err != nil {
		return nil, fmt.Errorf("read robots.txt: %w", err)
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}
	return data, nil
}

// Purge evicts the cached rules for origin ("scheme://host").
func (r *Robots) Purge(origin string) {
	r.mu.Lock()
	delete(r.cache, strings.ToLower(origin))
	r.mu.Unlock()
}
