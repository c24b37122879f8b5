package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"
)

// MinimalUserAgent is sent without the browser-like Accept headers, for
// servers that only refuse clients announcing themselves in detail.
const MinimalUserAgent = "Mozilla/5.0"

// defaultMaxBodySize is used when no limit is configured.
const defaultMaxBodySize = 10 * 1024 * 1024

// errorBodyDrain is how much of an error response is read so the connection can be reused.
const errorBodyDrain = 64 * 1024

// HTTP fetches URLs with a plain HTTP client.
type HTTP struct {
	client      *http.Client
	userAgent   string
	fallbacks   []string
	maxAttempts int
	maxBodySize int64
	timeout     time.Duration
	logger      *slog.Logger
}

// HTTPOption configures HTTP.
type HTTPOption func(*HTTP)

// WithUserAgent sets the user agent of the first attempt.
func WithUserAgent(ua string) HTTPOption {
	return func(f *HTTP) {
		f.userAgent = ua
	}
}

// WithFallbackUserAgents sets the agents tried, in order, after a 403.
func WithFallbackUserAgents(agents []string) HTTPOption {
	return func(f *HTTP) {
		f.fallbacks = slices.Clone(agents)
	}
}

// WithMaxAttempts bounds the attempts per URL, the first one included.
// Without it every fallback agent is tried once.
func WithMaxAttempts(n int) HTTPOption {
	return func(f *HTTP) {
		if n > 0 {
			f.maxAttempts = n
		}
	}
}

// WithMaxBodySize limits the decoded bytes read per response.
func WithMaxBodySize(n int64) HTTPOption {
	return func(f *HTTP) {
		if n > 0 {
			f.maxBodySize = n
		}
	}
}

// WithTimeout sets the ceiling of a single attempt.
func WithTimeout(d time.Duration) HTTPOption {
	return func(f *HTTP) {
		f.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) HTTPOption {
	return func(f *HTTP) {
		f.logger = logger
	}
}

// NewHTTP returns an HTTP fetcher using client.
func NewHTTP(client *http.Client, opts ...HTTPOption) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	f := &HTTP{
		client:      client,
		maxBodySize: defaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f
}

// agents returns the user agent of each attempt: the primary agent, then
// the distinct fallbacks, cut at maxAttempts when one is set. The list is
// finite, so a URL that is refused by every agent fails for good.
func (f *HTTP) agents() []string {
	agents := make([]string, 0, 1+len(f.fallbacks))
	agents = append(agents, f.userAgent)
	for _, ua := range f.fallbacks {
		if !slices.Contains(agents, ua) {
			agents = append(agents, ua)
		}
	}
	if f.maxAttempts > 0 && len(agents) > f.maxAttempts {
		agents = agents[:f.maxAttempts]
	}
	return agents
}

// Fetch retrieves rawURL. A 403 is retried with the next user agent until
// the agents run out; every other outcome is final.
func (f *HTTP) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	agents := f.agents()

	var res *Result
	for i, ua := range agents {
		var err error
		res, err = f.attempt(ctx, rawURL, ua)
		if err != nil {
			return &Result{RequestedURL: rawURL, Attempts: i + 1, Engine: EngineHTTP}, transportError(rawURL, err)
		}
		res.Attempts = i + 1
		if res.StatusCode != http.StatusForbidden {
			break
		}
		if i < len(agents)-1 {
			f.logger.Debug("access denied, retrying with fallback user agent",
				"url", rawURL, "attempt", i+1, "next_user_agent", agents[i+1])
		}
	}

	if res.StatusCode >= http.StatusBadRequest {
		return res, statusError(rawURL, res.StatusCode)
	}
	return res, nil
}

// attempt performs one GET with the given user agent.
func (f *HTTP) attempt(ctx context.Context, rawURL, userAgent string) (*Result, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	if userAgent != MinimalUserAgent {
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.8")
		req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	res := &Result{
		RequestedURL: rawURL,
		FinalURL:     rawURL,
		StatusCode:   resp.StatusCode,
		ContentType:  resp.Header.Get("Content-Type"),
		Encoding:     resp.Header.Get("Content-Encoding"),
		Engine:       EngineHTTP,
		FetchedAt:    time.Now(),
	}
	if resp.Request != nil && resp.Request.URL != nil {
		res.FinalURL = resp.Request.URL.String()
	}

	if resp.StatusCode >= http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, errorBodyDrain))
		return res, nil
	}

	body, truncated, err := decodeBody(resp.Body, res.Encoding, f.maxBodySize)
	if err != nil {
		return nil, err
	}
	res.Body = body
	res.Truncated = truncated
	return res, nil
}
