package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/nao1215/sitecrawler/internal/model"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "sitecrawler"

	// DefaultDelay is the pause each worker takes before every fetch.
	// The pacing is per worker, so the aggregate request rate is roughly
	// MaxWorkers / DefaultDelay.
	DefaultDelay = 1 * time.Second

	// DefaultMaxWorkers is the size of the fetch worker pool.
	DefaultMaxWorkers = 10

	// DefaultTimeout is the ceiling for a single fetch attempt.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxPages is the page cap. Zero means unlimited.
	DefaultMaxPages = 0

	// DefaultBatchFactor multiplies MaxWorkers to size each dispatched batch.
	DefaultBatchFactor = 2

	// DefaultUserAgent is sent on the first attempt of every fetch.
	DefaultUserAgent = "sitecrawler/1.0 (+https://github.com/nao1215/sitecrawler)"

	// DefaultMaxBodySize limits how much of a response body is read.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultMaxThrottleDelay caps how far a 429 response can widen a worker's delay.
	DefaultMaxThrottleDelay = 30 * time.Second

	// DefaultRenderWait is how long the headless renderer waits after load for scripts to settle.
	DefaultRenderWait = 2 * time.Second

	// DefaultParallel is the number of seeds crawled at the same time.
	DefaultParallel = 2

	// DefaultTorStartupTimeout bounds the bootstrap of the embedded Tor daemon.
	DefaultTorStartupTimeout = 3 * time.Minute

	// LogFormatText and LogFormatJSON are the accepted log formats.
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// DefaultFallbackUserAgents are tried, in order, after an access-denied response.
var DefaultFallbackUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
	"Mozilla/5.0",
}

// Config holds every option of a crawl run.
// It is populated from CLI flags and the config file and passed down explicitly.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., FetchConfig, ReportConfig). Per-site overrides from the config file
// are applied with ForSeed, which copies the struct, and a flat struct keeps
// that copy a plain value copy plus a few cloned slices.
type Config struct {
	// Seeds are the start URLs. Each seed is crawled as its own site.
	Seeds []string

	// Delay is the per-worker pause before each fetch.
	Delay time.Duration

	// MaxWorkers is the number of concurrent fetch+extract tasks.
	MaxWorkers int

	// Timeout is the ceiling for one fetch attempt.
	Timeout time.Duration

	// MaxPages caps the number of fetch attempts per site. Zero means unlimited.
	MaxPages int

	// BatchFactor sizes each dispatched batch as BatchFactor * MaxWorkers.
	BatchFactor int

	// UseRenderer selects the headless browser fetcher instead of plain HTTP.
	UseRenderer bool

	// RenderWait is the settle time given to scripts by the renderer.
	RenderWait time.Duration

	// RespectRobots enables robots.txt checks.
	RespectRobots bool

	// ExtractEmails, ExtractPhones and ExtractSocialLinks toggle the contact matchers.
	ExtractEmails      bool
	ExtractPhones      bool
	ExtractSocialLinks bool

	// UserAgent is sent on the first attempt.
	UserAgent string

	// FallbackUserAgents are tried in order after a 403.
	FallbackUserAgents []string

	// MaxBodySize limits the bytes read per response.
	MaxBodySize int64

	// MaxThrottleDelay caps delay widening after 429 responses.
	MaxThrottleDelay time.Duration

	// IncludeSubdomains widens the crawl scope from the seed host to its
	// registrable domain.
	IncludeSubdomains bool

	// IgnorePatterns and FollowPatterns are glob patterns matched against URL paths.
	IgnorePatterns []string
	FollowPatterns []string

	// Cookie and Headers are injected into every request.
	Cookie  string
	Headers map[string]string

	// ProxyAddress routes all traffic through a SOCKS5 proxy ("host:port").
	ProxyAddress string

	// EmbeddedTor starts a private Tor daemon and routes traffic through it.
	EmbeddedTor bool

	// TorStartupTimeout bounds the embedded Tor bootstrap.
	TorStartupTimeout time.Duration

	// Parallel is the number of seeds crawled concurrently.
	Parallel int

	// ConfigFilePath is an explicit path to the YAML config file.
	ConfigFilePath string

	// SiteConfigs holds the per-site settings loaded from the config file.
	SiteConfigs *File

	// JSONReport and MarkdownReport select the report format. The default is plain text.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile writes the report to a file instead of stdout.
	ReportFile string

	// CSVFile and SitemapFile, when set, receive the resource inventory and XML sitemap.
	CSVFile     string
	SitemapFile string

	// SaveRawPages hands every fetched body to the raw page sink.
	SaveRawPages bool

	// SaveRun stores the finished site map for later export.
	SaveRun bool

	// DBDir is the directory of the SQLite database.
	DBDir string

	// Verbose enables debug logging.
	Verbose bool

	// LogFormat is "text" or "json".
	LogFormat string
}

// NewConfig creates a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Delay:              DefaultDelay,
		MaxWorkers:         DefaultMaxWorkers,
		Timeout:            DefaultTimeout,
		MaxPages:           DefaultMaxPages,
		BatchFactor:        DefaultBatchFactor,
		RenderWait:         DefaultRenderWait,
		RespectRobots:      true,
		ExtractEmails:      true,
		ExtractPhones:      true,
		ExtractSocialLinks: true,
		UserAgent:          DefaultUserAgent,
		FallbackUserAgents: append([]string(nil), DefaultFallbackUserAgents...),
		MaxBodySize:        DefaultMaxBodySize,
		MaxThrottleDelay:   DefaultMaxThrottleDelay,
		TorStartupTimeout:  DefaultTorStartupTimeout,
		Parallel:           DefaultParallel,
		SaveRun:            true,
		DBDir:              XDGDataDir(),
		LogFormat:          LogFormatText,
	}
}

// XDGDataDir returns the data directory holding the SQLite database.
// On Linux: ~/.local/share/sitecrawler
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the user config directory for sitecrawler.
// On Linux: ~/.config/sitecrawler
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// BatchSize returns the number of URLs dispatched per orchestrator iteration.
func (c *Config) BatchSize() int {
	return c.BatchFactor * c.MaxWorkers
}

// RunConfig returns the snapshot recorded in the site map.
func (c *Config) RunConfig() model.RunConfig {
	return model.RunConfig{
		DelaySeconds:       c.Delay.Seconds(),
		MaxWorkers:         c.MaxWorkers,
		TimeoutSeconds:     c.Timeout.Seconds(),
		MaxPages:           c.MaxPages,
		UseRenderer:        c.UseRenderer,
		RespectRobots:      c.RespectRobots,
		ExtractEmails:      c.ExtractEmails,
		ExtractPhones:      c.ExtractPhones,
		ExtractSocialLinks: c.ExtractSocialLinks,
		UserAgent:          c.UserAgent,
	}
}

// Validate checks the configuration and returns the first problem found as a
// *model.ConfigurationError.
func (c *Config) Validate() error {
	if len(c.Seeds) == 0 {
		return invalid("seeds", ErrNoSeed)
	}
	for _, seed := range c.Seeds {
		if _, err := model.Normalize(seed); err != nil {
			return invalid("seed "+seed, ErrInvalidSeed)
		}
	}

	checks := []struct {
		bad   bool
		field string
		err   error
	}{
		{c.MaxWorkers <= 0, "max_workers", ErrInvalidWorkers},
		{c.Timeout <= 0, "timeout", ErrInvalidTimeout},
		{c.Delay < 0, "delay", ErrInvalidDelay},
		{c.MaxPages < 0, "max_pages", ErrInvalidMaxPages},
		{c.BatchFactor < 1, "batch_factor", ErrInvalidBatchFactor},
		{c.MaxBodySize < 0, "max_body_size", ErrInvalidMaxBodySize},
		{c.Parallel <= 0, "parallel", ErrInvalidParallel},
		{c.JSONReport && c.MarkdownReport, "report", ErrConflictingReportFormats},
		{c.ProxyAddress != "" && c.EmbeddedTor, "proxy", ErrConflictingProxy},
		{c.UseRenderer && (c.ProxyAddress != "" || c.EmbeddedTor), "render", ErrRendererWithProxy},
		{c.LogFormat != LogFormatText && c.LogFormat != LogFormatJSON, "log_format", ErrInvalidLogFormat},
	}
	for _, check := range checks {
		if check.bad {
			return invalid(check.field, check.err)
		}
	}
	return nil
}

// invalid wraps a sentinel in a ConfigurationError.
func invalid(field string, err error) error {
	return &model.ConfigurationError{Field: field, Err: err}
}
