package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/nao1215/sitecrawler/internal/config"
	"github.com/nao1215/sitecrawler/internal/crawler"
	"github.com/nao1215/sitecrawler/internal/database"
	"github.com/nao1215/sitecrawler/internal/model"
	"github.com/nao1215/sitecrawler/internal/pipeline"
	"github.com/nao1215/sitecrawler/internal/report"
	"github.com/nao1215/sitecrawler/internal/transport"
	"github.com/spf13/cobra"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [seed-url...]",
		Short: "Crawl one or more websites",
		Long: `Crawl fetches every page reachable from each seed URL without leaving the
seed's host, and writes a report when the crawl finishes.

Every worker waits --delay before each request, so the overall request rate
is roughly workers / delay. A 429 response widens the delay of the worker
that received it. Press Ctrl+C to stop early: pages already fetched are
kept and reported as a partial result.

Examples:
  # Crawl a site with defaults
  sitecrawler crawl https://example.com

  # Crawl at most 200 pages and write JSON to a file
  sitecrawler crawl -p 200 --json -o example.json https://example.com

  # Export the resource inventory and a sitemap as well
  sitecrawler crawl --csv files.csv --sitemap sitemap.xml https://example.com

  # Crawl several sites, two at a time
  sitecrawler crawl --parallel 2 https://a.example https://b.example

  # Route traffic through a SOCKS5 proxy
  sitecrawler crawl --proxy 127.0.0.1:9050 https://example.com

Configuration file (.sitecrawler) example:
  defaults:
    delay: 2s
  sites:
    example.com:
      cookie: "session=abc123"
      maxPages: 500
      ignorePatterns:
        - "/archive/*"`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Pacing and limits
	cmd.Flags().DurationP("delay", "d", config.DefaultDelay,
		"Pause each worker takes before every request")
	cmd.Flags().IntP("workers", "w", config.DefaultMaxWorkers,
		"Number of concurrent workers")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages to fetch per site (0 = unlimited)")
	cmd.Flags().Int("batch-factor", config.DefaultBatchFactor,
		"URLs dispatched per batch, as a multiple of --workers")
	cmd.Flags().Int("parallel", config.DefaultParallel,
		"Number of sites crawled at the same time")

	// Crawl behavior
	cmd.Flags().Bool("render", false,
		"Render pages in a headless browser before extraction")
	cmd.Flags().Duration("render-wait", config.DefaultRenderWait,
		"Time given to scripts after page load when rendering")
	cmd.Flags().Bool("no-robots", false,
		"Ignore robots.txt")
	cmd.Flags().Bool("include-subdomains", false,
		"Also crawl other hosts of the seed's registrable domain")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent sent on the first attempt of every request")
	cmd.Flags().StringSlice("ignore", nil,
		"Path glob patterns that are never crawled")
	cmd.Flags().StringSlice("follow", nil,
		"Only crawl paths matching these glob patterns")
	cmd.Flags().String("cookie", "",
		"Cookie header sent with every request")
	cmd.Flags().StringArrayP("header", "H", nil,
		`Extra request header ("Name: value"), repeatable`)

	// Extraction toggles
	cmd.Flags().Bool("no-emails", false, "Do not extract email addresses")
	cmd.Flags().Bool("no-phones", false, "Do not extract phone numbers")
	cmd.Flags().Bool("no-social", false, "Do not extract social profile links")

	// Network
	cmd.Flags().StringP("proxy", "x", "",
		"Route traffic through a SOCKS5 proxy (host:port)")
	cmd.Flags().Bool("embedded-tor", false,
		"Start a private Tor daemon and route traffic through it")
	cmd.Flags().Duration("tor-timeout", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .sitecrawler in current or home directory)")

	// Output
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().String("csv", "",
		"Write the resource inventory as CSV to this path ({domain} is replaced)")
	cmd.Flags().String("sitemap", "",
		"Write an XML sitemap to this path ({domain} is replaced)")

	// Storage
	cmd.Flags().Bool("save-raw", false,
		"Store the raw body of every fetched page in the database")
	cmd.Flags().Bool("no-save", false,
		"Do not save the run for later export")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the sitecrawler database")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildCrawlConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := setupLogger(cmd)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cmd, cfg, logger)
}

// buildCrawlConfig creates a Config from cobra command flags.
func buildCrawlConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()
	var err error

	if cfg.Delay, err = flags.GetDuration("delay"); err != nil {
		return nil, err
	}
	if cfg.MaxWorkers, err = flags.GetInt("workers"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.BatchFactor, err = flags.GetInt("batch-factor"); err != nil {
		return nil, err
	}
	if cfg.Parallel, err = flags.GetInt("parallel"); err != nil {
		return nil, err
	}
	if cfg.UseRenderer, err = flags.GetBool("render"); err != nil {
		return nil, err
	}
	if cfg.RenderWait, err = flags.GetDuration("render-wait"); err != nil {
		return nil, err
	}

	noRobots, err := flags.GetBool("no-robots")
	if err != nil {
		return nil, err
	}
	cfg.RespectRobots = !noRobots

	if cfg.IncludeSubdomains, err = flags.GetBool("include-subdomains"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.IgnorePatterns, err = flags.GetStringSlice("ignore"); err != nil {
		return nil, err
	}
	if cfg.FollowPatterns, err = flags.GetStringSlice("follow"); err != nil {
		return nil, err
	}
	if cfg.Cookie, err = flags.GetString("cookie"); err != nil {
		return nil, err
	}

	rawHeaders, err := flags.GetStringArray("header")
	if err != nil {
		return nil, err
	}
	if cfg.Headers, err = parseHeaders(rawHeaders); err != nil {
		return nil, err
	}

	for flag, target := range map[string]*bool{
		"no-emails": &cfg.ExtractEmails,
		"no-phones": &cfg.ExtractPhones,
		"no-social": &cfg.ExtractSocialLinks,
	} {
		off, err := flags.GetBool(flag)
		if err != nil {
			return nil, err
		}
		*target = !off
	}

	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.EmbeddedTor, err = flags.GetBool("embedded-tor"); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
		return nil, err
	}

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.SiteConfigs, err = loadSiteConfigs(cfg.ConfigFilePath); err != nil {
		return nil, err
	}

	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.CSVFile, err = flags.GetString("csv"); err != nil {
		return nil, err
	}
	if cfg.SitemapFile, err = flags.GetString("sitemap"); err != nil {
		return nil, err
	}

	if cfg.SaveRawPages, err = flags.GetBool("save-raw"); err != nil {
		return nil, err
	}
	noSave, err := flags.GetBool("no-save")
	if err != nil {
		return nil, err
	}
	cfg.SaveRun = !noSave
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}

	cfg.Verbose = getVerboseFlag(cmd)
	cfg.LogFormat = getLogFormatFlag(cmd)
	cfg.Seeds = args

	return cfg, nil
}

// loadSiteConfigs loads the configuration file. A missing file is an error
// only when its path was given explicitly.
func loadSiteConfigs(explicitPath string) (*config.File, error) {
	path := config.FindConfigFile(explicitPath)
	if path == "" {
		if explicitPath != "" {
			return nil, fmt.Errorf("configuration file not found: %s", explicitPath)
		}
		return &config.File{Sites: make(map[string]config.SiteConfig)}, nil
	}

	cf, err := config.LoadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	return cf, nil
}

// parseHeaders turns "Name: value" strings into a header map.
func parseHeaders(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q: expected \"Name: value\"", h)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

// runCrawl crawls every seed and writes the reports.
func runCrawl(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) error {
	status := cmd.ErrOrStderr()

	logger.Info("starting crawl",
		"seeds", cfg.Seeds,
		"workers", cfg.MaxWorkers,
		"delay", cfg.Delay,
		"max_pages", cfg.MaxPages,
		"parallel", cfg.Parallel,
	)

	var db *database.CrawlDB
	if cfg.SaveRun || cfg.SaveRawPages {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
	}

	if cfg.ProxyAddress != "" {
		if s := transport.CheckProxy(ctx, cfg.ProxyAddress); s != transport.ProxyStatusOK {
			return fmt.Errorf("proxy check failed: %w (make sure a SOCKS5 proxy is running at %s)",
				s.Err(), cfg.ProxyAddress)
		}
		logger.Info("proxy connection verified", "address", cfg.ProxyAddress)
	}

	if cfg.EmbeddedTor {
		embeddedTor, err := startEmbeddedTor(ctx, cfg, status, logger)
		if err != nil {
			return err
		}
		defer func() {
			logger.Info("stopping embedded Tor daemon")
			if err := embeddedTor.Stop(); err != nil {
				logger.Error("failed to stop embedded Tor", "error", err)
			}
		}()
	}

	output, closeOutput, err := openReportOutput(cfg.ReportFile, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer closeOutput()

	factory := newPipelineFactory(cfg, db, output, status, logger)

	var crawlerOpts []crawler.Option
	if cfg.SaveRawPages && db != nil {
		crawlerOpts = append(crawlerOpts, crawler.WithSink(db))
	}

	bp := pipeline.NewBatchProcessor(cfg, factory,
		pipeline.WithBatchLogger(logger),
		pipeline.WithCrawlerOptions(crawlerOpts...),
	)

	startTime := time.Now()
	results, err := bp.ProcessBatch(ctx, cfg.Seeds)

	var errs []error
	if err != nil {
		errs = append(errs, err)
	}
	for _, r := range results {
		if r == nil {
			continue
		}
		printSummary(status, r)
		if r.Err != nil && !errors.Is(r.Err, context.Canceled) {
			errs = append(errs, fmt.Errorf("%s: %w", r.Seed, r.Err))
		}
		if r.PipelineErr != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Seed, r.PipelineErr))
		}
	}
	fmt.Fprintf(status, "Finished in %s\n", time.Since(startTime).Round(time.Millisecond))

	return errors.Join(errs...)
}

// newPipelineFactory builds the post-crawl steps shared by every seed.
func newPipelineFactory(cfg *config.Config, db *database.CrawlDB, output io.Writer, status io.Writer, logger *slog.Logger) func() *pipeline.Pipeline {
	var steps []pipeline.Step

	if cfg.SaveRun && db != nil {
		steps = append(steps, pipeline.NewPersistStep(db,
			pipeline.WithPersistLogger(logger),
			pipeline.WithOnSaved(func(id int64, sm *model.SiteMap) {
				fmt.Fprintf(status, "Saved run %d for %s (export with: sitecrawler export --run %d)\n", id, sm.Domain, id)
			}),
		))
	}

	steps = append(steps, pipeline.NewReportStep(newReportWriter(cfg, output)))

	multi := len(cfg.Seeds) > 1
	if cfg.CSVFile != "" {
		steps = append(steps, pipeline.NewCSVExportStep(perSitePath(cfg.CSVFile, multi)))
	}
	if cfg.SitemapFile != "" {
		steps = append(steps, pipeline.NewSitemapExportStep(perSitePath(cfg.SitemapFile, multi)))
	}

	return func() *pipeline.Pipeline {
		p := pipeline.New(
			pipeline.WithLogger(logger),
			pipeline.WithContinueOnError(true),
		)
		p.AddSteps(steps...)
		return p
	}
}

// newReportWriter selects the report format.
func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
}

// perSitePath inserts the domain placeholder before the extension of path
// when several sites write to it and it has no placeholder yet.
func perSitePath(path string, multi bool) string {
	if !multi || strings.Contains(path, pipeline.DomainPlaceholder) {
		return path
	}
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "-" + pipeline.DomainPlaceholder + ext
}

// openReportOutput returns the report destination: path when set, stdout
// otherwise. Report files are created with owner-only permissions.
func openReportOutput(path string, stdout io.Writer) (io.Writer, func(), error) {
	if path == "" {
		return stdout, func() {}, nil
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// printSummary writes a one-line outcome for a crawled seed.
func printSummary(w io.Writer, r *pipeline.Result) {
	if r.SiteMap == nil {
		fmt.Fprintf(w, "Crawl of %s failed: %v\n", r.Seed, r.Err)
		return
	}
	s := r.SiteMap.Statistics
	fmt.Fprintf(w, "Crawled %s: %d pages, %d failed, %d files in %s",
		r.Seed, s.PagesCrawled, s.PagesFailed, s.FilesFound,
		s.Elapsed().Round(time.Millisecond))
	if errors.Is(r.Err, crawler.ErrStopped) {
		fmt.Fprint(w, " (stopped, partial results)")
	}
	fmt.Fprintln(w)
}

// startEmbeddedTor starts a private Tor daemon and points the crawl at its
// SOCKS port.
func startEmbeddedTor(ctx context.Context, cfg *config.Config, status io.Writer, logger *slog.Logger) (*transport.EmbeddedTor, error) {
	fmt.Fprintln(status, "Starting embedded Tor daemon...")
	fmt.Fprintf(status, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	embeddedTor := transport.NewEmbeddedTor(
		transport.WithStartupTimeout(cfg.TorStartupTimeout),
	)
	if err := embeddedTor.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}

	if s := transport.CheckProxy(ctx, embeddedTor.SocksAddr()); s != transport.ProxyStatusOK {
		_ = embeddedTor.Stop() //nolint:errcheck // best effort cleanup
		return nil, fmt.Errorf("embedded Tor proxy check failed: %w", s.Err())
	}

	logger.Info("embedded Tor daemon started", "socks_addr", embeddedTor.SocksAddr())
	fmt.Fprintf(status, "SOCKS proxy: %s\n\n", embeddedTor.SocksAddr())

	// From here on the daemon is an ordinary SOCKS5 proxy for the crawlers.
	cfg.ProxyAddress = embeddedTor.SocksAddr()
	cfg.EmbeddedTor = false
	return embeddedTor, nil
}
