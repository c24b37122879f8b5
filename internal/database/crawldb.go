package database

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/sha3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/sitecrawler/internal/model"
)

// FileName is the name of the database file inside the data directory.
const FileName = "sitecrawler.db"

// sqliteTimeFormat is the layout timestamps are written with.
const sqliteTimeFormat = "2006-01-02 15:04:05"

// CrawlDB stores raw page bodies and finished site maps.
// A single database file holds every site, so one saved run can be exported
// without knowing where it came from.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc creates it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- Raw pages hold the body of every successfully fetched page
	CREATE TABLE IF NOT EXISTS raw_pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL UNIQUE,
		site TEXT NOT NULL,
		raw_html TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		status_code INTEGER,
		content_type TEXT,
		scraped_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_raw_pages_site ON raw_pages(site);
	CREATE INDEX IF NOT EXISTS idx_raw_pages_hash ON raw_pages(content_hash);

	-- Runs store finished site maps as JSON
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		root_url TEXT NOT NULL,
		domain TEXT NOT NULL,
		state TEXT NOT NULL,
		pages INTEGER NOT NULL,
		errors INTEGER NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		sitemap_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_domain ON runs(domain);
	CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON runs(timestamp);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// RawPage is a stored page body.
type RawPage struct {
	ID          int64
	URL         string
	Site        string
	RawHTML     string
	ContentHash string
	StatusCode  int
	ContentType string
	ScrapedAt   time.Time
}

// ContentHash returns the hex SHA3-256 digest of body.
func ContentHash(body []byte) string {
	sum := sha3.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// StorePage stores the body of rec keyed by its normalized URL.
// A second store for the same URL is a no-op; the result reports whether a
// row was inserted.
func (cdb *CrawlDB) StorePage(ctx context.Context, rec *model.PageRecord, body []byte) (bool, error) {
	if rec == nil {
		return false, errors.New("nil page record")
	}

	scrapedAt := rec.FetchedAt
	if scrapedAt.IsZero() {
		scrapedAt = time.Now()
	}

	query := `
	INSERT INTO raw_pages (url, site, raw_html, content_hash, status_code, content_type, scraped_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(url) DO NOTHING
	`

	result, err := cdb.db.ExecContext(ctx, query,
		rec.URL.String(),
		rec.URL.Host(),
		string(body),
		ContentHash(body),
		rec.StatusCode,
		rec.ContentType,
		scrapedAt.UTC().Format(sqliteTimeFormat),
	)
	if err != nil {
		return false, fmt.Errorf("failed to store raw page: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

// GetRawPage retrieves a stored page by normalized URL. It returns nil when
// the URL was never stored.
func (cdb *CrawlDB) GetRawPage(ctx context.Context, url string) (*RawPage, error) {
	query := `
	SELECT id, url, site, raw_html, content_hash, status_code, content_type, scraped_at
	FROM raw_pages
	WHERE url = ?
	`

	var page RawPage
	var contentType sql.NullString
	var scrapedAt string

	err := cdb.db.QueryRowContext(ctx, query, url).Scan(
		&page.ID,
		&page.URL,
		&page.Site,
		&page.RawHTML,
		&page.ContentHash,
		&page.StatusCode,
		&contentType,
		&scrapedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get raw page: %w", err)
	}

	page.ContentType = contentType.String
	page.ScrapedAt = parseTimestamp(scrapedAt)
	return &page, nil
}

// RawPageSummary describes a stored page without its body.
type RawPageSummary struct {
	URL         string
	ContentHash string
	StatusCode  int
	Size        int
	ScrapedAt   time.Time
}

// ListRawPages returns the pages stored for site, or for every site when
// site is empty, in URL order. A positive limit caps the result.
func (cdb *CrawlDB) ListRawPages(ctx context.Context, site string, limit int) ([]RawPageSummary, error) {
	query := `
	SELECT url, content_hash, status_code, length(raw_html), scraped_at
	FROM raw_pages
	WHERE 1=1
	`
	args := make([]any, 0, 2)

	if site != "" {
		query += " AND site = ?"
		args = append(args, site)
	}
	query += " ORDER BY url"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list raw pages: %w", err)
	}
	defer rows.Close()

	var results []RawPageSummary
	for rows.Next() {
		var s RawPageSummary
		var scrapedAt string
		if err := rows.Scan(&s.URL, &s.ContentHash, &s.StatusCode, &s.Size, &scrapedAt); err != nil {
			return nil, fmt.Errorf("failed to scan raw page: %w", err)
		}
		s.ScrapedAt = parseTimestamp(scrapedAt)
		results = append(results, s)
	}

	return results, rows.Err()
}

// SaveRun stores a site map and returns its run ID.
func (cdb *CrawlDB) SaveRun(ctx context.Context, sm *model.SiteMap) (int64, error) {
	sitemapJSON, err := json.Marshal(sm)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize site map: %w", err)
	}

	query := `
	INSERT INTO runs (root_url, domain, state, pages, errors, sitemap_json)
	VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := cdb.db.ExecContext(ctx, query,
		sm.RootURL,
		sm.Domain,
		sm.State,
		len(sm.Pages),
		sm.Statistics.Errors,
		string(sitemapJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save run: %w", err)
	}

	return result.LastInsertId()
}

// GetRun retrieves a saved site map by run ID. It returns nil for an unknown ID.
func (cdb *CrawlDB) GetRun(ctx context.Context, id int64) (*model.SiteMap, error) {
	query := `
	SELECT sitemap_json FROM runs
	WHERE id = ?
	`
	return cdb.querySiteMap(ctx, query, id)
}

// GetLatestRun retrieves the most recent site map for domain. It returns
// nil when the domain was never crawled.
func (cdb *CrawlDB) GetLatestRun(ctx context.Context, domain string) (*model.SiteMap, error) {
	query := `
	SELECT sitemap_json FROM runs
	WHERE domain = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT 1
	`
	return cdb.querySiteMap(ctx, query, domain)
}

func (cdb *CrawlDB) querySiteMap(ctx context.Context, query string, arg any) (*model.SiteMap, error) {
	var sitemapJSON string
	err := cdb.db.QueryRowContext(ctx, query, arg).Scan(&sitemapJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var sm model.SiteMap
	if err := json.Unmarshal([]byte(sitemapJSON), &sm); err != nil {
		return nil, fmt.Errorf("failed to parse site map: %w", err)
	}
	return &sm, nil
}

// RunMetadata contains summary information about a saved run.
// It is used for listing runs without loading the full site map.
type RunMetadata struct {
	// ID is the unique identifier of the run in the database.
	ID int64

	// RootURL is the seed of the run.
	RootURL string

	// Domain is the crawled domain.
	Domain string

	// State is the final crawler state ("finished" or "stopped").
	State string

	// Pages is the number of page records in the site map.
	Pages int

	// Errors is the per-URL error count.
	Errors int

	// Timestamp is when the run was saved.
	Timestamp time.Time
}

// ListRuns returns metadata of the saved runs for domain, or of every run
// when domain is empty, newest first.
func (cdb *CrawlDB) ListRuns(ctx context.Context, domain string) ([]RunMetadata, error) {
	query := `
	SELECT id, root_url, domain, state, pages, errors, timestamp
	FROM runs
	WHERE 1=1
	`
	args := make([]any, 0, 1)

	if domain != "" {
		query += " AND domain = ?"
		args = append(args, domain)
	}
	query += " ORDER BY timestamp DESC, id DESC"

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var results []RunMetadata
	for rows.Next() {
		var meta RunMetadata
		var timestamp string

		if err := rows.Scan(&meta.ID, &meta.RootURL, &meta.Domain, &meta.State, &meta.Pages, &meta.Errors, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		meta.Timestamp = parseTimestamp(timestamp)
		results = append(results, meta)
	}

	return results, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	sqliteTimeFormat,
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999",
}

// parseTimestamp tries every known layout and returns the zero time when
// none matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
