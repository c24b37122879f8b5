package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/sitecrawler/internal/config"
	"github.com/nao1215/sitecrawler/internal/model"
	"github.com/nao1215/sitecrawler/internal/report"
)

// newTestSite serves a small site with two pages, a PDF link and contact data.
func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, `<html><head><title>Home</title></head><body>
<a href="/contact">Contact</a>
<a href="/files/brochure.pdf">Brochure</a>
<a href="https://github.com/example">GitHub</a>
</body></html>`)
		case "/contact":
			fmt.Fprint(w, `<html><head><title>Contact</title></head><body>
<p>Write to <a href="mailto:hello@example.com">hello@example.com</a></p>
<a href="/">Home</a>
</body></html>`)
		default:
			http.NotFound(w, r)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	if err != nil {
		t.Logf("stderr: %s", stderr.String())
	}
	return stdout.String(), err
}

// TestBuildCrawlConfig tests flag parsing.
func TestBuildCrawlConfig(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags([]string{"--config", ""}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}
		cfg, err := buildCrawlConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.Delay != config.DefaultDelay || cfg.MaxWorkers != config.DefaultMaxWorkers {
			t.Errorf("unexpected pacing defaults: delay=%v workers=%d", cfg.Delay, cfg.MaxWorkers)
		}
		if !cfg.RespectRobots || !cfg.ExtractEmails || !cfg.ExtractPhones || !cfg.ExtractSocialLinks {
			t.Error("expected robots and extraction enabled by default")
		}
		if !cfg.SaveRun || cfg.SaveRawPages {
			t.Error("expected runs saved and raw pages not saved by default")
		}
		if len(cfg.Seeds) != 1 || cfg.Seeds[0] != "https://example.com" {
			t.Errorf("unexpected seeds %v", cfg.Seeds)
		}
	})

	t.Run("flags override defaults", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		err := cmd.ParseFlags([]string{
			"--delay", "250ms",
			"-w", "3",
			"-p", "40",
			"--no-robots",
			"--no-emails",
			"--no-social",
			"--render",
			"--include-subdomains",
			"--ignore", "/a/*,/b/*",
			"-H", "X-Token: abc",
			"--save-raw",
			"--no-save",
			"--parallel", "4",
		})
		if err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}
		cfg, err := buildCrawlConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.Delay != 250*time.Millisecond || cfg.MaxWorkers != 3 || cfg.MaxPages != 40 {
			t.Errorf("unexpected limits: %+v", cfg)
		}
		if cfg.RespectRobots || cfg.ExtractEmails || cfg.ExtractSocialLinks || !cfg.ExtractPhones {
			t.Error("unexpected toggles")
		}
		if !cfg.UseRenderer || !cfg.IncludeSubdomains {
			t.Error("expected renderer and subdomains enabled")
		}
		if len(cfg.IgnorePatterns) != 2 {
			t.Errorf("expected two ignore patterns, got %v", cfg.IgnorePatterns)
		}
		if cfg.Headers["X-Token"] != "abc" {
			t.Errorf("unexpected headers %v", cfg.Headers)
		}
		if !cfg.SaveRawPages || cfg.SaveRun || cfg.Parallel != 4 {
			t.Error("unexpected storage settings")
		}
	})

	t.Run("explicit missing config file is an error", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		missing := filepath.Join(t.TempDir(), "missing.yaml")
		if err := cmd.ParseFlags([]string{"-c", missing}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}
		if _, err := buildCrawlConfig(cmd, []string{"https://example.com"}); err == nil {
			t.Error("expected error for missing config file")
		}
	})
}

func TestParseHeaders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   []string
		want    map[string]string
		wantErr bool
	}{
		{name: "none", input: nil, want: nil},
		{name: "trims whitespace", input: []string{" Accept-Language :  en "}, want: map[string]string{"Accept-Language": "en"}},
		{name: "value with colon", input: []string{"Referer: https://example.com/"}, want: map[string]string{"Referer": "https://example.com/"}},
		{name: "missing colon", input: []string{"broken"}, wantErr: true},
		{name: "empty name", input: []string{": value"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseHeaders(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseHeaders() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parseHeaders() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("header %q = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestPerSitePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		path  string
		multi bool
		want  string
	}{
		{name: "single site unchanged", path: "out/files.csv", multi: false, want: "out/files.csv"},
		{name: "multi site gets placeholder", path: "out/files.csv", multi: true, want: "out/files-{domain}.csv"},
		{name: "existing placeholder kept", path: "{domain}/sitemap.xml", multi: true, want: "{domain}/sitemap.xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := perSitePath(tt.path, tt.multi); got != tt.want {
				t.Errorf("perSitePath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCrawlCmd_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "no seed", args: []string{"crawl", "-c", ""}, want: "no seed"},
		{name: "relative seed", args: []string{"crawl", "example.com/path"}, want: "seed"},
		{name: "conflicting formats", args: []string{"crawl", "--json", "--markdown", "https://example.com"}, want: "conflicting report formats"},
		{name: "conflicting proxy", args: []string{"crawl", "--proxy", "127.0.0.1:9050", "--embedded-tor", "https://example.com"}, want: "conflicting proxy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := execute(t, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

// TestCrawlExportPages crawls a local site, then exports the saved run and
// lists the stored pages.
func TestCrawlExportPages(t *testing.T) {
	t.Parallel()

	srv := newTestSite(t)
	dbDir := t.TempDir()
	outDir := t.TempDir()
	csvPath := filepath.Join(outDir, "files.csv")
	sitemapPath := filepath.Join(outDir, "sitemap.xml")

	stdout, err := execute(t, "crawl",
		"--db-dir", dbDir,
		"--delay", "0",
		"-w", "2",
		"--no-robots",
		"--save-raw",
		"--json",
		"--csv", csvPath,
		"--sitemap", sitemapPath,
		srv.URL,
	)
	if err != nil {
		t.Fatalf("crawl failed: %v", err)
	}

	var rep report.JSONReport
	if err := json.Unmarshal([]byte(stdout), &rep); err != nil {
		t.Fatalf("crawl output is not a JSON report: %v\n%s", err, stdout)
	}
	sm := rep.SiteMap
	if sm == nil {
		t.Fatal("expected site map in report")
	}
	if sm.State != "finished" {
		t.Errorf("expected finished state, got %q", sm.State)
	}
	if len(sm.Pages) != 2 {
		t.Errorf("expected 2 pages, got %d", len(sm.Pages))
	}
	if got := sm.Resources[model.CategoryDocuments]; len(got) != 1 || !strings.HasSuffix(got[0], "/files/brochure.pdf") {
		t.Errorf("expected brochure in documents, got %v", got)
	}
	if len(sm.Data.Emails) != 1 || sm.Data.Emails[0] != "hello@example.com" {
		t.Errorf("expected extracted email, got %v", sm.Data.Emails)
	}

	csvData, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatalf("expected csv export: %v", err)
	}
	if !strings.Contains(string(csvData), "documents,") {
		t.Errorf("unexpected csv %q", csvData)
	}
	sitemapData, err := os.ReadFile(sitemapPath)
	if err != nil {
		t.Fatalf("expected sitemap export: %v", err)
	}
	if strings.Count(string(sitemapData), "<loc>") != 2 {
		t.Errorf("expected two sitemap entries, got %q", sitemapData)
	}

	t.Run("export lists runs", func(t *testing.T) {
		out, err := execute(t, "export", "--list", "--db-dir", dbDir)
		if err != nil {
			t.Fatalf("export --list failed: %v", err)
		}
		if !strings.Contains(out, "127.0.0.1") || !strings.Contains(out, "finished") {
			t.Errorf("unexpected run list %q", out)
		}
	})

	t.Run("export run as sitemap", func(t *testing.T) {
		out, err := execute(t, "export", "--run", "1", "--format", "sitemap", "--db-dir", dbDir)
		if err != nil {
			t.Fatalf("export failed: %v", err)
		}
		if out != string(sitemapData) {
			t.Errorf("exported sitemap differs from crawl output:\n%s\nvs\n%s", out, sitemapData)
		}
	})

	t.Run("export latest as csv", func(t *testing.T) {
		out, err := execute(t, "export", "--latest", sm.Domain, "--format", "csv", "--db-dir", dbDir)
		if err != nil {
			t.Fatalf("export failed: %v", err)
		}
		if out != string(csvData) {
			t.Errorf("exported csv differs from crawl output")
		}
	})

	t.Run("export unknown format", func(t *testing.T) {
		if _, err := execute(t, "export", "--run", "1", "--format", "pdf", "--db-dir", dbDir); err == nil {
			t.Error("expected error for unknown format")
		}
	})

	t.Run("pages lists stored bodies", func(t *testing.T) {
		out, err := execute(t, "pages", "--db-dir", dbDir)
		if err != nil {
			t.Fatalf("pages failed: %v", err)
		}
		if !strings.Contains(out, srv.URL+"/contact") {
			t.Errorf("expected contact page in %q", out)
		}
	})

	t.Run("pages prints one body", func(t *testing.T) {
		out, err := execute(t, "pages", "--url", srv.URL+"/contact", "--db-dir", dbDir)
		if err != nil {
			t.Fatalf("pages --url failed: %v", err)
		}
		if !strings.Contains(out, "hello@example.com") {
			t.Errorf("expected stored body, got %q", out)
		}
	})
}

func TestExportCmd_RequiresSelection(t *testing.T) {
	t.Parallel()

	_, err := execute(t, "export", "--db-dir", t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "--run") {
		t.Errorf("expected selection error, got %v", err)
	}
}
