package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/sitecrawler/internal/model"
)

// TestNewConfig documents the defaults.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default delay is one second", func(t *testing.T) {
		t.Parallel()
		if cfg.Delay != time.Second {
			t.Errorf("expected Delay to be 1s, got %v", cfg.Delay)
		}
	})

	t.Run("default pool is ten workers with batches of twenty", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxWorkers != 10 {
			t.Errorf("expected MaxWorkers to be 10, got %d", cfg.MaxWorkers)
		}
		if cfg.BatchSize() != 20 {
			t.Errorf("expected BatchSize() to be 20, got %d", cfg.BatchSize())
		}
	})

	t.Run("page cap is unlimited", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxPages != 0 {
			t.Errorf("expected MaxPages to be 0, got %d", cfg.MaxPages)
		}
	})

	t.Run("robots and all contact matchers are enabled", func(t *testing.T) {
		t.Parallel()
		if !cfg.RespectRobots || !cfg.ExtractEmails || !cfg.ExtractPhones || !cfg.ExtractSocialLinks {
			t.Errorf("expected robots and extraction toggles to be on, got %+v", cfg.RunConfig())
		}
	})

	t.Run("three fallback user agents", func(t *testing.T) {
		t.Parallel()
		if len(cfg.FallbackUserAgents) != 3 {
			t.Errorf("expected 3 fallback user agents, got %d", len(cfg.FallbackUserAgents))
		}
	})
}

// TestConfigValidate covers one rule per case.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	validConfig := func() *Config {
		cfg := NewConfig()
		cfg.Seeds = []string{"https://x.test/"}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid config", func(*Config) {}, nil},
		{"no seed", func(c *Config) { c.Seeds = nil }, ErrNoSeed},
		{"relative seed", func(c *Config) { c.Seeds = []string{"/about"} }, ErrInvalidSeed},
		{"ftp seed", func(c *Config) { c.Seeds = []string{"ftp://x.test/"} }, ErrInvalidSeed},
		{"zero workers", func(c *Config) { c.MaxWorkers = 0 }, ErrInvalidWorkers},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, ErrInvalidTimeout},
		{"negative delay", func(c *Config) { c.Delay = -time.Second }, ErrInvalidDelay},
		{"zero delay is allowed", func(c *Config) { c.Delay = 0 }, nil},
		{"negative max pages", func(c *Config) { c.MaxPages = -1 }, ErrInvalidMaxPages},
		{"zero batch factor", func(c *Config) { c.BatchFactor = 0 }, ErrInvalidBatchFactor},
		{"negative body size", func(c *Config) { c.MaxBodySize = -1 }, ErrInvalidMaxBodySize},
		{"zero parallel", func(c *Config) { c.Parallel = 0 }, ErrInvalidParallel},
		{"json and markdown", func(c *Config) { c.JSONReport, c.MarkdownReport = true, true }, ErrConflictingReportFormats},
		{"proxy and embedded tor", func(c *Config) { c.ProxyAddress, c.EmbeddedTor = "127.0.0.1:9050", true }, ErrConflictingProxy},
		{"renderer and proxy", func(c *Config) { c.UseRenderer, c.ProxyAddress = true, "127.0.0.1:9050" }, ErrRendererWithProxy},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, ErrInvalidLogFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected nil, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			var cfgErr *model.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Errorf("expected *model.ConfigurationError, got %T", err)
			}
		})
	}
}

func TestConfig_RunConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	cfg.Delay = 1500 * time.Millisecond
	cfg.MaxPages = 5
	cfg.UseRenderer = true

	rc := cfg.RunConfig()
	if rc.DelaySeconds != 1.5 {
		t.Errorf("expected DelaySeconds 1.5, got %v", rc.DelaySeconds)
	}
	if rc.MaxPages != 5 || !rc.UseRenderer {
		t.Errorf("unexpected snapshot: %+v", rc)
	}
}

func TestFileGetSiteConfig(t *testing.T) {
	t.Parallel()

	cf := &File{
		Defaults: SiteConfig{
			Cookie:  "default=1",
			Headers: map[string]string{"X-Default": "yes"},
			Delay:   2 * time.Second,
		},
		Sites: map[string]SiteConfig{
			"x.test": {
				Cookie:         "session=abc",
				Headers:        map[string]string{"Authorization": "Bearer t"},
				MaxPages:       50,
				IgnorePatterns: []string{"/private/*"},
			},
		},
	}

	t.Run("site overrides defaults", func(t *testing.T) {
		t.Parallel()

		got := cf.GetSiteConfig("X.TEST")
		if got.Cookie != "session=abc" {
			t.Errorf("expected site cookie, got %q", got.Cookie)
		}
		if got.Delay != 2*time.Second {
			t.Errorf("expected default delay to survive, got %v", got.Delay)
		}
		if got.Headers["X-Default"] != "yes" || got.Headers["Authorization"] != "Bearer t" {
			t.Errorf("expected merged headers, got %v", got.Headers)
		}
		if got.MaxPages != 50 {
			t.Errorf("expected MaxPages 50, got %d", got.MaxPages)
		}
	})

	t.Run("merging does not mutate defaults", func(t *testing.T) {
		t.Parallel()

		_ = cf.GetSiteConfig("x.test")
		if _, ok := cf.Defaults.Headers["Authorization"]; ok {
			t.Error("defaults headers were mutated")
		}
	})

	t.Run("unknown site gets defaults", func(t *testing.T) {
		t.Parallel()

		got := cf.GetSiteConfig("other.test")
		if got.Cookie != "default=1" {
			t.Errorf("expected default cookie, got %q", got.Cookie)
		}
	})
}

func TestConfig_ForSeed(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	cfg.Seeds = []string{"https://x.test/", "https://y.test/"}
	cfg.IgnorePatterns = []string{"*.pdf"}
	cfg.SiteConfigs = &File{
		Sites: map[string]SiteConfig{
			"x.test": {MaxPages: 7, IgnorePatterns: []string{"/private/*"}, UserAgent: "custom"},
		},
	}

	x := cfg.ForSeed("https://x.test/")
	if len(x.Seeds) != 1 || x.Seeds[0] != "https://x.test/" {
		t.Errorf("expected single seed, got %v", x.Seeds)
	}
	if x.MaxPages != 7 || x.UserAgent != "custom" {
		t.Errorf("expected site overrides, got MaxPages=%d UserAgent=%q", x.MaxPages, x.UserAgent)
	}
	if len(x.IgnorePatterns) != 2 {
		t.Errorf("expected 2 ignore patterns, got %v", x.IgnorePatterns)
	}

	y := cfg.ForSeed("https://y.test/")
	if y.MaxPages != 0 || y.UserAgent != DefaultUserAgent {
		t.Errorf("expected global settings for y.test, got MaxPages=%d UserAgent=%q", y.MaxPages, y.UserAgent)
	}
	if len(cfg.IgnorePatterns) != 1 {
		t.Error("ForSeed mutated the base config")
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile("/nonexistent/path/.sitecrawler")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cfg != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".sitecrawler")
		content := `defaults:
  delay: 500ms
  userAgent: "bot/1.0"
sites:
  x.test:
    maxPages: 20
    cookie: "session=xyz"
    headers:
      Authorization: "Bearer token"
    ignorePatterns:
      - "/admin/*"
    followPatterns:
      - "/docs/*"
`
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cf, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cf.Defaults.Delay != 500*time.Millisecond {
			t.Errorf("expected default delay 500ms, got %v", cf.Defaults.Delay)
		}
		site, ok := cf.Sites["x.test"]
		if !ok {
			t.Fatal("expected x.test in sites")
		}
		if site.MaxPages != 20 {
			t.Errorf("expected maxPages 20, got %d", site.MaxPages)
		}
		if site.Headers["Authorization"] != "Bearer token" {
			t.Error("expected Authorization header")
		}
		if len(site.FollowPatterns) != 1 {
			t.Errorf("expected 1 follow pattern, got %d", len(site.FollowPatterns))
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".sitecrawler")
		if err := os.WriteFile(configPath, []byte(`invalid: yaml: content: [}`), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		if _, err := LoadConfigFile(configPath); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("initializes nil Sites map", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".sitecrawler")
		if err := os.WriteFile(configPath, []byte("defaults:\n  maxPages: 3\n"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		cf, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cf.Sites == nil {
			t.Error("expected Sites map to be initialized")
		}
	})
}

func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns explicit path if exists", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(configPath, []byte("defaults: {}"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		if got := FindConfigFile(configPath); got != configPath {
			t.Errorf("expected %q, got %q", configPath, got)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		t.Parallel()

		if got := FindConfigFile("/nonexistent/path/config.yaml"); got != "" {
			t.Errorf("expected empty string, got %q", got)
		}
	})
}

func TestXDGDirs(t *testing.T) {
	t.Parallel()

	if filepath.Base(XDGDataDir()) != AppName {
		t.Errorf("expected data dir to end with %s, got %s", AppName, XDGDataDir())
	}
	if filepath.Base(XDGConfigDir()) != AppName {
		t.Errorf("expected config dir to end with %s, got %s", AppName, XDGConfigDir())
	}
}
