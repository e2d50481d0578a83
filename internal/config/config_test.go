package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestNewConfig verifies the documented defaults.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default Workers is sequential", func(t *testing.T) {
		t.Parallel()
		if cfg.Workers != 0 {
			t.Errorf("expected Workers to be 0, got %d", cfg.Workers)
		}
	})

	t.Run("default BasePath is /wiki", func(t *testing.T) {
		t.Parallel()
		if cfg.BasePath != "/wiki" {
			t.Errorf("expected BasePath to be '/wiki', got %q", cfg.BasePath)
		}
	})

	t.Run("default Output is crawl_log.txt", func(t *testing.T) {
		t.Parallel()
		if cfg.Output != "crawl_log.txt" {
			t.Errorf("expected Output to be 'crawl_log.txt', got %q", cfg.Output)
		}
	})

	t.Run("default Timeout is disabled", func(t *testing.T) {
		t.Parallel()
		if cfg.Timeout != 0 {
			t.Errorf("expected Timeout to be 0, got %v", cfg.Timeout)
		}
	})

	t.Run("default TorStartupTimeout is 3 minutes", func(t *testing.T) {
		t.Parallel()
		if cfg.TorStartupTimeout != 3*time.Minute {
			t.Errorf("expected TorStartupTimeout to be 3m, got %v", cfg.TorStartupTimeout)
		}
	})

	t.Run("default SummaryFormat is text", func(t *testing.T) {
		t.Parallel()
		if cfg.SummaryFormat != SummaryText {
			t.Errorf("expected SummaryFormat to be text, got %q", cfg.SummaryFormat)
		}
	})

	t.Run("default DBDir is the XDG data dir", func(t *testing.T) {
		t.Parallel()
		if cfg.DBDir != XDGDataDir() {
			t.Errorf("expected DBDir %q, got %q", XDGDataDir(), cfg.DBDir)
		}
	})
}

// TestConfigValidate tests each validation rule.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	validConfig := func() *Config {
		cfg := NewConfig()
		cfg.Seed = "https://en.wikipedia.org/wiki/Potato"
		return cfg
	}

	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{name: "valid config", modify: func(*Config) {}, want: nil},
		{name: "pool mode is valid", modify: func(c *Config) { c.Workers = 30 }, want: nil},
		{name: "stdout output is valid", modify: func(c *Config) { c.Output = StdoutOutput }, want: nil},
		{name: "empty seed", modify: func(c *Config) { c.Seed = "" }, want: ErrNoSeed},
		{name: "relative seed", modify: func(c *Config) { c.Seed = "/wiki/Potato" }, want: ErrInvalidSeed},
		{name: "ftp seed", modify: func(c *Config) { c.Seed = "ftp://example.com/wiki/A" }, want: ErrInvalidSeed},
		{name: "negative workers", modify: func(c *Config) { c.Workers = -1 }, want: ErrInvalidWorkers},
		{name: "negative timeout", modify: func(c *Config) { c.Timeout = -time.Second }, want: ErrInvalidTimeout},
		{name: "negative body size", modify: func(c *Config) { c.MaxBodySize = -1 }, want: ErrInvalidMaxBodySize},
		{name: "empty output", modify: func(c *Config) { c.Output = "" }, want: ErrEmptyOutput},
		{
			name: "proxy and tor",
			modify: func(c *Config) {
				c.UseTor = true
				c.ProxyAddress = "127.0.0.1:9050"
			},
			want: ErrConflictingTransports,
		},
		{name: "unknown summary format", modify: func(c *Config) { c.SummaryFormat = "xml" }, want: ErrInvalidSummaryFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

// TestConfigOrigin tests origin and host derivation from the seed.
func TestConfigOrigin(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	cfg.Seed = "https://en.wikipedia.org/wiki/United_States?x=1#top"
	if got := cfg.Origin(); got != "https://en.wikipedia.org" {
		t.Errorf("expected origin 'https://en.wikipedia.org', got %q", got)
	}
	if got := cfg.Host(); got != "en.wikipedia.org" {
		t.Errorf("expected host 'en.wikipedia.org', got %q", got)
	}

	cfg.Seed = "not a url"
	if cfg.Origin() != "" || cfg.Host() != "" {
		t.Error("expected empty origin and host for invalid seed")
	}
}

func intPtr(n int) *int { return &n }

// TestFileGetSiteConfig tests merging of defaults and site entries.
func TestFileGetSiteConfig(t *testing.T) {
	t.Parallel()

	file := &File{
		Defaults: SiteConfig{
			BasePath: "/docs",
			Headers:  map[string]string{"X-Default": "1"},
		},
		Sites: map[string]SiteConfig{
			"en.wikipedia.org": {
				BasePath: "/wiki",
				Workers:  intPtr(0),
				Cookie:   "session=abc",
				Headers:  map[string]string{"X-Site": "2"},
			},
		},
	}

	t.Run("returns defaults when site not found", func(t *testing.T) {
		t.Parallel()

		sc := file.GetSiteConfig("unknown.example")
		if sc.BasePath != "/docs" {
			t.Errorf("expected default base path, got %q", sc.BasePath)
		}
		if sc.Workers != nil {
			t.Errorf("expected no workers override, got %d", *sc.Workers)
		}
	})

	t.Run("site entry overrides defaults", func(t *testing.T) {
		t.Parallel()

		sc := file.GetSiteConfig("en.wikipedia.org")
		if sc.BasePath != "/wiki" {
			t.Errorf("expected /wiki, got %q", sc.BasePath)
		}
		if sc.Workers == nil || *sc.Workers != 0 {
			t.Error("expected explicit zero workers")
		}
		if sc.Cookie != "session=abc" {
			t.Errorf("expected cookie, got %q", sc.Cookie)
		}
		if sc.Headers["X-Default"] != "1" || sc.Headers["X-Site"] != "2" {
			t.Errorf("expected merged headers, got %v", sc.Headers)
		}
	})

	t.Run("merging does not mutate defaults", func(t *testing.T) {
		t.Parallel()

		_ = file.GetSiteConfig("en.wikipedia.org")
		if _, ok := file.Defaults.Headers["X-Site"]; ok {
			t.Error("expected defaults to be left untouched")
		}
	})
}

// TestConfigApplySite tests that explicit flags win over the site file.
func TestConfigApplySite(t *testing.T) {
	t.Parallel()

	sc := SiteConfig{
		BasePath:  "/docs",
		Workers:   intPtr(8),
		UserAgent: "custom/1.0",
		Cookie:    "a=b",
		Headers:   map[string]string{"X-Test": "yes"},
	}

	t.Run("applies everything when nothing is explicit", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.ApplySite(sc, nil)
		if cfg.BasePath != "/docs" || cfg.Workers != 8 || cfg.UserAgent != "custom/1.0" {
			t.Errorf("unexpected config: %+v", cfg)
		}
		if cfg.Cookie != "a=b" || cfg.Headers["X-Test"] != "yes" {
			t.Errorf("unexpected cookie or headers: %q %v", cfg.Cookie, cfg.Headers)
		}
	})

	t.Run("explicit settings are kept", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.Workers = 2
		cfg.ApplySite(sc, func(name string) bool { return name == "workers" })
		if cfg.Workers != 2 {
			t.Errorf("expected explicit workers to be kept, got %d", cfg.Workers)
		}
		if cfg.BasePath != "/docs" {
			t.Errorf("expected base path from site file, got %q", cfg.BasePath)
		}
	})
}

// TestLoadConfigFile tests YAML parsing.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("parses sites and defaults", func(t *testing.T) {
		t.Parallel()

		content := `defaults:
  userAgent: "test-agent"
sites:
  en.wikipedia.org:
    basePath: /wiki
    workers: 30
    headers:
      Accept-Language: en
`
		path := filepath.Join(t.TempDir(), ".sitegraph")
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		cf, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cf.Defaults.UserAgent != "test-agent" {
			t.Errorf("expected default user agent, got %q", cf.Defaults.UserAgent)
		}
		site := cf.Sites["en.wikipedia.org"]
		if site.BasePath != "/wiki" || site.Workers == nil || *site.Workers != 30 {
			t.Errorf("unexpected site config: %+v", site)
		}
		if site.Headers["Accept-Language"] != "en" {
			t.Errorf("expected header, got %v", site.Headers)
		}
	})

	t.Run("missing file returns ErrConfigNotFound", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("empty file yields empty sites map", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), ".sitegraph")
		if err := os.WriteFile(path, nil, 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}
		cf, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cf.Sites == nil {
			t.Error("expected non-nil sites map")
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), ".sitegraph")
		if err := os.WriteFile(path, []byte("sites: [unclosed"), 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}
		if _, err := LoadConfigFile(path); err == nil {
			t.Error("expected parse error")
		}
	})
}

// TestFindConfigFile tests the explicit-path branch of the search.
func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("explicit existing path", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(path, []byte("defaults: {}"), 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}
		if got := FindConfigFile(path); got != path {
			t.Errorf("expected %q, got %q", path, got)
		}
	})

	t.Run("explicit missing path does not fall back", func(t *testing.T) {
		t.Parallel()

		if got := FindConfigFile(filepath.Join(t.TempDir(), "missing.yaml")); got != "" {
			t.Errorf("expected empty result, got %q", got)
		}
	})
}

// TestXDGDirs tests the XDG directory helpers.
func TestXDGDirs(t *testing.T) {
	t.Parallel()

	for _, dir := range []string{XDGDataDir(), XDGConfigDir()} {
		if !strings.HasSuffix(dir, AppName) {
			t.Errorf("expected %q to end with %q", dir, AppName)
		}
	}
}
