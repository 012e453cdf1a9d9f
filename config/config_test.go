package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SHELFSCAN_CONFIG", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "rod", cfg.Browser.Engine)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, "https://www.amazon.com", cfg.Search.SiteBase)
	assert.Equal(t, "laptop", cfg.Search.DefaultQuery)
	assert.Equal(t, 30*time.Second, cfg.Search.NavigationTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Search.QuietWindow)
	assert.Equal(t, 2, cfg.Search.MaxInflight)
	assert.Equal(t, `.s-result-item[role="listitem"]`, cfg.Search.Selectors.Item)
	assert.False(t, cfg.Auth.Enabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SHELFSCAN_ENGINE", "chromedp")
	t.Setenv("SHELFSCAN_SITE_BASE", "https://shop.example.com/")
	t.Setenv("SHELFSCAN_NAV_TIMEOUT", "5s")
	t.Setenv("SHELFSCAN_BLOCKED_RESOURCES", "Font, Media")
	t.Setenv("SHELFSCAN_MAX_SESSIONS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "chromedp", cfg.Browser.Engine)
	assert.Equal(t, "https://shop.example.com", cfg.Search.SiteBase)
	assert.Equal(t, 5*time.Second, cfg.Search.NavigationTimeout)
	assert.Equal(t, []string{"Font", "Media"}, cfg.Browser.BlockedResourceTypes)
	assert.Equal(t, 4, cfg.Browser.MaxSessions, "unparsable values keep the fallback")
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shelfscan.yaml")
	yml := `
browser:
  engine: http
search:
  site_base: https://fixture.test
  quiet_window: 250ms
  selectors:
    title: "h2"
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))
	t.Setenv("SHELFSCAN_CONFIG", path)
	t.Setenv("SHELFSCAN_ENGINE", "rod")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "rod", cfg.Browser.Engine, "env wins over file")
	assert.Equal(t, "https://fixture.test", cfg.Search.SiteBase)
	assert.Equal(t, 250*time.Millisecond, cfg.Search.QuietWindow)
	assert.Equal(t, "h2", cfg.Search.Selectors.Title)
	assert.Equal(t, ".a-price span", cfg.Search.Selectors.Price, "selectors missing from the file keep defaults")
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("SHELFSCAN_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"unknown engine", func(c *Config) { c.Browser.Engine = "lynx" }, "browser.engine"},
		{"relative site base", func(c *Config) { c.Search.SiteBase = "/shop" }, "search.site_base"},
		{"zero timeout", func(c *Config) { c.Search.NavigationTimeout = 0 }, "search.navigation_timeout"},
		{"no sessions", func(c *Config) { c.Browser.MaxSessions = 0 }, "browser.max_sessions"},
		{"auth without keys", func(c *Config) { c.Auth.Enabled = true }, "auth.api_keys"},
		{"missing item selector", func(c *Config) { c.Search.Selectors.Item = "" }, "search.selectors.item: selector is required"},
		{"bad title selector", func(c *Config) { c.Search.Selectors.Title = "h2[" }, "search.selectors.title: invalid selector"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
