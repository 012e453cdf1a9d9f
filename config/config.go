package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/use-agent/shelfscan/models"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Browser   BrowserConfig   `yaml:"browser"`
	Search    SearchConfig    `yaml:"search"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string `yaml:"host"` // default: "0.0.0.0"
	Port int    `yaml:"port"` // default: 8080
	Mode string `yaml:"mode"` // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls how rendering sessions are started.
type BrowserConfig struct {
	// Engine selects the renderer: "rod", "chromedp" or "http".
	Engine string `yaml:"engine"` // default: "rod"

	// Headless controls whether the browser runs headless.
	Headless bool `yaml:"headless"` // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool `yaml:"no_sandbox"` // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string `yaml:"browser_bin"`

	// DefaultProxy is the proxy URL used for every session.
	DefaultProxy string `yaml:"proxy"`

	// Stealth injects the go-rod/stealth evasions before navigation (rod only).
	Stealth bool `yaml:"stealth"` // default: false

	// UserAgent overrides the browser user agent when set.
	UserAgent string `yaml:"user_agent"`

	// MaxSessions caps concurrently running browser sessions.
	MaxSessions int `yaml:"max_sessions"` // default: 4

	// BlockedResourceTypes lists resource types to block (rod only).
	// default: none
	BlockedResourceTypes []string `yaml:"blocked_resource_types"`
}

// SearchConfig controls URL construction and the navigation wait policy.
type SearchConfig struct {
	// SiteBase is the storefront origin, without trailing slash.
	SiteBase string `yaml:"site_base"` // default: "https://www.amazon.com"

	// DefaultQuery is searched when the request has no query.
	DefaultQuery string `yaml:"default_query"` // default: "laptop"

	// NavigationTimeout bounds navigation plus the network-idle wait.
	NavigationTimeout time.Duration `yaml:"navigation_timeout"` // default: 30s

	// QuietWindow is how long the network must stay idle.
	QuietWindow time.Duration `yaml:"quiet_window"` // default: 500ms

	// MaxInflight is the number of in-flight requests still considered idle.
	MaxInflight int `yaml:"max_inflight"` // default: 2

	// Selectors locate result items and their fields.
	Selectors models.Selectors `yaml:"selectors"`
}

// AuthConfig controls API key authentication of this service's own API.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool `yaml:"enabled"` // default: false

	// APIKeys is the list of valid API keys.
	APIKeys []string `yaml:"api_keys"`
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key or client IP.
	RequestsPerSecond float64 `yaml:"rps"` // default: 2

	// Burst is the maximum burst size per identity.
	Burst int `yaml:"burst"` // default: 4
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // default: "info"
	Format string `yaml:"format"` // "json" or "text"; default: "json"
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Defaults returns the configuration used when nothing is overridden.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Mode: "release",
		},
		Browser: BrowserConfig{
			Engine:      "rod",
			Headless:    true,
			MaxSessions: 4,
		},
		Search: SearchConfig{
			SiteBase:          "https://www.amazon.com",
			DefaultQuery:      models.DefaultQuery,
			NavigationTimeout: 30 * time.Second,
			QuietWindow:       500 * time.Millisecond,
			MaxInflight:       2,
			Selectors:         models.DefaultSelectors(),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 2,
			Burst:             4,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load builds the configuration from defaults, then the optional YAML file
// named by SHELFSCAN_CONFIG, then environment variables.
func Load() (*Config, error) {
	cfg := Defaults()
	if path := os.Getenv("SHELFSCAN_CONFIG"); path != "" {
		if err := cfg.MergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MergeFile overlays the YAML file at path onto cfg. Keys absent from the
// file keep their current values.
func (c *Config) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Host = envOr("SHELFSCAN_HOST", c.Server.Host)
	c.Server.Port = envIntOr("SHELFSCAN_PORT", c.Server.Port)
	c.Server.Mode = envOr("SHELFSCAN_MODE", c.Server.Mode)

	c.Browser.Engine = envOr("SHELFSCAN_ENGINE", c.Browser.Engine)
	c.Browser.Headless = envBoolOr("SHELFSCAN_HEADLESS", c.Browser.Headless)
	c.Browser.NoSandbox = envBoolOr("SHELFSCAN_NO_SANDBOX", c.Browser.NoSandbox)
	c.Browser.BrowserBin = envOr("SHELFSCAN_BROWSER_BIN", c.Browser.BrowserBin)
	c.Browser.DefaultProxy = envOr("SHELFSCAN_PROXY", c.Browser.DefaultProxy)
	c.Browser.Stealth = envBoolOr("SHELFSCAN_STEALTH", c.Browser.Stealth)
	c.Browser.UserAgent = envOr("SHELFSCAN_USER_AGENT", c.Browser.UserAgent)
	c.Browser.MaxSessions = envIntOr("SHELFSCAN_MAX_SESSIONS", c.Browser.MaxSessions)
	c.Browser.BlockedResourceTypes = envSliceOr("SHELFSCAN_BLOCKED_RESOURCES", c.Browser.BlockedResourceTypes)

	c.Search.SiteBase = strings.TrimRight(envOr("SHELFSCAN_SITE_BASE", c.Search.SiteBase), "/")
	c.Search.DefaultQuery = envOr("SHELFSCAN_DEFAULT_QUERY", c.Search.DefaultQuery)
	c.Search.NavigationTimeout = envDurationOr("SHELFSCAN_NAV_TIMEOUT", c.Search.NavigationTimeout)
	c.Search.QuietWindow = envDurationOr("SHELFSCAN_QUIET_WINDOW", c.Search.QuietWindow)
	c.Search.MaxInflight = envIntOr("SHELFSCAN_MAX_INFLIGHT", c.Search.MaxInflight)

	c.Auth.Enabled = envBoolOr("SHELFSCAN_AUTH_ENABLED", c.Auth.Enabled)
	c.Auth.APIKeys = envSliceOr("SHELFSCAN_API_KEYS", c.Auth.APIKeys)

	c.RateLimit.RequestsPerSecond = envFloatOr("SHELFSCAN_RATE_RPS", c.RateLimit.RequestsPerSecond)
	c.RateLimit.Burst = envIntOr("SHELFSCAN_RATE_BURST", c.RateLimit.Burst)

	c.Log.Level = envOr("SHELFSCAN_LOG_LEVEL", c.Log.Level)
	c.Log.Format = envOr("SHELFSCAN_LOG_FORMAT", c.Log.Format)

	c.Metrics.Enabled = envBoolOr("SHELFSCAN_METRICS", c.Metrics.Enabled)
	c.Metrics.Path = envOr("SHELFSCAN_METRICS_PATH", c.Metrics.Path)
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Browser.Engine {
	case "rod", "chromedp", "http":
	default:
		errs = append(errs, fmt.Errorf("browser.engine: unknown engine %q", c.Browser.Engine))
	}
	if c.Browser.MaxSessions < 1 {
		errs = append(errs, errors.New("browser.max_sessions: must be at least 1"))
	}

	u, err := url.Parse(c.Search.SiteBase)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Errorf("search.site_base: %q is not an absolute http(s) URL", c.Search.SiteBase))
	}
	if c.Search.NavigationTimeout <= 0 {
		errs = append(errs, errors.New("search.navigation_timeout: must be positive"))
	}
	if c.Search.QuietWindow <= 0 {
		errs = append(errs, errors.New("search.quiet_window: must be positive"))
	}
	if c.Search.MaxInflight < 0 {
		errs = append(errs, errors.New("search.max_inflight: must not be negative"))
	}
	if err := c.Search.Selectors.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("search.selectors.%w", err))
	}

	if c.Auth.Enabled && len(c.Auth.APIKeys) == 0 {
		errs = append(errs, errors.New("auth.api_keys: required when auth is enabled"))
	}

	return errors.Join(errs...)
}

// SlogLevel maps Level to a slog level; unknown values mean info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
