// Package config handles application configuration
package config

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed config.sample.yaml
var sampleConfig string

// GetSampleConfig returns the embedded sample configuration content
func GetSampleConfig() string {
	return sampleConfig
}

const (
	defaultBaseURL   = "https://notehub-public.goit.study/api"
	defaultPerPage   = 12
	defaultTimeout   = 30 * time.Second
	defaultStaleTime = 30 * time.Second
	defaultDebounce  = 500 * time.Millisecond
	maxPerPage       = 100
)

// EnvBaseURL overrides api.base_url when set.
const EnvBaseURL = "NOTEHUB_BASE_URL"

// Config represents the application configuration
type Config struct {
	API           APIConfig          `yaml:"api"`
	Cache         CacheConfig        `yaml:"cache"`
	Search        SearchConfig       `yaml:"search"`
	OutputFormat  string             `yaml:"output_format"`
	NoPrompt      bool               `yaml:"no_prompt"`
	Logging       LoggingConfig      `yaml:"logging"`
	Notifications NotificationConfig `yaml:"notifications"`
}

// APIConfig holds the remote notes API settings
type APIConfig struct {
	BaseURL    string          `yaml:"base_url"`
	SearchPath string          `yaml:"search_path"`
	PerPage    int             `yaml:"per_page"`
	Timeout    string          `yaml:"timeout"` // e.g. "30s"
	RateLimit  RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig controls retrying of HTTP 429 responses
type RateLimitConfig struct {
	Enabled    bool   `yaml:"enabled"`
	MaxRetries int    `yaml:"max_retries"`
	BaseDelay  string `yaml:"base_delay"`
}

// CacheConfig holds query cache settings
type CacheConfig struct {
	StaleTime string         `yaml:"stale_time"` // How long a fetched page is served without refetching
	Snapshot  SnapshotConfig `yaml:"snapshot"`
}

// SnapshotConfig controls the on-disk copy of fetched pages
type SnapshotConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Path     string `yaml:"path"`
	MaxPages int    `yaml:"max_pages"`
}

// SearchConfig holds search box settings
type SearchConfig struct {
	Debounce string `yaml:"debounce"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	BackgroundEnabled *bool `yaml:"background_enabled"` // Controls background log file creation (default: true)
}

// NotificationConfig holds notification channel settings
type NotificationConfig struct {
	OS  OSNotificationConfig  `yaml:"os"`
	Log LogNotificationConfig `yaml:"log"`
}

// OSNotificationConfig configures desktop notifications
type OSNotificationConfig struct {
	Enabled   bool `yaml:"enabled"`
	OnSuccess bool `yaml:"on_success"`
	OnFailure bool `yaml:"on_failure"`
}

// LogNotificationConfig configures the notification log file
type LogNotificationConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: defaultBaseURL,
			PerPage: defaultPerPage,
			Timeout: defaultTimeout.String(),
		},
		Cache: CacheConfig{
			StaleTime: defaultStaleTime.String(),
			Snapshot: SnapshotConfig{
				Enabled: true,
				Path:    filepath.Join(GetCacheDir(), "pages.db"),
			},
		},
		Search:       SearchConfig{Debounce: defaultDebounce.String()},
		OutputFormat: "text",
	}
}

// DefaultConfigPath returns the XDG location of config.yaml
func DefaultConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// Load loads configuration from the specified path, or the default XDG path if empty.
// If the config file doesn't exist, it creates one from the sample.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DefaultConfigPath()
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := writeSample(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		cfg := DefaultConfig()
		cfg.applyEnv()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config and fills in defaults for unset fields.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in config file: %w", err)
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = defaultBaseURL
	}
	if c.OutputFormat == "" {
		c.OutputFormat = "text"
	}
	if c.Cache.Snapshot.Enabled && c.Cache.Snapshot.Path == "" {
		c.Cache.Snapshot.Path = filepath.Join(GetCacheDir(), "pages.db")
	}
	c.Cache.Snapshot.Path = ExpandPath(c.Cache.Snapshot.Path)
	c.Notifications.Log.Path = ExpandPath(c.Notifications.Log.Path)
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvBaseURL)); v != "" {
		c.API.BaseURL = v
	}
}

// writeSample writes the commented sample config to path
func writeSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.OutputFormat != "text" && c.OutputFormat != "json" {
		return fmt.Errorf("invalid output_format: %q (must be 'text' or 'json')", c.OutputFormat)
	}

	if c.API.BaseURL != "" {
		u, err := url.Parse(c.API.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid api.base_url: %q (must be an absolute URL)", c.API.BaseURL)
		}
	}
	if c.API.PerPage < 0 || c.API.PerPage > maxPerPage {
		return fmt.Errorf("api.per_page must be between 1 and %d, got %d", maxPerPage, c.API.PerPage)
	}
	if c.API.RateLimit.MaxRetries < 0 {
		return fmt.Errorf("api.rate_limit.max_retries must not be negative, got %d", c.API.RateLimit.MaxRetries)
	}

	durations := []struct {
		key, value string
		min        time.Duration
	}{
		{"api.timeout", c.API.Timeout, time.Second},
		{"api.rate_limit.base_delay", c.API.RateLimit.BaseDelay, 0},
		{"cache.stale_time", c.Cache.StaleTime, 0},
		{"search.debounce", c.Search.Debounce, 0},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %q", d.key, d.value)
		}
		if parsed < d.min {
			return fmt.Errorf("%s must be at least %s, got %q", d.key, d.min, d.value)
		}
	}

	if c.Cache.Snapshot.MaxPages < 0 {
		return fmt.Errorf("cache.snapshot.max_pages must not be negative, got %d", c.Cache.Snapshot.MaxPages)
	}
	if c.Notifications.Log.Enabled && c.Notifications.Log.Path == "" {
		return fmt.Errorf("notifications.log.path is required when notifications.log.enabled is true")
	}

	return nil
}

// ApplyFlags applies CLI flag overrides to the configuration
func (c *Config) ApplyFlags(noPrompt bool, outputFormat string) {
	if noPrompt {
		c.NoPrompt = true
	}
	if outputFormat != "" {
		c.OutputFormat = outputFormat
	}
}

// GetBaseURL returns the API base URL
func (c *Config) GetBaseURL() string {
	return c.API.BaseURL
}

// GetPerPage returns the page size, defaulting to 12
func (c *Config) GetPerPage() int {
	if c.API.PerPage <= 0 {
		return defaultPerPage
	}
	return c.API.PerPage
}

// GetTimeoutDuration returns the HTTP timeout.
// Returns 30 seconds if not configured or if parsing fails.
func (c *Config) GetTimeoutDuration() time.Duration {
	return parseDurationOr(c.API.Timeout, defaultTimeout)
}

// GetRateLimitBaseDelay returns the backoff base delay, or 0 for the rate limiter's default.
func (c *Config) GetRateLimitBaseDelay() time.Duration {
	return parseDurationOr(c.API.RateLimit.BaseDelay, 0)
}

// GetStaleTimeDuration returns how long a fetched page stays fresh.
// Returns 30 seconds if not configured or if parsing fails. "0s" means always refetch.
func (c *Config) GetStaleTimeDuration() time.Duration {
	return parseDurationOr(c.Cache.StaleTime, defaultStaleTime)
}

// GetDebounceDuration returns the search quiet period.
// Returns 500ms if not configured, unparsable, or not positive.
func (c *Config) GetDebounceDuration() time.Duration {
	d := parseDurationOr(c.Search.Debounce, defaultDebounce)
	if d <= 0 {
		return defaultDebounce
	}
	return d
}

// IsSnapshotEnabled returns true if fetched pages are written to disk
func (c *Config) IsSnapshotEnabled() bool {
	return c.Cache.Snapshot.Enabled && c.Cache.Snapshot.Path != ""
}

// GetSnapshotPath returns the path of the page snapshot database
func (c *Config) GetSnapshotPath() string {
	return c.Cache.Snapshot.Path
}

// GetSnapshotMaxPages returns how many pages the snapshot keeps. Returns 50 if not configured.
func (c *Config) GetSnapshotMaxPages() int {
	if c.Cache.Snapshot.MaxPages <= 0 {
		return 50
	}
	return c.Cache.Snapshot.MaxPages
}

// IsNotificationEnabled returns true if any notification channel is enabled
func (c *Config) IsNotificationEnabled() bool {
	return c.Notifications.OS.Enabled || c.Notifications.Log.Enabled
}

// IsBackgroundLoggingEnabled returns true if background logging is enabled.
// Background logging creates PID-specific log files in /tmp while the TUI owns the terminal.
// Returns true (default) if not configured.
func (c *Config) IsBackgroundLoggingEnabled() bool {
	if c.Logging.BackgroundEnabled == nil {
		return true
	}
	return *c.Logging.BackgroundEnabled
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// Get returns the value at a dotted key such as "api.per_page", read from the
// YAML form of the config.
func (c *Config) Get(key string) (interface{}, error) {
	raw, err := c.toMap()
	if err != nil {
		return nil, err
	}
	if key == "" {
		return raw, nil
	}
	var cur interface{} = raw
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("unknown config key: %q", key)
		}
		cur, ok = m[part]
		if !ok {
			return nil, fmt.Errorf("unknown config key: %q", key)
		}
	}
	return cur, nil
}

// Keys returns every dotted leaf key, sorted
func (c *Config) Keys() []string {
	raw, err := c.toMap()
	if err != nil {
		return nil
	}
	var keys []string
	var walk func(prefix string, m map[string]interface{})
	walk = func(prefix string, m map[string]interface{}) {
		for k, v := range m {
			full := k
			if prefix != "" {
				full = prefix + "." + k
			}
			if sub, ok := v.(map[string]interface{}); ok {
				walk(full, sub)
				continue
			}
			keys = append(keys, full)
		}
	}
	walk("", raw)
	sort.Strings(keys)
	return keys
}

func (c *Config) toMap() (map[string]interface{}, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return raw, nil
}

// getXDGDir returns a directory path following XDG spec.
// envVar is the XDG environment variable (e.g., "XDG_CONFIG_HOME").
// fallbackPath is the relative path from home (e.g., ".config").
func getXDGDir(envVar, fallbackPath string) string {
	if xdgDir := os.Getenv(envVar); xdgDir != "" {
		return filepath.Join(xdgDir, "notehub")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", fallbackPath, "notehub")
	}
	return filepath.Join(home, fallbackPath, "notehub")
}

// GetConfigDir returns the configuration directory following XDG spec
func GetConfigDir() string {
	return getXDGDir("XDG_CONFIG_HOME", ".config")
}

// GetDataDir returns the data directory following XDG spec
func GetDataDir() string {
	return getXDGDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// GetCacheDir returns the cache directory following XDG spec
func GetCacheDir() string {
	return getXDGDir("XDG_CACHE_HOME", ".cache")
}

// ExpandPath expands ~ and environment variables in a path
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	return os.ExpandEnv(path)
}
