package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the newsdex API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Feed      FeedConfig      `yaml:"feed"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Search    SearchConfig    `yaml:"search"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds Redis connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// FeedConfig holds the headline feed source settings.
type FeedConfig struct {
	URL             string `yaml:"url"`
	FetchTimeoutSec int    `yaml:"fetch_timeout_sec"`
}

// IngestConfig holds ingestion pass settings.
type IngestConfig struct {
	StartupItems int `yaml:"startup_items"`
	CycleItems   int `yaml:"cycle_items"`
	IntervalSec  int `yaml:"interval_sec"`
}

// SearchConfig holds search result caching settings.
type SearchConfig struct {
	CacheTTLSec int `yaml:"cache_ttl_sec"`
}

// RateLimitConfig holds admission control settings.
// WindowSec = 0 keeps counters for the lifetime of the user record.
type RateLimitConfig struct {
	MaxRequests int `yaml:"max_requests"`
	WindowSec   int `yaml:"window_sec"`
	CacheSize   int `yaml:"cache_size"`
	CacheTTLSec int `yaml:"cache_ttl_sec"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 384
	}
	if c.Feed.URL == "" {
		c.Feed.URL = "https://news.ycombinator.com"
	}
	if c.Feed.FetchTimeoutSec <= 0 {
		c.Feed.FetchTimeoutSec = 30
	}
	if c.Ingest.StartupItems <= 0 {
		c.Ingest.StartupItems = 20
	}
	if c.Ingest.CycleItems <= 0 {
		c.Ingest.CycleItems = 5
	}
	if c.Ingest.IntervalSec <= 0 {
		c.Ingest.IntervalSec = 3600
	}
	if c.Search.CacheTTLSec <= 0 {
		c.Search.CacheTTLSec = 3600
	}
	if c.RateLimit.MaxRequests <= 0 {
		c.RateLimit.MaxRequests = 5
	}
	if c.RateLimit.CacheSize <= 0 {
		c.RateLimit.CacheSize = 128
	}
	if c.RateLimit.CacheTTLSec <= 0 {
		c.RateLimit.CacheTTLSec = 30
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.RateLimit.WindowSec < 0 {
		return fmt.Errorf("rate_limit.window_sec must not be negative, got %d", c.RateLimit.WindowSec)
	}
	if !strings.HasPrefix(c.Feed.URL, "http://") && !strings.HasPrefix(c.Feed.URL, "https://") {
		return fmt.Errorf("feed.url must be an http(s) URL, got %q", c.Feed.URL)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
