package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Storage   StorageConfig
	Enricher  EnricherConfig
	Remote    RemoteConfig
	Shell     ShellConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"4000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// StorageConfig holds the bookmark database location.
type StorageConfig struct {
	DBPath string `envconfig:"DB_PATH" default:"bookmarks.db"`
}

// EnricherConfig controls page metadata lookups.
type EnricherConfig struct {
	Timeout        time.Duration `envconfig:"ENRICH_TIMEOUT" default:"4s"`
	FaviconService string        `envconfig:"FAVICON_SERVICE" default:"https://www.google.com/s2/favicons"`
}

// RemoteConfig points the shell at the bookmark API.
type RemoteConfig struct {
	BaseURL     string        `envconfig:"BOOKMARKS_API" default:"http://localhost:4000"`
	Timeout     time.Duration `envconfig:"REMOTE_TIMEOUT" default:"1500ms"`
	ListTimeout time.Duration `envconfig:"REMOTE_LIST_TIMEOUT" default:"1s"`
}

// ShellConfig holds terminal shell settings.
type ShellConfig struct {
	StateDir     string `envconfig:"SHELL_STATE_DIR" default:""`
	Homepage     string `envconfig:"HOMEPAGE" default:"https://news.google.com"`
	SearchEngine string `envconfig:"SEARCH_ENGINE" default:"google"`
	Viewport     string `envconfig:"VIEWPORT" default:"probe"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "4000",
			Host: "0.0.0.0",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Storage: StorageConfig{
			DBPath: "bookmarks.db",
		},
		Enricher: EnricherConfig{
			Timeout:        4 * time.Second,
			FaviconService: "https://www.google.com/s2/favicons",
		},
		Remote: RemoteConfig{
			BaseURL:     "http://localhost:4000",
			Timeout:     1500 * time.Millisecond,
			ListTimeout: time.Second,
		},
		Shell: ShellConfig{
			Homepage:     "https://news.google.com",
			SearchEngine: "google",
			Viewport:     "probe",
		},
	}
}
