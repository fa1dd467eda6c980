// Package config loads psync configuration.
//
// Sources, later ones overriding earlier ones:
//
//	defaults → ~/.config/psync/config.toml → ./.psync/config.toml → PSYNC_* env
//
// Environment keys are the dotted config keys upper-cased with "_" for ".",
// e.g. PSYNC_TRACKER_TOKEN for tracker.token.
package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config is the full psync configuration.
type Config struct {
	DB       DBConfig       `mapstructure:"db" toml:"db"`
	Tracker  TrackerConfig  `mapstructure:"tracker" toml:"tracker"`
	Condense CondenseConfig `mapstructure:"condense" toml:"condense"`
	Sync     SyncConfig     `mapstructure:"sync" toml:"sync"`
	App      AppConfig      `mapstructure:"app" toml:"app"`
	Watch    WatchConfig    `mapstructure:"watch" toml:"watch"`
	Serve    ServeConfig    `mapstructure:"serve" toml:"serve"`
	Log      LogConfig      `mapstructure:"log" toml:"log"`
}

// DBConfig locates the local store.
type DBConfig struct {
	Path string `mapstructure:"path" toml:"path"`
}

// TrackerConfig configures the tracker client.
type TrackerConfig struct {
	BaseURL          string        `mapstructure:"base_url" toml:"base_url"`
	AppURL           string        `mapstructure:"app_url" toml:"app_url"`
	Token            string        `mapstructure:"token" toml:"token"`
	DefaultWorkspace string        `mapstructure:"default_workspace" toml:"default_workspace"`
	Timeout          time.Duration `mapstructure:"timeout" toml:"timeout"`
	NotesLimit       int           `mapstructure:"notes_limit" toml:"notes_limit"`
}

// CondenseConfig configures the condensation service.
type CondenseConfig struct {
	Enabled   bool   `mapstructure:"enabled" toml:"enabled"`
	Model     string `mapstructure:"model" toml:"model"`
	APIKey    string `mapstructure:"api_key" toml:"api_key"`
	MaxTokens int64  `mapstructure:"max_tokens" toml:"max_tokens"`
}

// SyncConfig configures the sync engine.
type SyncConfig struct {
	LockTTL          time.Duration `mapstructure:"lock_ttl" toml:"lock_ttl"`
	Stages           []string      `mapstructure:"stages" toml:"stages"`
	ExcludedSections []string      `mapstructure:"excluded_sections" toml:"excluded_sections"`
}

// AppConfig describes the surrounding application.
type AppConfig struct {
	// BaseURL prefixes back-links to process pages.
	BaseURL string `mapstructure:"base_url" toml:"base_url"`
}

// WatchConfig configures the import watcher.
type WatchConfig struct {
	Dir      string        `mapstructure:"dir" toml:"dir"`
	Debounce time.Duration `mapstructure:"debounce" toml:"debounce"`
}

// ServeConfig configures the event server.
type ServeConfig struct {
	Port int `mapstructure:"port" toml:"port"`

	// SyncTimeout bounds a sync started through the HTTP trigger.
	SyncTimeout time.Duration `mapstructure:"sync_timeout" toml:"sync_timeout"`
}

// LogConfig configures log output. An empty File logs to stderr.
type LogConfig struct {
	File       string `mapstructure:"file" toml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" toml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" toml:"max_age_days"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DB: DBConfig{
			Path: ".psync/psync.db",
		},
		Tracker: TrackerConfig{
			BaseURL:    "https://app.asana.com/api/1.0",
			AppURL:     "https://app.asana.com",
			Timeout:    30 * time.Second,
			NotesLimit: 65000,
		},
		Condense: CondenseConfig{
			Enabled:   false,
			Model:     "claude-sonnet-4-5",
			MaxTokens: 8192,
		},
		Sync: SyncConfig{
			LockTTL:          10 * time.Minute,
			Stages:           []string{"Plan", "Execute", "Evaluate", "Improve"},
			ExcludedSections: []string{"workflow"},
		},
		Watch: WatchConfig{
			Dir:      "processes",
			Debounce: 200 * time.Millisecond,
		},
		Serve: ServeConfig{
			Port:        8080,
			SyncTimeout: 5 * time.Minute,
		},
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Validate checks values that would only fail later and less clearly.
func (c *Config) Validate() error {
	if c.DB.Path == "" {
		return fmt.Errorf("db.path is required")
	}
	if _, err := url.ParseRequestURI(c.Tracker.BaseURL); err != nil {
		return fmt.Errorf("tracker.base_url is invalid: %w", err)
	}
	if c.Tracker.NotesLimit <= 0 {
		return fmt.Errorf("tracker.notes_limit must be positive (got %d)", c.Tracker.NotesLimit)
	}
	if len(c.Sync.Stages) != 4 {
		return fmt.Errorf("sync.stages must name exactly 4 stages (got %d)", len(c.Sync.Stages))
	}
	if c.Serve.Port < 0 || c.Serve.Port > 65535 {
		return fmt.Errorf("serve.port out of range: %d", c.Serve.Port)
	}
	if c.Serve.SyncTimeout <= 0 {
		return fmt.Errorf("serve.sync_timeout must be positive (got %s)", c.Serve.SyncTimeout)
	}
	return nil
}
