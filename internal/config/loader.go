package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// Load merges the global and project config files and the environment
// over the defaults. Missing files are skipped.
func Load() (*Config, error) {
	return LoadFrom(GlobalConfigPath(), ProjectConfigPath())
}

// LoadFrom is Load with explicit file paths. Empty paths are skipped.
func LoadFrom(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	setDefaults(v, DefaultConfig())

	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("PSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so env overrides apply to keys that no
// file mentions.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("db.path", d.DB.Path)

	v.SetDefault("tracker.base_url", d.Tracker.BaseURL)
	v.SetDefault("tracker.app_url", d.Tracker.AppURL)
	v.SetDefault("tracker.token", d.Tracker.Token)
	v.SetDefault("tracker.default_workspace", d.Tracker.DefaultWorkspace)
	v.SetDefault("tracker.timeout", d.Tracker.Timeout)
	v.SetDefault("tracker.notes_limit", d.Tracker.NotesLimit)

	v.SetDefault("condense.enabled", d.Condense.Enabled)
	v.SetDefault("condense.model", d.Condense.Model)
	v.SetDefault("condense.api_key", d.Condense.APIKey)
	v.SetDefault("condense.max_tokens", d.Condense.MaxTokens)

	v.SetDefault("sync.lock_ttl", d.Sync.LockTTL)
	v.SetDefault("sync.stages", d.Sync.Stages)
	v.SetDefault("sync.excluded_sections", d.Sync.ExcludedSections)

	v.SetDefault("app.base_url", d.App.BaseURL)

	v.SetDefault("watch.dir", d.Watch.Dir)
	v.SetDefault("watch.debounce", d.Watch.Debounce)

	v.SetDefault("serve.port", d.Serve.Port)
	v.SetDefault("serve.sync_timeout", d.Serve.SyncTimeout)

	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
}

// WriteDefault writes the default configuration as TOML. An existing file
// is only replaced when force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s (use --force to overwrite)", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString("# psync configuration\n# Environment variables (PSYNC_TRACKER_TOKEN, ...) override these values.\n\n"); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(DefaultConfig()); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// GlobalConfigPath returns the per-user config file path.
func GlobalConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "psync", "config.toml")
}

// ProjectConfigPath returns the config file path for the current directory.
func ProjectConfigPath() string {
	cwd, _ := os.Getwd()
	return filepath.Join(cwd, ".psync", "config.toml")
}
