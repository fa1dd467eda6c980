package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Tracker.NotesLimit != 65000 {
		t.Errorf("NotesLimit = %d, want 65000", cfg.Tracker.NotesLimit)
	}
	if cfg.Sync.LockTTL != 10*time.Minute {
		t.Errorf("LockTTL = %v, want 10m", cfg.Sync.LockTTL)
	}
	if cfg.Condense.Enabled {
		t.Error("condensation should be off by default")
	}
	if cfg.Serve.SyncTimeout <= 0 || cfg.Serve.SyncTimeout >= cfg.Sync.LockTTL {
		t.Errorf("SyncTimeout = %v, want positive and below LockTTL %v", cfg.Serve.SyncTimeout, cfg.Sync.LockTTL)
	}
}

func TestLoadFrom_MissingFilesUseDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadFrom(filepath.Join(dir, "nope.toml"), "")
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.DB.Path != DefaultConfig().DB.Path {
		t.Errorf("DB.Path = %q", cfg.DB.Path)
	}
	if len(cfg.Sync.Stages) != 4 {
		t.Errorf("Stages = %v", cfg.Sync.Stages)
	}
}

func TestLoadFrom_ProjectOverridesGlobal(t *testing.T) {
	dir := t.TempDir()
	global := filepath.Join(dir, "global.toml")
	project := filepath.Join(dir, "project.toml")

	writeFile(t, global, `
[tracker]
token = "global-token"
default_workspace = "ws-global"
timeout = "10s"

[serve]
port = 9000
`)
	writeFile(t, project, `
[tracker]
default_workspace = "ws-project"

[sync]
stages = ["Plan", "Do", "Check", "Act"]
`)

	cfg, err := LoadFrom(global, project)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	if cfg.Tracker.Token != "global-token" {
		t.Errorf("Token = %q, want global-token", cfg.Tracker.Token)
	}
	if cfg.Tracker.DefaultWorkspace != "ws-project" {
		t.Errorf("DefaultWorkspace = %q, want ws-project", cfg.Tracker.DefaultWorkspace)
	}
	if cfg.Tracker.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", cfg.Tracker.Timeout)
	}
	if cfg.Serve.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Serve.Port)
	}
	if cfg.Sync.Stages[3] != "Act" {
		t.Errorf("Stages = %v", cfg.Sync.Stages)
	}
	if cfg.Tracker.NotesLimit != 65000 {
		t.Errorf("unset key lost its default: %d", cfg.Tracker.NotesLimit)
	}
}

func TestLoadFrom_EnvOverridesFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, "[tracker]\ntoken = \"file-token\"\n")

	t.Setenv("PSYNC_TRACKER_TOKEN", "env-token")
	t.Setenv("PSYNC_SYNC_LOCK_TTL", "90s")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.Tracker.Token != "env-token" {
		t.Errorf("Token = %q, want env-token", cfg.Tracker.Token)
	}
	if cfg.Sync.LockTTL != 90*time.Second {
		t.Errorf("LockTTL = %v, want 90s", cfg.Sync.LockTTL)
	}
}

func TestLoadFrom_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad toml", "[tracker\n"},
		{"three stages", "[sync]\nstages = [\"a\", \"b\", \"c\"]\n"},
		{"zero notes limit", "[tracker]\nnotes_limit = 0\n"},
		{"bad port", "[serve]\nport = 70000\n"},
		{"zero sync timeout", "[serve]\nsync_timeout = \"0s\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			writeFile(t, path, tt.content)
			if _, err := LoadFrom(path); err == nil {
				t.Errorf("expected error for %s", tt.name)
			}
		})
	}
}

func TestWriteDefault_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "psync", "config.toml")

	if err := WriteDefault(path, false); err != nil {
		t.Fatalf("WriteDefault failed: %v", err)
	}
	if err := WriteDefault(path, false); err == nil {
		t.Error("expected error when config exists without force")
	}
	if err := WriteDefault(path, true); err != nil {
		t.Errorf("WriteDefault with force failed: %v", err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	want := DefaultConfig()
	if cfg.Tracker.Timeout != want.Tracker.Timeout || cfg.Watch.Debounce != want.Watch.Debounce {
		t.Errorf("durations did not round-trip: %v, %v", cfg.Tracker.Timeout, cfg.Watch.Debounce)
	}
	if cfg.Tracker.BaseURL != want.Tracker.BaseURL {
		t.Errorf("BaseURL = %q", cfg.Tracker.BaseURL)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}
