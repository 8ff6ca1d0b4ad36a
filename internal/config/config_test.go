package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if cfg.Source.BaseURL != "https://archiveofourown.org" {
		t.Errorf("expected AO3 base url, got %q", cfg.Source.BaseURL)
	}
	if cfg.Source.TimeoutSeconds != 30 {
		t.Errorf("expected timeout 30, got %d", cfg.Source.TimeoutSeconds)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("expected port 8000, got %d", cfg.Server.Port)
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
paths:
  history_dir: /srv/ficstats/history
source:
  timeout_seconds: 5
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	if cfg.GetHistoryDir() != "/srv/ficstats/history" {
		t.Errorf("expected history dir override, got %q", cfg.GetHistoryDir())
	}
	if cfg.FetchTimeout() != 5*time.Second {
		t.Errorf("expected 5s timeout, got %s", cfg.FetchTimeout())
	}
	// Defaults should still be set for unspecified fields
	if cfg.Source.UserAgent == "" {
		t.Error("expected default user agent")
	}
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("expected default port, got %d", cfg.Server.Port)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Source.BaseURL == "" {
		t.Error("expected base url to be populated from file")
	}
}

func TestResolveExplicitMissing(t *testing.T) {
	if _, err := ResolveConfigPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestDerivedPaths(t *testing.T) {
	cfg := &Config{}
	if cfg.GetDataDir() == "" {
		t.Error("expected non-empty default data dir")
	}

	cfg.Paths.DataDir = "/custom/data"
	if got := cfg.GetRegistryPath(); got != filepath.Join("/custom/data", "tracked_works.txt") {
		t.Errorf("unexpected registry path %q", got)
	}
	if got := cfg.GetHistoryDir(); got != filepath.Join("/custom/data", "history") {
		t.Errorf("unexpected history dir %q", got)
	}
	if got := cfg.GetLockPath(); got != filepath.Join("/custom/data", "ficstats.lock") {
		t.Errorf("unexpected lock path %q", got)
	}

	cfg.Paths.RegistryPath = "/elsewhere/list.txt"
	if cfg.GetRegistryPath() != "/elsewhere/list.txt" {
		t.Errorf("expected registry override, got %q", cfg.GetRegistryPath())
	}
}
