package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"worklogd/internal/config"
)

func TestLoadMissingDefaultPathUsesDefaults(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(wd) })

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":8080" {
		t.Fatalf("Listen = %q", cfg.Listen)
	}
	if cfg.AutoSave.Window != 600*time.Millisecond {
		t.Fatalf("Window = %v", cfg.AutoSave.Window)
	}
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worklogd.yaml")
	body := `listen: ":9090"
db_path: /tmp/work.db
timezone: UTC
autosave:
  window: 250ms
  max_attempts: 5
notify:
  webhook_url: http://alerts.local/hook
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":9090" {
		t.Fatalf("Listen = %q", cfg.Listen)
	}
	if cfg.DBPath != "/tmp/work.db" {
		t.Fatalf("DBPath = %q", cfg.DBPath)
	}
	if cfg.AutoSave.Window != 250*time.Millisecond {
		t.Fatalf("Window = %v", cfg.AutoSave.Window)
	}
	if cfg.AutoSave.MaxAttempts != 5 {
		t.Fatalf("MaxAttempts = %d", cfg.AutoSave.MaxAttempts)
	}
	// Partial override keeps the coded default.
	if cfg.AutoSave.Backoff != 250*time.Millisecond {
		t.Fatalf("Backoff = %v", cfg.AutoSave.Backoff)
	}
	if cfg.Notify.WebhookURL != "http://alerts.local/hook" {
		t.Fatalf("WebhookURL = %q", cfg.Notify.WebhookURL)
	}

	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("Location: %v", err)
	}
	if loc != time.UTC {
		t.Fatalf("Location = %v", loc)
	}
}
