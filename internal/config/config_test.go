package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()

	path := filepath.Join(dir, ".entirecontext", "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Sync.CooldownSeconds != 300 {
		t.Errorf("Expected cooldown 300, got %d", cfg.Sync.CooldownSeconds)
	}
	if cfg.Sync.PullStalenessSeconds != 600 {
		t.Errorf("Expected staleness 600, got %d", cfg.Sync.PullStalenessSeconds)
	}
	if !cfg.Sync.PushOnSync {
		t.Error("Expected push_on_sync to default on")
	}
	if cfg.Sync.AutoSync || cfg.Sync.AutoPull {
		t.Error("Auto sync/pull must default off")
	}
	if !cfg.Security.FilterSecrets {
		t.Error("Expected filter_secrets to default on")
	}
	if len(cfg.Security.Patterns) == 0 {
		t.Error("Expected default secret patterns")
	}
}

func TestLoadRepoOverridesGlobal(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	writeConfig(t, home, "[sync]\ncooldown_seconds = 60\npush_on_sync = false\n")

	repo := t.TempDir()
	writeConfig(t, repo, "[sync]\ncooldown_seconds = 120\n")

	cfg, err := Load(repo)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Repo layer wins where it speaks; global layer fills the rest.
	if cfg.Sync.CooldownSeconds != 120 {
		t.Errorf("Expected repo override 120, got %d", cfg.Sync.CooldownSeconds)
	}
	if cfg.Sync.PushOnSync {
		t.Error("Expected global push_on_sync=false to survive the merge")
	}
}

func TestLoadIgnoresMalformedFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	repo := t.TempDir()
	writeConfig(t, repo, "this is { not toml")

	cfg, err := Load(repo)
	if err != nil {
		t.Fatalf("Malformed config must not block loading: %v", err)
	}
	if cfg.Sync.CooldownSeconds != 300 {
		t.Errorf("Expected defaults to survive, got %d", cfg.Sync.CooldownSeconds)
	}
}

func TestLoadMissingRepoDir(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("Load failed for missing repo dir: %v", err)
	}
	if cfg.Sync.CooldownSeconds != 300 {
		t.Errorf("Expected defaults, got %d", cfg.Sync.CooldownSeconds)
	}
}
