// Package config loads layered TOML configuration:
// built-in defaults <- ~/.entirecontext/config.toml <- <repo>/.entirecontext/config.toml.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Sync holds the scheduling and transport knobs of the sync engine.
type Sync struct {
	AutoSync             bool  `mapstructure:"auto_sync"`
	AutoPull             bool  `mapstructure:"auto_pull"`
	CooldownSeconds      int   `mapstructure:"cooldown_seconds"`
	PullStalenessSeconds int   `mapstructure:"pull_staleness_seconds"`
	PushOnSync           bool  `mapstructure:"push_on_sync"`
	Quiet                bool  `mapstructure:"quiet"`
}

// Security holds export redaction settings.
type Security struct {
	FilterSecrets bool     `mapstructure:"filter_secrets"`
	Patterns      []string `mapstructure:"patterns"`
}

// Futures holds assessment settings.
type Futures struct {
	Model   string `mapstructure:"model"`
	Roadmap string `mapstructure:"roadmap"`
}

// Config is the merged view of all layers.
type Config struct {
	Sync     Sync     `mapstructure:"sync"`
	Security Security `mapstructure:"security"`
	Futures  Futures  `mapstructure:"futures"`
}

// DefaultPatterns are the secret shapes redacted from exports unless
// overridden per repository.
var DefaultPatterns = []string{
	`(?i)(api[_-]?key|secret|password|token)\s*[=:]\s*['"]?[\w-]+`,
	`(?i)bearer\s+[\w.-]+`,
	`ghp_[a-zA-Z0-9]{36}`,
	`sk-[a-zA-Z0-9]{48}`,
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sync.auto_sync", false)
	v.SetDefault("sync.auto_pull", false)
	v.SetDefault("sync.cooldown_seconds", 300)
	v.SetDefault("sync.pull_staleness_seconds", 600)
	v.SetDefault("sync.push_on_sync", true)
	v.SetDefault("sync.quiet", true)
	v.SetDefault("security.filter_secrets", true)
	v.SetDefault("security.patterns", DefaultPatterns)
	v.SetDefault("futures.model", "claude-sonnet-4-20250514")
	v.SetDefault("futures.roadmap", "ROADMAP.md")
}

// Load returns the merged configuration for a repository. An empty repoPath
// loads only the global layer. Missing config files are not an error.
func Load(repoPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	setDefaults(v)

	if home, err := os.UserHomeDir(); err == nil {
		mergeFile(v, filepath.Join(home, ".entirecontext", "config.toml"))
	}

	if repoPath != "" {
		mergeFile(v, filepath.Join(repoPath, ".entirecontext", "config.toml"))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// mergeFile layers one TOML file into v when it exists. Unreadable or
// malformed files are skipped so a broken config never blocks a hook.
func mergeFile(v *viper.Viper, path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	v.SetConfigFile(path)
	_ = v.MergeInConfig()
}
