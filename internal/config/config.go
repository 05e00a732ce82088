// Package config carries the serve command's configuration. Values come
// from an optional YAML file overlaid on defaults; flags override both.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rishimeka/astro/pkg/model"
)

// Duration parses YAML values like "500ms" or "1m30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// StoreConfig selects the run store backend and its persistence middleware.
type StoreConfig struct {
	// Backend is "memory", "redis" or "sqlite".
	Backend string `yaml:"backend"`

	RedisAddr   string `yaml:"redis_addr"`
	RedisPrefix string `yaml:"redis_prefix"`

	SQLitePath string `yaml:"sqlite_path"`

	// EncryptionKey encrypts free-text record fields at rest when set.
	// Hex encoded, 32 bytes once decoded.
	EncryptionKey string `yaml:"encryption_key"`

	// EncryptionFallbackKeys are tried for decryption during key rotation.
	EncryptionFallbackKeys []string `yaml:"encryption_fallback_keys"`

	// RedactPatterns are regexps masked out of records before they persist.
	RedactPatterns []string `yaml:"redact_patterns"`
}

// RetryConfig tunes the engine's default per-node retry policy.
type RetryConfig struct {
	MaxAttempts int      `yaml:"max_attempts"`
	BaseDelay   Duration `yaml:"base_delay"`
	MaxDelay    Duration `yaml:"max_delay"`
}

// ProbeConfig registers one allow-listed command as an exec probe. Stars
// bind to it by name; the command line is fixed here, never taken from the
// graph.
type ProbeConfig struct {
	Name    string   `yaml:"name"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	Dir     string   `yaml:"dir"`
}

// Config is the full serve configuration.
type Config struct {
	Addr string `yaml:"addr"`

	// LogFormat is "json" or "text".
	LogFormat string `yaml:"log_format"`
	LogLevel  string `yaml:"log_level"`

	Store StoreConfig  `yaml:"store"`
	Model model.Config `yaml:"model"`
	Retry RetryConfig  `yaml:"retry"`

	// LoopBudget bounds loop-edge traversals per run.
	LoopBudget int `yaml:"loop_budget"`

	// ConstellationsDir preloads definition files at startup.
	ConstellationsDir string `yaml:"constellations_dir"`

	// Probes lists commands registered as exec probes, next to the built-in
	// http probe.
	Probes []ProbeConfig `yaml:"probes"`
}

// Default returns the configuration serve starts from.
func Default() Config {
	return Config{
		Addr:      ":8080",
		LogFormat: "json",
		LogLevel:  "info",
		Store:     StoreConfig{Backend: "memory", RedisAddr: "localhost:6379", SQLitePath: "astro.db"},
		Model:     model.Config{Provider: "mock"},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   Duration(500 * time.Millisecond),
			MaxDelay:    Duration(10 * time.Second),
		},
		LoopBudget: 10,
	}
}

// Load overlays the YAML file at path on the defaults. An empty path returns
// the defaults unchanged; a missing file is an error since the path was
// given explicitly.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, nil
}
