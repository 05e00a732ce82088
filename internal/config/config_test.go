package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, "mock", cfg.Model.Provider)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 10, cfg.LoopBudget)
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "astro.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":9090"
log_format: text
store:
  backend: redis
  redis_addr: "redis:6379"
model:
  provider: anthropic
  model: claude-sonnet-4-5
retry:
  max_attempts: 5
  base_delay: 250ms
  max_delay: 30s
loop_budget: 4
probes:
  - name: changelog
    command: ./scripts/changelog.sh
    args: ["--format", "markdown"]
    dir: /srv/release
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "redis:6379", cfg.Store.RedisAddr)
	assert.Equal(t, "anthropic", cfg.Model.Provider)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.BaseDelay.Std())
	assert.Equal(t, 30*time.Second, cfg.Retry.MaxDelay.Std())
	assert.Equal(t, 4, cfg.LoopBudget)

	require.Len(t, cfg.Probes, 1)
	assert.Equal(t, "changelog", cfg.Probes[0].Name)
	assert.Equal(t, "./scripts/changelog.sh", cfg.Probes[0].Command)
	assert.Equal(t, []string{"--format", "markdown"}, cfg.Probes[0].Args)
	assert.Equal(t, "/srv/release", cfg.Probes[0].Dir)

	// Untouched keys keep their defaults.
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "astro.db", cfg.Store.SQLitePath)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "astro.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retry:\n  base_delay: soon\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid duration "soon"`)
}
