package probe_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rishimeka/astro/pkg/probe"
)

func TestExecProbeCapturesStdout(t *testing.T) {
	p := probe.NewExecProbe("greet", "sh", "-c", "echo hello")
	out, err := p.Call(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", out["output"])
}

func TestExecProbeExportsInputAsEnv(t *testing.T) {
	p := probe.NewExecProbe("echo-input", "sh", "-c", `echo "$ASTRO_ARG_INPUT:$ASTRO_ARG_RETRIES"`)
	out, err := p.Call(context.Background(), map[string]any{
		"input":   "ping",
		"retries": 3,
	})
	require.NoError(t, err)
	assert.Equal(t, "ping:3", out["output"])
}

func TestExecProbeStructuredEnvIsJSON(t *testing.T) {
	p := probe.NewExecProbe("echo-json", "sh", "-c", `echo "$ASTRO_ARG_TAGS"`)
	out, err := p.Call(context.Background(), map[string]any{
		"tags": []string{"a", "b"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `["a","b"]`, out["output"].(string))
}

func TestExecProbeDecodesJSONOutput(t *testing.T) {
	p := probe.NewExecProbe("report", "sh", "-c", `echo '{"ok": true, "count": 2}'`)
	out, err := p.Call(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, true, out["ok"])
	assert.Equal(t, float64(2), out["count"])
}

func TestExecProbeWorkingDirectory(t *testing.T) {
	p := probe.NewExecProbe("pwd", "pwd")
	p.Dir = t.TempDir()

	out, err := p.Call(context.Background(), nil)
	require.NoError(t, err)
	assert.Contains(t, out["output"], p.Dir)
}

func TestExecProbeFailureCarriesStderr(t *testing.T) {
	p := probe.NewExecProbe("broken", "sh", "-c", "echo boom >&2; exit 3")
	_, err := p.Call(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "probe broken failed")
	assert.Contains(t, err.Error(), "boom")
}

func TestExecProbeContextCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	p := probe.NewExecProbe("slow", "sh", "-c", "sleep 5")
	_, err := p.Call(ctx, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
