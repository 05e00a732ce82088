package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// ExecProbe runs one allow-listed command. The command and its flags are
// fixed at registration; probe input never reaches the command line.
// Instead every input key is exported as an ASTRO_ARG_<KEY> environment
// variable, which closes off flag injection.
//
// Stdout is the result: a JSON object is decoded and returned as-is, any
// other output comes back under the "output" key. A non-zero exit is an
// error carrying the command's stderr.
type ExecProbe struct {
	name    string
	command string
	args    []string

	// Dir is the working directory for the command. Empty runs it in the
	// process's current directory.
	Dir string
}

// NewExecProbe creates a probe that runs command with the given fixed args.
func NewExecProbe(name, command string, args ...string) *ExecProbe {
	return &ExecProbe{name: name, command: command, args: args}
}

// Name returns the identifier stars bind to.
func (p *ExecProbe) Name() string {
	return p.name
}

// Call runs the command and captures its output.
func (p *ExecProbe) Call(ctx context.Context, input map[string]any) (map[string]any, error) {
	cmd := exec.CommandContext(ctx, p.command, p.args...)
	cmd.Dir = p.Dir
	cmd.Env = append(cmd.Environ(), envArgs(input)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("probe %s interrupted: %w", p.name, ctx.Err())
		}
		return nil, fmt.Errorf("probe %s failed: %w; stderr: %s", p.name, err, strings.TrimSpace(stderr.String()))
	}

	trimmed := strings.TrimSpace(stdout.String())
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		var decoded map[string]any
		if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
			return decoded, nil
		}
	}
	return map[string]any{"output": trimmed}, nil
}

// envArgs serializes the input map into ASTRO_ARG_* assignments. Primitives
// format plainly, anything structured is JSON.
func envArgs(input map[string]any) []string {
	env := make([]string, 0, len(input))
	for k, v := range input {
		var val string
		switch v.(type) {
		case string, int, int64, float64, bool:
			val = fmt.Sprintf("%v", v)
		case nil:
			val = ""
		default:
			if encoded, err := json.Marshal(v); err == nil {
				val = string(encoded)
			} else {
				val = fmt.Sprintf("%v", v)
			}
		}
		env = append(env, fmt.Sprintf("ASTRO_ARG_%s=%s", strings.ToUpper(k), val))
	}
	return env
}
