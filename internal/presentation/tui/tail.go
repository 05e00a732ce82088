package tui

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/muesli/termenv"

	"github.com/rishimeka/astro/pkg/domain"
)

// Tail prints run progress as execution snapshots arrive from a stream
// fold. It remembers the previous snapshot so each update prints only what
// changed, which keeps the output readable when events arrive in bursts.
type Tail struct {
	mu   sync.Mutex
	out  io.Writer
	prof termenv.Profile
	prev domain.ExecutionState
	seen bool
}

// NewTail returns a Tail writing to out.
func NewTail(out io.Writer) *Tail {
	return &Tail{out: out, prof: termenv.ColorProfile()}
}

// Update ingests the next snapshot and prints what changed since the last
// one. Safe to call from the stream listener goroutine.
func (t *Tail) Update(st domain.ExecutionState) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.printNodeChanges(st)
	t.printProgress(st)
	t.printStatusChange(st)

	t.prev = st
	t.seen = true
}

func (t *Tail) printNodeChanges(st domain.ExecutionState) {
	ids := make([]string, 0, len(st.NodeStates))
	for id := range st.NodeStates {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		node := st.NodeStates[id]
		if t.seen {
			if prev, ok := t.prev.NodeStates[id]; ok && prev.Status == node.Status && prev.Attempt == node.Attempt {
				continue
			}
		}
		switch node.Status {
		case domain.NodeRunning:
			fmt.Fprintf(t.out, "%s %s\n", t.glyph("→", "#818cf8"), id)
		case domain.NodeCompleted:
			fmt.Fprintf(t.out, "%s %s\n", t.glyph("✓", "#22c55e"), id)
		case domain.NodeFailed:
			fmt.Fprintf(t.out, "%s %s: %s\n", t.glyph("✗", "#ef4444"), id, node.Error)
		case domain.NodeRetrying:
			fmt.Fprintf(t.out, "%s %s retrying (attempt %d/%d): %s\n",
				t.glyph("↻", "#f59e0b"), id, node.Attempt, node.MaxAttempts, node.LastError)
		}
	}
}

func (t *Tail) printProgress(st domain.ExecutionState) {
	from := 0
	if t.seen {
		from = len(t.prev.Progress)
	}
	for _, msg := range st.Progress[min(from, len(st.Progress)):] {
		fmt.Fprintf(t.out, "  · %s\n", msg)
	}
}

func (t *Tail) printStatusChange(st domain.ExecutionState) {
	if t.seen && st.Status == t.prev.Status {
		return
	}
	switch st.Status {
	case domain.RunRunning:
		if !t.seen || t.prev.Status == domain.RunIdle {
			fmt.Fprintf(t.out, "%s run %s started\n", t.glyph("●", "#818cf8"), st.RunID)
		} else if t.prev.Status == domain.RunAwaitingConfirmation {
			fmt.Fprintf(t.out, "%s run resumed\n", t.glyph("▶", "#818cf8"))
		}
	case domain.RunAwaitingConfirmation:
		if c := st.AwaitingConfirmation; c != nil {
			fmt.Fprintf(t.out, "%s awaiting confirmation on %s: %s\n",
				t.glyph("⏸", "#f59e0b"), c.NodeID, c.Prompt)
		}
	case domain.RunCompleted:
		fmt.Fprintf(t.out, "%s run completed\n", t.glyph("●", "#22c55e"))
	case domain.RunFailed:
		fmt.Fprintf(t.out, "%s run failed: %s\n", t.glyph("●", "#ef4444"), st.Error)
	case domain.RunCancelled:
		fmt.Fprintf(t.out, "%s run cancelled\n", t.glyph("●", "#f59e0b"))
	}
}

func (t *Tail) glyph(s, hex string) string {
	return termenv.String(s).Foreground(t.prof.Color(hex)).String()
}
