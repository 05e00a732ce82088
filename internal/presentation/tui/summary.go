package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rishimeka/astro/pkg/domain"
)

// RunSummary builds the markdown report printed once a run reaches a
// terminal status. Callers feed it through the renderer from NewRenderer.
func RunSummary(st domain.ExecutionState) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Run %s\n\n", st.RunID)
	fmt.Fprintf(&sb, "**Status:** %s\n\n", st.Status)
	if st.Error != "" {
		fmt.Fprintf(&sb, "**Error:** %s\n\n", st.Error)
	}

	if len(st.NodeStates) > 0 {
		ids := make([]string, 0, len(st.NodeStates))
		for id := range st.NodeStates {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		sb.WriteString("| Node | Status | Attempts |\n")
		sb.WriteString("|------|--------|----------|\n")
		for _, id := range ids {
			n := st.NodeStates[id]
			attempts := "1"
			if n.Attempt > 0 {
				attempts = fmt.Sprintf("%d/%d", n.Attempt, n.MaxAttempts)
			}
			fmt.Fprintf(&sb, "| %s | %s | %s |\n", id, n.Status, attempts)
		}
		sb.WriteString("\n")
	}

	if st.FinalOutput != "" {
		sb.WriteString("## Output\n\n")
		sb.WriteString(st.FinalOutput)
		sb.WriteString("\n")
	}
	return sb.String()
}
