package graph

import (
	"fmt"
	"strings"

	"github.com/rishimeka/astro/pkg/domain"
)

// Overlay contains run state to visualize on the graph.
type Overlay struct {
	Completed []string
	Failed    []string
	Current   string
}

// FromState builds an overlay from a run's execution state.
func FromState(st domain.ExecutionState) *Overlay {
	o := &Overlay{Current: st.CurrentNodeID}
	for id, node := range st.NodeStates {
		switch node.Status {
		case domain.NodeCompleted:
			o.Completed = append(o.Completed, id)
		case domain.NodeFailed:
			o.Failed = append(o.Failed, id)
		}
	}
	return o
}

// GenerateMermaid produces a Mermaid flowchart from a constellation.
// It applies semantic styling:
// - Start/End anchors: ((Circle))
// - Eval star: {Rhombus}
// - Execution star: [[Subroutine]]
// - Default: [Rectangle]
// Eval branches carry their tag as an edge label, with the loop branch drawn
// dotted. Overlay styles (Completed/Failed/Current) are applied if provided.
func GenerateMermaid(c *domain.Constellation, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, node := range c.Nodes {
		safeID := sanitizeMermaidID(node.ID)

		opener, closer := "[", "]"
		switch {
		case node.Kind == domain.NodeKindStart, node.Kind == domain.NodeKindEnd:
			opener, closer = "((", "))"
		case node.StarType == domain.StarEval:
			opener, closer = "{", "}"
		case node.StarType == domain.StarExecution:
			opener, closer = "[[", "]]"
		}

		label := node.Label
		if label == "" {
			label = node.ID
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, escapeMermaidLabel(label), closer))
	}

	for _, edge := range c.Edges {
		safeFrom := sanitizeMermaidID(edge.From)
		safeTo := sanitizeMermaidID(edge.To)

		arrow := "-->"
		switch edge.Tag {
		case domain.EdgeTagContinue:
			arrow = "-- \"continue\" -->"
		case domain.EdgeTagLoop:
			arrow = "-. \"loop\" .->"
		}
		sb.WriteString(fmt.Sprintf("    %s %s %s\n", safeFrom, arrow, safeTo))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef completed fill:#e8f5e9,stroke:#1b5e20,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef failed fill:#ffebee,stroke:#b71c1c,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.Completed {
			safeID := sanitizeMermaidID(id)
			if !seen[safeID] && safeID != "" {
				seen[safeID] = true
				sb.WriteString(fmt.Sprintf("    class %s completed;\n", safeID))
			}
		}
		for _, id := range overlay.Failed {
			safeID := sanitizeMermaidID(id)
			if !seen[safeID] && safeID != "" {
				seen[safeID] = true
				sb.WriteString(fmt.Sprintf("    class %s failed;\n", safeID))
			}
		}
		if overlay.Current != "" {
			sb.WriteString(fmt.Sprintf("    class %s current;\n", sanitizeMermaidID(overlay.Current)))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}

func escapeMermaidLabel(label string) string {
	return strings.ReplaceAll(label, "\"", "'")
}
