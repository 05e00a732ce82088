// Package validator checks that a constellation graph is a well-formed,
// executable workflow before it may be saved or run.
package validator

import (
	"fmt"

	"github.com/rishimeka/astro/pkg/domain"
)

// Severity ranks a finding. Errors block save and run; warnings do not.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding is one structural problem in a constellation graph. NodeID and
// EdgeID are set when the finding points at a specific element.
type Finding struct {
	NodeID   string   `json:"node_id,omitempty"`
	EdgeID   string   `json:"edge_id,omitempty"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// ValidateGraph runs every structural check against the graph and returns
// the accumulated findings in check order. It is pure and deterministic for
// a given input: no check short-circuits another, so one malformed graph can
// produce several findings at once. It is cheap enough to re-run on every
// editor mutation.
//
// Ordinary cycles among non-eval stars are not detected here; the engine
// bounds loop traversals at runtime instead.
func ValidateGraph(nodes []domain.Node, edges []domain.Edge) []Finding {
	var findings []Finding

	var starts, ends []domain.Node
	for _, n := range nodes {
		switch n.Kind {
		case domain.NodeKindStart:
			starts = append(starts, n)
		case domain.NodeKindEnd:
			ends = append(ends, n)
		}
	}

	// Anchor counts. Reachability below depends on these, every other check
	// runs regardless.
	if len(starts) != 1 {
		findings = append(findings, Finding{
			Message:  fmt.Sprintf("constellation must have exactly one start node, found %d", len(starts)),
			Severity: SeverityError,
		})
	}
	if len(ends) != 1 {
		findings = append(findings, Finding{
			Message:  fmt.Sprintf("constellation must have exactly one end node, found %d", len(ends)),
			Severity: SeverityError,
		})
	}

	incoming := make(map[string]int)
	outgoing := make(map[string]int)
	for _, e := range edges {
		outgoing[e.From]++
		incoming[e.To]++
	}

	// Star connectivity: every star needs at least one edge in and one out.
	for _, n := range nodes {
		if n.Kind != domain.NodeKindStar {
			continue
		}
		if incoming[n.ID] == 0 {
			findings = append(findings, Finding{
				NodeID:   n.ID,
				Message:  fmt.Sprintf("star %q has no incoming edge", displayName(n)),
				Severity: SeverityError,
			})
		}
		if outgoing[n.ID] == 0 {
			findings = append(findings, Finding{
				NodeID:   n.ID,
				Message:  fmt.Sprintf("star %q has no outgoing edge", displayName(n)),
				Severity: SeverityError,
			})
		}
	}

	// Reachability, skipped while the anchor counts are wrong.
	if len(starts) == 1 && len(ends) == 1 {
		if !reaches(starts[0].ID, ends[0].ID, edges) {
			findings = append(findings, Finding{
				Message:  "end node is not reachable from the start node",
				Severity: SeverityError,
			})
		}
	}

	// Eval branch shape: exactly one continue and one loop edge out of every
	// eval star, nothing untagged.
	for _, n := range nodes {
		if n.Kind != domain.NodeKindStar || n.StarType != domain.StarEval {
			continue
		}
		var cont, loop int
		for _, e := range edges {
			if e.From != n.ID {
				continue
			}
			switch e.Tag {
			case domain.EdgeTagContinue:
				cont++
			case domain.EdgeTagLoop:
				loop++
			default:
				findings = append(findings, Finding{
					NodeID:   n.ID,
					EdgeID:   e.ID,
					Message:  fmt.Sprintf("edge from eval star %q must be tagged continue or loop", displayName(n)),
					Severity: SeverityError,
				})
			}
		}
		switch {
		case cont == 0:
			findings = append(findings, Finding{
				NodeID:   n.ID,
				Message:  fmt.Sprintf("eval star %q is missing a continue edge", displayName(n)),
				Severity: SeverityError,
			})
		case cont > 1:
			findings = append(findings, Finding{
				NodeID:   n.ID,
				Message:  fmt.Sprintf("eval star %q has %d continue edges, expected exactly one", displayName(n), cont),
				Severity: SeverityError,
			})
		}
		switch {
		case loop == 0:
			findings = append(findings, Finding{
				NodeID:   n.ID,
				Message:  fmt.Sprintf("eval star %q is missing a loop edge", displayName(n)),
				Severity: SeverityError,
			})
		case loop > 1:
			findings = append(findings, Finding{
				NodeID:   n.ID,
				Message:  fmt.Sprintf("eval star %q has %d loop edges, expected exactly one", displayName(n), loop),
				Severity: SeverityError,
			})
		}
	}

	// Confirmation fan-in: more than one path into a pausing node makes
	// resume ambiguous. Advisory only.
	for _, n := range nodes {
		if n.Kind != domain.NodeKindStar || !n.RequiresConfirmation {
			continue
		}
		if count := incoming[n.ID]; count > 1 {
			findings = append(findings, Finding{
				NodeID:   n.ID,
				Message:  fmt.Sprintf("confirmation-gated star %q has %d incoming edges; a single upstream path keeps resume unambiguous", displayName(n), count),
				Severity: SeverityWarning,
			})
		}
	}

	// Anchor direction.
	for _, n := range starts {
		if incoming[n.ID] > 0 {
			findings = append(findings, Finding{
				NodeID:   n.ID,
				Message:  "start node must not have incoming edges",
				Severity: SeverityError,
			})
		}
	}
	for _, n := range ends {
		if outgoing[n.ID] > 0 {
			findings = append(findings, Finding{
				NodeID:   n.ID,
				Message:  "end node must not have outgoing edges",
				Severity: SeverityError,
			})
		}
	}

	return findings
}

// ValidateConstellation is ValidateGraph over a constellation value.
func ValidateConstellation(c *domain.Constellation) []Finding {
	return ValidateGraph(c.Nodes, c.Edges)
}

// HasErrors reports whether any finding carries error severity. Callers use
// it as the save/run gate.
func HasErrors(findings []Finding) bool {
	for _, f := range findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}

// reaches walks outgoing edges breadth-first from fromID and reports whether
// toID is visited.
func reaches(fromID, toID string, edges []domain.Edge) bool {
	next := make(map[string][]string)
	for _, e := range edges {
		next[e.From] = append(next[e.From], e.To)
	}

	visited := make(map[string]bool)
	queue := []string{fromID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current == toID {
			return true
		}
		if visited[current] {
			continue
		}
		visited[current] = true

		queue = append(queue, next[current]...)
	}

	return false
}

func displayName(n domain.Node) string {
	if n.Label != "" {
		return n.Label
	}
	return n.ID
}
