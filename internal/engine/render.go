package engine

import (
	"fmt"
	"strings"

	"github.com/rishimeka/astro/pkg/domain"
)

// renderDirective expands a star's directive template against the input
// flowing into the node. The {{input}} placeholder is replaced wherever it
// appears; a directive without a template passes the input through verbatim.
func renderDirective(d domain.Directive, input string) (system, prompt string) {
	if d.Template == "" {
		return d.System, input
	}
	return d.System, strings.ReplaceAll(d.Template, "{{input}}", input)
}

// evalInstruction is appended to every eval star prompt so the model answers
// with a branch name the engine can parse.
const evalInstruction = "\n\nAnswer with exactly one word: continue or loop."

// parseEvalDecision maps a model answer onto an eval star's outgoing branch.
// An answer that names neither branch defaults to continue, which keeps a
// confused model from trapping the run in its loop edge.
func parseEvalDecision(text string) domain.EdgeTag {
	clean := strings.ToLower(strings.TrimSpace(text))

	switch {
	case strings.HasPrefix(clean, "loop"):
		return domain.EdgeTagLoop
	case strings.HasPrefix(clean, "continue"):
		return domain.EdgeTagContinue
	}
	if strings.Contains(clean, "loop") && !strings.Contains(clean, "continue") {
		return domain.EdgeTagLoop
	}
	return domain.EdgeTagContinue
}

// confirmationPrompt resolves the text shown while a gated node waits for a
// decision.
func confirmationPrompt(node domain.Node, star domain.Star) string {
	if p := decodeSettings(star.Config).ConfirmationPrompt; p != "" {
		return p
	}
	name := star.Name
	if name == "" {
		name = node.ID
	}
	return fmt.Sprintf("Proceed with %s?", name)
}
