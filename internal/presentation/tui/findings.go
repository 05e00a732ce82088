package tui

import (
	"fmt"
	"strings"

	"github.com/muesli/termenv"

	"github.com/rishimeka/astro/pkg/validator"
)

// FormatFindings renders validator findings one per line in check order,
// colored by severity where the terminal supports it.
func FormatFindings(findings []validator.Finding) string {
	p := termenv.ColorProfile()
	var sb strings.Builder

	for _, f := range findings {
		label := termenv.String("error").Foreground(p.Color("#ef4444"))
		if f.Severity == validator.SeverityWarning {
			label = termenv.String("warning").Foreground(p.Color("#f59e0b"))
		}

		var loc string
		switch {
		case f.NodeID != "":
			loc = fmt.Sprintf(" (node %s)", f.NodeID)
		case f.EdgeID != "":
			loc = fmt.Sprintf(" (edge %s)", f.EdgeID)
		}
		fmt.Fprintf(&sb, "  %s: %s%s\n", label, f.Message, loc)
	}
	return sb.String()
}

// SummarizeFindings renders the one-line verdict shown under a findings
// list.
func SummarizeFindings(findings []validator.Finding) string {
	var errs, warns int
	for _, f := range findings {
		if f.Severity == validator.SeverityError {
			errs++
		} else {
			warns++
		}
	}
	switch {
	case errs == 0 && warns == 0:
		return "constellation is valid"
	case errs == 0:
		return fmt.Sprintf("constellation is valid with %d warning(s)", warns)
	default:
		return fmt.Sprintf("constellation has %d error(s) and %d warning(s)", errs, warns)
	}
}
