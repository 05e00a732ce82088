package cli

import (
	"fmt"

	"github.com/rishimeka/astro/internal/presentation/graph"
	"github.com/rishimeka/astro/internal/presentation/tui"
	"github.com/rishimeka/astro/pkg/adapters/file"
	"github.com/rishimeka/astro/pkg/validator"
)

// ValidateFile checks a constellation definition file and prints its
// findings. It returns an error when any finding has error severity, so the
// command can exit non-zero.
func ValidateFile(path string) error {
	c, err := file.Load(path)
	if err != nil {
		return err
	}

	findings := validator.ValidateConstellation(c)
	if len(findings) > 0 {
		fmt.Printf("%s:\n", path)
		fmt.Print(tui.FormatFindings(findings))
	}
	fmt.Println(tui.SummarizeFindings(findings))

	if validator.HasErrors(findings) {
		return fmt.Errorf("constellation %s is not runnable", c.ID)
	}
	return nil
}

// PrintGraph writes the constellation as a Mermaid diagram on stdout.
func PrintGraph(path string) error {
	c, err := file.Load(path)
	if err != nil {
		return err
	}
	fmt.Print(graph.GenerateMermaid(c, nil))
	return nil
}
