package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rishimeka/astro/internal/cli"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a constellation definition for structural problems",
	Long: `Validates the graph structure: start and end anchors, reachability,
dangling edges, star bindings and eval branch tags. Exits non-zero when any
error-severity finding remains.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := cli.ValidateFile(args[0]); err != nil {
			fmt.Printf("Validation failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
