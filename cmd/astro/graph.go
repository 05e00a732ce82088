package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rishimeka/astro/internal/cli"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <file>",
	Short: "Export a constellation as a Mermaid diagram",
	Long:  `Reads a constellation definition and outputs a Mermaid diagram (graph TD) of its nodes and edges.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := cli.PrintGraph(args[0]); err != nil {
			fmt.Printf("Error generating graph: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
