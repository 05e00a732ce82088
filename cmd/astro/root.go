package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "astro",
	Short: "Astro runs constellation workflows",
	Long: `Astro validates, serves and runs constellations: directed workflow graphs
of typed stars executed against model providers and external probes.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("server", "http://localhost:8080", "Base URL of the astro server")
}
