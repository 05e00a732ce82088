package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rishimeka/astro"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of astro",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("astro version %s\n", strings.TrimSpace(astro.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
