package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rishimeka/astro/internal/cli"
	"github.com/rishimeka/astro/internal/presentation/tui"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <file|constellation-id>",
	Short: "Start a run and follow its event stream",
	Long: `Starts a run on the server and tails its event stream until it finishes.
A definition file is saved to the server first; a bare argument is treated
as the id of a constellation already there. Confirmation gates are answered
interactively, or automatically with --yes.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		server, _ := cmd.Flags().GetString("server")
		input, _ := cmd.Flags().GetString("input")
		yes, _ := cmd.Flags().GetBool("yes")
		debug, _ := cmd.Flags().GetBool("debug")

		if term.IsTerminal(int(os.Stdout.Fd())) {
			tui.PrintBanner()
		}

		level := "warn"
		if debug {
			level = "debug"
		}
		logger := cli.NewLogger("text", level)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		opts := cli.RunOptions{
			Server: server,
			Target: args[0],
			Input:  input,
			Yes:    yes,
		}
		if err := cli.RunFlow(ctx, opts, logger); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("input", "i", "", "Input passed to the run")
	runCmd.Flags().BoolP("yes", "y", false, "Answer every confirmation gate with proceed")
	runCmd.Flags().Bool("debug", false, "Verbose client logging")
}
