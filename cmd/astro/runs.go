package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rishimeka/astro/internal/presentation/graph"
	"github.com/rishimeka/astro/pkg/client"
	"github.com/rishimeka/astro/pkg/domain"
	"github.com/rishimeka/astro/pkg/runstate"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect and manage runs on the server",
	Long:  `List, inspect, confirm and remove runs held by the astro server.`,
}

var runsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List runs, most recent first",
	Run: func(cmd *cobra.Command, args []string) {
		api := getClient(cmd)
		list, err := api.Runs(cmd.Context())
		if err != nil {
			fmt.Printf("Error listing runs: %v\n", err)
			os.Exit(1)
		}

		if len(list) == 0 {
			fmt.Println("No runs found.")
			return
		}

		for _, r := range list {
			fmt.Printf("%-36s  %-22s  %-22s  %s\n", r.ID, r.ConstellationID, r.Status, r.CreatedAt.Format(time.RFC3339))
		}
	},
}

var runsInspectCmd = &cobra.Command{
	Use:   "inspect <run-id>",
	Short: "Show a run and its node records",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		api := getClient(cmd)

		detail, err := api.Run(cmd.Context(), args[0])
		if err != nil {
			fmt.Printf("Error loading run '%s': %v\n", args[0], err)
			os.Exit(1)
		}

		if asGraph, _ := cmd.Flags().GetBool("graph"); asGraph {
			c, err := api.Constellation(cmd.Context(), detail.Run.ConstellationID)
			if err != nil {
				fmt.Printf("Error loading constellation '%s': %v\n", detail.Run.ConstellationID, err)
				os.Exit(1)
			}
			st := runstate.Seed(detail.Run, detail.Nodes)
			fmt.Print(graph.GenerateMermaid(c, graph.FromState(st)))
			return
		}

		// Pretty print JSON
		data, err := json.MarshalIndent(detail, "", "  ")
		if err != nil {
			fmt.Printf("Error marshaling run: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(data))
	},
}

var runsConfirmCmd = &cobra.Command{
	Use:   "confirm <run-id>",
	Short: "Answer a run's pending confirmation gate",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		api := getClient(cmd)
		cancel, _ := cmd.Flags().GetBool("cancel")
		extra, _ := cmd.Flags().GetString("context")

		ack, err := api.SendConfirmation(cmd.Context(), args[0], domain.ConfirmationDecision{
			Proceed:           !cancel,
			AdditionalContext: extra,
		})
		if err != nil {
			fmt.Printf("Error confirming run '%s': %v\n", args[0], err)
			os.Exit(1)
		}
		fmt.Printf("run %s: %s\n", ack.RunID, ack.Status)
	},
}

var runsRmCmd = &cobra.Command{
	Use:   "rm <run-id>",
	Short: "Delete a run and its node records",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		api := getClient(cmd)

		if err := api.DeleteRun(cmd.Context(), args[0]); err != nil {
			fmt.Printf("Error deleting run '%s': %v\n", args[0], err)
			os.Exit(1)
		}
		fmt.Printf("Run '%s' deleted.\n", args[0])
	},
}

func getClient(cmd *cobra.Command) *client.Client {
	server, _ := cmd.Flags().GetString("server")
	return client.New(server)
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsLsCmd)
	runsCmd.AddCommand(runsInspectCmd)
	runsCmd.AddCommand(runsConfirmCmd)
	runsCmd.AddCommand(runsRmCmd)

	runsInspectCmd.Flags().Bool("graph", false, "Render a Mermaid graph with node outcomes instead of JSON")
	runsConfirmCmd.Flags().Bool("cancel", false, "Cancel the run instead of proceeding")
	runsConfirmCmd.Flags().String("context", "", "Additional context carried into the confirmed star")
}
