package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rishimeka/astro/internal/cli"
	"github.com/rishimeka/astro/internal/config"
	mcpadapter "github.com/rishimeka/astro/pkg/adapters/mcp"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts the astro engine as an MCP server so editor assistants can validate
constellations, launch runs and answer confirmation gates as tools.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	Run: func(cmd *cobra.Command, args []string) {
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")
		cfgPath, _ := cmd.Flags().GetString("config")

		cfg, err := config.Load(cfgPath)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}
		cfg.LogFormat = "text"
		if cmd.Flags().Changed("model-provider") {
			cfg.Model.Provider, _ = cmd.Flags().GetString("model-provider")
		}
		if cmd.Flags().Changed("model") {
			cfg.Model.Model, _ = cmd.Flags().GetString("model")
		}
		if cmd.Flags().Changed("constellations") {
			cfg.ConstellationsDir, _ = cmd.Flags().GetString("constellations")
		}

		rt, err := cli.NewRuntime(cfg)
		if err != nil {
			fmt.Printf("Error initializing astro: %v\n", err)
			os.Exit(1)
		}
		defer rt.Close()

		srv := mcpadapter.NewServer(rt.Engine, rt.Runs, rt.Constellations,
			mcpadapter.WithLogger(rt.Logger),
		)

		switch transport {
		case "stdio":
			// Ensure logs don't corrupt JSON-RPC on Stdout
			log.SetOutput(os.Stderr)
			rt.Logger.Info("starting MCP server", "transport", "stdio")
			if err := srv.ServeStdio(); err != nil {
				rt.Logger.Error("MCP server execution failed", "err", err)
				os.Exit(1)
			}
		case "sse":
			rt.Logger.Info("starting MCP server", "transport", "sse", "port", port)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := srv.ServeSSE(ctx, port); err != nil {
				if err != http.ErrServerClosed {
					rt.Logger.Error("MCP server execution failed", "err", err)
					os.Exit(1)
				}
			}
			rt.Logger.Info("MCP server stopped")
		default:
			fmt.Printf("Unknown transport: %s. Supported: stdio, sse\n", transport)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("port", 8080, "Port to listen on (only for SSE)")
	mcpCmd.Flags().String("config", "", "Path to a YAML config file")
	mcpCmd.Flags().String("model-provider", "mock", "Model provider: anthropic, openai or mock")
	mcpCmd.Flags().String("model", "", "Model name for the provider")
	mcpCmd.Flags().String("constellations", "", "Directory of constellation definition files")
}
