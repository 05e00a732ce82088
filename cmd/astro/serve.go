package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rishimeka/astro/internal/cli"
	"github.com/rishimeka/astro/internal/config"
	astrohttp "github.com/rishimeka/astro/pkg/adapters/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the astro HTTP server",
	Long: `Starts the engine in server mode, exposing the constellation and run API
over HTTP with an SSE event stream per run.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfgPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(cfgPath)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}

		// Flags override the file.
		if cmd.Flags().Changed("addr") {
			cfg.Addr, _ = cmd.Flags().GetString("addr")
		}
		if cmd.Flags().Changed("store") {
			cfg.Store.Backend, _ = cmd.Flags().GetString("store")
		}
		if cmd.Flags().Changed("model-provider") {
			cfg.Model.Provider, _ = cmd.Flags().GetString("model-provider")
		}
		if cmd.Flags().Changed("model") {
			cfg.Model.Model, _ = cmd.Flags().GetString("model")
		}
		if cmd.Flags().Changed("constellations") {
			cfg.ConstellationsDir, _ = cmd.Flags().GetString("constellations")
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
		}

		rt, err := cli.NewRuntime(cfg)
		if err != nil {
			fmt.Printf("Error initializing astro: %v\n", err)
			os.Exit(1)
		}
		defer rt.Close()

		handler := astrohttp.NewHandler(rt.Engine, rt.Runs, rt.Constellations, rt.Hub,
			astrohttp.WithLogger(rt.Logger),
			astrohttp.WithMetricsRegistry(rt.Registry),
		)

		srv := &http.Server{
			Addr:    cfg.Addr,
			Handler: handler,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			rt.Logger.Info("server listening", "addr", srv.Addr, "store", cfg.Store.Backend, "model", cfg.Model.Provider)
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		// Blocking main and waiting for shutdown.
		select {
		case err := <-serverErrors:
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)

		case sig := <-shutdown:
			rt.Logger.Info("shutdown started", "signal", sig.String())

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				rt.Logger.Error("graceful shutdown did not complete", "err", err)
				if err := srv.Close(); err != nil {
					rt.Logger.Error("failed to close server", "err", err)
				}
			}
			rt.Logger.Info("server stopped")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("config", "", "Path to a YAML config file")
	serveCmd.Flags().StringP("addr", "a", ":8080", "Address to listen on")
	serveCmd.Flags().String("store", "memory", "Run store backend: memory, redis or sqlite")
	serveCmd.Flags().String("model-provider", "mock", "Model provider: anthropic, openai or mock")
	serveCmd.Flags().String("model", "", "Model name for the provider")
	serveCmd.Flags().String("constellations", "", "Directory of constellation definition files")
	serveCmd.Flags().String("log-level", "info", "Log level: debug, info, warn or error")
}
