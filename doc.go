// Package astro is a workflow engine that executes constellations: directed
// graphs of model-backed steps ("stars") validated before every save and
// streamed as events while they run.
//
// It separates the graph definition (Constellation) from execution state
// (RunRecord and its events) and from side-effects (model clients and probes),
// so the same engine can sit behind the HTTP API, the MCP server, the CLI, or
// your own process.
//
// # Concept
//
// A constellation names its stars and wires them between a start and an end
// anchor. Worker, planning, synthesis and docex stars produce text through a
// model client; eval stars route the walk along continue or loop edges;
// execution stars call registered probes. The engine walks the graph one node
// at a time, persists every transition, and pauses at nodes marked
// requires_confirmation until a decision arrives.
//
// # Key Features
//
//   - Structural validation: anchors, reachability, edge wiring and eval
//     branch tags are checked before a constellation is accepted.
//   - Durable runs: every node transition is persisted, so finished runs can
//     be inspected and replayed as an event stream.
//   - Confirmation gates: runs pause on marked nodes and resume or cancel on
//     an explicit decision.
//   - Pluggable storage: in-memory, file, Redis and SQLite stores ship in
//     pkg/adapters; anything implementing ports.RunStore works.
//
// # Usage
//
// Initialize the engine with New. Without options it is fully in-memory and
// offline, answering every star with the mock model client.
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		"github.com/rishimeka/astro"
//		"github.com/rishimeka/astro/pkg/domain"
//	)
//
//	func main() {
//		app := astro.New()
//		defer app.Close()
//
//		ctx := context.Background()
//
//		// Persist a constellation; saves are rejected while the
//		// validator reports errors.
//		if findings, err := app.SaveConstellation(ctx, pipeline()); err != nil {
//			for _, f := range findings {
//				log.Printf("%s: %s", f.Severity, f.Message)
//			}
//			log.Fatal(err)
//		}
//
//		// Start a run and wait for it to finish.
//		runID, err := app.Run(ctx, "pipeline", "ship the release")
//		if err != nil {
//			log.Fatal(err)
//		}
//		rec, err := app.Wait(ctx, runID)
//		if err != nil {
//			log.Fatal(err)
//		}
//		log.Println(rec.Status, rec.FinalOutput)
//	}
//
//	func pipeline() *domain.Constellation {
//		// Build the graph from domain structs, pkg/dsl, or a YAML file
//		// via pkg/adapters/file.
//		return &domain.Constellation{ID: "pipeline" /* ... */}
//	}
//
// Runs started over the HTTP API stream their progress as server-sent events;
// pkg/client and pkg/stream consume that feed and fold it back into the same
// execution state the engine holds locally.
package astro
