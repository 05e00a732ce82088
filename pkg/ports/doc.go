/*
Package ports defines the driven ports (interfaces) for the Astro core.

These interfaces decouple the domain logic from external implementations,
allowing the stream client and the engine to work with various storage
backends, transports and confirmation channels.

# Key Interfaces

  - RunStore: persists run summaries and per-node outcome records.
  - ConstellationStore: persists constellation graphs.
  - StreamOpener: the raw subscription primitive for run event streams.
  - ConfirmationSender: delivers proceed/cancel decisions for paused runs.
*/
package ports
