/*
Package domain contains the core domain models for Astro.

It defines the fundamental entities of a workflow: the Constellation graph
(Start, End and typed Star nodes joined by directed edges), the Run and its
ExecutionState snapshot, and the closed union of run events emitted while a
constellation executes. This package is kept pure and free of external
dependencies like I/O or persistence, following Hexagonal Architecture
principles.

# Key Entities

  - Node / Edge: the structural elements of a constellation graph.
  - Star: a typed execution unit (worker, planning, eval, synthesis,
    execution, docex) bound to a Directive and, optionally, Probes.
  - ExecutionState: the runtime snapshot of one run (status, per-node
    states, pending confirmation).
  - RunEvent: one frame of the execution event stream.
*/
package domain
