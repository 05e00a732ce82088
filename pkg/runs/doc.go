/*
Package runs coordinates concurrent access to run records.

Engine goroutines, the confirmation endpoint and housekeeping can all touch
the same run. The Manager hands each run a reference-counted keyed mutex, so
read-modify-write cycles stay serial inside one process, and can layer a
distributed lock on top for multi-replica deployments sharing a store.
*/
package runs
