/*
Package engine executes constellation runs on the server side.

It walks a validated constellation from its start anchor, executes each star
through a model client or a probe, and emits the run's wire events in order.
Every state transition is persisted through the run manager before the event
leaves the engine, so historical seeding always trails the live stream and
never runs ahead of it.

Confirmation-gated nodes pause the walk until a proceed or cancel decision
arrives via Confirm. Eval stars branch between their continue and loop edges;
a per-run loop budget bounds how often loop edges may be taken.
*/
package engine
