/*
Package observability provides metrics and tracing for run execution.

Metrics holds the prometheus instruments the engine and the SSE hub record
into; SpanEmitter turns run events into OpenTelemetry spans. Both are
optional: components that receive neither record nothing.
*/
package observability
