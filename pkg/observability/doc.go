/*
Package observability turns engine activity into Prometheus metrics and log lines.

Metrics plugs into the engine twice: its Hooks feed node visits, skill runs and
model calls, and as an event sink it counts outbound review events. LogHooks
mirrors the same callbacks to a slog logger.
*/
package observability
