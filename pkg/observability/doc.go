/*
Package observability turns kernel lifecycle events into Prometheus metrics.

Metrics.Hooks returns domain.LifecycleHooks that can be merged with any other
hooks (logging, SSE streaming) and passed to the engine.
*/
package observability
