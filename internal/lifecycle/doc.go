// Package lifecycle implements the per-service state machine described in
// §4.3: INSTALLED -> RESOLVED -> STARTING -> ACTIVE -> STOPPING, collapsing
// back to INSTALLED on a normal stop or forward to the terminal UNINSTALLED
// state, with a dedicated UNKNOWN state for a service whose Stop reported a
// non-retryable failure (a non-retryable Start failure returns the service
// to INSTALLED instead).
//
// A Manager owns exactly one Service and the dependency.Registry tracking
// its injected providers. It never calls Start or Stop directly from
// outside the dispatch loop — container wires dispatcher events to the
// Handle* methods below, so every transition happens on the consumer
// goroutine.
package lifecycle
