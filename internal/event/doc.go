// Package event implements the Event Envelope and Event Dispatcher: a
// size-bounded, typed event carrier and the prioritized, single-consumer
// queue that delivers it to completion/error callbacks, broadcast
// handlers, and dependency trackers.
//
// Event payloads are plain Go values satisfying the Event interface.
// RegisterType enforces the 128-byte size cap described in §4.1 at
// registration time — the closest a Go program gets to the original's
// compile-time rejection of oversized payloads, since the language has no
// fixed-capacity, move-only value cell of its own.
package event
