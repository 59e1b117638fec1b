// Package ids provides the monotonic identifier types shared by every
// other core package: service ids and event ids. Keeping them here, rather
// than in whichever package happens to mint them first, avoids an import
// cycle between the event, dependency, lifecycle and container packages,
// all of which need to talk about "a service" or "an event" without
// depending on each other's internals.
package ids

import "sync/atomic"

// ServiceID uniquely identifies a service within one container. Assigned
// once at construction and never reused (§3 "Service").
type ServiceID uint64

// SystemService is the reserved originating_service value meaning "the
// system itself", used for events nothing posts on behalf of a service.
const SystemService ServiceID = 0

// EventID uniquely identifies an event within one container, strictly
// increasing in post order (§3 "Event").
type EventID uint64

// Counter is a process-wide (or per-container) monotonic counter with
// "started at 0, advance only" semantics (§9 "Global monotonic counters").
type Counter struct {
	next uint64
}

// Next returns the next value, starting at 1 so that 0 stays reserved for
// "unset"/"system".
func (c *Counter) Next() uint64 {
	return atomic.AddUint64(&c.next, 1)
}
