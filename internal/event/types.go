package event

import (
	"corium/internal/dependency"
	"corium/internal/ids"
)

// Well-known event type tags (§4, lifecycle events the container resolves
// against the relevant Lifecycle Manager, plus the implicit provider
// availability broadcast of §4.5).
var (
	TypeDependencyRequest     = RegisterType[DependencyRequestEvent]("DependencyRequest")
	TypeDependencyUndoRequest = RegisterType[DependencyUndoRequestEvent]("DependencyUndoRequest")
	TypeStartService          = RegisterType[StartServiceEvent]("StartService")
	TypeStopService           = RegisterType[StopServiceEvent]("StopService")
	TypeRemoveService         = RegisterType[RemoveServiceEvent]("RemoveService")
	TypeQuit                  = RegisterType[QuitEvent]("Quit")
	TypeUnrecoverableError    = RegisterType[UnrecoverableErrorEvent]("UnrecoverableError")
	TypeProviderAvailable     = RegisterType[ProviderAvailableEvent]("ProviderAvailable")
	TypeProviderWithdrawn     = RegisterType[ProviderWithdrawnEvent]("ProviderWithdrawn")
	TypeContinuation          = RegisterType[ContinuationEvent]("Continuation")
)

// DependencyRequestEvent asks the container to (re-)evaluate hash against
// target's declared dependency list — one is posted per declared interface
// when a service is installed (§4.5 step 4). While it is still queued, a
// tracker that registers for Hash is handed it directly as a replay (§4.4
// "Registration"); the replay posts no new event.
type DependencyRequestEvent struct {
	Base
	Target   ids.ServiceID
	Hash     dependency.InterfaceHash
	Required bool
}

// DependencyUndoRequestEvent mirrors DependencyRequestEvent for a
// dependency that target no longer needs (e.g. it is being removed).
type DependencyUndoRequestEvent struct {
	Base
	Target ids.ServiceID
	Hash   dependency.InterfaceHash
}

// StartServiceEvent requests that target's Lifecycle Manager attempt a
// RESOLVED -> STARTING -> ACTIVE transition (§4.3).
type StartServiceEvent struct {
	Base
	Target ids.ServiceID
}

// StopServiceEvent requests that target's Lifecycle Manager attempt an
// ACTIVE -> STOPPING -> INSTALLED transition (§4.3).
type StopServiceEvent struct {
	Base
	Target ids.ServiceID
}

// RemoveServiceEvent requests that target, currently INSTALLED, transition
// to the terminal UNINSTALLED state (§4.3).
type RemoveServiceEvent struct {
	Base
	Target ids.ServiceID
}

// QuitEvent latches the dispatcher's quit flag once processed (§4.4, §5
// "Cancellation and timeouts").
type QuitEvent struct {
	Base
}

// UnrecoverableErrorEvent is posted by a service about itself; the
// container responds by posting StopServiceEvent at the service's priority
// (§7 error kind 4, "Unrecoverable").
type UnrecoverableErrorEvent struct {
	Base
	Target ids.ServiceID
	Err    error
}

// ProviderAvailableEvent is the implicit broadcast the container posts when
// a service becomes ACTIVE, re-driving DependencyRequest handling for every
// tracker and Lifecycle Manager awaiting Hash (§4.5, last paragraph).
type ProviderAvailableEvent struct {
	Base
	Hash     dependency.InterfaceHash
	Provider ids.ServiceID
}

// ProviderWithdrawnEvent is the symmetric broadcast for a provider that has
// completed a stop (returned to INSTALLED after being ACTIVE or STOPPING).
// Removal itself broadcasts nothing, since only INSTALLED services can be
// removed.
type ProviderWithdrawnEvent struct {
	Base
	Hash     dependency.InterfaceHash
	Provider ids.ServiceID
}

// ContinuationEvent resumes a suspended lazy-sequence handler (§4.4
// "Cooperative suspension"). Token identifies which suspended pull to
// resume; it is internal to the dispatcher and never constructed by
// callers.
type ContinuationEvent struct {
	Base
	Token uint64
}
