package lifecycle

import (
	"context"
	"log/slog"
	"sync"

	"corium/internal/dependency"
	"corium/internal/event"
	"corium/internal/services"
)

// Manager drives one service through the state machine of §4.3, reacting
// to dependency satisfaction changes and to Start/Stop/Remove requests
// dispatched by the container.
type Manager struct {
	mu    sync.Mutex
	state State

	svc        services.Service
	deps       *dependency.Registry
	dispatcher *event.Dispatcher
	logger     *slog.Logger

	// bufferedOptional records optional-dependency notifications that
	// arrived while Starting or Stopping, so they aren't lost even
	// though they don't drive a transition (§4.3 "buffers optional
	// ones").
	bufferedOptional []dependency.InterfaceHash
}

// NewManager returns a Manager in the Installed state.
func NewManager(svc services.Service, deps *dependency.Registry, dispatcher *event.Dispatcher, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		state:      Installed,
		svc:        svc,
		deps:       deps,
		dispatcher: dispatcher,
		logger:     logger.With("subsystem", "lifecycle", "service", svc.ID()),
	}
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) postSelf(typ event.TypeTag, build func(event.Base) event.Event) {
	base := event.Base{
		EventID:            m.dispatcher.NextEventID(),
		OriginatingService: m.svc.ID(),
		EventPriority:      m.svc.Properties().Priority(),
		TypeTag:            typ,
	}
	m.dispatcher.Push(build(base))
}

// NotifyProviderAvailable is called once per provider injected for hash,
// after the container has already recorded it in deps. While Starting or
// Stopping, a required arrival is left for the next evaluation and an
// optional one is buffered (§4.3); otherwise, if this completes
// satisfaction, the service moves to Resolved and a StartServiceEvent is
// posted.
func (m *Manager) NotifyProviderAvailable(hash dependency.InterfaceHash, required bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Starting || m.state == Stopping {
		if !required {
			m.bufferedOptional = append(m.bufferedOptional, hash)
		}
		return
	}
	if m.state == Installed && m.deps.Satisfied() {
		m.state = Resolved
		m.postSelf(event.TypeStartService, func(b event.Base) event.Event {
			return event.StartServiceEvent{Base: b, Target: m.svc.ID()}
		})
	}
}

// NotifyProviderWithdrawn is called after the container has removed a
// provider from deps. If that emptied a required slot on a currently
// Active service, a StopServiceEvent is posted (§4.2 "withdraw").
func (m *Manager) NotifyProviderWithdrawn(requiredSlotNowEmpty bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if requiredSlotNowEmpty && m.state == Active {
		m.state = Stopping
		m.postSelf(event.TypeStopService, func(b event.Base) event.Event {
			return event.StopServiceEvent{Base: b, Target: m.svc.ID()}
		})
	}
}

// EvaluateInitialSatisfaction checks, right after construction, whether
// the dependency registry is already satisfied — either because the
// service declared no required dependencies or because the container
// synchronously offered every required provider before this call (§4.5
// step 5). If so it transitions straight to Resolved and posts
// StartServiceEvent, the same as NotifyProviderAvailable would.
func (m *Manager) EvaluateInitialSatisfaction() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Installed && m.deps.Satisfied() {
		m.state = Resolved
		m.postSelf(event.TypeStartService, func(b event.Base) event.Event {
			return event.StartServiceEvent{Base: b, Target: m.svc.ID()}
		})
	}
}

// HandleStart attempts the Resolved -> Starting -> Active transition. A
// retryable failure reschedules itself as a fresh Resolved -> Starting
// attempt at the same priority; a permanent failure returns to Installed
// (terminal until deps change, §4.3) and raises an UnrecoverableErrorEvent.
func (m *Manager) HandleStart(ctx context.Context) {
	m.mu.Lock()
	if m.state != Resolved {
		m.mu.Unlock()
		return
	}
	m.state = Starting
	m.mu.Unlock()

	result := m.svc.Start(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	switch result {
	case services.Succeeded:
		m.state = Active
		m.logger.Info("service started")
	case services.FailedRetry:
		m.state = Resolved
		m.logger.Warn("start failed, retrying")
		m.postSelf(event.TypeStartService, func(b event.Base) event.Event {
			return event.StartServiceEvent{Base: b, Target: m.svc.ID()}
		})
	case services.FailedPermanent:
		m.state = Installed
		m.logger.Error("start failed permanently")
		m.postSelf(event.TypeUnrecoverableError, func(b event.Base) event.Event {
			return event.UnrecoverableErrorEvent{Base: b, Target: m.svc.ID()}
		})
	}
}

// HandleStop attempts the Active -> Stopping -> Installed transition. As
// with HandleStart, a retryable failure reschedules itself; a permanent
// one moves to Unknown.
func (m *Manager) HandleStop(ctx context.Context) {
	m.mu.Lock()
	if m.state != Stopping && m.state != Active {
		m.mu.Unlock()
		return
	}
	m.state = Stopping
	m.mu.Unlock()

	result := m.svc.Stop(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	switch result {
	case services.Succeeded:
		m.state = Installed
		m.logger.Info("service stopped")
		m.drainBufferedOptional()
	case services.FailedRetry:
		m.logger.Warn("stop failed, retrying")
		m.postSelf(event.TypeStopService, func(b event.Base) event.Event {
			return event.StopServiceEvent{Base: b, Target: m.svc.ID()}
		})
	case services.FailedPermanent:
		m.state = Unknown
		m.logger.Error("stop failed permanently")
		m.postSelf(event.TypeUnrecoverableError, func(b event.Base) event.Event {
			return event.UnrecoverableErrorEvent{Base: b, Target: m.svc.ID()}
		})
	}
}

// HandleRemove transitions an Installed service to the terminal
// Uninstalled state. It is a no-op from any other state.
func (m *Manager) HandleRemove() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Installed {
		return
	}
	m.state = Uninstalled
}

// drainBufferedOptional re-evaluates whether buffered optional
// notifications should now drive a transition; called after returning to
// Installed, when the state machine is free to act on them again.
func (m *Manager) drainBufferedOptional() {
	if len(m.bufferedOptional) == 0 {
		return
	}
	m.bufferedOptional = m.bufferedOptional[:0]
	if m.deps.Satisfied() {
		m.state = Resolved
		m.postSelf(event.TypeStartService, func(b event.Base) event.Event {
			return event.StartServiceEvent{Base: b, Target: m.svc.ID()}
		})
	}
}
