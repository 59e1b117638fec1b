package event

import (
	"context"
	"iter"
	"log/slog"
	"sync"

	"corium/internal/dependency"
	"corium/internal/ids"
)

// HandlerFunc is one subscriber to an event type (§4.4 "broadcast event
// handlers"). It returns whether it handled the event and, optionally, a
// lazy boolean sequence the dispatcher pulls to decide whether to keep the
// handler running immediately (true) or suspend it until a later tick
// (false) — the cooperative-suspension mechanism of §4.4.
type HandlerFunc func(Event) HandlerResult

// HandlerResult is what a HandlerFunc returns.
type HandlerResult struct {
	Handled bool
	Suspend iter.Seq[bool]
	Err     error
}

// CompletionFunc is invoked when the event named in its registration
// arrives, keyed by (originating service, event type) (§4.4 "completion
// callbacks").
type CompletionFunc func(Event)

// ErrorFunc is the error-path counterpart of CompletionFunc, invoked
// instead of the completion callback when a handler reports HandlerResult.Err.
type ErrorFunc func(Event, error)

// Tracker observes provider availability changes for one interface hash
// (§4.2, §4.4 "dependency trackers").
type Tracker func(Event)

type callbackKey struct {
	service ids.ServiceID
	typ     TypeTag
}

type handlerEntry struct {
	id int
	fn HandlerFunc
}

type trackerEntry struct {
	id int
	fn Tracker
}

type continuation struct {
	next func() (bool, bool)
	stop func()
}

// Registration is a handle returned by every Register* method; Close
// removes the registration (§4.4 "scoped registration handles").
type Registration struct {
	close func()
}

// Close removes the registration it was returned from. Safe to call more
// than once.
func (r *Registration) Close() {
	if r != nil && r.close != nil {
		r.close()
		r.close = nil
	}
}

// Dispatcher is the single-consumer, prioritized event queue described in
// §4.4. Producers on any goroutine may Push/PushPrioritized; only the
// goroutine running Run pops and delivers events, satisfying "callback
// tables mutated only by the consumer thread" in spirit if not by a
// lock-free structure — this implementation guards the tables with a
// single mutex instead of hand-rolling an MPSC queue, trading a small
// amount of contention for an API any goroutine can call safely.
type Dispatcher struct {
	mu   sync.Mutex
	cond *sync.Cond
	q    *queue
	quit bool

	eventSeq   ids.Counter
	handlerSeq int

	completions   map[callbackKey]CompletionFunc
	errors        map[callbackKey]ErrorFunc
	handlers      map[TypeTag][]handlerEntry
	trackers      map[dependency.InterfaceHash][]trackerEntry
	outstanding   map[dependency.InterfaceHash][]DependencyRequestEvent
	continuations map[uint64]continuation
	nextToken     uint64

	logger *slog.Logger
}

// New returns a Dispatcher ready to Push events and Run.
func New(logger *slog.Logger) *Dispatcher {
	return NewWithCapacity(logger, 0)
}

// NewWithCapacity is New but pre-sizes the priority heap's backing array to
// capacity, avoiding repeated small reallocations during startup bursts
// (config.Bootstrap.QueueCapacity feeds this from the container).
func NewWithCapacity(logger *slog.Logger, capacity int) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		q:             newQueueWithCapacity(capacity),
		completions:   make(map[callbackKey]CompletionFunc),
		errors:        make(map[callbackKey]ErrorFunc),
		handlers:      make(map[TypeTag][]handlerEntry),
		trackers:      make(map[dependency.InterfaceHash][]trackerEntry),
		outstanding:   make(map[dependency.InterfaceHash][]DependencyRequestEvent),
		continuations: make(map[uint64]continuation),
		logger:        logger.With("subsystem", "event"),
	}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// NextEventID hands out the next value from the dispatcher's event id
// sequence, for callers constructing a Base before Push.
func (d *Dispatcher) NextEventID() ids.EventID {
	return ids.EventID(d.eventSeq.Next())
}

// Push enqueues ev at its own Priority(), in FIFO order relative to other
// events at that priority (§4.4).
func (d *Dispatcher) Push(ev Event) {
	d.pushLocal(ev, nil)
}

// PushPrioritized enqueues ev at priority, overriding Priority() — used by
// the container's unrecoverable-error escalation and by the dispatcher's
// own continuation events (§4.4, §7).
func (d *Dispatcher) PushPrioritized(ev Event, priority uint32) {
	d.pushLocal(ev, &priority)
}

func (d *Dispatcher) pushLocal(ev Event, override *uint32) {
	d.mu.Lock()
	if d.quit {
		// Once latched, the dispatcher drains what's already queued and
		// refuses anything new (§4.4 "Cancellation and timeouts").
		d.mu.Unlock()
		return
	}
	if dr, ok := ev.(DependencyRequestEvent); ok {
		d.outstanding[dr.Hash] = append(d.outstanding[dr.Hash], dr)
	}
	d.q.push(ev, override)
	d.cond.Signal()
	d.mu.Unlock()
}

// Quit latches the dispatcher's quit flag; Run returns once every event
// already queued has been delivered (§4.4 "Cancellation and timeouts").
func (d *Dispatcher) Quit() {
	d.mu.Lock()
	d.quit = true
	d.cond.Broadcast()
	d.mu.Unlock()
}

// RegisterHandler subscribes fn to every event of type typ, in the order
// handlers are registered (§4.4 "ordered multi-subscriber event handler
// tables").
func (d *Dispatcher) RegisterHandler(typ TypeTag, fn HandlerFunc) *Registration {
	d.mu.Lock()
	id := d.handlerSeq
	d.handlerSeq++
	d.handlers[typ] = append(d.handlers[typ], handlerEntry{id: id, fn: fn})
	d.mu.Unlock()

	return &Registration{close: func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		entries := d.handlers[typ]
		for i, e := range entries {
			if e.id == id {
				d.handlers[typ] = append(entries[:i:i], entries[i+1:]...)
				break
			}
		}
	}}
}

// RegisterCompletion registers fn to run when an event of type typ
// originating from service is dispatched without a reported error.
func (d *Dispatcher) RegisterCompletion(service ids.ServiceID, typ TypeTag, fn CompletionFunc) *Registration {
	key := callbackKey{service: service, typ: typ}
	d.mu.Lock()
	d.completions[key] = fn
	d.mu.Unlock()
	return &Registration{close: func() {
		d.mu.Lock()
		delete(d.completions, key)
		d.mu.Unlock()
	}}
}

// RegisterError registers fn to run in place of the completion callback
// when a handler for (service, typ) reports HandlerResult.Err.
func (d *Dispatcher) RegisterError(service ids.ServiceID, typ TypeTag, fn ErrorFunc) *Registration {
	key := callbackKey{service: service, typ: typ}
	d.mu.Lock()
	d.errors[key] = fn
	d.mu.Unlock()
	return &Registration{close: func() {
		d.mu.Lock()
		delete(d.errors, key)
		d.mu.Unlock()
	}}
}

// RegisterTracker subscribes fn to provider availability changes for hash.
// Registration synchronously replays every DependencyRequestEvent pushed
// for hash that is still queued (not yet dispatched), so a tracker
// registering after the fact still sees that pending demand. A request
// that has already been dispatched is not replayed, whether or not a
// provider has satisfied it.
func (d *Dispatcher) RegisterTracker(hash dependency.InterfaceHash, fn Tracker) *Registration {
	d.mu.Lock()
	id := d.handlerSeq
	d.handlerSeq++
	d.trackers[hash] = append(d.trackers[hash], trackerEntry{id: id, fn: fn})
	replay := make([]DependencyRequestEvent, len(d.outstanding[hash]))
	copy(replay, d.outstanding[hash])
	d.mu.Unlock()

	for _, req := range replay {
		fn(req)
	}

	return &Registration{close: func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		entries := d.trackers[hash]
		for i, e := range entries {
			if e.id == id {
				d.trackers[hash] = append(entries[:i:i], entries[i+1:]...)
				break
			}
		}
	}}
}

// Run drains the queue until Quit has been called and the queue is empty,
// or ctx is cancelled. It must run on a single goroutine (§4.4 "single
// consumer").
func (d *Dispatcher) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			d.Quit()
		case <-done:
		}
	}()

	for {
		d.mu.Lock()
		for d.q.len() == 0 && !d.quit {
			d.cond.Wait()
		}
		if d.q.len() == 0 && d.quit {
			d.mu.Unlock()
			return ctx.Err()
		}
		ev, _ := d.q.pop()
		d.mu.Unlock()

		d.dispatch(ev)
	}
}

// Step pops and dispatches at most one event, returning false if the queue
// was empty. Intended for tests that want deterministic single steps
// instead of running the full Run loop on a goroutine.
func (d *Dispatcher) Step() bool {
	d.mu.Lock()
	ev, ok := d.q.pop()
	d.mu.Unlock()
	if !ok {
		return false
	}
	d.dispatch(ev)
	return true
}

func (d *Dispatcher) dispatch(ev Event) {
	if dr, ok := ev.(DependencyRequestEvent); ok {
		d.removeOutstanding(dr)
	}
	if pa, ok := ev.(ProviderAvailableEvent); ok {
		d.notifyTrackers(pa.Hash, ev)
	}
	if pw, ok := ev.(ProviderWithdrawnEvent); ok {
		d.notifyTrackers(pw.Hash, ev)
	}
	if cont, ok := ev.(ContinuationEvent); ok {
		d.resumeContinuation(cont.Token)
		return
	}
	if _, ok := ev.(QuitEvent); ok {
		d.Quit()
	}

	d.mu.Lock()
	entries := append([]handlerEntry(nil), d.handlers[ev.Type()]...)
	d.mu.Unlock()

	for _, e := range entries {
		result := e.fn(ev)
		if result.Suspend != nil {
			d.driveSuspension(ev, result.Suspend)
		}
		if !result.Handled && result.Err == nil {
			continue
		}
		key := callbackKey{service: ev.Originator(), typ: ev.Type()}
		d.mu.Lock()
		completion, hasCompletion := d.completions[key]
		errFn, hasErr := d.errors[key]
		d.mu.Unlock()
		if result.Err != nil && hasErr {
			errFn(ev, result.Err)
		} else if result.Err != nil {
			// §7: with no error callback registered, the error is logged
			// and swallowed rather than propagated.
			d.logger.Error("event handler error with no registered error callback",
				"event_type", TypeName(ev.Type()), "originator", ev.Originator(), "err", result.Err)
		} else if hasCompletion {
			completion(ev)
		}
	}
}

func (d *Dispatcher) removeOutstanding(dr DependencyRequestEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	reqs := d.outstanding[dr.Hash]
	for i, r := range reqs {
		if r.EventID == dr.EventID {
			d.outstanding[dr.Hash] = append(reqs[:i:i], reqs[i+1:]...)
			break
		}
	}
}

func (d *Dispatcher) notifyTrackers(hash dependency.InterfaceHash, ev Event) {
	d.mu.Lock()
	entries := append([]trackerEntry(nil), d.trackers[hash]...)
	d.mu.Unlock()
	for _, e := range entries {
		e.fn(ev)
	}
}

// driveSuspension pulls seq until it yields false (suspend) or is
// exhausted (done). A true value means "keep going", so the dispatcher
// pulls again immediately without yielding control; a false value stores
// the pull/stop pair and schedules a ContinuationEvent at ev's priority so
// the handler resumes on a later tick instead of blocking the consumer.
func (d *Dispatcher) driveSuspension(ev Event, seq iter.Seq[bool]) {
	next, stop := iter.Pull(seq)
	for {
		cont, ok := next()
		if !ok {
			stop()
			return
		}
		if cont {
			continue
		}
		token := d.storeContinuation(next, stop)
		d.PushPrioritized(ContinuationEvent{
			Base:  Base{EventID: d.NextEventID(), OriginatingService: ev.Originator(), EventPriority: ev.Priority(), TypeTag: TypeContinuation},
			Token: token,
		}, ev.Priority())
		return
	}
}

func (d *Dispatcher) storeContinuation(next func() (bool, bool), stop func()) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	token := d.nextToken
	d.nextToken++
	d.continuations[token] = continuation{next: next, stop: stop}
	return token
}

func (d *Dispatcher) resumeContinuation(token uint64) {
	d.mu.Lock()
	cont, ok := d.continuations[token]
	delete(d.continuations, token)
	d.mu.Unlock()
	if !ok {
		return
	}
	for {
		cv, ok := cont.next()
		if !ok {
			cont.stop()
			return
		}
		if cv {
			continue
		}
		newToken := d.storeContinuation(cont.next, cont.stop)
		d.PushPrioritized(ContinuationEvent{
			Base:  Base{EventID: d.NextEventID(), TypeTag: TypeContinuation},
			Token: newToken,
		}, 0)
		return
	}
}
