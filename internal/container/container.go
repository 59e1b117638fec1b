package container

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"corium/internal/config"
	"corium/internal/dependency"
	"corium/internal/event"
	"corium/internal/ids"
	"corium/internal/lifecycle"
	"corium/internal/services"
)

// Factory constructs a Service given its freshly allocated identity, an
// empty dependency registry it should populate with Declare calls, its
// properties, and a handle back to the owning Container for factories that
// need to install further services of their own.
type Factory func(id ids.ServiceID, deps *dependency.Registry, props services.Properties, c *Container) (services.Service, error)

// Container is the Dependency Manager of §4.5: it owns every Lifecycle
// Manager and the single Event Dispatcher they share, and mediates the
// implicit provider-available / provider-withdrawn broadcast between
// services.
type Container struct {
	id uuid.UUID

	mu             sync.RWMutex
	dispatcher     *event.Dispatcher
	registry       *services.Registry
	serviceIDs     ids.Counter
	managers       map[ids.ServiceID]*lifecycle.Manager
	depsRegistries map[ids.ServiceID]*dependency.Registry
	provides       map[ids.ServiceID][]dependency.InterfaceHash
	providersOf    map[dependency.InterfaceHash][]ids.ServiceID
	interested     map[dependency.InterfaceHash][]ids.ServiceID

	sf singleflight.Group

	logger *slog.Logger

	defaultPriority uint32

	// ctx is set once by Run and read only from the dispatcher's
	// consumer goroutine thereafter; Install may run concurrently with
	// Run but never touches ctx.
	ctx context.Context
}

// New returns a Container configured with config.Default(), its own Event
// Dispatcher, and an empty service registry, with a random id for
// cross-container disambiguation.
func New(logger *slog.Logger) *Container {
	return NewWithBootstrap(logger, config.Default())
}

// NewWithBootstrap is New but sizes the dispatcher's queue and picks the
// priority for system-originated events (RequestStart/Stop/Remove) from
// boot instead of the package defaults — the bootstrap-only configuration
// wiring a demo binary loads from YAML via config.Load.
func NewWithBootstrap(logger *slog.Logger, boot config.Bootstrap) *Container {
	if logger == nil {
		logger = slog.Default()
	}
	if boot.QueueCapacity <= 0 {
		boot.QueueCapacity = config.DefaultQueueCapacity
	}
	if boot.DefaultPriority == 0 {
		boot.DefaultPriority = config.DefaultInternalPriority
	}
	c := &Container{
		id:              uuid.New(),
		registry:        services.NewRegistry(),
		managers:        make(map[ids.ServiceID]*lifecycle.Manager),
		depsRegistries:  make(map[ids.ServiceID]*dependency.Registry),
		provides:        make(map[ids.ServiceID][]dependency.InterfaceHash),
		providersOf:     make(map[dependency.InterfaceHash][]ids.ServiceID),
		interested:      make(map[dependency.InterfaceHash][]ids.ServiceID),
		logger:          logger.With("subsystem", "container"),
		defaultPriority: boot.DefaultPriority,
		ctx:             context.Background(),
	}
	if boot.ContainerID != "" {
		if parsed, err := uuid.Parse(boot.ContainerID); err == nil {
			c.id = parsed
		}
	}
	c.dispatcher = event.NewWithCapacity(logger, boot.QueueCapacity)
	c.wireHandlers()
	return c
}

// ID returns this container's disambiguating identity.
func (c *Container) ID() uuid.UUID { return c.id }

// Dispatcher returns the Event Dispatcher backing this container, for
// collaborators that need to register their own handlers or trackers.
func (c *Container) Dispatcher() *event.Dispatcher { return c.dispatcher }

func (c *Container) wireHandlers() {
	c.dispatcher.RegisterHandler(event.TypeStartService, func(ev event.Event) event.HandlerResult {
		se := ev.(event.StartServiceEvent)
		mgr := c.managerFor(se.Target)
		if mgr == nil {
			return event.HandlerResult{Handled: false}
		}
		mgr.HandleStart(c.ctx)
		if mgr.State() == lifecycle.Active {
			c.broadcast(se.Target, event.TypeProviderAvailable)
		}
		return event.HandlerResult{Handled: true}
	})

	c.dispatcher.RegisterHandler(event.TypeStopService, func(ev event.Event) event.HandlerResult {
		se := ev.(event.StopServiceEvent)
		mgr := c.managerFor(se.Target)
		if mgr == nil {
			return event.HandlerResult{Handled: false}
		}
		prev := mgr.State()
		wasProviding := prev == lifecycle.Active || prev == lifecycle.Stopping
		mgr.HandleStop(c.ctx)
		if wasProviding && mgr.State() == lifecycle.Installed {
			c.broadcast(se.Target, event.TypeProviderWithdrawn)
		}
		return event.HandlerResult{Handled: true}
	})

	c.dispatcher.RegisterHandler(event.TypeRemoveService, func(ev event.Event) event.HandlerResult {
		re := ev.(event.RemoveServiceEvent)
		mgr := c.managerFor(re.Target)
		if mgr == nil {
			return event.HandlerResult{Handled: false}
		}
		mgr.HandleRemove()
		if mgr.State() == lifecycle.Uninstalled {
			c.registry.Unregister(re.Target)
		}
		return event.HandlerResult{Handled: true}
	})

	c.dispatcher.RegisterHandler(event.TypeProviderAvailable, func(ev event.Event) event.HandlerResult {
		pa := ev.(event.ProviderAvailableEvent)
		c.injectProvider(pa.Hash, pa.Provider)
		return event.HandlerResult{Handled: true}
	})

	c.dispatcher.RegisterHandler(event.TypeProviderWithdrawn, func(ev event.Event) event.HandlerResult {
		pw := ev.(event.ProviderWithdrawnEvent)
		c.withdrawProvider(pw.Hash, pw.Provider)
		return event.HandlerResult{Handled: true}
	})

	c.dispatcher.RegisterHandler(event.TypeUnrecoverableError, func(ev event.Event) event.HandlerResult {
		ue := ev.(event.UnrecoverableErrorEvent)
		c.logger.Error("service reported unrecoverable error", "service", ue.Target, "err", ue.Err)
		c.dispatcher.PushPrioritized(event.StopServiceEvent{
			Base:   event.Base{EventID: c.dispatcher.NextEventID(), OriginatingService: ids.SystemService, TypeTag: event.TypeStopService},
			Target: ue.Target,
		}, ue.Priority())
		return event.HandlerResult{Handled: true}
	})
}

func (c *Container) managerFor(id ids.ServiceID) *lifecycle.Manager {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.managers[id]
}

func (c *Container) broadcast(providerID ids.ServiceID, typ event.TypeTag) {
	c.mu.RLock()
	hashes := append([]dependency.InterfaceHash(nil), c.provides[providerID]...)
	c.mu.RUnlock()

	for _, h := range hashes {
		base := event.Base{
			EventID:            c.dispatcher.NextEventID(),
			OriginatingService: providerID,
			TypeTag:            typ,
		}
		switch typ {
		case event.TypeProviderAvailable:
			c.dispatcher.Push(event.ProviderAvailableEvent{Base: base, Hash: h, Provider: providerID})
		case event.TypeProviderWithdrawn:
			c.dispatcher.Push(event.ProviderWithdrawnEvent{Base: base, Hash: h, Provider: providerID})
		}
	}
}

func (c *Container) injectProvider(hash dependency.InterfaceHash, providerID ids.ServiceID) {
	providerSvc, _ := c.registry.Get(providerID)
	var props map[string]interface{}
	if providerSvc != nil {
		props = providerSvc.Properties()
	}
	provider := dependency.Provider{Service: providerID, Properties: props}

	c.mu.RLock()
	consumers := append([]ids.ServiceID(nil), c.interested[hash]...)
	c.mu.RUnlock()

	for _, consumerID := range consumers {
		c.mu.RLock()
		deps := c.depsRegistries[consumerID]
		mgr := c.managers[consumerID]
		c.mu.RUnlock()
		if deps == nil || mgr == nil {
			continue
		}
		if !deps.Offer(hash, provider) {
			continue
		}
		if consumerSvc, ok := c.registry.Get(consumerID); ok {
			if aware, ok := consumerSvc.(services.DependencyAware); ok {
				aware.AddDependency(hash, provider)
			}
		}
		required := false
		for _, d := range deps.Declarations() {
			if d.Hash == hash {
				required = d.Required
				break
			}
		}
		mgr.NotifyProviderAvailable(hash, required)
	}
}

func (c *Container) withdrawProvider(hash dependency.InterfaceHash, providerID ids.ServiceID) {
	c.mu.RLock()
	consumers := append([]ids.ServiceID(nil), c.interested[hash]...)
	c.mu.RUnlock()

	for _, consumerID := range consumers {
		c.mu.RLock()
		deps := c.depsRegistries[consumerID]
		mgr := c.managers[consumerID]
		c.mu.RUnlock()
		if deps == nil || mgr == nil {
			continue
		}
		emptied := deps.Withdraw(hash, providerID)
		if consumerSvc, ok := c.registry.Get(consumerID); ok {
			if aware, ok := consumerSvc.(services.DependencyAware); ok {
				aware.RemoveDependency(hash, providerID)
			}
		}
		mgr.NotifyProviderWithdrawn(emptied)
	}
}

// Install runs the factory sequence of §4.5: allocate an identity,
// construct the service and its Lifecycle Manager, synchronously offer
// whatever matching providers are already ACTIVE, post a
// DependencyRequestEvent per declared interface (optional before
// required), then evaluate whether the service is already satisfied.
func (c *Container) Install(factory Factory, props services.Properties, provides []dependency.InterfaceHash) (ids.ServiceID, error) {
	id := ids.ServiceID(c.serviceIDs.Next())
	deps := dependency.New()

	svc, err := factory(id, deps, props, c)
	if err != nil {
		return 0, fmt.Errorf("constructing service %d: %w", id, err)
	}

	mgr := lifecycle.NewManager(svc, deps, c.dispatcher, c.logger)
	decls := deps.Declarations()

	c.mu.Lock()
	c.managers[id] = mgr
	c.depsRegistries[id] = deps
	c.provides[id] = provides
	for _, h := range provides {
		c.providersOf[h] = append(c.providersOf[h], id)
	}
	for _, d := range decls {
		c.interested[d.Hash] = append(c.interested[d.Hash], id)
	}
	c.mu.Unlock()

	if err := c.registry.Register(svc); err != nil {
		return 0, err
	}

	for _, d := range decls {
		c.mu.RLock()
		candidates := append([]ids.ServiceID(nil), c.providersOf[d.Hash]...)
		c.mu.RUnlock()
		for _, providerID := range candidates {
			if c.managerFor(providerID).State() != lifecycle.Active {
				continue
			}
			providerSvc, _ := c.registry.Get(providerID)
			var providerProps map[string]interface{}
			if providerSvc != nil {
				providerProps = providerSvc.Properties()
			}
			provider := dependency.Provider{Service: providerID, Properties: providerProps}
			if !deps.Offer(d.Hash, provider) {
				continue
			}
			if aware, ok := svc.(services.DependencyAware); ok {
				aware.AddDependency(d.Hash, provider)
			}
		}
	}

	for _, d := range orderOptionalFirst(decls) {
		c.dispatcher.Push(event.DependencyRequestEvent{
			Base: event.Base{
				EventID:            c.dispatcher.NextEventID(),
				OriginatingService: id,
				EventPriority:      props.Priority(),
				TypeTag:            event.TypeDependencyRequest,
			},
			Target:   id,
			Hash:     d.Hash,
			Required: d.Required,
		})
	}

	mgr.EvaluateInitialSatisfaction()

	return id, nil
}

// InstallNamed wraps Install behind a singleflight key, so concurrent
// requests to install the same logical service collapse onto a single
// factory call instead of racing to construct duplicates.
func (c *Container) InstallNamed(name string, factory Factory, props services.Properties, provides []dependency.InterfaceHash) (ids.ServiceID, error) {
	v, err, _ := c.sf.Do(name, func() (interface{}, error) {
		return c.Install(factory, props, provides)
	})
	if err != nil {
		return 0, err
	}
	return v.(ids.ServiceID), nil
}

// RequestStart posts a StartServiceEvent for id at the internal default
// priority, on behalf of the system rather than another service.
func (c *Container) RequestStart(id ids.ServiceID) {
	c.dispatcher.Push(event.StartServiceEvent{
		Base:   event.Base{EventID: c.dispatcher.NextEventID(), OriginatingService: ids.SystemService, EventPriority: c.defaultPriority, TypeTag: event.TypeStartService},
		Target: id,
	})
}

// RequestStop posts a StopServiceEvent for id.
func (c *Container) RequestStop(id ids.ServiceID) {
	c.dispatcher.Push(event.StopServiceEvent{
		Base:   event.Base{EventID: c.dispatcher.NextEventID(), OriginatingService: ids.SystemService, EventPriority: c.defaultPriority, TypeTag: event.TypeStopService},
		Target: id,
	})
}

// RequestRemove posts a RemoveServiceEvent for id.
func (c *Container) RequestRemove(id ids.ServiceID) {
	c.dispatcher.Push(event.RemoveServiceEvent{
		Base:   event.Base{EventID: c.dispatcher.NextEventID(), OriginatingService: ids.SystemService, EventPriority: c.defaultPriority, TypeTag: event.TypeRemoveService},
		Target: id,
	})
}

// State reports the current lifecycle state of id, or lifecycle.Unknown if
// no such service is installed.
func (c *Container) State(id ids.ServiceID) lifecycle.State {
	mgr := c.managerFor(id)
	if mgr == nil {
		return lifecycle.Unknown
	}
	return mgr.State()
}

// Run starts the Event Dispatcher's consumer loop; it blocks until ctx is
// cancelled or Shutdown latches the quit flag and the queue drains.
func (c *Container) Run(ctx context.Context) error {
	c.ctx = ctx
	return c.dispatcher.Run(ctx)
}

// Shutdown requests a stop for every currently ACTIVE service and waits,
// via an errgroup fanning out one waiter per service, for each to report
// back before latching the dispatcher's quit flag.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.RLock()
	var active []ids.ServiceID
	for id, mgr := range c.managers {
		if mgr.State() == lifecycle.Active {
			active = append(active, id)
		}
	}
	c.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range active {
		id := id
		done := make(chan struct{}, 1)
		reg := c.dispatcher.RegisterCompletion(id, event.TypeStopService, func(event.Event) {
			if c.State(id) == lifecycle.Installed {
				select {
				case done <- struct{}{}:
				default:
				}
			}
		})
		g.Go(func() error {
			defer reg.Close()
			select {
			case <-done:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
		// The stop is posted on behalf of id itself so that the completion
		// callback registered above, keyed by (id, StopService), fires.
		c.dispatcher.Push(event.StopServiceEvent{
			Base:   event.Base{EventID: c.dispatcher.NextEventID(), OriginatingService: id, EventPriority: c.defaultPriority, TypeTag: event.TypeStopService},
			Target: id,
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	c.dispatcher.Quit()
	return nil
}

func orderOptionalFirst(decls []dependency.Declaration) []dependency.Declaration {
	out := make([]dependency.Declaration, 0, len(decls))
	for _, d := range decls {
		if !d.Required {
			out = append(out, d)
		}
	}
	for _, d := range decls {
		if d.Required {
			out = append(out, d)
		}
	}
	return out
}
