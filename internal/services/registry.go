package services

import (
	"fmt"
	"sync"

	"corium/internal/ids"
)

// Registry is the container's lookup table from service identity to the
// live Service instance (distinct from a dependency.Registry, which tracks
// one service's injected providers). It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	services map[ids.ServiceID]Service
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{services: make(map[ids.ServiceID]Service)}
}

// Register adds svc under its own ID. It is an error to register the same
// ID twice.
func (r *Registry) Register(svc Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := svc.ID()
	if _, exists := r.services[id]; exists {
		return fmt.Errorf("service %d already registered", id)
	}
	r.services[id] = svc
	return nil
}

// Unregister removes id from the registry. It is not an error to unregister
// an id that is not present.
func (r *Registry) Unregister(id ids.ServiceID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.services, id)
}

// Get returns the service registered under id, if any.
func (r *Registry) Get(id ids.ServiceID) (Service, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.services[id]
	return svc, ok
}

// All returns every registered service in no particular order.
func (r *Registry) All() []Service {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Service, 0, len(r.services))
	for _, svc := range r.services {
		out = append(out, svc)
	}
	return out
}

// Len reports how many services are registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.services)
}
