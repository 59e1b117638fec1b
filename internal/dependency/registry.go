package dependency

import (
	"fmt"
	"sync"

	"github.com/Masterminds/semver/v3"

	"corium/internal/ids"
)

// Filter is the opaque predicate carried under the reserved "Filter"
// property key (§3 "Properties"). It restricts which candidate providers
// may satisfy a declared dependency.
type Filter func(candidate ids.ServiceID, candidateProperties map[string]interface{}) bool

// Declaration is one entry in a service's fixed-at-construction dependency
// list (§3 "Dependency"). Version is a semver constraint the candidate's
// advertised Version must satisfy; a nil Version accepts any version.
type Declaration struct {
	Hash     InterfaceHash
	Version  *semver.Constraints
	Required bool
	Filter   Filter
}

// Provider is a candidate instance offered against a declared interface.
type Provider struct {
	Service    ids.ServiceID
	Version    *semver.Version
	Properties map[string]interface{}
}

// Registry holds one service's declared dependencies and the providers
// currently injected for each (§4.2). It is not safe for concurrent use
// from more than one goroutine without external synchronization beyond its
// own mutex coordinating reads against concurrent offers/withdrawals —
// callers on the consumer thread still serialize through the dispatcher.
type Registry struct {
	mu       sync.RWMutex
	decls    []Declaration
	byHash   map[InterfaceHash]*Declaration
	injected map[InterfaceHash][]Provider // arrival order preserved
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		byHash:   make(map[InterfaceHash]*Declaration),
		injected: make(map[InterfaceHash][]Provider),
	}
}

// Declare adds a dependency to the fixed list. Must happen before the
// owning service is offered any providers (§3 "A service's dependency list
// is fixed at construction; it cannot grow or shrink dynamically.").
func (r *Registry) Declare(d Declaration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byHash[d.Hash]; exists {
		return fmt.Errorf("dependency %d already declared", d.Hash)
	}
	r.decls = append(r.decls, d)
	r.byHash[d.Hash] = &r.decls[len(r.decls)-1]
	return nil
}

// Declarations returns the declared dependency list in declaration order.
func (r *Registry) Declarations() []Declaration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Declaration, len(r.decls))
	copy(out, r.decls)
	return out
}

// Offer presents a candidate provider for hash. It is accepted iff hash was
// declared and, when a filter or version constraint is attached to that
// declaration, the candidate passes it (§4.2 "offer").
func (r *Registry) Offer(hash InterfaceHash, p Provider) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	decl, declared := r.byHash[hash]
	if !declared {
		return false
	}
	if decl.Version != nil && p.Version != nil && !decl.Version.Check(p.Version) {
		return false
	}
	if decl.Filter != nil && !decl.Filter(p.Service, p.Properties) {
		return false
	}

	for _, existing := range r.injected[hash] {
		if existing.Service == p.Service {
			return true // already injected, idempotent
		}
	}
	r.injected[hash] = append(r.injected[hash], p)
	return true
}

// Withdraw removes a previously-offered provider. It reports whether the
// withdrawal leaves a *required* declared slot empty, which the caller
// (the Lifecycle Manager) must treat as demanding STOP (§4.2 "withdraw").
func (r *Registry) Withdraw(hash InterfaceHash, service ids.ServiceID) (requiredSlotNowEmpty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	providers := r.injected[hash]
	for i, p := range providers {
		if p.Service == service {
			r.injected[hash] = append(providers[:i:i], providers[i+1:]...)
			break
		}
	}

	decl, declared := r.byHash[hash]
	if !declared || !decl.Required {
		return false
	}
	return len(r.injected[hash]) == 0
}

// Providers returns the currently injected providers for hash, in arrival
// order (§4.2 "if multiple providers satisfy the same slot, all are
// injected; the service sees the full set in arrival order").
func (r *Registry) Providers(hash InterfaceHash) []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Provider, len(r.injected[hash]))
	copy(out, r.injected[hash])
	return out
}

// Satisfied reports whether every required declared slot has at least one
// injected provider (§4.2 "A service becomes satisfied when every required
// slot has >= 1 provider").
func (r *Registry) Satisfied() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.decls {
		if d.Required && len(r.injected[d.Hash]) == 0 {
			return false
		}
	}
	return true
}

// MissingRequired returns the hashes of required declarations with no
// currently injected provider — used to report the "missing-requirement"
// error kind (§7.1) when queried.
func (r *Registry) MissingRequired() []InterfaceHash {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var missing []InterfaceHash
	for _, d := range r.decls {
		if d.Required && len(r.injected[d.Hash]) == 0 {
			missing = append(missing, d.Hash)
		}
	}
	return missing
}
