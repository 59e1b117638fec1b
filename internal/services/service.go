package services

import (
	"context"

	"corium/internal/config"
	"corium/internal/dependency"
	"corium/internal/ids"
)

// Result is what Start and Stop report back to the Lifecycle Manager
// driving them (§4.3 "a service's Start/Stop reports one of three
// outcomes").
type Result int

const (
	// Succeeded reports a completed transition.
	Succeeded Result = iota
	// FailedRetry reports a transient failure; the Lifecycle Manager
	// reschedules the same request as a fresh same-priority event.
	FailedRetry
	// FailedPermanent reports a failure the Lifecycle Manager must not
	// retry; the service moves to the error path instead (§7).
	FailedPermanent
)

func (r Result) String() string {
	switch r {
	case Succeeded:
		return "Succeeded"
	case FailedRetry:
		return "FailedRetry"
	case FailedPermanent:
		return "FailedPermanent"
	default:
		return "Unknown"
	}
}

// PropertyPriority is the reserved property key carrying a service's event
// priority; services that don't set it run at the internal default.
const PropertyPriority = "priority"

// PropertyFilter is the reserved property key carrying a dependency.Filter
// restricting which declared slot this service may satisfy as a provider.
const PropertyFilter = "Filter"

// Properties is the opaque, service-supplied property bag offered to the
// dependency registry alongside a service's identity (§3 "Properties").
type Properties map[string]interface{}

// Priority returns the "priority" property, or the internal default if
// unset or of the wrong type.
func (p Properties) Priority() uint32 {
	if v, ok := p[PropertyPriority]; ok {
		if pr, ok := v.(uint32); ok {
			return pr
		}
	}
	return config.DefaultInternalPriority
}

// Filter returns the "Filter" property, or nil if unset.
func (p Properties) Filter() dependency.Filter {
	if v, ok := p[PropertyFilter]; ok {
		if f, ok := v.(dependency.Filter); ok {
			return f
		}
	}
	return nil
}

// Service is the contract every managed component implements. Instances are
// constructed with their dependency registry and properties already bound
// by the container (§4.5's factory sequence); Start/Stop are invoked by the
// owning Lifecycle Manager, never called directly by other services.
type Service interface {
	// ID returns the identity the container assigned at construction.
	ID() ids.ServiceID

	// Properties returns the property bag this service was constructed
	// with, including the reserved Priority/Filter keys if set.
	Properties() Properties

	// Start attempts the RESOLVED -> ACTIVE transition. It may assume all
	// required dependencies are currently injected.
	Start(ctx context.Context) Result

	// Stop attempts the ACTIVE -> INSTALLED transition, releasing
	// whatever Start acquired.
	Stop(ctx context.Context) Result
}

// DependencyAware is implemented by services that react to providers
// arriving or leaving after construction (§4.2 "add_dependency" /
// "remove_dependency"); it is optional because not every service cares
// which specific provider instance it was handed.
type DependencyAware interface {
	// AddDependency is called once per provider injected against hash,
	// in arrival order.
	AddDependency(hash dependency.InterfaceHash, provider dependency.Provider)

	// RemoveDependency is called when a previously injected provider is
	// withdrawn.
	RemoveDependency(hash dependency.InterfaceHash, provider ids.ServiceID)
}
