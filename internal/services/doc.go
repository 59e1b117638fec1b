// Package services defines the contract every managed component implements
// to participate in the dependency-driven lifecycle: construction from an
// injected dependency registry and property set, and a Start/Stop pair that
// reports success, a retryable failure, or a terminal one.
//
// A Service never drives its own state transitions — that is the Lifecycle
// Manager's job (internal/lifecycle). A Service only reacts to the
// dependencies it is handed and reports the outcome of Start/Stop.
package services
