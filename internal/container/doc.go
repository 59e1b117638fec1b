// Package container implements the Dependency Manager: the owner of every
// Lifecycle Manager and the single Event Dispatcher they share. It runs the
// factory sequence of §4.5 (allocate identity, construct, synchronously
// offer already-ACTIVE providers, post dependency requests, evaluate
// initial satisfaction) and wires the implicit provider-available /
// provider-withdrawn broadcast between services.
//
// Two third-party helpers back the operations the single-consumer
// dispatcher can't parallelize on its own: golang.org/x/sync/singleflight
// collapses concurrent identical Install calls onto one factory
// invocation, and golang.org/x/sync/errgroup fans out the wait for every
// ACTIVE service's stop confirmation during Shutdown.
package container
