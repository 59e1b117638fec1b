// Package dependency implements the per-service Dependency Registry: the
// declared list of required/optional interface dependencies for one
// service, and the table of currently-injected provider instances for each
// declared interface.
//
// Interface names are hashed to a stable 64-bit digest with xxhash so that
// every component in a build compares dependencies by integer equality
// rather than string equality. Declared version requirements are expressed
// as semver constraints and checked against the concrete version a
// candidate provider advertises.
package dependency
