package dependency

import "github.com/cespare/xxhash/v2"

// InterfaceHash is the stable, collision-resistant 64-bit digest of an
// interface's canonical name (§3 "Dependency"). It is computed the same
// way everywhere in a build, so two components agree on it without ever
// exchanging the original string.
type InterfaceHash uint64

// HashInterface computes the InterfaceHash for an interface's canonical
// name, e.g. "example.ILogger" or "example.IHttpConnection".
func HashInterface(canonicalName string) InterfaceHash {
	return InterfaceHash(xxhash.Sum64String(canonicalName))
}
