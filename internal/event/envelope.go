package event

import (
	"fmt"
	"unsafe"

	"github.com/cespare/xxhash/v2"

	"corium/internal/ids"
)

// MaxPayloadBytes is the size cap for one event payload, including its
// Base header (§3 "Event": "move-only and size-bounded (<= 128 bytes)").
const MaxPayloadBytes = 128

// TypeTag is the compile-time-stable identifier for an event's concrete
// type, compared by integer equality rather than by Go's reflect.Type.
type TypeTag uint64

// HashType derives a TypeTag from an event type's canonical name. Called
// once per type, typically from a package-level var initializer.
func HashType(canonicalName string) TypeTag {
	return TypeTag(xxhash.Sum64String(canonicalName))
}

var typeNames = map[TypeTag]string{}

// TypeName returns the diagnostic name registered for tag, or "" if none.
func TypeName(tag TypeTag) string {
	return typeNames[tag]
}

// Event is the abstract view every event payload exposes (§4.1 "as-base").
type Event interface {
	ID() ids.EventID
	Originator() ids.ServiceID
	Priority() uint32
	Type() TypeTag
}

// Base is embedded by every concrete event payload to satisfy Event.
type Base struct {
	EventID            ids.EventID
	OriginatingService ids.ServiceID
	EventPriority      uint32
	TypeTag            TypeTag
}

func (b Base) ID() ids.EventID          { return b.EventID }
func (b Base) Originator() ids.ServiceID { return b.OriginatingService }
func (b Base) Priority() uint32          { return b.EventPriority }
func (b Base) Type() TypeTag             { return b.TypeTag }

// RegisterType records a human-readable name for tag and panics if a value
// of T would not fit in the 128-byte payload cap. Call it once per event
// type, e.g.:
//
//	var startTag = event.RegisterType[StartServiceEvent]("StartService")
func RegisterType[T Event](name string) TypeTag {
	var zero T
	size := unsafe.Sizeof(zero)
	if size > MaxPayloadBytes {
		panic(fmt.Sprintf("event: type %s is %d bytes, exceeds %d byte cap", name, size, MaxPayloadBytes))
	}
	tag := HashType(name)
	typeNames[tag] = name
	return tag
}

// AsTyped returns ev narrowed to T, and whether the narrowing succeeded
// (§4.1 "as-typed(T): yields a typed view; fails if the stored tag does not
// match T").
func AsTyped[T Event](ev Event) (T, bool) {
	t, ok := ev.(T)
	return t, ok
}
