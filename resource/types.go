package resource

import "github.com/wippyai/sharedref/handle"

// Handle is an opaque reference to a slot in a table.
// Handle 0 is reserved and always invalid.
type Handle uint32

// EventType identifies a table event.
type EventType uint8

const (
	EventInserted EventType = iota
	EventCloned
	EventAssigned
	EventRemoved
	EventRetired
)

func (t EventType) String() string {
	switch t {
	case EventInserted:
		return "inserted"
	case EventCloned:
		return "cloned"
	case EventAssigned:
		return "assigned"
	case EventRemoved:
		return "removed"
	case EventRetired:
		return "retired"
	default:
		return "unknown"
	}
}

// Event represents a table lifecycle event.
// Retirement belongs to a pair rather than a slot, so EventRetired carries
// Pair and a zero Handle.
type Event struct {
	Value  any
	Pair   uint64
	Count  int64
	Handle Handle
	TypeID uint32
	Type   EventType
}

// Observer receives notifications about table events.
type Observer interface {
	OnResourceEvent(Event)
}

// Info is a point-in-time view of one slot.
type Info struct {
	Pair   uint64
	Count  int64
	Handle Handle
	TypeID uint32
	Null   bool
}

// Dropper is optionally implemented by resource values that need cleanup.
// Drop runs when the last owner of the value lets go.
type Dropper = handle.Dropper
