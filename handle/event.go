package handle

import "sync/atomic"

// EventType identifies a pair lifecycle event.
type EventType uint8

const (
	EventCreated EventType = iota
	EventShared
	EventReleased
	EventRetired
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventShared:
		return "shared"
	case EventReleased:
		return "released"
	case EventRetired:
		return "retired"
	default:
		return "unknown"
	}
}

// Event describes one lifecycle step of a pair.
// Count is the reference count right after the step.
type Event struct {
	Value any
	Pair  uint64
	Count int64
	Type  EventType
	Null  bool
}

// Observer receives lifecycle events of the pairs it was registered on.
// With ModeAtomic an observer may be called from several goroutines.
type Observer interface {
	OnHandleEvent(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

func (f ObserverFunc) OnHandleEvent(e Event) { f(e) }

// Tracker is an Observer counting lifecycle events.
// It is safe for concurrent use.
type Tracker struct {
	created     atomic.Int64
	shared      atomic.Int64
	released    atomic.Int64
	retired     atomic.Int64
	retiredNull atomic.Int64
}

func (t *Tracker) OnHandleEvent(e Event) {
	switch e.Type {
	case EventCreated:
		t.created.Add(1)
	case EventShared:
		t.shared.Add(1)
	case EventReleased:
		t.released.Add(1)
	case EventRetired:
		if e.Null {
			t.retiredNull.Add(1)
		} else {
			t.retired.Add(1)
		}
	}
}

// Created returns the number of pairs constructed, null pairs included.
func (t *Tracker) Created() int64 { return t.created.Load() }

// Shared returns the number of owners added by Clone or Assign.
func (t *Tracker) Shared() int64 { return t.shared.Load() }

// Released returns the number of owners removed.
func (t *Tracker) Released() int64 { return t.released.Load() }

// Retired returns the number of values deallocated. Null pairs are not counted.
func (t *Tracker) Retired() int64 { return t.retired.Load() }

// RetiredNull returns the number of null pairs retired.
func (t *Tracker) RetiredNull() int64 { return t.retiredNull.Load() }

// Live returns the number of pairs not yet retired.
func (t *Tracker) Live() int64 {
	return t.created.Load() - t.retired.Load() - t.retiredNull.Load()
}
