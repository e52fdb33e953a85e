package handle

import (
	"reflect"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/sharedref/errors"
)

// Dropper is optionally implemented by values that need cleanup when
// their pair retires.
type Dropper interface {
	Drop()
}

var nextPairID atomic.Uint64

// pair is the value and count shared by every owner of one allocation.
// value is nil for a null pair and after retirement.
type pair[T any] struct {
	value     *T
	count     Counter
	observers []Observer
	id        uint64
	mode      CountMode
	retired   atomic.Bool
}

// Shared is one owner of a pair. The zero value is a detached handle.
type Shared[T any] struct {
	p *pair[T]
}

// New returns a handle owning v with a fresh pair of count 1.
// A nil v yields a null handle.
func New[T any](v *T, opts ...Option) *Shared[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	p := &pair[T]{
		value:     v,
		count:     newCounter(o.mode, 1),
		observers: o.observers,
		id:        nextPairID.Add(1),
		mode:      o.mode,
	}
	p.notify(Event{Type: EventCreated, Count: 1, Value: p.eventValue(), Null: v == nil})

	Logger().Debug("pair created",
		zap.Uint64("pair", p.id),
		zap.String("type", typeName[T]()),
		zap.Stringer("mode", o.mode),
		zap.Bool("null", v == nil))

	return &Shared[T]{p: p}
}

// Null returns a handle to a pair without a value. Its count starts at 1.
func Null[T any](opts ...Option) *Shared[T] {
	return New[T](nil, opts...)
}

// Clone returns a new owner of h's pair.
// Cloning a detached handle returns a detached handle.
func (h *Shared[T]) Clone() *Shared[T] {
	if h == nil || h.p == nil {
		return &Shared[T]{}
	}
	h.p.acquire()
	return &Shared[T]{p: h.p}
}

// Assign makes h an owner of other's pair, releasing the pair h held.
// Assigning h to itself, or to a handle already sharing its pair, changes
// nothing. Assigning from a detached or nil handle detaches h. Assigning
// to a nil handle does nothing.
func (h *Shared[T]) Assign(other *Shared[T]) {
	if h == nil || h == other {
		return
	}
	var next *pair[T]
	if other != nil {
		next = other.p
	}
	if h.p != nil && h.p == next {
		return
	}

	h.Release()
	if next != nil {
		next.acquire()
		h.p = next
	}
}

// Release gives up h's ownership and reports whether this call retired
// the pair. A detached handle releases nothing.
func (h *Shared[T]) Release() bool {
	if h == nil || h.p == nil {
		return false
	}
	p := h.p
	h.p = nil
	return p.release()
}

// Get returns a copy of the shared value.
func (h *Shared[T]) Get() (T, error) {
	v, err := h.Ptr()
	if err != nil {
		var zero T
		return zero, err
	}
	return *v, nil
}

// MustGet is like Get but panics on error.
func (h *Shared[T]) MustGet() T {
	v, err := h.Get()
	if err != nil {
		panic(err)
	}
	return v
}

// Ptr returns the shared value itself, for member access.
func (h *Shared[T]) Ptr() (*T, error) {
	if h == nil || h.p == nil {
		return nil, errors.Released(errors.PhaseAccess, typeName[T]())
	}
	if h.p.value == nil {
		return nil, errors.NullDereference(errors.PhaseAccess, typeName[T]())
	}
	return h.p.value, nil
}

// Valid reports whether h is attached to a pair holding a value.
func (h *Shared[T]) Valid() bool {
	return h != nil && h.p != nil && h.p.value != nil
}

// Attached reports whether h still owns a pair, null or not.
func (h *Shared[T]) Attached() bool {
	return h != nil && h.p != nil
}

// UseCount returns the number of owners of h's pair, or 0 if detached.
func (h *Shared[T]) UseCount() int64 {
	if h == nil || h.p == nil {
		return 0
	}
	return h.p.count.Load()
}

// ID returns the identifier of h's pair, or 0 if detached.
func (h *Shared[T]) ID() uint64 {
	if h == nil || h.p == nil {
		return 0
	}
	return h.p.id
}

// Mode returns the counter mode of h's pair.
func (h *Shared[T]) Mode() CountMode {
	if h == nil || h.p == nil {
		return ModeUnsynchronized
	}
	return h.p.mode
}

// SameOwner reports whether h and other are attached to the same pair.
func (h *Shared[T]) SameOwner(other *Shared[T]) bool {
	return h.Attached() && other.Attached() && h.p == other.p
}

func (p *pair[T]) acquire() {
	n := p.count.Inc()
	p.notify(Event{Type: EventShared, Count: n, Value: p.eventValue(), Null: p.value == nil})
}

func (p *pair[T]) release() bool {
	// Read the value before giving up ownership; once the count drops
	// another owner may retire the pair.
	val, null := p.eventValue(), p.value == nil
	n := p.count.Dec()
	p.notify(Event{Type: EventReleased, Count: n, Value: val, Null: null})
	if n < 0 {
		Logger().Warn("use count below zero",
			zap.Uint64("pair", p.id),
			zap.Int64("count", n),
			zap.Stringer("mode", p.mode))
	}
	if n != 0 {
		return false
	}
	p.retire()
	return true
}

// retire frees the value. Handles still pointing at a retired pair
// (possible only after a lost update in ModeUnsynchronized) see a null pair.
func (p *pair[T]) retire() {
	v := p.value
	p.value = nil
	first := p.retired.CompareAndSwap(false, true)

	var val any
	if v != nil {
		val = v
		if d, ok := val.(Dropper); ok {
			d.Drop()
		} else if d, ok := any(*v).(Dropper); ok {
			d.Drop()
		}
	}

	p.notify(Event{Type: EventRetired, Value: val, Null: v == nil})

	if !first {
		Logger().Warn("pair retired more than once",
			zap.Uint64("pair", p.id),
			zap.String("type", typeName[T]()))
		return
	}
	Logger().Debug("pair retired",
		zap.Uint64("pair", p.id),
		zap.String("type", typeName[T]()),
		zap.Bool("null", v == nil))
}

func (p *pair[T]) eventValue() any {
	if p.value == nil {
		return nil
	}
	return p.value
}

func (p *pair[T]) notify(e Event) {
	if len(p.observers) == 0 {
		return
	}
	e.Pair = p.id
	for _, o := range p.observers {
		o.OnHandleEvent(e)
	}
}

func typeName[T any]() string {
	return reflect.TypeFor[T]().String()
}
