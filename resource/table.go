package resource

import (
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/sharedref/errors"
	"github.com/wippyai/sharedref/handle"
)

// Table maps integer handles to owners of shared pairs. Every slot is one
// owner: cloning a slot adds an owner to the same pair, removing a slot
// releases its owner, and the value is dropped when the last owner goes.
//
// Pairs created by a table use atomic counts, so owners handed out by
// Acquire may be released from any goroutine.
type Table struct {
	backend   *LocalBackend
	observers []Observer
	obsMu     sync.RWMutex
	// mu serializes access to the owners stored in slots. Owners leaving
	// the table are released after mu is dropped.
	mu sync.Mutex
}

// NewTable creates a new table with a LocalBackend.
func NewTable() *Table {
	return &Table{
		backend: NewLocalBackend(),
	}
}

// Insert stores value under a fresh pair and returns its handle.
// A nil value, including a typed nil pointer, map, slice, func or channel,
// inserts a null pair. Insert returns 0 once the table is closed.
func (t *Table) Insert(typeID uint32, value any) Handle {
	if t.backend.Closed() {
		return 0
	}
	if isNil(value) {
		value = nil
	}

	opts := []handle.Option{
		handle.WithAtomicCount(),
		handle.WithObserver(retireBridge{table: t, typeID: typeID}),
	}
	var owner *handle.Shared[any]
	if value == nil {
		owner = handle.Null[any](opts...)
	} else {
		v := value
		owner = handle.New(&v, opts...)
	}

	h, err := t.backend.Create(typeID, owner)
	if err != nil {
		owner.Release()
		return 0
	}

	Logger().Debug("slot inserted",
		zap.Uint32("handle", uint32(h)),
		zap.Uint32("type", typeID),
		zap.Uint64("pair", owner.ID()),
		zap.Bool("null", value == nil))

	t.notify(Event{
		Type:   EventInserted,
		Handle: h,
		TypeID: typeID,
		Pair:   owner.ID(),
		Count:  1,
		Value:  value,
	})
	return h
}

// InsertNull stores a null pair of the given type.
func (t *Table) InsertNull(typeID uint32) Handle {
	return t.Insert(typeID, nil)
}

// Clone adds a slot sharing h's pair and returns the new handle.
func (t *Table) Clone(h Handle) (Handle, error) {
	t.mu.Lock()
	owner, ok := t.backend.Get(h)
	if !ok {
		t.mu.Unlock()
		return 0, t.invalid(h)
	}
	typeID, _ := t.backend.TypeID(h)
	c := owner.Clone()
	nh, err := t.backend.Create(typeID, c)
	count := c.UseCount()
	t.mu.Unlock()

	if err != nil {
		c.Release()
		return 0, errors.Closed(errors.PhaseTable, "table")
	}

	t.notify(Event{
		Type:   EventCloned,
		Handle: nh,
		TypeID: typeID,
		Pair:   c.ID(),
		Count:  count,
	})
	return nh, nil
}

// Assign makes dst an owner of src's pair, releasing the pair dst held.
// Assigning a slot to itself or to a slot of the same pair changes nothing.
// A slot holding a value only accepts a pair of the same type; a null slot
// takes over src's type.
func (t *Table) Assign(dst, src Handle) error {
	t.mu.Lock()
	dOwner, ok := t.backend.Get(dst)
	if !ok {
		t.mu.Unlock()
		return t.invalid(dst)
	}
	sOwner, ok := t.backend.Get(src)
	if !ok {
		t.mu.Unlock()
		return t.invalid(src)
	}
	if dst == src || dOwner.SameOwner(sOwner) {
		t.mu.Unlock()
		return nil
	}

	dType, _ := t.backend.TypeID(dst)
	sType, _ := t.backend.TypeID(src)
	if dOwner.Valid() && dType != sType {
		t.mu.Unlock()
		return errors.TypeMismatch(errors.PhaseShare, uint32(dst), dType, sType)
	}

	next := sOwner.Clone()
	prev, _ := t.backend.Swap(dst, sType, next)
	count := next.UseCount()
	t.mu.Unlock()

	prev.Release()

	t.notify(Event{
		Type:   EventAssigned,
		Handle: dst,
		TypeID: sType,
		Pair:   next.ID(),
		Count:  count,
	})
	return nil
}

// Get returns the value shared by h's pair.
func (t *Table) Get(h Handle) (any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	owner, ok := t.backend.Get(h)
	if !ok {
		return nil, t.invalid(h)
	}
	return owner.Get()
}

// GetTyped returns the value only if the slot has the expected type.
func (t *Table) GetTyped(h Handle, typeID uint32) (any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	owner, ok := t.backend.Get(h)
	if !ok {
		return nil, t.invalid(h)
	}
	if actual, _ := t.backend.TypeID(h); actual != typeID {
		return nil, errors.TypeMismatch(errors.PhaseTable, uint32(h), typeID, actual)
	}
	return owner.Get()
}

// Acquire returns a new owner of h's pair, independent of the table.
// The caller must release it.
func (t *Table) Acquire(h Handle) (*handle.Shared[any], error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	owner, ok := t.backend.Get(h)
	if !ok {
		return nil, t.invalid(h)
	}
	return owner.Clone(), nil
}

// UseCount returns the number of owners of h's pair.
func (t *Table) UseCount(h Handle) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	owner, ok := t.backend.Get(h)
	if !ok {
		return 0, t.invalid(h)
	}
	return owner.UseCount(), nil
}

// Valid reports whether h is live and its pair holds a value.
func (t *Table) Valid(h Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	owner, ok := t.backend.Get(h)
	return ok && owner.Valid()
}

// TypeID returns the type of a live slot.
func (t *Table) TypeID(h Handle) (uint32, bool) {
	return t.backend.TypeID(h)
}

// Remove frees the slot and releases its owner. It reports whether this
// retired the pair.
func (t *Table) Remove(h Handle) (bool, error) {
	t.mu.Lock()
	typeID, _ := t.backend.TypeID(h)
	owner, ok := t.backend.Drop(h)
	if !ok {
		t.mu.Unlock()
		return false, t.invalid(h)
	}
	pair, count := owner.ID(), owner.UseCount()-1
	t.mu.Unlock()

	retired := owner.Release()

	Logger().Debug("slot removed",
		zap.Uint32("handle", uint32(h)),
		zap.Uint64("pair", pair),
		zap.Bool("retired", retired))

	t.notify(Event{
		Type:   EventRemoved,
		Handle: h,
		TypeID: typeID,
		Pair:   pair,
		Count:  count,
	})
	return retired, nil
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *Table) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Len returns the number of live slots.
func (t *Table) Len() int {
	return t.backend.Len()
}

// Snapshot returns the live slots in handle order.
func (t *Table) Snapshot() []Info {
	t.mu.Lock()
	defer t.mu.Unlock()

	var infos []Info
	t.backend.Each(func(h Handle, typeID uint32, owner *handle.Shared[any]) bool {
		infos = append(infos, Info{
			Handle: h,
			TypeID: typeID,
			Pair:   owner.ID(),
			Count:  owner.UseCount(),
			Null:   !owner.Valid(),
		})
		return true
	})
	return infos
}

// Each calls fn for every live slot until fn returns false.
func (t *Table) Each(fn func(Info) bool) {
	for _, info := range t.Snapshot() {
		if !fn(info) {
			return
		}
	}
}

// Clear removes every slot.
func (t *Table) Clear() {
	for _, info := range t.Snapshot() {
		_, _ = t.Remove(info.Handle)
	}
}

// Close releases every slot and stops accepting operations.
func (t *Table) Close() error {
	t.mu.Lock()
	owners := t.backend.shutdown()
	t.mu.Unlock()

	for _, o := range owners {
		o.Release()
	}
	return nil
}

func (t *Table) invalid(h Handle) error {
	if t.backend.Closed() {
		return errors.Closed(errors.PhaseTable, "table")
	}
	return errors.InvalidHandle(errors.PhaseTable, uint32(h))
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}

// retireBridge forwards pair retirement to table observers. It also sees
// retirements triggered by owners handed out through Acquire.
type retireBridge struct {
	table  *Table
	typeID uint32
}

func (b retireBridge) OnHandleEvent(e handle.Event) {
	if e.Type != handle.EventRetired {
		return
	}
	var value any
	if p, ok := e.Value.(*any); ok && p != nil {
		value = *p
	}
	b.table.notify(Event{
		Type:   EventRetired,
		TypeID: b.typeID,
		Pair:   e.Pair,
		Value:  value,
	})
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	switch v := reflect.ValueOf(value); v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface, reflect.UnsafePointer:
		return v.IsNil()
	default:
		return false
	}
}
