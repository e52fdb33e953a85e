package resource

import (
	"errors"
	"sync"

	"github.com/wippyai/sharedref/handle"
)

var ErrClosed = errors.New("resource backend closed")

// LocalBackend is in-memory slot storage. Each live slot holds one owner
// of a shared pair. The backend never releases owners itself except in
// Close; dropping a slot hands its owner back to the caller.
type LocalBackend struct {
	entries  []entry
	freeList []Handle
	mu       sync.RWMutex
	closed   bool
}

type entry struct {
	owner  *handle.Shared[any]
	typeID uint32
	valid  bool
}

// NewLocalBackend creates a new in-memory backend.
func NewLocalBackend() *LocalBackend {
	return &LocalBackend{
		entries:  make([]entry, 0, 64),
		freeList: make([]Handle, 0, 16),
	}
}

// Create stores an owner and returns its slot handle.
func (b *LocalBackend) Create(typeID uint32, owner *handle.Shared[any]) (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrClosed
	}

	e := entry{
		typeID: typeID,
		owner:  owner,
		valid:  true,
	}

	if len(b.freeList) > 0 {
		h := b.freeList[len(b.freeList)-1]
		b.freeList = b.freeList[:len(b.freeList)-1]
		b.entries[h-1] = e
		return h, nil
	}

	b.entries = append(b.entries, e)
	return Handle(len(b.entries)), nil
}

// Get returns the owner held by a slot.
func (b *LocalBackend) Get(h Handle) (*handle.Shared[any], bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e, ok := b.lookup(h)
	if !ok {
		return nil, false
	}
	return e.owner, true
}

// Swap replaces the owner and type of a live slot and returns the
// previous owner. The caller is responsible for releasing it.
func (b *LocalBackend) Swap(h Handle, typeID uint32, owner *handle.Shared[any]) (*handle.Shared[any], bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.lookup(h)
	if !ok {
		return nil, false
	}
	prev := e.owner
	e.owner = owner
	e.typeID = typeID
	return prev, true
}

// Drop frees a slot and returns the owner it held.
// The caller is responsible for releasing it.
func (b *LocalBackend) Drop(h Handle) (*handle.Shared[any], bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.lookup(h)
	if !ok {
		return nil, false
	}

	owner := e.owner
	e.valid = false
	e.owner = nil
	e.typeID = 0
	b.freeList = append(b.freeList, h)

	return owner, true
}

// Close releases every owner still held and refuses further slots.
func (b *LocalBackend) Close() error {
	for _, o := range b.shutdown() {
		o.Release()
	}
	return nil
}

// shutdown marks the backend closed and hands back every owner still held.
func (b *LocalBackend) shutdown() []*handle.Shared[any] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	var owners []*handle.Shared[any]
	for i := range b.entries {
		if b.entries[i].valid {
			owners = append(owners, b.entries[i].owner)
			b.entries[i].valid = false
			b.entries[i].owner = nil
		}
	}

	b.entries = nil
	b.freeList = nil
	return owners
}

// TypeID returns the type ID for a slot.
func (b *LocalBackend) TypeID(h Handle) (uint32, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e, ok := b.lookup(h)
	if !ok {
		return 0, false
	}
	return e.typeID, true
}

// Len returns the number of live slots.
func (b *LocalBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, e := range b.entries {
		if e.valid {
			count++
		}
	}
	return count
}

// Each iterates over all live slots in handle order.
func (b *LocalBackend) Each(fn func(Handle, uint32, *handle.Shared[any]) bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for i, e := range b.entries {
		if e.valid {
			if !fn(Handle(i+1), e.typeID, e.owner) {
				break
			}
		}
	}
}

// Closed reports whether Close has been called.
func (b *LocalBackend) Closed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}

// lookup must be called with mu held.
func (b *LocalBackend) lookup(h Handle) (*entry, bool) {
	if h == 0 {
		return nil, false
	}
	idx := int(h - 1)
	if idx >= len(b.entries) {
		return nil, false
	}
	e := &b.entries[idx]
	if !e.valid {
		return nil, false
	}
	return e, true
}
