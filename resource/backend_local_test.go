package resource

import (
	"errors"
	"sync"
	"testing"

	"github.com/wippyai/sharedref/handle"
)

func owner(v any) *handle.Shared[any] {
	return handle.New(&v, handle.WithAtomicCount())
}

func TestLocalBackend_Basic(t *testing.T) {
	b := NewLocalBackend()

	// Create a slot
	o := owner("test value")
	h, err := b.Create(1, o)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if h == 0 {
		t.Fatal("Expected non-zero handle")
	}

	// Get it back
	got, ok := b.Get(h)
	if !ok {
		t.Fatal("Get failed")
	}
	if got != o {
		t.Fatal("Get returned a different owner")
	}

	// Drop it
	got, ok = b.Drop(h)
	if !ok {
		t.Fatal("Drop failed")
	}
	if got != o {
		t.Fatal("Drop returned a different owner")
	}
	if !o.Attached() {
		t.Fatal("Drop must not release the owner")
	}

	// Should not exist anymore
	if _, ok := b.Get(h); ok {
		t.Fatal("Expected Get to fail after Drop")
	}
}

func TestLocalBackend_Swap(t *testing.T) {
	b := NewLocalBackend()

	first := owner(1)
	h, _ := b.Create(1, first)

	second := owner("two")
	prev, ok := b.Swap(h, 2, second)
	if !ok {
		t.Fatal("Swap failed")
	}
	if prev != first {
		t.Fatal("Swap should return the previous owner")
	}

	typeID, ok := b.TypeID(h)
	if !ok || typeID != 2 {
		t.Fatalf("Expected typeID 2, got %d", typeID)
	}

	if _, ok := b.Swap(999, 1, second); ok {
		t.Fatal("Swap of unknown handle should fail")
	}
}

func TestLocalBackend_HandleReuse(t *testing.T) {
	b := NewLocalBackend()

	h1, _ := b.Create(1, owner(1))
	h2, _ := b.Create(1, owner(2))
	h3, _ := b.Create(1, owner(3))

	b.Drop(h2)
	b.Drop(h1)

	// Freed slots are reused last-in first-out
	h4, _ := b.Create(1, owner(4))
	h5, _ := b.Create(1, owner(5))
	if h4 != h1 || h5 != h2 {
		t.Fatalf("Expected reuse of %d and %d, got %d and %d", h1, h2, h4, h5)
	}

	for _, h := range []Handle{h3, h4, h5} {
		if _, ok := b.Get(h); !ok {
			t.Fatalf("handle %d should be valid", h)
		}
	}
}

func TestLocalBackend_Close(t *testing.T) {
	b := NewLocalBackend()

	o1, o2 := owner(1), owner(2)
	b.Create(1, o1)
	b.Create(1, o2)

	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if o1.Attached() || o2.Attached() {
		t.Fatal("Close should release every owner")
	}
	if !b.Closed() {
		t.Fatal("Closed() should report true")
	}

	// Operations should fail after close
	_, err := b.Create(1, owner(3))
	if !errors.Is(err, ErrClosed) {
		t.Fatal("Expected ErrClosed after Close")
	}

	// Second close is a no-op
	if err := b.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

func TestLocalBackend_Concurrent(t *testing.T) {
	b := NewLocalBackend()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			h, _ := b.Create(1, owner(id))
			b.TypeID(h)
			if o, ok := b.Drop(h); ok {
				o.Release()
			}
		}(i)
	}

	wg.Wait()

	if b.Len() != 0 {
		t.Fatalf("Expected Len() == 0, got %d", b.Len())
	}
}

func TestLocalBackend_Len(t *testing.T) {
	b := NewLocalBackend()

	if b.Len() != 0 {
		t.Fatal("Expected Len() == 0 initially")
	}

	h1, _ := b.Create(1, owner("a"))
	h2, _ := b.Create(1, owner("b"))
	b.Create(1, owner("c"))

	if b.Len() != 3 {
		t.Fatalf("Expected Len() == 3, got %d", b.Len())
	}

	b.Drop(h1)
	if b.Len() != 2 {
		t.Fatalf("Expected Len() == 2, got %d", b.Len())
	}

	b.Drop(h2)
	if b.Len() != 1 {
		t.Fatalf("Expected Len() == 1, got %d", b.Len())
	}
}

func TestLocalBackend_Each(t *testing.T) {
	b := NewLocalBackend()

	b.Create(1, owner("a"))
	b.Create(2, owner("b"))
	b.Create(1, owner("c"))

	count := 0
	b.Each(func(h Handle, typeID uint32, o *handle.Shared[any]) bool {
		count++
		return true
	})

	if count != 3 {
		t.Fatalf("Expected to iterate over 3 items, got %d", count)
	}

	// Test early termination
	count = 0
	b.Each(func(h Handle, typeID uint32, o *handle.Shared[any]) bool {
		count++
		return false
	})

	if count != 1 {
		t.Fatalf("Expected to iterate over 1 item (early term), got %d", count)
	}
}

func TestLocalBackend_InvalidHandle(t *testing.T) {
	b := NewLocalBackend()

	// Handle 0 is always invalid
	if _, ok := b.Get(0); ok {
		t.Fatal("Handle 0 should be invalid")
	}
	if _, ok := b.TypeID(0); ok {
		t.Fatal("Handle 0 should be invalid for TypeID")
	}
	if _, ok := b.Drop(0); ok {
		t.Fatal("Handle 0 should fail Drop")
	}

	// Non-existent handle
	if _, ok := b.Get(999); ok {
		t.Fatal("Non-existent handle should be invalid")
	}
}
