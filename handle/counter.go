package handle

import "sync/atomic"

// CountMode selects how a pair's reference count is updated.
type CountMode uint8

const (
	// ModeUnsynchronized updates the count with a plain load and store.
	ModeUnsynchronized CountMode = iota
	// ModeAtomic updates the count with sync/atomic.
	ModeAtomic
)

func (m CountMode) String() string {
	switch m {
	case ModeUnsynchronized:
		return "unsynchronized"
	case ModeAtomic:
		return "atomic"
	default:
		return "unknown"
	}
}

// Counter is the shared reference count of a pair.
// Inc and Dec return the count after the update.
type Counter interface {
	Inc() int64
	Dec() int64
	Load() int64
}

func newCounter(mode CountMode, initial int64) Counter {
	if mode == ModeAtomic {
		c := &atomicCounter{}
		c.n.Store(initial)
		return c
	}
	return &plainCounter{n: initial}
}

// plainCounter is a read-modify-write on an ordinary integer.
// Two goroutines updating it at once can lose an update.
type plainCounter struct {
	// interleave runs between the load and the store; tests use it to
	// replay a concurrent update deterministically.
	interleave func()
	n          int64
}

func (c *plainCounter) Inc() int64 {
	return c.add(1)
}

func (c *plainCounter) Dec() int64 {
	return c.add(-1)
}

func (c *plainCounter) Load() int64 {
	return c.n
}

func (c *plainCounter) add(delta int64) int64 {
	n := c.n
	if c.interleave != nil {
		c.interleave()
	}
	n += delta
	c.n = n
	return n
}

type atomicCounter struct {
	n atomic.Int64
}

func (c *atomicCounter) Inc() int64 {
	return c.n.Add(1)
}

func (c *atomicCounter) Dec() int64 {
	return c.n.Add(-1)
}

func (c *atomicCounter) Load() int64 {
	return c.n.Load()
}
