package handle

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/sharedref/errors"
)

func TestCountMode_String(t *testing.T) {
	assert.Equal(t, "unsynchronized", ModeUnsynchronized.String())
	assert.Equal(t, "atomic", ModeAtomic.String())
	assert.Equal(t, "unknown", CountMode(9).String())
}

func TestCounters(t *testing.T) {
	for _, mode := range []CountMode{ModeUnsynchronized, ModeAtomic} {
		t.Run(mode.String(), func(t *testing.T) {
			c := newCounter(mode, 1)
			assert.Equal(t, int64(2), c.Inc())
			assert.Equal(t, int64(3), c.Inc())
			assert.Equal(t, int64(2), c.Dec())
			assert.Equal(t, int64(2), c.Load())
		})
	}
}

func plain(t *testing.T, h *Shared[tracked]) *plainCounter {
	t.Helper()
	pc, ok := h.p.count.(*plainCounter)
	require.True(t, ok, "expected an unsynchronized counter")
	return pc
}

// The unsynchronized counter is not safe for concurrent use. These tests
// replay two interleavings a pair of goroutines can produce, one step at a
// time, to pin down what goes wrong.

func TestUnsynchronized_LostDecrementRetiresEarly(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	prev := Logger()
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(prev) })

	v, drops := newTracked(5)
	a := New(v)
	b := a.Clone()
	var c *Shared[tracked]

	// a.Release loads 2; c is cloned (2 -> 3) before a stores 1.
	pc := plain(t, a)
	pc.interleave = func() {
		pc.interleave = nil
		c = b.Clone()
	}
	require.False(t, a.Release())
	require.Equal(t, int64(1), b.UseCount(), "count lost c's increment")

	// b is not the last owner, yet its release retires the pair.
	assert.True(t, b.Release())
	assert.Equal(t, 1, *drops)

	// c still points at the retired pair and sees no value.
	assert.True(t, c.Attached())
	assert.False(t, c.Valid())
	_, err := c.Get()
	assert.ErrorIs(t, err, errors.ErrNullDereference)

	assert.False(t, c.Release(), "count is now negative and never reaches zero again")
	assert.Equal(t, 1, *drops, "retirement happened once")

	below := logs.FilterMessage("use count below zero").All()
	require.Len(t, below, 1)
	assert.Equal(t, int64(-1), below[0].ContextMap()["count"])
}

func TestUnsynchronized_LostIncrementLeaks(t *testing.T) {
	v, drops := newTracked(5)
	a := New(v)
	b := a.Clone()

	// a.Clone loads 2; b is released (2 -> 1) before the clone stores 3.
	pc := plain(t, a)
	pc.interleave = func() {
		pc.interleave = nil
		b.Release()
	}
	c := a.Clone()
	require.Equal(t, int64(3), a.UseCount(), "count lost b's decrement")

	a.Release()
	c.Release()
	assert.Equal(t, 0, *drops, "every owner released, value never dropped")
}

func TestAtomic_ConcurrentCloneRelease(t *testing.T) {
	v, drops := newTracked(1)
	tr := &Tracker{}
	root := New(v, WithAtomicCount(), WithObserver(tr))
	require.Equal(t, ModeAtomic, root.Mode())

	const workers, iterations = 16, 500
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				c := root.Clone()
				if _, err := c.Get(); err != nil {
					t.Errorf("clone lost its value: %v", err)
				}
				c.Release()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), root.UseCount())
	assert.Equal(t, int64(workers*iterations), tr.Shared())
	assert.Zero(t, tr.Retired())

	assert.True(t, root.Release())
	assert.Equal(t, int64(1), tr.Retired())
	assert.Equal(t, 1, *drops)
}

func TestAtomic_ConcurrentLastOwners(t *testing.T) {
	for round := 0; round < 20; round++ {
		v, _ := newTracked(1)
		tr := &Tracker{}
		root := New(v, WithAtomicCount(), WithObserver(tr))

		owners := make([]*Shared[tracked], 32)
		for i := range owners {
			owners[i] = root.Clone()
		}
		root.Release()

		var wg sync.WaitGroup
		retiredBy := make(chan int, len(owners))
		for i, h := range owners {
			wg.Add(1)
			go func(i int, h *Shared[tracked]) {
				defer wg.Done()
				if h.Release() {
					retiredBy <- i
				}
			}(i, h)
		}
		wg.Wait()
		close(retiredBy)

		assert.Len(t, retiredBy, 1, "round %d: exactly one owner retires the pair", round)
		assert.Equal(t, int64(1), tr.Retired(), "round %d", round)
	}
}
