// Package handle provides a reference-counted shared ownership handle.
//
// A Shared[T] owns a heap value together with every other handle cloned or
// assigned from it. The value and its reference count form a pair; the pair
// is retired (the value dropped, every later access refused) exactly when
// the last owning handle is released.
//
// # Ownership Operations
//
//	h1 := handle.New(&v)   // new pair, count 1
//	h2 := h1.Clone()       // shares the pair, count 2
//	h3 := handle.Null[T]() // null pair, count 1
//	h3.Assign(h1)          // h3 lets go of its pair, joins h1's, count 3
//	defer h1.Release()     // scoped release
//
// Self-assignment (h.Assign(h)) and assignment between handles that already
// share a pair are no-ops. Release is idempotent per handle: once a handle
// has let go of its pair it is detached and further releases do nothing.
//
// # Null Handles
//
// A null handle is a pair without a value whose count still starts at 1.
// It converts to false (Valid), and dereferencing it returns an error of
// kind null_dereference. Retiring a null pair drops nothing.
//
// # Access
//
// Get returns a copy of the value, Ptr the shared pointer. Both fail fast:
//
//	errors.KindNullDereference  the pair holds no value
//	errors.KindReleased         the handle is detached
//
// # Retirement
//
// If the value implements Dropper, Drop is called exactly once when the
// pair retires. Observers registered with WithObserver see every lifecycle
// event of the pair:
//
//	EventCreated  - pair constructed
//	EventShared   - owner added by Clone or Assign
//	EventReleased - owner removed by Release or Assign
//	EventRetired  - count reached zero
//
// # Concurrency
//
// The default counter (ModeUnsynchronized) is a plain integer. Cloning,
// assigning or releasing handles of one pair from several goroutines races
// on the count and can retire the pair while owners remain, or leak it.
// WithAtomicCount selects ModeAtomic, where every increment and
// decrement-and-compare is a single atomic step. A single Shared value is
// never safe for concurrent mutation; give each goroutine its own clone.
package handle
