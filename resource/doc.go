// Package resource provides integer handle tables over shared ownership
// handles.
//
// A WebAssembly guest, a script or a UI cannot hold a Go pointer, so owners
// are named by number. Each live slot of a Table is one owner of a shared
// pair (see package handle); several slots may own the same pair.
//
// # Slot Lifecycle
//
//	insert - new pair, one owner (the new slot)
//	clone  - new slot owning the same pair
//	assign - slot lets go of its pair and owns another
//	remove - slot freed, its owner released
//
// The value is dropped when the last owner of its pair is released,
// whichever slot (or Acquire'd owner) that is.
//
//	table := resource.NewTable()
//
//	h := table.Insert(typeID, file)
//	h2, _ := table.Clone(h)
//
//	table.Remove(h)  // still owned by h2
//	table.Remove(h2) // file.Drop() runs here
//
// # Type Safety
//
// Slots carry a type ID:
//
//	value, err := table.GetTyped(h, FileTypeID)
//
// Typed binds a Go type to a type ID:
//
//	files := resource.NewTyped[*os.File](table, FileTypeID)
//	h := files.Insert(f)
//	f, err := files.Get(h)
//
// # Observers
//
// Register observers to track table events:
//
//	table.Subscribe(observer) // EventInserted, EventCloned, EventAssigned,
//	                          // EventRemoved, EventRetired
//
// # Memory Management
//
// Slots are not garbage collected. Call Remove for every handle, or Close
// to release all slots at once. Handle 0 is never issued.
package resource
