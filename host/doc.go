// Package host exposes shared ownership handles to WebAssembly guests.
//
// The host module "sharedref" is backed by a resource.Table holding i64
// values. Guests never see pointers: every owner is a u32 slot handle, and
// cloning a handle adds an owner to the same pair.
//
//	new(value: s64) -> handle: u32
//	null() -> handle: u32
//	clone(handle: u32) -> (handle: u32, status: s32)
//	assign(dst: u32, src: u32) -> status: s32
//	drop(handle: u32) -> (retired: u32, status: s32)
//	get(handle: u32) -> (value: s64, status: s32)
//	valid(handle: u32) -> ok: u32
//	count(handle: u32) -> (count: u32, status: s32)
//
// Failures never trap; they are reported as a negative status (see Status).
//
// Usage:
//
//	rt := wazero.NewRuntime(ctx)
//	h := host.New(resource.NewTable())
//	if _, err := h.Instantiate(ctx, rt); err != nil {
//	    return err
//	}
//	// guests importing "sharedref" can now be instantiated
package host
