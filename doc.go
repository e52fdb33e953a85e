// Package sharedref provides shared ownership handles with explicit reference
// counting for Go values.
//
// A handle pairs a value with a use count. Cloning or assigning a handle adds
// an owner; releasing one removes it. When the last owner lets go the value is
// retired: its Drop method runs, if it has one, and the value is dropped.
//
// # Packages
//
//	sharedref/
//	├── handle/          Shared[T] handles, counters, observers
//	├── resource/        Integer handle table owning shared handles
//	├── host/            wazero host module exposing the table to guests
//	├── script/          YAML scenarios and their runner
//	├── config/          viper based configuration
//	├── errors/          Structured error types
//	└── cmd/sharedref/   CLI and interactive playground
//
// # Quick Start
//
//	v := 5
//	h1 := handle.New(&v)
//	h2 := h1.Clone()       // count 2
//	h3 := handle.Null[int]()
//	h3.Assign(h1)          // count 3
//
//	n, err := h3.Get()     // 5, nil
//
//	h1.Release()
//	h2.Release()
//	h3.Release()           // retires the value
//
// # Null Handles
//
// A null handle owns a pair without a value. Reading through it returns an
// error of kind null_dereference; reading through a released handle returns
// kind released.
//
// # Concurrency
//
// By default the use count is a plain integer and handles sharing a pair must
// not be used from several goroutines at once. Pass handle.WithAtomicCount to
// make Clone and Release safe for concurrent use.
package sharedref
