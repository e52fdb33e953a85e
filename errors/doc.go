// Package errors provides structured error types for the sharedref module.
//
// Errors are categorized by Phase (which operation was running) and Kind
// (error category). The Error type carries the Go type of the handle, an
// optional path (slot handle, scenario step), the offending value and a
// cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseAccess, errors.KindNullDereference).
//		GoType("*handle.Shared[int]").
//		Detail("dereference of null handle").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.NullDereference(errors.PhaseAccess, "int")
//	err := errors.InvalidHandle(errors.PhaseTable, 7)
//
// All errors implement the standard error interface and support errors.Is/As.
// The package-level sentinels match on Kind alone:
//
//	if errors.Is(err, errors.ErrNullDereference) { ... }
package errors
