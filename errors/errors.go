package errors

import (
	"fmt"
	"strings"
)

// Phase indicates which operation produced the error
type Phase string

const (
	PhaseShare   Phase = "share"   // clone and assign
	PhaseRelease Phase = "release" // release and retirement
	PhaseAccess  Phase = "access"  // dereference and member access
	PhaseTable   Phase = "table"   // integer handle table
	PhaseHost    Phase = "host"    // wasm host module
	PhaseScript  Phase = "script"  // scenario execution
	PhaseConfig  Phase = "config"  // configuration loading
	PhaseParse   Phase = "parse"   // YAML parsing
)

// Kind categorizes the error
type Kind string

const (
	KindNullDereference Kind = "null_dereference"
	KindReleased        Kind = "released"
	KindInvalidHandle   Kind = "invalid_handle"
	KindTypeMismatch    Kind = "type_mismatch"
	KindClosed          Kind = "closed"
	KindInvalidInput    Kind = "invalid_input"
	KindInvalidData     Kind = "invalid_data"
	KindNotFound        Kind = "not_found"
	KindUnsupported     Kind = "unsupported"
	KindAssertion       Kind = "assertion"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	GoType string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Phase != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" {
		b.WriteString(": Go type ")
		b.WriteString(e.GoType)
	}

	if e.Detail != "" {
		if e.GoType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target without a Phase matches on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// Phase-agnostic sentinels for errors.Is.
var (
	ErrNullDereference = &Error{Kind: KindNullDereference}
	ErrReleased        = &Error{Kind: KindReleased}
	ErrInvalidHandle   = &Error{Kind: KindInvalidHandle}
	ErrTypeMismatch    = &Error{Kind: KindTypeMismatch}
	ErrClosed          = &Error{Kind: KindClosed}
	ErrAssertion       = &Error{Kind: KindAssertion}
)

// KindOf returns the Kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// NullDereference reports access to the value of a null handle
func NullDereference(phase Phase, goType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNullDereference,
		GoType: goType,
		Detail: "dereference of null handle",
	}
}

// Released reports use of a handle after it let go of its pair
func Released(phase Phase, goType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindReleased,
		GoType: goType,
		Detail: "handle already released",
	}
}

// InvalidHandle reports an unknown or freed table handle
func InvalidHandle(phase Phase, handle uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidHandle,
		Path:   []string{fmt.Sprintf("#%d", handle)},
		Detail: fmt.Sprintf("handle %d is not live", handle),
		Value:  handle,
	}
}

// TypeMismatch reports a table handle of an unexpected resource type
func TypeMismatch(phase Phase, handle uint32, want, got uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Path:   []string{fmt.Sprintf("#%d", handle)},
		Detail: fmt.Sprintf("expected type %d, got %d", want, got),
		Value:  got,
	}
}

// Closed reports an operation on a closed component
func Closed(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s closed", what),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Assertion reports an unmet scenario expectation
func Assertion(path []string, detail string, args ...any) *Error {
	return &Error{
		Phase:  PhaseScript,
		Kind:   KindAssertion,
		Path:   path,
		Detail: fmt.Sprintf(detail, args...),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// ParseFailed creates a parsing error
func ParseFailed(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindInvalidData,
		Detail: fmt.Sprintf("parse %s", what),
		Cause:  cause,
	}
}
