package resource

import (
	"reflect"

	"github.com/wippyai/sharedref/errors"
)

// Typed provides type-safe access to the slots of one resource type.
type Typed[T any] struct {
	table  *Table
	typeID uint32
}

// NewTyped binds a Go type to a type ID of t.
func NewTyped[T any](t *Table, typeID uint32) *Typed[T] {
	return &Typed[T]{table: t, typeID: typeID}
}

// Insert adds a value and returns its handle.
func (t *Typed[T]) Insert(value T) Handle {
	return t.table.Insert(t.typeID, value)
}

// InsertNull adds a null pair of this type.
func (t *Typed[T]) InsertNull() Handle {
	return t.table.InsertNull(t.typeID)
}

// Get returns the value shared by h's pair.
func (t *Typed[T]) Get(h Handle) (T, error) {
	var zero T
	value, err := t.table.GetTyped(h, t.typeID)
	if err != nil {
		return zero, err
	}
	v, ok := value.(T)
	if !ok {
		return zero, errors.New(errors.PhaseTable, errors.KindTypeMismatch).
			GoType(reflect.TypeFor[T]().String()).
			Value(value).
			Detail("slot %d holds %T", h, value).
			Build()
	}
	return v, nil
}

// Check returns nil if h is a live slot of this type.
func (t *Typed[T]) Check(h Handle) error {
	actual, ok := t.table.TypeID(h)
	if !ok {
		return t.table.invalid(h)
	}
	if actual != t.typeID {
		return errors.TypeMismatch(errors.PhaseTable, uint32(h), t.typeID, actual)
	}
	return nil
}

// Clone adds a slot sharing h's pair after checking its type.
func (t *Typed[T]) Clone(h Handle) (Handle, error) {
	if err := t.Check(h); err != nil {
		return 0, err
	}
	return t.table.Clone(h)
}

// Assign makes dst share src's pair. Both slots must be of this type.
func (t *Typed[T]) Assign(dst, src Handle) error {
	if err := t.Check(dst); err != nil {
		return err
	}
	if err := t.Check(src); err != nil {
		return err
	}
	return t.table.Assign(dst, src)
}

// UseCount returns the owner count of h's pair after checking its type.
func (t *Typed[T]) UseCount(h Handle) (int64, error) {
	if err := t.Check(h); err != nil {
		return 0, err
	}
	return t.table.UseCount(h)
}

// Remove releases h's owner after checking its type.
func (t *Typed[T]) Remove(h Handle) (bool, error) {
	if err := t.Check(h); err != nil {
		return false, err
	}
	return t.table.Remove(h)
}
