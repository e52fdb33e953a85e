package handle

// Scope runs fn with a clone of h and releases the clone when fn returns,
// panics or calls runtime.Goexit.
func Scope[T any](h *Shared[T], fn func(owner *Shared[T]) error) error {
	owner := h.Clone()
	defer owner.Release()
	return fn(owner)
}

// With runs fn on the shared value of h while holding an extra owner.
// It returns the access error without calling fn if h has no value.
func With[T any](h *Shared[T], fn func(v *T) error) error {
	return Scope(h, func(owner *Shared[T]) error {
		v, err := owner.Ptr()
		if err != nil {
			return err
		}
		return fn(v)
	})
}
