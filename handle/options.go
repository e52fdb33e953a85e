package handle

// Option configures the pair created by New or Null.
type Option func(*options)

type options struct {
	observers []Observer
	mode      CountMode
}

// WithAtomicCount makes the pair's count safe for concurrent updates.
func WithAtomicCount() Option {
	return func(o *options) {
		o.mode = ModeAtomic
	}
}

// WithObserver registers an observer for every lifecycle event of the pair.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}
