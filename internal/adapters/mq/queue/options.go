package queue

// Option applies a configuration option to an InMemoryQueue.
type Option func(*options)

type options struct {
	initialCapacity int
	trackMetrics    bool
}

// WithInitialCapacity preallocates room for n items. The queue still grows
// without bound.
func WithInitialCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.initialCapacity = n
		}
	}
}

// WithMetrics toggles reporting to the process metrics registry.
func WithMetrics(enabled bool) Option {
	return func(o *options) {
		o.trackMetrics = enabled
	}
}
