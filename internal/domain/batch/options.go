package batch

import (
	"time"

	"github.com/okian/roster/internal/domain/naming"
)

// Option applies a configuration option to a Run.
type Option func(*Run)

// WithSinks registers status event consumers, called in order.
func WithSinks(sinks ...Sink) Option {
	return func(r *Run) {
		for _, s := range sinks {
			if s != nil {
				r.sinks = append(r.sinks, s)
			}
		}
	}
}

// WithUsedNames seeds the run's name set, typically with files already in
// the output directory.
func WithUsedNames(names ...string) Option {
	return func(r *Run) {
		r.used = naming.NewUsedSet(names...)
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Run) {
		if now != nil {
			r.now = now
		}
	}
}
