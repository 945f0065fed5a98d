package batch

import (
	"context"
	"time"
)

// Event reports one job state transition.
type Event struct {
	RunID    string
	JobID    int
	TeamID   int64
	TeamName string
	Target   string
	From     State
	To       State
	Err      error
	Warnings []error
	At       time.Time
}

// Sink consumes status events. Emit is called synchronously by the goroutine
// that performed the transition, so implementations must be safe for
// concurrent use and should return quickly.
type Sink interface {
	Emit(ctx context.Context, e Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e Event)

// Emit calls f.
func (f SinkFunc) Emit(ctx context.Context, e Event) { f(ctx, e) }
