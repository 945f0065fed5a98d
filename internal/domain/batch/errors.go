package batch

import "errors"

// Sentinel errors for run bookkeeping.
var (
	ErrInvalidTransition = errors.New("invalid job state transition")
	ErrUnknownJob        = errors.New("job does not belong to this run")
	ErrNoQueue           = errors.New("run requires a queue")
)
