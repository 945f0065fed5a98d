package batch

// State is the lifecycle position of one export job.
type State int

const (
	Pending State = iota
	Rendering
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Rendering:
		return "rendering"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Done || s == Failed
}

// MarshalText renders the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CanTransition reports whether from -> to is a legal, forward-only step.
func CanTransition(from, to State) bool {
	switch from {
	case Pending:
		return to == Rendering
	case Rendering:
		return to == Done || to == Failed
	default:
		return false
	}
}
