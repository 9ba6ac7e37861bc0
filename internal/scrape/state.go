package scrape

// State is a step in one URL's lifecycle. Done and Failed are terminal.
type State string

// Lifecycle states.
const (
	StatePending    State = "pending"
	StateRendering  State = "rendering"
	StateExtracting State = "extracting"
	StatePersisting State = "persisting"
	StateRetrying   State = "retrying"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

func (s State) terminal() bool {
	return s == StateDone || s == StateFailed
}

// CanTransition reports whether next may follow s.
func (s State) CanTransition(next State) bool {
	if s.terminal() {
		return false
	}
	switch s {
	case StatePending:
		return next == StateRendering
	case StateRendering:
		return next == StateExtracting || next == StateRetrying || next == StateFailed
	case StateExtracting:
		return next == StatePersisting || next == StateRetrying || next == StateFailed
	case StatePersisting:
		return next == StateDone || next == StateRetrying || next == StateFailed
	case StateRetrying:
		return next == StateRendering || next == StateFailed
	default:
		return false
	}
}
