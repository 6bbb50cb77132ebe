package pipeline

// State is the lifecycle state of one build.
type State string

const (
	StateNotStarted   State = "not_started"
	StateValidating   State = "validating"
	StateRunningStart State = "running_start"
	StateRunningEnd   State = "running_end"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
)

// String returns the string representation of the state.
func (s State) String() string { return string(s) }

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// phase maps a running state to the hook it dispatches.
func (s State) phase() string {
	switch s {
	case StateValidating:
		return "validate"
	case StateRunningStart:
		return "start"
	case StateRunningEnd:
		return "end"
	default:
		return string(s)
	}
}
