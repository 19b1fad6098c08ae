package poller

// State is the lifecycle phase of a polling session. A session moves forward
// only: a stopped session is not restartable, a new session must be created.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopping
	StateStopped
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

var allowedTransitions = map[State][]State{
	StateIdle:     {StateRunning},
	StateRunning:  {StateStopping, StateStopped},
	StateStopping: {StateStopped},
	StateStopped:  {},
}

// IsTransitionAllowed reports whether a session may move from one state to
// another.
func IsTransitionAllowed(from, to State) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}

	return false
}
