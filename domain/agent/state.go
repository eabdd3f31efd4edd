// Package agent provides the core domain model for the diagnostic agent.
package agent

// State is a lifecycle stage of one agent instance.
// States are identified by stable strings so they can be logged and exported.
type State string

// Lifecycle states.
const (
	StateCreated  State = "created"  // Transport not yet bound
	StateStarted  State = "started"  // Transport bound, loop running
	StateStopping State = "stopping" // Stop requested, finishing the current tick
	StateStopped  State = "stopped"  // Transport torn down, loop joined
)

// IsTerminal returns true if no further transition is possible.
func (s State) IsTerminal() bool {
	return s == StateStopped
}

// IsRunning returns true while the loop goroutine may still be executing ticks.
func (s State) IsRunning() bool {
	return s == StateStarted || s == StateStopping
}

// IsValid returns true if the state is a recognized lifecycle state.
func (s State) IsValid() bool {
	switch s {
	case StateCreated, StateStarted, StateStopping, StateStopped:
		return true
	default:
		return false
	}
}

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// AllStates returns all lifecycle states in order.
func AllStates() []State {
	return []State{
		StateCreated,
		StateStarted,
		StateStopping,
		StateStopped,
	}
}

// transitions lists the allowed lifecycle edges.
var transitions = map[State][]State{
	StateCreated:  {StateStarted},
	StateStarted:  {StateStopping},
	StateStopping: {StateStopped},
}

// CanTransition reports whether the lifecycle allows moving from one state to another.
func CanTransition(from, to State) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
