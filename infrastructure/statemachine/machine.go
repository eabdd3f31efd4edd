// Package statemachine provides the statekit chart for the agent lifecycle.
package statemachine

import (
	"github.com/felixgeelhaar/statekit"

	"github.com/felixgeelhaar/heapscope/domain/agent"
)

// Context carries lifecycle data through the state machine.
type Context struct {
	AgentID string
	Current agent.State
	History []Transition
}

// Transition records one lifecycle edge taken by the machine.
type Transition struct {
	From   agent.State
	To     agent.State
	Reason string
}

// State IDs as StateID type for statekit.
const (
	stateCreated  statekit.StateID = statekit.StateID(agent.StateCreated)
	stateStarted  statekit.StateID = statekit.StateID(agent.StateStarted)
	stateStopping statekit.StateID = statekit.StateID(agent.StateStopping)
	stateStopped  statekit.StateID = statekit.StateID(agent.StateStopped)
)

// Lifecycle events.
const (
	EventStart statekit.EventType = "START"
	EventStop  statekit.EventType = "STOP"
	EventHalt  statekit.EventType = "HALT"
)

// NewLifecycleMachine creates the agent lifecycle chart:
// created -START-> started -STOP-> stopping -HALT-> stopped.
func NewLifecycleMachine() (*statekit.MachineConfig[*Context], error) {
	return statekit.NewMachine[*Context]("lifecycle").
		WithInitial(stateCreated).
		WithContext(&Context{}).
		WithAction("logEntry", logStateEntry).
		WithAction("recordTransition", recordTransition).
		WithGuard("canTransition", guardCanTransition).
		State(stateCreated).
			OnEntry("logEntry").
			On(EventStart).Target(stateStarted).Guard("canTransition").Do("recordTransition").
			Done().
		State(stateStarted).
			OnEntry("logEntry").
			On(EventStop).Target(stateStopping).Guard("canTransition").Do("recordTransition").
			Done().
		State(stateStopping).
			OnEntry("logEntry").
			On(EventHalt).Target(stateStopped).Guard("canTransition").Do("recordTransition").
			Done().
		State(stateStopped).
			Final().
			OnEntry("logEntry").
			Done().
		Build()
}

// EventForTransition returns the event type that moves the machine into to.
func EventForTransition(to agent.State) statekit.EventType {
	switch to {
	case agent.StateStarted:
		return EventStart
	case agent.StateStopping:
		return EventStop
	case agent.StateStopped:
		return EventHalt
	default:
		return statekit.EventType(to)
	}
}

// StateFromMachine converts the machine state ID to domain State.
func StateFromMachine(stateID statekit.StateID) agent.State {
	return agent.State(stateID)
}
