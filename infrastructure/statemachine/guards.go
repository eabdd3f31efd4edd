package statemachine

import (
	"github.com/felixgeelhaar/statekit"

	"github.com/felixgeelhaar/heapscope/domain/agent"
)

// guardCanTransition checks the edge against the domain transition table.
// Guards receive the context by value, which for *Context is the pointer.
func guardCanTransition(ctx *Context, event statekit.Event) bool {
	if ctx == nil {
		return false
	}
	return agent.CanTransition(ctx.Current, stateFromEvent(event))
}

// stateFromEvent derives the target state from an event.
func stateFromEvent(event statekit.Event) agent.State {
	if payload, ok := event.Payload.(TransitionPayload); ok && payload.To != "" {
		return payload.To
	}
	switch event.Type {
	case EventStart:
		return agent.StateStarted
	case EventStop:
		return agent.StateStopping
	case EventHalt:
		return agent.StateStopped
	default:
		return ""
	}
}
