package statemachine

import (
	"github.com/felixgeelhaar/statekit"

	"github.com/felixgeelhaar/heapscope/infrastructure/logging"
)

// logStateEntry logs entry into a lifecycle state.
// Actions receive a pointer to the context; ours is *Context, so **Context.
func logStateEntry(ctx **Context, event statekit.Event) {
	if ctx == nil || *ctx == nil {
		return
	}
	c := *ctx
	to := stateFromEvent(event)
	if to == "" {
		return
	}

	logging.Debug().
		Add(logging.Component("lifecycle")).
		Add(logging.AgentID(c.AgentID)).
		Add(logging.State(to)).
		Msg("entered state")
}

// recordTransition appends the edge to the history and advances Current.
func recordTransition(ctx **Context, event statekit.Event) {
	if ctx == nil || *ctx == nil {
		return
	}
	c := *ctx
	to := stateFromEvent(event)

	var reason string
	if payload, ok := event.Payload.(TransitionPayload); ok {
		reason = payload.Reason
	}

	c.History = append(c.History, Transition{From: c.Current, To: to, Reason: reason})
	c.Current = to
}
