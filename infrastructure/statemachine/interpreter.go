package statemachine

import (
	"fmt"
	"sync"

	"github.com/felixgeelhaar/statekit"

	"github.com/felixgeelhaar/heapscope/domain/agent"
	"github.com/felixgeelhaar/heapscope/infrastructure/logging"
)

// TransitionPayload carries additional data with a transition event.
type TransitionPayload struct {
	To     agent.State
	Reason string
}

// Lifecycle wraps the statekit interpreter for one agent. It is safe for
// concurrent use.
type Lifecycle struct {
	mu     sync.Mutex
	interp *statekit.Interpreter[*Context]
	ctx    *Context
}

// NewLifecycle builds and starts a lifecycle machine in the created state.
func NewLifecycle(agentID string) (*Lifecycle, error) {
	machine, err := NewLifecycleMachine()
	if err != nil {
		return nil, fmt.Errorf("build lifecycle machine: %w", err)
	}

	ctx := &Context{AgentID: agentID, Current: agent.StateCreated}
	interp := statekit.NewInterpreter(machine)
	interp.UpdateContext(func(c **Context) {
		*c = ctx
	})
	interp.Start()

	return &Lifecycle{interp: interp, ctx: ctx}, nil
}

// State returns the current state.
func (l *Lifecycle) State() agent.State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return StateFromMachine(l.interp.State().Value)
}

// Is reports whether the machine is in state s.
func (l *Lifecycle) Is(s agent.State) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.interp.Matches(statekit.StateID(s))
}

// IsTerminal returns true once the machine reached its final state.
func (l *Lifecycle) IsTerminal() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.interp.Done()
}

// Transition moves the machine to the target state. Edges not in the
// lifecycle table fail with agent.ErrInvalidTransition.
func (l *Lifecycle) Transition(to agent.State, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	from := StateFromMachine(l.interp.State().Value)
	// Send panics on events the current state does not handle.
	if !agent.CanTransition(from, to) {
		return fmt.Errorf("%w: %s to %s", agent.ErrInvalidTransition, from, to)
	}

	l.interp.Send(statekit.Event{
		Type:    EventForTransition(to),
		Payload: TransitionPayload{To: to, Reason: reason},
	})

	if got := StateFromMachine(l.interp.State().Value); got != to {
		return fmt.Errorf("%w: %s to %s rejected (now %s)", agent.ErrInvalidTransition, from, to, got)
	}

	logging.Info().
		Add(logging.Component("lifecycle")).
		Add(logging.AgentID(l.ctx.AgentID)).
		Add(logging.FromState(from)).
		Add(logging.ToState(to)).
		Add(logging.Str("reason", reason)).
		Msg("agent state changed")
	return nil
}

// History returns a copy of the transitions taken so far.
func (l *Lifecycle) History() []Transition {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Transition, len(l.ctx.History))
	copy(out, l.ctx.History)
	return out
}

// Stop stops the underlying interpreter.
func (l *Lifecycle) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.interp.Stop()
}
