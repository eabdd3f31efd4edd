package agent

import "errors"

// Domain errors for the agent lifecycle.
var (
	// ErrInvalidState indicates the state is not a recognized lifecycle state.
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidTransition indicates an attempted lifecycle transition is not allowed.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrAgentStopped indicates an operation was attempted on a stopped agent.
	// Agents are single-use; a new one must be constructed after Stop.
	ErrAgentStopped = errors.New("agent already stopped")

	// ErrAlreadyActive indicates a start was requested while another agent is active.
	ErrAlreadyActive = errors.New("an agent is already active")

	// ErrMissingCollaborator indicates a required collaborator was not configured.
	ErrMissingCollaborator = errors.New("missing collaborator")
)
