package diagnostics

import "errors"

// Domain errors for runtime collaborators.
var (
	// ErrDumpInProgress indicates a heap dump is already being produced.
	ErrDumpInProgress = errors.New("heap dump already in progress")

	// ErrCounterUnavailable indicates the statistics source does not expose a counter.
	ErrCounterUnavailable = errors.New("counter unavailable")
)
