package schedule

import "errors"

// Domain errors for periodic tasks.
var (
	// ErrInvalidInterval indicates a task interval that is not positive.
	ErrInvalidInterval = errors.New("task interval must be positive")

	// ErrTaskPanicked indicates a task action panicked.
	ErrTaskPanicked = errors.New("task panicked")

	// ErrDuplicateTask indicates a task name is already registered.
	ErrDuplicateTask = errors.New("duplicate task")
)
