package schedule

import (
	"context"
	"fmt"
	"time"
)

// Result is the outcome of polling one task.
type Result struct {
	Task string
	Ran  bool
	Err  error
	// Elapsed is the wall time the action took. Zero when it did not run.
	Elapsed time.Duration
}

// Set holds tasks in registration order.
type Set struct {
	tasks []*Task
	names map[string]struct{}
}

// NewSet creates an empty task set.
func NewSet() *Set {
	return &Set{names: make(map[string]struct{})}
}

// Add registers a task. Names must be unique.
func (s *Set) Add(t *Task) error {
	if _, ok := s.names[t.name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, t.name)
	}
	s.names[t.name] = struct{}{}
	s.tasks = append(s.tasks, t)
	return nil
}

// Tasks returns the registered tasks in order.
func (s *Set) Tasks() []*Task {
	out := make([]*Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// Len returns the number of tasks.
func (s *Set) Len() int { return len(s.tasks) }

// PollAll polls every task in registration order. A failing task does not
// prevent later tasks from being polled.
func (s *Set) PollAll(ctx context.Context, now time.Time) []Result {
	results := make([]Result, 0, len(s.tasks))
	for _, t := range s.tasks {
		started := time.Now()
		ran, err := t.Poll(ctx, now)
		r := Result{Task: t.name, Ran: ran, Err: err}
		if ran {
			r.Elapsed = time.Since(started)
		}
		results = append(results, r)
	}
	return results
}

// NextDue returns the earliest time any task fires again, or the zero
// time if some task has never fired.
func (s *Set) NextDue() time.Time {
	var next time.Time
	for i, t := range s.tasks {
		due := t.NextDue()
		if due.IsZero() {
			return time.Time{}
		}
		if i == 0 || due.Before(next) {
			next = due
		}
	}
	return next
}
