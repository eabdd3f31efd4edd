// Package schedule runs fixed-interval tasks from a polling loop.
package schedule

import (
	"context"
	"fmt"
	"time"
)

// Action is the work a task performs when it fires.
type Action func(ctx context.Context) error

// Task fires its action when polled at least interval after its last run.
// A new task fires on its first poll. Tasks are not safe for concurrent
// polling; the owning loop goroutine is the only caller.
type Task struct {
	name     string
	interval time.Duration
	action   Action
	lastRun  time.Time
	runs     int
}

// NewTask creates a task armed to fire on its first poll.
func NewTask(name string, interval time.Duration, action Action) (*Task, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("%w: %s has interval %v", ErrInvalidInterval, name, interval)
	}
	if action == nil {
		return nil, fmt.Errorf("task %s: nil action", name)
	}
	return &Task{name: name, interval: interval, action: action}, nil
}

// Name returns the task name.
func (t *Task) Name() string { return t.name }

// Interval returns the firing interval.
func (t *Task) Interval() time.Duration { return t.interval }

// LastRun returns when the task last fired, or the zero time.
func (t *Task) LastRun() time.Time { return t.lastRun }

// Runs returns how many times the task has fired.
func (t *Task) Runs() int { return t.runs }

// due reports whether the task would fire if polled at now.
func (t *Task) due(now time.Time) bool {
	return t.lastRun.IsZero() || now.Sub(t.lastRun) >= t.interval
}

// NextDue returns the earliest time the task fires again.
func (t *Task) NextDue() time.Time {
	if t.lastRun.IsZero() {
		return time.Time{}
	}
	return t.lastRun.Add(t.interval)
}

// Poll runs the action if the task is due and reports whether it ran.
// lastRun advances even when the action fails, so a failing task keeps
// its cadence. A panic in the action is returned as ErrTaskPanicked.
func (t *Task) Poll(ctx context.Context, now time.Time) (ran bool, err error) {
	if !t.due(now) {
		return false, nil
	}
	t.lastRun = now
	t.runs++

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrTaskPanicked, t.name, r)
		}
	}()
	return true, t.action(ctx)
}
