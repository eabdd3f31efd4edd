// Package diagnostics defines the runtime collaborators the agent drives:
// statistics sampling, allocation tracing, heap dumps and GC control.
package diagnostics

import (
	"context"
	"sort"
)

// Stats is one snapshot of named runtime memory counters.
type Stats map[string]uint64

// Clone returns a copy that can be extended without touching the original.
func (s Stats) Clone() Stats {
	out := make(Stats, len(s)+2)
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Names returns the counter names in sorted order.
func (s Stats) Names() []string {
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// HeapLayout describes how the heap is carved into pages.
// The product of the three numbers is the heap size estimate.
type HeapLayout struct {
	// ObjectsPerPage is the maximum number of objects one page holds.
	ObjectsPerPage uint64
	// ObjectSize is the size in bytes of one object slot.
	ObjectSize uint64
}

// PageBytes returns the size of one page in bytes.
func (l HeapLayout) PageBytes() uint64 {
	return l.ObjectsPerPage * l.ObjectSize
}

// StatsSource samples runtime memory counters on demand.
type StatsSource interface {
	// Snapshot returns the current counter values.
	Snapshot() (Stats, error)

	// Counters lists the counter names this source can expose.
	// It is used as a capability query and is expected to be stable.
	Counters() []string

	// HeapLayout returns the page geometry used to estimate heap size.
	HeapLayout() HeapLayout

	// LiveBytes returns an estimate of memory held by live objects.
	LiveBytes() (uint64, error)
}

// AllocationTracer toggles fine-grained heap allocation instrumentation.
// Enable and Disable are idempotent.
type AllocationTracer interface {
	Enable()
	Disable()
	Enabled() bool
}

// SnapshotProducer serializes the object graph and publishes it.
// DumpAndPublish is fire-and-forget from the caller's point of view.
type SnapshotProducer interface {
	DumpAndPublish(ctx context.Context) error
}

// Waiter is implemented by collaborators that run background work which
// must be joined before the agent releases its transport.
type Waiter interface {
	Wait()
}

// Collector requests garbage collection from the runtime.
type Collector interface {
	CollectNow() error
}

// ExitHooks registers callbacks to run when the host process exits.
type ExitHooks interface {
	OnExit(fn func())
}
