package goruntime

import (
	"runtime"
	"sync"
)

// DefaultSampleRate records every allocation while tracing is enabled.
const DefaultSampleRate = 1

// AllocationTracer switches runtime.MemProfileRate between the host's
// rate and a fine-grained sampling rate.
type AllocationTracer struct {
	mu      sync.Mutex
	rate    int
	prev    int
	enabled bool
}

// NewAllocationTracer creates a tracer sampling every rate bytes.
// A rate of zero or less selects DefaultSampleRate.
func NewAllocationTracer(rate int) *AllocationTracer {
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	return &AllocationTracer{rate: rate}
}

// Enable starts fine-grained sampling.
func (t *AllocationTracer) Enable() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.enabled {
		return
	}
	t.prev = runtime.MemProfileRate
	runtime.MemProfileRate = t.rate
	t.enabled = true
}

// Disable restores the rate that was active before Enable.
func (t *AllocationTracer) Disable() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	runtime.MemProfileRate = t.prev
	t.enabled = false
}

// Enabled reports whether fine-grained sampling is on.
func (t *AllocationTracer) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

// Rate returns the sampling rate used while enabled.
func (t *AllocationTracer) Rate() int {
	return t.rate
}
