// Package goruntime implements the diagnostic collaborators on top of the
// Go runtime: memory statistics, allocation sampling, GC control and heap
// profile dumps.
package goruntime

import (
	"fmt"
	"os"
	"runtime"
	"runtime/metrics"
	"sync"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/felixgeelhaar/heapscope/domain/diagnostics"
)

// Heap geometry used for total_heap_size. The Go allocator manages the
// heap in 8 KiB pages; the smallest size class is 16 bytes.
const (
	PageSize       = 8192
	ObjectSize     = 16
	ObjectsPerPage = PageSize / ObjectSize
)

const liveObjectsMetric = "/memory/classes/heap/objects:bytes"

var counterNames = []string{
	"count",
	diagnostics.CounterHeapAllocatedPages,
	"heap_live_slots",
	"total_allocated_objects",
	"total_freed_objects",
	"heap_alloc_bytes",
	"heap_sys_bytes",
	"heap_idle_bytes",
	"heap_inuse_bytes",
	"heap_released_bytes",
	"stack_inuse_bytes",
	"sys_bytes",
	"next_gc_bytes",
	"pause_total_ns",
	"num_forced_gc",
	"goroutines",
	"process_rss_bytes",
}

// StatsSource samples runtime.MemStats plus the process resident set size.
type StatsSource struct {
	once sync.Once
	proc *process.Process
}

// NewStatsSource creates a statistics source for the current process.
func NewStatsSource() *StatsSource {
	return &StatsSource{}
}

func (s *StatsSource) process() *process.Process {
	s.once.Do(func() {
		// RSS is optional; a nil process leaves the counter out.
		if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
			s.proc = p
		}
	})
	return s.proc
}

// Snapshot reads the current counters. ReadMemStats briefly stops the world.
func (s *StatsSource) Snapshot() (diagnostics.Stats, error) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	stats := diagnostics.Stats{
		"count":                               uint64(m.NumGC),
		diagnostics.CounterHeapAllocatedPages: m.HeapSys / PageSize,
		"heap_live_slots":                     m.HeapObjects,
		"total_allocated_objects":             m.Mallocs,
		"total_freed_objects":                 m.Frees,
		"heap_alloc_bytes":                    m.HeapAlloc,
		"heap_sys_bytes":                      m.HeapSys,
		"heap_idle_bytes":                     m.HeapIdle,
		"heap_inuse_bytes":                    m.HeapInuse,
		"heap_released_bytes":                 m.HeapReleased,
		"stack_inuse_bytes":                   m.StackInuse,
		"sys_bytes":                           m.Sys,
		"next_gc_bytes":                       m.NextGC,
		"pause_total_ns":                      m.PauseTotalNs,
		"num_forced_gc":                       uint64(m.NumForcedGC),
		"goroutines":                          uint64(runtime.NumGoroutine()),
	}

	if p := s.process(); p != nil {
		if mem, err := p.MemoryInfo(); err == nil {
			stats["process_rss_bytes"] = mem.RSS
		}
	}
	return stats, nil
}

// Counters lists the counters Snapshot may return.
func (s *StatsSource) Counters() []string {
	out := make([]string, len(counterNames))
	copy(out, counterNames)
	return out
}

// HeapLayout returns the Go heap page geometry.
func (s *StatsSource) HeapLayout() diagnostics.HeapLayout {
	return diagnostics.HeapLayout{ObjectsPerPage: ObjectsPerPage, ObjectSize: ObjectSize}
}

// LiveBytes returns the bytes occupied by heap objects, live or not yet swept.
func (s *StatsSource) LiveBytes() (uint64, error) {
	sample := []metrics.Sample{{Name: liveObjectsMetric}}
	metrics.Read(sample)
	if sample[0].Value.Kind() != metrics.KindUint64 {
		return 0, fmt.Errorf("%w: %s", diagnostics.ErrCounterUnavailable, liveObjectsMetric)
	}
	return sample[0].Value.Uint64(), nil
}
