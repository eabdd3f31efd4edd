package diagnostics

import "fmt"

// Counter names shared between sources and the gc_stats event.
const (
	// CounterHeapAllocatedPages is the preferred "allocated pages" counter.
	CounterHeapAllocatedPages = "heap_allocated_pages"
	// CounterHeapUsed is the legacy fallback for allocated pages.
	CounterHeapUsed = "heap_used"

	// FieldTotalHeapSize is the derived heap size estimate in bytes.
	FieldTotalHeapSize = "total_heap_size"
	// FieldTotalMemsize is the derived live memory estimate in bytes.
	FieldTotalMemsize = "total_memsize"
)

// Published event names.
const (
	EventGCStats         = "gc_stats"
	EventObjectSpaceDump = "object_space_dump"
)

// ResolvePagesCounter picks the counter that represents allocated heap pages.
// It prefers heap_allocated_pages and falls back to heap_used.
func ResolvePagesCounter(src StatsSource) (string, error) {
	var fallback bool
	for _, name := range src.Counters() {
		switch name {
		case CounterHeapAllocatedPages:
			return name, nil
		case CounterHeapUsed:
			fallback = true
		}
	}
	if fallback {
		return CounterHeapUsed, nil
	}
	return "", fmt.Errorf("%w: neither %s nor %s", ErrCounterUnavailable, CounterHeapAllocatedPages, CounterHeapUsed)
}

// TotalHeapSize estimates the heap size as pages × objects per page × object size.
func TotalHeapSize(pages uint64, layout HeapLayout) uint64 {
	return pages * layout.ObjectsPerPage * layout.ObjectSize
}

// WithDerived returns a copy of s extended with total_heap_size, computed
// from the pagesCounter value and layout, and total_memsize.
func (s Stats) WithDerived(pagesCounter string, layout HeapLayout, liveBytes uint64) Stats {
	out := s.Clone()
	out[FieldTotalHeapSize] = TotalHeapSize(s[pagesCounter], layout)
	out[FieldTotalMemsize] = liveBytes
	return out
}
