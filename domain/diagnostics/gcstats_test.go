package diagnostics_test

import (
	"errors"
	"testing"

	"github.com/felixgeelhaar/heapscope/domain/diagnostics"
)

type countersOnly []string

func (c countersOnly) Snapshot() (diagnostics.Stats, error) { return nil, nil }
func (c countersOnly) Counters() []string                   { return c }
func (c countersOnly) HeapLayout() diagnostics.HeapLayout   { return diagnostics.HeapLayout{} }
func (c countersOnly) LiveBytes() (uint64, error)           { return 0, nil }

func TestResolvePagesCounter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		counters []string
		want     string
		wantErr  bool
	}{
		{"prefers allocated pages", []string{"heap_used", "heap_allocated_pages"}, "heap_allocated_pages", false},
		{"allocated pages only", []string{"count", "heap_allocated_pages"}, "heap_allocated_pages", false},
		{"falls back to heap_used", []string{"count", "heap_used"}, "heap_used", false},
		{"neither available", []string{"count"}, "", true},
		{"empty", nil, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := diagnostics.ResolvePagesCounter(countersOnly(tt.counters))
			if tt.wantErr {
				if !errors.Is(err, diagnostics.ErrCounterUnavailable) {
					t.Fatalf("ResolvePagesCounter() error = %v, want ErrCounterUnavailable", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolvePagesCounter() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolvePagesCounter() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTotalHeapSize(t *testing.T) {
	t.Parallel()

	layout := diagnostics.HeapLayout{ObjectsPerPage: 408, ObjectSize: 40}
	if got := diagnostics.TotalHeapSize(10, layout); got != 10*408*40 {
		t.Errorf("TotalHeapSize() = %d, want %d", got, 10*408*40)
	}
	if got := layout.PageBytes(); got != 408*40 {
		t.Errorf("PageBytes() = %d, want %d", got, 408*40)
	}
	if got := diagnostics.TotalHeapSize(0, layout); got != 0 {
		t.Errorf("TotalHeapSize(0) = %d, want 0", got)
	}
}

func TestStats_CloneAndNames(t *testing.T) {
	t.Parallel()

	s := diagnostics.Stats{"count": 3, "heap_used": 7}
	c := s.Clone()
	c["total_heap_size"] = 1

	if _, ok := s["total_heap_size"]; ok {
		t.Error("Clone() shares storage with the original")
	}
	names := c.Names()
	want := []string{"count", "heap_used", "total_heap_size"}
	if len(names) != len(want) {
		t.Fatalf("Names() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestStats_WithDerived(t *testing.T) {
	t.Parallel()

	layout := diagnostics.HeapLayout{ObjectsPerPage: 512, ObjectSize: 16}
	base := diagnostics.Stats{"count": 4, "heap_used": 3}

	got := base.WithDerived(diagnostics.CounterHeapUsed, layout, 1234)

	if got[diagnostics.FieldTotalHeapSize] != 3*512*16 {
		t.Errorf("total_heap_size = %d, want %d", got[diagnostics.FieldTotalHeapSize], 3*512*16)
	}
	if got[diagnostics.FieldTotalMemsize] != 1234 {
		t.Errorf("total_memsize = %d, want 1234", got[diagnostics.FieldTotalMemsize])
	}
	if got["count"] != 4 {
		t.Errorf("count = %d, want 4", got["count"])
	}
	if _, ok := base[diagnostics.FieldTotalHeapSize]; ok {
		t.Error("WithDerived modified the receiver")
	}
}
