package goruntime

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"runtime/pprof"
	"sync"
	"sync/atomic"

	"github.com/felixgeelhaar/heapscope/domain/diagnostics"
	"github.com/felixgeelhaar/heapscope/domain/transport"
	"github.com/felixgeelhaar/heapscope/infrastructure/logging"
)

// ObjectSpaceDump is the payload of an object_space_dump event.
type ObjectSpaceDump struct {
	// Format identifies the encoding of Profile.
	Format string `json:"format"`
	// Size is the profile length in bytes.
	Size int `json:"size"`
	// Profile is the gzipped pprof heap profile.
	Profile []byte `json:"profile"`
}

// ProfileWriter writes a heap profile to w.
type ProfileWriter func(w io.Writer) error

// WriteHeapProfile writes the runtime heap profile in pprof format.
func WriteHeapProfile(w io.Writer) error {
	return pprof.Lookup("heap").WriteTo(w, 0)
}

// HeapDumper produces heap profiles in the background and publishes them.
// Only one dump runs at a time.
type HeapDumper struct {
	publisher transport.Publisher
	write     ProfileWriter
	inFlight  atomic.Bool
	wg        sync.WaitGroup
	dumps     atomic.Int64
}

// NewHeapDumper creates a dumper that publishes through publisher. A nil
// write selects WriteHeapProfile.
func NewHeapDumper(publisher transport.Publisher, write ProfileWriter) *HeapDumper {
	if write == nil {
		write = WriteHeapProfile
	}
	return &HeapDumper{publisher: publisher, write: write}
}

// DumpAndPublish starts a dump and returns immediately. It fails with
// diagnostics.ErrDumpInProgress while a previous dump is still running.
func (d *HeapDumper) DumpAndPublish(ctx context.Context) error {
	if !d.inFlight.CompareAndSwap(false, true) {
		return diagnostics.ErrDumpInProgress
	}
	d.wg.Add(1)
	ctx = context.WithoutCancel(ctx)
	go func() {
		defer d.wg.Done()
		defer d.inFlight.Store(false)
		if err := d.dump(ctx); err != nil {
			logging.Error().
				Add(logging.Component("dumper")).
				Add(logging.Event(diagnostics.EventObjectSpaceDump)).
				Add(logging.ErrorField(err)).
				Msg("heap dump failed")
		}
	}()
	return nil
}

func (d *HeapDumper) dump(ctx context.Context) error {
	var buf bytes.Buffer
	if err := d.write(&buf); err != nil {
		return fmt.Errorf("write heap profile: %w", err)
	}

	msg := transport.Message{
		Event: diagnostics.EventObjectSpaceDump,
		Payload: ObjectSpaceDump{
			Format:  "pprof",
			Size:    buf.Len(),
			Profile: buf.Bytes(),
		},
	}
	if err := d.publisher.Publish(ctx, msg); err != nil {
		return fmt.Errorf("publish heap profile: %w", err)
	}
	d.dumps.Add(1)

	logging.Debug().
		Add(logging.Component("dumper")).
		Add(logging.Bytes(buf.Len())).
		Msg("heap dump published")
	return nil
}

// Wait blocks until the in-flight dump, if any, has finished.
func (d *HeapDumper) Wait() {
	d.wg.Wait()
}

// Dumps returns how many dumps were published.
func (d *HeapDumper) Dumps() int64 {
	return d.dumps.Load()
}
