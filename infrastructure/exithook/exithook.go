// Package exithook runs registered cleanup functions when the host process
// is shutting down.
package exithook

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/felixgeelhaar/heapscope/infrastructure/logging"
)

// Registry holds exit hooks. The zero value is ready to use.
type Registry struct {
	runMu sync.Mutex

	mu    sync.Mutex
	hooks []func()
	ran   bool
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{}
}

// OnExit registers fn. A hook registered after Run runs on the next Run.
func (r *Registry) OnExit(fn func()) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, fn)
}

// Len returns the number of hooks waiting for the next Run.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.hooks)
}

// Run executes the registered hooks in reverse registration order and
// clears them, so each hook runs at most once. Concurrent calls wait for
// the one in progress. A panicking hook is logged and the rest still run.
func (r *Registry) Run() {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	r.mu.Lock()
	r.ran = true
	hooks := r.hooks
	r.hooks = nil
	r.mu.Unlock()

	for i := len(hooks) - 1; i >= 0; i-- {
		runHook(hooks[i])
	}
}

// Ran reports whether Run has been called at least once.
func (r *Registry) Ran() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ran
}

func runHook(fn func()) {
	defer func() {
		if p := recover(); p != nil {
			logging.Error().
				Add(logging.Component("exithook")).
				Add(logging.Str("panic", toString(p))).
				Msg("exit hook panicked")
		}
	}()
	fn()
}

// Watch blocks until one of signals arrives or ctx is done, then calls
// Run. With no signals, SIGINT and SIGTERM are watched.
func (r *Registry) Watch(ctx context.Context, signals ...os.Signal) os.Signal {
	if len(signals) == 0 {
		signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, signals...)
	defer signal.Stop(ch)

	var got os.Signal
	select {
	case got = <-ch:
		logging.Info().
			Add(logging.Component("exithook")).
			Add(logging.Str("signal", got.String())).
			Msg("received shutdown signal")
	case <-ctx.Done():
	}
	r.Run()
	return got
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case error:
		return x.Error()
	default:
		return "non-error panic value"
	}
}
