package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/felixgeelhaar/heapscope/domain/agent"
	"github.com/felixgeelhaar/heapscope/domain/diagnostics"
	"github.com/felixgeelhaar/heapscope/domain/transport"
	"github.com/felixgeelhaar/heapscope/infrastructure/observability"
	"github.com/felixgeelhaar/heapscope/infrastructure/telemetry"
)

// mockHooks records exit hooks.
type mockHooks struct {
	mu    sync.Mutex
	hooks []func()
}

func (h *mockHooks) OnExit(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, fn)
}

func (h *mockHooks) registered() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.hooks)
}

// run fires and clears the registered hooks.
func (h *mockHooks) run() {
	h.mu.Lock()
	hooks := h.hooks
	h.hooks = nil
	h.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

var _ diagnostics.ExitHooks = (*mockHooks)(nil)

type controllerFixture struct {
	*fixture
	hooks    *mockHooks
	mu       sync.Mutex
	created  int
	lastEnds transport.Endpoints
	extra    []Option
}

func newControllerFixture(t *testing.T, extra ...Option) (*controllerFixture, *Controller) {
	t.Helper()
	cf := &controllerFixture{fixture: newFixture(), hooks: &mockHooks{}, extra: extra}
	c, err := NewController(ControllerConfig{
		NewAgent:  cf.newAgentFor,
		Defaults:  transport.Endpoints{Publish: "default-pub", Request: "default-req"},
		ExitHooks: cf.hooks,
	})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return cf, c
}

func (cf *controllerFixture) newAgentFor(endpoints transport.Endpoints) (*Agent, error) {
	cf.mu.Lock()
	cf.created++
	cf.lastEnds = endpoints
	cf.mu.Unlock()
	// Agents share the fixture transport; each unbinds it before the next binds.
	return New(cf.options(append([]Option{WithEndpoints(endpoints)}, cf.extra...)...)...)
}

func (cf *controllerFixture) agentsCreated() int {
	cf.mu.Lock()
	defer cf.mu.Unlock()
	return cf.created
}

func TestNewController_RequiresFactory(t *testing.T) {
	t.Parallel()

	if _, err := NewController(ControllerConfig{}); err == nil {
		t.Error("NewController() without factory succeeded")
	}
}

// Profiling start followed by trigger_gc collects once with tracing on.
func TestController_StartProfilingTriggerGC(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	metrics := telemetry.NewMetricsProvider(telemetry.MetricsConfig{Provider: provider})

	cf, c := newControllerFixture(t, WithMetrics(metrics))
	ctx := context.Background()

	if err := c.StartProfiling(ctx, transport.Endpoints{}); err != nil {
		t.Fatalf("StartProfiling() error = %v", err)
	}
	if !cf.tracer.Enabled() {
		t.Error("tracing not enabled by StartProfiling")
	}
	if cf.lastEnds != (transport.Endpoints{Publish: "default-pub", Request: "default-req"}) {
		t.Errorf("endpoints = %+v, want defaults", cf.lastEnds)
	}

	if err := cf.transport.Send(agent.CommandTriggerGC); err != nil {
		t.Fatal(err)
	}
	eventually(t, "one collection", func() bool { return cf.collector.collections() == 1 })

	if err := c.StopServer(ctx); err != nil {
		t.Fatalf("StopServer() error = %v", err)
	}
	if cf.collector.collections() != 1 {
		t.Errorf("collections = %d, want 1", cf.collector.collections())
	}
	if cf.tracer.Enabled() {
		t.Error("tracing still enabled after StopServer")
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatal(err)
	}
	var commands int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "heapscope.commands" {
				continue
			}
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				commands += dp.Value
			}
		}
	}
	if commands != 1 {
		t.Errorf("heapscope.commands = %d, want 1", commands)
	}
}

// Server start followed by objectspace_snapshot dumps once with tracing off.
func TestController_StartServerSnapshot(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	cf, c := newControllerFixture(t, WithSpans(tp.Tracer(observability.TracerName)))
	ctx := context.Background()

	if err := c.StartServer(ctx, transport.Endpoints{Publish: "p", Request: "r"}); err != nil {
		t.Fatalf("StartServer() error = %v", err)
	}
	if cf.tracer.Enabled() {
		t.Error("tracing enabled by StartServer")
	}
	if err := cf.transport.Send(agent.CommandObjectSpaceSnapshot); err != nil {
		t.Fatal(err)
	}
	eventually(t, "one dump", func() bool { return cf.snapshots.count() == 1 })

	if err := c.StopServer(ctx); err != nil {
		t.Fatal(err)
	}
	if got := len(cf.transport.Events(diagnostics.EventObjectSpaceDump)); got != 1 {
		t.Errorf("object_space_dump events = %d, want 1", got)
	}
	if cf.tracer.Enabled() {
		t.Error("tracing enabled during server run")
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 || spans[0].Name != observability.SpanCommand {
		t.Errorf("spans = %v, want one %s span", spans, observability.SpanCommand)
	}
}

// Stopping before any start touches nothing.
func TestController_StopBeforeStart(t *testing.T) {
	t.Parallel()

	cf, c := newControllerFixture(t)

	if err := c.StopServer(context.Background()); err != nil {
		t.Fatalf("StopServer() error = %v", err)
	}
	if err := c.StopServer(context.Background()); err != nil {
		t.Fatalf("second StopServer() error = %v", err)
	}
	if cf.agentsCreated() != 0 {
		t.Errorf("agents created = %d, want 0", cf.agentsCreated())
	}
	if cf.transport.Binds() != 0 || cf.transport.Unbinds() != 0 {
		t.Error("transport touched")
	}
}

func TestController_SecondStartRejected(t *testing.T) {
	t.Parallel()

	cf, c := newControllerFixture(t)
	ctx := context.Background()

	if err := c.StartServer(ctx, transport.Endpoints{}); err != nil {
		t.Fatal(err)
	}
	if err := c.StartProfiling(ctx, transport.Endpoints{}); !errors.Is(err, agent.ErrAlreadyActive) {
		t.Errorf("second start error = %v, want ErrAlreadyActive", err)
	}
	if cf.agentsCreated() != 1 {
		t.Errorf("agents created = %d, want 1", cf.agentsCreated())
	}
	if c.Active() == nil {
		t.Error("Active() = nil while running")
	}
}

func TestController_ExitHookStopsOnce(t *testing.T) {
	t.Parallel()

	cf, c := newControllerFixture(t)
	ctx := context.Background()

	for range 2 {
		if err := c.StartServer(ctx, transport.Endpoints{}); err != nil {
			t.Fatal(err)
		}
		if err := c.StopServer(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if cf.hooks.registered() != 1 {
		t.Fatalf("exit hooks registered = %d, want 1", cf.hooks.registered())
	}

	if err := c.StartServer(ctx, transport.Endpoints{}); err != nil {
		t.Fatal(err)
	}
	a := c.Active()

	// Explicit stop and process exit both fire; teardown happens once.
	if err := c.StopServer(ctx); err != nil {
		t.Fatal(err)
	}
	cf.hooks.run()

	if a.State() != agent.StateStopped {
		t.Errorf("State() = %s, want stopped", a.State())
	}
	if cf.transport.Unbinds() != 3 {
		t.Errorf("Unbinds() = %d, want 3", cf.transport.Unbinds())
	}
}

func TestController_ExitHookRearmsAfterFiring(t *testing.T) {
	t.Parallel()

	cf, c := newControllerFixture(t)
	ctx := context.Background()

	for i := range 2 {
		if err := c.StartProfiling(ctx, transport.Endpoints{}); err != nil {
			t.Fatalf("start %d: %v", i, err)
		}
		if got := cf.hooks.registered(); got != 1 {
			t.Fatalf("start %d: exit hooks registered = %d, want 1", i, got)
		}

		cf.hooks.run()

		if c.Active() != nil {
			t.Fatalf("start %d: agent still active after exit hooks", i)
		}
	}
	if cf.transport.Unbinds() != 2 {
		t.Errorf("Unbinds() = %d, want 2", cf.transport.Unbinds())
	}
}

func TestController_StartFailureLeavesNoAgent(t *testing.T) {
	t.Parallel()

	c, err := NewController(ControllerConfig{
		NewAgent: func(transport.Endpoints) (*Agent, error) { return nil, errBoom },
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.StartServer(context.Background(), transport.Endpoints{}); !errors.Is(err, errBoom) {
		t.Errorf("StartServer() error = %v", err)
	}
	if c.Active() != nil {
		t.Error("Active() != nil after failed start")
	}
}

func TestController_Run(t *testing.T) {
	t.Parallel()

	t.Run("stops after fn", func(t *testing.T) {
		t.Parallel()
		cf, c := newControllerFixture(t)

		var during bool
		err := c.Run(context.Background(), transport.Endpoints{}, false, func(context.Context) error {
			during = c.Active() != nil && c.Active().Running()
			return errBoom
		})
		if !errors.Is(err, errBoom) {
			t.Errorf("Run() error = %v, want boom", err)
		}
		if !during {
			t.Error("agent not running inside Run")
		}
		if c.Active() != nil || cf.transport.Unbinds() != 1 {
			t.Errorf("agent not released: active=%v unbinds=%d", c.Active(), cf.transport.Unbinds())
		}
	})

	t.Run("stops on panic", func(t *testing.T) {
		t.Parallel()
		cf, c := newControllerFixture(t)

		func() {
			defer func() { _ = recover() }()
			_ = c.Run(context.Background(), transport.Endpoints{}, true, func(context.Context) error {
				panic("host crashed")
			})
		}()

		if c.Active() != nil || cf.transport.Unbinds() != 1 {
			t.Errorf("agent not released after panic: unbinds=%d", cf.transport.Unbinds())
		}
	})

	t.Run("cancelled context still stops", func(t *testing.T) {
		t.Parallel()
		cf, c := newControllerFixture(t)

		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
		defer cancel()
		_ = c.Run(ctx, transport.Endpoints{}, false, func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})
		if cf.transport.Unbinds() != 1 {
			t.Errorf("Unbinds() = %d, want 1", cf.transport.Unbinds())
		}
	})
}
