package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/heapscope/domain/agent"
	"github.com/felixgeelhaar/heapscope/domain/config"
	"github.com/felixgeelhaar/heapscope/domain/diagnostics"
	"github.com/felixgeelhaar/heapscope/domain/transport"
	"github.com/felixgeelhaar/heapscope/infrastructure/event"
	"github.com/felixgeelhaar/heapscope/infrastructure/goruntime"
	"github.com/felixgeelhaar/heapscope/infrastructure/logging"
	"github.com/felixgeelhaar/heapscope/infrastructure/schedule"
	"github.com/felixgeelhaar/heapscope/infrastructure/statemachine"
	"github.com/felixgeelhaar/heapscope/infrastructure/telemetry"
)

// Built-in task names.
const (
	TaskGCStats = "gc_stats"
	TaskFlush   = "flush"
)

// SnapshotFactory builds the heap snapshot producer once the agent's
// outbound queue exists.
type SnapshotFactory func(publisher transport.Publisher) diagnostics.SnapshotProducer

// Config contains the agent's collaborators and cadences.
type Config struct {
	ID        string
	Endpoints transport.Endpoints
	Transport transport.Transport

	Stats     diagnostics.StatsSource
	Tracer    diagnostics.AllocationTracer
	Collector diagnostics.Collector
	Snapshots SnapshotFactory

	Clock         clock.Clock
	TickInterval  time.Duration
	StatsInterval time.Duration
	FlushInterval time.Duration
	BufferSize    int

	Metrics telemetry.Metrics
	Spans   trace.Tracer

	// Tasks run after gc_stats and flush, in order.
	Tasks []*schedule.Task
}

// Agent runs the scheduling and command dispatch loop on one goroutine.
type Agent struct {
	id           string
	endpoints    transport.Endpoints
	transport    transport.Transport
	stats        diagnostics.StatsSource
	tracer       diagnostics.AllocationTracer
	interpreter  *Interpreter
	queue        *event.Queue
	tasks        *schedule.Set
	waiters      []diagnostics.Waiter
	lifecycle    *statemachine.Lifecycle
	clock        clock.Clock
	tickInterval time.Duration
	metrics      telemetry.Metrics
	pagesCounter string

	// mu serializes Start and Stop.
	mu            sync.Mutex
	running       atomic.Bool
	stopRequested atomic.Bool
	stopOnce      sync.Once
	stopCh        chan struct{}
	done          chan struct{}
}

// New creates an agent from options.
func New(opts ...Option) (*Agent, error) {
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewAgent(cfg)
}

// NewAgent creates an agent in the created state. Only Transport is
// required; runtime collaborators default to the goruntime implementations.
func NewAgent(cfg Config) (*Agent, error) {
	if cfg.Transport == nil {
		return nil, fmt.Errorf("%w: transport", agent.ErrMissingCollaborator)
	}

	// Set defaults
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.Stats == nil {
		cfg.Stats = goruntime.NewStatsSource()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = goruntime.NewAllocationTracer(goruntime.DefaultSampleRate)
	}
	if cfg.Collector == nil {
		cfg.Collector = goruntime.NewCollector()
	}
	if cfg.Snapshots == nil {
		cfg.Snapshots = func(p transport.Publisher) diagnostics.SnapshotProducer {
			return goruntime.NewHeapDumper(p, nil)
		}
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = config.DefaultTickInterval
	}
	if cfg.StatsInterval <= 0 {
		cfg.StatsInterval = config.DefaultStatsInterval
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = config.DefaultFlushInterval
	}
	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.NoopMetricsProvider{}
	}

	pagesCounter, err := diagnostics.ResolvePagesCounter(cfg.Stats)
	if err != nil {
		return nil, err
	}

	lifecycle, err := statemachine.NewLifecycle(cfg.ID)
	if err != nil {
		return nil, err
	}

	a := &Agent{
		id:           cfg.ID,
		endpoints:    cfg.Endpoints,
		transport:    cfg.Transport,
		stats:        cfg.Stats,
		tracer:       cfg.Tracer,
		lifecycle:    lifecycle,
		clock:        cfg.Clock,
		tickInterval: cfg.TickInterval,
		metrics:      cfg.Metrics,
		pagesCounter: pagesCounter,
		stopCh:       make(chan struct{}),
	}

	a.queue = event.NewQueue(cfg.Transport,
		event.WithBufferSize(cfg.BufferSize),
		event.WithClock(cfg.Clock),
		event.WithDropHandler(a.onDrop),
	)

	snapshots := cfg.Snapshots(a.queue)
	if w, ok := snapshots.(diagnostics.Waiter); ok {
		a.waiters = append(a.waiters, w)
	}

	a.interpreter, err = NewInterpreter(InterpreterConfig{
		Tracer:    cfg.Tracer,
		Collector: cfg.Collector,
		Snapshots: snapshots,
		Metrics:   cfg.Metrics,
		Spans:     cfg.Spans,
	})
	if err != nil {
		return nil, err
	}

	a.tasks, err = a.buildTasks(cfg)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Agent) buildTasks(cfg Config) (*schedule.Set, error) {
	gcStats, err := schedule.NewTask(TaskGCStats, cfg.StatsInterval, a.captureStats)
	if err != nil {
		return nil, err
	}
	flush, err := schedule.NewTask(TaskFlush, cfg.FlushInterval, a.flush)
	if err != nil {
		return nil, err
	}

	set := schedule.NewSet()
	for _, t := range append([]*schedule.Task{gcStats, flush}, cfg.Tasks...) {
		if err := set.Add(t); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// ID returns the agent ID.
func (a *Agent) ID() string { return a.id }

// Endpoints returns the endpoints the agent binds.
func (a *Agent) Endpoints() transport.Endpoints { return a.endpoints }

// State returns the lifecycle state.
func (a *Agent) State() agent.State { return a.lifecycle.State() }

// Running reports whether the transport is bound and not yet torn down.
func (a *Agent) Running() bool { return a.running.Load() }

// StopRequested reports whether Stop has been called.
func (a *Agent) StopRequested() bool { return a.stopRequested.Load() }

// Pending returns the number of buffered outbound messages.
func (a *Agent) Pending() int { return a.queue.Len() }

// Start binds the transport, enables allocation tracing when
// enableProfiling is set, and launches the loop. Starting a started agent
// is a no-op; starting a stopped one fails with agent.ErrAgentStopped.
// A bind failure is returned and leaves the agent in the created state.
func (a *Agent) Start(ctx context.Context, enableProfiling bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.lifecycle.State() {
	case agent.StateStarted:
		return nil
	case agent.StateStopping, agent.StateStopped:
		return agent.ErrAgentStopped
	}

	if err := a.transport.Bind(ctx, a.endpoints); err != nil {
		logging.Error().
			Add(logging.AgentID(a.id)).
			Add(logging.Endpoint("publish", a.endpoints.Publish)).
			Add(logging.Endpoint("request", a.endpoints.Request)).
			Add(logging.ErrorField(err)).
			Msg("transport bind failed")
		return fmt.Errorf("bind transport: %w", err)
	}

	if err := a.lifecycle.Transition(agent.StateStarted, "transport bound"); err != nil {
		_ = a.transport.Unbind(ctx)
		return err
	}
	a.running.Store(true)
	a.metrics.IncrementActiveAgents(ctx)
	a.metrics.RecordStateTransition(ctx, agent.StateCreated, agent.StateStarted)

	if enableProfiling {
		a.tracer.Enable()
	}

	logging.Info().
		Add(logging.AgentID(a.id)).
		Add(logging.Endpoint("publish", a.endpoints.Publish)).
		Add(logging.Endpoint("request", a.endpoints.Request)).
		Add(logging.Enabled(enableProfiling)).
		Msg("agent started")

	a.done = make(chan struct{})
	go a.run(context.WithoutCancel(ctx))
	return nil
}

// Stop requests termination, joins the loop, flushes buffered messages
// best-effort and unbinds the transport. Stopping an agent that is not
// started is a no-op.
func (a *Agent) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.lifecycle.Is(agent.StateStarted) {
		return nil
	}
	if err := a.lifecycle.Transition(agent.StateStopping, "stop requested"); err != nil {
		return err
	}
	a.metrics.RecordStateTransition(ctx, agent.StateStarted, agent.StateStopping)

	a.requestStop()
	<-a.done

	a.tracer.Disable()
	for _, w := range a.waiters {
		w.Wait()
	}

	var errs []error
	if err := a.queue.Close(ctx); err != nil {
		logging.Warn().
			Add(logging.AgentID(a.id)).
			Add(logging.Count(a.queue.Len())).
			Add(logging.ErrorField(err)).
			Msg("final flush failed")
	}
	if err := a.transport.Unbind(ctx); err != nil {
		errs = append(errs, fmt.Errorf("unbind transport: %w", err))
	}
	a.running.Store(false)

	if err := a.lifecycle.Transition(agent.StateStopped, "transport released"); err != nil {
		errs = append(errs, err)
	}
	a.metrics.RecordStateTransition(ctx, agent.StateStopping, agent.StateStopped)
	a.metrics.DecrementActiveAgents(ctx)
	a.lifecycle.Stop()

	logging.Info().
		Add(logging.AgentID(a.id)).
		Msg("agent stopped")
	return errors.Join(errs...)
}

func (a *Agent) requestStop() {
	a.stopRequested.Store(true)
	a.stopOnce.Do(func() { close(a.stopCh) })
}

func (a *Agent) run(ctx context.Context) {
	defer close(a.done)

	var ready <-chan struct{}
	if n, ok := a.transport.(transport.Notifier); ok {
		ready = n.Ready()
	}

	for {
		a.tick(ctx)
		a.wait(ready)
		if a.stopRequested.Load() {
			return
		}
	}
}

// tick polls one command, dispatches it, then polls every task.
func (a *Agent) tick(ctx context.Context) {
	started := time.Now()

	cmd, err := a.transport.PollCommand(ctx)
	if err != nil {
		logging.Warn().
			Add(logging.AgentID(a.id)).
			Add(logging.ErrorField(err)).
			Msg("command poll failed")
	} else if err := a.interpreter.Dispatch(ctx, cmd); err != nil {
		logging.Error().
			Add(logging.AgentID(a.id)).
			Add(logging.Command(cmd)).
			Add(logging.ErrorField(err)).
			Msg("command failed")
	}

	for _, r := range a.tasks.PollAll(ctx, a.clock.Now()) {
		if !r.Ran {
			continue
		}
		a.metrics.RecordTask(ctx, r.Task, r.Elapsed, r.Err)
		if r.Err != nil {
			logging.Error().
				Add(logging.AgentID(a.id)).
				Add(logging.Task(r.Task)).
				Add(logging.ErrorField(r.Err)).
				Msg("periodic task failed")
		}
	}

	a.metrics.RecordTick(ctx, time.Since(started))
}

// wait blocks until the tick interval or the next task deadline,
// whichever is sooner, or until stop or a pending command wakes the loop.
func (a *Agent) wait(ready <-chan struct{}) {
	timer := a.clock.NewTimer(a.waitInterval(a.clock.Now()))
	defer timer.Stop()

	select {
	case <-timer.Chan():
	case <-a.stopCh:
	case <-ready:
	}
}

// waitInterval caps the tick interval at the time left until the earliest
// task deadline.
func (a *Agent) waitInterval(now time.Time) time.Duration {
	d := a.tickInterval
	if next := a.tasks.NextDue(); !next.IsZero() {
		if until := next.Sub(now); until > 0 && until < d {
			d = until
		}
	}
	return d
}

func (a *Agent) captureStats(ctx context.Context) error {
	stats, err := a.stats.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot stats: %w", err)
	}
	live, err := a.stats.LiveBytes()
	if err != nil {
		return fmt.Errorf("live bytes: %w", err)
	}

	derived := stats.WithDerived(a.pagesCounter, a.stats.HeapLayout(), live)
	a.metrics.RecordHeap(ctx, derived[diagnostics.FieldTotalHeapSize], derived[diagnostics.FieldTotalMemsize])

	return a.queue.Publish(ctx, transport.Message{
		Event:   diagnostics.EventGCStats,
		Payload: derived,
	})
}

func (a *Agent) flush(ctx context.Context) error {
	n, err := a.queue.Flush(ctx)
	if n > 0 {
		logging.Trace().
			Add(logging.AgentID(a.id)).
			Add(logging.Count(n)).
			Msg("flushed outbound messages")
	}
	return err
}

func (a *Agent) onDrop(n int) {
	a.metrics.RecordDropped(context.Background(), n)
	logging.Warn().
		Add(logging.AgentID(a.id)).
		Add(logging.Count(n)).
		Msg("outbound queue full, dropped oldest messages")
}
