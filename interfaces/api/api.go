// Package api provides the public API for embedding heapscope in a Go
// program.
//
// heapscope runs a diagnostic agent inside the host process. The agent
// samples runtime memory statistics, accepts commands from remote clients
// and streams results to subscribers.
//
// # Quick Start
//
//	func main() {
//	    if err := api.StartProfiling(context.Background(), api.Ports{}); err != nil {
//	        log.Fatal(err)
//	    }
//	    defer api.Shutdown(context.Background())
//	    // ... run the application ...
//	}
//
// Clients then connect to the publish port (default 5555) to receive
// gc_stats and object_space_dump events, and send command tokens such as
// trigger_gc to the request port (default 5556).
//
// # Commands
//
//   - start_memory_profile: enable allocation tracing
//   - stop_memory_profile: disable allocation tracing
//   - trigger_gc: run a garbage collection
//   - objectspace_snapshot: publish a heap profile
package api

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/felixgeelhaar/heapscope"
	"github.com/felixgeelhaar/heapscope/application"
	"github.com/felixgeelhaar/heapscope/domain/agent"
	"github.com/felixgeelhaar/heapscope/domain/config"
	"github.com/felixgeelhaar/heapscope/domain/transport"
	"github.com/felixgeelhaar/heapscope/infrastructure/exithook"
	"github.com/felixgeelhaar/heapscope/infrastructure/logging"
	"github.com/felixgeelhaar/heapscope/infrastructure/observability"
	"github.com/felixgeelhaar/heapscope/infrastructure/telemetry"
)

// Re-export domain types.
type (
	// Command is a command token.
	Command = agent.Command
	// State is an agent lifecycle state.
	State = agent.State
	// Config is the agent configuration.
	Config = config.AgentConfig
	// Message is one published event.
	Message = transport.Message
)

// Re-export command tokens.
const (
	CommandStartMemoryProfile  = agent.CommandStartMemoryProfile
	CommandStopMemoryProfile   = agent.CommandStopMemoryProfile
	CommandTriggerGC           = agent.CommandTriggerGC
	CommandObjectSpaceSnapshot = agent.CommandObjectSpaceSnapshot
)

// process-wide default controller state
var (
	mu         sync.Mutex
	hooks      = exithook.New()
	cfg        = config.Default()
	controller *application.Controller
	tracing    *observability.Provider
)

// Configure replaces the configuration used by later starts. It fails
// with agent.ErrAlreadyActive while an agent is running.
func Configure(ctx context.Context, c Config) error {
	c.ApplyDefaults()
	if errs := config.NewValidator().Validate(&c); errs.HasErrors() {
		return fmt.Errorf("%w: %w", config.ErrValidationFailed, errs)
	}

	mu.Lock()
	defer mu.Unlock()

	if controller != nil && controller.Active() != nil {
		return agent.ErrAlreadyActive
	}

	provider, err := observability.New(ctx, append(
		observability.FromTracingConfig(c.Observability.Tracing),
		observability.WithServiceName(c.Name),
		observability.WithServiceVersion(heapscope.Version),
	)...)
	if err != nil {
		return err
	}
	if tracing != nil {
		if err := tracing.Shutdown(ctx); err != nil {
			logging.Warn().
				Add(logging.Component("api")).
				Add(logging.ErrorField(err)).
				Msg("previous trace provider shutdown failed")
		}
	}

	cfg = c
	tracing = provider
	controller = nil
	return nil
}

// defaultController returns the process-wide controller, creating it on
// first use (must hold mu).
func defaultController() (*application.Controller, error) {
	if controller != nil {
		return controller, nil
	}
	if tracing == nil {
		tracing = observability.NewNoopProvider()
	}

	metrics := telemetry.NewMetricsProvider(telemetry.DefaultMetricsConfig())
	if err := metrics.Error(); err != nil {
		return nil, err
	}

	c, err := application.NewController(application.ControllerConfig{
		NewAgent: NewAgentFactory(cfg,
			application.WithMetrics(metrics),
			application.WithSpans(tracing.Tracer()),
		),
		Defaults:  Endpoints(cfg, Ports{}),
		ExitHooks: hooks,
	})
	if err != nil {
		return nil, err
	}
	controller = c
	return c, nil
}

func withController(fn func(c *application.Controller, current config.AgentConfig) error) error {
	mu.Lock()
	c, err := defaultController()
	current := cfg
	mu.Unlock()
	if err != nil {
		return err
	}
	return fn(c, current)
}

// StartProfiling starts the agent with allocation tracing enabled.
func StartProfiling(ctx context.Context, ports Ports) error {
	return withController(func(c *application.Controller, current config.AgentConfig) error {
		return c.StartProfiling(ctx, Endpoints(current, ports))
	})
}

// StartServer starts the agent and waits for commands; tracing stays off
// until a client sends start_memory_profile.
func StartServer(ctx context.Context, ports Ports) error {
	return withController(func(c *application.Controller, current config.AgentConfig) error {
		return c.StartServer(ctx, Endpoints(current, ports))
	})
}

// StopServer stops the running agent, if any.
func StopServer(ctx context.Context) error {
	mu.Lock()
	c := controller
	mu.Unlock()
	if c == nil {
		return nil
	}
	return c.StopServer(ctx)
}

// Running reports whether an agent is active.
func Running() bool {
	mu.Lock()
	c := controller
	mu.Unlock()
	return c != nil && c.Active() != nil
}

// Run starts an agent, calls fn and stops the agent on every exit path.
func Run(ctx context.Context, ports Ports, enableProfiling bool, fn func(context.Context) error) error {
	return withController(func(c *application.Controller, current config.AgentConfig) error {
		return c.Run(ctx, Endpoints(current, ports), enableProfiling, fn)
	})
}

// Hooks returns the process-wide exit hook registry. Hosts can call
// Hooks().Watch to stop the agent on SIGINT and SIGTERM.
func Hooks() *exithook.Registry {
	return hooks
}

// Shutdown runs the exit hooks, which stop the agent, and flushes traces.
// A later start registers a new exit hook, so Hooks().Watch keeps
// covering agents started after a Shutdown.
func Shutdown(ctx context.Context) error {
	hooks.Run()

	var errs []error
	if err := StopServer(ctx); err != nil {
		errs = append(errs, err)
	}

	mu.Lock()
	provider := tracing
	mu.Unlock()
	if provider != nil {
		if err := provider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
