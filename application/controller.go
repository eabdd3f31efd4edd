package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/felixgeelhaar/heapscope/domain/agent"
	"github.com/felixgeelhaar/heapscope/domain/diagnostics"
	"github.com/felixgeelhaar/heapscope/domain/transport"
	"github.com/felixgeelhaar/heapscope/infrastructure/logging"
)

// AgentFactory constructs an agent bound to endpoints.
type AgentFactory func(endpoints transport.Endpoints) (*Agent, error)

// ControllerConfig contains the controller's collaborators.
type ControllerConfig struct {
	// NewAgent builds each agent. Required.
	NewAgent AgentFactory
	// Defaults fill endpoints left empty by the caller.
	Defaults transport.Endpoints
	// ExitHooks receives a hook that stops the active agent. Optional.
	ExitHooks diagnostics.ExitHooks
}

// Controller owns at most one active agent and exposes the start and
// stop entry points used by the host process.
type Controller struct {
	newAgent  AgentFactory
	defaults  transport.Endpoints
	exitHooks diagnostics.ExitHooks
	// hookArmed is set while a registered exit hook has not fired yet.
	hookArmed atomic.Bool

	mu      sync.Mutex
	current *Agent
}

// NewController creates a controller.
func NewController(config ControllerConfig) (*Controller, error) {
	if config.NewAgent == nil {
		return nil, errors.New("agent factory is required")
	}
	return &Controller{
		newAgent:  config.NewAgent,
		defaults:  config.Defaults,
		exitHooks: config.ExitHooks,
	}, nil
}

// StartProfiling starts an agent with allocation tracing enabled.
func (c *Controller) StartProfiling(ctx context.Context, endpoints transport.Endpoints) error {
	return c.start(ctx, endpoints, true)
}

// StartServer starts an agent that waits for commands with tracing off.
func (c *Controller) StartServer(ctx context.Context, endpoints transport.Endpoints) error {
	return c.start(ctx, endpoints, false)
}

func (c *Controller) start(ctx context.Context, endpoints transport.Endpoints, enableProfiling bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		return fmt.Errorf("%w: %s", agent.ErrAlreadyActive, c.current.ID())
	}

	a, err := c.newAgent(endpoints.WithDefaults(c.defaults))
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}
	if err := a.Start(ctx, enableProfiling); err != nil {
		return err
	}
	c.current = a

	if c.exitHooks != nil && c.hookArmed.CompareAndSwap(false, true) {
		c.exitHooks.OnExit(c.stopOnExit)
	}
	return nil
}

// stopOnExit is the exit hook. It disarms itself first so the next start
// registers a fresh hook.
func (c *Controller) stopOnExit() {
	c.hookArmed.Store(false)
	if err := c.StopServer(context.Background()); err != nil {
		logging.Error().
			Add(logging.Component("controller")).
			Add(logging.ErrorField(err)).
			Msg("stop on exit failed")
	}
}

// StopServer stops the active agent and waits for it to finish. It is a
// no-op when no agent is active.
func (c *Controller) StopServer(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	a := c.current
	if a == nil {
		return nil
	}
	c.current = nil
	return a.Stop(ctx)
}

// Active returns the active agent, or nil.
func (c *Controller) Active() *Agent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Close stops the active agent.
func (c *Controller) Close() error {
	return c.StopServer(context.Background())
}

// Run starts an agent, calls fn and stops the agent when fn returns or
// panics.
func (c *Controller) Run(ctx context.Context, endpoints transport.Endpoints, enableProfiling bool, fn func(context.Context) error) (err error) {
	if err := c.start(ctx, endpoints, enableProfiling); err != nil {
		return err
	}
	defer func() {
		if stopErr := c.StopServer(context.WithoutCancel(ctx)); stopErr != nil {
			err = errors.Join(err, stopErr)
		}
	}()
	return fn(ctx)
}
