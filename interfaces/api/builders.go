package api

import (
	"fmt"

	"github.com/felixgeelhaar/heapscope/application"
	"github.com/felixgeelhaar/heapscope/domain/config"
	"github.com/felixgeelhaar/heapscope/domain/transport"
	"github.com/felixgeelhaar/heapscope/infrastructure/goruntime"
	"github.com/felixgeelhaar/heapscope/infrastructure/resilience"
	"github.com/felixgeelhaar/heapscope/infrastructure/transport/memory"
	redistransport "github.com/felixgeelhaar/heapscope/infrastructure/transport/redis"
	"github.com/felixgeelhaar/heapscope/infrastructure/transport/websocket"
)

// Ports overrides the publish and request ports of the websocket
// transport. Zero keeps the configured port.
type Ports struct {
	Publish int
	Request int
}

// Endpoints resolves the endpoints an agent binds for cfg and ports.
func Endpoints(cfg config.AgentConfig, ports Ports) transport.Endpoints {
	t := cfg.Transport
	if ports.Publish > 0 {
		t.PubPort = ports.Publish
	}
	if ports.Request > 0 {
		t.RequestPort = ports.Request
	}
	return transport.Endpoints{
		Publish: t.PublishEndpoint(),
		Request: t.RequestEndpoint(),
	}
}

// NewPolicy builds the resilience policy for cfg.
func NewPolicy(cfg config.ResilienceConfig) *resilience.Policy {
	return resilience.New(
		resilience.WithBindAttempts(cfg.BindAttempts),
		resilience.WithBindDelay(cfg.BindDelay.Duration()),
		resilience.WithBreakerThreshold(cfg.BreakerThreshold),
		resilience.WithBreakerTimeout(cfg.BreakerTimeout.Duration()),
	)
}

// NewTransport builds the transport selected by cfg.Transport.Kind.
func NewTransport(cfg config.AgentConfig) (transport.Transport, error) {
	policy := NewPolicy(cfg.Resilience)

	switch cfg.Transport.Kind {
	case config.TransportWebSocket, "":
		return websocket.New(websocket.WithPolicy(policy)), nil
	case config.TransportRedis:
		rc := redistransport.DefaultConfig()
		rc.Address = cfg.Transport.Redis.Address
		rc.Password = cfg.Transport.Redis.Password
		rc.DB = cfg.Transport.Redis.DB
		return redistransport.New(rc, redistransport.WithPolicy(policy)), nil
	case config.TransportMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported transport kind %q", cfg.Transport.Kind)
	}
}

// NewAgentFactory returns a factory that builds one agent, with its own
// transport, per start. opts are applied after the configured ones.
func NewAgentFactory(cfg config.AgentConfig, opts ...application.Option) application.AgentFactory {
	return func(endpoints transport.Endpoints) (*application.Agent, error) {
		t, err := NewTransport(cfg)
		if err != nil {
			return nil, err
		}

		base := []application.Option{
			application.WithTransport(t),
			application.WithEndpoints(endpoints),
			application.WithStatsSource(goruntime.NewStatsSource()),
			application.WithAllocationTracer(goruntime.NewAllocationTracer(cfg.Profiling.MemProfileRate)),
			application.WithCollector(goruntime.NewCollector()),
			application.WithTickInterval(cfg.Schedule.TickInterval.Duration()),
			application.WithStatsInterval(cfg.Schedule.StatsInterval.Duration()),
			application.WithFlushInterval(cfg.Schedule.FlushInterval.Duration()),
			application.WithBufferSize(cfg.Outbound.BufferSize),
		}
		if cfg.Name != "" {
			base = append(base, application.WithID(cfg.Name))
		}
		return application.New(append(base, opts...)...)
	}
}
