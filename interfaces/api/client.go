package api

import (
	"context"
	"time"

	"github.com/felixgeelhaar/heapscope/domain/agent"
	"github.com/felixgeelhaar/heapscope/domain/config"
	infratransport "github.com/felixgeelhaar/heapscope/infrastructure/transport"
	redistransport "github.com/felixgeelhaar/heapscope/infrastructure/transport/redis"
	"github.com/felixgeelhaar/heapscope/infrastructure/transport/websocket"
)

// Envelope is a received event whose payload is still JSON.
type Envelope = infratransport.Envelope

// ErrStopSubscription ends a subscription without an error when returned
// from the callback.
var ErrStopSubscription = infratransport.ErrStopSubscription

// Client sends commands to and receives events from a running agent.
type Client interface {
	// SendCommand submits cmd and returns the agent's reply when the
	// transport has one.
	SendCommand(ctx context.Context, cmd agent.Command) (string, error)
	// Subscribe calls fn for each published event until ctx is done.
	Subscribe(ctx context.Context, fn func(Envelope) error) error
	// Close releases the client's connections.
	Close() error
}

// NewClient creates a client for the transport in cfg, addressing the
// endpoints for ports.
func NewClient(cfg config.AgentConfig, ports Ports, timeout time.Duration) Client {
	endpoints := Endpoints(cfg, ports)
	if cfg.Transport.Kind == config.TransportRedis {
		rc := redistransport.DefaultConfig()
		rc.Address = cfg.Transport.Redis.Address
		rc.Password = cfg.Transport.Redis.Password
		rc.DB = cfg.Transport.Redis.DB
		return &redisClient{
			client:  redistransport.NewClient(rc),
			channel: endpoints.Publish,
			key:     endpoints.Request,
		}
	}
	return &wsClient{
		client:  websocket.NewClient(timeout),
		publish: endpoints.Publish,
		request: endpoints.Request,
	}
}

type wsClient struct {
	client           *websocket.Client
	publish, request string
}

func (c *wsClient) SendCommand(ctx context.Context, cmd agent.Command) (string, error) {
	return c.client.SendCommand(ctx, c.request, cmd)
}

func (c *wsClient) Subscribe(ctx context.Context, fn func(Envelope) error) error {
	return c.client.Subscribe(ctx, c.publish, fn)
}

func (c *wsClient) Close() error { return nil }

type redisClient struct {
	client       *redistransport.Client
	channel, key string
}

func (c *redisClient) SendCommand(ctx context.Context, cmd agent.Command) (string, error) {
	if err := c.client.SendCommand(ctx, c.key, cmd); err != nil {
		return "", err
	}
	return infratransport.ReplyOK, nil
}

func (c *redisClient) Subscribe(ctx context.Context, fn func(Envelope) error) error {
	return c.client.Subscribe(ctx, c.channel, fn)
}

func (c *redisClient) Close() error { return c.client.Close() }

var (
	_ Client = (*wsClient)(nil)
	_ Client = (*redisClient)(nil)
)
