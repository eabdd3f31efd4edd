package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/heapscope/domain/agent"
	infratransport "github.com/felixgeelhaar/heapscope/infrastructure/transport"
)

// Client talks to an agent bound to the Redis transport.
type Client struct {
	rdb *redis.Client
}

// NewClient creates a client for the Redis server in cfg.
func NewClient(cfg Config) *Client {
	return &Client{rdb: redis.NewClient(options(cfg))}
}

// SendCommand pushes cmd onto the agent's command list.
func (c *Client) SendCommand(ctx context.Context, key string, cmd agent.Command) error {
	if err := c.rdb.LPush(ctx, key, string(cmd)).Err(); err != nil {
		return fmt.Errorf("push command to %s: %w", key, err)
	}
	return nil
}

// Subscribe calls fn for every message on channel until ctx is done or fn
// fails. Returning infratransport.ErrStopSubscription ends it cleanly.
func (c *Client) Subscribe(ctx context.Context, channel string, fn func(infratransport.Envelope) error) error {
	ps := c.rdb.Subscribe(ctx, channel)
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			env, err := infratransport.DecodeMessage([]byte(m.Payload))
			if err != nil {
				return err
			}
			if err := fn(env); err != nil {
				if errors.Is(err, infratransport.ErrStopSubscription) {
					return nil
				}
				return err
			}
		}
	}
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}
