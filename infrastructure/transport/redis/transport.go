package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/heapscope/domain/agent"
	domaintransport "github.com/felixgeelhaar/heapscope/domain/transport"
	"github.com/felixgeelhaar/heapscope/infrastructure/logging"
	"github.com/felixgeelhaar/heapscope/infrastructure/resilience"
	infratransport "github.com/felixgeelhaar/heapscope/infrastructure/transport"
)

// commander is the subset of *redis.Client the transport uses.
type commander interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	RPop(ctx context.Context, key string) *redis.StringCmd
	Close() error
}

func dialClient(cfg Config) commander {
	return redis.NewClient(options(cfg))
}

func options(cfg Config) *redis.Options {
	return &redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	}
}

// Transport is a Redis implementation of transport.Transport. The publish
// endpoint names a pub/sub channel and the request endpoint names a list
// that clients LPUSH command tokens onto.
type Transport struct {
	cfg    Config
	policy *resilience.Policy
	dial   func(Config) commander

	mu      sync.Mutex
	client  commander
	channel string
	key     string
}

// Option configures the transport.
type Option func(*Transport)

// WithPolicy sets the resilience policy for binds and publishes.
func WithPolicy(p *resilience.Policy) Option {
	return func(t *Transport) {
		t.policy = p
	}
}

// New creates an unbound Redis transport.
func New(cfg Config, opts ...Option) *Transport {
	t := &Transport{cfg: cfg, dial: dialClient}
	for _, opt := range opts {
		opt(t)
	}
	if t.policy == nil {
		t.policy = resilience.New()
	}
	return t
}

// Bind connects to Redis, retrying the initial ping according to the policy.
func (t *Transport) Bind(ctx context.Context, endpoints domaintransport.Endpoints) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client != nil {
		return domaintransport.ErrAlreadyBound
	}
	if endpoints.Publish == "" || endpoints.Request == "" {
		return fmt.Errorf("%w: channel and command key are required", domaintransport.ErrBindFailed)
	}

	client := t.dial(t.cfg)
	err := t.policy.Retry(ctx, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		_ = client.Close()
		return fmt.Errorf("%w: ping %s: %w", domaintransport.ErrBindFailed, t.cfg.Address, err)
	}

	t.client = client
	t.channel = endpoints.Publish
	t.key = endpoints.Request

	logging.Info().
		Add(logging.Transport("redis")).
		Add(logging.Str("address", t.cfg.Address)).
		Add(logging.Endpoint("publish", t.channel)).
		Add(logging.Endpoint("request", t.key)).
		Msg("transport bound")
	return nil
}

// Unbind closes the Redis connection.
func (t *Transport) Unbind(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil

	logging.Info().
		Add(logging.Transport("redis")).
		Msg("transport unbound")
	return err
}

func (t *Transport) bound() (commander, string, string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil, "", "", domaintransport.ErrNotBound
	}
	return t.client, t.channel, t.key, nil
}

// PollCommand pops the oldest command from the request list.
func (t *Transport) PollCommand(ctx context.Context) (agent.Command, error) {
	client, _, key, err := t.bound()
	if err != nil {
		return agent.CommandNone, err
	}

	raw, err := client.RPop(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return agent.CommandNone, nil
	}
	if err != nil {
		return agent.CommandNone, fmt.Errorf("pop command from %s: %w", key, err)
	}
	return infratransport.DecodeCommand([]byte(raw)), nil
}

// Publish sends msg to the channel through the circuit breaker.
func (t *Transport) Publish(ctx context.Context, msg domaintransport.Message) error {
	client, channel, _, err := t.bound()
	if err != nil {
		return err
	}

	data, err := infratransport.EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("%w: %w", domaintransport.ErrPublishFailed, err)
	}
	err = t.policy.Guard(ctx, func(ctx context.Context) error {
		return client.Publish(ctx, channel, data).Err()
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domaintransport.ErrPublishFailed, channel, err)
	}
	return nil
}

var _ domaintransport.Transport = (*Transport)(nil)
