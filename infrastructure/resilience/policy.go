// Package resilience wraps transport operations with fortify retry and
// circuit breaking.
package resilience

import (
	"context"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"
)

// Config configures a Policy.
type Config struct {
	// BindAttempts is the maximum number of bind attempts.
	BindAttempts int

	// BindDelay is the initial delay between bind attempts.
	BindDelay time.Duration

	// BindBackoffMultiplier is the exponential backoff multiplier.
	BindBackoffMultiplier float64

	// BreakerThreshold is the number of consecutive publish failures
	// before the breaker opens.
	BreakerThreshold int

	// BreakerTimeout is how long the breaker stays open.
	BreakerTimeout time.Duration
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BindAttempts:          3,
		BindDelay:             100 * time.Millisecond,
		BindBackoffMultiplier: 2.0,
		BreakerThreshold:      5,
		BreakerTimeout:        30 * time.Second,
	}
}

// Option configures the policy.
type Option func(*Config)

// WithBindAttempts sets the maximum bind attempts.
func WithBindAttempts(n int) Option {
	return func(c *Config) {
		c.BindAttempts = n
	}
}

// WithBindDelay sets the initial delay between bind attempts.
func WithBindDelay(d time.Duration) Option {
	return func(c *Config) {
		c.BindDelay = d
	}
}

// WithBreakerThreshold sets the consecutive failures that open the breaker.
func WithBreakerThreshold(n int) Option {
	return func(c *Config) {
		c.BreakerThreshold = n
	}
}

// WithBreakerTimeout sets how long the breaker stays open.
func WithBreakerTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.BreakerTimeout = d
	}
}

// Policy applies retry to binds and a circuit breaker to publishes.
type Policy struct {
	retry   retry.Retry[struct{}]
	breaker circuitbreaker.CircuitBreaker[struct{}]
}

// New creates a policy from defaults modified by opts.
func New(opts ...Option) *Policy {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewPolicy(cfg)
}

// NewPolicy creates a policy from cfg. Non-positive values fall back to
// the defaults.
func NewPolicy(cfg Config) *Policy {
	def := DefaultConfig()
	if cfg.BindAttempts <= 0 {
		cfg.BindAttempts = def.BindAttempts
	}
	if cfg.BindDelay <= 0 {
		cfg.BindDelay = def.BindDelay
	}
	if cfg.BindBackoffMultiplier <= 0 {
		cfg.BindBackoffMultiplier = def.BindBackoffMultiplier
	}
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = def.BreakerThreshold
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = def.BreakerTimeout
	}
	threshold := uint32(cfg.BreakerThreshold) // #nosec G115 -- positive, checked above

	return &Policy{
		retry: retry.New[struct{}](retry.Config{
			MaxAttempts:   cfg.BindAttempts,
			InitialDelay:  cfg.BindDelay,
			BackoffPolicy: retry.BackoffExponential,
			Multiplier:    cfg.BindBackoffMultiplier,
		}),
		breaker: circuitbreaker.New[struct{}](circuitbreaker.Config{
			MaxRequests: 1,
			Interval:    cfg.BreakerTimeout,
			Timeout:     cfg.BreakerTimeout,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
		}),
	}
}

// Retry runs fn until it succeeds, the attempts are exhausted or ctx is done.
func (p *Policy) Retry(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := p.retry.Do(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Guard runs fn through the circuit breaker. While the breaker is open fn
// is not called and an error is returned immediately.
func (p *Policy) Guard(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := p.breaker.Execute(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// BreakerState returns the current state of the circuit breaker.
func (p *Policy) BreakerState() circuitbreaker.State {
	return p.breaker.State()
}
