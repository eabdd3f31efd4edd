// Package redis implements the agent transport on Redis: events are
// published to a pub/sub channel and commands are popped from a list.
package redis

import "time"

// Config holds Redis connection configuration.
type Config struct {
	// Address is the Redis server address (host:port).
	Address string

	// Password for authentication (optional).
	Password string

	// DB selects the Redis database index.
	DB int

	// MaxRetries is the maximum number of retries before giving up.
	MaxRetries int

	// DialTimeout is the timeout for establishing new connections.
	DialTimeout time.Duration

	// ReadTimeout is the timeout for socket reads.
	ReadTimeout time.Duration

	// WriteTimeout is the timeout for socket writes.
	WriteTimeout time.Duration

	// PoolSize is the maximum number of socket connections.
	PoolSize int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Address:      "localhost:6379",
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     4,
	}
}

// ConfigOption configures the Redis connection.
type ConfigOption func(*Config)

// WithAddress sets the Redis server address.
func WithAddress(addr string) ConfigOption {
	return func(c *Config) {
		c.Address = addr
	}
}

// WithPassword sets the authentication password.
func WithPassword(password string) ConfigOption {
	return func(c *Config) {
		c.Password = password
	}
}

// WithDB sets the database index.
func WithDB(db int) ConfigOption {
	return func(c *Config) {
		c.DB = db
	}
}

// WithDialTimeout sets the connection timeout.
func WithDialTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.DialTimeout = d
	}
}
