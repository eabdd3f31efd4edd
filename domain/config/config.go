// Package config provides domain models for agent configuration.
package config

import (
	"fmt"
	"time"
)

// Transport kinds.
const (
	TransportWebSocket = "websocket"
	TransportRedis     = "redis"
	TransportMemory    = "memory"
)

// Default values mirror the long-standing client defaults.
const (
	DefaultPubPort       = 5555
	DefaultRequestPort   = 5556
	DefaultHost          = "127.0.0.1"
	DefaultTickInterval  = 50 * time.Millisecond
	DefaultStatsInterval = 5 * time.Second
	DefaultFlushInterval = 1 * time.Second
	DefaultBufferSize    = 1024
	DefaultRedisChannel  = "heapscope:events"
	DefaultRedisCommands = "heapscope:commands"
)

// AgentConfig represents the complete agent configuration.
type AgentConfig struct {
	// Name is a human-readable name for this agent.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Transport selects and configures the publish/request transport.
	Transport TransportConfig `json:"transport,omitempty" yaml:"transport,omitempty"`
	// Schedule configures the loop and periodic task cadences.
	Schedule ScheduleConfig `json:"schedule,omitempty" yaml:"schedule,omitempty"`
	// Profiling configures allocation tracing.
	Profiling ProfilingConfig `json:"profiling,omitempty" yaml:"profiling,omitempty"`
	// Outbound configures the outbound message queue.
	Outbound OutboundConfig `json:"outbound,omitempty" yaml:"outbound,omitempty"`
	// Logging configures the structured logger.
	Logging LoggingConfig `json:"logging,omitempty" yaml:"logging,omitempty"`
	// Observability configures trace export.
	Observability ObservabilityConfig `json:"observability,omitempty" yaml:"observability,omitempty"`
	// Resilience configures bind retries and publish circuit breaking.
	Resilience ResilienceConfig `json:"resilience,omitempty" yaml:"resilience,omitempty"`
}

// TransportConfig configures the transport.
type TransportConfig struct {
	// Kind is websocket, redis or memory.
	Kind string `json:"kind,omitempty" yaml:"kind,omitempty"`
	// Host is the interface websocket listeners bind to.
	Host string `json:"host,omitempty" yaml:"host,omitempty"`
	// PubPort is the websocket publish port.
	PubPort int `json:"pub_port,omitempty" yaml:"pub_port,omitempty"`
	// RequestPort is the websocket request port.
	RequestPort int `json:"request_port,omitempty" yaml:"request_port,omitempty"`
	// Redis configures the redis transport.
	Redis RedisConfig `json:"redis,omitempty" yaml:"redis,omitempty"`
}

// RedisConfig configures the redis transport.
type RedisConfig struct {
	// Address is the redis server address (host:port).
	Address string `json:"address,omitempty" yaml:"address,omitempty"`
	// Password for authentication (optional).
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	// DB selects the database index.
	DB int `json:"db,omitempty" yaml:"db,omitempty"`
	// Channel is the pub/sub channel events are published to.
	Channel string `json:"channel,omitempty" yaml:"channel,omitempty"`
	// CommandKey is the list clients push command tokens onto.
	CommandKey string `json:"command_key,omitempty" yaml:"command_key,omitempty"`
}

// ScheduleConfig configures loop cadences.
type ScheduleConfig struct {
	// TickInterval bounds command latency and loop CPU usage.
	TickInterval Duration `json:"tick_interval,omitempty" yaml:"tick_interval,omitempty"`
	// StatsInterval is how often gc_stats is captured.
	StatsInterval Duration `json:"stats_interval,omitempty" yaml:"stats_interval,omitempty"`
	// FlushInterval is how often buffered messages are sent.
	FlushInterval Duration `json:"flush_interval,omitempty" yaml:"flush_interval,omitempty"`
}

// ProfilingConfig configures allocation tracing.
type ProfilingConfig struct {
	// EnableOnStart arms tracing when the agent starts.
	EnableOnStart bool `json:"enable_on_start,omitempty" yaml:"enable_on_start,omitempty"`
	// MemProfileRate is the sampling rate in bytes while tracing (0 = default).
	MemProfileRate int `json:"mem_profile_rate,omitempty" yaml:"mem_profile_rate,omitempty"`
}

// OutboundConfig configures the outbound message queue.
type OutboundConfig struct {
	// BufferSize is the maximum number of queued messages.
	BufferSize int `json:"buffer_size,omitempty" yaml:"buffer_size,omitempty"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	// Level is trace, debug, info, warn or error.
	Level string `json:"level,omitempty" yaml:"level,omitempty"`
	// Format is json or console.
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// ObservabilityConfig configures OpenTelemetry export.
type ObservabilityConfig struct {
	// Tracing configures span export.
	Tracing TracingConfig `json:"tracing,omitempty" yaml:"tracing,omitempty"`
}

// TracingConfig configures span export.
type TracingConfig struct {
	// Exporter is otlp, stdout or noop.
	Exporter string `json:"exporter,omitempty" yaml:"exporter,omitempty"`
	// Endpoint is the OTLP endpoint.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	// Insecure disables TLS for the OTLP connection.
	Insecure bool `json:"insecure,omitempty" yaml:"insecure,omitempty"`
	// SampleRate is the sampling ratio (0.0-1.0).
	SampleRate float64 `json:"sample_rate,omitempty" yaml:"sample_rate,omitempty"`
}

// ResilienceConfig configures retries and circuit breaking.
type ResilienceConfig struct {
	// BindAttempts is how many times a bind is tried.
	BindAttempts int `json:"bind_attempts,omitempty" yaml:"bind_attempts,omitempty"`
	// BindDelay is the initial delay between bind attempts.
	BindDelay Duration `json:"bind_delay,omitempty" yaml:"bind_delay,omitempty"`
	// BreakerThreshold is the consecutive publish failures before the breaker opens.
	BreakerThreshold int `json:"breaker_threshold,omitempty" yaml:"breaker_threshold,omitempty"`
	// BreakerTimeout is how long the breaker stays open.
	BreakerTimeout Duration `json:"breaker_timeout,omitempty" yaml:"breaker_timeout,omitempty"`
}

// Default returns a configuration with every field set to its default.
func Default() AgentConfig {
	return AgentConfig{
		Name: "heapscope",
		Transport: TransportConfig{
			Kind:        TransportWebSocket,
			Host:        DefaultHost,
			PubPort:     DefaultPubPort,
			RequestPort: DefaultRequestPort,
			Redis: RedisConfig{
				Address:    "localhost:6379",
				Channel:    DefaultRedisChannel,
				CommandKey: DefaultRedisCommands,
			},
		},
		Schedule: ScheduleConfig{
			TickInterval:  Duration(DefaultTickInterval),
			StatsInterval: Duration(DefaultStatsInterval),
			FlushInterval: Duration(DefaultFlushInterval),
		},
		Outbound: OutboundConfig{BufferSize: DefaultBufferSize},
		Logging:  LoggingConfig{Level: "info", Format: "console"},
		Observability: ObservabilityConfig{
			Tracing: TracingConfig{Exporter: "noop", SampleRate: 1.0},
		},
		Resilience: ResilienceConfig{
			BindAttempts:     3,
			BindDelay:        Duration(100 * time.Millisecond),
			BreakerThreshold: 5,
			BreakerTimeout:   Duration(30 * time.Second),
		},
	}
}

// ApplyDefaults fills zero-valued fields from Default.
func (c *AgentConfig) ApplyDefaults() {
	d := Default()
	if c.Name == "" {
		c.Name = d.Name
	}
	t := &c.Transport
	if t.Kind == "" {
		t.Kind = d.Transport.Kind
	}
	if t.Host == "" {
		t.Host = d.Transport.Host
	}
	if t.PubPort == 0 {
		t.PubPort = d.Transport.PubPort
	}
	if t.RequestPort == 0 {
		t.RequestPort = d.Transport.RequestPort
	}
	if t.Redis.Address == "" {
		t.Redis.Address = d.Transport.Redis.Address
	}
	if t.Redis.Channel == "" {
		t.Redis.Channel = d.Transport.Redis.Channel
	}
	if t.Redis.CommandKey == "" {
		t.Redis.CommandKey = d.Transport.Redis.CommandKey
	}
	s := &c.Schedule
	if s.TickInterval == 0 {
		s.TickInterval = d.Schedule.TickInterval
	}
	if s.StatsInterval == 0 {
		s.StatsInterval = d.Schedule.StatsInterval
	}
	if s.FlushInterval == 0 {
		s.FlushInterval = d.Schedule.FlushInterval
	}
	if c.Outbound.BufferSize == 0 {
		c.Outbound.BufferSize = d.Outbound.BufferSize
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}
	if c.Observability.Tracing.Exporter == "" {
		c.Observability.Tracing.Exporter = d.Observability.Tracing.Exporter
	}
	if c.Observability.Tracing.SampleRate == 0 {
		c.Observability.Tracing.SampleRate = d.Observability.Tracing.SampleRate
	}
	r := &c.Resilience
	if r.BindAttempts == 0 {
		r.BindAttempts = d.Resilience.BindAttempts
	}
	if r.BindDelay == 0 {
		r.BindDelay = d.Resilience.BindDelay
	}
	if r.BreakerThreshold == 0 {
		r.BreakerThreshold = d.Resilience.BreakerThreshold
	}
	if r.BreakerTimeout == 0 {
		r.BreakerTimeout = d.Resilience.BreakerTimeout
	}
}

// PublishEndpoint returns the endpoint events are published on.
func (t TransportConfig) PublishEndpoint() string {
	if t.Kind == TransportRedis {
		return t.Redis.Channel
	}
	return fmt.Sprintf("%s:%d", t.Host, t.PubPort)
}

// RequestEndpoint returns the endpoint commands are received on.
func (t TransportConfig) RequestEndpoint() string {
	if t.Kind == TransportRedis {
		return t.Redis.CommandKey
	}
	return fmt.Sprintf("%s:%d", t.Host, t.RequestPort)
}

// Duration is a time.Duration that supports JSON/YAML string representation.
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}

	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
