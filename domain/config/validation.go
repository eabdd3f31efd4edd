package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	// Path is the dotted path to the invalid field.
	Path string
	// Message describes the validation error.
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%d validation errors:\n  - %s", len(e), strings.Join(msgs, "\n  - "))
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates agent configuration.
// Zero values are accepted everywhere a default exists.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate validates the configuration and returns any errors.
func (v *Validator) Validate(config *AgentConfig) ValidationErrors {
	v.errors = nil

	v.validateTransport(config)
	v.validateSchedule(config)
	v.validateProfiling(config)
	v.validateLogging(config)
	v.validateObservability(config)
	v.validateResilience(config)

	return v.errors
}

func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}

func (v *Validator) validateTransport(config *AgentConfig) {
	t := config.Transport
	switch t.Kind {
	case "", TransportWebSocket, TransportRedis, TransportMemory:
	default:
		v.addError("transport.kind", fmt.Sprintf("unknown transport: %s", t.Kind))
	}

	for path, port := range map[string]int{"transport.pub_port": t.PubPort, "transport.request_port": t.RequestPort} {
		if port < 0 || port > 65535 {
			v.addError(path, fmt.Sprintf("port out of range: %d", port))
		}
	}
	if t.PubPort != 0 && t.PubPort == t.RequestPort {
		v.addError("transport.request_port", "request port must differ from pub port")
	}

	if t.Kind == TransportRedis && t.Redis.Channel != "" && t.Redis.Channel == t.Redis.CommandKey {
		v.addError("transport.redis.command_key", "command key must differ from channel")
	}
	if t.Redis.DB < 0 {
		v.addError("transport.redis.db", "db must be non-negative")
	}
}

func (v *Validator) validateSchedule(config *AgentConfig) {
	s := config.Schedule
	if s.TickInterval < 0 {
		v.addError("schedule.tick_interval", "tick_interval must be positive")
	}
	if s.StatsInterval < 0 {
		v.addError("schedule.stats_interval", "stats_interval must be positive")
	}
	if s.FlushInterval < 0 {
		v.addError("schedule.flush_interval", "flush_interval must be positive")
	}
}

func (v *Validator) validateProfiling(config *AgentConfig) {
	if config.Profiling.MemProfileRate < 0 {
		v.addError("profiling.mem_profile_rate", "mem_profile_rate must be non-negative")
	}
	if config.Outbound.BufferSize < 0 {
		v.addError("outbound.buffer_size", "buffer_size must be non-negative")
	}
}

func (v *Validator) validateLogging(config *AgentConfig) {
	if config.Logging.Level != "" {
		validLevels := map[string]bool{
			"trace": true, "debug": true, "info": true, "warn": true, "error": true,
		}
		if !validLevels[strings.ToLower(config.Logging.Level)] {
			v.addError("logging.level", fmt.Sprintf("invalid level: %s", config.Logging.Level))
		}
	}
	if config.Logging.Format != "" && config.Logging.Format != "json" && config.Logging.Format != "console" {
		v.addError("logging.format", fmt.Sprintf("invalid format: %s", config.Logging.Format))
	}
}

func (v *Validator) validateObservability(config *AgentConfig) {
	tr := config.Observability.Tracing
	switch tr.Exporter {
	case "", "noop", "stdout":
	case "otlp":
		if tr.Endpoint == "" {
			v.addError("observability.tracing.endpoint", "endpoint is required for otlp exporter")
		}
	default:
		v.addError("observability.tracing.exporter", fmt.Sprintf("unknown exporter: %s", tr.Exporter))
	}
	if tr.SampleRate < 0 || tr.SampleRate > 1 {
		v.addError("observability.tracing.sample_rate", "sample_rate must be between 0 and 1")
	}
}

func (v *Validator) validateResilience(config *AgentConfig) {
	r := config.Resilience
	if r.BindAttempts < 0 {
		v.addError("resilience.bind_attempts", "bind_attempts must be non-negative")
	}
	if r.BindDelay < 0 {
		v.addError("resilience.bind_delay", "bind_delay must be non-negative")
	}
	if r.BreakerThreshold < 0 {
		v.addError("resilience.breaker_threshold", "breaker_threshold must be non-negative")
	}
	if r.BreakerTimeout < 0 {
		v.addError("resilience.breaker_timeout", "breaker_timeout must be non-negative")
	}
}
