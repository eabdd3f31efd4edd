// Package transport defines the publish/request channel pair that connects
// the agent to remote clients.
package transport

import (
	"context"
	"time"

	"github.com/felixgeelhaar/heapscope/domain/agent"
)

// Endpoints names the two channels a transport binds.
// Their interpretation (TCP address, pub/sub channel, list key) is up to
// the transport implementation.
type Endpoints struct {
	// Publish is where events are broadcast to subscribers.
	Publish string `json:"publish"`
	// Request is where clients submit command tokens.
	Request string `json:"request"`
}

// IsZero reports whether neither endpoint is set.
func (e Endpoints) IsZero() bool {
	return e.Publish == "" && e.Request == ""
}

// WithDefaults fills empty endpoints from defaults.
func (e Endpoints) WithDefaults(defaults Endpoints) Endpoints {
	if e.Publish == "" {
		e.Publish = defaults.Publish
	}
	if e.Request == "" {
		e.Request = defaults.Request
	}
	return e
}

// Message is one outbound event.
type Message struct {
	// ID uniquely identifies the message.
	ID string `json:"id"`
	// Event is the event name, e.g. "gc_stats".
	Event string `json:"event"`
	// Timestamp is when the message was produced.
	Timestamp time.Time `json:"timestamp"`
	// Payload is the JSON-serializable event body.
	Payload any `json:"payload,omitempty"`
}

// Transport binds a publish channel and a request channel.
type Transport interface {
	// Bind opens both endpoints. A failed bind leaves the transport unbound.
	Bind(ctx context.Context, endpoints Endpoints) error

	// Unbind releases both endpoints.
	Unbind(ctx context.Context) error

	// PollCommand returns the next pending command without blocking.
	// It returns agent.CommandNone when nothing is pending.
	PollCommand(ctx context.Context) (agent.Command, error)

	// Publish sends one message to all subscribers.
	Publish(ctx context.Context, msg Message) error
}

// Notifier is implemented by transports that can signal a pending command,
// letting the agent loop wake before its tick interval elapses.
type Notifier interface {
	Ready() <-chan struct{}
}

// Publisher accepts outbound messages for delivery.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}
