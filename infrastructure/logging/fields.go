package logging

import (
	"time"

	"github.com/felixgeelhaar/bolt/v3"

	"github.com/felixgeelhaar/heapscope/domain/agent"
)

// Field is a function that applies structured data to a log event.
type Field func(*bolt.Event) *bolt.Event

// AgentID adds the agent instance ID.
func AgentID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("agent_id", id)
	}
}

// State adds a lifecycle state field.
func State(s agent.State) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("state", string(s))
	}
}

// FromState adds a from_state field for transitions.
func FromState(s agent.State) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("from_state", string(s))
	}
}

// ToState adds a to_state field for transitions.
func ToState(s agent.State) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("to_state", string(s))
	}
}

// Command adds a command token field.
func Command(c agent.Command) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("command", string(c))
	}
}

// Task adds a periodic task name field.
func Task(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("task", name)
	}
}

// Event adds an outbound event name field.
func Event(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("event", name)
	}
}

// Endpoint adds an endpoint field under the given role (publish or request).
func Endpoint(role, address string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str(role+"_endpoint", address)
	}
}

// Transport adds a transport kind field.
func Transport(kind string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("transport", kind)
	}
}

// Duration adds a duration field in milliseconds.
func Duration(d time.Duration) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int64("duration_ms", d.Milliseconds())
	}
}

// Bytes adds a byte count field.
func Bytes(n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("bytes", n)
	}
}

// Count adds a generic count field.
func Count(n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("count", n)
	}
}

// ErrorField adds an error field.
func ErrorField(err error) Field {
	return func(e *bolt.Event) *bolt.Event {
		if err == nil {
			return e
		}
		return e.Err(err)
	}
}

// Enabled adds a boolean enabled field.
func Enabled(enabled bool) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Bool("enabled", enabled)
	}
}

// Component adds a component field for categorization.
func Component(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("component", name)
	}
}

// Operation adds an operation field.
func Operation(op string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("operation", op)
	}
}

// Str adds a string field with custom key.
func Str(key, value string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str(key, value)
	}
}

// Int adds an integer field with custom key.
func Int(key string, value int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int(key, value)
	}
}
