// Package memory provides an in-process transport. Commands are handed in
// with Send and published messages are kept for inspection.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/felixgeelhaar/heapscope/domain/agent"
	domaintransport "github.com/felixgeelhaar/heapscope/domain/transport"
	infratransport "github.com/felixgeelhaar/heapscope/infrastructure/transport"
)

// Transport is an in-memory implementation of transport.Transport.
type Transport struct {
	mu         sync.Mutex
	inbox      *infratransport.Inbox
	bound      bool
	endpoints  domaintransport.Endpoints
	published  []domaintransport.Message
	bindErr    error
	publishErr error
	binds      int
	unbinds    int
	polls      int
}

// Option configures the transport.
type Option func(*Transport)

// WithInboxSize sets how many commands Send can buffer.
func WithInboxSize(n int) Option {
	return func(t *Transport) {
		t.inbox = infratransport.NewInbox(n)
	}
}

// WithBindError makes every Bind fail with err.
func WithBindError(err error) Option {
	return func(t *Transport) {
		t.bindErr = err
	}
}

// New creates an unbound in-memory transport.
func New(opts ...Option) *Transport {
	t := &Transport{inbox: infratransport.NewInbox(infratransport.DefaultInboxSize)}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Bind marks the transport bound.
func (t *Transport) Bind(_ context.Context, endpoints domaintransport.Endpoints) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bound {
		return domaintransport.ErrAlreadyBound
	}
	if t.bindErr != nil {
		return fmt.Errorf("%w: %w", domaintransport.ErrBindFailed, t.bindErr)
	}
	t.bound = true
	t.endpoints = endpoints
	t.binds++
	return nil
}

// Unbind marks the transport unbound.
func (t *Transport) Unbind(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.bound {
		return nil
	}
	t.bound = false
	t.unbinds++
	return nil
}

// PollCommand returns the next command passed to Send.
func (t *Transport) PollCommand(context.Context) (agent.Command, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.bound {
		return agent.CommandNone, domaintransport.ErrNotBound
	}
	t.polls++
	return t.inbox.Poll(), nil
}

// Publish records msg.
func (t *Transport) Publish(_ context.Context, msg domaintransport.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.bound {
		return domaintransport.ErrNotBound
	}
	if t.publishErr != nil {
		return fmt.Errorf("%w: %w", domaintransport.ErrPublishFailed, t.publishErr)
	}
	t.published = append(t.published, msg)
	return nil
}

// Ready is signalled when Send queues a command.
func (t *Transport) Ready() <-chan struct{} {
	return t.inbox.Ready()
}

// Send queues a command for the agent. Commands may be sent before Bind.
func (t *Transport) Send(cmd agent.Command) error {
	return t.inbox.Offer(cmd)
}

// Pending returns the number of commands not yet polled.
func (t *Transport) Pending() int {
	return t.inbox.Len()
}

// SetPublishError makes Publish fail with err until cleared with nil.
func (t *Transport) SetPublishError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.publishErr = err
}

// Published returns the messages published so far.
func (t *Transport) Published() []domaintransport.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domaintransport.Message, len(t.published))
	copy(out, t.published)
	return out
}

// Events returns the published messages with the given event name.
func (t *Transport) Events(name string) []domaintransport.Message {
	var out []domaintransport.Message
	for _, m := range t.Published() {
		if m.Event == name {
			out = append(out, m)
		}
	}
	return out
}

// Bound reports whether the transport is bound.
func (t *Transport) Bound() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bound
}

// Endpoints returns the endpoints of the last successful Bind.
func (t *Transport) Endpoints() domaintransport.Endpoints {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.endpoints
}

// Binds returns the number of successful binds.
func (t *Transport) Binds() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.binds
}

// Unbinds returns the number of effective unbinds.
func (t *Transport) Unbinds() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.unbinds
}

// Polls returns how many times PollCommand ran while bound.
func (t *Transport) Polls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.polls
}

var (
	_ domaintransport.Transport = (*Transport)(nil)
	_ domaintransport.Notifier  = (*Transport)(nil)
)
