package transport

import (
	"sync"

	"github.com/felixgeelhaar/heapscope/domain/agent"
	domaintransport "github.com/felixgeelhaar/heapscope/domain/transport"
)

// DefaultInboxSize is the number of commands buffered between polls.
const DefaultInboxSize = 16

// Inbox buffers received commands until the agent loop polls them.
// Offer is called from connection goroutines, Poll from the loop.
type Inbox struct {
	commands chan agent.Command
	ready    chan struct{}
	closeMu  sync.RWMutex
	closed   bool
}

// NewInbox creates an inbox holding up to size commands.
func NewInbox(size int) *Inbox {
	if size <= 0 {
		size = DefaultInboxSize
	}
	return &Inbox{
		commands: make(chan agent.Command, size),
		ready:    make(chan struct{}, 1),
	}
}

// Offer queues cmd. It fails with ErrBusy when the inbox is full and
// ErrNotBound after Close.
func (i *Inbox) Offer(cmd agent.Command) error {
	i.closeMu.RLock()
	defer i.closeMu.RUnlock()
	if i.closed {
		return domaintransport.ErrNotBound
	}

	select {
	case i.commands <- cmd:
	default:
		return domaintransport.ErrBusy
	}
	select {
	case i.ready <- struct{}{}:
	default:
	}
	return nil
}

// Poll returns the oldest queued command or agent.CommandNone.
func (i *Inbox) Poll() agent.Command {
	select {
	case cmd := <-i.commands:
		return cmd
	default:
		return agent.CommandNone
	}
}

// Ready signals that at least one command was offered since the last receive.
func (i *Inbox) Ready() <-chan struct{} {
	return i.ready
}

// Len returns the number of queued commands.
func (i *Inbox) Len() int {
	return len(i.commands)
}

// Close rejects further offers. Queued commands can still be polled.
func (i *Inbox) Close() {
	i.closeMu.Lock()
	i.closed = true
	i.closeMu.Unlock()
}
