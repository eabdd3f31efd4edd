// Package event buffers outbound messages between producers and the transport.
package event

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/juju/clock"

	"github.com/felixgeelhaar/heapscope/domain/transport"
)

// DefaultBufferSize is used when no buffer size is configured.
const DefaultBufferSize = 1024

// ErrQueueClosed is returned by Publish after Close.
var ErrQueueClosed = errors.New("outbound queue closed")

// Queue buffers messages until Flush sends them to the sink in order.
// When the buffer is full the oldest message is dropped.
type Queue struct {
	sink    transport.Publisher
	clock   clock.Clock
	bufSize int
	onDrop  func(n int)

	mu      sync.Mutex
	buffer  []transport.Message
	dropped int64
	closed  bool

	flushMu sync.Mutex
}

// QueueOption configures the queue.
type QueueOption func(*Queue)

// WithBufferSize sets the maximum number of buffered messages.
func WithBufferSize(size int) QueueOption {
	return func(q *Queue) {
		q.bufSize = size
	}
}

// WithClock sets the clock used to stamp messages.
func WithClock(c clock.Clock) QueueOption {
	return func(q *Queue) {
		q.clock = c
	}
}

// WithDropHandler registers a callback invoked with the number of
// messages dropped by a Publish.
func WithDropHandler(fn func(n int)) QueueOption {
	return func(q *Queue) {
		q.onDrop = fn
	}
}

// NewQueue creates a queue that flushes to sink.
func NewQueue(sink transport.Publisher, opts ...QueueOption) *Queue {
	q := &Queue{
		sink:    sink,
		clock:   clock.WallClock,
		bufSize: DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.bufSize <= 0 {
		q.bufSize = DefaultBufferSize
	}
	q.buffer = make([]transport.Message, 0, min(q.bufSize, 64))
	return q
}

// Publish stamps msg with an ID and timestamp if unset and buffers it.
// It never blocks on the transport.
func (q *Queue) Publish(_ context.Context, msg transport.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = q.clock.Now()
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return fmt.Errorf("%w: %s dropped", ErrQueueClosed, msg.Event)
	}
	q.buffer = append(q.buffer, msg)
	n := q.trim()
	q.mu.Unlock()

	if n > 0 && q.onDrop != nil {
		q.onDrop(n)
	}
	return nil
}

// trim drops the oldest messages beyond capacity (must hold lock).
func (q *Queue) trim() int {
	over := len(q.buffer) - q.bufSize
	if over <= 0 {
		return 0
	}
	q.buffer = append(q.buffer[:0], q.buffer[over:]...)
	q.dropped += int64(over)
	return over
}

// Flush sends buffered messages to the sink in order and returns how many
// were sent. Messages not sent because of an error stay buffered ahead of
// anything published during the flush.
func (q *Queue) Flush(ctx context.Context) (int, error) {
	q.flushMu.Lock()
	defer q.flushMu.Unlock()

	q.mu.Lock()
	pending := q.buffer
	q.buffer = make([]transport.Message, 0, cap(pending))
	q.mu.Unlock()

	for i, msg := range pending {
		if err := q.sink.Publish(ctx, msg); err != nil {
			q.requeue(pending[i:])
			return i, fmt.Errorf("flush message %d of %d (%s): %w", i+1, len(pending), msg.Event, err)
		}
	}
	return len(pending), nil
}

func (q *Queue) requeue(unsent []transport.Message) {
	q.mu.Lock()
	q.buffer = append(append(make([]transport.Message, 0, len(unsent)+len(q.buffer)), unsent...), q.buffer...)
	n := q.trim()
	q.mu.Unlock()

	if n > 0 && q.onDrop != nil {
		q.onDrop(n)
	}
}

// Len returns the number of buffered messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buffer)
}

// Dropped returns how many messages were discarded because the buffer was full.
func (q *Queue) Dropped() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Close rejects further publishes and flushes remaining messages
// best-effort. Messages the sink refused stay buffered.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	_, err := q.Flush(ctx)
	return err
}

// Ensure Queue implements transport.Publisher
var _ transport.Publisher = (*Queue)(nil)
