// Package websocket implements the agent transport over two WebSocket
// listeners: a publish endpoint that broadcasts events to subscribers and
// a request endpoint that accepts command tokens.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/felixgeelhaar/heapscope/domain/agent"
	domaintransport "github.com/felixgeelhaar/heapscope/domain/transport"
	"github.com/felixgeelhaar/heapscope/infrastructure/logging"
	"github.com/felixgeelhaar/heapscope/infrastructure/resilience"
	infratransport "github.com/felixgeelhaar/heapscope/infrastructure/transport"
)

const (
	defaultWriteTimeout   = 5 * time.Second
	defaultSubscriberSize = 64
	maxCommandFrame       = 1024
)

// Transport is a WebSocket implementation of transport.Transport.
type Transport struct {
	policy         *resilience.Policy
	inboxSize      int
	subscriberSize int
	writeTimeout   time.Duration
	upgrader       websocket.Upgrader

	mu          sync.Mutex
	bound       bool
	inbox       *infratransport.Inbox
	servers     []*http.Server
	pubAddr     net.Addr
	reqAddr     net.Addr
	subscribers map[*subscriber]struct{}
	conns       map[*websocket.Conn]struct{}
	wg          sync.WaitGroup
}

// Option configures the transport.
type Option func(*Transport)

// WithPolicy sets the resilience policy used to retry binds.
func WithPolicy(p *resilience.Policy) Option {
	return func(t *Transport) {
		t.policy = p
	}
}

// WithInboxSize sets how many commands are buffered between polls.
func WithInboxSize(n int) Option {
	return func(t *Transport) {
		t.inboxSize = n
	}
}

// WithWriteTimeout sets the deadline for one frame write.
func WithWriteTimeout(d time.Duration) Option {
	return func(t *Transport) {
		t.writeTimeout = d
	}
}

// New creates an unbound WebSocket transport.
func New(opts ...Option) *Transport {
	t := &Transport{
		inboxSize:      infratransport.DefaultInboxSize,
		subscriberSize: defaultSubscriberSize,
		writeTimeout:   defaultWriteTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.policy == nil {
		t.policy = resilience.New()
	}
	return t
}

// Bind listens on both endpoints, retrying according to the policy.
func (t *Transport) Bind(ctx context.Context, endpoints domaintransport.Endpoints) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bound {
		return domaintransport.ErrAlreadyBound
	}

	var pubLn, reqLn net.Listener
	err := t.policy.Retry(ctx, func(ctx context.Context) error {
		var err error
		pubLn, reqLn, err = listenPair(ctx, endpoints)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %w", domaintransport.ErrBindFailed, err)
	}

	t.inbox = infratransport.NewInbox(t.inboxSize)
	t.subscribers = make(map[*subscriber]struct{})
	t.conns = make(map[*websocket.Conn]struct{})
	t.pubAddr = pubLn.Addr()
	t.reqAddr = reqLn.Addr()
	t.servers = []*http.Server{
		t.serve(pubLn, http.HandlerFunc(t.handleSubscriber)),
		t.serve(reqLn, t.handleRequests(t.inbox)),
	}
	t.bound = true

	logging.Info().
		Add(logging.Transport("websocket")).
		Add(logging.Endpoint("publish", t.pubAddr.String())).
		Add(logging.Endpoint("request", t.reqAddr.String())).
		Msg("transport bound")
	return nil
}

func listenPair(ctx context.Context, endpoints domaintransport.Endpoints) (net.Listener, net.Listener, error) {
	var lc net.ListenConfig
	pubLn, err := lc.Listen(ctx, "tcp", endpoints.Publish)
	if err != nil {
		return nil, nil, fmt.Errorf("listen publish %s: %w", endpoints.Publish, err)
	}
	reqLn, err := lc.Listen(ctx, "tcp", endpoints.Request)
	if err != nil {
		_ = pubLn.Close()
		return nil, nil, fmt.Errorf("listen request %s: %w", endpoints.Request, err)
	}
	return pubLn, reqLn, nil
}

func (t *Transport) serve(ln net.Listener, h http.Handler) *http.Server {
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error().
				Add(logging.Transport("websocket")).
				Add(logging.ErrorField(err)).
				Msg("listener stopped")
		}
	}()
	return srv
}

// track registers a hijacked connection so Unbind can wait for it. Request
// connections are closed by Unbind directly; subscribers are closed by their
// write pump after the close frame. It returns false if the transport is
// already unbinding.
func (t *Transport) track(conn *websocket.Conn, closeOnUnbind bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.bound {
		return false
	}
	if closeOnUnbind {
		t.conns[conn] = struct{}{}
	}
	t.wg.Add(1)
	return true
}

func (t *Transport) untrack(conn *websocket.Conn) {
	t.mu.Lock()
	delete(t.conns, conn)
	t.mu.Unlock()
	_ = conn.Close()
	t.wg.Done()
}

func (t *Transport) handleRequests(inbox *infratransport.Inbox) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := t.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if !t.track(conn, true) {
			_ = conn.Close()
			return
		}
		defer t.untrack(conn)

		conn.SetReadLimit(maxCommandFrame)
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if kind != websocket.TextMessage {
				continue
			}

			cmd := infratransport.DecodeCommand(data)
			reply := infratransport.ReplyOK
			if err := inbox.Offer(cmd); err != nil {
				reply = infratransport.ReplyBusy
				logging.Warn().
					Add(logging.Transport("websocket")).
					Add(logging.Command(cmd)).
					Add(logging.ErrorField(err)).
					Msg("command rejected")
			}

			_ = conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
				return
			}
		}
	}
}

// Unbind closes both listeners and every open connection.
func (t *Transport) Unbind(ctx context.Context) error {
	t.mu.Lock()
	if !t.bound {
		t.mu.Unlock()
		return nil
	}
	t.bound = false
	t.inbox.Close()
	servers := t.servers
	t.servers = nil
	for s := range t.subscribers {
		s.close()
	}
	t.subscribers = nil
	conns := make([]*websocket.Conn, 0, len(t.conns))
	for c := range t.conns {
		conns = append(conns, c)
	}
	t.mu.Unlock()

	var errs []error
	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	// Hijacked connections are not closed by Shutdown.
	// Subscriber pumps were signalled above and close their own.
	for _, c := range conns {
		_ = c.Close()
	}
	t.wg.Wait()

	logging.Info().
		Add(logging.Transport("websocket")).
		Msg("transport unbound")
	return errors.Join(errs...)
}

// PollCommand returns the next pending command without blocking.
func (t *Transport) PollCommand(context.Context) (agent.Command, error) {
	t.mu.Lock()
	inbox, bound := t.inbox, t.bound
	t.mu.Unlock()
	if !bound {
		return agent.CommandNone, domaintransport.ErrNotBound
	}
	return inbox.Poll(), nil
}

// Ready is signalled when a command arrives.
func (t *Transport) Ready() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inbox == nil {
		return nil
	}
	return t.inbox.Ready()
}

// Publish broadcasts msg to every connected subscriber. Subscribers that
// cannot keep up miss the message.
func (t *Transport) Publish(_ context.Context, msg domaintransport.Message) error {
	data, err := infratransport.EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("%w: %w", domaintransport.ErrPublishFailed, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.bound {
		return domaintransport.ErrNotBound
	}
	for s := range t.subscribers {
		if !s.offer(data) {
			logging.Debug().
				Add(logging.Transport("websocket")).
				Add(logging.Event(msg.Event)).
				Msg("slow subscriber skipped")
		}
	}
	return nil
}

// Addrs returns the bound publish and request addresses.
func (t *Transport) Addrs() (publish, request net.Addr) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pubAddr, t.reqAddr
}

// Subscribers returns the number of connected subscribers.
func (t *Transport) Subscribers() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subscribers)
}

var (
	_ domaintransport.Transport = (*Transport)(nil)
	_ domaintransport.Notifier  = (*Transport)(nil)
)
