package websocket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/felixgeelhaar/heapscope/domain/agent"
	infratransport "github.com/felixgeelhaar/heapscope/infrastructure/transport"
)

// Client talks to a running agent's endpoints.
type Client struct {
	dialer websocket.Dialer
}

// NewClient creates a client with the given handshake timeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{dialer: websocket.Dialer{HandshakeTimeout: timeout}}
}

func url(addr string) string {
	return "ws://" + addr + "/"
}

// SendCommand submits cmd to the request endpoint at addr and returns the
// agent's reply (ok or busy).
func (c *Client) SendCommand(ctx context.Context, addr string, cmd agent.Command) (string, error) {
	conn, _, err := c.dialer.DialContext(ctx, url(addr), nil)
	if err != nil {
		return "", fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
		_ = conn.SetWriteDeadline(deadline)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(cmd)); err != nil {
		return "", fmt.Errorf("send command: %w", err)
	}
	_, reply, err := conn.ReadMessage()
	if err != nil {
		return "", fmt.Errorf("read reply: %w", err)
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return string(reply), nil
}

// Subscribe connects to the publish endpoint at addr and calls fn for each
// message until ctx is done, the agent closes the stream or fn fails.
func (c *Client) Subscribe(ctx context.Context, addr string, fn func(infratransport.Envelope) error) error {
	conn, _, err := c.dialer.DialContext(ctx, url(addr), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}
		env, err := infratransport.DecodeMessage(data)
		if err != nil {
			return err
		}
		if err := fn(env); err != nil {
			if errors.Is(err, ErrStopSubscription) {
				return nil
			}
			return err
		}
	}
}

// ErrStopSubscription can be returned by a Subscribe callback to end the
// subscription without an error.
var ErrStopSubscription = infratransport.ErrStopSubscription
