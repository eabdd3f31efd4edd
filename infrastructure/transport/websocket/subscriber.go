package websocket

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// subscriber is one connection on the publish endpoint.
type subscriber struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

// offer queues data without blocking (must hold Transport.mu).
func (s *subscriber) offer(data []byte) bool {
	select {
	case s.send <- data:
		return true
	default:
		return false
	}
}

// close ends the write pump (must hold Transport.mu).
func (s *subscriber) close() {
	s.once.Do(func() { close(s.send) })
}

func (t *Transport) handleSubscriber(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	if !t.track(conn, false) {
		_ = conn.Close()
		return
	}
	defer t.untrack(conn)

	s := &subscriber{conn: conn, send: make(chan []byte, t.subscriberSize)}
	t.mu.Lock()
	if t.subscribers == nil {
		t.mu.Unlock()
		return
	}
	t.subscribers[s] = struct{}{}
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Subscribers only listen; reading detects the close.
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	t.writePump(s, done)

	t.mu.Lock()
	if t.subscribers != nil {
		delete(t.subscribers, s)
	}
	s.close()
	t.mu.Unlock()
}

func (t *Transport) writePump(s *subscriber, done <-chan struct{}) {
	for {
		select {
		case data, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
