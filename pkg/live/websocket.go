package live

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WebSocketDialer connects to an agent gateway speaking the copilot wire
// protocol over a WebSocket.
type WebSocketDialer struct {
	// URL is the ws:// or wss:// endpoint.
	URL string

	// Header is attached to the handshake request (auth tokens etc.).
	Header http.Header

	// HandshakeTimeout bounds the dial. Defaults to 15s.
	HandshakeTimeout time.Duration
}

var _ Dialer = (*WebSocketDialer)(nil)

// Dial connects, sends the setup frame, and starts the background
// reader.
func (d *WebSocketDialer) Dial(ctx context.Context, setup Setup) (Channel, error) {
	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	dialer := websocket.Dialer{HandshakeTimeout: timeout}

	conn, resp, err := dialer.DialContext(ctx, d.URL, d.Header)
	if err != nil {
		if resp != nil {
			return nil, &ConnectionError{Op: "dial", Err: fmt.Errorf("%w (http %d)", err, resp.StatusCode)}
		}
		return nil, &ConnectionError{Op: "dial", Err: err}
	}

	ch := &wsChannel{
		conn:    conn,
		id:      "sess_" + uuid.New().String()[:12],
		closeCh: make(chan struct{}),
		msgCh:   make(chan messageOrError, 64),
	}
	if err := ch.Send(&ClientMessage{Setup: &setup}); err != nil {
		conn.Close()
		return nil, &ConnectionError{Op: "setup", Err: err}
	}
	go ch.readLoop()
	return ch, nil
}

type messageOrError struct {
	msg *ServerMessage
	err error
}

type wsChannel struct {
	conn *websocket.Conn
	id   string

	closeCh   chan struct{}
	msgCh     chan messageOrError
	closeOnce sync.Once
	mu        sync.Mutex
}

// Send writes one client frame. Safe for concurrent callers.
func (c *wsChannel) Send(msg *ClientMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		if b, err := json.Marshal(msg); err == nil {
			s := string(b)
			if len(s) > 256 {
				s = s[:256] + "..."
			}
			slog.Debug("send frame", "channel", c.id, "content", s)
		}
	}
	return c.conn.WriteJSON(msg)
}

// Messages yields inbound frames until the channel closes. After an
// error is yielded, iteration stops.
func (c *wsChannel) Messages() iter.Seq2[*ServerMessage, error] {
	return func(yield func(*ServerMessage, error) bool) {
		for {
			select {
			case <-c.closeCh:
				return
			case item, ok := <-c.msgCh:
				if !ok {
					return
				}
				if !yield(item.msg, item.err) {
					return
				}
				if item.err != nil {
					return
				}
			}
		}
	}
}

// Close shuts the connection. Idempotent.
func (c *wsChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		err = c.conn.Close()
	})
	return err
}

func (c *wsChannel) readLoop() {
	defer close(c.msgCh)
	for {
		select {
		case <-c.closeCh:
			return
		default:
		}

		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closeCh:
			case c.msgCh <- messageOrError{err: fmt.Errorf("live: read: %w", err)}:
			}
			return
		}

		var msg ServerMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			select {
			case <-c.closeCh:
				return
			case c.msgCh <- messageOrError{err: fmt.Errorf("live: parse frame: %w", err)}:
			}
			continue
		}

		if msg.Error != nil {
			select {
			case <-c.closeCh:
			case c.msgCh <- messageOrError{err: msg.Error}:
			}
			return
		}

		select {
		case <-c.closeCh:
			return
		case c.msgCh <- messageOrError{msg: &msg}:
		}
	}
}
