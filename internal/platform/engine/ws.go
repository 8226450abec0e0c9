package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/n8kahl/copilotd/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// MessageHandler receives every raw frame from the push stream, in arrival
// order.
type MessageHandler func(raw []byte)

// StatusHandler receives connectivity transitions (online on open, offline
// on close or error).
type StatusHandler func(status domain.ConnStatus)

// WSClient is a single-connection WebSocket client for the engine's push
// stream. It does not reconnect; the feed layer owns the retry loop and
// creates a fresh client per attempt.
type WSClient struct {
	wsURL string

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	onMessage MessageHandler
	onStatus  StatusHandler

	done chan struct{}
}

// NewWSClient creates a client for the push-stream endpoint, e.g.
// "ws://localhost:3001/ws/stream".
func NewWSClient(wsURL string, onMessage MessageHandler, onStatus StatusHandler) *WSClient {
	return &WSClient{
		wsURL:     wsURL,
		onMessage: onMessage,
		onStatus:  onStatus,
		done:      make(chan struct{}),
	}
}

// Connect dials the stream and starts the read and ping loops. It reports
// online via the status handler on success.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("engine/ws: %w", domain.ErrWSDisconnect)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("engine/ws: connect: %w", err)
	}

	w.conn = conn
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go w.readLoop(conn)
	go w.pingLoop(conn)

	if w.onStatus != nil {
		w.onStatus(domain.ConnOnline)
	}
	return nil
}

// Close shuts the connection down. The read loop exits without reporting a
// status transition, since teardown is not a connectivity failure.
func (w *WSClient) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	close(w.done)

	if w.conn != nil {
		_ = w.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return w.conn.Close()
	}
	return nil
}

// Done is closed when the connection has terminated for any reason.
func (w *WSClient) Done() <-chan struct{} {
	return w.done
}

func (w *WSClient) readLoop(conn *websocket.Conn) {
	defer conn.Close()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			w.mu.Lock()
			closed := w.closed
			if !closed {
				w.closed = true
				close(w.done)
			}
			w.mu.Unlock()

			if !closed && w.onStatus != nil {
				w.onStatus(domain.ConnOffline)
			}
			return
		}

		if w.onMessage != nil {
			w.onMessage(message)
		}
	}
}

func (w *WSClient) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
