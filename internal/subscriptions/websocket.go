package subscriptions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/smazurov/visionnode/internal/events"
)

const (
	// pongWait is how long to wait for a pong response
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize limits client messages, which are only control frames
	maxMessageSize = 4 * 1024
)

// WebSocketSink writes messages as JSON text frames to a websocket
// connection. The write deadline is taken from the send context.
type WebSocketSink struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	done    chan struct{}
	once    sync.Once
}

// NewWebSocketSink wraps an upgraded connection.
func NewWebSocketSink(conn *websocket.Conn) *WebSocketSink {
	return &WebSocketSink{conn: conn, done: make(chan struct{})}
}

// Send implements Sink.
func (w *WebSocketSink) Send(ctx context.Context, msg events.Message) error {
	select {
	case <-w.done:
		return ErrSinkClosed
	default:
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(DefaultSendTimeout)
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if err := w.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	if err := w.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	return nil
}

// Done is closed when the sink is closed.
func (w *WebSocketSink) Done() <-chan struct{} { return w.done }

// Close sends a close frame and closes the connection.
func (w *WebSocketSink) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		w.writeMu.Lock()
		_ = w.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		w.writeMu.Unlock()
		err = w.conn.Close()
	})
	return err
}

// Run keeps the connection alive until the client disconnects, ctx is
// cancelled or the sink is closed. Client messages are discarded; reading
// is required to process pongs and close frames.
func (w *WebSocketSink) Run(ctx context.Context) {
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		w.conn.SetReadLimit(maxMessageSize)
		_ = w.conn.SetReadDeadline(time.Now().Add(pongWait))
		w.conn.SetPongHandler(func(string) error {
			return w.conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := w.conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case <-readDone:
			return
		case <-ticker.C:
			w.writeMu.Lock()
			err := w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(DefaultSendTimeout))
			w.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
