package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/smazurov/visionnode/internal/events"
	"github.com/smazurov/visionnode/internal/logging"
)

// ErrNotConnected is returned by Flush when there is no live connection.
var ErrNotConnected = errors.New("nats: not connected")

// Sink publishes messages to NATS.
// Gracefully degrades when NATS is unavailable.
type Sink struct {
	url       string
	name      string
	conn      *nats.Conn
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool
	onConnect []func(*nats.Conn)
}

// NewSink creates a sink for the given server URL. Connect must be called
// before messages are published.
func NewSink(url string, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = logging.GetLogger("nats")
	}
	return &Sink{
		url:    url,
		name:   "visionnode",
		logger: logger.With("component", "nats-sink"),
	}
}

// Connect establishes a connection to the NATS server.
// On failure the sink stays usable in offline mode and the error is returned
// for the caller to log.
func (s *Sink) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return nil
	}

	opts := []nats.Option{
		nats.Name(s.name),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			s.setConnected(false)
			if err != nil {
				s.logger.Warn("NATS disconnected", "error", err)
			} else {
				s.logger.Debug("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			s.setConnected(true)
			s.logger.Info("NATS reconnected")
			s.mu.RLock()
			hooks := append([]func(*nats.Conn){}, s.onConnect...)
			s.mu.RUnlock()
			for _, fn := range hooks {
				fn(nc)
			}
		}),
		nats.ConnectHandler(func(_ *nats.Conn) {
			s.logger.Debug("NATS connected")
		}),
	}

	conn, err := nats.Connect(s.url, opts...)
	if err != nil {
		s.logger.Warn("Failed to connect to NATS, running in offline mode", "error", err)
		return err
	}

	s.conn = conn
	s.connected = true
	s.logger.Info("Connected to NATS", "url", s.url)
	for _, fn := range s.onConnect {
		fn(conn)
	}
	return nil
}

func (s *Sink) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}

// onConnected registers fn to run after every (re)connect. It runs
// immediately when already connected.
func (s *Sink) onConnected(fn func(*nats.Conn)) {
	s.mu.Lock()
	s.onConnect = append(s.onConnect, fn)
	conn := s.conn
	connected := s.connected
	s.mu.Unlock()

	if conn != nil && connected {
		fn(conn)
	}
}

// Store publishes msg on its camera subject.
// No-op if not connected (graceful degradation).
func (s *Sink) Store(_ context.Context, msg events.Message) error {
	s.mu.RLock()
	conn := s.conn
	connected := s.connected
	s.mu.RUnlock()

	if conn == nil || !connected {
		return nil
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", msg.Type, err)
	}

	subject := SubjectCameraEvents(msg.CameraID, msg.Type)
	if err := conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Flush waits until the server has processed everything published so far.
func (s *Sink) Flush(ctx context.Context) error {
	s.mu.RLock()
	conn := s.conn
	connected := s.connected
	s.mu.RUnlock()

	if conn == nil || !connected {
		return ErrNotConnected
	}
	return conn.FlushWithContext(ctx)
}

// IsConnected returns true if connected to NATS.
func (s *Sink) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected && s.conn != nil
}

// Close drains pending publishes and closes the connection.
func (s *Sink) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.connected = false
	s.onConnect = nil
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	if err := conn.Drain(); err != nil {
		conn.Close()
		return fmt.Errorf("drain nats connection: %w", err)
	}
	s.logger.Debug("NATS sink closed")
	return nil
}
