// Package subscriptions tracks live observers grouped by topic and delivers
// messages to them.
//
// A topic is a camera id, a camera's aggregate topic or a module name.
// Delivery to one subscriber never affects the others: a subscriber whose
// send fails or times out is removed and its sink closed, and the remaining
// subscribers still receive the message.
package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/smazurov/visionnode/internal/events"
	"github.com/smazurov/visionnode/internal/logging"
	"github.com/smazurov/visionnode/internal/metrics"
)

// DefaultSendTimeout bounds a single delivery.
const DefaultSendTimeout = 2 * time.Second

var (
	// ErrDelivery is returned by sinks that could not accept a message.
	ErrDelivery = errors.New("delivery failed")

	// ErrSinkClosed is returned by sinks after Close.
	ErrSinkClosed = errors.New("subscriber sink closed")
)

// Sink receives messages for one subscriber. Sinks are compared by
// identity, so implementations should be pointer types.
type Sink interface {
	// Send delivers msg, returning when it is accepted or ctx expires
	Send(ctx context.Context, msg events.Message) error

	// Close is called once when the subscriber is removed
	Close() error
}

// Handle identifies a subscription.
type Handle string

type subscriber struct {
	handle Handle
	topic  string
	sink   Sink

	// Sends to one sink are serialized so that per-topic order holds
	// when several publishers deliver concurrently.
	sendMu    sync.Mutex
	closeOnce sync.Once
}

// Options configures a Registry.
type Options struct {
	SendTimeout time.Duration
	Logger      *slog.Logger
}

// Registry is the subscription registry. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	byTopic  map[string][]*subscriber
	byHandle map[Handle]*subscriber

	timeout time.Duration
	logger  *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	timeout := opts.SendTimeout
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("subscriptions")
	}
	return &Registry{
		byTopic:  make(map[string][]*subscriber),
		byHandle: make(map[Handle]*subscriber),
		timeout:  timeout,
		logger:   logger,
	}
}

// SendTimeout returns the per-delivery timeout.
func (r *Registry) SendTimeout() time.Duration { return r.timeout }

// Subscribe registers sink for topic. Subscribing the same sink to the same
// topic again returns the existing handle.
func (r *Registry) Subscribe(topic string, sink Sink) (Handle, error) {
	if topic == "" {
		return "", errors.New("topic is required")
	}
	if sink == nil {
		return "", errors.New("sink is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.byTopic[topic] {
		if s.sink == sink {
			return s.handle, nil
		}
	}

	s := &subscriber{
		handle: Handle(uuid.NewString()),
		topic:  topic,
		sink:   sink,
	}
	r.byTopic[topic] = append(r.byTopic[topic], s)
	r.byHandle[s.handle] = s
	metrics.SetSubscribers(len(r.byHandle))

	r.logger.Debug("Subscriber added", "topic", topic, "handle", s.handle)
	return s.handle, nil
}

// Unsubscribe removes a subscription and closes its sink. Unknown or
// already removed handles are ignored.
func (r *Registry) Unsubscribe(handle Handle) {
	r.mu.Lock()
	s, ok := r.byHandle[handle]
	if ok {
		r.removeLocked(s)
	}
	r.mu.Unlock()

	if ok {
		r.closeSink(s)
	}
}

func (r *Registry) removeLocked(s *subscriber) {
	if _, ok := r.byHandle[s.handle]; !ok {
		return
	}
	delete(r.byHandle, s.handle)

	subs := r.byTopic[s.topic]
	for i, other := range subs {
		if other == s {
			subs = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(subs) == 0 {
		delete(r.byTopic, s.topic)
	} else {
		r.byTopic[s.topic] = subs
	}
	metrics.SetSubscribers(len(r.byHandle))
}

func (r *Registry) closeSink(s *subscriber) {
	s.closeOnce.Do(func() {
		if err := s.sink.Close(); err != nil {
			r.logger.Debug("Subscriber sink close failed", "handle", s.handle, "error", err)
		}
	})
}

// Deliver sends msg to every subscriber of topic concurrently. It returns
// once each subscriber has accepted the message, failed or timed out, so
// one call takes at most one send timeout however many subscribers lag.
func (r *Registry) Deliver(topic string, msg events.Message) {
	r.mu.RLock()
	snapshot := append([]*subscriber(nil), r.byTopic[topic]...)
	r.mu.RUnlock()

	if len(snapshot) == 1 {
		r.deliverTo(topic, snapshot[0], msg)
		return
	}

	var g errgroup.Group
	for _, s := range snapshot {
		g.Go(func() error {
			r.deliverTo(topic, s, msg)
			return nil
		})
	}
	_ = g.Wait()
}

func (r *Registry) deliverTo(topic string, s *subscriber, msg events.Message) {
	if err := r.send(s, msg); err != nil {
		metrics.IncDeliveries(false)
		r.logger.Warn("Delivery failed, removing subscriber",
			"topic", topic, "handle", s.handle, "error", err)
		r.Unsubscribe(s.handle)
		return
	}
	metrics.IncDeliveries(true)
}

func (r *Registry) send(s *subscriber, msg events.Message) (err error) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	// Removed while waiting for the send lock
	if !r.active(s.handle) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: sink panicked: %v", ErrDelivery, p)
		}
	}()
	return s.sink.Send(ctx, msg)
}

func (r *Registry) active(h Handle) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byHandle[h]
	return ok
}

// Count returns the number of subscribers of topic.
func (r *Registry) Count(topic string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byTopic[topic])
}

// Topics returns subscriber counts per topic.
func (r *Registry) Topics() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]int, len(r.byTopic))
	for topic, subs := range r.byTopic {
		out[topic] = len(subs)
	}
	return out
}

// Close removes every subscriber and closes their sinks.
func (r *Registry) Close() {
	r.mu.Lock()
	all := make([]*subscriber, 0, len(r.byHandle))
	for _, s := range r.byHandle {
		all = append(all, s)
	}
	r.byTopic = make(map[string][]*subscriber)
	r.byHandle = make(map[Handle]*subscriber)
	metrics.SetSubscribers(0)
	r.mu.Unlock()

	for _, s := range all {
		r.closeSink(s)
	}
}
