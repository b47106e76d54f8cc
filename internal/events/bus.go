package events

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kelindar/event"
	"github.com/smazurov/visionnode/internal/logging"
	"github.com/smazurov/visionnode/internal/metrics"
)

// Deliverer fans a message out to the immediate subscribers of a topic.
type Deliverer interface {
	Deliver(topic string, msg Message)
}

// TopicResolver returns the module topics that also receive a camera's events.
type TopicResolver func(cameraID string) []string

// Option configures a Bus.
type Option func(*Bus)

// WithDeliverer sets the immediate delivery path.
func WithDeliverer(d Deliverer) Option {
	return func(b *Bus) { b.deliverer = d }
}

// WithTopics sets the module topic resolver.
func WithTopics(r TopicResolver) Option {
	return func(b *Bus) { b.topics = r }
}

// WithLogger sets the bus logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) { b.logger = l }
}

// Bus wraps kelindar/event dispatcher for event broadcasting.
//
// Publish delivers to topic subscribers synchronously, in publish order,
// then hands the event to the dispatcher where every Subscribe handler has
// its own asynchronous queue. Drain waits for those queues to empty.
type Bus struct {
	dispatcher *event.Dispatcher
	deliverer  Deliverer
	topics     TopicResolver
	logger     *slog.Logger

	// mu keeps subscriber counts in step with the dispatcher's groups.
	mu          sync.RWMutex
	subscribers map[uint32]int
	pending     atomic.Int64
}

// New creates a new event bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		dispatcher:  event.NewDispatcher(),
		logger:      logging.GetLogger("events"),
		subscribers: make(map[uint32]int),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish publishes a camera event under topic and the camera's module topics.
// Usage: bus.Publish(cameraID, DetectionEvent{...})
func (b *Bus) Publish(topic string, ev CameraEvent) {
	msg := ev.Message()
	metrics.IncEventsPublished(string(msg.Type))

	if b.deliverer != nil {
		b.deliverer.Deliver(topic, msg)
		for _, t := range b.moduleTopics(topic, ev.Camera()) {
			b.deliverer.Deliver(t, msg)
		}
	}

	// Use type switch to call the generic Publish with the correct type
	switch e := ev.(type) {
	case DetectionEvent:
		publish(b, e)
	case AnalyticsEvent:
		publish(b, e)
	case AggregatedMetrics:
		publish(b, e)
	default:
		b.logger.Warn("Unknown camera event type", "type", ev.Type())
	}
}

// PublishState publishes a stream state transition to async handlers.
func (b *Bus) PublishState(ev StreamStateChangedEvent) {
	publish(b, ev)
}

// PublishMetrics publishes a stream throughput sample to async handlers.
func (b *Bus) PublishMetrics(ev StreamMetricsEvent) {
	publish(b, ev)
}

// publish counts one pending delivery per current subscriber of T.
func publish[T Event](b *Bus, ev T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	b.pending.Add(int64(b.subscribers[ev.Type()]))
	event.Publish(b.dispatcher, ev)
}

// subscribe registers h and settles its pending count once h returns.
// An unsubscribed handler still runs for events queued before the call.
func subscribe[T Event](b *Bus, h func(T)) func() {
	var zero T
	key := zero.Type()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[key]++
	cancel := event.Subscribe(b.dispatcher, func(ev T) {
		defer b.pending.Add(-1)
		h(ev)
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.subscribers[key]--
			cancel()
		})
	}
}

// Drain blocks until every async handler has processed the events
// published so far, including events those handlers publish in turn.
// Call it once producers have stopped.
func (b *Bus) Drain(ctx context.Context) error {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for b.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return fmt.Errorf("drain event bus: %d deliveries pending: %w", b.pending.Load(), ctx.Err())
		case <-ticker.C:
		}
	}
	return nil
}

func (b *Bus) moduleTopics(topic, cameraID string) []string {
	if b.topics == nil {
		return nil
	}
	var out []string
	for _, t := range b.topics(cameraID) {
		if t == "" || t == topic || slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Subscribe subscribes to events with a handler function.
// The handler type determines which events it receives.
// Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e AnalyticsEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(DetectionEvent):
		return subscribe(b, h)
	case func(AnalyticsEvent):
		return subscribe(b, h)
	case func(AggregatedMetrics):
		return subscribe(b, h)
	case func(StreamStateChangedEvent):
		return subscribe(b, h)
	case func(StreamMetricsEvent):
		return subscribe(b, h)
	default:
		b.logger.Warn("Unsupported handler type", "handler_type", fmt.Sprintf("%T", handler))
		return func() {}
	}
}

// SubscribeToChannel bridges kelindar/event callback-based subscriptions to channels.
// Used for SSE where Huma expects a channel-based select loop. Events are
// dropped when the channel is full.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return subscribe(bus, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}

// Close stops all async handlers.
func (b *Bus) Close() error {
	return b.dispatcher.Close()
}
