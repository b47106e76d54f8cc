// Package aggregation buffers analytics events per camera and periodically
// reduces them into windowed summaries.
package aggregation

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/smazurov/visionnode/internal/events"
	"github.com/smazurov/visionnode/internal/logging"
	"github.com/smazurov/visionnode/internal/metrics"
)

const (
	// DefaultInterval is the aggregation window length.
	DefaultInterval = 60 * time.Second
	// DefaultMaxBuffered caps buffered analytics events per camera.
	DefaultMaxBuffered = 1000
)

// Publisher receives aggregates on the camera's aggregate topic.
type Publisher interface {
	Publish(topic string, ev events.CameraEvent)
}

// Source delivers analytics events asynchronously.
type Source interface {
	Subscribe(handler any) func()
}

// Options configures an Engine.
type Options struct {
	Interval    time.Duration
	MaxBuffered int
	Logger      *slog.Logger
}

// Engine is the aggregation engine.
type Engine struct {
	pub      Publisher
	interval time.Duration
	max      int
	logger   *slog.Logger

	mu      sync.Mutex
	buffers map[string][]events.AnalyticsEvent

	unsub   func()
	cancel  context.CancelFunc
	done    chan struct{}
	startMu sync.Mutex
}

// New creates an engine that publishes to pub.
func New(pub Publisher, opts Options) *Engine {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.MaxBuffered <= 0 {
		opts.MaxBuffered = DefaultMaxBuffered
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("aggregation")
	}
	return &Engine{
		pub:      pub,
		interval: opts.Interval,
		max:      opts.MaxBuffered,
		logger:   logger,
		buffers:  make(map[string][]events.AnalyticsEvent),
	}
}

// Add buffers an analytics event. When the camera's buffer is full the
// oldest event is evicted.
func (e *Engine) Add(ev events.AnalyticsEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	buf := e.buffers[ev.CameraID]
	if len(buf) >= e.max {
		evicted := len(buf) - e.max + 1
		buf = append(buf[:0], buf[evicted:]...)
		for range evicted {
			metrics.IncAggregationEvicted(ev.CameraID)
		}
	}
	e.buffers[ev.CameraID] = append(buf, ev)
}

// Buffered returns the number of events waiting for the next window.
func (e *Engine) Buffered(cameraID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.buffers[cameraID])
}

// Start subscribes to src and runs the ticker until Stop or ctx is done.
func (e *Engine) Start(ctx context.Context, src Source) {
	e.startMu.Lock()
	defer e.startMu.Unlock()
	if e.done != nil {
		return
	}

	if src != nil {
		e.unsub = src.Subscribe(e.Add)
	}

	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	go e.run(ctx, e.done)

	e.logger.Info("Aggregation engine started", "interval", e.interval, "max_buffered", e.max)
}

func (e *Engine) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Flush()
		}
	}
}

// Stop unsubscribes, stops the ticker and emits a final window.
func (e *Engine) Stop() {
	e.startMu.Lock()
	defer e.startMu.Unlock()
	if e.done == nil {
		return
	}

	if e.unsub != nil {
		e.unsub()
		e.unsub = nil
	}
	e.cancel()
	<-e.done
	e.done = nil

	e.Flush()
	e.logger.Info("Aggregation engine stopped")
}

// Flush reduces and clears every non-empty buffer and publishes one
// aggregate per camera. It returns what was published.
func (e *Engine) Flush() []events.AggregatedMetrics {
	e.mu.Lock()
	buffers := e.buffers
	e.buffers = make(map[string][]events.AnalyticsEvent, len(buffers))
	e.mu.Unlock()

	ids := make([]string, 0, len(buffers))
	for id := range buffers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]events.AggregatedMetrics, 0, len(ids))
	for _, id := range ids {
		agg, ok := Reduce(id, buffers[id])
		if !ok {
			continue
		}
		if e.pub != nil {
			e.pub.Publish(events.AggregateTopic(id), agg)
		}
		metrics.IncAggregatesEmitted(id)
		e.logger.Debug("Aggregate emitted",
			"camera_id", id,
			"samples", agg.SampleCount,
			"total_objects", agg.TotalObjects)
		out = append(out, agg)
	}
	return out
}
