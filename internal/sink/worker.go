package sink

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/visionnode/internal/events"
	"github.com/smazurov/visionnode/internal/logging"
	"github.com/smazurov/visionnode/internal/metrics"
)

const (
	defaultQueueSize    = 1024
	defaultStoreTimeout = 5 * time.Second
)

// Source delivers events asynchronously.
type Source interface {
	Subscribe(handler any) func()
}

// WorkerOptions configures a Worker.
type WorkerOptions struct {
	// Name labels metrics and logs
	Name         string
	QueueSize    int
	StoreTimeout time.Duration
	Logger       *slog.Logger
}

// Worker feeds bus events to an EventSink from a single goroutine. The
// queue is bounded; messages are dropped when it is full.
type Worker struct {
	sink    EventSink
	name    string
	timeout time.Duration
	logger  *slog.Logger
	queue   chan events.Message

	mu     sync.Mutex
	unsubs []func()
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWorker creates a worker for s.
func NewWorker(s EventSink, opts WorkerOptions) *Worker {
	if opts.Name == "" {
		opts.Name = "default"
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = defaultStoreTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("sink")
	}
	return &Worker{
		sink:    s,
		name:    opts.Name,
		timeout: opts.StoreTimeout,
		logger:  logger.With("sink", opts.Name),
		queue:   make(chan events.Message, opts.QueueSize),
	}
}

// Enqueue queues msg without blocking. It returns false when the message
// was dropped.
func (w *Worker) Enqueue(msg events.Message) bool {
	select {
	case w.queue <- msg:
		return true
	default:
		metrics.IncSinkWrites(w.name, false)
		w.logger.Warn("Sink queue full, dropping message", "type", msg.Type, "camera_id", msg.CameraID)
		return false
	}
}

// Attach subscribes the worker to detection, analytics and aggregate events.
func (w *Worker) Attach(src Source) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.unsubs = append(w.unsubs,
		src.Subscribe(func(ev events.DetectionEvent) { w.Enqueue(ev.Message()) }),
		src.Subscribe(func(ev events.AnalyticsEvent) { w.Enqueue(ev.Message()) }),
		src.Subscribe(func(ev events.AggregatedMetrics) { w.Enqueue(ev.Message()) }),
	)
}

// Start runs the worker until Stop.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done != nil {
		return
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go w.run(ctx, w.done)
}

func (w *Worker) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return
		case msg := <-w.queue:
			w.store(msg)
		}
	}
}

// drain stores what is still queued at shutdown.
func (w *Worker) drain() {
	for {
		select {
		case msg := <-w.queue:
			w.store(msg)
		default:
			return
		}
	}
}

func (w *Worker) store(msg events.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	if err := w.sink.Store(ctx, msg); err != nil {
		metrics.IncSinkWrites(w.name, false)
		w.logger.Warn("Failed to store message", "type", msg.Type, "camera_id", msg.CameraID, "error", err)
		return
	}
	metrics.IncSinkWrites(w.name, true)
}

// Stop unsubscribes, stores queued messages and waits for the worker.
func (w *Worker) Stop() {
	w.mu.Lock()
	unsubs := w.unsubs
	w.unsubs = nil
	cancel, done := w.cancel, w.done
	w.done = nil
	w.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	if cancel != nil {
		cancel()
		<-done
	}
}
