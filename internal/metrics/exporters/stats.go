package exporters

import (
	"context"
	"sync"
	"time"

	"github.com/smazurov/visionnode/internal/events"
	"github.com/smazurov/visionnode/internal/metrics"
	"github.com/smazurov/visionnode/internal/streams"
)

// DefaultStatsInterval is the sampling period of NewStatsExporter.
const DefaultStatsInterval = time.Second

// StatusLister lists stream statuses.
type StatusLister interface {
	List() []streams.Status
}

// MetricsPublisher receives throughput samples.
type MetricsPublisher interface {
	PublishMetrics(ev events.StreamMetricsEvent)
}

type sample struct {
	captured  uint64
	processed uint64
	at        time.Time
}

// StatsExporter samples active streams and publishes their frame rates.
type StatsExporter struct {
	streams  StatusLister
	bus      MetricsPublisher
	interval time.Duration

	last   map[string]sample
	known  map[string]bool
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStatsExporter creates an exporter. A non-positive interval uses
// DefaultStatsInterval.
func NewStatsExporter(lister StatusLister, bus MetricsPublisher, interval time.Duration) *StatsExporter {
	if interval <= 0 {
		interval = DefaultStatsInterval
	}
	return &StatsExporter{
		streams:  lister,
		bus:      bus,
		interval: interval,
		last:     make(map[string]sample),
		known:    make(map[string]bool),
	}
}

// Start begins the sampling loop.
func (s *StatsExporter) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop stops the sampling loop and waits for it to finish.
func (s *StatsExporter) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *StatsExporter) run(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.publish(now)
		}
	}
}

// publish emits one sample per active stream. The first sample of a
// stream only records a baseline. Cameras that left the registry lose
// their per-camera gauges.
func (s *StatsExporter) publish(now time.Time) {
	listed := make(map[string]bool)
	streaming := make(map[string]bool)
	for _, st := range s.streams.List() {
		listed[st.CameraID] = true
		if !st.IsStreaming {
			continue
		}
		streaming[st.CameraID] = true

		cur := sample{captured: st.FramesCaptured, processed: st.FramesProcessed, at: now}
		prev, ok := s.last[st.CameraID]
		s.last[st.CameraID] = cur
		// Counters reset when a stream restarts
		if !ok || cur.captured < prev.captured || cur.processed < prev.processed {
			continue
		}

		elapsed := now.Sub(prev.at).Seconds()
		if elapsed <= 0 {
			continue
		}
		s.bus.PublishMetrics(events.StreamMetricsEvent{
			CameraID:      st.CameraID,
			FPS:           float64(cur.captured-prev.captured) / elapsed,
			ProcessedFPS:  float64(cur.processed-prev.processed) / elapsed,
			FramesDropped: st.FramesDropped,
			QueueDepth:    st.QueueDepth,
			Timestamp:     now,
		})
	}

	for id := range s.last {
		if !streaming[id] {
			delete(s.last, id)
		}
	}
	for id := range s.known {
		if !listed[id] {
			metrics.DeleteStreamMetrics(id)
			delete(s.known, id)
		}
	}
	for id := range listed {
		s.known[id] = true
	}
}
