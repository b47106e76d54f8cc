// Package pipeline runs the processing stage of a stream: it drains the
// frame queue, preprocesses and analyzes frames and publishes the results.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/smazurov/visionnode/internal/analysis"
	"github.com/smazurov/visionnode/internal/cameras"
	"github.com/smazurov/visionnode/internal/events"
	"github.com/smazurov/visionnode/internal/frames"
	"github.com/smazurov/visionnode/internal/logging"
	"github.com/smazurov/visionnode/internal/metrics"
	"github.com/smazurov/visionnode/internal/preprocess"
)

// DefaultDequeueTimeout bounds how long the stage waits for a frame before
// re-checking cancellation.
const DefaultDequeueTimeout = 100 * time.Millisecond

// Publisher accepts events produced by the stage.
type Publisher interface {
	Publish(topic string, ev events.CameraEvent)
}

// StageConfig configures a processing stage.
type StageConfig struct {
	Camera         cameras.CameraSource
	Queue          *frames.Queue
	Analyzer       analysis.FrameAnalyzer
	Publisher      Publisher
	DequeueTimeout time.Duration
	Logger         *slog.Logger
}

// Stats are the stage counters.
type Stats struct {
	Processed      uint64
	AnalysisErrors uint64
	Published      uint64
}

// Stage is the processing task of one stream session.
type Stage struct {
	cfg    StageConfig
	prep   preprocess.Options
	logger *slog.Logger

	processed      atomic.Uint64
	analysisErrors atomic.Uint64
	published      atomic.Uint64
}

// NewStage creates a processing stage.
func NewStage(cfg StageConfig) (*Stage, error) {
	if cfg.Queue == nil || cfg.Analyzer == nil || cfg.Publisher == nil {
		return nil, fmt.Errorf("processing stage for %s: queue, analyzer and publisher are required", cfg.Camera.ID)
	}
	prep, err := preprocess.FromSource(cfg.Camera)
	if err != nil {
		return nil, err
	}
	if cfg.DequeueTimeout <= 0 {
		cfg.DequeueTimeout = DefaultDequeueTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetLogger("pipeline")
	}
	return &Stage{
		cfg:    cfg,
		prep:   prep,
		logger: logger.With("camera_id", cfg.Camera.ID),
	}, nil
}

// Run processes frames until ctx is cancelled, then discards whatever is
// left in the queue. Per-frame failures are logged and never end the loop.
func (s *Stage) Run(ctx context.Context) error {
	s.logger.Debug("Processing started")

	for {
		frame, ok := s.cfg.Queue.Pop(ctx, s.cfg.DequeueTimeout)
		if ctx.Err() != nil {
			discarded := s.cfg.Queue.Drain()
			if frame != nil {
				discarded++
			}
			s.logger.Debug("Processing stopped", "discarded", discarded)
			return nil
		}
		if !ok {
			continue
		}

		s.process(ctx, frame)
		metrics.SetQueueDepth(s.cfg.Camera.ID, s.cfg.Queue.Len())
	}
}

func (s *Stage) process(ctx context.Context, frame *frames.Frame) {
	if s.prep.Enabled() {
		img, err := preprocess.Apply(frame.Image, s.prep)
		if err != nil {
			s.logger.Warn("Preprocessing failed, using original frame", "seq", frame.Seq, "error", err)
		} else {
			frame = frame.WithImage(img)
		}
	}

	result, err := s.analyze(ctx, frame)
	s.processed.Add(1)
	metrics.IncFramesProcessed(s.cfg.Camera.ID)
	if err != nil {
		s.analysisErrors.Add(1)
		metrics.IncAnalysisErrors(s.cfg.Camera.ID)
		s.logger.Warn("Frame analysis failed", "seq", frame.Seq, "error", err)
		return
	}

	topic := s.cfg.Camera.ID
	if len(result.Detections) > 0 && s.cfg.Camera.DetectionEnabled() {
		s.cfg.Publisher.Publish(topic, events.DetectionEvent{
			CameraID:   s.cfg.Camera.ID,
			FrameSeq:   frame.Seq,
			Timestamp:  frame.CapturedAt,
			Detections: result.Detections,
		})
		s.published.Add(1)
	}
	if !result.Metrics.Empty() && s.cfg.Camera.AnalyticsEnabled() {
		s.cfg.Publisher.Publish(topic, events.AnalyticsEvent{
			CameraID:  s.cfg.Camera.ID,
			FrameSeq:  frame.Seq,
			Timestamp: frame.CapturedAt,
			Metrics:   *result.Metrics,
		})
		s.published.Add(1)
	}
}

func (s *Stage) analyze(ctx context.Context, frame *frames.Frame) (result analysis.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: analyzer panicked: %v", analysis.ErrAnalysis, p)
		}
	}()
	return s.cfg.Analyzer.Analyze(ctx, frame)
}

// Stats returns the stage counters.
func (s *Stage) Stats() Stats {
	return Stats{
		Processed:      s.processed.Load(),
		AnalysisErrors: s.analysisErrors.Load(),
		Published:      s.published.Load(),
	}
}
