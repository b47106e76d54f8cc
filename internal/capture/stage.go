package capture

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/smazurov/visionnode/internal/frames"
	"github.com/smazurov/visionnode/internal/logging"
	"github.com/smazurov/visionnode/internal/metrics"
)

// StageConfig configures a capture stage.
type StageConfig struct {
	CameraID string
	Source   Source
	Queue    *frames.Queue
	Slot     *frames.Slot

	// Interval is the target time between reads
	Interval time.Duration
	Logger   *slog.Logger
}

// Stage is the capture task of one stream session. It owns the source
// handle and closes it when Run returns.
type Stage struct {
	cfg    StageConfig
	logger *slog.Logger
	seq    uint64
}

// NewStage creates a capture stage.
func NewStage(cfg StageConfig) *Stage {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetLogger("capture")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 33 * time.Millisecond
	}
	return &Stage{
		cfg:    cfg,
		logger: logger.With("camera_id", cfg.CameraID),
	}
}

// Run reads frames until ctx is cancelled or a read fails. A read failure
// returns an error wrapping ErrSourceUnavailable; cancellation returns nil.
func (s *Stage) Run(ctx context.Context) error {
	defer func() {
		if err := s.cfg.Source.Close(); err != nil {
			s.logger.Warn("Failed to close capture source", "error", err)
		}
	}()

	s.logger.Debug("Capture started", "interval", s.cfg.Interval)

	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for {
		started := time.Now()

		img, err := s.cfg.Source.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Error("Capture read failed", "error", err)
			return fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, s.cfg.CameraID, err)
		}

		s.seq++
		frame := &frames.Frame{
			CameraID:   s.cfg.CameraID,
			Seq:        s.seq,
			CapturedAt: started,
			Image:      img,
		}
		metrics.IncFramesCaptured(s.cfg.CameraID)

		if !s.cfg.Queue.TryPush(frame) {
			metrics.IncFramesDropped(s.cfg.CameraID)
		}
		if s.cfg.Slot != nil {
			s.cfg.Slot.Set(frame)
		}

		wait := s.cfg.Interval - time.Since(started)
		if wait <= 0 {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		timer.Reset(wait)
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
	}
}
