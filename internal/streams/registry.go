// Package streams owns the lifecycle of per-camera stream sessions: it opens
// capture handles, runs the capture and processing tasks of each session and
// reports session state.
package streams

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/smazurov/visionnode/internal/analysis"
	"github.com/smazurov/visionnode/internal/cameras"
	"github.com/smazurov/visionnode/internal/capture"
	"github.com/smazurov/visionnode/internal/events"
	"github.com/smazurov/visionnode/internal/frames"
	"github.com/smazurov/visionnode/internal/logging"
	"github.com/smazurov/visionnode/internal/metrics"
	"github.com/smazurov/visionnode/internal/pipeline"
)

// Bus receives the events produced by stream sessions.
type Bus interface {
	pipeline.Publisher
	PublishState(ev events.StreamStateChangedEvent)
}

// Lister is implemented by directories that can enumerate cameras.
type Lister interface {
	List() []cameras.CameraSource
}

// forgetter is implemented by analyzers that keep per-camera state.
type forgetter interface {
	Forget(cameraID string)
}

// Options configures a Registry.
type Options struct {
	Directory cameras.Directory
	Opener    capture.Opener
	Analyzer  analysis.FrameAnalyzer
	Bus       Bus

	// DequeueTimeout is passed to every processing stage
	DequeueTimeout time.Duration
	Logger         *slog.Logger
}

// session is the runtime state of one camera. Fields other than the stages
// are guarded by Registry.mu.
type session struct {
	source    cameras.CameraSource
	state     State
	lastErr   error
	changedAt time.Time
	startedAt time.Time

	queue    *frames.Queue
	slot     *frames.Slot
	pipeline *pipeline.Stage

	cancel context.CancelFunc
	ready  chan struct{} // closed once Starting resolves
	done   chan struct{} // closed once tasks have exited and state is final
}

// Registry is the sole owner of stream sessions. All mutations of the
// session map are serialized by mu; running tasks only observe their
// session context.
type Registry struct {
	dir      cameras.Directory
	opener   capture.Opener
	analyzer analysis.FrameAnalyzer
	bus      Bus
	dequeue  time.Duration
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*session
	closed   bool
}

// NewRegistry creates a stream registry.
func NewRegistry(opts Options) (*Registry, error) {
	if opts.Directory == nil || opts.Opener == nil {
		return nil, errors.New("stream registry: directory and opener are required")
	}
	analyzer := opts.Analyzer
	if analyzer == nil {
		analyzer = analysis.Nop
	}
	bus := opts.Bus
	if bus == nil {
		bus = discardBus{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("streams")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		dir:      opts.Directory,
		opener:   opts.Opener,
		analyzer: analyzer,
		bus:      bus,
		dequeue:  opts.DequeueTimeout,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*session),
	}, nil
}

// StartStream starts the stream of a camera. It is idempotent: an Active
// session is left alone, and concurrent calls share a single start attempt.
// A failure to open the source leaves the session in Error and returns an
// error wrapping ErrSourceUnavailable.
func (r *Registry) StartStream(ctx context.Context, cameraID string) error {
	for {
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return NewStreamError(ErrCodeClosed, cameraID, "registry is shutting down", ErrClosed)
		}

		if s, ok := r.sessions[cameraID]; ok {
			switch s.state {
			case StateActive:
				r.mu.Unlock()
				return nil
			case StateStarting:
				r.mu.Unlock()
				if err := wait(ctx, s.ready); err != nil {
					return err
				}
				r.mu.Lock()
				state, lastErr := s.state, s.lastErr
				r.mu.Unlock()
				if state == StateError {
					return NewStreamError(ErrCodeSourceUnavailable, cameraID, "failed to open camera", lastErr)
				}
				continue
			case StateStopping:
				r.mu.Unlock()
				if err := wait(ctx, s.done); err != nil {
					return err
				}
				continue
			}
			// An Error entry is replaced by the new attempt.
		}

		s, err := r.prepareLocked(cameraID)
		r.mu.Unlock()
		if err != nil {
			return err
		}
		return r.open(ctx, s)
	}
}

// prepareLocked resolves and validates the camera and records a Starting
// session. Nothing is recorded on failure.
func (r *Registry) prepareLocked(cameraID string) (*session, error) {
	src, err := r.dir.Get(cameraID)
	if err != nil {
		if errors.Is(err, cameras.ErrNotFound) {
			return nil, NewStreamError(ErrCodeCameraNotFound, cameraID, "camera is not configured", err)
		}
		return nil, fmt.Errorf("look up camera %s: %w", cameraID, err)
	}
	if err := src.Validate(); err != nil {
		return nil, NewStreamError(ErrCodeConfigInvalid, cameraID, "camera configuration is invalid", err)
	}

	queue := frames.NewQueue(src.QueueCapacity())
	stage, err := pipeline.NewStage(pipeline.StageConfig{
		Camera:         src,
		Queue:          queue,
		Analyzer:       r.analyzer,
		Publisher:      r.bus,
		DequeueTimeout: r.dequeue,
		Logger:         logging.GetLogger("pipeline"),
	})
	if err != nil {
		return nil, NewStreamError(ErrCodeConfigInvalid, cameraID, "camera configuration is invalid", err)
	}

	s := &session{
		source:   src,
		state:    StateInactive,
		queue:    queue,
		slot:     &frames.Slot{},
		pipeline: stage,
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
	}
	r.sessions[cameraID] = s
	r.setStateLocked(s, StateStarting, nil)
	return s, nil
}

// open opens the capture handle outside the lock and launches the tasks.
func (r *Registry) open(ctx context.Context, s *session) error {
	id := s.source.ID
	source, err := r.opener.Open(ctx, s.source)

	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		r.setStateLocked(s, StateError, err)
		close(s.ready)
		close(s.done)
		return NewStreamError(ErrCodeSourceUnavailable, id, "failed to open camera", err)
	}

	sctx, cancel := context.WithCancel(r.ctx)
	g, gctx := errgroup.WithContext(sctx)

	captureStage := capture.NewStage(capture.StageConfig{
		CameraID: id,
		Source:   source,
		Queue:    s.queue,
		Slot:     s.slot,
		Interval: s.source.FrameInterval(),
		Logger:   logging.GetLogger("capture"),
	})
	g.Go(func() error { return captureStage.Run(gctx) })
	g.Go(func() error { return s.pipeline.Run(gctx) })

	s.cancel = cancel
	s.startedAt = time.Now()
	r.setStateLocked(s, StateActive, nil)
	close(s.ready)

	go r.watch(s, g)
	return nil
}

// watch waits for the session tasks and records the final state.
func (r *Registry) watch(s *session, g *errgroup.Group) {
	err := g.Wait()
	s.cancel()

	id := s.source.ID
	if f, ok := r.analyzer.(forgetter); ok {
		f.Forget(id)
	}
	metrics.SetQueueDepth(id, 0)

	r.mu.Lock()
	if s.state == StateStopping {
		if r.sessions[id] == s {
			delete(r.sessions, id)
		}
		r.setStateLocked(s, StateInactive, nil)
	} else {
		if err == nil {
			err = fmt.Errorf("%w: capture ended", ErrSourceUnavailable)
		}
		r.setStateLocked(s, StateError, err)
	}
	r.mu.Unlock()

	close(s.done)
}

// StopStream stops the stream of a camera and waits for its tasks to exit
// and release the capture handle. It is a no-op when nothing is running.
func (r *Registry) StopStream(ctx context.Context, cameraID string) error {
	for {
		r.mu.Lock()
		s, ok := r.sessions[cameraID]
		if !ok {
			r.mu.Unlock()
			return nil
		}

		switch s.state {
		case StateStarting:
			r.mu.Unlock()
			if err := wait(ctx, s.ready); err != nil {
				return err
			}
			continue
		case StateError:
			delete(r.sessions, cameraID)
			r.setStateLocked(s, StateInactive, nil)
			r.mu.Unlock()
			return nil
		case StateActive:
			r.setStateLocked(s, StateStopping, nil)
			s.cancel()
		}
		r.mu.Unlock()

		return wait(ctx, s.done)
	}
}

// RestartStream stops and starts the stream, picking up configuration changes.
func (r *Registry) RestartStream(ctx context.Context, cameraID string) error {
	r.logger.Info("Restarting stream", "camera_id", cameraID)

	if err := r.StopStream(ctx, cameraID); err != nil {
		return fmt.Errorf("failed to stop stream: %w", err)
	}
	return r.StartStream(ctx, cameraID)
}

// StartAll starts the given cameras. Failures are logged and joined.
func (r *Registry) StartAll(ctx context.Context, cameraIDs []string) error {
	r.logger.Info("Starting streams", "total_streams", len(cameraIDs))

	var startErrors []error
	for _, id := range cameraIDs {
		if err := r.StartStream(ctx, id); err != nil {
			r.logger.Error("Failed to start stream", "camera_id", id, "error", err)
			startErrors = append(startErrors, err)
		}
	}
	return errors.Join(startErrors...)
}

// StopAll stops every session and refuses further starts. Called on shutdown.
func (r *Registry) StopAll(ctx context.Context) error {
	r.logger.Info("Stopping all streams")

	r.mu.Lock()
	r.closed = true
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	var stopErrors []error
	for _, id := range ids {
		if err := r.StopStream(ctx, id); err != nil {
			r.logger.Error("Failed to stop stream", "camera_id", id, "error", err)
			stopErrors = append(stopErrors, fmt.Errorf("stream %s: %w", id, err))
		}
	}
	r.cancel()

	r.logger.Info("All streams stopped")
	return errors.Join(stopErrors...)
}

// GetStatus reports the state of a camera's stream. Cameras unknown to the
// directory fail with ErrNotFound unless a session is still recorded.
func (r *Registry) GetStatus(cameraID string) (Status, error) {
	r.mu.Lock()
	s, ok := r.sessions[cameraID]
	var st Status
	if ok {
		st = s.statusLocked()
	}
	r.mu.Unlock()
	if ok {
		return st, nil
	}

	if _, err := r.dir.Get(cameraID); err != nil {
		if errors.Is(err, cameras.ErrNotFound) {
			return Status{}, NewStreamError(ErrCodeCameraNotFound, cameraID, "camera is not configured", err)
		}
		return Status{}, err
	}
	return Status{CameraID: cameraID, State: StateInactive}, nil
}

// List reports every running or failed session, plus every configured
// camera when the directory can enumerate them. Sorted by camera id.
func (r *Registry) List() []Status {
	r.mu.Lock()
	byID := make(map[string]Status, len(r.sessions))
	for id, s := range r.sessions {
		byID[id] = s.statusLocked()
	}
	r.mu.Unlock()

	if l, ok := r.dir.(Lister); ok {
		for _, src := range l.List() {
			if _, exists := byID[src.ID]; !exists {
				byID[src.ID] = Status{CameraID: src.ID, State: StateInactive}
			}
		}
	}

	list := make([]Status, 0, len(byID))
	for _, st := range byID {
		list = append(list, st)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CameraID < list[j].CameraID })
	return list
}

// LatestFrame returns the most recently captured frame of an active stream.
func (r *Registry) LatestFrame(cameraID string) (*frames.Frame, error) {
	r.mu.Lock()
	s, ok := r.sessions[cameraID]
	active := ok && s.state == StateActive
	r.mu.Unlock()

	if !active {
		return nil, NewStreamError(ErrCodeNotStreaming, cameraID, "stream is not active", ErrNotStreaming)
	}
	frame, ok := s.slot.Get()
	if !ok {
		return nil, NewStreamError(ErrCodeNotStreaming, cameraID, "no frame captured yet", ErrNotStreaming)
	}
	return frame, nil
}

// Source returns the configuration a running session was started with.
func (r *Registry) Source(cameraID string) (cameras.CameraSource, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[cameraID]
	if !ok {
		return cameras.CameraSource{}, false
	}
	return s.source, true
}

// Modules returns the module topics of a running session, used to derive
// module topics on publish.
func (r *Registry) Modules(cameraID string) []string {
	src, ok := r.Source(cameraID)
	if !ok {
		return nil
	}
	return src.Modules
}

func (r *Registry) setStateLocked(s *session, state State, err error) {
	prev := s.state
	s.state = state
	s.changedAt = time.Now()
	switch {
	case err != nil:
		s.lastErr = err
	case state != StateError:
		s.lastErr = nil
	}

	id := s.source.ID
	metrics.SetStreamState(id, string(state))
	if err != nil {
		r.logger.Warn("Stream state changed", "camera_id", id, "state", state, "previous", prev, "error", err)
	} else {
		r.logger.Info("Stream state changed", "camera_id", id, "state", state, "previous", prev)
	}

	ev := events.StreamStateChangedEvent{
		CameraID:  id,
		State:     string(state),
		Previous:  string(prev),
		Timestamp: s.changedAt,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	r.bus.PublishState(ev)
}

type discardBus struct{}

func (discardBus) Publish(string, events.CameraEvent)          {}
func (discardBus) PublishState(events.StreamStateChangedEvent) {}

func wait(ctx context.Context, ch <-chan struct{}) error {
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
