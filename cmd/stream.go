package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"reflect"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/visionnode/internal/aggregation"
	"github.com/smazurov/visionnode/internal/analysis"
	"github.com/smazurov/visionnode/internal/cameras"
	"github.com/smazurov/visionnode/internal/cameras/store"
	"github.com/smazurov/visionnode/internal/capture"
	"github.com/smazurov/visionnode/internal/config"
	"github.com/smazurov/visionnode/internal/events"
	"github.com/smazurov/visionnode/internal/logging"
	"github.com/smazurov/visionnode/internal/streams"
)

// CreateStreamCmd creates the stream command.
func CreateStreamCmd() *cobra.Command {
	var configFile string
	var settingsFile string
	var duration time.Duration
	var logJSON bool

	cmd := &cobra.Command{
		Use:   "stream [camera-id]",
		Short: "Run a single camera pipeline in the foreground",
		Long: `Captures and analyzes one camera without the API server, logging detections and aggregates. ` +
			`Loads the camera from cameras.toml and restarts the pipeline when its definition changes.`,
		Args: cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			cameraID := args[0]

			// Module levels come from the [logging] table of the server config
			loggingConfig := config.LoadLoggingConfig(settingsFile)
			if logJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)
			// Create logger with camera_id context for journal integration
			logger := logging.GetLogger("stream").With("camera_id", cameraID)

			logger.Info("Starting stream command", "config", configFile)
			os.Exit(runStream(cameraID, configFile, duration, logger))
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "cameras.toml", "Path to cameras configuration file")
	cmd.Flags().StringVar(&settingsFile, "settings", "config.toml", "Server configuration file to read [logging] levels from")
	cmd.Flags().DurationVar(&duration, "duration", 0, "Stop after this long (0 runs until interrupted)")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Use JSON log format")

	return cmd
}

// runStream runs the pipeline and returns the process exit code.
func runStream(cameraID, configFile string, duration time.Duration, logger *slog.Logger) int {
	cameraStore := store.NewTOML(configFile)
	if err := cameraStore.Load(); err != nil {
		logger.Error("Failed to load cameras configuration", "error", err, "config", configFile)
		return 1
	}

	// Verify camera exists
	if _, err := cameraStore.Get(cameraID); err != nil {
		logger.Error("Camera not found")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	bus := events.New(events.WithLogger(logging.GetLogger("events")))
	defer bus.Close()

	registry, err := streams.NewRegistry(streams.Options{
		Directory: cameraStore,
		Opener:    capture.NewOpener(capture.OpenerOptions{Logger: logging.GetLogger("capture")}),
		Analyzer:  analysis.NewMotionAnalyzer(analysis.DefaultMotionConfig()),
		Bus:       bus,
	})
	if err != nil {
		logger.Error("Failed to create stream registry", "error", err)
		return 1
	}

	engine := aggregation.New(bus, aggregation.Options{Logger: logging.GetLogger("aggregation")})
	engine.Start(ctx, bus)
	defer engine.Stop()

	failed := make(chan string, 1)
	unsubs := []func(){
		bus.Subscribe(func(ev events.DetectionEvent) {
			if len(ev.Detections) > 0 {
				logger.Debug("Detections", "frame_seq", ev.FrameSeq, "count", len(ev.Detections))
			}
		}),
		bus.Subscribe(func(ev events.AggregatedMetrics) {
			logger.Info("Aggregate",
				"samples", ev.SampleCount,
				"total_objects", ev.TotalObjects,
				"average_speed", ev.AverageSpeed)
		}),
		bus.Subscribe(func(ev events.StreamStateChangedEvent) {
			if ev.State == string(streams.StateError) {
				select {
				case failed <- ev.Error:
				default:
				}
			}
		}),
	}
	defer func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}()

	// Create typed config watcher with fresh config loading
	watcher := config.NewConfigWatcher(
		configFile,
		config.CameraLoader(cameraStore),
		logger,
		config.WithDebounce[[]cameras.CameraSource](1500*time.Millisecond),
		config.WithErrorHandler[[]cameras.CameraSource](func(err error) {
			logger.Warn("Cameras file rejected, pipeline keeps its current definition", "error", err)
		}),
	)

	removed := make(chan struct{}, 1)
	watcher.OnReload(func(list []cameras.CameraSource) {
		var fresh *cameras.CameraSource
		for i := range list {
			if list[i].ID == cameraID {
				fresh = &list[i]
				break
			}
		}
		if fresh == nil {
			logger.Warn("Camera removed from config, shutting down")
			select {
			case removed <- struct{}{}:
			default:
			}
			return
		}

		current, running := registry.Source(cameraID)
		if running && sameSource(current, *fresh) {
			logger.Debug("Config reloaded, camera unchanged")
			return
		}
		logger.Info("Camera changed, restarting stream")
		if restartErr := registry.RestartStream(ctx, cameraID); restartErr != nil {
			logger.Warn("Failed to restart stream", "error", restartErr)
		}
	})

	// Start config watcher (non-fatal if it fails)
	if err := watcher.Start(); err != nil {
		logger.Warn("Failed to start config watcher, hot-reload disabled", "error", err)
	} else {
		defer func() { _ = watcher.Stop() }()
	}

	if err := registry.StartStream(ctx, cameraID); err != nil {
		logger.Error("Failed to start stream", "error", err, "code", streams.Code(err))
		return 1
	}

	exitCode := 0
	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			logger.Info("Duration elapsed")
		}
	case <-removed:
	case reason := <-failed:
		logger.Error("Stream failed", "error", reason)
		exitCode = 1
	}

	// Counters are gone once the session is stopped
	st, _ := registry.GetStatus(cameraID)

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := registry.StopAll(stopCtx); err != nil {
		logger.Warn("Error stopping stream", "error", err)
	}
	// The last window is logged before the subscriptions go away
	drain := func() {
		if err := bus.Drain(stopCtx); err != nil {
			logger.Warn("Events still pending at exit", "error", err)
		}
	}
	drain()
	engine.Stop()
	drain()

	logger.Info("Stream command exiting",
		"exit_code", exitCode,
		"frames_captured", st.FramesCaptured,
		"frames_processed", st.FramesProcessed,
		"frames_dropped", st.FramesDropped)
	return exitCode
}

// sameSource compares camera definitions ignoring bookkeeping timestamps.
func sameSource(a, b cameras.CameraSource) bool {
	a.CreatedAt, a.UpdatedAt = time.Time{}, time.Time{}
	b.CreatedAt, b.UpdatedAt = time.Time{}, time.Time{}
	return reflect.DeepEqual(a, b)
}
