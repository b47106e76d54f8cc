package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/smazurov/visionnode/internal/aggregation"
	"github.com/smazurov/visionnode/internal/analysis"
	"github.com/smazurov/visionnode/internal/api"
	"github.com/smazurov/visionnode/internal/cameras"
	"github.com/smazurov/visionnode/internal/cameras/store"
	"github.com/smazurov/visionnode/internal/capture"
	"github.com/smazurov/visionnode/internal/config"
	"github.com/smazurov/visionnode/internal/events"
	"github.com/smazurov/visionnode/internal/logging"
	"github.com/smazurov/visionnode/internal/metrics/exporters"
	"github.com/smazurov/visionnode/internal/nats"
	"github.com/smazurov/visionnode/internal/processors"
	"github.com/smazurov/visionnode/internal/sink"
	"github.com/smazurov/visionnode/internal/sink/sqlite"
	"github.com/smazurov/visionnode/internal/streams"
	"github.com/smazurov/visionnode/internal/subscriptions"
)

// app owns every long-lived component of the server.
type app struct {
	opts   *Options
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	cameras  cameras.Store
	watcher  *config.Watcher[[]cameras.CameraSource]
	subs     *subscriptions.Registry
	bus      *events.Bus
	registry *streams.Registry
	engine   *aggregation.Engine
	modules  *processors.Registry
	sinks    sink.Multi
	history  *sqlite.Store
	worker   *sink.Worker
	stats    *exporters.StatsExporter
	server   *api.Server
}

func newApp(opts *Options, logger *slog.Logger) (*app, error) {
	a := &app{opts: opts, logger: logger}
	a.ctx, a.cancel = context.WithCancel(context.Background())

	// Camera directory, reloaded when the file changes
	cameraStore := store.NewTOML(opts.CamerasConfigFile)
	if err := cameraStore.Load(); err != nil {
		logger.Warn("Failed to load cameras configuration", "error", err, "config", opts.CamerasConfigFile)
	}
	a.cameras = cameraStore

	watcher, err := config.WatchCameras(opts.CamerasConfigFile, cameraStore, logging.GetLogger("config"))
	if err != nil {
		logger.Warn("Failed to start cameras watcher, hot-reload disabled", "error", err)
	}
	a.watcher = watcher

	a.subs = subscriptions.NewRegistry(subscriptions.Options{
		SendTimeout: opts.SubscriptionsSendTimeout,
		Logger:      logging.GetLogger("subscriptions"),
	})

	// Module topics come from the running session's configuration
	a.bus = events.New(
		events.WithDeliverer(a.subs),
		events.WithTopics(func(cameraID string) []string { return a.registry.Modules(cameraID) }),
		events.WithLogger(logging.GetLogger("events")),
	)

	motion := analysis.NewMotionAnalyzer(analysis.MotionConfig{
		Step:           opts.MotionStep,
		PixelThreshold: uint8(min(max(opts.MotionPixelThreshold, 0), 255)),
		MinRatio:       float64(opts.MotionMinPermille) / 1000,
	})

	a.registry, err = streams.NewRegistry(streams.Options{
		Directory:      cameraStore,
		Opener:         capture.NewOpener(capture.OpenerOptions{Logger: logging.GetLogger("capture")}),
		Analyzer:       motion,
		Bus:            a.bus,
		DequeueTimeout: opts.PipelineDequeueTimeout,
		Logger:         logging.GetLogger("streams"),
	})
	if err != nil {
		a.closeEarly()
		return nil, fmt.Errorf("create stream registry: %w", err)
	}

	a.engine = aggregation.New(a.bus, aggregation.Options{
		Interval:    opts.AggregationInterval,
		MaxBuffered: opts.AggregationMaxBuffered,
		Logger:      logging.GetLogger("aggregation"),
	})

	zoneOf := func(cameraID string) string {
		if cam, getErr := cameraStore.Get(cameraID); getErr == nil {
			return cam.Zone
		}
		return ""
	}
	a.modules = processors.NewRegistry(logging.GetLogger("processors"),
		processors.NewOccupancy(parseCapacities(opts.ModulesZoneCapacity, logger), zoneOf),
		processors.NewTraffic(),
		processors.NewSafety(splitList(opts.ModulesSafetyLabels)),
		processors.NewAnalytics(),
	)

	features := []string{}
	if capture.VideoSupported {
		features = append(features, "gocv")
	}

	if opts.SinkSQLitePath != "" {
		a.history, err = sqlite.Open(opts.SinkSQLitePath, logging.GetLogger("sink"))
		if err != nil {
			a.closeEarly()
			return nil, fmt.Errorf("open event database %s: %w", opts.SinkSQLitePath, err)
		}
		a.sinks = append(a.sinks, a.history)
		features = append(features, "sqlite")
	}

	var broker api.BrokerStatus
	if opts.NATSURL != "" {
		natsSink := nats.NewSink(opts.NATSURL, logging.GetLogger("nats"))
		natsSink.ServeControl(a.registry, controlResolver(cameraStore))
		if connErr := natsSink.Connect(); connErr != nil {
			logger.Warn("NATS unavailable, running in offline mode", "error", connErr, "url", opts.NATSURL)
		}
		a.sinks = append(a.sinks, natsSink)
		broker = natsSink
		features = append(features, "nats")
	}

	a.worker = sink.NewWorker(a.sinks, sink.WorkerOptions{
		Name:      "events",
		QueueSize: opts.SinkQueueSize,
		Logger:    logging.GetLogger("sink"),
	})

	a.stats = exporters.NewStatsExporter(a.registry, a.bus, opts.MetricsSampleInterval)

	apiOpts := api.Options{
		Streams:       a.registry,
		Subscriptions: a.subs,
		Bus:           a.bus,
		Modules:       a.modules,
		Broker:        broker,
		SSEBuffer:     opts.SSEBuffer,
		Features:      features,
	}
	if a.history != nil {
		apiOpts.History = a.history
	}
	if opts.MetricsPrometheusEnabled {
		apiOpts.PrometheusHandler = exporters.HTTPHandler()
	}
	a.server = api.NewServer(apiOpts)
	return a, nil
}

// Run starts the consumers, autostarts cameras and serves the API until
// Shutdown.
func (a *app) Run() error {
	a.startConsumers()

	if a.opts.CamerasAutostart {
		list := a.cameras.List()
		ids := make([]string, 0, len(list))
		for _, cam := range list {
			ids = append(ids, cam.ID)
		}
		if err := a.registry.StartAll(a.ctx, ids); err != nil {
			a.logger.Warn("Some cameras failed to start", "error", err)
		}
	}

	return a.server.Start(a.opts.Port)
}

// startConsumers attaches every bus consumer. It runs before any stream
// can publish.
func (a *app) startConsumers() {
	a.engine.Start(a.ctx, a.bus)
	a.modules.Attach(a.bus)
	a.worker.Attach(a.bus)
	a.worker.Start(a.ctx)
	a.stats.Start(a.ctx)
	if a.history != nil && a.opts.SinkRetention > 0 {
		go pruneHistory(a.ctx, a.history, a.opts.SinkRetention, logging.GetLogger("sink"))
	}
}

// Shutdown stops the API first, then the streams, then their consumers so
// that final events still reach the sinks.
func (a *app) Shutdown(ctx context.Context) {
	if err := a.server.Stop(ctx); err != nil {
		a.logger.Error("Error stopping HTTP server", "error", err)
	}
	if err := a.registry.StopAll(ctx); err != nil {
		a.logger.Error("Error stopping streams", "error", err)
	}

	a.stats.Stop()

	// Last analytics reach the engine before its final window
	a.drainBus(ctx)
	a.engine.Stop()
	a.modules.Detach()
	// Final aggregates and detections reach the worker before it unsubscribes
	a.drainBus(ctx)
	a.worker.Stop()
	a.cancel()

	if err := a.sinks.Close(); err != nil {
		a.logger.Error("Error closing sinks", "error", err)
	}
	a.closeEarly()
}

func (a *app) drainBus(ctx context.Context) {
	if err := a.bus.Drain(ctx); err != nil {
		a.logger.Error("Error draining event bus", "error", err)
	}
}

// closeEarly releases what newApp created before the sinks.
func (a *app) closeEarly() {
	a.cancel()
	if a.subs != nil {
		a.subs.Close()
	}
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			a.logger.Error("Error closing event bus", "error", err)
		}
	}
	if a.watcher != nil {
		_ = a.watcher.Stop()
	}
}

// controlResolver maps NATS subject tokens back to camera ids.
func controlResolver(dir cameras.Store) func(token string) string {
	return func(token string) string {
		for _, cam := range dir.List() {
			if nats.Token(cam.ID) == token {
				return cam.ID
			}
		}
		return token
	}
}

func pruneHistory(ctx context.Context, store *sqlite.Store, retention time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		if n, err := store.Prune(ctx, time.Now().Add(-retention)); err != nil {
			logger.Warn("Failed to prune event history", "error", err)
		} else if n > 0 {
			logger.Info("Pruned event history", "deleted", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// parseCapacities parses "zone=capacity" pairs separated by commas.
func parseCapacities(pairs string, logger *slog.Logger) map[string]int {
	out := map[string]int{}
	for _, pair := range splitList(pairs) {
		zone, value, ok := strings.Cut(pair, "=")
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if !ok || err != nil || n < 0 {
			logger.Warn("Ignoring invalid zone capacity", "value", pair)
			continue
		}
		out[strings.TrimSpace(zone)] = n
	}
	return out
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
