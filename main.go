package main

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"

	"github.com/smazurov/visionnode/cmd"
	"github.com/smazurov/visionnode/internal/config"
	"github.com/smazurov/visionnode/internal/logging"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port      string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`
	SSEBuffer int    `help:"Per-connection buffer of topic event streams" default:"64" toml:"server.sse_buffer" env:"SERVER_SSE_BUFFER"`

	// Cameras settings
	CamerasConfigFile string `help:"Camera definitions file" default:"cameras.toml" toml:"cameras.config_file" env:"CAMERAS_CONFIG_FILE"`
	CamerasAutostart  bool   `help:"Start every configured camera on startup" default:"false" toml:"cameras.autostart" env:"CAMERAS_AUTOSTART"`

	// Pipeline settings
	PipelineDequeueTimeout time.Duration `help:"Processing dequeue timeout" default:"100ms" toml:"pipeline.dequeue_timeout" env:"PIPELINE_DEQUEUE_TIMEOUT"`
	MotionStep             int           `help:"Motion analyzer sampling step in pixels" default:"4" toml:"pipeline.motion_step" env:"PIPELINE_MOTION_STEP"`
	MotionPixelThreshold   int           `help:"Luma change counted as motion (0-255)" default:"25" toml:"pipeline.motion_pixel_threshold" env:"PIPELINE_MOTION_PIXEL_THRESHOLD"`
	MotionMinPermille      int           `help:"Changed samples per thousand reported as a detection" default:"10" toml:"pipeline.motion_min_permille" env:"PIPELINE_MOTION_MIN_PERMILLE"`

	// Subscription and aggregation settings
	SubscriptionsSendTimeout time.Duration `help:"Per-delivery subscriber timeout" default:"2s" toml:"subscriptions.send_timeout" env:"SUBSCRIPTIONS_SEND_TIMEOUT"`
	AggregationInterval      time.Duration `help:"Aggregation window" default:"60s" toml:"aggregation.interval" env:"AGGREGATION_INTERVAL"`
	AggregationMaxBuffered   int           `help:"Analytics events buffered per camera" default:"1000" toml:"aggregation.max_buffered" env:"AGGREGATION_MAX_BUFFERED"`

	// Module processor settings
	ModulesZoneCapacity string `help:"Occupancy zone capacities as zone=capacity pairs" default:"" toml:"modules.zone_capacity" env:"MODULES_ZONE_CAPACITY"`
	ModulesSafetyLabels string `help:"Detection labels counted as safety violations" default:"" toml:"modules.safety_labels" env:"MODULES_SAFETY_LABELS"`

	// Sink settings
	SinkSQLitePath string        `help:"SQLite event database, empty to disable" default:"events.db" toml:"sink.sqlite_path" env:"SINK_SQLITE_PATH"`
	SinkRetention  time.Duration `help:"Delete stored events older than this, 0 to keep everything" default:"168h" toml:"sink.retention" env:"SINK_RETENTION"`
	SinkQueueSize  int           `help:"Sink worker queue size" default:"1024" toml:"sink.queue_size" env:"SINK_QUEUE_SIZE"`
	NATSURL        string        `help:"NATS server URL, empty to disable" default:"" toml:"nats.url" env:"NATS_URL"`

	// Metrics settings
	MetricsPrometheusEnabled bool          `help:"Expose Prometheus metrics at /metrics" default:"true" toml:"metrics.prometheus_enabled" env:"METRICS_PROMETHEUS_ENABLED"`
	MetricsSampleInterval    time.Duration `help:"Stream throughput sample interval" default:"1s" toml:"metrics.sample_interval" env:"METRICS_SAMPLE_INTERVAL"`

	// Logging settings
	LoggingLevel         string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat        string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingStreams       string `help:"Streams logging level" default:"info" toml:"logging.streams" env:"LOGGING_STREAMS"`
	LoggingCapture       string `help:"Capture logging level" default:"info" toml:"logging.capture" env:"LOGGING_CAPTURE"`
	LoggingPipeline      string `help:"Pipeline logging level" default:"info" toml:"logging.pipeline" env:"LOGGING_PIPELINE"`
	LoggingEvents        string `help:"Event bus logging level" default:"info" toml:"logging.events" env:"LOGGING_EVENTS"`
	LoggingSubscriptions string `help:"Subscriptions logging level" default:"info" toml:"logging.subscriptions" env:"LOGGING_SUBSCRIPTIONS"`
	LoggingAggregation   string `help:"Aggregation logging level" default:"info" toml:"logging.aggregation" env:"LOGGING_AGGREGATION"`
	LoggingSink          string `help:"Sink logging level" default:"info" toml:"logging.sink" env:"LOGGING_SINK"`
	LoggingAPI           string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingProcessors    string `help:"Module processors logging level" default:"info" toml:"logging.processors" env:"LOGGING_PROCESSORS"`
}

func main() {
	var root *cobra.Command

	// Create Huma CLI
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, root); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		// Initialize logging system
		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"streams":       opts.LoggingStreams,
				"capture":       opts.LoggingCapture,
				"pipeline":      opts.LoggingPipeline,
				"events":        opts.LoggingEvents,
				"subscriptions": opts.LoggingSubscriptions,
				"aggregation":   opts.LoggingAggregation,
				"sink":          opts.LoggingSink,
				"nats":          opts.LoggingSink,
				"api":           opts.LoggingAPI,
				"processors":    opts.LoggingProcessors,
			},
		})

		logger := logging.GetLogger("main")

		// OnStop runs on the signal goroutine while OnStart may still be serving
		var running atomic.Pointer[app]
		hooks.OnStart(func() {
			application, err := newApp(opts, logger)
			if err != nil {
				logger.Error("Failed to initialize", "error", err)
				os.Exit(1)
			}
			running.Store(application)
			if startErr := application.Run(); startErr != nil {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			application := running.Load()
			if application == nil {
				return
			}
			logger.Info("Shutting down server")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			application.Shutdown(ctx)
		})
	})

	root = cli.Root()
	root.Use = "visionnode"
	root.Short = "Camera stream processing and real-time analytics fan-out"

	root.AddCommand(cmd.CreateStreamCmd())
	root.AddCommand(cmd.CreateProbeCmd())
	root.AddCommand(cmd.CreateCamerasCmd())
	root.AddCommand(cmd.CreateVersionCmd())

	// Run the CLI
	cli.Run()
}
