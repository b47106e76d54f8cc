// Package logging configures slog for visionnode with one level per module.
//
// Call Initialize once from main, then ask for module loggers:
//
//	logging.Initialize(logging.Config{
//		Level:   "info",
//		Format:  "json",
//		Modules: map[string]string{"capture": "debug", "api": "warn"},
//	})
//
//	logger := logging.GetLogger("capture").With("camera_id", cameraID)
//	logger.Warn("Frame read failed", "error", err)
//
// Module names in use: streams, capture, pipeline, events, subscriptions,
// aggregation, processors, sink, nats, api, config, main, and stream for the
// foreground command. A module without an override follows the global level.
//
// Records go to stdout (text or JSON), and to journald when the process runs
// under systemd, so per-camera filtering works there too:
//
//	journalctl -t visionnode MODULE=pipeline CAMERA_ID=lobby
//
// A copy of every record is kept in a ring buffer served by /api/logs.
//
// The server reads module levels from the [logging] table of config.toml:
//
//	[logging]
//	level = "info"
//	streams = "debug"
//	sink = "warn"
package logging
