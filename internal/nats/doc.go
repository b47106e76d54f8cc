// Package nats publishes camera events to NATS and accepts stream control
// commands over it.
//
// # Subject Hierarchy
//
//	visionnode.cameras.{camera_id}.detection   # Detection messages
//	visionnode.cameras.{camera_id}.analytics   # Analytics messages
//	visionnode.cameras.{camera_id}.aggregate   # Windowed aggregates
//	visionnode.control.{camera_id}.{action}    # start, stop, restart
//
// Camera ids are sanitized into a single subject token: dots, wildcards and
// whitespace become underscores.
//
// The package uses fire-and-forget messaging (core NATS, no JetStream).
// The sink gracefully degrades when NATS is unavailable: Store is a no-op
// while disconnected and the client keeps reconnecting in the background.
//
// # Useful Debug Commands
//
// Monitor all camera messages:
//
//	nats sub "visionnode.cameras.>"
//
// Monitor aggregates for one camera:
//
//	nats sub "visionnode.cameras.lobby.aggregate"
//
// Restart a stream manually:
//
//	nats pub "visionnode.control.lobby.restart" '{"reason":"manual_debug"}'
//
// # Message Format
//
// Payloads are the JSON encoding of events.Message:
//
//	{
//	  "type": "analytics",
//	  "camera_id": "lobby",
//	  "timestamp": "2024-01-01T12:00:00Z",
//	  "payload": {"object_count": 3, "average_speed": 1.5}
//	}
package nats
