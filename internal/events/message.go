package events

import (
	"time"

	"github.com/smazurov/visionnode/internal/analysis"
)

// MessageType is the type discriminator of a delivered message.
type MessageType string

// Message types.
const (
	MessageDetection MessageType = "detection"
	MessageAnalytics MessageType = "analytics"
	MessageAggregate MessageType = "aggregate"
)

// Message is what subscribers and sinks receive.
type Message struct {
	Type      MessageType `json:"type" enum:"detection,analytics,aggregate" doc:"Message type"`
	CameraID  string      `json:"camera_id" doc:"Camera identifier"`
	Timestamp time.Time   `json:"timestamp" doc:"Event time"`
	Payload   any         `json:"payload" doc:"Detections, metrics or aggregate"`
}

// DetectionPayload is the payload of detection messages.
type DetectionPayload struct {
	FrameSeq   uint64               `json:"frame_seq"`
	Detections []analysis.Detection `json:"detections"`
}

// AggregateTopic returns the topic that carries a camera's aggregates.
func AggregateTopic(cameraID string) string {
	return cameraID + "/aggregate"
}
