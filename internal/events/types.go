package events

import (
	"time"

	"github.com/smazurov/visionnode/internal/analysis"
)

// Event type constants for kelindar/event.
const (
	TypeDetection uint32 = iota + 1
	TypeAnalytics
	TypeAggregated
	TypeStreamStateChanged
	TypeStreamMetrics
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// CameraEvent is an event that belongs to a camera and is delivered to
// topic subscribers.
type CameraEvent interface {
	Event
	Camera() string
	Message() Message
}

// DetectionEvent carries the objects found in one frame.
type DetectionEvent struct {
	CameraID   string               `json:"camera_id" example:"lobby" doc:"Camera identifier"`
	FrameSeq   uint64               `json:"frame_seq" doc:"Sequence number of the analyzed frame"`
	Timestamp  time.Time            `json:"timestamp" doc:"Frame capture time"`
	Detections []analysis.Detection `json:"detections" doc:"Detected objects"`
}

// Type returns the event type identifier for DetectionEvent.
func (e DetectionEvent) Type() uint32 { return TypeDetection }

// Camera returns the camera id.
func (e DetectionEvent) Camera() string { return e.CameraID }

// Message converts the event to its wire shape.
func (e DetectionEvent) Message() Message {
	return Message{
		Type:      MessageDetection,
		CameraID:  e.CameraID,
		Timestamp: e.Timestamp,
		Payload:   DetectionPayload{FrameSeq: e.FrameSeq, Detections: e.Detections},
	}
}

// AnalyticsEvent carries the metrics computed for one frame.
type AnalyticsEvent struct {
	CameraID  string           `json:"camera_id" example:"lobby" doc:"Camera identifier"`
	FrameSeq  uint64           `json:"frame_seq" doc:"Sequence number of the analyzed frame"`
	Timestamp time.Time        `json:"timestamp" doc:"Frame capture time"`
	Metrics   analysis.Metrics `json:"metrics" doc:"Frame metrics"`
}

// Type returns the event type identifier for AnalyticsEvent.
func (e AnalyticsEvent) Type() uint32 { return TypeAnalytics }

// Camera returns the camera id.
func (e AnalyticsEvent) Camera() string { return e.CameraID }

// Message converts the event to its wire shape.
func (e AnalyticsEvent) Message() Message {
	return Message{
		Type:      MessageAnalytics,
		CameraID:  e.CameraID,
		Timestamp: e.Timestamp,
		Payload:   e.Metrics,
	}
}

// AggregatedMetrics summarizes a window of analytics events for one camera.
// Each window supersedes the previous one.
type AggregatedMetrics struct {
	CameraID           string             `json:"camera_id" example:"lobby" doc:"Camera identifier"`
	WindowStart        time.Time          `json:"window_start" doc:"Earliest event timestamp in the window"`
	WindowEnd          time.Time          `json:"window_end" doc:"Latest event timestamp in the window"`
	TotalObjects       int                `json:"total_objects" doc:"Sum of per-frame object counts"`
	AverageSpeed       float64            `json:"average_speed" doc:"Mean of per-frame average speeds"`
	DirectionHistogram map[string]float64 `json:"direction_histogram" doc:"Per-direction sums"`
	SampleCount        int                `json:"sample_count" doc:"Analytics events in the window"`
}

// Type returns the event type identifier for AggregatedMetrics.
func (e AggregatedMetrics) Type() uint32 { return TypeAggregated }

// Camera returns the camera id.
func (e AggregatedMetrics) Camera() string { return e.CameraID }

// Message converts the aggregate to its wire shape.
func (e AggregatedMetrics) Message() Message {
	return Message{
		Type:      MessageAggregate,
		CameraID:  e.CameraID,
		Timestamp: e.WindowEnd,
		Payload:   e,
	}
}

// StreamStateChangedEvent is published by the stream registry on every
// state transition.
type StreamStateChangedEvent struct {
	CameraID  string    `json:"camera_id" example:"lobby" doc:"Camera identifier"`
	State     string    `json:"state" example:"active" doc:"New state"`
	Previous  string    `json:"previous" example:"starting" doc:"Previous state"`
	Error     string    `json:"error,omitempty" doc:"Failure that caused an error state"`
	Timestamp time.Time `json:"timestamp" doc:"Transition time"`
}

// Type returns the event type identifier for StreamStateChangedEvent.
func (e StreamStateChangedEvent) Type() uint32 { return TypeStreamStateChanged }

// StreamMetricsEvent is a periodic throughput sample of one active stream.
type StreamMetricsEvent struct {
	CameraID      string    `json:"camera_id" example:"lobby" doc:"Camera identifier"`
	FPS           float64   `json:"fps" doc:"Frames captured per second since the previous sample"`
	ProcessedFPS  float64   `json:"processed_fps" doc:"Frames analyzed per second since the previous sample"`
	FramesDropped uint64    `json:"frames_dropped" doc:"Frames dropped at the queue since the stream started"`
	QueueDepth    int       `json:"queue_depth" doc:"Frames waiting for analysis"`
	Timestamp     time.Time `json:"timestamp" doc:"Sample time"`
}

// Type returns the event type identifier for StreamMetricsEvent.
func (e StreamMetricsEvent) Type() uint32 { return TypeStreamMetrics }
