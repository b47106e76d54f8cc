package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stream states reported by the stream state gauge.
var streamStates = []string{"inactive", "starting", "active", "stopping", "error"}

var (
	framesCaptured = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "visionnode",
		Subsystem: "capture",
		Name:      "frames_captured_total",
		Help:      "Frames read from camera sources",
	}, []string{"camera_id"})

	framesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "visionnode",
		Subsystem: "capture",
		Name:      "frames_dropped_total",
		Help:      "Frames dropped because the frame queue was full",
	}, []string{"camera_id"})

	framesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "visionnode",
		Subsystem: "pipeline",
		Name:      "frames_processed_total",
		Help:      "Frames analyzed by the processing stage",
	}, []string{"camera_id"})

	analysisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "visionnode",
		Subsystem: "pipeline",
		Name:      "analysis_errors_total",
		Help:      "Frames skipped because analysis failed",
	}, []string{"camera_id"})

	queueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "visionnode",
		Subsystem: "pipeline",
		Name:      "queue_depth",
		Help:      "Frames waiting in the per-camera queue",
	}, []string{"camera_id"})

	streamState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "visionnode",
		Subsystem: "streams",
		Name:      "state",
		Help:      "Stream state, 1 for the current state of each camera",
	}, []string{"camera_id", "state"})
)

// IncFramesCaptured counts a frame read from a camera.
func IncFramesCaptured(cameraID string) {
	framesCaptured.WithLabelValues(cameraID).Inc()
}

// IncFramesDropped counts a frame dropped at the queue.
func IncFramesDropped(cameraID string) {
	framesDropped.WithLabelValues(cameraID).Inc()
}

// IncFramesProcessed counts an analyzed frame.
func IncFramesProcessed(cameraID string) {
	framesProcessed.WithLabelValues(cameraID).Inc()
}

// IncAnalysisErrors counts a failed analysis.
func IncAnalysisErrors(cameraID string) {
	analysisErrors.WithLabelValues(cameraID).Inc()
}

// SetQueueDepth sets the current queue depth for a camera.
func SetQueueDepth(cameraID string, depth int) {
	queueDepth.WithLabelValues(cameraID).Set(float64(depth))
}

// SetStreamState marks state as the current state of a camera.
func SetStreamState(cameraID, state string) {
	for _, s := range streamStates {
		v := 0.0
		if s == state {
			v = 1
		}
		streamState.WithLabelValues(cameraID, s).Set(v)
	}
}

// DeleteStreamMetrics removes per-camera gauges once a stream is gone.
// Counters are kept so rates stay continuous across restarts.
func DeleteStreamMetrics(cameraID string) {
	queueDepth.DeleteLabelValues(cameraID)
	for _, s := range streamStates {
		streamState.DeleteLabelValues(cameraID, s)
	}
}
