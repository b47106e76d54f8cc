package processors

import (
	"sync"
	"time"

	"github.com/smazurov/visionnode/internal/events"
)

const detectionRateWindow = time.Minute

// AnalyticsSnapshot is the analytics module state.
type AnalyticsSnapshot struct {
	ObjectsDetected int       `json:"objects_detected"`
	TotalDetections int       `json:"total_detections"`
	DetectionRate   float64   `json:"detection_rate"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type detectionSample struct {
	at    time.Time
	count int
}

// Analytics reports objects detected in the latest frame and the detection
// rate over the last minute of event time.
type Analytics struct {
	mu      sync.Mutex
	latest  int
	total   int
	samples []detectionSample
	updated time.Time
}

// NewAnalytics creates an analytics processor.
func NewAnalytics() *Analytics { return &Analytics{} }

// Name implements Processor.
func (a *Analytics) Name() string { return "analytics" }

// HandleDetection implements Processor.
func (a *Analytics) HandleDetection(ev events.DetectionEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := len(ev.Detections)
	a.latest = n
	a.total += n
	a.updated = ev.Timestamp
	a.samples = append(a.samples, detectionSample{at: ev.Timestamp, count: n})

	cutoff := ev.Timestamp.Add(-detectionRateWindow)
	i := 0
	for i < len(a.samples) && a.samples[i].at.Before(cutoff) {
		i++
	}
	a.samples = a.samples[i:]
}

// HandleAnalytics implements Processor.
func (a *Analytics) HandleAnalytics(events.AnalyticsEvent) {}

// Snapshot implements Processor.
func (a *Analytics) Snapshot() any {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := AnalyticsSnapshot{
		ObjectsDetected: a.latest,
		TotalDetections: a.total,
		UpdatedAt:       a.updated,
	}
	if len(a.samples) > 1 {
		span := a.samples[len(a.samples)-1].at.Sub(a.samples[0].at).Seconds()
		if span > 0 {
			sum := 0
			for _, s := range a.samples {
				sum += s.count
			}
			snap.DetectionRate = float64(sum) / span
		}
	}
	return snap
}
