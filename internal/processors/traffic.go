package processors

import (
	"sync"
	"time"

	"github.com/smazurov/visionnode/internal/events"
)

const maxHourlyPoints = 24

// HourlyFlow is the first flow observed in an hour.
type HourlyFlow struct {
	Hour int `json:"hour"`
	Flow int `json:"flow"`
}

// TrafficSnapshot is the traffic module state.
type TrafficSnapshot struct {
	CurrentFlow     int          `json:"current_flow"`
	AverageSpeed    float64      `json:"average_speed"`
	CongestionLevel float64      `json:"congestion_level"`
	FlowChange      float64      `json:"flow_change"`
	HourlyData      []HourlyFlow `json:"hourly_data"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// Traffic tracks flow, speed and congestion from analytics events. The
// congestion level is read from the "congestion_level" metric value.
type Traffic struct {
	mu   sync.Mutex
	snap TrafficSnapshot
}

// NewTraffic creates a traffic processor.
func NewTraffic() *Traffic { return &Traffic{} }

// Name implements Processor.
func (t *Traffic) Name() string { return "traffic" }

// HandleDetection implements Processor.
func (t *Traffic) HandleDetection(events.DetectionEvent) {}

// HandleAnalytics implements Processor.
func (t *Traffic) HandleAnalytics(ev events.AnalyticsEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.snap.CurrentFlow = ev.Metrics.ObjectCount
	t.snap.AverageSpeed = ev.Metrics.AverageSpeed
	if v, ok := ev.Metrics.Values["congestion_level"]; ok {
		t.snap.CongestionLevel = v
	}
	t.snap.UpdatedAt = ev.Timestamp

	hour := ev.Timestamp.Hour()
	n := len(t.snap.HourlyData)
	if n == 0 || t.snap.HourlyData[n-1].Hour != hour {
		t.snap.HourlyData = append(t.snap.HourlyData, HourlyFlow{Hour: hour, Flow: ev.Metrics.ObjectCount})
		if len(t.snap.HourlyData) > maxHourlyPoints {
			t.snap.HourlyData = t.snap.HourlyData[1:]
		}
	}

	t.snap.FlowChange = 0
	if n := len(t.snap.HourlyData); n > 1 {
		if prev := t.snap.HourlyData[n-2].Flow; prev > 0 {
			t.snap.FlowChange = float64(t.snap.CurrentFlow-prev) / float64(prev) * 100
		}
	}
}

// Snapshot implements Processor.
func (t *Traffic) Snapshot() any {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap := t.snap
	snap.HourlyData = append([]HourlyFlow(nil), t.snap.HourlyData...)
	return snap
}
