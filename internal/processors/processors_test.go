package processors

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/smazurov/visionnode/internal/analysis"
	"github.com/smazurov/visionnode/internal/events"
)

func detections(cameraID string, at time.Time, labels ...string) events.DetectionEvent {
	ev := events.DetectionEvent{CameraID: cameraID, Timestamp: at}
	for _, l := range labels {
		ev.Detections = append(ev.Detections, analysis.Detection{Label: l, Confidence: 0.9})
	}
	return ev
}

func TestOccupancy(t *testing.T) {
	zones := map[string]string{"cam_hall_a": "main_hall", "cam_hall_b": "main_hall"}
	o := NewOccupancy(map[string]int{"main_hall": 100, "library": 30}, func(id string) string { return zones[id] })

	now := time.Unix(100, 0)
	o.HandleDetection(detections("cam_hall_a", now, "person", "person", "chair"))
	o.HandleDetection(detections("cam_hall_b", now, "person"))
	o.HandleDetection(detections("cam_lobby", now, "person"))
	// Latest frame replaces the camera's count
	o.HandleDetection(detections("cam_hall_a", now.Add(time.Second), "person", "person", "person"))

	snap := o.Snapshot().(OccupancySnapshot)
	got := map[string]int{}
	for _, z := range snap.Zones {
		got[z.ID] = z.Current
	}
	want := map[string]int{"main_hall": 4, "library": 0, "cam_lobby": 1}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("zone counts mismatch (-want +got):\n%s", diff)
	}
	if snap.Total.Current != 5 || snap.Total.Capacity != 130 {
		t.Errorf("unexpected totals %+v", snap.Total)
	}
	if snap.Zones[1].ID != "library" {
		t.Errorf("expected zones sorted by id, got %v", snap.Zones)
	}
}

func TestTraffic(t *testing.T) {
	tr := NewTraffic()
	base := time.Date(2025, 3, 1, 8, 10, 0, 0, time.UTC)

	tr.HandleAnalytics(events.AnalyticsEvent{
		CameraID:  "road",
		Timestamp: base,
		Metrics:   analysis.Metrics{ObjectCount: 10, AverageSpeed: 40},
	})
	tr.HandleAnalytics(events.AnalyticsEvent{
		CameraID:  "road",
		Timestamp: base.Add(time.Hour),
		Metrics: analysis.Metrics{
			ObjectCount:  15,
			AverageSpeed: 30,
			Values:       map[string]float64{"congestion_level": 60},
		},
	})

	snap := tr.Snapshot().(TrafficSnapshot)
	if snap.CurrentFlow != 15 || snap.AverageSpeed != 30 || snap.CongestionLevel != 60 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if snap.FlowChange != 50 {
		t.Errorf("expected flow change 50%%, got %v", snap.FlowChange)
	}
	if diff := cmp.Diff([]HourlyFlow{{Hour: 8, Flow: 10}, {Hour: 9, Flow: 15}}, snap.HourlyData); diff != "" {
		t.Errorf("hourly data mismatch (-want +got):\n%s", diff)
	}
}

func TestSafetyStatus(t *testing.T) {
	tests := []struct {
		violations int
		want       string
	}{
		{0, "normal"},
		{2, "normal"},
		{3, "warning"},
		{5, "warning"},
		{6, "critical"},
	}

	for _, tt := range tests {
		s := NewSafety(nil)
		labels := make([]string, tt.violations)
		for i := range labels {
			labels[i] = "no_helmet"
		}
		s.HandleDetection(detections("site", time.Now(), labels...))

		snap := s.Snapshot().(SafetySnapshot)
		if snap.Status != tt.want {
			t.Errorf("%d violations: expected %s, got %s", tt.violations, tt.want, snap.Status)
		}
	}
}

func TestSafetyRecentEventsNewestFirst(t *testing.T) {
	s := NewSafety([]string{"no_vest"})
	base := time.Unix(0, 0)
	for i := range 15 {
		s.HandleDetection(detections("site", base.Add(time.Duration(i)*time.Second), "no_vest", "person"))
	}

	snap := s.Snapshot().(SafetySnapshot)
	if len(snap.RecentEvents) != 10 {
		t.Fatalf("expected 10 recent events, got %d", len(snap.RecentEvents))
	}
	if !snap.RecentEvents[0].Time.Equal(base.Add(14 * time.Second)) {
		t.Errorf("expected newest event first, got %v", snap.RecentEvents[0].Time)
	}
	if snap.RecentEvents[0].Location != "site" || snap.RecentEvents[0].Description != "no_vest" {
		t.Errorf("unexpected event %+v", snap.RecentEvents[0])
	}
}

func TestAnalytics(t *testing.T) {
	a := NewAnalytics()
	base := time.Unix(1000, 0)

	a.HandleDetection(detections("cam1", base, "car", "car"))
	a.HandleDetection(detections("cam1", base.Add(2*time.Second), "car", "car", "bus", "person"))

	snap := a.Snapshot().(AnalyticsSnapshot)
	if snap.ObjectsDetected != 4 || snap.TotalDetections != 6 {
		t.Errorf("unexpected counts %+v", snap)
	}
	if snap.DetectionRate != 3 {
		t.Errorf("expected 3 detections/s, got %v", snap.DetectionRate)
	}

	// Samples older than a minute leave the rate window
	a.HandleDetection(detections("cam1", base.Add(2*time.Minute), "car"))
	if snap := a.Snapshot().(AnalyticsSnapshot); snap.DetectionRate != 0 {
		t.Errorf("expected rate 0 with a single sample, got %v", snap.DetectionRate)
	}
}

type panicky struct{}

func (panicky) Name() string                          { return "panicky" }
func (panicky) HandleDetection(events.DetectionEvent) { panic("boom") }
func (panicky) HandleAnalytics(events.AnalyticsEvent) {}
func (panicky) Snapshot() any                         { return nil }

func TestRegistryDispatch(t *testing.T) {
	safety := NewSafety(nil)
	r := NewRegistry(nil, panicky{}, safety, NewTraffic())

	bus := events.New()
	defer bus.Close()
	r.Attach(bus)
	defer r.Detach()

	bus.Publish("site", detections("site", time.Now(), "no_helmet", "no_helmet", "no_helmet"))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := r.Snapshot("safety")
		if err != nil {
			t.Fatalf("Snapshot failed: %v", err)
		}
		if snap.(SafetySnapshot).Violations == 3 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	snap, _ := r.Snapshot("safety")
	if got := snap.(SafetySnapshot).Status; got != "warning" {
		t.Errorf("expected warning status, got %s", got)
	}

	if diff := cmp.Diff([]string{"panicky", "safety", "traffic"}, r.Names()); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
	if _, err := r.Snapshot("weather"); !errors.Is(err, ErrUnknownProcessor) {
		t.Errorf("expected ErrUnknownProcessor, got %v", err)
	}
}
