package exporters

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/smazurov/visionnode/internal/events"
	"github.com/smazurov/visionnode/internal/metrics"
	"github.com/smazurov/visionnode/internal/streams"
)

type staticLister struct {
	statuses []streams.Status
}

func (l *staticLister) List() []streams.Status { return l.statuses }

type collectingPublisher struct {
	got []events.StreamMetricsEvent
}

func (p *collectingPublisher) PublishMetrics(ev events.StreamMetricsEvent) {
	p.got = append(p.got, ev)
}

func TestStatsExporterComputesRates(t *testing.T) {
	lister := &staticLister{}
	pub := &collectingPublisher{}
	exp := NewStatsExporter(lister, pub, time.Second)

	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	lister.statuses = []streams.Status{
		{CameraID: "lobby", IsStreaming: true, FramesCaptured: 100, FramesProcessed: 90},
		{CameraID: "dock", State: streams.StateInactive},
	}
	exp.publish(t0)
	if len(pub.got) != 0 {
		t.Fatalf("baseline sample published %d events", len(pub.got))
	}

	lister.statuses[0].FramesCaptured = 130
	lister.statuses[0].FramesProcessed = 110
	lister.statuses[0].FramesDropped = 4
	lister.statuses[0].QueueDepth = 2
	exp.publish(t0.Add(2 * time.Second))

	want := []events.StreamMetricsEvent{{
		CameraID:      "lobby",
		FPS:           15,
		ProcessedFPS:  10,
		FramesDropped: 4,
		QueueDepth:    2,
	}}
	if diff := cmp.Diff(want, pub.got, cmpopts.IgnoreFields(events.StreamMetricsEvent{}, "Timestamp")); diff != "" {
		t.Errorf("samples mismatch (-want +got):\n%s", diff)
	}
}

func TestStatsExporterRebaselinesAfterRestart(t *testing.T) {
	lister := &staticLister{statuses: []streams.Status{
		{CameraID: "lobby", IsStreaming: true, FramesCaptured: 500, FramesProcessed: 500},
	}}
	pub := &collectingPublisher{}
	exp := NewStatsExporter(lister, pub, time.Second)

	t0 := time.Now()
	exp.publish(t0)

	lister.statuses[0].FramesCaptured = 10
	lister.statuses[0].FramesProcessed = 10
	exp.publish(t0.Add(time.Second))
	if len(pub.got) != 0 {
		t.Fatalf("reset counters published %d events", len(pub.got))
	}

	lister.statuses[0].FramesCaptured = 40
	lister.statuses[0].FramesProcessed = 30
	exp.publish(t0.Add(2 * time.Second))
	if len(pub.got) != 1 || pub.got[0].FPS != 30 {
		t.Errorf("unexpected samples: %+v", pub.got)
	}
}

func TestStatsExporterForgetsStoppedStreams(t *testing.T) {
	lister := &staticLister{statuses: []streams.Status{
		{CameraID: "lobby", IsStreaming: true, FramesCaptured: 1},
	}}
	exp := NewStatsExporter(lister, &collectingPublisher{}, 0)
	if exp.interval != DefaultStatsInterval {
		t.Errorf("interval = %v", exp.interval)
	}

	exp.publish(time.Now())
	lister.statuses = nil
	exp.publish(time.Now())
	if len(exp.last) != 0 {
		t.Errorf("stale baselines kept: %v", exp.last)
	}
}

// hasStateSeries reports whether the stream state gauge has series for cameraID.
func hasStateSeries(t *testing.T, cameraID string) bool {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range families {
		if mf.GetName() != "visionnode_streams_state" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "camera_id" && l.GetValue() == cameraID {
					return true
				}
			}
		}
	}
	return false
}

func TestStatsExporterDropsGaugesOfRemovedCameras(t *testing.T) {
	metrics.SetStreamState("stats-removed", "active")
	metrics.SetStreamState("stats-failed", "error")
	defer metrics.DeleteStreamMetrics("stats-failed")

	lister := &staticLister{statuses: []streams.Status{
		{CameraID: "stats-removed", IsStreaming: true},
		{CameraID: "stats-failed", State: streams.StateError},
	}}
	exp := NewStatsExporter(lister, &collectingPublisher{}, time.Second)
	exp.publish(time.Now())

	// The failed camera stays listed, the other one is gone
	lister.statuses = lister.statuses[1:]
	exp.publish(time.Now())

	if hasStateSeries(t, "stats-removed") {
		t.Error("removed camera still exports a state gauge")
	}
	if !hasStateSeries(t, "stats-failed") {
		t.Error("camera in error lost its state gauge")
	}
}
