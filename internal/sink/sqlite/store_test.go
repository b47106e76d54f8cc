package sqlite

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/smazurov/visionnode/internal/analysis"
	"github.com/smazurov/visionnode/internal/events"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "events.db"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 27, 10, 30, 0, 0, time.UTC)

	msgs := []events.Message{
		events.AnalyticsEvent{CameraID: "cam1", Timestamp: base, Metrics: analysis.Metrics{ObjectCount: 2}}.Message(),
		events.DetectionEvent{CameraID: "cam1", FrameSeq: 4, Timestamp: base.Add(time.Second),
			Detections: []analysis.Detection{{Label: "person", Confidence: 0.5}}}.Message(),
		events.AnalyticsEvent{CameraID: "cam2", Timestamp: base, Metrics: analysis.Metrics{ObjectCount: 9}}.Message(),
	}
	for _, m := range msgs {
		if err := s.Store(ctx, m); err != nil {
			t.Fatalf("Store failed: %v", err)
		}
	}

	recent, err := s.Recent(ctx, "cam1", "", 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recent))
	}
	if recent[0].Type != events.MessageDetection || !recent[0].Timestamp.Equal(base.Add(time.Second)) {
		t.Errorf("expected newest detection first, got %+v", recent[0])
	}

	var payload events.DetectionPayload
	if err := json.Unmarshal(recent[0].Payload, &payload); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	want := events.DetectionPayload{FrameSeq: 4, Detections: []analysis.Detection{{Label: "person", Confidence: 0.5}}}
	if diff := cmp.Diff(want, payload); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}

	analytics, err := s.Recent(ctx, "cam1", events.MessageAnalytics, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(analytics) != 1 || analytics[0].Type != events.MessageAnalytics {
		t.Errorf("expected one analytics record, got %+v", analytics)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	s, err := Open(path, logger)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.Store(ctx, events.AggregatedMetrics{CameraID: "cam1", WindowEnd: time.Now()}.Message()); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	_ = s.Close()

	// Migrations are already applied on the second open
	s, err = Open(path, logger)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	recent, err := s.Recent(ctx, "cam1", events.MessageAggregate, 0)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 1 {
		t.Errorf("expected 1 record after reopen, got %d", len(recent))
	}
}

func TestPrune(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Unix(1000, 0)

	for i := range 5 {
		msg := events.AnalyticsEvent{CameraID: "cam1", Timestamp: base.Add(time.Duration(i) * time.Minute)}.Message()
		if err := s.Store(ctx, msg); err != nil {
			t.Fatalf("Store failed: %v", err)
		}
	}

	n, err := s.Prune(ctx, base.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 pruned, got %d", n)
	}
	recent, _ := s.Recent(ctx, "cam1", "", 0)
	if len(recent) != 3 {
		t.Errorf("expected 3 remaining, got %d", len(recent))
	}
}
