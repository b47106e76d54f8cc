package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/smazurov/visionnode/internal/analysis"
	"github.com/smazurov/visionnode/internal/cameras"
	"github.com/smazurov/visionnode/internal/cameras/store"
	"github.com/smazurov/visionnode/internal/events"
	"github.com/smazurov/visionnode/internal/sink/sqlite"
)

func TestParseCapacities(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	got := parseCapacities(" hall=40, gym = 120,bogus,neg=-1,lab=x ", logger)
	want := map[string]int{"hall": 40, "gym": 120}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("capacities mismatch (-want +got):\n%s", diff)
	}

	if got := parseCapacities("", logger); len(got) != 0 {
		t.Errorf("empty input = %v", got)
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"  ", nil},
		{"no_helmet", []string{"no_helmet"}},
		{"no_helmet, no_vest,,", []string{"no_helmet", "no_vest"}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, splitList(tt.in)); diff != "" {
			t.Errorf("splitList(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}

func TestControlResolver(t *testing.T) {
	s := store.NewTOML(filepath.Join(t.TempDir(), "cameras.toml"))
	for _, id := range []string{"site.1", "lobby"} {
		if err := s.Put(cameras.CameraSource{ID: id, Kind: cameras.KindTest}); err != nil {
			t.Fatal(err)
		}
	}

	resolve := controlResolver(s)
	for token, want := range map[string]string{
		"site_1":  "site.1",
		"lobby":   "lobby",
		"unknown": "unknown",
	} {
		if got := resolve(token); got != want {
			t.Errorf("resolve(%q) = %q, want %q", token, got, want)
		}
	}
}

func TestShutdownStoresFinalAggregate(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// The final window is published during Shutdown, so a lost race shows
	// up as a missing aggregate in some rounds only
	for round := range 20 {
		dir := t.TempDir()
		dbPath := filepath.Join(dir, "events.db")
		opts := &Options{
			CamerasConfigFile:        filepath.Join(dir, "cameras.toml"),
			SinkSQLitePath:           dbPath,
			SinkQueueSize:            64,
			AggregationInterval:      time.Hour,
			AggregationMaxBuffered:   16,
			SubscriptionsSendTimeout: time.Second,
			MetricsSampleInterval:    time.Hour,
			MotionStep:               4,
		}
		a, err := newApp(opts, logger)
		if err != nil {
			t.Fatalf("round %d: newApp() error = %v", round, err)
		}
		a.startConsumers()

		cameraID := fmt.Sprintf("lobby-%d", round)
		a.bus.Publish(cameraID, events.AnalyticsEvent{
			CameraID:  cameraID,
			Timestamp: time.Now(),
			Metrics:   analysis.Metrics{ObjectCount: 3},
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		a.Shutdown(ctx)
		cancel()

		history, err := sqlite.Open(dbPath, logger)
		if err != nil {
			t.Fatalf("round %d: reopen history: %v", round, err)
		}
		stored, err := history.Recent(context.Background(), cameraID, "", 10)
		_ = history.Close()
		if err != nil {
			t.Fatalf("round %d: Recent() error = %v", round, err)
		}

		var types []events.MessageType
		for _, r := range stored {
			types = append(types, r.Type)
		}
		want := []events.MessageType{events.MessageAggregate, events.MessageAnalytics}
		if !cmp.Equal(sortedTypes(types), want) {
			t.Fatalf("round %d: stored types = %v, want %v", round, types, want)
		}
	}
}

func sortedTypes(in []events.MessageType) []events.MessageType {
	out := slices.Clone(in)
	slices.Sort(out)
	return out
}
