package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSetStreamStateIsExclusive(t *testing.T) {
	cameraID := "test-cam-state"
	defer DeleteStreamMetrics(cameraID)

	SetStreamState(cameraID, "active")
	SetStreamState(cameraID, "error")

	for _, s := range streamStates {
		want := 0.0
		if s == "error" {
			want = 1
		}
		if got := testutil.ToFloat64(streamState.WithLabelValues(cameraID, s)); got != want {
			t.Errorf("state %s = %v, want %v", s, got, want)
		}
	}
}

func TestFrameCounters(t *testing.T) {
	cameraID := "test-cam-frames"

	before := testutil.ToFloat64(framesDropped.WithLabelValues(cameraID))
	IncFramesDropped(cameraID)
	IncFramesDropped(cameraID)

	if got := testutil.ToFloat64(framesDropped.WithLabelValues(cameraID)); got != before+2 {
		t.Errorf("dropped = %v, want %v", got, before+2)
	}
}

func TestDeliveriesByResult(t *testing.T) {
	okBefore := testutil.ToFloat64(deliveries.WithLabelValues("ok"))
	failedBefore := testutil.ToFloat64(deliveries.WithLabelValues("failed"))

	IncDeliveries(true)
	IncDeliveries(false)
	IncDeliveries(false)

	if got := testutil.ToFloat64(deliveries.WithLabelValues("ok")); got != okBefore+1 {
		t.Errorf("ok deliveries = %v, want %v", got, okBefore+1)
	}
	if got := testutil.ToFloat64(deliveries.WithLabelValues("failed")); got != failedBefore+2 {
		t.Errorf("failed deliveries = %v, want %v", got, failedBefore+2)
	}
}
