package analysis

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/smazurov/visionnode/internal/frames"
)

func solid(w, h int, c color.Gray) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = c.Y
	}
	return img
}

func TestMotionFirstFrameIsReference(t *testing.T) {
	m := NewMotionAnalyzer(DefaultMotionConfig())

	res, err := m.Analyze(context.Background(), &frames.Frame{CameraID: "cam1", Image: solid(32, 32, color.Gray{Y: 10})})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(res.Detections) != 0 || !res.Metrics.Empty() {
		t.Errorf("expected empty result for first frame, got %+v", res)
	}
}

func TestMotionDetectsChange(t *testing.T) {
	m := NewMotionAnalyzer(MotionConfig{Step: 1, PixelThreshold: 10, MinRatio: 0.01})
	ctx := context.Background()

	base := solid(20, 20, color.Gray{Y: 0})
	if _, err := m.Analyze(ctx, &frames.Frame{CameraID: "cam1", Image: base}); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	moved := solid(20, 20, color.Gray{Y: 0})
	for y := 5; y < 10; y++ {
		for x := 2; x < 6; x++ {
			moved.SetGray(x, y, color.Gray{Y: 200})
		}
	}

	res, err := m.Analyze(ctx, &frames.Frame{CameraID: "cam1", Image: moved})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if res.Metrics.Empty() {
		t.Fatal("expected motion metrics")
	}
	if got, want := res.Metrics.Values["motion_ratio"], 20.0/400.0; got != want {
		t.Errorf("expected motion ratio %v, got %v", want, got)
	}
	if len(res.Detections) != 1 {
		t.Fatalf("expected 1 detection, got %d", len(res.Detections))
	}
	box := res.Detections[0].Box
	if box.X != 2 || box.Y != 5 || box.Width != 4 || box.Height != 5 {
		t.Errorf("unexpected bounding box %+v", box)
	}
}

func TestMotionCamerasAreIndependent(t *testing.T) {
	m := NewMotionAnalyzer(MotionConfig{Step: 1, PixelThreshold: 10, MinRatio: 0.01})
	ctx := context.Background()

	_, _ = m.Analyze(ctx, &frames.Frame{CameraID: "a", Image: solid(8, 8, color.Gray{Y: 0})})
	res, err := m.Analyze(ctx, &frames.Frame{CameraID: "b", Image: solid(8, 8, color.Gray{Y: 255})})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(res.Detections) != 0 {
		t.Error("first frame of camera b must not be compared against camera a")
	}
}

func TestMotionRejectsEmptyFrame(t *testing.T) {
	m := NewMotionAnalyzer(DefaultMotionConfig())
	if _, err := m.Analyze(context.Background(), &frames.Frame{CameraID: "x"}); !errors.Is(err, ErrAnalysis) {
		t.Errorf("expected ErrAnalysis, got %v", err)
	}
}

func TestMetricsEmpty(t *testing.T) {
	var m *Metrics
	if !m.Empty() {
		t.Error("nil metrics should be empty")
	}
	if (&Metrics{ObjectCount: 1}).Empty() {
		t.Error("metrics with object count should not be empty")
	}
}
