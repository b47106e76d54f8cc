// Package analysis defines the frame analyzer contract used by the
// processing stage and its result types.
package analysis

import (
	"context"
	"errors"

	"github.com/smazurov/visionnode/internal/frames"
)

// ErrAnalysis marks a per-frame analysis failure. It never stops a stream.
var ErrAnalysis = errors.New("frame analysis failed")

// BoundingBox is a detection box in pixel coordinates of the analyzed frame.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Detection is a single detected object.
type Detection struct {
	Label      string      `json:"label"`
	Confidence float64     `json:"confidence"`
	Box        BoundingBox `json:"box"`
}

// Metrics are per-frame analytics. ObjectCount, AverageSpeed and
// DirectionHistogram feed windowed aggregation; Values carries anything else.
type Metrics struct {
	ObjectCount        int                `json:"object_count"`
	AverageSpeed       float64            `json:"average_speed"`
	DirectionHistogram map[string]float64 `json:"direction_histogram,omitempty"`
	Values             map[string]float64 `json:"values,omitempty"`
}

// Empty reports whether the metrics carry no information.
func (m *Metrics) Empty() bool {
	return m == nil ||
		(m.ObjectCount == 0 && m.AverageSpeed == 0 &&
			len(m.DirectionHistogram) == 0 && len(m.Values) == 0)
}

// Result is the output of analyzing one frame. Either part may be empty.
type Result struct {
	Detections []Detection
	Metrics    *Metrics
}

// FrameAnalyzer turns a frame into detections and metrics.
// Implementations must be safe for concurrent use across cameras.
type FrameAnalyzer interface {
	Analyze(ctx context.Context, frame *frames.Frame) (Result, error)
}

// Func adapts a function to FrameAnalyzer.
type Func func(ctx context.Context, frame *frames.Frame) (Result, error)

// Analyze calls f.
func (f Func) Analyze(ctx context.Context, frame *frames.Frame) (Result, error) {
	return f(ctx, frame)
}

// Nop returns empty results for every frame.
var Nop FrameAnalyzer = Func(func(context.Context, *frames.Frame) (Result, error) {
	return Result{}, nil
})
