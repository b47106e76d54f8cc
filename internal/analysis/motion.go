package analysis

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/smazurov/visionnode/internal/frames"
)

// MotionConfig tunes the motion analyzer.
type MotionConfig struct {
	// Step samples every Nth pixel in both directions
	Step int
	// PixelThreshold is the luma difference (0-255) counted as change
	PixelThreshold uint8
	// MinRatio is the changed-sample ratio reported as a motion detection
	MinRatio float64
}

// DefaultMotionConfig returns defaults suited to 30 fps sources.
func DefaultMotionConfig() MotionConfig {
	return MotionConfig{
		Step:           4,
		PixelThreshold: 25,
		MinRatio:       0.01,
	}
}

type lumaGrid struct {
	cols, rows int
	values     []uint8
}

// MotionAnalyzer compares each frame with the previous frame of the same
// camera. It reports the changed ratio as a metric and, above MinRatio, a
// "motion" detection bounding the changed area.
type MotionAnalyzer struct {
	cfg  MotionConfig
	mu   sync.Mutex
	prev map[string]*lumaGrid
}

// NewMotionAnalyzer creates a motion analyzer.
func NewMotionAnalyzer(cfg MotionConfig) *MotionAnalyzer {
	if cfg.Step <= 0 {
		cfg.Step = 1
	}
	return &MotionAnalyzer{cfg: cfg, prev: make(map[string]*lumaGrid)}
}

// Analyze implements FrameAnalyzer.
func (m *MotionAnalyzer) Analyze(_ context.Context, frame *frames.Frame) (Result, error) {
	if frame == nil || frame.Image == nil {
		return Result{}, fmt.Errorf("%w: empty frame", ErrAnalysis)
	}

	grid := sampleLuma(frame.Image, m.cfg.Step)
	if grid.cols == 0 || grid.rows == 0 {
		return Result{}, fmt.Errorf("%w: frame has no pixels", ErrAnalysis)
	}

	m.mu.Lock()
	prev := m.prev[frame.CameraID]
	m.prev[frame.CameraID] = grid
	m.mu.Unlock()

	if prev == nil || prev.cols != grid.cols || prev.rows != grid.rows {
		return Result{}, nil
	}

	changed := 0
	minX, minY, maxX, maxY := grid.cols, grid.rows, -1, -1
	for y := range grid.rows {
		for x := range grid.cols {
			i := y*grid.cols + x
			a, b := grid.values[i], prev.values[i]
			diff := a - b
			if b > a {
				diff = b - a
			}
			if diff < m.cfg.PixelThreshold {
				continue
			}
			changed++
			minX, minY = min(minX, x), min(minY, y)
			maxX, maxY = max(maxX, x), max(maxY, y)
		}
	}

	if changed == 0 {
		return Result{}, nil
	}

	ratio := float64(changed) / float64(len(grid.values))
	result := Result{
		Metrics: &Metrics{Values: map[string]float64{"motion_ratio": ratio}},
	}

	if ratio >= m.cfg.MinRatio {
		bounds := frame.Image.Bounds()
		step := float64(m.cfg.Step)
		result.Detections = []Detection{{
			Label:      "motion",
			Confidence: min(1, ratio/m.cfg.MinRatio*0.5),
			Box: BoundingBox{
				X:      float64(bounds.Min.X) + float64(minX)*step,
				Y:      float64(bounds.Min.Y) + float64(minY)*step,
				Width:  float64(maxX-minX+1) * step,
				Height: float64(maxY-minY+1) * step,
			},
		}}
	}
	return result, nil
}

// Forget drops the reference frame kept for a camera.
func (m *MotionAnalyzer) Forget(cameraID string) {
	m.mu.Lock()
	delete(m.prev, cameraID)
	m.mu.Unlock()
}

func sampleLuma(img image.Image, step int) *lumaGrid {
	b := img.Bounds()
	cols := (b.Dx() + step - 1) / step
	rows := (b.Dy() + step - 1) / step
	grid := &lumaGrid{cols: cols, rows: rows, values: make([]uint8, 0, cols*rows)}

	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			r, g, bl, _ := img.At(x, y).RGBA()
			// ITU-R BT.601 luma on 16-bit channels
			luma := (19595*r + 38470*g + 7471*bl + 1<<15) >> 24
			grid.values = append(grid.values, uint8(luma))
		}
	}
	return grid
}
