// Package frames holds the frame type and the buffers frames move through
// between capture and processing.
package frames

import (
	"image"
	"time"
)

// Frame is a decoded image captured from a camera.
type Frame struct {
	CameraID   string
	Seq        uint64
	CapturedAt time.Time
	Image      image.Image
}

// WithImage returns a copy of the frame carrying a different image.
func (f *Frame) WithImage(img image.Image) *Frame {
	clone := *f
	clone.Image = img
	return &clone
}
