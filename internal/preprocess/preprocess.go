// Package preprocess applies per-camera frame preprocessing ahead of analysis.
package preprocess

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/smazurov/visionnode/internal/cameras"
)

// BlurSigma matches a 5x5 Gaussian kernel.
const BlurSigma = 1.1

// ErrNoImage is returned for frames without pixel data.
var ErrNoImage = errors.New("frame has no image")

// Options selects preprocessing steps. Steps run in the order resize,
// grayscale, blur.
type Options struct {
	Width     int
	Height    int
	Resize    bool
	Grayscale bool
	Blur      bool
}

// FromSource builds options from a camera source.
func FromSource(src cameras.CameraSource) (Options, error) {
	w, h, err := src.Dimensions()
	if err != nil {
		return Options{}, err
	}
	return Options{
		Width:     w,
		Height:    h,
		Resize:    src.Preprocess.Resize && w > 0 && h > 0,
		Grayscale: src.Preprocess.Grayscale,
		Blur:      src.Preprocess.Blur,
	}, nil
}

// Enabled reports whether any step is selected.
func (o Options) Enabled() bool {
	return o.Resize || o.Grayscale || o.Blur
}

// Apply runs the selected steps and returns a new image. The input is not
// modified.
func Apply(img image.Image, opts Options) (image.Image, error) {
	if img == nil {
		return nil, ErrNoImage
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: empty bounds %v", ErrNoImage, b)
	}
	if !opts.Enabled() {
		return img, nil
	}

	out := img
	if opts.Resize {
		if opts.Width <= 0 || opts.Height <= 0 {
			return nil, fmt.Errorf("invalid resize target %dx%d", opts.Width, opts.Height)
		}
		if b.Dx() != opts.Width || b.Dy() != opts.Height {
			out = imaging.Resize(out, opts.Width, opts.Height, imaging.Lanczos)
		}
	}
	if opts.Grayscale {
		out = imaging.Grayscale(out)
	}
	if opts.Blur {
		out = imaging.Blur(out, BlurSigma)
	}
	return out, nil
}
