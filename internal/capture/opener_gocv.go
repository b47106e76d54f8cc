//go:build gocv

package capture

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/smazurov/visionnode/internal/cameras"
	"gocv.io/x/gocv"
)

// videoSource reads frames through an OpenCV VideoCapture.
type videoSource struct {
	vc   *gocv.VideoCapture
	mat  gocv.Mat
	loop bool
}

// VideoSupported reports whether webcam, ip and video file sources can be opened.
const VideoSupported = true

func openDevice(src cameras.CameraSource) (Source, error) {
	vc, err := gocv.VideoCaptureDevice(src.DeviceIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to open device %d: %w", src.DeviceIndex, err)
	}
	return newVideoSource(vc, src, false)
}

func openStream(src cameras.CameraSource) (Source, error) {
	vc, err := gocv.OpenVideoCapture(src.StreamURL())
	if err != nil {
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}
	// Keep latency low, stale buffered frames are useless for live analysis
	vc.Set(gocv.VideoCaptureBufferSize, 1)
	return newVideoSource(vc, src, false)
}

func openVideoFile(src cameras.CameraSource) (Source, error) {
	vc, err := gocv.VideoCaptureFile(src.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open video file %s: %w", src.Path, err)
	}
	return newVideoSource(vc, src, true)
}

func newVideoSource(vc *gocv.VideoCapture, src cameras.CameraSource, loop bool) (Source, error) {
	if !vc.IsOpened() {
		_ = vc.Close()
		return nil, errors.New("video capture is not opened")
	}

	w, h, err := src.Dimensions()
	if err != nil {
		_ = vc.Close()
		return nil, err
	}
	if w > 0 && h > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(w))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(h))
	}
	if src.FrameRate > 0 {
		vc.Set(gocv.VideoCaptureFPS, float64(src.FrameRate))
	}

	return &videoSource{vc: vc, mat: gocv.NewMat(), loop: loop}, nil
}

func (v *videoSource) Read(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if ok := v.vc.Read(&v.mat); !ok || v.mat.Empty() {
		if !v.loop {
			return nil, errors.New("failed to read frame")
		}
		// Rewind at end of file
		v.vc.Set(gocv.VideoCapturePosFrames, 0)
		if ok := v.vc.Read(&v.mat); !ok || v.mat.Empty() {
			return nil, errors.New("failed to read frame after rewind")
		}
	}

	img, err := v.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to convert frame: %w", err)
	}
	return img, nil
}

func (v *videoSource) Close() error {
	_ = v.mat.Close()
	return v.vc.Close()
}
