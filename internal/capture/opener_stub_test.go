//go:build !gocv

package capture

import (
	"context"
	"errors"
	"testing"

	"github.com/smazurov/visionnode/internal/cameras"
)

func TestOpenCVSourcesUnavailableWithoutTag(t *testing.T) {
	tests := []cameras.CameraSource{
		{ID: "webcam", Kind: cameras.KindWebcam},
		{ID: "ip", Kind: cameras.KindIP, URL: "rtsp://10.0.0.2/stream"},
		{ID: "video", Kind: cameras.KindFile, Path: "clip.mp4"},
	}

	for _, src := range tests {
		t.Run(src.ID, func(t *testing.T) {
			_, err := newTestOpener().Open(context.Background(), src)
			if !errors.Is(err, ErrSourceUnavailable) {
				t.Errorf("expected ErrSourceUnavailable, got %v", err)
			}
		})
	}
}
