//go:build !gocv

package capture

import (
	"fmt"

	"github.com/smazurov/visionnode/internal/cameras"
)

// VideoSupported reports whether webcam, ip and video file sources can be opened.
const VideoSupported = false

func openDevice(src cameras.CameraSource) (Source, error) {
	return nil, needsOpenCV(src)
}

func openStream(src cameras.CameraSource) (Source, error) {
	return nil, needsOpenCV(src)
}

func openVideoFile(src cameras.CameraSource) (Source, error) {
	return nil, needsOpenCV(src)
}

func needsOpenCV(src cameras.CameraSource) error {
	return fmt.Errorf("%w: %s: %s sources require a build with -tags gocv",
		ErrSourceUnavailable, src.ID, src.Kind)
}
