package capture

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"github.com/smazurov/visionnode/internal/cameras"
)

// ProbeTimeout bounds a connection test.
const ProbeTimeout = 10 * time.Second

// Probe opens a source, reads a single frame and closes it again.
func Probe(ctx context.Context, opener Opener, src cameras.CameraSource) (image.Image, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	source, err := opener.Open(ctx, src)
	if err != nil {
		return nil, err
	}
	defer source.Close()

	img, err := source.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, src.ID, err)
	}
	return img, nil
}

// SaveSnapshot writes img to path, creating the directory if needed.
// The format follows the file extension.
func SaveSnapshot(img image.Image, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
	}
	if err := imaging.Save(img, path, imaging.JPEGQuality(90)); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}
