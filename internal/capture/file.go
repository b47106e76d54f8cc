package capture

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/smazurov/visionnode/internal/cameras"
)

// fileSource replays a single image or a directory of images in name order,
// looping forever.
type fileSource struct {
	paths  []string
	next   int
	single image.Image
}

func newFileSource(src cameras.CameraSource) (*fileSource, error) {
	info, err := os.Stat(src.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", src.Path, err)
	}

	if !info.IsDir() {
		img, openErr := imaging.Open(src.Path, imaging.AutoOrientation(true))
		if openErr != nil {
			return nil, fmt.Errorf("failed to open image %s: %w", src.Path, openErr)
		}
		return &fileSource{single: img}, nil
	}

	entries, err := os.ReadDir(src.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", src.Path, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, fmtErr := imaging.FormatFromFilename(e.Name()); fmtErr != nil {
			continue
		}
		paths = append(paths, filepath.Join(src.Path, e.Name()))
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no images found in %s", src.Path)
	}
	sort.Slice(paths, func(i, j int) bool {
		return strings.ToLower(paths[i]) < strings.ToLower(paths[j])
	})
	return &fileSource{paths: paths}, nil
}

func (f *fileSource) Read(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.single != nil {
		return f.single, nil
	}

	path := f.paths[f.next]
	f.next = (f.next + 1) % len(f.paths)

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image %s: %w", path, err)
	}
	return img, nil
}

func (f *fileSource) Close() error { return nil }
