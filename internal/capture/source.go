// Package capture opens camera sources and runs the capture stage that
// pulls decoded frames into a stream's bounded queue.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"time"

	"github.com/smazurov/visionnode/internal/cameras"
	"github.com/smazurov/visionnode/internal/logging"
)

// ErrSourceUnavailable is returned when a source cannot be opened or a read fails.
var ErrSourceUnavailable = errors.New("capture source unavailable")

// Source is an open capture handle. It is owned by a single capture task
// and is not safe for concurrent use.
type Source interface {
	// Read returns the next decoded frame. Errors are fatal for the session.
	Read(ctx context.Context) (image.Image, error)

	// Close releases the underlying device, connection or file.
	Close() error
}

// Opener opens capture handles for camera sources.
type Opener interface {
	Open(ctx context.Context, source cameras.CameraSource) (Source, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, source cameras.CameraSource) (Source, error)

// Open calls f.
func (f OpenerFunc) Open(ctx context.Context, source cameras.CameraSource) (Source, error) {
	return f(ctx, source)
}

// OpenerOptions configures the default opener.
type OpenerOptions struct {
	// HTTPClient is used by http snapshot sources
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type opener struct {
	client *http.Client
	logger *slog.Logger
}

// NewOpener returns the opener for all built-in source kinds.
func NewOpener(opts OpenerOptions) Opener {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("capture")
	}
	return &opener{client: client, logger: logger}
}

// Open dispatches on the source kind.
func (o *opener) Open(ctx context.Context, src cameras.CameraSource) (Source, error) {
	var (
		s   Source
		err error
	)
	switch src.Kind {
	case cameras.KindTest:
		s, err = newPatternSource(src)
	case cameras.KindHTTP:
		s, err = newSnapshotSource(ctx, o.client, src)
	case cameras.KindFile:
		if src.IsVideoFile() {
			s, err = openVideoFile(src)
		} else {
			s, err = newFileSource(src)
		}
	case cameras.KindWebcam:
		s, err = openDevice(src)
	case cameras.KindIP:
		s, err = openStream(src)
	default:
		err = fmt.Errorf("unsupported source kind %q", src.Kind)
	}
	if err != nil {
		if errors.Is(err, ErrSourceUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, src.ID, err)
	}

	o.logger.Debug("Opened capture source", "camera_id", src.ID, "kind", src.Kind)
	return s, nil
}
