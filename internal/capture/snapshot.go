package capture

import (
	"context"
	"fmt"
	"image"
	"io"
	"net/http"

	"github.com/disintegration/imaging"
	"github.com/smazurov/visionnode/internal/cameras"
)

// snapshotSource polls a JPEG or PNG snapshot endpoint, one request per frame.
type snapshotSource struct {
	client   *http.Client
	url      string
	username string
	password string
}

func newSnapshotSource(ctx context.Context, client *http.Client, src cameras.CameraSource) (*snapshotSource, error) {
	s := &snapshotSource{
		client:   client,
		url:      src.URL,
		username: src.Credentials.Username,
		password: src.Credentials.Password,
	}

	// Fail at open rather than on the first read when the endpoint is down
	resp, err := s.get(ctx)
	if err != nil {
		return nil, err
	}
	_ = resp.Body.Close()
	return s, nil
}

func (s *snapshotSource) get(ctx context.Context) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build snapshot request: %w", err)
	}
	if s.username != "" {
		req.SetBasicAuth(s.username, s.password)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("snapshot request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		return nil, fmt.Errorf("snapshot endpoint returned %s", resp.Status)
	}
	return resp, nil
}

func (s *snapshotSource) Read(ctx context.Context) (image.Image, error) {
	resp, err := s.get(ctx)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	img, err := imaging.Decode(resp.Body, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return img, nil
}

func (s *snapshotSource) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
