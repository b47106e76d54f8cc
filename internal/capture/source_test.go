package capture

import (
	"context"
	"errors"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/smazurov/visionnode/internal/cameras"
)

func newTestOpener() Opener {
	return NewOpener(OpenerOptions{Logger: discardLogger()})
}

func TestPatternSource(t *testing.T) {
	ctx := context.Background()
	src, err := newTestOpener().Open(ctx, cameras.CameraSource{ID: "t", Kind: cameras.KindTest, Resolution: "320x240"})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer src.Close()

	first, err := src.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if b := first.Bounds(); b.Dx() != 320 || b.Dy() != 240 {
		t.Errorf("expected 320x240, got %dx%d", b.Dx(), b.Dy())
	}

	second, _ := src.Read(ctx)
	if imagesEqual(first, second) {
		t.Error("expected consecutive pattern frames to differ")
	}
}

func TestFileSourceDirectoryLoops(t *testing.T) {
	dir := t.TempDir()
	shades := []uint8{10, 120, 240}
	for i, shade := range shades {
		img := imaging.New(8, 8, color.NRGBA{R: shade, G: shade, B: shade, A: 255})
		name := filepath.Join(dir, string(rune('a'+i))+".png")
		if err := imaging.Save(img, name); err != nil {
			t.Fatalf("failed to write image: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	src, err := newTestOpener().Open(ctx, cameras.CameraSource{ID: "f", Kind: cameras.KindFile, Path: dir})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer src.Close()

	for i := range 2 * len(shades) {
		img, readErr := src.Read(ctx)
		if readErr != nil {
			t.Fatalf("Read %d failed: %v", i, readErr)
		}
		r, _, _, _ := img.At(0, 0).RGBA()
		if got, want := uint8(r>>8), shades[i%len(shades)]; got != want {
			t.Errorf("read %d: expected shade %d, got %d", i, want, got)
		}
	}
}

func TestFileSourceEmptyDirectory(t *testing.T) {
	_, err := newTestOpener().Open(context.Background(), cameras.CameraSource{ID: "f", Kind: cameras.KindFile, Path: t.TempDir()})
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("expected ErrSourceUnavailable, got %v", err)
	}
}

func TestSnapshotSource(t *testing.T) {
	var gotUser string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _, _ = r.BasicAuth()
		w.Header().Set("Content-Type", "image/png")
		_ = imaging.Encode(w, imaging.New(16, 9, color.NRGBA{R: 255, A: 255}), imaging.PNG)
	}))
	defer server.Close()

	ctx := context.Background()
	src, err := newTestOpener().Open(ctx, cameras.CameraSource{
		ID:          "snap",
		Kind:        cameras.KindHTTP,
		URL:         server.URL,
		Credentials: cameras.Credentials{Username: "viewer", Password: "secret"},
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer src.Close()

	img, err := src.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 16 || b.Dy() != 9 {
		t.Errorf("expected 16x9, got %dx%d", b.Dx(), b.Dy())
	}
	if gotUser != "viewer" {
		t.Errorf("expected basic auth user viewer, got %q", gotUser)
	}
}

func TestSnapshotSourceUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "offline", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newTestOpener().Open(context.Background(), cameras.CameraSource{ID: "snap", Kind: cameras.KindHTTP, URL: server.URL})
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("expected ErrSourceUnavailable, got %v", err)
	}
}

func TestProbe(t *testing.T) {
	img, err := Probe(context.Background(), newTestOpener(), cameras.CameraSource{ID: "t", Kind: cameras.KindTest})
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}

	out := filepath.Join(t.TempDir(), "snaps", "probe.jpg")
	if err := SaveSnapshot(img, out); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if info, err := os.Stat(out); err != nil || info.Size() == 0 {
		t.Errorf("expected snapshot at %s", out)
	}
}

func TestProbeRejectsInvalidSource(t *testing.T) {
	_, err := Probe(context.Background(), newTestOpener(), cameras.CameraSource{ID: "x", Kind: cameras.KindIP})
	if !errors.Is(err, cameras.ErrConfigInvalid) {
		t.Errorf("expected ErrConfigInvalid, got %v", err)
	}
}

func imagesEqual(a, b image.Image) bool {
	if a.Bounds() != b.Bounds() {
		return false
	}
	bounds := a.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if a.At(x, y) != b.At(x, y) {
				return false
			}
		}
	}
	return true
}
