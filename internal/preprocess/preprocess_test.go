package preprocess

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/smazurov/visionnode/internal/cameras"
)

func TestApply(t *testing.T) {
	src := imaging.New(64, 48, color.NRGBA{R: 200, G: 40, B: 10, A: 255})

	tests := []struct {
		name       string
		opts       Options
		wantWidth  int
		wantHeight int
		wantGray   bool
	}{
		{name: "passthrough", opts: Options{}, wantWidth: 64, wantHeight: 48},
		{name: "resize", opts: Options{Resize: true, Width: 32, Height: 24}, wantWidth: 32, wantHeight: 24},
		{name: "grayscale", opts: Options{Grayscale: true}, wantWidth: 64, wantHeight: 48, wantGray: true},
		{name: "all", opts: Options{Resize: true, Width: 16, Height: 12, Grayscale: true, Blur: true}, wantWidth: 16, wantHeight: 12, wantGray: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Apply(src, tt.opts)
			if err != nil {
				t.Fatalf("Apply failed: %v", err)
			}
			b := out.Bounds()
			if b.Dx() != tt.wantWidth || b.Dy() != tt.wantHeight {
				t.Errorf("expected %dx%d, got %dx%d", tt.wantWidth, tt.wantHeight, b.Dx(), b.Dy())
			}
			r, g, bl, _ := out.At(b.Dx()/2, b.Dy()/2).RGBA()
			isGray := r == g && g == bl
			if isGray != tt.wantGray {
				t.Errorf("expected gray=%v, got rgb=(%d,%d,%d)", tt.wantGray, r, g, bl)
			}
		})
	}
}

func TestApplyDoesNotModifyInput(t *testing.T) {
	src := imaging.New(8, 8, color.NRGBA{R: 255, A: 255})
	if _, err := Apply(src, Options{Grayscale: true, Blur: true}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if got := src.NRGBAAt(4, 4); got.R != 255 || got.G != 0 {
		t.Errorf("input was modified: %+v", got)
	}
}

func TestApplyErrors(t *testing.T) {
	if _, err := Apply(nil, Options{Grayscale: true}); !errors.Is(err, ErrNoImage) {
		t.Errorf("expected ErrNoImage for nil image, got %v", err)
	}
	if _, err := Apply(image.NewGray(image.Rect(0, 0, 0, 0)), Options{}); !errors.Is(err, ErrNoImage) {
		t.Errorf("expected ErrNoImage for empty image, got %v", err)
	}
	if _, err := Apply(image.NewGray(image.Rect(0, 0, 4, 4)), Options{Resize: true}); err == nil {
		t.Error("expected error for resize without target")
	}
}

func TestFromSource(t *testing.T) {
	opts, err := FromSource(cameras.CameraSource{
		Resolution: "640x360",
		Preprocess: cameras.Preprocess{Resize: true, Blur: true},
	})
	if err != nil {
		t.Fatalf("FromSource failed: %v", err)
	}
	want := Options{Width: 640, Height: 360, Resize: true, Blur: true}
	if opts != want {
		t.Errorf("expected %+v, got %+v", want, opts)
	}
}
