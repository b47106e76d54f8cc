package capture

import (
	"context"
	"image"
	"image/color"
	"image/draw"

	"github.com/smazurov/visionnode/internal/cameras"
)

const (
	patternWidth  = 640
	patternHeight = 480
)

// patternSource generates color bars with a box sweeping across them so
// motion analysis has something to find.
type patternSource struct {
	bars  *image.RGBA
	box   image.Rectangle
	frame int
}

var barColors = []color.RGBA{
	{192, 192, 192, 255},
	{192, 192, 0, 255},
	{0, 192, 192, 255},
	{0, 192, 0, 255},
	{192, 0, 192, 255},
	{192, 0, 0, 255},
	{0, 0, 192, 255},
}

func newPatternSource(src cameras.CameraSource) (*patternSource, error) {
	w, h, err := src.Dimensions()
	if err != nil {
		return nil, err
	}
	if w == 0 || h == 0 {
		w, h = patternWidth, patternHeight
	}

	bars := image.NewRGBA(image.Rect(0, 0, w, h))
	barWidth := max(1, w/len(barColors))
	for i, c := range barColors {
		r := image.Rect(i*barWidth, 0, (i+1)*barWidth, h)
		if i == len(barColors)-1 {
			r.Max.X = w
		}
		draw.Draw(bars, r, &image.Uniform{C: c}, image.Point{}, draw.Src)
	}

	side := max(1, min(w, h)/6)
	return &patternSource{
		bars: bars,
		box:  image.Rect(0, (h-side)/2, side, (h+side)/2),
	}, nil
}

func (p *patternSource) Read(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := p.bars.Bounds()
	img := image.NewRGBA(b)
	copy(img.Pix, p.bars.Pix)

	span := b.Dx() - p.box.Dx()
	offset := 0
	if span > 0 {
		offset = (p.frame * 8) % span
	}
	draw.Draw(img, p.box.Add(image.Pt(offset, 0)), image.White, image.Point{}, draw.Src)
	p.frame++
	return img, nil
}

func (p *patternSource) Close() error { return nil }
