package camera

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"math"
	"time"
)

// Synthetic renders a test pattern with a marker circling the frame.
type Synthetic struct {
	Width   int
	Height  int
	FPS     int
	Quality int
}

// NewSynthetic executes the newSynthetic function.
func NewSynthetic(width, height, fps, quality int) *Synthetic {
	if width <= 0 {
		width = 640
	}
	if height <= 0 {
		height = 480
	}
	if fps <= 0 {
		fps = 30
	}
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	return &Synthetic{Width: width, Height: height, FPS: fps, Quality: quality}
}

// Run renders frames at FPS. A sink error ends the run.
func (s *Synthetic) Run(ctx context.Context, sink io.Writer) error {
	ticker := time.NewTicker(time.Second / time.Duration(s.FPS))
	defer ticker.Stop()

	img := image.NewRGBA(image.Rect(0, 0, s.Width, s.Height))
	var buf bytes.Buffer
	for n := 0; ; n++ {
		buf.Reset()
		if err := s.render(img, n, &buf); err != nil {
			return err
		}
		if _, err := sink.Write(buf.Bytes()); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Frame encodes frame n of the pattern.
func (s *Synthetic) Frame(n int) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, s.Width, s.Height))
	var buf bytes.Buffer
	if err := s.render(img, n, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Synthetic) render(img *image.RGBA, n int, w io.Writer) error {
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		shade := uint8(40 + 80*y/bounds.Dy())
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 20, G: shade, B: uint8(60 + 100*x/bounds.Dx()), A: 255})
		}
	}

	// one lap every 4 seconds
	angle := 2 * math.Pi * float64(n) / float64(4*s.FPS)
	cx := bounds.Dx()/2 + int(float64(bounds.Dx())/3*math.Cos(angle))
	cy := bounds.Dy()/2 + int(float64(bounds.Dy())/3*math.Sin(angle))
	r := bounds.Dy() / 12
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= r*r && image.Pt(x, y).In(bounds) {
				img.SetRGBA(x, y, color.RGBA{R: 230, G: 40, B: 40, A: 255})
			}
		}
	}
	return jpeg.Encode(w, img, &jpeg.Options{Quality: s.Quality})
}
