package preview

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	"facegate/internal/capture"
)

var (
	boxSingle   = color.RGBA{0, 255, 0, 255}
	boxMultiple = color.RGBA{255, 255, 0, 255}
)

// JPEGRenderer zeichnet Gesichtsrahmen ohne OpenCV
type JPEGRenderer struct {
	Quality int
}

// Render kopiert das Bild, zeichnet pro Beobachtung einen Rahmen und kodiert als JPEG
func (r JPEGRenderer) Render(frame capture.Frame, observations []capture.FaceObservation) ([]byte, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	bounds := frame.Image.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(canvas, canvas.Bounds(), frame.Image, bounds.Min, draw.Src)

	c := boxSingle
	if len(observations) != 1 {
		c = boxMultiple
	}
	for _, obs := range observations {
		strokeRect(canvas, obs.Box.Rect(), c, 2)
	}

	quality := r.Quality
	if quality <= 0 {
		quality = 80
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode preview frame: %w", err)
	}
	return buf.Bytes(), nil
}

func strokeRect(dst *image.RGBA, rect image.Rectangle, c color.Color, width int) {
	rect = rect.Intersect(dst.Bounds())
	if rect.Empty() {
		return
	}
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+width),
		image.Rect(rect.Min.X, rect.Max.Y-width, rect.Max.X, rect.Max.Y),
		image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+width, rect.Max.Y),
		image.Rect(rect.Max.X-width, rect.Min.Y, rect.Max.X, rect.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(rect), src, image.Point{}, draw.Src)
	}
}
