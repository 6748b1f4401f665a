package opencv

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"facegate/internal/capture"
)

// Hint is drawn on every preview frame.
const Hint = "commit: POST .../commit   cancel: POST .../cancel"

var (
	green  = color.RGBA{0, 255, 0, 0}
	yellow = color.RGBA{255, 255, 0, 0}
)

// OverlayRenderer draws face boxes and the operator hint onto preview frames.
type OverlayRenderer struct{}

// Render returns the frame as JPEG with one rectangle per observation.
func (OverlayRenderer) Render(frame capture.Frame, observations []capture.FaceObservation) ([]byte, error) {
	mat, err := gocv.ImageToMatRGB(frame.Image)
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	defer mat.Close()

	for _, obs := range observations {
		gocv.Rectangle(&mat, obs.Box.Rect(), green, 2)
	}

	status := fmt.Sprintf("faces: %d", len(observations))
	statusColor := green
	if len(observations) != 1 {
		statusColor = yellow
	}
	gocv.PutText(&mat, Hint, image.Pt(10, 25), gocv.FontHersheySimplex, 0.5, green, 1)
	gocv.PutText(&mat, status, image.Pt(10, 50), gocv.FontHersheySimplex, 0.6, statusColor, 2)

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	defer buf.Close()

	// GetBytes aliases native memory; copy before Close.
	return append([]byte(nil), buf.GetBytes()...), nil
}
