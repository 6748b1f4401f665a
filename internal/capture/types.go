package capture

import (
	"context"
	"fmt"
	"image"
	"math"
)

// Frame is a single image read from a capture device. Frames are treated as
// immutable once read.
type Frame struct {
	Image image.Image
}

// Empty reports whether the frame carries no pixels.
func (f Frame) Empty() bool {
	return f.Image == nil || f.Image.Bounds().Empty()
}

// Width returns the frame width in pixels.
func (f Frame) Width() int {
	if f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dx()
}

// Height returns the frame height in pixels.
func (f Frame) Height() int {
	if f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dy()
}

// BoundingBox locates a face inside a frame, in pixel coordinates.
type BoundingBox struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// Rect converts the box to an image.Rectangle.
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.Left, b.Top, b.Right, b.Bottom)
}

// Embedding is a fixed-length face descriptor produced by an Oracle.
type Embedding []float64

// Distance returns the Euclidean distance between two embeddings. Both must
// have the same dimensionality.
func (e Embedding) Distance(other Embedding) float64 {
	if len(e) != len(other) {
		panic(fmt.Sprintf("capture: embedding dimension mismatch (%d vs %d)", len(e), len(other)))
	}
	var sum float64
	for i := range e {
		d := e[i] - other[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// FaceObservation is one face found in a frame.
type FaceObservation struct {
	Box       BoundingBox
	Embedding Embedding
}

// Oracle detects faces in a frame and derives one embedding per face.
// Implementations must be deterministic for identical input.
type Oracle interface {
	Evaluate(ctx context.Context, frame Frame) ([]FaceObservation, error)
}

// OracleFunc adapts a plain function to the Oracle interface.
type OracleFunc func(ctx context.Context, frame Frame) ([]FaceObservation, error)

// Evaluate calls f.
func (f OracleFunc) Evaluate(ctx context.Context, frame Frame) ([]FaceObservation, error) {
	return f(ctx, frame)
}
