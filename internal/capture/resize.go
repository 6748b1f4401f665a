package capture

import (
	"image"

	"golang.org/x/image/draw"
)

// Downscale shrinks frames wider than minWidth to exactly minWidth pixels,
// preserving the aspect ratio. Narrower frames are returned unchanged.
func Downscale(f Frame, minWidth int) Frame {
	if f.Empty() || minWidth <= 0 || f.Width() <= minWidth {
		return f
	}
	ratio := float64(minWidth) / float64(f.Width())
	height := int(float64(f.Height()) * ratio)
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, minWidth, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), f.Image, f.Image.Bounds(), draw.Src, nil)
	return Frame{Image: dst}
}
