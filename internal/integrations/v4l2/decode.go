package v4l2

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
)

// Pixel formats understood by the webcam backend (V4L2 fourcc codes).
const (
	FormatMJPEG uint32 = 0x47504A4D // 'MJPG'
	FormatYUYV  uint32 = 0x56595559 // 'YUYV'
)

// decodeFrame turns a raw V4L2 buffer into an image.
func decodeFrame(format uint32, buf []byte, width, height int) (image.Image, error) {
	switch format {
	case FormatMJPEG:
		img, err := jpeg.Decode(bytes.NewReader(buf))
		if err != nil {
			return nil, fmt.Errorf("decode mjpeg frame: %w", err)
		}
		return img, nil
	case FormatYUYV:
		return decodeYUYV(buf, width, height)
	}
	return nil, fmt.Errorf("unsupported pixel format %#x", format)
}

// decodeYUYV unpacks Y0 Cb Y1 Cr quadruples into a 4:2:2 YCbCr image.
func decodeYUYV(buf []byte, width, height int) (image.Image, error) {
	if width <= 0 || height <= 0 || width%2 != 0 {
		return nil, fmt.Errorf("invalid YUYV frame size %dx%d", width, height)
	}
	if len(buf) < width*height*2 {
		return nil, fmt.Errorf("short YUYV frame: %d bytes for %dx%d", len(buf), width, height)
	}

	img := image.NewYCbCr(image.Rect(0, 0, width, height), image.YCbCrSubsampleRatio422)
	for y := 0; y < height; y++ {
		row := buf[y*width*2 : (y+1)*width*2]
		for x := 0; x < width; x += 2 {
			q := row[x*2 : x*2+4]
			img.Y[y*img.YStride+x] = q[0]
			img.Y[y*img.YStride+x+1] = q[2]
			ci := y*img.CStride + x/2
			img.Cb[ci] = q[1]
			img.Cr[ci] = q[3]
		}
	}
	return img, nil
}
