//go:build linux

package v4l2

import (
	"errors"
	"fmt"
	"time"

	"github.com/blackjack/webcam"
	log "github.com/sirupsen/logrus"

	"facegate/internal/capture"
)

// Backend opens /dev/video<index> directly through V4L2.
type Backend struct {
	readTimeout time.Duration
}

// NewBackend creates the raw V4L2 backend.
func NewBackend(readTimeout time.Duration) *Backend {
	return &Backend{readTimeout: readTimeout}
}

// Name returns the strategy name.
func (b *Backend) Name() string { return "webcam" }

// Open opens and starts streaming from /dev/video<index>. MJPEG is preferred
// over YUYV; other formats are rejected.
func (b *Backend) Open(index int) (capture.Device, error) {
	path := fmt.Sprintf("/dev/video%d", index)
	cam, err := webcam.Open(path)
	if err != nil {
		return nil, fmt.Errorf("can not open device %s: %w", path, err)
	}

	format, err := pickFormat(cam.GetSupportedFormats())
	if err != nil {
		cam.Close()
		return nil, err
	}

	f, width, height, err := cam.SetImageFormat(webcam.PixelFormat(format), 640, 480)
	if err != nil {
		cam.Close()
		return nil, fmt.Errorf("can not set image format on %s: %w", path, err)
	}

	if err := cam.StartStreaming(); err != nil {
		cam.Close()
		return nil, fmt.Errorf("can not start streaming on %s: %w", path, err)
	}

	log.WithFields(log.Fields{"component": "v4l2", "device": path}).Debugf("Streaming %dx%d (format %#x)", width, height, uint32(f))

	src := &webcamSource{cam: cam, format: uint32(f), width: int(width), height: int(height), wait: b.readTimeout}
	return capture.NewStreamDevice(src, b.readTimeout), nil
}

func pickFormat(supported map[webcam.PixelFormat]string) (uint32, error) {
	for _, want := range []uint32{FormatMJPEG, FormatYUYV} {
		if _, ok := supported[webcam.PixelFormat(want)]; ok {
			return want, nil
		}
	}
	return 0, errors.New("device supports neither MJPEG nor YUYV")
}

type webcamSource struct {
	cam           *webcam.Webcam
	format        uint32
	width, height int
	wait          time.Duration
}

func (s *webcamSource) Grab() (capture.Frame, error) {
	seconds := uint32(s.wait / time.Second)
	if seconds == 0 {
		seconds = 1
	}

	err := s.cam.WaitForFrame(seconds)
	switch err.(type) {
	case nil:
	case *webcam.Timeout:
		return capture.Frame{}, capture.ErrNoFrame
	default:
		return capture.Frame{}, fmt.Errorf("failed when waiting for frame: %w", err)
	}

	buf, err := s.cam.ReadFrame()
	if err != nil {
		return capture.Frame{}, fmt.Errorf("can not read frame: %w", err)
	}
	if len(buf) == 0 {
		return capture.Frame{}, capture.ErrNoFrame
	}

	img, err := decodeFrame(s.format, buf, s.width, s.height)
	if err != nil {
		return capture.Frame{}, err
	}
	return capture.Frame{Image: img}, nil
}

func (s *webcamSource) Close() error {
	if err := s.cam.StopStreaming(); err != nil {
		log.WithField("component", "v4l2").Debugf("StopStreaming: %v", err)
	}
	return s.cam.Close()
}
