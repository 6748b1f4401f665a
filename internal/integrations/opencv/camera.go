package opencv

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"facegate/internal/capture"
)

// apis maps strategy names to OpenCV capture API preferences.
var apis = map[string]gocv.VideoCaptureAPI{
	"any":       gocv.VideoCaptureAny,
	"v4l2":      gocv.VideoCaptureV4L2,
	"msmf":      gocv.VideoCaptureMSMF,
	"dshow":     gocv.VideoCaptureDshow,
	"gstreamer": gocv.VideoCaptureGstreamer,
	"ffmpeg":    gocv.VideoCaptureFFmpeg,
}

// Supported reports whether name is an OpenCV capture strategy.
func Supported(name string) bool {
	_, ok := apis[name]
	return ok
}

// Backend opens cameras through OpenCV with one API preference.
type Backend struct {
	name        string
	api         gocv.VideoCaptureAPI
	readTimeout time.Duration
}

// NewBackend creates a Backend for the named strategy.
func NewBackend(name string, readTimeout time.Duration) (*Backend, error) {
	api, ok := apis[name]
	if !ok {
		return nil, fmt.Errorf("unknown OpenCV capture strategy %q", name)
	}
	return &Backend{name: name, api: api, readTimeout: readTimeout}, nil
}

// Name returns the strategy name.
func (b *Backend) Name() string { return b.name }

// Open opens the camera at index.
func (b *Backend) Open(index int) (capture.Device, error) {
	vc, err := gocv.VideoCaptureDeviceWithAPI(index, b.api)
	if err != nil {
		return nil, fmt.Errorf("open camera %d via %s: %w", index, b.name, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("camera %d not opened via %s", index, b.name)
	}
	log.WithFields(log.Fields{"component": "opencv", "device_index": index}).Debugf("VideoCapture opened via %s", b.name)
	return capture.NewStreamDevice(&videoSource{vc: vc, mat: gocv.NewMat()}, b.readTimeout), nil
}

// videoSource grabs frames from a gocv.VideoCapture.
type videoSource struct {
	vc  *gocv.VideoCapture
	mat gocv.Mat
}

func (s *videoSource) Grab() (capture.Frame, error) {
	if ok := s.vc.Read(&s.mat); !ok || s.mat.Empty() {
		return capture.Frame{}, capture.ErrNoFrame
	}
	img, err := s.mat.ToImage()
	if err != nil {
		return capture.Frame{}, fmt.Errorf("convert frame: %w", err)
	}
	return capture.Frame{Image: img}, nil
}

func (s *videoSource) Close() error {
	s.mat.Close()
	return s.vc.Close()
}
