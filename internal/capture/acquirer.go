package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Device is an opened camera. Read blocks until a frame arrives, the
// device's own read timeout elapses (ErrNoFrame) or ctx is done.
type Device interface {
	Read(ctx context.Context) (Frame, error)
	Close() error
}

// Backend opens devices with one strategy (a capture API or driver).
type Backend interface {
	Name() string
	Open(index int) (Device, error)
}

// AcquirerOptions tunes the probe that decides whether an opened device is usable.
type AcquirerOptions struct {
	ProbeWindow   time.Duration
	ProbeInterval time.Duration
}

// Acquirer opens a camera by trying its backends in order until one yields a frame.
type Acquirer struct {
	backends      []Backend
	probeWindow   time.Duration
	probeInterval time.Duration
}

// NewAcquirer creates an Acquirer. Zero option values fall back to 2s / 50ms.
func NewAcquirer(backends []Backend, opts AcquirerOptions) *Acquirer {
	if opts.ProbeWindow <= 0 {
		opts.ProbeWindow = 2 * time.Second
	}
	if opts.ProbeInterval <= 0 {
		opts.ProbeInterval = 50 * time.Millisecond
	}
	return &Acquirer{
		backends:      backends,
		probeWindow:   opts.ProbeWindow,
		probeInterval: opts.ProbeInterval,
	}
}

// Strategies lists the configured backend names in try order.
func (a *Acquirer) Strategies() []string {
	names := make([]string, 0, len(a.backends))
	for _, b := range a.backends {
		names = append(names, b.Name())
	}
	return names
}

// Open returns the first device that delivers a non-empty frame within the
// probe window. Devices that fail the probe are closed before the next
// strategy is tried. The returned Handle must be closed by the caller.
func (a *Acquirer) Open(ctx context.Context, index int) (*Handle, error) {
	logger := log.WithFields(log.Fields{"component": "acquirer", "device_index": index})

	for _, backend := range a.backends {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		dev, err := backend.Open(index)
		if err != nil {
			logger.WithError(err).Debugf("Strategy %s could not open device", backend.Name())
			continue
		}

		if a.probe(ctx, dev) {
			logger.Infof("Camera opened with strategy %s", backend.Name())
			return newHandle(index, backend.Name(), dev), nil
		}

		logger.Debugf("Strategy %s opened device but yielded no frame within %s", backend.Name(), a.probeWindow)
		if err := dev.Close(); err != nil {
			logger.WithError(err).Warnf("Failed to release device after probe (strategy %s)", backend.Name())
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, &CameraOpenError{DeviceIndex: index, Strategies: a.Strategies()}
}

func (a *Acquirer) probe(ctx context.Context, dev Device) bool {
	deadline := time.Now().Add(a.probeWindow)
	probeCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	for time.Now().Before(deadline) {
		frame, err := dev.Read(probeCtx)
		if err == nil && !frame.Empty() {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		select {
		case <-probeCtx.Done():
			return false
		case <-time.After(a.probeInterval):
		}
	}
	return false
}

// Warmup discards n frames so exposure and white balance can settle. Read
// failures are ignored.
func Warmup(ctx context.Context, dev Device, n int) {
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			return
		}
		_, _ = dev.Read(ctx)
	}
}

// Handle is an acquired device. Close releases the underlying device exactly once.
type Handle struct {
	Index    int
	Strategy string

	dev      Device
	once     sync.Once
	closeErr error
}

func newHandle(index int, strategy string, dev Device) *Handle {
	return &Handle{Index: index, Strategy: strategy, dev: dev}
}

// Read reads one frame from the underlying device.
func (h *Handle) Read(ctx context.Context) (Frame, error) {
	return h.dev.Read(ctx)
}

// Released is closed once the underlying device no longer holds the camera.
// Devices that release synchronously in Close report released immediately.
func (h *Handle) Released() <-chan struct{} {
	if r, ok := h.dev.(interface{ Released() <-chan struct{} }); ok {
		return r.Released()
	}
	return closedChan
}

var closedChan = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

// Close releases the device. Subsequent calls return the first result.
func (h *Handle) Close() error {
	h.once.Do(func() {
		if err := h.dev.Close(); err != nil {
			h.closeErr = fmt.Errorf("release camera %d (%s): %w", h.Index, h.Strategy, err)
		}
	})
	return h.closeErr
}

// IsUnavailable reports whether err means no camera strategy succeeded.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrDeviceUnavailable)
}
