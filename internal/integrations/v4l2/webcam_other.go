//go:build !linux

package v4l2

import (
	"errors"
	"time"

	"facegate/internal/capture"
)

// Backend is unavailable outside Linux; Open always fails so the acquirer
// moves on to the next strategy.
type Backend struct{}

// NewBackend creates the placeholder backend.
func NewBackend(time.Duration) *Backend { return &Backend{} }

// Name returns the strategy name.
func (b *Backend) Name() string { return "webcam" }

// Open always fails.
func (b *Backend) Open(int) (capture.Device, error) {
	return nil, errors.New("raw V4L2 capture is only supported on linux")
}
