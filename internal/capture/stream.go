package capture

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrDeviceClosed is returned by Read after Close.
var ErrDeviceClosed = errors.New("device closed")

// ErrReleasePending is returned by Close when the source has not been released yet.
var ErrReleasePending = errors.New("timed out waiting for frame reader to stop")

// FrameSource is a blocking frame grabber, typically a camera driver handle.
// Grab and Close are only ever called from the StreamDevice's reader goroutine.
type FrameSource interface {
	Grab() (Frame, error)
	Close() error
}

// StreamDevice turns a FrameSource into a Device with bounded reads. A
// reader goroutine owns the source and keeps only the latest frame.
type StreamDevice struct {
	src         FrameSource
	readTimeout time.Duration
	retry       time.Duration

	frames chan Frame
	stop   chan struct{}
	done   chan struct{}

	once     sync.Once
	closeErr error
}

// NewStreamDevice starts reading from src.
func NewStreamDevice(src FrameSource, readTimeout time.Duration) *StreamDevice {
	if readTimeout <= 0 {
		readTimeout = time.Second
	}
	d := &StreamDevice{
		src:         src,
		readTimeout: readTimeout,
		retry:       10 * time.Millisecond,
		frames:      make(chan Frame, 1),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *StreamDevice) run() {
	defer close(d.done)
	defer func() { d.closeErr = d.src.Close() }()

	for {
		select {
		case <-d.stop:
			return
		default:
		}

		frame, err := d.src.Grab()
		if err != nil || frame.Empty() {
			select {
			case <-d.stop:
				return
			case <-time.After(d.retry):
			}
			continue
		}

		// Keep only the newest frame.
		select {
		case <-d.frames:
		default:
		}
		d.frames <- frame
	}
}

// Read returns the newest frame, waiting at most the read timeout.
func (d *StreamDevice) Read(ctx context.Context) (Frame, error) {
	timer := time.NewTimer(d.readTimeout)
	defer timer.Stop()

	select {
	case frame := <-d.frames:
		return frame, nil
	case <-d.done:
		return Frame{}, ErrDeviceClosed
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case <-timer.C:
		return Frame{}, ErrNoFrame
	}
}

// Released is closed once the reader goroutine has closed the source.
func (d *StreamDevice) Released() <-chan struct{} {
	return d.done
}

// Close stops the reader goroutine, which releases the source. If the source
// is stuck in Grab, Close gives up waiting after a few read timeouts and the
// goroutine releases the source once Grab returns; Released reports when.
func (d *StreamDevice) Close() error {
	var err error
	d.once.Do(func() {
		close(d.stop)
		select {
		case <-d.done:
			err = d.closeErr
		case <-time.After(3 * d.readTimeout):
			err = ErrReleasePending
		}
	})
	return err
}
