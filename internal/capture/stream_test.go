package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeSource struct {
	mu     sync.Mutex
	grabs  int
	closed int
	script func(i int) (Frame, error)
}

func (s *fakeSource) Grab() (Frame, error) {
	s.mu.Lock()
	i := s.grabs
	s.grabs++
	s.mu.Unlock()
	time.Sleep(time.Millisecond)
	return s.script(i)
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func TestStreamDeviceDeliversFrames(t *testing.T) {
	src := &fakeSource{script: always(1)}
	dev := NewStreamDevice(src, 200*time.Millisecond)

	frame, err := dev.Read(context.Background())
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if facesIn(frame) != 1 {
		t.Errorf("unexpected frame")
	}

	if err := dev.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := dev.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	src.mu.Lock()
	defer src.mu.Unlock()
	if src.closed != 1 {
		t.Errorf("expected source closed once, got %d", src.closed)
	}
}

func TestStreamDeviceReadTimeout(t *testing.T) {
	src := &fakeSource{script: func(int) (Frame, error) { return Frame{}, errors.New("no signal") }}
	dev := NewStreamDevice(src, 50*time.Millisecond)
	defer dev.Close()

	start := time.Now()
	if _, err := dev.Read(context.Background()); !errors.Is(err, ErrNoFrame) {
		t.Errorf("expected ErrNoFrame, got %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("read was not bounded by the read timeout")
	}
}

func TestStreamDeviceReadAfterClose(t *testing.T) {
	src := &fakeSource{script: func(int) (Frame, error) { return Frame{}, ErrNoFrame }}
	dev := NewStreamDevice(src, time.Second)
	dev.Close()

	if _, err := dev.Read(context.Background()); !errors.Is(err, ErrDeviceClosed) {
		t.Errorf("expected ErrDeviceClosed, got %v", err)
	}
}

// wedgedSource delivers one frame, then blocks in Grab until unblock is closed.
type wedgedSource struct {
	mu      sync.Mutex
	grabs   int
	closed  int
	unblock chan struct{}
}

func newWedgedSource() *wedgedSource {
	return &wedgedSource{unblock: make(chan struct{})}
}

func (s *wedgedSource) Grab() (Frame, error) {
	s.mu.Lock()
	i := s.grabs
	s.grabs++
	s.mu.Unlock()
	if i == 0 {
		return testFrame(1), nil
	}
	<-s.unblock
	return Frame{}, errors.New("driver reset")
}

func (s *wedgedSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *wedgedSource) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func TestStreamDeviceCloseWithWedgedSource(t *testing.T) {
	src := newWedgedSource()
	dev := NewStreamDevice(src, 20*time.Millisecond)

	if _, err := dev.Read(context.Background()); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if err := dev.Close(); !errors.Is(err, ErrReleasePending) {
		t.Fatalf("expected ErrReleasePending, got %v", err)
	}
	select {
	case <-dev.Released():
		t.Fatal("device reported released while the source is still in Grab")
	default:
	}
	if src.closeCount() != 0 {
		t.Fatal("source closed while Grab was still running")
	}

	close(src.unblock)
	select {
	case <-dev.Released():
	case <-time.After(time.Second):
		t.Fatal("device not released after Grab returned")
	}
	if src.closeCount() != 1 {
		t.Errorf("expected source closed once, got %d", src.closeCount())
	}
}
