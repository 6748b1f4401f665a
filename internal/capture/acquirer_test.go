package capture

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestAcquirerFallsBackToNextStrategy(t *testing.T) {
	silent := &fakeDevice{}
	working := &fakeDevice{script: always(1)}

	broken := &fakeBackend{name: "any", openErr: errors.New("no such device")}
	mute := &fakeBackend{name: "v4l2", dev: silent}
	good := &fakeBackend{name: "webcam", dev: working}

	h, err := fastAcquirer(broken, mute, good).Open(context.Background(), 0)
	if err != nil {
		t.Fatalf("expected device, got error: %v", err)
	}
	defer h.Close()

	if h.Strategy != "webcam" {
		t.Errorf("expected strategy webcam, got %s", h.Strategy)
	}
	if silent.closeCount() != 1 {
		t.Errorf("expected silent device released once, got %d", silent.closeCount())
	}
	if working.closeCount() != 0 {
		t.Errorf("expected accepted device to stay open, got %d closes", working.closeCount())
	}
}

func TestAcquirerExhaustsStrategies(t *testing.T) {
	// Frames only arrive well after the probe window.
	late := func() *fakeDevice {
		start := time.Now()
		return &fakeDevice{script: func(int) (Frame, error) {
			if time.Since(start) < 800*time.Millisecond {
				return Frame{}, ErrNoFrame
			}
			return testFrame(1), nil
		}}
	}
	a, b := late(), late()

	_, err := fastAcquirer(&fakeBackend{name: "any", dev: a}, &fakeBackend{name: "v4l2", dev: b}).Open(context.Background(), 2)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("expected ErrDeviceUnavailable, got %v", err)
	}

	var openErr *CameraOpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("expected *CameraOpenError, got %T", err)
	}
	if openErr.DeviceIndex != 2 {
		t.Errorf("expected device index 2, got %d", openErr.DeviceIndex)
	}
	if !strings.Contains(err.Error(), "cannot open camera index 2 with any/v4l2") {
		t.Errorf("unexpected message %q", err.Error())
	}
	if a.closeCount() != 1 || b.closeCount() != 1 {
		t.Errorf("expected every probed device released once, got %d and %d", a.closeCount(), b.closeCount())
	}
}

func TestAcquirerNoBackends(t *testing.T) {
	_, err := fastAcquirer().Open(context.Background(), 0)
	if !IsUnavailable(err) {
		t.Errorf("expected unavailable error, got %v", err)
	}
}

func TestAcquirerHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fastAcquirer(&fakeBackend{name: "any", dev: &fakeDevice{script: always(1)}}).Open(ctx, 0)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestHandleClosesOnce(t *testing.T) {
	dev := &fakeDevice{script: always(0)}
	h := newHandle(0, "any", dev)

	for i := 0; i < 3; i++ {
		if err := h.Close(); err != nil {
			t.Fatalf("unexpected close error: %v", err)
		}
	}
	if dev.closeCount() != 1 {
		t.Errorf("expected one release, got %d", dev.closeCount())
	}
}

func TestWarmupDiscardsFrames(t *testing.T) {
	dev := &fakeDevice{script: always(1)}
	Warmup(context.Background(), dev, 3)
	if dev.reads != 3 {
		t.Errorf("expected 3 reads, got %d", dev.reads)
	}
}
