package capture

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDeviceLocksFailPolicy(t *testing.T) {
	locks := NewDeviceLocks(BusyFail)

	release, err := locks.Acquire(context.Background(), 0)
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	if _, err := locks.Acquire(context.Background(), 0); !errors.Is(err, ErrDeviceBusy) {
		t.Errorf("expected ErrDeviceBusy, got %v", err)
	}

	// Other devices are independent.
	other, err := locks.Acquire(context.Background(), 1)
	if err != nil {
		t.Fatalf("acquire of device 1 failed: %v", err)
	}
	other()

	release()
	release()

	again, err := locks.Acquire(context.Background(), 0)
	if err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
	again()
}

func TestDeviceLocksWaitPolicy(t *testing.T) {
	locks := NewDeviceLocks(BusyWait)

	release, err := locks.Acquire(context.Background(), 0)
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		r, err := locks.Acquire(context.Background(), 0)
		if err == nil {
			r()
			close(acquired)
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire returned while the device was held")
	case <-time.After(50 * time.Millisecond):
	}

	release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire did not proceed after release")
	}
}

func TestDeviceLocksWaitHonoursContext(t *testing.T) {
	locks := NewDeviceLocks(BusyWait)
	release, _ := locks.Acquire(context.Background(), 0)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if _, err := locks.Acquire(ctx, 0); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if !locks.Busy(0) {
		t.Error("expected device 0 to be busy")
	}
}

func TestParsePolicies(t *testing.T) {
	if p, err := ParseBusyPolicy(""); err != nil || p != BusyWait {
		t.Errorf("expected default wait, got %q (%v)", p, err)
	}
	if _, err := ParseBusyPolicy("later"); err == nil {
		t.Error("expected error for unknown busy policy")
	}
	if p, err := ParseMultiFacePolicy("fail_fast"); err != nil || p != MultiFaceFailFast {
		t.Errorf("expected fail_fast, got %q (%v)", p, err)
	}
	if _, err := ParseMultiFacePolicy("sometimes"); err == nil {
		t.Error("expected error for unknown multi-face policy")
	}
}
