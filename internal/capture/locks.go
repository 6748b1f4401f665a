package capture

import (
	"context"
	"fmt"
	"sync"
)

// BusyPolicy decides what a request does when its device is already in use.
type BusyPolicy string

const (
	// BusyWait blocks until the holder releases the device or ctx is done.
	BusyWait BusyPolicy = "wait"
	// BusyFail returns ErrDeviceBusy immediately.
	BusyFail BusyPolicy = "fail"
)

// ParseBusyPolicy maps a config value to a BusyPolicy.
func ParseBusyPolicy(s string) (BusyPolicy, error) {
	switch BusyPolicy(s) {
	case BusyWait, "":
		return BusyWait, nil
	case BusyFail:
		return BusyFail, nil
	}
	return "", fmt.Errorf("unknown busy policy %q", s)
}

// DeviceLocks serializes access per device index.
type DeviceLocks struct {
	policy BusyPolicy

	mu    sync.Mutex
	slots map[int]chan struct{}
}

// NewDeviceLocks creates an empty lock table.
func NewDeviceLocks(policy BusyPolicy) *DeviceLocks {
	return &DeviceLocks{policy: policy, slots: make(map[int]chan struct{})}
}

func (l *DeviceLocks) slot(index int) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[index]
	if !ok {
		s = make(chan struct{}, 1)
		l.slots[index] = s
	}
	return s
}

// Acquire takes the lock for index. The returned release func is safe to call
// more than once.
func (l *DeviceLocks) Acquire(ctx context.Context, index int) (func(), error) {
	s := l.slot(index)

	if l.policy == BusyFail {
		select {
		case s <- struct{}{}:
		default:
			return nil, fmt.Errorf("device %d: %w", index, ErrDeviceBusy)
		}
	} else {
		select {
		case s <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() { once.Do(func() { <-s }) }, nil
}

// Busy reports whether index is currently held.
func (l *DeviceLocks) Busy(index int) bool {
	return len(l.slot(index)) > 0
}
