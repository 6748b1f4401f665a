package capture

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDeviceUnavailable is matched by every *CameraOpenError.
	ErrDeviceUnavailable = errors.New("camera device unavailable")
	// ErrNoFaceDetected means the confirmation pass found no face.
	ErrNoFaceDetected = errors.New("no face detected")
	// ErrMultipleFacesDetected means the confirmation pass found more than one face.
	ErrMultipleFacesDetected = errors.New("multiple faces detected")
	// ErrSearchTimedOut means no candidate frame was found within the search timeout.
	ErrSearchTimedOut = errors.New("no face detected within timeout")
	// ErrStorage wraps every file store and catalog failure.
	ErrStorage = errors.New("storage failure")
	// ErrDeviceBusy is returned when another request holds the device and the
	// busy policy is "fail".
	ErrDeviceBusy = errors.New("camera device busy")
	// ErrNoFrame is returned by a Device when no frame arrived within its read timeout.
	ErrNoFrame = errors.New("no frame available")
)

// CameraOpenError reports that no open strategy produced a usable device.
type CameraOpenError struct {
	DeviceIndex int
	Strategies  []string
}

func (e *CameraOpenError) Error() string {
	return fmt.Sprintf("cannot open camera index %d with %s", e.DeviceIndex, strings.Join(e.Strategies, "/"))
}

func (e *CameraOpenError) Unwrap() error {
	return ErrDeviceUnavailable
}

// SearchTimeoutError carries the timeout that elapsed without a candidate.
type SearchTimeoutError struct {
	Seconds float64
}

func (e *SearchTimeoutError) Error() string {
	return fmt.Sprintf("no face detected within %g sec", e.Seconds)
}

func (e *SearchTimeoutError) Unwrap() error {
	return ErrSearchTimedOut
}

func storageError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}
