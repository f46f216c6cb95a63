package proctoring

import (
	"errors"
	"fmt"
)

var (
	ErrNoFrame        = errors.New("no new frame available")
	ErrCameraReleased = errors.New("camera already released")
	ErrCameraBusy     = errors.New("camera stream already owned by another session")
	ErrStreamLimit    = errors.New("maximum number of camera streams reached")
	ErrHubClosed      = errors.New("frame hub is closed")
	ErrUnknownStream  = errors.New("no camera stream registered for session")
)

// DetectionError is a recoverable frame read or classification failure.
// It counts as zero signal for the tick it happened on.
type DetectionError struct {
	Stage string // "read" or "classify"
	Err   error
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("detection %s failed: %v", e.Stage, e.Err)
}

func (e *DetectionError) Unwrap() error {
	return e.Err
}

// ResourceError reports that the camera could not be acquired.
type ResourceError struct {
	Resource string
	Err      error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Resource, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

func IsResourceError(err error) bool {
	var re *ResourceError
	return errors.As(err, &re)
}

func IsDetectionError(err error) bool {
	var de *DetectionError
	return errors.As(err, &de)
}
