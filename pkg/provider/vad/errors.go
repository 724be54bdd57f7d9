package vad

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFrameSize is returned by a FrameClassifier when the frame
	// length does not match its configured size.
	ErrInvalidFrameSize = errors.New("vad: invalid frame size")

	// ErrStalled is returned by a guarded classifier when the backend did not
	// answer within its deadline.
	ErrStalled = errors.New("vad: backend stalled")

	// ErrBusy is returned by a guarded classifier while a previously stalled
	// call is still running inside the backend.
	ErrBusy = errors.New("vad: backend busy")

	// ErrClosed is returned when classifying after Close.
	ErrClosed = errors.New("vad: classifier closed")
)

// InitError reports that a backend could not be initialised (model missing,
// native library absent, unsupported parameters). It is fatal: the caller
// must not start segmentation.
type InitError struct {
	// Backend is the backend name, e.g. "silero".
	Backend string

	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *InitError) Error() string {
	return fmt.Sprintf("vad: init %s: %v", e.Backend, e.Err)
}

// Unwrap returns the underlying cause.
func (e *InitError) Unwrap() error { return e.Err }

// NewInitError wraps err as an [InitError] for backend.
func NewInitError(backend string, err error) error {
	return &InitError{Backend: backend, Err: err}
}

// IsInitError reports whether err is or wraps an [InitError].
func IsInitError(err error) bool {
	var ie *InitError
	return errors.As(err, &ie)
}

// ValidFrameSizes returns the frame sizes, in samples, accepted by WebRTC
// style frame classifiers at sampleRate: 10, 20 and 30 ms.
func ValidFrameSizes(sampleRate int) []int {
	return []int{sampleRate / 100, sampleRate / 50, sampleRate * 3 / 100}
}

// FrameSizeFor converts a frame duration to samples and validates it against
// [ValidFrameSizes].
func FrameSizeFor(sampleRate, frameMs int) (int, error) {
	switch frameMs {
	case 10, 20, 30:
		return sampleRate * frameMs / 1000, nil
	default:
		return 0, fmt.Errorf("%w: %d ms (want 10, 20 or 30)", ErrInvalidFrameSize, frameMs)
	}
}
