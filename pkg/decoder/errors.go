package decoder

import (
	"errors"
	"fmt"
)

// Setup failures. Fatal to New, never retryable.
var (
	// ErrSurfaceAllocation is returned when the image reader, its window or the
	// render surface derived from it cannot be created.
	ErrSurfaceAllocation = errors.New("decoder: surface allocation failed")

	// ErrCodecCreation is returned when the platform has no codec for the mime type.
	ErrCodecCreation = errors.New("decoder: codec creation failed")

	// ErrConfiguration is returned when the codec rejects its configuration.
	ErrConfiguration = errors.New("decoder: configuration failed")

	// ErrStart is returned when the configured codec fails to start.
	ErrStart = errors.New("decoder: start failed")
)

// Operational failures. The caller decides whether the session is still usable.
var (
	ErrInputDequeue        = errors.New("decoder: input dequeue failed")
	ErrInputQueue          = errors.New("decoder: input queue failed")
	ErrInputTooLarge       = errors.New("decoder: input larger than codec buffer")
	ErrOutputDequeue       = errors.New("decoder: output dequeue failed")
	ErrOutputRelease       = errors.New("decoder: output release failed")
	ErrSurfacePresentation = errors.New("decoder: surface presentation failed")
	ErrTransferWait        = errors.New("decoder: texture transfer did not complete")
	ErrDestination         = errors.New("decoder: invalid destination texture")
	ErrFrameIDRange        = errors.New("decoder: frame identity out of range")

	// ErrSessionClosed is returned by operations on a destroyed session.
	ErrSessionClosed = errors.New("decoder: session destroyed")
)

// StatusError carries a non-zero platform status code.
type StatusError struct {
	Op   string
	Code int
	Kind error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: %s returned %d", e.Kind, e.Op, e.Code)
}

func (e *StatusError) Unwrap() error {
	return e.Kind
}

func statusError(kind error, op string, code int) error {
	return &StatusError{Op: op, Code: code, Kind: kind}
}

// InputTooLargeError reports a payload that does not fit the codec input buffer.
type InputTooLargeError struct {
	Size     int
	Capacity int
}

func (e *InputTooLargeError) Error() string {
	return fmt.Sprintf("%v: %d bytes, capacity %d", ErrInputTooLarge, e.Size, e.Capacity)
}

func (e *InputTooLargeError) Unwrap() error {
	return ErrInputTooLarge
}

// IsSetupError reports whether err is a session construction failure.
func IsSetupError(err error) bool {
	return errors.Is(err, ErrSurfaceAllocation) ||
		errors.Is(err, ErrCodecCreation) ||
		errors.Is(err, ErrConfiguration) ||
		errors.Is(err, ErrStart)
}

// StatusCode extracts the platform status from err, if any.
func StatusCode(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code, true
	}
	return 0, false
}
