//go:build linux

package v4l2

import (
	"errors"
	"fmt"
	"syscall"
)

// Error codes.
const (
	// Device open failures.
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodePermissionDenied  = "PERMISSION_DENIED"
	ErrCodeNotCaptureDevice  = "NOT_A_CAPTURE_DEVICE"
	ErrCodeOpenFailed        = "OPEN_FAILED"
	ErrCodeUnsupportedDevice = "UNSUPPORTED_DEVICE"
	ErrCodeUnsupportedFormat = "UNSUPPORTED_FORMAT"

	// Steady state failures.
	ErrCodeControlCall         = "CONTROL_CALL_FAILED"
	ErrCodeStreamState         = "STREAM_STATE"
	ErrCodeFrameSizeOutOfRange = "FRAME_SIZE_OUT_OF_RANGE"
)

// ErrEnumerationDone is returned by a Driver when an enumeration index is
// past the last entry. It terminates Formats and FrameSizes and is never
// surfaced to their callers.
var ErrEnumerationDone = errors.New("v4l2: enumeration index out of range")

// Error is a device error with a code naming its class.
type Error struct {
	Code    string
	Op      string // control call or protocol step, when known
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Code
	if e.Op != "" {
		msg += " " + e.Op
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func controlError(op string, cause error) *Error {
	return &Error{Code: ErrCodeControlCall, Op: op, Cause: cause}
}

func stateError(op, message string) *Error {
	return &Error{Code: ErrCodeStreamState, Op: op, Message: message}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsDeviceOpenError reports whether err is one of the open failures.
func IsDeviceOpenError(err error) bool {
	switch CodeOf(err) {
	case ErrCodeNotFound, ErrCodePermissionDenied, ErrCodeNotCaptureDevice, ErrCodeOpenFailed:
		return true
	}
	return false
}

// IsRetryable reports whether err is a transient condition of a wait or
// dequeue that should be retried rather than treated as fatal.
func IsRetryable(err error) bool {
	return errors.Is(err, syscall.EINTR) || errors.Is(err, syscall.EAGAIN)
}

// openError classifies a failure to open the device node.
func openError(path string, err error) *Error {
	switch {
	case errors.Is(err, syscall.ENOENT), errors.Is(err, syscall.ENODEV), errors.Is(err, syscall.ENXIO):
		return newError(ErrCodeNotFound, path, err)
	case errors.Is(err, syscall.EACCES), errors.Is(err, syscall.EPERM):
		return newError(ErrCodePermissionDenied, path, err)
	case errors.Is(err, syscall.ENOTTY):
		return newError(ErrCodeNotCaptureDevice, path, err)
	default:
		return newError(ErrCodeOpenFailed, path, err)
	}
}
