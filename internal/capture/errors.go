package capture

import (
	"errors"
	"fmt"

	"github.com/smazurov/yuvcam/pkg/linuxav/v4l2"
)

// Error codes owned by the service. Device errors keep their v4l2 codes.
const (
	ErrCodeNotRunning     = "NOT_RUNNING"
	ErrCodeAlreadyRunning = "ALREADY_RUNNING"
	ErrCodeConvert        = "CONVERT_FAILED"
	ErrCodeNoPicture      = "NO_PICTURE"
)

// Error is a capture service error.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ErrNotRunning is returned by requests made while the capture loop is not
// running.
var ErrNotRunning = &Error{Code: ErrCodeNotRunning, Message: "capture is not running"}

// ErrNoPicture is returned by Latest before the first picture was published.
var ErrNoPicture = &Error{Code: ErrCodeNoPicture, Message: "no picture captured yet"}

// CodeOf returns the code of a capture or device error, or "" for others.
func CodeOf(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return v4l2.CodeOf(err)
}
