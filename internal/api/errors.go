package api

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/yuvcam/internal/capture"
	"github.com/smazurov/yuvcam/pkg/linuxav/v4l2"
)

// toHTTPError maps capture and device error codes to HTTP statuses.
func toHTTPError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	switch capture.CodeOf(err) {
	case v4l2.ErrCodeFrameSizeOutOfRange:
		return huma.Error422UnprocessableEntity(msg)
	case v4l2.ErrCodeStreamState, capture.ErrCodeAlreadyRunning:
		return huma.Error409Conflict(msg)
	case capture.ErrCodeNotRunning:
		return huma.Error503ServiceUnavailable(msg)
	case capture.ErrCodeNoPicture:
		return huma.Error404NotFound(msg)
	}

	switch {
	case errors.Is(err, capture.ErrMailboxClosed):
		return huma.Error503ServiceUnavailable(msg)
	case errors.Is(err, context.DeadlineExceeded):
		return huma.Error504GatewayTimeout(msg)
	}
	return huma.Error500InternalServerError(msg, err)
}
