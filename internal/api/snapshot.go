package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/yuvcam/internal/api/models"
	"github.com/smazurov/yuvcam/internal/capture"
)

func (s *Server) registerSnapshotRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-snapshot",
		Method:      http.MethodGet,
		Path:        "/api/snapshot",
		Summary:     "Snapshot",
		Description: "Encode the latest converted picture as PNG or JPEG",
		Tags:        []string{"capture"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 503, 504},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "Encoded picture",
				Content: map[string]*huma.MediaType{
					"image/png":  {},
					"image/jpeg": {},
				},
			},
		},
	}, func(ctx context.Context, input *models.SnapshotInput) (*models.SnapshotResponse, error) {
		pic, err := s.snapshot(ctx, input.Fresh)
		if err != nil {
			return nil, toHTTPError(err)
		}

		var buf bytes.Buffer
		if err := capture.Encode(&buf, pic.Image, input.Encoding, input.Quality); err != nil {
			return nil, huma.Error500InternalServerError("Failed to encode picture", err)
		}

		return &models.SnapshotResponse{
			ContentType: capture.ContentType(input.Encoding),
			Sequence:    pic.Seq,
			Body:        buf.Bytes(),
		}, nil
	})
}

// snapshot returns the newest picture, or with fresh set the first picture
// published after the call.
func (s *Server) snapshot(ctx context.Context, fresh bool) (*capture.Picture, error) {
	latest, err := s.capture.Latest()
	if !fresh {
		return latest, err
	}

	var after uint64
	if err == nil {
		after = latest.Seq
	} else if !errors.Is(err, capture.ErrNoPicture) {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.options.SnapshotWait)
	defer cancel()
	return s.capture.Next(ctx, after)
}
