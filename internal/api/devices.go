package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/yuvcam/internal/api/models"
	"github.com/smazurov/yuvcam/internal/capture"
	"github.com/smazurov/yuvcam/internal/metrics"
	"github.com/smazurov/yuvcam/pkg/linuxav/v4l2"
)

// registerDiscoveryRoutes lists capture nodes. It works without a running
// capture service.
func (s *Server) registerDiscoveryRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "List Devices",
		Description: "List V4L2 capture devices found on the system",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(_ context.Context, _ *struct{}) (*models.DeviceListResponse, error) {
		found, err := s.options.FindDevices()
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to list devices", err)
		}

		list := make([]models.DeviceInfo, 0, len(found))
		for _, d := range found {
			list = append(list, models.DeviceInfo{
				DevicePath:   d.DevicePath,
				DeviceName:   d.DeviceName,
				DeviceID:     d.DeviceID,
				Caps:         d.Caps,
				Capabilities: models.CapabilityNames(d.Caps),
			})
		}
		return &models.DeviceListResponse{
			Body: models.DeviceListData{Devices: list, Count: len(list)},
		}, nil
	})
}

// registerDeviceRoutes registers the routes that talk to the active device.
func (s *Server) registerDeviceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-device",
		Method:      http.MethodGet,
		Path:        "/api/device",
		Summary:     "Active Device",
		Description: "Capability and negotiated format of the device being captured",
		Tags:        []string{"capture"},
		Security:    withAuth(),
		Errors:      []int{401, 503},
	}, func(ctx context.Context, _ *struct{}) (*models.ActiveDeviceResponse, error) {
		info, err := s.capture.Info(ctx)
		if err != nil {
			return nil, toHTTPError(err)
		}
		return &models.ActiveDeviceResponse{Body: activeDevice(info)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-formats",
		Method:      http.MethodGet,
		Path:        "/api/formats",
		Summary:     "Pixel Formats",
		Description: "Pixel formats offered by the active device. Only YUYV can be captured.",
		Tags:        []string{"capture"},
		Security:    withAuth(),
		Errors:      []int{401, 503},
	}, func(ctx context.Context, _ *struct{}) (*models.FormatsResponse, error) {
		formats, err := s.capture.Formats(ctx)
		if err != nil {
			return nil, toHTTPError(err)
		}

		out := make([]models.FormatInfo, 0, len(formats))
		for _, f := range formats {
			out = append(out, models.FormatInfo{
				FourCC:      v4l2.FormatFourCC(f.PixelFormat),
				PixelFormat: f.PixelFormat,
				Description: f.FormatName,
				Emulated:    f.Emulated,
				Supported:   f.PixelFormat == v4l2.PixFmtYUYV,
			})
		}
		return &models.FormatsResponse{Body: models.FormatsData{Formats: out}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-frame-sizes",
		Method:      http.MethodGet,
		Path:        "/api/frame-sizes",
		Summary:     "Frame Sizes",
		Description: "YUYV frame sizes offered by the active device",
		Tags:        []string{"capture"},
		Security:    withAuth(),
		Errors:      []int{401, 503},
	}, func(ctx context.Context, _ *struct{}) (*models.FrameSizesResponse, error) {
		sizes, err := s.capture.FrameSizes(ctx)
		if err != nil {
			return nil, toHTTPError(err)
		}

		out := make([]models.FrameSize, len(sizes))
		for i, r := range sizes {
			out[i] = models.FrameSize{Index: i, Width: r.Width, Height: r.Height}
		}
		return &models.FrameSizesResponse{Body: models.FrameSizesData{FrameSizes: out}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-frame-size",
		Method:      http.MethodPut,
		Path:        "/api/frame-size",
		Summary:     "Set Frame Size",
		Description: "Renegotiate the capture resolution. Streaming restarts with a fresh buffer pool.",
		Tags:        []string{"capture"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 422, 503},
	}, func(ctx context.Context, input *models.SetFrameSizeRequest) (*models.ActiveDeviceResponse, error) {
		if err := s.capture.SetFrameSize(ctx, input.Body.Index); err != nil {
			return nil, toHTTPError(err)
		}
		s.logger.Info("Frame size changed", "index", input.Body.Index)

		info, err := s.capture.Info(ctx)
		if err != nil {
			return nil, toHTTPError(err)
		}
		return &models.ActiveDeviceResponse{Body: activeDevice(info)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-render",
		Method:      http.MethodGet,
		Path:        "/api/render",
		Summary:     "Render Mode",
		Tags:        []string{"capture"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.RenderResponse, error) {
		return &models.RenderResponse{Body: models.RenderData{Grayscale: s.capture.Grayscale()}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-render",
		Method:      http.MethodPut,
		Path:        "/api/render",
		Summary:     "Set Render Mode",
		Description: "Switch between color and luma-only conversion",
		Tags:        []string{"capture"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, input *models.RenderRequest) (*models.RenderResponse, error) {
		s.capture.SetGrayscale(input.Body.Grayscale)
		return &models.RenderResponse{Body: models.RenderData{Grayscale: s.capture.Grayscale()}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-stats",
		Method:      http.MethodGet,
		Path:        "/api/stats",
		Summary:     "Capture Statistics",
		Tags:        []string{"capture"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.StatsResponse, error) {
		device := s.capture.DevicePath()
		data := models.StatsData{
			DevicePath: device,
			Drops:      s.capture.Drops(),
			Running:    s.capture.Running(),
		}
		if st := metrics.GetCaptureStats(device); st != nil {
			data.Frames = st.Frames
			data.FPS = st.FPS
		}
		if err := s.capture.Err(); err != nil {
			data.LastError = err.Error()
		}
		return &models.StatsResponse{Body: data}, nil
	})
}

func activeDevice(info capture.Info) models.ActiveDevice {
	return models.ActiveDevice{
		DevicePath:  info.Path,
		Driver:      info.Driver,
		Card:        info.Card,
		BusInfo:     info.BusInfo,
		Width:       info.Width,
		Height:      info.Height,
		PixelFormat: info.PixelFormat,
		FrameBytes:  info.FrameBytes,
		Buffers:     info.Buffers,
		Streaming:   info.Streaming,
		Grayscale:   info.Grayscale,
	}
}
