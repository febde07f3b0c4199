package models

import (
	"github.com/smazurov/yuvcam/pkg/linuxav/v4l2"
)

// Capability names reported for discovered devices, keyed by V4L2 bit.
var capabilityNames = []struct {
	bit  uint32
	name string
}{
	{v4l2.CapVideoCapture, "Video Capture"},
	{v4l2.CapStreaming, "Streaming I/O"},
}

// CapabilityNames lists the capture related capabilities present in caps.
func CapabilityNames(caps uint32) []string {
	names := []string{}
	for _, c := range capabilityNames {
		if caps&c.bit != 0 {
			names = append(names, c.name)
		}
	}
	return names
}

// DeviceInfo represents a discovered capture node with snake_case fields
type DeviceInfo struct {
	DevicePath   string   `json:"device_path" example:"/dev/video0" doc:"System device path"`
	DeviceName   string   `json:"device_name" example:"USB Camera" doc:"Device name"`
	DeviceID     string   `json:"device_id" example:"usb-Camera_1234-video-index0" doc:"Stable device identifier"`
	Caps         uint32   `json:"caps" example:"84000001" doc:"Raw V4L2 capability flags"`
	Capabilities []string `json:"capabilities" example:"[\"Video Capture\", \"Streaming I/O\"]" doc:"Device capabilities"`
}

type DeviceListData struct {
	Devices []DeviceInfo `json:"devices" doc:"Capture devices found on the system"`
	Count   int          `json:"count" example:"1" doc:"Number of devices found"`
}

type DeviceListResponse struct {
	Body DeviceListData
}

// ActiveDevice describes the device the capture loop is running on.
type ActiveDevice struct {
	DevicePath  string `json:"device_path" example:"/dev/video0" doc:"System device path"`
	Driver      string `json:"driver" example:"uvcvideo" doc:"Kernel driver name"`
	Card        string `json:"card" example:"USB Camera" doc:"Device name"`
	BusInfo     string `json:"bus_info" example:"usb-0000:00:14.0-1" doc:"Bus location"`
	Width       int    `json:"width" example:"640" doc:"Negotiated width in pixels"`
	Height      int    `json:"height" example:"480" doc:"Negotiated height in pixels"`
	PixelFormat string `json:"pixel_format" example:"YUYV" doc:"Negotiated FourCC"`
	FrameBytes  int    `json:"frame_bytes" example:"614400" doc:"Bytes per frame buffer"`
	Buffers     int    `json:"buffers" example:"4" doc:"User pointer buffers in the pool"`
	Streaming   bool   `json:"streaming" example:"true" doc:"Whether the device is streaming"`
	Grayscale   bool   `json:"grayscale" example:"false" doc:"Whether frames are rendered as luma only"`
}

type ActiveDeviceResponse struct {
	Body ActiveDevice
}

// FormatInfo represents a pixel format offered by the device
type FormatInfo struct {
	FourCC      string `json:"fourcc" example:"YUYV" doc:"FourCC code"`
	PixelFormat uint32 `json:"pixel_format" example:"1448695129" doc:"Raw V4L2 pixel format"`
	Description string `json:"description" example:"YUYV 4:2:2" doc:"Driver description"`
	Emulated    bool   `json:"emulated" example:"false" doc:"Whether format is emulated"`
	Supported   bool   `json:"supported" example:"true" doc:"Whether capture can use this format"`
}

type FormatsData struct {
	Formats []FormatInfo `json:"formats" doc:"Pixel formats in enumeration order"`
}

type FormatsResponse struct {
	Body FormatsData
}

// FrameSize is one entry of the frame size enumeration. Index is what
// PUT /api/frame-size expects.
type FrameSize struct {
	Index  int    `json:"index" example:"0" doc:"Enumeration index"`
	Width  uint32 `json:"width" example:"640" doc:"Width in pixels"`
	Height uint32 `json:"height" example:"480" doc:"Height in pixels"`
}

type FrameSizesData struct {
	FrameSizes []FrameSize `json:"frame_sizes" doc:"YUYV frame sizes in enumeration order"`
}

type FrameSizesResponse struct {
	Body FrameSizesData
}

type SetFrameSizeRequest struct {
	Body struct {
		Index int `json:"index" minimum:"0" example:"1" doc:"Frame size index from GET /api/frame-sizes"`
	}
}

// Render mode models
type RenderData struct {
	Grayscale bool `json:"grayscale" example:"false" doc:"Render luma only"`
}

type RenderRequest struct {
	Body RenderData
}

type RenderResponse struct {
	Body RenderData
}

// Stats models
type StatsData struct {
	DevicePath string  `json:"device_path" example:"/dev/video0" doc:"Device path"`
	Frames     uint64  `json:"frames" example:"1800" doc:"Frames captured"`
	Drops      uint64  `json:"drops" example:"3" doc:"Pictures replaced before being read"`
	FPS        float64 `json:"fps" example:"30" doc:"Capture rate over the last interval"`
	Running    bool    `json:"running" example:"true" doc:"Whether the capture loop is running"`
	LastError  string  `json:"last_error,omitempty" doc:"Error that stopped capture"`
}

type StatsResponse struct {
	Body StatsData
}

// Snapshot models
type SnapshotInput struct {
	Encoding string `query:"encoding" enum:"png,jpeg" default:"png" doc:"Image encoding"`
	Quality  int    `query:"quality" minimum:"1" maximum:"100" default:"90" doc:"JPEG quality"`
	Fresh    bool   `query:"fresh" doc:"Wait for a picture newer than the current one"`
}

type SnapshotResponse struct {
	ContentType string `header:"Content-Type"`
	Sequence    uint64 `header:"X-Frame-Sequence"`
	Body        []byte
}
