//go:build linux

package v4l2

import "time"

// DeviceInfo contains information about a V4L2 device.
type DeviceInfo struct {
	DevicePath string
	DeviceName string
	DeviceID   string // Stable identifier (from /dev/v4l/by-id/ or synthetic)
	Caps       uint32
	Streaming  bool
}

// Capability is the decoded result of a capability query.
type Capability struct {
	Driver       string
	Card         string
	BusInfo      string
	Version      uint32
	Capabilities uint32
	DeviceCaps   uint32
}

// Effective returns the capability bits of the opened node. When the driver
// reports per-node caps those win over the whole-device bits.
func (c Capability) Effective() uint32 {
	if c.Capabilities&CapDeviceCaps != 0 {
		return c.DeviceCaps
	}
	return c.Capabilities
}

// CanCapture reports whether the node supports streaming video capture.
func (c Capability) CanCapture() bool {
	caps := c.Effective()
	return caps&CapVideoCapture != 0 && caps&CapStreaming != 0
}

// PixFormat mirrors the single-planar pixel format negotiated with the driver.
type PixFormat struct {
	Width        uint32
	Height       uint32
	PixelFormat  uint32
	Field        uint32
	BytesPerLine uint32
	SizeImage    uint32
	Colorspace   uint32
}

// FrameBytes returns the number of bytes one frame occupies, falling back to
// computed values when the driver leaves sizeimage unset.
func (f PixFormat) FrameBytes() int {
	switch {
	case f.SizeImage > 0:
		return int(f.SizeImage)
	case f.BytesPerLine > 0:
		return int(f.BytesPerLine) * int(f.Height)
	default:
		return int(f.Width) * int(f.Height) * 2
	}
}

// FormatInfo contains information about a supported pixel format.
type FormatInfo struct {
	PixelFormat uint32
	FormatName  string
	Emulated    bool
}

// Resolution represents a supported video resolution.
type Resolution struct {
	Width  uint32
	Height uint32
}

// FrameSizeStepwise describes a continuous or stepwise frame size range.
type FrameSizeStepwise struct {
	MinWidth   uint32
	MaxWidth   uint32
	StepWidth  uint32
	MinHeight  uint32
	MaxHeight  uint32
	StepHeight uint32
}

// FrameSizeEnum is one entry reported by frame size enumeration.
type FrameSizeEnum struct {
	Type     uint32
	Discrete Resolution
	Stepwise FrameSizeStepwise
}

// DequeuedBuffer describes a buffer the driver handed back to user space.
type DequeuedBuffer struct {
	Index     uint32
	BytesUsed uint32
	Sequence  uint32
	Flags     uint32
	Timestamp time.Duration // monotonic capture time reported by the driver
}

// WaitResult is the outcome of a readiness wait.
type WaitResult int

// Wait results.
const (
	WaitTimedOut WaitResult = iota
	WaitReady
)

func (r WaitResult) String() string {
	if r == WaitReady {
		return "ready"
	}
	return "timed_out"
}

// BufferState is the ownership state of one pool slot.
type BufferState int

// Buffer states.
const (
	BufferFree     BufferState = iota // not registered with the kernel
	BufferQueued                      // kernel owned, eligible to be filled
	BufferDequeued                    // user owned, lent to exactly one Frame
)

func (s BufferState) String() string {
	switch s {
	case BufferQueued:
		return "queued"
	case BufferDequeued:
		return "dequeued"
	default:
		return "free"
	}
}

// Capability flags.
const (
	CapVideoCapture = 0x00000001
	CapStreaming    = 0x04000000
	CapDeviceCaps   = 0x80000000
)

// Format flags.
const (
	FmtFlagEmulated = 0x0002
)

// Pixel formats. Only YUYV is negotiated; the rest are named for listings.
const (
	PixFmtYUYV  = 0x56595559 // 'YUYV'
	PixFmtMJPEG = 0x47504A4D // 'MJPG'
	PixFmtH264  = 0x34363248 // 'H264'
	PixFmtHEVC  = 0x43564548 // 'HEVC'
	PixFmtNV12  = 0x3231564E // 'NV12'
)

// Field orders.
const (
	FieldAny  = 0
	FieldNone = 1
)

// Frame size types.
const (
	FrmsizeTypeDiscrete   = 1
	FrmsizeTypeContinuous = 2
	FrmsizeTypeStepwise   = 3
)

const (
	bufTypeVideoCapture = 1
	memoryUserptr       = 2
)
