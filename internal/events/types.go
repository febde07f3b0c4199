package events

// Event type constants for kelindar/event.
const (
	TypeCaptureStateChanged uint32 = iota + 1
	TypeCaptureError
	TypeFrameSizeChanged
	TypeFrameStats
	TypeLogEntry
	TypeConfigReloaded
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// Capture states reported by CaptureStateChangedEvent.
const (
	StateStreaming = "streaming"
	StateStopped   = "stopped"
	StateFailed    = "failed"
)

// CaptureStateChangedEvent is published when the capture loop starts, stops
// or gives up after a fatal error.
type CaptureStateChangedEvent struct {
	DevicePath string `json:"device_path" example:"/dev/video0" doc:"Path to the video device"`
	State      string `json:"state" example:"streaming" enum:"streaming,stopped,failed" doc:"New capture state"`
	Timestamp  string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CaptureStateChangedEvent.
func (e CaptureStateChangedEvent) Type() uint32 { return TypeCaptureStateChanged }

// CaptureErrorEvent reports an error that stopped the capture loop.
type CaptureErrorEvent struct {
	DevicePath string `json:"device_path" example:"/dev/video0" doc:"Path to the video device"`
	Code       string `json:"code" example:"CONTROL_CALL_FAILED" doc:"Error code"`
	Message    string `json:"message" example:"Capture stopped" doc:"Message"`
	Error      string `json:"error" example:"VIDIOC_DQBUF failed: input/output error" doc:"Detailed error description"`
	Timestamp  string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Error timestamp"`
}

// Type returns the event type identifier for CaptureErrorEvent.
func (e CaptureErrorEvent) Type() uint32 { return TypeCaptureError }

// FrameSizeChangedEvent is published after the device renegotiated its
// frame size.
type FrameSizeChangedEvent struct {
	DevicePath string `json:"device_path" example:"/dev/video0" doc:"Path to the video device"`
	Index      int    `json:"index" example:"1" doc:"Index into the enumerated frame sizes"`
	Width      uint32 `json:"width" example:"320" doc:"Negotiated width"`
	Height     uint32 `json:"height" example:"240" doc:"Negotiated height"`
	FrameBytes uint32 `json:"frame_bytes" example:"153600" doc:"Bytes per frame"`
	Timestamp  string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for FrameSizeChangedEvent.
func (e FrameSizeChangedEvent) Type() uint32 { return TypeFrameSizeChanged }

// FrameStatsEvent is a periodic summary of the capture loop.
type FrameStatsEvent struct {
	DevicePath string  `json:"device_path" example:"/dev/video0" doc:"Path to the video device"`
	Frames     uint64  `json:"frames" example:"1800" doc:"Pictures published since start"`
	Drops      uint64  `json:"drops" example:"3" doc:"Pictures overwritten before a consumer took them"`
	FPS        float64 `json:"fps" example:"29.97" doc:"Frames per second over the last interval"`
	Timestamp  string  `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for FrameStatsEvent.
func (e FrameStatsEvent) Type() uint32 { return TypeFrameStats }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2026-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"capture" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }

// ConfigReloadedEvent is published after the config file was reapplied.
type ConfigReloadedEvent struct {
	Path      string `json:"path" example:"config.toml" doc:"Reloaded file"`
	FrameSize int    `json:"frame_size" example:"-1" doc:"Requested frame size index, -1 when unset"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ConfigReloadedEvent.
func (e ConfigReloadedEvent) Type() uint32 { return TypeConfigReloaded }
