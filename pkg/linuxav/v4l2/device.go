//go:build linux

package v4l2

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// DefaultBufferCount is the number of user-pointer buffers a Device registers
// unless WithBufferCount says otherwise.
const DefaultBufferCount = 4

// Device is an opened, negotiated and streaming capture node. It owns its
// Driver and BufferPool exclusively; all methods must be called from the one
// goroutine that owns the Device.
type Device struct {
	path    string
	drv     Driver
	pool    *BufferPool
	logger  *slog.Logger
	buffers int

	capability Capability
	format     PixFormat

	closeOnce sync.Once
	closeErr  error
	closed    bool
}

type openOptions struct {
	buffers int
	logger  *slog.Logger
	driver  Driver
}

// Option configures Open.
type Option func(*openOptions)

// WithBufferCount sets how many buffers are requested from the driver.
func WithBufferCount(n int) Option {
	return func(o *openOptions) {
		if n > 0 {
			o.buffers = n
		}
	}
}

// WithLogger sets the logger used for protocol tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(o *openOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithDriver uses drv instead of opening path through the kernel.
func WithDriver(drv Driver) Option {
	return func(o *openOptions) {
		o.driver = drv
	}
}

// Open opens the capture node at path, checks its capabilities, negotiates
// the active format, registers and queues the buffer pool and starts
// streaming. On any failure everything acquired so far is released.
func Open(path string, opts ...Option) (*Device, error) {
	o := openOptions{
		buffers: DefaultBufferCount,
		logger:  slog.Default().With("component", "v4l2"),
	}
	for _, opt := range opts {
		opt(&o)
	}

	drv := o.driver
	if drv == nil {
		var err error
		drv, err = OpenDriver(path)
		if err != nil {
			return nil, err
		}
	}

	d := &Device{
		path:    path,
		drv:     drv,
		logger:  o.logger.With("device", path),
		buffers: o.buffers,
	}
	d.pool = NewBufferPool(drv, d.logger)

	if err := d.queryCapabilities(); err != nil {
		drv.Close()
		return nil, err
	}
	if err := d.negotiateFormat(); err != nil {
		drv.Close()
		return nil, err
	}
	if err := d.startCapture(); err != nil {
		d.Close()
		return nil, err
	}

	return d, nil
}

// queryCapabilities rejects nodes that cannot stream video capture.
func (d *Device) queryCapabilities() error {
	c, err := d.drv.QueryCapability()
	if err != nil {
		return controlError("VIDIOC_QUERYCAP", err)
	}
	d.capability = c

	d.logger.Info("Device capabilities",
		"driver", c.Driver,
		"card", c.Card,
		"bus_info", c.BusInfo,
		"version", fmt.Sprintf("%d.%d.%d", c.Version>>16, (c.Version>>8)&0xff, c.Version&0xff),
		"caps", fmt.Sprintf("0x%08x", c.Effective()))

	if !c.CanCapture() {
		return newError(ErrCodeUnsupportedDevice,
			fmt.Sprintf("%s lacks video capture or streaming (caps 0x%08x)", d.path, c.Effective()), nil)
	}
	return nil
}

// negotiateFormat reads the active format and accepts only progressive YUYV.
func (d *Device) negotiateFormat() error {
	f, err := d.drv.GetFormat()
	if err != nil {
		return controlError("VIDIOC_G_FMT", err)
	}

	d.logger.Info("Active format",
		"width", f.Width,
		"height", f.Height,
		"pixel_format", FormatFourCC(f.PixelFormat),
		"field", f.Field,
		"bytes_per_line", f.BytesPerLine,
		"size_image", f.SizeImage)

	if f.PixelFormat != PixFmtYUYV {
		return newError(ErrCodeUnsupportedFormat,
			fmt.Sprintf("pixel format %q is not YUYV", FormatFourCC(f.PixelFormat)), nil)
	}
	if f.Field != FieldNone {
		return newError(ErrCodeUnsupportedFormat,
			fmt.Sprintf("field order %d is interlaced", f.Field), nil)
	}
	if f.Width == 0 || f.Height == 0 {
		return newError(ErrCodeUnsupportedFormat,
			fmt.Sprintf("empty frame %dx%d", f.Width, f.Height), nil)
	}

	d.format = f
	return nil
}

// startCapture runs the allocate, enqueue, stream-on sequence.
func (d *Device) startCapture() error {
	if err := d.pool.Allocate(d.buffers, d.format.FrameBytes()); err != nil {
		return err
	}
	if err := d.pool.EnqueueAll(); err != nil {
		return err
	}
	return d.pool.StartStreaming()
}

// stopCapture reverses startCapture. Teardown is skipped when streaming
// could not be stopped, leaving the memory mapped for the kernel.
func (d *Device) stopCapture() error {
	if err := d.pool.StopStreaming(); err != nil {
		return err
	}
	return d.pool.Teardown()
}

// Close stops streaming, releases the pool and closes the descriptor. It is
// refused while any Frame is held, since releasing the pool unmaps the memory
// behind Frame.Data. Once it has run, later calls return the same result.
func (d *Device) Close() error {
	if !d.closed {
		if n := d.pool.Outstanding(); n > 0 {
			return stateError("close", fmt.Sprintf("%d frames still held", n))
		}
	}
	d.closeOnce.Do(func() {
		d.closed = true
		if err := d.stopCapture(); err != nil {
			d.logger.Warn("Failed to release buffers cleanly", "error", err)
			d.closeErr = err
		}
		if err := d.drv.Close(); err != nil && d.closeErr == nil {
			d.closeErr = controlError("close", err)
		}
		d.logger.Debug("Device closed")
	})
	return d.closeErr
}

// Path returns the device node path.
func (d *Device) Path() string { return d.path }

// Capability returns the capabilities reported at open.
func (d *Device) Capability() Capability { return d.capability }

// Format returns the negotiated format.
func (d *Device) Format() PixFormat { return d.format }

// Width returns the negotiated frame width in pixels.
func (d *Device) Width() int { return int(d.format.Width) }

// Height returns the negotiated frame height in pixels.
func (d *Device) Height() int { return int(d.format.Height) }

// FrameBytes returns the size of one frame buffer.
func (d *Device) FrameBytes() int { return d.format.FrameBytes() }

// Pool exposes the buffer pool for inspection.
func (d *Device) Pool() *BufferPool { return d.pool }

// Streaming reports whether the device is currently capturing.
func (d *Device) Streaming() bool { return d.pool.Streaming() }

// FindDevices finds all V4L2 video capture devices on the system.
func FindDevices() ([]DeviceInfo, error) {
	entries, err := os.ReadDir("/sys/class/video4linux")
	if err != nil {
		if os.IsNotExist(err) {
			return []DeviceInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read video4linux directory: %w", err)
	}

	logger := slog.With("component", "v4l2")
	var devices []DeviceInfo

	for _, entry := range entries {
		devicePath := "/dev/" + entry.Name()

		drv, err := OpenDriver(devicePath)
		if err != nil {
			logger.Debug("Failed to open video device", "path", devicePath, "error", err)
			continue
		}
		c, err := drv.QueryCapability()
		drv.Close()
		if err != nil {
			logger.Debug("Failed to query device capabilities", "path", devicePath, "error", err)
			continue
		}

		caps := c.Effective()
		if caps&CapVideoCapture == 0 {
			continue
		}

		indexValue := readSysfsInt(filepath.Join("/sys/class/video4linux", entry.Name(), "index"))

		stableID := findStableID(entry.Name(), indexValue)
		if stableID == "" {
			if strings.HasPrefix(c.BusInfo, "usb-") {
				stableID = fmt.Sprintf("%s-video-index%d", c.BusInfo, indexValue)
			} else {
				stableID = fmt.Sprintf("platform-%s-video-index%d", c.BusInfo, indexValue)
			}
		}

		devices = append(devices, DeviceInfo{
			DevicePath: devicePath,
			DeviceName: c.Card,
			DeviceID:   stableID,
			Caps:       caps,
			Streaming:  caps&CapStreaming != 0,
		})
	}

	return devices, nil
}

// findStableID looks for a symlink in /dev/v4l/by-id/ pointing at deviceName.
func findStableID(deviceName string, indexValue int) string {
	byIDDir := "/dev/v4l/by-id"
	entries, err := os.ReadDir(byIDDir)
	if err != nil {
		return ""
	}

	expectedSuffix := fmt.Sprintf("-video-index%d", indexValue)

	for _, entry := range entries {
		if entry.Type()&os.ModeSymlink == 0 {
			continue
		}
		target, err := os.Readlink(filepath.Join(byIDDir, entry.Name()))
		if err != nil {
			continue
		}
		if filepath.Base(target) == deviceName && strings.HasSuffix(entry.Name(), expectedSuffix) {
			return entry.Name()
		}
	}

	return ""
}

func readSysfsInt(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	val, _ := strconv.Atoi(strings.TrimSpace(string(data)))
	return val
}

// cstr converts a null-terminated byte slice to a Go string.
func cstr(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
