//go:build linux

// Package simdriver is an in-memory v4l2.Driver. It follows the kernel's
// user-pointer rules closely enough to exercise the capture protocol
// without hardware: buffers must be registered before they are queued,
// dequeue needs streaming, and stream off returns every buffer.
package simdriver

import (
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/smazurov/yuvcam/pkg/linuxav/v4l2"
)

// Op names a Driver method for error injection and call counting.
type Op string

// Driver operations.
const (
	OpQueryCapability Op = "QueryCapability"
	OpGetFormat       Op = "GetFormat"
	OpSetFormat       Op = "SetFormat"
	OpEnumFormat      Op = "EnumFormat"
	OpEnumFrameSize   Op = "EnumFrameSize"
	OpRequestBuffers  Op = "RequestBuffers"
	OpQueueBuffer     Op = "QueueBuffer"
	OpDequeueBuffer   Op = "DequeueBuffer"
	OpStreamOn        Op = "StreamOn"
	OpStreamOff       Op = "StreamOff"
	OpWaitReady       Op = "WaitReady"
	OpClose           Op = "Close"
)

// Config describes the simulated device.
type Config struct {
	Capability v4l2.Capability
	Format     v4l2.PixFormat
	Formats    []v4l2.FormatInfo
	FrameSizes []v4l2.FrameSizeEnum
	// NoFrameSizes makes frame size enumeration fail with ENOTTY.
	NoFrameSizes bool
	// FrameInterval paces WaitReady. Zero delivers frames immediately.
	FrameInterval time.Duration
	// MaxBuffers caps how many buffers RequestBuffers grants. Zero is no cap.
	MaxBuffers uint32
	// BytesUsed overrides the bytesused reported on dequeue. Zero reports
	// the full image size.
	BytesUsed uint32
}

// DefaultConfig returns a 640x480 YUYV webcam with three discrete sizes.
func DefaultConfig() Config {
	return Config{
		Capability: v4l2.Capability{
			Driver:       "simdriver",
			Card:         "Simulated Camera",
			BusInfo:      "platform:simdriver",
			Version:      6<<16 | 1<<8,
			Capabilities: v4l2.CapVideoCapture | v4l2.CapStreaming,
		},
		Format: yuyvFormat(640, 480),
		Formats: []v4l2.FormatInfo{
			{PixelFormat: v4l2.PixFmtYUYV, FormatName: "YUYV 4:2:2"},
			{PixelFormat: v4l2.PixFmtMJPEG, FormatName: "Motion-JPEG"},
			{PixelFormat: v4l2.PixFmtNV12, FormatName: "Y/UV 4:2:0", Emulated: true},
		},
		FrameSizes: []v4l2.FrameSizeEnum{
			discrete(640, 480),
			discrete(320, 240),
			discrete(1280, 720),
		},
	}
}

type queued struct {
	index uint32
	mem   []byte
}

// Driver is a simulated capture node. It is safe for concurrent use.
type Driver struct {
	mu  sync.Mutex
	cfg Config

	format     v4l2.PixFormat
	registered uint32
	queue      []queued
	streaming  bool
	closed     bool
	sequence   uint32
	lastFrame  time.Time
	started    time.Time

	inject   map[Op]error
	calls    map[Op]int
	queues   map[uint32]int
	dequeues map[uint32]int
}

var _ v4l2.Driver = (*Driver)(nil)

// New returns a simulated driver for cfg.
func New(cfg Config) *Driver {
	return &Driver{
		cfg:      cfg,
		format:   cfg.Format,
		inject:   make(map[Op]error),
		calls:    make(map[Op]int),
		queues:   make(map[uint32]int),
		dequeues: make(map[uint32]int),
	}
}

// InjectError makes the next call of op fail with err.
func (d *Driver) InjectError(op Op, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inject[op] = err
}

// enter counts the call and returns a pending injected error. d.mu must be held.
func (d *Driver) enter(op Op) error {
	d.calls[op]++
	if err, ok := d.inject[op]; ok {
		delete(d.inject, op)
		return err
	}
	if d.closed && op != OpClose {
		return syscall.EBADF
	}
	return nil
}

func (d *Driver) QueryCapability() (v4l2.Capability, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(OpQueryCapability); err != nil {
		return v4l2.Capability{}, err
	}
	return d.cfg.Capability, nil
}

func (d *Driver) GetFormat() (v4l2.PixFormat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(OpGetFormat); err != nil {
		return v4l2.PixFormat{}, err
	}
	return d.format, nil
}

func (d *Driver) SetFormat(f v4l2.PixFormat) (v4l2.PixFormat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(OpSetFormat); err != nil {
		return v4l2.PixFormat{}, err
	}
	if d.registered > 0 {
		return v4l2.PixFormat{}, syscall.EBUSY
	}
	if f.Width == 0 || f.Height == 0 {
		return v4l2.PixFormat{}, syscall.EINVAL
	}

	// Unknown pixel formats keep the current one, as drivers do
	pixelFormat := d.format.PixelFormat
	for _, info := range d.cfg.Formats {
		if info.PixelFormat == f.PixelFormat {
			pixelFormat = f.PixelFormat
			break
		}
	}

	next := yuyvFormat(f.Width, f.Height)
	next.PixelFormat = pixelFormat
	next.Field = d.format.Field
	if f.Field != v4l2.FieldAny {
		next.Field = f.Field
	}
	d.format = next
	return next, nil
}

func (d *Driver) EnumFormat(index uint32) (v4l2.FormatInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(OpEnumFormat); err != nil {
		return v4l2.FormatInfo{}, err
	}
	if int(index) >= len(d.cfg.Formats) {
		return v4l2.FormatInfo{}, v4l2.ErrEnumerationDone
	}
	return d.cfg.Formats[index], nil
}

func (d *Driver) EnumFrameSize(index, pixelFormat uint32) (v4l2.FrameSizeEnum, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(OpEnumFrameSize); err != nil {
		return v4l2.FrameSizeEnum{}, err
	}
	if d.cfg.NoFrameSizes {
		return v4l2.FrameSizeEnum{}, syscall.ENOTTY
	}
	if pixelFormat != v4l2.PixFmtYUYV || int(index) >= len(d.cfg.FrameSizes) {
		return v4l2.FrameSizeEnum{}, v4l2.ErrEnumerationDone
	}
	return d.cfg.FrameSizes[index], nil
}

func (d *Driver) RequestBuffers(count uint32) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(OpRequestBuffers); err != nil {
		return 0, err
	}
	if d.streaming {
		return 0, syscall.EBUSY
	}
	if d.cfg.MaxBuffers > 0 && count > d.cfg.MaxBuffers {
		count = d.cfg.MaxBuffers
	}
	d.registered = count
	d.queue = nil
	return count, nil
}

func (d *Driver) QueueBuffer(index uint32, mem []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(OpQueueBuffer); err != nil {
		return err
	}
	if index >= d.registered || len(mem) < int(d.format.SizeImage) {
		return syscall.EINVAL
	}
	for _, q := range d.queue {
		if q.index == index {
			return syscall.EINVAL
		}
	}
	d.queue = append(d.queue, queued{index: index, mem: mem})
	d.queues[index]++
	return nil
}

func (d *Driver) DequeueBuffer() (v4l2.DequeuedBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(OpDequeueBuffer); err != nil {
		return v4l2.DequeuedBuffer{}, err
	}
	if !d.streaming {
		return v4l2.DequeuedBuffer{}, syscall.EINVAL
	}
	if len(d.queue) == 0 {
		return v4l2.DequeuedBuffer{}, syscall.EAGAIN
	}

	q := d.queue[0]
	d.queue = d.queue[1:]
	d.dequeues[q.index]++

	size := int(d.format.SizeImage)
	FillColorBars(q.mem[:size], int(d.format.Width), int(d.format.Height), int(d.sequence))

	used := d.format.SizeImage
	if d.cfg.BytesUsed > 0 {
		used = d.cfg.BytesUsed
	}

	now := time.Now()
	d.lastFrame = now
	buf := v4l2.DequeuedBuffer{
		Index:     q.index,
		BytesUsed: used,
		Sequence:  d.sequence,
		Timestamp: now.Sub(d.started),
	}
	d.sequence++
	return buf, nil
}

func (d *Driver) StreamOn() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(OpStreamOn); err != nil {
		return err
	}
	if d.registered == 0 {
		return syscall.EINVAL
	}
	if !d.streaming {
		d.streaming = true
		d.started = time.Now()
		d.sequence = 0
	}
	return nil
}

func (d *Driver) StreamOff() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(OpStreamOff); err != nil {
		return err
	}
	d.streaming = false
	d.queue = nil
	return nil
}

// WaitReady reports readiness once a buffer is queued while streaming and
// the frame interval has elapsed since the previous frame.
func (d *Driver) WaitReady(timeout time.Duration) (bool, error) {
	d.mu.Lock()
	err := d.enter(OpWaitReady)
	d.mu.Unlock()
	if err != nil {
		return false, err
	}

	var deadline time.Time
	if timeout >= 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		d.mu.Lock()
		if d.closed {
			d.mu.Unlock()
			return false, syscall.EBADF
		}
		ready := d.streaming && len(d.queue) > 0
		due := d.lastFrame.Add(d.cfg.FrameInterval)
		d.mu.Unlock()

		now := time.Now()
		if ready && !now.Before(due) {
			return true, nil
		}
		if !deadline.IsZero() && !now.Before(deadline) {
			return false, nil
		}

		wait := time.Millisecond
		if ready {
			wait = due.Sub(now)
		}
		if !deadline.IsZero() && deadline.Sub(now) < wait {
			wait = deadline.Sub(now)
		}
		time.Sleep(wait)
	}
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(OpClose); err != nil {
		return err
	}
	d.closed = true
	d.streaming = false
	d.registered = 0
	d.queue = nil
	return nil
}

// Calls returns how many times op was invoked.
func (d *Driver) Calls(op Op) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[op]
}

// QueueCount returns how many times buffer index was queued.
func (d *Driver) QueueCount(index uint32) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queues[index]
}

// DequeueCount returns how many times buffer index was dequeued.
func (d *Driver) DequeueCount(index uint32) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dequeues[index]
}

// Queued returns the indices currently owned by the driver, in fill order.
func (d *Driver) Queued() []uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	indices := make([]uint32, 0, len(d.queue))
	for _, q := range d.queue {
		indices = append(indices, q.index)
	}
	return indices
}

// Registered returns the number of buffers currently registered.
func (d *Driver) Registered() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.registered
}

// Streaming reports whether stream on is in effect.
func (d *Driver) Streaming() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.streaming
}

// Closed reports whether Close was called.
func (d *Driver) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// HasQueued reports whether index is currently owned by the driver.
func (d *Driver) HasQueued(index uint32) bool {
	return slices.Contains(d.Queued(), index)
}

func yuyvFormat(width, height uint32) v4l2.PixFormat {
	return v4l2.PixFormat{
		Width:        width,
		Height:       height,
		PixelFormat:  v4l2.PixFmtYUYV,
		Field:        v4l2.FieldNone,
		BytesPerLine: width * 2,
		SizeImage:    width * height * 2,
	}
}

func discrete(width, height uint32) v4l2.FrameSizeEnum {
	return v4l2.FrameSizeEnum{
		Type:     v4l2.FrmsizeTypeDiscrete,
		Discrete: v4l2.Resolution{Width: width, Height: height},
	}
}
