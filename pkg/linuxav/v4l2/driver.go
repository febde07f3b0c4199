//go:build linux

package v4l2

import "time"

// Driver is the control surface of one opened capture node. It is the only
// part of the package that knows how requests reach the kernel; Device,
// BufferPool and Frame are written purely against it.
//
// Implementations report the end of an enumeration with ErrEnumerationDone
// and return raw errno values (syscall.Errno) for everything else.
type Driver interface {
	QueryCapability() (Capability, error)
	GetFormat() (PixFormat, error)
	// SetFormat requests a format and returns what the driver actually applied.
	SetFormat(f PixFormat) (PixFormat, error)
	EnumFormat(index uint32) (FormatInfo, error)
	EnumFrameSize(index, pixelFormat uint32) (FrameSizeEnum, error)
	// RequestBuffers registers count user-pointer buffers and returns the
	// number the driver granted. A count of zero releases them.
	RequestBuffers(count uint32) (uint32, error)
	// QueueBuffer hands mem to the kernel by address. mem must stay mapped
	// and unmoved until it is dequeued or streaming stops.
	QueueBuffer(index uint32, mem []byte) error
	DequeueBuffer() (DequeuedBuffer, error)
	StreamOn() error
	StreamOff() error
	// WaitReady blocks until a filled buffer can be dequeued. A negative
	// timeout waits indefinitely.
	WaitReady(timeout time.Duration) (bool, error)
	Close() error
}
