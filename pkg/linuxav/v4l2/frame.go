//go:build linux

package v4l2

import (
	"sync"
	"time"
)

// Frame is a zero-copy view over one dequeued buffer. The buffer goes back
// to the kernel when Release is called; until then no other Frame can hold
// the same index.
type Frame struct {
	pool      *BufferPool
	index     uint32
	gen       uint64
	length    int
	width     int
	height    int
	sequence  uint32
	timestamp time.Duration

	releaseOnce sync.Once
	releaseErr  error
}

// Data returns the captured bytes. The slice aliases kernel-shared memory and
// is only valid until Release; after that, or once streaming has stopped,
// Data returns nil. Device.Close refuses to run while the Frame is held.
func (f *Frame) Data() []byte {
	return f.pool.view(f.index, f.gen, f.length)
}

// Width returns the frame width in pixels.
func (f *Frame) Width() int { return f.width }

// Height returns the frame height in pixels.
func (f *Frame) Height() int { return f.height }

// Index returns the pool index of the underlying buffer.
func (f *Frame) Index() uint32 { return f.index }

// Len returns the number of valid bytes, never more than the buffer capacity.
func (f *Frame) Len() int { return f.length }

// Sequence returns the driver frame counter.
func (f *Frame) Sequence() uint32 { return f.sequence }

// Timestamp returns the driver capture time on the monotonic clock.
func (f *Frame) Timestamp() time.Duration { return f.timestamp }

// Release requeues the buffer. Only the first call has an effect; later
// calls return the same result.
func (f *Frame) Release() error {
	f.releaseOnce.Do(func() {
		f.releaseErr = f.pool.requeue(f.index, f.gen)
	})
	return f.releaseErr
}
