//go:build linux

package v4l2

import (
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sys/unix"
)

// slot is one user-pointer buffer. mem is an anonymous mapping outside the
// Go heap, so its address never moves while the kernel holds it.
type slot struct {
	index uint32
	mem   []byte
	state BufferState
	gen   uint64 // drawn from BufferPool.gen on every dequeue and on stream off
}

// BufferPool owns the user-pointer buffers registered with one driver and
// tracks who owns each of them.
type BufferPool struct {
	mu         sync.Mutex
	drv        Driver
	logger     *slog.Logger
	slots      []*slot
	frameBytes int
	streaming  bool
	// gen only grows, across reallocations too, so a Frame from an earlier
	// set of buffers never matches a slot in the current one.
	gen uint64
	// stuck is set when STREAMOFF failed; the kernel may still write to the
	// buffers so their memory is never unmapped.
	stuck bool
}

// NewBufferPool returns an empty pool for drv.
func NewBufferPool(drv Driver, logger *slog.Logger) *BufferPool {
	if logger == nil {
		logger = slog.Default()
	}
	return &BufferPool{drv: drv, logger: logger}
}

// Allocate registers n user-pointer buffers of frameBytes each with one
// buffer request and maps memory for as many as the driver granted.
func (p *BufferPool) Allocate(n, frameBytes int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.slots) > 0 {
		return stateError("allocate", "pool already holds buffers")
	}
	if n <= 0 || frameBytes <= 0 {
		return newError(ErrCodeStreamState, fmt.Sprintf("invalid pool geometry %d x %d bytes", n, frameBytes), nil)
	}

	granted, err := p.drv.RequestBuffers(uint32(n))
	if err != nil {
		return controlError("VIDIOC_REQBUFS", err)
	}
	if granted == 0 {
		return newError(ErrCodeControlCall, "driver granted no user-pointer buffers", nil)
	}
	if int(granted) != n {
		p.logger.Warn("Driver adjusted buffer count", "requested", n, "granted", granted)
	}

	slots := make([]*slot, 0, granted)
	for i := uint32(0); i < granted; i++ {
		mem, err := unix.Mmap(-1, 0, frameBytes, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
		if err != nil {
			for _, s := range slots {
				unix.Munmap(s.mem)
			}
			if _, relErr := p.drv.RequestBuffers(0); relErr != nil {
				p.logger.Warn("Failed to release buffer registration", "error", relErr)
			}
			return fmt.Errorf("map buffer %d: %w", i, err)
		}
		slots = append(slots, &slot{index: i, mem: mem, state: BufferFree, gen: p.nextGen()})
	}

	p.slots = slots
	p.frameBytes = frameBytes
	p.logger.Debug("Buffers allocated", "count", granted, "frame_bytes", frameBytes)
	return nil
}

// EnqueueAll hands every free buffer to the kernel.
func (p *BufferPool) EnqueueAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.slots) == 0 {
		return stateError("VIDIOC_QBUF", "no buffers allocated")
	}
	for _, s := range p.slots {
		if s.state != BufferFree {
			continue
		}
		if err := p.drv.QueueBuffer(s.index, s.mem); err != nil {
			return controlError(fmt.Sprintf("VIDIOC_QBUF[%d]", s.index), err)
		}
		s.state = BufferQueued
	}
	return nil
}

// StartStreaming turns capture on. Every allocated buffer must have been
// queued first.
func (p *BufferPool) StartStreaming() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.streaming {
		return stateError("VIDIOC_STREAMON", "already streaming")
	}
	if len(p.slots) == 0 {
		return stateError("VIDIOC_STREAMON", "no buffers queued")
	}
	for _, s := range p.slots {
		if s.state == BufferFree {
			return stateError("VIDIOC_STREAMON", fmt.Sprintf("buffer %d was never queued", s.index))
		}
	}

	if err := p.drv.StreamOn(); err != nil {
		return controlError("VIDIOC_STREAMON", err)
	}
	p.streaming = true
	p.logger.Debug("Streaming started", "buffers", len(p.slots))
	return nil
}

// StopStreaming turns capture off. Every buffer returns to Free and any
// Frame still holding one becomes stale.
func (p *BufferPool) StopStreaming() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.streaming {
		return nil
	}
	if err := p.drv.StreamOff(); err != nil {
		p.stuck = true
		return controlError("VIDIOC_STREAMOFF", err)
	}

	p.streaming = false
	p.stuck = false
	for _, s := range p.slots {
		s.state = BufferFree
		s.gen = p.nextGen()
	}
	p.logger.Debug("Streaming stopped")
	return nil
}

// Teardown releases the driver registration and then the memory. It refuses
// to run while streaming, and keeps the memory mapped if streaming could not
// be stopped.
func (p *BufferPool) Teardown() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.streaming || p.stuck {
		return stateError("teardown", "streaming has not stopped")
	}
	if len(p.slots) == 0 {
		return nil
	}

	if _, err := p.drv.RequestBuffers(0); err != nil {
		return controlError("VIDIOC_REQBUFS", err)
	}
	for _, s := range p.slots {
		if err := unix.Munmap(s.mem); err != nil {
			p.logger.Warn("Failed to unmap buffer", "index", s.index, "error", err)
		}
		s.mem = nil
	}
	p.slots = nil
	p.frameBytes = 0
	return nil
}

// dequeue takes the next filled buffer from the kernel and marks it user
// owned.
func (p *BufferPool) dequeue() (*slot, uint64, DequeuedBuffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.streaming {
		return nil, 0, DequeuedBuffer{}, stateError("VIDIOC_DQBUF", "streaming has not started")
	}

	buf, err := p.drv.DequeueBuffer()
	if err != nil {
		return nil, 0, DequeuedBuffer{}, controlError("VIDIOC_DQBUF", err)
	}
	if int(buf.Index) >= len(p.slots) {
		return nil, 0, DequeuedBuffer{}, stateError("VIDIOC_DQBUF", fmt.Sprintf("driver returned unknown buffer %d", buf.Index))
	}

	s := p.slots[buf.Index]
	if s.state != BufferQueued {
		return nil, 0, DequeuedBuffer{}, stateError("VIDIOC_DQBUF", fmt.Sprintf("buffer %d is %s, not queued", s.index, s.state))
	}
	s.state = BufferDequeued
	s.gen = p.nextGen()
	return s, s.gen, buf, nil
}

// nextGen must be called with mu held.
func (p *BufferPool) nextGen() uint64 {
	p.gen++
	return p.gen
}

// requeue gives a dequeued buffer back to the kernel. A stale generation
// means streaming was stopped since the dequeue and nothing is done.
func (p *BufferPool) requeue(index uint32, gen uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if int(index) >= len(p.slots) {
		return nil
	}
	s := p.slots[index]
	if s.gen != gen || s.state != BufferDequeued {
		p.logger.Debug("Dropping stale frame release", "index", index)
		return nil
	}

	if err := p.drv.QueueBuffer(s.index, s.mem); err != nil {
		s.state = BufferFree
		return controlError(fmt.Sprintf("VIDIOC_QBUF[%d]", s.index), err)
	}
	s.state = BufferQueued
	return nil
}

// view returns the bytes of a dequeued buffer while gen still owns it.
func (p *BufferPool) view(index uint32, gen uint64, n int) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	if int(index) >= len(p.slots) {
		return nil
	}
	s := p.slots[index]
	if s.gen != gen || s.state != BufferDequeued || n > len(s.mem) {
		return nil
	}
	return s.mem[:n:n]
}

// Len returns the number of allocated buffers.
func (p *BufferPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots)
}

// FrameBytes returns the capacity of each buffer.
func (p *BufferPool) FrameBytes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frameBytes
}

// Streaming reports whether the kernel is capturing into the pool.
func (p *BufferPool) Streaming() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.streaming
}

// Outstanding returns the number of buffers lent to Frames.
func (p *BufferPool) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, s := range p.slots {
		if s.state == BufferDequeued {
			n++
		}
	}
	return n
}

// States returns the state of every buffer by index.
func (p *BufferPool) States() []BufferState {
	p.mu.Lock()
	defer p.mu.Unlock()

	states := make([]BufferState, len(p.slots))
	for i, s := range p.slots {
		states[i] = s.state
	}
	return states
}
