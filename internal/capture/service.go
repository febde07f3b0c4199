// Package capture runs the capture loop: one goroutine owns the device,
// converts every frame it dequeues and hands the result to readers through
// a single-slot mailbox. Requests that touch the device, such as a frame size
// change, are executed by the same goroutine between frames.
package capture

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/yuvcam/internal/events"
	"github.com/smazurov/yuvcam/internal/logging"
	"github.com/smazurov/yuvcam/internal/metrics"
	"github.com/smazurov/yuvcam/pkg/linuxav/v4l2"
	"github.com/smazurov/yuvcam/pkg/linuxav/v4l2/simdriver"
)

// DefaultWaitTimeout bounds one wait for a frame, and with it the latency of
// requests and shutdown.
const DefaultWaitTimeout = 200 * time.Millisecond

// Config configures a Service.
type Config struct {
	DevicePath string
	// Buffers is the number of user-pointer buffers, 0 for the default.
	Buffers int
	// FrameSize selects an entry of the device's frame sizes at start.
	// Negative keeps the active size.
	FrameSize   int
	Grayscale   bool
	WaitTimeout time.Duration
	// Simulate replaces the device with an in-memory color bar generator.
	Simulate bool
	// Driver, when set, is used instead of opening DevicePath.
	Driver v4l2.Driver
}

// Publisher receives capture events.
type Publisher interface {
	Publish(ev events.Event)
}

// Info describes the running device.
type Info struct {
	Path        string
	Driver      string
	Card        string
	BusInfo     string
	Width       int
	Height      int
	PixelFormat string
	FrameBytes  int
	Buffers     int
	Streaming   bool
	Grayscale   bool
}

type request struct {
	fn   func(*v4l2.Device) error
	done chan error
}

// Service owns the capture loop.
type Service struct {
	cfg       Config
	bus       Publisher
	logger    *slog.Logger
	requests  chan request
	grayscale atomic.Bool

	mu      sync.Mutex
	mailbox *Mailbox
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	lastErr error
}

// NewService creates a stopped service. bus may be nil.
func NewService(cfg Config, bus Publisher, logger *slog.Logger) *Service {
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = DefaultWaitTimeout
	}
	if logger == nil {
		logger = logging.GetLogger("capture")
	}
	s := &Service{
		cfg:      cfg,
		bus:      bus,
		logger:   logger.With("device", cfg.DevicePath),
		requests: make(chan request),
		mailbox:  NewMailbox(),
	}
	s.grayscale.Store(cfg.Grayscale)
	return s
}

// Start opens the device, applies the configured frame size and starts the
// capture loop. The loop stops when ctx is cancelled, on Stop, or on the
// first error that cannot be retried.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return &Error{Code: ErrCodeAlreadyRunning, Message: "capture is already running"}
	}

	dev, err := s.open()
	if err != nil {
		metrics.RecordError(s.cfg.DevicePath, CodeOf(err))
		return err
	}
	if s.cfg.FrameSize >= 0 {
		if err := dev.SetFrameSize(s.cfg.FrameSize); err != nil {
			dev.Close()
			metrics.RecordError(s.cfg.DevicePath, CodeOf(err))
			return err
		}
	}

	if s.cancel != nil {
		s.cancel()
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})
	s.lastErr = nil
	if s.mailbox.closed() {
		s.mailbox = NewMailbox()
	}

	metrics.SetStreaming(s.cfg.DevicePath, true)
	s.logger.Info("Capture started", "width", dev.Width(), "height", dev.Height(), "buffers", dev.Pool().Len())
	s.publish(events.CaptureStateChangedEvent{
		DevicePath: s.cfg.DevicePath,
		State:      events.StateStreaming,
		Timestamp:  timestamp(),
	})

	go s.loop(loopCtx, dev, s.mailbox, s.done)
	return nil
}

func (s *Service) open() (*v4l2.Device, error) {
	opts := []v4l2.Option{
		v4l2.WithBufferCount(s.cfg.Buffers),
		v4l2.WithLogger(logging.GetLogger("v4l2")),
	}
	switch {
	case s.cfg.Driver != nil:
		opts = append(opts, v4l2.WithDriver(s.cfg.Driver))
	case s.cfg.Simulate:
		sim := simdriver.DefaultConfig()
		sim.FrameInterval = 33 * time.Millisecond
		opts = append(opts, v4l2.WithDriver(simdriver.New(sim)))
	}
	return v4l2.Open(s.cfg.DevicePath, opts...)
}

// Stop cancels the capture loop, waits for it to close the device and wakes
// readers blocked in Next.
func (s *Service) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done

	s.mu.Lock()
	s.cancel = nil
	s.mailbox.Close()
	s.mu.Unlock()
	return nil
}

func (s *Service) loop(ctx context.Context, dev *v4l2.Device, mb *Mailbox, done chan struct{}) {
	defer close(done)
	defer func() {
		if err := dev.Close(); err != nil {
			s.logger.Warn("Failed to close device", "error", err)
		}
		metrics.SetStreaming(s.cfg.DevicePath, false)
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Capture stopped")
			s.publish(events.CaptureStateChangedEvent{
				DevicePath: s.cfg.DevicePath,
				State:      events.StateStopped,
				Timestamp:  timestamp(),
			})
			return
		case req := <-s.requests:
			req.done <- req.fn(dev)
			continue
		default:
		}

		if err := s.captureOne(dev, mb); err != nil {
			s.fail(err)
			// nothing will publish again until the next Start
			mb.Close()
			return
		}
	}
}

// captureOne waits for at most one frame, converts it and publishes the
// picture. Only errors that end the loop are returned.
func (s *Service) captureOne(dev *v4l2.Device, mb *Mailbox) error {
	result, err := dev.WaitForFrame(s.cfg.WaitTimeout)
	if err != nil {
		if v4l2.IsRetryable(err) {
			return nil
		}
		return err
	}
	if result != v4l2.WaitReady {
		return nil
	}

	frame, err := dev.AcquireFrame()
	if err != nil {
		if v4l2.IsRetryable(err) {
			return nil
		}
		return err
	}

	pic, convErr := convert(frame, s.grayscale.Load(), time.Now())
	if err := frame.Release(); err != nil {
		return err
	}

	states := dev.Pool().States()
	metrics.SetPoolBuffers(s.cfg.DevicePath, countState(states, v4l2.BufferFree),
		countState(states, v4l2.BufferQueued), countState(states, v4l2.BufferDequeued))

	if convErr != nil {
		s.logger.Debug("Skipping frame", "error", convErr)
		metrics.RecordError(s.cfg.DevicePath, ErrCodeConvert)
		return nil
	}

	metrics.RecordFrame(s.cfg.DevicePath, pic.Bytes)
	if mb.Publish(pic) {
		metrics.RecordDrop(s.cfg.DevicePath)
	}
	return nil
}

func (s *Service) fail(err error) {
	code := CodeOf(err)
	s.logger.Error("Capture failed", "code", code, "error", err)
	metrics.RecordError(s.cfg.DevicePath, code)

	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()

	now := timestamp()
	s.publish(events.CaptureErrorEvent{
		DevicePath: s.cfg.DevicePath,
		Code:       code,
		Message:    "Capture stopped",
		Error:      err.Error(),
		Timestamp:  now,
	})
	s.publish(events.CaptureStateChangedEvent{
		DevicePath: s.cfg.DevicePath,
		State:      events.StateFailed,
		Timestamp:  now,
	})
}

// do runs fn on the capture goroutine and returns its error.
func (s *Service) do(ctx context.Context, fn func(*v4l2.Device) error) error {
	s.mu.Lock()
	running, done := s.running, s.done
	s.mu.Unlock()
	if !running {
		return ErrNotRunning
	}

	req := request{fn: fn, done: make(chan error, 1)}
	select {
	case s.requests <- req:
	case <-done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}

	// Once accepted the request always completes, since the loop answers
	// before it checks for cancellation again.
	return <-req.done
}

// FrameSizes returns the frame sizes the device offers for YUYV.
func (s *Service) FrameSizes(ctx context.Context) ([]v4l2.Resolution, error) {
	var sizes []v4l2.Resolution
	err := s.do(ctx, func(dev *v4l2.Device) error {
		var err error
		sizes, err = dev.ListFrameSizes()
		return err
	})
	return sizes, err
}

// Formats returns the pixel formats the device offers.
func (s *Service) Formats(ctx context.Context) ([]v4l2.FormatInfo, error) {
	var formats []v4l2.FormatInfo
	err := s.do(ctx, func(dev *v4l2.Device) error {
		var err error
		formats, err = dev.ListFormats()
		return err
	})
	return formats, err
}

// SetFrameSize switches to the index-th entry of FrameSizes.
func (s *Service) SetFrameSize(ctx context.Context, index int) error {
	var ev events.FrameSizeChangedEvent
	err := s.do(ctx, func(dev *v4l2.Device) error {
		if err := dev.SetFrameSize(index); err != nil {
			return err
		}
		f := dev.Format()
		ev = events.FrameSizeChangedEvent{
			DevicePath: s.cfg.DevicePath,
			Index:      index,
			Width:      f.Width,
			Height:     f.Height,
			FrameBytes: uint32(f.FrameBytes()),
			Timestamp:  timestamp(),
		}
		return nil
	})
	if err != nil {
		metrics.RecordError(s.cfg.DevicePath, CodeOf(err))
		return err
	}

	metrics.RecordResize(s.cfg.DevicePath)
	s.publish(ev)
	return nil
}

// Info describes the device as the capture loop currently sees it.
func (s *Service) Info(ctx context.Context) (Info, error) {
	var info Info
	err := s.do(ctx, func(dev *v4l2.Device) error {
		c := dev.Capability()
		f := dev.Format()
		info = Info{
			Path:        dev.Path(),
			Driver:      c.Driver,
			Card:        c.Card,
			BusInfo:     c.BusInfo,
			Width:       dev.Width(),
			Height:      dev.Height(),
			PixelFormat: v4l2.FormatFourCC(f.PixelFormat),
			FrameBytes:  dev.FrameBytes(),
			Buffers:     dev.Pool().Len(),
			Streaming:   dev.Streaming(),
			Grayscale:   s.grayscale.Load(),
		}
		return nil
	})
	return info, err
}

// SetGrayscale switches between color and luma-only conversion. It takes
// effect with the next frame.
func (s *Service) SetGrayscale(on bool) {
	if s.grayscale.Swap(on) != on {
		s.logger.Info("Render mode changed", "grayscale", on)
	}
}

// Grayscale reports whether frames are converted to luma only.
func (s *Service) Grayscale() bool {
	return s.grayscale.Load()
}

// Latest returns the newest picture without waiting.
func (s *Service) Latest() (*Picture, error) {
	if pic := s.currentMailbox().Latest(); pic != nil {
		return pic, nil
	}
	return nil, ErrNoPicture
}

// Next waits for a picture newer than afterSeq.
func (s *Service) Next(ctx context.Context, afterSeq uint64) (*Picture, error) {
	return s.currentMailbox().Next(ctx, afterSeq)
}

// Drops returns how many pictures were replaced before anyone read them.
func (s *Service) Drops() uint64 {
	return s.currentMailbox().Drops()
}

// Running reports whether the capture loop is active.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Err returns the error that ended the last run, if any.
func (s *Service) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// DevicePath returns the configured device path.
func (s *Service) DevicePath() string {
	return s.cfg.DevicePath
}

func (s *Service) currentMailbox() *Mailbox {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mailbox
}

func (s *Service) publish(ev events.Event) {
	if s.bus != nil {
		s.bus.Publish(ev)
	}
}

func countState(states []v4l2.BufferState, want v4l2.BufferState) int {
	n := 0
	for _, st := range states {
		if st == want {
			n++
		}
	}
	return n
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
