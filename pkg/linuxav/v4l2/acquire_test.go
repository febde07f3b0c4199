//go:build linux

package v4l2_test

import (
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/smazurov/yuvcam/pkg/linuxav/v4l2"
	"github.com/smazurov/yuvcam/pkg/linuxav/v4l2/simdriver"
)

// checkBalance asserts that every buffer has been queued exactly once more
// than it has been dequeued, except those currently held.
func checkBalance(t *testing.T, drv *simdriver.Driver, buffers int, held map[uint32]bool) {
	t.Helper()
	for i := uint32(0); i < uint32(buffers); i++ {
		want := 1
		if held[i] {
			want = 0
		}
		if got := drv.QueueCount(i) - drv.DequeueCount(i); got != want {
			t.Errorf("buffer %d: queued-dequeued = %d, want %d", i, got, want)
		}
	}
}

func TestAcquireReleaseKeepsBuffersBalanced(t *testing.T) {
	dev, drv := openSim(t, simdriver.DefaultConfig())
	buffers := dev.Pool().Len()

	for i := 0; i < 3*buffers+1; i++ {
		frame, err := dev.GetFrame()
		if err != nil {
			t.Fatalf("GetFrame() #%d error = %v", i, err)
		}
		checkBalance(t, drv, buffers, map[uint32]bool{frame.Index(): true})

		if err := frame.Release(); err != nil {
			t.Fatalf("Release() #%d error = %v", i, err)
		}
		checkBalance(t, drv, buffers, nil)
	}
}

func TestLiveFramesNeverShareABuffer(t *testing.T) {
	dev, drv := openSim(t, simdriver.DefaultConfig())
	buffers := dev.Pool().Len()

	held := make(map[uint32]bool)
	var frames []*v4l2.Frame
	for i := 0; i < buffers; i++ {
		frame, err := dev.GetFrame()
		if err != nil {
			t.Fatalf("GetFrame() error = %v", err)
		}
		if held[frame.Index()] {
			t.Fatalf("buffer %d handed out twice", frame.Index())
		}
		held[frame.Index()] = true
		frames = append(frames, frame)
	}
	checkBalance(t, drv, buffers, held)

	if dev.Pool().Outstanding() != buffers {
		t.Errorf("Outstanding() = %d, want %d", dev.Pool().Outstanding(), buffers)
	}

	// Every buffer is user owned, so nothing can become ready
	result, err := dev.WaitForFrame(10 * time.Millisecond)
	if err != nil {
		t.Fatalf("WaitForFrame() error = %v", err)
	}
	if result != v4l2.WaitTimedOut {
		t.Errorf("WaitForFrame() = %s, want timed_out", result)
	}

	for _, f := range frames {
		f.Release()
	}
	checkBalance(t, drv, buffers, nil)

	if _, err := dev.GetFrame(); err != nil {
		t.Fatalf("GetFrame() after releasing all error = %v", err)
	}
}

func TestFrameReleaseIsIdempotent(t *testing.T) {
	dev, drv := openSim(t, simdriver.DefaultConfig())

	frame, err := dev.GetFrame()
	if err != nil {
		t.Fatalf("GetFrame() error = %v", err)
	}
	before := drv.QueueCount(frame.Index())

	for i := 0; i < 3; i++ {
		if err := frame.Release(); err != nil {
			t.Fatalf("Release() #%d error = %v", i, err)
		}
	}
	if got := drv.QueueCount(frame.Index()); got != before+1 {
		t.Errorf("buffer queued %d more times, want 1", got-before)
	}
}

func TestFrameData(t *testing.T) {
	dev, _ := openSim(t, simdriver.DefaultConfig())

	frame, err := dev.GetFrame()
	if err != nil {
		t.Fatalf("GetFrame() error = %v", err)
	}

	data := frame.Data()
	if len(data) != dev.FrameBytes() || frame.Len() != dev.FrameBytes() {
		t.Errorf("len(Data()) = %d, Len() = %d, want %d", len(data), frame.Len(), dev.FrameBytes())
	}
	if frame.Width() != 640 || frame.Height() != 480 {
		t.Errorf("frame is %dx%d, want 640x480", frame.Width(), frame.Height())
	}
	// First pixel pair of the white bar
	if data[0] != 180 || data[1] != 128 {
		t.Errorf("first samples = %d %d, want 180 128", data[0], data[1])
	}

	frame.Release()
	if frame.Data() != nil {
		t.Error("Data() after Release should be nil")
	}
}

func TestFrameLengthClampedToCapacity(t *testing.T) {
	tests := []struct {
		name      string
		bytesUsed uint32
		want      int
	}{
		{"short frame", 1000, 1000},
		{"oversized report", 640*480*2 + 4096, 640 * 480 * 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := simdriver.DefaultConfig()
			cfg.BytesUsed = tt.bytesUsed
			dev, _ := openSim(t, cfg)

			err := dev.WithFrame(func(f *v4l2.Frame) error {
				if f.Len() != tt.want || len(f.Data()) != tt.want {
					t.Errorf("Len() = %d, len(Data()) = %d, want %d", f.Len(), len(f.Data()), tt.want)
				}
				return nil
			})
			if err != nil {
				t.Fatalf("WithFrame() error = %v", err)
			}
		})
	}
}

func TestAcquireBeforeStreaming(t *testing.T) {
	dev, _ := openSim(t, simdriver.DefaultConfig())
	if err := dev.Pool().StopStreaming(); err != nil {
		t.Fatalf("StopStreaming() error = %v", err)
	}

	if _, err := dev.AcquireFrame(); v4l2.CodeOf(err) != v4l2.ErrCodeStreamState {
		t.Errorf("AcquireFrame() error = %v, want %s", err, v4l2.ErrCodeStreamState)
	}
	if _, err := dev.WaitForFrame(0); v4l2.CodeOf(err) != v4l2.ErrCodeStreamState {
		t.Errorf("WaitForFrame() error = %v, want %s", err, v4l2.ErrCodeStreamState)
	}
}

func TestGetFrameRetriesTransientErrors(t *testing.T) {
	tests := []struct {
		name string
		op   simdriver.Op
		err  error
	}{
		{"interrupted wait", simdriver.OpWaitReady, syscall.EINTR},
		{"would-block dequeue", simdriver.OpDequeueBuffer, syscall.EAGAIN},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, drv := openSim(t, simdriver.DefaultConfig())
			drv.InjectError(tt.op, tt.err)

			frame, err := dev.GetFrame()
			if err != nil {
				t.Fatalf("GetFrame() error = %v", err)
			}
			frame.Release()

			if calls := drv.Calls(tt.op); calls != 2 {
				t.Errorf("%s called %d times, want 2", tt.op, calls)
			}
		})
	}
}

func TestGetFrameFatalError(t *testing.T) {
	dev, drv := openSim(t, simdriver.DefaultConfig())
	drv.InjectError(simdriver.OpDequeueBuffer, syscall.EIO)

	_, err := dev.GetFrame()
	if v4l2.CodeOf(err) != v4l2.ErrCodeControlCall || !errors.Is(err, syscall.EIO) {
		t.Fatalf("GetFrame() error = %v, want control call failure wrapping EIO", err)
	}
	if v4l2.IsRetryable(err) {
		t.Error("EIO should not be retryable")
	}
}

func TestWithFrameReleasesOnError(t *testing.T) {
	dev, drv := openSim(t, simdriver.DefaultConfig())
	errRender := errors.New("render failed")

	var index uint32
	err := dev.WithFrame(func(f *v4l2.Frame) error {
		index = f.Index()
		return errRender
	})
	if !errors.Is(err, errRender) {
		t.Fatalf("WithFrame() error = %v, want %v", err, errRender)
	}
	if !drv.HasQueued(index) {
		t.Errorf("buffer %d was not returned to the driver", index)
	}
	if dev.Pool().Outstanding() != 0 {
		t.Errorf("Outstanding() = %d, want 0", dev.Pool().Outstanding())
	}
}

func TestWithFrameReleasesOnPanic(t *testing.T) {
	dev, _ := openSim(t, simdriver.DefaultConfig())

	func() {
		defer func() { recover() }()
		dev.WithFrame(func(*v4l2.Frame) error { panic("boom") })
	}()

	if dev.Pool().Outstanding() != 0 {
		t.Errorf("Outstanding() = %d after panic, want 0", dev.Pool().Outstanding())
	}
}

func TestStaleFrameAfterStreamOff(t *testing.T) {
	dev, drv := openSim(t, simdriver.DefaultConfig())

	frame, err := dev.GetFrame()
	if err != nil {
		t.Fatalf("GetFrame() error = %v", err)
	}
	queued := drv.QueueCount(frame.Index())

	if err := dev.Pool().StopStreaming(); err != nil {
		t.Fatalf("StopStreaming() error = %v", err)
	}
	if frame.Data() != nil {
		t.Error("Data() of a stale frame should be nil")
	}
	if err := frame.Release(); err != nil {
		t.Errorf("Release() of a stale frame error = %v", err)
	}
	if drv.QueueCount(frame.Index()) != queued {
		t.Error("stale frame must not requeue its buffer")
	}
	for i, state := range dev.Pool().States() {
		if state != v4l2.BufferFree {
			t.Errorf("buffer %d is %s after stream off, want free", i, state)
		}
	}
}

func TestStaleFrameAfterReallocation(t *testing.T) {
	dev, drv := openSim(t, simdriver.DefaultConfig(), v4l2.WithBufferCount(1))

	old, err := dev.GetFrame()
	if err != nil {
		t.Fatalf("GetFrame() error = %v", err)
	}
	if err := dev.Pool().StopStreaming(); err != nil {
		t.Fatalf("StopStreaming() error = %v", err)
	}
	// 640x480 down to 320x240, so the new buffer is smaller than old.Len()
	if err := dev.SetFrameSize(1); err != nil {
		t.Fatalf("SetFrameSize() error = %v", err)
	}

	live, err := dev.GetFrame()
	if err != nil {
		t.Fatalf("GetFrame() after reallocation error = %v", err)
	}
	if live.Index() != old.Index() {
		t.Fatalf("live frame uses buffer %d, want %d", live.Index(), old.Index())
	}
	queued := drv.QueueCount(live.Index())

	if old.Data() != nil {
		t.Error("Data() of a frame from the previous pool should be nil")
	}
	if err := old.Release(); err != nil {
		t.Errorf("Release() of a stale frame error = %v", err)
	}
	if drv.QueueCount(live.Index()) != queued {
		t.Error("stale frame must not requeue the live frame's buffer")
	}
	if states := dev.Pool().States(); states[live.Index()] != v4l2.BufferDequeued {
		t.Errorf("live buffer is %s after stale release, want dequeued", states[live.Index()])
	}
	if got := len(live.Data()); got != dev.FrameBytes() {
		t.Errorf("live Data() length = %d, want %d", got, dev.FrameBytes())
	}

	if err := live.Release(); err != nil {
		t.Fatalf("Release() of the live frame error = %v", err)
	}
}
