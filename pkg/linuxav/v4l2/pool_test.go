//go:build linux

package v4l2_test

import (
	"slices"
	"syscall"
	"testing"

	"github.com/smazurov/yuvcam/pkg/linuxav/v4l2"
	"github.com/smazurov/yuvcam/pkg/linuxav/v4l2/simdriver"
)

const vgaFrameBytes = 640 * 480 * 2

func TestBufferPoolLifecycle(t *testing.T) {
	drv := simdriver.New(simdriver.DefaultConfig())
	pool := v4l2.NewBufferPool(drv, nil)

	if err := pool.StartStreaming(); v4l2.CodeOf(err) != v4l2.ErrCodeStreamState {
		t.Fatalf("StartStreaming() on empty pool error = %v, want %s", err, v4l2.ErrCodeStreamState)
	}

	if err := pool.Allocate(3, vgaFrameBytes); err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if err := pool.Allocate(3, vgaFrameBytes); v4l2.CodeOf(err) != v4l2.ErrCodeStreamState {
		t.Errorf("second Allocate() error = %v, want %s", err, v4l2.ErrCodeStreamState)
	}
	if pool.Len() != 3 || pool.FrameBytes() != vgaFrameBytes {
		t.Errorf("pool is %d x %d, want 3 x %d", pool.Len(), pool.FrameBytes(), vgaFrameBytes)
	}

	// Buffers are registered but none is queued yet
	if err := pool.StartStreaming(); v4l2.CodeOf(err) != v4l2.ErrCodeStreamState {
		t.Errorf("StartStreaming() before EnqueueAll error = %v, want %s", err, v4l2.ErrCodeStreamState)
	}
	if drv.Calls(simdriver.OpStreamOn) != 0 {
		t.Error("stream on must not reach the driver before buffers are queued")
	}

	if err := pool.EnqueueAll(); err != nil {
		t.Fatalf("EnqueueAll() error = %v", err)
	}
	if !slices.Equal(pool.States(), []v4l2.BufferState{v4l2.BufferQueued, v4l2.BufferQueued, v4l2.BufferQueued}) {
		t.Errorf("States() = %v, want all queued", pool.States())
	}
	if err := pool.StartStreaming(); err != nil {
		t.Fatalf("StartStreaming() error = %v", err)
	}

	if err := pool.Teardown(); v4l2.CodeOf(err) != v4l2.ErrCodeStreamState {
		t.Errorf("Teardown() while streaming error = %v, want %s", err, v4l2.ErrCodeStreamState)
	}
	if drv.Registered() != 3 {
		t.Errorf("driver holds %d buffers after refused teardown, want 3", drv.Registered())
	}

	if err := pool.StopStreaming(); err != nil {
		t.Fatalf("StopStreaming() error = %v", err)
	}
	if err := pool.Teardown(); err != nil {
		t.Fatalf("Teardown() error = %v", err)
	}
	if pool.Len() != 0 || drv.Registered() != 0 {
		t.Errorf("after Teardown pool has %d, driver has %d buffers", pool.Len(), drv.Registered())
	}
}

func TestBufferPoolRejectsEmptyRequest(t *testing.T) {
	drv := simdriver.New(simdriver.DefaultConfig())
	pool := v4l2.NewBufferPool(drv, nil)

	if err := pool.Allocate(0, vgaFrameBytes); err == nil {
		t.Error("Allocate(0) should fail")
	}
	if pool.Len() != 0 {
		t.Errorf("Len() = %d, want 0", pool.Len())
	}
	if drv.Calls(simdriver.OpRequestBuffers) != 0 {
		t.Error("an empty request must not reach the driver")
	}
}

func TestTeardownKeepsMemoryWhenStreamOffFails(t *testing.T) {
	dev, drv := openSim(t, simdriver.DefaultConfig())
	drv.InjectError(simdriver.OpStreamOff, syscall.EIO)

	if err := dev.Pool().StopStreaming(); v4l2.CodeOf(err) != v4l2.ErrCodeControlCall {
		t.Fatalf("StopStreaming() error = %v, want %s", err, v4l2.ErrCodeControlCall)
	}
	reqbufs := drv.Calls(simdriver.OpRequestBuffers)

	if err := dev.Pool().Teardown(); v4l2.CodeOf(err) != v4l2.ErrCodeStreamState {
		t.Errorf("Teardown() error = %v, want %s", err, v4l2.ErrCodeStreamState)
	}
	if drv.Calls(simdriver.OpRequestBuffers) != reqbufs {
		t.Error("buffers must stay registered when streaming could not be stopped")
	}
	if dev.Pool().Len() == 0 {
		t.Error("buffer memory must stay mapped when streaming could not be stopped")
	}
}

func TestSetFrameSizeOutOfRangeLeavesPoolUntouched(t *testing.T) {
	dev, drv := openSim(t, simdriver.DefaultConfig())

	frame, err := dev.GetFrame()
	if err != nil {
		t.Fatalf("GetFrame() error = %v", err)
	}
	frame.Release()

	states := dev.Pool().States()
	queued := drv.Queued()
	reqbufs := drv.Calls(simdriver.OpRequestBuffers)

	for _, index := range []int{3, 42, -1} {
		err := dev.SetFrameSize(index)
		if v4l2.CodeOf(err) != v4l2.ErrCodeFrameSizeOutOfRange {
			t.Errorf("SetFrameSize(%d) error = %v, want %s", index, err, v4l2.ErrCodeFrameSizeOutOfRange)
		}
	}

	if !slices.Equal(dev.Pool().States(), states) {
		t.Errorf("States() = %v, want %v", dev.Pool().States(), states)
	}
	if !slices.Equal(drv.Queued(), queued) {
		t.Errorf("driver queue = %v, want %v", drv.Queued(), queued)
	}
	if drv.Calls(simdriver.OpStreamOff) != 0 || drv.Calls(simdriver.OpRequestBuffers) != reqbufs {
		t.Error("an out of range resize must not touch streaming or buffers")
	}
	if !dev.Streaming() || dev.Width() != 640 {
		t.Error("device should still stream at 640x480")
	}
}

func TestSetFrameSize(t *testing.T) {
	dev, drv := openSim(t, simdriver.DefaultConfig())

	if err := dev.SetFrameSize(1); err != nil {
		t.Fatalf("SetFrameSize(1) error = %v", err)
	}
	if dev.Width() != 320 || dev.Height() != 240 {
		t.Errorf("negotiated %dx%d, want 320x240", dev.Width(), dev.Height())
	}
	if dev.FrameBytes() != 320*240*2 || dev.Pool().FrameBytes() != 320*240*2 {
		t.Errorf("FrameBytes() = %d, pool %d, want %d", dev.FrameBytes(), dev.Pool().FrameBytes(), 320*240*2)
	}
	if !dev.Streaming() || !drv.Streaming() {
		t.Fatal("device should stream again after resize")
	}

	err := dev.WithFrame(func(f *v4l2.Frame) error {
		if f.Width() != 320 || f.Height() != 240 || f.Len() != 320*240*2 {
			t.Errorf("frame is %dx%d with %d bytes", f.Width(), f.Height(), f.Len())
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithFrame() error = %v", err)
	}
}

func TestSetFrameSizeRefusedWhileFrameHeld(t *testing.T) {
	dev, drv := openSim(t, simdriver.DefaultConfig())

	frame, err := dev.GetFrame()
	if err != nil {
		t.Fatalf("GetFrame() error = %v", err)
	}

	if err := dev.SetFrameSize(1); v4l2.CodeOf(err) != v4l2.ErrCodeStreamState {
		t.Errorf("SetFrameSize() with a held frame error = %v, want %s", err, v4l2.ErrCodeStreamState)
	}
	if drv.Calls(simdriver.OpStreamOff) != 0 {
		t.Error("stream must keep running while a frame is held")
	}
	if frame.Data() == nil {
		t.Error("held frame must stay readable")
	}

	frame.Release()
	if err := dev.SetFrameSize(1); err != nil {
		t.Fatalf("SetFrameSize() after release error = %v", err)
	}
}

func TestSetFrameSizeRestoresOnFormatFailure(t *testing.T) {
	dev, drv := openSim(t, simdriver.DefaultConfig())
	drv.InjectError(simdriver.OpSetFormat, syscall.EINVAL)

	err := dev.SetFrameSize(2)
	if v4l2.CodeOf(err) != v4l2.ErrCodeControlCall {
		t.Fatalf("SetFrameSize() error = %v, want %s", err, v4l2.ErrCodeControlCall)
	}
	if dev.Width() != 640 || dev.Height() != 480 {
		t.Errorf("format after failed resize is %dx%d, want 640x480", dev.Width(), dev.Height())
	}
	if !dev.Streaming() {
		t.Error("capture should resume at the previous size")
	}
}
