package systemd

import (
	"context"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/yuvcam/internal/events"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// recorder replaces the sd_notify transport.
type recorder struct {
	mu     sync.Mutex
	states []string
	ch     chan string
}

func newRecorder(n *Notifier) *recorder {
	r := &recorder{ch: make(chan string, 16)}
	n.notify = func(state string) (bool, error) {
		r.mu.Lock()
		r.states = append(r.states, state)
		r.mu.Unlock()
		select {
		case r.ch <- state:
		default:
		}
		return true, nil
	}
	return r
}

func (r *recorder) next(t *testing.T) string {
	t.Helper()
	select {
	case s := <-r.ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for sd_notify")
		return ""
	}
}

func TestReadyAndStopping(t *testing.T) {
	n := NewNotifier(quietLogger())
	r := newRecorder(n)

	n.Ready()
	n.Status("Capturing %dx%d", 640, 480)
	n.Stopping()

	want := []string{"READY=1", "STATUS=Capturing 640x480", "STOPPING=1"}
	for _, w := range want {
		if got := r.next(t); got != w {
			t.Errorf("state = %q, want %q", got, w)
		}
	}
}

func TestFollowCaptureEvents(t *testing.T) {
	n := NewNotifier(quietLogger())
	r := newRecorder(n)
	bus := events.New()
	n.Follow(bus)
	defer n.Stop()

	bus.Publish(events.CaptureStateChangedEvent{DevicePath: "/dev/video0", State: events.StateStreaming})
	if got := r.next(t); got != "STATUS=Capturing from /dev/video0" {
		t.Errorf("state = %q", got)
	}

	bus.Publish(events.FrameSizeChangedEvent{DevicePath: "/dev/video0", Width: 320, Height: 240})
	if got := r.next(t); got != "STATUS=Capturing 320x240 from /dev/video0" {
		t.Errorf("state = %q", got)
	}

	bus.Publish(events.CaptureStateChangedEvent{DevicePath: "/dev/video0", State: events.StateFailed})
	if got := r.next(t); !strings.Contains(got, "failed") {
		t.Errorf("state = %q", got)
	}
}

func TestWatchdog(t *testing.T) {
	n := NewNotifier(quietLogger())
	r := newRecorder(n)

	n.watchdog = func() (time.Duration, error) { return 0, nil }
	if n.StartWatchdog(context.Background()) {
		t.Fatal("watchdog started without WatchdogSec")
	}

	n.watchdog = func() (time.Duration, error) { return 20 * time.Millisecond, nil }
	if !n.StartWatchdog(context.Background()) {
		t.Fatal("watchdog not started")
	}
	for range 2 {
		if got := r.next(t); got != "WATCHDOG=1" {
			t.Errorf("state = %q, want WATCHDOG=1", got)
		}
	}
	n.Stop()
}

func TestNotifySocket(t *testing.T) {
	// sun_path is short; t.TempDir can exceed it on some systems
	dir, err := os.MkdirTemp("", "sdn")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	addr := &net.UnixAddr{Name: filepath.Join(dir, "notify.sock"), Net: "unixgram"}
	conn, err := net.ListenUnixgram("unixgram", addr)
	if err != nil {
		t.Skipf("unixgram sockets unavailable: %v", err)
	}
	defer conn.Close()
	t.Setenv("NOTIFY_SOCKET", addr.Name)

	NewNotifier(quietLogger()).Ready()

	buf := make([]byte, 64)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	nr, err := conn.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(buf[:nr]); got != "READY=1" {
		t.Errorf("datagram = %q, want READY=1", got)
	}
}
