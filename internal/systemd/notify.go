// Package systemd reports service readiness, status and watchdog pings to
// systemd via sd_notify. Outside a Type=notify unit every call is a no-op.
package systemd

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/smazurov/yuvcam/internal/events"
)

// Notifier sends sd_notify messages.
type Notifier struct {
	logger   *slog.Logger
	notify   func(state string) (bool, error)
	watchdog func() (time.Duration, error)

	mu     sync.Mutex
	unsubs []func()
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewNotifier creates a notifier for the socket named by $NOTIFY_SOCKET.
func NewNotifier(logger *slog.Logger) *Notifier {
	return &Notifier{
		logger: logger,
		notify: func(state string) (bool, error) {
			return daemon.SdNotify(false, state)
		},
		watchdog: func() (time.Duration, error) {
			return daemon.SdWatchdogEnabled(false)
		},
	}
}

func (n *Notifier) send(state string) {
	sent, err := n.notify(state)
	switch {
	case err != nil:
		n.logger.Warn("sd_notify failed", "state", state, "error", err)
	case sent:
		n.logger.Debug("sd_notify sent", "state", state)
	}
}

// Ready tells systemd startup is complete.
func (n *Notifier) Ready() {
	n.send(daemon.SdNotifyReady)
}

// Stopping tells systemd shutdown has begun.
func (n *Notifier) Stopping() {
	n.send(daemon.SdNotifyStopping)
}

// Status sets the one-line status shown by systemctl status.
func (n *Notifier) Status(format string, args ...any) {
	n.send("STATUS=" + fmt.Sprintf(format, args...))
}

// Follow keeps the status line in step with capture events.
func (n *Notifier) Follow(bus *events.Bus) {
	unsubs := []func(){
		bus.Subscribe(func(e events.CaptureStateChangedEvent) {
			switch e.State {
			case events.StateStreaming:
				n.Status("Capturing from %s", e.DevicePath)
			case events.StateFailed:
				n.Status("Capture failed on %s", e.DevicePath)
			default:
				n.Status("Capture stopped on %s", e.DevicePath)
			}
		}),
		bus.Subscribe(func(e events.FrameSizeChangedEvent) {
			n.Status("Capturing %dx%d from %s", e.Width, e.Height, e.DevicePath)
		}),
		bus.Subscribe(func(e events.CaptureErrorEvent) {
			n.Status("Capture error on %s: %s", e.DevicePath, e.Code)
		}),
	}

	n.mu.Lock()
	n.unsubs = append(n.unsubs, unsubs...)
	n.mu.Unlock()
}

// StartWatchdog pings the watchdog at half the interval systemd configured
// with WatchdogSec. It returns false when no watchdog is configured.
func (n *Notifier) StartWatchdog(ctx context.Context) bool {
	interval, err := n.watchdog()
	if err != nil {
		n.logger.Warn("Invalid watchdog configuration", "error", err)
		return false
	}
	if interval <= 0 {
		return false
	}

	ctx, cancel := context.WithCancel(ctx)
	n.mu.Lock()
	n.cancel = cancel
	n.mu.Unlock()

	n.logger.Info("Systemd watchdog enabled", "interval", interval)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ticker := time.NewTicker(interval / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n.send(daemon.SdNotifyWatchdog)
			}
		}
	}()
	return true
}

// Stop ends the watchdog and event subscriptions.
func (n *Notifier) Stop() {
	n.mu.Lock()
	unsubs, cancel := n.unsubs, n.cancel
	n.unsubs, n.cancel = nil, nil
	n.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	if cancel != nil {
		cancel()
	}
	n.wg.Wait()
}
