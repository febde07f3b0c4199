package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/yuvcam/internal/events"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time capture state, errors, frame size changes, frame statistics and config reloads",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"capture-state-changed": events.CaptureStateChangedEvent{},
		"capture-error":         events.CaptureErrorEvent{},
		"frame-size-changed":    events.FrameSizeChangedEvent{},
		"frame-stats":           events.FrameStatsEvent{},
		"config-reloaded":       events.ConfigReloadedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		feed := events.NewFeed(10)
		events.Follow[events.CaptureStateChangedEvent](feed, s.eventBus)
		events.Follow[events.CaptureErrorEvent](feed, s.eventBus)
		events.Follow[events.FrameSizeChangedEvent](feed, s.eventBus)
		events.Follow[events.FrameStatsEvent](feed, s.eventBus)
		events.Follow[events.ConfigReloadedEvent](feed, s.eventBus)
		defer s.closeFeed(feed, "events")

		// Late subscribers missed the last transition, so start with the
		// current state
		if err := send.Data(s.currentState()); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-feed.C():
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}

func (s *Server) currentState() events.CaptureStateChangedEvent {
	ev := events.CaptureStateChangedEvent{
		State:     events.StateStopped,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if s.capture == nil {
		return ev
	}

	ev.DevicePath = s.capture.DevicePath()
	switch {
	case s.capture.Running():
		ev.State = events.StateStreaming
	case s.capture.Err() != nil:
		ev.State = events.StateFailed
	}
	return ev
}

// closeFeed unsubscribes a client's feed and notes whether it fell behind.
func (s *Server) closeFeed(feed *events.Feed, stream string) {
	feed.Close()
	if n := feed.Dropped(); n > 0 {
		s.logger.Debug("SSE client missed events", "stream", stream, "dropped", n)
	}
}
