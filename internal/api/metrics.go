package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/yuvcam/internal/events"
	"github.com/smazurov/yuvcam/internal/metrics"
)

// registerMetricsRoutes registers the metrics SSE endpoint. It carries only
// the periodic frame statistics, for clients that do not want state events.
func (s *Server) registerMetricsRoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "metrics-stream",
		Method:      http.MethodGet,
		Path:        "/api/metrics",
		Summary:     "Metrics Server-Sent Events Stream",
		Description: "Frame count, drops and fps once per export interval",
		Tags:        []string{"metrics"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"frame-stats": events.FrameStatsEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		feed := events.Follow[events.FrameStatsEvent](events.NewFeed(10), s.eventBus)
		defer s.closeFeed(feed, "metrics")

		if err := send.Data(s.currentStats()); err != nil {
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

// currentStats reports the cached counters so a new client has numbers
// before the next export tick.
func (s *Server) currentStats() events.FrameStatsEvent {
	ev := events.FrameStatsEvent{Timestamp: time.Now().UTC().Format(time.RFC3339)}
	if s.capture == nil {
		return ev
	}

	ev.DevicePath = s.capture.DevicePath()
	if st := metrics.GetCaptureStats(ev.DevicePath); st != nil {
		ev.Frames = st.Frames
		ev.Drops = st.Drops
		ev.FPS = st.FPS
	}
	return ev
}
