package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/yuvcam/internal/api/models"
	"github.com/smazurov/yuvcam/internal/events"
	"github.com/smazurov/yuvcam/internal/logging"
)

// registerLogRoutes registers the buffered log endpoint.
func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Recent Logs",
		Description: "Log lines held in the in-memory ring buffer",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, input *models.LogsInput) (*models.LogsResponse, error) {
		var entries []logging.LogEntry
		if buffer := logging.GetBuffer(); buffer != nil {
			entries = buffer.Since(input.After)
		}

		if input.Module != "" {
			filtered := entries[:0:0]
			for _, e := range entries {
				if e.Module == input.Module {
					filtered = append(filtered, e)
				}
			}
			entries = filtered
		}
		if input.Limit > 0 && len(entries) > input.Limit {
			entries = entries[len(entries)-input.Limit:]
		}
		if entries == nil {
			entries = []logging.LogEntry{}
		}

		return &models.LogsResponse{
			Body: models.LogsData{Entries: entries, Count: len(entries)},
		}, nil
	})
}

// registerLogStreamRoutes registers the log streaming SSE endpoint.
func (s *Server) registerLogStreamRoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "logs-stream",
		Method:      http.MethodGet,
		Path:        "/api/logs/stream",
		Summary:     "Log Stream",
		Description: "Real-time log streaming via Server-Sent Events. Sends historical logs first, then streams new logs.",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"message": events.LogEntryEvent{},
	}, func(ctx context.Context, input *models.LogStreamInput, send sse.Sender) {
		// Subscribe before replaying so nothing logged in between is lost;
		// live entries already replayed are skipped by seq.
		feed := events.Follow[events.LogEntryEvent](events.NewFeed(100), s.eventBus)
		defer s.closeFeed(feed, "logs")

		sent := input.After
		if buffer := logging.GetBuffer(); buffer != nil {
			for _, entry := range buffer.Since(input.After) {
				if err := send.Data(LogEntryEvent(entry)); err != nil {
					return
				}
				sent = entry.Seq
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-feed.C():
				if e, ok := event.(events.LogEntryEvent); ok && e.Seq != 0 && e.Seq <= sent {
					continue
				}
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}

// LogEntryEvent converts a buffered log line to its SSE form.
func LogEntryEvent(entry logging.LogEntry) events.LogEntryEvent {
	return events.LogEntryEvent{
		Seq:        entry.Seq,
		Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
		Level:      entry.Level,
		Module:     entry.Module,
		Message:    entry.Message,
		Attributes: entry.Attributes,
	}
}
