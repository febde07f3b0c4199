package exporters

import (
	"context"
	"sync"
	"time"

	"github.com/smazurov/yuvcam/internal/events"
	"github.com/smazurov/yuvcam/internal/metrics"
)

// EventPublisher interface for publishing events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// SSEExporter turns the cached capture counters into periodic
// FrameStatsEvents. It also derives the fps gauge from the frame counter.
type SSEExporter struct {
	eventBus EventPublisher
	interval time.Duration
	now      func() time.Time
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	last     map[string]uint64
	lastTick time.Time
}

// NewSSEExporter creates a new SSE exporter.
func NewSSEExporter(eventBus EventPublisher) *SSEExporter {
	return &SSEExporter{
		eventBus: eventBus,
		interval: time.Second,
		now:      time.Now,
		last:     make(map[string]uint64),
	}
}

// Start begins the SSE export loop.
func (s *SSEExporter) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.lastTick = s.now()
	s.wg.Add(1)
	go s.run()
}

// Stop stops the SSE exporter and waits for the goroutine to finish.
func (s *SSEExporter) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *SSEExporter) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.publishStats()
		}
	}
}

func (s *SSEExporter) publishStats() {
	now := s.now()
	elapsed := now.Sub(s.lastTick).Seconds()
	s.lastTick = now

	for device, st := range metrics.GetAllCaptureStats() {
		fps := 0.0
		if prev, ok := s.last[device]; ok && elapsed > 0 && st.Frames >= prev {
			fps = float64(st.Frames-prev) / elapsed
		}
		s.last[device] = st.Frames
		metrics.SetFPS(device, fps)

		s.eventBus.Publish(events.FrameStatsEvent{
			DevicePath: device,
			Frames:     st.Frames,
			Drops:      st.Drops,
			FPS:        fps,
			Timestamp:  now.UTC().Format(time.RFC3339),
		})
	}
}
