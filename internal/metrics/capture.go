// Package metrics provides Prometheus metrics for the capture loop and its
// buffer pool.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "yuvcam"

var (
	framesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "frames_total",
		Help:      "Pictures converted and published",
	}, []string{"device"})

	dropsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "dropped_frames_total",
		Help:      "Pictures overwritten before a consumer took them",
	}, []string{"device"})

	lastFrameBytes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "last_frame_bytes",
		Help:      "Bytes used by the most recently dequeued buffer",
	}, []string{"device"})

	captureFPS = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "fps",
		Help:      "Published pictures per second",
	}, []string{"device"})

	resizesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "resizes_total",
		Help:      "Completed frame size changes",
	}, []string{"device"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "errors_total",
		Help:      "Capture errors by code",
	}, []string{"device", "code"})

	streaming = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "streaming",
		Help:      "1 while the device is streaming",
	}, []string{"device"})

	// Local cache for the SSE exporter.
	statsCache   = make(map[string]*CaptureStats)
	statsCacheMu sync.RWMutex
)

// CaptureStats holds the current values for one device.
type CaptureStats struct {
	Frames uint64
	Drops  uint64
	FPS    float64
}

// RecordFrame counts one published picture of n bytes.
func RecordFrame(device string, n int) {
	framesTotal.WithLabelValues(device).Inc()
	lastFrameBytes.WithLabelValues(device).Set(float64(n))
	updateCache(device, func(s *CaptureStats) { s.Frames++ })
}

// RecordDrop counts one picture that was overwritten unread.
func RecordDrop(device string) {
	dropsTotal.WithLabelValues(device).Inc()
	updateCache(device, func(s *CaptureStats) { s.Drops++ })
}

// SetFPS sets the published frame rate of a device.
func SetFPS(device string, fps float64) {
	captureFPS.WithLabelValues(device).Set(fps)
	updateCache(device, func(s *CaptureStats) { s.FPS = fps })
}

// RecordResize counts a completed frame size change.
func RecordResize(device string) {
	resizesTotal.WithLabelValues(device).Inc()
}

// RecordError counts an error by its code.
func RecordError(device, code string) {
	if code == "" {
		code = "UNKNOWN"
	}
	errorsTotal.WithLabelValues(device, code).Inc()
}

// SetStreaming records whether the device is streaming.
func SetStreaming(device string, on bool) {
	v := 0.0
	if on {
		v = 1
	}
	streaming.WithLabelValues(device).Set(v)
}

// DeleteCaptureMetrics removes the metrics of a device.
func DeleteCaptureMetrics(device string) {
	framesTotal.DeleteLabelValues(device)
	dropsTotal.DeleteLabelValues(device)
	lastFrameBytes.DeleteLabelValues(device)
	captureFPS.DeleteLabelValues(device)
	resizesTotal.DeleteLabelValues(device)
	errorsTotal.DeletePartialMatch(prometheus.Labels{"device": device})
	streaming.DeleteLabelValues(device)
	DeletePoolMetrics(device)

	statsCacheMu.Lock()
	delete(statsCache, device)
	statsCacheMu.Unlock()
}

// GetCaptureStats returns a copy of the current values of a device, or nil.
func GetCaptureStats(device string) *CaptureStats {
	statsCacheMu.RLock()
	defer statsCacheMu.RUnlock()
	if s, ok := statsCache[device]; ok {
		dup := *s
		return &dup
	}
	return nil
}

// GetAllCaptureStats returns copies of the values of every device.
func GetAllCaptureStats() map[string]*CaptureStats {
	statsCacheMu.RLock()
	defer statsCacheMu.RUnlock()
	result := make(map[string]*CaptureStats, len(statsCache))
	for device, s := range statsCache {
		dup := *s
		result[device] = &dup
	}
	return result
}

func updateCache(device string, update func(*CaptureStats)) {
	statsCacheMu.Lock()
	defer statsCacheMu.Unlock()
	s, ok := statsCache[device]
	if !ok {
		s = &CaptureStats{}
		statsCache[device] = s
	}
	update(s)
}
