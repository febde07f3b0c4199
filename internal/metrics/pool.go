package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var poolBuffers = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: namespace,
	Subsystem: "pool",
	Name:      "buffers",
	Help:      "User-pointer buffers by state",
}, []string{"device", "state"})

// SetPoolBuffers records how many buffers of a device are in each state.
func SetPoolBuffers(device string, free, queued, dequeued int) {
	poolBuffers.WithLabelValues(device, "free").Set(float64(free))
	poolBuffers.WithLabelValues(device, "queued").Set(float64(queued))
	poolBuffers.WithLabelValues(device, "dequeued").Set(float64(dequeued))
}

// DeletePoolMetrics removes the pool gauges of a device.
func DeletePoolMetrics(device string) {
	poolBuffers.DeletePartialMatch(prometheus.Labels{"device": device})
}
