// Package metrics exposes the engine's counters/gauges via prometheus
// client_golang, served by cmd/reframer alongside the debug event mux.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/snapetech/reframer/internal/reframer"
)

// Metrics groups the engine's exported series. Construct one with New and
// pass it down to the session loop; cmd/reframer owns the registry and the
// HTTP handler.
type Metrics struct {
	ChunksEmitted    prometheus.Counter
	PacketsEmitted   *prometheus.CounterVec
	PacketsDropped   *prometheus.CounterVec
	BytesEmitted     prometheus.Counter
	RescheduleDelays prometheus.Histogram
	QueueDepthGauge  *prometheus.GaugeVec
}

// New registers the engine's metrics against reg and returns the handles.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ChunksEmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "reframer_chunks_emitted_total",
			Help: "Number of chunks fully emitted across all ranges.",
		}),
		PacketsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reframer_packets_emitted_total",
			Help: "Number of packets forwarded downstream, by stream id.",
		}, []string{"stream"}),
		PacketsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reframer_packets_dropped_total",
			Help: "Number of packets dropped by SAP/refs/frames filters, by stream id.",
		}, []string{"stream"}),
		BytesEmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "reframer_bytes_emitted_total",
			Help: "Total payload bytes forwarded downstream.",
		}),
		RescheduleDelays: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "reframer_rt_reschedule_delay_us",
			Help:    "Requested real-time pacer reschedule delays, in microseconds.",
			Buckets: prometheus.ExponentialBuckets(100, 4, 10),
		}),
		QueueDepthGauge: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "reframer_queue_depth",
			Help: "Number of packets currently queued per stream.",
		}, []string{"stream"}),
	}
}

// Handler returns the /metrics HTTP handler for reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// PacketEmitted, PacketDropped, ChunkEmitted, RescheduleRequested and
// QueueDepth implement reframer.Recorder, so a *Metrics can be passed
// directly to Context.SetRecorder.
func (m *Metrics) PacketEmitted(stream string, bytes int) {
	m.PacketsEmitted.WithLabelValues(stream).Inc()
	m.BytesEmitted.Add(float64(bytes))
}

func (m *Metrics) PacketDropped(stream string) {
	m.PacketsDropped.WithLabelValues(stream).Inc()
}

func (m *Metrics) ChunkEmitted(info reframer.ChunkInfo) { m.ChunksEmitted.Inc() }

func (m *Metrics) RescheduleRequested(us int64) {
	m.RescheduleDelays.Observe(float64(us))
}

func (m *Metrics) QueueDepth(stream string, depth int) {
	m.QueueDepthGauge.WithLabelValues(stream).Set(float64(depth))
}
