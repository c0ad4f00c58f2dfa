package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/snapetech/reframer/internal/reframer"
)

func TestMetricsImplementsRecorder(t *testing.T) {
	var _ reframer.Recorder = (*Metrics)(nil)
}

func TestPacketEmittedIncrementsCountersAndBytes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.PacketEmitted("video", 188)
	m.PacketEmitted("video", 12)
	m.PacketDropped("audio")

	if got := counterValue(t, m.PacketsEmitted.WithLabelValues("video")); got != 2 {
		t.Fatalf("video packets emitted = %v, want 2", got)
	}
	if got := counterValue(t, m.PacketsDropped.WithLabelValues("audio")); got != 1 {
		t.Fatalf("audio packets dropped = %v, want 1", got)
	}
	if got := counterValue(t, m.BytesEmitted); got != 200 {
		t.Fatalf("bytes emitted = %v, want 200", got)
	}
}

func TestChunkEmittedIncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ChunkEmitted(reframer.ChunkInfo{FileNumber: 1, FileSuffix: "1000-2000"})
	m.ChunkEmitted(reframer.ChunkInfo{FileNumber: 2, FileSuffix: "2000-3000"})

	if got := counterValue(t, m.ChunksEmitted); got != 2 {
		t.Fatalf("chunks emitted = %v, want 2", got)
	}
}

func TestQueueDepthSetsGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.QueueDepth("video", 7)

	var d dto.Metric
	if err := m.QueueDepthGauge.WithLabelValues("video").Write(&d); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if d.GetGauge().GetValue() != 7 {
		t.Fatalf("queue depth gauge = %v, want 7", d.GetGauge().GetValue())
	}
}

type writable interface {
	Write(*dto.Metric) error
}

func counterValue(t *testing.T, m writable) float64 {
	t.Helper()
	var d dto.Metric
	if err := m.Write(&d); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if d.Counter != nil {
		return d.Counter.GetValue()
	}
	return 0
}
