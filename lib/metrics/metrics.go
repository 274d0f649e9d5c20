package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FramesWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webrender_stream_frames_written_total",
		Help: "Total number of painted frames accepted into the frame queue",
	}, []string{"name"})
	FramesRequested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webrender_stream_frames_requested_total",
		Help: "Total number of frames requested by the pipeline",
	}, []string{"name"})
	FramesRead = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webrender_stream_frames_read_total",
		Help: "Total number of queued frames copied into a pipeline buffer",
	}, []string{"name"})
	FramesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webrender_stream_frames_dropped_total",
		Help: "Total number of painted frames that never reached the pipeline",
	}, []string{"name"})
	FramesDuplicated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webrender_stream_frames_duplicated_total",
		Help: "Total number of pipeline requests answered with the previous frame",
	}, []string{"name"})
	SessionActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "webrender_session_active",
		Help: "Whether a browser session is currently running",
	}, []string{"name"})
)

type StreamMetrics struct {
	FramesRequested  prometheus.Counter
	FramesRead       prometheus.Counter
	FramesWritten    prometheus.Counter
	FramesDropped    prometheus.Counter
	FramesDuplicated prometheus.Counter
	SessionActive    prometheus.Gauge
}

func NewStreamMetrics(name string) StreamMetrics {
	s := StreamMetrics{
		FramesRequested:  FramesRequested.WithLabelValues(name),
		FramesRead:       FramesRead.WithLabelValues(name),
		FramesWritten:    FramesWritten.WithLabelValues(name),
		FramesDropped:    FramesDropped.WithLabelValues(name),
		FramesDuplicated: FramesDuplicated.WithLabelValues(name),
		SessionActive:    SessionActive.WithLabelValues(name),
	}
	s.FramesRequested.Add(0)
	s.FramesRead.Add(0)
	s.FramesWritten.Add(0)
	s.FramesDropped.Add(0)
	s.FramesDuplicated.Add(0)
	s.SessionActive.Set(0)
	return s
}

// Handler should usually be mounted at /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
