// Package metrics exposes Prometheus metrics for upstream calls and stream transcoding.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/florianilch/vela-proxy/internal/openaiadapter/datastream"
)

const namespace = "vela"

// Collector records transcoding metrics into its own registry.
type Collector struct {
	registry *prometheus.Registry

	frames           *prometheus.CounterVec
	droppedFrames    *prometheus.CounterVec
	streams          *prometheus.CounterVec
	upstreamRequests *prometheus.CounterVec
	streamDuration   prometheus.Histogram
}

// Compile-time check that Collector implements datastream.Recorder
var _ datastream.Recorder = (*Collector)(nil)

// NewCollector creates a Collector. If registry is nil a fresh registry is used.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "frames_total",
			Help:      "Upstream frames processed, by tag.",
		}, []string{"tag"}),
		droppedFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "dropped_frames_total",
			Help:      "Upstream frames that produced no output, by reason.",
		}, []string{"reason"}),
		streams: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_total",
			Help:      "Finished transcoding sessions, by outcome.",
		}, []string{"outcome"}),
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Upstream responses, by HTTP status code.",
		}, []string{"code"}),
		streamDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "duration_seconds",
			Help:      "Time from first read to end of a transcoding session.",
			// LLM turns range from sub-second replies to multi-minute generations
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
	}

	registry.MustRegister(
		c.frames,
		c.droppedFrames,
		c.streams,
		c.upstreamRequests,
		c.streamDuration,
	)

	return c
}

// Frame implements datastream.Recorder.
func (c *Collector) Frame(tag datastream.Tag) {
	c.frames.WithLabelValues(tag.String()).Inc()
}

// DroppedFrame implements datastream.Recorder.
func (c *Collector) DroppedFrame(reason datastream.DropReason) {
	if reason == datastream.DropNone {
		return
	}
	c.droppedFrames.WithLabelValues(string(reason)).Inc()
}

// UpstreamResponse implements datastream.Recorder.
func (c *Collector) UpstreamResponse(statusCode int) {
	c.upstreamRequests.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// StreamFinished implements datastream.Recorder.
func (c *Collector) StreamFinished(outcome datastream.Outcome, duration time.Duration) {
	c.streams.WithLabelValues(string(outcome)).Inc()
	c.streamDuration.Observe(duration.Seconds())
}

// Handler returns the exposition handler for the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
