package vnc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "vnc_client"

// clientMetrics are the per connection counters.
type clientMetrics struct {
	frames         prometheus.Counter
	rects          *prometheus.CounterVec
	pixels         prometheus.Counter
	updateRequests *prometheus.CounterVec
	fencesSent     prometheus.Counter
	fencesReceived prometheus.Counter
	formatCommits  *prometheus.CounterVec
	continuous     prometheus.Gauge
}

func newClientMetrics(reg prometheus.Registerer) *clientMetrics {
	factory := promauto.With(reg)

	return &clientMetrics{
		frames: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "frames_total",
			Help:      "Completed framebuffer updates",
		}),
		rects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rectangles_total",
			Help:      "Rectangles received by encoding",
		}, []string{"encoding"}),
		pixels: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "pixels_total",
			Help:      "Pixels received in data rectangles",
		}),
		updateRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "update_requests_total",
			Help:      "FramebufferUpdateRequests sent by mode",
		}, []string{"mode"}),
		fencesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "fences_sent_total",
			Help:      "Fence messages sent, requests and echoes",
		}),
		fencesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "fences_received_total",
			Help:      "Fence messages received",
		}),
		formatCommits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "pixel_format_commits_total",
			Help:      "Pixel format switches by commit point",
		}, []string{"path"}),
		continuous: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "continuous_updates",
			Help:      "1 while continuous updates are enabled",
		}),
	}
}
