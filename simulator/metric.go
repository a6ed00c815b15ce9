package simulator

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const metricNamespace = "astmsim"

// sessionCollectors exposes the server's shared session counters and the
// active session gauge as Prometheus collectors. The counters read the
// atomic metric struct directly, so no scrape-time synchronization with the
// sessions is needed.
func sessionCollectors(s *Server) []prometheus.Collector {
	m := s.Metrics()

	counter := func(name, help string, value func() float64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: "lis1",
			Name:      name,
			Help:      help,
		}, value)
	}
	fromUint64 := func(v func() uint64) func() float64 {
		return func() float64 { return float64(v()) }
	}

	return []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Name:      "sessions_active",
			Help:      "Live analyzer-link sessions.",
		}, func() float64 { return float64(s.ActiveSessions()) }),

		counter("frames_received_total", "Frames accepted from peers.", fromUint64(m.FrameRecvCount.Load)),
		counter("frames_sent_total", "Frames transmitted, retransmissions included.", fromUint64(m.FrameSendCount.Load)),
		counter("frames_duplicate_total", "Duplicate frames acknowledged without re-appending.", fromUint64(m.DuplicateFrameCount.Load)),
		counter("naks_sent_total", "Frames rejected with NAK.", fromUint64(m.NakSentCount.Load)),
		counter("naks_received_total", "Rejections received for transmitted frames.", fromUint64(m.NakRecvCount.Load)),
		counter("messages_received_total", "Finalized inbound messages.", fromUint64(m.MsgRecvCount.Load)),
		counter("messages_sent_total", "Fully transmitted outbound messages.", fromUint64(m.MsgSendCount.Load)),
		counter("queries_received_total", "Inbound messages classified as field queries.", fromUint64(m.QueryRecvCount.Load)),
		counter("contention_total", "Simultaneous-ENQ contention events.", fromUint64(m.ContentionCount.Load)),
		counter("interrupts_total", "Receiver interrupts honored mid-send.", fromUint64(m.InterruptCount.Load)),
		counter("timeouts_total", "Expired protocol deadlines.", fromUint64(m.TimeoutCount.Load)),
		counter("aborts_total", "Sessions aborted at the retransmission limit.", fromUint64(m.AbortCount.Load)),
	}
}

// httpMetrics carries the control surface's request counters. Each API
// instance owns its own vectors and registry, so tests can build several
// APIs without collector collisions.
type httpMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newHTTPMetrics() *httpMetrics {
	return &httpMetrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total control surface requests.",
			},
			[]string{"method", "path", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricNamespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Control surface request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
	}
}

func (m *httpMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.requests, m.duration}
}

// middleware records one observation per request.
func (m *httpMetrics) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		status := strconv.Itoa(c.Writer.Status())

		m.requests.WithLabelValues(c.Request.Method, path, status).Inc()
		m.duration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}
