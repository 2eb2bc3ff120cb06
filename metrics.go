package bdispatch

import (
	"strconv"
	"time"

	"github.com/advdv/bdispatch/multipart"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the dispatcher's prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	misses       prometheus.Counter
	parts        *prometheus.CounterVec
	uploadBytes  prometheus.Counter
	decodeErrors *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bdispatch",
				Subsystem: "dispatcher",
				Name:      "requests_total",
				Help:      "Total number of dispatched requests by route pattern and status code",
			},
			[]string{"method", "pattern", "code"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "bdispatch",
				Subsystem: "dispatcher",
				Name:      "request_duration_seconds",
				Help:      "Time spent serving dispatched requests",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"pattern"},
		),
		misses: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "bdispatch",
				Subsystem: "dispatcher",
				Name:      "route_misses_total",
				Help:      "Total number of requests no route matched",
			},
		),
		parts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bdispatch",
				Subsystem: "body",
				Name:      "multipart_parts_total",
				Help:      "Total number of decoded multipart parts by kind",
			},
			[]string{"kind"},
		),
		uploadBytes: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "bdispatch",
				Subsystem: "body",
				Name:      "upload_bytes_total",
				Help:      "Total number of bytes streamed to upload files",
			},
		),
		decodeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bdispatch",
				Subsystem: "body",
				Name:      "decode_errors_total",
				Help:      "Total number of bodies that failed to decode by kind",
			},
			[]string{"kind"},
		),
	}
}

func (m *Metrics) served(method, pattern string, status int, took time.Duration) {
	if m == nil {
		return
	}

	if pattern == "" {
		m.misses.Inc()
	}

	m.requests.WithLabelValues(method, pattern, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(pattern).Observe(took.Seconds())
}

func (m *Metrics) partsDecoded(parts []*multipart.BodySpec) {
	if m == nil {
		return
	}

	for _, p := range parts {
		if !p.IsFile() {
			m.parts.WithLabelValues("field").Inc()
			continue
		}

		m.parts.WithLabelValues("file").Inc()
		m.uploadBytes.Add(float64(p.FileSize))
	}
}

func (m *Metrics) decodeFailed(kind BodyKind) {
	if m == nil {
		return
	}

	m.decodeErrors.WithLabelValues(kind.String()).Inc()
}
