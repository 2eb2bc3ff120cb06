package bdapp

import (
	"github.com/advdv/bdispatch"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry creates the registry served on BD_METRICS_PATH. It carries the Go runtime and process
// collectors next to the dispatcher metrics.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return reg
}

func provideMetrics(reg *prometheus.Registry) *bdispatch.Metrics {
	return bdispatch.NewMetrics(reg)
}

func metricsHandler(reg *prometheus.Registry) bdispatch.Handler {
	return bdispatch.StdHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
}
