package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	UpstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "signaldesk",
			Subsystem: "upstream",
			Name:      "latency_seconds",
			Help:      "Latency of calls to the price gateway and analyzer",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"upstream", "endpoint"},
	)

	UpstreamErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "signaldesk",
			Subsystem: "upstream",
			Name:      "errors_total",
			Help:      "Upstream call failures by reason",
		},
		[]string{"upstream", "reason"},
	)
)

// Register is safe to call more than once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(UpstreamLatency, UpstreamErrors)
	})
}
