package refresh

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors of a Worker.
type Metrics struct {
	Refreshes    *prometheus.CounterVec
	PassDuration prometheus.Histogram
}

// NewMetrics registers the refresh collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Refreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "poolmirror_refresh_total",
			Help: "Pool refresh attempts by queue and result.",
		}, []string{"queue", "result"}),
		PassDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "poolmirror_refresh_pass_duration_seconds",
			Help:    "Time spent on one pass over every pending queue.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
