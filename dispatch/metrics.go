package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors of a Dispatcher.
type Metrics struct {
	Events           *prometheus.CounterVec
	Ignored          *prometheus.CounterVec
	DecodeErrors     *prometheus.CounterVec
	DispatchDuration prometheus.Histogram
}

// NewMetrics registers the dispatcher collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Events: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "poolmirror_dispatch_events_total",
			Help: "Logs classified as a known event kind.",
		}, []string{"kind"}),
		Ignored: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "poolmirror_dispatch_ignored_total",
			Help: "Logs that carried no mirrored state.",
		}, []string{"reason"}),
		DecodeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "poolmirror_dispatch_decode_errors_total",
			Help: "Logs of a tracked kind that failed to decode.",
		}, []string{"kind"}),
		DispatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "poolmirror_dispatch_duration_seconds",
			Help:    "Time spent classifying, decoding and applying one log.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
	}
}
