package mirror

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors of a Mirror.
type Metrics struct {
	EventsApplied *prometheus.CounterVec
	Enqueued      *prometheus.CounterVec
	StateDropped  *prometheus.CounterVec
	Superseded    *prometheus.CounterVec
}

// NewMetrics registers the mirror collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "poolmirror_mirror_events_applied_total",
			Help: "Events applied to mirrored pool state.",
		}, []string{"protocol", "event"}),
		Enqueued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "poolmirror_mirror_enqueued_total",
			Help: "Pools newly pushed onto a pending refresh queue.",
		}, []string{"queue"}),
		StateDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "poolmirror_mirror_state_dropped_total",
			Help: "Pool states discarded because an event could not be applied.",
		}, []string{"protocol"}),
		Superseded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "poolmirror_mirror_refresh_superseded_total",
			Help: "Loaded states discarded because events resolved the pool first.",
		}, []string{"protocol"}),
	}
}

// registerPending exposes the length of each queue as a gauge.
func registerPending(reg prometheus.Registerer, queues map[string]func() int) {
	factory := promauto.With(reg)
	for name, length := range queues {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "poolmirror_mirror_pending",
			Help:        "Pools waiting on a pending refresh queue.",
			ConstLabels: prometheus.Labels{"queue": name},
		}, func() float64 { return float64(length()) })
	}
}
