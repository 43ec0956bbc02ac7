package ethlogs

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the listener collectors. All listeners on one registry share them.
type Metrics struct {
	Logs       *prometheus.CounterVec
	Reconnects *prometheus.CounterVec
	Dispatched *prometheus.CounterVec
}

// NewMetrics registers the listener collectors on reg, reusing collectors a
// previous call already registered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Logs: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poolmirror_listener_logs_total",
			Help: "Logs received from the node subscription.",
		}, []string{"chain"})),
		Reconnects: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poolmirror_listener_reconnects_total",
			Help: "Failed dial or subscription attempts followed by a retry.",
		}, []string{"chain"})),
		Dispatched: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poolmirror_pipeline_logs_total",
			Help: "Logs handed to the dispatcher, by result.",
		}, []string{"chain", "result"})),
	}
}

func register(reg prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}
