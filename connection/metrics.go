package connection

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/agentwire/metric"
)

// managerMetrics holds the manager's Prometheus collectors
type managerMetrics struct {
	reconnectAttempts prometheus.Counter
	reconnectsOK      prometheus.Counter
	exhausted         prometheus.Counter
	keepalivePings    prometheus.Counter
	pongsReceived     prometheus.Counter
}

func newManagerMetrics(registry *metric.MetricsRegistry) *managerMetrics {
	if registry == nil {
		return nil
	}

	m := &managerMetrics{
		reconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "connection",
			Name:      "reconnect_attempts_total",
			Help:      "Reconnect attempts started",
		}),
		reconnectsOK: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "connection",
			Name:      "reconnects_total",
			Help:      "Reconnect attempts that reopened the connection",
		}),
		exhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "connection",
			Name:      "reconnects_exhausted_total",
			Help:      "Times the reconnect budget ran out",
		}),
		keepalivePings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "connection",
			Name:      "keepalive_pings_total",
			Help:      "Keepalive pings sent",
		}),
		pongsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "connection",
			Name:      "pongs_total",
			Help:      "Keepalive pongs received",
		}),
	}

	registry.RegisterCounter("connection", "reconnect_attempts", m.reconnectAttempts)
	registry.RegisterCounter("connection", "reconnects", m.reconnectsOK)
	registry.RegisterCounter("connection", "reconnects_exhausted", m.exhausted)
	registry.RegisterCounter("connection", "keepalive_pings", m.keepalivePings)
	registry.RegisterCounter("connection", "pongs", m.pongsReceived)

	return m
}
