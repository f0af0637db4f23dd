// Package metric provides the Prometheus registry shared by the agent client.
//
// MetricsRegistry carries a small set of client-wide metrics (connection state,
// envelopes received/sent/dropped, errors) and lets each component register its
// own collectors under a component name, rejecting duplicates:
//
//	registry := metric.NewMetricsRegistry()
//	registry.CoreMetrics().RecordConnection(true)
//
//	pending := prometheus.NewGauge(prometheus.GaugeOpts{Name: "pending"})
//	_ = registry.RegisterGauge("correlator", "pending", pending)
//
// Server exposes the registry at /metrics (OpenMetrics enabled) and a JSON
// health summary at /health, aggregated from a health.Monitor. Unhealthy
// aggregates answer 503.
//
// All metrics live in the "agentwire" namespace.
package metric
