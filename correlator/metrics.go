package correlator

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/agentwire/metric"
)

type correlatorMetrics struct {
	requestsSent *prometheus.CounterVec
	responses    *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	pending      prometheus.Gauge
	unmatched    prometheus.Counter
	streamChunks prometheus.Counter
}

func newCorrelatorMetrics(registry *metric.MetricsRegistry) *correlatorMetrics {
	if registry == nil {
		return nil
	}

	m := &correlatorMetrics{
		requestsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "requests",
			Name:      "sent_total",
			Help:      "Requests sent by action",
		}, []string{"action"}),

		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "requests",
			Name:      "completed_total",
			Help:      "Completed requests by result (success, remote_error, timeout, cancelled, failed)",
		}, []string{"result"}),

		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metric.Namespace,
			Subsystem: "requests",
			Name:      "duration_seconds",
			Help:      "Request round-trip duration",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
		}, []string{"action"}),

		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metric.Namespace,
			Subsystem: "requests",
			Name:      "pending",
			Help:      "Requests awaiting a response",
		}),

		unmatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "requests",
			Name:      "unmatched_responses_total",
			Help:      "Responses dropped because no request was waiting",
		}),

		streamChunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "stream",
			Name:      "chunks_total",
			Help:      "Stream chunks delivered to sessions",
		}),
	}

	registry.RegisterCounterVec("correlator", "requests_sent", m.requestsSent)
	registry.RegisterCounterVec("correlator", "requests_completed", m.responses)
	registry.RegisterHistogramVec("correlator", "request_duration", m.duration)
	registry.RegisterGauge("correlator", "pending", m.pending)
	registry.RegisterCounter("correlator", "unmatched_responses", m.unmatched)
	registry.RegisterCounter("correlator", "stream_chunks", m.streamChunks)

	return m
}
