package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric the client exports
const Namespace = "agentwire"

// Metrics contains the client-wide metrics. Component metrics (reconnects,
// request latency, stream chunks) are owned by their packages and registered
// through MetricsRegistrar.
type Metrics struct {
	ConnectionUp      prometheus.Gauge
	StatusChanges     *prometheus.CounterVec
	MessagesReceived  *prometheus.CounterVec
	MessagesSent      *prometheus.CounterVec
	MessagesDropped   *prometheus.CounterVec
	MessagesPublished *prometheus.CounterVec
	ErrorsTotal       *prometheus.CounterVec

	NATSConnected prometheus.Gauge
}

// NewMetrics creates the client-wide metric set
func NewMetrics() *Metrics {
	return &Metrics{
		ConnectionUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "connection",
			Name:      "up",
			Help:      "WebSocket connection state (0=disconnected, 1=connected)",
		}),

		StatusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "connection",
			Name:      "status_changes_total",
			Help:      "Connection status transitions",
		}, []string{"state"}),

		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "messages",
			Name:      "received_total",
			Help:      "Envelopes received from the remote service",
		}, []string{"type"}),

		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "messages",
			Name:      "sent_total",
			Help:      "Envelopes written to the remote service",
		}, []string{"type"}),

		MessagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "messages",
			Name:      "dropped_total",
			Help:      "Envelopes dropped without delivery",
		}, []string{"reason"}),

		MessagesPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "messages",
			Name:      "published_total",
			Help:      "Notifications forwarded to NATS",
		}, []string{"subject"}),

		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "errors",
			Name:      "total",
			Help:      "Errors by component and class",
		}, []string{"component", "class"}),

		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "nats",
			Name:      "connected",
			Help:      "NATS connection state (0=disconnected, 1=connected)",
		}),
	}
}

func (c *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.ConnectionUp,
		c.StatusChanges,
		c.MessagesReceived,
		c.MessagesSent,
		c.MessagesDropped,
		c.MessagesPublished,
		c.ErrorsTotal,
		c.NATSConnected,
	}
}

// RecordConnection updates the connection gauge and counts the transition
func (c *Metrics) RecordConnection(connected bool) {
	if connected {
		c.ConnectionUp.Set(1)
		c.StatusChanges.WithLabelValues("connected").Inc()
		return
	}
	c.ConnectionUp.Set(0)
	c.StatusChanges.WithLabelValues("disconnected").Inc()
}

// RecordMessageReceived increments the received counter for messageType
func (c *Metrics) RecordMessageReceived(messageType string) {
	c.MessagesReceived.WithLabelValues(messageType).Inc()
}

// RecordMessageSent increments the sent counter for messageType
func (c *Metrics) RecordMessageSent(messageType string) {
	c.MessagesSent.WithLabelValues(messageType).Inc()
}

// RecordMessageDropped increments the dropped counter
func (c *Metrics) RecordMessageDropped(reason string) {
	c.MessagesDropped.WithLabelValues(reason).Inc()
}

// RecordMessagePublished increments the published counter for subject
func (c *Metrics) RecordMessagePublished(subject string) {
	c.MessagesPublished.WithLabelValues(subject).Inc()
}

// RecordError increments the error counter
func (c *Metrics) RecordError(component, class string) {
	c.ErrorsTotal.WithLabelValues(component, class).Inc()
}

// RecordNATSStatus updates the NATS connection gauge
func (c *Metrics) RecordNATSStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	c.NATSConnected.Set(value)
}
