// Package health tracks the health of the client's components
package health

import (
	"regexp"
	"strings"
	"time"
)

// Health states
const (
	StateHealthy   = "healthy"
	StateDegraded  = "degraded"
	StateUnhealthy = "unhealthy"
)

var (
	urlRegex        = regexp.MustCompile(`(?i)(https?|wss?|nats)://[^\s]+`)
	ipAddrRegex     = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
	portRegex       = regexp.MustCompile(`:\d{2,5}\b`)
	credentialRegex = regexp.MustCompile(`(?i)(password|token|key|secret|credential)[^a-zA-Z]*[:=][^,\s}]+`)
)

// Status represents the health state of a component or of the whole client
type Status struct {
	Component   string    `json:"component"`
	Healthy     bool      `json:"healthy"`
	Status      string    `json:"status"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
	Metrics     *Metrics  `json:"metrics,omitempty"`
}

// Metrics contains health-related counters
type Metrics struct {
	Uptime        time.Duration `json:"uptime"`
	ErrorCount    int           `json:"error_count"`
	PendingCount  int           `json:"pending_count,omitempty"`
	LastConnected time.Time     `json:"last_connected,omitempty"`
}

// IsHealthy returns true if the status is healthy
func (s Status) IsHealthy() bool {
	return s.Status == StateHealthy
}

// IsDegraded returns true if the status is degraded
func (s Status) IsDegraded() bool {
	return s.Status == StateDegraded
}

// IsUnhealthy returns true if the status is unhealthy
func (s Status) IsUnhealthy() bool {
	return s.Status == StateUnhealthy
}

// WithMetrics returns a copy of the status with metrics attached
func (s Status) WithMetrics(metrics *Metrics) Status {
	s.Metrics = metrics
	return s
}

// WithSubStatus returns a copy with subStatus appended
func (s Status) WithSubStatus(subStatus Status) Status {
	subs := make([]Status, len(s.SubStatuses), len(s.SubStatuses)+1)
	copy(subs, s.SubStatuses)
	s.SubStatuses = append(subs, subStatus)
	return s
}

// sanitizeErrorMessage strips URLs, addresses, ports and credentials from
// messages that end up on the /health endpoint. Connection errors routinely
// embed the server URL and, with query-string auth, a token.
func sanitizeErrorMessage(msg string) string {
	if msg == "" {
		return ""
	}

	sanitized := urlRegex.ReplaceAllString(msg, "[URL]")
	sanitized = ipAddrRegex.ReplaceAllString(sanitized, "[IP]")
	sanitized = portRegex.ReplaceAllString(sanitized, "[PORT]")

	lower := strings.ToLower(sanitized)
	for _, word := range []string{"password", "token", "key", "secret", "credential"} {
		if strings.Contains(lower, word) {
			sanitized = credentialRegex.ReplaceAllString(sanitized, "[REDACTED]")
			break
		}
	}

	return sanitized
}

// FromConnection converts a connection snapshot into a Status. A live
// connection is healthy; a dropped one is degraded while no error has been
// recorded (a reconnect may still succeed) and unhealthy once one has.
func FromConnection(name string, connected bool, lastConnected time.Time, lastError string) Status {
	var status Status
	switch {
	case connected:
		status = NewHealthy(name, "connected")
	case lastError != "":
		status = NewUnhealthy(name, sanitizeErrorMessage(lastError))
	default:
		status = NewDegraded(name, "disconnected")
	}

	if !lastConnected.IsZero() {
		status.Metrics = &Metrics{LastConnected: lastConnected}
	}
	return status
}
