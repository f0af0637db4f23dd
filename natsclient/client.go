package natsclient

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/agentwire/errors"
	"github.com/c360/agentwire/metric"
)

// ConnectionStatus represents the state of the NATS connection
type ConnectionStatus int

// Possible connection statuses
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusCircuitOpen
)

// String returns the string representation of ConnectionStatus
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusCircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

// Error messages
var (
	ErrNotConnected = stderrors.New("not connected to NATS")
	ErrCircuitOpen  = stderrors.New("circuit breaker is open")
	ErrClosed       = stderrors.New("client closed")
)

// Client manages one NATS connection with a circuit breaker around dials
type Client struct {
	url     string
	status  atomic.Value // ConnectionStatus
	logger  *slog.Logger
	metrics *metric.Metrics

	conn *nats.Conn
	subs []*nats.Subscription

	// Circuit breaker
	failures         atomic.Int32
	circuitFailures  atomic.Int32
	backoff          atomic.Int64 // time.Duration
	circuitThreshold int32
	maxBackoff       time.Duration

	// Connection options
	maxReconnects int
	reconnectWait time.Duration
	pingInterval  time.Duration
	timeout       time.Duration
	drainTimeout  time.Duration
	clientName    string

	// Authentication, cleared on close
	username string
	password string
	token    string

	onHealthChange func(bool)

	mu      sync.RWMutex
	closeMu sync.Mutex
	closed  atomic.Bool
}

// NewClient creates a disconnected client for url
func NewClient(url string, opts ...ClientOption) (*Client, error) {
	if url == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: nats url", errors.ErrMissingConfig), "Client", "NewClient", "check url")
	}

	c := &Client{
		url:              url,
		logger:           slog.Default(),
		maxReconnects:    -1,
		reconnectWait:    2 * time.Second,
		pingInterval:     30 * time.Second,
		circuitThreshold: 5,
		maxBackoff:       time.Minute,
		timeout:          5 * time.Second,
		drainTimeout:     5 * time.Second,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapInvalid(err, "Client", "NewClient", "apply option")
		}
	}

	c.logger = c.logger.With("component", "natsclient")
	c.status.Store(StatusDisconnected)
	c.backoff.Store(int64(time.Second))
	return c, nil
}

// URL returns the NATS server URL
func (m *Client) URL() string {
	return m.url
}

// Status returns the current connection status
func (m *Client) Status() ConnectionStatus {
	return m.status.Load().(ConnectionStatus)
}

func (m *Client) setStatus(status ConnectionStatus) {
	m.status.Store(status)
	if m.metrics != nil {
		m.metrics.RecordNATSStatus(status == StatusConnected)
	}
}

// IsHealthy returns true if the connection is usable
func (m *Client) IsHealthy() bool {
	return m.Status() == StatusConnected
}

// Failures returns the number of failed dials since the last success
func (m *Client) Failures() int32 {
	return m.failures.Load()
}

// Backoff returns how long the circuit stays open after the next trip
func (m *Client) Backoff() time.Duration {
	return time.Duration(m.backoff.Load())
}

// recordFailure counts a failed dial and opens the circuit at the threshold
func (m *Client) recordFailure() {
	m.failures.Add(1)
	if m.circuitFailures.Add(1) < m.circuitThreshold {
		return
	}
	m.circuitFailures.Store(0)

	current := m.Backoff()
	next := current * 2
	if next > m.maxBackoff {
		next = m.maxBackoff
	}
	m.backoff.Store(int64(next))

	if m.Status() != StatusCircuitOpen {
		m.setStatus(StatusCircuitOpen)
		m.logger.Warn("circuit breaker opened", "failures", m.failures.Load(), "backoff", current)
		time.AfterFunc(current, m.halfOpen)
	}
}

// halfOpen lets the next Connect through after the backoff
func (m *Client) halfOpen() {
	if m.Status() == StatusCircuitOpen && !m.closed.Load() {
		m.setStatus(StatusDisconnected)
	}
}

func (m *Client) resetCircuit() {
	m.failures.Store(0)
	m.circuitFailures.Store(0)
	m.backoff.Store(int64(time.Second))
}

func (m *Client) connectionOptions() []nats.Option {
	opts := []nats.Option{
		nats.MaxReconnects(m.maxReconnects),
		nats.ReconnectWait(m.reconnectWait),
		nats.PingInterval(m.pingInterval),
		nats.Timeout(m.timeout),
		nats.DrainTimeout(m.drainTimeout),
		nats.DisconnectErrHandler(m.handleDisconnect),
		nats.ReconnectHandler(m.handleReconnect),
		nats.ClosedHandler(m.handleClosed),
		nats.ErrorHandler(m.handleError),
	}
	if m.username != "" && m.password != "" {
		opts = append(opts, nats.UserInfo(m.username, m.password))
	}
	if m.token != "" {
		opts = append(opts, nats.Token(m.token))
	}
	if m.clientName != "" {
		opts = append(opts, nats.Name(m.clientName))
	}
	return opts
}

// Connect dials the server. While the circuit is open it fails fast with
// ErrCircuitOpen.
func (m *Client) Connect(ctx context.Context) error {
	if m.closed.Load() {
		return errors.WrapFatal(ErrClosed, "Client", "Connect", "check lifecycle")
	}
	if m.Status() == StatusCircuitOpen {
		return errors.WrapTransient(ErrCircuitOpen, "Client", "Connect", "check circuit")
	}

	m.setStatus(StatusConnecting)
	m.logger.Info("connecting to NATS", "url", m.url)

	m.mu.RLock()
	opts := m.connectionOptions()
	m.mu.RUnlock()

	done := make(chan dialResult, 1)
	go func() {
		conn, err := nats.Connect(m.url, opts...)
		done <- dialResult{conn: conn, err: err}
	}()

	var res dialResult
	select {
	case res = <-done:
		if res.err != nil {
			m.failConnect()
			return errors.WrapTransient(res.err, "Client", "Connect", "establish connection")
		}
	case <-ctx.Done():
		// The dial keeps running; whatever it yields is closed, never stored.
		go func() {
			if late := <-done; late.conn != nil {
				late.conn.Close()
			}
		}()
		m.failConnect()
		return errors.WrapTransient(ctx.Err(), "Client", "Connect", "connection cancelled")
	}

	m.mu.Lock()
	if m.closed.Load() {
		m.mu.Unlock()
		res.conn.Close()
		return errors.WrapFatal(ErrClosed, "Client", "Connect", "store connection")
	}
	m.conn = res.conn
	m.mu.Unlock()

	m.resetCircuit()
	m.setStatus(StatusConnected)
	m.logger.Info("connected to NATS", "url", m.url)
	m.notifyHealth(true)
	return nil
}

type dialResult struct {
	conn *nats.Conn
	err  error
}

func (m *Client) failConnect() {
	if m.Status() == StatusConnecting {
		m.setStatus(StatusDisconnected)
	}
	m.recordFailure()
}

// Publish sends data on subject
func (m *Client) Publish(_ context.Context, subject string, data []byte) error {
	m.mu.RLock()
	conn := m.conn
	m.mu.RUnlock()

	if conn == nil || !conn.IsConnected() {
		return errors.WrapTransient(ErrNotConnected, "Client", "Publish", "check connection")
	}
	if err := conn.Publish(subject, data); err != nil {
		return errors.WrapTransient(err, "Client", "Publish", fmt.Sprintf("publish to %s", subject))
	}
	return nil
}

// Subscribe delivers messages on subject to handler until Close
func (m *Client) Subscribe(ctx context.Context, subject string, handler func(context.Context, []byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil || !m.conn.IsConnected() {
		return errors.WrapTransient(ErrNotConnected, "Client", "Subscribe", "check connection")
	}

	sub, err := m.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(ctx, msg.Data)
	})
	if err != nil {
		return errors.WrapTransient(err, "Client", "Subscribe", fmt.Sprintf("subscribe to %s", subject))
	}
	m.subs = append(m.subs, sub)
	return nil
}

// RTT returns the round-trip time to the server
func (m *Client) RTT() (time.Duration, error) {
	m.mu.RLock()
	conn := m.conn
	m.mu.RUnlock()

	if conn == nil || !conn.IsConnected() {
		return 0, ErrNotConnected
	}
	return conn.RTT()
}

// Close drains and closes the connection. It is safe to call more than once.
func (m *Client) Close(ctx context.Context) error {
	m.closeMu.Lock()
	defer m.closeMu.Unlock()

	if m.closed.Load() {
		return nil
	}
	m.closed.Store(true)

	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, sub := range m.subs {
		if err := sub.Unsubscribe(); err != nil {
			errs = append(errs, errors.Wrap(err, "Client", "Close", "unsubscribe"))
		}
	}
	m.subs = nil

	if m.conn != nil {
		drainTimeout := m.drainTimeout
		if deadline, ok := ctx.Deadline(); ok {
			if remaining := time.Until(deadline); remaining > 0 && remaining < drainTimeout {
				drainTimeout = remaining
			}
		}

		drained := make(chan error, 1)
		go func(conn *nats.Conn) { drained <- conn.Drain() }(m.conn)

		select {
		case err := <-drained:
			if err != nil {
				errs = append(errs, errors.Wrap(err, "Client", "Close", "drain connection"))
			}
		case <-time.After(drainTimeout):
			errs = append(errs, errors.WrapTransient(
				fmt.Errorf("drain timeout after %v", drainTimeout), "Client", "Close", "drain connection"))
		case <-ctx.Done():
			errs = append(errs, errors.Wrap(ctx.Err(), "Client", "Close", "drain connection"))
		}

		m.conn.Close()
		m.conn = nil
	}

	m.username = ""
	m.password = ""
	m.token = ""
	m.setStatus(StatusDisconnected)

	return stderrors.Join(errs...)
}

// OnHealthChange sets the callback for health transitions
func (m *Client) OnHealthChange(fn func(healthy bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onHealthChange = fn
}

func (m *Client) notifyHealth(healthy bool) {
	m.mu.RLock()
	fn := m.onHealthChange
	m.mu.RUnlock()
	if fn != nil {
		go fn(healthy)
	}
}

// owns reports whether nc is the stored connection. Callbacks from a dial
// abandoned by a cancelled Connect are ignored.
func (m *Client) owns(nc *nats.Conn) bool {
	if nc == nil {
		return true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return nc == m.conn
}

func (m *Client) handleDisconnect(nc *nats.Conn, err error) {
	if m.closed.Load() || !m.owns(nc) {
		return
	}
	m.setStatus(StatusReconnecting)
	m.logger.Warn("NATS disconnected", "error", err)
	m.notifyHealth(false)
}

func (m *Client) handleReconnect(nc *nats.Conn) {
	if !m.owns(nc) {
		return
	}
	m.setStatus(StatusConnected)
	m.resetCircuit()
	m.logger.Info("NATS reconnected")
	m.notifyHealth(true)
}

func (m *Client) handleClosed(nc *nats.Conn) {
	if !m.closed.Load() && !m.owns(nc) {
		return
	}
	m.setStatus(StatusDisconnected)
	m.notifyHealth(false)
}

func (m *Client) handleError(_ *nats.Conn, _ *nats.Subscription, err error) {
	m.logger.Error("NATS error", "error", err)
}
