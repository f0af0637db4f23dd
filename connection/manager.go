package connection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/agentwire/errors"
	"github.com/c360/agentwire/message"
	"github.com/c360/agentwire/metric"
	"github.com/c360/agentwire/transport"
)

// Transport is the socket the manager drives. transport.Connection is the
// production implementation.
type Transport interface {
	Connect(ctx context.Context, url string) error
	Send(env *message.Envelope)
	Close()
	IsOpen() bool
}

// TransportFactory builds the transport, wiring its events back to the manager
type TransportFactory func(listener transport.Listener) Transport

// MessageHandler receives every inbound envelope except keepalive pongs
type MessageHandler func(env *message.Envelope)

// pendingReconnect is the single scheduled or in-flight reconnect attempt
type pendingReconnect struct {
	attempt int
	cancel  context.CancelFunc
}

// Manager keeps one logical connection alive: it reconnects after drops,
// sends keepalive pings, consumes pongs and broadcasts status transitions.
type Manager struct {
	cfg       Config
	logger    *slog.Logger
	transport Transport
	metrics   *managerMetrics
	core      *metric.Metrics

	// root is cancelled by Dispose; every timer goroutine derives from it
	root       context.Context
	rootCancel context.CancelFunc

	// dialMu serializes transport dials between Connect and reconnects
	dialMu sync.Mutex

	mu              sync.Mutex
	url             string
	attempts        int
	lastErr         string
	manual          bool
	disposed        bool
	reconnect       *pendingReconnect
	keepaliveCancel context.CancelFunc

	status   atomic.Pointer[Status]
	statusMu sync.Mutex

	listenersMu sync.RWMutex
	listeners   map[uint64]StatusListener
	nextID      uint64

	handlerMu sync.RWMutex
	handler   MessageHandler
}

// Option configures a Manager
type Option func(*managerOptions)

type managerOptions struct {
	logger   *slog.Logger
	registry *metric.MetricsRegistry
	factory  TransportFactory
	topts    []transport.Option
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *managerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics registers manager metrics with registry
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(o *managerOptions) {
		o.registry = registry
	}
}

// WithTransport replaces the default WebSocket transport
func WithTransport(factory TransportFactory) Option {
	return func(o *managerOptions) {
		o.factory = factory
	}
}

// WithTransportOptions passes options to the default WebSocket transport
func WithTransportOptions(opts ...transport.Option) Option {
	return func(o *managerOptions) {
		o.topts = append(o.topts, opts...)
	}
}

// NewManager creates a disconnected manager
func NewManager(cfg Config, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := managerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	root, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:        cfg,
		logger:     o.logger.With("component", "connection"),
		metrics:    newManagerMetrics(o.registry),
		root:       root,
		rootCancel: cancel,
		listeners:  make(map[uint64]StatusListener),
	}
	if o.registry != nil {
		m.core = o.registry.CoreMetrics()
	}

	if o.factory != nil {
		m.transport = o.factory(m)
	} else {
		topts := append([]transport.Option{transport.WithLogger(o.logger)}, o.topts...)
		m.transport = transport.New(m, topts...)
	}

	m.status.Store(&Status{})
	return m, nil
}

// Connect opens the connection to url. A failure is returned to the caller
// and is not retried automatically. Connect cancels any scheduled reconnect
// and resets the attempt counter.
func (m *Manager) Connect(ctx context.Context, url string) error {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return errors.WrapFatal(errors.ErrDisposed, "Manager", "Connect", "check lifecycle")
	}
	m.cancelReconnectLocked()
	m.stopKeepaliveLocked()
	m.attempts = 0
	m.manual = false
	m.url = url
	m.mu.Unlock()

	m.dialMu.Lock()
	err := m.transport.Connect(ctx, url)
	m.dialMu.Unlock()

	if err != nil {
		m.logger.Warn("connect failed", "error", err)
		m.recordError("transient")
		m.setStatus(Status{
			LastConnected: m.Status().LastConnected,
			Error:         err.Error(),
		})
		return err
	}
	return nil
}

// Disconnect closes the connection and stops all timers. It is the only way
// to prevent automatic reconnection.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.manual = true
	m.cancelReconnectLocked()
	m.stopKeepaliveLocked()
	m.mu.Unlock()

	m.transport.Close()

	m.setStatus(Status{LastConnected: m.Status().LastConnected})
	m.logger.Debug("disconnected")
}

// Dispose disconnects and releases the manager. Timers that fire afterwards
// do nothing and Connect fails with ErrDisposed.
func (m *Manager) Dispose() {
	m.Disconnect()

	m.mu.Lock()
	m.disposed = true
	m.mu.Unlock()
	m.rootCancel()

	m.listenersMu.Lock()
	m.listeners = make(map[uint64]StatusListener)
	m.listenersMu.Unlock()

	m.SetMessageHandler(nil)
}

// Status returns the current connection status
func (m *Manager) Status() Status {
	return *m.status.Load()
}

// Config returns the settings the manager was built with
func (m *Manager) Config() Config {
	return m.cfg
}

// URL returns the endpoint of the last Connect call
func (m *Manager) URL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.url
}

// IsConnected reports whether the connection is open
func (m *Manager) IsConnected() bool {
	return m.status.Load().Connected
}

// Send forwards env to the transport. Sending while disconnected is a logged
// no-op.
func (m *Manager) Send(env *message.Envelope) {
	m.transport.Send(env)
	if m.core != nil && m.transport.IsOpen() {
		m.core.RecordMessageSent(string(env.Type))
	}
}

// SetMessageHandler installs the receiver for inbound envelopes
func (m *Manager) SetMessageHandler(handler MessageHandler) {
	m.handlerMu.Lock()
	m.handler = handler
	m.handlerMu.Unlock()
}

// OnStatusChange registers listener and returns a function removing it.
// Listeners are called synchronously, in transition order, and must not call
// Connect, Disconnect or Dispose; hand off to a goroutine for that.
func (m *Manager) OnStatusChange(listener StatusListener) func() {
	m.listenersMu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = listener
	m.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.listenersMu.Lock()
			delete(m.listeners, id)
			m.listenersMu.Unlock()
		})
	}
}

func (m *Manager) setStatus(next Status) {
	m.statusMu.Lock()
	defer m.statusMu.Unlock()

	if m.status.Load().Equal(next) {
		return
	}
	m.status.Store(&next)

	if m.core != nil {
		m.core.RecordConnection(next.Connected)
	}

	m.listenersMu.RLock()
	listeners := make([]StatusListener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.listenersMu.RUnlock()

	for _, l := range listeners {
		l(next)
	}
}

// Opened implements transport.Listener
func (m *Manager) Opened() {
	m.mu.Lock()
	if m.manual || m.disposed {
		// A reconnect dial finished after Disconnect
		m.mu.Unlock()
		m.transport.Close()
		return
	}
	reconnected := m.reconnect != nil
	m.reconnect = nil
	m.attempts = 0
	m.lastErr = ""
	m.startKeepaliveLocked()
	m.mu.Unlock()

	if reconnected && m.metrics != nil {
		m.metrics.reconnectsOK.Inc()
	}

	m.logger.Info("connection opened", "reconnected", reconnected)
	m.setStatus(Status{Connected: true, LastConnected: time.Now()})

	if m.cfg.AuthToken != "" {
		env, err := message.Auth(m.cfg.AuthToken)
		if err != nil {
			m.logger.Error("build auth envelope", "error", err)
			return
		}
		m.Send(env)
	}
}

// Closed implements transport.Listener
func (m *Manager) Closed(code int, reason string) {
	m.handleDrop(fmt.Sprintf("connection closed (code %d): %s", code, reason))
}

// Errored implements transport.Listener
func (m *Manager) Errored(err error) {
	m.recordError(errors.Classify(err).String())
	m.handleDrop(err.Error())
}

// MessageReceived implements transport.Listener
func (m *Manager) MessageReceived(data []byte) {
	env, err := message.Parse(data)
	if err != nil {
		m.logger.Warn("dropping unparseable message", "error", err, "size", len(data))
		if m.core != nil {
			m.core.RecordMessageDropped("parse_error")
		}
		m.recordError("invalid")
		return
	}

	if m.core != nil {
		m.core.RecordMessageReceived(string(env.Type))
	}

	switch env.Type {
	case message.TypePong:
		if m.metrics != nil {
			m.metrics.pongsReceived.Inc()
		}
		return
	case message.TypePing:
		m.Send(message.Pong())
		return
	}

	m.handlerMu.RLock()
	handler := m.handler
	m.handlerMu.RUnlock()

	if handler == nil {
		m.logger.Debug("no handler for message", "type", env.Type, "request_id", env.RequestID)
		if m.core != nil {
			m.core.RecordMessageDropped("no_handler")
		}
		return
	}
	handler(env)
}

func (m *Manager) handleDrop(reason string) {
	m.mu.Lock()
	m.stopKeepaliveLocked()
	if m.manual || m.disposed {
		m.mu.Unlock()
		return
	}
	m.lastErr = reason
	m.mu.Unlock()

	m.logger.Warn("connection lost", "reason", reason)
	m.setStatus(Status{LastConnected: m.Status().LastConnected, Error: reason})

	m.mu.Lock()
	terminal := m.scheduleReconnectLocked()
	m.mu.Unlock()
	if terminal != nil {
		m.setStatus(*terminal)
	}
}

// scheduleReconnectLocked arms the next reconnect attempt. An existing pending
// attempt is never replaced. When the budget is spent it returns the terminal
// status for the caller to publish once m.mu is released.
func (m *Manager) scheduleReconnectLocked() *Status {
	if m.reconnect != nil || m.manual || m.disposed {
		return nil
	}

	if m.attempts >= m.cfg.MaxReconnectAttempts {
		err := fmt.Errorf("%w after %d attempts: %s", errors.ErrReconnectExhausted, m.attempts, m.lastErr)
		m.logger.Error("giving up on reconnect", "attempts", m.attempts, "error", m.lastErr)
		if m.metrics != nil {
			m.metrics.exhausted.Inc()
		}
		m.recordError("fatal")
		return &Status{LastConnected: m.Status().LastConnected, Error: err.Error()}
	}

	m.attempts++
	delay := m.cfg.backoff().Delay(m.attempts)
	ctx, cancel := context.WithCancel(m.root)
	r := &pendingReconnect{attempt: m.attempts, cancel: cancel}
	m.reconnect = r

	m.logger.Info("scheduling reconnect",
		"attempt", r.attempt, "max_attempts", m.cfg.MaxReconnectAttempts, "delay", delay)
	go m.runReconnect(ctx, r, m.url, delay)
	return nil
}

func (m *Manager) runReconnect(ctx context.Context, r *pendingReconnect, url string, delay time.Duration) {
	defer r.cancel()

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	m.dialMu.Lock()
	if ctx.Err() != nil {
		m.dialMu.Unlock()
		return
	}
	if m.metrics != nil {
		m.metrics.reconnectAttempts.Inc()
	}
	err := m.transport.Connect(ctx, url)
	m.dialMu.Unlock()

	if err == nil || ctx.Err() != nil {
		return
	}

	m.mu.Lock()
	if m.reconnect != r {
		m.mu.Unlock()
		return
	}
	m.reconnect = nil
	m.lastErr = err.Error()
	m.mu.Unlock()

	m.logger.Warn("reconnect failed", "attempt", r.attempt, "error", err)
	m.setStatus(Status{LastConnected: m.Status().LastConnected, Error: err.Error()})

	m.mu.Lock()
	terminal := m.scheduleReconnectLocked()
	m.mu.Unlock()
	if terminal != nil {
		m.setStatus(*terminal)
	}
}

func (m *Manager) cancelReconnectLocked() {
	if m.reconnect != nil {
		m.reconnect.cancel()
		m.reconnect = nil
	}
}

func (m *Manager) startKeepaliveLocked() {
	m.stopKeepaliveLocked()
	ctx, cancel := context.WithCancel(m.root)
	m.keepaliveCancel = cancel
	go m.keepalive(ctx)
}

func (m *Manager) stopKeepaliveLocked() {
	if m.keepaliveCancel != nil {
		m.keepaliveCancel()
		m.keepaliveCancel = nil
	}
}

func (m *Manager) keepalive(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.KeepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil || !m.transport.IsOpen() {
				continue
			}
			m.Send(message.Ping())
			if m.metrics != nil {
				m.metrics.keepalivePings.Inc()
			}
		}
	}
}

func (m *Manager) recordError(class string) {
	if m.core != nil {
		m.core.RecordError("connection", class)
	}
}
