package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/c360/agentwire/config"
	"github.com/c360/agentwire/connection"
	"github.com/c360/agentwire/correlator"
	"github.com/c360/agentwire/errors"
	"github.com/c360/agentwire/message"
	"github.com/c360/agentwire/metric"
	"github.com/c360/agentwire/pkg/tlsutil"
	"github.com/c360/agentwire/stream"
	"github.com/c360/agentwire/transport"
)

// Client is the facade over one logical agent connection. Its lifecycle is
// explicit: New, Connect, Disconnect, Dispose. A disposed client rejects
// every call.
type Client struct {
	cfg        config.Config
	logger     *slog.Logger
	manager    *connection.Manager
	correlator *correlator.Correlator
	aggregator *stream.Aggregator

	stopWatch func()

	mu       sync.Mutex
	disposed bool
}

// Option configures a Client
type Option func(*options)

type options struct {
	logger    *slog.Logger
	registry  *metric.MetricsRegistry
	transport connection.TransportFactory
}

// WithLogger sets the logger shared by every layer
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics registers connection, request and stream metrics with registry
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// WithTransport replaces the WebSocket transport
func WithTransport(factory connection.TransportFactory) Option {
	return func(o *options) {
		o.transport = factory
	}
}

// New builds a disconnected client from cfg
func New(cfg config.Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	transportOpts := []transport.Option{
		transport.WithHandshakeTimeout(cfg.HandshakeTimeout),
		transport.WithWriteTimeout(cfg.WriteTimeout),
	}
	if !cfg.TLS.IsZero() {
		tlsConfig, err := tlsutil.LoadClientTLSConfig(cfg.TLS)
		if err != nil {
			return nil, err
		}
		transportOpts = append(transportOpts, transport.WithTLSConfig(tlsConfig))
	}

	managerOpts := []connection.Option{
		connection.WithLogger(o.logger),
		connection.WithTransportOptions(transportOpts...),
	}
	if o.transport != nil {
		managerOpts = append(managerOpts, connection.WithTransport(o.transport))
	}
	if o.registry != nil {
		managerOpts = append(managerOpts, connection.WithMetrics(o.registry))
	}

	manager, err := connection.NewManager(connection.Config{
		ReconnectDelay:       cfg.ReconnectDelay,
		MaxReconnectDelay:    cfg.MaxReconnectDelay,
		BackoffMultiplier:    cfg.BackoffMultiplier,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		Jitter:               cfg.ReconnectJitter,
		KeepaliveInterval:    cfg.KeepaliveInterval,
		AuthToken:            cfg.AuthToken,
	}, managerOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "Client", "New", "create connection manager")
	}

	corrOpts := []correlator.Option{correlator.WithLogger(o.logger)}
	streamOpts := []stream.Option{stream.WithLogger(o.logger)}
	if o.registry != nil {
		corrOpts = append(corrOpts, correlator.WithMetrics(o.registry))
		streamOpts = append(streamOpts, stream.WithMetrics(o.registry))
	}

	corr := correlator.New(manager, correlator.Config{
		DefaultTimeout:    cfg.RequestTimeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.RequestBurst,
	}, corrOpts...)
	manager.SetMessageHandler(corr.HandleMessage)

	c := &Client{
		cfg:        cfg,
		logger:     o.logger.With("component", "client"),
		manager:    manager,
		correlator: corr,
		aggregator: stream.New(corr, cfg.StreamTimeout, streamOpts...),
	}
	c.stopWatch = manager.OnStatusChange(c.watchStatus)
	return c, nil
}

// watchStatus surfaces the exhausted-retry state to whoever reads the log
func (c *Client) watchStatus(status connection.Status) {
	if status.Exhausted() {
		c.logger.Error("connection to agent service lost; call Connect to retry",
			"server", c.manager.URL(), "error", status.Error)
	}
}

func (c *Client) checkDisposed(method string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return errors.WrapFatal(errors.ErrDisposed, "Client", method, "check lifecycle")
	}
	return nil
}

// Connect opens the connection. An empty url uses the configured ServerURL.
// An initial failure is returned and not retried.
func (c *Client) Connect(ctx context.Context, url string) error {
	if err := c.checkDisposed("Connect"); err != nil {
		return err
	}
	if url == "" {
		url = c.cfg.ServerURL
	}
	if url == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: server url", errors.ErrMissingConfig), "Client", "Connect", "resolve server url")
	}
	return c.manager.Connect(ctx, url)
}

// Disconnect closes the connection, stops reconnecting and rejects every
// pending request with errors.ErrConnectionClosed.
func (c *Client) Disconnect() {
	c.manager.Disconnect()
	if n := c.correlator.FailAll(errors.ErrConnectionClosed); n > 0 {
		c.logger.Debug("rejected pending requests on disconnect", "count", n)
	}
}

// Dispose disconnects and releases the client. It is safe to call twice.
func (c *Client) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	c.mu.Unlock()

	c.Disconnect()
	c.stopWatch()
	c.manager.Dispose()
}

// IsConnected reports whether the connection is open
func (c *Client) IsConnected() bool {
	return c.manager.IsConnected()
}

// ConnectionStatus returns the current status snapshot
func (c *Client) ConnectionStatus() connection.Status {
	return c.manager.Status()
}

// OnConnectionStatusChanged registers fn for status transitions and returns
// a function removing it. fn runs synchronously and must not call Connect,
// Disconnect or Dispose.
func (c *Client) OnConnectionStatusChanged(fn connection.StatusListener) func() {
	return c.manager.OnStatusChange(fn)
}

// OnMessage registers fn for notifications: every inbound envelope that does
// not answer a pending request. It returns a function removing fn.
func (c *Client) OnMessage(fn func(env *message.Envelope)) func() {
	return c.correlator.OnNotification(fn)
}

// SendRequest sends action with data and waits for the response result.
// A non-positive timeout uses the configured request timeout.
func (c *Client) SendRequest(
	ctx context.Context, action string, data any, timeout time.Duration,
) (json.RawMessage, error) {
	if err := c.checkDisposed("SendRequest"); err != nil {
		return nil, err
	}
	return c.correlator.SendRequest(ctx, action, data, timeout)
}

// SendStreamingRequest sends action and returns the concatenated streamed
// answer. onChunk, when non-nil, sees each chunk in order before the call
// returns.
func (c *Client) SendStreamingRequest(
	ctx context.Context, action string, data any, onChunk stream.ChunkFunc,
) (*stream.Result, error) {
	if err := c.checkDisposed("SendStreamingRequest"); err != nil {
		return nil, err
	}
	return c.aggregator.SendStreamingRequest(ctx, action, data, onChunk)
}

// PendingRequests returns the number of requests awaiting a response
func (c *Client) PendingRequests() int {
	return c.correlator.Pending()
}
