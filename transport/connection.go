// Package transport owns the single WebSocket used to talk to the remote service
package transport

import (
	"context"
	"crypto/tls"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/c360/agentwire/errors"
	"github.com/c360/agentwire/message"
)

// Listener receives connection events. Opened fires once per established
// socket, before Connect returns. Each established socket later produces
// exactly one of Closed or Errored, unless it was shut down through Close.
// Events are delivered from the read goroutine; implementations must not
// block for long.
type Listener interface {
	Opened()
	Closed(code int, reason string)
	MessageReceived(data []byte)
	Errored(err error)
}

// Connection wraps a gorilla/websocket client connection
type Connection struct {
	listener     Listener
	logger       *slog.Logger
	dialer       *websocket.Dialer
	header       http.Header
	writeTimeout time.Duration

	mu   sync.Mutex
	conn *websocket.Conn

	writeMu sync.Mutex
}

// Option configures a Connection
type Option func(*Connection)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Connection) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHandshakeTimeout bounds the WebSocket opening handshake
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Connection) {
		if d > 0 {
			c.dialer.HandshakeTimeout = d
		}
	}
}

// WithWriteTimeout bounds each frame write
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Connection) {
		if d > 0 {
			c.writeTimeout = d
		}
	}
}

// WithTLSConfig sets the TLS configuration used for wss:// URLs
func WithTLSConfig(cfg *tls.Config) Option {
	return func(c *Connection) {
		c.dialer.TLSClientConfig = cfg
	}
}

// WithHeader adds HTTP headers to the opening handshake
func WithHeader(header http.Header) Option {
	return func(c *Connection) {
		for k, values := range header {
			for _, v := range values {
				c.header.Add(k, v)
			}
		}
	}
}

// New creates an unconnected transport that reports events to listener
func New(listener Listener, opts ...Option) *Connection {
	c := &Connection{
		listener: listener,
		logger:   slog.Default(),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 45 * time.Second,
		},
		header:       http.Header{},
		writeTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "transport")
	return c
}

// Connect dials url and, on success, starts reading and fires Opened. A
// previously open socket is closed first without emitting events.
func (c *Connection) Connect(ctx context.Context, url string) error {
	c.Close()

	conn, resp, err := c.dialer.DialContext(ctx, url, c.header)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (status: %s)", err, resp.Status)
		}
		return errors.WrapTransient(err, "Connection", "Connect", "dial websocket")
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.logger.Debug("websocket opened", "url", url)
	c.listener.Opened()

	go c.readLoop(conn)
	return nil
}

// IsOpen reports whether a socket is currently established
func (c *Connection) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Send writes env to the socket. When no socket is open the envelope is
// dropped with a warning. A failed write is logged and closes the socket,
// which the read loop then reports as Closed. Send itself never fails.
func (c *Connection) Send(env *message.Envelope) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		c.logger.Warn("send on closed connection dropped", "type", env.Type, "request_id", env.RequestID)
		return
	}

	data, err := env.Marshal()
	if err != nil {
		c.logger.Error("marshal envelope", "type", env.Type, "error", err)
		return
	}

	c.writeMu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	err = conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()

	if err != nil {
		c.logger.Warn("websocket write failed", "type", env.Type, "error", err)
		// The read loop will observe the broken socket; closing here makes
		// sure it does so promptly.
		_ = conn.Close()
	}
}

// Close shuts down the current socket. It is safe to call repeatedly and
// on a connection that never opened. No events are emitted for a socket
// closed this way.
func (c *Connection) Close() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return
	}

	c.writeMu.Lock()
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client closing"),
		time.Now().Add(time.Second),
	)
	c.writeMu.Unlock()
	_ = conn.Close()
}

// current reports whether conn is still the active socket
func (c *Connection) current(conn *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn == conn
}

// detach clears conn if it is still the active socket and reports whether it was
func (c *Connection) detach(conn *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != conn {
		return false
	}
	c.conn = nil
	return true
}

// readLoop delivers inbound frames until the socket fails
func (c *Connection) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			_ = conn.Close()
			if !c.detach(conn) {
				// Replaced or closed locally
				return
			}

			var closeErr *websocket.CloseError
			if stderrors.As(err, &closeErr) {
				c.logger.Info("websocket closed by peer", "code", closeErr.Code, "reason", closeErr.Text)
				c.listener.Closed(closeErr.Code, closeErr.Text)
				return
			}

			if stderrors.Is(err, net.ErrClosed) {
				c.listener.Closed(websocket.CloseAbnormalClosure, "connection closed")
				return
			}

			c.logger.Warn("websocket read failed", "error", err)
			c.listener.Errored(errors.WrapTransient(err, "Connection", "readLoop", "read frame"))
			return
		}

		if !c.current(conn) {
			return
		}
		c.listener.MessageReceived(data)
	}
}
