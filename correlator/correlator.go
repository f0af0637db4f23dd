package correlator

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/c360/agentwire/errors"
	"github.com/c360/agentwire/message"
	"github.com/c360/agentwire/metric"
	"github.com/c360/agentwire/pkg/timestamp"
)

// DefaultTimeout bounds a request when neither the call nor Config sets one
const DefaultTimeout = 30 * time.Second

// Sender writes envelopes to the connection. connection.Manager implements it.
type Sender interface {
	Send(env *message.Envelope)
	IsConnected() bool
}

// ChunkFunc observes stream chunk frames for one request. It runs on the
// connection's read goroutine and is never called after the request returns.
type ChunkFunc func(frame message.StreamFrame)

// NotificationHandler receives envelopes that do not answer a pending request
type NotificationHandler func(env *message.Envelope)

// Config controls request defaults and outbound rate limiting
type Config struct {
	// DefaultTimeout applies when a call passes a non-positive timeout
	DefaultTimeout time.Duration
	// RequestsPerSecond limits outbound requests; 0 disables limiting
	RequestsPerSecond float64
	// Burst is the limiter bucket size; defaults to 1 when limiting is on
	Burst int
}

// outcome is the single result delivered to a waiting caller
type outcome struct {
	result json.RawMessage
	frame  *message.StreamFrame
	err    error
}

// pending is one in-flight request. It is removed from the map exactly once
// and whoever removes it owns delivery on done.
type pending struct {
	id        string
	action    string
	createdAt time.Time
	done      chan outcome
	onChunk   ChunkFunc

	// mu orders chunk callbacks against completion
	mu     sync.Mutex
	closed bool
}

func (p *pending) close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

// Correlator turns envelope sends into awaitable request/response pairs
type Correlator struct {
	sender         Sender
	logger         *slog.Logger
	metrics        *correlatorMetrics
	limiter        *rate.Limiter
	defaultTimeout time.Duration

	mu      sync.Mutex
	pending map[string]*pending

	notifyMu  sync.RWMutex
	notifiers map[uint64]NotificationHandler
	nextID    uint64
}

// Option configures a Correlator
type Option func(*Correlator)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Correlator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics registers correlator metrics with registry
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(c *Correlator) {
		c.metrics = newCorrelatorMetrics(registry)
	}
}

// New creates a correlator sending through sender
func New(sender Sender, cfg Config, opts ...Option) *Correlator {
	c := &Correlator{
		sender:         sender,
		logger:         slog.Default(),
		defaultTimeout: cfg.DefaultTimeout,
		pending:        make(map[string]*pending),
		notifiers:      make(map[uint64]NotificationHandler),
	}
	if c.defaultTimeout <= 0 {
		c.defaultTimeout = DefaultTimeout
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "correlator")
	return c
}

// NewRequestID returns "<unix-ms>-<uuidv4>"
func NewRequestID() string {
	return fmt.Sprintf("%d-%s", timestamp.Now(), uuid.NewString())
}

// IsConnected reports the sender's connection state
func (c *Correlator) IsConnected() bool {
	return c.sender.IsConnected()
}

// Pending returns the number of requests awaiting an outcome
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// SendRequest sends action with data and waits for the matching response.
// The request is sent even while disconnected and then left to time out.
// A non-positive timeout uses the configured default. Errors:
//
//   - *errors.TimeoutError when no response arrives in time
//   - *errors.RemoteError when the peer answers with success=false or an error envelope
//   - errors.ErrConnectionClosed when FailAll is called by Disconnect
//   - the context's error when ctx is cancelled first
func (c *Correlator) SendRequest(
	ctx context.Context, action string, data any, timeout time.Duration,
) (json.RawMessage, error) {
	out, err := c.roundTrip(ctx, action, data, timeout, nil)
	if err != nil {
		return nil, err
	}
	if out.frame != nil {
		// Streamed answer to a plain request: hand back the completion frame
		raw, merr := json.Marshal(out.frame)
		if merr != nil {
			return nil, errors.WrapInvalid(merr, "Correlator", "SendRequest", "marshal stream frame")
		}
		return raw, nil
	}
	return out.result, nil
}

// SendStreaming sends action and waits for the stream's completion frame,
// passing every chunk frame to onChunk in arrival order. A plain success
// response is decoded as the completion frame.
func (c *Correlator) SendStreaming(
	ctx context.Context, action string, data any, timeout time.Duration, onChunk ChunkFunc,
) (message.StreamFrame, error) {
	if onChunk == nil {
		onChunk = func(message.StreamFrame) {}
	}

	out, err := c.roundTrip(ctx, action, data, timeout, onChunk)
	if err != nil {
		return message.StreamFrame{}, err
	}
	if out.frame != nil {
		return *out.frame, nil
	}

	frame := message.StreamFrame{Kind: message.StreamComplete}
	if len(out.result) > 0 {
		if jerr := json.Unmarshal(out.result, &frame); jerr != nil {
			var text string
			if json.Unmarshal(out.result, &text) == nil {
				frame.Message = text
			} else {
				frame.Message = string(out.result)
			}
		}
		frame.Kind = message.StreamComplete
	}
	return frame, nil
}

func (c *Correlator) roundTrip(
	ctx context.Context, action string, data any, timeout time.Duration, onChunk ChunkFunc,
) (outcome, error) {
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return outcome{}, errors.WrapTransient(
				fmt.Errorf("%w: %v", errors.ErrRateLimited, err),
				"Correlator", "SendRequest", "wait for rate limiter")
		}
	}

	id := NewRequestID()
	env, err := message.Request(id, action, data)
	if err != nil {
		return outcome{}, err
	}

	p := &pending{
		id:        id,
		action:    action,
		createdAt: time.Now(),
		done:      make(chan outcome, 1),
		onChunk:   onChunk,
	}

	c.mu.Lock()
	if _, exists := c.pending[id]; exists {
		c.mu.Unlock()
		return outcome{}, errors.WrapFatal(
			fmt.Errorf("%w: %s", errors.ErrDuplicateID, id),
			"Correlator", "SendRequest", "register pending request")
	}
	c.pending[id] = p
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.pending.Inc()
		c.metrics.requestsSent.WithLabelValues(action).Inc()
	}

	// The deadline covers the write too
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	if !c.sender.IsConnected() {
		c.logger.Debug("sending while disconnected; relying on timeout", "request_id", id, "action", action)
	}
	c.sender.Send(env)

	var out outcome
	select {
	case out = <-p.done:
	case <-timer.C:
		if c.remove(p) {
			out = outcome{err: &errors.TimeoutError{RequestID: id, Action: action, Timeout: timeout}}
			c.logger.Warn("request timed out", "request_id", id, "action", action, "timeout", timeout)
		} else {
			out = <-p.done
		}
	case <-ctx.Done():
		if c.remove(p) {
			out = outcome{err: fmt.Errorf("request %s (%s): %w", id, action, ctx.Err())}
		} else {
			out = <-p.done
		}
	}

	c.observe(p, out.err)
	return out, out.err
}

// remove takes p out of the map if it is still there
func (c *Correlator) remove(p *pending) bool {
	c.mu.Lock()
	current, ok := c.pending[p.id]
	if ok && current == p {
		delete(c.pending, p.id)
	}
	c.mu.Unlock()

	if !ok || current != p {
		return false
	}
	p.close()
	return true
}

// deliver removes the pending request id and hands it out. It returns false
// when no request with that id is waiting.
func (c *Correlator) deliver(id string, out outcome) bool {
	c.mu.Lock()
	p, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if !ok {
		return false
	}
	p.close()
	p.done <- out
	return true
}

// FailAll rejects every pending request with err and returns how many were
// rejected
func (c *Correlator) FailAll(err error) int {
	c.mu.Lock()
	all := c.pending
	c.pending = make(map[string]*pending)
	c.mu.Unlock()

	for id, p := range all {
		p.close()
		p.done <- outcome{err: fmt.Errorf("request %s (%s): %w", id, p.action, err)}
	}

	if len(all) > 0 {
		c.logger.Info("rejected pending requests", "count", len(all), "reason", err)
	}
	return len(all)
}

// OnNotification registers handler for envelopes that are not responses to a
// pending request. The returned function removes it.
func (c *Correlator) OnNotification(handler NotificationHandler) func() {
	c.notifyMu.Lock()
	id := c.nextID
	c.nextID++
	c.notifiers[id] = handler
	c.notifyMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.notifyMu.Lock()
			delete(c.notifiers, id)
			c.notifyMu.Unlock()
		})
	}
}

// HandleMessage routes one inbound envelope. It is installed as the
// connection manager's message handler and never panics on bad input.
func (c *Correlator) HandleMessage(env *message.Envelope) {
	switch env.Type {
	case message.TypeResponse:
		c.handleResponse(env)
	case message.TypeError:
		if env.RequestID != "" && c.handleErrorEnvelope(env) {
			return
		}
		c.notify(env)
	default:
		c.notify(env)
	}
}

func (c *Correlator) handleResponse(env *message.Envelope) {
	if env.RequestID == "" {
		c.logger.Warn("dropping response without request id")
		c.unmatched()
		return
	}

	var resp message.ResponsePayload
	if err := env.Decode(&resp); err != nil {
		c.logger.Warn("malformed response payload", "request_id", env.RequestID, "error", err)
		if !c.deliver(env.RequestID, outcome{err: err}) {
			c.unmatched()
		}
		return
	}

	if resp.IsStream() {
		c.handleStreamFrame(env.RequestID, resp)
		return
	}

	var out outcome
	if resp.Success {
		out.result = resp.Result
	} else {
		out.err = c.remoteError(env.RequestID, resp.Error)
	}

	if !c.deliver(env.RequestID, out) {
		c.logger.Debug("dropping unmatched response", "request_id", env.RequestID)
		c.unmatched()
	}
}

func (c *Correlator) handleStreamFrame(id string, resp message.ResponsePayload) {
	frame := *resp.Stream

	if frame.Kind == message.StreamChunk && resp.Success {
		c.mu.Lock()
		p, ok := c.pending[id]
		c.mu.Unlock()

		if !ok || p.onChunk == nil {
			c.logger.Debug("dropping chunk without stream session", "request_id", id)
			c.unmatched()
			return
		}

		p.mu.Lock()
		if !p.closed {
			p.onChunk(frame)
		}
		p.mu.Unlock()
		if c.metrics != nil {
			c.metrics.streamChunks.Inc()
		}
		return
	}

	var out outcome
	switch {
	case frame.Kind == message.StreamError || !resp.Success:
		reason := frame.Error
		if reason == "" {
			reason = resp.Error
		}
		out.err = fmt.Errorf("%w: %w", errors.ErrStreamAborted, c.remoteError(id, reason))
	case frame.Kind == message.StreamComplete:
		out.frame = &frame
	default:
		c.logger.Warn("unknown stream frame kind", "request_id", id, "kind", frame.Kind)
		c.unmatched()
		return
	}

	if !c.deliver(id, out) {
		c.logger.Debug("dropping unmatched stream frame", "request_id", id, "kind", frame.Kind)
		c.unmatched()
	}
}

// handleErrorEnvelope rejects the request an error envelope refers to
func (c *Correlator) handleErrorEnvelope(env *message.Envelope) bool {
	var payload message.ErrorPayload
	reason := "remote error"
	if err := env.Decode(&payload); err == nil && payload.Error != "" {
		reason = payload.Error
	}
	return c.deliver(env.RequestID, outcome{err: c.remoteError(env.RequestID, reason)})
}

func (c *Correlator) remoteError(id, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	action := ""
	if p, ok := c.pending[id]; ok {
		action = p.action
	}
	if reason == "" {
		reason = "request failed"
	}
	return &errors.RemoteError{RequestID: id, Action: action, Message: reason}
}

func (c *Correlator) notify(env *message.Envelope) {
	c.notifyMu.RLock()
	handlers := make([]NotificationHandler, 0, len(c.notifiers))
	for _, h := range c.notifiers {
		handlers = append(handlers, h)
	}
	c.notifyMu.RUnlock()

	if len(handlers) == 0 {
		c.logger.Debug("no notification handler", "type", env.Type)
		return
	}
	for _, h := range handlers {
		h(env)
	}
}

func (c *Correlator) unmatched() {
	if c.metrics != nil {
		c.metrics.unmatched.Inc()
	}
}

func (c *Correlator) observe(p *pending, err error) {
	if c.metrics == nil {
		return
	}
	c.metrics.pending.Dec()

	result := "success"
	switch {
	case err == nil:
	case errors.IsTimeout(err):
		result = "timeout"
	case errors.IsRemote(err):
		result = "remote_error"
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		result = "cancelled"
	default:
		result = "failed"
	}
	c.metrics.responses.WithLabelValues(result).Inc()
	c.metrics.duration.WithLabelValues(p.action).Observe(time.Since(p.createdAt).Seconds())
}
