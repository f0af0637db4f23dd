package bridge

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/c360/agentwire/connection"
	"github.com/c360/agentwire/errors"
	"github.com/c360/agentwire/message"
	"github.com/c360/agentwire/metric"
	"github.com/c360/agentwire/pkg/retry"
	"github.com/c360/agentwire/pkg/worker"
)

// DefaultPrefix is the subject root used when none is configured
const DefaultPrefix = "agentwire"

const defaultQueueSize = 256

// Publisher is the part of natsclient.Client the bridge needs
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Source is the part of client.Client the bridge listens to
type Source interface {
	OnMessage(fn func(env *message.Envelope)) func()
	OnConnectionStatusChanged(fn connection.StatusListener) func()
}

// StatusEvent is the body published on <prefix>.status
type StatusEvent struct {
	Connected     bool      `json:"connected"`
	LastConnected time.Time `json:"lastConnected"`
	Error         string    `json:"error,omitempty"`
	Exhausted     bool      `json:"exhausted"`
}

type event struct {
	subject string
	data    []byte
}

// Bridge forwards client events to a Publisher
type Bridge struct {
	publisher Publisher
	prefix    string
	logger    *slog.Logger
	registry  *metric.MetricsRegistry
	metrics   *metric.Metrics
	retryCfg  retry.Config
	queueSize int

	mu      sync.Mutex
	pool    *worker.Pool[event]
	detach  []func()
	started bool
}

// Option configures a Bridge
type Option func(*Bridge)

// WithPrefix sets the subject root
func WithPrefix(prefix string) Option {
	return func(b *Bridge) {
		if prefix != "" {
			b.prefix = prefix
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMetrics counts published and dropped events and exports queue metrics
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(b *Bridge) {
		if registry != nil {
			b.registry = registry
			b.metrics = registry.CoreMetrics()
		}
	}
}

// WithRetry replaces the per-event publish retry policy
func WithRetry(cfg retry.Config) Option {
	return func(b *Bridge) {
		b.retryCfg = cfg
	}
}

// WithQueueSize bounds the number of events waiting to be published
func WithQueueSize(n int) Option {
	return func(b *Bridge) {
		if n > 0 {
			b.queueSize = n
		}
	}
}

// New creates a bridge publishing through publisher
func New(publisher Publisher, opts ...Option) *Bridge {
	b := &Bridge{
		publisher: publisher,
		prefix:    DefaultPrefix,
		logger:    slog.Default(),
		retryCfg:  retry.Fixed(100*time.Millisecond, 3),
		queueSize: defaultQueueSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "bridge")
	return b
}

// StatusSubject returns the subject carrying connection status
func (b *Bridge) StatusSubject() string {
	return b.prefix + ".status"
}

// NotifySubject returns the subject carrying notifications of type t
func (b *Bridge) NotifySubject(t message.Type) string {
	return b.prefix + ".notify." + t.String()
}

// Start begins forwarding events from src until Stop or ctx is cancelled
func (b *Bridge) Start(ctx context.Context, src Source) error {
	if src == nil {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Bridge", "Start", "check source")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return errors.WrapInvalid(worker.ErrPoolAlreadyStarted, "Bridge", "Start", "start bridge")
	}

	opts := []worker.Option[event]{worker.WithErrorHandler(b.dropped)}
	if b.registry != nil {
		opts = append(opts, worker.WithMetricsRegistry[event](b.registry, "bridge"))
	}
	pool := worker.NewPool(1, b.queueSize, b.publish, opts...)
	if err := pool.Start(ctx); err != nil {
		return errors.WrapFatal(err, "Bridge", "Start", "start publish worker")
	}

	b.pool = pool
	b.detach = []func(){
		src.OnMessage(b.handleNotification),
		src.OnConnectionStatusChanged(b.handleStatus),
	}
	b.started = true
	b.logger.Info("Bridge started", "prefix", b.prefix)
	return nil
}

// Stop detaches from the source and waits up to timeout for queued events
func (b *Bridge) Stop(timeout time.Duration) error {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return nil
	}
	b.started = false
	detach := b.detach
	pool := b.pool
	b.detach = nil
	b.mu.Unlock()

	for _, fn := range detach {
		fn()
	}
	if err := pool.Stop(timeout); err != nil {
		return errors.WrapTransient(err, "Bridge", "Stop", "drain publish queue")
	}
	stats := pool.Stats()
	b.logger.Info("Bridge stopped", "published", stats.Processed-stats.Failed, "dropped", stats.Dropped+stats.Failed)
	return nil
}

// Stats returns the publish queue statistics
func (b *Bridge) Stats() worker.PoolStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pool == nil {
		return worker.PoolStats{}
	}
	return b.pool.Stats()
}

func (b *Bridge) handleNotification(env *message.Envelope) {
	data, err := env.Marshal()
	if err != nil {
		b.logger.Warn("Dropping unencodable notification", "type", env.Type, "error", err)
		return
	}
	b.enqueue(event{subject: b.NotifySubject(env.Type), data: data})
}

func (b *Bridge) handleStatus(status connection.Status) {
	data, err := json.Marshal(StatusEvent{
		Connected:     status.Connected,
		LastConnected: status.LastConnected,
		Error:         status.Error,
		Exhausted:     status.Exhausted(),
	})
	if err != nil {
		b.logger.Warn("Dropping unencodable status", "error", err)
		return
	}
	b.enqueue(event{subject: b.StatusSubject(), data: data})
}

// enqueue runs on the client's listener goroutines and never blocks
func (b *Bridge) enqueue(ev event) {
	b.mu.Lock()
	pool := b.pool
	b.mu.Unlock()
	if pool == nil {
		return
	}

	if err := pool.Submit(ev); err != nil {
		reason := "bridge_stopped"
		if stderrors.Is(err, worker.ErrQueueFull) {
			reason = "bridge_queue_full"
		}
		if b.metrics != nil {
			b.metrics.RecordMessageDropped(reason)
		}
		b.logger.Warn("Dropping bridge event", "subject", ev.subject, "reason", reason)
	}
}

func (b *Bridge) publish(ctx context.Context, ev event) error {
	err := retry.Do(ctx, b.retryCfg, func() error {
		err := b.publisher.Publish(ctx, ev.subject, ev.data)
		if err != nil && errors.IsInvalid(err) {
			return retry.NonRetryable(err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", ev.subject, err)
	}
	if b.metrics != nil {
		b.metrics.RecordMessagePublished(ev.subject)
	}
	return nil
}

func (b *Bridge) dropped(ev event, err error) {
	if b.metrics != nil {
		b.metrics.RecordMessageDropped("bridge_publish_failed")
		b.metrics.RecordError("bridge", errors.Classify(err).String())
	}
	b.logger.Warn("Bridge publish failed", "subject", ev.subject, "error", err)
}
