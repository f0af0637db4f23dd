package stream

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/agentwire/correlator"
	"github.com/c360/agentwire/errors"
	"github.com/c360/agentwire/message"
	"github.com/c360/agentwire/metric"
)

// DefaultTimeout bounds a whole stream, first chunk to completion
const DefaultTimeout = 120 * time.Second

// Requester issues streaming requests. correlator.Correlator implements it.
type Requester interface {
	SendStreaming(ctx context.Context, action string, data any, timeout time.Duration,
		onChunk correlator.ChunkFunc) (message.StreamFrame, error)
}

// Aggregator turns chunked responses into single results
type Aggregator struct {
	requester Requester
	timeout   time.Duration
	logger    *slog.Logger

	streams   *prometheus.CounterVec
	chunkHist prometheus.Histogram
}

// Option configures an Aggregator
type Option func(*Aggregator)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMetrics registers stream metrics with registry
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(a *Aggregator) {
		if registry == nil {
			return
		}
		a.streams = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "stream",
			Name:      "completed_total",
			Help:      "Finished streams by result",
		}, []string{"result"})
		a.chunkHist = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metric.Namespace,
			Subsystem: "stream",
			Name:      "chunks_per_stream",
			Help:      "Chunks received per completed stream",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 7),
		})
		registry.RegisterCounterVec("stream", "completed", a.streams)
		registry.RegisterHistogram("stream", "chunks_per_stream", a.chunkHist)
	}
}

// New creates an aggregator. A non-positive timeout uses DefaultTimeout.
func New(requester Requester, timeout time.Duration, opts ...Option) *Aggregator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	a := &Aggregator{
		requester: requester,
		timeout:   timeout,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "stream")
	return a
}

// SendStreamingRequest sends action and collects the streamed answer. onChunk,
// when non-nil, sees each chunk's text synchronously and in order before the
// call returns. On failure partial text is discarded and the error returned:
// errors.ErrStreamAborted for an error frame, *errors.TimeoutError when the
// stream does not complete in time.
func (a *Aggregator) SendStreamingRequest(
	ctx context.Context, action string, data any, onChunk ChunkFunc,
) (*Result, error) {
	session := NewSession(onChunk)

	frame, err := a.requester.SendStreaming(ctx, action, data, a.timeout, session.Append)
	if err != nil {
		received := session.Len()
		session.Discard()
		a.logger.Debug("stream failed", "action", action, "chunks_discarded", received, "error", err)
		a.record(resultLabel(err), 0)
		return nil, err
	}

	result := session.Finish(frame)
	a.record("success", result.Chunks)
	return result, nil
}

func (a *Aggregator) record(result string, chunks int) {
	if a.streams == nil {
		return
	}
	a.streams.WithLabelValues(result).Inc()
	if result == "success" {
		a.chunkHist.Observe(float64(chunks))
	}
}

func resultLabel(err error) string {
	switch {
	case errors.IsTimeout(err):
		return "timeout"
	case errors.IsRemote(err):
		return "aborted"
	default:
		return "failed"
	}
}
