package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/agentwire/metric"
)

// Pool runs a fixed number of goroutines processing items of type T from a
// bounded queue
type Pool[T any] struct {
	workers   int
	queueSize int
	processor func(context.Context, T) error
	onError   func(T, error)

	workChan chan T
	done     chan struct{}
	metrics  *poolMetrics
	wg       sync.WaitGroup

	lifecycleMu sync.Mutex
	started     bool
	stopped     bool

	submitted atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64

	metricsRegistry metric.MetricsRegistrar
	metricsPrefix   string
}

type poolMetrics struct {
	queueDepth     prometheus.Gauge
	submitted      prometheus.Counter
	failed         prometheus.Counter
	dropped        prometheus.Counter
	processingTime *prometheus.HistogramVec
}

// Option configures a Pool
type Option[T any] func(*Pool[T])

// WithMetricsRegistry registers pool metrics named agentwire_<prefix>_*
func WithMetricsRegistry[T any](registry metric.MetricsRegistrar, prefix string) Option[T] {
	return func(p *Pool[T]) {
		p.metricsRegistry = registry
		p.metricsPrefix = prefix
	}
}

// WithErrorHandler calls fn with every item whose processing failed
func WithErrorHandler[T any](fn func(T, error)) Option[T] {
	return func(p *Pool[T]) {
		p.onError = fn
	}
}

// NewPool creates a pool. Non-positive sizes fall back to 10 workers and a
// queue of 1000. It panics on a nil processor.
func NewPool[T any](workers, queueSize int, processor func(context.Context, T) error, opts ...Option[T]) *Pool[T] {
	if workers <= 0 {
		workers = 10
	}
	if queueSize <= 0 {
		queueSize = 1000
	}
	if processor == nil {
		panic(ErrNilProcessor)
	}

	pool := &Pool[T]{
		workers:   workers,
		queueSize: queueSize,
		processor: processor,
		workChan:  make(chan T, queueSize),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(pool)
	}

	if pool.metricsRegistry != nil && pool.metricsPrefix != "" {
		pool.initializeMetrics()
	}
	return pool
}

func (p *Pool[T]) initializeMetrics() {
	prefix := p.metricsPrefix
	m := &poolMetrics{
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metric.Namespace,
			Subsystem: prefix,
			Name:      "queue_depth",
			Help:      "Items waiting in the worker pool queue",
		}),
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: prefix,
			Name:      "submitted_total",
			Help:      "Items accepted by the worker pool",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: prefix,
			Name:      "failed_total",
			Help:      "Items whose processing returned an error",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: prefix,
			Name:      "dropped_total",
			Help:      "Items dropped because the queue was full",
		}),
		processingTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metric.Namespace,
			Subsystem: prefix,
			Name:      "processing_duration_seconds",
			Help:      "Time spent processing one item",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"status"}),
	}

	component := "worker_" + prefix
	_ = p.metricsRegistry.RegisterGauge(component, "queue_depth", m.queueDepth)
	_ = p.metricsRegistry.RegisterCounter(component, "submitted_total", m.submitted)
	_ = p.metricsRegistry.RegisterCounter(component, "failed_total", m.failed)
	_ = p.metricsRegistry.RegisterCounter(component, "dropped_total", m.dropped)
	_ = p.metricsRegistry.RegisterHistogramVec(component, "processing_duration_seconds", m.processingTime)
	p.metrics = m
}

// Submit queues work without blocking. It returns ErrQueueFull when the
// queue is at capacity.
func (p *Pool[T]) Submit(work T) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if !p.started {
		return ErrPoolNotStarted
	}
	if p.stopped {
		return ErrPoolStopped
	}

	select {
	case p.workChan <- work:
		p.submitted.Add(1)
		if p.metrics != nil {
			p.metrics.submitted.Inc()
			p.metrics.queueDepth.Set(float64(len(p.workChan)))
		}
		return nil
	default:
		p.dropped.Add(1)
		if p.metrics != nil {
			p.metrics.dropped.Inc()
		}
		return ErrQueueFull
	}
}

// Start launches the workers. They exit when the queue is closed by Stop or
// when ctx is cancelled.
func (p *Pool[T]) Start(ctx context.Context) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.stopped {
		return ErrPoolStopped
	}
	if p.started {
		return ErrPoolAlreadyStarted
	}

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	if p.metrics != nil {
		p.wg.Add(1)
		go p.metricsUpdater(ctx)
	}

	p.started = true
	return nil
}

// Stop closes the queue and waits up to timeout for queued items to finish.
// Later Submit calls return ErrPoolStopped. Stop is idempotent.
func (p *Pool[T]) Stop(timeout time.Duration) error {
	p.lifecycleMu.Lock()
	if !p.started || p.stopped {
		p.stopped = true
		p.lifecycleMu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.workChan)
	close(p.done)
	p.lifecycleMu.Unlock()

	finished := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(finished)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-finished:
		return nil
	case <-timer.C:
		return ErrStopTimeout
	}
}

// Stats returns current pool statistics
func (p *Pool[T]) Stats() PoolStats {
	return PoolStats{
		Workers:    p.workers,
		QueueSize:  p.queueSize,
		QueueDepth: len(p.workChan),
		Submitted:  p.submitted.Load(),
		Processed:  p.processed.Load(),
		Failed:     p.failed.Load(),
		Dropped:    p.dropped.Load(),
	}
}

// PoolStats represents worker pool statistics
type PoolStats struct {
	Workers    int   `json:"workers"`
	QueueSize  int   `json:"queue_size"`
	QueueDepth int   `json:"queue_depth"`
	Submitted  int64 `json:"submitted"`
	Processed  int64 `json:"processed"`
	Failed     int64 `json:"failed"`
	Dropped    int64 `json:"dropped"`
}

func (p *Pool[T]) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case work, ok := <-p.workChan:
			if !ok {
				return
			}
			p.process(ctx, work)
		}
	}
}

func (p *Pool[T]) process(ctx context.Context, work T) {
	start := time.Now()
	err := p.processor(ctx, work)

	p.processed.Add(1)
	status := "success"
	if err != nil {
		p.failed.Add(1)
		status = "error"
		if p.onError != nil {
			p.onError(work, err)
		}
	}

	if p.metrics != nil {
		if err != nil {
			p.metrics.failed.Inc()
		}
		p.metrics.processingTime.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}
}

func (p *Pool[T]) metricsUpdater(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case <-ticker.C:
			p.metrics.queueDepth.Set(float64(len(p.workChan)))
		}
	}
}
