// Package worker provides a generic bounded worker pool.
//
// Submit never blocks: when the queue is full the item is dropped and
// ErrQueueFull returned, so callers on latency-sensitive paths (a connection
// status listener, a read loop) can hand work off without stalling. A pool
// with a single worker processes items in submission order.
//
//	pool := worker.NewPool[Event](1, 256, publish,
//		worker.WithMetricsRegistry[Event](registry, "bridge"),
//		worker.WithErrorHandler[Event](func(ev Event, err error) {
//			logger.Warn("publish failed", "subject", ev.Subject, "error", err)
//		}),
//	)
//	if err := pool.Start(ctx); err != nil {
//		return err
//	}
//	defer pool.Stop(5 * time.Second)
//
// Statistics are always tracked with atomics and available through Stats.
// Prometheus metrics are optional and named agentwire_<prefix>_*.
//
// Stop closes the queue, lets workers drain what is already queued and waits
// up to the given timeout. Cancelling the Start context makes workers exit
// without draining.
package worker
