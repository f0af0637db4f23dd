// Package retry provides backoff delay computation and retry logic for transient failures.
//
// # Overview
//
// Two uses share one Config type:
//
//   - Do / DoWithResult run an operation until it succeeds, the attempt budget is
//     spent, or the context is cancelled. The bridge uses this for NATS publishes.
//   - Config.Delay computes the wait before a given attempt without blocking. The
//     connection manager uses it to schedule reconnect timers on its own goroutine.
//
// # Configuration Presets
//
//   - DefaultConfig(): 3 attempts, 100ms-5s exponential delay
//   - Quick(): 10 attempts, 50ms-1s delay
//   - Fixed(d, n): n attempts, constant delay d (reconnect policy)
//
// # Usage Examples
//
//	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
//	    return nc.Publish(ctx, subject, data)
//	})
//
//	delay := retry.Fixed(5*time.Second, 5).Delay(attempt)
//
// Errors wrapped with NonRetryable stop Do immediately.
//
// # Thread Safety
//
// All functions are safe for concurrent use. Jitter uses a mutex-guarded random source.
package retry
