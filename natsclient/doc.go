// Package natsclient wraps a single NATS connection with a circuit breaker
// around dials, health callbacks and idempotent shutdown.
//
// agentwire uses it only to fan notifications and connection status out to
// other local processes (see package bridge); it carries no JetStream or KV
// support.
//
// # Basic Usage
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//		natsclient.WithName("agentwire"),
//		natsclient.WithLogger(logger),
//	)
//	if err != nil {
//		return err
//	}
//	if err := client.Connect(ctx); err != nil {
//		return err
//	}
//	defer client.Close(ctx)
//
//	err = client.Publish(ctx, "agentwire.status", data)
//
// # Circuit Breaker
//
// After WithCircuitBreakerThreshold consecutive failed dials (default 5) the
// status moves to StatusCircuitOpen and Connect fails fast with ErrCircuitOpen.
// The circuit half-opens after the current backoff, which doubles on every trip
// up to WithMaxBackoff. A successful dial resets it.
//
// # Connection Status
//
//	Disconnected → Connecting → Connected ⇄ Reconnecting
//	      ↑            │
//	      └─ CircuitOpen (after repeated dial failures)
//
// Once connected, reconnection is handled by nats.go itself; the client only
// mirrors its state and reports it through OnHealthChange and, with
// WithMetrics, the agentwire_nats_connected gauge.
package natsclient
