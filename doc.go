// Package agentwire is a client for remote agent services that speak a
// JSON envelope protocol over a single WebSocket.
//
// The client keeps one logical connection alive across drops, correlates
// requests with their responses by id, and reassembles streamed answers
// delivered as a series of chunk frames. Everything the service pushes
// without being asked (created, updated and deleted notifications, status
// updates) reaches subscribers as it arrives.
//
// # Architecture
//
//	caller
//	  │ SendRequest / SendStreamingRequest
//	  ▼
//	┌──────────────┐   stream frames   ┌──────────────┐
//	│  correlator  │ ────────────────▶ │    stream    │  chunk assembly
//	└──────────────┘                   └──────────────┘
//	  │ envelopes ▲ responses, notifications
//	  ▼           │
//	┌──────────────┐
//	│  connection  │  reconnect with backoff, keepalive, status
//	└──────────────┘
//	  │           ▲
//	  ▼           │
//	┌──────────────┐
//	│  transport   │  one gorilla/websocket connection
//	└──────────────┘
//
// Package client wires these together behind one type. Around it sit the
// supporting packages: config (JSON/YAML files, AGENTWIRE_* environment,
// JSON Schema validation), errors (classified errors), metric and health
// (Prometheus and /health), natsclient and bridge (republishing events on
// NATS) and the agentwire command.
//
// # Quick Start
//
//	cfg := config.Default()
//	cfg.ServerURL = "ws://localhost:8080/ws"
//
//	c, err := client.New(cfg, client.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer c.Dispose()
//
//	if err := c.Connect(ctx, ""); err != nil {
//		return err
//	}
//
//	result, err := c.SendRequest(ctx, "getTasks", map[string]int{"limit": 10}, 0)
//
//	answer, err := c.SendStreamingRequest(ctx, "chat", prompt, func(chunk string) {
//		fmt.Print(chunk)
//	})
package agentwire
