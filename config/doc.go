// Package config loads agentwire client configuration.
//
// Configuration is built in layers: Default() values, then an optional JSON or
// YAML file, then AGENTWIRE_* environment variables. Files are checked against
// an embedded JSON Schema before decoding and the merged result is checked by
// Config.Validate.
//
// # Basic Usage
//
//	cfg, err := config.Load("agentwire.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
// A minimal YAML file:
//
//	server_url: ws://localhost:7777/agent
//	reconnect_delay: 5s
//	max_reconnect_attempts: 5
//	keepalive_interval: 30s
//	request_timeout: 30s
//	stream_timeout: 2m
//
// # Environment Overrides
//
// Every scalar field has an override named after its file key, for example
// AGENTWIRE_SERVER_URL, AGENTWIRE_RECONNECT_DELAY or AGENTWIRE_NATS_URL.
// Malformed override values fail Load instead of being ignored.
//
// # Thread-Safe Access
//
// SafeConfig wraps a Config for concurrent readers and validated updates:
//
//	safe := config.NewSafeConfig(&cfg)
//	current := safe.Get()
package config
