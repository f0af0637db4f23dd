// Package message defines the envelope exchanged between the agent and the
// remote service, and the payload shapes the client itself needs to read.
//
// # Envelope
//
// Every frame on the connection is a JSON object:
//
//	{"type": "request", "timestamp": 1718000000000, "requestId": "...", "payload": {...}}
//
// Type is a closed set (see Type). Parse rejects malformed JSON, a missing type
// and unknown types with an invalid-class error from the errors package, so the
// caller can log and drop the frame without tearing down the connection.
//
// # Payloads
//
// Only a handful of payloads are interpreted by the client:
//
//   - RequestPayload {action, data} on outbound requests
//   - ResponsePayload {success, result, error, stream} on responses
//   - StreamFrame {kind: chunk|complete|error, ...} inside streaming responses
//   - AuthPayload {token} on the auth envelope sent after each open
//
// Notification payloads are passed through untouched as json.RawMessage.
package message
