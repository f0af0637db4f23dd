package message

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/c360/agentwire/errors"
	"github.com/c360/agentwire/pkg/timestamp"
)

// Envelope wraps every message crossing the connection in either direction.
// Envelopes are built by the constructors below and never modified afterwards.
type Envelope struct {
	Type      Type            `json:"type"`
	Timestamp int64           `json:"timestamp"`           // Unix milliseconds
	RequestID string          `json:"requestId,omitempty"` // Correlates request and response
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// New builds an envelope stamped with the current time. The payload is
// marshaled to JSON; a nil payload is omitted.
func New(t Type, requestID string, payload any) (*Envelope, error) {
	if !t.IsValid() {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: unknown type %q", errors.ErrInvalidEnvelope, t),
			"message", "New", "validate type")
	}

	var raw json.RawMessage
	if payload != nil {
		switch p := payload.(type) {
		case json.RawMessage:
			raw = p
		default:
			data, err := json.Marshal(payload)
			if err != nil {
				return nil, errors.WrapInvalid(err, "message", "New", "marshal payload")
			}
			raw = data
		}
	}

	return &Envelope{
		Type:      t,
		Timestamp: timestamp.Now(),
		RequestID: requestID,
		Payload:   raw,
	}, nil
}

// Ping returns a keepalive ping envelope
func Ping() *Envelope {
	return &Envelope{Type: TypePing, Timestamp: timestamp.Now()}
}

// Pong returns a keepalive pong envelope
func Pong() *Envelope {
	return &Envelope{Type: TypePong, Timestamp: timestamp.Now()}
}

// Auth returns the envelope sent once per successful open to authenticate
func Auth(token string) (*Envelope, error) {
	return New(TypeAuth, "", AuthPayload{Token: token})
}

// Request returns a request envelope carrying {action, data}
func Request(requestID, action string, data any) (*Envelope, error) {
	if requestID == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: empty request id", errors.ErrInvalidEnvelope),
			"message", "Request", "validate request id")
	}
	if action == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: empty action", errors.ErrInvalidEnvelope),
			"message", "Request", "validate action")
	}
	return New(TypeRequest, requestID, RequestPayload{Action: action, Data: data})
}

// Time returns the envelope timestamp as a time.Time, zero when unset
func (e *Envelope) Time() time.Time {
	return timestamp.FromUnixMs(e.Timestamp)
}

// Decode unmarshals the payload into v
func (e *Envelope) Decode(v any) error {
	if len(e.Payload) == 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: empty payload", errors.ErrInvalidData),
			"message", "Decode", "read payload")
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return errors.WrapInvalid(err, "message", "Decode", "unmarshal payload")
	}
	return nil
}

// Marshal encodes the envelope for the wire
func (e *Envelope) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, errors.WrapInvalid(err, "message", "Marshal", "marshal envelope")
	}
	return data, nil
}

// Parse decodes and validates a raw inbound message. Malformed JSON, a
// missing type and types outside the closed set are invalid-class errors.
func Parse(data []byte) (*Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrParsingFailed, err),
			"message", "Parse", "unmarshal envelope")
	}

	if envelope.Type == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: missing message type", errors.ErrInvalidEnvelope),
			"message", "Parse", "validate envelope")
	}

	if !envelope.Type.IsValid() {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: unknown message type %q", errors.ErrInvalidEnvelope, envelope.Type),
			"message", "Parse", "validate envelope")
	}

	return &envelope, nil
}
