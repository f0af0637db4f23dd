package message

import "encoding/json"

// AuthPayload is the body of an auth envelope
type AuthPayload struct {
	Token string `json:"token"`
}

// RequestPayload is the body of a request envelope
type RequestPayload struct {
	Action string `json:"action"`
	Data   any    `json:"data,omitempty"`
}

// ResponsePayload is the body of a response envelope. A response that
// carries Stream is one sub-message of a streaming reply.
type ResponsePayload struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
	Stream  *StreamFrame    `json:"stream,omitempty"`
}

// IsStream reports whether the response is a streaming sub-message
func (p *ResponsePayload) IsStream() bool {
	return p.Stream != nil
}

// StreamFrame is one streaming sub-message. Chunk frames carry Content;
// complete frames carry the final ID, Message, Model and TokenCount; error
// frames carry Error.
type StreamFrame struct {
	Kind       StreamKind `json:"kind"`
	Content    string     `json:"content,omitempty"`
	ID         string     `json:"id,omitempty"`
	Message    string     `json:"message,omitempty"`
	Model      string     `json:"model,omitempty"`
	TokenCount int        `json:"tokenCount,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// ErrorPayload is the body of an error envelope
type ErrorPayload struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// StatusPayload is the body of a status-update envelope
type StatusPayload struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
