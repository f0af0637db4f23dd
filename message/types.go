package message

// Type discriminates envelopes on the wire. The set is closed: Parse rejects
// any value not listed here.
type Type string

// Envelope types
const (
	TypeAuth                Type = "auth"
	TypePing                Type = "ping"
	TypePong                Type = "pong"
	TypeRequest             Type = "request"
	TypeResponse            Type = "response"
	TypeError               Type = "error"
	TypeStatusUpdate        Type = "status-update"
	TypeCreatedNotification Type = "created-notification"
	TypeUpdatedNotification Type = "updated-notification"
	TypeDeletedNotification Type = "deleted-notification"
)

var knownTypes = map[Type]struct{}{
	TypeAuth:                {},
	TypePing:                {},
	TypePong:                {},
	TypeRequest:             {},
	TypeResponse:            {},
	TypeError:               {},
	TypeStatusUpdate:        {},
	TypeCreatedNotification: {},
	TypeUpdatedNotification: {},
	TypeDeletedNotification: {},
}

// String returns the wire value
func (t Type) String() string {
	return string(t)
}

// IsValid reports whether t belongs to the closed set of envelope types
func (t Type) IsValid() bool {
	_, ok := knownTypes[t]
	return ok
}

// IsKeepalive reports whether t is a ping or pong
func (t Type) IsKeepalive() bool {
	return t == TypePing || t == TypePong
}

// IsNotification reports whether t is a domain notification pushed by the
// peer without a preceding request.
func (t Type) IsNotification() bool {
	switch t {
	case TypeCreatedNotification, TypeUpdatedNotification, TypeDeletedNotification, TypeStatusUpdate:
		return true
	default:
		return false
	}
}

// StreamKind identifies a streaming sub-message carried in a response payload
type StreamKind string

// Stream sub-message kinds
const (
	StreamChunk    StreamKind = "chunk"
	StreamComplete StreamKind = "complete"
	StreamError    StreamKind = "error"
)
