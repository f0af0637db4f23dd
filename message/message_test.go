package message

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/agentwire/errors"
)

func TestType_IsValid(t *testing.T) {
	for _, typ := range []Type{
		TypeAuth, TypePing, TypePong, TypeRequest, TypeResponse, TypeError,
		TypeStatusUpdate, TypeCreatedNotification, TypeUpdatedNotification, TypeDeletedNotification,
	} {
		assert.True(t, typ.IsValid(), typ.String())
	}
	assert.False(t, Type("reply").IsValid())
	assert.False(t, Type("").IsValid())
}

func TestType_Classification(t *testing.T) {
	assert.True(t, TypePing.IsKeepalive())
	assert.True(t, TypePong.IsKeepalive())
	assert.False(t, TypeRequest.IsKeepalive())

	assert.True(t, TypeCreatedNotification.IsNotification())
	assert.True(t, TypeStatusUpdate.IsNotification())
	assert.False(t, TypeResponse.IsNotification())
	assert.False(t, TypeError.IsNotification())
}

func TestRequest_WireShape(t *testing.T) {
	before := time.Now().UnixMilli()
	env, err := Request("req-1", "getTasks", map[string]string{"project": "alpha"})
	require.NoError(t, err)

	data, err := env.Marshal()
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(data, &wire))
	assert.Equal(t, "request", wire["type"])
	assert.Equal(t, "req-1", wire["requestId"])
	assert.GreaterOrEqual(t, int64(wire["timestamp"].(float64)), before)

	payload := wire["payload"].(map[string]any)
	assert.Equal(t, "getTasks", payload["action"])
	assert.Equal(t, map[string]any{"project": "alpha"}, payload["data"])
}

func TestRequest_Validation(t *testing.T) {
	_, err := Request("", "chat", nil)
	assert.True(t, errors.IsInvalid(err))

	_, err = Request("id", "", nil)
	assert.True(t, errors.IsInvalid(err))
}

func TestNew_RejectsUnknownType(t *testing.T) {
	_, err := New(Type("bogus"), "", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidEnvelope)
}

func TestPingOmitsOptionalFields(t *testing.T) {
	data, err := Ping().Marshal()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "requestId")
	assert.NotContains(t, string(data), "payload")
	assert.Contains(t, string(data), `"type":"ping"`)
}

func TestAuth(t *testing.T) {
	env, err := Auth("secret")
	require.NoError(t, err)
	assert.Equal(t, TypeAuth, env.Type)

	var p AuthPayload
	require.NoError(t, env.Decode(&p))
	assert.Equal(t, "secret", p.Token)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"response", `{"type":"response","timestamp":1,"requestId":"a","payload":{"success":true}}`, nil},
		{"pong", `{"type":"pong","timestamp":1}`, nil},
		{"malformed json", `{"type":`, errors.ErrParsingFailed},
		{"missing type", `{"timestamp":1}`, errors.ErrInvalidEnvelope},
		{"unknown type", `{"type":"telemetry","timestamp":1}`, errors.ErrInvalidEnvelope},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Parse([]byte(tt.input))
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.True(t, errors.IsInvalid(err))
				assert.Nil(t, env)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, env.Type)
		})
	}
}

func TestDecode_StreamFrame(t *testing.T) {
	env, err := Parse([]byte(`{"type":"response","timestamp":5,"requestId":"r",
		"payload":{"success":true,"stream":{"kind":"chunk","content":"Hel"}}}`))
	require.NoError(t, err)

	var resp ResponsePayload
	require.NoError(t, env.Decode(&resp))
	require.True(t, resp.IsStream())
	assert.Equal(t, StreamChunk, resp.Stream.Kind)
	assert.Equal(t, "Hel", resp.Stream.Content)
	assert.Equal(t, time.UnixMilli(5), env.Time())
}

func TestEnvelope_TimeUnset(t *testing.T) {
	env, err := Parse([]byte(`{"type":"status-update","payload":{}}`))
	require.NoError(t, err)
	assert.True(t, env.Time().IsZero())
}

func TestDecode_EmptyPayload(t *testing.T) {
	var resp ResponsePayload
	err := Pong().Decode(&resp)
	assert.ErrorIs(t, err, errors.ErrInvalidData)
}
