package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/agentwire/message"
	"github.com/c360/agentwire/testutil"
)

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.NoError(t, run([]string{"--version"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "agentwire version "+Version)
}

func TestRun_Help(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.NoError(t, run([]string{"-h"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "--action")
	assert.Contains(t, stdout.String(), "Examples:")
}

func TestRun_Request(t *testing.T) {
	peer := testutil.NewPeer(t, testutil.WithPeerHandler(func(p *testutil.Peer, env *message.Envelope) {
		if env.Type != message.TypeRequest {
			return
		}
		var req message.RequestPayload
		_ = env.Decode(&req)
		_ = p.RespondOK(env.RequestID, map[string]any{"action": req.Action, "data": req.Data})
	}))

	var stdout, stderr bytes.Buffer
	err := run([]string{"--url", peer.URL(), "--action", "getTasks", "--data", `{"limit":3}`}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())
	assert.JSONEq(t, `{"action":"getTasks","data":{"limit":3}}`, stdout.String())
}

func TestRun_Stream(t *testing.T) {
	peer := testutil.NewPeer(t, testutil.WithPeerHandler(func(p *testutil.Peer, env *message.Envelope) {
		if env.Type != message.TypeRequest {
			return
		}
		_ = p.SendChunk(env.RequestID, "Hel")
		_ = p.SendChunk(env.RequestID, "lo wo")
		_ = p.SendChunk(env.RequestID, "rld")
		_ = p.SendComplete(env.RequestID, message.StreamFrame{ID: "resp-1", Model: "m"})
	}))

	var stdout, stderr bytes.Buffer
	err := run([]string{"--url", peer.URL(), "--stream", "--action", "chat"}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())
	assert.Equal(t, "Hello world\n", stdout.String())
	assert.Contains(t, stderr.String(), "Stream complete")
}

func TestRun_RemoteErrorFails(t *testing.T) {
	peer := testutil.NewPeer(t, testutil.WithPeerHandler(func(p *testutil.Peer, env *message.Envelope) {
		if env.Type == message.TypeRequest {
			_ = p.Respond(env.RequestID, message.ResponsePayload{Success: false, Error: "no such action"})
		}
	}))

	var stdout, stderr bytes.Buffer
	err := run([]string{"--url", peer.URL(), "--action", "nope"}, &stdout, &stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such action")
	assert.Empty(t, stdout.String())
}

func TestRun_RequiresServerURL(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run([]string{"--action", "getTasks"}, &stdout, &stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no server URL")
}

func TestRun_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "agentwire.env")
	require.NoError(t, os.WriteFile(envFile, []byte("AGENTWIRE_SERVER_URL=ws://example.test:9/ws\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("AGENTWIRE_SERVER_URL") })

	var stdout, stderr bytes.Buffer
	err := run([]string{"--env-file", envFile, "--validate"}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())
	assert.Contains(t, stdout.String(), "ws://example.test:9/ws")
}

func TestRun_ValidateMasksSecrets(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run([]string{"--url", "ws://localhost:1/ws", "--token", "s3cret", "--validate"}, &stdout, &stderr)
	require.NoError(t, err)
	assert.NotContains(t, stdout.String(), "s3cret")
	assert.Contains(t, stdout.String(), "***")
}
