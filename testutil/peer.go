package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/c360/agentwire/message"
)

// PeerHandler is called for every envelope the peer receives, on the
// connection's read goroutine.
type PeerHandler func(p *Peer, env *message.Envelope)

// Peer is an in-process WebSocket server standing in for the remote service.
// It records inbound envelopes and lets tests push frames, answer requests
// and drop connections.
type Peer struct {
	server   *httptest.Server
	upgrader websocket.Upgrader
	handler  PeerHandler

	mu       sync.Mutex
	conns    []*websocket.Conn
	writeMu  sync.Mutex
	received chan *message.Envelope

	refuse   atomic.Bool
	connects atomic.Int32
}

// PeerOption configures a Peer
type PeerOption func(*Peer)

// WithPeerHandler installs an auto-responder
func WithPeerHandler(h PeerHandler) PeerOption {
	return func(p *Peer) {
		p.handler = h
	}
}

// NewPeer starts a peer and registers its shutdown with t.Cleanup
func NewPeer(t testing.TB, opts ...PeerOption) *Peer {
	t.Helper()

	p := &Peer{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		received: make(chan *message.Envelope, 4096),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.server = httptest.NewServer(http.HandlerFunc(p.serveWS))
	t.Cleanup(p.Close)
	return p
}

// URL returns the ws:// address of the peer
func (p *Peer) URL() string {
	return "ws" + strings.TrimPrefix(p.server.URL, "http")
}

// Connects returns the number of accepted WebSocket handshakes
func (p *Peer) Connects() int {
	return int(p.connects.Load())
}

// Refuse makes the peer reject new handshakes with 503 while set
func (p *Peer) Refuse(refuse bool) {
	p.refuse.Store(refuse)
}

func (p *Peer) serveWS(w http.ResponseWriter, r *http.Request) {
	if p.refuse.Load() {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	p.mu.Lock()
	p.conns = append(p.conns, conn)
	p.mu.Unlock()
	p.connects.Add(1)

	go p.read(conn)
}

func (p *Peer) read(conn *websocket.Conn) {
	defer p.forget(conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		env, err := message.Parse(data)
		if err != nil {
			continue
		}

		select {
		case p.received <- env:
		default:
		}

		if p.handler != nil {
			p.handler(p, env)
		}
	}
}

func (p *Peer) forget(conn *websocket.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, c := range p.conns {
		if c == conn {
			p.conns = append(p.conns[:i], p.conns[i+1:]...)
			break
		}
	}
	_ = conn.Close()
}

// Received exposes every envelope the peer has read
func (p *Peer) Received() <-chan *message.Envelope {
	return p.received
}

// Expect waits for the next envelope of type typ, discarding others
func (p *Peer) Expect(typ message.Type, timeout time.Duration) (*message.Envelope, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case env := <-p.received:
			if env.Type == typ {
				return env, nil
			}
		case <-deadline.C:
			return nil, fmt.Errorf("no %s envelope within %v", typ, timeout)
		}
	}
}

// SendRaw writes data to the most recent connection
func (p *Peer) SendRaw(data []byte) error {
	p.mu.Lock()
	var conn *websocket.Conn
	if len(p.conns) > 0 {
		conn = p.conns[len(p.conns)-1]
	}
	p.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("peer has no open connection")
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Send writes env to the most recent connection
func (p *Peer) Send(env *message.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return p.SendRaw(data)
}

// Respond answers requestID with payload
func (p *Peer) Respond(requestID string, payload message.ResponsePayload) error {
	env, err := message.New(message.TypeResponse, requestID, payload)
	if err != nil {
		return err
	}
	return p.Send(env)
}

// RespondOK answers requestID with success and the JSON encoding of result
func (p *Peer) RespondOK(requestID string, result any) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return p.Respond(requestID, message.ResponsePayload{Success: true, Result: data})
}

// SendChunk sends one stream chunk for requestID
func (p *Peer) SendChunk(requestID, content string) error {
	return p.Respond(requestID, message.ResponsePayload{
		Success: true,
		Stream:  &message.StreamFrame{Kind: message.StreamChunk, Content: content},
	})
}

// SendComplete finishes the stream for requestID
func (p *Peer) SendComplete(requestID string, frame message.StreamFrame) error {
	frame.Kind = message.StreamComplete
	return p.Respond(requestID, message.ResponsePayload{Success: true, Stream: &frame})
}

// DropConnections closes every open connection without a close handshake
func (p *Peer) DropConnections() {
	p.mu.Lock()
	conns := append([]*websocket.Conn(nil), p.conns...)
	p.mu.Unlock()

	for _, conn := range conns {
		_ = conn.UnderlyingConn().Close()
	}
}

// CloseConnections sends a close frame with code and reason on every connection
func (p *Peer) CloseConnections(code int, reason string) {
	p.mu.Lock()
	conns := append([]*websocket.Conn(nil), p.conns...)
	p.mu.Unlock()

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	for _, conn := range conns {
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason),
			time.Now().Add(time.Second),
		)
		_ = conn.Close()
	}
}

// Close drops all connections and stops the server
func (p *Peer) Close() {
	p.DropConnections()
	p.server.Close()
}
