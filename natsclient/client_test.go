package natsclient

import (
	"bufio"
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/agentwire/errors"
	"github.com/c360/agentwire/metric"
)

func TestNewClient(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	assert.Equal(t, "nats://localhost:4222", client.URL())
	assert.Equal(t, StatusDisconnected, client.Status())
	assert.False(t, client.IsHealthy())
	assert.Equal(t, time.Second, client.Backoff())
}

func TestNewClient_RequiresURL(t *testing.T) {
	_, err := NewClient("")
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestConnectionStatus_String(t *testing.T) {
	assert.Equal(t, "disconnected", StatusDisconnected.String())
	assert.Equal(t, "connecting", StatusConnecting.String())
	assert.Equal(t, "connected", StatusConnected.String())
	assert.Equal(t, "reconnecting", StatusReconnecting.String())
	assert.Equal(t, "circuit_open", StatusCircuitOpen.String())
	assert.Equal(t, "unknown", ConnectionStatus(99).String())
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	client, err := NewClient("nats://invalid:4222", WithCircuitBreakerThreshold(3))
	require.NoError(t, err)

	client.recordFailure()
	client.recordFailure()
	assert.NotEqual(t, StatusCircuitOpen, client.Status())

	client.recordFailure()
	assert.Equal(t, StatusCircuitOpen, client.Status())
	assert.Equal(t, int32(3), client.Failures())
	assert.Equal(t, 2*time.Second, client.Backoff())

	err = client.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.True(t, errors.IsTransient(err))
}

func TestCircuitBreaker_BackoffCapped(t *testing.T) {
	client, err := NewClient("nats://invalid:4222",
		WithCircuitBreakerThreshold(1), WithMaxBackoff(3*time.Second))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		client.recordFailure()
	}
	assert.Equal(t, 3*time.Second, client.Backoff())
}

func TestCircuitBreaker_HalfOpens(t *testing.T) {
	client, err := NewClient("nats://invalid:4222", WithCircuitBreakerThreshold(1))
	require.NoError(t, err)

	client.backoff.Store(int64(20 * time.Millisecond))
	client.recordFailure()
	assert.Equal(t, StatusCircuitOpen, client.Status())

	require.Eventually(t, func() bool { return client.Status() == StatusDisconnected },
		time.Second, 5*time.Millisecond)
}

func TestCircuitBreaker_Reset(t *testing.T) {
	client, err := NewClient("nats://invalid:4222", WithCircuitBreakerThreshold(2))
	require.NoError(t, err)

	client.recordFailure()
	client.recordFailure()
	client.resetCircuit()

	assert.Zero(t, client.Failures())
	assert.Equal(t, time.Second, client.Backoff())
}

func TestConnect_UnreachableServer(t *testing.T) {
	client, err := NewClient("nats://127.0.0.1:1",
		WithTimeout(200*time.Millisecond), WithMaxReconnects(0))
	require.NoError(t, err)
	defer client.Close(context.Background())

	err = client.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.Equal(t, StatusDisconnected, client.Status())
	assert.Equal(t, int32(1), client.Failures())
}

func TestConnect_ContextCancelled(t *testing.T) {
	srv := newSlowServer(t, time.Hour)
	client, err := NewClient(srv.url(), WithTimeout(5*time.Second), WithMaxReconnects(0))
	require.NoError(t, err)
	defer client.Close(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = client.Connect(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, errors.IsTransient(err))
}

func TestConnect_LateDialAfterCancelIsClosed(t *testing.T) {
	srv := newSlowServer(t, 150*time.Millisecond)
	client, err := NewClient(srv.url(),
		WithTimeout(2*time.Second), WithMaxReconnects(0), WithToken("secret"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = client.Connect(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// Close wipes credentials while the abandoned dial is still running
	require.NoError(t, client.Close(context.Background()))

	select {
	case <-srv.handshook:
	case <-time.After(2 * time.Second):
		t.Fatal("late dial never completed its handshake")
	}
	select {
	case <-srv.hungUp:
	case <-time.After(2 * time.Second):
		t.Fatal("late connection was left open")
	}

	client.mu.RLock()
	defer client.mu.RUnlock()
	assert.Nil(t, client.conn)
	assert.Equal(t, StatusDisconnected, client.Status())
}

func TestPublish_WhileDisconnected(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	err = client.Publish(context.Background(), "agentwire.status", []byte("{}"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotConnected)

	err = client.Subscribe(context.Background(), "agentwire.>", func(context.Context, []byte) {})
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = client.RTT()
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestClose_Idempotent(t *testing.T) {
	client, err := NewClient("nats://localhost:4222", WithToken("secret"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, client.Close(context.Background()))
		}()
	}
	wg.Wait()

	assert.Empty(t, client.token)
	err = client.Connect(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMetrics_ReportConnectionState(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	client, err := NewClient("nats://localhost:4222", WithMetrics(registry))
	require.NoError(t, err)

	client.setStatus(StatusConnected)
	assert.Equal(t, 1.0, promtest.ToFloat64(registry.CoreMetrics().NATSConnected))

	client.setStatus(StatusReconnecting)
	assert.Equal(t, 0.0, promtest.ToFloat64(registry.CoreMetrics().NATSConnected))
}

func TestHealthCallback(t *testing.T) {
	got := make(chan bool, 2)
	client, err := NewClient("nats://localhost:4222", WithHealthChangeCallback(func(h bool) { got <- h }))
	require.NoError(t, err)

	client.handleReconnect(nil)
	select {
	case healthy := <-got:
		assert.True(t, healthy)
	case <-time.After(time.Second):
		t.Fatal("no health callback")
	}
	assert.Equal(t, StatusConnected, client.Status())
}

// slowServer speaks just enough of the NATS protocol to finish a handshake,
// after holding back INFO for delay.
type slowServer struct {
	ln         net.Listener
	stop       chan struct{}
	handshook  chan struct{}
	hungUp     chan struct{}
	handshake  sync.Once
	hangupOnce sync.Once
}

func newSlowServer(t *testing.T, delay time.Duration) *slowServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &slowServer{
		ln:        ln,
		stop:      make(chan struct{}),
		handshook: make(chan struct{}),
		hungUp:    make(chan struct{}),
	}
	t.Cleanup(func() {
		close(s.stop)
		_ = ln.Close()
	})

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go s.serve(conn, delay)
		}
	}()
	return s
}

func (s *slowServer) url() string {
	return "nats://" + s.ln.Addr().String()
}

func (s *slowServer) serve(conn net.Conn, delay time.Duration) {
	defer conn.Close()

	select {
	case <-time.After(delay):
	case <-s.stop:
		return
	}

	info := `INFO {"server_id":"slow","version":"2.10.0","go":"go1.22","host":"127.0.0.1","port":4222,"max_payload":1048576,"proto":1}` + "\r\n"
	if _, err := conn.Write([]byte(info)); err != nil {
		return
	}

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			s.hangupOnce.Do(func() { close(s.hungUp) })
			return
		}
		if strings.HasPrefix(line, "PING") {
			if _, err := conn.Write([]byte("PONG\r\n")); err != nil {
				return
			}
			s.handshake.Do(func() { close(s.handshook) })
		}
	}
}
