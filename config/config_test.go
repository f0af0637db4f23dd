package config

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/agentwire/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 5*time.Second, cfg.ReconnectDelay)
	assert.Equal(t, 5, cfg.MaxReconnectAttempts)
	assert.Equal(t, 30*time.Second, cfg.KeepaliveInterval)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 120*time.Second, cfg.StreamTimeout)
	assert.Empty(t, cfg.ServerURL)
	assert.False(t, cfg.NATS.Enabled())
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid ws url", func(c *Config) { c.ServerURL = "ws://localhost:7777/agent" }, ""},
		{"valid wss url", func(c *Config) { c.ServerURL = "wss://agent.example.com" }, ""},
		{"http scheme", func(c *Config) { c.ServerURL = "http://localhost" }, "scheme must be ws or wss"},
		{"missing host", func(c *Config) { c.ServerURL = "ws://" }, "no host"},
		{"zero reconnect delay", func(c *Config) { c.ReconnectDelay = 0 }, "reconnect_delay"},
		{"negative attempts", func(c *Config) { c.MaxReconnectAttempts = -1 }, "max_reconnect_attempts"},
		{"zero attempts allowed", func(c *Config) { c.MaxReconnectAttempts = 0 }, ""},
		{"zero keepalive", func(c *Config) { c.KeepaliveInterval = 0 }, "keepalive_interval"},
		{"zero request timeout", func(c *Config) { c.RequestTimeout = 0 }, "request_timeout"},
		{"zero stream timeout", func(c *Config) { c.StreamTimeout = 0 }, "stream_timeout"},
		{"negative rate", func(c *Config) { c.RequestsPerSecond = -1 }, "requests_per_second"},
		{"bad metrics port", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Port = 70000 }, "metrics.port"},
		{"disabled metrics ignore port", func(c *Config) { c.Metrics.Port = 0 }, ""},
		{"wildcard subject prefix", func(c *Config) {
			c.NATS.URL = "nats://localhost:4222"
			c.NATS.SubjectPrefix = "agent.>"
		}, "subject_prefix"},
		{"empty subject token", func(c *Config) {
			c.NATS.URL = "nats://localhost:4222"
			c.NATS.SubjectPrefix = "agent..wire"
		}, "subject_prefix"},
		{"tls cert without key", func(c *Config) { c.TLS.CertFile = "client.pem" }, "tls.cert_file"},
		{"tls old version", func(c *Config) { c.TLS.MinVersion = "1.0" }, "tls.min_version"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
			assert.ErrorIs(t, err, errors.ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.ReconnectDelay = 0
	cfg.KeepaliveInterval = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reconnect_delay")
	assert.Contains(t, err.Error(), "keepalive_interval")
}

func TestConfig_StringMasksSecrets(t *testing.T) {
	cfg := Default()
	cfg.AuthToken = "super-secret"
	cfg.NATS.Password = "hunter2"

	out := cfg.String()
	assert.NotContains(t, out, "super-secret")
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, `"auth_token": "***"`)

	// The receiver keeps its values
	assert.Equal(t, "super-secret", cfg.AuthToken)
}

func TestSafeConfig_GetReturnsCopy(t *testing.T) {
	cfg := Default()
	safe := NewSafeConfig(&cfg)

	got := safe.Get()
	got.ServerURL = "ws://mutated"
	assert.Empty(t, safe.Get().ServerURL)

	cfg.ServerURL = "ws://also-mutated"
	assert.Empty(t, safe.Get().ServerURL)
}

func TestSafeConfig_UpdateValidates(t *testing.T) {
	safe := NewSafeConfig(nil)

	bad := Default()
	bad.RequestTimeout = 0
	require.Error(t, safe.Update(&bad))
	assert.Equal(t, DefaultRequestTimeout, safe.Get().RequestTimeout)

	err := safe.Update(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMissingConfig)

	good := Default()
	good.RequestTimeout = time.Minute
	require.NoError(t, safe.Update(&good))
	assert.Equal(t, time.Minute, safe.Get().RequestTimeout)
}

func TestSafeConfig_ThreadSafety(t *testing.T) {
	safe := NewSafeConfig(nil)

	var wg sync.WaitGroup
	errs := make(chan error, 100)

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				cfg := safe.Get()
				if cfg.RequestTimeout != DefaultRequestTimeout && cfg.RequestTimeout != time.Minute {
					errs <- fmt.Errorf("unexpected request timeout %s", cfg.RequestTimeout)
					return
				}
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				next := Default()
				next.RequestTimeout = time.Minute
				if err := safe.Update(&next); err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}
