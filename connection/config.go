package connection

import (
	"fmt"
	"time"

	"github.com/c360/agentwire/errors"
	"github.com/c360/agentwire/pkg/retry"
)

// Config controls reconnect and keepalive behavior
type Config struct {
	// ReconnectDelay is the wait before each reconnect attempt
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the delay when BackoffMultiplier > 1
	MaxReconnectDelay time.Duration
	// BackoffMultiplier grows the delay per attempt; 1 keeps it fixed
	BackoffMultiplier float64
	// MaxReconnectAttempts bounds consecutive failed attempts
	MaxReconnectAttempts int
	// KeepaliveInterval is the ping period while connected
	KeepaliveInterval time.Duration
	// AuthToken, when set, is sent in an auth envelope after every open
	AuthToken string
	// Jitter adds up to 25% randomness to reconnect delays
	Jitter bool
}

// DefaultConfig returns the stock reconnect and keepalive settings
func DefaultConfig() Config {
	return Config{
		ReconnectDelay:       5 * time.Second,
		MaxReconnectDelay:    5 * time.Second,
		BackoffMultiplier:    1.0,
		MaxReconnectAttempts: 5,
		KeepaliveInterval:    30 * time.Second,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	switch {
	case c.ReconnectDelay <= 0:
		return errors.WrapInvalid(
			fmt.Errorf("%w: reconnect delay must be positive", errors.ErrInvalidConfig),
			"connection", "Validate", "check reconnect delay")
	case c.MaxReconnectAttempts < 0:
		return errors.WrapInvalid(
			fmt.Errorf("%w: max reconnect attempts cannot be negative", errors.ErrInvalidConfig),
			"connection", "Validate", "check reconnect attempts")
	case c.KeepaliveInterval <= 0:
		return errors.WrapInvalid(
			fmt.Errorf("%w: keepalive interval must be positive", errors.ErrInvalidConfig),
			"connection", "Validate", "check keepalive interval")
	case c.BackoffMultiplier < 0:
		return errors.WrapInvalid(
			fmt.Errorf("%w: backoff multiplier cannot be negative", errors.ErrInvalidConfig),
			"connection", "Validate", "check backoff multiplier")
	}
	return nil
}

// backoff converts the reconnect settings into a retry schedule
func (c Config) backoff() retry.Config {
	multiplier := c.BackoffMultiplier
	if multiplier < 1 {
		multiplier = 1
	}
	maxDelay := c.MaxReconnectDelay
	if maxDelay < c.ReconnectDelay {
		maxDelay = c.ReconnectDelay
	}
	return retry.Config{
		MaxAttempts:  c.MaxReconnectAttempts,
		InitialDelay: c.ReconnectDelay,
		MaxDelay:     maxDelay,
		Multiplier:   multiplier,
		AddJitter:    c.Jitter,
	}
}
