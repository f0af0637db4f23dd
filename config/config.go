package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/c360/agentwire/errors"
	"github.com/c360/agentwire/pkg/security"
)

// Default values applied before files and environment overrides
const (
	DefaultReconnectDelay       = 5 * time.Second
	DefaultMaxReconnectAttempts = 5
	DefaultKeepaliveInterval    = 30 * time.Second
	DefaultRequestTimeout       = 30 * time.Second
	DefaultStreamTimeout        = 120 * time.Second
	DefaultHandshakeTimeout     = 10 * time.Second
	DefaultWriteTimeout         = 10 * time.Second
	DefaultMetricsPort          = 9090
	DefaultMetricsPath          = "/metrics"
	DefaultSubjectPrefix        = "agentwire"
)

// Config is the complete client configuration.
// Durations are written as Go duration strings ("5s", "2m") in files.
type Config struct {
	ServerURL string `json:"server_url" yaml:"server_url"`
	AuthToken string `json:"auth_token,omitempty" yaml:"auth_token,omitempty"`

	ReconnectDelay       time.Duration `json:"reconnect_delay" yaml:"reconnect_delay"`
	MaxReconnectDelay    time.Duration `json:"max_reconnect_delay,omitempty" yaml:"max_reconnect_delay,omitempty"`
	BackoffMultiplier    float64       `json:"backoff_multiplier,omitempty" yaml:"backoff_multiplier,omitempty"`
	MaxReconnectAttempts int           `json:"max_reconnect_attempts" yaml:"max_reconnect_attempts"`
	ReconnectJitter      bool          `json:"reconnect_jitter,omitempty" yaml:"reconnect_jitter,omitempty"`
	KeepaliveInterval    time.Duration `json:"keepalive_interval" yaml:"keepalive_interval"`

	RequestTimeout   time.Duration `json:"request_timeout" yaml:"request_timeout"`
	StreamTimeout    time.Duration `json:"stream_timeout" yaml:"stream_timeout"`
	HandshakeTimeout time.Duration `json:"handshake_timeout" yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `json:"write_timeout" yaml:"write_timeout"`

	RequestsPerSecond float64 `json:"requests_per_second,omitempty" yaml:"requests_per_second,omitempty"`
	RequestBurst      int     `json:"request_burst,omitempty" yaml:"request_burst,omitempty"`

	TLS     security.ClientTLSConfig `json:"tls" yaml:"tls"`
	Metrics MetricsConfig            `json:"metrics" yaml:"metrics"`
	NATS    NATSConfig               `json:"nats" yaml:"nats"`
}

// MetricsConfig controls the Prometheus and health endpoint
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Port    int    `json:"port" yaml:"port"`
	Path    string `json:"path" yaml:"path"`
}

// NATSConfig controls the optional NATS bridge. An empty URL disables it.
type NATSConfig struct {
	URL           string `json:"url,omitempty" yaml:"url,omitempty"`
	Username      string `json:"username,omitempty" yaml:"username,omitempty"`
	Password      string `json:"password,omitempty" yaml:"password,omitempty"`
	Token         string `json:"token,omitempty" yaml:"token,omitempty"`
	SubjectPrefix string `json:"subject_prefix,omitempty" yaml:"subject_prefix,omitempty"`
}

// Enabled reports whether a NATS server is configured
func (n NATSConfig) Enabled() bool {
	return n.URL != ""
}

// Default returns the stock configuration. ServerURL is left empty.
func Default() Config {
	return Config{
		ReconnectDelay:       DefaultReconnectDelay,
		MaxReconnectDelay:    DefaultReconnectDelay,
		BackoffMultiplier:    1.0,
		MaxReconnectAttempts: DefaultMaxReconnectAttempts,
		KeepaliveInterval:    DefaultKeepaliveInterval,
		RequestTimeout:       DefaultRequestTimeout,
		StreamTimeout:        DefaultStreamTimeout,
		HandshakeTimeout:     DefaultHandshakeTimeout,
		WriteTimeout:         DefaultWriteTimeout,
		Metrics: MetricsConfig{
			Port: DefaultMetricsPort,
			Path: DefaultMetricsPath,
		},
		NATS: NATSConfig{
			SubjectPrefix: DefaultSubjectPrefix,
		},
	}
}

// Validate checks field ranges. ServerURL may be empty because Connect can
// supply the endpoint, but a non-empty one must be a ws or wss URL.
func (c Config) Validate() error {
	var problems []string

	if c.ServerURL != "" {
		if err := validateServerURL(c.ServerURL); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if c.ReconnectDelay <= 0 {
		problems = append(problems, "reconnect_delay must be positive")
	}
	if c.MaxReconnectDelay < 0 {
		problems = append(problems, "max_reconnect_delay cannot be negative")
	}
	if c.BackoffMultiplier < 0 {
		problems = append(problems, "backoff_multiplier cannot be negative")
	}
	if c.MaxReconnectAttempts < 0 {
		problems = append(problems, "max_reconnect_attempts cannot be negative")
	}
	if c.KeepaliveInterval <= 0 {
		problems = append(problems, "keepalive_interval must be positive")
	}
	if c.RequestTimeout <= 0 {
		problems = append(problems, "request_timeout must be positive")
	}
	if c.StreamTimeout <= 0 {
		problems = append(problems, "stream_timeout must be positive")
	}
	if c.HandshakeTimeout < 0 || c.WriteTimeout < 0 {
		problems = append(problems, "handshake_timeout and write_timeout cannot be negative")
	}
	if c.RequestsPerSecond < 0 || c.RequestBurst < 0 {
		problems = append(problems, "requests_per_second and request_burst cannot be negative")
	}
	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		problems = append(problems, fmt.Sprintf("metrics.port %d out of range", c.Metrics.Port))
	}
	problems = append(problems, c.TLS.Problems()...)
	if c.NATS.Enabled() && !isValidSubjectPrefix(c.NATS.SubjectPrefix) {
		problems = append(problems, fmt.Sprintf("nats.subject_prefix %q is not a valid subject", c.NATS.SubjectPrefix))
	}

	if len(problems) > 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrInvalidConfig, strings.Join(problems, "; ")),
			"Config", "Validate", "check fields")
	}
	return nil
}

func validateServerURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("server_url: %v", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("server_url scheme must be ws or wss, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("server_url has no host")
	}
	return nil
}

// isValidSubjectPrefix accepts dot separated tokens without wildcards or spaces
func isValidSubjectPrefix(s string) bool {
	if s == "" {
		return false
	}
	for _, part := range strings.Split(s, ".") {
		if part == "" || strings.ContainsAny(part, "*> \t\r\n") {
			return false
		}
	}
	return true
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}
	copied := *c
	copied.TLS.CAFiles = append([]string(nil), c.TLS.CAFiles...)
	return &copied
}

// Redacted returns a copy with secrets masked, suitable for logging
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "***"
	}
	c.AuthToken = mask(c.AuthToken)
	c.NATS.Password = mask(c.NATS.Password)
	c.NATS.Token = mask(c.NATS.Token)
	return c
}

// String returns a JSON representation of the config with secrets masked
func (c Config) String() string {
	data, _ := json.MarshalIndent(c.Redacted(), "", "  ")
	return string(data)
}

// SafeConfig provides thread-safe access to configuration
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig creates a new thread-safe config wrapper
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		d := Default()
		cfg = &d
	}
	return &SafeConfig{config: cfg.Clone()}
}

// Get returns a copy of the current configuration
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update atomically replaces the configuration after validation
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return errors.WrapInvalid(
			fmt.Errorf("%w: config cannot be nil", errors.ErrMissingConfig),
			"SafeConfig", "Update", "check config")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg.Clone()
	return nil
}
