package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/agentwire/errors"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "AGENTWIRE"

// durationKeys are the top-level fields written as duration strings
var durationKeys = []string{
	"reconnect_delay",
	"max_reconnect_delay",
	"keepalive_interval",
	"request_timeout",
	"stream_timeout",
	"handshake_timeout",
	"write_timeout",
}

// Load builds a Config from defaults, the file at path (JSON or YAML by
// extension), then AGENTWIRE_* environment variables, and validates the
// result. An empty path skips the file layer.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := loadRaw(path)
		if err != nil {
			return Config{}, err
		}
		if err := validateSchema(raw); err != nil {
			return Config{}, err
		}
		if err := mergeRaw(&cfg, raw); err != nil {
			return Config{}, errors.WrapInvalid(err, "Config", "Load", fmt.Sprintf("decode %s", path))
		}
	}

	if err := applyEnvOverrides(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadRaw reads a config file into a generic map
func loadRaw(path string) (map[string]any, error) {
	data, format, err := readConfigFile(path)
	if err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err), "Config", "Load", "read file")
	}

	raw := make(map[string]any)
	switch format {
	case formatJSON:
		if err := checkJSONDepth(data); err != nil {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: %v", errors.ErrParsingFailed, err), "Config", "Load", "check json depth")
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: %v", errors.ErrParsingFailed, err), "Config", "Load", "parse json")
		}
	case formatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: %v", errors.ErrParsingFailed, err), "Config", "Load", "parse yaml")
		}
	}
	return raw, nil
}

// mergeRaw overlays the fields present in raw onto cfg
func mergeRaw(cfg *Config, raw map[string]any) error {
	for _, key := range durationKeys {
		s, ok := raw[key].(string)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		raw[key] = int64(d)
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, cfg)
}

// envBinding maps one environment variable onto a field
type envBinding struct {
	key   string
	apply func(cfg *Config, value string) error
}

var envBindings = []envBinding{
	{"SERVER_URL", func(c *Config, v string) error { c.ServerURL = v; return nil }},
	{"AUTH_TOKEN", func(c *Config, v string) error { c.AuthToken = v; return nil }},
	{"RECONNECT_DELAY", durationSetter(func(c *Config) *time.Duration { return &c.ReconnectDelay })},
	{"MAX_RECONNECT_ATTEMPTS", intSetter(func(c *Config) *int { return &c.MaxReconnectAttempts })},
	{"RECONNECT_JITTER", func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		c.ReconnectJitter = b
		return nil
	}},
	{"KEEPALIVE_INTERVAL", durationSetter(func(c *Config) *time.Duration { return &c.KeepaliveInterval })},
	{"REQUEST_TIMEOUT", durationSetter(func(c *Config) *time.Duration { return &c.RequestTimeout })},
	{"STREAM_TIMEOUT", durationSetter(func(c *Config) *time.Duration { return &c.StreamTimeout })},
	{"HANDSHAKE_TIMEOUT", durationSetter(func(c *Config) *time.Duration { return &c.HandshakeTimeout })},
	{"WRITE_TIMEOUT", durationSetter(func(c *Config) *time.Duration { return &c.WriteTimeout })},
	{"REQUESTS_PER_SECOND", func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		c.RequestsPerSecond = f
		return nil
	}},
	{"METRICS_ENABLED", func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		c.Metrics.Enabled = b
		return nil
	}},
	{"TLS_CA_FILES", func(c *Config, v string) error {
		c.TLS.CAFiles = nil
		for _, f := range strings.Split(v, ",") {
			if f = strings.TrimSpace(f); f != "" {
				c.TLS.CAFiles = append(c.TLS.CAFiles, f)
			}
		}
		return nil
	}},
	{"TLS_INSECURE_SKIP_VERIFY", func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		c.TLS.InsecureSkipVerify = b
		return nil
	}},
	{"TLS_CERT_FILE", func(c *Config, v string) error { c.TLS.CertFile = v; return nil }},
	{"TLS_KEY_FILE", func(c *Config, v string) error { c.TLS.KeyFile = v; return nil }},
	{"METRICS_PORT", intSetter(func(c *Config) *int { return &c.Metrics.Port })},
	{"NATS_URL", func(c *Config, v string) error { c.NATS.URL = v; return nil }},
	{"NATS_USERNAME", func(c *Config, v string) error { c.NATS.Username = v; return nil }},
	{"NATS_PASSWORD", func(c *Config, v string) error { c.NATS.Password = v; return nil }},
	{"NATS_TOKEN", func(c *Config, v string) error { c.NATS.Token = v; return nil }},
	{"NATS_SUBJECT_PREFIX", func(c *Config, v string) error { c.NATS.SubjectPrefix = v; return nil }},
}

func durationSetter(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(c) = d
		return nil
	}
}

func intSetter(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

// applyEnvOverrides applies AGENTWIRE_* variables. lookup is os.LookupEnv
// outside of tests.
func applyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) error {
	for _, b := range envBindings {
		key := EnvPrefix + "_" + b.key
		value, ok := lookup(key)
		if !ok || value == "" {
			continue
		}
		if err := checkEnvValue(key, value); err != nil {
			return errors.WrapInvalid(
				fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err), "Config", "Load", "check environment")
		}
		if err := b.apply(cfg, value); err != nil {
			return errors.WrapInvalid(
				fmt.Errorf("%w: %s=%q: %v", errors.ErrInvalidConfig, key, value, err),
				"Config", "Load", "apply environment override")
		}
	}
	return nil
}
