package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath      string
	EnvFile         string
	ServerURL       string
	Token           string
	LogLevel        string
	LogFormat       string
	Action          string
	Data            string
	Stream          bool
	Timeout         time.Duration
	Daemon          bool
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool
}

// Mode returns what the invocation asks for
func (c *CLIConfig) Mode() string {
	switch {
	case c.ShowVersion:
		return "version"
	case c.ShowHelp:
		return "help"
	case c.Validate:
		return "validate"
	case c.Daemon:
		return "daemon"
	case c.Stream:
		return "stream"
	default:
		return "request"
	}
}

func newFlagSet(cfg *CLIConfig, output io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet(appName, pflag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVarP(&cfg.ConfigPath, "config", "c",
		getEnv("AGENTWIRE_CONFIG", ""),
		"Path to a JSON or YAML configuration file (env: AGENTWIRE_CONFIG)")
	fs.StringVar(&cfg.EnvFile, "env-file",
		getEnv("AGENTWIRE_ENV_FILE", ""),
		"Dotenv file loaded before the configuration (env: AGENTWIRE_ENV_FILE)")
	fs.StringVarP(&cfg.ServerURL, "url", "u", "",
		"WebSocket URL of the agent service, overrides server_url")
	fs.StringVar(&cfg.Token, "token", "",
		"Auth token, overrides auth_token")

	fs.StringVar(&cfg.LogLevel, "log-level",
		getEnv("AGENTWIRE_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: AGENTWIRE_LOG_LEVEL)")
	fs.StringVar(&cfg.LogFormat, "log-format",
		getEnv("AGENTWIRE_LOG_FORMAT", "text"),
		"Log format: json, text (env: AGENTWIRE_LOG_FORMAT)")

	fs.StringVarP(&cfg.Action, "action", "a", "", "Action to request")
	fs.StringVarP(&cfg.Data, "data", "d", "", "JSON request data")
	fs.BoolVarP(&cfg.Stream, "stream", "s", false, "Send a streaming request and print chunks as they arrive")
	fs.DurationVar(&cfg.Timeout, "timeout", 0, "Request timeout, 0 uses request_timeout")

	fs.BoolVar(&cfg.Daemon, "daemon",
		getEnvBool("AGENTWIRE_DAEMON", false),
		"Stay connected, serve metrics and bridge events to NATS (env: AGENTWIRE_DAEMON)")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("AGENTWIRE_SHUTDOWN_TIMEOUT", 10*time.Second),
		"Graceful shutdown timeout (env: AGENTWIRE_SHUTDOWN_TIMEOUT)")

	fs.BoolVarP(&cfg.ShowVersion, "version", "v", false, "Show version information")
	fs.BoolVarP(&cfg.ShowHelp, "help", "h", false, "Show help information")
	fs.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	fs.Usage = func() { printDetailedHelp(output, fs) }
	return fs
}

func parseFlags(args []string, output io.Writer) (*CLIConfig, error) {
	cfg := &CLIConfig{}
	fs := newFlagSet(cfg, output)

	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			cfg.ShowHelp = true
			return cfg, nil
		}
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	return cfg, nil
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}

	if !contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	if !contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}
	if cfg.Timeout < 0 {
		return fmt.Errorf("invalid timeout: %s", cfg.Timeout)
	}

	if cfg.Validate {
		return nil
	}
	if cfg.Daemon {
		if cfg.Action != "" {
			return fmt.Errorf("--action cannot be combined with --daemon")
		}
		return nil
	}
	if cfg.Action == "" {
		return fmt.Errorf("--action is required unless --daemon or --validate is set")
	}
	return nil
}

func printDetailedHelp(w io.Writer, fs *pflag.FlagSet) {
	_, _ = fmt.Fprintf(w, `%s - client for a remote agent service over WebSocket

Usage: %s [options]

Options:
`, appName, appName)
	_, _ = fmt.Fprint(w, fs.FlagUsages())
	_, _ = fmt.Fprintf(w, `
Examples:
  # One request, result printed as JSON
  %[1]s --url ws://localhost:8080/ws --action getTasks --data '{"limit":10}'

  # Streaming request, chunks printed as they arrive
  %[1]s -c agentwire.yaml --stream --action chat --data '{"prompt":"hello"}'

  # Stay connected, expose /metrics and /health, forward events to NATS
  AGENTWIRE_NATS_URL=nats://localhost:4222 %[1]s -c agentwire.yaml --daemon

  # Validate configuration only
  %[1]s -c agentwire.yaml --validate

Version: %[2]s
Build: %[3]s
`, appName, Version, BuildTime)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
