// Command agentwire talks to a remote agent service over its WebSocket
// protocol. It sends one request (optionally streaming) and prints the
// result, or runs as a daemon that keeps the connection up, serves metrics
// and health, and bridges notifications to NATS.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/c360/agentwire/config"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "agentwire"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	cliCfg, err := initializeCLI(args, stderr)
	if err != nil {
		return err
	}

	switch cliCfg.Mode() {
	case "version":
		_, _ = fmt.Fprintf(stdout, "%s version %s\n", appName, Version)
		return nil
	case "help":
		printDetailedHelp(stdout, newFlagSet(&CLIConfig{}, stdout))
		return nil
	}

	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	logger := setupLogger(stderr, cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	cfg, err := initializeConfiguration(cliCfg)
	if err != nil {
		return err
	}

	if cliCfg.Validate {
		_, _ = fmt.Fprintln(stdout, cfg.String())
		logger.Info("Configuration is valid", "config_path", cliCfg.ConfigPath)
		return nil
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cliCfg.Daemon {
		return runDaemon(ctx, cliCfg, cfg, logger)
	}
	return runRequest(ctx, cliCfg, cfg, logger, stdout)
}

// initializeCLI parses flags. A --env-file is loaded into the environment
// and the flags parsed again so its values reach the env-backed defaults.
func initializeCLI(args []string, stderr io.Writer) (*CLIConfig, error) {
	cliCfg, err := parseFlags(args, stderr)
	if err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	if cliCfg.EnvFile == "" {
		return cliCfg, nil
	}

	if err := godotenv.Load(cliCfg.EnvFile); err != nil {
		return nil, fmt.Errorf("load env file %s: %w", cliCfg.EnvFile, err)
	}
	cliCfg, err = parseFlags(args, stderr)
	if err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cliCfg, nil
}

// initializeConfiguration loads the config file and environment, then
// applies --url and --token
func initializeConfiguration(cliCfg *CLIConfig) (config.Config, error) {
	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}

	if cliCfg.ServerURL != "" {
		cfg.ServerURL = cliCfg.ServerURL
	}
	if cliCfg.Token != "" {
		cfg.AuthToken = cliCfg.Token
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.ServerURL == "" {
		return config.Config{}, fmt.Errorf("no server URL: set --url, server_url or AGENTWIRE_SERVER_URL")
	}
	return cfg, nil
}
