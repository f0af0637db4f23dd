package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/c360/agentwire/client"
	"github.com/c360/agentwire/config"
)

// parseData turns --data into a request payload. Valid JSON is sent as is;
// anything else is sent as a JSON string.
func parseData(raw string) any {
	if raw == "" {
		return nil
	}
	if json.Valid([]byte(raw)) {
		return json.RawMessage(raw)
	}
	return raw
}

func runRequest(ctx context.Context, cliCfg *CLIConfig, cfg config.Config, logger *slog.Logger, stdout io.Writer) error {
	c, err := client.New(cfg, client.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer c.Dispose()

	if err := c.Connect(ctx, ""); err != nil {
		return fmt.Errorf("connect to %s: %w", cfg.ServerURL, err)
	}

	data := parseData(cliCfg.Data)
	start := time.Now()

	if cliCfg.Stream {
		result, err := c.SendStreamingRequest(ctx, cliCfg.Action, data, func(chunk string) {
			_, _ = fmt.Fprint(stdout, chunk)
		})
		if err != nil {
			return fmt.Errorf("stream %s: %w", cliCfg.Action, err)
		}
		_, _ = fmt.Fprintln(stdout)
		logger.Info("Stream complete",
			"action", cliCfg.Action,
			"id", result.ID,
			"model", result.Model,
			"chunks", result.Chunks,
			"tokens", result.TokenCount,
			"duration", time.Since(start))
		return nil
	}

	result, err := c.SendRequest(ctx, cliCfg.Action, data, cliCfg.Timeout)
	if err != nil {
		return fmt.Errorf("request %s: %w", cliCfg.Action, err)
	}
	logger.Debug("Request complete", "action", cliCfg.Action, "duration", time.Since(start))
	return writeJSON(stdout, result)
}

func writeJSON(w io.Writer, raw json.RawMessage) error {
	if len(raw) == 0 {
		_, err := fmt.Fprintln(w, "null")
		return err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		_, err = fmt.Fprintln(w, string(raw))
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}
