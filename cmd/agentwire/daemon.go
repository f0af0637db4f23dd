package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360/agentwire/bridge"
	"github.com/c360/agentwire/client"
	"github.com/c360/agentwire/config"
	"github.com/c360/agentwire/connection"
	"github.com/c360/agentwire/errors"
	"github.com/c360/agentwire/health"
	"github.com/c360/agentwire/metric"
	"github.com/c360/agentwire/natsclient"
	"github.com/c360/agentwire/pkg/retry"
)

const (
	websocketHealth = "websocket"
	natsHealth      = "nats"
)

// daemon keeps one client connected until its context ends
type daemon struct {
	cfg      config.Config
	logger   *slog.Logger
	registry *metric.MetricsRegistry
	monitor  *health.Monitor

	client *client.Client
	nats   *natsclient.Client
	bridge *bridge.Bridge

	exhausted chan struct{}
}

func runDaemon(ctx context.Context, cliCfg *CLIConfig, cfg config.Config, logger *slog.Logger) error {
	d := &daemon{
		cfg:       cfg,
		logger:    logger,
		registry:  metric.NewMetricsRegistry(),
		monitor:   health.NewMonitor(),
		exhausted: make(chan struct{}, 1),
	}

	c, err := client.New(cfg, client.WithLogger(logger), client.WithMetrics(d.registry))
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	d.client = c
	d.monitor.Update(websocketHealth, health.FromConnection(websocketHealth, false, time.Time{}, ""))
	c.OnConnectionStatusChanged(d.observeStatus)

	if cfg.NATS.Enabled() {
		if err := d.startBridge(ctx); err != nil {
			c.Dispose()
			return err
		}
	}

	logger.Info("Starting agentwire daemon",
		"server_url", cfg.ServerURL,
		"metrics", cfg.Metrics.Enabled,
		"nats", cfg.NATS.Enabled())

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Enabled {
		server := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, d.registry, d.monitor)
		g.Go(server.Start)
		g.Go(func() error {
			<-gctx.Done()
			return server.Stop()
		})
		logger.Info("Metrics server listening", "address", server.Address())
	}

	g.Go(func() error { return d.superviseConnection(gctx) })

	err = g.Wait()
	d.shutdown(cliCfg.ShutdownTimeout)
	if err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info("agentwire daemon stopped")
	return nil
}

// observeStatus runs synchronously inside the connection manager; it only
// records state and signals the supervisor.
func (d *daemon) observeStatus(status connection.Status) {
	d.monitor.Update(websocketHealth,
		health.FromConnection(websocketHealth, status.Connected, status.LastConnected, status.Error))

	if status.Exhausted() {
		select {
		case d.exhausted <- struct{}{}:
		default:
		}
	}
}

// superviseConnection makes the initial connection, retrying with backoff,
// and starts over whenever the manager gives up reconnecting.
func (d *daemon) superviseConnection(ctx context.Context) error {
	for {
		if err := d.connect(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-d.exhausted:
		}

		d.logger.Warn("Reconnect attempts exhausted, starting over", "delay", d.restartDelay())
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(d.restartDelay()):
		}
	}
}

func (d *daemon) connect(ctx context.Context) error {
	cfg := retry.Config{
		MaxAttempts:  1 << 30,
		InitialDelay: d.cfg.ReconnectDelay,
		MaxDelay:     d.restartDelay(),
		Multiplier:   2.0,
		AddJitter:    true,
	}
	return retry.Do(ctx, cfg, func() error {
		err := d.client.Connect(ctx, "")
		if err == nil {
			return nil
		}
		if errors.IsInvalid(err) || errors.IsFatal(err) {
			return retry.NonRetryable(err)
		}
		d.logger.Warn("Connect failed, retrying", "error", err)
		return err
	})
}

func (d *daemon) restartDelay() time.Duration {
	if d.cfg.MaxReconnectDelay > d.cfg.ReconnectDelay {
		return d.cfg.MaxReconnectDelay
	}
	return d.cfg.ReconnectDelay
}

func (d *daemon) startBridge(ctx context.Context) error {
	n := d.cfg.NATS
	opts := []natsclient.ClientOption{
		natsclient.WithName(appName),
		natsclient.WithLogger(d.logger),
		natsclient.WithMetrics(d.registry),
		natsclient.WithMaxReconnects(-1),
		natsclient.WithHealthChangeCallback(func(healthy bool) {
			d.monitor.Update(natsHealth, health.FromConnection(natsHealth, healthy, time.Time{}, ""))
		}),
	}
	if n.Username != "" {
		opts = append(opts, natsclient.WithCredentials(n.Username, n.Password))
	}
	if n.Token != "" {
		opts = append(opts, natsclient.WithToken(n.Token))
	}

	nc, err := natsclient.NewClient(n.URL, opts...)
	if err != nil {
		return fmt.Errorf("create NATS client: %w", err)
	}

	d.logger.Info("Connecting to NATS", "url", n.URL)
	if err := retry.Do(ctx, retry.Quick(), func() error { return nc.Connect(ctx) }); err != nil {
		_ = nc.Close(context.Background())
		return fmt.Errorf("connect to NATS: %w", err)
	}
	d.monitor.Update(natsHealth, health.FromConnection(natsHealth, true, time.Now(), ""))

	b := bridge.New(nc,
		bridge.WithPrefix(n.SubjectPrefix),
		bridge.WithLogger(d.logger),
		bridge.WithMetrics(d.registry))
	// Detached from ctx so shutdown can drain the final status events.
	if err := b.Start(context.Background(), d.client); err != nil {
		_ = nc.Close(context.Background())
		return fmt.Errorf("start bridge: %w", err)
	}

	d.nats = nc
	d.bridge = b
	return nil
}

func (d *daemon) shutdown(timeout time.Duration) {
	d.logger.Info("Shutting down", "timeout", timeout)

	d.client.Dispose()
	if d.bridge != nil {
		if err := d.bridge.Stop(timeout); err != nil {
			d.logger.Warn("Bridge did not drain", "error", err)
		}
	}

	if d.nats != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := d.nats.Close(ctx); err != nil {
			d.logger.Warn("NATS close failed", "error", err)
		}
	}
}
