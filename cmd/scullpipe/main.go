// Package main implements scullpipe, which runs a set of in-memory byte
// pipes with metrics, health reporting and optional NATS notifications.
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/raceant/scull/config"
	"github.com/raceant/scull/health"
	"github.com/raceant/scull/metric"
	"github.com/raceant/scull/natsclient"
	"github.com/raceant/scull/notify"
	"github.com/raceant/scull/pipe"
	"github.com/raceant/scull/pkg/tlsutil"
	"github.com/raceant/scull/registry"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "scullpipe"
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

	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cli, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if err := validateFlags(cli); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	if cli.ShowVersion {
		_, _ = fmt.Fprintf(stdout, "%s version %s\n", appName, Version)
		return nil
	}
	if cli.ShowHelp {
		return nil
	}

	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}

	logger, err := setupLogger(cfg.Log.Level, cfg.Log.Format, stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	if cli.Mode == modeValidate {
		_, _ = fmt.Fprintln(stdout, cfg.String())
		logger.Info("Configuration is valid")
		return nil
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := newApp(ctx, cfg, cli, logger)
	if err != nil {
		return err
	}
	defer app.shutdown(cli.ShutdownTimeout)

	switch cli.Mode {
	case modeBench:
		res, err := runBench(ctx, app.pipes, benchConfig{
			Pipe:      cli.Pipe,
			Producers: cli.Producers,
			Consumers: cli.Consumers,
			Bytes:     cli.Bytes,
			ChunkSize: cli.ChunkSize,
		})
		if err != nil {
			return ignoreShutdown(err)
		}
		logger.Info("bench complete",
			"bytes", res.Bytes,
			"elapsed", res.Elapsed,
			"mb_per_sec", res.Throughput())
		return nil
	default:
		err := runRelay(ctx, app.pipes, relayConfig{
			Pipe:        cli.Pipe,
			NonBlocking: cli.NonBlocking,
			ChunkSize:   cli.ChunkSize,
		}, stdin, stdout)
		return ignoreShutdown(err)
	}
}

// loadConfig layers the optional file over the defaults and applies the
// CLI log overrides.
func loadConfig(cli *CLIConfig) (*config.Config, error) {
	loader := config.NewLoader()
	loader.EnableValidation(true)
	if cli.ConfigPath != "" {
		loader.AddLayer(cli.ConfigPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cli.LogLevel != "" {
		cfg.Log.Level = cli.LogLevel
	}
	if cli.LogFormat != "" {
		cfg.Log.Format = cli.LogFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ignoreShutdown treats a signal-driven cancellation as a clean exit.
func ignoreShutdown(err error) error {
	if stderrors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// app holds the long-lived collaborators built from the configuration.
type app struct {
	logger   *slog.Logger
	pipes    *registry.Registry
	monitor  *health.Monitor
	metrics  *metric.MetricsRegistry
	server   *metric.Server
	nats     *natsclient.Client
	notifier *notify.NATS
}

func newApp(ctx context.Context, cfg *config.Config, cli *CLIConfig, logger *slog.Logger) (*app, error) {
	a := &app{logger: logger, monitor: health.NewMonitor()}

	if cfg.Metrics.Enabled {
		a.metrics = metric.NewMetricsRegistry()
	}

	notifiers := []pipe.Notifier{notify.NewLog(logger)}
	if cfg.NATS.Enabled {
		if err := a.setupNATS(ctx, cfg); err != nil {
			a.shutdown(cli.ShutdownTimeout)
			return nil, err
		}
		notifiers = append(notifiers, a.notifier)
	}

	pipes, err := registry.New(cfg.Pipes, logger,
		pipe.WithNotifier(notify.NewMulti(notifiers...)),
		pipe.WithMetrics(a.metrics))
	if err != nil {
		a.shutdown(cli.ShutdownTimeout)
		return nil, fmt.Errorf("create pipes: %w", err)
	}
	a.pipes = pipes
	a.monitor.Register("pipes", pipes.Health)

	if a.metrics != nil {
		serverTLS, err := tlsutil.LoadServerConfig(cfg.Metrics.TLS)
		if err != nil {
			a.shutdown(cli.ShutdownTimeout)
			return nil, fmt.Errorf("metrics TLS: %w", err)
		}
		a.server = metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, a.metrics)
		a.server.SetTLSConfig(serverTLS)
		a.server.Handle("/health", health.Handler(a.monitor, appName))
		a.server.Handle("/pipes", pipes.StatusHandler())
		go func() {
			if err := a.server.Start(); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		logger.Info("metrics server started", "address", a.server.Address())
	}

	return a, nil
}

func (a *app) setupNATS(ctx context.Context, cfg *config.Config) error {
	opts := []natsclient.ClientOption{
		natsclient.WithName(appName),
		natsclient.WithLogger(a.logger),
		natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
		natsclient.WithReconnectWait(cfg.NATS.ReconnectWait),
		natsclient.WithMetrics(a.metrics),
	}
	switch {
	case cfg.NATS.Token != "":
		opts = append(opts, natsclient.WithToken(cfg.NATS.Token))
	case cfg.NATS.Username != "":
		opts = append(opts, natsclient.WithCredentials(cfg.NATS.Username, cfg.NATS.Password))
	}

	clientTLS, err := tlsutil.LoadClientConfig(cfg.NATS.TLS)
	if err != nil {
		return fmt.Errorf("NATS TLS: %w", err)
	}
	opts = append(opts, natsclient.WithTLSConfig(clientTLS))

	client, err := natsclient.NewClient(cfg.NATS.URL(), opts...)
	if err != nil {
		return fmt.Errorf("create NATS client: %w", err)
	}
	a.nats = client
	a.monitor.Register("nats", client.Health)

	a.logger.Info("Connecting to NATS", "url", cfg.NATS.URL())
	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Connect(connCtx); err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}

	notifier, err := notify.NewNATS(client, cfg.NATS.Notifier(),
		notify.WithLogger(a.logger), notify.WithMetrics(a.metrics))
	if err != nil {
		return fmt.Errorf("create NATS notifier: %w", err)
	}
	if err := notifier.Start(ctx); err != nil {
		return fmt.Errorf("start NATS notifier: %w", err)
	}
	a.notifier = notifier
	return nil
}

// shutdown releases everything newApp created, in reverse order.
func (a *app) shutdown(timeout time.Duration) {
	if a.server != nil {
		if err := a.server.Stop(); err != nil {
			a.logger.Warn("metrics server stop failed", "error", err)
		}
	}
	if a.pipes != nil {
		_ = a.pipes.Close()
	}
	if a.notifier != nil {
		if err := a.notifier.Stop(timeout); err != nil {
			a.logger.Warn("NATS notifier stop failed", "error", err)
		}
	}
	if a.nats != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := a.nats.Close(ctx); err != nil {
			a.logger.Warn("NATS close failed", "error", err)
		}
	}
}
