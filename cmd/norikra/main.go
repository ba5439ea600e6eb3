// Package main implements the norikra server: a schema-evolution and
// query-registration orchestrator in front of a pluggable CEP runtime,
// fed over HTTP and NATS.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/meganemura/norikra/cep"
	_ "github.com/meganemura/norikra/cep/dev"
	"github.com/meganemura/norikra/config"
	"github.com/meganemura/norikra/engine"
	"github.com/meganemura/norikra/gateway"
	"github.com/meganemura/norikra/health"
	"github.com/meganemura/norikra/metric"
	"github.com/meganemura/norikra/natsclient"
	"github.com/meganemura/norikra/output"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "norikra"
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

	if err := run(); err != nil {
		slog.Error("application failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}
	if cliCfg.ShowVersion {
		fmt.Printf("%s %s (build %s)\n", appName, Version, BuildTime)
		return nil
	}
	if err := validateFlags(cliCfg); err != nil {
		return err
	}

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return err
	}
	// CLI overrides beat the file.
	if cliCfg.LogLevel != "" {
		cfg.Log.Level = cliCfg.LogLevel
	}
	if cliCfg.LogFormat != "" {
		cfg.Log.Format = cliCfg.LogFormat
	}

	logger := setupLogger(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	if cliCfg.Validate {
		logger.Info("configuration is valid", "path", cliCfg.ConfigPath)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := metric.NewMetricsRegistry()
	monitor := health.NewMonitor()

	cepRuntime, err := cep.NewRuntime(cfg.Engine.Runtime, cfg.Engine.RuntimeOptions)
	if err != nil {
		return err
	}

	// Result fan-out: log and, when NATS is configured, publish.
	results := output.NewTee(output.NewLogSink(logger))

	var nats *natsclient.Client
	if cfg.NATS.URL != "" {
		nats, err = setupNATS(ctx, cfg, registry, monitor, logger)
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
			defer cancel()
			if err := nats.Close(closeCtx); err != nil {
				logger.Warn("NATS close failed", "error", err)
			}
		}()
		results.Attach(output.NewNATSSink(nats, cfg.NATS.ResultSubjectPrefix, logger))
	}

	eng, err := engine.New(engine.Deps{
		Runtime:  cepRuntime,
		Sink:     results,
		Registry: registry,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer eng.Shutdown()
	monitor.UpdateHealthy("engine", "running")

	if err := applyStartupState(eng, cfg, logger); err != nil {
		return err
	}

	admin, err := gateway.NewServer(cfg.Server.Addr, gateway.Deps{
		Engine:  eng,
		Results: results,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	if nats != nil {
		consumer, err := gateway.NewConsumer(eng, cfg.NATS.EventSubjectPrefix, logger)
		if err != nil {
			return err
		}
		if err := consumer.Start(nats); err != nil {
			return err
		}
	}

	errCh := make(chan error, 2)
	go func() { errCh <- admin.Start() }()

	var metrics *metric.Server
	if cfg.Server.MetricsPort > 0 {
		metrics = metric.NewServer(cfg.Server.MetricsPort, "/metrics", registry)
		metrics.SetHealthMonitor(monitor)
		go func() {
			if err := metrics.Start(); err != nil {
				errCh <- err
			}
		}()
		logger.Info("metrics server started", "port", cfg.Server.MetricsPort)
	}

	logger.Info("norikra started", "addr", cfg.Server.Addr, "runtime", cfg.Engine.Runtime,
		"nats", cfg.NATS.URL != "")

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer cancel()
	if err := admin.Shutdown(shutdownCtx); err != nil {
		logger.Warn("admin API shutdown failed", "error", err)
	}
	if metrics != nil {
		if err := metrics.Stop(); err != nil {
			logger.Warn("metrics server shutdown failed", "error", err)
		}
	}
	return nil
}

// setupNATS connects the NATS client used for both event ingestion and
// result publishing.
func setupNATS(ctx context.Context, cfg *config.Config, registry *metric.MetricsRegistry,
	monitor *health.Monitor, logger *slog.Logger) (*natsclient.Client, error) {

	core := registry.CoreMetrics()
	client, err := natsclient.NewClient(cfg.NATS.URL,
		natsclient.WithLogger(logger),
		natsclient.WithClientName(cfg.NATS.Name),
		natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
		natsclient.WithReconnectWait(cfg.NATS.ReconnectWait.Std()),
		natsclient.WithCredentials(cfg.NATS.Username, cfg.NATS.Password),
		natsclient.WithToken(cfg.NATS.Token),
		natsclient.WithDisconnectCallback(func(err error) {
			core.RecordNATSStatus(false)
			monitor.UpdateDegraded("nats", "reconnecting")
		}),
		natsclient.WithReconnectCallback(func() {
			core.RecordNATSStatus(true)
			core.RecordNATSReconnect()
			monitor.UpdateHealthy("nats", "connected")
		}),
	)
	if err != nil {
		return nil, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		return nil, err
	}
	core.RecordNATSStatus(true)
	monitor.UpdateHealthy("nats", "connected")
	return client, nil
}

// applyStartupState loads extensions, opens declared targets, and
// registers declared queries, in that order.
func applyStartupState(eng *engine.Engine, cfg *config.Config, logger *slog.Logger) error {
	for _, descriptor := range cfg.Engine.Extensions {
		if err := eng.LoadExtension(descriptor); err != nil {
			return err
		}
	}
	for _, target := range cfg.Engine.Targets {
		created, err := eng.Open(target.Name, target.Fields)
		if err != nil {
			return fmt.Errorf("open target %s: %w", target.Name, err)
		}
		logger.Info("startup target", "target", target.Name, "created", created)
	}
	for _, q := range cfg.Engine.Queries {
		err := eng.Register(engine.Query{Name: q.Name, Group: q.Group, Expression: q.Expression})
		if err != nil {
			return fmt.Errorf("register query %s: %w", q.Name, err)
		}
	}
	return nil
}
