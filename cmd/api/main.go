// Command api runs the compliance check service: the HTTP API, the session
// reaper, and continuous regulation monitoring.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/davidleathers/compliance-guard-backend/internal/api/rest"
	"github.com/davidleathers/compliance-guard-backend/internal/infrastructure/cache"
	"github.com/davidleathers/compliance-guard-backend/internal/infrastructure/config"
	"github.com/davidleathers/compliance-guard-backend/internal/infrastructure/database"
	"github.com/davidleathers/compliance-guard-backend/internal/infrastructure/telemetry"
	"github.com/davidleathers/compliance-guard-backend/internal/memorybank"
	"github.com/davidleathers/compliance-guard-backend/internal/metrics"
	"github.com/davidleathers/compliance-guard-backend/internal/service/stages"
	"github.com/davidleathers/compliance-guard-backend/internal/service/workflow"
	"github.com/davidleathers/compliance-guard-backend/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("loading configuration: %v", err)
	}

	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("building logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("service exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := telemetry.Initialize(ctx, &telemetry.Config{
		ServiceName:    "compliance-guard-backend",
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	registry := metrics.NewRegistry(promRegistry)

	sessions, err := newSessionStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	bankOpts := []memorybank.Option{}
	if cfg.Database.URL != "" {
		archive, err := database.NewArchive(ctx, cfg.Database, logger)
		if err != nil {
			return err
		}
		defer archive.Close()
		bankOpts = append(bankOpts, memorybank.WithArchiver(archive))
	}
	bank := memorybank.New(memorybank.Config{MaxEntries: cfg.Memory.MaxEntries}, logger, bankOpts...)

	stageRegistry, err := stages.NewRegistry(
		stages.NewMonitor(cfg.Compliance.Regulations, logger, nil,
			stages.WithFetchRateLimit(cfg.Compliance.FetchRateLimit)),
		stages.NewAnalyzer(logger),
		stages.NewRiskAssessor(logger),
		stages.NewReporter(logger),
	)
	if err != nil {
		return err
	}

	orchestrator := workflow.New(workflow.Config{
		StageTimeout: cfg.Compliance.StageTimeout,
		PollInterval: cfg.Compliance.PollingInterval,
	}, stageRegistry, sessions, bank, logger, workflow.WithMetrics(registry))

	reaper := session.NewReaper(sessions, logger,
		session.WithReapInterval(cfg.Session.ReapInterval),
		session.WithSessionTimeout(cfg.Session.Timeout))
	reaperDone := make(chan struct{})
	go func() {
		reaper.Run(ctx)
		close(reaperDone)
	}()

	if err := orchestrator.StartContinuousMonitoring(ctx); err != nil {
		return err
	}

	handler := rest.NewHandler(orchestrator, bank, sessions, registry, logger)
	server := rest.NewServer(cfg.Server, handler, promRegistry, logger)

	serverErr := make(chan error, 1)
	go func() { serverErr <- server.Start() }()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", zap.Error(err))
	}
	if err := orchestrator.Shutdown(shutdownCtx); err != nil {
		logger.Warn("orchestrator shutdown failed", zap.Error(err))
	}
	select {
	case <-reaperDone:
	case <-shutdownCtx.Done():
		logger.Warn("session reaper did not stop before deadline")
	}
	return nil
}

// newSessionStore picks Redis-backed sessions when a Redis URL is configured,
// otherwise in-process memory.
func newSessionStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (session.Store, error) {
	if cfg.Redis.URL == "" {
		return session.NewMemoryStore(session.Config{HistoryLimit: cfg.Session.HistoryLimit}, logger), nil
	}

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, err
	}
	if cfg.Redis.Password != "" {
		redisOpts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		redisOpts.DB = cfg.Redis.DB
	}
	return cache.NewRedisSessionStore(ctx, redis.NewClient(redisOpts), logger)
}
