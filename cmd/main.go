package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"consilium/internal/adapters/config"
	"consilium/internal/adapters/errors/noop"
	"consilium/internal/adapters/errors/sentry"
	"consilium/internal/adapters/kafka"
	"consilium/internal/adapters/marketdata"
	"consilium/internal/adapters/postgres"
	"consilium/internal/adapters/redis"
	core "consilium/internal/consensus"
	"consilium/internal/events"
	"consilium/internal/experts"
	"consilium/internal/experts/modules"
	"consilium/internal/metrics"
	repo "consilium/internal/repository/postgres"
	consensusservice "consilium/internal/services/consensus"
	"consilium/internal/workers"
	"consilium/pkg/errors"
	"consilium/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger
	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	// Initialize error tracker
	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)

	// Initialize metrics
	metrics.Register()

	// Initialize adapters
	pgClient, err := postgres.NewClient(cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer pgClient.Close()

	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	producer := kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Kafka.Brokers})
	defer producer.Close()

	// Register expert modules. Explicit, startup-time only; the consensus
	// service treats every registered module as a mandatory contributor.
	registry := experts.NewRegistry()
	for _, m := range []experts.Module{
		modules.NewTechnical(),
		modules.NewSentiment(),
		modules.NewCycles(),
	} {
		if err := registry.Register(m); err != nil {
			log.Fatalf("Failed to register module: %v", err)
		}
	}

	// Initialize consensus service
	service := consensusservice.NewService(
		consensusservice.Config{
			Parallel:      cfg.Consensus.ParallelInvocation,
			ModuleTimeout: cfg.Consensus.ModuleTimeout,
		},
		consensusservice.Deps{
			Registry: registry,
			Engine: core.NewEngine(core.Config{
				ConflictScoreGap: cfg.Consensus.ConflictScoreGap,
				ConflictMaxDoubt: cfg.Consensus.ConflictMaxDoubt,
				BullishThreshold: cfg.Consensus.BullishThreshold,
				BearishThreshold: cfg.Consensus.BearishThreshold,
			}),
			Cache:     consensusservice.NewCache(consensusservice.DefaultCacheConfig(), redisClient),
			History:   repo.NewConsensusRepository(pgClient.DB()),
			Publisher: events.NewPublisher(producer),
		},
	)

	log.Infof("System initialized with %d expert modules: %v", registry.Len(), registry.Names())

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the sweep worker
	worker := workers.NewConsensusSweepWorker(
		service,
		marketdata.NewSimulated(),
		cfg.Worker.Symbols,
		cfg.Worker.SweepInterval,
		cfg.Worker.RatePerSecond,
		cfg.Worker.RateBurst,
	)
	go func() {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Errorf("Sweep worker exited: %v", err)
		}
	}()

	// Expose metrics
	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.Addr, log)
	}

	// Wait for shutdown signal
	waitForShutdown(ctx, cancel, errorTracker, log)
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// serveMetrics exposes the Prometheus endpoint
func serveMetrics(addr string, log *logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	log.Infof("Metrics server listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Errorf("Metrics server failed: %v", err)
	}
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func waitForShutdown(ctx context.Context, cancel context.CancelFunc, errorTracker errors.Tracker, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("Shutting down...")

	cancel()

	// Flush error tracker
	if errorTracker != nil {
		if err := errorTracker.Flush(ctx); err != nil {
			log.Warnf("Failed to flush error tracker: %v", err)
		}
	}

	log.Info("Shutdown complete")
}
