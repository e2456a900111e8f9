package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/finance-ledger/internal/app"
	"github.com/dvloznov/finance-ledger/internal/config"
	"github.com/dvloznov/finance-ledger/internal/jobs"
	"github.com/dvloznov/finance-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/finance-ledger/internal/logger"
)

// The worker reconciles on a fixed schedule: every tick publishes a sync job
// that the queue runs, retrying failed passes.
func main() {
	var (
		configPath = flag.String("config", os.Getenv("FINANCE_CONFIG"), "Path to TOML config file (or set FINANCE_CONFIG env)")
		interval   = flag.Duration("interval", 0, "Time between passes (overrides sync.interval)")
	)
	flag.Parse()

	log := logger.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *interval > 0 {
		cfg.Sync.Interval = *interval
	}

	log, err = logger.NewFromConfig(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log = logger.New()
		log.Fatal().Err(err).Msg("Invalid log configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	engine, err := application.Engine(false)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create reconciliation engine")
	}

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(1, jobStore, inmemory.WithLogger(log), inmemory.WithRetryBackoff(cfg.Sync.RetryBackoff))

	if err := jobQueue.Start(ctx, app.SyncJobHandler(engine, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	log.Info().Dur("interval", cfg.Sync.Interval).Msg("Worker service started")

	schedule := func() {
		// Skip the tick rather than queue passes behind a slow one.
		if engine.Running() {
			log.Warn().Msg("Previous pass still running, skipping scheduled pass")
			return
		}
		if err := jobQueue.PublishSync(ctx, &jobs.SyncJob{Trigger: "schedule"}); err != nil {
			log.Error().Err(err).Msg("Failed to schedule reconciliation")
		}
	}

	ticker := time.NewTicker(cfg.Sync.Interval)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	schedule()
	for {
		select {
		case <-ticker.C:
			schedule()
		case <-quit:
			log.Info().Msg("Shutting down worker service...")

			shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
			if err := jobQueue.Stop(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Error stopping job queue")
			}
			stop()
			cancel()

			log.Info().Msg("Worker service stopped")
			return
		}
	}
}
