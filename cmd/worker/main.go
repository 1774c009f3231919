package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/andresuchdata/eisen-inventory/internal/app"
	"github.com/andresuchdata/eisen-inventory/internal/config"
	"github.com/andresuchdata/eisen-inventory/internal/jobs"
	"github.com/andresuchdata/eisen-inventory/internal/repository/postgres"
	"github.com/andresuchdata/eisen-inventory/pkg/logger"
	"github.com/hibiken/asynq"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	if cfg.Server.Mode != "debug" {
		logger.UseJSON()
	}
	logger.SetLevel(cfg.App.LogLevel)
	log := logger.Component("worker")

	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		log.Error().Err(err).Msg("connect database")
		os.Exit(1)
	}
	defer db.Close()

	svc, err := app.NewInventoryService(ctx, cfg, postgres.NewStore(db), logger.Component("inventory"))
	if err != nil {
		log.Error().Err(err).Msg("init inventory service")
		os.Exit(1)
	}

	schedule, err := jobs.Schedule(cfg.Jobs.SnapshotCron, cfg.Jobs.AlertsCron)
	if err != nil {
		log.Error().Err(err).Msg("build schedule")
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.Jobs.RedisAddr},
		Logger:      log,
		Concurrency: cfg.Jobs.Concurrency,
		Handlers:    jobs.NewInventoryJobs(svc, logger.Component("jobs")).Handlers(),
		Cron:        schedule,
	})
	if err != nil {
		log.Error().Err(err).Msg("init worker")
		os.Exit(1)
	}

	log.Info().Str("redis", cfg.Jobs.RedisAddr).Msg("worker starting")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("worker run")
		os.Exit(1)
	}
}
