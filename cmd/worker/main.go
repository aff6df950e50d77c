package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"storefront/config"
	"storefront/internal/jobs"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()
	logger := util.GetLogger()

	db, err := store.NewStore(cfg.Database.URL, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	cleanup := jobs.NewCleanupJob(db, jobs.DefaultEventRetention)
	answered := jobs.NewQueryAnsweredJob()

	w, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskQueryAnswered, Handler: answered.Handle},
			{Type: jobs.TaskProcessedEventsCleanup, Handler: cleanup.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "@hourly", Task: jobs.NewProcessedEventsCleanupTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Fatal("Failed to init job worker", zap.Error(err))
	}

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("Job worker stopped", zap.Error(err))
	}
	logger.Info("Job worker exited")
}
