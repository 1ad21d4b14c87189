package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/daison12006013/docms/internal/app"
	"github.com/daison12006013/docms/internal/audit"
	"github.com/daison12006013/docms/internal/auth"
	"github.com/daison12006013/docms/internal/files"
	"github.com/daison12006013/docms/internal/observability"
	"github.com/daison12006013/docms/internal/platform/db"
	"github.com/daison12006013/docms/internal/platform/storage"
	"github.com/daison12006013/docms/jobs"
)

func newStorageDriver(ctx context.Context, cfg *app.Config) (storage.Driver, error) {
	if cfg.StorageDriver == "s3" {
		return storage.NewS3(ctx, storage.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	}
	return storage.NewLocal(cfg.UploadDir)
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	// The trash purge reclaims stored bytes, so the worker needs the same
	// driver the server writes through.
	driver, err := newStorageDriver(ctx, cfg)
	if err != nil {
		logger.Error("init storage driver", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()

	auditLogger := audit.NewLogger(audit.NewRepository(pool), logger)
	filesService := files.NewService(files.NewRepository(pool), driver, auditLogger)
	authService := auth.NewService(auth.NewRepository(pool))

	shareLinkTask, err := jobs.NewShareLinkPurgeTask(jobs.PurgePayload{Reason: "scheduled"})
	if err != nil {
		logger.Error("build share link purge task", slog.Any("error", err))
		os.Exit(1)
	}
	sessionTask, err := jobs.NewSessionPurgeTask(jobs.PurgePayload{Reason: "scheduled"})
	if err != nil {
		logger.Error("build session purge task", slog.Any("error", err))
		os.Exit(1)
	}
	trashTask, err := jobs.NewTrashPurgeTask(jobs.PurgePayload{Reason: "scheduled"})
	if err != nil {
		logger.Error("build trash purge task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskShareLinkPurge, Handler: jobs.NewShareLinkPurgeHandler(filesService, metrics, logger)},
			{Type: jobs.TaskSessionPurge, Handler: jobs.NewSessionPurgeHandler(authService, metrics, logger)},
			{Type: jobs.TaskTrashPurge, Handler: jobs.NewTrashPurgeHandler(filesService, metrics, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "15 3 * * *", Task: shareLinkTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 3 * * *", Task: sessionTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "45 3 * * *", Task: trashTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
