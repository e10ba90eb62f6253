// Package main runs the background purge worker: scheduled sweeps plus sweeps requested through the queue.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-drive/backend/config"
	"github.com/aura-drive/backend/internal/access"
	"github.com/aura-drive/backend/internal/favorites"
	"github.com/aura-drive/backend/internal/files"
	"github.com/aura-drive/backend/internal/organizations"
	"github.com/aura-drive/backend/internal/worker"
	"github.com/aura-drive/backend/pkg/database"
	"github.com/aura-drive/backend/pkg/queue"
	"github.com/aura-drive/backend/pkg/redis"
	"github.com/aura-drive/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	s3Client, err := storage.NewS3(ctx, storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		FilesBucket:          cfg.AWS.FilesBucket,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}

	var jobs worker.JobSource
	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Warn("redis unavailable, running scheduled sweeps only", zap.Error(err))
	} else {
		defer rdb.Close()
		jobs = queue.NewQueue(rdb.Client, logger)
	}

	evaluator := access.NewEvaluator(organizations.NewRepository(pool), logger.Named("access"))
	fileSvc := files.NewService(files.NewRepository(pool), favorites.NewRepository(pool), s3Client, evaluator, files.Options{
		URLConcurrency:   cfg.Files.URLResolveConcurrency,
		PurgeConcurrency: cfg.Purge.Concurrency,
		MaxNameLength:    cfg.Files.MaxNameLength,
	}, logger.Named("files"))
	purgeWorker := worker.NewPurgeWorker(fileSvc, jobs, cfg.Purge.Interval(), logger.Named("purge"))

	workerCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("worker started", zap.Duration("interval", cfg.Purge.Interval()))
	if err := purgeWorker.Run(workerCtx); err != nil {
		logger.Error("worker", zap.Error(err))
	}
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
