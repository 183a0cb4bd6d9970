// Package main runs the background worker: expiry sweeps plus storage-side
// multipart abort jobs.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/practika/backend/config"
	"github.com/practika/backend/internal/feedback"
	"github.com/practika/backend/internal/sweeper"
	"github.com/practika/backend/internal/uploads"
	"github.com/practika/backend/internal/worker"
	"github.com/practika/backend/pkg/database"
	"github.com/practika/backend/pkg/queue"
	"github.com/practika/backend/pkg/redis"
	"github.com/practika/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	s3Cfg := storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		VideosBucket:         cfg.AWS.VideosBucket,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}
	s3Client, err := storage.NewS3(ctx, s3Cfg, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}

	feedbackRepo := feedback.NewRepository(pool)
	uploadRepo := uploads.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	sweep := sweeper.New(feedbackRepo, uploadRepo, jobQueue, logger)
	processor := worker.NewAbortProcessor(s3Client, jobQueue, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sweep.Run(workerCtx, time.Duration(cfg.Sweeper.IntervalSeconds)*time.Second)
	go processor.Run(workerCtx)
	logger.Info("worker started", zap.Int("sweep_interval_sec", cfg.Sweeper.IntervalSeconds))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
