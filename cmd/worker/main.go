package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/strata-media/strata/internal/config"
	"github.com/strata-media/strata/internal/domain/repository"
	"github.com/strata-media/strata/internal/infrastructure/cache"
	"github.com/strata-media/strata/internal/infrastructure/postgres"
	"github.com/strata-media/strata/internal/infrastructure/queue"
	"github.com/strata-media/strata/internal/infrastructure/storage"
	"github.com/strata-media/strata/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// The worker publishes HLS artifacts into the primary tier only.
	minioTier, err := storage.NewMinIOTier(ctx, storage.MinIOTierConfig{
		Endpoint:       cfg.MinIO.Endpoint,
		PublicEndpoint: cfg.MinIO.PublicEndpoint,
		AccessKey:      cfg.MinIO.AccessKey,
		SecretKey:      cfg.MinIO.SecretKey,
		Bucket:         cfg.MinIO.Bucket,
		UseSSL:         cfg.MinIO.UseSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize minio tier: %w", err)
	}
	if !minioTier.Configured() {
		return fmt.Errorf("primary tier is not configured; the publish worker has nowhere to write")
	}
	logger.Info("connected to MinIO")

	pgClient, err := postgres.NewClient(ctx, postgres.DefaultClientConfig(cfg.Database.DSN()))
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pgClient.Close()
	logger.Info("connected to PostgreSQL")

	queueClient, err := queue.NewClient(ctx, queue.DefaultClientConfig(cfg.RabbitMQ.URL()))
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer func() { _ = queueClient.Close() }()
	logger.Info("connected to RabbitMQ")

	// Redis is used to drop stale cached metadata once a publish lands.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() { _ = redisClient.Close() }()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("connected to Redis")

	videoRepo := postgres.NewVideoRepository(pgClient.Pool())
	videoCache := cache.NewRedisVideoCache(redisClient)
	hlsSvc := usecase.NewHLSService(minioTier, videoRepo, queueClient)
	publishSvc := usecase.NewPublishService(videoRepo, hlsSvc, usecase.PublishServiceConfig{
		MaxRetries: cfg.Worker.MaxRetries,
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var wg sync.WaitGroup

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting worker, consuming hls publish tasks")
		err := queueClient.ConsumeHLSTasks(ctx, func(task repository.HLSPublishTask) error {
			wg.Add(1)
			defer wg.Done()

			logger.Info("processing publish task",
				slog.String("video_id", task.VideoID.String()),
				slog.Int("retry_count", task.RetryCount),
			)

			if err := publishSvc.ProcessTask(ctx, task); err != nil {
				logger.Error("publish task failed",
					slog.String("video_id", task.VideoID.String()),
					slog.Int("retry_count", task.RetryCount),
					slog.String("error", err.Error()),
				)
				return err
			}

			// The cached record still carries the pre-publish HLS status.
			if err := videoCache.Delete(ctx, task.VideoID); err != nil {
				logger.Warn("failed to invalidate video cache",
					slog.String("video_id", task.VideoID.String()),
					slog.String("error", err.Error()),
				)
			}

			logger.Info("publish task completed",
				slog.String("video_id", task.VideoID.String()),
			)
			return nil
		})
		if err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("consumer error: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down worker", slog.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	// Stop consuming new tasks, then drain in-flight ones.
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("all in-flight tasks completed")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout exceeded, some tasks may not have completed")
	}

	logger.Info("worker stopped")
	return nil
}
