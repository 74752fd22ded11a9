package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/strata-media/strata/internal/api/handler"
	"github.com/strata-media/strata/internal/api/middleware"
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

	// Storage tiers, in fixed preference order.
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

	s3Tier, err := storage.NewS3Tier(ctx, storage.S3TierConfig{
		Region:         cfg.S3.Region,
		Bucket:         cfg.S3.Bucket,
		Endpoint:       cfg.S3.Endpoint,
		AccessKey:      cfg.S3.AccessKey,
		SecretKey:      cfg.S3.SecretKey,
		ForcePathStyle: cfg.S3.ForcePathStyle,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize s3 tier: %w", err)
	}

	fsTier, err := storage.NewFilesystemTier(cfg.FS.Dir)
	if err != nil {
		return fmt.Errorf("failed to initialize filesystem tier: %w", err)
	}

	// Metadata store.
	pgClient, err := postgres.NewClient(ctx, postgres.DefaultClientConfig(cfg.Database.DSN()))
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pgClient.Close()
	logger.Info("connected to PostgreSQL")

	// Caches.
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

	// Publish queue.
	queueClient, err := queue.NewClient(ctx, queue.DefaultClientConfig(cfg.RabbitMQ.URL()))
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer func() { _ = queueClient.Close() }()
	logger.Info("connected to RabbitMQ")

	residency := cache.NewRedisTierResidency(redisClient, cache.DefaultResidencyTTL)
	router := storage.NewRouter(
		[]repository.ObjectTier{minioTier, s3Tier, fsTier},
		residency,
		storage.RouterConfig{HeadTimeout: cfg.Stream.HeadTimeout},
	)

	videoRepo := postgres.NewVideoRepository(pgClient.Pool())
	videoCache := cache.NewRedisVideoCache(redisClient)

	videoSvc := usecase.NewCachedVideoService(
		usecase.NewVideoService(videoRepo, router),
		videoCache,
		usecase.DefaultCachedVideoServiceConfig(),
	)
	streamSvc := usecase.NewStreamService(router, usecase.StreamServiceConfig{
		ChunkSize:  cfg.Stream.ChunkSize,
		ChunkCount: cfg.Stream.ChunkCount,
	})
	linkSvc := usecase.NewLinkService(minioTier)
	hlsSvc := usecase.NewHLSService(minioTier, videoRepo, queueClient)

	r := setupRouter(
		logger,
		handler.NewVideoHandler(videoSvc, linkSvc, cfg.Upload.StagingDir, cfg.Upload.MaxSizeBytes),
		handler.NewStreamHandler(streamSvc),
		handler.NewHLSHandler(hlsSvc),
	)

	// WriteTimeout stays 0: a client streaming a long video holds the
	// response open far beyond any sane fixed deadline.
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     r,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down server", slog.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func setupRouter(
	logger *slog.Logger,
	videos *handler.VideoHandler,
	streams *handler.StreamHandler,
	hls *handler.HLSHandler,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))

	r.Get("/health", handler.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/videos", func(r chi.Router) {
			r.Post("/", videos.Upload)
			r.Get("/", videos.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", videos.Get)
				r.Delete("/", videos.Delete)
				r.Get("/stream", streams.Stream)
				r.Get("/url", videos.SignedURL)

				r.Post("/hls", hls.TriggerPublish)
				r.Get("/hls/{file}", hls.GetArtifact)
				r.Get("/hls/{file}/url", hls.ArtifactURL)
			})
		})
	})

	return r
}
