package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/strata-media/strata/internal/domain/model"
	"github.com/strata-media/strata/internal/infrastructure/cache"
	"github.com/strata-media/strata/internal/infrastructure/metrics"
)

// CachedVideoServiceConfig holds configuration for CachedVideoService.
type CachedVideoServiceConfig struct {
	// CacheTTL is the TTL for cached video metadata.
	CacheTTL time.Duration
}

// DefaultCachedVideoServiceConfig returns the default configuration.
func DefaultCachedVideoServiceConfig() CachedVideoServiceConfig {
	return CachedVideoServiceConfig{
		CacheTTL: 5 * time.Minute,
	}
}

// cachedVideoService wraps VideoService with caching capabilities.
// It implements the decorator pattern to add caching without modifying the original service.
type cachedVideoService struct {
	delegate VideoService
	cache    cache.VideoCache
	sfGroup  singleflight.Group

	cacheTTL time.Duration
}

// NewCachedVideoService creates a new CachedVideoService wrapping the provided VideoService.
func NewCachedVideoService(
	delegate VideoService,
	videoCache cache.VideoCache,
	cfg CachedVideoServiceConfig,
) VideoService {
	return &cachedVideoService{
		delegate: delegate,
		cache:    videoCache,
		cacheTTL: cfg.CacheTTL,
	}
}

// UploadVideo delegates to the underlying service and warms the cache with
// the fresh record.
func (s *cachedVideoService) UploadVideo(ctx context.Context, input UploadVideoInput) (*model.Video, error) {
	video, err := s.delegate.UploadVideo(ctx, input)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, video, s.cacheTTL); err != nil {
		// Cache failure is non-critical; the next read falls through.
		slog.Warn("failed to cache video after upload",
			"video_id", video.ID,
			"error", err,
		)
	}
	return video, nil
}

// GetVideo retrieves video metadata with caching.
// Uses singleflight to prevent cache stampede on concurrent requests for the same video.
func (s *cachedVideoService) GetVideo(ctx context.Context, videoID uuid.UUID) (*model.Video, error) {
	// Use singleflight to coalesce concurrent requests
	key := videoID.String()
	result, err, shared := s.sfGroup.Do(key, func() (any, error) {
		return s.getVideoWithCache(ctx, videoID)
	})

	// Record singleflight metrics
	if shared {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightShared).Inc()
	} else {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightInitiated).Inc()
	}

	if err != nil {
		return nil, err
	}

	return result.(*model.Video), nil
}

// getVideoWithCache implements the cache-aside pattern.
func (s *cachedVideoService) getVideoWithCache(ctx context.Context, videoID uuid.UUID) (*model.Video, error) {
	// Try cache first
	video, err := s.cache.Get(ctx, videoID)
	if err != nil {
		// Log cache error but continue to database
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusError, metrics.CacheTypeVideo).Inc()
		slog.Warn("cache get failed, falling back to database",
			"video_id", videoID,
			"error", err,
		)
	}

	if video != nil {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusHit, metrics.CacheTypeVideo).Inc()
		return video, nil // Cache hit
	}
	metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusMiss, metrics.CacheTypeVideo).Inc()

	// Cache miss - fetch from database
	video, err = s.delegate.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}

	// Store in cache (errors logged but not propagated)
	if err := s.cache.Set(ctx, video, s.cacheTTL); err != nil {
		slog.Warn("failed to cache video",
			"video_id", videoID,
			"error", err,
		)
	}

	return video, nil
}

// ListVideos delegates to the underlying service. Listings are not cached:
// they change on every upload and the owner index lives in one query.
func (s *cachedVideoService) ListVideos(ctx context.Context, ownerID string) ([]*model.Video, error) {
	return s.delegate.ListVideos(ctx, ownerID)
}

// DeleteVideo invalidates the cache entry before delegating, so a
// concurrent read cannot resurrect the record after the delete lands.
func (s *cachedVideoService) DeleteVideo(ctx context.Context, videoID uuid.UUID) error {
	if err := s.cache.Delete(ctx, videoID); err != nil {
		slog.Warn("failed to invalidate cache on delete",
			"video_id", videoID,
			"error", err,
		)
	}

	return s.delegate.DeleteVideo(ctx, videoID)
}

// InvalidateCache removes a video from the cache.
// This is exposed for use by the publish worker when HLS status changes.
func (s *cachedVideoService) InvalidateCache(ctx context.Context, videoID uuid.UUID) error {
	return s.cache.Delete(ctx, videoID)
}
