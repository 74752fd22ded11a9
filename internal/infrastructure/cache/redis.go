package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/strata-media/strata/internal/domain/model"
)

const (
	// videoCacheKeyPrefix is the prefix for video metadata keys in Redis.
	videoCacheKeyPrefix = "video:"

	// residencyKeyPrefix is the prefix for tier residency keys in Redis.
	residencyKeyPrefix = "tier:"

	// DefaultResidencyTTL bounds how long a residency hint survives without
	// being refreshed by a successful tier operation.
	DefaultResidencyTTL = time.Minute
)

// videoJSON is the JSON representation of a Video for caching.
// Using explicit struct avoids coupling to domain model's JSON tags.
type videoJSON struct {
	ID              string  `json:"id"`
	OwnerID         string  `json:"owner_id"`
	Title           string  `json:"title"`
	SizeBytes       int64   `json:"size_bytes"`
	DurationSeconds float64 `json:"duration_seconds"`
	HLSStatus       string  `json:"hls_status"`
	HLSPlaylistURL  string  `json:"hls_playlist_url"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

// RedisVideoCache implements VideoCache using Redis as the backing store.
type RedisVideoCache struct {
	client *redis.Client
}

// NewRedisVideoCache creates a new Redis-backed video cache.
func NewRedisVideoCache(client *redis.Client) *RedisVideoCache {
	return &RedisVideoCache{
		client: client,
	}
}

// Get retrieves a video from Redis cache.
// Returns nil, nil on cache miss.
func (c *RedisVideoCache) Get(ctx context.Context, videoID uuid.UUID) (*model.Video, error) {
	key := c.buildKey(videoID)

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	video, err := c.deserialize(data)
	if err != nil {
		return nil, fmt.Errorf("deserialize video: %w", err)
	}

	return video, nil
}

// Set stores a video in Redis cache with the specified TTL.
func (c *RedisVideoCache) Set(ctx context.Context, video *model.Video, ttl time.Duration) error {
	key := c.buildKey(video.ID)

	data, err := c.serialize(video)
	if err != nil {
		return fmt.Errorf("serialize video: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Delete removes a video from Redis cache.
func (c *RedisVideoCache) Delete(ctx context.Context, videoID uuid.UUID) error {
	key := c.buildKey(videoID)

	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}

	return nil
}

// buildKey constructs the Redis key for a video.
func (c *RedisVideoCache) buildKey(videoID uuid.UUID) string {
	return videoCacheKeyPrefix + videoID.String()
}

// serialize converts a Video to JSON bytes.
func (c *RedisVideoCache) serialize(video *model.Video) ([]byte, error) {
	v := videoJSON{
		ID:              video.ID.String(),
		OwnerID:         video.OwnerID,
		Title:           video.Title,
		SizeBytes:       video.SizeBytes,
		DurationSeconds: video.DurationSeconds,
		HLSStatus:       string(video.HLSStatus),
		HLSPlaylistURL:  video.HLSPlaylistURL,
		CreatedAt:       video.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:       video.UpdatedAt.Format(time.RFC3339Nano),
	}
	return json.Marshal(v)
}

// deserialize converts JSON bytes to a Video.
func (c *RedisVideoCache) deserialize(data []byte) (*model.Video, error) {
	var v videoJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(v.ID)
	if err != nil {
		return nil, fmt.Errorf("parse video ID: %w", err)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, v.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	updatedAt, err := time.Parse(time.RFC3339Nano, v.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &model.Video{
		ID:              id,
		OwnerID:         v.OwnerID,
		Title:           v.Title,
		SizeBytes:       v.SizeBytes,
		DurationSeconds: v.DurationSeconds,
		HLSStatus:       model.HLSStatus(v.HLSStatus),
		HLSPlaylistURL:  v.HLSPlaylistURL,
		CreatedAt:       createdAt,
		UpdatedAt:       updatedAt,
	}, nil
}

// RedisTierResidency records which storage tier last served an object key.
// Entries carry a short TTL so a migrated or deleted object stops being
// hinted at quickly even if invalidation was missed.
type RedisTierResidency struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisTierResidency creates a Redis-backed tier residency cache.
func NewRedisTierResidency(client *redis.Client, ttl time.Duration) *RedisTierResidency {
	return &RedisTierResidency{
		client: client,
		ttl:    ttl,
	}
}

// GetTier returns the cached tier name for an object key, or "" on miss.
func (c *RedisTierResidency) GetTier(ctx context.Context, key string) (string, error) {
	tier, err := c.client.Get(ctx, residencyKeyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil // Cache miss
		}
		return "", fmt.Errorf("redis get: %w", err)
	}
	return tier, nil
}

// SetTier records the tier currently holding an object key.
func (c *RedisTierResidency) SetTier(ctx context.Context, key, tier string) error {
	if err := c.client.Set(ctx, residencyKeyPrefix+key, tier, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Forget drops the cached residency for an object key.
func (c *RedisTierResidency) Forget(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, residencyKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
