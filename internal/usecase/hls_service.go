package usecase

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/strata-media/strata/internal/domain/model"
	"github.com/strata-media/strata/internal/domain/repository"
)

// HLS artifact content types, chosen by filename suffix.
const (
	contentTypePlaylist = "application/vnd.apple.mpegurl"
	contentTypeSegment  = "video/mp2t"
)

// hlsContentType maps an artifact filename to its content type.
// Playlists (.m3u8) and everything else, which is segment data.
func hlsContentType(filename string) string {
	if strings.HasSuffix(filename, ".m3u8") {
		return contentTypePlaylist
	}
	return contentTypeSegment
}

// HLSArtifact is a fetched artifact body with its content type.
type HLSArtifact struct {
	ContentType string
	Size        int64
	Body        io.ReadCloser
}

// HLSService manages the per-video HLS artifact namespace on the primary
// tier and the publish lifecycle on the video record.
type HLSService interface {
	// StoreArtifact writes one artifact under hls/{videoID}/{filename}.
	StoreArtifact(ctx context.Context, videoID uuid.UUID, filename string, reader io.Reader, size int64) error

	// GetArtifact opens an artifact for reading. Returns
	// repository.ErrObjectNotFound if it does not exist.
	GetArtifact(ctx context.Context, videoID uuid.UUID, filename string) (*HLSArtifact, error)

	// ArtifactURL returns a presigned GET URL for an artifact, with the
	// same TTL and fallback semantics as LinkService.
	ArtifactURL(ctx context.Context, videoID uuid.UUID, filename string, ttl time.Duration) (string, error)

	// TriggerPublish marks the video pending and enqueues a publish task
	// for the worker. artifactDir is the local directory the external
	// encoder dropped the artifact set into.
	TriggerPublish(ctx context.Context, videoID uuid.UUID, artifactDir string) error
}

type hlsService struct {
	primary repository.ObjectTier
	repo    repository.VideoRepository
	queue   repository.MessageQueue
}

// NewHLSService creates a new HLSService instance. The artifact namespace
// lives on the primary tier only; there is no fallback for HLS content.
func NewHLSService(
	primary repository.ObjectTier,
	repo repository.VideoRepository,
	queue repository.MessageQueue,
) HLSService {
	return &hlsService{
		primary: primary,
		repo:    repo,
		queue:   queue,
	}
}

// StoreArtifact writes one artifact to the primary tier.
func (s *hlsService) StoreArtifact(ctx context.Context, videoID uuid.UUID, filename string, reader io.Reader, size int64) error {
	if !s.primary.Configured() {
		return repository.ErrTierNotConfigured
	}

	key := hlsKey(videoID, filename)
	if err := s.primary.Put(ctx, key, reader, size, hlsContentType(filename)); err != nil {
		return fmt.Errorf("store artifact %s: %w", key, err)
	}
	return nil
}

// GetArtifact opens the full artifact for reading.
func (s *hlsService) GetArtifact(ctx context.Context, videoID uuid.UUID, filename string) (*HLSArtifact, error) {
	if !s.primary.Configured() {
		return nil, repository.ErrTierNotConfigured
	}

	key := hlsKey(videoID, filename)

	info, err := s.primary.Head(ctx, key)
	if err != nil {
		return nil, err
	}

	if info.Size == 0 {
		return &HLSArtifact{
			ContentType: hlsContentType(filename),
			Size:        0,
			Body:        io.NopCloser(strings.NewReader("")),
		}, nil
	}

	body, err := s.primary.OpenRange(ctx, key, 0, info.Size-1)
	if err != nil {
		return nil, err
	}

	return &HLSArtifact{
		ContentType: hlsContentType(filename),
		Size:        info.Size,
		Body:        body,
	}, nil
}

// ArtifactURL verifies the artifact on the primary tier and signs a URL
// for it.
func (s *hlsService) ArtifactURL(ctx context.Context, videoID uuid.UUID, filename string, ttl time.Duration) (string, error) {
	if !s.primary.Configured() {
		return "", repository.ErrSignedURLUnsupported
	}

	if ttl <= 0 {
		ttl = DefaultSignedURLTTL
	}

	key := hlsKey(videoID, filename)

	if _, err := s.primary.Head(ctx, key); err != nil {
		return "", err
	}

	url, err := s.primary.SignedGetURL(ctx, key, ttl)
	if err != nil {
		return "", fmt.Errorf("sign artifact url %s: %w", key, err)
	}
	return url, nil
}

// TriggerPublish transitions the video to PENDING and enqueues the task.
// A video whose previous publish failed may be re-triggered.
func (s *hlsService) TriggerPublish(ctx context.Context, videoID uuid.UUID, artifactDir string) error {
	video, err := s.repo.GetByID(ctx, videoID)
	if err != nil {
		return err
	}

	// Re-triggering an in-flight or completed publish is a no-op.
	if video.HLSStatus == model.HLSPending || video.HLSStatus == model.HLSProcessing {
		return nil
	}

	if err := video.TransitionHLS(model.HLSPending); err != nil {
		return err
	}

	if err := s.repo.UpdateHLS(ctx, videoID, model.HLSPending, ""); err != nil {
		return fmt.Errorf("mark video pending: %w", err)
	}

	task := repository.HLSPublishTask{
		VideoID:     videoID,
		ArtifactDir: artifactDir,
	}

	if err := s.queue.PublishHLSTask(ctx, task); err != nil {
		return fmt.Errorf("publish hls task: %w", err)
	}

	return nil
}
