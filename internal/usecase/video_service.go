package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/strata-media/strata/internal/domain/model"
	"github.com/strata-media/strata/internal/domain/repository"
)

var (
	// ErrEmptyUpload is returned when an upload carries no staged file and no data.
	ErrEmptyUpload = errors.New("upload contains no data")
)

// UploadVideoInput contains the input parameters for ingesting a video.
// Exactly one of StagedPath or Data carries the bytes: multipart uploads
// are staged to disk first, small programmatic uploads may pass bytes
// directly.
type UploadVideoInput struct {
	StagedPath      string
	Data            []byte
	FileName        string
	DurationSeconds float64
	OwnerID         string
}

// VideoService defines the interface for video ingest and lifecycle operations.
type VideoService interface {
	// UploadVideo stores the video bytes in the first available tier and
	// persists the metadata record. The staging file is removed only after
	// both succeed, so a failed ingest can be retried from disk.
	UploadVideo(ctx context.Context, input UploadVideoInput) (*model.Video, error)

	// GetVideo retrieves video metadata by ID.
	GetVideo(ctx context.Context, videoID uuid.UUID) (*model.Video, error)

	// ListVideos retrieves all videos owned by ownerID, newest first.
	ListVideos(ctx context.Context, ownerID string) ([]*model.Video, error)

	// DeleteVideo removes the video bytes from every tier holding them and
	// deletes the metadata record. Tiers that never held the object are
	// tolerated.
	DeleteVideo(ctx context.Context, videoID uuid.UUID) error
}

type videoService struct {
	repo   repository.VideoRepository
	router repository.ObjectRouter
}

// NewVideoService creates a new VideoService instance.
func NewVideoService(
	repo repository.VideoRepository,
	router repository.ObjectRouter,
) VideoService {
	return &videoService{
		repo:   repo,
		router: router,
	}
}

// UploadVideo ingests a video: tier write first, metadata second.
// The object key is derived from the freshly minted video ID, so a crashed
// ingest leaves at worst an orphan object with no record pointing at it.
func (s *videoService) UploadVideo(ctx context.Context, input UploadVideoInput) (*model.Video, error) {
	video, err := model.NewVideo(input.FileName, input.OwnerID, input.DurationSeconds)
	if err != nil {
		return nil, err
	}

	reader, size, cleanup, err := s.openUpload(input)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	key := videoKey(video.ID)

	tierName, err := s.router.Put(ctx, key, reader, size, "video/mp4")
	if err != nil {
		// The staging file survives so the upload can be retried.
		return nil, fmt.Errorf("store video %s: %w", video.ID, err)
	}

	video.SetSize(size)

	if err := s.repo.Create(ctx, video); err != nil {
		// The object is already written; remove it so a retried upload
		// does not leak storage under a dead key.
		if derr := s.router.Delete(ctx, key); derr != nil {
			slog.Warn("failed to remove orphan object after metadata failure",
				"video_id", video.ID,
				"key", key,
				"error", derr,
			)
		}
		return nil, fmt.Errorf("create video record: %w", err)
	}

	slog.Info("video ingested",
		"video_id", video.ID,
		"tier", tierName,
		"size_bytes", size,
	)

	if input.StagedPath != "" {
		if err := os.Remove(input.StagedPath); err != nil {
			slog.Warn("failed to remove staging file",
				"path", input.StagedPath,
				"error", err,
			)
		}
	}

	return video, nil
}

// openUpload resolves the input to a seekable reader and its length.
// A seekable reader lets the router replay the payload when a tier write
// fails partway through.
func (s *videoService) openUpload(input UploadVideoInput) (io.Reader, int64, func(), error) {
	if input.StagedPath != "" {
		f, err := os.Open(input.StagedPath)
		if err != nil {
			return nil, 0, nil, fmt.Errorf("open staging file: %w", err)
		}
		fi, err := f.Stat()
		if err != nil {
			_ = f.Close()
			return nil, 0, nil, fmt.Errorf("stat staging file: %w", err)
		}
		return f, fi.Size(), func() { _ = f.Close() }, nil
	}

	if len(input.Data) == 0 {
		return nil, 0, nil, ErrEmptyUpload
	}
	return bytes.NewReader(input.Data), int64(len(input.Data)), func() {}, nil
}

// GetVideo retrieves video metadata by ID.
func (s *videoService) GetVideo(ctx context.Context, videoID uuid.UUID) (*model.Video, error) {
	return s.repo.GetByID(ctx, videoID)
}

// ListVideos retrieves all videos owned by ownerID.
func (s *videoService) ListVideos(ctx context.Context, ownerID string) ([]*model.Video, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

// DeleteVideo removes the object from all tiers and drops the record.
// Object removal runs first: if it fails the record survives and the
// delete can be retried.
func (s *videoService) DeleteVideo(ctx context.Context, videoID uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, videoID); err != nil {
		return err
	}

	if err := s.router.Delete(ctx, videoKey(videoID)); err != nil {
		return fmt.Errorf("delete video object %s: %w", videoID, err)
	}

	if err := s.repo.Delete(ctx, videoID); err != nil {
		return fmt.Errorf("delete video record %s: %w", videoID, err)
	}

	return nil
}
