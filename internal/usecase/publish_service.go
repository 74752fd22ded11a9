package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/strata-media/strata/internal/domain/model"
	"github.com/strata-media/strata/internal/domain/repository"
)

const (
	// DefaultMaxRetries is the default maximum number of retry attempts
	// before a publish task is marked failed.
	DefaultMaxRetries = 3

	// masterPlaylistName is the artifact recorded as the video's playlist
	// when present in the set.
	masterPlaylistName = "master.m3u8"
)

// PublishServiceConfig holds configuration for PublishService.
type PublishServiceConfig struct {
	// MaxRetries is the maximum number of retry attempts before marking
	// the publish as failed.
	MaxRetries int
}

// DefaultPublishServiceConfig returns the default configuration.
func DefaultPublishServiceConfig() PublishServiceConfig {
	return PublishServiceConfig{
		MaxRetries: DefaultMaxRetries,
	}
}

// PublishService uploads an externally encoded HLS artifact set into the
// primary tier's artifact namespace. No encoding happens here: the task
// names a local directory that already contains the playlist and segments.
type PublishService interface {
	// ProcessTask handles one publish task from the message queue.
	// Returns nil on success or permanent failure (max retries exceeded).
	// Returns error for transient failures that should trigger a retry.
	ProcessTask(ctx context.Context, task repository.HLSPublishTask) error
}

type publishService struct {
	repo repository.VideoRepository
	hls  HLSService

	maxRetries int
}

// NewPublishService creates a new PublishService instance.
func NewPublishService(
	repo repository.VideoRepository,
	hls HLSService,
	cfg PublishServiceConfig,
) PublishService {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	return &publishService{
		repo:       repo,
		hls:        hls,
		maxRetries: cfg.MaxRetries,
	}
}

// ProcessTask uploads every artifact in the task directory and records the
// playlist on the video. Individual artifact uploads are idempotent, so a
// retried task simply overwrites what the failed attempt managed to write.
func (s *publishService) ProcessTask(ctx context.Context, task repository.HLSPublishTask) error {
	// Max retries exceeded - mark as failed and ack the message.
	if task.RetryCount >= s.maxRetries {
		if err := s.markFailed(ctx, task.VideoID); err != nil {
			slog.Error("failed to mark publish as failed",
				"video_id", task.VideoID,
				"retry_count", task.RetryCount,
				"error", err,
			)
		}
		return nil
	}

	if err := s.markProcessing(ctx, task.VideoID); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	playlist, err := s.uploadArtifacts(ctx, task.VideoID, task.ArtifactDir)
	if err != nil {
		return fmt.Errorf("upload artifacts: %w", err)
	}

	if err := s.repo.UpdateHLS(ctx, task.VideoID, model.HLSReady, hlsKey(task.VideoID, playlist)); err != nil {
		return fmt.Errorf("mark ready: %w", err)
	}

	slog.Info("hls artifact set published",
		"video_id", task.VideoID,
		"playlist", playlist,
	)
	return nil
}

// uploadArtifacts walks the artifact directory non-recursively and stores
// every regular file. Returns the playlist filename to record.
func (s *publishService) uploadArtifacts(ctx context.Context, videoID uuid.UUID, dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read artifact directory: %w", err)
	}

	var playlists []string
	uploaded := 0

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		if err := s.uploadArtifact(ctx, videoID, filepath.Join(dir, name), name); err != nil {
			return "", err
		}
		uploaded++

		if filepath.Ext(name) == ".m3u8" {
			playlists = append(playlists, name)
		}
	}

	if uploaded == 0 {
		return "", fmt.Errorf("artifact directory %s is empty", dir)
	}
	if len(playlists) == 0 {
		return "", fmt.Errorf("artifact directory %s contains no playlist", dir)
	}

	// Prefer the master playlist; otherwise the first one alphabetically
	// keeps retries deterministic.
	sort.Strings(playlists)
	for _, p := range playlists {
		if p == masterPlaylistName {
			return p, nil
		}
	}
	return playlists[0], nil
}

func (s *publishService) uploadArtifact(ctx context.Context, videoID uuid.UUID, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open artifact %s: %w", name, err)
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat artifact %s: %w", name, err)
	}

	if err := s.hls.StoreArtifact(ctx, videoID, name, f, fi.Size()); err != nil {
		return fmt.Errorf("upload artifact %s: %w", name, err)
	}
	return nil
}

// markProcessing transitions the video to PROCESSING if it is eligible.
// A retried task finds the video already PROCESSING, which is fine.
func (s *publishService) markProcessing(ctx context.Context, videoID uuid.UUID) error {
	video, err := s.repo.GetByID(ctx, videoID)
	if err != nil {
		return err
	}

	if video.HLSStatus == model.HLSProcessing {
		return nil
	}

	if err := video.TransitionHLS(model.HLSProcessing); err != nil {
		return err
	}

	return s.repo.UpdateHLS(ctx, videoID, model.HLSProcessing, "")
}

// markFailed transitions the video to FAILED. Only a PROCESSING video
// moves; anything else is left for manual investigation.
func (s *publishService) markFailed(ctx context.Context, videoID uuid.UUID) error {
	video, err := s.repo.GetByID(ctx, videoID)
	if err != nil {
		return err
	}

	if video.HLSStatus != model.HLSProcessing {
		return nil
	}

	if err := video.TransitionHLS(model.HLSFailed); err != nil {
		return err
	}

	return s.repo.UpdateHLS(ctx, videoID, model.HLSFailed, "")
}
