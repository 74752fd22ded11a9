package handler

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/strata-media/strata/internal/domain/model"
	"github.com/strata-media/strata/internal/domain/repository"
	"github.com/strata-media/strata/internal/usecase"
)

// mockVideoService provides a configurable mock for usecase.VideoService.
type mockVideoService struct {
	uploadFn func(ctx context.Context, input usecase.UploadVideoInput) (*model.Video, error)
	getFn    func(ctx context.Context, videoID uuid.UUID) (*model.Video, error)
	listFn   func(ctx context.Context, ownerID string) ([]*model.Video, error)
	deleteFn func(ctx context.Context, videoID uuid.UUID) error
}

func (m *mockVideoService) UploadVideo(ctx context.Context, input usecase.UploadVideoInput) (*model.Video, error) {
	if m.uploadFn != nil {
		return m.uploadFn(ctx, input)
	}
	return nil, nil
}

func (m *mockVideoService) GetVideo(ctx context.Context, videoID uuid.UUID) (*model.Video, error) {
	if m.getFn != nil {
		return m.getFn(ctx, videoID)
	}
	return nil, repository.ErrVideoNotFound
}

func (m *mockVideoService) ListVideos(ctx context.Context, ownerID string) ([]*model.Video, error) {
	if m.listFn != nil {
		return m.listFn(ctx, ownerID)
	}
	return nil, nil
}

func (m *mockVideoService) DeleteVideo(ctx context.Context, videoID uuid.UUID) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, videoID)
	}
	return nil
}

// mockLinkService provides a configurable mock for usecase.LinkService.
type mockLinkService struct {
	signedVideoURLFn func(ctx context.Context, videoID uuid.UUID, ttl time.Duration) (string, error)
}

func (m *mockLinkService) SignedVideoURL(ctx context.Context, videoID uuid.UUID, ttl time.Duration) (string, error) {
	if m.signedVideoURLFn != nil {
		return m.signedVideoURLFn(ctx, videoID, ttl)
	}
	return "", repository.ErrSignedURLUnsupported
}

// mockHLSService provides a configurable mock for usecase.HLSService.
type mockHLSService struct {
	storeArtifactFn  func(ctx context.Context, videoID uuid.UUID, filename string, reader io.Reader, size int64) error
	getArtifactFn    func(ctx context.Context, videoID uuid.UUID, filename string) (*usecase.HLSArtifact, error)
	artifactURLFn    func(ctx context.Context, videoID uuid.UUID, filename string, ttl time.Duration) (string, error)
	triggerPublishFn func(ctx context.Context, videoID uuid.UUID, artifactDir string) error
}

func (m *mockHLSService) StoreArtifact(ctx context.Context, videoID uuid.UUID, filename string, reader io.Reader, size int64) error {
	if m.storeArtifactFn != nil {
		return m.storeArtifactFn(ctx, videoID, filename, reader, size)
	}
	return nil
}

func (m *mockHLSService) GetArtifact(ctx context.Context, videoID uuid.UUID, filename string) (*usecase.HLSArtifact, error) {
	if m.getArtifactFn != nil {
		return m.getArtifactFn(ctx, videoID, filename)
	}
	return nil, repository.ErrObjectNotFound
}

func (m *mockHLSService) ArtifactURL(ctx context.Context, videoID uuid.UUID, filename string, ttl time.Duration) (string, error) {
	if m.artifactURLFn != nil {
		return m.artifactURLFn(ctx, videoID, filename, ttl)
	}
	return "", repository.ErrSignedURLUnsupported
}

func (m *mockHLSService) TriggerPublish(ctx context.Context, videoID uuid.UUID, artifactDir string) error {
	if m.triggerPublishFn != nil {
		return m.triggerPublishFn(ctx, videoID, artifactDir)
	}
	return nil
}
