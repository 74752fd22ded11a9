package usecase

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/strata-media/strata/internal/domain/model"
	"github.com/strata-media/strata/internal/domain/repository"
)

// mockVideoRepository provides a configurable mock for VideoRepository.
type mockVideoRepository struct {
	createFn      func(ctx context.Context, video *model.Video) error
	getByIDFn     func(ctx context.Context, id uuid.UUID) (*model.Video, error)
	listByOwnerFn func(ctx context.Context, ownerID string) ([]*model.Video, error)
	updateSizeFn  func(ctx context.Context, id uuid.UUID, sizeBytes int64) error
	updateHLSFn   func(ctx context.Context, id uuid.UUID, status model.HLSStatus, playlistURL string) error
	deleteFn      func(ctx context.Context, id uuid.UUID) error
}

func (m *mockVideoRepository) Create(ctx context.Context, video *model.Video) error {
	if m.createFn != nil {
		return m.createFn(ctx, video)
	}
	return nil
}

func (m *mockVideoRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Video, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockVideoRepository) ListByOwner(ctx context.Context, ownerID string) ([]*model.Video, error) {
	if m.listByOwnerFn != nil {
		return m.listByOwnerFn(ctx, ownerID)
	}
	return nil, nil
}

func (m *mockVideoRepository) UpdateSize(ctx context.Context, id uuid.UUID, sizeBytes int64) error {
	if m.updateSizeFn != nil {
		return m.updateSizeFn(ctx, id, sizeBytes)
	}
	return nil
}

func (m *mockVideoRepository) UpdateHLS(ctx context.Context, id uuid.UUID, status model.HLSStatus, playlistURL string) error {
	if m.updateHLSFn != nil {
		return m.updateHLSFn(ctx, id, status, playlistURL)
	}
	return nil
}

func (m *mockVideoRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// mockObjectRouter provides a configurable mock for ObjectRouter.
type mockObjectRouter struct {
	putFn       func(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error)
	headFn      func(ctx context.Context, key string) (repository.ObjectInfo, error)
	openRangeFn func(ctx context.Context, key string, start, end int64) (io.ReadCloser, error)
	deleteFn    func(ctx context.Context, key string) error
}

func (m *mockObjectRouter) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	if m.putFn != nil {
		return m.putFn(ctx, key, reader, size, contentType)
	}
	return "minio", nil
}

func (m *mockObjectRouter) Head(ctx context.Context, key string) (repository.ObjectInfo, error) {
	if m.headFn != nil {
		return m.headFn(ctx, key)
	}
	return repository.ObjectInfo{}, repository.ErrObjectNotFound
}

func (m *mockObjectRouter) OpenRange(ctx context.Context, key string, start, end int64) (io.ReadCloser, error) {
	if m.openRangeFn != nil {
		return m.openRangeFn(ctx, key, start, end)
	}
	return nil, repository.ErrObjectNotFound
}

func (m *mockObjectRouter) Delete(ctx context.Context, key string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, key)
	}
	return nil
}

// mockObjectTier provides a configurable mock for a single ObjectTier.
type mockObjectTier struct {
	name         string
	unconfigured bool

	putFn          func(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	headFn         func(ctx context.Context, key string) (repository.ObjectInfo, error)
	openRangeFn    func(ctx context.Context, key string, start, end int64) (io.ReadCloser, error)
	deleteFn       func(ctx context.Context, key string) error
	signedGetURLFn func(ctx context.Context, key string, expiry time.Duration) (string, error)
}

func (m *mockObjectTier) Name() string {
	if m.name != "" {
		return m.name
	}
	return "minio"
}

func (m *mockObjectTier) Configured() bool { return !m.unconfigured }

func (m *mockObjectTier) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	if m.putFn != nil {
		return m.putFn(ctx, key, reader, size, contentType)
	}
	return nil
}

func (m *mockObjectTier) Head(ctx context.Context, key string) (repository.ObjectInfo, error) {
	if m.headFn != nil {
		return m.headFn(ctx, key)
	}
	return repository.ObjectInfo{}, repository.ErrObjectNotFound
}

func (m *mockObjectTier) OpenRange(ctx context.Context, key string, start, end int64) (io.ReadCloser, error) {
	if m.openRangeFn != nil {
		return m.openRangeFn(ctx, key, start, end)
	}
	return nil, repository.ErrObjectNotFound
}

func (m *mockObjectTier) Delete(ctx context.Context, key string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, key)
	}
	return nil
}

func (m *mockObjectTier) SignedGetURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if m.signedGetURLFn != nil {
		return m.signedGetURLFn(ctx, key, expiry)
	}
	return "http://example.com/signed", nil
}

// mockMessageQueue provides a configurable mock for MessageQueue.
type mockMessageQueue struct {
	publishHLSTaskFn  func(ctx context.Context, task repository.HLSPublishTask) error
	consumeHLSTasksFn func(ctx context.Context, handler func(task repository.HLSPublishTask) error) error
}

func (m *mockMessageQueue) PublishHLSTask(ctx context.Context, task repository.HLSPublishTask) error {
	if m.publishHLSTaskFn != nil {
		return m.publishHLSTaskFn(ctx, task)
	}
	return nil
}

func (m *mockMessageQueue) ConsumeHLSTasks(ctx context.Context, handler func(task repository.HLSPublishTask) error) error {
	if m.consumeHLSTasksFn != nil {
		return m.consumeHLSTasksFn(ctx, handler)
	}
	return nil
}

func (m *mockMessageQueue) Close() error {
	return nil
}

// mockVideoCache provides an in-memory VideoCache.
type mockVideoCache struct {
	mu     sync.Mutex
	videos map[uuid.UUID]*model.Video

	getErr    error
	setErr    error
	deleteErr error
}

func newMockVideoCache() *mockVideoCache {
	return &mockVideoCache{videos: make(map[uuid.UUID]*model.Video)}
}

func (m *mockVideoCache) Get(ctx context.Context, videoID uuid.UUID) (*model.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.videos[videoID], nil
}

func (m *mockVideoCache) Set(ctx context.Context, video *model.Video, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.videos[video.ID] = video
	return nil
}

func (m *mockVideoCache) Delete(ctx context.Context, videoID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.videos, videoID)
	return nil
}
