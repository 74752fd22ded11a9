package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/strata-media/strata/internal/domain/model"
	"github.com/strata-media/strata/internal/domain/repository"
)

func TestHLSContentType(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"master.m3u8", "application/vnd.apple.mpegurl"},
		{"stream_720p.m3u8", "application/vnd.apple.mpegurl"},
		{"segment_000.ts", "video/mp2t"},
		{"segment_142.ts", "video/mp2t"},
		{"init.mp4", "video/mp2t"},
	}

	for _, tt := range tests {
		if got := hlsContentType(tt.filename); got != tt.want {
			t.Errorf("hlsContentType(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}

func TestHLSService_StoreArtifact(t *testing.T) {
	videoID := uuid.New()

	t.Run("stores under the hls namespace", func(t *testing.T) {
		var gotKey, gotContentType string
		var gotSize int64
		tier := &mockObjectTier{
			putFn: func(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
				gotKey = key
				gotContentType = contentType
				gotSize = size
				return nil
			},
		}

		svc := NewHLSService(tier, &mockVideoRepository{}, &mockMessageQueue{})

		err := svc.StoreArtifact(context.Background(), videoID, "master.m3u8", strings.NewReader("#EXTM3U"), 7)
		if err != nil {
			t.Fatalf("StoreArtifact() unexpected error = %v", err)
		}
		if want := fmt.Sprintf("hls/%s/master.m3u8", videoID); gotKey != want {
			t.Errorf("key = %q, want %q", gotKey, want)
		}
		if gotContentType != "application/vnd.apple.mpegurl" {
			t.Errorf("content type = %q", gotContentType)
		}
		if gotSize != 7 {
			t.Errorf("size = %d, want 7", gotSize)
		}
	})

	t.Run("segment gets the segment content type", func(t *testing.T) {
		var gotContentType string
		tier := &mockObjectTier{
			putFn: func(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
				gotContentType = contentType
				return nil
			},
		}

		svc := NewHLSService(tier, &mockVideoRepository{}, &mockMessageQueue{})

		if err := svc.StoreArtifact(context.Background(), videoID, "segment_000.ts", strings.NewReader("data"), 4); err != nil {
			t.Fatalf("StoreArtifact() unexpected error = %v", err)
		}
		if gotContentType != "video/mp2t" {
			t.Errorf("content type = %q, want video/mp2t", gotContentType)
		}
	})

	t.Run("unconfigured tier", func(t *testing.T) {
		svc := NewHLSService(&mockObjectTier{unconfigured: true}, &mockVideoRepository{}, &mockMessageQueue{})

		err := svc.StoreArtifact(context.Background(), videoID, "master.m3u8", strings.NewReader("x"), 1)
		if !errors.Is(err, repository.ErrTierNotConfigured) {
			t.Errorf("error = %v, want %v", err, repository.ErrTierNotConfigured)
		}
	})

	t.Run("tier failure is wrapped with the key", func(t *testing.T) {
		tier := &mockObjectTier{
			putFn: func(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
				return errors.New("bucket gone")
			},
		}

		svc := NewHLSService(tier, &mockVideoRepository{}, &mockMessageQueue{})

		err := svc.StoreArtifact(context.Background(), videoID, "master.m3u8", strings.NewReader("x"), 1)
		if err == nil || !strings.Contains(err.Error(), "store artifact") {
			t.Errorf("error = %v, want wrapped store error", err)
		}
	})
}

func TestHLSService_GetArtifact(t *testing.T) {
	videoID := uuid.New()

	t.Run("opens the full artifact", func(t *testing.T) {
		content := "#EXTM3U\n#EXT-X-VERSION:3\n"
		var gotStart, gotEnd int64
		tier := &mockObjectTier{
			headFn: func(ctx context.Context, key string) (repository.ObjectInfo, error) {
				return repository.ObjectInfo{Key: key, Size: int64(len(content))}, nil
			},
			openRangeFn: func(ctx context.Context, key string, start, end int64) (io.ReadCloser, error) {
				gotStart, gotEnd = start, end
				return io.NopCloser(strings.NewReader(content)), nil
			},
		}

		svc := NewHLSService(tier, &mockVideoRepository{}, &mockMessageQueue{})

		artifact, err := svc.GetArtifact(context.Background(), videoID, "master.m3u8")
		if err != nil {
			t.Fatalf("GetArtifact() unexpected error = %v", err)
		}
		defer artifact.Body.Close()

		if artifact.ContentType != "application/vnd.apple.mpegurl" {
			t.Errorf("ContentType = %q", artifact.ContentType)
		}
		if artifact.Size != int64(len(content)) {
			t.Errorf("Size = %d, want %d", artifact.Size, len(content))
		}
		if gotStart != 0 || gotEnd != int64(len(content))-1 {
			t.Errorf("range = [%d,%d], want [0,%d]", gotStart, gotEnd, len(content)-1)
		}

		body, err := io.ReadAll(artifact.Body)
		if err != nil {
			t.Fatalf("failed to read body: %v", err)
		}
		if string(body) != content {
			t.Errorf("body = %q, want %q", body, content)
		}
	})

	t.Run("empty artifact has an empty body", func(t *testing.T) {
		tier := &mockObjectTier{
			headFn: func(ctx context.Context, key string) (repository.ObjectInfo, error) {
				return repository.ObjectInfo{Key: key, Size: 0}, nil
			},
			openRangeFn: func(ctx context.Context, key string, start, end int64) (io.ReadCloser, error) {
				t.Error("OpenRange called for a zero-byte artifact")
				return nil, nil
			},
		}

		svc := NewHLSService(tier, &mockVideoRepository{}, &mockMessageQueue{})

		artifact, err := svc.GetArtifact(context.Background(), videoID, "segment_000.ts")
		if err != nil {
			t.Fatalf("GetArtifact() unexpected error = %v", err)
		}
		defer artifact.Body.Close()

		if artifact.Size != 0 {
			t.Errorf("Size = %d, want 0", artifact.Size)
		}
		if body, _ := io.ReadAll(artifact.Body); len(body) != 0 {
			t.Errorf("body = %q, want empty", body)
		}
	})

	t.Run("artifact not found", func(t *testing.T) {
		svc := NewHLSService(&mockObjectTier{}, &mockVideoRepository{}, &mockMessageQueue{})

		_, err := svc.GetArtifact(context.Background(), videoID, "missing.m3u8")
		if !errors.Is(err, repository.ErrObjectNotFound) {
			t.Errorf("error = %v, want %v", err, repository.ErrObjectNotFound)
		}
	})

	t.Run("unconfigured tier", func(t *testing.T) {
		svc := NewHLSService(&mockObjectTier{unconfigured: true}, &mockVideoRepository{}, &mockMessageQueue{})

		_, err := svc.GetArtifact(context.Background(), videoID, "master.m3u8")
		if !errors.Is(err, repository.ErrTierNotConfigured) {
			t.Errorf("error = %v, want %v", err, repository.ErrTierNotConfigured)
		}
	})
}

func TestHLSService_ArtifactURL(t *testing.T) {
	videoID := uuid.New()

	t.Run("signs the artifact key", func(t *testing.T) {
		var gotKey string
		tier := &mockObjectTier{
			headFn: func(ctx context.Context, key string) (repository.ObjectInfo, error) {
				return repository.ObjectInfo{Key: key}, nil
			},
			signedGetURLFn: func(ctx context.Context, key string, expiry time.Duration) (string, error) {
				gotKey = key
				return "https://minio.example.com/hls/signed", nil
			},
		}

		svc := NewHLSService(tier, &mockVideoRepository{}, &mockMessageQueue{})

		url, err := svc.ArtifactURL(context.Background(), videoID, "master.m3u8", time.Minute)
		if err != nil {
			t.Fatalf("ArtifactURL() unexpected error = %v", err)
		}
		if url == "" {
			t.Error("url is empty")
		}
		if want := fmt.Sprintf("hls/%s/master.m3u8", videoID); gotKey != want {
			t.Errorf("signed key = %q, want %q", gotKey, want)
		}
	})

	t.Run("unconfigured tier", func(t *testing.T) {
		svc := NewHLSService(&mockObjectTier{unconfigured: true}, &mockVideoRepository{}, &mockMessageQueue{})

		_, err := svc.ArtifactURL(context.Background(), videoID, "master.m3u8", time.Minute)
		if !errors.Is(err, repository.ErrSignedURLUnsupported) {
			t.Errorf("error = %v, want %v", err, repository.ErrSignedURLUnsupported)
		}
	})
}

func TestHLSService_TriggerPublish(t *testing.T) {
	videoID := uuid.New()

	newVideo := func(status model.HLSStatus) *model.Video {
		return &model.Video{
			ID:        videoID,
			OwnerID:   "owner-1",
			Title:     "clip",
			HLSStatus: status,
		}
	}

	t.Run("marks pending and enqueues", func(t *testing.T) {
		var updatedStatus model.HLSStatus
		repo := &mockVideoRepository{
			getByIDFn: func(ctx context.Context, id uuid.UUID) (*model.Video, error) {
				return newVideo(model.HLSNone), nil
			},
			updateHLSFn: func(ctx context.Context, id uuid.UUID, status model.HLSStatus, playlistURL string) error {
				updatedStatus = status
				return nil
			},
		}

		var published *repository.HLSPublishTask
		queue := &mockMessageQueue{
			publishHLSTaskFn: func(ctx context.Context, task repository.HLSPublishTask) error {
				published = &task
				return nil
			},
		}

		svc := NewHLSService(&mockObjectTier{}, repo, queue)

		if err := svc.TriggerPublish(context.Background(), videoID, "/tmp/hls/out"); err != nil {
			t.Fatalf("TriggerPublish() unexpected error = %v", err)
		}
		if updatedStatus != model.HLSPending {
			t.Errorf("updated status = %v, want %v", updatedStatus, model.HLSPending)
		}
		if published == nil {
			t.Fatal("no task published")
		}
		if published.VideoID != videoID {
			t.Errorf("task video id = %v, want %v", published.VideoID, videoID)
		}
		if published.ArtifactDir != "/tmp/hls/out" {
			t.Errorf("task artifact dir = %q", published.ArtifactDir)
		}
		if published.RetryCount != 0 {
			t.Errorf("task retry count = %d, want 0", published.RetryCount)
		}
	})

	t.Run("failed publish can be re-triggered", func(t *testing.T) {
		repo := &mockVideoRepository{
			getByIDFn: func(ctx context.Context, id uuid.UUID) (*model.Video, error) {
				return newVideo(model.HLSFailed), nil
			},
		}
		published := false
		queue := &mockMessageQueue{
			publishHLSTaskFn: func(ctx context.Context, task repository.HLSPublishTask) error {
				published = true
				return nil
			},
		}

		svc := NewHLSService(&mockObjectTier{}, repo, queue)

		if err := svc.TriggerPublish(context.Background(), videoID, "/tmp/hls/out"); err != nil {
			t.Fatalf("TriggerPublish() unexpected error = %v", err)
		}
		if !published {
			t.Error("expected a republish for a failed video")
		}
	})

	t.Run("in-flight publish is a no-op", func(t *testing.T) {
		for _, status := range []model.HLSStatus{model.HLSPending, model.HLSProcessing} {
			repo := &mockVideoRepository{
				getByIDFn: func(ctx context.Context, id uuid.UUID) (*model.Video, error) {
					return newVideo(status), nil
				},
			}
			queue := &mockMessageQueue{
				publishHLSTaskFn: func(ctx context.Context, task repository.HLSPublishTask) error {
					t.Errorf("task published while %v", status)
					return nil
				},
			}

			svc := NewHLSService(&mockObjectTier{}, repo, queue)

			if err := svc.TriggerPublish(context.Background(), videoID, "/tmp/hls/out"); err != nil {
				t.Errorf("TriggerPublish() while %v: unexpected error = %v", status, err)
			}
		}
	})

	t.Run("ready video cannot be re-published", func(t *testing.T) {
		repo := &mockVideoRepository{
			getByIDFn: func(ctx context.Context, id uuid.UUID) (*model.Video, error) {
				return newVideo(model.HLSReady), nil
			},
		}

		svc := NewHLSService(&mockObjectTier{}, repo, &mockMessageQueue{})

		err := svc.TriggerPublish(context.Background(), videoID, "/tmp/hls/out")
		if !errors.Is(err, model.ErrInvalidTransition) {
			t.Errorf("error = %v, want %v", err, model.ErrInvalidTransition)
		}
	})

	t.Run("video not found", func(t *testing.T) {
		repo := &mockVideoRepository{
			getByIDFn: func(ctx context.Context, id uuid.UUID) (*model.Video, error) {
				return nil, repository.ErrVideoNotFound
			},
		}

		svc := NewHLSService(&mockObjectTier{}, repo, &mockMessageQueue{})

		err := svc.TriggerPublish(context.Background(), videoID, "/tmp/hls/out")
		if !errors.Is(err, repository.ErrVideoNotFound) {
			t.Errorf("error = %v, want %v", err, repository.ErrVideoNotFound)
		}
	})

	t.Run("queue failure surfaces", func(t *testing.T) {
		repo := &mockVideoRepository{
			getByIDFn: func(ctx context.Context, id uuid.UUID) (*model.Video, error) {
				return newVideo(model.HLSNone), nil
			},
		}
		queue := &mockMessageQueue{
			publishHLSTaskFn: func(ctx context.Context, task repository.HLSPublishTask) error {
				return errors.New("broker unreachable")
			},
		}

		svc := NewHLSService(&mockObjectTier{}, repo, queue)

		err := svc.TriggerPublish(context.Background(), videoID, "/tmp/hls/out")
		if err == nil || !strings.Contains(err.Error(), "publish hls task") {
			t.Errorf("error = %v, want wrapped queue error", err)
		}
	})
}
