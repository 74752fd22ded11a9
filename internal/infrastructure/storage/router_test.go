package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/strata-media/strata/internal/domain/repository"
)

// fakeTier implements repository.ObjectTier with function fields.
type fakeTier struct {
	name       string
	configured bool

	putFunc       func(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	headFunc      func(ctx context.Context, key string) (repository.ObjectInfo, error)
	openRangeFunc func(ctx context.Context, key string, start, end int64) (io.ReadCloser, error)
	deleteFunc    func(ctx context.Context, key string) error

	mu      sync.Mutex
	puts    int
	heads   int
	deletes int
}

func (f *fakeTier) Name() string     { return f.name }
func (f *fakeTier) Configured() bool { return f.configured }

func (f *fakeTier) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	f.mu.Lock()
	f.puts++
	f.mu.Unlock()
	if f.putFunc != nil {
		return f.putFunc(ctx, key, reader, size, contentType)
	}
	return nil
}

func (f *fakeTier) Head(ctx context.Context, key string) (repository.ObjectInfo, error) {
	f.mu.Lock()
	f.heads++
	f.mu.Unlock()
	if f.headFunc != nil {
		return f.headFunc(ctx, key)
	}
	return repository.ObjectInfo{}, repository.ErrObjectNotFound
}

func (f *fakeTier) OpenRange(ctx context.Context, key string, start, end int64) (io.ReadCloser, error) {
	if f.openRangeFunc != nil {
		return f.openRangeFunc(ctx, key, start, end)
	}
	return nil, repository.ErrObjectNotFound
}

func (f *fakeTier) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	f.deletes++
	f.mu.Unlock()
	if f.deleteFunc != nil {
		return f.deleteFunc(ctx, key)
	}
	return nil
}

func (f *fakeTier) SignedGetURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "", repository.ErrSignedURLUnsupported
}

func (f *fakeTier) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.puts
}

func (f *fakeTier) deleteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deletes
}

// memResidency is an in-memory TierResidency for testing.
type memResidency struct {
	mu sync.Mutex
	m  map[string]string
}

func newMemResidency() *memResidency {
	return &memResidency{m: make(map[string]string)}
}

func (r *memResidency) GetTier(ctx context.Context, key string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m[key], nil
}

func (r *memResidency) SetTier(ctx context.Context, key, tier string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[key] = tier
	return nil
}

func (r *memResidency) Forget(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, key)
	return nil
}

func TestRouter_Put_FirstConfiguredTierWins(t *testing.T) {
	primary := &fakeTier{name: "primary", configured: true}
	secondary := &fakeTier{name: "secondary", configured: true}

	router := NewRouter([]repository.ObjectTier{primary, secondary}, nil, DefaultRouterConfig())

	tierName, err := router.Put(context.Background(), "videos/v1.mp4", bytes.NewReader([]byte("data")), 4, "video/mp4")
	if err != nil {
		t.Fatalf("Put() unexpected error = %v", err)
	}
	if tierName != "primary" {
		t.Errorf("Put() tier = %q, want primary", tierName)
	}
	if secondary.putCount() != 0 {
		t.Errorf("secondary received %d puts, want 0", secondary.putCount())
	}
}

func TestRouter_Put_FallsBackOnFailure(t *testing.T) {
	primary := &fakeTier{
		name:       "primary",
		configured: true,
		putFunc: func(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
			// Consume part of the reader before failing so fallback
			// depends on a rewind.
			_, _ = io.CopyN(io.Discard, reader, 2)
			return errors.New("bucket unavailable")
		},
	}

	var received []byte
	secondary := &fakeTier{
		name:       "secondary",
		configured: true,
		putFunc: func(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
			b, err := io.ReadAll(reader)
			if err != nil {
				return err
			}
			received = b
			return nil
		},
	}

	router := NewRouter([]repository.ObjectTier{primary, secondary}, nil, DefaultRouterConfig())

	tierName, err := router.Put(context.Background(), "videos/v1.mp4", bytes.NewReader([]byte("data")), 4, "video/mp4")
	if err != nil {
		t.Fatalf("Put() unexpected error = %v", err)
	}
	if tierName != "secondary" {
		t.Errorf("Put() tier = %q, want secondary", tierName)
	}
	if string(received) != "data" {
		t.Errorf("secondary received %q, want full payload after rewind", received)
	}
}

func TestRouter_Put_SkipsUnconfiguredTiers(t *testing.T) {
	primary := &fakeTier{name: "primary", configured: false}
	fallback := &fakeTier{name: "fallback", configured: true}

	router := NewRouter([]repository.ObjectTier{primary, fallback}, nil, DefaultRouterConfig())

	tierName, err := router.Put(context.Background(), "videos/v1.mp4", bytes.NewReader([]byte("data")), 4, "video/mp4")
	if err != nil {
		t.Fatalf("Put() unexpected error = %v", err)
	}
	if tierName != "fallback" {
		t.Errorf("Put() tier = %q, want fallback", tierName)
	}
	if primary.putCount() != 0 {
		t.Errorf("unconfigured tier received %d puts, want 0", primary.putCount())
	}
}

func TestRouter_Put_AllTiersFail(t *testing.T) {
	fail := func(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
		return errors.New("unavailable")
	}
	primary := &fakeTier{name: "primary", configured: true, putFunc: fail}
	secondary := &fakeTier{name: "secondary", configured: true, putFunc: fail}

	router := NewRouter([]repository.ObjectTier{primary, secondary}, nil, DefaultRouterConfig())

	_, err := router.Put(context.Background(), "videos/v1.mp4", bytes.NewReader([]byte("data")), 4, "video/mp4")
	if err == nil {
		t.Fatal("Put() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "all tiers failed") {
		t.Errorf("Put() error = %v, want aggregated failure", err)
	}
	if !strings.Contains(err.Error(), "primary") || !strings.Contains(err.Error(), "secondary") {
		t.Errorf("Put() error = %v, want both tier names", err)
	}
}

func TestRouter_Put_NoTierConfigured(t *testing.T) {
	router := NewRouter([]repository.ObjectTier{
		&fakeTier{name: "primary"},
		&fakeTier{name: "secondary"},
	}, nil, DefaultRouterConfig())

	_, err := router.Put(context.Background(), "videos/v1.mp4", bytes.NewReader(nil), 0, "video/mp4")
	if !errors.Is(err, repository.ErrNoTierConfigured) {
		t.Errorf("Put() error = %v, want %v", err, repository.ErrNoTierConfigured)
	}
}

func TestRouter_Head_ProbesInOrder(t *testing.T) {
	primary := &fakeTier{name: "primary", configured: true} // defaults to not found
	secondary := &fakeTier{
		name:       "secondary",
		configured: true,
		headFunc: func(ctx context.Context, key string) (repository.ObjectInfo, error) {
			return repository.ObjectInfo{Key: key, Size: 1024}, nil
		},
	}
	tertiary := &fakeTier{name: "tertiary", configured: true}

	router := NewRouter([]repository.ObjectTier{primary, secondary, tertiary}, nil, DefaultRouterConfig())

	info, err := router.Head(context.Background(), "videos/v1.mp4")
	if err != nil {
		t.Fatalf("Head() unexpected error = %v", err)
	}
	if info.Size != 1024 {
		t.Errorf("Head() size = %d, want 1024", info.Size)
	}
	if tertiary.heads != 0 {
		t.Errorf("tertiary probed %d times after a hit upstream, want 0", tertiary.heads)
	}
}

func TestRouter_Head_NotFoundAnywhere(t *testing.T) {
	router := NewRouter([]repository.ObjectTier{
		&fakeTier{name: "primary", configured: true},
		&fakeTier{name: "secondary", configured: true},
	}, nil, DefaultRouterConfig())

	_, err := router.Head(context.Background(), "videos/missing.mp4")
	if !errors.Is(err, repository.ErrObjectNotFound) {
		t.Errorf("Head() error = %v, want %v", err, repository.ErrObjectNotFound)
	}
}

func TestRouter_Head_TransientErrorOnNonFinalTier(t *testing.T) {
	primary := &fakeTier{
		name:       "primary",
		configured: true,
		headFunc: func(ctx context.Context, key string) (repository.ObjectInfo, error) {
			return repository.ObjectInfo{}, errors.New("connection refused")
		},
	}
	secondary := &fakeTier{
		name:       "secondary",
		configured: true,
		headFunc: func(ctx context.Context, key string) (repository.ObjectInfo, error) {
			return repository.ObjectInfo{Key: key, Size: 7}, nil
		},
	}

	router := NewRouter([]repository.ObjectTier{primary, secondary}, nil, DefaultRouterConfig())

	info, err := router.Head(context.Background(), "videos/v1.mp4")
	if err != nil {
		t.Fatalf("Head() unexpected error = %v", err)
	}
	if info.Size != 7 {
		t.Errorf("Head() size = %d, want 7", info.Size)
	}
}

func TestRouter_Head_FinalTierErrorSurfaces(t *testing.T) {
	primary := &fakeTier{name: "primary", configured: true} // not found
	secondary := &fakeTier{
		name:       "secondary",
		configured: true,
		headFunc: func(ctx context.Context, key string) (repository.ObjectInfo, error) {
			return repository.ObjectInfo{}, errors.New("connection refused")
		},
	}

	router := NewRouter([]repository.ObjectTier{primary, secondary}, nil, DefaultRouterConfig())

	_, err := router.Head(context.Background(), "videos/v1.mp4")
	if err == nil {
		t.Fatal("Head() expected error, got nil")
	}
	if errors.Is(err, repository.ErrObjectNotFound) {
		t.Errorf("Head() error = %v, want the transport error, not not-found", err)
	}
	if !strings.Contains(err.Error(), "secondary") {
		t.Errorf("Head() error = %v, want tier name in wrap", err)
	}
}

func TestRouter_Head_NoTierConfigured(t *testing.T) {
	router := NewRouter([]repository.ObjectTier{&fakeTier{name: "primary"}}, nil, DefaultRouterConfig())

	_, err := router.Head(context.Background(), "videos/v1.mp4")
	if !errors.Is(err, repository.ErrNoTierConfigured) {
		t.Errorf("Head() error = %v, want %v", err, repository.ErrNoTierConfigured)
	}
}

func TestRouter_OpenRange_ProbesInOrder(t *testing.T) {
	primary := &fakeTier{name: "primary", configured: true} // not found
	secondary := &fakeTier{
		name:       "secondary",
		configured: true,
		openRangeFunc: func(ctx context.Context, key string, start, end int64) (io.ReadCloser, error) {
			if start != 2 || end != 5 {
				t.Errorf("range = [%d,%d], want [2,5]", start, end)
			}
			return io.NopCloser(strings.NewReader("2345")), nil
		},
	}

	router := NewRouter([]repository.ObjectTier{primary, secondary}, nil, DefaultRouterConfig())

	rc, err := router.OpenRange(context.Background(), "videos/v1.mp4", 2, 5)
	if err != nil {
		t.Fatalf("OpenRange() unexpected error = %v", err)
	}
	defer rc.Close()

	got, _ := io.ReadAll(rc)
	if string(got) != "2345" {
		t.Errorf("OpenRange() = %q, want %q", got, "2345")
	}
}

func TestRouter_Delete_AllTiersToleratingNotFound(t *testing.T) {
	primary := &fakeTier{name: "primary", configured: true}
	secondary := &fakeTier{
		name:       "secondary",
		configured: true,
		deleteFunc: func(ctx context.Context, key string) error {
			return repository.ErrObjectNotFound
		},
	}
	unconfigured := &fakeTier{name: "tertiary"}

	router := NewRouter([]repository.ObjectTier{primary, secondary, unconfigured}, nil, DefaultRouterConfig())

	if err := router.Delete(context.Background(), "videos/v1.mp4"); err != nil {
		t.Fatalf("Delete() unexpected error = %v", err)
	}
	if primary.deleteCount() != 1 {
		t.Errorf("primary deletes = %d, want 1", primary.deleteCount())
	}
	if secondary.deleteCount() != 1 {
		t.Errorf("secondary deletes = %d, want 1", secondary.deleteCount())
	}
	if unconfigured.deleteCount() != 0 {
		t.Errorf("unconfigured tier deletes = %d, want 0", unconfigured.deleteCount())
	}
}

func TestRouter_Delete_SurfacesTransportError(t *testing.T) {
	primary := &fakeTier{
		name:       "primary",
		configured: true,
		deleteFunc: func(ctx context.Context, key string) error {
			return errors.New("connection refused")
		},
	}

	router := NewRouter([]repository.ObjectTier{primary}, nil, DefaultRouterConfig())

	err := router.Delete(context.Background(), "videos/v1.mp4")
	if err == nil {
		t.Fatal("Delete() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "primary") {
		t.Errorf("Delete() error = %v, want tier name in wrap", err)
	}
}

func TestRouter_ResidencyHintSkipsProbing(t *testing.T) {
	primary := &fakeTier{name: "primary", configured: true} // would answer not found
	secondary := &fakeTier{
		name:       "secondary",
		configured: true,
		headFunc: func(ctx context.Context, key string) (repository.ObjectInfo, error) {
			return repository.ObjectInfo{Key: key, Size: 99}, nil
		},
	}

	residency := newMemResidency()
	if err := residency.SetTier(context.Background(), "videos/v1.mp4", "secondary"); err != nil {
		t.Fatal(err)
	}

	router := NewRouter([]repository.ObjectTier{primary, secondary}, residency, DefaultRouterConfig())

	info, err := router.Head(context.Background(), "videos/v1.mp4")
	if err != nil {
		t.Fatalf("Head() unexpected error = %v", err)
	}
	if info.Size != 99 {
		t.Errorf("Head() size = %d, want 99", info.Size)
	}
	if primary.heads != 0 {
		t.Errorf("primary probed %d times despite hint, want 0", primary.heads)
	}
}

func TestRouter_StaleResidencyHintFallsBack(t *testing.T) {
	primary := &fakeTier{
		name:       "primary",
		configured: true,
		headFunc: func(ctx context.Context, key string) (repository.ObjectInfo, error) {
			return repository.ObjectInfo{Key: key, Size: 42}, nil
		},
	}
	secondary := &fakeTier{name: "secondary", configured: true} // hinted but empty

	residency := newMemResidency()
	if err := residency.SetTier(context.Background(), "videos/v1.mp4", "secondary"); err != nil {
		t.Fatal(err)
	}

	router := NewRouter([]repository.ObjectTier{primary, secondary}, residency, DefaultRouterConfig())

	info, err := router.Head(context.Background(), "videos/v1.mp4")
	if err != nil {
		t.Fatalf("Head() unexpected error = %v", err)
	}
	if info.Size != 42 {
		t.Errorf("Head() size = %d, want 42", info.Size)
	}

	// The stale hint must be dropped, then refreshed by the full probe.
	tier, err := residency.GetTier(context.Background(), "videos/v1.mp4")
	if err != nil {
		t.Fatal(err)
	}
	if tier != "primary" {
		t.Errorf("residency after probe = %q, want primary", tier)
	}
}
