package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/strata-media/strata/internal/domain/repository"
)

// TierFilesystem is the name of the local fallback tier in logs and metrics.
const TierFilesystem = "filesystem"

// FilesystemTier is the local-disk fallback tier. It mirrors an
// object key under a dedicated directory by its base name, so
// "videos/{id}.mp4" is stored as "{dir}/{id}.mp4". A zero-value
// FilesystemTier is unconfigured. There is no independent access path to
// the directory, so signed URLs are unsupported.
type FilesystemTier struct {
	baseDir string
}

// Compile-time verification that FilesystemTier implements repository.ObjectTier.
var _ repository.ObjectTier = (*FilesystemTier)(nil)

// NewFilesystemTier creates the local fallback tier.
// An empty directory yields an unconfigured tier, which is not an error.
// When configured, the directory is created during initialization to fail
// fast on permission problems.
func NewFilesystemTier(dir string) (*FilesystemTier, error) {
	if dir == "" {
		return &FilesystemTier{}, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create tier directory: %w", err)
	}
	return &FilesystemTier{baseDir: dir}, nil
}

// Name identifies the tier in logs and metrics.
func (t *FilesystemTier) Name() string {
	return TierFilesystem
}

// Configured reports whether a directory was supplied at process start.
func (t *FilesystemTier) Configured() bool {
	return t.baseDir != ""
}

// path flattens the object key to its base name under the tier directory.
func (t *FilesystemTier) path(key string) string {
	return filepath.Join(t.baseDir, filepath.Base(filepath.FromSlash(key)))
}

// Put stores an object as a local file. The write goes through a temporary
// file and rename so a crashed upload never leaves a truncated object
// behind. The declared content type has no local representation and is
// re-derived from the file extension on read.
func (t *FilesystemTier) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	if !t.Configured() {
		return repository.ErrTierNotConfigured
	}

	dst := t.path(key)
	tmp, err := os.CreateTemp(t.baseDir, filepath.Base(dst)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := io.Copy(tmp, reader); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), dst); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to finalize object: %w", err)
	}
	return nil
}

// Head retrieves object metadata without opening the file contents.
func (t *FilesystemTier) Head(ctx context.Context, key string) (repository.ObjectInfo, error) {
	if !t.Configured() {
		return repository.ObjectInfo{}, repository.ErrTierNotConfigured
	}

	fi, err := os.Stat(t.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return repository.ObjectInfo{}, repository.ErrObjectNotFound
		}
		return repository.ObjectInfo{}, fmt.Errorf("failed to stat file: %w", err)
	}

	return repository.ObjectInfo{
		Key:          key,
		Size:         fi.Size(),
		ContentType:  mime.TypeByExtension(filepath.Ext(key)),
		LastModified: fi.ModTime(),
	}, nil
}

// sectionReadCloser pairs a SectionReader over an open file with the
// file's Close.
type sectionReadCloser struct {
	*io.SectionReader
	f *os.File
}

func (s *sectionReadCloser) Close() error {
	return s.f.Close()
}

// OpenRange opens a read for exactly the inclusive byte range [start, end].
// Caller is responsible for closing the returned ReadCloser.
func (t *FilesystemTier) OpenRange(ctx context.Context, key string, start, end int64) (io.ReadCloser, error) {
	if !t.Configured() {
		return nil, repository.ErrTierNotConfigured
	}

	f, err := os.Open(t.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, repository.ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return &sectionReadCloser{
		SectionReader: io.NewSectionReader(f, start, end-start+1),
		f:             f,
	}, nil
}

// Delete removes the backing file, tolerating its absence.
func (t *FilesystemTier) Delete(ctx context.Context, key string) error {
	if !t.Configured() {
		return repository.ErrTierNotConfigured
	}

	if err := os.Remove(t.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// SignedGetURL is unsupported: the directory has no independent access path.
func (t *FilesystemTier) SignedGetURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if !t.Configured() {
		return "", repository.ErrTierNotConfigured
	}
	return "", repository.ErrSignedURLUnsupported
}
