package repository

import (
	"context"
	"io"
	"time"
)

// ObjectInfo contains metadata about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// ObjectTier is one independently-configured storage backend in the
// fallback chain. Implementations are provided by the infrastructure
// layer (MinIO, S3, local filesystem).
type ObjectTier interface {
	// Name identifies the tier in logs and metrics. Never exposed to clients.
	Name() string

	// Configured reports whether the tier received credentials at process
	// start. An unconfigured tier returns ErrTierNotConfigured from every
	// operation.
	Configured() bool

	// Put stores an object. size may be -1 when unknown.
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Head retrieves object metadata without the body.
	// Returns ErrObjectNotFound if the object does not exist on this tier.
	Head(ctx context.Context, key string) (ObjectInfo, error)

	// OpenRange opens a read for exactly the inclusive byte range [start, end].
	// Caller is responsible for closing the returned ReadCloser.
	OpenRange(ctx context.Context, key string, start, end int64) (io.ReadCloser, error)

	// Delete removes an object. Deleting a nonexistent object is not an error.
	Delete(ctx context.Context, key string) error

	// SignedGetURL creates a time-limited pre-authorized URL for direct
	// client access. Returns ErrSignedURLUnsupported if the tier has no
	// native signing mechanism.
	SignedGetURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// ObjectRouter resolves reads and writes across the ordered tier chain.
// It owns no state; tier residency of an object is discovered by probing.
type ObjectRouter interface {
	// Put writes to the first configured tier that accepts the object and
	// returns that tier's name. If every configured tier fails, the
	// aggregated error is returned.
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error)

	// Head probes tiers in preference order and returns the first definite hit.
	// Returns ErrObjectNotFound if the object is absent from every tier.
	Head(ctx context.Context, key string) (ObjectInfo, error)

	// OpenRange opens a range read against the tier currently holding the object.
	OpenRange(ctx context.Context, key string, start, end int64) (io.ReadCloser, error)

	// Delete attempts removal from every configured tier, tolerating
	// not-found on tiers where the object never existed.
	Delete(ctx context.Context, key string) error
}
