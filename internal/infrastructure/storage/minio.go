package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/strata-media/strata/internal/domain/repository"
)

// TierMinIO is the name of the primary tier in logs and metrics.
const TierMinIO = "minio"

// objectReader abstracts minio.Object for testability.
// *minio.Object satisfies this interface.
type objectReader interface {
	io.ReadCloser
	Stat() (minio.ObjectInfo, error)
}

// minioClient defines the interface for MinIO operations.
// This abstraction allows for easier unit testing with mocks.
type minioClient interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (objectReader, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
}

// minioClientAdapter wraps *minio.Client to implement minioClient.
// Necessary because *minio.Client.GetObject returns *minio.Object,
// but our interface returns objectReader for testability.
type minioClientAdapter struct {
	client *minio.Client
}

func (a *minioClientAdapter) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	return a.client.BucketExists(ctx, bucketName)
}

func (a *minioClientAdapter) PresignedGetObject(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error) {
	return a.client.PresignedGetObject(ctx, bucketName, objectName, expiry, reqParams)
}

func (a *minioClientAdapter) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	return a.client.PutObject(ctx, bucketName, objectName, reader, objectSize, opts)
}

func (a *minioClientAdapter) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (objectReader, error) {
	return a.client.GetObject(ctx, bucketName, objectName, opts)
}

func (a *minioClientAdapter) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	return a.client.RemoveObject(ctx, bucketName, objectName, opts)
}

func (a *minioClientAdapter) StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	return a.client.StatObject(ctx, bucketName, objectName, opts)
}

// MinIOTierConfig holds configuration for the primary tier.
type MinIOTierConfig struct {
	Endpoint       string
	PublicEndpoint string // Optional: external-facing endpoint for presigned URLs
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
}

// MinIOTier is the primary S3-compatible tier, backed by MinIO.
// A zero-value MinIOTier is unconfigured and reports ErrTierNotConfigured
// from every operation.
type MinIOTier struct {
	client          minioClient
	presignedClient minioClient // Separate client for presigned URLs (may use public endpoint)
	bucket          string
}

// Compile-time verification that MinIOTier implements repository.ObjectTier.
var _ repository.ObjectTier = (*MinIOTier)(nil)

// NewMinIOTier creates the primary tier client.
// An empty endpoint yields an unconfigured tier, which is not an error:
// the router skips it. When configured, the bucket is verified during
// initialization to fail fast on misconfiguration.
func NewMinIOTier(ctx context.Context, cfg MinIOTierConfig) (*MinIOTier, error) {
	if cfg.Endpoint == "" {
		return &MinIOTier{}, nil
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	adapter := &minioClientAdapter{client: client}

	var presignedAdapter minioClient = adapter
	if cfg.PublicEndpoint != "" {
		presignedClient, err := minio.New(cfg.PublicEndpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: cfg.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create presigned minio client: %w", err)
		}
		presignedAdapter = &minioClientAdapter{client: presignedClient}
	}

	return newMinIOTierWithClient(ctx, adapter, presignedAdapter, cfg.Bucket)
}

// newMinIOTierWithClient creates a MinIOTier with a given minioClient
// implementation. This is used for dependency injection in tests.
func newMinIOTierWithClient(ctx context.Context, client, presignedClient minioClient, bucket string) (*MinIOTier, error) {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", repository.ErrBucketNotFound, bucket)
	}

	return &MinIOTier{
		client:          client,
		presignedClient: presignedClient,
		bucket:          bucket,
	}, nil
}

// Name identifies the tier in logs and metrics.
func (t *MinIOTier) Name() string {
	return TierMinIO
}

// Configured reports whether credentials were supplied at process start.
func (t *MinIOTier) Configured() bool {
	return t.client != nil
}

// Put stores an object in the bucket.
func (t *MinIOTier) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	if !t.Configured() {
		return repository.ErrTierNotConfigured
	}

	_, err := t.client.PutObject(ctx, t.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to put object: %w", err)
	}
	return nil
}

// Head retrieves object metadata without the body.
func (t *MinIOTier) Head(ctx context.Context, key string) (repository.ObjectInfo, error) {
	if !t.Configured() {
		return repository.ObjectInfo{}, repository.ErrTierNotConfigured
	}

	info, err := t.client.StatObject(ctx, t.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return repository.ObjectInfo{}, repository.ErrObjectNotFound
		}
		return repository.ObjectInfo{}, fmt.Errorf("failed to stat object: %w", err)
	}

	return repository.ObjectInfo{
		Key:          key,
		Size:         info.Size,
		ContentType:  info.ContentType,
		LastModified: info.LastModified,
	}, nil
}

// OpenRange opens a read for exactly the inclusive byte range [start, end].
// Caller is responsible for closing the returned ReadCloser.
func (t *MinIOTier) OpenRange(ctx context.Context, key string, start, end int64) (io.ReadCloser, error) {
	if !t.Configured() {
		return nil, repository.ErrTierNotConfigured
	}

	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(start, end); err != nil {
		return nil, fmt.Errorf("invalid range [%d, %d]: %w", start, end, err)
	}

	obj, err := t.client.GetObject(ctx, t.bucket, key, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}

	// GetObject returns a lazy reader that doesn't fail until read.
	// Stat forces the request so absence surfaces here, not mid-stream.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, repository.ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to stat object: %w", err)
	}

	return obj, nil
}

// Delete removes an object. MinIO treats removal of a nonexistent object
// as success, which matches the tolerated-not-found contract.
func (t *MinIOTier) Delete(ctx context.Context, key string) error {
	if !t.Configured() {
		return repository.ErrTierNotConfigured
	}

	if err := t.client.RemoveObject(ctx, t.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// SignedGetURL creates a presigned download URL.
// Uses presignedClient which may be configured with a public endpoint.
func (t *MinIOTier) SignedGetURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if !t.Configured() {
		return "", repository.ErrTierNotConfigured
	}

	reqParams := make(url.Values)
	presignedURL, err := t.presignedClient.PresignedGetObject(ctx, t.bucket, key, expiry, reqParams)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return presignedURL.String(), nil
}

// Ping verifies the MinIO connection is alive by checking bucket access.
func (t *MinIOTier) Ping(ctx context.Context) error {
	if !t.Configured() {
		return repository.ErrTierNotConfigured
	}

	if _, err := t.client.BucketExists(ctx, t.bucket); err != nil {
		return fmt.Errorf("failed to ping minio: %w", err)
	}
	return nil
}
