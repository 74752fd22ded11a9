package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/strata-media/strata/internal/domain/repository"
)

// TierS3 is the name of the secondary tier in logs and metrics.
const TierS3 = "s3"

// s3API defines the subset of the S3 client used by the tier.
// This abstraction allows for easier unit testing with fakes.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// s3Presigner defines the presigning subset of the S3 presign client.
type s3Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4PresignedRequest, error)
}

// v4PresignedRequest carries the only field we consume from the SDK's
// presigned request type.
type v4PresignedRequest struct {
	URL string
}

// presignAdapter wraps *s3.PresignClient to implement s3Presigner.
type presignAdapter struct {
	client *s3.PresignClient
}

func (a *presignAdapter) PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4PresignedRequest, error) {
	req, err := a.client.PresignGetObject(ctx, params, optFns...)
	if err != nil {
		return nil, err
	}
	return &v4PresignedRequest{URL: req.URL}, nil
}

// S3TierConfig holds configuration for the secondary tier.
type S3TierConfig struct {
	Region         string
	Bucket         string
	Endpoint       string // Optional: custom endpoint for S3-compatible stores
	AccessKey      string
	SecretKey      string
	ForcePathStyle bool
}

// S3Tier is the secondary managed object store tier, backed by
// the AWS S3 API. A zero-value S3Tier is unconfigured.
type S3Tier struct {
	api       s3API
	presigner s3Presigner
	bucket    string
}

// Compile-time verification that S3Tier implements repository.ObjectTier.
var _ repository.ObjectTier = (*S3Tier)(nil)

// NewS3Tier creates the secondary tier client.
// An empty bucket yields an unconfigured tier, which is not an error.
func NewS3Tier(ctx context.Context, cfg S3TierConfig) (*S3Tier, error) {
	if cfg.Bucket == "" {
		return &S3Tier{}, nil
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return newS3TierWithAPI(client, &presignAdapter{client: s3.NewPresignClient(client)}, cfg.Bucket), nil
}

// newS3TierWithAPI creates an S3Tier with a given API implementation.
// This is used for dependency injection in tests.
func newS3TierWithAPI(api s3API, presigner s3Presigner, bucket string) *S3Tier {
	return &S3Tier{
		api:       api,
		presigner: presigner,
		bucket:    bucket,
	}
}

// Name identifies the tier in logs and metrics.
func (t *S3Tier) Name() string {
	return TierS3
}

// Configured reports whether credentials were supplied at process start.
func (t *S3Tier) Configured() bool {
	return t.api != nil
}

// Put stores an object in the bucket.
func (t *S3Tier) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	if !t.Configured() {
		return repository.ErrTierNotConfigured
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(t.bucket),
		Key:         aws.String(key),
		Body:        reader,
		ContentType: aws.String(contentType),
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}

	if _, err := t.api.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}

// Head retrieves object metadata without the body.
func (t *S3Tier) Head(ctx context.Context, key string) (repository.ObjectInfo, error) {
	if !t.Configured() {
		return repository.ObjectInfo{}, repository.ErrTierNotConfigured
	}

	out, err := t.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return repository.ObjectInfo{}, repository.ErrObjectNotFound
		}
		return repository.ObjectInfo{}, fmt.Errorf("failed to head object %s: %w", key, err)
	}

	info := repository.ObjectInfo{Key: key}
	if out.ContentLength != nil {
		info.Size = *out.ContentLength
	}
	if out.ContentType != nil {
		info.ContentType = *out.ContentType
	}
	if out.LastModified != nil {
		info.LastModified = *out.LastModified
	}
	return info, nil
}

// OpenRange opens a read for exactly the inclusive byte range [start, end].
// Caller is responsible for closing the returned ReadCloser.
func (t *S3Tier) OpenRange(ctx context.Context, key string, start, end int64) (io.ReadCloser, error) {
	if !t.Configured() {
		return nil, repository.ErrTierNotConfigured
	}

	out, err := t.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", start, end)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, repository.ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	return out.Body, nil
}

// Delete removes an object. S3 DeleteObject succeeds for nonexistent keys,
// which matches the tolerated-not-found contract.
func (t *S3Tier) Delete(ctx context.Context, key string) error {
	if !t.Configured() {
		return repository.ErrTierNotConfigured
	}

	if _, err := t.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// SignedGetURL creates a presigned download URL.
func (t *S3Tier) SignedGetURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if !t.Configured() {
		return "", repository.ErrTierNotConfigured
	}

	req, err := t.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return req.URL, nil
}

// isS3NotFound reports whether err means the object does not exist.
func isS3NotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
