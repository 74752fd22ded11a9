package repository

import "errors"

var (
	// ErrVideoNotFound is returned when a video record cannot be found.
	ErrVideoNotFound = errors.New("video not found")

	// ErrDuplicateVideo is returned when attempting to create a video that already exists.
	ErrDuplicateVideo = errors.New("video already exists")

	// ErrObjectNotFound is returned when an object is absent from a tier,
	// or from every configured tier when returned by the router.
	ErrObjectNotFound = errors.New("object not found")

	// ErrTierNotConfigured is returned by a tier client whose backing
	// credentials were not supplied at process start. The router skips
	// such tiers cheaply.
	ErrTierNotConfigured = errors.New("storage tier not configured")

	// ErrNoTierConfigured is returned when no storage tier at all is
	// configured for the deployment.
	ErrNoTierConfigured = errors.New("no storage tier configured")

	// ErrSignedURLUnsupported is returned when a tier has no independent
	// access path for pre-authorized URLs (e.g., the filesystem tier).
	ErrSignedURLUnsupported = errors.New("signed URLs not supported by this tier")

	// ErrBucketNotFound is returned when the configured bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")
)
