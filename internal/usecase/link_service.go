package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/strata-media/strata/internal/domain/repository"
	"github.com/strata-media/strata/internal/infrastructure/metrics"
)

// DefaultSignedURLTTL is the expiry applied when the caller does not
// request one.
const DefaultSignedURLTTL = time.Hour

// LinkService issues expiring direct-download URLs for video objects.
// Only the primary tier can sign; callers fall back to the app streaming
// path when signing is unsupported.
type LinkService interface {
	// SignedVideoURL returns a presigned GET URL for the video object.
	// ttl <= 0 selects DefaultSignedURLTTL. Returns
	// repository.ErrSignedURLUnsupported when the primary tier is not
	// configured, and repository.ErrObjectNotFound when the object is not
	// on the primary tier.
	SignedVideoURL(ctx context.Context, videoID uuid.UUID, ttl time.Duration) (string, error)
}

type linkService struct {
	primary repository.ObjectTier
}

// NewLinkService creates a LinkService signing against the primary tier.
func NewLinkService(primary repository.ObjectTier) LinkService {
	return &linkService{primary: primary}
}

// SignedVideoURL verifies the object exists on the primary tier, then
// delegates to the tier's signing mechanism. The URL grants access to the
// one object only, for the TTL only.
func (s *linkService) SignedVideoURL(ctx context.Context, videoID uuid.UUID, ttl time.Duration) (string, error) {
	if s.primary == nil || !s.primary.Configured() {
		return "", repository.ErrSignedURLUnsupported
	}

	if ttl <= 0 {
		ttl = DefaultSignedURLTTL
	}

	key := videoKey(videoID)

	// A signed URL for an absent object would only defer the 404 to the
	// store; verify up front.
	if _, err := s.primary.Head(ctx, key); err != nil {
		return "", err
	}

	url, err := s.primary.SignedGetURL(ctx, key, ttl)
	if err != nil {
		metrics.TierOperationsTotal.WithLabelValues(s.primary.Name(), metrics.TierOpSign, metrics.TierStatusError).Inc()
		return "", fmt.Errorf("sign video url %s: %w", videoID, err)
	}

	metrics.TierOperationsTotal.WithLabelValues(s.primary.Name(), metrics.TierOpSign, metrics.TierStatusSuccess).Inc()
	return url, nil
}
