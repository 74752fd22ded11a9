package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/strata-media/strata/internal/domain/repository"
	"github.com/strata-media/strata/internal/infrastructure/metrics"
	"golang.org/x/sync/errgroup"
)

// TierResidency caches which tier last served an object, keyed by object
// key. It is a pure optimization: a stale or missing entry only costs
// extra probes, never a wrong answer.
type TierResidency interface {
	// GetTier returns the cached tier name for a key, or "" on miss.
	GetTier(ctx context.Context, key string) (string, error)

	// SetTier records the tier currently holding a key.
	SetTier(ctx context.Context, key, tier string) error

	// Forget drops the cached residency for a key.
	Forget(ctx context.Context, key string) error
}

// RouterConfig holds configuration for the Router.
type RouterConfig struct {
	// HeadTimeout bounds each per-tier head probe so a hung tier cannot
	// hang the request that gates on it.
	HeadTimeout time.Duration
}

// DefaultRouterConfig returns a RouterConfig with sensible defaults.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		HeadTimeout: 10 * time.Second,
	}
}

// Router orchestrates reads and writes across the ordered tier chain.
// It owns no persistent state: which tier holds an object is discovered by
// probing tiers in preference order, at most one negative round-trip per
// absent tier.
type Router struct {
	tiers       []repository.ObjectTier
	residency   TierResidency // optional; nil disables the residency cache
	headTimeout time.Duration
}

// Compile-time verification that Router implements repository.ObjectRouter.
var _ repository.ObjectRouter = (*Router)(nil)

// NewRouter creates a Router over tiers in fixed preference order.
// residency may be nil. Having no configured tier at all is a deployment
// problem worth surfacing at startup, but not an error: every operation
// will report ErrNoTierConfigured.
func NewRouter(tiers []repository.ObjectTier, residency TierResidency, cfg RouterConfig) *Router {
	configured := 0
	for _, tier := range tiers {
		if tier.Configured() {
			configured++
		}
	}
	if configured == 0 {
		slog.Warn("no storage tier configured; all storage operations will fail")
	}

	headTimeout := cfg.HeadTimeout
	if headTimeout <= 0 {
		headTimeout = DefaultRouterConfig().HeadTimeout
	}

	return &Router{
		tiers:       tiers,
		residency:   residency,
		headTimeout: headTimeout,
	}
}

// Put writes to the first configured tier that accepts the object and
// returns that tier's name. Failures cascade silently to the next tier;
// each is logged. If every configured tier fails, the aggregated error is
// returned and nothing is recorded.
func (r *Router) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	var errs []error

	for _, tier := range r.tiers {
		if !tier.Configured() {
			metrics.TierOperationsTotal.WithLabelValues(tier.Name(), metrics.TierOpPut, metrics.TierStatusSkipped).Inc()
			continue
		}

		if err := tier.Put(ctx, key, reader, size, contentType); err != nil {
			metrics.TierOperationsTotal.WithLabelValues(tier.Name(), metrics.TierOpPut, metrics.TierStatusError).Inc()
			slog.Warn("tier write failed, trying next tier",
				slog.String("tier", tier.Name()),
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", tier.Name(), err))

			// A partially consumed reader cannot be replayed on the next
			// tier unless it supports seeking back to the start.
			if seeker, ok := reader.(io.Seeker); ok {
				if _, serr := seeker.Seek(0, io.SeekStart); serr != nil {
					return "", fmt.Errorf("failed to rewind staged reader after %s: %w", tier.Name(), serr)
				}
				continue
			}
			return "", errors.Join(errs...)
		}

		metrics.TierOperationsTotal.WithLabelValues(tier.Name(), metrics.TierOpPut, metrics.TierStatusSuccess).Inc()
		r.cacheResidency(ctx, key, tier.Name())
		return tier.Name(), nil
	}

	if len(errs) == 0 {
		return "", repository.ErrNoTierConfigured
	}
	return "", fmt.Errorf("all tiers failed: %w", errors.Join(errs...))
}

// Head probes tiers in preference order and returns the first definite hit.
// A not-found on one tier means "try the next"; so does a transient error
// on a non-final tier. An error on the last configured tier surfaces.
// Each probe carries its own bounded timeout.
func (r *Router) Head(ctx context.Context, key string) (repository.ObjectInfo, error) {
	if hinted := r.hintedTier(ctx, key); hinted != nil {
		info, err := r.headTier(ctx, hinted, key)
		if err == nil {
			return info, nil
		}
		// The hint is stale or the tier is struggling; fall through to the
		// full ordered probe.
		r.forgetResidency(ctx, key)
	}

	var lastErr error
	configured := 0

	for _, tier := range r.tiers {
		if !tier.Configured() {
			continue
		}
		configured++

		info, err := r.headTier(ctx, tier, key)
		if err == nil {
			r.cacheResidency(ctx, key, tier.Name())
			return info, nil
		}
		if errors.Is(err, repository.ErrObjectNotFound) {
			lastErr = nil
			continue
		}

		slog.Warn("tier head failed",
			slog.String("tier", tier.Name()),
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		lastErr = fmt.Errorf("%s: %w", tier.Name(), err)
	}

	if configured == 0 {
		return repository.ObjectInfo{}, repository.ErrNoTierConfigured
	}
	if lastErr != nil {
		return repository.ObjectInfo{}, lastErr
	}
	return repository.ObjectInfo{}, repository.ErrObjectNotFound
}

// headTier stats one tier under the router's probe timeout.
func (r *Router) headTier(ctx context.Context, tier repository.ObjectTier, key string) (repository.ObjectInfo, error) {
	headCtx, cancel := context.WithTimeout(ctx, r.headTimeout)
	defer cancel()

	info, err := tier.Head(headCtx, key)
	switch {
	case err == nil:
		metrics.TierOperationsTotal.WithLabelValues(tier.Name(), metrics.TierOpHead, metrics.TierStatusSuccess).Inc()
	case errors.Is(err, repository.ErrObjectNotFound):
		metrics.TierOperationsTotal.WithLabelValues(tier.Name(), metrics.TierOpHead, metrics.TierStatusNotFound).Inc()
	default:
		metrics.TierOperationsTotal.WithLabelValues(tier.Name(), metrics.TierOpHead, metrics.TierStatusError).Inc()
	}
	return info, err
}

// OpenRange opens a range read against the tier currently holding the
// object, probing in preference order like Head.
func (r *Router) OpenRange(ctx context.Context, key string, start, end int64) (io.ReadCloser, error) {
	if hinted := r.hintedTier(ctx, key); hinted != nil {
		rc, err := r.openRangeTier(ctx, hinted, key, start, end)
		if err == nil {
			return rc, nil
		}
		r.forgetResidency(ctx, key)
	}

	var lastErr error
	configured := 0

	for _, tier := range r.tiers {
		if !tier.Configured() {
			continue
		}
		configured++

		rc, err := r.openRangeTier(ctx, tier, key, start, end)
		if err == nil {
			r.cacheResidency(ctx, key, tier.Name())
			return rc, nil
		}
		if errors.Is(err, repository.ErrObjectNotFound) {
			lastErr = nil
			continue
		}

		slog.Warn("tier range read failed",
			slog.String("tier", tier.Name()),
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		lastErr = fmt.Errorf("%s: %w", tier.Name(), err)
	}

	if configured == 0 {
		return nil, repository.ErrNoTierConfigured
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, repository.ErrObjectNotFound
}

func (r *Router) openRangeTier(ctx context.Context, tier repository.ObjectTier, key string, start, end int64) (io.ReadCloser, error) {
	rc, err := tier.OpenRange(ctx, key, start, end)
	switch {
	case err == nil:
		metrics.TierOperationsTotal.WithLabelValues(tier.Name(), metrics.TierOpGetRange, metrics.TierStatusSuccess).Inc()
	case errors.Is(err, repository.ErrObjectNotFound):
		metrics.TierOperationsTotal.WithLabelValues(tier.Name(), metrics.TierOpGetRange, metrics.TierStatusNotFound).Inc()
	default:
		metrics.TierOperationsTotal.WithLabelValues(tier.Name(), metrics.TierOpGetRange, metrics.TierStatusError).Inc()
	}
	return rc, err
}

// Delete attempts removal from every configured tier concurrently,
// tolerating not-found on tiers where the object never existed.
func (r *Router) Delete(ctx context.Context, key string) error {
	g, gctx := errgroup.WithContext(ctx)
	attempted := 0

	for _, tier := range r.tiers {
		if !tier.Configured() {
			continue
		}
		attempted++

		g.Go(func() error {
			err := tier.Delete(gctx, key)
			if err != nil && !errors.Is(err, repository.ErrObjectNotFound) {
				metrics.TierOperationsTotal.WithLabelValues(tier.Name(), metrics.TierOpDelete, metrics.TierStatusError).Inc()
				return fmt.Errorf("%s: %w", tier.Name(), err)
			}
			metrics.TierOperationsTotal.WithLabelValues(tier.Name(), metrics.TierOpDelete, metrics.TierStatusSuccess).Inc()
			return nil
		})
	}

	if attempted == 0 {
		return repository.ErrNoTierConfigured
	}

	r.forgetResidency(ctx, key)
	return g.Wait()
}

// hintedTier resolves the residency cache entry for key to a configured
// tier, or nil when there is no usable hint.
func (r *Router) hintedTier(ctx context.Context, key string) repository.ObjectTier {
	if r.residency == nil {
		return nil
	}

	name, err := r.residency.GetTier(ctx, key)
	if err != nil {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusError, metrics.CacheTypeResidency).Inc()
		return nil
	}
	if name == "" {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusMiss, metrics.CacheTypeResidency).Inc()
		return nil
	}
	metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusHit, metrics.CacheTypeResidency).Inc()

	for _, tier := range r.tiers {
		if tier.Name() == name && tier.Configured() {
			return tier
		}
	}
	return nil
}

func (r *Router) cacheResidency(ctx context.Context, key, tier string) {
	if r.residency == nil {
		return
	}
	if err := r.residency.SetTier(ctx, key, tier); err != nil {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpSet, metrics.CacheStatusError, metrics.CacheTypeResidency).Inc()
		return
	}
	metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpSet, metrics.CacheStatusSuccess, metrics.CacheTypeResidency).Inc()
}

func (r *Router) forgetResidency(ctx context.Context, key string) {
	if r.residency == nil {
		return
	}
	if err := r.residency.Forget(ctx, key); err != nil {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpDelete, metrics.CacheStatusError, metrics.CacheTypeResidency).Inc()
		return
	}
	metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpDelete, metrics.CacheStatusSuccess, metrics.CacheTypeResidency).Inc()
}
