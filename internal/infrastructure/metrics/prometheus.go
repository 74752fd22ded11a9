// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "strata"

var (
	// TierOperationsTotal tracks operations against storage tiers.
	// Labels:
	//   - tier: minio, s3, filesystem
	//   - operation: put, head, get_range, delete, sign
	//   - status: success, error, not_found, skipped
	TierOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tier_operations_total",
			Help:      "Total number of storage tier operations",
		},
		[]string{"tier", "operation", "status"},
	)

	// StreamRequestsTotal tracks playback stream sessions by HTTP status.
	// Labels:
	//   - status: 200, 206, 416
	StreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_requests_total",
			Help:      "Total number of stream sessions opened",
		},
		[]string{"status"},
	)

	// StreamBytesTotal counts bytes actually delivered to clients.
	StreamBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_bytes_total",
			Help:      "Total number of bytes delivered to streaming clients",
		},
	)

	// StreamAbortsTotal counts client-initiated mid-transfer disconnects.
	// These are informational, not errors.
	StreamAbortsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_aborts_total",
			Help:      "Total number of streams aborted by client disconnect",
		},
	)

	// CacheOperationsTotal tracks cache operations (get, set, delete).
	// Labels:
	//   - operation: get, set, delete
	//   - status: hit, miss, success, error
	//   - cache_type: residency, video
	CacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_operations_total",
			Help:      "Total number of cache operations",
		},
		[]string{"operation", "status", "cache_type"},
	)

	// SingleflightRequestsTotal tracks singleflight behavior.
	// Labels:
	//   - result: initiated (new execution), shared (reused result)
	SingleflightRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "singleflight_requests_total",
			Help:      "Total number of singleflight requests",
		},
		[]string{"result"},
	)
)

// Tier operation constants.
const (
	TierOpPut      = "put"
	TierOpHead     = "head"
	TierOpGetRange = "get_range"
	TierOpDelete   = "delete"
	TierOpSign     = "sign"
)

// Tier operation status constants.
const (
	TierStatusSuccess  = "success"
	TierStatusError    = "error"
	TierStatusNotFound = "not_found"
	TierStatusSkipped  = "skipped"
)

// Cache operation status constants.
const (
	CacheStatusHit     = "hit"
	CacheStatusMiss    = "miss"
	CacheStatusSuccess = "success"
	CacheStatusError   = "error"
)

// Cache operation type constants.
const (
	CacheOpGet    = "get"
	CacheOpSet    = "set"
	CacheOpDelete = "delete"
)

// Cache type constants.
const (
	CacheTypeResidency = "residency"
	CacheTypeVideo     = "video"
)

// Singleflight result constants.
const (
	SingleflightInitiated = "initiated"
	SingleflightShared    = "shared"
)
