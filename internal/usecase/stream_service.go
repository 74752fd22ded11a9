package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/strata-media/strata/internal/domain/repository"
	"github.com/strata-media/strata/internal/infrastructure/metrics"
)

// StreamServiceConfig holds configuration for StreamService.
type StreamServiceConfig struct {
	// ChunkSize is the unit of transfer between tier and client.
	ChunkSize int
	// ChunkCount bounds the number of in-flight chunks per stream.
	ChunkCount int
}

// DefaultStreamServiceConfig returns the default configuration:
// 64 KiB chunks, 16 in flight, roughly 1 MiB of buffered video per stream.
func DefaultStreamServiceConfig() StreamServiceConfig {
	return StreamServiceConfig{
		ChunkSize:  64 * 1024,
		ChunkCount: 16,
	}
}

// StreamSession is one playback response in flight. The HTTP layer writes
// the status and headers from the session fields, then copies Read to the
// response body. A 416 session has no body.
type StreamSession struct {
	Status    int
	Start     int64
	End       int64
	TotalSize int64

	videoID uuid.UUID
	pipe    *boundedPipe

	bytesRead int64
	aborted   bool
}

// ContentLength returns the exact body length of the session.
func (s *StreamSession) ContentLength() int64 {
	if s.Status == http.StatusRequestedRangeNotSatisfiable {
		return 0
	}
	return s.End - s.Start + 1
}

// ContentRange returns the Content-Range value for a 206 response.
func (s *StreamSession) ContentRange() string {
	return fmt.Sprintf("bytes %d-%d/%d", s.Start, s.End, s.TotalSize)
}

// Read delivers the next bytes of the requested range, in order.
func (s *StreamSession) Read(b []byte) (int, error) {
	if s.pipe == nil {
		return 0, io.EOF
	}

	n, err := s.pipe.Read(b)
	s.bytesRead += int64(n)

	if err != nil && err != io.EOF {
		if err == context.Canceled {
			s.aborted = true
		}
		return n, err
	}
	return n, err
}

// Close releases the upstream tier read and records delivery totals.
func (s *StreamSession) Close() error {
	if s.pipe != nil {
		_ = s.pipe.Close()
	}

	metrics.StreamBytesTotal.Add(float64(s.bytesRead))

	if s.aborted {
		metrics.StreamAbortsTotal.Inc()
		slog.Info("stream aborted by client",
			"video_id", s.videoID,
			"bytes_delivered", s.bytesRead,
		)
	} else {
		slog.Info("stream closed",
			"video_id", s.videoID,
			"bytes_delivered", s.bytesRead,
		)
	}
	return nil
}

// StreamService opens range-bounded playback sessions over the tier chain.
type StreamService interface {
	// Open resolves the Range header against the stored object and starts
	// the tier read. Returns repository.ErrObjectNotFound when no tier
	// holds the object.
	Open(ctx context.Context, videoID uuid.UUID, rangeHeader string) (*StreamSession, error)
}

type streamService struct {
	router repository.ObjectRouter

	chunkSize  int
	chunkCount int
}

// NewStreamService creates a new StreamService instance.
func NewStreamService(router repository.ObjectRouter, cfg StreamServiceConfig) StreamService {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultStreamServiceConfig().ChunkSize
	}
	if cfg.ChunkCount <= 0 {
		cfg.ChunkCount = DefaultStreamServiceConfig().ChunkCount
	}
	return &streamService{
		router:     router,
		chunkSize:  cfg.ChunkSize,
		chunkCount: cfg.ChunkCount,
	}
}

// Open sizes the object, resolves the byte range, and wires the tier read
// through a bounded pipe.
//
// Range resolution:
//   - no header or a malformed header: full object, 200
//   - "bytes=s-" : [s, size-1], 206
//   - "bytes=s-e": [s, min(e, size-1)], 206
//   - s >= size  : 416, no body
func (s *streamService) Open(ctx context.Context, videoID uuid.UUID, rangeHeader string) (*StreamSession, error) {
	key := videoKey(videoID)

	info, err := s.router.Head(ctx, key)
	if err != nil {
		return nil, err
	}
	totalSize := info.Size

	session := &StreamSession{
		TotalSize: totalSize,
		videoID:   videoID,
	}

	start, end, ok := parseByteRange(rangeHeader, totalSize)
	switch {
	case !ok:
		session.Status = http.StatusOK
		session.Start = 0
		session.End = totalSize - 1
	case start >= totalSize:
		session.Status = http.StatusRequestedRangeNotSatisfiable
		metrics.StreamRequestsTotal.WithLabelValues(strconv.Itoa(session.Status)).Inc()
		return session, nil
	default:
		session.Status = http.StatusPartialContent
		session.Start = start
		session.End = end
	}

	// A zero-byte object has nothing to read; serve an empty body.
	if session.ContentLength() == 0 {
		metrics.StreamRequestsTotal.WithLabelValues(strconv.Itoa(session.Status)).Inc()
		return session, nil
	}

	rc, err := s.router.OpenRange(ctx, key, session.Start, session.End)
	if err != nil {
		return nil, err
	}

	session.pipe = newBoundedPipe(ctx, rc, s.chunkSize, s.chunkCount)
	metrics.StreamRequestsTotal.WithLabelValues(strconv.Itoa(session.Status)).Inc()
	return session, nil
}

// parseByteRange parses "bytes=<start>-[<end>]". ok is false for an absent
// or malformed header, which callers treat as a full-object request. end is
// clamped to totalSize-1. A start past the end of the object parses fine;
// satisfiability is the caller's decision.
func parseByteRange(header string, totalSize int64) (start, end int64, ok bool) {
	if header == "" {
		return 0, 0, false
	}

	spec, found := strings.CutPrefix(header, "bytes=")
	if !found {
		return 0, 0, false
	}

	// Multi-range requests are out of scope; serve the full object.
	if strings.Contains(spec, ",") {
		return 0, 0, false
	}

	startStr, endStr, found := strings.Cut(spec, "-")
	if !found || startStr == "" {
		return 0, 0, false
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return 0, 0, false
	}

	if endStr == "" {
		return start, totalSize - 1, true
	}

	end, err = strconv.ParseInt(endStr, 10, 64)
	if err != nil || end < start {
		return 0, 0, false
	}
	if end > totalSize-1 {
		end = totalSize - 1
	}
	return start, end, true
}
