package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/strata-media/strata/internal/domain/repository"
	"github.com/strata-media/strata/internal/usecase"
)

// StreamHandler serves video bytes with HTTP range semantics.
type StreamHandler struct {
	streams usecase.StreamService
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(streams usecase.StreamService) *StreamHandler {
	return &StreamHandler{streams: streams}
}

// Stream handles GET /v1/videos/{id}/stream.
//
// The response honors single byte ranges: a valid "bytes=s-e" or
// "bytes=s-" header yields 206 with Content-Range, an unsatisfiable start
// yields a bodyless 416, and anything else (including malformed headers)
// yields the full object with 200. Every response advertises
// "Accept-Ranges: bytes".
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	videoID, ok := parseVideoID(w, r)
	if !ok {
		return
	}

	session, err := h.streams.Open(r.Context(), videoID, r.Header.Get("Range"))
	if err != nil {
		if errors.Is(err, repository.ErrObjectNotFound) {
			Error(w, http.StatusNotFound, "video_not_found", "Video not found")
			return
		}
		if errors.Is(err, repository.ErrNoTierConfigured) {
			Error(w, http.StatusServiceUnavailable, "storage_unavailable", "Storage is not available")
			return
		}
		Error(w, http.StatusBadGateway, "storage_error", "Failed to open the video")
		return
	}
	defer func() { _ = session.Close() }()

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", "video/mp4")

	switch session.Status {
	case http.StatusRequestedRangeNotSatisfiable:
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", session.TotalSize))
		w.WriteHeader(session.Status)
		return
	case http.StatusPartialContent:
		w.Header().Set("Content-Range", session.ContentRange())
	}

	w.Header().Set("Content-Length", strconv.FormatInt(session.ContentLength(), 10))
	w.WriteHeader(session.Status)

	// A write error here is the client going away; the session records the
	// abort on Close.
	_, _ = io.Copy(w, session)
}
