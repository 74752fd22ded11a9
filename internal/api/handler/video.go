package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/strata-media/strata/internal/domain/model"
	"github.com/strata-media/strata/internal/domain/repository"
	"github.com/strata-media/strata/internal/usecase"
)

// multipartMemoryLimit bounds how much of the multipart form is held in
// memory before spilling to disk; the video part itself is streamed to the
// staging file regardless.
const multipartMemoryLimit = 10 << 20

type VideoResponse struct {
	ID              string  `json:"id"`
	OwnerID         string  `json:"owner_id"`
	Title           string  `json:"title"`
	SizeBytes       int64   `json:"size_bytes"`
	DurationSeconds float64 `json:"duration_seconds"`
	HLSStatus       string  `json:"hls_status"`
	HLSPlaylistURL  string  `json:"hls_playlist_url,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

type ListVideosResponse struct {
	Videos []VideoResponse `json:"videos"`
}

type SignedURLResponse struct {
	URL string `json:"url"`
}

// VideoHandler handles video lifecycle HTTP requests.
type VideoHandler struct {
	videos usecase.VideoService
	links  usecase.LinkService

	stagingDir   string
	maxSizeBytes int64
}

// NewVideoHandler creates a new VideoHandler. Uploads are staged under
// stagingDir before entering the tier chain.
func NewVideoHandler(videos usecase.VideoService, links usecase.LinkService, stagingDir string, maxSizeBytes int64) *VideoHandler {
	return &VideoHandler{
		videos:       videos,
		links:        links,
		stagingDir:   stagingDir,
		maxSizeBytes: maxSizeBytes,
	}
}

// Upload handles POST /v1/videos. The request is a multipart form with a
// "file" part and "owner_id" / "duration_seconds" fields. The file part is
// staged to local disk first so a tier failure can replay the payload.
func (h *VideoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxSizeBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxSizeBytes)
	}

	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			Error(w, http.StatusRequestEntityTooLarge, "upload_too_large", "Upload exceeds the maximum size")
			return
		}
		Error(w, http.StatusBadRequest, "invalid_request", "Request must be a multipart form")
		return
	}

	ownerID := r.FormValue("owner_id")
	if ownerID == "" {
		Error(w, http.StatusBadRequest, "invalid_owner_id", "Owner ID is required")
		return
	}

	var duration float64
	if v := r.FormValue("duration_seconds"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			Error(w, http.StatusBadRequest, "invalid_duration", "Duration must be a number")
			return
		}
		duration = parsed
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		Error(w, http.StatusBadRequest, "missing_file", "A file part named 'file' is required")
		return
	}
	defer func() { _ = file.Close() }()

	stagedPath, err := h.stageUpload(file)
	if err != nil {
		Error(w, http.StatusInternalServerError, "staging_failed", "Failed to stage the upload")
		return
	}

	video, err := h.videos.UploadVideo(r.Context(), usecase.UploadVideoInput{
		StagedPath:      stagedPath,
		FileName:        header.Filename,
		DurationSeconds: duration,
		OwnerID:         ownerID,
	})
	if err != nil {
		// The service leaves the staging file behind only for retriable
		// failures; validation failures never touch a tier.
		h.handleServiceError(w, err)
		return
	}

	JSON(w, http.StatusCreated, toVideoResponse(video))
}

// stageUpload copies the multipart file part to a staging file on disk.
func (h *VideoHandler) stageUpload(src io.Reader) (string, error) {
	if err := os.MkdirAll(h.stagingDir, 0o755); err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}

	tmp, err := os.CreateTemp(h.stagingDir, "upload-*.mp4")
	if err != nil {
		return "", fmt.Errorf("create staging file: %w", err)
	}

	if _, err := io.Copy(tmp, src); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write staging file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("close staging file: %w", err)
	}
	return tmp.Name(), nil
}

// Get handles GET /v1/videos/{id}
func (h *VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	videoID, ok := parseVideoID(w, r)
	if !ok {
		return
	}

	video, err := h.videos.GetVideo(r.Context(), videoID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	JSON(w, http.StatusOK, toVideoResponse(video))
}

// List handles GET /v1/videos?owner_id=
func (h *VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner_id")
	if ownerID == "" {
		Error(w, http.StatusBadRequest, "invalid_owner_id", "Query parameter owner_id is required")
		return
	}

	videos, err := h.videos.ListVideos(r.Context(), ownerID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	resp := ListVideosResponse{Videos: make([]VideoResponse, 0, len(videos))}
	for _, v := range videos {
		resp.Videos = append(resp.Videos, toVideoResponse(v))
	}
	JSON(w, http.StatusOK, resp)
}

// Delete handles DELETE /v1/videos/{id}
func (h *VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	videoID, ok := parseVideoID(w, r)
	if !ok {
		return
	}

	if err := h.videos.DeleteVideo(r.Context(), videoID); err != nil {
		h.handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SignedURL handles GET /v1/videos/{id}/url?ttl=
// When the primary tier cannot sign, the response falls back to the app
// streaming path so clients always get a playable URL.
func (h *VideoHandler) SignedURL(w http.ResponseWriter, r *http.Request) {
	videoID, ok := parseVideoID(w, r)
	if !ok {
		return
	}

	ttl, err := parseTTL(r.URL.Query().Get("ttl"))
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid_ttl", "TTL must be a positive duration in seconds")
		return
	}

	url, err := h.links.SignedVideoURL(r.Context(), videoID, ttl)
	if errors.Is(err, repository.ErrSignedURLUnsupported) {
		JSON(w, http.StatusOK, SignedURLResponse{URL: streamPath(videoID)})
		return
	}
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	JSON(w, http.StatusOK, SignedURLResponse{URL: url})
}

func (h *VideoHandler) handleServiceError(w http.ResponseWriter, err error) {
	writeServiceError(w, err)
}

// writeServiceError maps domain errors onto HTTP statuses. Tier names and
// internal details never reach the response body.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrVideoNotFound),
		errors.Is(err, repository.ErrObjectNotFound):
		Error(w, http.StatusNotFound, "video_not_found", "Video not found")
	case errors.Is(err, model.ErrEmptyFileName):
		Error(w, http.StatusBadRequest, "invalid_file_name", "File name cannot be empty")
	case errors.Is(err, model.ErrTitleTooLong):
		Error(w, http.StatusBadRequest, "invalid_title", "Title exceeds maximum length")
	case errors.Is(err, model.ErrNegativeDuration):
		Error(w, http.StatusBadRequest, "invalid_duration", "Duration cannot be negative")
	case errors.Is(err, usecase.ErrEmptyUpload):
		Error(w, http.StatusBadRequest, "empty_upload", "Upload contains no data")
	case errors.Is(err, model.ErrInvalidTransition):
		Error(w, http.StatusConflict, "invalid_state", "Operation not allowed in the video's current state")
	case errors.Is(err, repository.ErrDuplicateVideo):
		Error(w, http.StatusConflict, "duplicate_video", "Video already exists")
	case errors.Is(err, repository.ErrNoTierConfigured):
		Error(w, http.StatusServiceUnavailable, "storage_unavailable", "Storage is not available")
	case errors.Is(err, repository.ErrTierNotConfigured):
		Error(w, http.StatusServiceUnavailable, "storage_unavailable", "Storage is not available")
	default:
		Error(w, http.StatusBadGateway, "storage_error", "Storage operation failed")
	}
}

func parseVideoID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	videoID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid_video_id", "Video ID must be a valid UUID")
		return uuid.Nil, false
	}
	return videoID, true
}

// parseTTL interprets the ttl query parameter as seconds. Empty selects the
// service default.
func parseTTL(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || seconds <= 0 {
		return 0, fmt.Errorf("invalid ttl %q", raw)
	}
	return time.Duration(seconds) * time.Second, nil
}

func streamPath(videoID uuid.UUID) string {
	return fmt.Sprintf("/v1/videos/%s/stream", videoID)
}

func toVideoResponse(v *model.Video) VideoResponse {
	return VideoResponse{
		ID:              v.ID.String(),
		OwnerID:         v.OwnerID,
		Title:           v.Title,
		SizeBytes:       v.SizeBytes,
		DurationSeconds: v.DurationSeconds,
		HLSStatus:       v.HLSStatus.String(),
		HLSPlaylistURL:  v.HLSPlaylistURL,
		CreatedAt:       v.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:       v.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
