package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/strata-media/strata/internal/domain/repository"
	"github.com/strata-media/strata/internal/usecase"
)

type TriggerPublishRequest struct {
	ArtifactDir string `json:"artifact_dir"`
}

// HLSHandler serves the HLS artifact namespace and the publish trigger.
type HLSHandler struct {
	hls usecase.HLSService
}

// NewHLSHandler creates a new HLSHandler.
func NewHLSHandler(hls usecase.HLSService) *HLSHandler {
	return &HLSHandler{hls: hls}
}

// TriggerPublish handles POST /v1/videos/{id}/hls.
func (h *HLSHandler) TriggerPublish(w http.ResponseWriter, r *http.Request) {
	videoID, ok := parseVideoID(w, r)
	if !ok {
		return
	}

	var req TriggerPublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if req.ArtifactDir == "" {
		Error(w, http.StatusBadRequest, "invalid_artifact_dir", "Artifact directory is required")
		return
	}

	if err := h.hls.TriggerPublish(r.Context(), videoID, req.ArtifactDir); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// GetArtifact handles GET /v1/videos/{id}/hls/{file}.
// Playlists and segments are small; the body is streamed straight from the
// primary tier with the artifact's content type.
func (h *HLSHandler) GetArtifact(w http.ResponseWriter, r *http.Request) {
	videoID, filename, ok := parseArtifactPath(w, r)
	if !ok {
		return
	}

	artifact, err := h.hls.GetArtifact(r.Context(), videoID, filename)
	if err != nil {
		if errors.Is(err, repository.ErrObjectNotFound) {
			Error(w, http.StatusNotFound, "artifact_not_found", "HLS artifact not found")
			return
		}
		writeServiceError(w, err)
		return
	}
	defer func() { _ = artifact.Body.Close() }()

	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(artifact.Size, 10))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, artifact.Body)
}

// ArtifactURL handles GET /v1/videos/{id}/hls/{file}/url.
// Falls back to the app artifact path when the primary tier cannot sign.
func (h *HLSHandler) ArtifactURL(w http.ResponseWriter, r *http.Request) {
	videoID, filename, ok := parseArtifactPath(w, r)
	if !ok {
		return
	}

	ttl, err := parseTTL(r.URL.Query().Get("ttl"))
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid_ttl", "TTL must be a positive duration in seconds")
		return
	}

	url, err := h.hls.ArtifactURL(r.Context(), videoID, filename, ttl)
	if errors.Is(err, repository.ErrSignedURLUnsupported) {
		JSON(w, http.StatusOK, SignedURLResponse{URL: artifactPath(videoID, filename)})
		return
	}
	if err != nil {
		if errors.Is(err, repository.ErrObjectNotFound) {
			Error(w, http.StatusNotFound, "artifact_not_found", "HLS artifact not found")
			return
		}
		writeServiceError(w, err)
		return
	}

	JSON(w, http.StatusOK, SignedURLResponse{URL: url})
}

// parseArtifactPath extracts and validates the video ID and artifact
// filename. Filenames with path separators or traversal segments are
// rejected before they can form a key.
func parseArtifactPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, string, bool) {
	videoID, ok := parseVideoID(w, r)
	if !ok {
		return uuid.Nil, "", false
	}

	filename := chi.URLParam(r, "file")
	if filename == "" || filename == "." || filename == ".." ||
		strings.ContainsAny(filename, "/\\") {
		Error(w, http.StatusBadRequest, "invalid_artifact_name", "Artifact name must be a plain filename")
		return uuid.Nil, "", false
	}
	return videoID, filename, true
}

func artifactPath(videoID uuid.UUID, filename string) string {
	return fmt.Sprintf("/v1/videos/%s/hls/%s", videoID, filename)
}
