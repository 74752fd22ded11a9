package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/strata-media/strata/internal/domain/model"
)

// VideoRepository defines the interface for video metadata persistence.
// Implementations should be provided by the infrastructure layer (e.g., PostgreSQL).
type VideoRepository interface {
	// Create persists a new video record.
	// Returns ErrDuplicateVideo if the video already exists.
	Create(ctx context.Context, video *model.Video) error

	// GetByID retrieves a video by its unique identifier.
	// Returns nil and ErrVideoNotFound if the video does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Video, error)

	// ListByOwner retrieves all videos belonging to an owner, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Video, error)

	// UpdateSize records the object length after a successful tier write.
	// Returns ErrVideoNotFound if the video does not exist.
	UpdateSize(ctx context.Context, id uuid.UUID, sizeBytes int64) error

	// UpdateHLS updates the HLS status and playlist URL of a video.
	// Returns ErrVideoNotFound if the video does not exist.
	UpdateHLS(ctx context.Context, id uuid.UUID, status model.HLSStatus, playlistURL string) error

	// Delete removes a video record.
	// Returns ErrVideoNotFound if the video does not exist.
	Delete(ctx context.Context, id uuid.UUID) error
}
