package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/strata-media/strata/internal/domain/model"
	"github.com/strata-media/strata/internal/domain/repository"
)

// DBTX is an interface that abstracts pgxpool.Pool and pgx.Tx for testability.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// VideoRepository implements repository.VideoRepository using PostgreSQL.
type VideoRepository struct {
	db DBTX
}

// NewVideoRepository creates a new VideoRepository instance.
func NewVideoRepository(db DBTX) *VideoRepository {
	return &VideoRepository{db: db}
}

// Create persists a new video entity.
func (r *VideoRepository) Create(ctx context.Context, video *model.Video) error {
	const query = `
		INSERT INTO videos (id, owner_id, title, size_bytes, duration_seconds, hls_status, hls_playlist_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Exec(ctx, query,
		video.ID,
		video.OwnerID,
		video.Title,
		video.SizeBytes,
		video.DurationSeconds,
		video.HLSStatus.String(),
		nullString(video.HLSPlaylistURL),
		video.CreatedAt,
		video.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return repository.ErrDuplicateVideo
		}
		return fmt.Errorf("failed to create video: %w", err)
	}

	return nil
}

// GetByID retrieves a video by its unique identifier.
func (r *VideoRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Video, error) {
	const query = `
		SELECT id, owner_id, title, size_bytes, duration_seconds, hls_status, hls_playlist_url, created_at, updated_at
		FROM videos
		WHERE id = $1
	`

	video, err := r.scanVideo(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrVideoNotFound
		}
		return nil, fmt.Errorf("failed to get video by ID: %w", err)
	}

	return video, nil
}

// ListByOwner retrieves all videos belonging to an owner.
func (r *VideoRepository) ListByOwner(ctx context.Context, ownerID string) ([]*model.Video, error) {
	const query = `
		SELECT id, owner_id, title, size_bytes, duration_seconds, hls_status, hls_playlist_url, created_at, updated_at
		FROM videos
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query videos by owner: %w", err)
	}
	defer rows.Close()

	var videos []*model.Video
	for rows.Next() {
		video, err := r.scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, video)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating videos: %w", err)
	}

	return videos, nil
}

// UpdateSize records the stored object length after a successful tier write.
func (r *VideoRepository) UpdateSize(ctx context.Context, id uuid.UUID, sizeBytes int64) error {
	const query = `
		UPDATE videos
		SET size_bytes = $2, updated_at = $3
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, id, sizeBytes, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update video size: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return repository.ErrVideoNotFound
	}

	return nil
}

// UpdateHLS updates the HLS publish status and, when non-empty, the playlist
// location of a video.
func (r *VideoRepository) UpdateHLS(ctx context.Context, id uuid.UUID, status model.HLSStatus, playlistURL string) error {
	const query = `
		UPDATE videos
		SET hls_status = $2, hls_playlist_url = COALESCE($3, hls_playlist_url), updated_at = $4
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, id, status.String(), nullString(playlistURL), time.Now())
	if err != nil {
		return fmt.Errorf("failed to update video HLS state: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return repository.ErrVideoNotFound
	}

	return nil
}

// Delete removes a video record.
func (r *VideoRepository) Delete(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM videos WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return repository.ErrVideoNotFound
	}

	return nil
}

// scanVideo scans a single row into a Video model.
func (r *VideoRepository) scanVideo(row pgx.Row) (*model.Video, error) {
	var (
		video       model.Video
		hlsStatus   string
		playlistURL *string
	)

	err := row.Scan(
		&video.ID,
		&video.OwnerID,
		&video.Title,
		&video.SizeBytes,
		&video.DurationSeconds,
		&hlsStatus,
		&playlistURL,
		&video.CreatedAt,
		&video.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	video.HLSStatus = model.HLSStatus(hlsStatus)
	if playlistURL != nil {
		video.HLSPlaylistURL = *playlistURL
	}

	return &video, nil
}

// nullString returns nil for empty strings, otherwise returns a pointer to the string.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Compile-time verification that VideoRepository implements repository.VideoRepository.
var _ repository.VideoRepository = (*VideoRepository)(nil)
