package usecase

import (
	"path"

	"github.com/google/uuid"
)

// videoKey returns the canonical object key for a video's bytes.
// Format: videos/{video_id}.mp4
func videoKey(videoID uuid.UUID) string {
	return path.Join("videos", videoID.String()+".mp4")
}

// hlsKey returns the object key for an HLS artifact of a video.
// Format: hls/{video_id}/{filename}
func hlsKey(videoID uuid.UUID, filename string) string {
	return path.Join("hls", videoID.String(), filename)
}
