package repository

import (
	"context"

	"github.com/google/uuid"
)

// HLSPublishTask asks the worker to persist already-encoded HLS artifacts
// for a video into the primary tier. The artifacts are produced by the
// external transcode pipeline and staged in ArtifactDir.
type HLSPublishTask struct {
	VideoID     uuid.UUID `json:"video_id"`
	ArtifactDir string    `json:"artifact_dir"`
	RetryCount  int       `json:"retry_count"`
}

// MessageQueue defines the interface for message queue operations.
// Implementations should be provided by the infrastructure layer (e.g., RabbitMQ).
type MessageQueue interface {
	// PublishHLSTask sends an HLS publish task to the queue.
	// Used by the API server when a publish is triggered.
	PublishHLSTask(ctx context.Context, task HLSPublishTask) error

	// ConsumeHLSTasks starts consuming HLS publish tasks from the queue.
	// The handler function is called for each received task.
	// Returns when context is cancelled or the channel is closed.
	// Used by the worker service.
	ConsumeHLSTasks(ctx context.Context, handler func(task HLSPublishTask) error) error

	// Close gracefully closes the connection to the message queue.
	Close() error
}
