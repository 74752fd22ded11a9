package model

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// HLSStatus represents the HLS artifact state of a video.
type HLSStatus string

const (
	HLSNone       HLSStatus = "NONE"
	HLSPending    HLSStatus = "PENDING"
	HLSProcessing HLSStatus = "PROCESSING"
	HLSReady      HLSStatus = "READY"
	HLSFailed     HLSStatus = "FAILED"
)

// Valid HLS status transitions:
// NONE -> PENDING -> PROCESSING -> READY
//                             \-> FAILED -> PENDING (republish)
var validHLSTransitions = map[HLSStatus][]HLSStatus{
	HLSNone:       {HLSPending},
	HLSPending:    {HLSProcessing},
	HLSProcessing: {HLSReady, HLSFailed},
	HLSReady:      {},
	HLSFailed:     {HLSPending},
}

func (s HLSStatus) IsValid() bool {
	switch s {
	case HLSNone, HLSPending, HLSProcessing, HLSReady, HLSFailed:
		return true
	default:
		return false
	}
}

func (s HLSStatus) CanTransitionTo(next HLSStatus) bool {
	allowed, exists := validHLSTransitions[s]
	if !exists {
		return false
	}
	for _, status := range allowed {
		if status == next {
			return true
		}
	}
	return false
}

func (s HLSStatus) String() string {
	return string(s)
}

// Video represents a stored video object's metadata.
// The bytes themselves live in one of the storage tiers; tier residency is
// discovered at read time and never recorded here.
type Video struct {
	ID              uuid.UUID
	OwnerID         string
	Title           string
	SizeBytes       int64
	DurationSeconds float64
	HLSStatus       HLSStatus
	HLSPlaylistURL  string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

var (
	ErrEmptyFileName     = errors.New("file name cannot be empty")
	ErrTitleTooLong      = errors.New("title exceeds maximum length of 255 characters")
	ErrNegativeDuration  = errors.New("duration cannot be negative")
	ErrInvalidTransition = errors.New("invalid HLS status transition")
)

const maxTitleLength = 255

// NewVideo creates a new Video with a fresh ID and HLS status NONE.
// The title is derived from the original file name minus its extension.
func NewVideo(fileName, ownerID string, durationSeconds float64) (*Video, error) {
	if fileName == "" {
		return nil, ErrEmptyFileName
	}
	if durationSeconds < 0 {
		return nil, ErrNegativeDuration
	}

	title := TitleFromFileName(fileName)
	if len(title) > maxTitleLength {
		return nil, ErrTitleTooLong
	}

	now := time.Now()
	return &Video{
		ID:              uuid.New(),
		OwnerID:         ownerID,
		Title:           title,
		DurationSeconds: durationSeconds,
		HLSStatus:       HLSNone,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// TitleFromFileName strips the directory and extension from an uploaded
// file name. "clips/intro.mp4" becomes "intro".
func TitleFromFileName(fileName string) string {
	base := filepath.Base(fileName)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// SetSize records the object length after a successful tier write.
func (v *Video) SetSize(sizeBytes int64) {
	v.SizeBytes = sizeBytes
	v.UpdatedAt = time.Now()
}

// SetHLSPlaylistURL records the playlist location once HLS artifacts exist.
func (v *Video) SetHLSPlaylistURL(url string) {
	v.HLSPlaylistURL = url
	v.UpdatedAt = time.Now()
}

// TransitionHLS attempts to change the HLS status.
// Returns error if the transition is not allowed.
func (v *Video) TransitionHLS(next HLSStatus) error {
	if !next.IsValid() {
		return ErrInvalidTransition
	}
	if !v.HLSStatus.CanTransitionTo(next) {
		return ErrInvalidTransition
	}
	v.HLSStatus = next
	v.UpdatedAt = time.Now()
	return nil
}

// HLSIsReady returns true if HLS artifacts are available for playback.
func (v *Video) HLSIsReady() bool {
	return v.HLSStatus == HLSReady
}
