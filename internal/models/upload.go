package models

import (
	"time"

	"github.com/google/uuid"
)

// MultipartUploadStatus values. Completed, aborted and expired are terminal.
const (
	UploadStatusInitiated = "initiated"
	UploadStatusCompleted = "completed"
	UploadStatusAborted   = "aborted"
	UploadStatusExpired   = "expired"
)

// MultipartSessionUpload tracks an in-progress chunked upload before a Session
// exists. Session metadata is copied onto the Session created at completion.
// (StorageKey, StorageUploadID) is globally unique.
type MultipartSessionUpload struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"user_id"`
	SpaceID         *uuid.UUID `json:"space_id,omitempty"`
	SessionID       *uuid.UUID `json:"session_id,omitempty"` // set once completed
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	Tags            []string   `json:"tags,omitempty"`
	DurationSec     int        `json:"duration_sec"`
	Filename        string     `json:"filename"`
	ContentType     string     `json:"content_type"`
	SizeBytes       int64      `json:"size_bytes"`
	StorageKey      string     `json:"storage_key"`
	StorageUploadID string     `json:"storage_upload_id"`
	Status          string     `json:"status"`
	ExpiresAt       time.Time  `json:"expires_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
