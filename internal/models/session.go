package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is a recorded practice video belonging to a user, optionally shared
// into a space. Only the owner may mutate it; any space member may watch it.
type Session struct {
	ID          uuid.UUID  `json:"id"`
	OwnerID     uuid.UUID  `json:"owner_id"`
	SpaceID     *uuid.UUID `json:"space_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	VideoKey    string     `json:"video_key,omitempty"` // S3 object key of the playable video
	DurationSec int        `json:"duration_sec"`
	Tags        []string   `json:"tags,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
