package models

import (
	"time"

	"github.com/google/uuid"
)

// FeedbackRequestStatus values. Fulfilled, expired and cancelled are terminal.
const (
	RequestStatusOpen      = "open"
	RequestStatusFulfilled = "fulfilled"
	RequestStatusExpired   = "expired"
	RequestStatusCancelled = "cancelled"
)

// FeedbackAssignmentStatus values. Completed, released and expired are terminal.
const (
	AssignmentStatusClaimed   = "claimed"
	AssignmentStatusCompleted = "completed"
	AssignmentStatusReleased  = "released"
	AssignmentStatusExpired   = "expired"
)

// FeedbackRequest is a time-bounded request for peer review of a session.
// DueAt = CreatedAt + SLAHours and never changes once set.
type FeedbackRequest struct {
	ID                 uuid.UUID  `json:"id"`
	SessionID          uuid.UUID  `json:"session_id"`
	SpaceID            uuid.UUID  `json:"space_id"`
	RequestedBy        uuid.UUID  `json:"requested_by"`
	FocusPrompt        string     `json:"focus_prompt"`
	SLAHours           int        `json:"sla_hours"`
	DueAt              time.Time  `json:"due_at"`
	RequiredReviews    int        `json:"required_reviews"`
	VideoRequiredCount int        `json:"video_required_count"`
	Status             string     `json:"status"`
	CreatedAt          time.Time  `json:"created_at"`
	ResolvedAt         *time.Time `json:"resolved_at,omitempty"`
}

// FeedbackAssignment is one reviewer's claim-and-response against a request.
// At most one assignment exists per (request, reviewer) pair.
type FeedbackAssignment struct {
	ID            uuid.UUID  `json:"id"`
	RequestID     uuid.UUID  `json:"feedback_request_id"`
	ReviewerID    uuid.UUID  `json:"reviewer_id"`
	Status        string     `json:"status"`
	CommentText   string     `json:"comment_text,omitempty"`
	VideoReplyKey string     `json:"video_reply_key,omitempty"` // S3 key of the video reply, if any
	IsVideoReview bool       `json:"is_video_review"`
	ClaimedAt     time.Time  `json:"claimed_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}
