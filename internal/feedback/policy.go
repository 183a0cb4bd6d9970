package feedback

import (
	"time"

	"github.com/practika/backend/internal/models"
	"github.com/practika/backend/pkg/apperrors"
)

// Request creation defaults, applied when the caller omits the fields.
const (
	DefaultSLAHours           = 48
	DefaultRequiredReviews    = 1
	DefaultVideoRequiredCount = 1
)

// ValidateCreateParams checks the feedback request invariants before anything
// is persisted: sla_hours > 0, required_reviews > 0, and
// 0 <= video_required_count <= required_reviews. The schema repeats these as
// check constraints so they hold under writes that bypass this path.
func ValidateCreateParams(slaHours, requiredReviews, videoRequiredCount int) error {
	if slaHours <= 0 {
		return apperrors.Validation("sla_hours must be positive")
	}
	if requiredReviews <= 0 {
		return apperrors.Validation("required_reviews must be positive")
	}
	if videoRequiredCount < 0 {
		return apperrors.Validation("video_required_count cannot be negative")
	}
	if videoRequiredCount > requiredReviews {
		return apperrors.Validation("video_required_count (%d) cannot exceed required_reviews (%d)", videoRequiredCount, requiredReviews)
	}
	return nil
}

// ClaimCheck decides whether a reviewer may claim the request given its
// current state. Callers must hold the request row locked so activeClaims
// cannot go stale between the check and the insert: two reviewers racing for
// the last slot serialize on the lock, and the second sees the first's claim
// in the count.
func ClaimCheck(req *models.FeedbackRequest, activeClaims int, alreadyClaimed bool, now time.Time) error {
	switch {
	case req.Status == models.RequestStatusOpen && !req.DueAt.After(now):
		return apperrors.Expired("feedback request is past its SLA deadline")
	case req.Status != models.RequestStatusOpen:
		return apperrors.Conflict("feedback request is %s", req.Status)
	case alreadyClaimed:
		return apperrors.Conflict("request already claimed by this reviewer")
	case activeClaims >= req.RequiredReviews:
		return apperrors.Conflict("no reviewer slots remaining")
	}
	return nil
}

// VideoReplyRequired reports whether the next completion must carry a video
// reply. Policy: every completion must include video until video_required_count
// video completions have been recorded; after that, text-only completions pass.
func VideoReplyRequired(videoRequiredCount, videoCompletions int) bool {
	return videoCompletions < videoRequiredCount
}

// RequestFulfilled reports whether the request's completion quota is met: at
// least required_reviews completed assignments, of which at least
// video_required_count carried a video reply.
func RequestFulfilled(completed, videoCompletions, requiredReviews, videoRequiredCount int) bool {
	return completed >= requiredReviews && videoCompletions >= videoRequiredCount
}
