package feedback

import (
	"testing"
	"time"

	"github.com/practika/backend/internal/models"
	"github.com/practika/backend/pkg/apperrors"
)

func TestValidateCreateParams(t *testing.T) {
	tests := []struct {
		name               string
		slaHours           int
		requiredReviews    int
		videoRequiredCount int
		wantErr            bool
	}{
		{"defaults", DefaultSLAHours, DefaultRequiredReviews, DefaultVideoRequiredCount, false},
		{"text only", 24, 3, 0, false},
		{"all video", 24, 3, 3, false},
		{"zero sla", 0, 1, 1, true},
		{"negative sla", -1, 1, 1, true},
		{"zero reviews", 24, 0, 0, true},
		{"negative video count", 24, 2, -1, true},
		{"video count exceeds reviews", 24, 2, 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCreateParams(tt.slaHours, tt.requiredReviews, tt.videoRequiredCount)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateCreateParams(%d, %d, %d) error = %v, wantErr %v",
					tt.slaHours, tt.requiredReviews, tt.videoRequiredCount, err, tt.wantErr)
			}
			if err != nil && !apperrors.Is(err, apperrors.KindValidation) {
				t.Errorf("error kind = %v, want validation", apperrors.KindOf(err))
			}
		})
	}
}

func TestClaimCheck(t *testing.T) {
	now := time.Now()
	open := func(required int) *models.FeedbackRequest {
		return &models.FeedbackRequest{
			Status:          models.RequestStatusOpen,
			DueAt:           now.Add(time.Hour),
			RequiredReviews: required,
		}
	}

	tests := []struct {
		name           string
		req            *models.FeedbackRequest
		activeClaims   int
		alreadyClaimed bool
		wantKind       apperrors.Kind
	}{
		{"slot free", open(2), 1, false, 0},
		{"first claim", open(1), 0, false, 0},
		{"last slot already taken", open(1), 1, false, apperrors.KindConflict},
		{"duplicate reviewer", open(2), 1, true, apperrors.KindConflict},
		{"past due", &models.FeedbackRequest{Status: models.RequestStatusOpen, DueAt: now.Add(-time.Minute), RequiredReviews: 1}, 0, false, apperrors.KindExpired},
		{"cancelled", &models.FeedbackRequest{Status: models.RequestStatusCancelled, DueAt: now.Add(time.Hour), RequiredReviews: 1}, 0, false, apperrors.KindConflict},
		{"fulfilled", &models.FeedbackRequest{Status: models.RequestStatusFulfilled, DueAt: now.Add(time.Hour), RequiredReviews: 1}, 1, false, apperrors.KindConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ClaimCheck(tt.req, tt.activeClaims, tt.alreadyClaimed, now)
			if apperrors.KindOf(err) != tt.wantKind {
				t.Errorf("ClaimCheck error = %v, want kind %v", err, tt.wantKind)
			}
		})
	}
}

// Two reviewers racing for the last slot serialize on the request row lock;
// whichever transaction commits second sees the winner's claim in the count
// and must lose with Conflict.
func TestClaimCheckSerializedRace(t *testing.T) {
	now := time.Now()
	req := &models.FeedbackRequest{
		Status:          models.RequestStatusOpen,
		DueAt:           now.Add(time.Hour),
		RequiredReviews: 1,
	}
	if err := ClaimCheck(req, 0, false, now); err != nil {
		t.Fatalf("winner's claim refused: %v", err)
	}
	err := ClaimCheck(req, 1, false, now)
	if !apperrors.Is(err, apperrors.KindConflict) {
		t.Errorf("loser's claim = %v, want conflict", err)
	}
}

func TestVideoReplyRequired(t *testing.T) {
	// Quota of 2 video replies: the first two completions must carry video,
	// later ones may be text only.
	if !VideoReplyRequired(2, 0) {
		t.Error("first completion should require video")
	}
	if !VideoReplyRequired(2, 1) {
		t.Error("second completion should require video")
	}
	if VideoReplyRequired(2, 2) {
		t.Error("quota met, video should be optional")
	}
	if VideoReplyRequired(0, 0) {
		t.Error("zero quota should never require video")
	}
}

func TestRequestFulfilled(t *testing.T) {
	tests := []struct {
		name                                                       string
		completed, videoCompletions, requiredReviews, videoQuota int
		want                                                       bool
	}{
		{"quota met exactly", 2, 1, 2, 1, true},
		{"over quota", 3, 2, 2, 1, true},
		{"reviews short", 1, 1, 2, 1, false},
		{"video short", 2, 0, 2, 1, false},
		{"no video quota", 1, 0, 1, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RequestFulfilled(tt.completed, tt.videoCompletions, tt.requiredReviews, tt.videoQuota)
			if got != tt.want {
				t.Errorf("RequestFulfilled(%d, %d, %d, %d) = %v, want %v",
					tt.completed, tt.videoCompletions, tt.requiredReviews, tt.videoQuota, got, tt.want)
			}
		})
	}
}
