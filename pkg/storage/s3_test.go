package storage

import (
	"testing"

	"github.com/google/uuid"
)

func TestValidateVideoType(t *testing.T) {
	for _, ct := range []string{"video/mp4", "video/quicktime", "video/webm", "VIDEO/MP4"} {
		if !ValidateVideoType(ct) {
			t.Errorf("ValidateVideoType(%q) = false, want true", ct)
		}
	}
	for _, ct := range []string{"video/x-msvideo", "image/png", "application/octet-stream", ""} {
		if ValidateVideoType(ct) {
			t.Errorf("ValidateVideoType(%q) = true, want false", ct)
		}
	}
}

func TestSessionKey(t *testing.T) {
	userID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	uploadID := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	got := SessionKey(userID, uploadID, "routine.mp4")
	want := "sessions/11111111-1111-1111-1111-111111111111/22222222-2222-2222-2222-222222222222/routine.mp4"
	if got != want {
		t.Errorf("SessionKey = %q, want %q", got, want)
	}
}

func TestSessionKeyStripsDirectories(t *testing.T) {
	userID := uuid.New()
	uploadID := uuid.New()
	got := SessionKey(userID, uploadID, "../../etc/passwd")
	want := SessionKey(userID, uploadID, "passwd")
	if got != want {
		t.Errorf("SessionKey with path traversal = %q, want %q", got, want)
	}
}

func TestReplyKey(t *testing.T) {
	requestID := uuid.MustParse("33333333-3333-3333-3333-333333333333")
	reviewerID := uuid.MustParse("44444444-4444-4444-4444-444444444444")

	got := ReplyKey(requestID, reviewerID, "video/quicktime")
	want := "replies/33333333-3333-3333-3333-333333333333/44444444-4444-4444-4444-444444444444.mov"
	if got != want {
		t.Errorf("ReplyKey = %q, want %q", got, want)
	}

	// Unknown content types fall back to .mp4.
	got = ReplyKey(requestID, reviewerID, "application/octet-stream")
	if got != "replies/33333333-3333-3333-3333-333333333333/44444444-4444-4444-4444-444444444444.mp4" {
		t.Errorf("ReplyKey fallback = %q", got)
	}
}
