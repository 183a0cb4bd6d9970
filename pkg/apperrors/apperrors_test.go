package apperrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	if got := KindOf(NotFound("missing")); got != KindNotFound {
		t.Errorf("KindOf = %v, want KindNotFound", got)
	}
	if got := KindOf(errors.New("plain")); got != 0 {
		t.Errorf("KindOf(plain error) = %v, want 0", got)
	}
	if got := KindOf(nil); got != 0 {
		t.Errorf("KindOf(nil) = %v, want 0", got)
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("claim: %w", Conflict("already claimed"))
	if !Is(err, KindConflict) {
		t.Errorf("wrapped conflict not detected: %v", err)
	}
	if got := MessageOf(err); got != "already claimed" {
		t.Errorf("MessageOf = %q, want %q", got, "already claimed")
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := TransientBackend(cause, "storage call failed")
	if !errors.Is(err, cause) {
		t.Error("wrapped cause not reachable via errors.Is")
	}
	if KindOf(err) != KindTransientBackend {
		t.Errorf("kind = %v, want transient backend", KindOf(err))
	}
}

func TestMessageFormatting(t *testing.T) {
	err := Validation("part %d is bad", 7)
	if err.Message != "part 7 is bad" {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Error() != "validation: part 7 is bad" {
		t.Errorf("Error() = %q", err.Error())
	}
}
