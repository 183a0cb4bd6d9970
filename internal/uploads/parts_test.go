package uploads

import (
	"testing"

	"github.com/practika/backend/pkg/apperrors"
	"github.com/practika/backend/pkg/storage"
)

func parts(nums ...int32) []storage.Part {
	out := make([]storage.Part, 0, len(nums))
	for _, n := range nums {
		out = append(out, storage.Part{Number: n, Checksum: "etag"})
	}
	return out
}

func TestValidateParts(t *testing.T) {
	tests := []struct {
		name    string
		parts   []storage.Part
		wantErr bool
	}{
		{"single part", parts(1), false},
		{"contiguous", parts(1, 2, 3), false},
		{"unordered but contiguous", parts(3, 1, 2), false},
		{"empty", nil, true},
		{"gap", parts(1, 3), true},
		{"starts past one", parts(2, 3), true},
		{"duplicate", parts(1, 2, 2), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateParts(tt.parts)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateParts(%v) error = %v, wantErr %v", tt.parts, err, tt.wantErr)
			}
			if err != nil && !apperrors.Is(err, apperrors.KindValidation) {
				t.Errorf("error kind = %v, want validation", apperrors.KindOf(err))
			}
		})
	}
}

func TestValidatePartsMissingChecksum(t *testing.T) {
	in := []storage.Part{{Number: 1, Checksum: "etag"}, {Number: 2}}
	if err := ValidateParts(in); err == nil {
		t.Fatal("expected error for missing checksum")
	}
}

func TestValidatePartsDoesNotMutateInput(t *testing.T) {
	in := parts(3, 1, 2)
	if err := ValidateParts(in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in[0].Number != 3 || in[1].Number != 1 || in[2].Number != 2 {
		t.Errorf("input slice was reordered: %v", in)
	}
}

func TestValidatePartsTooMany(t *testing.T) {
	in := make([]storage.Part, MaxParts+1)
	for i := range in {
		in[i] = storage.Part{Number: int32(i + 1), Checksum: "etag"}
	}
	if err := ValidateParts(in); err == nil {
		t.Fatal("expected error above the part limit")
	}
}
