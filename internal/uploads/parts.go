package uploads

import (
	"sort"

	"github.com/practika/backend/pkg/apperrors"
	"github.com/practika/backend/pkg/storage"
)

// MaxParts is the S3 multipart part-count limit.
const MaxParts = 10000

// ValidateParts checks the part list before any storage-backend call: parts
// must be non-empty, carry checksums, and be contiguous from 1..N with no gaps
// or duplicates. Verifying locally first avoids partial commits against the
// backend.
func ValidateParts(parts []storage.Part) error {
	if len(parts) == 0 {
		return apperrors.Validation("at least one part is required")
	}
	if len(parts) > MaxParts {
		return apperrors.Validation("too many parts: %d (max %d)", len(parts), MaxParts)
	}
	sorted := make([]storage.Part, len(parts))
	copy(sorted, parts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })
	for i, p := range sorted {
		if p.Checksum == "" {
			return apperrors.Validation("part %d is missing its checksum", p.Number)
		}
		want := int32(i + 1)
		if p.Number != want {
			if i > 0 && p.Number == sorted[i-1].Number {
				return apperrors.Validation("duplicate part number %d", p.Number)
			}
			return apperrors.Validation("parts must be contiguous from 1: missing part %d", want)
		}
	}
	return nil
}
