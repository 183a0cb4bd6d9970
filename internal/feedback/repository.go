package feedback

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/practika/backend/internal/models"
	"github.com/practika/backend/pkg/apperrors"
)

const pgUniqueViolation = "23505"

const requestColumns = `id, session_id, space_id, requested_by, COALESCE(focus_prompt,''), sla_hours, due_at,
	required_reviews, video_required_count, status, created_at, resolved_at`

const assignmentColumns = `id, feedback_request_id, reviewer_id, status, COALESCE(comment_text,''),
	COALESCE(video_reply_key,''), is_video_review, claimed_at, completed_at`

// Repository handles feedback request and assignment persistence. Transitions
// are conditional updates keyed on the current status so concurrent claims,
// completions, and sweeps cannot write over a terminal state.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a feedback repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateRequest persists a new open feedback request. DueAt must already be
// computed (created_at + sla_hours) and is immutable from here on.
func (r *Repository) CreateRequest(ctx context.Context, req *models.FeedbackRequest) error {
	const q = `INSERT INTO feedback_requests
		(id, session_id, space_id, requested_by, focus_prompt, sla_hours, due_at, required_reviews, video_required_count, status)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q,
		req.SessionID, req.SpaceID, req.RequestedBy, req.FocusPrompt,
		req.SLAHours, req.DueAt, req.RequiredReviews, req.VideoRequiredCount, models.RequestStatusOpen,
	).Scan(&req.ID, &req.CreatedAt)
}

// GetRequest returns a request by ID, or nil when absent.
func (r *Repository) GetRequest(ctx context.Context, id uuid.UUID) (*models.FeedbackRequest, error) {
	q := `SELECT ` + requestColumns + ` FROM feedback_requests WHERE id = $1`
	var req models.FeedbackRequest
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&req.ID, &req.SessionID, &req.SpaceID, &req.RequestedBy, &req.FocusPrompt, &req.SLAHours, &req.DueAt,
		&req.RequiredReviews, &req.VideoRequiredCount, &req.Status, &req.CreatedAt, &req.ResolvedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

// Claim creates a claimed assignment for (request, reviewer). The request row
// is locked for the whole transaction before the slot count is read, so two
// reviewers racing for the last slot serialize on the lock and the loser sees
// the winner's claim in the count. The unique (request, reviewer) constraint
// is a schema-level backstop for writes that bypass this path.
func (r *Repository) Claim(ctx context.Context, requestID, reviewerID uuid.UUID) (*models.FeedbackAssignment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	q := `SELECT ` + requestColumns + ` FROM feedback_requests WHERE id = $1 FOR UPDATE`
	var req models.FeedbackRequest
	err = tx.QueryRow(ctx, q, requestID).Scan(
		&req.ID, &req.SessionID, &req.SpaceID, &req.RequestedBy, &req.FocusPrompt, &req.SLAHours, &req.DueAt,
		&req.RequiredReviews, &req.VideoRequiredCount, &req.Status, &req.CreatedAt, &req.ResolvedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NotFound("feedback request not found")
		}
		return nil, err
	}

	var activeClaims, mine int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FILTER (WHERE status IN ('claimed', 'completed')),
		        COUNT(*) FILTER (WHERE reviewer_id = $2)
		 FROM feedback_assignments WHERE feedback_request_id = $1`,
		requestID, reviewerID,
	).Scan(&activeClaims, &mine)
	if err != nil {
		return nil, err
	}
	if err := ClaimCheck(&req, activeClaims, mine > 0, time.Now()); err != nil {
		return nil, err
	}

	var a models.FeedbackAssignment
	err = tx.QueryRow(ctx,
		`INSERT INTO feedback_assignments (id, feedback_request_id, reviewer_id, status)
		 VALUES (gen_random_uuid(), $1, $2, 'claimed')
		 RETURNING id, claimed_at`,
		requestID, reviewerID,
	).Scan(&a.ID, &a.ClaimedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, apperrors.Conflict("request already claimed by this reviewer")
		}
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	a.RequestID = requestID
	a.ReviewerID = reviewerID
	a.Status = models.AssignmentStatusClaimed
	return &a, nil
}

// GetAssignment returns the assignment for (request, reviewer), or nil.
func (r *Repository) GetAssignment(ctx context.Context, requestID, reviewerID uuid.UUID) (*models.FeedbackAssignment, error) {
	q := `SELECT ` + assignmentColumns + ` FROM feedback_assignments
		WHERE feedback_request_id = $1 AND reviewer_id = $2`
	var a models.FeedbackAssignment
	err := r.pool.QueryRow(ctx, q, requestID, reviewerID).Scan(
		&a.ID, &a.RequestID, &a.ReviewerID, &a.Status, &a.CommentText,
		&a.VideoReplyKey, &a.IsVideoReview, &a.ClaimedAt, &a.CompletedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// ListAssignments returns all assignments for a request, oldest claim first.
func (r *Repository) ListAssignments(ctx context.Context, requestID uuid.UUID) ([]models.FeedbackAssignment, error) {
	q := `SELECT ` + assignmentColumns + ` FROM feedback_assignments
		WHERE feedback_request_id = $1 ORDER BY claimed_at ASC`
	rows, err := r.pool.Query(ctx, q, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.FeedbackAssignment
	for rows.Next() {
		var a models.FeedbackAssignment
		if err := rows.Scan(&a.ID, &a.RequestID, &a.ReviewerID, &a.Status, &a.CommentText,
			&a.VideoReplyKey, &a.IsVideoReview, &a.ClaimedAt, &a.CompletedAt); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// Complete marks the reviewer's claimed assignment completed and, when the
// review and video quotas are both met, transitions the request to fulfilled.
// The whole evaluation runs in one transaction with the request row locked, so
// a completion cannot race another completion or a sweep into an inconsistent
// request/assignment pair.
func (r *Repository) Complete(ctx context.Context, requestID, reviewerID uuid.UUID, commentText, videoReplyKey string) (*models.FeedbackAssignment, *models.FeedbackRequest, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	q := `SELECT ` + requestColumns + ` FROM feedback_requests WHERE id = $1 FOR UPDATE`
	var req models.FeedbackRequest
	err = tx.QueryRow(ctx, q, requestID).Scan(
		&req.ID, &req.SessionID, &req.SpaceID, &req.RequestedBy, &req.FocusPrompt, &req.SLAHours, &req.DueAt,
		&req.RequiredReviews, &req.VideoRequiredCount, &req.Status, &req.CreatedAt, &req.ResolvedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil, apperrors.NotFound("feedback request not found")
		}
		return nil, nil, err
	}
	if req.Status != models.RequestStatusOpen {
		if req.Status == models.RequestStatusExpired {
			return nil, nil, apperrors.Expired("feedback request has expired")
		}
		return nil, nil, apperrors.Conflict("feedback request is %s", req.Status)
	}

	var assignmentID uuid.UUID
	var assignmentStatus string
	err = tx.QueryRow(ctx,
		`SELECT id, status FROM feedback_assignments WHERE feedback_request_id = $1 AND reviewer_id = $2 FOR UPDATE`,
		requestID, reviewerID,
	).Scan(&assignmentID, &assignmentStatus)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil, apperrors.NotFound("no claim found for this reviewer")
		}
		return nil, nil, err
	}
	if assignmentStatus != models.AssignmentStatusClaimed {
		return nil, nil, apperrors.Conflict("assignment is %s", assignmentStatus)
	}

	var videoCompletions int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM feedback_assignments
		 WHERE feedback_request_id = $1 AND status = 'completed' AND is_video_review`,
		requestID,
	).Scan(&videoCompletions)
	if err != nil {
		return nil, nil, err
	}
	if videoReplyKey == "" && VideoReplyRequired(req.VideoRequiredCount, videoCompletions) {
		return nil, nil, apperrors.Validation("video reply required: %d more video review(s) needed", req.VideoRequiredCount-videoCompletions)
	}

	isVideo := videoReplyKey != ""
	var a models.FeedbackAssignment
	err = tx.QueryRow(ctx,
		`UPDATE feedback_assignments
		 SET status = 'completed', comment_text = $2, video_reply_key = $3, is_video_review = $4, completed_at = NOW()
		 WHERE id = $1 AND status = 'claimed'
		 RETURNING `+assignmentColumns,
		assignmentID, commentText, videoReplyKey, isVideo,
	).Scan(&a.ID, &a.RequestID, &a.ReviewerID, &a.Status, &a.CommentText,
		&a.VideoReplyKey, &a.IsVideoReview, &a.ClaimedAt, &a.CompletedAt)
	if err != nil {
		return nil, nil, err
	}

	var completed int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE is_video_review)
		 FROM feedback_assignments WHERE feedback_request_id = $1 AND status = 'completed'`,
		requestID,
	).Scan(&completed, &videoCompletions)
	if err != nil {
		return nil, nil, err
	}
	if RequestFulfilled(completed, videoCompletions, req.RequiredReviews, req.VideoRequiredCount) {
		err = tx.QueryRow(ctx,
			`UPDATE feedback_requests SET status = 'fulfilled', resolved_at = NOW()
			 WHERE id = $1 AND status = 'open'
			 RETURNING status, resolved_at`,
			requestID,
		).Scan(&req.Status, &req.ResolvedAt)
		if err != nil {
			return nil, nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return &a, &req, nil
}

// Cancel transitions an open request to cancelled (requester only) and releases
// its still-claimed assignments.
func (r *Repository) Cancel(ctx context.Context, requestID, requesterID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE feedback_requests SET status = 'cancelled', resolved_at = NOW()
		 WHERE id = $1 AND requested_by = $2 AND status = 'open'`,
		requestID, requesterID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		req, err := r.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		switch {
		case req == nil:
			return apperrors.NotFound("feedback request not found")
		case req.RequestedBy != requesterID:
			return apperrors.Forbidden("only the requester may cancel")
		default:
			return apperrors.Conflict("feedback request is %s", req.Status)
		}
	}
	if _, err := tx.Exec(ctx,
		`UPDATE feedback_assignments SET status = 'released'
		 WHERE feedback_request_id = $1 AND status = 'claimed'`,
		requestID,
	); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Release abandons a reviewer's claim, freeing the slot. Claimed-only.
func (r *Repository) Release(ctx context.Context, requestID, reviewerID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE feedback_assignments SET status = 'released'
		 WHERE feedback_request_id = $1 AND reviewer_id = $2 AND status = 'claimed'`,
		requestID, reviewerID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		a, err := r.GetAssignment(ctx, requestID, reviewerID)
		if err != nil {
			return err
		}
		if a == nil {
			return apperrors.NotFound("no claim found for this reviewer")
		}
		return apperrors.Conflict("assignment is %s", a.Status)
	}
	return nil
}

// SweepSpace expires overdue open requests in one space and their claimed
// assignments, returning the expired request IDs. Used by the open-list read
// path so listings are fresh even between background sweeps. Conditional on
// status, so it is idempotent and cannot race a concurrent completion into an
// inconsistent state.
func (r *Repository) SweepSpace(ctx context.Context, spaceID uuid.UUID) ([]uuid.UUID, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		`UPDATE feedback_requests SET status = 'expired', resolved_at = NOW()
		 WHERE space_id = $1 AND status = 'open' AND due_at < NOW()
		 RETURNING id`,
		spaceID,
	)
	if err != nil {
		return nil, err
	}
	expired, err := collectIDs(rows)
	if err != nil {
		return nil, err
	}
	if len(expired) == 0 {
		return nil, tx.Commit(ctx)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE feedback_assignments SET status = 'expired'
		 WHERE feedback_request_id = ANY($1) AND status = 'claimed'`,
		expired,
	); err != nil {
		return nil, err
	}
	return expired, tx.Commit(ctx)
}

// SweepAllOverdue expires every overdue open request and its claimed
// assignments; returns the affected request IDs. Run by the background sweeper.
// A second run with no newly overdue rows matches nothing and writes nothing.
func (r *Repository) SweepAllOverdue(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		`UPDATE feedback_requests SET status = 'expired', resolved_at = $1
		 WHERE status = 'open' AND due_at < $1
		 RETURNING id`,
		now,
	)
	if err != nil {
		return nil, err
	}
	expired, err := collectIDs(rows)
	if err != nil {
		return nil, err
	}
	if len(expired) > 0 {
		if _, err := tx.Exec(ctx,
			`UPDATE feedback_assignments SET status = 'expired'
			 WHERE feedback_request_id = ANY($1) AND status = 'claimed'`,
			expired,
		); err != nil {
			return nil, err
		}
	}
	return expired, tx.Commit(ctx)
}

// ListOpenBySpace returns open requests in a space, soonest deadline first.
// Callers should SweepSpace first so overdue rows are not reported as open.
func (r *Repository) ListOpenBySpace(ctx context.Context, spaceID uuid.UUID) ([]models.FeedbackRequest, error) {
	q := `SELECT ` + requestColumns + ` FROM feedback_requests
		WHERE space_id = $1 AND status = 'open' ORDER BY due_at ASC`
	rows, err := r.pool.Query(ctx, q, spaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.FeedbackRequest
	for rows.Next() {
		var req models.FeedbackRequest
		if err := rows.Scan(&req.ID, &req.SessionID, &req.SpaceID, &req.RequestedBy, &req.FocusPrompt,
			&req.SLAHours, &req.DueAt, &req.RequiredReviews, &req.VideoRequiredCount,
			&req.Status, &req.CreatedAt, &req.ResolvedAt); err != nil {
			return nil, err
		}
		list = append(list, req)
	}
	return list, rows.Err()
}

func collectIDs(rows pgx.Rows) ([]uuid.UUID, error) {
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
