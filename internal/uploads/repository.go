package uploads

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/practika/backend/internal/models"
	"github.com/practika/backend/pkg/apperrors"
)

const uploadColumns = `id, user_id, space_id, session_id, title, COALESCE(description,''), tags, duration_sec,
	filename, content_type, size_bytes, storage_key, storage_upload_id, status, expires_at, completed_at, created_at, updated_at`

// Repository handles multipart session upload persistence. Terminal
// transitions are conditional on status = 'initiated' so a completion cannot
// race an abort or a sweep.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an uploads repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create persists a new initiated upload.
func (r *Repository) Create(ctx context.Context, u *models.MultipartSessionUpload) error {
	const q = `INSERT INTO multipart_session_uploads
		(id, user_id, space_id, title, description, tags, duration_sec, filename, content_type, size_bytes, storage_key, storage_upload_id, status, expires_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q,
		u.UserID, u.SpaceID, u.Title, u.Description, u.Tags, u.DurationSec,
		u.Filename, u.ContentType, u.SizeBytes, u.StorageKey, u.StorageUploadID,
		models.UploadStatusInitiated, u.ExpiresAt,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
}

func scanUpload(row pgx.Row) (*models.MultipartSessionUpload, error) {
	var u models.MultipartSessionUpload
	err := row.Scan(&u.ID, &u.UserID, &u.SpaceID, &u.SessionID, &u.Title, &u.Description, &u.Tags, &u.DurationSec,
		&u.Filename, &u.ContentType, &u.SizeBytes, &u.StorageKey, &u.StorageUploadID, &u.Status,
		&u.ExpiresAt, &u.CompletedAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// GetForUser returns the upload only when it belongs to userID; anyone else
// sees nil, concealing the upload's existence.
func (r *Repository) GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.MultipartSessionUpload, error) {
	q := `SELECT ` + uploadColumns + ` FROM multipart_session_uploads WHERE id = $1 AND user_id = $2`
	return scanUpload(r.pool.QueryRow(ctx, q, id, userID))
}

// ListForUser returns a user's uploads with the given status, newest first.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID, status string) ([]models.MultipartSessionUpload, error) {
	q := `SELECT ` + uploadColumns + ` FROM multipart_session_uploads
		WHERE user_id = $1 AND status = $2 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, userID, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.MultipartSessionUpload
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *u)
	}
	return list, rows.Err()
}

// Complete materializes the Session from the upload's stored metadata and
// marks the upload completed, in one transaction. The status condition on the
// update closes the race against a concurrent abort or sweep: losing it rolls
// the Session back and reports Conflict.
func (r *Repository) Complete(ctx context.Context, u *models.MultipartSessionUpload) (*models.Session, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	s := &models.Session{
		OwnerID:     u.UserID,
		SpaceID:     u.SpaceID,
		Title:       u.Title,
		Description: u.Description,
		VideoKey:    u.StorageKey,
		DurationSec: u.DurationSec,
		Tags:        u.Tags,
	}
	const qs = `INSERT INTO sessions (id, owner_id, space_id, title, description, video_key, duration_sec, tags)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`
	if err := tx.QueryRow(ctx, qs, s.OwnerID, s.SpaceID, s.Title, s.Description, s.VideoKey, s.DurationSec, s.Tags).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}

	tag, err := tx.Exec(ctx,
		`UPDATE multipart_session_uploads
		 SET status = 'completed', session_id = $2, completed_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND status = 'initiated'`,
		u.ID, s.ID,
	)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, apperrors.Conflict("upload is no longer open")
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	u.Status = models.UploadStatusCompleted
	u.SessionID = &s.ID
	return s, nil
}

// MarkAborted transitions an initiated upload to aborted.
func (r *Repository) MarkAborted(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE multipart_session_uploads SET status = 'aborted', updated_at = NOW()
		 WHERE id = $1 AND status = 'initiated'`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.Conflict("upload is no longer open")
	}
	return nil
}

// ExpiredUpload carries what the sweeper needs to abort the storage side.
type ExpiredUpload struct {
	ID              uuid.UUID
	StorageKey      string
	StorageUploadID string
}

// SweepExpired transitions initiated uploads past their TTL to expired and
// returns them so callers can enqueue storage-side aborts. Conditional on
// status, so reruns with no newly overdue rows write nothing.
func (r *Repository) SweepExpired(ctx context.Context, now time.Time) ([]ExpiredUpload, error) {
	rows, err := r.pool.Query(ctx,
		`UPDATE multipart_session_uploads SET status = 'expired', updated_at = $1
		 WHERE status = 'initiated' AND expires_at < $1
		 RETURNING id, storage_key, storage_upload_id`,
		now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var swept []ExpiredUpload
	for rows.Next() {
		var e ExpiredUpload
		if err := rows.Scan(&e.ID, &e.StorageKey, &e.StorageUploadID); err != nil {
			return nil, err
		}
		swept = append(swept, e)
	}
	return swept, rows.Err()
}
