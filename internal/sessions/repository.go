package sessions

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/practika/backend/internal/models"
)

// Repository handles session persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a sessions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new session.
func (r *Repository) Create(ctx context.Context, s *models.Session) error {
	const q = `INSERT INTO sessions (id, owner_id, space_id, title, description, video_key, duration_sec, tags)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, s.OwnerID, s.SpaceID, s.Title, s.Description, s.VideoKey, s.DurationSec, s.Tags).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

// GetByID returns a session by ID, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	const q = `SELECT id, owner_id, space_id, title, COALESCE(description,''), COALESCE(video_key,''), duration_sec, tags, created_at, updated_at
		FROM sessions WHERE id = $1`
	var s models.Session
	err := r.pool.QueryRow(ctx, q, id).Scan(&s.ID, &s.OwnerID, &s.SpaceID, &s.Title, &s.Description, &s.VideoKey, &s.DurationSec, &s.Tags, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// ListBySpace returns sessions shared into a space, newest first.
func (r *Repository) ListBySpace(ctx context.Context, spaceID uuid.UUID) ([]models.Session, error) {
	const q = `SELECT id, owner_id, space_id, title, COALESCE(description,''), COALESCE(video_key,''), duration_sec, tags, created_at, updated_at
		FROM sessions WHERE space_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, q, spaceID)
}

// ListByOwner returns a user's own sessions, newest first.
func (r *Repository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Session, error) {
	const q = `SELECT id, owner_id, space_id, title, COALESCE(description,''), COALESCE(video_key,''), duration_sec, tags, created_at, updated_at
		FROM sessions WHERE owner_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, q, ownerID)
}

func (r *Repository) list(ctx context.Context, q string, arg any) ([]models.Session, error) {
	rows, err := r.pool.Query(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Session
	for rows.Next() {
		var s models.Session
		if err := rows.Scan(&s.ID, &s.OwnerID, &s.SpaceID, &s.Title, &s.Description, &s.VideoKey, &s.DurationSec, &s.Tags, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// Update sets mutable session fields.
func (r *Repository) Update(ctx context.Context, s *models.Session) error {
	const q = `UPDATE sessions SET title = $1, description = $2, tags = $3, updated_at = NOW() WHERE id = $4
		RETURNING updated_at`
	return r.pool.QueryRow(ctx, q, s.Title, s.Description, s.Tags, s.ID).Scan(&s.UpdatedAt)
}

// Delete removes a session. Its feedback requests cascade away.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}
