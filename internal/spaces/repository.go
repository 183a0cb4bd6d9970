package spaces

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/practika/backend/internal/models"
)

// Repository handles space and space_member persistence, and answers the
// membership questions that gate every session, feedback, and upload operation.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a spaces repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create creates a space and enrolls the creator as its owner member.
func (r *Repository) Create(ctx context.Context, space *models.Space) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const q = `INSERT INTO spaces (id, name, invite_code, created_by)
		VALUES (gen_random_uuid(), $1, $2, $3)
		RETURNING id, created_at, updated_at`
	if err := tx.QueryRow(ctx, q, space.Name, space.InviteCode, space.CreatedBy).
		Scan(&space.ID, &space.CreatedAt, &space.UpdatedAt); err != nil {
		return err
	}
	const qm = `INSERT INTO space_members (id, space_id, user_id, role)
		VALUES (gen_random_uuid(), $1, $2, $3)`
	if _, err := tx.Exec(ctx, qm, space.ID, space.CreatedBy, models.SpaceRoleOwner); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetByID returns a space by ID, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Space, error) {
	const q = `SELECT id, name, invite_code, created_by, created_at, updated_at FROM spaces WHERE id = $1`
	var s models.Space
	err := r.pool.QueryRow(ctx, q, id).Scan(&s.ID, &s.Name, &s.InviteCode, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// GetByInviteCode returns a space by invite code, or nil when absent.
func (r *Repository) GetByInviteCode(ctx context.Context, code string) (*models.Space, error) {
	const q = `SELECT id, name, invite_code, created_by, created_at, updated_at FROM spaces WHERE invite_code = $1`
	var s models.Space
	err := r.pool.QueryRow(ctx, q, code).Scan(&s.ID, &s.Name, &s.InviteCode, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// AddMember enrolls a user in a space. Re-joining is a no-op.
func (r *Repository) AddMember(ctx context.Context, spaceID, userID uuid.UUID, role string) error {
	const q = `INSERT INTO space_members (id, space_id, user_id, role)
		VALUES (gen_random_uuid(), $1, $2, $3)
		ON CONFLICT (space_id, user_id) DO NOTHING`
	_, err := r.pool.Exec(ctx, q, spaceID, userID, role)
	return err
}

// IsMember reports whether the user belongs to the space. False, never an
// error-throwing denial: lookup failures read as "no".
func (r *Repository) IsMember(ctx context.Context, userID, spaceID uuid.UUID) bool {
	const q = `SELECT 1 FROM space_members WHERE space_id = $1 AND user_id = $2`
	var one int
	if err := r.pool.QueryRow(ctx, q, spaceID, userID).Scan(&one); err != nil {
		return false
	}
	return true
}

// CanAccess reports whether the user may see resources in the space. Currently
// equivalent to membership; callers translate false into NotFound so existence
// is concealed from outsiders.
func (r *Repository) CanAccess(ctx context.Context, userID, spaceID uuid.UUID) bool {
	return r.IsMember(ctx, userID, spaceID)
}

// IsOwner reports whether the user owns the session.
func IsOwner(userID uuid.UUID, session *models.Session) bool {
	return session != nil && session.OwnerID == userID
}

// ListForUser returns spaces the user is a member of.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Space, error) {
	const q = `SELECT s.id, s.name, s.invite_code, s.created_by, s.created_at, s.updated_at
		FROM spaces s
		INNER JOIN space_members m ON m.space_id = s.id
		WHERE m.user_id = $1
		ORDER BY s.name`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Space
	for rows.Next() {
		var s models.Space
		if err := rows.Scan(&s.ID, &s.Name, &s.InviteCode, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &s)
	}
	return list, rows.Err()
}

// Member is a space member with user details (for GET /spaces/:id/members).
type Member struct {
	ID       uuid.UUID `json:"id"`
	UserID   uuid.UUID `json:"user_id"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// ListMembers returns members of a space (join space_members + users).
func (r *Repository) ListMembers(ctx context.Context, spaceID uuid.UUID) ([]Member, error) {
	const q = `SELECT m.id, m.user_id, u.email, COALESCE(u.full_name, ''), m.role, m.created_at
		FROM space_members m
		INNER JOIN users u ON u.id = m.user_id
		WHERE m.space_id = $1
		ORDER BY m.created_at ASC`
	rows, err := r.pool.Query(ctx, q, spaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.UserID, &m.Email, &m.FullName, &m.Role, &m.JoinedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}
