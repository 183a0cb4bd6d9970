package models

import (
	"time"

	"github.com/google/uuid"
)

// SpaceMemberRole is the role of a user in a space.
const (
	SpaceRoleOwner  = "owner"
	SpaceRoleMember = "member"
)

// Space is a collaborative group containing sessions, with an owner and members.
type Space struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	InviteCode string    `json:"invite_code"`
	CreatedBy  uuid.UUID `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SpaceMember links a user to a space with a role.
type SpaceMember struct {
	ID        uuid.UUID `json:"id"`
	SpaceID   uuid.UUID `json:"space_id"`
	UserID    uuid.UUID `json:"user_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
