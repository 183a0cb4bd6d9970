package spaces

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/practika/backend/internal/middleware"
	"github.com/practika/backend/internal/models"
	"github.com/practika/backend/pkg/response"
)

// CreateRequest is the body for POST /spaces.
type CreateRequest struct {
	Name string `json:"name" binding:"required"`
}

// JoinRequest is the body for POST /spaces/join.
type JoinRequest struct {
	InviteCode string `json:"invite_code" binding:"required"`
}

// Handler handles space HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a spaces handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// Create handles POST /spaces. The creator becomes the owner member.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	code, err := generateInviteCode()
	if err != nil {
		h.logger.Error("generate invite code failed", zap.Error(err))
		response.Internal(c, "failed to create space")
		return
	}
	space := &models.Space{
		Name:       req.Name,
		InviteCode: code,
		CreatedBy:  middleware.UserID(c),
	}
	if err := h.repo.Create(c.Request.Context(), space); err != nil {
		h.logger.Error("create space failed", zap.Error(err))
		response.Internal(c, "failed to create space")
		return
	}
	response.Created(c, space)
}

// Join handles POST /spaces/join. Joining an already-joined space is a no-op.
func (h *Handler) Join(c *gin.Context) {
	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	space, err := h.repo.GetByInviteCode(c.Request.Context(), req.InviteCode)
	if err != nil {
		h.logger.Error("lookup space failed", zap.Error(err))
		response.Internal(c, "failed to join space")
		return
	}
	if space == nil {
		response.NotFound(c, "invalid invite code")
		return
	}
	if err := h.repo.AddMember(c.Request.Context(), space.ID, middleware.UserID(c), models.SpaceRoleMember); err != nil {
		h.logger.Error("add member failed", zap.Error(err), zap.String("space_id", space.ID.String()))
		response.Internal(c, "failed to join space")
		return
	}
	response.OK(c, space)
}

// ListMine handles GET /spaces.
func (h *Handler) ListMine(c *gin.Context) {
	list, err := h.repo.ListForUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.logger.Error("list spaces failed", zap.Error(err))
		response.Internal(c, "failed to list spaces")
		return
	}
	response.OK(c, list)
}

// ListMembers handles GET /spaces/:id/members. Members only; outsiders get
// NotFound so the space's existence is not confirmed.
func (h *Handler) ListMembers(c *gin.Context) {
	spaceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid space id")
		return
	}
	userID := middleware.UserID(c)
	if !h.repo.CanAccess(c.Request.Context(), userID, spaceID) {
		response.NotFound(c, "space not found")
		return
	}
	members, err := h.repo.ListMembers(c.Request.Context(), spaceID)
	if err != nil {
		h.logger.Error("list members failed", zap.Error(err), zap.String("space_id", spaceID.String()))
		response.Internal(c, "failed to list members")
		return
	}
	response.OK(c, members)
}

func generateInviteCode() (string, error) {
	b := make([]byte, 9)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
