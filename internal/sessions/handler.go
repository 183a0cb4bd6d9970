package sessions

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/practika/backend/internal/middleware"
	"github.com/practika/backend/internal/models"
	"github.com/practika/backend/internal/spaces"
	"github.com/practika/backend/pkg/response"
	"github.com/practika/backend/pkg/storage"
)

// CreateRequest is the body for POST /sessions (direct, non-multipart creation).
type CreateRequest struct {
	SpaceID     *uuid.UUID `json:"space_id,omitempty"`
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	VideoKey    string     `json:"video_key"`
	DurationSec int        `json:"duration_sec"`
	Tags        []string   `json:"tags"`
}

// UpdateRequest is the body for PATCH /sessions/:id.
type UpdateRequest struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
}

// Handler handles session HTTP endpoints.
type Handler struct {
	repo      *Repository
	spaceRepo *spaces.Repository
	s3        *storage.S3
	logger    *zap.Logger
}

// NewHandler creates a sessions handler.
func NewHandler(repo *Repository, spaceRepo *spaces.Repository, s3 *storage.S3, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, spaceRepo: spaceRepo, s3: s3, logger: logger}
}

// getVisible loads a session and applies visibility: absent sessions and
// sessions in spaces the viewer cannot see both read as NotFound.
func (h *Handler) getVisible(c *gin.Context, viewer uuid.UUID) *models.Session {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return nil
	}
	s, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("get session failed", zap.Error(err))
		response.Internal(c, "failed to load session")
		return nil
	}
	if s == nil {
		response.NotFound(c, "session not found")
		return nil
	}
	if s.OwnerID != viewer {
		if s.SpaceID == nil || !h.spaceRepo.CanAccess(c.Request.Context(), viewer, *s.SpaceID) {
			response.NotFound(c, "session not found")
			return nil
		}
	}
	return s
}

// Create handles POST /sessions. Any space member may add sessions to a shared
// space; a session without a space is private to its owner.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := middleware.UserID(c)
	if req.SpaceID != nil && !h.spaceRepo.IsMember(c.Request.Context(), userID, *req.SpaceID) {
		response.NotFound(c, "space not found")
		return
	}
	s := &models.Session{
		OwnerID:     userID,
		SpaceID:     req.SpaceID,
		Title:       req.Title,
		Description: req.Description,
		VideoKey:    req.VideoKey,
		DurationSec: req.DurationSec,
		Tags:        req.Tags,
	}
	if err := h.repo.Create(c.Request.Context(), s); err != nil {
		h.logger.Error("create session failed", zap.Error(err))
		response.Internal(c, "failed to create session")
		return
	}
	response.Created(c, s)
}

// Get handles GET /sessions/:id.
func (h *Handler) Get(c *gin.Context) {
	s := h.getVisible(c, middleware.UserID(c))
	if s == nil {
		return
	}
	response.OK(c, s)
}

// ListBySpace handles GET /spaces/:id/sessions.
func (h *Handler) ListBySpace(c *gin.Context) {
	spaceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid space id")
		return
	}
	userID := middleware.UserID(c)
	if !h.spaceRepo.CanAccess(c.Request.Context(), userID, spaceID) {
		response.NotFound(c, "space not found")
		return
	}
	list, err := h.repo.ListBySpace(c.Request.Context(), spaceID)
	if err != nil {
		h.logger.Error("list sessions failed", zap.Error(err), zap.String("space_id", spaceID.String()))
		response.Internal(c, "failed to list sessions")
		return
	}
	response.OK(c, list)
}

// ListMine handles GET /sessions.
func (h *Handler) ListMine(c *gin.Context) {
	list, err := h.repo.ListByOwner(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.logger.Error("list own sessions failed", zap.Error(err))
		response.Internal(c, "failed to list sessions")
		return
	}
	response.OK(c, list)
}

// Update handles PATCH /sessions/:id. Owner only; members get Forbidden since
// they can already see the session.
func (h *Handler) Update(c *gin.Context) {
	userID := middleware.UserID(c)
	s := h.getVisible(c, userID)
	if s == nil {
		return
	}
	if !spaces.IsOwner(userID, s) {
		response.Forbidden(c, "only the owner may edit this session")
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Title != nil {
		s.Title = *req.Title
	}
	if req.Description != nil {
		s.Description = *req.Description
	}
	if req.Tags != nil {
		s.Tags = *req.Tags
	}
	if err := h.repo.Update(c.Request.Context(), s); err != nil {
		h.logger.Error("update session failed", zap.Error(err), zap.String("session_id", s.ID.String()))
		response.Internal(c, "failed to update session")
		return
	}
	response.OK(c, s)
}

// Delete handles DELETE /sessions/:id. Owner only. The stored video object is
// removed best-effort after the row.
func (h *Handler) Delete(c *gin.Context) {
	userID := middleware.UserID(c)
	s := h.getVisible(c, userID)
	if s == nil {
		return
	}
	if !spaces.IsOwner(userID, s) {
		response.Forbidden(c, "only the owner may delete this session")
		return
	}
	if err := h.repo.Delete(c.Request.Context(), s.ID); err != nil {
		h.logger.Error("delete session failed", zap.Error(err), zap.String("session_id", s.ID.String()))
		response.Internal(c, "failed to delete session")
		return
	}
	if h.s3 != nil && s.VideoKey != "" {
		if err := h.s3.DeleteObject(c.Request.Context(), s.VideoKey); err != nil {
			h.logger.Warn("delete session video failed", zap.Error(err), zap.String("video_key", s.VideoKey))
		}
	}
	response.NoContent(c)
}

// PlaybackURL handles GET /sessions/:id/playback-url. Returns a presigned GET
// URL for any viewer who can see the session.
func (h *Handler) PlaybackURL(c *gin.Context) {
	s := h.getVisible(c, middleware.UserID(c))
	if s == nil {
		return
	}
	if s.VideoKey == "" {
		response.BadRequest(c, "session has no video")
		return
	}
	if h.s3 == nil {
		response.Internal(c, "storage not configured")
		return
	}
	expire := h.s3.PresignExpire()
	url, err := h.s3.PresignDownloadURL(c.Request.Context(), s.VideoKey, expire)
	if err != nil {
		h.logger.Error("presign playback failed", zap.Error(err), zap.String("session_id", s.ID.String()))
		response.Internal(c, "failed to generate playback URL")
		return
	}
	response.OK(c, gin.H{"playback_url": url, "expires_in": int(expire.Seconds())})
}
