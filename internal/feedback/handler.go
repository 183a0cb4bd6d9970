package feedback

import (
	"context"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/practika/backend/internal/middleware"
	"github.com/practika/backend/internal/models"
	"github.com/practika/backend/internal/realtime"
	"github.com/practika/backend/internal/spaces"
	"github.com/practika/backend/pkg/response"
	"github.com/practika/backend/pkg/storage"
)

// Store is the persistence surface the handler drives. *Repository satisfies
// it; tests substitute an in-memory implementation.
type Store interface {
	CreateRequest(ctx context.Context, req *models.FeedbackRequest) error
	GetRequest(ctx context.Context, id uuid.UUID) (*models.FeedbackRequest, error)
	Claim(ctx context.Context, requestID, reviewerID uuid.UUID) (*models.FeedbackAssignment, error)
	Complete(ctx context.Context, requestID, reviewerID uuid.UUID, commentText, videoReplyKey string) (*models.FeedbackAssignment, *models.FeedbackRequest, error)
	Cancel(ctx context.Context, requestID, requesterID uuid.UUID) error
	Release(ctx context.Context, requestID, reviewerID uuid.UUID) error
	SweepSpace(ctx context.Context, spaceID uuid.UUID) ([]uuid.UUID, error)
	ListOpenBySpace(ctx context.Context, spaceID uuid.UUID) ([]models.FeedbackRequest, error)
	ListAssignments(ctx context.Context, requestID uuid.UUID) ([]models.FeedbackAssignment, error)
}

// SessionStore resolves sessions for the ownership and space guards.
type SessionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
}

// AccessChecker answers space visibility and membership questions.
type AccessChecker interface {
	CanAccess(ctx context.Context, userID, spaceID uuid.UUID) bool
	IsMember(ctx context.Context, userID, spaceID uuid.UUID) bool
}

// ReplyStorage stores and removes video reply objects. *storage.S3 satisfies it.
type ReplyStorage interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) error
	DeleteObject(ctx context.Context, key string) error
}

// CreateRequestBody is the body for POST /sessions/:id/feedback-requests.
// Zero values fall back to the engine defaults.
type CreateRequestBody struct {
	FocusPrompt        string `json:"focus_prompt"`
	SLAHours           int    `json:"sla_hours"`
	RequiredReviews    int    `json:"required_reviews"`
	VideoRequiredCount *int   `json:"video_required_count,omitempty"`
}

// Handler handles feedback request HTTP endpoints.
type Handler struct {
	repo        Store
	sessionRepo SessionStore
	spaceRepo   AccessChecker
	s3          ReplyStorage
	hub         *realtime.Hub // optional: nil disables event broadcast
	defaultSLA  int
	logger      *zap.Logger
}

// NewHandler creates a feedback handler.
func NewHandler(repo Store, sessionRepo SessionStore, spaceRepo AccessChecker, s3 ReplyStorage, hub *realtime.Hub, defaultSLAHours int, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultSLAHours <= 0 {
		defaultSLAHours = DefaultSLAHours
	}
	return &Handler{
		repo:        repo,
		sessionRepo: sessionRepo,
		spaceRepo:   spaceRepo,
		s3:          s3,
		hub:         hub,
		defaultSLA:  defaultSLAHours,
		logger:      logger,
	}
}

// getVisibleRequest loads a request and conceals it from non-members: both
// absence and lack of space access read as NotFound.
func (h *Handler) getVisibleRequest(c *gin.Context, viewer uuid.UUID) *models.FeedbackRequest {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid feedback request id")
		return nil
	}
	req, err := h.repo.GetRequest(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("get feedback request failed", zap.Error(err))
		response.Internal(c, "failed to load feedback request")
		return nil
	}
	if req == nil || !h.spaceRepo.CanAccess(c.Request.Context(), viewer, req.SpaceID) {
		response.NotFound(c, "feedback request not found")
		return nil
	}
	return req
}

// Create handles POST /sessions/:id/feedback-requests. The requester must own
// the session or be a member of its space; outsiders get NotFound.
func (h *Handler) Create(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	var body CreateRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	userID := middleware.UserID(c)
	session, err := h.sessionRepo.GetByID(c.Request.Context(), sessionID)
	if err != nil {
		h.logger.Error("get session failed", zap.Error(err))
		response.Internal(c, "failed to create feedback request")
		return
	}
	if session == nil {
		response.NotFound(c, "session not found")
		return
	}
	if session.SpaceID == nil {
		response.BadRequest(c, "session is not shared into a space")
		return
	}
	if !h.spaceRepo.CanAccess(c.Request.Context(), userID, *session.SpaceID) {
		response.NotFound(c, "session not found")
		return
	}
	if !spaces.IsOwner(userID, session) && !h.spaceRepo.IsMember(c.Request.Context(), userID, *session.SpaceID) {
		response.Forbidden(c, "not authorized to request feedback on this session")
		return
	}

	slaHours := body.SLAHours
	if slaHours == 0 {
		slaHours = h.defaultSLA
	}
	requiredReviews := body.RequiredReviews
	if requiredReviews == 0 {
		requiredReviews = DefaultRequiredReviews
	}
	videoRequired := DefaultVideoRequiredCount
	if body.VideoRequiredCount != nil {
		videoRequired = *body.VideoRequiredCount
	}
	if videoRequired > requiredReviews && body.VideoRequiredCount == nil {
		videoRequired = requiredReviews
	}
	if err := ValidateCreateParams(slaHours, requiredReviews, videoRequired); err != nil {
		response.Error(c, err)
		return
	}

	now := time.Now()
	req := &models.FeedbackRequest{
		SessionID:          session.ID,
		SpaceID:            *session.SpaceID,
		RequestedBy:        userID,
		FocusPrompt:        body.FocusPrompt,
		SLAHours:           slaHours,
		DueAt:              now.Add(time.Duration(slaHours) * time.Hour),
		RequiredReviews:    requiredReviews,
		VideoRequiredCount: videoRequired,
		Status:             models.RequestStatusOpen,
	}
	if err := h.repo.CreateRequest(c.Request.Context(), req); err != nil {
		h.logger.Error("create feedback request failed", zap.Error(err), zap.String("session_id", sessionID.String()))
		response.Internal(c, "failed to create feedback request")
		return
	}
	h.broadcast(req.SpaceID, realtime.EventRequestCreated, req)
	response.Created(c, req)
}

// ListOpen handles GET /spaces/:id/feedback-requests. The read path sweeps
// overdue open requests in the space before listing, so a request past its SLA
// is never reported open even between background sweeps.
func (h *Handler) ListOpen(c *gin.Context) {
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
	if expired, err := h.repo.SweepSpace(c.Request.Context(), spaceID); err != nil {
		h.logger.Error("lazy sweep failed", zap.Error(err), zap.String("space_id", spaceID.String()))
	} else if len(expired) > 0 {
		h.logger.Info("expired overdue feedback requests on read", zap.Int("count", len(expired)), zap.String("space_id", spaceID.String()))
		for _, id := range expired {
			h.broadcast(spaceID, realtime.EventRequestExpired, gin.H{"request_id": id})
		}
	}
	list, err := h.repo.ListOpenBySpace(c.Request.Context(), spaceID)
	if err != nil {
		h.logger.Error("list open requests failed", zap.Error(err), zap.String("space_id", spaceID.String()))
		response.Internal(c, "failed to list feedback requests")
		return
	}
	response.OK(c, list)
}

// Get handles GET /feedback-requests/:id, returning the request with its
// assignments for any space member.
func (h *Handler) Get(c *gin.Context) {
	req := h.getVisibleRequest(c, middleware.UserID(c))
	if req == nil {
		return
	}
	assignments, err := h.repo.ListAssignments(c.Request.Context(), req.ID)
	if err != nil {
		h.logger.Error("list assignments failed", zap.Error(err), zap.String("request_id", req.ID.String()))
		response.Internal(c, "failed to load feedback request")
		return
	}
	response.OK(c, gin.H{"request": req, "assignments": assignments})
}

// Claim handles POST /feedback-requests/:id/claim. Space members only;
// self-review by the session owner is disallowed.
func (h *Handler) Claim(c *gin.Context) {
	userID := middleware.UserID(c)
	req := h.getVisibleRequest(c, userID)
	if req == nil {
		return
	}
	session, err := h.sessionRepo.GetByID(c.Request.Context(), req.SessionID)
	if err != nil {
		h.logger.Error("get session failed", zap.Error(err))
		response.Internal(c, "failed to claim")
		return
	}
	if session != nil && session.OwnerID == userID {
		response.Forbidden(c, "cannot review your own session")
		return
	}
	a, err := h.repo.Claim(c.Request.Context(), req.ID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.broadcast(req.SpaceID, realtime.EventRequestClaimed, gin.H{"request_id": req.ID, "reviewer_id": userID})
	response.Created(c, a)
}

// Complete handles POST /feedback-requests/:id/complete as a multipart form:
// a "comment" field plus an optional "video_reply" file. While the request's
// video quota is unmet every completion must carry a video reply.
func (h *Handler) Complete(c *gin.Context) {
	userID := middleware.UserID(c)
	req := h.getVisibleRequest(c, userID)
	if req == nil {
		return
	}
	comment := c.PostForm("comment")

	videoKey := ""
	file, header, err := c.Request.FormFile("video_reply")
	if err == nil {
		defer file.Close()
		contentType := header.Header.Get("Content-Type")
		if !storage.ValidateVideoType(contentType) {
			response.BadRequest(c, "unsupported video reply content type")
			return
		}
		if h.s3 == nil {
			response.Internal(c, "storage not configured")
			return
		}
		videoKey = storage.ReplyKey(req.ID, userID, contentType)
		if err := h.s3.Upload(c.Request.Context(), videoKey, contentType, file); err != nil {
			h.logger.Error("upload video reply failed", zap.Error(err), zap.String("request_id", req.ID.String()))
			response.BadGateway(c, "failed to store video reply; retry the completion")
			return
		}
	}

	a, updated, err := h.repo.Complete(c.Request.Context(), req.ID, userID, comment, videoKey)
	if err != nil {
		// The reply object is orphaned if completion was refused; remove it.
		if videoKey != "" && h.s3 != nil {
			if delErr := h.s3.DeleteObject(c.Request.Context(), videoKey); delErr != nil {
				h.logger.Warn("cleanup of video reply failed", zap.Error(delErr), zap.String("key", videoKey))
			}
		}
		response.Error(c, err)
		return
	}
	if updated.Status == models.RequestStatusFulfilled {
		h.broadcast(updated.SpaceID, realtime.EventRequestFulfilled, updated)
	} else {
		h.broadcast(updated.SpaceID, realtime.EventRequestCompleted, gin.H{"request_id": updated.ID, "reviewer_id": userID})
	}
	response.OK(c, gin.H{"assignment": a, "request": updated})
}

// Cancel handles POST /feedback-requests/:id/cancel. Requester only.
func (h *Handler) Cancel(c *gin.Context) {
	userID := middleware.UserID(c)
	req := h.getVisibleRequest(c, userID)
	if req == nil {
		return
	}
	if err := h.repo.Cancel(c.Request.Context(), req.ID, userID); err != nil {
		response.Error(c, err)
		return
	}
	h.broadcast(req.SpaceID, realtime.EventRequestCancelled, gin.H{"request_id": req.ID})
	response.NoContent(c)
}

// Release handles POST /feedback-requests/:id/release, abandoning the caller's
// claim and freeing the slot.
func (h *Handler) Release(c *gin.Context) {
	userID := middleware.UserID(c)
	req := h.getVisibleRequest(c, userID)
	if req == nil {
		return
	}
	if err := h.repo.Release(c.Request.Context(), req.ID, userID); err != nil {
		response.Error(c, err)
		return
	}
	h.broadcast(req.SpaceID, realtime.EventRequestReleased, gin.H{"request_id": req.ID, "reviewer_id": userID})
	response.NoContent(c)
}

func (h *Handler) broadcast(spaceID uuid.UUID, event string, data any) {
	if h.hub == nil {
		return
	}
	if err := h.hub.Broadcast(spaceID, event, data); err != nil {
		h.logger.Warn("broadcast failed", zap.Error(err), zap.String("event", event))
	}
}
