package uploads

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/practika/backend/internal/middleware"
	"github.com/practika/backend/internal/models"
	"github.com/practika/backend/internal/spaces"
	"github.com/practika/backend/pkg/apperrors"
	"github.com/practika/backend/pkg/response"
	"github.com/practika/backend/pkg/storage"
)

// StorageBackend is the multipart contract the coordinator depends on. The S3
// client satisfies it; tests substitute a fake.
type StorageBackend interface {
	CreateMultipart(ctx context.Context, key, contentType string) (string, error)
	SignPartURL(ctx context.Context, key, uploadID string, partNumber int32, ttl time.Duration) (string, error)
	CompleteMultipart(ctx context.Context, key, uploadID string, parts []storage.Part) (string, error)
	AbortMultipart(ctx context.Context, key, uploadID string) error
}

// InitiateRequest is the body for POST /uploads.
type InitiateRequest struct {
	SpaceID     *uuid.UUID `json:"space_id,omitempty"`
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	Tags        []string   `json:"tags"`
	DurationSec int        `json:"duration_sec"`
	Filename    string     `json:"filename" binding:"required"`
	ContentType string     `json:"content_type" binding:"required"`
	SizeBytes   int64      `json:"size_bytes" binding:"required"`
}

// CompleteRequest is the body for POST /uploads/:id/complete.
type CompleteRequest struct {
	Parts []storage.Part `json:"parts" binding:"required"`
}

// Handler coordinates the multipart session upload lifecycle.
type Handler struct {
	repo         *Repository
	spaceRepo    *spaces.Repository
	backend      StorageBackend
	maxSizeBytes int64
	ttl          time.Duration
	signTTL      time.Duration
	logger       *zap.Logger
}

// NewHandler creates an uploads handler.
func NewHandler(repo *Repository, spaceRepo *spaces.Repository, backend StorageBackend, maxSizeBytes int64, ttl, signTTL time.Duration, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		repo:         repo,
		spaceRepo:    spaceRepo,
		backend:      backend,
		maxSizeBytes: maxSizeBytes,
		ttl:          ttl,
		signTTL:      signTTL,
		logger:       logger,
	}
}

// getOpenUpload loads the caller's upload and checks it is still usable.
// Non-owners get NotFound regardless of the upload's existence; a lapsed TTL
// reads as Expired, any other terminal status as Conflict.
func (h *Handler) getOpenUpload(c *gin.Context, userID uuid.UUID) *models.MultipartSessionUpload {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid upload id")
		return nil
	}
	u, err := h.repo.GetForUser(c.Request.Context(), id, userID)
	if err != nil {
		h.logger.Error("get upload failed", zap.Error(err))
		response.Internal(c, "failed to load upload")
		return nil
	}
	if u == nil {
		response.NotFound(c, "upload not found")
		return nil
	}
	switch u.Status {
	case models.UploadStatusInitiated:
	case models.UploadStatusExpired:
		response.Error(c, apperrors.Expired("upload window has lapsed"))
		return nil
	default:
		response.Error(c, apperrors.Conflict("upload is %s", u.Status))
		return nil
	}
	if !u.ExpiresAt.After(time.Now()) {
		response.Error(c, apperrors.Expired("upload window has lapsed"))
		return nil
	}
	return u
}

// Initiate handles POST /uploads: allocates a namespaced storage key, opens the
// storage-side multipart session, and persists the initiated record.
func (h *Handler) Initiate(c *gin.Context) {
	var req InitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.SizeBytes <= 0 || req.SizeBytes > h.maxSizeBytes {
		response.BadRequest(c, "size_bytes must be between 1 and "+strconv.FormatInt(h.maxSizeBytes, 10))
		return
	}
	if !storage.ValidateVideoType(req.ContentType) {
		response.BadRequest(c, "unsupported content type: "+req.ContentType)
		return
	}
	userID := middleware.UserID(c)
	if req.SpaceID != nil && !h.spaceRepo.IsMember(c.Request.Context(), userID, *req.SpaceID) {
		response.NotFound(c, "space not found")
		return
	}

	key := storage.SessionKey(userID, uuid.New(), req.Filename)
	storageUploadID, err := h.backend.CreateMultipart(c.Request.Context(), key, req.ContentType)
	if err != nil {
		h.logger.Error("create multipart failed", zap.Error(err), zap.String("key", key))
		response.BadGateway(c, "storage backend unavailable; retry the upload")
		return
	}

	u := &models.MultipartSessionUpload{
		UserID:          userID,
		SpaceID:         req.SpaceID,
		Title:           req.Title,
		Description:     req.Description,
		Tags:            req.Tags,
		DurationSec:     req.DurationSec,
		Filename:        req.Filename,
		ContentType:     req.ContentType,
		SizeBytes:       req.SizeBytes,
		StorageKey:      key,
		StorageUploadID: storageUploadID,
		Status:          models.UploadStatusInitiated,
		ExpiresAt:       time.Now().Add(h.ttl),
	}
	if err := h.repo.Create(c.Request.Context(), u); err != nil {
		// Local record failed; do not strand the storage-side session.
		if abortErr := h.backend.AbortMultipart(c.Request.Context(), key, storageUploadID); abortErr != nil {
			h.logger.Warn("abort after failed create", zap.Error(abortErr), zap.String("key", key))
		}
		h.logger.Error("create upload failed", zap.Error(err))
		response.Internal(c, "failed to initiate upload")
		return
	}
	response.Created(c, u)
}

// SignPart handles GET /uploads/:id/parts/:part/url, returning a time-limited
// presigned URL for uploading one part.
func (h *Handler) SignPart(c *gin.Context) {
	u := h.getOpenUpload(c, middleware.UserID(c))
	if u == nil {
		return
	}
	part, err := strconv.Atoi(c.Param("part"))
	if err != nil || part < 1 || part > MaxParts {
		response.BadRequest(c, "part must be between 1 and "+strconv.Itoa(MaxParts))
		return
	}
	url, err := h.backend.SignPartURL(c.Request.Context(), u.StorageKey, u.StorageUploadID, int32(part), h.signTTL)
	if err != nil {
		h.logger.Error("sign part failed", zap.Error(err), zap.String("upload_id", u.ID.String()), zap.Int("part", part))
		response.BadGateway(c, "storage backend unavailable; retry")
		return
	}
	response.OK(c, gin.H{"url": url, "part_number": part, "expires_in": int(h.signTTL.Seconds())})
}

// Complete handles POST /uploads/:id/complete. Parts are validated for
// contiguity before the storage backend is touched; a backend failure leaves
// the upload initiated and retriable.
func (h *Handler) Complete(c *gin.Context) {
	u := h.getOpenUpload(c, middleware.UserID(c))
	if u == nil {
		return
	}
	var req CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := ValidateParts(req.Parts); err != nil {
		response.Error(c, err)
		return
	}

	if _, err := h.backend.CompleteMultipart(c.Request.Context(), u.StorageKey, u.StorageUploadID, req.Parts); err != nil {
		h.logger.Error("complete multipart failed", zap.Error(err), zap.String("upload_id", u.ID.String()))
		response.BadGateway(c, "storage backend failed; upload remains open, retry completion")
		return
	}

	session, err := h.repo.Complete(c.Request.Context(), u)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.logger.Info("multipart upload completed",
		zap.String("upload_id", u.ID.String()),
		zap.String("session_id", session.ID.String()),
		zap.Int64("size_bytes", u.SizeBytes),
	)
	response.OK(c, gin.H{"upload": u, "session": session})
}

// Abort handles POST /uploads/:id/abort.
func (h *Handler) Abort(c *gin.Context) {
	u := h.getOpenUpload(c, middleware.UserID(c))
	if u == nil {
		return
	}
	if err := h.backend.AbortMultipart(c.Request.Context(), u.StorageKey, u.StorageUploadID); err != nil {
		h.logger.Error("abort multipart failed", zap.Error(err), zap.String("upload_id", u.ID.String()))
		response.BadGateway(c, "storage backend unavailable; retry abort")
		return
	}
	if err := h.repo.MarkAborted(c.Request.Context(), u.ID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListOpen handles GET /uploads, listing the caller's initiated uploads.
func (h *Handler) ListOpen(c *gin.Context) {
	list, err := h.repo.ListForUser(c.Request.Context(), middleware.UserID(c), models.UploadStatusInitiated)
	if err != nil {
		h.logger.Error("list uploads failed", zap.Error(err))
		response.Internal(c, "failed to list uploads")
		return
	}
	response.OK(c, list)
}
