package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/practika/backend/pkg/apperrors"
)

// Body is the standard API response envelope.
type Body struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Kind    string      `json:"kind,omitempty"` // error taxonomy kind for clients
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// NoContent sends 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest sends 400 with error message.
func BadRequest(c *gin.Context, err string) {
	c.JSON(http.StatusBadRequest, Body{Success: false, Error: err, Kind: apperrors.KindValidation.String()})
}

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, err string) {
	c.JSON(http.StatusUnauthorized, Body{Success: false, Error: err})
}

// Forbidden sends 403.
func Forbidden(c *gin.Context, err string) {
	c.JSON(http.StatusForbidden, Body{Success: false, Error: err, Kind: apperrors.KindForbidden.String()})
}

// NotFound sends 404.
func NotFound(c *gin.Context, err string) {
	c.JSON(http.StatusNotFound, Body{Success: false, Error: err, Kind: apperrors.KindNotFound.String()})
}

// Conflict sends 409.
func Conflict(c *gin.Context, err string) {
	c.JSON(http.StatusConflict, Body{Success: false, Error: err, Kind: apperrors.KindConflict.String()})
}

// Gone sends 410 for lapsed time-bound resources, distinct from 404 so clients
// can explain why the action is no longer possible.
func Gone(c *gin.Context, err string) {
	c.JSON(http.StatusGone, Body{Success: false, Error: err, Kind: apperrors.KindExpired.String()})
}

// BadGateway sends 502 for transient storage-backend failures; safe to retry.
func BadGateway(c *gin.Context, err string) {
	c.JSON(http.StatusBadGateway, Body{Success: false, Error: err, Kind: apperrors.KindTransientBackend.String()})
}

// Internal sends 500.
func Internal(c *gin.Context, err string) {
	c.JSON(http.StatusInternalServerError, Body{Success: false, Error: err})
}

// StatusForKind returns the HTTP status used for an error kind.
func StatusForKind(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindValidation:
		return http.StatusBadRequest
	case apperrors.KindForbidden:
		return http.StatusForbidden
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindConflict:
		return http.StatusConflict
	case apperrors.KindExpired:
		return http.StatusGone
	case apperrors.KindTransientBackend:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// Error maps a typed error from the core to its HTTP response. Untyped errors
// become 500 with a generic message so internals do not leak.
func Error(c *gin.Context, err error) {
	kind := apperrors.KindOf(err)
	if kind == 0 {
		c.JSON(http.StatusInternalServerError, Body{Success: false, Error: "internal error"})
		return
	}
	c.JSON(StatusForKind(kind), Body{Success: false, Error: apperrors.MessageOf(err), Kind: kind.String()})
}
