package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"classchat-service/internal/auth"
	"classchat-service/internal/chat"
	"classchat-service/internal/middleware"
	"classchat-service/internal/repositories"
	"classchat-service/internal/storage"
)

const requestIDContextKey = "request_id"

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

func actorIDFromContext(c *gin.Context) *string {
	if identity, ok := middleware.IdentityFromContext(c); ok && identity.ID != "" {
		id := identity.ID
		return &id
	}
	return nil
}

// identityOrAbort returns the authenticated identity or writes a 401.
func identityOrAbort(c *gin.Context) (auth.Identity, bool) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
	}
	return identity, ok
}

// respondError maps domain failures onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chat.ErrNotMember),
		errors.Is(err, chat.ErrKindNotAllowed):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, chat.ErrInvalidMessageType),
		errors.Is(err, chat.ErrEmptyContent),
		errors.Is(err, chat.ErrFileTooLarge),
		errors.Is(err, chat.ErrFileTypeNotAllowed):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repositories.ErrMessageNotFound),
		errors.Is(err, repositories.ErrClassNotFound),
		errors.Is(err, storage.ErrBlobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, storage.ErrBadToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired download token"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
