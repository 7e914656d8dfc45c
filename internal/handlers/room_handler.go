package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"classchat-service/internal/chat"
	"classchat-service/internal/models"
	"classchat-service/internal/roster"
	"classchat-service/internal/telemetry"
)

// RoomHandler serves room listings, membership and the admin sync trigger.
type RoomHandler struct {
	service      *chat.Service
	synchronizer *roster.Synchronizer
	audit        *telemetry.AuditEmitter
}

// NewRoomHandler builds a RoomHandler.
func NewRoomHandler(service *chat.Service, synchronizer *roster.Synchronizer, audit *telemetry.AuditEmitter) *RoomHandler {
	return &RoomHandler{service: service, synchronizer: synchronizer, audit: audit}
}

// ListRooms returns the class chats visible to the caller, each with a
// privacy-filtered latest-message preview.
func (h *RoomHandler) ListRooms(c *gin.Context) {
	identity, ok := identityOrAbort(c)
	if !ok {
		return
	}

	rooms, err := h.service.ListRooms(c.Request.Context(), identity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// ListMembers returns the persisted membership of one class chat.
func (h *RoomHandler) ListMembers(c *gin.Context) {
	identity, ok := identityOrAbort(c)
	if !ok {
		return
	}

	members, err := h.service.ListMembers(c.Request.Context(), identity, c.Param("class_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

// SyncClass reconciles a class's chat membership against the current roster.
// Admin only; the run is audited whether or not it changed anything.
func (h *RoomHandler) SyncClass(c *gin.Context) {
	identity, ok := identityOrAbort(c)
	if !ok {
		return
	}
	if identity.Role != models.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin role required"})
		return
	}

	classID := c.Param("class_id")
	result, err := h.synchronizer.SyncClass(c.Request.Context(), classID)
	if err != nil {
		h.audit.Emit(c.Request.Context(), "error",
			fmt.Sprintf("membership sync failed for class %s: %v", classID, err),
			requestIDFromContext(c), actorIDFromContext(c))
		respondError(c, err)
		return
	}

	h.audit.Emit(c.Request.Context(), "info",
		fmt.Sprintf("membership sync for class %s: added=%d updated=%d removed=%d",
			classID, result.Added, result.Updated, result.Removed),
		requestIDFromContext(c), actorIDFromContext(c))
	c.JSON(http.StatusOK, result)
}
