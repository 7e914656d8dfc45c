package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"classchat-service/internal/telemetry"
	"classchat-service/internal/ws"
)

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router *gin.Engine, emitter *telemetry.AuditEmitter, hub *ws.Hub, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitter.Emit(c.Request.Context(), "info", "audit test", requestIDFromContext(c), actorIDFromContext(c))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/debug/rooms/:class_id/size", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"class_id": c.Param("class_id"), "connections": hub.Size(c.Param("class_id"))})
	})
}
