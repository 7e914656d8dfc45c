package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx/types"

	"classchat-service/internal/chat"
	"classchat-service/internal/models"
)

// MessageHandler serves message history, the REST send fallback and
// attachment upload/download.
type MessageHandler struct {
	service *chat.Service
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(service *chat.Service) *MessageHandler {
	return &MessageHandler{service: service}
}

// GetMessages returns one page of a class's history, newest first. The
// cursor query parameter is the id of the oldest message of the previous
// page; an absent cursor starts from the newest message.
func (h *MessageHandler) GetMessages(c *gin.Context) {
	identity, ok := identityOrAbort(c)
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	messages, nextCursor, err := h.service.ListMessages(
		c.Request.Context(), identity, c.Param("class_id"), c.Query("cursor"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages, "nextCursor": nextCursor})
}

// PostMessage sends a message over REST; the persisted message is still
// fanned out to live socket members.
func (h *MessageHandler) PostMessage(c *gin.Context) {
	identity, ok := identityOrAbort(c)
	if !ok {
		return
	}

	var req struct {
		Content         string             `json:"content"`
		MessageType     models.MessageType `json:"messageType" binding:"required"`
		Metadata        types.JSONText     `json:"metadata"`
		TargetStudentID *string            `json:"targetStudentId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.service.Send(c.Request.Context(), identity, c.Param("class_id"), chat.Draft{
		Content:         req.Content,
		Type:            req.MessageType,
		Metadata:        req.Metadata,
		TargetStudentID: req.TargetStudentID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// Upload stores a multipart attachment and sends the file message that
// references it.
func (h *MessageHandler) Upload(c *gin.Context) {
	identity, ok := identityOrAbort(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, chat.MaxFileSize+1<<20)
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file"})
		return
	}
	if fileHeader.Size > chat.MaxFileSize {
		respondError(c, chat.ErrFileTooLarge)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
		return
	}
	defer file.Close()

	msg, err := h.service.UploadAndSend(
		c.Request.Context(), identity, c.Param("class_id"),
		file, fileHeader.Filename, fileHeader.Size,
		fileHeader.Header.Get("Content-Type"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// FileURL returns a signed, expiring download link for an attachment after
// re-checking the caller's membership in the message's class.
func (h *MessageHandler) FileURL(c *gin.Context) {
	identity, ok := identityOrAbort(c)
	if !ok {
		return
	}

	url, err := h.service.FileURL(c.Request.Context(), identity, c.Param("stored_name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// Download redeems a signed token and streams the attachment bytes. The
// token itself is the credential here, so this route sits outside the
// bearer-auth group.
func (h *MessageHandler) Download(c *gin.Context) {
	reader, msg, err := h.service.OpenFile(c.Request.Context(), c.Param("stored_name"), c.Query("token"))
	if err != nil {
		respondError(c, err)
		return
	}
	defer reader.Close()

	contentType := "application/octet-stream"
	if msg.FileMime != nil && *msg.FileMime != "" {
		contentType = *msg.FileMime
	}
	if msg.FileOriginal != nil {
		c.Header("Content-Disposition", `attachment; filename="`+*msg.FileOriginal+`"`)
	}
	if msg.FileSize != nil {
		c.Header("Content-Length", strconv.FormatInt(*msg.FileSize, 10))
	}
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	io.Copy(c.Writer, reader)
}
