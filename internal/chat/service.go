// Package chat implements the message service shared by the REST and socket
// paths: authorization, validation, persistence, broadcast and attachments.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"

	"classchat-service/internal/auth"
	"classchat-service/internal/models"
	"classchat-service/internal/observability"
	"classchat-service/internal/privacy"
	"classchat-service/internal/rabbitmq"
	"classchat-service/internal/repositories"
	"classchat-service/internal/storage"
)

var (
	ErrNotMember          = errors.New("not a member of this class chat")
	ErrKindNotAllowed     = errors.New("message type not allowed for role")
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrEmptyContent       = errors.New("message content is empty")
	ErrFileTooLarge       = errors.New("file exceeds the maximum size")
	ErrFileTypeNotAllowed = errors.New("file type not allowed")
)

// MaxFileSize caps attachment uploads at 500 MB.
const MaxFileSize = 500 << 20

// DefaultPageSize and MaxPageSize bound history pagination.
const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

var allowedExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {}, ".bmp": {}, ".svg": {},
	".pdf": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {}, ".ppt": {}, ".pptx": {},
	".txt": {}, ".csv": {}, ".md": {},
}

var allowedMimePrefixes = []string{
	"image/",
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument",
	"application/vnd.ms-excel",
	"application/vnd.ms-powerpoint",
	"text/plain",
	"text/csv",
	"text/markdown",
}

// broadcaster is the slice of the hub the service needs.
type broadcaster interface {
	BroadcastMessage(classID string, msg models.ChatMessage)
}

// Draft is an unsent message as received from a client.
type Draft struct {
	Content         string
	Type            models.MessageType
	Metadata        types.JSONText
	TargetStudentID *string

	// Attachment fields, populated by UploadAndSend only.
	FileName     *string
	FileOriginal *string
	FileSize     *int64
	FileMime     *string
}

// Service validates, persists and broadcasts chat messages, and serves
// privacy-filtered reads. Both the socket path and the REST fallback go
// through it.
type Service struct {
	members   repositories.MemberRepository
	messages  repositories.MessageRepository
	roster    repositories.RosterRepository
	hub       broadcaster
	blobs     storage.BlobStore
	signer    *storage.DownloadSigner
	publisher rabbitmq.Publisher
}

// NewService constructs a Service.
func NewService(
	members repositories.MemberRepository,
	messages repositories.MessageRepository,
	roster repositories.RosterRepository,
	hub broadcaster,
	blobs storage.BlobStore,
	signer *storage.DownloadSigner,
	publisher rabbitmq.Publisher,
) *Service {
	return &Service{
		members:   members,
		messages:  messages,
		roster:    roster,
		hub:       hub,
		blobs:     blobs,
		signer:    signer,
		publisher: publisher,
	}
}

// Authorize checks whether the viewer may use the class's chat. Students and
// staff are checked against the persisted membership table; parents are
// checked live against their children's current enrollment, so their access
// tracks class moves even between synchronizer runs.
func (s *Service) Authorize(ctx context.Context, viewer auth.Identity, classID string) error {
	if viewer.Kind == models.MemberTypeParent {
		ok, err := s.roster.ParentHasStudentInClass(ctx, viewer.ID, classID)
		if err != nil {
			return fmt.Errorf("check parent enrollment: %w", err)
		}
		if !ok {
			return ErrNotMember
		}
		return nil
	}

	ok, err := s.members.IsMember(ctx, classID, viewer.Kind, viewer.ID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return ErrNotMember
	}
	return nil
}

// Send validates and persists a draft, then broadcasts it to the live room.
// Broadcast strictly follows successful persistence: a message is never on
// the wire unless it is already in history.
func (s *Service) Send(ctx context.Context, viewer auth.Identity, classID string, draft Draft) (models.ChatMessage, error) {
	if !draft.Type.Valid() {
		return models.ChatMessage{}, ErrInvalidMessageType
	}
	if !draft.Type.AllowedForRole(viewer.Role) {
		return models.ChatMessage{}, ErrKindNotAllowed
	}
	if draft.Type != models.MessageTypeFile && strings.TrimSpace(draft.Content) == "" {
		return models.ChatMessage{}, ErrEmptyContent
	}
	if err := s.Authorize(ctx, viewer, classID); err != nil {
		return models.ChatMessage{}, err
	}

	msg := models.ChatMessage{
		ID:              uuid.NewString(),
		ClassID:         classID,
		SenderType:      viewer.Kind,
		SenderID:        viewer.ID,
		SenderRole:      viewer.Role,
		SenderName:      viewer.Name,
		SenderAvatar:    viewer.Avatar,
		Type:            draft.Type,
		Content:         draft.Content,
		Metadata:        draft.Metadata,
		TargetStudentID: draft.TargetStudentID,
		FileName:        draft.FileName,
		FileOriginal:    draft.FileOriginal,
		FileSize:        draft.FileSize,
		FileMime:        draft.FileMime,
	}

	msg, err := s.messages.Create(ctx, msg)
	if err != nil {
		return models.ChatMessage{}, fmt.Errorf("store message: %w", err)
	}

	s.hub.BroadcastMessage(classID, msg)
	observability.IncMessageSent(string(msg.Type))
	s.publishMessageSent(ctx, msg)
	return msg, nil
}

// ListRooms returns one summary per class the viewer belongs to, with a
// privacy-filtered preview of the latest message.
func (s *Service) ListRooms(ctx context.Context, viewer auth.Identity) ([]models.RoomSummary, error) {
	var classIDs []string
	var err error
	if viewer.Kind == models.MemberTypeParent {
		classIDs, err = s.roster.ClassIDsForParent(ctx, viewer.ID)
	} else {
		classIDs, err = s.members.ClassIDsForMember(ctx, viewer.Kind, viewer.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}

	rooms := make([]models.RoomSummary, 0, len(classIDs))
	for _, classID := range classIDs {
		class, err := s.roster.GetClass(ctx, classID)
		if errors.Is(err, repositories.ErrClassNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load class: %w", err)
		}

		memberCount, studentCount, err := s.members.CountByClass(ctx, classID)
		if err != nil {
			return nil, fmt.Errorf("count members: %w", err)
		}

		latest, err := s.messages.Latest(ctx, classID)
		if err != nil {
			return nil, fmt.Errorf("load preview: %w", err)
		}
		if latest != nil && !privacy.Visible(viewer, *latest) {
			latest = nil
		}

		rooms = append(rooms, models.RoomSummary{
			ClassID:      class.ID,
			Name:         class.Name,
			Level:        class.Level,
			MemberCount:  memberCount,
			StudentCount: studentCount,
			LastMessage:  latest,
		})
	}
	return rooms, nil
}

// ListMessages returns one page of history, newest first, strictly older
// than the cursor message. Non-visible messages are removed from the page
// rather than erroring. The returned cursor is the id of the oldest row
// fetched, nil once the history is exhausted.
func (s *Service) ListMessages(ctx context.Context, viewer auth.Identity, classID string, cursor string, limit int) ([]models.ChatMessage, *string, error) {
	if err := s.Authorize(ctx, viewer, classID); err != nil {
		return nil, nil, err
	}

	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	rows, err := s.messages.ListBefore(ctx, classID, cursor, limit+1)
	if err != nil {
		return nil, nil, fmt.Errorf("load messages: %w", err)
	}

	var nextCursor *string
	if len(rows) > limit {
		rows = rows[:limit]
		oldest := rows[len(rows)-1].ID
		nextCursor = &oldest
	}

	return privacy.FilterVisible(viewer, rows), nextCursor, nil
}

// ListMembers returns the persisted membership of a class.
func (s *Service) ListMembers(ctx context.Context, viewer auth.Identity, classID string) ([]models.ChatMember, error) {
	if err := s.Authorize(ctx, viewer, classID); err != nil {
		return nil, err
	}
	members, err := s.members.ListByClass(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}
	return members, nil
}

// UploadAndSend stores an attachment blob and sends the file message that
// references it.
func (s *Service) UploadAndSend(ctx context.Context, viewer auth.Identity, classID string, file io.Reader, fileName string, size int64, mimeType string) (models.ChatMessage, error) {
	if err := s.Authorize(ctx, viewer, classID); err != nil {
		return models.ChatMessage{}, err
	}
	if size > MaxFileSize {
		return models.ChatMessage{}, ErrFileTooLarge
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	if _, ok := allowedExtensions[ext]; !ok {
		return models.ChatMessage{}, ErrFileTypeNotAllowed
	}
	if mimeType != "" && !mimeAllowed(mimeType) {
		return models.ChatMessage{}, ErrFileTypeNotAllowed
	}

	storedName := uuid.NewString() + ext
	if err := s.blobs.Save(ctx, storedName, file); err != nil {
		return models.ChatMessage{}, fmt.Errorf("store blob: %w", err)
	}

	return s.Send(ctx, viewer, classID, Draft{
		Content:      fileName,
		Type:         models.MessageTypeFile,
		FileName:     &storedName,
		FileOriginal: &fileName,
		FileSize:     &size,
		FileMime:     &mimeType,
	})
}

// FileURL re-verifies the caller's membership in the message's class and
// returns a signed, expiring download link for the attachment.
func (s *Service) FileURL(ctx context.Context, viewer auth.Identity, storedName string) (string, error) {
	msg, err := s.messages.GetByStoredFile(ctx, storedName)
	if err != nil {
		return "", err
	}
	if err := s.Authorize(ctx, viewer, msg.ClassID); err != nil {
		return "", err
	}
	token, err := s.signer.Sign(storedName)
	if err != nil {
		return "", fmt.Errorf("sign download token: %w", err)
	}
	return fmt.Sprintf("/chat/file/%s/raw?token=%s", storedName, token), nil
}

// OpenFile redeems a download token and opens the blob, returning the
// message row for original name and MIME type.
func (s *Service) OpenFile(ctx context.Context, storedName string, token string) (io.ReadCloser, models.ChatMessage, error) {
	subject, err := s.signer.Verify(token)
	if err != nil || subject != storedName {
		return nil, models.ChatMessage{}, storage.ErrBadToken
	}
	msg, err := s.messages.GetByStoredFile(ctx, storedName)
	if err != nil {
		return nil, models.ChatMessage{}, err
	}
	reader, err := s.blobs.Open(ctx, storedName)
	if err != nil {
		return nil, models.ChatMessage{}, err
	}
	return reader, msg, nil
}

func (s *Service) publishMessageSent(ctx context.Context, msg models.ChatMessage) {
	if s.publisher == nil {
		return
	}
	event := map[string]interface{}{
		"event":        "message_sent",
		"class_id":     msg.ClassID,
		"message_id":   msg.ID,
		"message_type": msg.Type,
		"sender_type":  msg.SenderType,
		"sender_id":    msg.SenderID,
		"created_at":   msg.CreatedAt,
	}
	if err := s.publisher.Publish(ctx, "chat_events.message_sent", event); err != nil {
		log.Printf("publish message_sent failed: %v", err)
	}
}

func mimeAllowed(mimeType string) bool {
	for _, prefix := range allowedMimePrefixes {
		if strings.HasPrefix(mimeType, prefix) {
			return true
		}
	}
	return false
}
