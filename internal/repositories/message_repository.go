package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"classchat-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

const messageColumns = `id, class_id, sender_type, sender_id, sender_role, sender_name, sender_avatar,
    message_type, content, metadata, target_student_id, file_name, file_original_name, file_size, file_mime, created_at`

// MessageRepository defines interactions for chat messages. Messages are
// append-only; there is no update or delete.
type MessageRepository interface {
	Create(ctx context.Context, msg models.ChatMessage) (models.ChatMessage, error)
	ListBefore(ctx context.Context, classID string, cursor string, limit int) ([]models.ChatMessage, error)
	Latest(ctx context.Context, classID string) (*models.ChatMessage, error)
	GetByStoredFile(ctx context.Context, storedName string) (models.ChatMessage, error)
}

// MessageRepo is a sqlx-backed implementation of MessageRepository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Create persists a message. The row's creation timestamp is assigned by the
// database and is the canonical broadcast and history order.
func (r *MessageRepo) Create(ctx context.Context, msg models.ChatMessage) (models.ChatMessage, error) {
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO chat_messages (id, class_id, sender_type, sender_id, sender_role, sender_name, sender_avatar,
            message_type, content, metadata, target_student_id, file_name, file_original_name, file_size, file_mime)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
         RETURNING created_at`,
		msg.ID, msg.ClassID, msg.SenderType, msg.SenderID, msg.SenderRole, msg.SenderName, msg.SenderAvatar,
		msg.Type, msg.Content, msg.Metadata, msg.TargetStudentID, msg.FileName, msg.FileOriginal, msg.FileSize, msg.FileMime).
		Scan(&msg.CreatedAt)
	return msg, err
}

// ListBefore returns up to limit messages strictly older than the cursor
// message, newest first. An empty cursor starts from the newest message.
func (r *MessageRepo) ListBefore(ctx context.Context, classID string, cursor string, limit int) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	query := `SELECT ` + messageColumns + ` FROM chat_messages
        WHERE class_id=$1
        AND ($2 = '' OR created_at < (SELECT created_at FROM chat_messages WHERE id=$2))
        ORDER BY created_at DESC
        LIMIT $3`
	err := r.db.SelectContext(ctx, &msgs, query, classID, cursor, limit)
	return msgs, err
}

// Latest returns the most recent message of a class, or nil when the class
// has no messages yet.
func (r *MessageRepo) Latest(ctx context.Context, classID string) (*models.ChatMessage, error) {
	var msg models.ChatMessage
	err := r.db.GetContext(ctx, &msg,
		`SELECT `+messageColumns+` FROM chat_messages WHERE class_id=$1 ORDER BY created_at DESC LIMIT 1`,
		classID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// GetByStoredFile resolves the message that references a stored attachment.
func (r *MessageRepo) GetByStoredFile(ctx context.Context, storedName string) (models.ChatMessage, error) {
	var msg models.ChatMessage
	err := r.db.GetContext(ctx, &msg,
		`SELECT `+messageColumns+` FROM chat_messages WHERE file_name=$1`,
		storedName)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatMessage{}, ErrMessageNotFound
	}
	return msg, err
}
