package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// MessageType is the kind of a chat message.
type MessageType string

const (
	MessageTypeText        MessageType = "TEXT"
	MessageTypeExamResult  MessageType = "EXAM_RESULT"
	MessageTypeGrade       MessageType = "GRADE"
	MessageTypeSubjectInfo MessageType = "SUBJECT_INFO"
	MessageTypeFile        MessageType = "FILE"
)

// Valid reports whether the message type is one of the closed set.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeExamResult, MessageTypeGrade, MessageTypeSubjectInfo, MessageTypeFile:
		return true
	}
	return false
}

// AllowedForRole reports whether a sender with the given role may send this
// message type. Admins and teachers may send anything; everyone else is
// limited to plain text and file attachments.
func (t MessageType) AllowedForRole(role Role) bool {
	switch role {
	case RoleAdmin, RoleTeacher:
		return true
	case RoleReceptionist, RoleStudent, RoleParent:
		return t == MessageTypeText || t == MessageTypeFile
	}
	return false
}

// ChatMessage is one persisted, append-only chat message.
type ChatMessage struct {
	ID              string          `db:"id" json:"id"`
	ClassID         string          `db:"class_id" json:"class_id"`
	SenderType      MemberType      `db:"sender_type" json:"sender_type"`
	SenderID        string          `db:"sender_id" json:"sender_id"`
	SenderRole      Role            `db:"sender_role" json:"sender_role"`
	SenderName      string          `db:"sender_name" json:"sender_name"`
	SenderAvatar    string          `db:"sender_avatar" json:"sender_avatar,omitempty"`
	Type            MessageType     `db:"message_type" json:"message_type"`
	Content         string          `db:"content" json:"content"`
	Metadata        types.JSONText  `db:"metadata" json:"metadata,omitempty"`
	TargetStudentID *string         `db:"target_student_id" json:"target_student_id,omitempty"`
	FileName        *string         `db:"file_name" json:"file_name,omitempty"`
	FileOriginal    *string         `db:"file_original_name" json:"file_original_name,omitempty"`
	FileSize        *int64          `db:"file_size" json:"file_size,omitempty"`
	FileMime        *string         `db:"file_mime" json:"file_mime,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// Restricted reports whether the message carries per-student visibility
// limits: a target student plus an exam-result or grade payload.
func (m ChatMessage) Restricted() bool {
	if m.TargetStudentID == nil || *m.TargetStudentID == "" {
		return false
	}
	return m.Type == MessageTypeExamResult || m.Type == MessageTypeGrade
}
