package models

import "time"

// MemberType distinguishes the three participant populations of a class chat.
type MemberType string

const (
	MemberTypeUser    MemberType = "user" // school staff: admins, teachers, receptionists
	MemberTypeStudent MemberType = "student"
	MemberTypeParent  MemberType = "parent"
)

// Valid reports whether the member type is one of the closed set.
func (t MemberType) Valid() bool {
	switch t {
	case MemberTypeUser, MemberTypeStudent, MemberTypeParent:
		return true
	}
	return false
}

// Role is the chat role a member acts under.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleTeacher      Role = "teacher"
	RoleReceptionist Role = "receptionist"
	RoleStudent      Role = "student"
	RoleParent       Role = "parent"
)

// Valid reports whether the role is one of the closed set.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleReceptionist, RoleStudent, RoleParent:
		return true
	}
	return false
}

// IsStaff reports whether the role belongs to a school staff account.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleTeacher || r == RoleReceptionist
}

// ChatMember is one persisted membership row: who is authorized to be in a
// class chat, independent of whether they are currently connected.
type ChatMember struct {
	ClassID    string     `db:"class_id" json:"class_id"`
	MemberType MemberType `db:"member_type" json:"member_type"`
	MemberID   string     `db:"member_id" json:"member_id"`
	Role       Role       `db:"role" json:"role"`
	Name       string     `db:"name" json:"name"`
	JoinedAt   time.Time  `db:"joined_at" json:"joined_at"`
}

// Key identifies a member row within its class.
type MemberKey struct {
	MemberType MemberType
	MemberID   string
}

// Key returns the identity of the row within its class.
func (m ChatMember) Key() MemberKey {
	return MemberKey{MemberType: m.MemberType, MemberID: m.MemberID}
}

// RoomSummary is the per-class entry of the room listing.
type RoomSummary struct {
	ClassID      string       `json:"class_id"`
	Name         string       `json:"name"`
	Level        string       `json:"level"`
	MemberCount  int          `json:"member_count"`
	StudentCount int          `json:"student_count"`
	LastMessage  *ChatMessage `json:"last_message"`
}
