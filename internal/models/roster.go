package models

import "time"

// Class is the roster view of a school class.
type Class struct {
	ID                string    `db:"id" json:"id"`
	SchoolID          string    `db:"school_id" json:"school_id"`
	Name              string    `db:"name" json:"name"`
	Level             string    `db:"level" json:"level"`
	HomeroomTeacherID *string   `db:"homeroom_teacher_id" json:"homeroom_teacher_id,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// StaffUser is a school staff account (admin, teacher or receptionist).
type StaffUser struct {
	ID       string `db:"id" json:"id"`
	SchoolID string `db:"school_id" json:"school_id"`
	Name     string `db:"name" json:"name"`
	Role     Role   `db:"role" json:"role"`
	Active   bool   `db:"active" json:"active"`
}

// Student is an enrolled student. ParentID links the student to at most one
// parent account.
type Student struct {
	ID       string  `db:"id" json:"id"`
	SchoolID string  `db:"school_id" json:"school_id"`
	ClassID  *string `db:"class_id" json:"class_id,omitempty"`
	ParentID *string `db:"parent_id" json:"parent_id,omitempty"`
	Name     string  `db:"name" json:"name"`
	Active   bool    `db:"active" json:"active"`
}

// Parent is a parent account.
type Parent struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// StudentWithParent joins a student to their linked parent, if any.
type StudentWithParent struct {
	Student
	ParentName *string `db:"parent_name" json:"parent_name,omitempty"`
}
