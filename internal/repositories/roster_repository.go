package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"classchat-service/internal/models"
)

var ErrClassNotFound = errors.New("class not found")

// RosterRepository reads the authoritative school roster: classes, staff,
// students and their linked parents. The chat core never writes these tables.
type RosterRepository interface {
	GetClass(ctx context.Context, classID string) (models.Class, error)
	ListActiveAdmins(ctx context.Context, schoolID string) ([]models.StaffUser, error)
	ListClassTeachers(ctx context.Context, classID string) ([]models.StaffUser, error)
	ListActiveStudents(ctx context.Context, classID string) ([]models.StudentWithParent, error)
	ParentHasStudentInClass(ctx context.Context, parentID string, classID string) (bool, error)
	ClassIDsForParent(ctx context.Context, parentID string) ([]string, error)
	ClassIDsForSchool(ctx context.Context, schoolID string) ([]string, error)
}

// RosterRepo is a sqlx implementation of RosterRepository.
type RosterRepo struct {
	db *sqlx.DB
}

// NewRosterRepo constructs a RosterRepo.
func NewRosterRepo(db *sqlx.DB) *RosterRepo {
	return &RosterRepo{db: db}
}

// GetClass fetches a class by id.
func (r *RosterRepo) GetClass(ctx context.Context, classID string) (models.Class, error) {
	var class models.Class
	err := r.db.GetContext(ctx, &class,
		`SELECT id, school_id, name, level, homeroom_teacher_id, created_at FROM classes WHERE id=$1`,
		classID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Class{}, ErrClassNotFound
	}
	return class, err
}

// ListActiveAdmins returns the school's active admin accounts.
func (r *RosterRepo) ListActiveAdmins(ctx context.Context, schoolID string) ([]models.StaffUser, error) {
	var admins []models.StaffUser
	err := r.db.SelectContext(ctx, &admins,
		`SELECT id, school_id, name, role, active FROM staff_users
         WHERE school_id=$1 AND role='admin' AND active ORDER BY name`,
		schoolID)
	return admins, err
}

// ListClassTeachers returns teachers assigned to the class, including the
// homeroom teacher, deduplicated by id.
func (r *RosterRepo) ListClassTeachers(ctx context.Context, classID string) ([]models.StaffUser, error) {
	var teachers []models.StaffUser
	query := `SELECT DISTINCT u.id, u.school_id, u.name, u.role, u.active FROM staff_users u
        WHERE u.active AND (
            u.id IN (SELECT teacher_id FROM class_teachers WHERE class_id=$1)
            OR u.id = (SELECT homeroom_teacher_id FROM classes WHERE id=$1)
        )
        ORDER BY u.name`
	err := r.db.SelectContext(ctx, &teachers, query, classID)
	return teachers, err
}

// ListActiveStudents returns the class's active students joined to their
// linked parent, if any.
func (r *RosterRepo) ListActiveStudents(ctx context.Context, classID string) ([]models.StudentWithParent, error) {
	var students []models.StudentWithParent
	query := `SELECT s.id, s.school_id, s.class_id, s.parent_id, s.name, s.active, p.name AS parent_name
        FROM students s
        LEFT JOIN parents p ON p.id = s.parent_id
        WHERE s.class_id=$1 AND s.active
        ORDER BY s.name`
	err := r.db.SelectContext(ctx, &students, query, classID)
	return students, err
}

// ParentHasStudentInClass is the live membership check for parents: true when
// at least one of the parent's active children is currently enrolled in the
// class.
func (r *RosterRepo) ParentHasStudentInClass(ctx context.Context, parentID string, classID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM students WHERE parent_id=$1 AND class_id=$2 AND active)`,
		parentID, classID)
	return exists, err
}

// ClassIDsForParent lists the classes the parent's active children are
// enrolled in.
func (r *RosterRepo) ClassIDsForParent(ctx context.Context, parentID string) ([]string, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids,
		`SELECT DISTINCT s.class_id FROM students s
         INNER JOIN classes c ON c.id = s.class_id
         WHERE s.parent_id=$1 AND s.active AND s.class_id IS NOT NULL
         ORDER BY s.class_id`,
		parentID)
	return ids, err
}

// ClassIDsForSchool lists every class of a school, used by school-wide
// membership syncs.
func (r *RosterRepo) ClassIDsForSchool(ctx context.Context, schoolID string) ([]string, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids,
		`SELECT id FROM classes WHERE school_id=$1 ORDER BY created_at`,
		schoolID)
	return ids, err
}
