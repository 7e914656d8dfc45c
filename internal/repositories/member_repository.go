package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"classchat-service/internal/models"
)

// MemberRepository abstracts persisted chat membership.
type MemberRepository interface {
	ListByClass(ctx context.Context, classID string) ([]models.ChatMember, error)
	IsMember(ctx context.Context, classID string, memberType models.MemberType, memberID string) (bool, error)
	CountByClass(ctx context.Context, classID string) (members int, students int, err error)
	ClassIDsForMember(ctx context.Context, memberType models.MemberType, memberID string) ([]string, error)
	ApplyRosterDiff(ctx context.Context, classID string, upserts []models.ChatMember, deletes []models.MemberKey) error
}

// MemberRepo is a sqlx implementation of MemberRepository.
type MemberRepo struct {
	db *sqlx.DB
}

// NewMemberRepo constructs a MemberRepo.
func NewMemberRepo(db *sqlx.DB) *MemberRepo {
	return &MemberRepo{db: db}
}

// ListByClass returns the persisted membership of a class ordered by role
// precedence (staff first), then name.
func (r *MemberRepo) ListByClass(ctx context.Context, classID string) ([]models.ChatMember, error) {
	var members []models.ChatMember
	query := `SELECT class_id, member_type, member_id, role, name, joined_at FROM chat_members
        WHERE class_id=$1
        ORDER BY CASE role
            WHEN 'admin' THEN 0
            WHEN 'teacher' THEN 1
            WHEN 'receptionist' THEN 2
            WHEN 'student' THEN 3
            ELSE 4
        END, name`
	err := r.db.SelectContext(ctx, &members, query, classID)
	return members, err
}

// IsMember checks whether a (member type, member id) pair belongs to the class.
func (r *MemberRepo) IsMember(ctx context.Context, classID string, memberType models.MemberType, memberID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM chat_members WHERE class_id=$1 AND member_type=$2 AND member_id=$3)`,
		classID, memberType, memberID)
	return exists, err
}

// CountByClass returns the total member count and the student count of a class.
func (r *MemberRepo) CountByClass(ctx context.Context, classID string) (int, int, error) {
	var counts struct {
		Members  int `db:"members"`
		Students int `db:"students"`
	}
	query := `SELECT COUNT(*) AS members,
        COUNT(*) FILTER (WHERE member_type='student') AS students
        FROM chat_members WHERE class_id=$1`
	err := r.db.GetContext(ctx, &counts, query, classID)
	return counts.Members, counts.Students, err
}

// ClassIDsForMember lists the classes a member has a persisted row in, newest
// class first.
func (r *MemberRepo) ClassIDsForMember(ctx context.Context, memberType models.MemberType, memberID string) ([]string, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids,
		`SELECT cm.class_id FROM chat_members cm
         INNER JOIN classes c ON c.id = cm.class_id
         WHERE cm.member_type=$1 AND cm.member_id=$2
         ORDER BY c.created_at DESC`,
		memberType, memberID)
	return ids, err
}

// ApplyRosterDiff reconciles membership changes for one class in a single
// transaction: deletes first, then upserts.
func (r *MemberRepo) ApplyRosterDiff(ctx context.Context, classID string, upserts []models.ChatMember, deletes []models.MemberKey) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, key := range deletes {
		if _, err = tx.ExecContext(ctx,
			`DELETE FROM chat_members WHERE class_id=$1 AND member_type=$2 AND member_id=$3`,
			classID, key.MemberType, key.MemberID); err != nil {
			return err
		}
	}

	for _, member := range upserts {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO chat_members (class_id, member_type, member_id, role, name)
             VALUES ($1, $2, $3, $4, $5)
             ON CONFLICT (class_id, member_type, member_id)
             DO UPDATE SET role = EXCLUDED.role, name = EXCLUDED.name`,
			classID, member.MemberType, member.MemberID, member.Role, member.Name); err != nil {
			return err
		}
	}

	return tx.Commit()
}
