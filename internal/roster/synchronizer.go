// Package roster reconciles the authoritative school roster into the
// persisted chat membership table.
package roster

import (
	"context"
	"fmt"
	"log"

	"classchat-service/internal/models"
	"classchat-service/internal/observability"
	"classchat-service/internal/repositories"
)

// SyncResult reports what a reconciliation run changed.
type SyncResult struct {
	ClassID string `json:"class_id"`
	Added   int    `json:"added"`
	Updated int    `json:"updated"`
	Removed int    `json:"removed"`
}

// Changed reports whether the run wrote anything.
func (r SyncResult) Changed() bool {
	return r.Added > 0 || r.Updated > 0 || r.Removed > 0
}

// Synchronizer aligns chat_members rows with the desired membership set
// computed from the roster. It is invoked by roster-mutation call sites
// (student created/moved, teacher assignment changed) and by the admin sync
// endpoint; it does not watch for roster changes itself.
type Synchronizer struct {
	roster  repositories.RosterRepository
	members repositories.MemberRepository
}

// NewSynchronizer constructs a Synchronizer.
func NewSynchronizer(roster repositories.RosterRepository, members repositories.MemberRepository) *Synchronizer {
	return &Synchronizer{roster: roster, members: members}
}

// SyncClass reconciles one class. Running it twice on an unchanged roster is
// a no-op: only actual differences are written.
func (s *Synchronizer) SyncClass(ctx context.Context, classID string) (SyncResult, error) {
	result := SyncResult{ClassID: classID}

	desired, err := s.desiredMembers(ctx, classID)
	if err != nil {
		return result, err
	}

	existing, err := s.members.ListByClass(ctx, classID)
	if err != nil {
		return result, fmt.Errorf("load members: %w", err)
	}
	existingByKey := make(map[models.MemberKey]models.ChatMember, len(existing))
	for _, member := range existing {
		existingByKey[member.Key()] = member
	}

	var upserts []models.ChatMember
	for _, member := range desired {
		current, ok := existingByKey[member.Key()]
		if !ok {
			upserts = append(upserts, member)
			result.Added++
			continue
		}
		if current.Name != member.Name || current.Role != member.Role {
			upserts = append(upserts, member)
			result.Updated++
		}
	}

	desiredKeys := make(map[models.MemberKey]struct{}, len(desired))
	for _, member := range desired {
		desiredKeys[member.Key()] = struct{}{}
	}
	var deletes []models.MemberKey
	for _, member := range existing {
		if _, ok := desiredKeys[member.Key()]; !ok {
			deletes = append(deletes, member.Key())
			result.Removed++
		}
	}

	if result.Changed() {
		if err := s.members.ApplyRosterDiff(ctx, classID, upserts, deletes); err != nil {
			observability.IncSyncRun("error")
			return result, fmt.Errorf("apply roster diff: %w", err)
		}
		log.Printf("membership sync class=%s added=%d updated=%d removed=%d",
			classID, result.Added, result.Updated, result.Removed)
	}
	observability.IncSyncRun("ok")
	return result, nil
}

// SyncSchool reconciles every class of a school, class by class.
func (s *Synchronizer) SyncSchool(ctx context.Context, schoolID string) ([]SyncResult, error) {
	classIDs, err := s.roster.ClassIDsForSchool(ctx, schoolID)
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}

	results := make([]SyncResult, 0, len(classIDs))
	for _, classID := range classIDs {
		result, err := s.SyncClass(ctx, classID)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

// desiredMembers computes the full authorized set for a class: the school's
// active admins, the assigned and homeroom teachers, the active students, and
// each student's linked parent. Teachers and parents are deduplicated by id.
func (s *Synchronizer) desiredMembers(ctx context.Context, classID string) ([]models.ChatMember, error) {
	class, err := s.roster.GetClass(ctx, classID)
	if err != nil {
		return nil, err
	}

	admins, err := s.roster.ListActiveAdmins(ctx, class.SchoolID)
	if err != nil {
		return nil, fmt.Errorf("load admins: %w", err)
	}
	teachers, err := s.roster.ListClassTeachers(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("load teachers: %w", err)
	}
	students, err := s.roster.ListActiveStudents(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("load students: %w", err)
	}

	var desired []models.ChatMember
	seen := make(map[models.MemberKey]struct{})
	add := func(member models.ChatMember) {
		if _, ok := seen[member.Key()]; ok {
			return
		}
		seen[member.Key()] = struct{}{}
		desired = append(desired, member)
	}

	for _, admin := range admins {
		add(models.ChatMember{
			ClassID:    classID,
			MemberType: models.MemberTypeUser,
			MemberID:   admin.ID,
			Role:       models.RoleAdmin,
			Name:       admin.Name,
		})
	}
	for _, teacher := range teachers {
		add(models.ChatMember{
			ClassID:    classID,
			MemberType: models.MemberTypeUser,
			MemberID:   teacher.ID,
			Role:       models.RoleTeacher,
			Name:       teacher.Name,
		})
	}
	for _, student := range students {
		add(models.ChatMember{
			ClassID:    classID,
			MemberType: models.MemberTypeStudent,
			MemberID:   student.ID,
			Role:       models.RoleStudent,
			Name:       student.Name,
		})
		if student.ParentID != nil && *student.ParentID != "" {
			name := ""
			if student.ParentName != nil {
				name = *student.ParentName
			}
			add(models.ChatMember{
				ClassID:    classID,
				MemberType: models.MemberTypeParent,
				MemberID:   *student.ParentID,
				Role:       models.RoleParent,
				Name:       name,
			})
		}
	}

	return desired, nil
}
