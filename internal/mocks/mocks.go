package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"classchat-service/internal/models"
	"classchat-service/internal/repositories"
	"classchat-service/internal/storage"
)

type MemberRepositoryMock struct {
	mock.Mock
}

func (m *MemberRepositoryMock) ListByClass(ctx context.Context, classID string) ([]models.ChatMember, error) {
	args := m.Called(ctx, classID)
	var members []models.ChatMember
	if val := args.Get(0); val != nil {
		members = val.([]models.ChatMember)
	}
	return members, args.Error(1)
}

func (m *MemberRepositoryMock) IsMember(ctx context.Context, classID string, memberType models.MemberType, memberID string) (bool, error) {
	args := m.Called(ctx, classID, memberType, memberID)
	return args.Bool(0), args.Error(1)
}

func (m *MemberRepositoryMock) CountByClass(ctx context.Context, classID string) (int, int, error) {
	args := m.Called(ctx, classID)
	return args.Int(0), args.Int(1), args.Error(2)
}

func (m *MemberRepositoryMock) ClassIDsForMember(ctx context.Context, memberType models.MemberType, memberID string) ([]string, error) {
	args := m.Called(ctx, memberType, memberID)
	var ids []string
	if val := args.Get(0); val != nil {
		ids = val.([]string)
	}
	return ids, args.Error(1)
}

func (m *MemberRepositoryMock) ApplyRosterDiff(ctx context.Context, classID string, upserts []models.ChatMember, deletes []models.MemberKey) error {
	args := m.Called(ctx, classID, upserts, deletes)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Create(ctx context.Context, msg models.ChatMessage) (models.ChatMessage, error) {
	args := m.Called(ctx, msg)
	var stored models.ChatMessage
	switch val := args.Get(0).(type) {
	case func(context.Context, models.ChatMessage) models.ChatMessage:
		stored = val(ctx, msg)
	case models.ChatMessage:
		stored = val
	}
	return stored, args.Error(1)
}

func (m *MessageRepositoryMock) ListBefore(ctx context.Context, classID string, cursor string, limit int) ([]models.ChatMessage, error) {
	args := m.Called(ctx, classID, cursor, limit)
	var msgs []models.ChatMessage
	if val := args.Get(0); val != nil {
		msgs = val.([]models.ChatMessage)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) Latest(ctx context.Context, classID string) (*models.ChatMessage, error) {
	args := m.Called(ctx, classID)
	var msg *models.ChatMessage
	if val := args.Get(0); val != nil {
		msg = val.(*models.ChatMessage)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) GetByStoredFile(ctx context.Context, storedName string) (models.ChatMessage, error) {
	args := m.Called(ctx, storedName)
	var msg models.ChatMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.ChatMessage)
	}
	return msg, args.Error(1)
}

type RosterRepositoryMock struct {
	mock.Mock
}

func (m *RosterRepositoryMock) GetClass(ctx context.Context, classID string) (models.Class, error) {
	args := m.Called(ctx, classID)
	var class models.Class
	if val := args.Get(0); val != nil {
		class = val.(models.Class)
	}
	return class, args.Error(1)
}

func (m *RosterRepositoryMock) ListActiveAdmins(ctx context.Context, schoolID string) ([]models.StaffUser, error) {
	args := m.Called(ctx, schoolID)
	var admins []models.StaffUser
	if val := args.Get(0); val != nil {
		admins = val.([]models.StaffUser)
	}
	return admins, args.Error(1)
}

func (m *RosterRepositoryMock) ListClassTeachers(ctx context.Context, classID string) ([]models.StaffUser, error) {
	args := m.Called(ctx, classID)
	var teachers []models.StaffUser
	if val := args.Get(0); val != nil {
		teachers = val.([]models.StaffUser)
	}
	return teachers, args.Error(1)
}

func (m *RosterRepositoryMock) ListActiveStudents(ctx context.Context, classID string) ([]models.StudentWithParent, error) {
	args := m.Called(ctx, classID)
	var students []models.StudentWithParent
	if val := args.Get(0); val != nil {
		students = val.([]models.StudentWithParent)
	}
	return students, args.Error(1)
}

func (m *RosterRepositoryMock) ParentHasStudentInClass(ctx context.Context, parentID string, classID string) (bool, error) {
	args := m.Called(ctx, parentID, classID)
	return args.Bool(0), args.Error(1)
}

func (m *RosterRepositoryMock) ClassIDsForParent(ctx context.Context, parentID string) ([]string, error) {
	args := m.Called(ctx, parentID)
	var ids []string
	if val := args.Get(0); val != nil {
		ids = val.([]string)
	}
	return ids, args.Error(1)
}

func (m *RosterRepositoryMock) ClassIDsForSchool(ctx context.Context, schoolID string) ([]string, error) {
	args := m.Called(ctx, schoolID)
	var ids []string
	if val := args.Get(0); val != nil {
		ids = val.([]string)
	}
	return ids, args.Error(1)
}

type BlobStoreMock struct {
	mock.Mock
}

func (m *BlobStoreMock) Save(ctx context.Context, storedName string, r io.Reader) error {
	args := m.Called(ctx, storedName, r)
	return args.Error(0)
}

func (m *BlobStoreMock) Open(ctx context.Context, storedName string) (io.ReadCloser, error) {
	args := m.Called(ctx, storedName)
	var reader io.ReadCloser
	if val := args.Get(0); val != nil {
		reader = val.(io.ReadCloser)
	}
	return reader, args.Error(1)
}

var (
	_ repositories.MemberRepository  = (*MemberRepositoryMock)(nil)
	_ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
	_ repositories.RosterRepository  = (*RosterRepositoryMock)(nil)
	_ storage.BlobStore              = (*BlobStoreMock)(nil)
)
