package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"classchat-service/internal/auth"
	"classchat-service/internal/chat"
	"classchat-service/internal/middleware"
	"classchat-service/internal/mocks"
	"classchat-service/internal/models"
	"classchat-service/internal/repositories"
	"classchat-service/internal/roster"
	"classchat-service/internal/storage"
	"classchat-service/internal/telemetry"
)

type handlerFixture struct {
	members  *mocks.MemberRepositoryMock
	messages *mocks.MessageRepositoryMock
	roster   *mocks.RosterRepositoryMock
	blobs    *mocks.BlobStoreMock
	audit    *mocks.PublisherMock
	router   *gin.Engine
}

func newHandlerFixture(identity auth.Identity) *handlerFixture {
	gin.SetMode(gin.TestMode)
	f := &handlerFixture{
		members:  new(mocks.MemberRepositoryMock),
		messages: new(mocks.MessageRepositoryMock),
		roster:   new(mocks.RosterRepositoryMock),
		blobs:    new(mocks.BlobStoreMock),
		audit:    new(mocks.PublisherMock),
	}

	signer := storage.NewDownloadSigner("test-secret", time.Minute)
	service := chat.NewService(f.members, f.messages, f.roster, noopHub{}, f.blobs, signer, nil)
	synchronizer := roster.NewSynchronizer(f.roster, f.members)
	emitter := telemetry.NewAuditEmitter(f.audit, "audit_log.chat", "classchat-service", "test")

	roomHandler := NewRoomHandler(service, synchronizer, emitter)
	messageHandler := NewMessageHandler(service)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.IdentityKey, identity)
		c.Next()
	})
	r.GET("/chat/rooms", roomHandler.ListRooms)
	r.GET("/chat/rooms/:class_id/messages", messageHandler.GetMessages)
	r.POST("/chat/rooms/:class_id/messages", messageHandler.PostMessage)
	r.GET("/chat/rooms/:class_id/members", roomHandler.ListMembers)
	r.POST("/chat/rooms/:class_id/upload", messageHandler.Upload)
	r.POST("/chat/rooms/:class_id/sync", roomHandler.SyncClass)
	r.GET("/chat/file/:stored_name", messageHandler.FileURL)
	r.GET("/chat/file/:stored_name/raw", messageHandler.Download)
	f.router = r
	return f
}

type noopHub struct{}

func (noopHub) BroadcastMessage(classID string, msg models.ChatMessage) {}

func adminIdentity() auth.Identity {
	return auth.Identity{Kind: models.MemberTypeUser, ID: "admin-1", Role: models.RoleAdmin, Name: "Head", SchoolID: "school-1"}
}

func teacherIdentity() auth.Identity {
	return auth.Identity{Kind: models.MemberTypeUser, ID: "teacher-1", Role: models.RoleTeacher, Name: "Ms T", SchoolID: "school-1"}
}

func TestListRoomsSuccess(t *testing.T) {
	f := newHandlerFixture(teacherIdentity())
	f.members.On("ClassIDsForMember", mock.Anything, models.MemberTypeUser, "teacher-1").Return([]string{"class-1"}, nil).Once()
	f.roster.On("GetClass", mock.Anything, "class-1").Return(models.Class{ID: "class-1", Name: "5B"}, nil).Once()
	f.members.On("CountByClass", mock.Anything, "class-1").Return(24, 20, nil).Once()
	f.messages.On("Latest", mock.Anything, "class-1").Return((*models.ChatMessage)(nil), nil).Once()

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat/rooms", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Rooms []models.RoomSummary `json:"rooms"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Rooms, 1)
	assert.Equal(t, "5B", resp.Rooms[0].Name)
	f.members.AssertExpectations(t)
}

func TestGetMessagesPassesCursorAndLimit(t *testing.T) {
	f := newHandlerFixture(teacherIdentity())
	f.members.On("IsMember", mock.Anything, "class-1", models.MemberTypeUser, "teacher-1").Return(true, nil).Once()
	f.messages.On("ListBefore", mock.Anything, "class-1", "m050", 11).Return([]models.ChatMessage{}, nil).Once()

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat/rooms/class-1/messages?cursor=m050&limit=10", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages   []models.ChatMessage `json:"messages"`
		NextCursor *string              `json:"nextCursor"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Empty(t, resp.Messages)
	assert.Nil(t, resp.NextCursor)
	f.messages.AssertExpectations(t)
}

func TestGetMessagesRejectsBadLimit(t *testing.T) {
	f := newHandlerFixture(teacherIdentity())
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat/rooms/class-1/messages?limit=lots", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetMessagesForbiddenForNonMember(t *testing.T) {
	f := newHandlerFixture(teacherIdentity())
	f.members.On("IsMember", mock.Anything, "class-1", models.MemberTypeUser, "teacher-1").Return(false, nil).Once()

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat/rooms/class-1/messages", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPostMessageSuccess(t *testing.T) {
	f := newHandlerFixture(teacherIdentity())
	f.members.On("IsMember", mock.Anything, "class-1", models.MemberTypeUser, "teacher-1").Return(true, nil).Once()
	f.messages.On("Create", mock.Anything, mock.Anything).Return(models.ChatMessage{ID: "m1", ClassID: "class-1", Type: models.MessageTypeText, Content: "hello"}, nil).Once()

	body := bytes.NewBufferString(`{"content":"hello","messageType":"TEXT"}`)
	req := httptest.NewRequest(http.MethodPost, "/chat/rooms/class-1/messages", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var msg models.ChatMessage
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&msg))
	assert.Equal(t, "hello", msg.Content)
}

func TestPostMessageKindRejectedForStudent(t *testing.T) {
	student := auth.Identity{Kind: models.MemberTypeStudent, ID: "student-1", Role: models.RoleStudent}
	f := newHandlerFixture(student)

	body := bytes.NewBufferString(`{"content":"A+","messageType":"GRADE","targetStudentId":"student-2"}`)
	req := httptest.NewRequest(http.MethodPost, "/chat/rooms/class-1/messages", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListMembersSuccess(t *testing.T) {
	f := newHandlerFixture(teacherIdentity())
	f.members.On("IsMember", mock.Anything, "class-1", models.MemberTypeUser, "teacher-1").Return(true, nil).Once()
	f.members.On("ListByClass", mock.Anything, "class-1").Return([]models.ChatMember{
		{ClassID: "class-1", MemberType: models.MemberTypeUser, MemberID: "teacher-1", Role: models.RoleTeacher, Name: "Ms T"},
	}, nil).Once()

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat/rooms/class-1/members", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSyncClassRequiresAdmin(t *testing.T) {
	f := newHandlerFixture(teacherIdentity())
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat/rooms/class-1/sync", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)
	f.roster.AssertNotCalled(t, "GetClass", mock.Anything, mock.Anything)
}

func TestSyncClassRunsAndAudits(t *testing.T) {
	f := newHandlerFixture(adminIdentity())
	f.roster.On("GetClass", mock.Anything, "class-1").Return(models.Class{ID: "class-1", SchoolID: "school-1"}, nil).Once()
	f.roster.On("ListActiveAdmins", mock.Anything, "school-1").Return([]models.StaffUser{}, nil).Once()
	f.roster.On("ListClassTeachers", mock.Anything, "class-1").Return([]models.StaffUser{}, nil).Once()
	f.roster.On("ListActiveStudents", mock.Anything, "class-1").Return([]models.StudentWithParent{}, nil).Once()
	f.members.On("ListByClass", mock.Anything, "class-1").Return([]models.ChatMember{}, nil).Once()
	f.audit.On("Publish", mock.Anything, "audit_log.chat", mock.Anything).Return(nil).Once()

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat/rooms/class-1/sync", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var result roster.SyncResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Equal(t, "class-1", result.ClassID)
	f.audit.AssertExpectations(t)
}

func TestSyncClassMissingClass(t *testing.T) {
	f := newHandlerFixture(adminIdentity())
	f.roster.On("GetClass", mock.Anything, "ghost").Return(models.Class{}, repositories.ErrClassNotFound).Once()
	f.audit.On("Publish", mock.Anything, "audit_log.chat", mock.Anything).Return(nil).Once()

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat/rooms/ghost/sync", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadMultipartSuccess(t *testing.T) {
	f := newHandlerFixture(teacherIdentity())
	f.members.On("IsMember", mock.Anything, "class-1", models.MemberTypeUser, "teacher-1").Return(true, nil)
	f.blobs.On("Save", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	f.messages.On("Create", mock.Anything, mock.Anything).Return(models.ChatMessage{ID: "m1", Type: models.MessageTypeFile}, nil).Once()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/chat/rooms/class-1/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	f.blobs.AssertExpectations(t)
}

func TestUploadMissingFile(t *testing.T) {
	f := newHandlerFixture(teacherIdentity())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chat/rooms/class-1/upload", nil)
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFileURLNotFound(t *testing.T) {
	f := newHandlerFixture(teacherIdentity())
	f.messages.On("GetByStoredFile", mock.Anything, "missing.pdf").
		Return(models.ChatMessage{}, repositories.ErrMessageNotFound).Once()

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat/file/missing.pdf", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownloadRejectsBadToken(t *testing.T) {
	f := newHandlerFixture(teacherIdentity())
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat/file/blob.pdf/raw?token=garbage", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
