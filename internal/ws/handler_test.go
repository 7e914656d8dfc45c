package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classchat-service/internal/auth"
	"classchat-service/internal/chat"
	"classchat-service/internal/models"
)

// fakeService answers Authorize/Send without repositories.
type fakeService struct {
	mu         sync.Mutex
	authorized bool
	sendErr    error
	sent       []chat.Draft
}

func (f *fakeService) Send(ctx context.Context, viewer auth.Identity, classID string, draft chat.Draft) (models.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return models.ChatMessage{}, f.sendErr
	}
	f.sent = append(f.sent, draft)
	return models.ChatMessage{ID: "m1", ClassID: classID, Type: draft.Type, Content: draft.Content}, nil
}

func (f *fakeService) Authorize(ctx context.Context, viewer auth.Identity, classID string) error {
	if !f.authorized {
		return chat.ErrNotMember
	}
	return nil
}

func (f *fakeService) sentDrafts() []chat.Draft {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]chat.Draft, len(f.sent))
	copy(out, f.sent)
	return out
}

func newSocketServer(t *testing.T, service *fakeService) (*httptest.Server, *auth.Resolver, *Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	resolver := auth.NewResolver("test-secret")
	hub := NewHub()
	handler := NewHandler(hub, resolver, service)

	router := gin.New()
	router.GET("/ws/chat", handler.Handle)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, resolver, hub
}

func dialSocket(t *testing.T, server *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/chat?classId=class-1&token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func signedToken(t *testing.T, resolver *auth.Resolver) string {
	t.Helper()
	token, err := resolver.SignIdentity(auth.Identity{
		Kind: models.MemberTypeStudent, ID: "student-1", Role: models.RoleStudent, Name: "Ana",
	}, time.Minute)
	require.NoError(t, err)
	return token
}

func expectClose(t *testing.T, conn *websocket.Conn, code int) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	require.True(t, ok, "expected close error, got %v", err)
	assert.Equal(t, code, closeErr.Code)
}

func TestHandleClosesUnauthenticatedWithPolicyViolation(t *testing.T) {
	server, _, _ := newSocketServer(t, &fakeService{authorized: true})
	conn := dialSocket(t, server, "not-a-token")
	expectClose(t, conn, websocket.ClosePolicyViolation)
}

func TestHandleClosesNonMemberWithPolicyViolation(t *testing.T) {
	service := &fakeService{authorized: false}
	server, resolver, _ := newSocketServer(t, service)
	conn := dialSocket(t, server, signedToken(t, resolver))
	expectClose(t, conn, websocket.ClosePolicyViolation)
}

func TestHandlePingPong(t *testing.T) {
	service := &fakeService{authorized: true}
	server, resolver, _ := newSocketServer(t, service)
	conn := dialSocket(t, server, signedToken(t, resolver))

	require.NoError(t, conn.WriteJSON(models.ClientEvent{Type: models.EventPing}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var pong models.PongEvent
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, models.EventPong, pong.Type)
}

func TestHandleMessageReachesService(t *testing.T) {
	service := &fakeService{authorized: true}
	server, resolver, _ := newSocketServer(t, service)
	conn := dialSocket(t, server, signedToken(t, resolver))

	require.NoError(t, conn.WriteJSON(models.ClientEvent{
		Type:        models.EventMessage,
		Content:     "hello",
		MessageType: models.MessageTypeText,
	}))

	require.Eventually(t, func() bool {
		return len(service.sentDrafts()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "hello", service.sentDrafts()[0].Content)
}

func TestHandleSendFailureReturnsErrorEnvelope(t *testing.T) {
	service := &fakeService{authorized: true, sendErr: chat.ErrKindNotAllowed}
	server, resolver, _ := newSocketServer(t, service)
	conn := dialSocket(t, server, signedToken(t, resolver))

	require.NoError(t, conn.WriteJSON(models.ClientEvent{
		Type:        models.EventMessage,
		Content:     "A+",
		MessageType: models.MessageTypeGrade,
	}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var envelope models.ErrorEvent
	require.NoError(t, conn.ReadJSON(&envelope))
	assert.Equal(t, models.EventError, envelope.Type)
	assert.Equal(t, chat.ErrKindNotAllowed.Error(), envelope.Message)
}

func TestHandleMalformedJSONIsIgnored(t *testing.T) {
	service := &fakeService{authorized: true}
	server, resolver, _ := newSocketServer(t, service)
	conn := dialSocket(t, server, signedToken(t, resolver))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))

	// The connection stays up: a ping still gets answered.
	require.NoError(t, conn.WriteJSON(models.ClientEvent{Type: models.EventPing}))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var pong models.PongEvent
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, models.EventPong, pong.Type)
	assert.Empty(t, service.sentDrafts())
}

func TestHandleDisconnectLeavesRoom(t *testing.T) {
	service := &fakeService{authorized: true}
	server, resolver, hub := newSocketServer(t, service)
	conn := dialSocket(t, server, signedToken(t, resolver))

	require.Eventually(t, func() bool { return hub.Size("class-1") == 1 }, 2*time.Second, 10*time.Millisecond)
	conn.Close()
	require.Eventually(t, func() bool { return hub.Size("class-1") == 0 }, 2*time.Second, 10*time.Millisecond)
}
