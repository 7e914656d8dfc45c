package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jmoiron/sqlx/types"
	"go.opentelemetry.io/otel"

	"classchat-service/internal/auth"
	"classchat-service/internal/chat"
	"classchat-service/internal/models"
	"classchat-service/internal/observability"
)

// Heartbeat contract: clients ping every 25 seconds; a connection that stays
// silent for three intervals is considered dead and disconnected.
const (
	HeartbeatInterval = 25 * time.Second
	readTimeout       = 3 * HeartbeatInterval
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// messageService is the slice of the chat service the socket path uses.
type messageService interface {
	Send(ctx context.Context, viewer auth.Identity, classID string, draft chat.Draft) (models.ChatMessage, error)
	Authorize(ctx context.Context, viewer auth.Identity, classID string) error
}

// Handler owns the live channel endpoint: upgrade, identity resolution,
// room membership and the per-connection read loop.
type Handler struct {
	hub      *Hub
	resolver *auth.Resolver
	service  messageService
}

// NewHandler constructs a Handler.
func NewHandler(hub *Hub, resolver *auth.Resolver, service messageService) *Handler {
	return &Handler{hub: hub, resolver: resolver, service: service}
}

// Handle serves GET /ws/chat?token=<credential>&classId=<id>. An upgrade
// without a valid credential, or for a class the caller is not a member of,
// is closed with policy-violation code 1008.
func (h *Handler) Handle(c *gin.Context) {
	classID := c.Query("classId")
	if classID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing classId"})
		return
	}

	ctx, span := otel.Tracer("classchat-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	socket, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	identity, err := h.resolver.Resolve(tokenFromRequest(c))
	if err != nil {
		closeWithPolicyViolation(socket, "authentication required")
		return
	}
	if err := h.service.Authorize(c.Request.Context(), identity, classID); err != nil {
		closeWithPolicyViolation(socket, "not a member of this class chat")
		return
	}

	conn := NewConnection(classID, identity, socket)
	conn.RequestID = observability.RequestIDFromRequest(c.Request)
	conn.TraceID = span.SpanContext().TraceID().String()
	h.hub.Join(conn)

	// The gin context is recycled once this handler returns, and the request
	// context is cancelled; capture what the loop needs and detach.
	meta := connMeta{
		deviceID: observability.DeviceIDFromRequest(c.Request),
		ip:       observability.IPFromRequest(c.Request),
	}

	observability.IncWSActive("chat")
	observability.IncWSEvent("chat", "ws_connect")
	h.publishLifecycleEvent(ctx, conn, meta, "ws_connect", "")

	go h.readLoop(context.Background(), conn, meta, socket)
}

type connMeta struct {
	deviceID string
	ip       string
}

// readLoop consumes client envelopes until the socket closes. Malformed JSON
// is skipped silently to tolerate heartbeat noise and partial frames.
func (h *Handler) readLoop(ctx context.Context, conn *Connection, meta connMeta, socket *websocket.Conn) {
	var closeReason string
	defer func() {
		h.hub.Leave(conn)
		observability.DecWSActive("chat")
		observability.IncWSEvent("chat", "ws_disconnect")
		h.publishLifecycleEvent(ctx, conn, meta, "ws_disconnect", closeReason)
		socket.Close()
	}()

	socket.SetReadDeadline(time.Now().Add(readTimeout))
	for {
		_, frame, err := socket.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("chat", "ws_error")
			}
			return
		}
		socket.SetReadDeadline(time.Now().Add(readTimeout))

		var event models.ClientEvent
		if err := json.Unmarshal(frame, &event); err != nil {
			continue
		}

		switch event.Type {
		case models.EventPing:
			h.sendJSON(conn, models.PongEvent{Type: models.EventPong})
		case models.EventMessage:
			draft := chat.Draft{
				Content:         event.Content,
				Type:            event.MessageType,
				Metadata:        types.JSONText(event.Metadata),
				TargetStudentID: event.TargetStudentID,
			}
			if _, err := h.service.Send(ctx, conn.Identity, conn.ClassID, draft); err != nil {
				h.sendJSON(conn, models.ErrorEvent{Type: models.EventError, Message: sendErrorText(err)})
			}
		}
	}
}

func (h *Handler) sendJSON(conn *Connection, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	conn.Send(payload)
}

func (h *Handler) publishLifecycleEvent(ctx context.Context, conn *Connection, meta connMeta, name, reason string) {
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        "chat",
			"class_id":    conn.ClassID,
			"event":       name,
			"conn_id":     conn.ID,
			"duration_ms": time.Since(conn.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"member_type": conn.Identity.Kind,
			"member_id":   conn.Identity.ID,
			"role":        conn.Identity.Role,
			"device_id":   meta.deviceID,
			"ip":          meta.ip,
		},
	}
	_ = observability.PublishEvent(ctx, "ws_events.chat", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: name,
		Payload:   payload,
	}, observability.BuildHeaders(conn.RequestID, conn.TraceID))
}

func tokenFromRequest(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return ""
}

func closeWithPolicyViolation(socket *websocket.Conn, reason string) {
	deadline := time.Now().Add(time.Second)
	socket.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), deadline)
	socket.Close()
}

// sendErrorText maps domain failures to the socket error envelope text.
func sendErrorText(err error) string {
	switch {
	case errors.Is(err, chat.ErrNotMember),
		errors.Is(err, chat.ErrKindNotAllowed),
		errors.Is(err, chat.ErrInvalidMessageType),
		errors.Is(err, chat.ErrEmptyContent):
		return err.Error()
	}
	return "failed to send message"
}
