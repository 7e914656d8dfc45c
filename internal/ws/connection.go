package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"classchat-service/internal/auth"
)

// wsConn is the slice of *websocket.Conn the hub needs. Narrowing it keeps
// the hub constructible with fake connections in tests.
type wsConn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Connection is one live socket inside a room. It exists from successful
// upgrade until socket close and is owned by the Hub for its lifetime.
type Connection struct {
	ID          string
	ClassID     string
	Identity    auth.Identity
	RequestID   string
	TraceID     string
	ConnectedAt time.Time

	conn    wsConn
	writeMu sync.Mutex
}

// NewConnection wraps an upgraded socket for hub registration.
func NewConnection(classID string, identity auth.Identity, conn wsConn) *Connection {
	return &Connection{
		ID:          newConnID(),
		ClassID:     classID,
		Identity:    identity,
		ConnectedAt: time.Now(),
		conn:        conn,
	}
}

// Send writes one text frame. Gorilla connections do not support concurrent
// writers, so the broadcast fan-out and the read loop's pong replies share
// this mutex.
func (c *Connection) Send(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Close closes the underlying socket.
func (c *Connection) Close() error {
	return c.conn.Close()
}
