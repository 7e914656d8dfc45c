package ws

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"classchat-service/internal/models"
	"classchat-service/internal/observability"
	"classchat-service/internal/privacy"
)

// Hub is the live fan-out engine: a process-local map from class id to the
// set of connected participants. Rooms are created lazily on first join and
// deleted on last leave; the persisted membership table remains the source of
// truth for who may be here.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Connection]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Connection]struct{})}
}

// Join adds the connection to its class room, creating the room if absent,
// and announces the arrival to the other occupants.
func (h *Hub) Join(c *Connection) {
	h.mu.Lock()
	room, ok := h.rooms[c.ClassID]
	if !ok {
		room = make(map[*Connection]struct{})
		h.rooms[c.ClassID] = room
	}
	room[c] = struct{}{}
	others := snapshotExcept(room, c)
	h.mu.Unlock()

	h.sendSystem(others, fmt.Sprintf("%s joined the chat", c.Identity.Name))
}

// Leave removes the connection from its room. Leaving twice, or leaving a
// connection that never joined, is a no-op: no error, no double notice. The
// room entry is deleted when its last connection leaves.
func (h *Hub) Leave(c *Connection) {
	h.mu.Lock()
	room, ok := h.rooms[c.ClassID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, present := room[c]; !present {
		h.mu.Unlock()
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, c.ClassID)
		h.mu.Unlock()
		return
	}
	remaining := snapshotExcept(room, nil)
	h.mu.Unlock()

	h.sendSystem(remaining, fmt.Sprintf("%s left the chat", c.Identity.Name))
}

// BroadcastSystem sends a system notice to every live connection in the room.
// A no-op if the room does not exist.
func (h *Hub) BroadcastSystem(classID string, text string) {
	h.sendSystem(h.snapshot(classID), text)
}

// BroadcastMessage fans a persisted message out to the room, delivering it
// only to occupants that pass the privacy predicate. A no-op if the room does
// not exist; offline members see the message later via history.
func (h *Hub) BroadcastMessage(classID string, msg models.ChatMessage) {
	conns := h.snapshot(classID)
	if len(conns) == 0 {
		return
	}

	payload, err := json.Marshal(models.MessageEvent{Type: models.EventMessage, Message: &msg})
	if err != nil {
		log.Printf("marshal message event: %v", err)
		return
	}
	for _, c := range conns {
		if !privacy.Visible(c.Identity, msg) {
			continue
		}
		h.deliver(c, payload)
	}
}

// Size returns the number of live connections in a room, 0 if absent.
func (h *Hub) Size(classID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[classID])
}

func (h *Hub) snapshot(classID string) []*Connection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return snapshotExcept(h.rooms[classID], nil)
}

func snapshotExcept(room map[*Connection]struct{}, except *Connection) []*Connection {
	conns := make([]*Connection, 0, len(room))
	for c := range room {
		if c != except {
			conns = append(conns, c)
		}
	}
	return conns
}

func (h *Hub) sendSystem(conns []*Connection, text string) {
	if len(conns) == 0 {
		return
	}
	payload, err := json.Marshal(models.SystemEvent{
		Type:      models.EventSystem,
		Message:   text,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		log.Printf("marshal system event: %v", err)
		return
	}
	for _, c := range conns {
		h.deliver(c, payload)
	}
}

// deliver writes to one recipient. A broken connection is closed and removed
// so it cannot block delivery to the rest of the room.
func (h *Hub) deliver(c *Connection, payload []byte) {
	if err := c.Send(payload); err != nil {
		log.Printf("websocket write error: %v", err)
		observability.IncWSEvent("chat", "ws_error")
		c.Close()
		h.Leave(c)
	}
}
