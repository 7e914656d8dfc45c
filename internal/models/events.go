package models

import (
	"encoding/json"
	"time"
)

// Server-to-client envelope types.
const (
	EventSystem  = "system"
	EventMessage = "message"
	EventPong    = "pong"
	EventError   = "error"
)

// Client-to-server envelope types.
const (
	EventPing = "ping"
)

// SystemEvent announces room lifecycle changes ("X joined", "X left").
type SystemEvent struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageEvent carries one chat message to a recipient.
type MessageEvent struct {
	Type    string       `json:"type"`
	Message *ChatMessage `json:"message"`
}

// PongEvent answers a client heartbeat.
type PongEvent struct {
	Type string `json:"type"`
}

// ErrorEvent reports a per-sender failure over the socket.
type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ClientEvent is the client-to-server envelope: either a ping or a message
// draft.
type ClientEvent struct {
	Type            string          `json:"type"`
	Content         string          `json:"content,omitempty"`
	MessageType     MessageType     `json:"messageType,omitempty"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
	TargetStudentID *string         `json:"targetStudentId,omitempty"`
}
