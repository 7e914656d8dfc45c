// Package client is the Go client for the class chat socket: it dials the
// live channel, keeps the heartbeat, reconnects with backoff and de-dups
// messages replayed across reconnects.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Heartbeat and reconnect tuning. The server drops a connection silent for
// three heartbeat intervals, so the client pings well inside that window.
const (
	heartbeatInterval = 25 * time.Second
	initialBackoff    = time.Second
	maxBackoff        = 30 * time.Second
	writeTimeout      = 10 * time.Second
	dedupWindow       = 512
)

// Options configures a Session.
type Options struct {
	// ServerURL is the http(s) base URL of the chat service.
	ServerURL string
	// Token is the bearer credential presented during the upgrade.
	Token string
	// ClassID selects the room to join.
	ClassID string

	// OnMessage receives every chat message, at most once per message id.
	OnMessage func(msg ChatMessage)
	// OnSystem receives join/leave notices.
	OnSystem func(event SystemEvent)
	// OnError receives server error envelopes and transport failures.
	OnError func(err error)
}

// Session is a managed connection to one class chat room. It owns a single
// reader goroutine and a heartbeat ticker, and transparently redials when
// the transport drops.
type Session struct {
	opts Options
	wsURL string

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	seen     map[string]struct{}
	seenRing []string

	done chan struct{}
}

// Dial connects to the class chat and starts the session's read and
// heartbeat loops. The returned Session must be Closed by the caller.
func Dial(ctx context.Context, opts Options) (*Session, error) {
	wsURL, err := socketURL(opts.ServerURL, opts.Token, opts.ClassID)
	if err != nil {
		return nil, err
	}

	s := &Session{
		opts:  opts,
		wsURL: wsURL,
		seen:  make(map[string]struct{}, dedupWindow),
		done:  make(chan struct{}),
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial chat socket: %w", err)
	}
	s.conn = conn

	go s.readLoop(conn)
	go s.heartbeatLoop()
	return s, nil
}

// Send publishes a chat message envelope over the socket.
func (s *Session) Send(event ClientEvent) error {
	s.mu.Lock()
	conn := s.conn
	closed := s.closed
	s.mu.Unlock()

	if closed || conn == nil {
		return fmt.Errorf("session closed")
	}

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(event)
}

// SendText is shorthand for sending a plain text message.
func (s *Session) SendText(content string) error {
	return s.Send(ClientEvent{
		Type:        EventMessage,
		Content:     content,
		MessageType: MessageTypeText,
	})
}

// Close shuts the session down and stops reconnecting.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)

	if s.conn != nil {
		s.conn.SetWriteDeadline(time.Now().Add(time.Second))
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
	}
	return nil
}

func (s *Session) readLoop(conn *websocket.Conn) {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			// Drop the dead transport so Send and the heartbeat ticker stop
			// writing to it while reconnect is redialing.
			s.mu.Lock()
			closed := s.closed
			if s.conn == conn {
				s.conn = nil
			}
			s.mu.Unlock()
			if closed {
				return
			}
			s.reportError(fmt.Errorf("read: %w", err))
			s.reconnect()
			return
		}
		s.dispatch(frame)
	}
}

// dispatch routes one server envelope by its type field. Unknown types and
// malformed frames are dropped.
func (s *Session) dispatch(frame []byte) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(frame, &head); err != nil {
		return
	}

	switch head.Type {
	case EventMessage:
		var event MessageEvent
		if err := json.Unmarshal(frame, &event); err != nil || event.Message == nil {
			return
		}
		if s.alreadySeen(event.Message.ID) {
			return
		}
		if s.opts.OnMessage != nil {
			s.opts.OnMessage(*event.Message)
		}
	case EventSystem:
		var event SystemEvent
		if err := json.Unmarshal(frame, &event); err != nil {
			return
		}
		if s.opts.OnSystem != nil {
			s.opts.OnSystem(event)
		}
	case EventError:
		var event ErrorEvent
		if err := json.Unmarshal(frame, &event); err != nil {
			return
		}
		s.reportError(fmt.Errorf("server: %s", event.Message))
	case EventPong:
		// Heartbeat acknowledged.
	}
}

// alreadySeen records the message id and reports whether it was delivered
// before. The window is bounded so long sessions do not grow unbounded.
func (s *Session) alreadySeen(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[id]; ok {
		return true
	}
	s.seen[id] = struct{}{}
	s.seenRing = append(s.seenRing, id)
	if len(s.seenRing) > dedupWindow {
		delete(s.seen, s.seenRing[0])
		s.seenRing = s.seenRing[1:]
	}
	return false
}

func (s *Session) heartbeatLoop() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			conn := s.conn
			s.mu.Unlock()
			if conn == nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(ClientEvent{Type: EventPing}); err != nil {
				s.reportError(fmt.Errorf("heartbeat: %w", err))
			}
		}
	}
}

// reconnect redials with capped exponential backoff plus jitter until it
// succeeds or the session is closed.
func (s *Session) reconnect() {
	backoff := initialBackoff
	for {
		select {
		case <-s.done:
			return
		case <-time.After(backoff + time.Duration(rand.Int63n(int64(backoff/2)+1))):
		}

		conn, _, err := websocket.DefaultDialer.Dial(s.wsURL, nil)
		if err != nil {
			s.reportError(fmt.Errorf("reconnect: %w", err))
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conn = conn
		s.mu.Unlock()

		go s.readLoop(conn)
		return
	}
}

func (s *Session) reportError(err error) {
	if s.opts.OnError != nil {
		s.opts.OnError(err)
	}
}

// socketURL converts the http(s) base URL into the ws(s) upgrade URL with
// credential and room selection in the query string.
func socketURL(serverURL, token, classID string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws/chat"
	query := u.Query()
	query.Set("token", token)
	query.Set("classId", classID)
	u.RawQuery = query.Encode()
	return u.String(), nil
}
