package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer; drawing strokes can be large
	maxMessageSize = 512 * 1024
)

var (
	newline = []byte{'\n'}
	space   = []byte{' '}
)

// SessionAuthorizer decides whether a user may join a session room
type SessionAuthorizer interface {
	CanJoinSession(ctx context.Context, sessionID, userID int64) (bool, error)
}

// ClientMessage is the wire format for client-to-server control and relay
// events. Data carries the opaque payload for session-message and drawing.
type ClientMessage struct {
	Event     string          `json:"event"`
	ID        int64           `json:"id,omitempty"`
	SessionID int64           `json:"sessionId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Client is a middleman between the websocket connection and the hub
type Client struct {
	hub *Hub

	// The WebSocket connection; nil in tests that exercise only membership
	conn *websocket.Conn

	// Buffered channel of outbound messages
	send chan []byte

	// Authenticated identity of the client
	userID  int64
	isTutor bool

	authorizer SessionAuthorizer
	logger     zerolog.Logger
}

func (c *Client) close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// readPump pumps messages from the websocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Info().
					Int64("userID", c.userID).
					Msg("WebSocket closed normally")
			} else if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn().
					Err(err).
					Int64("userID", c.userID).
					Msg("Unexpected WebSocket close")
			} else {
				c.logger.Debug().
					Err(err).
					Int64("userID", c.userID).
					Msg("WebSocket read error")
			}
			break
		}

		message = bytes.TrimSpace(bytes.Replace(message, newline, space, -1))

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.logger.Error().
				Err(err).
				Int64("userID", c.userID).
				Str("message", string(message)).
				Msg("Failed to unmarshal client message")
			continue
		}

		c.handleMessage(&msg)
	}
}

// handleMessage dispatches a client event. Room joins are gated on the
// authenticated identity: a user may only join their own tutor/student room,
// and a session room only when they are a party to that session.
func (c *Client) handleMessage(msg *ClientMessage) {
	switch msg.Event {
	case "join-tutor-room":
		if !c.isTutor || msg.ID != c.userID {
			c.rejected(msg.Event, msg.ID)
			return
		}
		c.hub.Join(c, TutorRoom(msg.ID))

	case "join-student-room":
		if c.isTutor || msg.ID != c.userID {
			c.rejected(msg.Event, msg.ID)
			return
		}
		c.hub.Join(c, StudentRoom(msg.ID))

	case "leave-tutor-room":
		c.hub.Leave(c, TutorRoom(msg.ID))

	case "leave-student-room":
		c.hub.Leave(c, StudentRoom(msg.ID))

	case "join-session":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		allowed, err := c.authorizer.CanJoinSession(ctx, msg.SessionID, c.userID)
		if err != nil {
			c.logger.Error().
				Err(err).
				Int64("userID", c.userID).
				Int64("sessionID", msg.SessionID).
				Msg("Failed to authorize session join")
			return
		}
		if !allowed {
			c.rejected(msg.Event, msg.SessionID)
			return
		}
		c.hub.Join(c, SessionRoom(msg.SessionID))

	case "leave-session":
		c.hub.Leave(c, SessionRoom(msg.SessionID))

	case EventSessionMessage, EventDrawing:
		// Relay to the session room, excluding the sender. Only current
		// members of the room may relay into it.
		room := SessionRoom(msg.SessionID)
		if !c.hub.InRoom(c, room) {
			c.rejected(msg.Event, msg.SessionID)
			return
		}
		c.hub.broadcastExcluding(room, msg.Event, msg.Data, c)

	default:
		c.logger.Debug().
			Str("event", msg.Event).
			Int64("userID", c.userID).
			Msg("Unknown client event")
	}
}

func (c *Client) rejected(event string, id int64) {
	c.logger.Warn().
		Str("event", event).
		Int64("id", id).
		Int64("userID", c.userID).
		Msg("Rejected unauthorized room operation")
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Flush queued messages into the same frame
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write(newline)
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
