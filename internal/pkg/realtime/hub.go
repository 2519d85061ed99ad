package realtime

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Event names delivered to clients
const (
	EventNewQuery       = "new-query"
	EventTutorAccepted  = "tutor-accepted"
	EventSessionEnded   = "session-ended"
	EventSessionMessage = "session-message"
	EventDrawing        = "drawing"
)

// TutorsRoom is the implicit room every connected tutor belongs to; new-query
// notifications fan out here.
const TutorsRoom = "tutors"

// TutorRoom returns the private room name for a tutor
func TutorRoom(tutorID int64) string {
	return fmt.Sprintf("tutor-%d", tutorID)
}

// StudentRoom returns the private room name for a student
func StudentRoom(studentID int64) string {
	return fmt.Sprintf("student-%d", studentID)
}

// SessionRoom returns the room name for a live session
func SessionRoom(sessionID int64) string {
	return fmt.Sprintf("session-%d", sessionID)
}

// Envelope is the wire format for server-to-client events
type Envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// roomMessage is an outbound payload addressed to one room
type roomMessage struct {
	room    string
	exclude *Client
	data    []byte
}

// Hub maintains the set of active clients, their room memberships, and
// broadcasts messages to rooms. Delivery is best-effort: events addressed to
// rooms with no connected clients are dropped, and slow clients are
// disconnected rather than buffered without bound.
type Hub struct {
	// Registered clients by room name
	rooms map[string]map[*Client]bool

	// Rooms by client, for cleanup on disconnect
	memberships map[*Client]map[string]bool

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Outbound room-scoped messages
	broadcast chan roomMessage

	// Mutex for concurrent access to membership maps
	mu sync.RWMutex

	logger zerolog.Logger
}

// NewHub creates a new Hub instance
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		rooms:       make(map[string]map[*Client]bool),
		memberships: make(map[*Client]map[string]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan roomMessage, 64),
		logger:      logger,
	}
}

// Run starts the hub, handling client registrations and broadcasts
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.deliver(message)
		}
	}
}

// registerClient registers a new client. Tutors implicitly join the global
// tutors room so they receive new-query notifications without an explicit
// join.
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.memberships[client] = make(map[string]bool)
	if client.isTutor {
		h.joinLocked(client, TutorsRoom)
	}

	h.logger.Info().
		Int64("userID", client.userID).
		Bool("tutor", client.isTutor).
		Msg("Client registered")
}

// unregisterClient removes a client from all rooms and closes its send channel
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rooms, ok := h.memberships[client]
	if !ok {
		return
	}

	for room := range rooms {
		h.leaveLocked(client, room)
	}
	delete(h.memberships, client)
	close(client.send)

	h.logger.Info().
		Int64("userID", client.userID).
		Msg("Client unregistered")
}

// Join adds a client to a room. Membership changes commute, so concurrent
// joins and leaves only need the mutex.
func (h *Hub) Join(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.memberships[client]; !ok {
		return
	}
	h.joinLocked(client, room)

	h.logger.Debug().
		Int64("userID", client.userID).
		Str("room", room).
		Msg("Client joined room")
}

// Leave removes a client from a room
func (h *Hub) Leave(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.leaveLocked(client, room)
}

func (h *Hub) joinLocked(client *Client, room string) {
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][client] = true
	if membership, ok := h.memberships[client]; ok {
		membership[room] = true
	}
}

func (h *Hub) leaveLocked(client *Client, room string) {
	if clients, ok := h.rooms[room]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, room)
		}
	}
	if membership, ok := h.memberships[client]; ok {
		delete(membership, room)
	}
}

// InRoom reports whether a client is currently a member of a room
func (h *Hub) InRoom(client *Client, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.rooms[room]
	return ok && clients[client]
}

// RoomSize returns the number of clients in a room
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.rooms[room])
}

// Broadcast sends an event with a payload to every client in a room
func (h *Hub) Broadcast(room, event string, payload interface{}) {
	h.broadcastExcluding(room, event, payload, nil)
}

// BroadcastToTutors sends an event to every connected tutor
func (h *Hub) BroadcastToTutors(event string, payload interface{}) {
	h.Broadcast(TutorsRoom, event, payload)
}

// BroadcastToTutor sends an event to a tutor's private room
func (h *Hub) BroadcastToTutor(tutorID int64, event string, payload interface{}) {
	h.Broadcast(TutorRoom(tutorID), event, payload)
}

// BroadcastToStudent sends an event to a student's private room
func (h *Hub) BroadcastToStudent(studentID int64, event string, payload interface{}) {
	h.Broadcast(StudentRoom(studentID), event, payload)
}

// BroadcastToSession sends an event to a session room
func (h *Hub) BroadcastToSession(sessionID int64, event string, payload interface{}) {
	h.Broadcast(SessionRoom(sessionID), event, payload)
}

// broadcastExcluding sends to a room, optionally skipping the originating
// client (used when relaying session messages and drawing strokes).
func (h *Hub) broadcastExcluding(room, event string, payload interface{}, exclude *Client) {
	data, err := json.Marshal(Envelope{Event: event, Data: payload})
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("room", room).
			Str("event", event).
			Msg("Failed to marshal event for broadcast")
		return
	}

	h.broadcast <- roomMessage{room: room, exclude: exclude, data: data}
}

// deliver fans a message out to the current members of a room
func (h *Hub) deliver(message roomMessage) {
	h.mu.RLock()
	clients, ok := h.rooms[message.room]
	if !ok {
		h.mu.RUnlock()
		h.logger.Debug().
			Str("room", message.room).
			Msg("No clients in room for broadcast")
		return
	}

	var slow []*Client
	for client := range clients {
		if client == message.exclude {
			continue
		}
		select {
		case client.send <- message.data:
		default:
			// Send buffer full; the client is slow or gone
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	// Drop slow clients directly; going through the unregister channel here
	// would block the Run loop on itself.
	for _, client := range slow {
		h.unregisterClient(client)
		client.close()
	}
}
